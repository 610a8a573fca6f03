package utils

import (
	"fmt"
	"time"

	dg "github.com/bwmarrin/discordgo"
	"github.com/glotchimo/warden/internal/models"
	"github.com/rs/xid"
)

func GenerateID() string {
	return xid.New().String()
}

func MapOptions(i *dg.InteractionCreate) map[string]*dg.ApplicationCommandInteractionDataOption {
	os := i.ApplicationCommandData().Options
	om := make(map[string]*dg.ApplicationCommandInteractionDataOption, len(os))
	for _, opt := range os {
		om[opt.Name] = opt
	}
	return om
}

type TimestampType string

const (
	TimestampShort    TimestampType = "t"
	TimestampDate     TimestampType = "d"
	TimestampRelative TimestampType = "R"
)

func FormatTimestamp(t time.Time, style TimestampType) string {
	return fmt.Sprintf("<t:%d:%s>", t.Unix(), style)
}

// HasPermission checks an interaction member's resolved permission bits.
func HasPermission(m *dg.Member, perm int64) bool {
	return m != nil && m.Permissions&(perm|dg.PermissionAdministrator) != 0
}

// MemberCapabilities resolves a member's roles and permissions into the form
// the moderation policy evaluates exemptions against.
func MemberCapabilities(s *dg.Session, guildID string, member *dg.Member) models.AuthorCapabilities {
	caps := models.AuthorCapabilities{}
	if member == nil || member.User == nil {
		return caps
	}
	caps.IsBot = member.User.Bot

	guild, err := s.State.Guild(guildID)
	if err != nil {
		if guild, err = s.Guild(guildID); err != nil {
			return caps
		}
	}
	caps.IsOwner = member.User.ID == guild.OwnerID

	roles := make(map[string]*dg.Role, len(guild.Roles))
	for _, role := range guild.Roles {
		roles[role.ID] = role
	}

	var perms int64
	for _, id := range member.Roles {
		role, ok := roles[id]
		if !ok {
			continue
		}
		caps.RoleNames = append(caps.RoleNames, role.Name)
		perms |= role.Permissions
	}

	caps.Administrator = perms&dg.PermissionAdministrator != 0
	caps.ManageMessages = perms&dg.PermissionManageMessages != 0
	caps.KickMembers = perms&dg.PermissionKickMembers != 0
	caps.BanMembers = perms&dg.PermissionBanMembers != 0

	return caps
}
