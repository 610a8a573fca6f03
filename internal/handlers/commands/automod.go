package commands

import (
	"context"
	"fmt"
	"strings"

	dg "github.com/bwmarrin/discordgo"
	"github.com/glotchimo/warden/internal/handlers"
	rp "github.com/glotchimo/warden/internal/response"
	"github.com/glotchimo/warden/internal/utils"
)

type AutoModStatus struct{}

func (a *AutoModStatus) Metadata() dg.ApplicationCommand {
	return dg.ApplicationCommand{
		Name:        "automod",
		Description: "Show the automod configuration and punishment ladder",
	}
}

func (a *AutoModStatus) Handle(ctx context.Context, dep handlers.Dependencies) error {
	if err := dep.Responder.Defer(dep.Interaction, true); err != nil {
		return err
	}

	if !utils.HasPermission(dep.Interaction.Member, dg.PermissionManageMessages) {
		return dep.Responder.Fail(dep.Interaction, utils.Failure{
			Type:    utils.ErrNotAllowed,
			Message: "You need the Manage Messages permission to view automod settings.",
		})
	}

	conf := dep.AutoMod.Config()

	enabled := "Disabled"
	color := 0xFF0000
	if conf.Enabled {
		enabled = "Enabled"
		color = 0x00FF00
	}

	ladder := fmt.Sprintf(
		"Warnings 1-%d: %s timeout\nWarning %d+: kick (warnings kept)\nWarning %d+: ban (warnings cleared)",
		conf.WarningsForKick-1, conf.TimeoutDuration, conf.WarningsForKick, conf.WarningsForBan)

	embed := dg.MessageEmbed{
		Title: "AutoMod Configuration",
		Color: color,
		Fields: []*dg.MessageEmbedField{
			{Name: "Status", Value: enabled, Inline: true},
			{Name: "Spam Threshold", Value: fmt.Sprintf("%d messages / %s", conf.SpamThreshold, conf.SpamWindow), Inline: true},
			{Name: "Duplicate Threshold", Value: fmt.Sprintf("%d identical messages", conf.DuplicateThreshold), Inline: true},
			{Name: "Punishment Ladder", Value: ladder},
			{Name: "Exempt Roles", Value: strings.Join(conf.ExemptRoles, ", "), Inline: true},
			{Name: "Action Logging", Value: fmt.Sprintf("%t", conf.LogActions), Inline: true},
		},
	}

	return dep.Responder.Send(dep.Interaction, rp.MessageOptions{Embeds: []*dg.MessageEmbed{&embed}, Ephemeral: true})
}
