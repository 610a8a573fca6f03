package commands

import (
	"context"
	"fmt"

	dg "github.com/bwmarrin/discordgo"
	"github.com/glotchimo/warden/internal/handlers"
	rp "github.com/glotchimo/warden/internal/response"
	"github.com/glotchimo/warden/internal/utils"
)

// Setup provisions the moderation scaffolding for a guild: a muted role that
// cannot speak, a moderator role, and a log channel. Re-running it reuses
// anything that already exists by name.
type Setup struct{}

func (s *Setup) Metadata() dg.ApplicationCommand {
	return dg.ApplicationCommand{
		Name:        "setup",
		Description: "Provision moderation roles and the log channel",
	}
}

func (s *Setup) Handle(ctx context.Context, dep handlers.Dependencies) error {
	if err := dep.Responder.Defer(dep.Interaction, false); err != nil {
		return err
	}

	guildID := dep.Interaction.GuildID
	guild, err := dep.Session.State.Guild(guildID)
	if err != nil {
		if guild, err = dep.Session.Guild(guildID); err != nil {
			return dep.Responder.Fail(dep.Interaction, utils.Failure{
				Type:    utils.ErrInternal,
				Message: "Could not resolve this server.",
				Data:    map[string]any{"error": err.Error()},
			})
		}
	}

	if dep.Interaction.Member == nil || dep.Interaction.Member.User.ID != guild.OwnerID {
		return dep.Responder.Fail(dep.Interaction, utils.Failure{
			Type:    utils.ErrNotAllowed,
			Message: "Only the server owner can run setup.",
		})
	}

	var steps []string

	mutedID, created, err := ensureRole(dep.Session, guild, dep.Conf.Setup.MuteRoleName, 0)
	if err != nil {
		return dep.Responder.Fail(dep.Interaction, utils.Failure{
			Type:    utils.ErrInternal,
			Message: "Failed to create the muted role.",
			Data:    map[string]any{"error": err.Error()},
		})
	}
	dep.Store.SetRoleID(ctx, guildID, "muted", mutedID)
	steps = append(steps, stepLine(dep.Conf.Setup.MuteRoleName+" role", created))

	// Deny sending in every text channel so a mute actually silences.
	denied := 0
	for _, channel := range guild.Channels {
		if channel.Type != dg.ChannelTypeGuildText {
			continue
		}
		err := dep.Session.ChannelPermissionSet(channel.ID, mutedID,
			dg.PermissionOverwriteTypeRole, 0, dg.PermissionSendMessages|dg.PermissionAddReactions)
		if err == nil {
			denied++
		}
	}
	steps = append(steps, fmt.Sprintf("Muted overwrites applied to %d channels", denied))

	modPerms := int64(dg.PermissionKickMembers | dg.PermissionManageMessages | dg.PermissionModerateMembers)
	modID, created, err := ensureRole(dep.Session, guild, dep.Conf.Setup.ModRoleName, modPerms)
	if err != nil {
		return dep.Responder.Fail(dep.Interaction, utils.Failure{
			Type:    utils.ErrInternal,
			Message: "Failed to create the moderator role.",
			Data:    map[string]any{"error": err.Error()},
		})
	}
	dep.Store.SetRoleID(ctx, guildID, "moderator", modID)
	steps = append(steps, stepLine(dep.Conf.Setup.ModRoleName+" role", created))

	logID, created, err := ensureLogChannel(dep.Session, guild, dep.Conf.Setup.LogChannelName, modID)
	if err != nil {
		return dep.Responder.Fail(dep.Interaction, utils.Failure{
			Type:    utils.ErrInternal,
			Message: "Failed to create the log channel.",
			Data:    map[string]any{"error": err.Error()},
		})
	}
	dep.Store.SetChannelID(ctx, guildID, "logs", logID)
	dep.Store.SetLogChannelID(ctx, guildID, logID)
	steps = append(steps, stepLine("#"+dep.Conf.Setup.LogChannelName+" channel", created))

	persisted := dep.Store.MarkSetupComplete(ctx, guildID)
	if !persisted {
		steps = append(steps, "⚠️ Settings could not be saved durably; they will apply until restart")
	}

	dep.Logger.Info("guild setup completed",
		"guild", guildID,
		"muted_role", mutedID,
		"moderator_role", modID,
		"log_channel", logID,
		"persisted", persisted,
	)

	embed := dg.MessageEmbed{
		Title:       "Setup Complete",
		Color:       0x00FF00,
		Description: "Moderation scaffolding is in place.",
	}
	for _, step := range steps {
		embed.Description += "\n• " + step
	}

	return dep.Responder.Send(dep.Interaction, rp.MessageOptions{Embeds: []*dg.MessageEmbed{&embed}})
}

func ensureRole(s *dg.Session, guild *dg.Guild, name string, perms int64) (id string, created bool, err error) {
	for _, role := range guild.Roles {
		if role.Name == name {
			return role.ID, false, nil
		}
	}

	role, err := s.GuildRoleCreate(guild.ID, &dg.RoleParams{
		Name:        name,
		Permissions: &perms,
	})
	if err != nil {
		return "", false, err
	}
	return role.ID, true, nil
}

func ensureLogChannel(s *dg.Session, guild *dg.Guild, name, modRoleID string) (id string, created bool, err error) {
	for _, channel := range guild.Channels {
		if channel.Type == dg.ChannelTypeGuildText && channel.Name == name {
			return channel.ID, false, nil
		}
	}

	channel, err := s.GuildChannelCreateComplex(guild.ID, dg.GuildChannelCreateData{
		Name: name,
		Type: dg.ChannelTypeGuildText,
		PermissionOverwrites: []*dg.PermissionOverwrite{
			{ID: guild.ID, Type: dg.PermissionOverwriteTypeRole, Deny: dg.PermissionViewChannel},
			{ID: modRoleID, Type: dg.PermissionOverwriteTypeRole, Allow: dg.PermissionViewChannel},
		},
	})
	if err != nil {
		return "", false, err
	}
	return channel.ID, true, nil
}

func stepLine(what string, created bool) string {
	if created {
		return what + " created"
	}
	return what + " already existed, reused"
}

// CheckSetup reports which pieces of the scaffolding are configured.
type CheckSetup struct{}

func (c *CheckSetup) Metadata() dg.ApplicationCommand {
	return dg.ApplicationCommand{
		Name:        "checksetup",
		Description: "Check whether moderation setup has been completed",
	}
}

func (c *CheckSetup) Handle(ctx context.Context, dep handlers.Dependencies) error {
	if err := dep.Responder.Defer(dep.Interaction, true); err != nil {
		return err
	}

	if !utils.HasPermission(dep.Interaction.Member, dg.PermissionManageServer) {
		return dep.Responder.Fail(dep.Interaction, utils.Failure{
			Type:    utils.ErrNotAllowed,
			Message: "You need the Manage Server permission to check setup.",
		})
	}

	guildID := dep.Interaction.GuildID

	complete := dep.Store.IsSetupComplete(ctx, guildID)
	mutedID := dep.Store.RoleID(ctx, guildID, "muted")
	modID := dep.Store.RoleID(ctx, guildID, "moderator")
	logID := dep.Store.LogChannelID(ctx, guildID)

	color := 0xFFA500
	status := "Incomplete. Run /setup to provision missing pieces."
	if complete {
		color = 0x00FF00
		status = "Complete"
	}

	embed := dg.MessageEmbed{
		Title: "Setup Status",
		Color: color,
		Fields: []*dg.MessageEmbedField{
			{Name: "Status", Value: status},
			{Name: "Muted Role", Value: mentionOrMissing("<@&%s>", mutedID), Inline: true},
			{Name: "Moderator Role", Value: mentionOrMissing("<@&%s>", modID), Inline: true},
			{Name: "Log Channel", Value: mentionOrMissing("<#%s>", logID), Inline: true},
		},
	}

	return dep.Responder.Send(dep.Interaction, rp.MessageOptions{Embeds: []*dg.MessageEmbed{&embed}, Ephemeral: true})
}

func mentionOrMissing(format, id string) string {
	if id == "" {
		return "Not configured"
	}
	return fmt.Sprintf(format, id)
}
