package commands

import (
	"context"
	"fmt"
	"time"

	dg "github.com/bwmarrin/discordgo"
	"github.com/glotchimo/warden/internal/handlers"
	"github.com/glotchimo/warden/internal/models"
	rp "github.com/glotchimo/warden/internal/response"
	"github.com/glotchimo/warden/internal/utils"
)

type Warn struct{}

func (w *Warn) Metadata() dg.ApplicationCommand {
	return dg.ApplicationCommand{
		Name:        "warn",
		Description: "Manually warn a user",
		Options: []*dg.ApplicationCommandOption{
			{
				Type:        dg.ApplicationCommandOptionUser,
				Name:        "member",
				Description: "The member to warn",
				Required:    true,
			},
			{
				Type:        dg.ApplicationCommandOptionString,
				Name:        "reason",
				Description: "Reason for the warning",
			},
		},
	}
}

func (w *Warn) Handle(ctx context.Context, dep handlers.Dependencies) error {
	if err := dep.Responder.Defer(dep.Interaction, false); err != nil {
		return err
	}

	if !utils.HasPermission(dep.Interaction.Member, dg.PermissionManageMessages) {
		return dep.Responder.Fail(dep.Interaction, utils.Failure{
			Type:    utils.ErrNotAllowed,
			Message: "You need the Manage Messages permission to warn members.",
		})
	}

	opt, ok := dep.Options["member"]
	if !ok {
		return dep.Responder.Fail(dep.Interaction, utils.Failure{
			Type:    utils.ErrBadInput,
			Message: "A member is required.",
		})
	}
	user := opt.UserValue(dep.Session)

	reason := "No reason provided"
	if opt, ok := dep.Options["reason"]; ok {
		reason = opt.StringValue()
	}

	guildID := dep.Interaction.GuildID
	member, err := dep.Session.GuildMember(guildID, user.ID)
	if err != nil {
		return dep.Responder.Fail(dep.Interaction, utils.Failure{
			Type:    utils.ErrNotFound,
			Message: "That member could not be found in this server.",
		})
	}

	if dep.AutoMod.Exempt(utils.MemberCapabilities(dep.Session, guildID, member)) {
		return dep.Responder.Fail(dep.Interaction, utils.Failure{
			Type:    utils.ErrNotAllowed,
			Message: "That member is exempt from warnings.",
		})
	}

	count := dep.Warnings.AddWarning(ctx, guildID, user.ID)

	incident := &models.Incident{
		ID:       utils.GenerateID(),
		Kind:     models.IncidentWarning,
		GuildID:  guildID,
		UserID:   user.ID,
		Username: user.Username,
		Reasons:  []string{reason},
		Warnings: count,
		At:       time.Now(),
	}
	dep.Port.SendLog(ctx, guildID, incident)

	// Best-effort DM; closed DMs are common and not an error.
	if channel, err := dep.Session.UserChannelCreate(user.ID); err == nil {
		dep.Session.ChannelMessageSendEmbed(channel.ID, &dg.MessageEmbed{
			Title:       "Warning Received",
			Color:       0xFFA500,
			Description: fmt.Sprintf("You have received a warning.\n\n**Reason:** %s", reason),
			Fields: []*dg.MessageEmbedField{
				{Name: "Total Warnings", Value: fmt.Sprintf("%d", count)},
			},
		})
	}

	embed := dg.MessageEmbed{
		Title: "User Warned",
		Color: 0xFFA500,
		Fields: []*dg.MessageEmbedField{
			{Name: "User", Value: fmt.Sprintf("%s (<@%s>)", user.Username, user.ID), Inline: true},
			{Name: "Warning #", Value: fmt.Sprintf("%d", count), Inline: true},
			{Name: "Reason", Value: reason},
		},
	}

	return dep.Responder.Send(dep.Interaction, rp.MessageOptions{Embeds: []*dg.MessageEmbed{&embed}})
}
