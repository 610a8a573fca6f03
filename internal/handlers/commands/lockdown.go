package commands

import (
	"context"
	"fmt"
	"time"

	dg "github.com/bwmarrin/discordgo"
	"github.com/glotchimo/warden/internal/handlers"
	rp "github.com/glotchimo/warden/internal/response"
	"github.com/glotchimo/warden/internal/utils"
)

type Lockdown struct{}

func (l *Lockdown) Metadata() dg.ApplicationCommand {
	return dg.ApplicationCommand{
		Name:        "lockdown",
		Description: "Toggle server lockdown mode",
		Options: []*dg.ApplicationCommandOption{
			{
				Type:        dg.ApplicationCommandOptionInteger,
				Name:        "duration",
				Description: "Duration in minutes (0 for indefinite, omit to disable)",
			},
		},
	}
}

func (l *Lockdown) Handle(ctx context.Context, dep handlers.Dependencies) error {
	if err := dep.Responder.Defer(dep.Interaction, false); err != nil {
		return err
	}

	if !utils.HasPermission(dep.Interaction.Member, dg.PermissionAdministrator) {
		return dep.Responder.Fail(dep.Interaction, utils.Failure{
			Type:    utils.ErrNotAllowed,
			Message: "Only administrators can toggle lockdown.",
		})
	}

	guildID := dep.Interaction.GuildID
	status := dep.AntiRaid.Status(guildID)

	opt, hasDuration := dep.Options["duration"]
	if !hasDuration {
		if !status.LockedDown {
			return dep.Responder.Send(dep.Interaction, rp.MessageOptions{
				Content: "Server is not in lockdown. Pass a duration to enable it.",
			})
		}

		dep.AntiRaid.SetLockdown(ctx, guildID, false, 0)
		embed := dg.MessageEmbed{
			Title:       "Lockdown Disabled",
			Color:       0x00FF00,
			Description: "Server lockdown has been disabled. New members can join normally.",
		}
		return dep.Responder.Send(dep.Interaction, rp.MessageOptions{Embeds: []*dg.MessageEmbed{&embed}})
	}

	minutes := opt.IntValue()
	if minutes < 0 {
		return dep.Responder.Fail(dep.Interaction, utils.Failure{
			Type:    utils.ErrBadInput,
			Message: "Duration must be zero or positive.",
		})
	}

	duration := time.Duration(minutes) * time.Minute
	dep.AntiRaid.SetLockdown(ctx, guildID, true, duration)

	durationText := "indefinitely"
	if minutes > 0 {
		durationText = fmt.Sprintf("for %d minutes", minutes)
	}

	embed := dg.MessageEmbed{
		Title: "Lockdown Enabled",
		Color: 0xFF0000,
		Description: fmt.Sprintf("Server lockdown has been enabled %s.\n\n"+
			"New members will be kicked automatically until lockdown is disabled.", durationText),
	}
	if minutes > 0 {
		embed.Fields = append(embed.Fields, &dg.MessageEmbedField{
			Name:  "Expires",
			Value: utils.FormatTimestamp(time.Now().Add(duration), utils.TimestampRelative),
		})
	}

	return dep.Responder.Send(dep.Interaction, rp.MessageOptions{Embeds: []*dg.MessageEmbed{&embed}})
}
