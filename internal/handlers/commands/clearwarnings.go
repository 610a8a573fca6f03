package commands

import (
	"context"
	"fmt"

	dg "github.com/bwmarrin/discordgo"
	"github.com/glotchimo/warden/internal/handlers"
	rp "github.com/glotchimo/warden/internal/response"
	"github.com/glotchimo/warden/internal/utils"
)

type ClearWarnings struct{}

func (c *ClearWarnings) Metadata() dg.ApplicationCommand {
	return dg.ApplicationCommand{
		Name:        "clearwarnings",
		Description: "Clear warnings for a user, or the whole server's ledger",
		Options: []*dg.ApplicationCommandOption{
			{
				Type:        dg.ApplicationCommandOptionUser,
				Name:        "member",
				Description: "The member to clear warnings for (omit to clear everyone)",
			},
		},
	}
}

func (c *ClearWarnings) Handle(ctx context.Context, dep handlers.Dependencies) error {
	if err := dep.Responder.Defer(dep.Interaction, false); err != nil {
		return err
	}

	if !utils.HasPermission(dep.Interaction.Member, dg.PermissionAdministrator) {
		return dep.Responder.Fail(dep.Interaction, utils.Failure{
			Type:    utils.ErrNotAllowed,
			Message: "Only administrators can clear warnings.",
		})
	}

	opt, ok := dep.Options["member"]
	if !ok {
		var embed dg.MessageEmbed
		if dep.Warnings.ClearGuild(ctx, dep.Interaction.GuildID) {
			embed = dg.MessageEmbed{
				Title:       "Ledger Cleared",
				Color:       0x00FF00,
				Description: "All warnings in this server have been cleared.",
			}
		} else {
			embed = dg.MessageEmbed{
				Title:       "No Warnings",
				Color:       0x0000FF,
				Description: "Nobody in this server has warnings to clear.",
			}
		}
		return dep.Responder.Send(dep.Interaction, rp.MessageOptions{Embeds: []*dg.MessageEmbed{&embed}})
	}
	user := opt.UserValue(dep.Session)

	cleared := dep.Warnings.Clear(ctx, dep.Interaction.GuildID, user.ID)

	var embed dg.MessageEmbed
	if cleared {
		embed = dg.MessageEmbed{
			Title:       "Warnings Cleared",
			Color:       0x00FF00,
			Description: fmt.Sprintf("All warnings for <@%s> have been cleared.", user.ID),
		}
	} else {
		embed = dg.MessageEmbed{
			Title:       "No Warnings",
			Color:       0x0000FF,
			Description: fmt.Sprintf("<@%s> has no warnings to clear.", user.ID),
		}
	}

	return dep.Responder.Send(dep.Interaction, rp.MessageOptions{Embeds: []*dg.MessageEmbed{&embed}})
}
