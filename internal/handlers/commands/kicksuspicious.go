package commands

import (
	"context"
	"fmt"

	dg "github.com/bwmarrin/discordgo"
	"github.com/glotchimo/warden/internal/handlers"
	rp "github.com/glotchimo/warden/internal/response"
	"github.com/glotchimo/warden/internal/utils"
)

type KickSuspicious struct{}

func (k *KickSuspicious) Metadata() dg.ApplicationCommand {
	return dg.ApplicationCommand{
		Name:        "kicksuspicious",
		Description: "Kick all accounts currently flagged as suspicious",
	}
}

func (k *KickSuspicious) Handle(ctx context.Context, dep handlers.Dependencies) error {
	if err := dep.Responder.Defer(dep.Interaction, false); err != nil {
		return err
	}

	if !utils.HasPermission(dep.Interaction.Member, dg.PermissionKickMembers) {
		return dep.Responder.Fail(dep.Interaction, utils.Failure{
			Type:    utils.ErrNotAllowed,
			Message: "You need the Kick Members permission to use this command.",
		})
	}

	guildID := dep.Interaction.GuildID
	if dep.AntiRaid.Status(guildID).Suspicious == 0 {
		return dep.Responder.Send(dep.Interaction, rp.MessageOptions{
			Content: "No accounts are currently flagged as suspicious.",
		})
	}

	kicked, failed := dep.AntiRaid.KickSuspicious(ctx, guildID)

	color := 0x00FF00
	if failed > 0 {
		color = 0xFFA500
	}

	embed := dg.MessageEmbed{
		Title: "Suspicious Accounts Kicked",
		Color: color,
		Description: fmt.Sprintf("Kicked %d flagged accounts (%d failed). The flag list has been cleared.",
			kicked, failed),
	}

	return dep.Responder.Send(dep.Interaction, rp.MessageOptions{Embeds: []*dg.MessageEmbed{&embed}})
}
