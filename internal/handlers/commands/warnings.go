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

type Warnings struct{}

func (w *Warnings) Metadata() dg.ApplicationCommand {
	return dg.ApplicationCommand{
		Name:        "warnings",
		Description: "Check warnings for a user",
		Options: []*dg.ApplicationCommandOption{
			{
				Type:        dg.ApplicationCommandOptionUser,
				Name:        "member",
				Description: "The member to check warnings for",
				Required:    true,
			},
		},
	}
}

func (w *Warnings) Handle(ctx context.Context, dep handlers.Dependencies) error {
	if err := dep.Responder.Defer(dep.Interaction, true); err != nil {
		return err
	}

	if !utils.HasPermission(dep.Interaction.Member, dg.PermissionManageMessages) {
		return dep.Responder.Fail(dep.Interaction, utils.Failure{
			Type:    utils.ErrNotAllowed,
			Message: "You need the Manage Messages permission to check warnings.",
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

	guildID := dep.Interaction.GuildID
	total := dep.Warnings.Count(ctx, guildID, user.ID)
	recent := dep.Warnings.RecentCount(ctx, guildID, user.ID, 24*time.Hour)

	color := 0x00FF00
	if total > 0 {
		color = 0xFFA500
	}

	conf := dep.AutoMod.Config()
	embed := dg.MessageEmbed{
		Title: "User Warnings",
		Color: color,
		Fields: []*dg.MessageEmbedField{
			{Name: "User", Value: fmt.Sprintf("%s (<@%s>)", user.Username, user.ID)},
			{Name: "Total Warnings", Value: fmt.Sprintf("%d", total), Inline: true},
			{Name: "Last 24 Hours", Value: fmt.Sprintf("%d", recent), Inline: true},
			{Name: "Thresholds", Value: fmt.Sprintf("Kick at %d | Ban at %d", conf.WarningsForKick, conf.WarningsForBan)},
		},
	}

	return dep.Responder.Send(dep.Interaction, rp.MessageOptions{Embeds: []*dg.MessageEmbed{&embed}, Ephemeral: true})
}
