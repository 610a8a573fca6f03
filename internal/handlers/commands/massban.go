package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	dg "github.com/bwmarrin/discordgo"
	"github.com/glotchimo/warden/internal/handlers"
	"github.com/glotchimo/warden/internal/models"
	rp "github.com/glotchimo/warden/internal/response"
	"github.com/glotchimo/warden/internal/utils"
)

const massBanLimit = 50

type MassBan struct{}

func (m *MassBan) Metadata() dg.ApplicationCommand {
	return dg.ApplicationCommand{
		Name:        "massban",
		Description: "Ban multiple users by ID",
		Options: []*dg.ApplicationCommandOption{
			{
				Type:        dg.ApplicationCommandOptionString,
				Name:        "ids",
				Description: "Space-separated user IDs to ban",
				Required:    true,
			},
			{
				Type:        dg.ApplicationCommandOptionString,
				Name:        "reason",
				Description: "Reason for the bans",
			},
		},
	}
}

func (m *MassBan) Handle(ctx context.Context, dep handlers.Dependencies) error {
	if err := dep.Responder.Defer(dep.Interaction, false); err != nil {
		return err
	}

	if !utils.HasPermission(dep.Interaction.Member, dg.PermissionBanMembers) {
		return dep.Responder.Fail(dep.Interaction, utils.Failure{
			Type:    utils.ErrNotAllowed,
			Message: "You need the Ban Members permission to use this command.",
		})
	}

	opt, ok := dep.Options["ids"]
	if !ok {
		return dep.Responder.Fail(dep.Interaction, utils.Failure{
			Type:    utils.ErrBadInput,
			Message: "At least one user ID is required.",
		})
	}

	ids := strings.Fields(opt.StringValue())
	if len(ids) == 0 {
		return dep.Responder.Fail(dep.Interaction, utils.Failure{
			Type:    utils.ErrBadInput,
			Message: "At least one user ID is required.",
		})
	}
	if len(ids) > massBanLimit {
		return dep.Responder.Fail(dep.Interaction, utils.Failure{
			Type:    utils.ErrBadInput,
			Message: fmt.Sprintf("At most %d IDs can be banned at once, got %d.", massBanLimit, len(ids)),
		})
	}

	for _, id := range ids {
		for _, r := range id {
			if r < '0' || r > '9' {
				return dep.Responder.Fail(dep.Interaction, utils.Failure{
					Type:    utils.ErrBadInput,
					Message: fmt.Sprintf("%q is not a valid user ID.", id),
				})
			}
		}
	}

	reason := "Mass ban"
	if opt, ok := dep.Options["reason"]; ok {
		reason = opt.StringValue()
	}

	guildID := dep.Interaction.GuildID
	incident := &models.Incident{
		ID:      utils.GenerateID(),
		Kind:    models.IncidentMassAction,
		GuildID: guildID,
		Reasons: []string{reason},
		At:      time.Now(),
	}

	banned := 0
	var failures []string
	for _, id := range ids {
		res := dep.Port.BanUser(ctx, guildID, id, reason, 1)
		incident.Record("ban "+id, res.OK, res.Reason, res.Detail)
		if res.OK {
			banned++
			dep.Warnings.Clear(ctx, guildID, id)
		} else {
			failures = append(failures, id)
		}
	}

	dep.Port.SendLog(ctx, guildID, incident)

	dep.Logger.Info("mass ban executed",
		"incident", incident.ID,
		"guild", guildID,
		"requested", len(ids),
		"banned", banned,
	)

	color := 0x00FF00
	description := fmt.Sprintf("Banned %d of %d users.", banned, len(ids))
	if len(failures) > 0 {
		color = 0xFFA500
		description += fmt.Sprintf("\n\n**Failed:** %s", strings.Join(failures, ", "))
	}

	embed := dg.MessageEmbed{
		Title:       "Mass Ban Complete",
		Color:       color,
		Description: description,
		Fields: []*dg.MessageEmbedField{
			{Name: "Reason", Value: reason},
		},
	}

	return dep.Responder.Send(dep.Interaction, rp.MessageOptions{Embeds: []*dg.MessageEmbed{&embed}})
}
