package commands

import (
	"context"
	"fmt"

	dg "github.com/bwmarrin/discordgo"
	"github.com/glotchimo/warden/internal/handlers"
	rp "github.com/glotchimo/warden/internal/response"
	"github.com/glotchimo/warden/internal/utils"
)

type RaidStatus struct{}

func (r *RaidStatus) Metadata() dg.ApplicationCommand {
	return dg.ApplicationCommand{
		Name:        "raidstatus",
		Description: "Check current raid protection status",
	}
}

func (r *RaidStatus) Handle(ctx context.Context, dep handlers.Dependencies) error {
	if err := dep.Responder.Defer(dep.Interaction, true); err != nil {
		return err
	}

	if !utils.HasPermission(dep.Interaction.Member, dg.PermissionManageServer) {
		return dep.Responder.Fail(dep.Interaction, utils.Failure{
			Type:    utils.ErrNotAllowed,
			Message: "You need the Manage Server permission to check raid status.",
		})
	}

	status := dep.AntiRaid.Status(dep.Interaction.GuildID)
	conf := dep.AntiRaid.Config()

	color := 0x00FF00
	lockdown := "Not active"
	if status.LockedDown {
		color = 0xFF0000
		lockdown = "**ACTIVE** (indefinite)"
		if status.Expiry != nil {
			lockdown = fmt.Sprintf("**ACTIVE** (expires %s)",
				utils.FormatTimestamp(*status.Expiry, utils.TimestampRelative))
		}
	}

	joinStatus := "Normal"
	if status.RecentJoins > conf.JoinThreshold/2 {
		joinStatus = "High"
	}

	embed := dg.MessageEmbed{
		Title: "Raid Protection Status",
		Color: color,
		Fields: []*dg.MessageEmbedField{
			{Name: "Lockdown", Value: lockdown},
			{Name: fmt.Sprintf("Recent Joins (%s)", conf.JoinWindow), Value: fmt.Sprintf("%d (%s)", status.RecentJoins, joinStatus), Inline: true},
			{Name: "Suspicious Accounts", Value: fmt.Sprintf("%d", status.Suspicious), Inline: true},
			{Name: "Raid Threshold", Value: fmt.Sprintf("%d joins in %s", conf.JoinThreshold, conf.JoinWindow), Inline: true},
			{Name: "Min Account Age", Value: conf.MinAccountAge.String(), Inline: true},
		},
	}

	return dep.Responder.Send(dep.Interaction, rp.MessageOptions{Embeds: []*dg.MessageEmbed{&embed}, Ephemeral: true})
}
