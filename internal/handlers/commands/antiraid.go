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

type AntiRaidStatus struct{}

func (a *AntiRaidStatus) Metadata() dg.ApplicationCommand {
	return dg.ApplicationCommand{
		Name:        "antiraid",
		Description: "Show the raid protection configuration",
	}
}

func (a *AntiRaidStatus) Handle(ctx context.Context, dep handlers.Dependencies) error {
	if err := dep.Responder.Defer(dep.Interaction, true); err != nil {
		return err
	}

	if !utils.HasPermission(dep.Interaction.Member, dg.PermissionManageServer) {
		return dep.Responder.Fail(dep.Interaction, utils.Failure{
			Type:    utils.ErrNotAllowed,
			Message: "You need the Manage Server permission to view raid protection settings.",
		})
	}

	conf := dep.AntiRaid.Config()

	enabled := "Disabled"
	color := 0xFF0000
	if conf.Enabled {
		enabled = "Enabled"
		color = 0x00FF00
	}

	response := "Flag for review"
	if conf.AutoLockdown {
		response = fmt.Sprintf("Automatic lockdown for %s", conf.LockdownDuration)
	}
	if conf.KickSuspicious {
		response += ", kick flagged accounts"
	}

	embed := dg.MessageEmbed{
		Title: "Raid Protection Configuration",
		Color: color,
		Fields: []*dg.MessageEmbedField{
			{Name: "Status", Value: enabled, Inline: true},
			{Name: "Raid Threshold", Value: fmt.Sprintf("%d joins / %s", conf.JoinThreshold, conf.JoinWindow), Inline: true},
			{Name: "Min Account Age", Value: conf.MinAccountAge.String(), Inline: true},
			{Name: "Suspicious Name Patterns", Value: strings.Join(conf.SuspiciousNames, ", ")},
			{Name: "Raid Response", Value: response},
			{Name: "Owner Alerts", Value: fmt.Sprintf("%t", conf.AlertOwner), Inline: true},
			{Name: "Response Cooldown", Value: conf.ResponseCooldown.String(), Inline: true},
		},
	}

	return dep.Responder.Send(dep.Interaction, rp.MessageOptions{Embeds: []*dg.MessageEmbed{&embed}, Ephemeral: true})
}
