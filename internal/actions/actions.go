package actions

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	dg "github.com/bwmarrin/discordgo"
	"github.com/glotchimo/warden/internal/models"
	"github.com/glotchimo/warden/internal/policy"
	"github.com/glotchimo/warden/internal/store"
)

// Discord implements the policy action port over a gateway session. Every
// method converts platform errors into an explicit result; nothing panics or
// leaks discordgo errors into the policies.
type Discord struct {
	s           *dg.Session
	l           *slog.Logger
	store       *store.GuildStore
	fallbackLog string
}

func NewDiscord(s *dg.Session, l *slog.Logger, st *store.GuildStore, fallbackLogChannel string) *Discord {
	return &Discord{s: s, l: l, store: st, fallbackLog: fallbackLogChannel}
}

func classify(err error) policy.ActionResult {
	if err == nil {
		return policy.OK()
	}

	res := policy.ActionResult{Reason: models.FailureTransient, Detail: err.Error()}
	if rest, ok := err.(*dg.RESTError); ok && rest.Response != nil {
		switch rest.Response.StatusCode {
		case http.StatusForbidden:
			res.Reason = models.FailurePermission
		case http.StatusNotFound:
			res.Reason = models.FailureNotFound
		}
	}

	return res
}

func (d *Discord) DeleteMessage(ctx context.Context, channelID, messageID string) policy.ActionResult {
	return classify(d.s.ChannelMessageDelete(channelID, messageID))
}

func (d *Discord) TimeoutUser(ctx context.Context, guildID, userID string, until time.Time, reason string) policy.ActionResult {
	return classify(d.s.GuildMemberTimeout(guildID, userID, &until))
}

func (d *Discord) KickUser(ctx context.Context, guildID, userID, reason string) policy.ActionResult {
	return classify(d.s.GuildMemberDeleteWithReason(guildID, userID, reason))
}

func (d *Discord) BanUser(ctx context.Context, guildID, userID, reason string, purgeDays int) policy.ActionResult {
	return classify(d.s.GuildBanCreateWithReason(guildID, userID, reason, purgeDays))
}

func (d *Discord) SetVerificationLevel(ctx context.Context, guildID string, level dg.VerificationLevel) policy.ActionResult {
	_, err := d.s.GuildEdit(guildID, &dg.GuildParams{VerificationLevel: &level})
	return classify(err)
}

// SendLog posts the incident embed to the guild's configured log channel,
// falling back to a channel matched by name when none is configured.
func (d *Discord) SendLog(ctx context.Context, guildID string, incident *models.Incident) policy.ActionResult {
	channelID := d.store.LogChannelID(ctx, guildID)
	if channelID == "" {
		channelID = d.findLogChannel(guildID)
	}
	if channelID == "" {
		return policy.ActionResult{Reason: models.FailureNotFound, Detail: "no log channel configured"}
	}

	_, err := d.s.ChannelMessageSendEmbed(channelID, IncidentEmbed(incident))
	return classify(err)
}

func (d *Discord) DMOwner(ctx context.Context, guildID string, incident *models.Incident) policy.ActionResult {
	guild, err := d.s.State.Guild(guildID)
	if err != nil {
		if guild, err = d.s.Guild(guildID); err != nil {
			return classify(err)
		}
	}

	channel, err := d.s.UserChannelCreate(guild.OwnerID)
	if err != nil {
		return classify(err)
	}

	_, err = d.s.ChannelMessageSendEmbed(channel.ID, IncidentEmbed(incident))
	return classify(err)
}

func (d *Discord) findLogChannel(guildID string) string {
	guild, err := d.s.State.Guild(guildID)
	if err != nil {
		return ""
	}

	for _, channel := range guild.Channels {
		if channel.Type == dg.ChannelTypeGuildText && channel.Name == d.fallbackLog {
			return channel.ID
		}
	}

	return ""
}

var incidentTitles = map[models.IncidentKind]string{
	models.IncidentSpam:             "AutoMod Action",
	models.IncidentSuspiciousJoin:   "Suspicious Account Joined",
	models.IncidentLockdownRejected: "Lockdown: Member Rejected",
	models.IncidentRaidDetected:     "RAID DETECTED",
	models.IncidentLockdownChanged:  "Lockdown Changed",
	models.IncidentLockdownExpired:  "Lockdown Ended",
	models.IncidentWarnedRejoin:     "Previously Warned User Rejoined",
	models.IncidentWarning:          "Warning Issued",
	models.IncidentMassAction:       "Mass Action",
}

var incidentColors = map[models.IncidentKind]int{
	models.IncidentSpam:             0xFFA500,
	models.IncidentSuspiciousJoin:   0xFFEF00,
	models.IncidentLockdownRejected: 0xFFA500,
	models.IncidentRaidDetected:     0xFF0000,
	models.IncidentLockdownChanged:  0xFF0000,
	models.IncidentLockdownExpired:  0x00FF00,
	models.IncidentWarnedRejoin:     0xFFEF00,
	models.IncidentWarning:          0xFFA500,
	models.IncidentMassAction:       0xFF0000,
}

// IncidentEmbed renders a structured incident for the log channel.
func IncidentEmbed(incident *models.Incident) *dg.MessageEmbed {
	embed := &dg.MessageEmbed{
		Title:     incidentTitles[incident.Kind],
		Color:     incidentColors[incident.Kind],
		Timestamp: incident.At.Format(time.RFC3339),
		Footer:    &dg.MessageEmbedFooter{Text: "Incident " + incident.ID},
	}

	if incident.UserID != "" {
		embed.Fields = append(embed.Fields, &dg.MessageEmbedField{
			Name:   "User",
			Value:  fmt.Sprintf("%s (<@%s>)", incident.Username, incident.UserID),
			Inline: true,
		})
	}

	if len(incident.Reasons) > 0 {
		embed.Fields = append(embed.Fields, &dg.MessageEmbedField{
			Name:  "Reasons",
			Value: strings.Join(incident.Reasons, "\n"),
		})
	}

	if incident.Warnings > 0 {
		embed.Fields = append(embed.Fields, &dg.MessageEmbedField{
			Name:   "Total Warnings",
			Value:  fmt.Sprintf("%d", incident.Warnings),
			Inline: true,
		})
	}

	if len(incident.Actions) > 0 {
		var lines []string
		for _, a := range incident.Actions {
			if a.Action == "send_log" {
				continue
			}
			mark := "✅"
			detail := a.Detail
			if !a.OK {
				mark = "⚠️"
				detail = string(a.Reason)
			}
			if detail != "" {
				lines = append(lines, fmt.Sprintf("%s %s: %s", mark, a.Action, detail))
			} else {
				lines = append(lines, fmt.Sprintf("%s %s", mark, a.Action))
			}
		}
		if len(lines) > 0 {
			embed.Fields = append(embed.Fields, &dg.MessageEmbedField{
				Name:  "Actions",
				Value: strings.Join(lines, "\n"),
			})
		}
	}

	return embed
}
