package policy

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/glotchimo/warden/internal/config"
	"github.com/glotchimo/warden/internal/models"
	"github.com/glotchimo/warden/internal/tracker"
	"github.com/rs/xid"
)

// AutoMod is the progressive punishment engine. A user's state is derived
// from their warning count at evaluation time, never stored: below the kick
// threshold spam earns a timeout, at or above it a kick (warnings preserved,
// so a rejoin resumes one step from ban), and at the ban threshold a ban that
// resets the ledger.
type AutoMod struct {
	conf     config.AutoMod
	l        *slog.Logger
	tracker  *tracker.SpamTracker
	warnings WarningLedger
	port     ActionPort
	guard    *Guard
	now      func() time.Time
}

func NewAutoMod(conf config.AutoMod, l *slog.Logger, t *tracker.SpamTracker, w WarningLedger, port ActionPort, now func() time.Time) *AutoMod {
	if now == nil {
		now = time.Now
	}
	return &AutoMod{
		conf:     conf,
		l:        l,
		tracker:  t,
		warnings: w,
		port:     port,
		guard:    NewGuard(),
		now:      now,
	}
}

// Exempt reports whether the author is excluded from automated moderation:
// bots, the guild owner, holders of an exempt role, and anyone who can
// already moderate.
func (m *AutoMod) Exempt(author models.AuthorCapabilities) bool {
	if author.IsBot || author.IsOwner {
		return true
	}

	for _, name := range author.RoleNames {
		if slices.Contains(m.conf.ExemptRoles, name) {
			return true
		}
	}

	return author.Administrator || author.ManageMessages || author.KickMembers || author.BanMembers
}

// HandleMessage records the message and, when a spam threshold trips, runs
// one punishment transition. Returns the incident emitted, or nil when no
// action was taken.
func (m *AutoMod) HandleMessage(ctx context.Context, ev models.MessageEvent) *models.Incident {
	if !m.conf.Enabled {
		return nil
	}

	if m.Exempt(ev.Author) {
		return nil
	}

	count, duplicates := m.tracker.RecordMessage(ev.GuildID, ev.UserID, ev.Content, m.conf.SpamWindow)

	var reason string
	switch {
	case count >= m.conf.SpamThreshold:
		reason = fmt.Sprintf("message spam (%d messages in %s)", count, m.conf.SpamWindow)
	case duplicates >= m.conf.DuplicateThreshold:
		reason = fmt.Sprintf("duplicate message spam (%d identical messages)", duplicates)
	default:
		return nil
	}

	return m.punish(ctx, ev, reason)
}

func (m *AutoMod) punish(ctx context.Context, ev models.MessageEvent, reason string) *models.Incident {
	key := ev.GuildID + ":" + ev.UserID
	if !m.guard.TryAcquire(key) {
		return nil
	}
	defer m.guard.Release(key)

	incident := &models.Incident{
		ID:       xid.New().String(),
		Kind:     models.IncidentSpam,
		GuildID:  ev.GuildID,
		UserID:   ev.UserID,
		Username: ev.Username,
		Reasons:  []string{reason},
		At:       m.now(),
	}

	// Best-effort deletion; failure never aborts the transition.
	res := m.port.DeleteMessage(ctx, ev.ChannelID, ev.MessageID)
	incident.Record("delete_message", res.OK, res.Reason, res.Detail)

	count := m.warnings.AddWarning(ctx, ev.GuildID, ev.UserID)
	incident.Warnings = count

	switch {
	case count >= m.conf.WarningsForBan:
		res := m.port.BanUser(ctx, ev.GuildID, ev.UserID,
			fmt.Sprintf("automod: %s, warning #%d", reason, count), 1)
		incident.Record("ban", res.OK, res.Reason, res.Detail)
		if res.OK {
			// Ban is terminal; the ledger resets so a future account state
			// starts clean.
			m.warnings.Clear(ctx, ev.GuildID, ev.UserID)
		}

	case count >= m.conf.WarningsForKick:
		// Warnings survive a kick: a kicked user who rejoins and offends
		// again lands in the ban branch.
		res := m.port.KickUser(ctx, ev.GuildID, ev.UserID,
			fmt.Sprintf("automod: %s, warning #%d", reason, count))
		incident.Record("kick", res.OK, res.Reason, res.Detail)

	default:
		until := m.now().Add(m.conf.TimeoutDuration)
		res := m.port.TimeoutUser(ctx, ev.GuildID, ev.UserID, until,
			fmt.Sprintf("automod: %s, warning #%d", reason, count))
		incident.Record("timeout", res.OK, res.Reason, res.Detail)
	}

	m.tracker.ResetDuplicates(ev.GuildID, ev.UserID)

	if m.conf.LogActions {
		res := m.port.SendLog(ctx, ev.GuildID, incident)
		incident.Record("send_log", res.OK, res.Reason, res.Detail)
	}

	m.l.Info("automod action taken",
		"incident", incident.ID,
		"guild", ev.GuildID,
		"user", ev.UserID,
		"reason", reason,
		"warnings", count,
		"failed_actions", len(incident.Failed()),
	)

	return incident
}

// Config exposes the loaded thresholds for the status command surface.
func (m *AutoMod) Config() config.AutoMod {
	return m.conf
}

// HandleJoin surfaces an advisory when a previously warned user rejoins at or
// above the kick threshold. No automatic action is taken; the preserved count
// means their next offense escalates naturally.
func (m *AutoMod) HandleJoin(ctx context.Context, ev models.JoinEvent) *models.Incident {
	if !m.conf.Enabled || ev.IsBot {
		return nil
	}

	count := m.warnings.Count(ctx, ev.GuildID, ev.UserID)
	if count < m.conf.WarningsForKick {
		return nil
	}

	incident := &models.Incident{
		ID:       xid.New().String(),
		Kind:     models.IncidentWarnedRejoin,
		GuildID:  ev.GuildID,
		UserID:   ev.UserID,
		Username: ev.Username,
		Reasons:  []string{fmt.Sprintf("rejoined with %d prior warnings", count)},
		Warnings: count,
		At:       m.now(),
	}

	if m.conf.LogActions {
		res := m.port.SendLog(ctx, ev.GuildID, incident)
		incident.Record("send_log", res.OK, res.Reason, res.Detail)
	}

	return incident
}
