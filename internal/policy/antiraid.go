package policy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/glotchimo/warden/internal/config"
	"github.com/glotchimo/warden/internal/models"
	"github.com/glotchimo/warden/internal/tracker"
	"github.com/rs/xid"
)

// AntiRaid evaluates join events against the raid tracker and drives the
// lockdown response. A debounce marker ensures one response per cooldown
// period per guild even while joins keep arriving.
type AntiRaid struct {
	conf    config.AntiRaid
	l       *slog.Logger
	tracker *tracker.RaidTracker
	port    ActionPort
	guard   *Guard
	now     func() time.Time
}

func NewAntiRaid(conf config.AntiRaid, l *slog.Logger, t *tracker.RaidTracker, port ActionPort, now func() time.Time) *AntiRaid {
	if now == nil {
		now = time.Now
	}
	return &AntiRaid{
		conf:    conf,
		l:       l,
		tracker: t,
		port:    port,
		guard:   NewGuard(),
		now:     now,
	}
}

// Classify returns every red flag that applies to the joining account. An
// account with none is never flagged.
func (r *AntiRaid) Classify(ev models.JoinEvent) []string {
	var reasons []string

	age := r.now().Sub(ev.AccountCreatedAt)
	if age < r.conf.MinAccountAge {
		reasons = append(reasons, fmt.Sprintf("account younger than %s (%s old)",
			r.conf.MinAccountAge, age.Round(time.Hour)))
	}

	if !ev.HasAvatar {
		reasons = append(reasons, "no profile picture")
	}

	name := strings.ToLower(ev.Username)
	for _, pattern := range r.conf.SuspiciousNames {
		if strings.Contains(name, pattern) {
			reasons = append(reasons, fmt.Sprintf("username matches %q", pattern))
			break
		}
	}

	return reasons
}

// HandleJoin runs the per-join evaluation: classify, record, the lockdown
// short-circuit, the suspicious advisory, then the raid threshold.
func (r *AntiRaid) HandleJoin(ctx context.Context, ev models.JoinEvent) *models.Incident {
	if !r.conf.Enabled {
		return nil
	}

	reasons := r.Classify(ev)
	suspicious := len(reasons) > 0

	r.tracker.RecordJoin(ev.GuildID, ev.UserID, suspicious)

	// Lockdown rejects every new join, suspicious or not, before the raid
	// threshold is even considered.
	if r.tracker.IsLockedDown(ev.GuildID) {
		incident := &models.Incident{
			ID:       xid.New().String(),
			Kind:     models.IncidentLockdownRejected,
			GuildID:  ev.GuildID,
			UserID:   ev.UserID,
			Username: ev.Username,
			Reasons:  append([]string{"guild is in lockdown"}, reasons...),
			At:       r.now(),
		}

		res := r.port.KickUser(ctx, ev.GuildID, ev.UserID, "antiraid: guild is in lockdown")
		incident.Record("kick", res.OK, res.Reason, res.Detail)

		res = r.port.SendLog(ctx, ev.GuildID, incident)
		incident.Record("send_log", res.OK, res.Reason, res.Detail)

		return incident
	}

	var advisory *models.Incident
	if suspicious {
		advisory = &models.Incident{
			ID:       xid.New().String(),
			Kind:     models.IncidentSuspiciousJoin,
			GuildID:  ev.GuildID,
			UserID:   ev.UserID,
			Username: ev.Username,
			Reasons:  reasons,
			At:       r.now(),
		}

		res := r.port.SendLog(ctx, ev.GuildID, advisory)
		advisory.Record("send_log", res.OK, res.Reason, res.Detail)
	}

	recent := r.tracker.RecentJoins(ev.GuildID, r.conf.JoinWindow)
	if recent >= r.conf.JoinThreshold {
		if incident := r.respond(ctx, ev.GuildID, recent); incident != nil {
			return incident
		}
	}

	return advisory
}

// respond runs the raid-response transition once per debounce period. The
// marker is released on a timer, not on completion, so automated lockdown
// cannot re-trigger faster than the cooldown even if joins continue.
func (r *AntiRaid) respond(ctx context.Context, guildID string, joinCount int) *models.Incident {
	key := "raid:" + guildID
	if !r.guard.TryAcquire(key) {
		return nil
	}
	defer r.guard.ReleaseAfter(key, r.conf.ResponseCooldown)

	incident := &models.Incident{
		ID:      xid.New().String(),
		Kind:    models.IncidentRaidDetected,
		GuildID: guildID,
		Reasons: []string{fmt.Sprintf("%d joins within %s", joinCount, r.conf.JoinWindow)},
		At:      r.now(),
	}

	if r.conf.AutoLockdown {
		r.tracker.SetLockdown(guildID, true, r.conf.LockdownDuration)
		incident.Record("lockdown", true, models.FailureNone,
			fmt.Sprintf("enabled for %s", r.conf.LockdownDuration))
	}

	res := r.port.SetVerificationLevel(ctx, guildID, discordgo.VerificationLevelVeryHigh)
	incident.Record("raise_verification", res.OK, res.Reason, res.Detail)

	flagged := r.tracker.SuspiciousMembers(guildID)
	if r.conf.KickSuspicious && len(flagged) > 0 {
		kicked := 0
		for _, userID := range flagged {
			res := r.port.KickUser(ctx, guildID, userID, "antiraid: suspicious account during raid")
			if res.OK {
				kicked++
			}
		}
		// The list is cleared on the attempt, not the outcome; failures are
		// visible in the kick tally for manual follow-up.
		r.tracker.ClearSuspicious(guildID)
		incident.Record("kick_suspicious", true, models.FailureNone,
			fmt.Sprintf("kicked %d of %d flagged accounts", kicked, len(flagged)))
	} else {
		incident.Record("flag_suspicious", true, models.FailureNone,
			fmt.Sprintf("%d suspicious accounts flagged for review", len(flagged)))
	}

	res = r.port.SendLog(ctx, guildID, incident)
	incident.Record("send_log", res.OK, res.Reason, res.Detail)

	if r.conf.AlertOwner {
		// A closed-DM failure is expected and swallowed.
		res := r.port.DMOwner(ctx, guildID, incident)
		incident.Record("dm_owner", res.OK, res.Reason, res.Detail)
	}

	r.l.Warn("raid detected",
		"incident", incident.ID,
		"guild", guildID,
		"joins", joinCount,
		"flagged", len(flagged),
	)

	return incident
}

// SetLockdown is the manual override. It updates tracker state immediately so
// the very next join is evaluated against it, and emits a change incident.
func (r *AntiRaid) SetLockdown(ctx context.Context, guildID string, enabled bool, duration time.Duration) *models.Incident {
	r.tracker.SetLockdown(guildID, enabled, duration)

	detail := "disabled"
	if enabled {
		if duration > 0 {
			detail = fmt.Sprintf("enabled for %s", duration)
		} else {
			detail = "enabled indefinitely"
		}
	}

	incident := &models.Incident{
		ID:      xid.New().String(),
		Kind:    models.IncidentLockdownChanged,
		GuildID: guildID,
		Reasons: []string{detail},
		At:      r.now(),
	}
	incident.Record("lockdown", true, models.FailureNone, detail)

	res := r.port.SendLog(ctx, guildID, incident)
	incident.Record("send_log", res.OK, res.Reason, res.Detail)

	return incident
}

// KickSuspicious kicks every currently flagged member and clears the list,
// backing the manual moderator command. The clear happens regardless of how
// many kicks succeeded.
func (r *AntiRaid) KickSuspicious(ctx context.Context, guildID string) (kicked, failed int) {
	for _, userID := range r.tracker.SuspiciousMembers(guildID) {
		res := r.port.KickUser(ctx, guildID, userID, "antiraid: flagged suspicious account")
		if res.OK {
			kicked++
		} else {
			failed++
		}
	}

	r.tracker.ClearSuspicious(guildID)
	return kicked, failed
}

// Status summarizes raid protection for a guild.
type Status struct {
	LockedDown  bool
	Expiry      *time.Time
	RecentJoins int
	Suspicious  int
}

func (r *AntiRaid) Status(guildID string) Status {
	return Status{
		LockedDown:  r.tracker.IsLockedDown(guildID),
		Expiry:      r.tracker.LockdownExpiry(guildID),
		RecentJoins: r.tracker.RecentJoins(guildID, r.conf.JoinWindow),
		Suspicious:  len(r.tracker.SuspiciousMembers(guildID)),
	}
}

// Config exposes the loaded thresholds for the status command surface.
func (r *AntiRaid) Config() config.AntiRaid {
	return r.conf
}
