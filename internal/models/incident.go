package models

import "time"

type IncidentKind string

const (
	IncidentSpam             IncidentKind = "spam"
	IncidentSuspiciousJoin   IncidentKind = "suspicious_join"
	IncidentLockdownRejected IncidentKind = "lockdown_rejected"
	IncidentRaidDetected     IncidentKind = "raid_detected"
	IncidentLockdownChanged  IncidentKind = "lockdown_changed"
	IncidentLockdownExpired  IncidentKind = "lockdown_expired"
	IncidentWarnedRejoin     IncidentKind = "warned_rejoin"
	IncidentWarning          IncidentKind = "warning"
	IncidentMassAction       IncidentKind = "mass_action"
)

type FailureReason string

const (
	FailureNone       FailureReason = ""
	FailurePermission FailureReason = "permission_denied"
	FailureNotFound   FailureReason = "not_found"
	FailureTransient  FailureReason = "transient"
)

// ActionOutcome records a single attempted platform action. Policies attempt
// every action independently; a failed action is reported here instead of
// aborting the transition.
type ActionOutcome struct {
	Action string
	OK     bool
	Reason FailureReason
	Detail string
}

// Incident is the structured outcome a policy emits after a transition. It is
// logged and sent to the guild's log channel but never stored durably.
type Incident struct {
	ID       string
	Kind     IncidentKind
	GuildID  string
	UserID   string
	Username string
	Reasons  []string
	Actions  []ActionOutcome
	Warnings int
	At       time.Time
}

func (i *Incident) Record(action string, ok bool, reason FailureReason, detail string) {
	i.Actions = append(i.Actions, ActionOutcome{Action: action, OK: ok, Reason: reason, Detail: detail})
}

// Failed lists the actions that did not complete.
func (i *Incident) Failed() []ActionOutcome {
	var out []ActionOutcome
	for _, a := range i.Actions {
		if !a.OK {
			out = append(out, a)
		}
	}
	return out
}
