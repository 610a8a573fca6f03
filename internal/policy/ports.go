package policy

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/glotchimo/warden/internal/models"
)

// ActionResult is the explicit outcome of one platform action. No error ever
// crosses the port boundary as a panic or untyped failure.
type ActionResult struct {
	OK     bool
	Reason models.FailureReason
	Detail string
}

func OK() ActionResult {
	return ActionResult{OK: true}
}

// ActionPort is the single surface through which the policies touch the
// platform. The gateway layer implements it over the session; tests implement
// it in-memory.
type ActionPort interface {
	DeleteMessage(ctx context.Context, channelID, messageID string) ActionResult
	TimeoutUser(ctx context.Context, guildID, userID string, until time.Time, reason string) ActionResult
	KickUser(ctx context.Context, guildID, userID, reason string) ActionResult
	BanUser(ctx context.Context, guildID, userID, reason string, purgeDays int) ActionResult
	SetVerificationLevel(ctx context.Context, guildID string, level discordgo.VerificationLevel) ActionResult
	SendLog(ctx context.Context, guildID string, incident *models.Incident) ActionResult
	DMOwner(ctx context.Context, guildID string, incident *models.Incident) ActionResult
}

// WarningLedger is the durable warning store the moderation policy drives.
type WarningLedger interface {
	AddWarning(ctx context.Context, guildID, userID string) int
	Count(ctx context.Context, guildID, userID string) int
	RecentCount(ctx context.Context, guildID, userID string, window time.Duration) int
	Clear(ctx context.Context, guildID, userID string) bool
}
