package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/graxinc/errutil"
)

// AutoMod configures spam detection and the progressive punishment ladder.
type AutoMod struct {
	Enabled            bool          `env:"ENABLED" envDefault:"true"`
	SpamThreshold      int           `env:"SPAM_THRESHOLD" envDefault:"5"`
	SpamWindow         time.Duration `env:"SPAM_WINDOW" envDefault:"10s"`
	DuplicateThreshold int           `env:"DUPLICATE_THRESHOLD" envDefault:"3"`
	TimeoutDuration    time.Duration `env:"TIMEOUT_DURATION" envDefault:"5m"`
	WarningsForKick    int           `env:"WARNINGS_FOR_KICK" envDefault:"3"`
	WarningsForBan     int           `env:"WARNINGS_FOR_BAN" envDefault:"5"`
	ExemptRoles        []string      `env:"EXEMPT_ROLES" envDefault:"Admin,Moderator"`
	LogActions         bool          `env:"LOG_ACTIONS" envDefault:"true"`
}

// AntiRaid configures join-rate raid detection and the lockdown response.
type AntiRaid struct {
	Enabled          bool          `env:"ENABLED" envDefault:"true"`
	JoinThreshold    int           `env:"JOIN_THRESHOLD" envDefault:"10"`
	JoinWindow       time.Duration `env:"JOIN_WINDOW" envDefault:"60s"`
	MinAccountAge    time.Duration `env:"MIN_ACCOUNT_AGE" envDefault:"168h"`
	SuspiciousNames  []string      `env:"SUSPICIOUS_NAMES" envDefault:"raid,nuke,destroy,spam"`
	AutoLockdown     bool          `env:"AUTO_LOCKDOWN" envDefault:"true"`
	LockdownDuration time.Duration `env:"LOCKDOWN_DURATION" envDefault:"30m"`
	KickSuspicious   bool          `env:"KICK_SUSPICIOUS" envDefault:"false"`
	AlertOwner       bool          `env:"ALERT_OWNER" envDefault:"true"`
	ResponseCooldown time.Duration `env:"RESPONSE_COOLDOWN" envDefault:"60s"`
}

// Setup names the roles and channels the setup wizard provisions.
type Setup struct {
	MuteRoleName   string `env:"MUTE_ROLE_NAME" envDefault:"Muted"`
	ModRoleName    string `env:"MOD_ROLE_NAME" envDefault:"Moderator"`
	LogChannelName string `env:"LOG_CHANNEL_NAME" envDefault:"bot-logs"`
}

type Conf struct {
	Debug       bool   `env:"DEBUG"`
	Token       string `env:"BOT_TOKEN"`
	Intents     int    `env:"BOT_INTENTS" envDefault:"33283"`
	DatabaseURL string `env:"DATABASE_URL"`
	CacheURL    string `env:"REDIS_URL"`
	ShardID     int    `env:"SHARD_ID" envDefault:"0"`
	ShardCount  int    `env:"SHARD_COUNT" envDefault:"1"`

	AutoMod  AutoMod  `envPrefix:"AUTOMOD_"`
	AntiRaid AntiRaid `envPrefix:"ANTIRAID_"`
	Setup    Setup    `envPrefix:"SETUP_"`
}

// Load parses configuration from the environment and validates it once, so
// the policies can treat their thresholds as trusted values.
func Load() (Conf, error) {
	var conf Conf
	if err := env.Parse(&conf); err != nil {
		return conf, errutil.With(err)
	}

	if err := conf.Validate(); err != nil {
		return conf, errutil.With(err)
	}

	return conf, nil
}

func (c Conf) Validate() error {
	if c.AutoMod.SpamThreshold < 1 {
		return fmt.Errorf("spam threshold must be positive, got %d", c.AutoMod.SpamThreshold)
	}
	if c.AutoMod.DuplicateThreshold < 1 {
		return fmt.Errorf("duplicate threshold must be positive, got %d", c.AutoMod.DuplicateThreshold)
	}
	if c.AutoMod.WarningsForBan <= c.AutoMod.WarningsForKick {
		return fmt.Errorf("ban threshold (%d) must exceed kick threshold (%d)",
			c.AutoMod.WarningsForBan, c.AutoMod.WarningsForKick)
	}
	if c.AutoMod.SpamWindow <= 0 {
		return fmt.Errorf("spam window must be positive, got %s", c.AutoMod.SpamWindow)
	}
	if c.AntiRaid.JoinThreshold < 1 {
		return fmt.Errorf("join threshold must be positive, got %d", c.AntiRaid.JoinThreshold)
	}
	if c.AntiRaid.JoinWindow <= 0 {
		return fmt.Errorf("join window must be positive, got %s", c.AntiRaid.JoinWindow)
	}
	if c.AntiRaid.ResponseCooldown <= 0 {
		return fmt.Errorf("response cooldown must be positive, got %s", c.AntiRaid.ResponseCooldown)
	}

	return nil
}
