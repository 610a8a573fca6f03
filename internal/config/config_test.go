package config

import (
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	var conf Conf
	require.NoError(t, env.Parse(&conf))

	assert.True(t, conf.AutoMod.Enabled)
	assert.Equal(t, 5, conf.AutoMod.SpamThreshold)
	assert.Equal(t, 10*time.Second, conf.AutoMod.SpamWindow)
	assert.Equal(t, 3, conf.AutoMod.DuplicateThreshold)
	assert.Equal(t, 5*time.Minute, conf.AutoMod.TimeoutDuration)
	assert.Equal(t, 3, conf.AutoMod.WarningsForKick)
	assert.Equal(t, 5, conf.AutoMod.WarningsForBan)
	assert.Equal(t, []string{"Admin", "Moderator"}, conf.AutoMod.ExemptRoles)
	assert.True(t, conf.AutoMod.LogActions)

	assert.True(t, conf.AntiRaid.Enabled)
	assert.Equal(t, 10, conf.AntiRaid.JoinThreshold)
	assert.Equal(t, 60*time.Second, conf.AntiRaid.JoinWindow)
	assert.Equal(t, 7*24*time.Hour, conf.AntiRaid.MinAccountAge)
	assert.Equal(t, []string{"raid", "nuke", "destroy", "spam"}, conf.AntiRaid.SuspiciousNames)
	assert.True(t, conf.AntiRaid.AutoLockdown)
	assert.Equal(t, 30*time.Minute, conf.AntiRaid.LockdownDuration)
	assert.False(t, conf.AntiRaid.KickSuspicious)
	assert.True(t, conf.AntiRaid.AlertOwner)
	assert.Equal(t, 60*time.Second, conf.AntiRaid.ResponseCooldown)

	assert.Equal(t, "Muted", conf.Setup.MuteRoleName)
	assert.Equal(t, "Moderator", conf.Setup.ModRoleName)
	assert.Equal(t, "bot-logs", conf.Setup.LogChannelName)

	assert.NoError(t, conf.Validate())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("AUTOMOD_SPAM_THRESHOLD", "8")
	t.Setenv("AUTOMOD_EXEMPT_ROLES", "Staff,VIP")
	t.Setenv("ANTIRAID_LOCKDOWN_DURATION", "1h")

	var conf Conf
	require.NoError(t, env.Parse(&conf))

	assert.Equal(t, 8, conf.AutoMod.SpamThreshold)
	assert.Equal(t, []string{"Staff", "VIP"}, conf.AutoMod.ExemptRoles)
	assert.Equal(t, time.Hour, conf.AntiRaid.LockdownDuration)
}

func TestValidate(t *testing.T) {
	var conf Conf
	require.NoError(t, env.Parse(&conf))

	bad := conf
	bad.AutoMod.SpamThreshold = 0
	assert.Error(t, bad.Validate())

	bad = conf
	bad.AutoMod.WarningsForBan = bad.AutoMod.WarningsForKick
	assert.Error(t, bad.Validate())

	bad = conf
	bad.AntiRaid.JoinWindow = 0
	assert.Error(t, bad.Validate())

	bad = conf
	bad.AntiRaid.ResponseCooldown = -time.Second
	assert.Error(t, bad.Validate())
}
