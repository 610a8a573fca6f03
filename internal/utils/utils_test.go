package utils

import (
	"testing"
	"time"

	dg "github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
)

func TestGenerateID(t *testing.T) {
	a := GenerateID()
	b := GenerateID()

	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestFormatTimestamp(t *testing.T) {
	ts := time.Unix(1735689600, 0)

	assert.Equal(t, "<t:1735689600:R>", FormatTimestamp(ts, TimestampRelative))
	assert.Equal(t, "<t:1735689600:t>", FormatTimestamp(ts, TimestampShort))
}

func TestHasPermission(t *testing.T) {
	assert.False(t, HasPermission(nil, dg.PermissionManageMessages))

	member := &dg.Member{Permissions: dg.PermissionManageMessages}
	assert.True(t, HasPermission(member, dg.PermissionManageMessages))
	assert.False(t, HasPermission(member, dg.PermissionBanMembers))

	admin := &dg.Member{Permissions: dg.PermissionAdministrator}
	assert.True(t, HasPermission(admin, dg.PermissionBanMembers))
}
