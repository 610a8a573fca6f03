package models

import "time"

// AuthorCapabilities carries everything the moderation policy needs to decide
// whether a message author is exempt, resolved by the gateway layer so the
// policy never touches the session.
type AuthorCapabilities struct {
	IsBot          bool
	IsOwner        bool
	RoleNames      []string
	Administrator  bool
	ManageMessages bool
	KickMembers    bool
	BanMembers     bool
}

type MessageEvent struct {
	GuildID   string
	ChannelID string
	MessageID string
	UserID    string
	Username  string
	Content   string
	Author    AuthorCapabilities
}

type JoinEvent struct {
	GuildID          string
	UserID           string
	Username         string
	AccountCreatedAt time.Time
	HasAvatar        bool
	IsBot            bool
}
