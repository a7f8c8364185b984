package users

import "time"

// User is the controlling (Discord) identity. It is distinct from the
// third-party accounts the user links; a user owns accounts, accounts own
// sessions.
type User struct {
	ID                  string    `json:"id,omitempty"`
	DiscordID           string    `json:"discord_id"`
	DiscordUsername     string    `json:"discord_username"`
	CreatedAt           time.Time `json:"created_at"`
	LastActive          time.Time `json:"last_active"`
	LastActiveChannelID string    `json:"last_active_channel_id,omitempty"` // Notification target for idle warnings
	TotalSessions       int       `json:"total_sessions"`
}
