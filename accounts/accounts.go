package accounts

import "time"

// Status of a linked account.
type Status string

const (
	StatusActive Status = "active"
	StatusError  Status = "error"
	StatusBanned Status = "banned"
)

// Account is a third-party (Epic) identity linked by a user. The device-auth
// credentials that let the service log in as this account are held only as a
// vault-encrypted blob.
type Account struct {
	ID                   string     `json:"id,omitempty"`
	DiscordID            string     `json:"discord_id"` // Owning user
	EpicUsername         string     `json:"epic_username"`
	EpicDisplayName      string     `json:"epic_display_name"`
	EpicAccountID        string     `json:"epic_account_id"`
	EncryptedCredentials string     `json:"-"` // Vault blob - never serialize
	Status               Status     `json:"status"`
	AddedAt              time.Time  `json:"added_at"`
	LastUsed             *time.Time `json:"last_used,omitempty"`
	TotalSessions        int        `json:"total_sessions"`
}
