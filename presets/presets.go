// Package presets stores named cosmetic snapshots per user, captured from a
// live session and reapplied later.
package presets

import (
	"time"

	"github.com/jasonzli-DEV/fortniteLobbyBot/sessions"
)

// MaxNameLength bounds preset names.
const MaxNameLength = 32

// Preset is one saved loadout. Names are unique per user; saving an
// existing name replaces it.
type Preset struct {
	ID        string           `json:"id,omitempty"`
	DiscordID string           `json:"discord_id"`
	Name      string           `json:"name"`
	Loadout   sessions.Loadout `json:"loadout"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}
