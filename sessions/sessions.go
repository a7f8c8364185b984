package sessions

import "time"

// Status of a session. Transitions only move forward: active → idle_warning →
// active|stopped, or active → stopped directly. The only reversal is the
// warning-to-active reset on fresh activity.
type Status string

const (
	StatusActive      Status = "active"
	StatusIdleWarning Status = "idle_warning"
	StatusStopped     Status = "stopped"
)

// Reason records why a session terminated.
type Reason string

const (
	ReasonTimeout        Reason = "timeout"
	ReasonManual         Reason = "manual"
	ReasonError          Reason = "error"
	ReasonCrash          Reason = "crash"
	ReasonAccountRemoved Reason = "account_removed"
)

// Loadout is the cosmetic/state snapshot applied to a running session.
type Loadout struct {
	Outfit     string `json:"outfit,omitempty"`
	OutfitID   string `json:"outfit_id,omitempty"`
	Backpack   string `json:"backpack,omitempty"`
	BackpackID string `json:"backpack_id,omitempty"`
	Pickaxe    string `json:"pickaxe,omitempty"`
	PickaxeID  string `json:"pickaxe_id,omitempty"`
	Emote      string `json:"emote,omitempty"`
	EmoteID    string `json:"emote_id,omitempty"`
	Level      int    `json:"level,omitempty"`
	CrownWins  int    `json:"crown_wins,omitempty"`
}

// Session is one bounded-lifetime run of an automated connection for an
// account. Terminal once stopped.
type Session struct {
	ID                string     `json:"id,omitempty"`
	AccountID         string     `json:"account_id"`
	DiscordID         string     `json:"discord_id"`
	StartedAt         time.Time  `json:"started_at"`
	EndedAt           *time.Time `json:"ended_at,omitempty"`
	LastActivity      time.Time  `json:"last_activity"`
	Status            Status     `json:"status"`
	TimeoutMinutes    int        `json:"timeout_minutes"`
	ExtensionsUsed    int        `json:"extensions_used"`
	Loadout           Loadout    `json:"loadout"`
	TerminationReason Reason     `json:"termination_reason,omitempty"`
}

// Live reports whether the session is non-terminal.
func (s *Session) Live() bool {
	return s.Status == StatusActive || s.Status == StatusIdleWarning
}

// Remaining returns how much of the idle budget is left at now.
func (s *Session) Remaining(now time.Time) time.Duration {
	deadline := s.LastActivity.Add(time.Duration(s.TimeoutMinutes) * time.Minute)
	return deadline.Sub(now)
}

// ActivityEntry is an append-only audit record of a user-visible action.
type ActivityEntry struct {
	ID        string            `json:"id,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	DiscordID string            `json:"discord_id"`
	Action    string            `json:"action"`
	Details   map[string]string `json:"details,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}
