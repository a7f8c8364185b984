// Package notify delivers user-facing session notices: idle warnings before
// a timeout and stop notices after one.
package notify

import (
	"context"
	"time"

	"github.com/jasonzli-DEV/fortniteLobbyBot/sessions"
)

// Notifier is the outbound notice channel. Implementations must be safe for
// concurrent use; the sweeper calls them from its tick loop.
type Notifier interface {
	Warn(ctx context.Context, discordID, epicUsername string, remaining time.Duration) error
	Stopped(ctx context.Context, discordID, epicUsername string, reason sessions.Reason) error
}
