package epicauth

import (
	"sync"
	"time"
)

// DeviceCodeSession is the in-memory state of one pending device-code flow.
// It is never persisted; it dies with the flow (success, expiry, denial, or
// cancellation).
type DeviceCodeSession struct {
	DeviceCode      string
	UserCode        string
	VerificationURI string
	ExpiresIn       time.Duration
	Interval        time.Duration
	StartedAt       time.Time

	mu        sync.Mutex
	cancelled bool
}

// Cancel flags the session so the next poll iteration aborts.
func (s *DeviceCodeSession) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = true
}

// Cancelled reports whether the session was cancelled.
func (s *DeviceCodeSession) Cancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}
