// Package monitor runs the idle-timeout sweep: sessions past their idle
// budget are stopped, sessions approaching it get a one-shot warning.
package monitor

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/jasonzli-DEV/fortniteLobbyBot/internal/errors"
	"github.com/jasonzli-DEV/fortniteLobbyBot/internal/metrics"
	"github.com/jasonzli-DEV/fortniteLobbyBot/notify"
	"github.com/jasonzli-DEV/fortniteLobbyBot/registry"
	"github.com/jasonzli-DEV/fortniteLobbyBot/sessions"
)

// Config bounds the sweep.
type Config struct {
	// Interval between sweeps.
	Interval time.Duration
	// WarningThreshold is how close to the deadline a session gets before
	// its owner is warned.
	WarningThreshold time.Duration
}

// Monitor owns the sweep loop. It reads the persisted active set, not the
// registry, so rows orphaned by a crash are still reaped.
type Monitor struct {
	cfg         Config
	registry    *registry.Registry
	sessionRepo sessions.Repo
	notifier    notify.Notifier

	nowTime func() time.Time
}

type Option func(*Monitor)

// WithNowTime overrides the clock (testing only).
func WithNowTime(now func() time.Time) Option {
	return func(m *Monitor) { m.nowTime = now }
}

func New(cfg Config, reg *registry.Registry, sessionRepo sessions.Repo, notifier notify.Notifier, options ...Option) *Monitor {
	m := &Monitor{
		cfg:         cfg,
		registry:    reg,
		sessionRepo: sessionRepo,
		notifier:    notifier,
		nowTime:     time.Now,
	}
	for _, option := range options {
		option(m)
	}
	return m
}

// Run sweeps on the configured interval until the context is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	log.Info().Dur("interval", m.cfg.Interval).Msg("timeout monitor started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("timeout monitor stopped")
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Sweep examines every live session row once. Per-session failures are
// logged and skipped so one bad row never stalls the rest of the sweep.
func (m *Monitor) Sweep(ctx context.Context) {
	started := time.Now()
	defer func() {
		metrics.SweepDuration.Observe(time.Since(started).Seconds())
	}()

	active, err := m.sessionRepo.ListActive(ctx)
	if err != nil {
		log.Error().Err(err).Msg("sweep: list active sessions")
		return
	}

	now := m.nowTime().UTC()
	for _, session := range active {
		remaining := session.Remaining(now)
		switch {
		case remaining <= 0:
			m.timeout(ctx, session)
		case remaining <= m.cfg.WarningThreshold && session.Status == sessions.StatusActive:
			m.warn(ctx, session, remaining)
		}
	}
}

// timeout ends one expired session. The registry is asked first so the live
// connection shuts down cleanly; a row with no live instance is ended
// directly, which covers sessions orphaned by a crash.
func (m *Monitor) timeout(ctx context.Context, session *sessions.Session) {
	log.Info().
		Str("session_id", session.ID).
		Str("account_id", session.AccountID).
		Msg("session idle timeout")

	epicUsername := session.AccountID
	if inst := m.registry.Get(session.AccountID); inst != nil {
		epicUsername = inst.EpicUsername
	}

	if _, err := m.registry.Stop(ctx, session.AccountID, sessions.ReasonTimeout); err != nil {
		if !apperrors.Is(err, apperrors.ErrNotRunning) {
			log.Error().Err(err).Str("session_id", session.ID).Msg("sweep: stop timed-out session")
			return
		}
		// Orphaned row: no live instance, end the record directly.
		if err := m.sessionRepo.End(ctx, session.ID, sessions.ReasonTimeout); err != nil {
			log.Error().Err(err).Str("session_id", session.ID).Msg("sweep: end orphaned session")
			return
		}
	}

	if err := m.sessionRepo.LogActivity(ctx, &sessions.ActivityEntry{
		SessionID: session.ID,
		DiscordID: session.DiscordID,
		Action:    "timeout",
	}); err != nil {
		log.Warn().Err(err).Str("session_id", session.ID).Msg("sweep: log timeout")
	}

	if err := m.notifier.Stopped(ctx, session.DiscordID, epicUsername, sessions.ReasonTimeout); err != nil {
		log.Warn().Err(err).Str("discord_id", session.DiscordID).Msg("sweep: deliver stop notice")
	}
}

// warn flips the session to idle_warning and notifies the owner. The status
// flip is what makes the warning one-shot: a warned session is skipped on
// later sweeps until fresh activity resets it.
func (m *Monitor) warn(ctx context.Context, session *sessions.Session, remaining time.Duration) {
	if err := m.sessionRepo.UpdateStatus(ctx, session.ID, sessions.StatusIdleWarning); err != nil {
		log.Error().Err(err).Str("session_id", session.ID).Msg("sweep: mark idle warning")
		return
	}
	metrics.IdleWarnings.Inc()

	epicUsername := session.AccountID
	if inst := m.registry.Get(session.AccountID); inst != nil {
		epicUsername = inst.EpicUsername
	}
	if err := m.notifier.Warn(ctx, session.DiscordID, epicUsername, remaining); err != nil {
		log.Warn().Err(err).Str("discord_id", session.DiscordID).Msg("sweep: deliver idle warning")
	}
	log.Info().
		Str("session_id", session.ID).
		Dur("remaining", remaining).
		Msg("idle warning issued")
}
