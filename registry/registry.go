// Package registry is the single authority over which accounts currently
// have a live session. Capacity and membership checks run against the
// in-memory map under one process-wide mutex; the persisted store mirrors
// the registry for monitoring and restart recovery.
package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jasonzli-DEV/fortniteLobbyBot/accounts"
	"github.com/jasonzli-DEV/fortniteLobbyBot/gameclient"
	apperrors "github.com/jasonzli-DEV/fortniteLobbyBot/internal/errors"
	"github.com/jasonzli-DEV/fortniteLobbyBot/internal/metrics"
	"github.com/jasonzli-DEV/fortniteLobbyBot/sessions"
	"github.com/jasonzli-DEV/fortniteLobbyBot/vault"
)

// Config bounds the registry.
type Config struct {
	MaxSessionsPerUser    int
	MaxSessionsGlobal     int
	DefaultTimeoutMinutes int
	// ConnectGrace is how long Start waits for a new instance to report
	// ready before registering it as "still connecting".
	ConnectGrace time.Duration
}

// Registry owns the live-session map.
type Registry struct {
	cfg         Config
	vault       *vault.Vault
	factory     gameclient.Factory
	sessionRepo sessions.Repo
	accountRepo accounts.Repo

	mu   sync.Mutex
	live map[string]*Instance // account ID -> instance
}

func New(cfg Config, credVault *vault.Vault, factory gameclient.Factory, sessionRepo sessions.Repo, accountRepo accounts.Repo) *Registry {
	return &Registry{
		cfg:         cfg,
		vault:       credVault,
		factory:     factory,
		sessionRepo: sessionRepo,
		accountRepo: accountRepo,
		live:        make(map[string]*Instance),
	}
}

// Status is a point-in-time view of one account's session.
type Status struct {
	Running      bool              `json:"running"`
	Ready        bool              `json:"ready"`
	State        State             `json:"state"`
	EpicUsername string            `json:"epic_username,omitempty"`
	SessionID    string            `json:"session_id,omitempty"`
	StartedAt    time.Time         `json:"started_at,omitempty"`
	LastActivity time.Time         `json:"last_activity,omitempty"`
	Loadout      *sessions.Loadout `json:"loadout,omitempty"`
}

// Start brings up a session for the account. The whole sequence runs under
// the registry mutex so concurrent starts resolve deterministically: the
// second caller waits for the first to fully complete, including rollback.
//
// Capacity and duplicate rejections leave no state behind. A decryption
// failure aborts before any session record exists. An explicit connection
// failure after a record was created rolls the record back to
// stopped("error"). "Still connecting after the grace period" is a soft
// success: the instance is registered, not yet confirmed ready.
func (r *Registry) Start(ctx context.Context, accountID, discordID, epicUsername, encryptedCredentials string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.live[accountID]; exists {
		metrics.SessionStarts.WithLabelValues("duplicate").Inc()
		return "", apperrors.Wrapf(apperrors.ErrDuplicateSession, "[Registry.Start] %s", epicUsername)
	}

	userCount := r.countForUserLocked(discordID)
	if userCount >= r.cfg.MaxSessionsPerUser {
		metrics.SessionStarts.WithLabelValues("user_capacity").Inc()
		return "", apperrors.Wrapf(apperrors.ErrUserCapacity, "[Registry.Start] %d/%d", userCount, r.cfg.MaxSessionsPerUser)
	}
	if len(r.live) >= r.cfg.MaxSessionsGlobal {
		metrics.SessionStarts.WithLabelValues("global_capacity").Inc()
		return "", apperrors.ErrGlobalCapacity
	}

	creds, err := r.vault.Decrypt(encryptedCredentials)
	if err != nil {
		metrics.SessionStarts.WithLabelValues("decrypt_error").Inc()
		return "", apperrors.Wrapf(err, "[Registry.Start] decrypt credentials for %s", epicUsername)
	}

	session := &sessions.Session{
		AccountID:      accountID,
		DiscordID:      discordID,
		Status:         sessions.StatusActive,
		TimeoutMinutes: r.cfg.DefaultTimeoutMinutes,
	}
	if err := r.sessionRepo.Create(ctx, session); err != nil {
		metrics.SessionStarts.WithLabelValues("persist_error").Inc()
		return "", apperrors.Wrapf(apperrors.ErrPersistence, "[Registry.Start] create session: %s", err.Error())
	}

	client := r.factory(gameclient.DeviceAuth{
		DeviceID:  creds.DeviceID,
		AccountID: creds.AccountID,
		Secret:    creds.Secret,
	})
	inst := newInstance(accountID, session.ID, discordID, epicUsername, client, r.sessionRepo)
	inst.start()

	ready, err := inst.waitReady(ctx, r.cfg.ConnectGrace)
	if err != nil {
		// Explicit connection failure: tear the instance down, roll the
		// session record back and register nothing.
		inst.abandon()
		if endErr := r.sessionRepo.End(ctx, session.ID, sessions.ReasonError); endErr != nil {
			log.Error().Err(endErr).Str("session_id", session.ID).Msg("rollback session after failed connect")
		}
		metrics.SessionStarts.WithLabelValues("connect_error").Inc()
		return "", err
	}

	r.live[accountID] = inst
	metrics.LiveSessions.Set(float64(len(r.live)))
	metrics.SessionStarts.WithLabelValues("ok").Inc()

	if err := r.accountRepo.SetStatus(ctx, accountID, accounts.StatusActive); err != nil {
		log.Warn().Err(err).Str("account_id", accountID).Msg("mark account active")
	}
	if err := r.accountRepo.MarkUsed(ctx, accountID); err != nil {
		log.Warn().Err(err).Str("account_id", accountID).Msg("mark account used")
	}

	if ready {
		log.Info().Str("epic_username", epicUsername).Str("session_id", session.ID).Msg("session started")
		return fmt.Sprintf("Bot `%s` started successfully!", epicUsername), nil
	}
	log.Info().Str("epic_username", epicUsername).Str("session_id", session.ID).Msg("session registered, still connecting")
	return fmt.Sprintf("Bot `%s` is starting, connection may take a moment...", epicUsername), nil
}

// Stop shuts down the account's session. Shutdown errors are best-effort:
// whatever happens, the account ends up absent from the live map and the
// persisted session is marked stopped, so Stop is idempotent from the
// registry's perspective.
func (r *Registry) Stop(ctx context.Context, accountID string, reason sessions.Reason) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopLocked(ctx, accountID, reason)
}

func (r *Registry) stopLocked(ctx context.Context, accountID string, reason sessions.Reason) (string, error) {
	inst, exists := r.live[accountID]
	if !exists {
		return "", apperrors.Wrapf(apperrors.ErrNotRunning, "[Registry.Stop] %s", accountID)
	}

	delete(r.live, accountID)
	metrics.LiveSessions.Set(float64(len(r.live)))
	metrics.SessionStops.WithLabelValues(string(reason)).Inc()

	if err := inst.Stop(ctx, reason); err != nil {
		log.Warn().Err(err).Str("epic_username", inst.EpicUsername).Msg("session stop finished with errors")
		return fmt.Sprintf("Bot `%s` stopped (with errors)", inst.EpicUsername), nil
	}
	return fmt.Sprintf("Bot `%s` stopped successfully!", inst.EpicUsername), nil
}

// Get returns the live instance for the account, if any.
func (r *Registry) Get(accountID string) *Instance {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live[accountID]
}

// ForUser returns all live instances owned by the user.
func (r *Registry) ForUser(discordID string) []*Instance {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*Instance
	for _, inst := range r.live {
		if inst.DiscordID == discordID {
			out = append(out, inst)
		}
	}
	return out
}

// StopAllForUser stops every session owned by the user. Returns how many
// were stopped.
func (r *Registry) StopAllForUser(ctx context.Context, discordID string, reason sessions.Reason) int {
	var accountIDs []string
	r.mu.Lock()
	for accountID, inst := range r.live {
		if inst.DiscordID == discordID {
			accountIDs = append(accountIDs, accountID)
		}
	}
	r.mu.Unlock()

	stopped := 0
	for _, accountID := range accountIDs {
		if _, err := r.Stop(ctx, accountID, reason); err == nil {
			stopped++
		}
	}
	return stopped
}

// StopAll stops every live session. Iterates a snapshot of current keys so
// the map is never mutated mid-iteration.
func (r *Registry) StopAll(ctx context.Context, reason sessions.Reason) int {
	r.mu.Lock()
	accountIDs := make([]string, 0, len(r.live))
	for accountID := range r.live {
		accountIDs = append(accountIDs, accountID)
	}
	r.mu.Unlock()

	stopped := 0
	for _, accountID := range accountIDs {
		if _, err := r.Stop(ctx, accountID, reason); err == nil {
			stopped++
		}
	}
	return stopped
}

// Status reports the account's session state; a zero Status with
// Running=false means offline.
func (r *Registry) Status(accountID string) Status {
	inst := r.Get(accountID)
	if inst == nil {
		return Status{State: StateDisconnected}
	}
	loadout := inst.Loadout()
	return Status{
		Running:      inst.Running(),
		Ready:        inst.Ready(),
		State:        inst.State(),
		EpicUsername: inst.EpicUsername,
		SessionID:    inst.SessionID,
		StartedAt:    inst.StartedAt,
		LastActivity: inst.LastActivity(),
		Loadout:      &loadout,
	}
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}

// CountForUser returns the user's live-session count.
func (r *Registry) CountForUser(discordID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.countForUserLocked(discordID)
}

func (r *Registry) countForUserLocked(discordID string) int {
	count := 0
	for _, inst := range r.live {
		if inst.DiscordID == discordID {
			count++
		}
	}
	return count
}
