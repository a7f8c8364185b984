package registry

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/jasonzli-DEV/fortniteLobbyBot/gameclient"
	apperrors "github.com/jasonzli-DEV/fortniteLobbyBot/internal/errors"
	"github.com/jasonzli-DEV/fortniteLobbyBot/sessions"
)

// State is the connection state of an instance. It is owned entirely by the
// wrapper: only connect/ready/close transitions set it, never inspection of
// the wrapped client's internals.
type State string

const (
	StateConnecting   State = "connecting"
	StateReady        State = "ready"
	StateDisconnected State = "disconnected"
)

// stopTimeout bounds the leave/close/await sequence during shutdown.
const stopTimeout = 10 * time.Second

// Instance wraps one live game-protocol connection: it owns the connection
// goroutine, auto-accepts inbound social events, and refreshes the session
// activity timestamp on every meaningful interaction.
type Instance struct {
	AccountID    string
	SessionID    string
	DiscordID    string
	EpicUsername string
	StartedAt    time.Time

	client      gameclient.Client
	sessionRepo sessions.Repo

	cancel context.CancelFunc
	done   chan struct{}

	mu           sync.Mutex
	state        State
	lastActivity time.Time
	loadout      sessions.Loadout
	connectErr   error
}

func newInstance(accountID, sessionID, discordID, epicUsername string, client gameclient.Client, sessionRepo sessions.Repo) *Instance {
	return &Instance{
		AccountID:    accountID,
		SessionID:    sessionID,
		DiscordID:    discordID,
		EpicUsername: epicUsername,
		StartedAt:    time.Now().UTC(),
		client:       client,
		sessionRepo:  sessionRepo,
		done:         make(chan struct{}),
		state:        StateConnecting,
		lastActivity: time.Now().UTC(),
	}
}

// start launches the connection loop and the event drain.
func (inst *Instance) start() {
	ctx, cancel := context.WithCancel(context.Background())
	inst.cancel = cancel

	go inst.run(ctx)
	go inst.drainEvents(ctx)
}

func (inst *Instance) run(ctx context.Context) {
	defer close(inst.done)

	err := inst.client.Connect(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Str("epic_username", inst.EpicUsername).Msg("connection loop ended with error")
		inst.mu.Lock()
		inst.connectErr = err
		inst.mu.Unlock()
	}

	inst.mu.Lock()
	inst.state = StateDisconnected
	inst.mu.Unlock()
}

// drainEvents maps each inbound event type to its handler. Invitations and
// inbound friend requests are accepted unconditionally; every accepted event
// and every membership change counts as activity.
func (inst *Instance) drainEvents(ctx context.Context) {
	ready := inst.client.Ready()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ready:
			ready = nil // fires once
			inst.mu.Lock()
			if inst.state == StateConnecting {
				inst.state = StateReady
			}
			inst.mu.Unlock()
			log.Info().Str("epic_username", inst.EpicUsername).Msg("session ready")
			inst.updateActivity(ctx)
		case event, ok := <-inst.client.Events():
			if !ok {
				return
			}
			inst.handleEvent(ctx, event)
		}
	}
}

func (inst *Instance) handleEvent(ctx context.Context, event gameclient.Event) {
	switch event.Type {
	case gameclient.EventPartyInvite:
		if err := inst.client.AcceptInvite(ctx, event.SourceID); err != nil {
			log.Warn().Err(err).Str("epic_username", inst.EpicUsername).Msg("accept party invite")
			return
		}
		log.Info().Str("epic_username", inst.EpicUsername).Msg("accepted party invite")
	case gameclient.EventFriendRequest:
		if !event.Inbound {
			return
		}
		if err := inst.client.AcceptFriendRequest(ctx, event.SourceID); err != nil {
			log.Warn().Err(err).Str("epic_username", inst.EpicUsername).Msg("accept friend request")
			return
		}
		log.Info().Str("epic_username", inst.EpicUsername).Msg("accepted friend request")
	case gameclient.EventMemberJoin, gameclient.EventMemberLeave:
		// Membership churn is activity but needs no action.
	default:
		return
	}
	inst.updateActivity(ctx)
}

// waitReady blocks up to grace for the handshake. Three outcomes: ready,
// still connecting (soft success), or an explicit connection failure.
func (inst *Instance) waitReady(ctx context.Context, grace time.Duration) (bool, error) {
	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-inst.client.Ready():
		// Mark ready here rather than waiting for the event drain to be
		// scheduled, so a successful Start returns an instance that already
		// accepts mutators.
		inst.mu.Lock()
		if inst.state == StateConnecting {
			inst.state = StateReady
		}
		inst.mu.Unlock()
		return true, nil
	case <-inst.done:
		inst.mu.Lock()
		err := inst.connectErr
		inst.mu.Unlock()
		if err == nil {
			err = errors.New("connection closed before ready")
		}
		return false, apperrors.Wrapf(apperrors.ErrConnection, "[Instance.waitReady] %s", err.Error())
	case <-timer.C:
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// abandon tears down an instance that never registered: cancels both
// goroutines and awaits the connection loop so a failed start leaves
// nothing behind.
func (inst *Instance) abandon() {
	if inst.cancel != nil {
		inst.cancel()
	}
	<-inst.done
	inst.mu.Lock()
	inst.state = StateDisconnected
	inst.mu.Unlock()
}

// Running reports whether the connection goroutine is still alive.
func (inst *Instance) Running() bool {
	select {
	case <-inst.done:
		return false
	default:
		return true
	}
}

// Ready reports whether the handshake has completed. A session can be
// running but not yet ready.
func (inst *Instance) Ready() bool {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.state == StateReady
}

// State returns the wrapper-owned connection state.
func (inst *Instance) State() State {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.state
}

// LastActivity returns the last time this instance saw a meaningful
// interaction.
func (inst *Instance) LastActivity() time.Time {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.lastActivity
}

// Loadout returns the current cosmetic snapshot.
func (inst *Instance) Loadout() sessions.Loadout {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.loadout
}

func (inst *Instance) updateActivity(ctx context.Context) {
	inst.mu.Lock()
	inst.lastActivity = time.Now().UTC()
	inst.mu.Unlock()

	if err := inst.sessionRepo.UpdateActivity(ctx, inst.SessionID); err != nil {
		log.Warn().Err(err).Str("session_id", inst.SessionID).Msg("persist activity")
	}
}

// SetOutfit changes the outfit. All mutators share the same contract:
// no-op failure when the session is not ready, activity refresh on success.
func (inst *Instance) SetOutfit(ctx context.Context, assetID string) error {
	return inst.mutate(ctx, "outfit", func() error { return inst.client.SetOutfit(ctx, assetID) }, func(l *sessions.Loadout) {
		l.OutfitID = assetID
	})
}

func (inst *Instance) SetBackpack(ctx context.Context, assetID string) error {
	return inst.mutate(ctx, "backpack", func() error { return inst.client.SetBackpack(ctx, assetID) }, func(l *sessions.Loadout) {
		l.BackpackID = assetID
	})
}

func (inst *Instance) SetPickaxe(ctx context.Context, assetID string) error {
	return inst.mutate(ctx, "pickaxe", func() error { return inst.client.SetPickaxe(ctx, assetID) }, func(l *sessions.Loadout) {
		l.PickaxeID = assetID
	})
}

func (inst *Instance) PlayEmote(ctx context.Context, assetID string) error {
	return inst.mutate(ctx, "emote", func() error { return inst.client.PlayEmote(ctx, assetID) }, func(l *sessions.Loadout) {
		l.EmoteID = assetID
	})
}

func (inst *Instance) SetLevel(ctx context.Context, level int) error {
	return inst.mutate(ctx, "level", func() error { return inst.client.SetBannerLevel(ctx, level) }, func(l *sessions.Loadout) {
		l.Level = level
	})
}

func (inst *Instance) SetCrownWins(ctx context.Context, count int) error {
	return inst.mutate(ctx, "crown_wins", func() error { return inst.client.SetCrownWins(ctx, count) }, func(l *sessions.Loadout) {
		l.CrownWins = count
	})
}

// ApplyLoadout applies a full snapshot field by field. Fields are
// independent capabilities on the client, so every assigned field is
// attempted even after one fails; any failure fails the batch.
func (inst *Instance) ApplyLoadout(ctx context.Context, loadout sessions.Loadout) error {
	var failed []string

	if loadout.OutfitID != "" {
		if err := inst.SetOutfit(ctx, loadout.OutfitID); err != nil {
			failed = append(failed, "outfit")
		}
	}
	if loadout.BackpackID != "" {
		if err := inst.SetBackpack(ctx, loadout.BackpackID); err != nil {
			failed = append(failed, "backpack")
		}
	}
	if loadout.PickaxeID != "" {
		if err := inst.SetPickaxe(ctx, loadout.PickaxeID); err != nil {
			failed = append(failed, "pickaxe")
		}
	}
	if loadout.EmoteID != "" {
		if err := inst.PlayEmote(ctx, loadout.EmoteID); err != nil {
			failed = append(failed, "emote")
		}
	}
	if loadout.Level != 0 {
		if err := inst.SetLevel(ctx, loadout.Level); err != nil {
			failed = append(failed, "level")
		}
	}
	if loadout.CrownWins != 0 {
		if err := inst.SetCrownWins(ctx, loadout.CrownWins); err != nil {
			failed = append(failed, "crown_wins")
		}
	}

	if err := inst.sessionRepo.UpdateLoadout(ctx, inst.SessionID, inst.Loadout()); err != nil {
		log.Warn().Err(err).Str("session_id", inst.SessionID).Msg("persist loadout")
	}

	if len(failed) > 0 {
		return errors.Errorf("[Instance.ApplyLoadout] failed fields: %v", failed)
	}
	return nil
}

// Stop gracefully shuts the instance down: leave any party, close the
// connection, cancel and await the connection loop, then mark the persisted
// session stopped. Shutdown steps are best-effort; the whole sequence is
// bounded by stopTimeout.
func (inst *Instance) Stop(ctx context.Context, reason sessions.Reason) error {
	ctx, cancel := context.WithTimeout(ctx, stopTimeout)
	defer cancel()

	if err := inst.client.LeaveParty(ctx); err != nil && !errors.Is(err, gameclient.ErrNoParty) {
		log.Warn().Err(err).Str("epic_username", inst.EpicUsername).Msg("leave party during stop")
	}

	var stopErr error
	if err := inst.client.Close(ctx); err != nil {
		log.Warn().Err(err).Str("epic_username", inst.EpicUsername).Msg("close client during stop")
		stopErr = err
	}

	if inst.cancel != nil {
		inst.cancel()
	}
	select {
	case <-inst.done:
	case <-ctx.Done():
		log.Warn().Str("epic_username", inst.EpicUsername).Msg("connection loop did not exit before stop deadline")
	}

	inst.mu.Lock()
	inst.state = StateDisconnected
	inst.mu.Unlock()

	if err := inst.sessionRepo.End(ctx, inst.SessionID, reason); err != nil {
		log.Error().Err(err).Str("session_id", inst.SessionID).Msg("mark session stopped")
		if stopErr == nil {
			stopErr = err
		}
	}

	log.Info().Str("epic_username", inst.EpicUsername).Str("reason", string(reason)).Msg("session stopped")
	return stopErr
}

func (inst *Instance) mutate(ctx context.Context, field string, op func() error, update func(*sessions.Loadout)) error {
	if !inst.Ready() {
		return apperrors.Wrapf(apperrors.ErrNotReady, "[Instance.mutate] %s", field)
	}
	if err := op(); err != nil {
		log.Warn().Err(err).Str("epic_username", inst.EpicUsername).Str("field", field).Msg("cosmetic mutation failed")
		return errors.Wrapf(err, "[Instance.mutate] %s", field)
	}

	inst.mu.Lock()
	update(&inst.loadout)
	inst.mu.Unlock()

	inst.updateActivity(ctx)
	return nil
}
