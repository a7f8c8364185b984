package monitor_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	fakeaccountrepo "github.com/jasonzli-DEV/fortniteLobbyBot/accounts/repofakes"
	"github.com/jasonzli-DEV/fortniteLobbyBot/gameclient"
	"github.com/jasonzli-DEV/fortniteLobbyBot/gameclient/fakeclient"
	"github.com/jasonzli-DEV/fortniteLobbyBot/monitor"
	fakenotifier "github.com/jasonzli-DEV/fortniteLobbyBot/notify/notifyfakes"
	"github.com/jasonzli-DEV/fortniteLobbyBot/registry"
	"github.com/jasonzli-DEV/fortniteLobbyBot/sessions"
	fakesessionrepo "github.com/jasonzli-DEV/fortniteLobbyBot/sessions/repofakes"
	"github.com/jasonzli-DEV/fortniteLobbyBot/vault"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	clock       *fakeClock
	monitor     *monitor.Monitor
	registry    *registry.Registry
	sessionRepo *fakesessionrepo.FakeSessionRepo
	notifier    *fakenotifier.FakeNotifier
	blob        string
}

func setup(t *testing.T) *fixture {
	t.Helper()

	clock := newFakeClock()
	sessionRepo := fakesessionrepo.NewFakeSessionRepo()
	sessionRepo.SetNowFunc(clock.Now)

	credVault, err := vault.New("test-key")
	require.NoError(t, err)
	blob, err := credVault.Encrypt(vault.Credentials{DeviceID: "dev", AccountID: "epic", Secret: "sec"})
	require.NoError(t, err)

	factory := func(auth gameclient.DeviceAuth) gameclient.Client {
		client := fakeclient.New(auth)
		client.MarkReady()
		return client
	}
	reg := registry.New(registry.Config{
		MaxSessionsPerUser:    5,
		MaxSessionsGlobal:     50,
		DefaultTimeoutMinutes: 30,
		ConnectGrace:          50 * time.Millisecond,
	}, credVault, factory, sessionRepo, fakeaccountrepo.NewFakeAccountRepo())

	notifier := fakenotifier.NewFakeNotifier()
	mon := monitor.New(monitor.Config{
		Interval:         time.Minute,
		WarningThreshold: 5 * time.Minute,
	}, reg, sessionRepo, notifier, monitor.WithNowTime(clock.Now))

	return &fixture{
		clock:       clock,
		monitor:     mon,
		registry:    reg,
		sessionRepo: sessionRepo,
		notifier:    notifier,
		blob:        blob,
	}
}

func (fx *fixture) startSession(t *testing.T, accountID string) string {
	t.Helper()
	_, err := fx.registry.Start(context.Background(), accountID, "discord-1", "PlayerOne", fx.blob)
	require.NoError(t, err)
	inst := fx.registry.Get(accountID)
	require.NotNil(t, inst)
	return inst.SessionID
}

func TestSweepLeavesFreshSessionsAlone(t *testing.T) {
	fx := setup(t)
	fx.startSession(t, "acct-1")

	fx.clock.Advance(10 * time.Minute)
	fx.monitor.Sweep(context.Background())

	require.Equal(t, 1, fx.registry.Count())
	require.Empty(t, fx.notifier.Notices())
}

func TestSweepStopsTimedOutSession(t *testing.T) {
	fx := setup(t)
	sessionID := fx.startSession(t, "acct-1")
	ctx := context.Background()

	fx.clock.Advance(31 * time.Minute)
	fx.monitor.Sweep(ctx)

	require.Equal(t, 0, fx.registry.Count())

	stored, err := fx.sessionRepo.Get(ctx, sessionID)
	require.NoError(t, err)
	require.Equal(t, sessions.StatusStopped, stored.Status)
	require.Equal(t, sessions.ReasonTimeout, stored.TerminationReason)

	notices := fx.notifier.Notices()
	require.Len(t, notices, 1)
	require.Equal(t, "stopped", notices[0].Kind)
	require.Equal(t, sessions.ReasonTimeout, notices[0].Reason)
	require.Equal(t, "PlayerOne", notices[0].EpicUsername)

	entries := fx.sessionRepo.ActivityEntries()
	require.Len(t, entries, 1)
	require.Equal(t, "timeout", entries[0].Action)
	require.Equal(t, "discord-1", entries[0].DiscordID)
}

func TestWarningIsOneShot(t *testing.T) {
	fx := setup(t)
	sessionID := fx.startSession(t, "acct-1")
	ctx := context.Background()

	// Inside the warning window, repeated sweeps warn exactly once.
	fx.clock.Advance(26 * time.Minute)
	fx.monitor.Sweep(ctx)
	fx.monitor.Sweep(ctx)
	fx.clock.Advance(time.Minute)
	fx.monitor.Sweep(ctx)

	warns := 0
	for _, notice := range fx.notifier.Notices() {
		if notice.Kind == "warn" {
			warns++
		}
	}
	require.Equal(t, 1, warns)

	stored, err := fx.sessionRepo.Get(ctx, sessionID)
	require.NoError(t, err)
	require.Equal(t, sessions.StatusIdleWarning, stored.Status)
}

func TestActivityClearsWarningAndRearmsIt(t *testing.T) {
	fx := setup(t)
	sessionID := fx.startSession(t, "acct-1")
	ctx := context.Background()

	fx.clock.Advance(26 * time.Minute)
	fx.monitor.Sweep(ctx)

	// Fresh activity resets the idle budget and clears the warning state.
	require.NoError(t, fx.sessionRepo.UpdateActivity(ctx, sessionID))
	stored, err := fx.sessionRepo.Get(ctx, sessionID)
	require.NoError(t, err)
	require.Equal(t, sessions.StatusActive, stored.Status)

	fx.monitor.Sweep(ctx)
	require.Equal(t, 1, fx.registry.Count())

	// Going idle again earns a second warning.
	fx.clock.Advance(26 * time.Minute)
	fx.monitor.Sweep(ctx)

	warns := 0
	for _, notice := range fx.notifier.Notices() {
		if notice.Kind == "warn" {
			warns++
		}
	}
	require.Equal(t, 2, warns)
}

func TestWarnedSessionStillTimesOut(t *testing.T) {
	fx := setup(t)
	sessionID := fx.startSession(t, "acct-1")
	ctx := context.Background()

	fx.clock.Advance(26 * time.Minute)
	fx.monitor.Sweep(ctx)
	fx.clock.Advance(5 * time.Minute)
	fx.monitor.Sweep(ctx)

	stored, err := fx.sessionRepo.Get(ctx, sessionID)
	require.NoError(t, err)
	require.Equal(t, sessions.StatusStopped, stored.Status)
	require.Equal(t, sessions.ReasonTimeout, stored.TerminationReason)
}

func TestSweepEndsOrphanedRow(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	// A row with no live instance, as left behind by a crash.
	session := &sessions.Session{
		AccountID:      "acct-orphan",
		DiscordID:      "discord-1",
		Status:         sessions.StatusActive,
		TimeoutMinutes: 30,
	}
	require.NoError(t, fx.sessionRepo.Create(ctx, session))

	fx.clock.Advance(31 * time.Minute)
	fx.monitor.Sweep(ctx)

	stored, err := fx.sessionRepo.Get(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, sessions.StatusStopped, stored.Status)
	require.Equal(t, sessions.ReasonTimeout, stored.TerminationReason)
}

func TestNotifierFailureDoesNotBlockSweep(t *testing.T) {
	fx := setup(t)
	sessionID := fx.startSession(t, "acct-1")
	fx.notifier.Err = context.DeadlineExceeded
	ctx := context.Background()

	fx.clock.Advance(31 * time.Minute)
	fx.monitor.Sweep(ctx)

	stored, err := fx.sessionRepo.Get(ctx, sessionID)
	require.NoError(t, err)
	require.Equal(t, sessions.StatusStopped, stored.Status)
}
