package registry_test

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/jasonzli-DEV/fortniteLobbyBot/accounts"
	fakeaccountrepo "github.com/jasonzli-DEV/fortniteLobbyBot/accounts/repofakes"
	"github.com/jasonzli-DEV/fortniteLobbyBot/gameclient"
	"github.com/jasonzli-DEV/fortniteLobbyBot/gameclient/fakeclient"
	apperrors "github.com/jasonzli-DEV/fortniteLobbyBot/internal/errors"
	"github.com/jasonzli-DEV/fortniteLobbyBot/registry"
	"github.com/jasonzli-DEV/fortniteLobbyBot/sessions"
	fakesessionrepo "github.com/jasonzli-DEV/fortniteLobbyBot/sessions/repofakes"
	"github.com/jasonzli-DEV/fortniteLobbyBot/vault"
)

type clientFactory struct {
	mu      sync.Mutex
	prepare func(*fakeclient.FakeClient)
	created []*fakeclient.FakeClient
}

func (f *clientFactory) factory(auth gameclient.DeviceAuth) gameclient.Client {
	client := fakeclient.New(auth)
	f.mu.Lock()
	if f.prepare != nil {
		f.prepare(client)
	}
	f.created = append(f.created, client)
	f.mu.Unlock()
	return client
}

func (f *clientFactory) last() *fakeclient.FakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.created) == 0 {
		return nil
	}
	return f.created[len(f.created)-1]
}

type fixture struct {
	registry    *registry.Registry
	sessionRepo *fakesessionrepo.FakeSessionRepo
	accountRepo *fakeaccountrepo.FakeAccountRepo
	vault       *vault.Vault
	clients     *clientFactory
	blob        string
}

func setup(t *testing.T, cfg registry.Config, prepare func(*fakeclient.FakeClient)) *fixture {
	t.Helper()

	credVault, err := vault.New("test-key")
	require.NoError(t, err)
	blob, err := credVault.Encrypt(vault.Credentials{DeviceID: "dev", AccountID: "epic-acct", Secret: "sec"})
	require.NoError(t, err)

	if cfg.MaxSessionsPerUser == 0 {
		cfg.MaxSessionsPerUser = 3
	}
	if cfg.MaxSessionsGlobal == 0 {
		cfg.MaxSessionsGlobal = 50
	}
	if cfg.DefaultTimeoutMinutes == 0 {
		cfg.DefaultTimeoutMinutes = 30
	}
	if cfg.ConnectGrace == 0 {
		cfg.ConnectGrace = 50 * time.Millisecond
	}

	clients := &clientFactory{prepare: prepare}
	sessionRepo := fakesessionrepo.NewFakeSessionRepo()
	accountRepo := fakeaccountrepo.NewFakeAccountRepo()

	return &fixture{
		registry:    registry.New(cfg, credVault, clients.factory, sessionRepo, accountRepo),
		sessionRepo: sessionRepo,
		accountRepo: accountRepo,
		vault:       credVault,
		clients:     clients,
		blob:        blob,
	}
}

func readyClient(c *fakeclient.FakeClient) { c.MarkReady() }

func (fx *fixture) addAccount(t *testing.T, id, discordID string) {
	t.Helper()
	require.NoError(t, fx.accountRepo.Create(context.Background(), &accounts.Account{
		ID:            id,
		DiscordID:     discordID,
		EpicUsername:  "user-" + id,
		EpicAccountID: "epic-" + id,
	}))
}

func TestStartAndStop(t *testing.T) {
	fx := setup(t, registry.Config{}, readyClient)
	fx.addAccount(t, "acct-1", "discord-1")
	ctx := context.Background()

	msg, err := fx.registry.Start(ctx, "acct-1", "discord-1", "PlayerOne", fx.blob)
	require.NoError(t, err)
	require.Contains(t, msg, "started successfully")
	require.Equal(t, 1, fx.registry.Count())

	inst := fx.registry.Get("acct-1")
	require.NotNil(t, inst)
	require.True(t, inst.Running())
	require.True(t, inst.Ready())

	active, err := fx.sessionRepo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, 30, active[0].TimeoutMinutes)

	account, err := fx.accountRepo.GetByID(ctx, "acct-1")
	require.NoError(t, err)
	require.Equal(t, accounts.StatusActive, account.Status)
	require.Equal(t, 1, account.TotalSessions)

	_, err = fx.registry.Stop(ctx, "acct-1", sessions.ReasonManual)
	require.NoError(t, err)
	require.Equal(t, 0, fx.registry.Count())
	require.Nil(t, fx.registry.Get("acct-1"))

	stored, err := fx.sessionRepo.Get(ctx, active[0].ID)
	require.NoError(t, err)
	require.Equal(t, sessions.StatusStopped, stored.Status)
	require.Equal(t, sessions.ReasonManual, stored.TerminationReason)

	calls := fx.clients.last().Calls()
	require.Contains(t, calls, "leave_party")
	require.Contains(t, calls, "close")
}

func TestStartDuplicateRejected(t *testing.T) {
	fx := setup(t, registry.Config{}, readyClient)
	ctx := context.Background()

	_, err := fx.registry.Start(ctx, "acct-1", "discord-1", "PlayerOne", fx.blob)
	require.NoError(t, err)

	_, err = fx.registry.Start(ctx, "acct-1", "discord-1", "PlayerOne", fx.blob)
	require.ErrorIs(t, err, apperrors.ErrDuplicateSession)
	require.Equal(t, 1, fx.registry.Count())

	active, _ := fx.sessionRepo.ListActive(ctx)
	require.Len(t, active, 1, "duplicate rejection must not create a session row")
}

func TestStartPerUserCap(t *testing.T) {
	fx := setup(t, registry.Config{MaxSessionsPerUser: 3}, readyClient)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		_, err := fx.registry.Start(ctx, fmt.Sprintf("acct-%d", i), "discord-1", fmt.Sprintf("Player%d", i), fx.blob)
		require.NoError(t, err)
	}

	_, err := fx.registry.Start(ctx, "acct-4", "discord-1", "Player4", fx.blob)
	require.ErrorIs(t, err, apperrors.ErrUserCapacity)
	require.Equal(t, 3, fx.registry.CountForUser("discord-1"))

	active, _ := fx.sessionRepo.ListActive(ctx)
	require.Len(t, active, 3, "capacity rejection must not create a session row")

	// Another user is unaffected.
	_, err = fx.registry.Start(ctx, "acct-5", "discord-2", "Player5", fx.blob)
	require.NoError(t, err)
}

func TestStartGlobalCap(t *testing.T) {
	fx := setup(t, registry.Config{MaxSessionsGlobal: 2, MaxSessionsPerUser: 5}, readyClient)
	ctx := context.Background()

	_, err := fx.registry.Start(ctx, "acct-1", "discord-1", "P1", fx.blob)
	require.NoError(t, err)
	_, err = fx.registry.Start(ctx, "acct-2", "discord-2", "P2", fx.blob)
	require.NoError(t, err)

	_, err = fx.registry.Start(ctx, "acct-3", "discord-3", "P3", fx.blob)
	require.ErrorIs(t, err, apperrors.ErrGlobalCapacity)
	require.Equal(t, 2, fx.registry.Count())
}

func TestStartDecryptFailure(t *testing.T) {
	fx := setup(t, registry.Config{}, readyClient)
	ctx := context.Background()

	_, err := fx.registry.Start(ctx, "acct-1", "discord-1", "PlayerOne", "not-a-vault-blob")
	require.ErrorIs(t, err, apperrors.ErrVaultCorrupt)
	require.Equal(t, 0, fx.registry.Count())

	active, _ := fx.sessionRepo.ListActive(ctx)
	require.Empty(t, active, "decrypt failure must abort before any session row is created")
}

func TestStartConnectFailureRollsBack(t *testing.T) {
	fx := setup(t, registry.Config{}, func(c *fakeclient.FakeClient) {
		c.ConnectErr = errors.New("login rejected")
	})
	ctx := context.Background()

	_, err := fx.registry.Start(ctx, "acct-1", "discord-1", "PlayerOne", fx.blob)
	require.ErrorIs(t, err, apperrors.ErrConnection)
	require.Equal(t, 0, fx.registry.Count())

	active, _ := fx.sessionRepo.ListActive(ctx)
	require.Empty(t, active, "failed connect must roll the session record back")
}

func TestStartReturnsInstanceAcceptingMutators(t *testing.T) {
	fx := setup(t, registry.Config{}, readyClient)
	ctx := context.Background()

	// Repeated to flush out scheduling luck: the instance must be ready the
	// moment Start reports success, not after the event drain runs.
	for i := 0; i < 25; i++ {
		accountID := fmt.Sprintf("acct-%d", i)
		msg, err := fx.registry.Start(ctx, accountID, "discord-1", "PlayerOne", fx.blob)
		require.NoError(t, err)
		require.Contains(t, msg, "started successfully")

		inst := fx.registry.Get(accountID)
		require.True(t, inst.Ready(), "instance %d not ready right after start", i)
		require.NoError(t, inst.SetOutfit(ctx, "CID_Test"))

		_, err = fx.registry.Stop(ctx, accountID, sessions.ReasonManual)
		require.NoError(t, err)
	}
}

func TestFailedStartLeavesNoGoroutines(t *testing.T) {
	fx := setup(t, registry.Config{}, func(c *fakeclient.FakeClient) {
		c.ConnectErr = errors.New("login rejected")
	})
	ctx := context.Background()
	baseline := runtime.NumGoroutine()

	for i := 0; i < 20; i++ {
		_, err := fx.registry.Start(ctx, fmt.Sprintf("acct-%d", i), "discord-1", "PlayerOne", fx.blob)
		require.ErrorIs(t, err, apperrors.ErrConnection)
	}

	require.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= baseline+2
	}, time.Second, 10*time.Millisecond, "failed starts must tear down both instance goroutines")
}

func TestStartStillConnectingIsSoftSuccess(t *testing.T) {
	// Client never reports ready within the grace period and never errors.
	fx := setup(t, registry.Config{ConnectGrace: 20 * time.Millisecond}, nil)
	ctx := context.Background()

	msg, err := fx.registry.Start(ctx, "acct-1", "discord-1", "PlayerOne", fx.blob)
	require.NoError(t, err)
	require.Contains(t, msg, "starting")
	require.Equal(t, 1, fx.registry.Count())

	inst := fx.registry.Get("acct-1")
	require.True(t, inst.Running())
	require.False(t, inst.Ready())
}

func TestConcurrentStartSameAccount(t *testing.T) {
	fx := setup(t, registry.Config{}, readyClient)
	ctx := context.Background()

	const attempts = 8
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := fx.registry.Start(ctx, "acct-1", "discord-1", "PlayerOne", fx.blob)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	successes := 0
	for err := range results {
		if err == nil {
			successes++
		} else {
			require.ErrorIs(t, err, apperrors.ErrDuplicateSession)
		}
	}
	require.Equal(t, 1, successes, "exactly one concurrent start may win")
	require.Equal(t, 1, fx.registry.Count())
}

func TestStopNotRunning(t *testing.T) {
	fx := setup(t, registry.Config{}, readyClient)

	_, err := fx.registry.Stop(context.Background(), "acct-1", sessions.ReasonManual)
	require.ErrorIs(t, err, apperrors.ErrNotRunning)
}

func TestStopSurvivesFailingClose(t *testing.T) {
	fx := setup(t, registry.Config{}, func(c *fakeclient.FakeClient) {
		c.MarkReady()
		c.CloseErr = errors.New("socket already gone")
	})
	ctx := context.Background()

	_, err := fx.registry.Start(ctx, "acct-1", "discord-1", "PlayerOne", fx.blob)
	require.NoError(t, err)

	active, _ := fx.sessionRepo.ListActive(ctx)
	require.Len(t, active, 1)

	msg, err := fx.registry.Stop(ctx, "acct-1", sessions.ReasonManual)
	require.NoError(t, err, "stop is unconditionally idempotent")
	require.Contains(t, msg, "with errors")
	require.Nil(t, fx.registry.Get("acct-1"), "account must be absent after stop, even when close fails")

	stored, err := fx.sessionRepo.Get(ctx, active[0].ID)
	require.NoError(t, err)
	require.Equal(t, sessions.StatusStopped, stored.Status)
}

func TestStopAllForUser(t *testing.T) {
	fx := setup(t, registry.Config{MaxSessionsPerUser: 5}, readyClient)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		_, err := fx.registry.Start(ctx, fmt.Sprintf("acct-%d", i), "discord-1", fmt.Sprintf("P%d", i), fx.blob)
		require.NoError(t, err)
	}
	_, err := fx.registry.Start(ctx, "acct-9", "discord-2", "P9", fx.blob)
	require.NoError(t, err)

	stopped := fx.registry.StopAllForUser(ctx, "discord-1", sessions.ReasonManual)
	require.Equal(t, 3, stopped)
	require.Equal(t, 1, fx.registry.Count())
	require.NotNil(t, fx.registry.Get("acct-9"))
}

func TestStopAll(t *testing.T) {
	fx := setup(t, registry.Config{MaxSessionsPerUser: 5}, readyClient)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		_, err := fx.registry.Start(ctx, fmt.Sprintf("acct-%d", i), "discord-1", fmt.Sprintf("P%d", i), fx.blob)
		require.NoError(t, err)
	}

	stopped := fx.registry.StopAll(ctx, sessions.ReasonManual)
	require.Equal(t, 4, stopped)
	require.Equal(t, 0, fx.registry.Count())
}

func TestStatus(t *testing.T) {
	fx := setup(t, registry.Config{}, readyClient)
	ctx := context.Background()

	status := fx.registry.Status("acct-1")
	require.False(t, status.Running)

	_, err := fx.registry.Start(ctx, "acct-1", "discord-1", "PlayerOne", fx.blob)
	require.NoError(t, err)

	status = fx.registry.Status("acct-1")
	require.True(t, status.Running)
	require.True(t, status.Ready)
	require.Equal(t, "PlayerOne", status.EpicUsername)
	require.NotEmpty(t, status.SessionID)
}
