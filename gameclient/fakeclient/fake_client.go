package fakeclient

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/jasonzli-DEV/fortniteLobbyBot/gameclient"
)

var _ gameclient.Client = (*FakeClient)(nil)

// FakeClient is a controllable game-protocol client for tests. Connect
// blocks until Close or context cancellation; MarkReady simulates handshake
// completion and PushEvent injects inbound social events.
type FakeClient struct {
	Auth gameclient.DeviceAuth

	// ConnectErr, when set, makes Connect fail immediately.
	ConnectErr error
	// CloseErr is returned by Close (the client still shuts down).
	CloseErr error
	// MutatorErr, when set, fails every cosmetic mutator.
	MutatorErr error
	// FailOutfit fails only SetOutfit, for partial apply tests.
	FailOutfit bool

	ready  chan struct{}
	events chan gameclient.Event
	done   chan struct{}

	mu        sync.Mutex
	readyOnce sync.Once
	closeOnce sync.Once
	calls     []string
	inParty   bool
}

func New(auth gameclient.DeviceAuth) *FakeClient {
	return &FakeClient{
		Auth:    auth,
		ready:   make(chan struct{}),
		events:  make(chan gameclient.Event, 16),
		done:    make(chan struct{}),
		inParty: true,
	}
}

func (c *FakeClient) Connect(ctx context.Context) error {
	if c.ConnectErr != nil {
		return c.ConnectErr
	}
	c.record("connect")
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return nil
	}
}

func (c *FakeClient) Close(_ context.Context) error {
	c.record("close")
	c.closeOnce.Do(func() { close(c.done) })
	return c.CloseErr
}

func (c *FakeClient) Ready() <-chan struct{}          { return c.ready }
func (c *FakeClient) Events() <-chan gameclient.Event { return c.events }

// MarkReady simulates handshake completion.
func (c *FakeClient) MarkReady() {
	c.readyOnce.Do(func() { close(c.ready) })
}

// PushEvent injects an inbound event.
func (c *FakeClient) PushEvent(event gameclient.Event) {
	c.events <- event
}

func (c *FakeClient) LeaveParty(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, "leave_party")
	if !c.inParty {
		return gameclient.ErrNoParty
	}
	c.inParty = false
	return nil
}

func (c *FakeClient) AcceptInvite(_ context.Context, inviteID string) error {
	c.record("accept_invite:" + inviteID)
	return nil
}

func (c *FakeClient) AcceptFriendRequest(_ context.Context, friendID string) error {
	c.record("accept_friend:" + friendID)
	return nil
}

func (c *FakeClient) SetOutfit(_ context.Context, assetID string) error {
	if c.FailOutfit {
		return errors.New("outfit rejected")
	}
	return c.mutate("set_outfit:" + assetID)
}

func (c *FakeClient) SetBackpack(_ context.Context, assetID string) error {
	return c.mutate("set_backpack:" + assetID)
}

func (c *FakeClient) SetPickaxe(_ context.Context, assetID string) error {
	return c.mutate("set_pickaxe:" + assetID)
}

func (c *FakeClient) PlayEmote(_ context.Context, assetID string) error {
	return c.mutate("play_emote:" + assetID)
}

func (c *FakeClient) SetBannerLevel(_ context.Context, level int) error {
	return c.mutate("set_banner_level")
}

func (c *FakeClient) SetCrownWins(_ context.Context, count int) error {
	return c.mutate("set_crown_wins")
}

// Calls returns the recorded call log.
func (c *FakeClient) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.calls))
	copy(out, c.calls)
	return out
}

func (c *FakeClient) mutate(call string) error {
	if c.MutatorErr != nil {
		return c.MutatorErr
	}
	c.record(call)
	return nil
}

func (c *FakeClient) record(call string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, call)
}
