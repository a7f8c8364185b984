package fakenotifier

import (
	"context"
	"sync"
	"time"

	"github.com/jasonzli-DEV/fortniteLobbyBot/notify"
	"github.com/jasonzli-DEV/fortniteLobbyBot/sessions"
)

var _ notify.Notifier = (*FakeNotifier)(nil)

// Notice is one recorded call.
type Notice struct {
	Kind         string // "warn" or "stopped"
	DiscordID    string
	EpicUsername string
	Remaining    time.Duration
	Reason       sessions.Reason
}

type FakeNotifier struct {
	// Err, when set, fails every delivery.
	Err error

	lock    sync.Mutex
	notices []Notice
}

func NewFakeNotifier() *FakeNotifier {
	return &FakeNotifier{}
}

func (n *FakeNotifier) Warn(_ context.Context, discordID, epicUsername string, remaining time.Duration) error {
	n.lock.Lock()
	defer n.lock.Unlock()
	if n.Err != nil {
		return n.Err
	}
	n.notices = append(n.notices, Notice{Kind: "warn", DiscordID: discordID, EpicUsername: epicUsername, Remaining: remaining})
	return nil
}

func (n *FakeNotifier) Stopped(_ context.Context, discordID, epicUsername string, reason sessions.Reason) error {
	n.lock.Lock()
	defer n.lock.Unlock()
	if n.Err != nil {
		return n.Err
	}
	n.notices = append(n.notices, Notice{Kind: "stopped", DiscordID: discordID, EpicUsername: epicUsername, Reason: reason})
	return nil
}

// Notices returns a snapshot of recorded calls.
func (n *FakeNotifier) Notices() []Notice {
	n.lock.Lock()
	defer n.lock.Unlock()
	out := make([]Notice, len(n.notices))
	copy(out, n.notices)
	return out
}
