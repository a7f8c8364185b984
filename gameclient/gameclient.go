// Package gameclient defines the capability interface for one external
// game-protocol connection. The wire protocol itself is out of scope; the
// registry and session wrapper consume this contract and tests use the
// fakeclient implementation.
package gameclient

import (
	"context"
	"errors"
)

// ErrNoParty is returned by LeaveParty when the client is not in a party.
// Implementations must map the provider's "party not found" failure (a 404
// from the party service) to this error inside their own adapter; callers
// never inspect provider internals.
var ErrNoParty = errors.New("not in a party")

// DeviceAuth is the decrypted credential triple a client logs in with.
type DeviceAuth struct {
	DeviceID  string
	AccountID string
	Secret    string
}

// EventType identifies an inbound social event.
type EventType string

const (
	EventPartyInvite   EventType = "party_invite"
	EventFriendRequest EventType = "friend_request"
	EventMemberJoin    EventType = "member_join"
	EventMemberLeave   EventType = "member_leave"
)

// Event is one inbound social event. The session wrapper drains the event
// channel and maps each type to its handler; the client never invokes
// callbacks.
type Event struct {
	Type EventType
	// SourceID identifies the invite, friend, or member the event concerns.
	SourceID string
	// Inbound distinguishes received friend requests from ones the account
	// sent. Only inbound requests are auto-accepted.
	Inbound bool
}

// Client is one game-protocol connection.
//
// Connect runs the connection loop and blocks until the client is closed,
// the context is cancelled, or the connection fails fatally. Ready is
// closed once the handshake completes. Events delivers inbound social
// events until the connection ends.
type Client interface {
	Connect(ctx context.Context) error
	Close(ctx context.Context) error
	Ready() <-chan struct{}
	Events() <-chan Event

	LeaveParty(ctx context.Context) error
	AcceptInvite(ctx context.Context, inviteID string) error
	AcceptFriendRequest(ctx context.Context, friendID string) error

	SetOutfit(ctx context.Context, assetID string) error
	SetBackpack(ctx context.Context, assetID string) error
	SetPickaxe(ctx context.Context, assetID string) error
	PlayEmote(ctx context.Context, assetID string) error
	SetBannerLevel(ctx context.Context, level int) error
	SetCrownWins(ctx context.Context, count int) error
}

// Factory builds a Client for the given credentials. The registry holds a
// factory so tests can substitute fakes.
type Factory func(auth DeviceAuth) Client
