package gameclient

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

var (
	factoryMu      sync.RWMutex
	defaultFactory Factory
)

// RegisterFactory installs the process-wide protocol client factory.
// Protocol implementations call this from an init function, the same way
// database drivers register themselves.
func RegisterFactory(factory Factory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	defaultFactory = factory
}

// DefaultFactory returns the registered factory. Without a registered
// protocol implementation it returns a factory whose clients fail to
// connect, so the rest of the service stays operational.
func DefaultFactory() Factory {
	factoryMu.RLock()
	defer factoryMu.RUnlock()
	if defaultFactory != nil {
		return defaultFactory
	}
	return func(DeviceAuth) Client { return unimplementedClient{} }
}

type unimplementedClient struct{}

func (unimplementedClient) Connect(context.Context) error {
	return errors.New("no game protocol client registered")
}
func (unimplementedClient) Close(context.Context) error                       { return nil }
func (unimplementedClient) Ready() <-chan struct{}                            { return nil }
func (unimplementedClient) Events() <-chan Event                              { return nil }
func (unimplementedClient) LeaveParty(context.Context) error                  { return ErrNoParty }
func (unimplementedClient) AcceptInvite(context.Context, string) error        { return errNoProtocol }
func (unimplementedClient) AcceptFriendRequest(context.Context, string) error { return errNoProtocol }
func (unimplementedClient) SetOutfit(context.Context, string) error           { return errNoProtocol }
func (unimplementedClient) SetBackpack(context.Context, string) error         { return errNoProtocol }
func (unimplementedClient) SetPickaxe(context.Context, string) error          { return errNoProtocol }
func (unimplementedClient) PlayEmote(context.Context, string) error           { return errNoProtocol }
func (unimplementedClient) SetBannerLevel(context.Context, int) error         { return errNoProtocol }
func (unimplementedClient) SetCrownWins(context.Context, int) error           { return errNoProtocol }

var errNoProtocol = errors.New("no game protocol client registered")
