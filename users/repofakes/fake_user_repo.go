package fakeuserrepo

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	apperrors "github.com/jasonzli-DEV/fortniteLobbyBot/internal/errors"
	"github.com/jasonzli-DEV/fortniteLobbyBot/users"
)

var _ users.Repo = (*FakeUserRepo)(nil)

type FakeUserRepo struct {
	users map[string]*users.User // keyed by discord ID
	lock  sync.RWMutex
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{users: make(map[string]*users.User)}
}

func (ur *FakeUserRepo) Upsert(_ context.Context, user *users.User) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if user.DiscordID == "" {
		return errors.New("discord ID is required")
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	copied := *user
	ur.users[user.DiscordID] = &copied
	return nil
}

func (ur *FakeUserRepo) GetByDiscordID(_ context.Context, discordID string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	user, ok := ur.users[discordID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (ur *FakeUserRepo) TouchActivity(_ context.Context, discordID, channelID string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	user, ok := ur.users[discordID]
	if !ok {
		return apperrors.ErrNotFound
	}
	user.LastActive = time.Now().UTC()
	if channelID != "" {
		user.LastActiveChannelID = channelID
	}
	return nil
}

func (ur *FakeUserRepo) IncrementSessions(_ context.Context, discordID string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	user, ok := ur.users[discordID]
	if !ok {
		return apperrors.ErrNotFound
	}
	user.TotalSessions++
	return nil
}
