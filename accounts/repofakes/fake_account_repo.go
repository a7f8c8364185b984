package fakeaccountrepo

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/jasonzli-DEV/fortniteLobbyBot/accounts"
	apperrors "github.com/jasonzli-DEV/fortniteLobbyBot/internal/errors"
)

var _ accounts.Repo = (*FakeAccountRepo)(nil)

type FakeAccountRepo struct {
	byID map[string]*accounts.Account
	lock sync.RWMutex
}

func NewFakeAccountRepo() *FakeAccountRepo {
	return &FakeAccountRepo{byID: make(map[string]*accounts.Account)}
}

func (ar *FakeAccountRepo) Create(_ context.Context, account *accounts.Account) error {
	ar.lock.Lock()
	defer ar.lock.Unlock()

	for _, existing := range ar.byID {
		if existing.EpicAccountID == account.EpicAccountID && existing.DiscordID == account.DiscordID {
			return apperrors.ErrAccountExists
		}
	}
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	if account.AddedAt.IsZero() {
		account.AddedAt = time.Now().UTC()
	}
	if account.Status == "" {
		account.Status = accounts.StatusActive
	}
	copied := *account
	ar.byID[account.ID] = &copied
	return nil
}

func (ar *FakeAccountRepo) GetByID(_ context.Context, id string) (*accounts.Account, error) {
	ar.lock.RLock()
	defer ar.lock.RUnlock()

	account, ok := ar.byID[id]
	if !ok {
		return nil, apperrors.ErrAccountNotFound
	}
	copied := *account
	return &copied, nil
}

func (ar *FakeAccountRepo) GetByEpicAccountID(_ context.Context, epicAccountID string) (*accounts.Account, error) {
	ar.lock.RLock()
	defer ar.lock.RUnlock()

	for _, account := range ar.byID {
		if account.EpicAccountID == epicAccountID {
			copied := *account
			return &copied, nil
		}
	}
	return nil, apperrors.ErrAccountNotFound
}

func (ar *FakeAccountRepo) ListByDiscordID(_ context.Context, discordID string) ([]*accounts.Account, error) {
	ar.lock.RLock()
	defer ar.lock.RUnlock()

	var list []*accounts.Account
	for _, account := range ar.byID {
		if account.DiscordID == discordID {
			copied := *account
			list = append(list, &copied)
		}
	}
	return list, nil
}

func (ar *FakeAccountRepo) CountByDiscordID(ctx context.Context, discordID string) (int, error) {
	list, err := ar.ListByDiscordID(ctx, discordID)
	if err != nil {
		return 0, errors.Wrap(err, "CountByDiscordID")
	}
	return len(list), nil
}

func (ar *FakeAccountRepo) SetStatus(_ context.Context, id string, status accounts.Status) error {
	ar.lock.Lock()
	defer ar.lock.Unlock()

	account, ok := ar.byID[id]
	if !ok {
		return apperrors.ErrAccountNotFound
	}
	account.Status = status
	return nil
}

func (ar *FakeAccountRepo) MarkUsed(_ context.Context, id string) error {
	ar.lock.Lock()
	defer ar.lock.Unlock()

	account, ok := ar.byID[id]
	if !ok {
		return apperrors.ErrAccountNotFound
	}
	now := time.Now().UTC()
	account.LastUsed = &now
	account.TotalSessions++
	return nil
}

func (ar *FakeAccountRepo) Delete(_ context.Context, id string) error {
	ar.lock.Lock()
	defer ar.lock.Unlock()

	if _, ok := ar.byID[id]; !ok {
		return apperrors.ErrAccountNotFound
	}
	delete(ar.byID, id)
	return nil
}
