package accounts_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jasonzli-DEV/fortniteLobbyBot/accounts"
	fakeaccountrepo "github.com/jasonzli-DEV/fortniteLobbyBot/accounts/repofakes"
	apperrors "github.com/jasonzli-DEV/fortniteLobbyBot/internal/errors"
)

func TestCreateRejectsDuplicateLink(t *testing.T) {
	repo := fakeaccountrepo.NewFakeAccountRepo()
	ctx := context.Background()

	account := &accounts.Account{
		DiscordID:     "discord-1",
		EpicUsername:  "PlayerOne",
		EpicAccountID: "epic-1",
	}
	require.NoError(t, repo.Create(ctx, account))
	require.NotEmpty(t, account.ID)
	require.Equal(t, accounts.StatusActive, account.Status)

	err := repo.Create(ctx, &accounts.Account{
		DiscordID:     "discord-1",
		EpicUsername:  "PlayerOne",
		EpicAccountID: "epic-1",
	})
	require.ErrorIs(t, err, apperrors.ErrAccountExists)

	// The same Epic account linked by a different user is allowed.
	require.NoError(t, repo.Create(ctx, &accounts.Account{
		DiscordID:     "discord-2",
		EpicAccountID: "epic-1",
	}))
}

func TestCountAndDelete(t *testing.T) {
	repo := fakeaccountrepo.NewFakeAccountRepo()
	ctx := context.Background()

	for _, epicID := range []string{"epic-1", "epic-2", "epic-3"} {
		require.NoError(t, repo.Create(ctx, &accounts.Account{
			DiscordID:     "discord-1",
			EpicAccountID: epicID,
		}))
	}
	count, err := repo.CountByDiscordID(ctx, "discord-1")
	require.NoError(t, err)
	require.Equal(t, 3, count)

	list, err := repo.ListByDiscordID(ctx, "discord-1")
	require.NoError(t, err)
	require.Len(t, list, 3)

	require.NoError(t, repo.Delete(ctx, list[0].ID))
	count, err = repo.CountByDiscordID(ctx, "discord-1")
	require.NoError(t, err)
	require.Equal(t, 2, count)

	require.ErrorIs(t, repo.Delete(ctx, list[0].ID), apperrors.ErrAccountNotFound)
}

func TestMarkUsedTracksSessions(t *testing.T) {
	repo := fakeaccountrepo.NewFakeAccountRepo()
	ctx := context.Background()

	account := &accounts.Account{DiscordID: "discord-1", EpicAccountID: "epic-1"}
	require.NoError(t, repo.Create(ctx, account))
	require.Nil(t, account.LastUsed)

	require.NoError(t, repo.MarkUsed(ctx, account.ID))
	require.NoError(t, repo.MarkUsed(ctx, account.ID))

	stored, err := repo.GetByID(ctx, account.ID)
	require.NoError(t, err)
	require.Equal(t, 2, stored.TotalSessions)
	require.NotNil(t, stored.LastUsed)
}
