package sessions_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "github.com/jasonzli-DEV/fortniteLobbyBot/internal/errors"
	"github.com/jasonzli-DEV/fortniteLobbyBot/sessions"
	fakesessionrepo "github.com/jasonzli-DEV/fortniteLobbyBot/sessions/repofakes"
)

func TestRemaining(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	session := &sessions.Session{
		LastActivity:   now.Add(-20 * time.Minute),
		TimeoutMinutes: 30,
	}
	require.Equal(t, 10*time.Minute, session.Remaining(now))

	session.LastActivity = now.Add(-45 * time.Minute)
	require.Negative(t, session.Remaining(now))
}

func TestLive(t *testing.T) {
	session := &sessions.Session{Status: sessions.StatusActive}
	require.True(t, session.Live())
	session.Status = sessions.StatusIdleWarning
	require.True(t, session.Live())
	session.Status = sessions.StatusStopped
	require.False(t, session.Live())
}

func TestExtendBoundedByMaxExtensions(t *testing.T) {
	repo := fakesessionrepo.NewFakeSessionRepo()
	ctx := context.Background()

	session := &sessions.Session{AccountID: "acct-1", DiscordID: "discord-1", TimeoutMinutes: 30}
	require.NoError(t, repo.Create(ctx, session))

	extended, err := repo.Extend(ctx, session.ID, 15, 2)
	require.NoError(t, err)
	require.Equal(t, 45, extended.TimeoutMinutes)
	require.Equal(t, 1, extended.ExtensionsUsed)

	extended, err = repo.Extend(ctx, session.ID, 15, 2)
	require.NoError(t, err)
	require.Equal(t, 60, extended.TimeoutMinutes)
	require.Equal(t, 2, extended.ExtensionsUsed)

	_, err = repo.Extend(ctx, session.ID, 15, 2)
	require.ErrorIs(t, err, apperrors.ErrExtensionsUsedUp)
}

func TestExtendRejectsEndedSession(t *testing.T) {
	repo := fakesessionrepo.NewFakeSessionRepo()
	ctx := context.Background()

	session := &sessions.Session{AccountID: "acct-1", DiscordID: "discord-1", TimeoutMinutes: 30}
	require.NoError(t, repo.Create(ctx, session))
	require.NoError(t, repo.End(ctx, session.ID, sessions.ReasonManual))

	_, err := repo.Extend(ctx, session.ID, 15, 2)
	require.ErrorIs(t, err, apperrors.ErrSessionEnded)
}

func TestEndIsTerminal(t *testing.T) {
	repo := fakesessionrepo.NewFakeSessionRepo()
	ctx := context.Background()

	session := &sessions.Session{AccountID: "acct-1", DiscordID: "discord-1", TimeoutMinutes: 30}
	require.NoError(t, repo.Create(ctx, session))

	require.NoError(t, repo.End(ctx, session.ID, sessions.ReasonTimeout))
	// Ending again keeps the first termination reason.
	require.NoError(t, repo.End(ctx, session.ID, sessions.ReasonManual))

	stored, err := repo.Get(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, sessions.ReasonTimeout, stored.TerminationReason)

	require.ErrorIs(t, repo.UpdateActivity(ctx, session.ID), apperrors.ErrSessionEnded)
}
