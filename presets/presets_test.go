package presets_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/jasonzli-DEV/fortniteLobbyBot/internal/errors"
	"github.com/jasonzli-DEV/fortniteLobbyBot/presets"
	fakepresetrepo "github.com/jasonzli-DEV/fortniteLobbyBot/presets/repofakes"
	"github.com/jasonzli-DEV/fortniteLobbyBot/sessions"
)

func TestSaveReplacesByName(t *testing.T) {
	repo := fakepresetrepo.NewFakePresetRepo()
	ctx := context.Background()

	first := &presets.Preset{DiscordID: "discord-1", Name: "tourney", Loadout: sessions.Loadout{Level: 1}}
	require.NoError(t, repo.Save(ctx, first))
	require.NotEmpty(t, first.ID)

	second := &presets.Preset{DiscordID: "discord-1", Name: "tourney", Loadout: sessions.Loadout{Level: 2}}
	require.NoError(t, repo.Save(ctx, second))
	require.Equal(t, first.ID, second.ID, "saving an existing name must replace, not duplicate")

	stored, err := repo.GetByName(ctx, "discord-1", "tourney")
	require.NoError(t, err)
	require.Equal(t, 2, stored.Loadout.Level)
	require.Equal(t, first.CreatedAt, stored.CreatedAt)

	list, err := repo.ListByDiscordID(ctx, "discord-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestListIsScopedToUser(t *testing.T) {
	repo := fakepresetrepo.NewFakePresetRepo()
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, &presets.Preset{DiscordID: "discord-1", Name: "b"}))
	require.NoError(t, repo.Save(ctx, &presets.Preset{DiscordID: "discord-1", Name: "a"}))
	require.NoError(t, repo.Save(ctx, &presets.Preset{DiscordID: "discord-2", Name: "c"}))

	list, err := repo.ListByDiscordID(ctx, "discord-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "a", list[0].Name)
	require.Equal(t, "b", list[1].Name)
}

func TestDeleteUnknown(t *testing.T) {
	repo := fakepresetrepo.NewFakePresetRepo()
	err := repo.Delete(context.Background(), "discord-1", "nope")
	require.ErrorIs(t, err, apperrors.ErrPresetNotFound)
}
