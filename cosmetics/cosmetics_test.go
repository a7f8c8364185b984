package cosmetics_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jasonzli-DEV/fortniteLobbyBot/cosmetics"
	apperrors "github.com/jasonzli-DEV/fortniteLobbyBot/internal/errors"
)

func catalogServer(t *testing.T, hits *atomic.Int64) *httptest.Server {
	t.Helper()
	payload := map[string]any{
		"data": []map[string]any{
			{"id": "CID_028_Athena_Commando_F", "name": "Renegade Raider", "type": map[string]any{"value": "outfit"}},
			{"id": "CID_029_Athena_Commando_F_Halloween", "name": "Ghoul Trooper", "type": map[string]any{"value": "outfit"}},
			{"id": "CID_017_Athena_Commando_M", "name": "Renegade", "type": map[string]any{"value": "outfit"}},
			{"id": "BID_004_BlackKnight", "name": "Black Shield", "type": map[string]any{"value": "backpack"}},
			{"id": "EID_Floss", "name": "Floss", "type": map[string]any{"value": "emote"}},
			{"id": "Pickaxe_Lockjaw", "name": "Raider's Revenge", "type": map[string]any{"value": "pickaxe"}},
		},
	}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(payload))
	}))
}

func TestSearchRanking(t *testing.T) {
	server := catalogServer(t, nil)
	defer server.Close()

	service := cosmetics.NewService(server.URL)
	ctx := context.Background()

	// Exact match first, then prefix, then substring.
	items, err := service.Search(ctx, "renegade", "", 10)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "Renegade", items[0].Name)
	require.Equal(t, "Renegade Raider", items[1].Name)

	items, err = service.Search(ctx, "raider", "", 10)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "Raider's Revenge", items[0].Name, "prefix beats substring")
	require.Equal(t, "Renegade Raider", items[1].Name)
}

func TestSearchTypeFilter(t *testing.T) {
	server := catalogServer(t, nil)
	defer server.Close()

	service := cosmetics.NewService(server.URL)
	items, err := service.Search(context.Background(), "r", cosmetics.TypeOutfit, 10)
	require.NoError(t, err)
	for _, item := range items {
		require.Equal(t, cosmetics.TypeOutfit, item.Type)
	}
}

func TestSearchLimit(t *testing.T) {
	server := catalogServer(t, nil)
	defer server.Close()

	service := cosmetics.NewService(server.URL)
	items, err := service.Search(context.Background(), "r", "", 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
}

func TestSearchEmptyQuery(t *testing.T) {
	server := catalogServer(t, nil)
	defer server.Close()

	service := cosmetics.NewService(server.URL)
	_, err := service.Search(context.Background(), "   ", "", 10)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestResolve(t *testing.T) {
	server := catalogServer(t, nil)
	defer server.Close()

	service := cosmetics.NewService(server.URL)
	ctx := context.Background()

	item, err := service.Resolve(ctx, "Ghoul Trooper", cosmetics.TypeOutfit)
	require.NoError(t, err)
	require.Equal(t, "CID_029_Athena_Commando_F_Halloween", item.ID)

	_, err = service.Resolve(ctx, "does-not-exist", "")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCatalogCachedInMemory(t *testing.T) {
	var hits atomic.Int64
	server := catalogServer(t, &hits)
	defer server.Close()

	service := cosmetics.NewService(server.URL)
	ctx := context.Background()

	_, err := service.Search(ctx, "floss", "", 10)
	require.NoError(t, err)
	_, err = service.Search(ctx, "floss", "", 10)
	require.NoError(t, err)
	require.Equal(t, int64(1), hits.Load(), "second search must hit the in-memory catalog")
}

func TestStaleCatalogServedOnRefreshFailure(t *testing.T) {
	var hits atomic.Int64
	server := catalogServer(t, &hits)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	service := cosmetics.NewService(server.URL,
		cosmetics.WithNowTime(func() time.Time { return now }))
	ctx := context.Background()

	_, err := service.Search(ctx, "floss", "", 10)
	require.NoError(t, err)

	// Expire the cache and take the upstream away.
	server.Close()
	now = now.Add(2 * time.Hour)

	items, err := service.Search(ctx, "floss", "", 10)
	require.NoError(t, err, "refresh failure must fall back to the stale catalog")
	require.Len(t, items, 1)
}
