// Package cosmetics resolves human-friendly cosmetic names to game asset
// IDs. The public catalog is fetched once and cached, in Redis when
// available and in memory otherwise.
package cosmetics

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	apperrors "github.com/jasonzli-DEV/fortniteLobbyBot/internal/errors"
)

const (
	catalogKey = "cosmetics:catalog"
	catalogTTL = time.Hour
)

// Item is one catalog entry.
type Item struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// Known item types, matching the catalog's type values.
const (
	TypeOutfit   = "outfit"
	TypeBackpack = "backpack"
	TypePickaxe  = "pickaxe"
	TypeEmote    = "emote"
)

// Service serves cosmetic lookups. Redis is optional: with a nil client the
// catalog is held in memory for the same TTL.
type Service struct {
	apiURL     string
	httpClient *http.Client
	redis      *redis.Client

	mu        sync.Mutex
	catalog   []Item
	fetchedAt time.Time

	nowTime func() time.Time
}

type Option func(*Service)

// WithRedis enables the shared catalog cache.
func WithRedis(client *redis.Client) Option {
	return func(s *Service) { s.redis = client }
}

// WithHTTPClient overrides the catalog HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Service) { s.httpClient = client }
}

// WithNowTime overrides the clock (testing only).
func WithNowTime(now func() time.Time) Option {
	return func(s *Service) { s.nowTime = now }
}

func NewService(apiURL string, options ...Option) *Service {
	s := &Service{
		apiURL:     apiURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		nowTime:    time.Now,
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// Search returns up to limit catalog items matching query, best match
// first: exact name, then name prefix, then substring. An empty itemType
// matches every type.
func (s *Service) Search(ctx context.Context, query, itemType string, limit int) ([]Item, error) {
	if limit <= 0 {
		limit = 10
	}
	catalog, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	type ranked struct {
		item Item
		rank int
	}
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return nil, apperrors.Wrapf(apperrors.ErrNotFound, "[Service.Search] empty query")
	}

	var matches []ranked
	for _, item := range catalog {
		if itemType != "" && item.Type != itemType {
			continue
		}
		name := strings.ToLower(item.Name)
		switch {
		case name == needle:
			matches = append(matches, ranked{item, 0})
		case strings.HasPrefix(name, needle):
			matches = append(matches, ranked{item, 1})
		case strings.Contains(name, needle):
			matches = append(matches, ranked{item, 2})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].rank < matches[j].rank })

	if len(matches) > limit {
		matches = matches[:limit]
	}
	out := make([]Item, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.item)
	}
	return out, nil
}

// Resolve returns the single best match for query, or ErrNotFound.
func (s *Service) Resolve(ctx context.Context, query, itemType string) (Item, error) {
	matches, err := s.Search(ctx, query, itemType, 1)
	if err != nil {
		return Item{}, err
	}
	if len(matches) == 0 {
		return Item{}, apperrors.Wrapf(apperrors.ErrNotFound, "[Service.Resolve] %q", query)
	}
	return matches[0], nil
}

func (s *Service) load(ctx context.Context) ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowTime()
	if s.catalog != nil && now.Sub(s.fetchedAt) < catalogTTL {
		return s.catalog, nil
	}

	if items, ok := s.loadRedis(ctx); ok {
		s.catalog = items
		s.fetchedAt = now
		return items, nil
	}

	items, err := s.fetch(ctx)
	if err != nil {
		// Serve a stale in-memory catalog over nothing.
		if s.catalog != nil {
			log.Warn().Err(err).Msg("cosmetics refresh failed, serving stale catalog")
			return s.catalog, nil
		}
		return nil, err
	}
	s.catalog = items
	s.fetchedAt = now
	s.storeRedis(ctx, items)
	return items, nil
}

func (s *Service) loadRedis(ctx context.Context) ([]Item, bool) {
	if s.redis == nil {
		return nil, false
	}
	raw, err := s.redis.Get(ctx, catalogKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Msg("cosmetics cache read failed")
		}
		return nil, false
	}
	var items []Item
	if err := json.Unmarshal(raw, &items); err != nil {
		log.Warn().Err(err).Msg("cosmetics cache entry corrupt, refetching")
		return nil, false
	}
	return items, true
}

func (s *Service) storeRedis(ctx context.Context, items []Item) {
	if s.redis == nil {
		return
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, catalogKey, raw, catalogTTL).Err(); err != nil {
		log.Warn().Err(err).Msg("cosmetics cache write failed")
	}
}

type catalogResponse struct {
	Data []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		Type struct {
			Value string `json:"value"`
		} `json:"type"`
	} `json:"data"`
}

func (s *Service) fetch(ctx context.Context) ([]Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.fetch] build request")
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.fetch] catalog request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("[Service.fetch] catalog returned %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, errors.Wrap(err, "[Service.fetch] read catalog")
	}

	var parsed catalogResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, errors.Wrap(err, "[Service.fetch] decode catalog")
	}

	items := make([]Item, 0, len(parsed.Data))
	for _, entry := range parsed.Data {
		if entry.ID == "" || entry.Name == "" {
			continue
		}
		items = append(items, Item{ID: entry.ID, Name: entry.Name, Type: entry.Type.Value})
	}
	log.Info().Int("items", len(items)).Msg("cosmetics catalog refreshed")
	return items, nil
}
