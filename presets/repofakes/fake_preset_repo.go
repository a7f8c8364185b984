package fakepresetrepo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/jasonzli-DEV/fortniteLobbyBot/internal/errors"
	"github.com/jasonzli-DEV/fortniteLobbyBot/presets"
)

var _ presets.Repo = (*FakePresetRepo)(nil)

type FakePresetRepo struct {
	byKey map[string]*presets.Preset
	lock  sync.RWMutex
}

func NewFakePresetRepo() *FakePresetRepo {
	return &FakePresetRepo{byKey: make(map[string]*presets.Preset)}
}

func key(discordID, name string) string {
	return discordID + "/" + name
}

func (pr *FakePresetRepo) Save(_ context.Context, preset *presets.Preset) error {
	pr.lock.Lock()
	defer pr.lock.Unlock()

	now := time.Now().UTC()
	if existing, ok := pr.byKey[key(preset.DiscordID, preset.Name)]; ok {
		preset.ID = existing.ID
		preset.CreatedAt = existing.CreatedAt
	} else {
		if preset.ID == "" {
			preset.ID = uuid.New().String()
		}
		if preset.CreatedAt.IsZero() {
			preset.CreatedAt = now
		}
	}
	preset.UpdatedAt = now
	copied := *preset
	pr.byKey[key(preset.DiscordID, preset.Name)] = &copied
	return nil
}

func (pr *FakePresetRepo) GetByName(_ context.Context, discordID, name string) (*presets.Preset, error) {
	pr.lock.RLock()
	defer pr.lock.RUnlock()

	preset, ok := pr.byKey[key(discordID, name)]
	if !ok {
		return nil, apperrors.ErrPresetNotFound
	}
	copied := *preset
	return &copied, nil
}

func (pr *FakePresetRepo) ListByDiscordID(_ context.Context, discordID string) ([]*presets.Preset, error) {
	pr.lock.RLock()
	defer pr.lock.RUnlock()

	var list []*presets.Preset
	for _, preset := range pr.byKey {
		if preset.DiscordID == discordID {
			copied := *preset
			list = append(list, &copied)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list, nil
}

func (pr *FakePresetRepo) Delete(_ context.Context, discordID, name string) error {
	pr.lock.Lock()
	defer pr.lock.Unlock()

	if _, ok := pr.byKey[key(discordID, name)]; !ok {
		return apperrors.ErrPresetNotFound
	}
	delete(pr.byKey, key(discordID, name))
	return nil
}
