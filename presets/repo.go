package presets

import "context"

type Repo interface {
	// Save upserts by (discord ID, name).
	Save(ctx context.Context, preset *Preset) error
	GetByName(ctx context.Context, discordID, name string) (*Preset, error)
	ListByDiscordID(ctx context.Context, discordID string) ([]*Preset, error)
	Delete(ctx context.Context, discordID, name string) error
}
