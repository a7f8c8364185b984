package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	apperrors "github.com/jasonzli-DEV/fortniteLobbyBot/internal/errors"
	"github.com/jasonzli-DEV/fortniteLobbyBot/presets"
)

var _ presets.Repo = (*PresetRepo)(nil)

type PresetRepo struct {
	pool *pgxpool.Pool
}

func NewPresetRepo(pool *pgxpool.Pool) *PresetRepo {
	return &PresetRepo{pool: pool}
}

const presetColumns = `id, discord_id, name, loadout, created_at, updated_at`

func scanPreset(row pgx.Row) (*presets.Preset, error) {
	var preset presets.Preset
	err := row.Scan(
		&preset.ID, &preset.DiscordID, &preset.Name,
		&preset.Loadout, &preset.CreatedAt, &preset.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrPresetNotFound
	}
	if err != nil {
		return nil, err
	}
	return &preset, nil
}

func (pr *PresetRepo) Save(ctx context.Context, preset *presets.Preset) error {
	err := pr.pool.QueryRow(ctx, `
		INSERT INTO cosmetic_presets (discord_id, name, loadout)
		VALUES ($1, $2, $3)
		ON CONFLICT (discord_id, name)
		DO UPDATE SET loadout = EXCLUDED.loadout, updated_at = now()
		RETURNING id, created_at, updated_at
	`, preset.DiscordID, preset.Name, preset.Loadout,
	).Scan(&preset.ID, &preset.CreatedAt, &preset.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, "[PresetRepo.Save]")
	}
	return nil
}

func (pr *PresetRepo) GetByName(ctx context.Context, discordID, name string) (*presets.Preset, error) {
	preset, err := scanPreset(pr.pool.QueryRow(ctx,
		`SELECT `+presetColumns+` FROM cosmetic_presets WHERE discord_id = $1 AND name = $2`,
		discordID, name))
	if err != nil {
		return nil, errors.Wrap(err, "[PresetRepo.GetByName]")
	}
	return preset, nil
}

func (pr *PresetRepo) ListByDiscordID(ctx context.Context, discordID string) ([]*presets.Preset, error) {
	rows, err := pr.pool.Query(ctx,
		`SELECT `+presetColumns+` FROM cosmetic_presets WHERE discord_id = $1 ORDER BY name`,
		discordID)
	if err != nil {
		return nil, errors.Wrap(err, "[PresetRepo.ListByDiscordID]")
	}
	defer rows.Close()

	var list []*presets.Preset
	for rows.Next() {
		preset, err := scanPreset(rows)
		if err != nil {
			return nil, errors.Wrap(err, "[PresetRepo.ListByDiscordID] scan")
		}
		list = append(list, preset)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "[PresetRepo.ListByDiscordID] rows")
	}
	return list, nil
}

func (pr *PresetRepo) Delete(ctx context.Context, discordID, name string) error {
	tag, err := pr.pool.Exec(ctx,
		`DELETE FROM cosmetic_presets WHERE discord_id = $1 AND name = $2`,
		discordID, name)
	if err != nil {
		return errors.Wrap(err, "[PresetRepo.Delete]")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.Wrapf(apperrors.ErrPresetNotFound, "[PresetRepo.Delete] %s", name)
	}
	return nil
}
