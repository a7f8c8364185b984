package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	apperrors "github.com/jasonzli-DEV/fortniteLobbyBot/internal/errors"
	"github.com/jasonzli-DEV/fortniteLobbyBot/users"
)

var _ users.Repo = (*UserRepo)(nil)

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (ur *UserRepo) Upsert(ctx context.Context, user *users.User) error {
	err := ur.pool.QueryRow(ctx, `
		INSERT INTO users (discord_id, discord_username)
		VALUES ($1, $2)
		ON CONFLICT (discord_id) DO UPDATE SET
			discord_username = EXCLUDED.discord_username,
			last_active = now()
		RETURNING id, created_at, last_active, total_sessions
	`, user.DiscordID, user.DiscordUsername).Scan(
		&user.ID, &user.CreatedAt, &user.LastActive, &user.TotalSessions,
	)
	if err != nil {
		return errors.Wrap(err, "[UserRepo.Upsert]")
	}
	return nil
}

func (ur *UserRepo) GetByDiscordID(ctx context.Context, discordID string) (*users.User, error) {
	var user users.User
	err := ur.pool.QueryRow(ctx, `
		SELECT id, discord_id, discord_username, created_at, last_active,
		       last_active_channel_id, total_sessions
		FROM users
		WHERE discord_id = $1
	`, discordID).Scan(
		&user.ID, &user.DiscordID, &user.DiscordUsername, &user.CreatedAt,
		&user.LastActive, &user.LastActiveChannelID, &user.TotalSessions,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "[UserRepo.GetByDiscordID]")
	}
	return &user, nil
}

func (ur *UserRepo) TouchActivity(ctx context.Context, discordID, channelID string) error {
	tag, err := ur.pool.Exec(ctx, `
		UPDATE users
		SET last_active = now(), last_active_channel_id = $2
		WHERE discord_id = $1
	`, discordID, channelID)
	if err != nil {
		return errors.Wrap(err, "[UserRepo.TouchActivity]")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (ur *UserRepo) IncrementSessions(ctx context.Context, discordID string) error {
	tag, err := ur.pool.Exec(ctx, `
		UPDATE users
		SET total_sessions = total_sessions + 1, last_active = now()
		WHERE discord_id = $1
	`, discordID)
	if err != nil {
		return errors.Wrap(err, "[UserRepo.IncrementSessions]")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
