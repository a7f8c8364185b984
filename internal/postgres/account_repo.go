package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/jasonzli-DEV/fortniteLobbyBot/accounts"
	apperrors "github.com/jasonzli-DEV/fortniteLobbyBot/internal/errors"
)

var _ accounts.Repo = (*AccountRepo)(nil)

type AccountRepo struct {
	pool *pgxpool.Pool
}

func NewAccountRepo(pool *pgxpool.Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

const accountColumns = `id, discord_id, epic_username, epic_display_name, epic_account_id,
	encrypted_credentials, status, added_at, last_used, total_sessions`

func scanAccount(row pgx.Row) (*accounts.Account, error) {
	var account accounts.Account
	err := row.Scan(
		&account.ID, &account.DiscordID, &account.EpicUsername,
		&account.EpicDisplayName, &account.EpicAccountID,
		&account.EncryptedCredentials, &account.Status, &account.AddedAt,
		&account.LastUsed, &account.TotalSessions,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (ar *AccountRepo) Create(ctx context.Context, account *accounts.Account) error {
	if account.Status == "" {
		account.Status = accounts.StatusActive
	}
	err := ar.pool.QueryRow(ctx, `
		INSERT INTO accounts (discord_id, epic_username, epic_display_name,
			epic_account_id, encrypted_credentials, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, added_at
	`, account.DiscordID, account.EpicUsername, account.EpicDisplayName,
		account.EpicAccountID, account.EncryptedCredentials, account.Status,
	).Scan(&account.ID, &account.AddedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		// 23505: unique_violation on (discord_id, epic_account_id)
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperrors.Wrapf(apperrors.ErrAccountExists, "[AccountRepo.Create] %s", account.EpicUsername)
		}
		return errors.Wrap(err, "[AccountRepo.Create]")
	}
	return nil
}

func (ar *AccountRepo) GetByID(ctx context.Context, id string) (*accounts.Account, error) {
	account, err := scanAccount(ar.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if err != nil {
		return nil, errors.Wrap(err, "[AccountRepo.GetByID]")
	}
	return account, nil
}

func (ar *AccountRepo) GetByEpicAccountID(ctx context.Context, epicAccountID string) (*accounts.Account, error) {
	account, err := scanAccount(ar.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE epic_account_id = $1`, epicAccountID))
	if err != nil {
		return nil, errors.Wrap(err, "[AccountRepo.GetByEpicAccountID]")
	}
	return account, nil
}

func (ar *AccountRepo) ListByDiscordID(ctx context.Context, discordID string) ([]*accounts.Account, error) {
	rows, err := ar.pool.Query(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE discord_id = $1 ORDER BY added_at`, discordID)
	if err != nil {
		return nil, errors.Wrap(err, "[AccountRepo.ListByDiscordID]")
	}
	defer rows.Close()

	var list []*accounts.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, errors.Wrap(err, "[AccountRepo.ListByDiscordID] scan")
		}
		list = append(list, account)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "[AccountRepo.ListByDiscordID] rows")
	}
	return list, nil
}

func (ar *AccountRepo) CountByDiscordID(ctx context.Context, discordID string) (int, error) {
	var count int
	err := ar.pool.QueryRow(ctx,
		`SELECT count(*) FROM accounts WHERE discord_id = $1`, discordID).Scan(&count)
	if err != nil {
		return 0, errors.Wrap(err, "[AccountRepo.CountByDiscordID]")
	}
	return count, nil
}

func (ar *AccountRepo) SetStatus(ctx context.Context, id string, status accounts.Status) error {
	tag, err := ar.pool.Exec(ctx,
		`UPDATE accounts SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return errors.Wrap(err, "[AccountRepo.SetStatus]")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrAccountNotFound
	}
	return nil
}

func (ar *AccountRepo) MarkUsed(ctx context.Context, id string) error {
	tag, err := ar.pool.Exec(ctx, `
		UPDATE accounts
		SET last_used = now(), total_sessions = total_sessions + 1
		WHERE id = $1
	`, id)
	if err != nil {
		return errors.Wrap(err, "[AccountRepo.MarkUsed]")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrAccountNotFound
	}
	return nil
}

func (ar *AccountRepo) Delete(ctx context.Context, id string) error {
	tag, err := ar.pool.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "[AccountRepo.Delete]")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrAccountNotFound
	}
	return nil
}
