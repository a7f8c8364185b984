package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	apperrors "github.com/jasonzli-DEV/fortniteLobbyBot/internal/errors"
	"github.com/jasonzli-DEV/fortniteLobbyBot/sessions"
)

var _ sessions.Repo = (*SessionRepo)(nil)

type SessionRepo struct {
	pool *pgxpool.Pool
}

func NewSessionRepo(pool *pgxpool.Pool) *SessionRepo {
	return &SessionRepo{pool: pool}
}

const sessionColumns = `id, account_id, discord_id, started_at, ended_at, last_activity,
	status, timeout_minutes, extensions_used, loadout, termination_reason`

func scanSession(row pgx.Row) (*sessions.Session, error) {
	var session sessions.Session
	err := row.Scan(
		&session.ID, &session.AccountID, &session.DiscordID,
		&session.StartedAt, &session.EndedAt, &session.LastActivity,
		&session.Status, &session.TimeoutMinutes, &session.ExtensionsUsed,
		&session.Loadout, &session.TerminationReason,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (sr *SessionRepo) Create(ctx context.Context, session *sessions.Session) error {
	if session.Status == "" {
		session.Status = sessions.StatusActive
	}
	err := sr.pool.QueryRow(ctx, `
		INSERT INTO sessions (account_id, discord_id, status, timeout_minutes, loadout)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, started_at, last_activity
	`, session.AccountID, session.DiscordID, session.Status,
		session.TimeoutMinutes, session.Loadout,
	).Scan(&session.ID, &session.StartedAt, &session.LastActivity)
	if err != nil {
		return errors.Wrap(err, "[SessionRepo.Create]")
	}
	return nil
}

func (sr *SessionRepo) Get(ctx context.Context, id string) (*sessions.Session, error) {
	session, err := scanSession(sr.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id))
	if err != nil {
		return nil, errors.Wrap(err, "[SessionRepo.Get]")
	}
	return session, nil
}

func (sr *SessionRepo) ListActive(ctx context.Context) ([]*sessions.Session, error) {
	rows, err := sr.pool.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE status IN ('active', 'idle_warning')
		ORDER BY started_at
	`)
	if err != nil {
		return nil, errors.Wrap(err, "[SessionRepo.ListActive]")
	}
	defer rows.Close()

	var list []*sessions.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, errors.Wrap(err, "[SessionRepo.ListActive] scan")
		}
		list = append(list, session)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "[SessionRepo.ListActive] rows")
	}
	return list, nil
}

func (sr *SessionRepo) UpdateActivity(ctx context.Context, id string) error {
	// Fresh activity also clears a pending idle warning.
	tag, err := sr.pool.Exec(ctx, `
		UPDATE sessions
		SET last_activity = now(),
		    status = CASE WHEN status = 'idle_warning' THEN 'active' ELSE status END
		WHERE id = $1 AND status IN ('active', 'idle_warning')
	`, id)
	if err != nil {
		return errors.Wrap(err, "[SessionRepo.UpdateActivity]")
	}
	if tag.RowsAffected() == 0 {
		return sr.notLiveErr(ctx, id)
	}
	return nil
}

func (sr *SessionRepo) UpdateStatus(ctx context.Context, id string, status sessions.Status) error {
	tag, err := sr.pool.Exec(ctx,
		`UPDATE sessions SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return errors.Wrap(err, "[SessionRepo.UpdateStatus]")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrSessionNotFound
	}
	return nil
}

func (sr *SessionRepo) UpdateLoadout(ctx context.Context, id string, loadout sessions.Loadout) error {
	tag, err := sr.pool.Exec(ctx,
		`UPDATE sessions SET loadout = $2 WHERE id = $1`, id, loadout)
	if err != nil {
		return errors.Wrap(err, "[SessionRepo.UpdateLoadout]")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrSessionNotFound
	}
	return nil
}

func (sr *SessionRepo) Extend(ctx context.Context, id string, addMinutes, maxExtensions int) (*sessions.Session, error) {
	session, err := scanSession(sr.pool.QueryRow(ctx, `
		UPDATE sessions
		SET timeout_minutes = timeout_minutes + $2,
		    extensions_used = extensions_used + 1
		WHERE id = $1
		  AND status IN ('active', 'idle_warning')
		  AND extensions_used < $3
		RETURNING `+sessionColumns+`
	`, id, addMinutes, maxExtensions))
	if err == nil {
		return session, nil
	}
	if !apperrors.Is(err, apperrors.ErrSessionNotFound) {
		return nil, errors.Wrap(err, "[SessionRepo.Extend]")
	}
	// The guarded update matched nothing; work out which precondition failed.
	current, getErr := sr.Get(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	if !current.Live() {
		return nil, apperrors.ErrSessionEnded
	}
	return nil, apperrors.Wrapf(apperrors.ErrExtensionsUsedUp, "[SessionRepo.Extend] %d/%d", current.ExtensionsUsed, maxExtensions)
}

func (sr *SessionRepo) End(ctx context.Context, id string, reason sessions.Reason) error {
	// Terminal sessions are left untouched, so End is idempotent and the
	// first termination reason wins.
	tag, err := sr.pool.Exec(ctx, `
		UPDATE sessions
		SET status = 'stopped', termination_reason = $2, ended_at = now()
		WHERE id = $1 AND status IN ('active', 'idle_warning')
	`, id, reason)
	if err != nil {
		return errors.Wrap(err, "[SessionRepo.End]")
	}
	if tag.RowsAffected() == 0 {
		return sr.existsErr(ctx, id)
	}
	return nil
}

func (sr *SessionRepo) LogActivity(ctx context.Context, entry *sessions.ActivityEntry) error {
	details := entry.Details
	if details == nil {
		details = map[string]string{}
	}
	err := sr.pool.QueryRow(ctx, `
		INSERT INTO activity_log (session_id, discord_id, action, details)
		VALUES (NULLIF($1, '')::uuid, $2, $3, $4)
		RETURNING id, timestamp
	`, entry.SessionID, entry.DiscordID, entry.Action, details,
	).Scan(&entry.ID, &entry.Timestamp)
	if err != nil {
		return errors.Wrap(err, "[SessionRepo.LogActivity]")
	}
	return nil
}

// notLiveErr distinguishes "session missing" from "session already ended"
// after a guarded update matched no rows.
func (sr *SessionRepo) notLiveErr(ctx context.Context, id string) error {
	if _, err := sr.Get(ctx, id); err != nil {
		return err
	}
	return apperrors.ErrSessionEnded
}

// existsErr returns not-found when the row is missing, nil when it exists
// but is already terminal.
func (sr *SessionRepo) existsErr(ctx context.Context, id string) error {
	if _, err := sr.Get(ctx, id); err != nil {
		return err
	}
	return nil
}
