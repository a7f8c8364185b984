package sessions

import "context"

// Repo persists session records. The persisted store mirrors the in-memory
// registry for monitoring and restart recovery; the registry remains the
// authority on liveness.
type Repo interface {
	Create(ctx context.Context, session *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	ListActive(ctx context.Context) ([]*Session, error)
	UpdateActivity(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, id string, status Status) error
	UpdateLoadout(ctx context.Context, id string, loadout Loadout) error

	// Extend atomically adds addMinutes to the timeout budget and increments
	// extensions_used, failing with ErrExtensionsUsedUp when the session has
	// already used maxExtensions.
	Extend(ctx context.Context, id string, addMinutes, maxExtensions int) (*Session, error)

	// End marks the session stopped with the given reason. Ending an already
	// terminal session is a no-op.
	End(ctx context.Context, id string, reason Reason) error

	LogActivity(ctx context.Context, entry *ActivityEntry) error
}
