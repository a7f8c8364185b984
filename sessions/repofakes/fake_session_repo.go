package fakesessionrepo

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/jasonzli-DEV/fortniteLobbyBot/internal/errors"
	"github.com/jasonzli-DEV/fortniteLobbyBot/sessions"
)

var _ sessions.Repo = (*FakeSessionRepo)(nil)

type FakeSessionRepo struct {
	sessions map[string]*sessions.Session
	activity []*sessions.ActivityEntry
	lock     sync.RWMutex

	// nowTime is injectable so monitor tests can control the clock.
	nowTime func() time.Time
}

func NewFakeSessionRepo() *FakeSessionRepo {
	return &FakeSessionRepo{
		sessions: make(map[string]*sessions.Session),
		nowTime:  time.Now,
	}
}

// SetNowFunc overrides the repo clock (testing only).
func (sr *FakeSessionRepo) SetNowFunc(now func() time.Time) {
	sr.lock.Lock()
	defer sr.lock.Unlock()
	sr.nowTime = now
}

func (sr *FakeSessionRepo) Create(_ context.Context, session *sessions.Session) error {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	now := sr.nowTime().UTC()
	if session.StartedAt.IsZero() {
		session.StartedAt = now
	}
	if session.LastActivity.IsZero() {
		session.LastActivity = now
	}
	if session.Status == "" {
		session.Status = sessions.StatusActive
	}
	copied := *session
	sr.sessions[session.ID] = &copied
	return nil
}

func (sr *FakeSessionRepo) Get(_ context.Context, id string) (*sessions.Session, error) {
	sr.lock.RLock()
	defer sr.lock.RUnlock()

	session, ok := sr.sessions[id]
	if !ok {
		return nil, apperrors.ErrSessionNotFound
	}
	copied := *session
	return &copied, nil
}

func (sr *FakeSessionRepo) ListActive(_ context.Context) ([]*sessions.Session, error) {
	sr.lock.RLock()
	defer sr.lock.RUnlock()

	var list []*sessions.Session
	for _, session := range sr.sessions {
		if session.Live() {
			copied := *session
			list = append(list, &copied)
		}
	}
	return list, nil
}

func (sr *FakeSessionRepo) UpdateActivity(_ context.Context, id string) error {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	session, ok := sr.sessions[id]
	if !ok {
		return apperrors.ErrSessionNotFound
	}
	if !session.Live() {
		return apperrors.ErrSessionEnded
	}
	session.LastActivity = sr.nowTime().UTC()
	// Fresh activity clears a pending idle warning.
	if session.Status == sessions.StatusIdleWarning {
		session.Status = sessions.StatusActive
	}
	return nil
}

func (sr *FakeSessionRepo) UpdateStatus(_ context.Context, id string, status sessions.Status) error {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	session, ok := sr.sessions[id]
	if !ok {
		return apperrors.ErrSessionNotFound
	}
	session.Status = status
	return nil
}

func (sr *FakeSessionRepo) UpdateLoadout(_ context.Context, id string, loadout sessions.Loadout) error {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	session, ok := sr.sessions[id]
	if !ok {
		return apperrors.ErrSessionNotFound
	}
	session.Loadout = loadout
	return nil
}

func (sr *FakeSessionRepo) Extend(_ context.Context, id string, addMinutes, maxExtensions int) (*sessions.Session, error) {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	session, ok := sr.sessions[id]
	if !ok {
		return nil, apperrors.ErrSessionNotFound
	}
	if !session.Live() {
		return nil, apperrors.ErrSessionEnded
	}
	if session.ExtensionsUsed >= maxExtensions {
		return nil, apperrors.ErrExtensionsUsedUp
	}
	session.ExtensionsUsed++
	session.TimeoutMinutes += addMinutes
	copied := *session
	return &copied, nil
}

func (sr *FakeSessionRepo) End(_ context.Context, id string, reason sessions.Reason) error {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	session, ok := sr.sessions[id]
	if !ok {
		return apperrors.ErrSessionNotFound
	}
	if !session.Live() {
		return nil
	}
	now := sr.nowTime().UTC()
	session.Status = sessions.StatusStopped
	session.TerminationReason = reason
	session.EndedAt = &now
	return nil
}

func (sr *FakeSessionRepo) LogActivity(_ context.Context, entry *sessions.ActivityEntry) error {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = sr.nowTime().UTC()
	}
	copied := *entry
	sr.activity = append(sr.activity, &copied)
	return nil
}

// ActivityEntries returns a snapshot of logged activity (testing only).
func (sr *FakeSessionRepo) ActivityEntries() []*sessions.ActivityEntry {
	sr.lock.RLock()
	defer sr.lock.RUnlock()

	out := make([]*sessions.ActivityEntry, len(sr.activity))
	copy(out, sr.activity)
	return out
}
