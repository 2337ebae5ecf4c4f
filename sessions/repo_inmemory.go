package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/oamanage-auth/internal/errors"
)

var _ Repo = (*InMemoryRepo)(nil)

type InMemoryRepo struct {
	mu       sync.RWMutex
	sessions map[string]Snapshot
	nowFunc  func() time.Time
}

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		sessions: make(map[string]Snapshot),
		nowFunc:  time.Now,
	}
}

// WithNowFunc overrides the clock used for expiry checks.
func (r *InMemoryRepo) WithNowFunc(now func() time.Time) *InMemoryRepo {
	r.nowFunc = now
	return r
}

func (r *InMemoryRepo) Create(_ context.Context, snapshot Snapshot) (string, error) {
	sessionID := uuid.New().String()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[sessionID] = snapshot
	r.purgeExpired()
	return sessionID, nil
}

func (r *InMemoryRepo) Get(_ context.Context, sessionID string) (*Snapshot, error) {
	if sessionID == "" {
		return nil, errors.ErrSessionNotFound
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot, ok := r.sessions[sessionID]
	if !ok || r.expired(snapshot) {
		return nil, errors.ErrSessionNotFound
	}
	return &snapshot, nil
}

func (r *InMemoryRepo) Delete(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, sessionID)
	return nil
}

// purgeExpired must be called with the write lock held.
func (r *InMemoryRepo) purgeExpired() {
	for id, s := range r.sessions {
		if r.expired(s) {
			delete(r.sessions, id)
		}
	}
}

func (r *InMemoryRepo) expired(s Snapshot) bool {
	return !s.ExpiresAt.IsZero() && r.nowFunc().After(s.ExpiresAt)
}
