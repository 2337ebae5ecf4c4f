// Package sessions holds the server-side snapshot written after a successful
// provider login. Snapshots are immutable: they are created once and deleted
// at logout, never updated in place.
package sessions

import (
	"context"
	"time"

	"github.com/jrsteele09/oamanage-auth/users"
)

// Snapshot is the identity recorded at login time.
type Snapshot struct {
	ID           int64          `json:"id"`
	Provider     users.Provider `json:"provider"`
	Nickname     string         `json:"nickname"`
	Email        *string        `json:"email,omitempty"`
	ProfileImage *string        `json:"profile_image,omitempty"`
	Role         users.Role     `json:"role,omitempty"`
	Score        *int           `json:"score,omitempty"`
	LoginMethod  users.Provider `json:"loginMethod"`

	// ProviderAccessToken is kept for provider logout and never sent to clients.
	ProviderAccessToken string    `json:"providerAccessToken,omitempty"`
	CreatedAt           time.Time `json:"createdAt"`
	ExpiresAt           time.Time `json:"expiresAt"`
}

// NewSnapshot captures identity for a session lasting maxAge.
func NewSnapshot(identity *users.Identity, loginMethod users.Provider, providerAccessToken string, now time.Time, maxAge time.Duration) Snapshot {
	i := identity.Clone()
	return Snapshot{
		ID:                  i.ID,
		Provider:            i.Provider,
		Nickname:            i.Nickname,
		Email:               i.Email,
		ProfileImage:        i.ProfileImage,
		Role:                users.RoleOrDefault(i.Role),
		Score:               i.Score,
		LoginMethod:         loginMethod,
		ProviderAccessToken: providerAccessToken,
		CreatedAt:           now,
		ExpiresAt:           now.Add(maxAge),
	}
}

// Identity returns the snapshot as an identity, defaulting the role to user.
func (s *Snapshot) Identity() *users.Identity {
	if s == nil {
		return nil
	}
	return (&users.Identity{
		ID:           s.ID,
		Provider:     s.Provider,
		Nickname:     s.Nickname,
		Email:        s.Email,
		ProfileImage: s.ProfileImage,
		Role:         users.RoleOrDefault(s.Role),
		Score:        s.Score,
	}).Clone()
}

// Repo stores snapshots by an opaque session id. Missing or expired sessions
// return errors.ErrSessionNotFound.
type Repo interface {
	Create(ctx context.Context, snapshot Snapshot) (string, error)
	Get(ctx context.Context, sessionID string) (*Snapshot, error)
	Delete(ctx context.Context, sessionID string) error
}
