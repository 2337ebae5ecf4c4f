package users

import "context"

// Repo stores identities and the single live refresh token of each identity.
// Lookups that find nothing return errors.ErrNotFound.
type Repo interface {
	FindByID(ctx context.Context, id int64) (*Identity, error)
	FindByProviderEmail(ctx context.Context, provider Provider, email string) (*Identity, error)
	FindByExternalID(ctx context.Context, provider Provider, externalID string) (*Identity, error)

	// Upsert inserts identity when its ID is zero (the store assigns one) or
	// unknown, otherwise it applies Merge onto the stored record.
	Upsert(ctx context.Context, identity *Identity) (*Identity, error)

	// UpsertExternal records a provider login in one step per (provider,
	// externalID): the first call creates the identity, later calls apply
	// MergeExternalLogin. An empty ExternalID returns ErrInvalidInput.
	UpsertExternal(ctx context.Context, incoming *Identity) (*Identity, error)

	// SaveRefreshToken overwrites the stored refresh token. Unknown ids return ErrNotFound.
	SaveRefreshToken(ctx context.Context, id int64, token string) error
	RefreshToken(ctx context.Context, id int64) (string, error)
	// CompareAndSwapRefreshToken replaces current with next atomically and
	// reports false when the stored token is no longer current.
	CompareAndSwapRefreshToken(ctx context.Context, id int64, current, next string) (bool, error)
}
