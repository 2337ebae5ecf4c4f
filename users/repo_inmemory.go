package users

import (
	"context"
	"strings"
	"sync"

	"github.com/jrsteele09/oamanage-auth/internal/errors"
	"github.com/jrsteele09/oamanage-auth/internal/utils"
)

var _ Repo = (*InMemoryRepo)(nil)

type storedIdentity struct {
	identity     *Identity
	refreshToken string
}

// InMemoryRepo keeps identities in process memory.
type InMemoryRepo struct {
	identities map[int64]*storedIdentity
	nextID     int64
	lock       sync.RWMutex
}

func NewInMemoryRepo(seed ...*Identity) *InMemoryRepo {
	r := &InMemoryRepo{
		identities: make(map[int64]*storedIdentity),
		nextID:     1,
	}
	for _, identity := range seed {
		_, _ = r.Upsert(context.Background(), identity)
	}
	return r
}

// DevelopmentSeed returns the demo accounts loaded in DEV environments.
func DevelopmentSeed() []*Identity {
	return []*Identity{
		{ID: 1, Provider: ProviderKakao, ExternalID: "seed-1", Nickname: "홍길동", Email: utils.Ptr("hong@example.com"), Role: RoleUser, Score: utils.Ptr(10)},
		{ID: 2, Provider: ProviderGoogle, ExternalID: "seed-2", Nickname: "관리자", Email: utils.Ptr("admin@example.com"), Role: RoleAdmin, Score: utils.Ptr(100)},
	}
}

func (r *InMemoryRepo) FindByID(_ context.Context, id int64) (*Identity, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	stored, ok := r.identities[id]
	if !ok {
		return nil, errors.ErrNotFound
	}
	return stored.identity.Clone(), nil
}

func (r *InMemoryRepo) FindByProviderEmail(_ context.Context, provider Provider, email string) (*Identity, error) {
	if email == "" {
		return nil, errors.ErrNotFound
	}
	return r.find(func(i *Identity) bool {
		return i.Provider == provider && i.Email != nil && strings.EqualFold(*i.Email, email)
	})
}

func (r *InMemoryRepo) FindByExternalID(_ context.Context, provider Provider, externalID string) (*Identity, error) {
	if externalID == "" {
		return nil, errors.ErrNotFound
	}
	return r.find(func(i *Identity) bool {
		return i.Provider == provider && i.ExternalID == externalID
	})
}

func (r *InMemoryRepo) find(match func(*Identity) bool) (*Identity, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	for _, stored := range r.identities {
		if match(stored.identity) {
			return stored.identity.Clone(), nil
		}
	}
	return nil, errors.ErrNotFound
}

func (r *InMemoryRepo) Upsert(_ context.Context, identity *Identity) (*Identity, error) {
	if identity == nil {
		return nil, errors.ErrInvalidInput
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	if stored, ok := r.identities[identity.ID]; ok {
		stored.identity = Merge(stored.identity, identity)
		return stored.identity.Clone(), nil
	}

	return r.insert(identity.Clone()), nil
}

// UpsertExternal holds the write lock across the lookup and the write so
// concurrent first logins for one external id create a single identity.
func (r *InMemoryRepo) UpsertExternal(_ context.Context, incoming *Identity) (*Identity, error) {
	if incoming == nil || incoming.ExternalID == "" {
		return nil, errors.ErrInvalidInput
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	for _, stored := range r.identities {
		if stored.identity.Provider == incoming.Provider && stored.identity.ExternalID == incoming.ExternalID {
			stored.identity = MergeExternalLogin(stored.identity, incoming)
			return stored.identity.Clone(), nil
		}
	}
	return r.insert(NewExternalIdentity(incoming)), nil
}

// insert stores created under a fresh id unless it carries one. The caller holds the write lock.
func (r *InMemoryRepo) insert(created *Identity) *Identity {
	if created.ID == 0 {
		created.ID = r.nextID
	}
	created.Role = RoleOrDefault(created.Role)
	if created.ID >= r.nextID {
		r.nextID = created.ID + 1
	}
	r.identities[created.ID] = &storedIdentity{identity: created}
	return created.Clone()
}

func (r *InMemoryRepo) SaveRefreshToken(_ context.Context, id int64, token string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	stored, ok := r.identities[id]
	if !ok {
		return errors.ErrNotFound
	}
	stored.refreshToken = token
	return nil
}

func (r *InMemoryRepo) RefreshToken(_ context.Context, id int64) (string, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	stored, ok := r.identities[id]
	if !ok {
		return "", errors.ErrNotFound
	}
	return stored.refreshToken, nil
}

func (r *InMemoryRepo) CompareAndSwapRefreshToken(_ context.Context, id int64, current, next string) (bool, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	stored, ok := r.identities[id]
	if !ok {
		return false, errors.ErrNotFound
	}
	if current == "" || stored.refreshToken != current {
		return false, nil
	}
	stored.refreshToken = next
	return true, nil
}
