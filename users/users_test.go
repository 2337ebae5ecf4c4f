package users_test

import (
	"context"
	"sync"
	"testing"

	"github.com/jrsteele09/oamanage-auth/internal/errors"
	"github.com/jrsteele09/oamanage-auth/internal/utils"
	"github.com/jrsteele09/oamanage-auth/users"
	"github.com/stretchr/testify/require"
)

func TestMergeIsNonDestructive(t *testing.T) {
	existing := &users.Identity{ID: 5, Provider: users.ProviderKakao, Nickname: "old", Email: utils.Ptr("a@x.com"), Role: users.RoleAdmin, Score: utils.Ptr(3)}
	merged := users.Merge(existing, &users.Identity{ID: 99, Nickname: "new"})

	require.Equal(t, int64(5), merged.ID)
	require.Equal(t, "new", merged.Nickname)
	require.Equal(t, "a@x.com", *merged.Email)
	require.Equal(t, users.RoleAdmin, merged.Role)
	require.Equal(t, 3, *merged.Score)
	require.Equal(t, "old", existing.Nickname, "existing must not be mutated")
}

func TestMergeExternalLoginPrecedence(t *testing.T) {
	existing := &users.Identity{
		ID: 1, Provider: users.ProviderKakao, ExternalID: "k1", Nickname: "renamed",
		Email: utils.Ptr("old@x.com"), ProfileImage: utils.Ptr("old.png"), Role: users.RoleAdmin, Score: utils.Ptr(10),
	}

	t.Run("provider supplied fields", func(t *testing.T) {
		merged := users.MergeExternalLogin(existing, &users.Identity{
			Nickname: "from-provider", Email: utils.Ptr("new@x.com"), ProfileImage: utils.Ptr("new.png"), Role: users.RoleUser,
		})
		require.Equal(t, "renamed", merged.Nickname)
		require.Equal(t, "new@x.com", *merged.Email)
		require.Equal(t, "new.png", *merged.ProfileImage)
		require.Equal(t, users.RoleAdmin, merged.Role)
		require.Equal(t, 10, *merged.Score)
	})

	t.Run("provider omitted fields", func(t *testing.T) {
		merged := users.MergeExternalLogin(existing, &users.Identity{Nickname: "x"})
		require.Equal(t, "old@x.com", *merged.Email)
		require.Equal(t, "old.png", *merged.ProfileImage)
	})
}

func TestUpsertExternal(t *testing.T) {
	ctx := context.Background()
	repo := users.NewInMemoryRepo()

	first, err := repo.UpsertExternal(ctx, &users.Identity{
		Provider: users.ProviderKakao, ExternalID: "123", Nickname: "카카오", Email: utils.Ptr("k@x.com"),
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), first.ID)
	require.Equal(t, users.RoleUser, first.Role)

	_, err = repo.Upsert(ctx, &users.Identity{ID: first.ID, Nickname: "custom"})
	require.NoError(t, err)

	second, err := repo.UpsertExternal(ctx, &users.Identity{
		Provider: users.ProviderKakao, ExternalID: "123", Nickname: "카카오", Email: utils.Ptr("k2@x.com"),
	})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, "custom", second.Nickname)
	require.Equal(t, "k2@x.com", *second.Email)
}

func TestUpsertExternalConcurrentFirstLogin(t *testing.T) {
	ctx := context.Background()
	repo := users.NewInMemoryRepo()

	const workers = 16
	ids := make(chan int64, workers)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			identity, err := repo.UpsertExternal(ctx, &users.Identity{Provider: users.ProviderKakao, ExternalID: "777", Nickname: "동시"})
			if err == nil {
				ids <- identity.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[int64]struct{}{}
	for id := range ids {
		seen[id] = struct{}{}
	}
	require.Len(t, seen, 1)

	_, err := repo.FindByID(ctx, 2)
	require.ErrorIs(t, err, errors.ErrNotFound)

	_, err = repo.UpsertExternal(ctx, &users.Identity{Provider: users.ProviderKakao, Nickname: "no id"})
	require.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestInMemoryRepo(t *testing.T) {
	ctx := context.Background()
	repo := users.NewInMemoryRepo(users.DevelopmentSeed()...)

	t.Run("seeded lookups", func(t *testing.T) {
		hong, err := repo.FindByID(ctx, 1)
		require.NoError(t, err)
		require.Equal(t, "홍길동", hong.Nickname)

		admin, err := repo.FindByProviderEmail(ctx, users.ProviderGoogle, "admin@example.com")
		require.NoError(t, err)
		require.True(t, admin.IsAdmin())

		_, err = repo.FindByProviderEmail(ctx, users.ProviderKakao, "admin@example.com")
		require.ErrorIs(t, err, errors.ErrNotFound)
		_, err = repo.FindByProviderEmail(ctx, users.ProviderKakao, "")
		require.ErrorIs(t, err, errors.ErrNotFound)
		_, err = repo.FindByID(ctx, 404)
		require.ErrorIs(t, err, errors.ErrNotFound)
	})

	t.Run("insert assigns the next id", func(t *testing.T) {
		created, err := repo.Upsert(ctx, &users.Identity{Provider: users.ProviderNaver, Nickname: "n"})
		require.NoError(t, err)
		require.Equal(t, int64(3), created.ID)
		require.Equal(t, users.RoleUser, created.Role)
	})

	t.Run("returned identities are copies", func(t *testing.T) {
		hong, err := repo.FindByID(ctx, 1)
		require.NoError(t, err)
		*hong.Email = "mutated@x.com"

		again, err := repo.FindByID(ctx, 1)
		require.NoError(t, err)
		require.Equal(t, "hong@example.com", *again.Email)
	})

	t.Run("refresh token compare and swap", func(t *testing.T) {
		require.ErrorIs(t, repo.SaveRefreshToken(ctx, 404, "t"), errors.ErrNotFound)
		require.NoError(t, repo.SaveRefreshToken(ctx, 1, "t1"))

		swapped, err := repo.CompareAndSwapRefreshToken(ctx, 1, "stale", "t2")
		require.NoError(t, err)
		require.False(t, swapped)

		swapped, err = repo.CompareAndSwapRefreshToken(ctx, 1, "t1", "t2")
		require.NoError(t, err)
		require.True(t, swapped)

		current, err := repo.RefreshToken(ctx, 1)
		require.NoError(t, err)
		require.Equal(t, "t2", current)
	})
}

func TestPasswordHash(t *testing.T) {
	hash, err := users.HashPassword("S3cret-pass")
	require.NoError(t, err)
	require.True(t, users.CheckPasswordHash("S3cret-pass", hash))
	require.False(t, users.CheckPasswordHash("wrong", hash))
}

func TestRoleOrDefault(t *testing.T) {
	require.Equal(t, users.RoleUser, users.RoleOrDefault(""))
	require.Equal(t, users.RoleUser, users.RoleOrDefault("superuser"))
	require.Equal(t, users.RoleAdmin, users.RoleOrDefault(users.RoleAdmin))
}
