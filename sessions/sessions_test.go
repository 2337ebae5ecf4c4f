package sessions_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jrsteele09/oamanage-auth/internal/errors"
	"github.com/jrsteele09/oamanage-auth/internal/utils"
	"github.com/jrsteele09/oamanage-auth/sessions"
	"github.com/jrsteele09/oamanage-auth/users"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestSnapshotDefaultsRole(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	snap := sessions.NewSnapshot(&users.Identity{ID: 4, Provider: users.ProviderKakao, Nickname: "n"}, users.ProviderKakao, "", now, time.Hour)

	require.Equal(t, users.RoleUser, snap.Role)
	require.Equal(t, now.Add(time.Hour), snap.ExpiresAt)
	require.Equal(t, users.RoleUser, (&sessions.Snapshot{ID: 4}).Identity().Role)

	var nilSnap *sessions.Snapshot
	require.Nil(t, nilSnap.Identity())
}

func TestInMemoryRepo(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	repo := sessions.NewInMemoryRepo().WithNowFunc(func() time.Time { return now })

	snap := sessions.NewSnapshot(&users.Identity{ID: 1, Nickname: "홍길동", Email: utils.Ptr("hong@example.com")}, users.ProviderKakao, "kakao-at", now, time.Hour)
	id, err := repo.Create(ctx, snap)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := repo.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "hong@example.com", *got.Email)
	require.Equal(t, "kakao-at", got.ProviderAccessToken)

	_, err = repo.Get(ctx, "unknown")
	require.ErrorIs(t, err, errors.ErrSessionNotFound)

	now = now.Add(2 * time.Hour)
	_, err = repo.Get(ctx, id)
	require.ErrorIs(t, err, errors.ErrSessionNotFound)

	now = time.Unix(1_700_000_000, 0)
	require.NoError(t, repo.Delete(ctx, id))
	_, err = repo.Get(ctx, id)
	require.ErrorIs(t, err, errors.ErrSessionNotFound)
}

func TestRedisRepoUnavailable(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 200 * time.Millisecond})
	t.Cleanup(func() { _ = client.Close() })
	repo := sessions.NewRedisRepo(client)

	_, err := repo.Get(context.Background(), "abc")
	require.Error(t, err)
	require.NotErrorIs(t, err, errors.ErrSessionNotFound)

	_, err = repo.Get(context.Background(), "")
	require.ErrorIs(t, err, errors.ErrSessionNotFound)

	require.Equal(t, "oamanage:session:abc", sessions.SessionKey("abc"))
}

func setupRedisRepo(t *testing.T) (*miniredis.Miniredis, *sessions.RedisRepo) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, sessions.NewRedisRepo(client)
}

func TestRedisRepo(t *testing.T) {
	ctx := context.Background()
	mr, repo := setupRedisRepo(t)
	require.NoError(t, repo.Ping(ctx))

	now := time.Now().UTC().Truncate(time.Second)
	snap := sessions.NewSnapshot(&users.Identity{
		ID:           7,
		Provider:     users.ProviderKakao,
		Nickname:     "홍길동",
		Email:        utils.Ptr("hong@example.com"),
		ProfileImage: utils.Ptr("http://img/1.png"),
		Score:        utils.Ptr(3),
	}, users.ProviderKakao, "kakao-at", now, time.Hour)

	id, err := repo.Create(ctx, snap)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	key := sessions.SessionKey(id)
	require.True(t, mr.Exists(key))
	ttl := mr.TTL(key)
	require.Greater(t, ttl, 58*time.Minute)
	require.LessOrEqual(t, ttl, time.Hour)

	raw, err := mr.Get(key)
	require.NoError(t, err)
	var stored map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	require.Equal(t, "kakao-at", stored["providerAccessToken"])
	require.Equal(t, "kakao", stored["loginMethod"])

	got, err := repo.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, snap, *got)

	require.NoError(t, repo.Delete(ctx, id))
	require.False(t, mr.Exists(key))
	_, err = repo.Get(ctx, id)
	require.ErrorIs(t, err, errors.ErrSessionNotFound)
	require.NoError(t, repo.Delete(ctx, id))
}

func TestRedisRepoExpiry(t *testing.T) {
	ctx := context.Background()
	mr, repo := setupRedisRepo(t)
	identity := &users.Identity{ID: 1, Nickname: "n"}

	t.Run("ttl elapses", func(t *testing.T) {
		id, err := repo.Create(ctx, sessions.NewSnapshot(identity, users.ProviderKakao, "", time.Now(), time.Minute))
		require.NoError(t, err)

		mr.FastForward(time.Minute + time.Second)
		_, err = repo.Get(ctx, id)
		require.ErrorIs(t, err, errors.ErrSessionNotFound)
	})

	t.Run("already expired snapshot is rejected", func(t *testing.T) {
		_, err := repo.Create(ctx, sessions.NewSnapshot(identity, users.ProviderKakao, "", time.Now().Add(-2*time.Hour), time.Hour))
		require.Error(t, err)
		require.Empty(t, mr.Keys())
	})

	t.Run("ping fails once redis is gone", func(t *testing.T) {
		mr.Close()
		require.Error(t, repo.Ping(ctx))
	})
}
