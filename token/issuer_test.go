package token_test

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/oamanage-auth/internal/errors"
	"github.com/jrsteele09/oamanage-auth/internal/utils"
	"github.com/jrsteele09/oamanage-auth/token"
	"github.com/jrsteele09/oamanage-auth/token/codec"
	"github.com/jrsteele09/oamanage-auth/users"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"
)

const testSecret = "issuer-test-secret"

type testFixture struct {
	repo     *users.InMemoryRepo
	issuer   *token.Issuer
	identity *users.Identity
}

func setupTestFixture(t *testing.T, options ...token.IssuerOption) *testFixture {
	t.Helper()
	repo := users.NewInMemoryRepo()
	identity, err := repo.Upsert(context.Background(), &users.Identity{
		Provider: users.ProviderKakao, Nickname: "홍길동", Email: utils.Ptr("hong@example.com"), Score: utils.Ptr(10),
	})
	require.NoError(t, err)
	return &testFixture{
		repo:     repo,
		issuer:   token.New(repo, []byte(testSecret), options...),
		identity: identity,
	}
}

func TestIssueTokenPair(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)

	pair, err := f.issuer.IssueTokenPair(ctx, f.identity)
	require.NoError(t, err)
	require.Equal(t, int64(900), pair.ExpiresIn)

	access, err := codec.Verify(pair.AccessToken, []byte(testSecret))
	require.NoError(t, err)
	require.Equal(t, "홍길동", access["nickname"])
	require.Equal(t, "kakao", access["provider"])
	require.Equal(t, "user", access["role"])
	require.Equal(t, "hong@example.com", access["email"])

	refresh, err := codec.Verify(pair.RefreshToken, []byte(testSecret))
	require.NoError(t, err)
	id, ok := refresh.Int64("id")
	require.True(t, ok)
	require.Equal(t, f.identity.ID, id)
	require.NotContains(t, refresh, "nickname")
	require.NotContains(t, refresh, "email")

	stored, err := f.repo.RefreshToken(ctx, f.identity.ID)
	require.NoError(t, err)
	require.Equal(t, pair.RefreshToken, stored)

	_, err = f.issuer.IssueTokenPair(ctx, &users.Identity{ID: 404, Nickname: "ghost"})
	require.ErrorIs(t, err, errors.ErrNotFound)
}

func TestCustomExpiry(t *testing.T) {
	f := setupTestFixture(t, token.WithTokenExpiry(time.Minute, time.Hour))
	pair, err := f.issuer.IssueTokenPair(context.Background(), f.identity)
	require.NoError(t, err)
	require.Equal(t, int64(60), pair.ExpiresIn)
}

func TestRefreshRotation(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)

	first, err := f.issuer.IssueTokenPair(ctx, f.identity)
	require.NoError(t, err)

	second, err := f.issuer.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)
	require.Equal(t, int64(900), second.ExpiresIn)

	t.Run("replayed token is rejected", func(t *testing.T) {
		var logged bytes.Buffer
		previous := log.Logger
		log.Logger = zerolog.New(&logged)
		t.Cleanup(func() { log.Logger = previous })

		_, err := f.issuer.Refresh(ctx, first.RefreshToken)
		require.ErrorIs(t, err, errors.ErrInvalidRefreshToken)
		require.NotErrorIs(t, err, errors.ErrRefreshTokenReused)
		require.Contains(t, logged.String(), errors.ErrRefreshTokenReused.Error())

		stored, err := f.repo.RefreshToken(ctx, f.identity.ID)
		require.NoError(t, err)
		require.Equal(t, second.RefreshToken, stored)
	})

	t.Run("new login supersedes outstanding token", func(t *testing.T) {
		third, err := f.issuer.IssueTokenPair(ctx, f.identity)
		require.NoError(t, err)
		_, err = f.issuer.Refresh(ctx, second.RefreshToken)
		require.ErrorIs(t, err, errors.ErrInvalidRefreshToken)
		_, err = f.issuer.Refresh(ctx, third.RefreshToken)
		require.NoError(t, err)
	})
}

func TestRefreshRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)

	pair, err := f.issuer.IssueTokenPair(ctx, f.identity)
	require.NoError(t, err)

	noID, err := codec.Sign(codec.Claims{"sub": "x"}, []byte(testSecret), time.Hour)
	require.NoError(t, err)
	unknown, err := codec.Sign(codec.Claims{"id": 404}, []byte(testSecret), time.Hour)
	require.NoError(t, err)
	otherKey, err := codec.Sign(codec.Claims{"id": f.identity.ID}, []byte("other"), time.Hour)
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"garbage":               "not-a-token",
		"three segment garbage": "garbage.token.value",
		"empty":                 "",
		"missing id":            noID,
		"unknown id":            unknown,
		"wrong key":             otherKey,
		"access token":          pair.AccessToken,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.issuer.Refresh(ctx, tok)
			require.ErrorIs(t, err, errors.ErrInvalidRefreshToken)
		})
	}

	stored, err := f.repo.RefreshToken(ctx, f.identity.ID)
	require.NoError(t, err)
	require.Equal(t, pair.RefreshToken, stored, "rejections must not mutate the store")
}

func TestRefreshExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	codec.NowTimeFunc = func() time.Time { return now }
	t.Cleanup(func() { codec.NowTimeFunc = time.Now })

	f := setupTestFixture(t, token.WithTokenExpiry(time.Minute, time.Hour))
	pair, err := f.issuer.IssueTokenPair(ctx, f.identity)
	require.NoError(t, err)

	now = now.Add(time.Hour + time.Second)
	_, err = f.issuer.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, errors.ErrInvalidRefreshToken)
}

func TestConcurrentRefreshSingleWinner(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)

	pair, err := f.issuer.IssueTokenPair(ctx, f.identity)
	require.NoError(t, err)

	const workers = 16
	results := make(chan *token.Pair, workers)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if next, err := f.issuer.Refresh(ctx, pair.RefreshToken); err == nil {
				results <- next
			}
		}()
	}
	wg.Wait()
	close(results)

	var winners []*token.Pair
	for r := range results {
		winners = append(winners, r)
	}
	require.Len(t, winners, 1)

	stored, err := f.repo.RefreshToken(ctx, f.identity.ID)
	require.NoError(t, err)
	require.Equal(t, winners[0].RefreshToken, stored)
}
