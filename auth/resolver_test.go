package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/oamanage-auth/auth"
	"github.com/jrsteele09/oamanage-auth/internal/utils"
	"github.com/jrsteele09/oamanage-auth/sessions"
	"github.com/jrsteele09/oamanage-auth/token"
	"github.com/jrsteele09/oamanage-auth/token/codec"
	"github.com/jrsteele09/oamanage-auth/users"
	"github.com/stretchr/testify/require"
)

const secretStr = "resolver-secret"

func accessToken(t *testing.T, identity *users.Identity) string {
	t.Helper()
	tok, err := codec.Sign(token.AccessClaims(identity), []byte(secretStr), time.Minute)
	require.NoError(t, err)
	return tok
}

func TestExtractBearer(t *testing.T) {
	for header, want := range map[string]string{
		"Bearer abc":   "abc",
		"Bearer a.b.c": "a.b.c",
	} {
		got, ok := auth.ExtractBearer(header)
		require.True(t, ok, header)
		require.Equal(t, want, got)
	}

	for _, header := range []string{"", "Bearer", "Bearer ", "bearer abc", "Basic abc", "Bearer  abc", "Bearer a b", "Token abc"} {
		_, ok := auth.ExtractBearer(header)
		require.False(t, ok, header)
	}
}

func TestResolvePrecedence(t *testing.T) {
	resolver := auth.NewResolver([]byte(secretStr))
	bearerIdentity := &users.Identity{ID: 1, Provider: users.ProviderKakao, Nickname: "bearer", Role: users.RoleAdmin, Email: utils.Ptr("b@x.com"), Score: utils.Ptr(7)}
	snapshot := &sessions.Snapshot{ID: 2, Provider: users.ProviderGoogle, Nickname: "session"}

	t.Run("bearer wins over session", func(t *testing.T) {
		identity, source := resolver.Resolve("Bearer "+accessToken(t, bearerIdentity), snapshot)
		require.Equal(t, auth.SourceBearer, source)
		require.Equal(t, int64(1), identity.ID)
		require.Equal(t, users.RoleAdmin, identity.Role)
		require.Equal(t, "b@x.com", *identity.Email)
		require.Equal(t, 7, *identity.Score)
	})

	t.Run("invalid bearer falls back to session", func(t *testing.T) {
		identity, source := resolver.Resolve("Bearer garbage", snapshot)
		require.Equal(t, auth.SourceSession, source)
		require.Equal(t, int64(2), identity.ID)
		require.Equal(t, users.RoleUser, identity.Role)
	})

	t.Run("nothing resolves", func(t *testing.T) {
		identity, source := resolver.Resolve("", nil)
		require.Nil(t, identity)
		require.Equal(t, auth.SourceNone, source)
	})

	t.Run("token signed with another secret", func(t *testing.T) {
		forged, err := codec.Sign(token.AccessClaims(bearerIdentity), []byte("other"), time.Minute)
		require.NoError(t, err)
		identity, _ := resolver.Resolve("Bearer "+forged, nil)
		require.Nil(t, identity)
	})

	t.Run("refresh token is not an access token", func(t *testing.T) {
		refresh, err := codec.Sign(codec.Claims{"id": 1, "jti": "x"}, []byte(secretStr), time.Minute)
		require.NoError(t, err)
		identity, _ := resolver.Resolve("Bearer "+refresh, nil)
		require.Nil(t, identity)
	})

	t.Run("non numeric id", func(t *testing.T) {
		tok, err := codec.Sign(codec.Claims{"id": "1", "provider": "kakao", "nickname": "n"}, []byte(secretStr), time.Minute)
		require.NoError(t, err)
		identity, _ := resolver.Resolve("Bearer "+tok, nil)
		require.Nil(t, identity)
	})

	t.Run("unknown role defaults to user", func(t *testing.T) {
		tok, err := codec.Sign(codec.Claims{"id": 9, "provider": "kakao", "nickname": "n", "role": "root"}, []byte(secretStr), time.Minute)
		require.NoError(t, err)
		identity, _ := resolver.Resolve("Bearer "+tok, nil)
		require.Equal(t, users.RoleUser, identity.Role)
	})
}

func TestRequireModes(t *testing.T) {
	resolver := auth.NewResolver([]byte(secretStr))
	admin := &users.Identity{ID: 2, Provider: users.ProviderGoogle, Nickname: "관리자", Role: users.RoleAdmin}
	user := &users.Identity{ID: 1, Provider: users.ProviderKakao, Nickname: "홍길동", Role: users.RoleUser}

	_, err := resolver.Require("", nil)
	require.ErrorIs(t, err, auth.ErrUnauthorized)

	identity, err := resolver.Require("Bearer "+accessToken(t, user), nil)
	require.NoError(t, err)
	require.Equal(t, int64(1), identity.ID)

	_, err = resolver.RequireAdmin("", nil)
	require.ErrorIs(t, err, auth.ErrUnauthorized)

	_, err = resolver.RequireAdmin("Bearer "+accessToken(t, user), nil)
	require.ErrorIs(t, err, auth.ErrForbidden)

	_, err = resolver.RequireAdmin("", &sessions.Snapshot{ID: 1, Nickname: "no role"})
	require.ErrorIs(t, err, auth.ErrForbidden)

	identity, err = resolver.RequireAdmin("Bearer "+accessToken(t, admin), nil)
	require.NoError(t, err)
	require.True(t, identity.IsAdmin())

	snap := sessions.NewSnapshot(admin, users.ProviderGoogle, "", time.Now(), time.Hour)
	identity, err = resolver.RequireAdmin("", &snap)
	require.NoError(t, err)
	require.Equal(t, int64(2), identity.ID)
}

func TestIssuedTokensResolve(t *testing.T) {
	ctx := context.Background()
	repo := users.NewInMemoryRepo(users.DevelopmentSeed()...)
	issuer := token.New(repo, []byte(secretStr))
	resolver := auth.NewResolver(issuer.Secret())

	hong, err := repo.FindByID(ctx, 1)
	require.NoError(t, err)
	pair, err := issuer.IssueTokenPair(ctx, hong)
	require.NoError(t, err)

	identity, source := resolver.Resolve("Bearer "+pair.AccessToken, nil)
	require.Equal(t, auth.SourceBearer, source)
	require.Equal(t, "홍길동", identity.Nickname)
	require.Equal(t, 10, *identity.Score)
}
