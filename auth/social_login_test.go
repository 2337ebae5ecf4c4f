package auth_test

import (
	"context"
	"testing"

	"github.com/jrsteele09/oamanage-auth/auth"
	"github.com/jrsteele09/oamanage-auth/internal/errors"
	"github.com/jrsteele09/oamanage-auth/token"
	"github.com/jrsteele09/oamanage-auth/users"
	"github.com/stretchr/testify/require"
)

func newSocialLogin(t *testing.T, trusted bool) (*auth.SocialLoginService, *users.InMemoryRepo) {
	t.Helper()
	repo := users.NewInMemoryRepo(users.DevelopmentSeed()...)
	require.NoError(t, auth.SeedLocalAdmin(context.Background(), repo, "root@example.com", "Adm1nPassword"))
	return auth.NewSocialLoginService(repo, token.New(repo, []byte(secretStr)), trusted), repo
}

func TestSocialLoginTrustedProviders(t *testing.T) {
	ctx := context.Background()
	service, _ := newSocialLogin(t, true)

	t.Run("existing identity", func(t *testing.T) {
		result, err := service.Login(ctx, users.ProviderGoogle, "admin@example.com", "")
		require.NoError(t, err)
		require.Equal(t, int64(2), result.Identity.ID)
		require.NotEmpty(t, result.Tokens.AccessToken)
	})

	t.Run("creates on first login", func(t *testing.T) {
		result, err := service.Login(ctx, users.ProviderNaver, "newbie@example.com", "")
		require.NoError(t, err)
		require.Equal(t, "newbie", result.Identity.Nickname)
		require.Equal(t, users.RoleUser, result.Identity.Role)
		require.Equal(t, 0, *result.Identity.Score)

		again, err := service.Login(ctx, users.ProviderNaver, "newbie@example.com", "")
		require.NoError(t, err)
		require.Equal(t, result.Identity.ID, again.Identity.ID)
	})

	t.Run("invalid input", func(t *testing.T) {
		_, err := service.Login(ctx, users.Provider("myspace"), "a@b.com", "")
		require.ErrorIs(t, err, errors.ErrInvalidInput)
		_, err = service.Login(ctx, users.ProviderKakao, "", "")
		require.ErrorIs(t, err, errors.ErrInvalidInput)
	})
}

func TestSocialLoginUntrusted(t *testing.T) {
	service, _ := newSocialLogin(t, false)
	_, err := service.Login(context.Background(), users.ProviderKakao, "hong@example.com", "")
	require.ErrorIs(t, err, errors.ErrProviderDisabled)
}

func TestLocalLogin(t *testing.T) {
	ctx := context.Background()
	service, repo := newSocialLogin(t, false)

	result, err := service.Login(ctx, users.ProviderLocal, "root@example.com", "Adm1nPassword")
	require.NoError(t, err)
	require.True(t, result.Identity.IsAdmin())

	_, err = service.Login(ctx, users.ProviderLocal, "root@example.com", "wrong")
	require.ErrorIs(t, err, errors.ErrInvalidCredentials)
	_, err = service.Login(ctx, users.ProviderLocal, "nobody@example.com", "x")
	require.ErrorIs(t, err, errors.ErrInvalidCredentials)

	require.NoError(t, auth.SeedLocalAdmin(ctx, repo, "root@example.com", "ChangedPassword1"))
	_, err = service.Login(ctx, users.ProviderLocal, "root@example.com", "Adm1nPassword")
	require.NoError(t, err, "seeding must not overwrite an existing account")
}
