// Package token issues access/refresh token pairs and rotates refresh tokens.
package token

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/oamanage-auth/internal/errors"
	"github.com/jrsteele09/oamanage-auth/token/codec"
	"github.com/jrsteele09/oamanage-auth/users"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// Pair is returned to clients after login or refresh. ExpiresIn is the access
// token lifetime in seconds.
type Pair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

type Issuer struct {
	repo       users.Repo
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

type IssuerOption func(*Issuer)

func WithTokenExpiry(accessTokenExpiry, refreshTokenExpiry time.Duration) IssuerOption {
	return func(i *Issuer) {
		i.accessTTL = accessTokenExpiry
		i.refreshTTL = refreshTokenExpiry
	}
}

func New(repo users.Repo, secret []byte, options ...IssuerOption) *Issuer {
	i := &Issuer{
		repo:   repo,
		secret: secret,
	}
	for _, option := range options {
		option(i)
	}
	if i.accessTTL <= 0 {
		i.accessTTL = DefaultAccessTokenTTL
	}
	if i.refreshTTL <= 0 {
		i.refreshTTL = DefaultRefreshTokenTTL
	}
	return i
}

// Secret is shared with the resolver so bearer tokens verify with the same key.
func (i *Issuer) Secret() []byte {
	return i.secret
}

// IssueTokenPair mints a pair for identity and makes its refresh token the
// only live one for that identity.
func (i *Issuer) IssueTokenPair(ctx context.Context, identity *users.Identity) (*Pair, error) {
	pair, err := i.mint(identity)
	if err != nil {
		return nil, err
	}
	if err := i.repo.SaveRefreshToken(ctx, identity.ID, pair.RefreshToken); err != nil {
		return nil, pkgerrors.Wrap(err, "Issuer.IssueTokenPair SaveRefreshToken")
	}
	return pair, nil
}

// Refresh exchanges the current refresh token for a new pair. Any token that
// is not the identity's live refresh token is rejected with
// errors.ErrInvalidRefreshToken and leaves the store untouched.
func (i *Issuer) Refresh(ctx context.Context, refreshToken string) (*Pair, error) {
	claims, err := codec.Verify(refreshToken, i.secret)
	if err != nil {
		log.Debug().Err(err).Msg("refresh token rejected")
		return nil, errors.ErrInvalidRefreshToken
	}

	id, ok := claims.Int64("id")
	if !ok {
		return nil, errors.ErrInvalidRefreshToken
	}

	identity, err := i.repo.FindByID(ctx, id)
	if errors.Is(err, errors.ErrNotFound) {
		return nil, errors.ErrInvalidRefreshToken
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "Issuer.Refresh FindByID")
	}

	stored, err := i.repo.RefreshToken(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "Issuer.Refresh RefreshToken")
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(refreshToken)) != 1 {
		log.Warn().Err(errors.ErrRefreshTokenReused).Int64("identity_id", id).Msg("superseded refresh token presented")
		return nil, errors.ErrInvalidRefreshToken
	}

	pair, err := i.mint(identity)
	if err != nil {
		return nil, err
	}

	swapped, err := i.repo.CompareAndSwapRefreshToken(ctx, id, refreshToken, pair.RefreshToken)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "Issuer.Refresh CompareAndSwapRefreshToken")
	}
	if !swapped {
		log.Warn().Int64("identity_id", id).Msg("concurrent refresh lost rotation race")
		return nil, errors.ErrInvalidRefreshToken
	}
	return pair, nil
}

func (i *Issuer) mint(identity *users.Identity) (*Pair, error) {
	if identity == nil || identity.ID == 0 {
		return nil, errors.ErrInvalidInput
	}

	access, err := codec.Sign(AccessClaims(identity), i.secret, i.accessTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "Issuer access token")
	}

	refresh, err := codec.Sign(codec.Claims{
		"id":  identity.ID,
		"jti": uuid.New().String(),
	}, i.secret, i.refreshTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "Issuer refresh token")
	}

	return &Pair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(i.accessTTL / time.Second),
	}, nil
}

// AccessClaims is the identity view carried by access tokens.
func AccessClaims(identity *users.Identity) codec.Claims {
	claims := codec.Claims{
		"id":       identity.ID,
		"provider": string(identity.Provider),
		"nickname": identity.Nickname,
		"role":     string(users.RoleOrDefault(identity.Role)),
		"jti":      uuid.New().String(),
	}
	if identity.Email != nil {
		claims["email"] = *identity.Email
	}
	if identity.Score != nil {
		claims["score"] = *identity.Score
	}
	return claims
}
