package auth

import (
	"context"
	"fmt"

	"github.com/jrsteele09/oamanage-auth/internal/errors"
	"github.com/jrsteele09/oamanage-auth/internal/utils"
	"github.com/jrsteele09/oamanage-auth/token"
	"github.com/jrsteele09/oamanage-auth/users"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// SocialLoginService signs in by provider and email and returns a token pair.
// Local accounts need a matching password. Other providers are only accepted
// when trusted logins are enabled, as nothing verifies the claimed email.
type SocialLoginService struct {
	users         users.Repo
	issuer        *token.Issuer
	trustedLogins bool
}

type LoginResult struct {
	Identity *users.Identity `json:"user"`
	Tokens   *token.Pair     `json:"tokens"`
}

func NewSocialLoginService(userRepo users.Repo, issuer *token.Issuer, trustedLogins bool) *SocialLoginService {
	return &SocialLoginService{users: userRepo, issuer: issuer, trustedLogins: trustedLogins}
}

func (s *SocialLoginService) Login(ctx context.Context, provider users.Provider, email, password string) (*LoginResult, error) {
	if !provider.Valid() || email == "" {
		return nil, errors.ErrInvalidInput
	}

	var (
		identity *users.Identity
		err      error
	)
	if provider == users.ProviderLocal {
		identity, err = s.localLogin(ctx, email, password)
	} else {
		identity, err = s.trustedLogin(ctx, provider, email)
	}
	if err != nil {
		return nil, err
	}

	tokens, err := s.issuer.IssueTokenPair(ctx, identity)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "SocialLoginService.Login IssueTokenPair")
	}
	return &LoginResult{Identity: identity, Tokens: tokens}, nil
}

func (s *SocialLoginService) localLogin(ctx context.Context, email, password string) (*users.Identity, error) {
	identity, err := s.users.FindByProviderEmail(ctx, users.ProviderLocal, email)
	if errors.Is(err, errors.ErrNotFound) {
		return nil, errors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "SocialLoginService.localLogin FindByProviderEmail")
	}
	if identity.PasswordHash == "" || !users.CheckPasswordHash(password, identity.PasswordHash) {
		return nil, errors.ErrInvalidCredentials
	}
	return identity, nil
}

func (s *SocialLoginService) trustedLogin(ctx context.Context, provider users.Provider, email string) (*users.Identity, error) {
	if !s.trustedLogins {
		return nil, errors.ErrProviderDisabled
	}

	identity, err := s.users.FindByProviderEmail(ctx, provider, email)
	if err == nil {
		return identity, nil
	}
	if !errors.Is(err, errors.ErrNotFound) {
		return nil, pkgerrors.Wrap(err, "SocialLoginService.trustedLogin FindByProviderEmail")
	}

	nickname := utils.EmailLocalPart(email)
	if nickname == "" {
		nickname = fmt.Sprintf("%s-user", provider)
	}
	identity, err = s.users.Upsert(ctx, &users.Identity{
		Provider: provider,
		Nickname: nickname,
		Email:    utils.Ptr(email),
		Role:     users.RoleUser,
		Score:    utils.Ptr(0),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(err, "SocialLoginService.trustedLogin Upsert")
	}
	log.Info().Int64("identity_id", identity.ID).Str("provider", string(provider)).Msg("created identity on first social login")
	return identity, nil
}

// SeedLocalAdmin creates the local admin account when it does not exist yet.
func SeedLocalAdmin(ctx context.Context, repo users.Repo, email, password string) error {
	if email == "" || password == "" {
		return nil
	}
	if _, err := repo.FindByProviderEmail(ctx, users.ProviderLocal, email); err == nil {
		return nil
	} else if !errors.Is(err, errors.ErrNotFound) {
		return err
	}

	hash, err := users.HashPassword(password)
	if err != nil {
		return pkgerrors.Wrap(err, "SeedLocalAdmin HashPassword")
	}
	_, err = repo.Upsert(ctx, &users.Identity{
		Provider:     users.ProviderLocal,
		Nickname:     utils.EmailLocalPart(email),
		Email:        utils.Ptr(email),
		Role:         users.RoleAdmin,
		PasswordHash: hash,
	})
	return err
}
