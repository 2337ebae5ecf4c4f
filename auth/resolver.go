package auth

import (
	"strings"

	"github.com/jrsteele09/oamanage-auth/internal/utils"
	"github.com/jrsteele09/oamanage-auth/sessions"
	"github.com/jrsteele09/oamanage-auth/token/codec"
	"github.com/jrsteele09/oamanage-auth/users"
	"github.com/rs/zerolog/log"
)

// Source records where a resolved identity came from.
type Source string

const (
	SourceNone    Source = ""
	SourceBearer  Source = "bearer"
	SourceSession Source = "session"
)

// Resolver determines the identity behind a request from its Authorization
// header and session snapshot. A verifiable bearer token always wins.
type Resolver struct {
	secret []byte
}

func NewResolver(secret []byte) *Resolver {
	return &Resolver{secret: secret}
}

// ExtractBearer accepts exactly "Bearer <token>".
func ExtractBearer(header string) (string, bool) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// Resolve returns the identity for the request, or nil and SourceNone.
func (r *Resolver) Resolve(authorization string, snapshot *sessions.Snapshot) (*users.Identity, Source) {
	if raw, ok := ExtractBearer(authorization); ok {
		if identity := r.identityFromToken(raw); identity != nil {
			return identity, SourceBearer
		}
	}
	if snapshot != nil && snapshot.ID != 0 {
		return snapshot.Identity(), SourceSession
	}
	return nil, SourceNone
}

// Require fails with ErrUnauthorized when no identity resolves.
func (r *Resolver) Require(authorization string, snapshot *sessions.Snapshot) (*users.Identity, error) {
	identity, _ := r.Resolve(authorization, snapshot)
	if identity == nil {
		return nil, ErrUnauthorized
	}
	return identity, nil
}

// RequireAdmin fails with ErrUnauthorized when no identity resolves and with
// ErrForbidden when the identity is not an admin.
func (r *Resolver) RequireAdmin(authorization string, snapshot *sessions.Snapshot) (*users.Identity, error) {
	identity, err := r.Require(authorization, snapshot)
	if err != nil {
		return nil, err
	}
	if !identity.IsAdmin() {
		return nil, ErrForbidden
	}
	return identity, nil
}

// identityFromToken accepts access tokens only: refresh tokens carry no
// provider or nickname and are rejected here.
func (r *Resolver) identityFromToken(raw string) *users.Identity {
	claims, err := codec.Verify(raw, r.secret)
	if err != nil {
		log.Debug().Err(err).Msg("bearer token rejected")
		return nil
	}

	id, ok := claims.Int64("id")
	if !ok {
		return nil
	}
	provider, ok := claims.String("provider")
	if !ok {
		return nil
	}
	nickname, ok := claims.String("nickname")
	if !ok {
		return nil
	}

	identity := &users.Identity{
		ID:       id,
		Provider: users.Provider(provider),
		Nickname: nickname,
		Role:     users.RoleUser,
	}
	if role, ok := claims.String("role"); ok {
		identity.Role = users.RoleOrDefault(users.Role(role))
	}
	if email, ok := claims.String("email"); ok {
		identity.Email = utils.NonEmptyPtr(email)
	}
	if score, ok := claims.Int64("score"); ok {
		identity.Score = utils.Ptr(int(score))
	}
	return identity
}
