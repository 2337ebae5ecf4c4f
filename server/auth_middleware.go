package server

import (
	"context"
	"net/http"

	"github.com/jrsteele09/oamanage-auth/auth"
	"github.com/jrsteele09/oamanage-auth/internal/errors"
	"github.com/jrsteele09/oamanage-auth/sessions"
	"github.com/jrsteele09/oamanage-auth/users"
	"github.com/rs/zerolog/log"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyIdentity stores the resolved *users.Identity
	ContextKeyIdentity ContextKey = "identity"
	// ContextKeySessionID stores the session id from the session cookie
	ContextKeySessionID ContextKey = "session_id"
	// ContextKeySession stores the *sessions.Snapshot behind the cookie
	ContextKeySession ContextKey = "session"
)

// IdentityFromContext returns the identity put there by the auth middleware.
func IdentityFromContext(ctx context.Context) (*users.Identity, bool) {
	identity, ok := ctx.Value(ContextKeyIdentity).(*users.Identity)
	return identity, ok && identity != nil
}

func sessionFromContext(ctx context.Context) (string, *sessions.Snapshot) {
	sessionID, _ := ctx.Value(ContextKeySessionID).(string)
	snapshot, _ := ctx.Value(ContextKeySession).(*sessions.Snapshot)
	return sessionID, snapshot
}

// loadSession reads the session cookie and its snapshot. Unknown or expired
// sessions yield a nil snapshot.
func (s *Server) loadSession(r *http.Request) (string, *sessions.Snapshot) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return "", nil
	}
	snapshot, err := s.deps.Sessions.Get(r.Context(), cookie.Value)
	if err != nil {
		if !errors.Is(err, errors.ErrSessionNotFound) {
			log.Err(err).Msg("session lookup failed")
		}
		return cookie.Value, nil
	}
	return cookie.Value, snapshot
}

func (s *Server) authenticate(r *http.Request, require func(string, *sessions.Snapshot) (*users.Identity, error)) (*http.Request, error) {
	sessionID, snapshot := s.loadSession(r)
	identity, err := require(r.Header.Get("Authorization"), snapshot)

	ctx := context.WithValue(r.Context(), ContextKeySessionID, sessionID)
	ctx = context.WithValue(ctx, ContextKeySession, snapshot)
	if identity != nil {
		ctx = context.WithValue(ctx, ContextKeyIdentity, identity)
	}
	return r.WithContext(ctx), err
}

// OptionalAuth attaches the identity when one resolves and never rejects.
func (s *Server) OptionalAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r, _ = s.authenticate(r, s.deps.Resolver.Require)
		next(w, r)
	}
}

// RequireAuth answers 401 unless a bearer token or session identifies the caller.
func (s *Server) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r, err := s.authenticate(r, s.deps.Resolver.Require)
		if err != nil {
			writeError(w, http.StatusUnauthorized, codeUnauthorized, "Authentication required.")
			return
		}
		next(w, r)
	}
}

// RequireAdmin answers 401 for anonymous callers and 403 for non-admins.
func (s *Server) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r, err := s.authenticate(r, s.deps.Resolver.RequireAdmin)
		switch {
		case errors.Is(err, auth.ErrForbidden):
			writeError(w, http.StatusForbidden, codeForbidden, "Admin only endpoint.")
			return
		case err != nil:
			writeError(w, http.StatusUnauthorized, codeUnauthorized, "Admin privileges required.")
			return
		}
		next(w, r)
	}
}
