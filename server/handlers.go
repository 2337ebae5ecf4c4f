package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/jrsteele09/oamanage-auth/internal/errors"
	"github.com/jrsteele09/oamanage-auth/users"
	"github.com/rs/zerolog/log"
)

const maxBodyBytes = 1 << 20

// decodeBody reads a JSON request body into v. An empty body leaves v untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if err == io.EOF {
		return nil
	}
	return err
}

// IndexHandler lists the public endpoints.
func (s *Server) IndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		baseURL := s.config.GetBaseURL()
		_, authenticated := IdentityFromContext(r.Context())
		writeJSON(w, http.StatusOK, map[string]any{
			"success":       true,
			"message":       s.config.GetAppName() + " is running.",
			"authenticated": authenticated,
			"endpoints": map[string]string{
				"health":        baseURL + RouteHealth,
				"kakaoLogin":    baseURL + RouteKakaoLogin,
				"kakaoCallback": baseURL + RouteKakaoCallback,
				"currentUser":   baseURL + RouteAuthMe,
				"logout":        baseURL + RouteAuthLogout,
				"refresh":       baseURL + RouteRefresh,
			},
		})
	}
}

func (s *Server) HealthHandler() http.HandlerFunc {
	stores := map[string]any{"users": s.deps.Users, "sessions": s.deps.Sessions}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		status, code := "ok", http.StatusOK
		checks := map[string]string{}
		for name, store := range stores {
			pinger, ok := store.(Pinger)
			if !ok {
				continue
			}
			if err := pinger.Ping(ctx); err != nil {
				log.Err(err).Str("store", name).Msg("readiness check failed")
				checks[name] = "unavailable"
				status, code = "unavailable", http.StatusServiceUnavailable
				continue
			}
			checks[name] = "ok"
		}
		writeJSON(w, code, map[string]any{
			"status":    status,
			"checks":    checks,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// MeHandler returns the identity resolved for the caller.
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, _ := IdentityFromContext(r.Context())
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": identity})
	}
}

// LogoutHandler deletes the session, ends the provider session and revokes
// the caller's refresh token.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		identity, _ := IdentityFromContext(ctx)
		sessionID, snapshot := sessionFromContext(ctx)

		if snapshot != nil && snapshot.ProviderAccessToken != "" && s.deps.Logout != nil {
			s.deps.Logout.Logout(ctx, snapshot.ProviderAccessToken)
		}
		if sessionID != "" {
			if err := s.deps.Sessions.Delete(ctx, sessionID); err != nil && !errors.Is(err, errors.ErrSessionNotFound) {
				log.Err(err).Msg("session delete failed")
			}
		}
		if err := s.deps.Users.SaveRefreshToken(ctx, identity.ID, ""); err != nil && !errors.Is(err, errors.ErrNotFound) {
			log.Err(err).Int64("identity_id", identity.ID).Msg("refresh token revoke failed")
		}

		s.clearSessionCookie(w, r)
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Logged out."})
	}
}

type socialLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SocialLoginHandler signs in by provider and email and answers with a token pair.
func (s *Server) SocialLoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.deps.SocialLogin == nil {
			writeError(w, http.StatusNotFound, codeNotFound, "Social login is not enabled.")
			return
		}

		var body socialLoginRequest
		if err := decodeBody(w, r, &body); err != nil {
			writeError(w, http.StatusBadRequest, codeBadRequest, "Request body must be JSON.")
			return
		}

		provider := users.Provider(r.PathValue("provider"))
		result, err := s.deps.SocialLogin.Login(r.Context(), provider, body.Email, body.Password)
		switch {
		case errors.Is(err, errors.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, codeBadRequest, "A supported provider and an email are required.")
			return
		case errors.Is(err, errors.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, codeUnauthorized, "Invalid email or password.")
			return
		case errors.Is(err, errors.ErrProviderDisabled):
			writeError(w, http.StatusForbidden, codeForbidden, "Login with this provider is disabled.")
			return
		case err != nil:
			log.Err(err).Str("provider", string(provider)).Msg("social login failed")
			writeError(w, http.StatusInternalServerError, codeInternal, "Login failed.")
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"success":  true,
			"provider": provider,
			"user":     result.Identity,
			"tokens":   result.Tokens,
		})
	}
}

// RefreshHandler rotates a refresh token into a new token pair.
func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := decodeBody(w, r, &body); err != nil {
			writeError(w, http.StatusBadRequest, codeBadRequest, "Request body must be JSON.")
			return
		}
		refreshToken, ok := body["refreshToken"].(string)
		if !ok || refreshToken == "" {
			writeError(w, http.StatusBadRequest, codeBadRequest, "refreshToken is required.")
			return
		}

		tokens, err := s.deps.Issuer.Refresh(r.Context(), refreshToken)
		switch {
		case errors.Is(err, errors.ErrInvalidRefreshToken):
			s.deps.Metrics.TokenRefreshes.WithLabelValues("rejected").Inc()
			writeError(w, http.StatusUnauthorized, codeInvalidToken, "The token is not valid.")
			return
		case err != nil:
			s.deps.Metrics.TokenRefreshes.WithLabelValues("error").Inc()
			log.Err(err).Msg("token refresh failed")
			writeError(w, http.StatusInternalServerError, codeInternal, "Token refresh failed.")
			return
		}

		s.deps.Metrics.TokenRefreshes.WithLabelValues("rotated").Inc()
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "tokens": tokens})
	}
}
