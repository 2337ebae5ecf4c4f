package server

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// SessionCookieName holds the opaque session id.
const SessionCookieName = "oamanage_session"

// Error codes returned in the "error" field of failed responses.
const (
	codeUnauthorized   = "UNAUTHORIZED"
	codeForbidden      = "FORBIDDEN"
	codeBadRequest     = "BAD_REQUEST"
	codeInvalidToken   = "INVALID_TOKEN"
	codeNotFound       = "NOT_FOUND"
	codeInternal       = "INTERNAL_ERROR"
	codeReauthRequired = "REAUTH_REQUIRED"
	codeLoginFailed    = "LOGIN_FAILED"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Err(err).Msg("writing json response")
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Success: false, Error: code, Message: message})
}

// wantsJSON reports whether the caller asked for a machine-readable response.
func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func (s *Server) setSessionCookie(w http.ResponseWriter, r *http.Request, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   int(s.config.GetSessionMaxAge() / time.Second),
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
	})
}

// loginErrorURL is the frontend login page carrying reason.
func (s *Server) loginErrorURL(reason string) string {
	return strings.TrimRight(s.deps.Callback.FrontendURL(), "/") + "/login?error=" + url.QueryEscape(reason)
}
