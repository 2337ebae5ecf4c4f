package server

import (
	"net/http"

	"github.com/jrsteele09/oamanage-auth/auth"
	"github.com/jrsteele09/oamanage-auth/oauth2"
	"github.com/jrsteele09/oamanage-auth/token"
	"github.com/jrsteele09/oamanage-auth/users"
	"github.com/rs/zerolog/log"
)

type callbackSuccess struct {
	Success       bool                  `json:"success"`
	User          *users.Identity       `json:"user"`
	ProviderToken *oauth2.TokenResponse `json:"providerToken"`
	Tokens        *token.Pair           `json:"tokens,omitempty"`
	Redirect      string                `json:"redirect"`
}

type callbackFailure struct {
	Success      bool   `json:"success"`
	Error        string `json:"error"`
	Message      string `json:"message"`
	Reason       string `json:"reason,omitempty"`
	AuthorizeURL string `json:"authorizeUrl,omitempty"`
}

// KakaoLoginHandler sends the browser to the provider's authorization page.
func (s *Server) KakaoLoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, s.deps.Callback.AuthorizationURL(getScheme(r), r.Host), http.StatusFound)
	}
}

// KakaoCallbackHandler completes the provider login. Callers sending
// Accept: application/json get a JSON body, browsers get redirects.
func (s *Server) KakaoCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		asJSON := wantsJSON(r)
		result := s.deps.Callback.HandleCallback(r.Context(), auth.CallbackRequest{
			Code:             r.FormValue("code"),
			Error:            r.FormValue("error"),
			ErrorDescription: r.FormValue("error_description"),
			Scheme:           getScheme(r),
			Host:             r.Host,
			WantsJSON:        asJSON,
		})
		s.deps.Metrics.CallbackOutcomes.WithLabelValues(string(result.Outcome), result.Reason).Inc()

		switch result.Outcome {
		case auth.OutcomeSuccess:
			s.setSessionCookie(w, r, result.SessionID)
			if !asJSON {
				http.Redirect(w, r, result.RedirectTarget, http.StatusFound)
				return
			}
			writeJSON(w, http.StatusOK, callbackSuccess{
				Success:       true,
				User:          result.Identity,
				ProviderToken: result.ProviderToken,
				Tokens:        result.Tokens,
				Redirect:      result.RedirectTarget,
			})

		case auth.OutcomeReauth:
			if !asJSON {
				http.Redirect(w, r, result.AuthorizeURL, http.StatusFound)
				return
			}
			writeJSON(w, http.StatusUnauthorized, callbackFailure{
				Error:        codeReauthRequired,
				Message:      "Provider authorization has to be granted again.",
				Reason:       result.Reason,
				AuthorizeURL: result.AuthorizeURL,
			})

		default:
			reason := callbackErrorReason(result)
			if !asJSON {
				http.Redirect(w, r, s.loginErrorURL(reason), http.StatusFound)
				return
			}
			status, message := callbackFailureStatus(result)
			writeJSON(w, status, callbackFailure{Error: codeLoginFailed, Message: message, Reason: reason})
		}

		log.Debug().Str("outcome", string(result.Outcome)).Str("reason", result.Reason).Msg("callback handled")
	}
}

// callbackErrorReason is the value passed to the frontend login page.
func callbackErrorReason(result *auth.CallbackResult) string {
	switch result.Outcome {
	case auth.OutcomeCancelled, auth.OutcomeNoCode:
		return string(result.Outcome)
	}
	if result.Reason == "" {
		return auth.ReasonAuthenticationFailed
	}
	return result.Reason
}

func callbackFailureStatus(result *auth.CallbackResult) (int, string) {
	switch {
	case result.Outcome == auth.OutcomeCancelled:
		return http.StatusBadRequest, "Login was cancelled."
	case result.Outcome == auth.OutcomeNoCode:
		return http.StatusBadRequest, "Authorization code is missing."
	case result.Reason == string(oauth2.ReasonRateLimited):
		return http.StatusTooManyRequests, "The provider is busy, please try again later."
	case result.Reason == string(oauth2.ReasonUpstreamError), result.Reason == string(oauth2.ReasonProfileFetchError):
		return http.StatusBadGateway, "The provider could not complete the login."
	default:
		return http.StatusInternalServerError, "Authentication failed."
	}
}
