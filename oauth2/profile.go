package oauth2

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
	xoauth2 "golang.org/x/oauth2"
)

// FetchProfile loads the provider user for accessToken. redirectURI is only
// used to build the authorization URL of a *ReauthRequired result.
func (e *Exchange) FetchProfile(ctx context.Context, accessToken, redirectURI string) (*Profile, error) {
	profile, err := e.fetchProfile(ctx, accessToken, redirectURI)
	e.observe("profile", resultLabel(err))
	return profile, err
}

func (e *Exchange) fetchProfile(ctx context.Context, accessToken, redirectURI string) (*Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.config.ProfileURL, nil)
	if err != nil {
		return nil, &Failed{Reason: ReasonProfileFetchError, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	raw, err := e.send(e.bearerClient(ctx, accessToken), req)
	if err != nil {
		log.Err(err).Msg("provider profile request failed")
		return nil, &Failed{Reason: ReasonProfileFetchError, Err: err}
	}

	if raw.status == http.StatusUnauthorized {
		return nil, e.reauth(ReasonInvalidToken, redirectURI)
	}
	if !raw.ok() {
		return nil, &Failed{Reason: ReasonProfileFetchError, Status: raw.status}
	}

	var user kakaoUser
	if err := json.Unmarshal(raw.body, &user); err != nil {
		return nil, &Failed{Reason: ReasonProfileFetchError, Status: raw.status, Err: err}
	}
	if user.missingConsent() {
		return nil, e.reauth(ReasonMissingConsent, redirectURI)
	}
	if user.ID == 0 {
		return nil, &Failed{Reason: ReasonProfileFetchError, Status: raw.status}
	}
	return user.profile(), nil
}

// Logout ends the provider session for accessToken. Failures are logged only.
func (e *Exchange) Logout(ctx context.Context, accessToken string) {
	if e.config.LogoutURL == "" || accessToken == "" {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.LogoutURL, nil)
	if err != nil {
		log.Err(err).Msg("provider logout request")
		return
	}

	raw, err := e.send(e.bearerClient(ctx, accessToken), req)
	switch {
	case err != nil:
		log.Warn().Err(err).Msg("provider logout failed")
		e.observe("logout", "error")
	case !raw.ok():
		log.Warn().Int("status", raw.status).Msg("provider logout rejected")
		e.observe("logout", "rejected")
	default:
		e.observe("logout", "success")
	}
}

// bearerClient wraps the configured client with an Authorization header for accessToken.
func (e *Exchange) bearerClient(ctx context.Context, accessToken string) *http.Client {
	ctx = context.WithValue(ctx, xoauth2.HTTPClient, e.httpClient)
	return xoauth2.NewClient(ctx, xoauth2.StaticTokenSource(&xoauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))
}
