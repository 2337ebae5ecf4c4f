package auth

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/jrsteele09/oamanage-auth/oauth2"
	"github.com/jrsteele09/oamanage-auth/sessions"
	"github.com/jrsteele09/oamanage-auth/token"
	"github.com/jrsteele09/oamanage-auth/users"
	"github.com/rs/zerolog/log"
)

// CallbackPath is where the provider sends the browser back to.
const CallbackPath = "/auth/kakao/callback"

// Outcome of a provider callback.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeNoCode    Outcome = "no_code"
	OutcomeReauth    Outcome = "reauth_required"
	OutcomeFailed    Outcome = "failed"
)

// ReasonAuthenticationFailed covers internal errors after the provider succeeded.
const ReasonAuthenticationFailed = "authentication_failed"

// ProviderExchange is the provider side of the authorization-code flow.
type ProviderExchange interface {
	AuthorizationURL(redirectURI string) string
	ExchangeCode(ctx context.Context, code, redirectURI string) (*oauth2.TokenResponse, error)
	FetchProfile(ctx context.Context, accessToken, redirectURI string) (*oauth2.Profile, error)
}

// CallbackRequest carries what the orchestrator needs from the HTTP request.
type CallbackRequest struct {
	Code             string
	Error            string
	ErrorDescription string
	Scheme           string
	Host             string
	WantsJSON        bool
}

type CallbackResult struct {
	Outcome Outcome
	// Reason is the ReauthReason or FailureReason behind a non-success outcome.
	Reason         string
	AuthorizeURL   string
	RedirectTarget string
	Identity       *users.Identity
	SessionID      string
	ProviderToken  *oauth2.TokenResponse
	// Tokens is only issued for callers asking for JSON.
	Tokens *token.Pair
}

type CallbackService struct {
	exchange      ProviderExchange
	users         users.Repo
	sessions      sessions.Repo
	issuer        *token.Issuer
	redirectURI   string
	frontendURL   string
	sessionMaxAge time.Duration
	nowFunc       func() time.Time
}

type CallbackOption func(*CallbackService)

// WithRedirectURI pins the callback URL instead of deriving it per request.
func WithRedirectURI(uri string) CallbackOption {
	return func(s *CallbackService) {
		s.redirectURI = uri
	}
}

func WithFrontendURL(url string) CallbackOption {
	return func(s *CallbackService) {
		s.frontendURL = url
	}
}

func WithSessionMaxAge(maxAge time.Duration) CallbackOption {
	return func(s *CallbackService) {
		s.sessionMaxAge = maxAge
	}
}

func WithNowFunc(now func() time.Time) CallbackOption {
	return func(s *CallbackService) {
		s.nowFunc = now
	}
}

func NewCallbackService(exchange ProviderExchange, userRepo users.Repo, sessionRepo sessions.Repo, issuer *token.Issuer, options ...CallbackOption) *CallbackService {
	s := &CallbackService{
		exchange:      exchange,
		users:         userRepo,
		sessions:      sessionRepo,
		issuer:        issuer,
		frontendURL:   "http://localhost:3000",
		sessionMaxAge: 7 * 24 * time.Hour,
		nowFunc:       time.Now,
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// RedirectURI is the configured callback URL, or one built from the request.
func (s *CallbackService) RedirectURI(scheme, host string) string {
	if s.redirectURI != "" {
		return s.redirectURI
	}
	if scheme == "" {
		scheme = "http"
	}
	return scheme + "://" + host + CallbackPath
}

// AuthorizationURL is where a login starts.
func (s *CallbackService) AuthorizationURL(scheme, host string) string {
	return s.exchange.AuthorizationURL(s.RedirectURI(scheme, host))
}

// FrontendURL is the browser destination after a successful login.
func (s *CallbackService) FrontendURL() string {
	return s.frontendURL
}

// HandleCallback runs the callback sequence. It never returns a bare error;
// every path is described by the returned result.
func (s *CallbackService) HandleCallback(ctx context.Context, req CallbackRequest) *CallbackResult {
	if req.Error != "" {
		log.Info().Str("error", req.Error).Str("description", req.ErrorDescription).Msg("provider login cancelled")
		return &CallbackResult{Outcome: OutcomeCancelled, Reason: req.Error}
	}
	if req.Code == "" {
		return &CallbackResult{Outcome: OutcomeNoCode}
	}

	redirectURI := s.RedirectURI(req.Scheme, req.Host)

	providerToken, err := s.exchange.ExchangeCode(ctx, req.Code, redirectURI)
	if err != nil {
		return providerResult(err)
	}

	profile, err := s.exchange.FetchProfile(ctx, providerToken.AccessToken, redirectURI)
	if err != nil {
		return providerResult(err)
	}
	if providerToken.Subject != "" && providerToken.Subject != profile.ExternalID {
		log.Warn().Str("subject", providerToken.Subject).Str("profile", profile.ExternalID).Msg("id_token subject does not match profile")
		return &CallbackResult{Outcome: OutcomeFailed, Reason: string(oauth2.ReasonUpstreamError)}
	}

	identity, err := s.users.UpsertExternal(ctx, identityFromProfile(profile))
	if err != nil {
		log.Err(err).Msg("callback identity upsert failed")
		return &CallbackResult{Outcome: OutcomeFailed, Reason: ReasonAuthenticationFailed}
	}

	snapshot := sessions.NewSnapshot(identity, users.ProviderKakao, providerToken.AccessToken, s.nowFunc(), s.sessionMaxAge)
	sessionID, err := s.sessions.Create(ctx, snapshot)
	if err != nil {
		log.Err(err).Int64("identity_id", identity.ID).Msg("callback session write failed")
		return &CallbackResult{Outcome: OutcomeFailed, Reason: ReasonAuthenticationFailed}
	}

	result := &CallbackResult{
		Outcome:        OutcomeSuccess,
		RedirectTarget: s.frontendURL,
		Identity:       identity,
		SessionID:      sessionID,
		ProviderToken:  providerToken,
	}
	if req.WantsJSON && s.issuer != nil {
		result.Tokens, err = s.issuer.IssueTokenPair(ctx, identity)
		if err != nil {
			log.Err(err).Int64("identity_id", identity.ID).Msg("callback token issue failed")
			_ = s.sessions.Delete(ctx, sessionID)
			return &CallbackResult{Outcome: OutcomeFailed, Reason: ReasonAuthenticationFailed}
		}
	}

	log.Info().Int64("identity_id", identity.ID).Msg("provider login succeeded")
	return result
}

func providerResult(err error) *CallbackResult {
	var reauth *oauth2.ReauthRequired
	if stderrors.As(err, &reauth) {
		return &CallbackResult{Outcome: OutcomeReauth, Reason: string(reauth.Reason), AuthorizeURL: reauth.AuthorizeURL}
	}
	var failed *oauth2.Failed
	if stderrors.As(err, &failed) {
		return &CallbackResult{Outcome: OutcomeFailed, Reason: string(failed.Reason)}
	}
	log.Err(err).Msg("unclassified provider error")
	return &CallbackResult{Outcome: OutcomeFailed, Reason: string(oauth2.ReasonUpstreamError)}
}

func identityFromProfile(profile *oauth2.Profile) *users.Identity {
	return &users.Identity{
		Provider:     users.ProviderKakao,
		ExternalID:   profile.ExternalID,
		Nickname:     profile.Nickname,
		Email:        profile.Email,
		ProfileImage: profile.ProfileImage,
		Role:         users.RoleUser,
	}
}
