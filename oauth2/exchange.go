// Package oauth2 drives the provider side of the authorization-code flow:
// building the authorization URL, exchanging codes and fetching profiles.
//
// Provider outcomes are reported as typed errors. *ReauthRequired means the
// browser must be sent back to the provider (its AuthorizeURL is always set),
// *Failed means the call should be reported and may be retried later. The
// exchange never retries on its own.
package oauth2

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/oamanage-auth/internal/errors"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	xoauth2 "golang.org/x/oauth2"
)

const (
	DefaultTimeout = 5 * time.Second
	maxBodySize    = 1 << 20
)

// throttlingCodes are token endpoint error codes treated like HTTP 429.
var throttlingCodes = map[string]struct{}{
	"rate_limit_exceeded": {},
	"slow_down":           {},
	"too_many_requests":   {},
}

var errServerStatus = stderrors.New("provider returned a server error")

type Config struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	ProfileURL   string
	LogoutURL    string
	Scopes       []string
	Timeout      time.Duration
}

// IDTokenVerifier is satisfied by *oidc.IDTokenVerifier.
type IDTokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*oidc.IDToken, error)
}

// Observer receives the result of every provider call, e.g. for metrics.
type Observer func(call, result string)

type Exchange struct {
	config        Config
	oauthConfig   xoauth2.Config
	httpClient    *http.Client
	timeout       time.Duration
	breaker       *gobreaker.CircuitBreaker
	verifier      IDTokenVerifier
	observe       Observer
	onBreakerOpen func(open bool)
}

type Option func(*Exchange)

func WithHTTPClient(client *http.Client) Option {
	return func(e *Exchange) {
		e.httpClient = client
	}
}

// WithIDTokenVerifier checks id_tokens returned by the token endpoint.
func WithIDTokenVerifier(verifier IDTokenVerifier) Option {
	return func(e *Exchange) {
		e.verifier = verifier
	}
}

func WithObserver(observer Observer) Option {
	return func(e *Exchange) {
		e.observe = observer
	}
}

// WithBreakerObserver is told whenever the circuit breaker opens or closes.
func WithBreakerObserver(fn func(open bool)) Option {
	return func(e *Exchange) {
		e.onBreakerOpen = fn
	}
}

// New validates cfg and returns an Exchange. Missing client or endpoint
// configuration fails with errors.ErrConfigMissing.
func New(cfg Config, options ...Option) (*Exchange, error) {
	for name, value := range map[string]string{
		"client id":   cfg.ClientID,
		"auth url":    cfg.AuthURL,
		"token url":   cfg.TokenURL,
		"profile url": cfg.ProfileURL,
	} {
		if strings.TrimSpace(value) == "" {
			return nil, errors.Wrapf(errors.ErrConfigMissing, "oauth2.New %s", name)
		}
	}

	e := &Exchange{
		config:  cfg,
		timeout: cfg.Timeout,
		oauthConfig: xoauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Scopes:       cfg.Scopes,
			Endpoint: xoauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: xoauth2.AuthStyleInParams,
			},
		},
	}
	for _, option := range options {
		option(e)
	}
	if e.httpClient == nil {
		e.httpClient = &http.Client{}
	}
	if e.timeout <= 0 {
		e.timeout = DefaultTimeout
	}
	if e.observe == nil {
		e.observe = func(string, string) {}
	}

	e.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "kakao",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("provider circuit breaker state change")
			if e.onBreakerOpen != nil {
				e.onBreakerOpen(to == gobreaker.StateOpen)
			}
		},
	})
	return e, nil
}

// AuthorizationURL returns the provider authorization page for redirectURI.
// The result depends only on configuration and redirectURI.
func (e *Exchange) AuthorizationURL(redirectURI string) string {
	cfg := e.oauthConfig
	cfg.RedirectURL = redirectURI
	return cfg.AuthCodeURL("")
}

// ExchangeCode trades an authorization code for provider tokens.
func (e *Exchange) ExchangeCode(ctx context.Context, code, redirectURI string) (*TokenResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cfg := e.oauthConfig
	cfg.RedirectURL = redirectURI
	recorder := e.recordingClient()

	var (
		token       *xoauth2.Token
		exchangeErr error
	)
	_, err := e.breaker.Execute(func() (interface{}, error) {
		token, exchangeErr = cfg.Exchange(context.WithValue(ctx, xoauth2.HTTPClient, recorder.client), code)
		switch {
		case recorder.last == nil:
			return nil, exchangeErr
		case recorder.last.status >= http.StatusInternalServerError:
			return nil, errServerStatus
		}
		return nil, nil
	})
	if recorder.last == nil {
		log.Err(err).Msg("provider token exchange failed")
		e.observe("token", string(ReasonUpstreamError))
		return nil, &Failed{Reason: ReasonUpstreamError, Err: err}
	}

	result, err := e.classifyToken(ctx, token, exchangeErr, recorder.last, redirectURI)
	e.observe("token", resultLabel(err))
	return result, err
}

func (e *Exchange) classifyToken(ctx context.Context, token *xoauth2.Token, exchangeErr error, raw *rawResponse, redirectURI string) (*TokenResponse, error) {
	var rejected *xoauth2.RetrieveError
	if stderrors.As(exchangeErr, &rejected) {
		return nil, e.classifyRejection(rejected, redirectURI)
	}
	if exchangeErr != nil {
		// A 2xx answer the library could not turn into a token.
		if !isJSONObject(raw.body) {
			log.Warn().Int("status", raw.status).Str("content_type", raw.contentType).Msg("provider token endpoint returned a non JSON body")
			return nil, e.reauth(ReasonUnexpectedResponse, redirectURI)
		}
		return nil, e.reauth(ReasonMissingToken, redirectURI)
	}

	result := &TokenResponse{
		AccessToken:           token.AccessToken,
		TokenType:             token.TokenType,
		RefreshToken:          token.RefreshToken,
		ExpiresIn:             int(token.ExpiresIn),
		RefreshTokenExpiresIn: extraInt(token, "refresh_token_expires_in"),
		Scope:                 extraString(token, "scope"),
		IDToken:               extraString(token, "id_token"),
	}
	if result.IDToken != "" && e.verifier != nil {
		idToken, err := e.verifier.Verify(ctx, result.IDToken)
		if err != nil {
			log.Err(err).Msg("provider id_token failed verification")
			return nil, &Failed{Reason: ReasonUpstreamError, Status: raw.status, Err: err}
		}
		result.Subject = idToken.Subject
	}
	return result, nil
}

// classifyRejection maps a token endpoint error answer to an outcome. A body
// that is not JSON wins over the status; an empty body is judged by status.
func (e *Exchange) classifyRejection(rejected *xoauth2.RetrieveError, redirectURI string) error {
	status := 0
	if rejected.Response != nil {
		status = rejected.Response.StatusCode
	}
	if len(bytes.TrimSpace(rejected.Body)) > 0 && !isJSONObject(rejected.Body) {
		log.Warn().Int("status", status).Msg("provider token endpoint returned a non JSON body")
		return e.reauth(ReasonUnexpectedResponse, redirectURI)
	}

	// The library only reads JSON error fields when the answer is labelled as JSON.
	errorCode := rejected.ErrorCode
	if errorCode == "" {
		var body struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(rejected.Body, &body)
		errorCode = body.Error
	}

	if _, throttled := throttlingCodes[errorCode]; throttled || status == http.StatusTooManyRequests {
		return &Failed{Reason: ReasonRateLimited, Status: status}
	}
	if status == http.StatusUnauthorized || errorCode == "invalid_grant" {
		return e.reauth(ReasonExpiredGrant, redirectURI)
	}
	log.Warn().Int("status", status).Str("error", errorCode).Str("error_description", rejected.ErrorDescription).Msg("provider token endpoint rejected the exchange")
	return &Failed{Reason: ReasonUpstreamError, Status: status, Err: rejected}
}

func isJSONObject(body []byte) bool {
	var object map[string]any
	return json.Unmarshal(body, &object) == nil && object != nil
}

func extraString(token *xoauth2.Token, key string) string {
	value, _ := token.Extra(key).(string)
	return value
}

func extraInt(token *xoauth2.Token, key string) int {
	switch value := token.Extra(key).(type) {
	case float64:
		return int(value)
	case string:
		n, _ := strconv.Atoi(value)
		return n
	}
	return 0
}

func (e *Exchange) reauth(reason ReauthReason, redirectURI string) *ReauthRequired {
	return &ReauthRequired{Reason: reason, AuthorizeURL: e.AuthorizationURL(redirectURI)}
}

type rawResponse struct {
	status      int
	contentType string
	body        []byte
}

func (r *rawResponse) ok() bool {
	return r.status >= 200 && r.status < 300
}

// tokenRecorder is a client that keeps the last token endpoint answer, so a
// 2xx body the library rejects can still be inspected.
type tokenRecorder struct {
	client *http.Client
	last   *rawResponse
}

func (e *Exchange) recordingClient() *tokenRecorder {
	recorder := &tokenRecorder{}
	client := *e.httpClient
	base := client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	client.Transport = roundTripFunc(func(req *http.Request) (*http.Response, error) {
		resp, err := base.RoundTrip(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		if err != nil {
			return nil, err
		}
		recorder.last = &rawResponse{status: resp.StatusCode, contentType: resp.Header.Get("Content-Type"), body: body}
		resp.Body = io.NopCloser(bytes.NewReader(body))
		return resp, nil
	})
	recorder.client = &client
	return recorder
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// send performs req through the circuit breaker. Only transport errors and
// 5xx answers count against the breaker; a 5xx response is still returned
// so that its body can be classified.
func (e *Exchange) send(client *http.Client, req *http.Request) (*rawResponse, error) {
	out, err := e.breaker.Execute(func() (interface{}, error) {
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		if err != nil {
			return nil, err
		}
		raw := &rawResponse{status: resp.StatusCode, contentType: resp.Header.Get("Content-Type"), body: body}
		if resp.StatusCode >= http.StatusInternalServerError {
			return raw, errServerStatus
		}
		return raw, nil
	})
	if raw, ok := out.(*rawResponse); ok && raw != nil {
		return raw, nil
	}
	return nil, err
}

func resultLabel(err error) string {
	var reauth *ReauthRequired
	var failed *Failed
	switch {
	case err == nil:
		return "success"
	case stderrors.As(err, &reauth):
		return string(reauth.Reason)
	case stderrors.As(err, &failed):
		return string(failed.Reason)
	}
	return "error"
}
