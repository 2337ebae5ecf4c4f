package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/oamanage-auth/auth"
	"github.com/jrsteele09/oamanage-auth/internal/config"
	"github.com/jrsteele09/oamanage-auth/internal/errors"
	"github.com/jrsteele09/oamanage-auth/internal/metrics"
	"github.com/jrsteele09/oamanage-auth/sessions"
	"github.com/jrsteele09/oamanage-auth/token"
	"github.com/jrsteele09/oamanage-auth/users"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// ProviderLogout ends the provider side of a session.
type ProviderLogout interface {
	Logout(ctx context.Context, accessToken string)
}

// Pinger is implemented by stores that can report readiness on /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

const healthCheckTimeout = 2 * time.Second

// Deps are the collaborators the HTTP layer drives.
type Deps struct {
	Users       users.Repo
	Sessions    sessions.Repo
	Callback    *auth.CallbackService
	Issuer      *token.Issuer
	Resolver    *auth.Resolver
	SocialLogin *auth.SocialLoginService
	Logout      ProviderLogout
	Metrics     *metrics.Metrics
	// Gatherer backs /metrics, normally prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
}

type Server struct {
	env           string // Environment (e.g., "DEV", "PROD")
	mux           *http.ServeMux
	routes        []string
	config        config.Config
	deps          Deps
	publicLimiter *rateLimiter
	authLimiter   *rateLimiter
}

func New(config config.Config, deps Deps) (*Server, error) {
	for name, missing := range map[string]bool{
		"users":    deps.Users == nil,
		"sessions": deps.Sessions == nil,
		"callback": deps.Callback == nil,
		"issuer":   deps.Issuer == nil,
		"resolver": deps.Resolver == nil,
	} {
		if missing {
			return nil, fmt.Errorf("[Server New] %s: %w", name, errors.ErrConfigMissing)
		}
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New(nil)
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	trusted := config.GetTrustedProxies()
	s := &Server{
		env:           config.GetEnv(),
		mux:           http.NewServeMux(),
		config:        config,
		deps:          deps,
		publicLimiter: newRateLimiter(config.GetPublicRateLimit(), trusted, "TOO_MANY_REQUESTS", "Too many requests, please try again later."),
		authLimiter:   newRateLimiter(config.GetAuthRateLimit(), trusted, "TOO_MANY_ATTEMPTS", "Too many login attempts."),
	}
	log.Info().Stringer("allowed_origins", config.GetAllowedOrigins()).Int("trusted_proxies", len(trusted)).Msg("http security settings")

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Info().Msgf("[%-19s] %s", displayMethod, path)
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
