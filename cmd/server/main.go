package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/oamanage-auth/auth"
	"github.com/jrsteele09/oamanage-auth/internal/config"
	"github.com/jrsteele09/oamanage-auth/internal/metrics"
	"github.com/jrsteele09/oamanage-auth/oauth2"
	"github.com/jrsteele09/oamanage-auth/server"
	"github.com/jrsteele09/oamanage-auth/sessions"
	"github.com/jrsteele09/oamanage-auth/token"
	"github.com/jrsteele09/oamanage-auth/users"
	"github.com/jrsteele09/oamanage-auth/users/sqlitestore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Error running server")
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	configureLogging(c)
	displayAppname(c.GetAppName())

	ctx := context.Background()
	deps, closeAll, err := buildDeps(ctx, c)
	if err != nil {
		return err
	}
	defer closeAll()

	handler, err := server.New(c, deps)
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}

	httpServer := &http.Server{
		Addr:              c.GetPort(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() { serveErr <- listenAndServe(httpServer) }()

	select {
	case err := <-serveErr:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(httpServer)
}

func configureLogging(c config.Config) {
	zerolog.TimeFieldFormat = time.RFC3339
	level, err := zerolog.ParseLevel(strings.ToLower(c.GetLogLevel()))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if c.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

// buildDeps wires the stores, the provider exchange and the auth services.
// The returned func releases store connections.
func buildDeps(ctx context.Context, c config.Config) (server.Deps, func(), error) {
	var closers []func() error
	closeAll := func() {
		for _, closeFn := range closers {
			if err := closeFn(); err != nil {
				log.Warn().Err(err).Msg("close failed")
			}
		}
	}

	var userRepo users.Repo
	if dsn := c.GetDatabaseDSN(); dsn != "" {
		store, err := sqlitestore.New(dsn)
		if err != nil {
			return server.Deps{}, closeAll, fmt.Errorf("sqlitestore.New: %w", err)
		}
		closers = append(closers, store.Close)
		userRepo = store
		log.Info().Msg("identities stored in sqlite")
	} else {
		var seed []*users.Identity
		if c.GetEnv() == "DEV" {
			seed = users.DevelopmentSeed()
		}
		userRepo = users.NewInMemoryRepo(seed...)
		log.Warn().Msg("DATABASE_DSN not set, identities are kept in memory")
	}
	if err := auth.SeedLocalAdmin(ctx, userRepo, c.GetLocalAdminEmail(), c.GetLocalAdminPassword()); err != nil {
		closeAll()
		return server.Deps{}, func() {}, fmt.Errorf("auth.SeedLocalAdmin: %w", err)
	}

	var sessionRepo sessions.Repo
	if addr := c.GetRedisAddr(); addr != "" {
		client, err := sessions.NewRedisClient(addr, c.GetRedisPassword())
		if err != nil {
			closeAll()
			return server.Deps{}, func() {}, fmt.Errorf("sessions.NewRedisClient: %w", err)
		}
		closers = append(closers, client.Close)
		sessionRepo = sessions.NewRedisRepo(client)
		log.Info().Str("addr", addr).Msg("sessions stored in redis")
	} else {
		sessionRepo = sessions.NewInMemoryRepo()
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	exchangeOptions := []oauth2.Option{
		oauth2.WithObserver(func(call, result string) {
			m.ProviderCalls.WithLabelValues(call, result).Inc()
		}),
		oauth2.WithBreakerObserver(func(open bool) {
			state := 0.0
			if open {
				state = 1
			}
			m.BreakerState.WithLabelValues("kakao").Set(state)
		}),
	}
	if issuer := c.GetKakaoOIDCIssuer(); issuer != "" {
		verifier := oauth2.NewIDTokenVerifier(ctx, issuer, c.GetKakaoJWKSURL(), c.GetKakaoClientID())
		exchangeOptions = append(exchangeOptions, oauth2.WithIDTokenVerifier(verifier))
	}
	exchange, err := oauth2.New(oauth2.Config{
		ClientID:     c.GetKakaoClientID(),
		ClientSecret: c.GetKakaoClientSecret(),
		AuthURL:      c.GetKakaoAuthURL(),
		TokenURL:     c.GetKakaoTokenURL(),
		ProfileURL:   c.GetKakaoProfileURL(),
		LogoutURL:    c.GetKakaoLogoutURL(),
		Scopes:       strings.Fields(c.GetKakaoScope()),
		Timeout:      c.GetProviderTimeout(),
	}, exchangeOptions...)
	if err != nil {
		closeAll()
		return server.Deps{}, func() {}, fmt.Errorf("oauth2.New: %w", err)
	}

	secret := c.GetJWTSecret()
	if secret == config.DefaultJWTSecret && c.GetEnv() != "DEV" {
		log.Warn().Msg("JWT_SECRET is the built-in default, set a real secret")
	}
	issuer := token.New(userRepo, []byte(secret), token.WithTokenExpiry(c.GetAccessTokenTTL(), c.GetRefreshTokenTTL()))

	callbackOptions := []auth.CallbackOption{
		auth.WithFrontendURL(c.GetFrontendURL()),
		auth.WithSessionMaxAge(c.GetSessionMaxAge()),
	}
	if uri := c.GetKakaoRedirectURI(); uri != "" {
		callbackOptions = append(callbackOptions, auth.WithRedirectURI(uri))
	}

	return server.Deps{
		Users:       userRepo,
		Sessions:    sessionRepo,
		Callback:    auth.NewCallbackService(exchange, userRepo, sessionRepo, issuer, callbackOptions...),
		Issuer:      issuer,
		Resolver:    auth.NewResolver([]byte(secret)),
		SocialLogin: auth.NewSocialLoginService(userRepo, issuer, c.GetAllowDevSocialLogin()),
		Logout:      exchange,
		Metrics:     m,
		Gatherer:    prometheus.DefaultGatherer,
	}, closeAll, nil
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
