package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config interface {
	EnvConfig
	CorsConfig
	AuthConfig
	KakaoConfig
	SecurityConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetBaseURL() string
	GetFrontendURL() string
	GetLogLevel() string
	GetDatabaseDSN() string
	GetRedisAddr() string
	GetRedisPassword() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type AuthConfig interface {
	GetJWTSecret() string
	GetAccessTokenTTL() time.Duration
	GetRefreshTokenTTL() time.Duration
	GetSessionMaxAge() time.Duration
	GetAllowDevSocialLogin() bool
	GetLocalAdminEmail() string
	GetLocalAdminPassword() string
}

type KakaoConfig interface {
	GetKakaoClientID() string
	GetKakaoClientSecret() string
	GetKakaoRedirectURI() string
	GetKakaoScope() string
	GetKakaoAuthURL() string
	GetKakaoTokenURL() string
	GetKakaoProfileURL() string
	GetKakaoLogoutURL() string
	GetKakaoOIDCIssuer() string
	GetKakaoJWKSURL() string
	GetProviderTimeout() time.Duration
}

type SecurityConfig interface {
	GetAuthRateLimit() RateLimit
	GetPublicRateLimit() RateLimit
	GetTrustedProxies() TrustedProxies
}

type mainConfig struct {
	EnvVars
	Cors
	Auth
	Kakao
	Security
}

// New loads an optional .env file and returns the environment backed configuration.
func New() Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file loaded, using process environment")
	}
	return mainConfig{}
}
