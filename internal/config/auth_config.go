package config

import "time"

// DefaultJWTSecret is only acceptable for local development.
const DefaultJWTSecret = "change-this-secret"

type Auth struct{}

var _ AuthConfig = Auth{}

func (Auth) GetJWTSecret() string {
	return GetEnv("JWT_SECRET", DefaultJWTSecret)
}

func (Auth) GetAccessTokenTTL() time.Duration {
	return GetSeconds("ACCESS_TOKEN_TTL", 15*time.Minute)
}

func (Auth) GetRefreshTokenTTL() time.Duration {
	return GetSeconds("REFRESH_TOKEN_TTL", 7*24*time.Hour)
}

func (Auth) GetSessionMaxAge() time.Duration {
	return GetSeconds("SESSION_MAX_AGE", 7*24*time.Hour)
}

// GetAllowDevSocialLogin enables password-less social login for non-local providers.
func (Auth) GetAllowDevSocialLogin() bool {
	return GetBool("ALLOW_DEV_SOCIAL_LOGIN", EnvVars{}.GetEnv() == "DEV")
}

func (Auth) GetLocalAdminEmail() string {
	return GetEnv("LOCAL_ADMIN_EMAIL", "")
}

func (Auth) GetLocalAdminPassword() string {
	return GetEnv("LOCAL_ADMIN_PASSWORD", "")
}
