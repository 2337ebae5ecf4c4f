package config_test

import (
	"net/netip"
	"testing"
	"time"

	"github.com/jrsteele09/oamanage-auth/internal/config"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	for _, v := range []string{"JWT_SECRET", "ACCESS_TOKEN_TTL", "REFRESH_TOKEN_TTL", "KAKAO_SCOPE", "FRONTEND_URL", "PORT"} {
		t.Setenv(v, "")
	}
	cfg := config.New()

	require.Equal(t, config.DefaultJWTSecret, cfg.GetJWTSecret())
	require.Equal(t, 15*time.Minute, cfg.GetAccessTokenTTL())
	require.Equal(t, 7*24*time.Hour, cfg.GetRefreshTokenTTL())
	require.Equal(t, "profile_nickname profile_image account_email", cfg.GetKakaoScope())
	require.Equal(t, "http://localhost:3000", cfg.GetFrontendURL())
	require.Equal(t, ":4000", cfg.GetPort())
}

func TestOverrides(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_TTL", "60")
	t.Setenv("REFRESH_TOKEN_TTL", "not-a-number")
	t.Setenv("FRONTEND_URL", "https://app.example.com/")
	t.Setenv("PORT", ":9000")
	cfg := config.New()

	require.Equal(t, time.Minute, cfg.GetAccessTokenTTL())
	require.Equal(t, 7*24*time.Hour, cfg.GetRefreshTokenTTL())
	require.Equal(t, "https://app.example.com", cfg.GetFrontendURL())
	require.Equal(t, ":9000", cfg.GetPort())
	require.True(t, cfg.GetAllowedOrigins().IsAllowedOrigin("https://app.example.com"))
}

func TestAllowedOriginsString(t *testing.T) {
	t.Setenv("FRONTEND_URL", "https://app.example.com")
	t.Setenv("CORS_ORIGINS", "https://b.example.com, https://a.example.com/")

	origins := config.New().GetAllowedOrigins()
	require.Equal(t, "https://a.example.com, https://app.example.com, https://b.example.com", origins.String())
}

func TestTrustedProxies(t *testing.T) {
	t.Setenv("TRUSTED_PROXIES", "")
	require.Empty(t, config.New().GetTrustedProxies())

	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.0.2.1, not-an-ip, ::1")
	proxies := config.New().GetTrustedProxies()
	require.Len(t, proxies, 3)

	for addr, trusted := range map[string]bool{
		"10.1.2.3":         true,
		"192.0.2.1":        true,
		"::ffff:192.0.2.1": true,
		"::1":              true,
		"192.0.2.2":        false,
		"203.0.113.9":      false,
	} {
		require.Equal(t, trusted, proxies.Contains(netip.MustParseAddr(addr)), addr)
	}
}
