package config

import "time"

type Kakao struct{}

var _ KakaoConfig = Kakao{}

func (Kakao) GetKakaoClientID() string {
	return GetEnv("KAKAO_CLIENT_ID", "")
}

func (Kakao) GetKakaoClientSecret() string {
	return GetEnv("KAKAO_CLIENT_SECRET", "")
}

// GetKakaoRedirectURI is optional; the callback URL is derived from the request when unset.
func (Kakao) GetKakaoRedirectURI() string {
	return GetEnv("KAKAO_REDIRECT_URI", "")
}

func (Kakao) GetKakaoScope() string {
	return GetEnv("KAKAO_SCOPE", "profile_nickname profile_image account_email")
}

func (Kakao) GetKakaoAuthURL() string {
	return GetEnv("KAKAO_AUTH_URL", "https://kauth.kakao.com/oauth/authorize")
}

func (Kakao) GetKakaoTokenURL() string {
	return GetEnv("KAKAO_TOKEN_URL", "https://kauth.kakao.com/oauth/token")
}

func (Kakao) GetKakaoProfileURL() string {
	return GetEnv("KAKAO_PROFILE_URL", "https://kapi.kakao.com/v2/user/me")
}

func (Kakao) GetKakaoLogoutURL() string {
	return GetEnv("KAKAO_LOGOUT_URL", "https://kapi.kakao.com/v1/user/logout")
}

// GetKakaoOIDCIssuer turns on id_token verification when set (e.g. "https://kauth.kakao.com").
func (Kakao) GetKakaoOIDCIssuer() string {
	return GetEnv("KAKAO_OIDC_ISSUER", "")
}

func (Kakao) GetKakaoJWKSURL() string {
	return GetEnv("KAKAO_JWKS_URL", "https://kauth.kakao.com/.well-known/jwks.json")
}

func (Kakao) GetProviderTimeout() time.Duration {
	return GetSeconds("KAKAO_HTTP_TIMEOUT", 5*time.Second)
}
