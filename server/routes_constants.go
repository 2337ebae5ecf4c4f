package server

import "github.com/jrsteele09/oamanage-auth/auth"

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	RouteIndex  = "/"
	RouteHealth = "/health"

	// Provider login
	RouteKakaoLogin    = "/auth/kakao"
	RouteKakaoCallback = auth.CallbackPath

	// Session & token routes
	RouteAuthMe      = "/auth/me"
	RouteAuthLogout  = "/auth/logout"
	RouteSocialLogin = "/auth/social/{provider}"
	RouteRefresh     = "/auth/refresh"

	// User routes
	RouteUsersMe = "/users/me"

	// Admin routes
	RouteAdminIdentity = "/admin/identities/{id}"

	RouteMetrics = "/metrics"
)
