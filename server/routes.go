package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) initRoutes() {
	s.RegisterRouteHandler("GET "+RouteIndex+"{$}", ChainMiddleware(s.IndexHandler(), s.APIMiddleware(s.OptionalAuth)...))
	s.RegisterRouteHandler("GET "+RouteHealth, ChainMiddleware(s.HealthHandler(), s.APIMiddleware()...))

	// Browser flow
	s.RegisterRouteHandler("GET "+RouteKakaoLogin, ChainMiddleware(s.KakaoLoginHandler(), s.BrowserMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteKakaoCallback, ChainMiddleware(s.KakaoCallbackHandler(), s.BrowserMiddleware()...))

	// Session & token API
	s.RegisterRouteHandler("GET "+RouteAuthMe, ChainMiddleware(s.MeHandler(), s.APIMiddleware(s.RequireAuth)...))
	s.RegisterRouteHandler("POST "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware(s.RequireAuth)...))
	s.RegisterRouteHandler("POST "+RouteSocialLogin, ChainMiddleware(s.SocialLoginHandler(), s.APIMiddleware(s.authLimiter.Middleware)...))
	s.RegisterRouteHandler("POST "+RouteRefresh, ChainMiddleware(s.RefreshHandler(), s.APIMiddleware(s.authLimiter.Middleware)...))

	// Users
	s.RegisterRouteHandler("GET "+RouteUsersMe, ChainMiddleware(s.GetProfileHandler(), s.APIMiddleware(s.RequireAuth)...))
	s.RegisterRouteHandler("PATCH "+RouteUsersMe, ChainMiddleware(s.UpdateProfileHandler(), s.APIMiddleware(s.RequireAuth)...))

	// Admin
	s.RegisterRouteHandler("GET "+RouteAdminIdentity, ChainMiddleware(s.AdminIdentityHandler(), s.APIMiddleware(s.RequireAdmin)...))

	s.RegisterRouteHandler("GET "+RouteMetrics, promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))

	// Preflight for every API route; the CORS middleware answers it.
	s.RegisterRouteHandler("OPTIONS /", ChainMiddleware(s.NotFoundHandler(), s.CorsMiddleware))
	s.RegisterRouteHandler("/", ChainMiddleware(s.NotFoundHandler(), s.LoggingMiddleware))
}

// NotFoundHandler answers any unmatched route.
func (s *Server) NotFoundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "Route not found")
	}
}
