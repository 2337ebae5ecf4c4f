package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// CallbackOutcomes counts OAuth callbacks by outcome (success, reauth, failed, cancelled, no_code).
	CallbackOutcomes *prometheus.CounterVec

	// ProviderCalls counts upstream calls by call (token, profile, logout) and result.
	ProviderCalls *prometheus.CounterVec

	// TokenRefreshes counts refresh attempts by result (rotated, rejected, error).
	TokenRefreshes *prometheus.CounterVec

	// BreakerState is 1 while the provider circuit breaker is open.
	BreakerState *prometheus.GaugeVec
}

// New registers the service metrics with reg. A nil reg uses a private
// registry, which keeps tests from colliding on the default one.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		CallbackOutcomes: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "auth_callback_outcomes_total",
			Help: "OAuth callback results by outcome and reason.",
		}, []string{"outcome", "reason"}),

		ProviderCalls: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "auth_provider_calls_total",
			Help: "Calls made to the identity provider.",
		}, []string{"call", "result"}),

		TokenRefreshes: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "auth_token_refreshes_total",
			Help: "Refresh token exchanges by result.",
		}, []string{"result"}),

		BreakerState: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "auth_provider_breaker_open",
			Help: "Provider circuit breaker state (0=closed or half-open, 1=open).",
		}, []string{"provider"}),
	}
}
