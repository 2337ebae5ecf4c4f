package server

import (
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jrsteele09/oamanage-auth/internal/config"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// rateLimiter keeps one token bucket per client address. A bucket refills at
// Requests per Window and holds at most Requests tokens.
type rateLimiter struct {
	limit   config.RateLimit
	rate    rate.Limit
	trusted config.TrustedProxies
	code    string
	message string

	limiters    sync.Map // map[string]*rate.Limiter
	mu          sync.Mutex
	lastCleanup time.Time
}

func newRateLimiter(limit config.RateLimit, trusted config.TrustedProxies, code, message string) *rateLimiter {
	rl := &rateLimiter{
		limit:       limit,
		trusted:     trusted,
		code:        code,
		message:     message,
		lastCleanup: time.Now(),
	}
	if limit.Requests > 0 && limit.Window > 0 {
		rl.rate = rate.Limit(float64(limit.Requests) / limit.Window.Seconds())
	}
	return rl
}

func (rl *rateLimiter) getLimiter(key string) *rate.Limiter {
	if limiter, ok := rl.limiters.Load(key); ok {
		return limiter.(*rate.Limiter)
	}

	limiter := rate.NewLimiter(rl.rate, rl.limit.Requests)
	actual, _ := rl.limiters.LoadOrStore(key, limiter)

	rl.maybeCleanup()

	return actual.(*rate.Limiter)
}

// maybeCleanup drops buckets that have refilled completely, at most every five minutes.
func (rl *rateLimiter) maybeCleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if time.Since(rl.lastCleanup) < 5*time.Minute {
		return
	}
	rl.lastCleanup = time.Now()

	rl.limiters.Range(func(key, value any) bool {
		if value.(*rate.Limiter).Tokens() >= float64(rl.limit.Requests) {
			rl.limiters.Delete(key)
		}
		return true
	})
}

// Middleware rejects requests over the limit with 429 and a Retry-After header.
// A limiter without a positive limit lets everything through.
func (rl *rateLimiter) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if rl.rate == 0 {
			next(w, r)
			return
		}

		key := clientAddress(r, rl.trusted)
		limiter := rl.getLimiter(key)
		if !limiter.Allow() {
			reservation := limiter.Reserve()
			delay := reservation.Delay()
			reservation.Cancel()

			retryAfter := max(int(delay.Seconds()), 1)
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.limit.Requests))
			w.Header().Set("X-RateLimit-Window", rl.limit.Window.String())

			log.Warn().Str("client", key).Str("path", r.URL.Path).Int("retry_after", retryAfter).Msg("rate limit exceeded")
			writeError(w, http.StatusTooManyRequests, rl.code, rl.message)
			return
		}
		next(w, r)
	}
}

// clientAddress keys on the peer address. Forwarding headers are read only
// when the peer is a trusted proxy, and X-Forwarded-For is walked from the
// right so the first hop that is not a trusted proxy wins.
func clientAddress(r *http.Request, trusted config.TrustedProxies) string {
	peer := r.RemoteAddr
	if host, _, err := net.SplitHostPort(peer); err == nil {
		peer = host
	}
	peerAddr, err := netip.ParseAddr(peer)
	if err != nil || !trusted.Contains(peerAddr) {
		return peer
	}

	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		hopAddr, err := netip.ParseAddr(hop)
		if err != nil {
			break
		}
		if !trusted.Contains(hopAddr) {
			return hopAddr.Unmap().String()
		}
	}
	if realIP, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return realIP.Unmap().String()
	}
	return peer
}
