package config

import (
	"net/netip"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// RateLimit allows Requests per Window for each client address.
type RateLimit struct {
	Requests int
	Window   time.Duration
}

// TrustedProxies are the peers whose forwarding headers are believed.
type TrustedProxies []netip.Prefix

// Contains reports whether addr belongs to a trusted proxy.
func (t TrustedProxies) Contains(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, prefix := range t {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

type Security struct{}

var _ SecurityConfig = Security{}

func (Security) GetAuthRateLimit() RateLimit {
	return RateLimit{Requests: 5, Window: 15 * time.Minute}
}

func (Security) GetPublicRateLimit() RateLimit {
	return RateLimit{Requests: 100, Window: 15 * time.Minute}
}

// GetTrustedProxies reads TRUSTED_PROXIES, a comma separated list of
// addresses or CIDR ranges. Unset means forwarding headers are ignored.
func (Security) GetTrustedProxies() TrustedProxies {
	var proxies TrustedProxies
	for _, entry := range strings.Split(GetEnv("TRUSTED_PROXIES", ""), ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		prefix, err := parseProxy(entry)
		if err != nil {
			log.Warn().Err(err).Str("entry", entry).Msg("ignoring invalid TRUSTED_PROXIES entry")
			continue
		}
		proxies = append(proxies, prefix)
	}
	return proxies
}

func parseProxy(entry string) (netip.Prefix, error) {
	if strings.Contains(entry, "/") {
		prefix, err := netip.ParsePrefix(entry)
		return prefix.Masked(), err
	}
	addr, err := netip.ParseAddr(entry)
	if err != nil {
		return netip.Prefix{}, err
	}
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}
