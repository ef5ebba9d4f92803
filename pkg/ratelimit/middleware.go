package ratelimit

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/jwtauth/v5"

	"github.com/averly/authcore/pkg/errors"
)

// Config holds rate limiting configuration.
type Config struct {
	GlobalEnabled    bool
	GlobalCapacity   int
	GlobalRefillRate float64 // requests per second

	PerIPEnabled    bool
	PerIPCapacity   int
	PerIPRefillRate float64

	// Per-account limits apply to authenticated requests only.
	PerAccountEnabled    bool
	PerAccountCapacity   int
	PerAccountRefillRate float64

	// EndpointLimits are keyed "METHOD /path" and checked per client IP.
	EndpointLimits map[string]EndpointLimit

	// How long to keep idle buckets in memory.
	BucketTTL time.Duration
}

// EndpointLimit defines the budget for a single endpoint.
type EndpointLimit struct {
	Capacity   int
	RefillRate float64
}

// DefaultConfig returns the default limits. Endpoint limits are left to the
// caller since they depend on route prefixes.
func DefaultConfig() *Config {
	return &Config{
		GlobalEnabled:    true,
		GlobalCapacity:   1000,
		GlobalRefillRate: 1000.0 / 60.0,

		PerIPEnabled:    true,
		PerIPCapacity:   100,
		PerIPRefillRate: 100.0 / 60.0,

		PerAccountEnabled:    true,
		PerAccountCapacity:   200,
		PerAccountRefillRate: 200.0 / 60.0,

		BucketTTL:      time.Hour,
		EndpointLimits: make(map[string]EndpointLimit),
	}
}

// Middleware applies the configured limits to incoming requests.
type Middleware struct {
	config           *Config
	globalLimiter    *Limiter
	ipLimiter        *Limiter
	accountLimiter   *Limiter
	endpointLimiters map[string]*Limiter
}

func NewMiddleware(config *Config) *Middleware {
	if config == nil {
		config = DefaultConfig()
	}

	m := &Middleware{
		config:           config,
		endpointLimiters: make(map[string]*Limiter),
	}
	if config.GlobalEnabled {
		m.globalLimiter = NewLimiter(config.GlobalCapacity, config.GlobalRefillRate, config.BucketTTL)
	}
	if config.PerIPEnabled {
		m.ipLimiter = NewLimiter(config.PerIPCapacity, config.PerIPRefillRate, config.BucketTTL)
	}
	if config.PerAccountEnabled {
		m.accountLimiter = NewLimiter(config.PerAccountCapacity, config.PerAccountRefillRate, config.BucketTTL)
	}
	for endpoint, limit := range config.EndpointLimits {
		m.endpointLimiters[endpoint] = NewLimiter(limit.Capacity, limit.RefillRate, config.BucketTTL)
	}
	return m
}

// Handler returns the middleware handler.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.globalLimiter != nil && !m.globalLimiter.Allow("global") {
			m.rejected(w, r, "global")
			return
		}

		ip := clientIP(r)
		if m.ipLimiter != nil && ip != "" && !m.ipLimiter.Allow(ip) {
			m.rejected(w, r, "ip")
			return
		}

		accountID := accountIDFromToken(r)
		if m.accountLimiter != nil && accountID != "" && !m.accountLimiter.Allow(accountID) {
			m.rejected(w, r, "account")
			return
		}

		endpointKey := r.Method + " " + r.URL.Path
		if limiter, ok := m.endpointLimiters[endpointKey]; ok {
			if !limiter.Allow(ip + ":" + endpointKey) {
				m.rejected(w, r, "endpoint")
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) rejected(w http.ResponseWriter, r *http.Request, limitType string) {
	slog.Warn("Rate limit exceeded",
		"type", limitType,
		"ip", clientIP(r),
		"path", r.URL.Path,
		"method", r.Method,
	)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", "60")
	w.WriteHeader(http.StatusTooManyRequests)
	fmt.Fprintf(w, `{"code":%q,"message":"Too many requests. Please try again later."}`, errors.ErrCodeRateLimitExceeded)
}

// clientIP extracts the client IP, preferring proxy headers over RemoteAddr.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		return strings.TrimSpace(ips[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}

// accountIDFromToken reads the subject from a verified JWT in the request
// context, or "" for unauthenticated requests.
func accountIDFromToken(r *http.Request) string {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil || claims == nil {
		return ""
	}
	if sub, ok := claims["sub"].(string); ok {
		return sub
	}
	return ""
}
