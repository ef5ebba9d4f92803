package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"

	"github.com/averly/authcore/pkg/ratelimit"
)

// RouterConfig holds the dependencies needed to mount the routes.
type RouterConfig struct {
	Handle    Handle
	JWTAuth   *jwtauth.JWTAuth
	RateLimit *ratelimit.Middleware // optional
}

// NewJWTAuth builds the verifier for session tokens. The secret must match
// the one the token generator signs with.
func NewJWTAuth(secret string) *jwtauth.JWTAuth {
	return jwtauth.New("HS256", []byte(secret), nil)
}

// SetupRoutes mounts all authentication routes on the provided router.
func SetupRoutes(router chi.Router, cfg RouterConfig) {
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	if cfg.RateLimit != nil {
		router.Use(cfg.RateLimit.Handler)
	}

	// Public endpoints
	router.Post("/auth/login", cfg.Handle.Login)
	router.Post("/auth/logout", cfg.Handle.Logout)
	router.Post("/auth/2fa/verify", cfg.Handle.VerifyTwoFa)
	router.Post("/auth/2fa/resend", cfg.Handle.ResendTwoFaCode)
	router.Post("/auth/password/reset", cfg.Handle.RequestPasswordReset)
	router.Post("/auth/password/reset/confirm", cfg.Handle.ConfirmPasswordReset)

	// Authenticated endpoints
	router.Group(func(r chi.Router) {
		r.Use(jwtauth.Verifier(cfg.JWTAuth))
		r.Use(jwtauth.Authenticator(cfg.JWTAuth))
		r.Use(SessionAuthenticator)

		r.Get("/2fa/methods", cfg.Handle.ListTwoFaMethods)
		r.Delete("/2fa/methods/{method}", cfg.Handle.DisableTwoFaMethod)
		r.Post("/2fa/totp/setup", cfg.Handle.SetupTotp)
		r.Post("/2fa/totp/enable", cfg.Handle.EnableTotp)
		r.Post("/2fa/otp/setup", cfg.Handle.SetupOtpChannel)
		r.Post("/2fa/otp/enable", cfg.Handle.EnableOtpChannel)
		r.Post("/2fa/backup-codes", cfg.Handle.RegenerateBackupCodes)
		r.Put("/password", cfg.Handle.ChangePassword)
	})
}

// DefaultEndpointLimits returns the per-endpoint budgets for the abuse-prone
// public routes.
func DefaultEndpointLimits() map[string]ratelimit.EndpointLimit {
	return map[string]ratelimit.EndpointLimit{
		"POST /auth/login":          {Capacity: 10, RefillRate: 10.0 / 60.0},
		"POST /auth/2fa/verify":     {Capacity: 10, RefillRate: 10.0 / 60.0},
		"POST /auth/password/reset": {Capacity: 5, RefillRate: 5.0 / 60.0},
	}
}
