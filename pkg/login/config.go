package login

import (
	"fmt"
	"time"
)

// Config holds configuration for the LoginService.
// Use this struct for environment-based configuration or programmatic setup.
type Config struct {
	// Account lockout settings
	MaxFailedAttempts int           `json:"max_failed_attempts"` // Failed login attempts before lockout (default: 5)
	LockoutDuration   time.Duration `json:"lockout_duration"`    // Duration to lock account after max failures (default: 15m)

	// Password reset settings
	ResetTokenExpiration time.Duration `json:"reset_token_expiration"` // Reset token validity (default: 24h)
	ResetRequestLimit    int           `json:"reset_request_limit"`    // Reset requests per email in the window (default: 3)
	ResetRequestWindow   time.Duration `json:"reset_request_window"`   // Rolling window for the request limit (default: 1h)

	// Password policy (optional, defaults to DefaultPasswordPolicy)
	PasswordPolicy *PasswordPolicy `json:"password_policy,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		MaxFailedAttempts:    5,
		LockoutDuration:      15 * time.Minute,
		ResetTokenExpiration: 24 * time.Hour,
		ResetRequestLimit:    3,
		ResetRequestWindow:   time.Hour,
		PasswordPolicy:       DefaultPasswordPolicy(),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.MaxFailedAttempts < 1 {
		return fmt.Errorf("max_failed_attempts must be positive, got %d", c.MaxFailedAttempts)
	}

	if c.LockoutDuration <= 0 {
		return fmt.Errorf("lockout_duration must be positive, got %v", c.LockoutDuration)
	}

	if c.ResetTokenExpiration <= 0 {
		return fmt.Errorf("reset_token_expiration must be positive, got %v", c.ResetTokenExpiration)
	}

	if c.ResetRequestLimit < 1 {
		return fmt.Errorf("reset_request_limit must be positive, got %d", c.ResetRequestLimit)
	}

	if c.ResetRequestWindow <= 0 {
		return fmt.Errorf("reset_request_window must be positive, got %v", c.ResetRequestWindow)
	}

	if c.PasswordPolicy != nil {
		if err := c.PasswordPolicy.Validate(); err != nil {
			return fmt.Errorf("invalid password policy: %w", err)
		}
	}

	return nil
}
