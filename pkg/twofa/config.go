package twofa

import (
	"fmt"
	"time"
)

// Config holds configuration for the TwoFaService.
type Config struct {
	TOTPIssuer      string        `json:"totp_issuer"`       // Issuer shown in authenticator apps
	OTPCodeDigits   int           `json:"otp_code_digits"`   // Length of email/SMS codes (default: 6)
	OTPCodeExpiry   time.Duration `json:"otp_code_expiry"`   // Email/SMS code validity (default: 10m)
	OTPMaxAttempts  int           `json:"otp_max_attempts"`  // Bad codes before the channel locks (default: 5)
	OTPLockDuration time.Duration `json:"otp_lock_duration"` // Channel lock duration (default: 15m)
	BackupCodeCount int           `json:"backup_code_count"` // Codes per generation (default: 10)
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		TOTPIssuer:      "authcore",
		OTPCodeDigits:   6,
		OTPCodeExpiry:   10 * time.Minute,
		OTPMaxAttempts:  5,
		OTPLockDuration: 15 * time.Minute,
		BackupCodeCount: 10,
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.TOTPIssuer == "" {
		return fmt.Errorf("totp_issuer cannot be empty")
	}
	if c.OTPCodeDigits < 4 {
		return fmt.Errorf("otp_code_digits must be at least 4, got %d", c.OTPCodeDigits)
	}
	if c.OTPCodeExpiry <= 0 {
		return fmt.Errorf("otp_code_expiry must be positive, got %v", c.OTPCodeExpiry)
	}
	if c.OTPMaxAttempts < 1 {
		return fmt.Errorf("otp_max_attempts must be positive, got %d", c.OTPMaxAttempts)
	}
	if c.OTPLockDuration <= 0 {
		return fmt.Errorf("otp_lock_duration must be positive, got %v", c.OTPLockDuration)
	}
	if c.BackupCodeCount < 1 {
		return fmt.Errorf("backup_code_count must be positive, got %d", c.BackupCodeCount)
	}
	return nil
}
