package login

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// PasswordPolicy defines the requirements for password complexity
type PasswordPolicy struct {
	MinLength          int  `json:"min_length"`
	MaxLength          int  `json:"max_length"`
	RequireUppercase   bool `json:"require_uppercase"`
	RequireLowercase   bool `json:"require_lowercase"`
	RequireDigit       bool `json:"require_digit"`
	RequireSpecialChar bool `json:"require_special_char"`
	MaxRepeatedChars   int  `json:"max_repeated_chars"`
}

// DefaultPasswordPolicy returns a default password policy
func DefaultPasswordPolicy() *PasswordPolicy {
	return &PasswordPolicy{
		MinLength:          8,
		MaxLength:          128,
		RequireUppercase:   true,
		RequireLowercase:   true,
		RequireDigit:       true,
		RequireSpecialChar: false,
		MaxRepeatedChars:   3,
	}
}

// Validate checks if the password policy is valid
func (p *PasswordPolicy) Validate() error {
	if p.MinLength < 1 {
		return fmt.Errorf("min_length must be at least 1, got %d", p.MinLength)
	}
	if p.MaxLength < p.MinLength {
		return fmt.Errorf("max_length (%d) must be >= min_length (%d)", p.MaxLength, p.MinLength)
	}
	return nil
}

var (
	uppercaseRe = regexp.MustCompile(`[A-Z]`)
	lowercaseRe = regexp.MustCompile(`[a-z]`)
	digitRe     = regexp.MustCompile(`[0-9]`)
	specialRe   = regexp.MustCompile(`[^a-zA-Z0-9]`)
)

// CheckPasswordComplexity verifies that a password meets the policy requirements
func (p *PasswordPolicy) CheckPasswordComplexity(password string) error {
	if len(password) < p.MinLength {
		return fmt.Errorf("password must be at least %d characters long", p.MinLength)
	}

	if p.MaxLength > 0 && len(password) > p.MaxLength {
		return fmt.Errorf("password cannot be longer than %d characters", p.MaxLength)
	}

	if p.RequireUppercase && !uppercaseRe.MatchString(password) {
		return errors.New("password must contain at least one uppercase letter")
	}

	if p.RequireLowercase && !lowercaseRe.MatchString(password) {
		return errors.New("password must contain at least one lowercase letter")
	}

	if p.RequireDigit && !digitRe.MatchString(password) {
		return errors.New("password must contain at least one digit")
	}

	if p.RequireSpecialChar && !specialRe.MatchString(password) {
		return errors.New("password must contain at least one special character")
	}

	if p.MaxRepeatedChars > 0 && hasRepeatedChars(password, p.MaxRepeatedChars+1) {
		return fmt.Errorf("password cannot contain more than %d consecutive repeated characters", p.MaxRepeatedChars)
	}

	return nil
}

func hasRepeatedChars(password string, run int) bool {
	for i := 0; i+run <= len(password); i++ {
		if strings.Count(password[i:i+run], string(password[i])) == run {
			return true
		}
	}
	return false
}
