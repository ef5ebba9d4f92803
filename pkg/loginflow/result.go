package loginflow

import (
	"time"

	"github.com/google/uuid"

	"github.com/averly/authcore/pkg/errors"
	"github.com/averly/authcore/pkg/twofa"
)

// UserInfo is the account payload returned on a completed authentication.
type UserInfo struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email"`
	TenantID uuid.UUID `json:"tenant_id"`
}

// Result is the tagged outcome of a flow operation. Exactly one of three
// shapes applies: success (Success true, token present), pending second
// factor (RequiresTwoFA true, challenge token present), or failure
// (ErrorResponse set).
type Result struct {
	Success       bool
	RequiresTwoFA bool
	Message       string

	// Token is the session token on success, or the challenge token when
	// a second factor is still pending.
	Token        string
	TokenExpires time.Time

	AvailableMethods []string
	User             *UserInfo

	// Second-factor verification detail, when the method provides it.
	AttemptsRemaining int
	MethodLocked      bool

	ErrorResponse *Error
}

// Error is the user-safe error payload of a failed flow operation.
type Error struct {
	Code    errors.ErrorCode
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func successResult(message, token string, expires time.Time, user *UserInfo) Result {
	return Result{
		Success:           true,
		Message:           message,
		Token:             token,
		TokenExpires:      expires,
		User:              user,
		AttemptsRemaining: twofa.AttemptsUnlimited,
	}
}

func require2FAResult(token string, expires time.Time, methods []string) Result {
	return Result{
		RequiresTwoFA:     true,
		Message:           "Second factor verification required",
		Token:             token,
		TokenExpires:      expires,
		AvailableMethods:  methods,
		AttemptsRemaining: twofa.AttemptsUnlimited,
	}
}
