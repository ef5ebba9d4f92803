package twofa

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Method kind constants. backup_code is a verification-only kind; it never
// has a Method row of its own.
const (
	MethodTOTP       = "totp"
	MethodEmailOTP   = "email_otp"
	MethodSMSOTP     = "sms_otp"
	MethodBackupCode = "backup_code"
)

// Common repository errors
var (
	ErrMethodNotFound = errors.New("second factor method not found")
)

// Method is one second-factor enrollment for an account. At most one row
// exists per (account, kind); disabling flips the flag, rows are never
// hard-deleted.
type Method struct {
	ID          uuid.UUID
	AccountID   uuid.UUID
	Kind        string
	Enabled     bool
	Secret      string // TOTP shared secret
	PhoneNumber string // sms_otp only
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// BackupCode is a single-use fallback credential. Only the one-way hash of
// the raw code is stored.
type BackupCode struct {
	ID        uuid.UUID
	AccountID uuid.UUID
	CodeHash  string
	Consumed  bool
	CreatedAt time.Time
}

// MethodRepository stores second-factor enrollments and backup codes.
//
// ReplaceBackupCodes must atomically invalidate all unconsumed codes for the
// account before inserting the new set. ConsumeBackupCode must be atomic so
// the same code can never be redeemed twice.
type MethodRepository interface {
	UpsertMethod(ctx context.Context, method Method) (Method, error)
	FindMethod(ctx context.Context, accountID uuid.UUID, kind string) (Method, error)
	FindMethods(ctx context.Context, accountID uuid.UUID) ([]Method, error)
	FindEnabledMethods(ctx context.Context, accountID uuid.UUID) ([]Method, error)
	SetMethodEnabled(ctx context.Context, accountID uuid.UUID, kind string, enabled bool) error

	ReplaceBackupCodes(ctx context.Context, accountID uuid.UUID, codeHashes []string) error
	FindActiveBackupCodes(ctx context.Context, accountID uuid.UUID) ([]BackupCode, error)
	ConsumeBackupCode(ctx context.Context, id uuid.UUID) (bool, error)
}

// ValidKind reports whether the kind names a method that can be enrolled.
func ValidKind(kind string) bool {
	switch kind {
	case MethodTOTP, MethodEmailOTP, MethodSMSOTP:
		return true
	}
	return false
}

// ValidVerifyKind reports whether the kind can be used in verification.
func ValidVerifyKind(kind string) bool {
	return ValidKind(kind) || kind == MethodBackupCode
}
