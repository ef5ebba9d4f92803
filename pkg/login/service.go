package login

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/averly/authcore/pkg/accounts"
	"github.com/averly/authcore/pkg/audit"
	"github.com/averly/authcore/pkg/errors"
	"github.com/averly/authcore/pkg/utils"
)

// MessageInvalidCredentials is the single generic rejection message for
// unknown emails and wrong passwords. Both paths must return this exact
// string so callers cannot distinguish them.
const MessageInvalidCredentials = "invalid email or password"

// LoginService implements the password phase of authentication: credential
// verification plus the account lockout tracker.
type LoginService struct {
	repo        accounts.AccountRepository
	hasher      PasswordHasher
	auditLogger audit.Logger
	config      Config
}

// Option configures a LoginService
type Option func(*LoginService)

// WithHasher overrides the default bcrypt password hasher
func WithHasher(h PasswordHasher) Option {
	return func(s *LoginService) {
		s.hasher = h
	}
}

// WithConfig applies a Config to the LoginService
func WithConfig(config Config) Option {
	return func(s *LoginService) {
		s.config = config
	}
}

// NewLoginService creates a LoginService with default configuration.
func NewLoginService(repo accounts.AccountRepository, auditLogger audit.Logger, opts ...Option) *LoginService {
	s := &LoginService{
		repo:        repo,
		hasher:      NewBcryptHasher(),
		auditLogger: auditLogger,
		config:      DefaultConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the active service configuration.
func (s *LoginService) Config() Config {
	return s.config
}

// Hasher returns the active password hasher.
func (s *LoginService) Hasher() PasswordHasher {
	return s.hasher
}

// LockoutStatus reports whether an account is currently locked.
type LockoutStatus struct {
	Locked bool
	Until  time.Time
}

// FailureStatus reports the lockout state after a recorded failure.
type FailureStatus struct {
	Attempts int32
	Locked   bool
	Until    time.Time
}

// CheckLockout reports whether the account is locked. An expired lockout is
// cleared in place, resetting the failure counter. Storage errors during the
// clear are logged and the account treated as not locked.
func (s *LoginService) CheckLockout(ctx context.Context, account accounts.Account) LockoutStatus {
	if account.LockedUntil.IsZero() {
		return LockoutStatus{}
	}

	if time.Now().Before(account.LockedUntil) {
		return LockoutStatus{Locked: true, Until: account.LockedUntil}
	}

	// Lockout expired, clear it lazily
	if err := s.repo.ResetLockout(ctx, account.ID); err != nil {
		slog.Error("Failed to clear expired lockout", "err", err, "accountID", account.ID)
	}
	return LockoutStatus{}
}

// RecordFailure increments the failed attempt counter and locks the account
// when the threshold is crossed. Storage errors are logged and swallowed so a
// failed write never changes the credential rejection returned to the caller.
func (s *LoginService) RecordFailure(ctx context.Context, account accounts.Account) FailureStatus {
	attempts, err := s.repo.IncrementFailedAttempts(ctx, account.ID)
	if err != nil {
		slog.Error("Failed to record failed login attempt", "err", err, "accountID", account.ID)
		return FailureStatus{Attempts: account.FailedLoginAttempts}
	}

	if int(attempts) < s.config.MaxFailedAttempts {
		return FailureStatus{Attempts: attempts}
	}

	until := time.Now().Add(s.config.LockoutDuration)
	if err := s.repo.LockAccount(ctx, account.ID, until); err != nil {
		slog.Error("Failed to lock account", "err", err, "accountID", account.ID)
		return FailureStatus{Attempts: attempts}
	}
	return FailureStatus{Attempts: attempts, Locked: true, Until: until}
}

// RecordSuccess resets the lockout state and stamps the last login time.
// Storage errors are logged and swallowed.
func (s *LoginService) RecordSuccess(ctx context.Context, account accounts.Account) {
	if err := s.repo.ResetLockout(ctx, account.ID); err != nil {
		slog.Error("Failed to reset lockout state", "err", err, "accountID", account.ID)
	}
	if err := s.repo.RecordLogin(ctx, account.ID, time.Now()); err != nil {
		slog.Error("Failed to record login time", "err", err, "accountID", account.ID)
	}
}

// Login verifies an email/password pair, driving the lockout tracker and
// audit log. The checks run in a fixed order: account lookup, lockout,
// password, active flag. The inactive check stays after password
// verification so switching an account inactive never changes which
// credential message an attacker sees.
//
// Login does not record the success: the caller stamps it via RecordSuccess
// once the whole authentication completes, which may be only after a
// second factor has been verified.
func (s *LoginService) Login(ctx context.Context, email, password string) (accounts.Account, error) {
	email = utils.NormalizeEmail(email)

	account, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if err == accounts.ErrAccountNotFound {
			s.auditLogger.LogEvent(ctx, audit.Event{
				Email:     email,
				EventType: audit.EventUserNotFound,
				Status:    audit.StatusFailure,
			})
			return accounts.Account{}, errors.New(errors.ErrCodeInvalidCredentials, MessageInvalidCredentials)
		}
		return accounts.Account{}, errors.InternalWrap(err, "failed to look up account")
	}

	if status := s.CheckLockout(ctx, account); status.Locked {
		s.auditLogger.LogEvent(ctx, audit.Event{
			AccountID: account.ID,
			Email:     email,
			EventType: audit.EventAccountLocked,
			Status:    audit.StatusFailure,
		})
		return accounts.Account{}, errors.New(errors.ErrCodeAccountLocked, lockedMessage(s.config.LockoutDuration))
	}

	match, err := s.hasher.Verify(password, account.PasswordHash)
	if err != nil {
		return accounts.Account{}, errors.InternalWrap(err, "failed to verify password")
	}
	if !match {
		status := s.RecordFailure(ctx, account)
		s.auditLogger.LogEvent(ctx, audit.Event{
			AccountID: account.ID,
			Email:     email,
			EventType: audit.EventInvalidPassword,
			Status:    audit.StatusFailure,
			Details:   map[string]interface{}{"failed_attempts": status.Attempts},
		})
		// The attempt that crosses the threshold still reads as a credential
		// rejection; the lockout only surfaces on the next attempt.
		return accounts.Account{}, errors.New(errors.ErrCodeInvalidCredentials, MessageInvalidCredentials)
	}

	if !account.Active {
		s.auditLogger.LogEvent(ctx, audit.Event{
			AccountID: account.ID,
			Email:     email,
			EventType: audit.EventUserInactive,
			Status:    audit.StatusFailure,
		})
		return accounts.Account{}, errors.New(errors.ErrCodeAccountInactive, "account is inactive")
	}

	return account, nil
}

func lockedMessage(d time.Duration) string {
	return fmt.Sprintf("Your account has been temporarily locked. Please try again in %d minutes.", int(d/time.Minute))
}
