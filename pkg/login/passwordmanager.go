package login

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/averly/authcore/pkg/accounts"
	"github.com/averly/authcore/pkg/audit"
	"github.com/averly/authcore/pkg/errors"
	"github.com/averly/authcore/pkg/notification"
)

// PasswordManager handles password changes and the complexity policy.
type PasswordManager struct {
	repo                accounts.AccountRepository
	hasher              PasswordHasher
	policy              *PasswordPolicy
	auditLogger         audit.Logger
	notificationManager *notification.NotificationManager
}

// PasswordManagerOption configures a PasswordManager.
type PasswordManagerOption func(*PasswordManager)

// WithPasswordNotifications enables the changed-password confirmation
// email. Without it, changes are silent.
func WithPasswordNotifications(nm *notification.NotificationManager) PasswordManagerOption {
	return func(pm *PasswordManager) {
		pm.notificationManager = nm
	}
}

// NewPasswordManager creates a PasswordManager. A nil policy falls back to
// DefaultPasswordPolicy.
func NewPasswordManager(repo accounts.AccountRepository, hasher PasswordHasher, policy *PasswordPolicy, auditLogger audit.Logger, opts ...PasswordManagerOption) *PasswordManager {
	if hasher == nil {
		hasher = NewBcryptHasher()
	}
	if policy == nil {
		policy = DefaultPasswordPolicy()
	}
	pm := &PasswordManager{
		repo:        repo,
		hasher:      hasher,
		policy:      policy,
		auditLogger: auditLogger,
	}
	for _, opt := range opts {
		opt(pm)
	}
	return pm
}

// CheckPasswordComplexity verifies that a password meets the policy requirements
func (pm *PasswordManager) CheckPasswordComplexity(password string) error {
	if err := pm.policy.CheckPasswordComplexity(password); err != nil {
		return errors.Wrap(err, errors.ErrCodePasswordComplexity, err.Error())
	}
	return nil
}

// ChangePassword changes an account's password after verifying the current one.
func (pm *PasswordManager) ChangePassword(ctx context.Context, accountID uuid.UUID, currentPassword, newPassword string) error {
	account, err := pm.repo.FindByID(ctx, accountID)
	if err != nil {
		if err == accounts.ErrAccountNotFound {
			return errors.NotFound("account", accountID.String())
		}
		return errors.InternalWrap(err, "failed to look up account")
	}

	match, err := pm.hasher.Verify(currentPassword, account.PasswordHash)
	if err != nil {
		return errors.InternalWrap(err, "failed to verify password")
	}
	if !match {
		return errors.New(errors.ErrCodeInvalidCredentials, "current password is incorrect")
	}

	if err := pm.applyNewPassword(ctx, account, newPassword); err != nil {
		return err
	}

	pm.auditLogger.LogEvent(ctx, audit.Event{
		AccountID: account.ID,
		Email:     account.Email,
		EventType: audit.EventPasswordChanged,
		Status:    audit.StatusSuccess,
	})
	pm.notifyPasswordChanged(account)
	return nil
}

// SetPassword replaces an account's password without checking the current one.
// Used by the reset flow after a reset token has been validated.
func (pm *PasswordManager) SetPassword(ctx context.Context, accountID uuid.UUID, newPassword string) error {
	account, err := pm.repo.FindByID(ctx, accountID)
	if err != nil {
		if err == accounts.ErrAccountNotFound {
			return errors.NotFound("account", accountID.String())
		}
		return errors.InternalWrap(err, "failed to look up account")
	}
	if err := pm.applyNewPassword(ctx, account, newPassword); err != nil {
		return err
	}
	pm.notifyPasswordChanged(account)
	return nil
}

// notifyPasswordChanged sends the confirmation email. Delivery failures are
// logged, never returned: the password is already changed at this point.
func (pm *PasswordManager) notifyPasswordChanged(account accounts.Account) {
	if pm.notificationManager == nil {
		return
	}
	err := pm.notificationManager.Send(notification.PasswordChangedNotice, notification.EmailSystem, notification.NotificationData{
		To: account.Email,
	})
	if err != nil {
		slog.Error("Failed to send password changed notification", "email", account.Email, "err", err)
	}
}

func (pm *PasswordManager) applyNewPassword(ctx context.Context, account accounts.Account, newPassword string) error {
	if err := pm.CheckPasswordComplexity(newPassword); err != nil {
		return err
	}

	// Reject a no-op change: the new password must differ from the current one.
	same, err := pm.hasher.Verify(newPassword, account.PasswordHash)
	if err != nil {
		return errors.InternalWrap(err, "failed to compare new password")
	}
	if same {
		return errors.New(errors.ErrCodePasswordReused, "new password must be different from the current password")
	}

	hash, err := pm.hasher.Hash(newPassword)
	if err != nil {
		return errors.InternalWrap(err, "failed to hash password")
	}

	if err := pm.repo.UpdatePassword(ctx, account.ID, hash, time.Now()); err != nil {
		return errors.InternalWrap(err, "failed to update password")
	}
	return nil
}
