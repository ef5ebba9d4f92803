package login

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/averly/authcore/pkg/accounts"
	"github.com/averly/authcore/pkg/audit"
	"github.com/averly/authcore/pkg/errors"
	"github.com/averly/authcore/pkg/notification"
	"github.com/averly/authcore/pkg/utils"
)

const resetTokenLength = 32

// ResetTokenService issues and redeems password reset tokens. Its outward
// behavior is deliberately opaque: requesting a reset reveals nothing about
// whether the email exists or whether the request was throttled.
type ResetTokenService struct {
	tokens              ResetTokenRepository
	accounts            accounts.AccountRepository
	auditLogger         audit.Logger
	notificationManager *notification.NotificationManager
	config              Config
}

// NewResetTokenService creates a ResetTokenService. The notification manager
// may be nil, in which case issued tokens are logged but not delivered.
func NewResetTokenService(tokens ResetTokenRepository, accountRepo accounts.AccountRepository, auditLogger audit.Logger, nm *notification.NotificationManager, config Config) *ResetTokenService {
	return &ResetTokenService{
		tokens:              tokens,
		accounts:            accountRepo,
		auditLogger:         auditLogger,
		notificationManager: nm,
		config:              config,
	}
}

// RequestReset handles a password reset request for an email address. It
// never reports an outcome: unknown emails, throttled requests, and storage
// failures all look identical to the caller. The request ceiling is checked
// against prior password_reset_requested audit events within the rolling
// window rather than a dedicated counter.
func (s *ResetTokenService) RequestReset(ctx context.Context, email string) {
	email = utils.NormalizeEmail(email)
	now := time.Now()

	count, err := s.auditLogger.CountRecentEvents(ctx, email, audit.EventPasswordResetRequested, now.Add(-s.config.ResetRequestWindow))
	if err != nil {
		slog.Error("Failed to count recent reset requests, allowing request", "err", err, "email", utils.MaskEmail(email))
	} else if count >= s.config.ResetRequestLimit {
		slog.Info("Reset request ceiling reached, skipping token issuance", "email", utils.MaskEmail(email))
		return
	}

	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if err != accounts.ErrAccountNotFound {
			slog.Error("Failed to look up account for reset request", "err", err)
		}
		// Still counts against the ceiling so unknown emails cannot probe it.
		s.auditLogger.LogEvent(ctx, audit.Event{
			Email:     email,
			EventType: audit.EventPasswordResetRequested,
			Status:    audit.StatusFailure,
		})
		return
	}

	rawToken := utils.GenerateRandomString(resetTokenLength)
	token := ResetToken{
		ID:        uuid.New(),
		AccountID: account.ID,
		TokenHash: utils.HashToken(rawToken),
		ExpiresAt: now.Add(s.config.ResetTokenExpiration),
		CreatedAt: now,
	}
	if err := s.tokens.Create(ctx, token); err != nil {
		slog.Error("Failed to save reset token", "err", err, "accountID", account.ID)
		return
	}

	s.auditLogger.LogEvent(ctx, audit.Event{
		AccountID: account.ID,
		Email:     email,
		EventType: audit.EventPasswordResetRequested,
		Status:    audit.StatusSuccess,
	})

	s.deliverToken(account.Email, rawToken)
}

func (s *ResetTokenService) deliverToken(email, rawToken string) {
	if s.notificationManager == nil {
		slog.Info("No notification manager configured, skipping reset email", "email", utils.MaskEmail(email))
		return
	}

	err := s.notificationManager.Send(notification.PasswordResetInit, notification.EmailSystem, notification.NotificationData{
		To: email,
		Data: map[string]string{
			"Token":     rawToken,
			"ExpiresIn": fmt.Sprintf("%d hours", int(s.config.ResetTokenExpiration/time.Hour)),
		},
	})
	if err != nil {
		// Delivery failure must not block or alter the generic response.
		slog.Error("Failed to send password reset email", "err", err, "email", utils.MaskEmail(email))
	}
}

// Validate resolves a raw reset token to its live repository row without
// consuming it.
func (s *ResetTokenService) Validate(ctx context.Context, rawToken string) (ResetToken, error) {
	token, err := s.tokens.FindLiveByHash(ctx, utils.HashToken(rawToken), time.Now())
	if err != nil {
		if err == ErrResetTokenNotFound {
			return ResetToken{}, errors.New(errors.ErrCodeTokenInvalid, "invalid or expired reset token")
		}
		return ResetToken{}, errors.InternalWrap(err, "failed to look up reset token")
	}
	return token, nil
}

// Consume marks a reset token as used. A consumed token never validates again.
func (s *ResetTokenService) Consume(ctx context.Context, token ResetToken) error {
	if err := s.tokens.MarkConsumed(ctx, token.ID, time.Now()); err != nil {
		return errors.InternalWrap(err, "failed to consume reset token")
	}
	return nil
}

// ValidateAndConsume redeems a raw reset token in one step, returning the
// account it belongs to.
func (s *ResetTokenService) ValidateAndConsume(ctx context.Context, rawToken string) (uuid.UUID, error) {
	token, err := s.Validate(ctx, rawToken)
	if err != nil {
		return uuid.Nil, err
	}
	if err := s.Consume(ctx, token); err != nil {
		return uuid.Nil, err
	}
	return token.AccountID, nil
}
