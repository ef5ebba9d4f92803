package loginflow

import (
	"context"
	"log/slog"

	"github.com/jinzhu/copier"

	"github.com/averly/authcore/pkg/accounts"
	"github.com/averly/authcore/pkg/audit"
	"github.com/averly/authcore/pkg/errors"
	"github.com/averly/authcore/pkg/login"
	"github.com/averly/authcore/pkg/tokengenerator"
	"github.com/averly/authcore/pkg/twofa"
)

// genericResetMessage is returned by RequestPasswordReset no matter what
// happened internally.
const genericResetMessage = "If an account exists for that address, password reset instructions have been sent."

// ServiceDependencies holds all the services required by the login flow
type ServiceDependencies struct {
	LoginService    *login.LoginService
	PasswordManager *login.PasswordManager
	ResetTokens     *login.ResetTokenService
	TwoFaService    *twofa.TwoFaService
	TokenService    *tokengenerator.SessionTokenService
	Accounts        accounts.AccountRepository
	AuditLogger     audit.Logger
}

// LoginFlowService orchestrates the complete authentication flow: the
// password phase, the optional second-factor challenge, and the password
// reset flow. It is the single place where internal errors are converted to
// user-safe responses, so no call site can accidentally leak whether an
// account exists.
type LoginFlowService struct {
	services *ServiceDependencies
}

func NewLoginFlowService(deps *ServiceDependencies) *LoginFlowService {
	return &LoginFlowService{services: deps}
}

// Login runs the password phase. When the account has second-factor methods
// enabled the result carries a short-lived challenge token and the flow
// resumes via VerifyChallenge; otherwise a full session is issued directly.
func (s *LoginFlowService) Login(ctx context.Context, email, password string) Result {
	account, err := s.services.LoginService.Login(ctx, email, password)
	if err != nil {
		return s.errorResult(err)
	}

	methods, err := s.services.TwoFaService.FindEnabledMethods(ctx, account.ID)
	if err != nil {
		return s.errorResult(err)
	}

	if len(methods) > 0 {
		return s.beginChallenge(ctx, account, methods)
	}

	return s.completeLogin(ctx, account, "password", "")
}

func (s *LoginFlowService) beginChallenge(ctx context.Context, account accounts.Account, methods []twofa.Method) Result {
	token, expires, err := s.services.TokenService.IssueChallenge(account.ID, account.TenantID)
	if err != nil {
		return s.errorResult(errors.InternalWrap(err, "failed to issue challenge token"))
	}

	kinds := make([]string, 0, len(methods))
	for _, m := range methods {
		kinds = append(kinds, m.Kind)

		// Channel codes are issued up front so the user has one in hand
		// when the challenge prompt appears.
		if m.Kind == twofa.MethodEmailOTP || m.Kind == twofa.MethodSMSOTP {
			if err := s.services.TwoFaService.SendChallenge(ctx, account.ID, m.Kind); err != nil {
				slog.Error("Failed to send challenge code", "err", err, "accountID", account.ID, "kind", m.Kind)
			}
		}
	}

	s.services.AuditLogger.LogEvent(ctx, audit.Event{
		AccountID: account.ID,
		Email:     account.Email,
		EventType: audit.EventPending2FA,
		Status:    audit.StatusSuccess,
		Details:   map[string]interface{}{"methods": kinds},
	})
	return require2FAResult(token, expires, kinds)
}

// DecodeChallenge validates a pending challenge token and returns its
// claims without completing the challenge.
func (s *LoginFlowService) DecodeChallenge(challengeToken string) (tokengenerator.TokenClaims, error) {
	return s.services.TokenService.Decode(challengeToken, tokengenerator.TokenTypeChallenge)
}

// VerifyChallenge completes a pending second-factor challenge and issues the
// full session on success.
func (s *LoginFlowService) VerifyChallenge(ctx context.Context, challengeToken, code, methodKind string) Result {
	claims, err := s.services.TokenService.Decode(challengeToken, tokengenerator.TokenTypeChallenge)
	if err != nil {
		return s.errorResult(err)
	}

	account, err := s.services.Accounts.FindByID(ctx, claims.AccountID)
	if err != nil {
		if err == accounts.ErrAccountNotFound {
			return s.errorResult(errors.NotFound("account", claims.AccountID.String()))
		}
		return s.errorResult(errors.InternalWrap(err, "failed to look up account"))
	}

	result, err := s.services.TwoFaService.VerifyCode(ctx, account.ID, methodKind, code)
	if err != nil {
		return s.errorResult(err)
	}

	if !result.IsValid {
		s.services.AuditLogger.LogEvent(ctx, audit.Event{
			AccountID: account.ID,
			Email:     account.Email,
			EventType: audit.EventInvalid2FACode,
			Status:    audit.StatusFailure,
			Details:   map[string]interface{}{"method": methodKind},
		})

		message := "Invalid verification code"
		errCode := errors.ErrCode2FAInvalid
		if result.IsLocked {
			message = "Verification is temporarily locked for this method. Please try again later."
			errCode = errors.ErrCode2FALocked
		}
		return Result{
			Message:           message,
			AttemptsRemaining: result.AttemptsRemaining,
			MethodLocked:      result.IsLocked,
			ErrorResponse:     &Error{Code: errCode, Message: message},
		}
	}

	return s.completeLogin(ctx, account, "2fa", methodKind)
}

// completeLogin resets the lockout tracker, issues a full session, and logs
// the success event.
func (s *LoginFlowService) completeLogin(ctx context.Context, account accounts.Account, method, verificationMethod string) Result {
	s.services.LoginService.RecordSuccess(ctx, account)

	token, expires, err := s.services.TokenService.IssueSession(account.ID, account.TenantID)
	if err != nil {
		return s.errorResult(errors.InternalWrap(err, "failed to issue session token"))
	}

	details := map[string]interface{}{"method": method}
	if verificationMethod != "" {
		details["verification_method"] = verificationMethod
	}
	s.services.AuditLogger.LogEvent(ctx, audit.Event{
		AccountID: account.ID,
		Email:     account.Email,
		EventType: audit.EventLoginSuccess,
		Status:    audit.StatusSuccess,
		Details:   details,
	})

	user := &UserInfo{}
	if err := copier.Copy(user, &account); err != nil {
		return s.errorResult(errors.InternalWrap(err, "failed to map account"))
	}
	return successResult("Login successful", token, expires, user)
}

// RequestPasswordReset handles a reset request. The response is identical
// whatever happened internally.
func (s *LoginFlowService) RequestPasswordReset(ctx context.Context, email string) Result {
	s.services.ResetTokens.RequestReset(ctx, email)
	return Result{
		Success:           true,
		Message:           genericResetMessage,
		AttemptsRemaining: twofa.AttemptsUnlimited,
	}
}

// ResetPassword redeems a reset token and replaces the account password.
// The token is only consumed after the new password has been accepted, so a
// rejected password does not burn the token.
func (s *LoginFlowService) ResetPassword(ctx context.Context, rawToken, newPassword string) Result {
	token, err := s.services.ResetTokens.Validate(ctx, rawToken)
	if err != nil {
		return s.errorResult(err)
	}

	if err := s.services.PasswordManager.SetPassword(ctx, token.AccountID, newPassword); err != nil {
		return s.errorResult(err)
	}

	if err := s.services.ResetTokens.Consume(ctx, token); err != nil {
		return s.errorResult(err)
	}

	s.services.AuditLogger.LogEvent(ctx, audit.Event{
		AccountID: token.AccountID,
		EventType: audit.EventPasswordReset,
		Status:    audit.StatusSuccess,
	})
	return Result{
		Success:           true,
		Message:           "Your password has been reset.",
		AttemptsRemaining: twofa.AttemptsUnlimited,
	}
}

// errorResult is the single conversion point from internal errors to
// user-safe responses. Internal details are logged here and replaced with a
// generic message; everything else surfaces its own code and message.
func (s *LoginFlowService) errorResult(err error) Result {
	code := errors.GetCode(err)
	message := "An unexpected error occurred. Please try again."

	if code == errors.ErrCodeInternal {
		slog.Error("Login flow failed", "err", err)
	} else if appErr, ok := err.(*errors.Error); ok {
		message = appErr.Message
	}

	return Result{
		Message:           message,
		AttemptsRemaining: twofa.AttemptsUnlimited,
		ErrorResponse:     &Error{Code: code, Message: message},
	}
}
