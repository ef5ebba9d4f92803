package twofa

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/averly/authcore/pkg/accounts"
	"github.com/averly/authcore/pkg/audit"
	"github.com/averly/authcore/pkg/errors"
	"github.com/averly/authcore/pkg/notification"
	"github.com/averly/authcore/pkg/utils"
)

const backupCodeLength = 10

// TwoFaService manages second-factor enrollments and verification. TOTP is
// verified statelessly against the enrolled secret; email and SMS codes are
// issued at login time into the OTPStore; backup codes are single-use
// fallbacks tied to TOTP enrollment.
type TwoFaService struct {
	methods             MethodRepository
	otpStore            OTPStore
	accounts            accounts.AccountRepository
	notificationManager *notification.NotificationManager
	auditLogger         audit.Logger
	config              Config
}

// Option configures a TwoFaService
type Option func(*TwoFaService)

// WithConfig applies a Config to the TwoFaService
func WithConfig(config Config) Option {
	return func(s *TwoFaService) {
		s.config = config
	}
}

// NewTwoFaService creates a TwoFaService. The notification manager may be
// nil, in which case challenge codes are stored but not delivered.
func NewTwoFaService(methods MethodRepository, otpStore OTPStore, accountRepo accounts.AccountRepository, nm *notification.NotificationManager, auditLogger audit.Logger, opts ...Option) *TwoFaService {
	s := &TwoFaService{
		methods:             methods,
		otpStore:            otpStore,
		accounts:            accountRepo,
		notificationManager: nm,
		auditLogger:         auditLogger,
		config:              DefaultConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FindMethods lists all enrollments for an account, enabled or not.
func (s *TwoFaService) FindMethods(ctx context.Context, accountID uuid.UUID) ([]Method, error) {
	methods, err := s.methods.FindMethods(ctx, accountID)
	if err != nil {
		return nil, errors.InternalWrap(err, "failed to list methods")
	}
	return methods, nil
}

// FindEnabledMethods lists the enabled enrollments for an account.
func (s *TwoFaService) FindEnabledMethods(ctx context.Context, accountID uuid.UUID) ([]Method, error) {
	methods, err := s.methods.FindEnabledMethods(ctx, accountID)
	if err != nil {
		return nil, errors.InternalWrap(err, "failed to list enabled methods")
	}
	return methods, nil
}

func (s *TwoFaService) enabledMethod(ctx context.Context, accountID uuid.UUID, kind string) (Method, error) {
	method, err := s.methods.FindMethod(ctx, accountID, kind)
	if err != nil {
		if err == ErrMethodNotFound {
			return Method{}, errors.New(errors.ErrCode2FANotSetUp, "method is not set up")
		}
		return Method{}, errors.InternalWrap(err, "failed to look up method")
	}
	if !method.Enabled {
		return Method{}, errors.New(errors.ErrCode2FANotSetUp, "method is not enabled")
	}
	return method, nil
}

// SetupTOTP enrolls (or re-enrolls) TOTP in a disabled state and returns the
// secret and provisioning URI. The method only becomes usable after
// EnableTOTP verifies a code generated from this secret.
func (s *TwoFaService) SetupTOTP(ctx context.Context, accountID uuid.UUID) (TOTPSetup, error) {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		if err == accounts.ErrAccountNotFound {
			return TOTPSetup{}, errors.NotFound("account", accountID.String())
		}
		return TOTPSetup{}, errors.InternalWrap(err, "failed to look up account")
	}

	setup, err := generateTOTPSecret(s.config.TOTPIssuer, account.Email)
	if err != nil {
		return TOTPSetup{}, errors.InternalWrap(err, "failed to generate totp secret")
	}

	_, err = s.methods.UpsertMethod(ctx, Method{
		AccountID: accountID,
		Kind:      MethodTOTP,
		Secret:    setup.Secret,
	})
	if err != nil {
		return TOTPSetup{}, errors.InternalWrap(err, "failed to save totp enrollment")
	}
	return setup, nil
}

// EnableTOTP verifies a code against the pending enrollment, enables the
// method, and returns a fresh set of backup codes. The raw codes are
// returned exactly once.
func (s *TwoFaService) EnableTOTP(ctx context.Context, accountID uuid.UUID, code string) ([]string, error) {
	method, err := s.methods.FindMethod(ctx, accountID, MethodTOTP)
	if err != nil {
		if err == ErrMethodNotFound {
			return nil, errors.New(errors.ErrCode2FANotSetUp, "totp is not set up")
		}
		return nil, errors.InternalWrap(err, "failed to look up totp enrollment")
	}

	valid, err := validateTOTPCode(method.Secret, code)
	if err != nil {
		return nil, errors.InternalWrap(err, "failed to validate totp code")
	}
	if !valid {
		return nil, errors.New(errors.ErrCode2FAInvalid, "invalid verification code")
	}

	if err := s.methods.SetMethodEnabled(ctx, accountID, MethodTOTP, true); err != nil {
		return nil, errors.InternalWrap(err, "failed to enable totp")
	}
	return s.RegenerateBackupCodes(ctx, accountID)
}

// SetupOTPChannel enrolls an email or SMS channel in a disabled state and
// sends a verification code to it. phoneNumber is required for sms_otp and
// ignored for email_otp.
func (s *TwoFaService) SetupOTPChannel(ctx context.Context, accountID uuid.UUID, kind, phoneNumber string) error {
	if kind != MethodEmailOTP && kind != MethodSMSOTP {
		return errors.InvalidInput("kind", "must be email_otp or sms_otp")
	}
	if kind == MethodSMSOTP && phoneNumber == "" {
		return errors.InvalidInput("phone_number", "required for sms_otp")
	}

	if _, err := s.accounts.FindByID(ctx, accountID); err != nil {
		if err == accounts.ErrAccountNotFound {
			return errors.NotFound("account", accountID.String())
		}
		return errors.InternalWrap(err, "failed to look up account")
	}

	_, err := s.methods.UpsertMethod(ctx, Method{
		AccountID:   accountID,
		Kind:        kind,
		PhoneNumber: phoneNumber,
	})
	if err != nil {
		return errors.InternalWrap(err, "failed to save enrollment")
	}

	return s.issueChallengeCode(ctx, accountID, kind)
}

// EnableOTPChannel verifies a code previously sent by SetupOTPChannel and
// enables the channel.
func (s *TwoFaService) EnableOTPChannel(ctx context.Context, accountID uuid.UUID, kind, code string) error {
	if kind != MethodEmailOTP && kind != MethodSMSOTP {
		return errors.InvalidInput("kind", "must be email_otp or sms_otp")
	}

	if _, err := s.methods.FindMethod(ctx, accountID, kind); err != nil {
		if err == ErrMethodNotFound {
			return errors.New(errors.ErrCode2FANotSetUp, "method is not set up")
		}
		return errors.InternalWrap(err, "failed to look up method")
	}

	storedHash, err := s.otpStore.GetCodeHash(ctx, accountID, kind)
	if err != nil {
		if err == ErrNoActiveCode {
			return errors.New(errors.ErrCode2FAInvalid, "invalid verification code")
		}
		return errors.InternalWrap(err, "failed to read challenge code")
	}
	if !utils.SecureCompare(storedHash, utils.HashToken(code)) {
		return errors.New(errors.ErrCode2FAInvalid, "invalid verification code")
	}

	if err := s.otpStore.DeleteCode(ctx, accountID, kind); err != nil {
		return errors.InternalWrap(err, "failed to consume challenge code")
	}
	if err := s.methods.SetMethodEnabled(ctx, accountID, kind, true); err != nil {
		return errors.InternalWrap(err, "failed to enable method")
	}
	return nil
}

// DisableMethod soft-disables an enrollment. The row is kept.
func (s *TwoFaService) DisableMethod(ctx context.Context, accountID uuid.UUID, kind string) error {
	if !ValidKind(kind) {
		return errors.InvalidInput("kind", "unknown method kind")
	}

	if err := s.methods.SetMethodEnabled(ctx, accountID, kind, false); err != nil {
		if err == ErrMethodNotFound {
			return errors.New(errors.ErrCode2FANotSetUp, "method is not set up")
		}
		return errors.InternalWrap(err, "failed to disable method")
	}
	return nil
}

// RegenerateBackupCodes replaces the account's backup codes with a fresh
// set, invalidating all prior unconsumed codes. The raw codes are returned
// exactly once; only their hashes are stored.
func (s *TwoFaService) RegenerateBackupCodes(ctx context.Context, accountID uuid.UUID) ([]string, error) {
	rawCodes := make([]string, 0, s.config.BackupCodeCount)
	hashes := make([]string, 0, s.config.BackupCodeCount)
	for i := 0; i < s.config.BackupCodeCount; i++ {
		raw := utils.GenerateRandomString(backupCodeLength)
		rawCodes = append(rawCodes, raw)
		hashes = append(hashes, utils.HashToken(raw))
	}

	if err := s.methods.ReplaceBackupCodes(ctx, accountID, hashes); err != nil {
		return nil, errors.InternalWrap(err, "failed to replace backup codes")
	}

	s.auditLogger.LogEvent(ctx, audit.Event{
		AccountID: accountID,
		EventType: audit.EventBackupCodesRegenerated,
		Status:    audit.StatusSuccess,
	})
	return rawCodes, nil
}

// SendChallenge issues a fresh challenge code for an enabled email or SMS
// channel and delivers it. Delivery failures are logged but never surfaced;
// a caller cannot tell a failed send from a successful one.
func (s *TwoFaService) SendChallenge(ctx context.Context, accountID uuid.UUID, kind string) error {
	if kind != MethodEmailOTP && kind != MethodSMSOTP {
		return errors.InvalidInput("kind", "must be email_otp or sms_otp")
	}
	if _, err := s.enabledMethod(ctx, accountID, kind); err != nil {
		return err
	}
	return s.issueChallengeCode(ctx, accountID, kind)
}

func (s *TwoFaService) issueChallengeCode(ctx context.Context, accountID uuid.UUID, kind string) error {
	code := utils.GenerateNumericCode(s.config.OTPCodeDigits)
	if err := s.otpStore.SaveCode(ctx, accountID, kind, utils.HashToken(code), s.config.OTPCodeExpiry); err != nil {
		return errors.InternalWrap(err, "failed to store challenge code")
	}
	s.deliverChallengeCode(ctx, accountID, kind, code)
	return nil
}

func (s *TwoFaService) deliverChallengeCode(ctx context.Context, accountID uuid.UUID, kind, code string) {
	if s.notificationManager == nil {
		slog.Info("No notification manager configured, skipping challenge delivery", "accountID", accountID, "kind", kind)
		return
	}

	var err error
	switch kind {
	case MethodEmailOTP:
		var account accounts.Account
		account, err = s.accounts.FindByID(ctx, accountID)
		if err == nil {
			err = s.notificationManager.Send(notification.TwofaCodeNoticeEmail, notification.EmailSystem, notification.NotificationData{
				To:   account.Email,
				Data: map[string]string{"Code": code},
			})
		}
	case MethodSMSOTP:
		var method Method
		method, err = s.methods.FindMethod(ctx, accountID, kind)
		if err == nil {
			err = s.notificationManager.Send(notification.TwofaCodeNoticeSms, notification.SMSSystem, notification.NotificationData{
				To:   method.PhoneNumber,
				Data: map[string]string{"Code": code},
			})
		}
	}
	if err != nil {
		slog.Error("Failed to deliver challenge code", "err", err, "accountID", accountID, "kind", kind)
	}
}

// VerifyCode dispatches a submitted code to the verification strategy for
// the method kind.
func (s *TwoFaService) VerifyCode(ctx context.Context, accountID uuid.UUID, kind, code string) (VerifyResult, error) {
	verifier, err := s.verifierFor(kind)
	if err != nil {
		return VerifyResult{}, err
	}
	return verifier.Verify(ctx, accountID, code)
}

func (s *TwoFaService) verifierFor(kind string) (MethodVerifier, error) {
	switch kind {
	case MethodTOTP:
		return totpVerifier{service: s}, nil
	case MethodEmailOTP, MethodSMSOTP:
		return otpChannelVerifier{service: s, kind: kind}, nil
	case MethodBackupCode:
		return backupVerifier{service: s}, nil
	default:
		return nil, errors.InvalidInput("method_kind", "unknown method kind")
	}
}
