package twofa

import (
	"context"

	"github.com/google/uuid"

	"github.com/averly/authcore/pkg/errors"
	"github.com/averly/authcore/pkg/utils"
)

// AttemptsUnlimited marks methods without an attempt counter (TOTP, backup codes).
const AttemptsUnlimited = -1

// VerifyResult is the normalized outcome of a second-factor check.
// AttemptsRemaining and IsLocked are only meaningful for the OTP channel
// methods; other methods report AttemptsUnlimited and never lock.
type VerifyResult struct {
	IsValid           bool
	AttemptsRemaining int
	IsLocked          bool
}

// MethodVerifier is one verification strategy. The service dispatches to the
// concrete strategy by method kind.
type MethodVerifier interface {
	Verify(ctx context.Context, accountID uuid.UUID, code string) (VerifyResult, error)
}

// totpVerifier checks codes against the enrolled shared secret. It carries
// no attempt state; the algorithm's time window is the defense.
type totpVerifier struct {
	service *TwoFaService
}

func (v totpVerifier) Verify(ctx context.Context, accountID uuid.UUID, code string) (VerifyResult, error) {
	method, err := v.service.enabledMethod(ctx, accountID, MethodTOTP)
	if err != nil {
		return VerifyResult{}, err
	}

	valid, err := validateTOTPCode(method.Secret, code)
	if err != nil {
		return VerifyResult{}, errors.InternalWrap(err, "failed to validate totp code")
	}
	return VerifyResult{IsValid: valid, AttemptsRemaining: AttemptsUnlimited}, nil
}

// otpChannelVerifier checks codes issued out-of-band over email or SMS. Each
// channel carries its own attempt counter, independent of the account-level
// lockout tracker, and locks after repeated bad codes.
type otpChannelVerifier struct {
	service *TwoFaService
	kind    string
}

func (v otpChannelVerifier) Verify(ctx context.Context, accountID uuid.UUID, code string) (VerifyResult, error) {
	s := v.service

	if _, err := s.enabledMethod(ctx, accountID, v.kind); err != nil {
		return VerifyResult{}, err
	}

	locked, err := s.otpStore.IsChannelLocked(ctx, accountID, v.kind)
	if err != nil {
		return VerifyResult{}, errors.InternalWrap(err, "failed to check channel lock")
	}
	if locked {
		return VerifyResult{IsLocked: true}, nil
	}

	storedHash, err := s.otpStore.GetCodeHash(ctx, accountID, v.kind)
	if err != nil && err != ErrNoActiveCode {
		return VerifyResult{}, errors.InternalWrap(err, "failed to read challenge code")
	}

	if err == nil && utils.SecureCompare(storedHash, utils.HashToken(code)) {
		if err := s.otpStore.DeleteCode(ctx, accountID, v.kind); err != nil {
			return VerifyResult{}, errors.InternalWrap(err, "failed to consume challenge code")
		}
		if err := s.otpStore.ClearAttempts(ctx, accountID, v.kind); err != nil {
			return VerifyResult{}, errors.InternalWrap(err, "failed to clear attempts")
		}
		return VerifyResult{IsValid: true, AttemptsRemaining: s.config.OTPMaxAttempts}, nil
	}

	// Wrong or missing code: count the attempt against the channel.
	attempts, err := s.otpStore.IncrementAttempts(ctx, accountID, v.kind, s.config.OTPLockDuration)
	if err != nil {
		return VerifyResult{}, errors.InternalWrap(err, "failed to record attempt")
	}

	remaining := s.config.OTPMaxAttempts - attempts
	if remaining <= 0 {
		if err := s.otpStore.LockChannel(ctx, accountID, v.kind, s.config.OTPLockDuration); err != nil {
			return VerifyResult{}, errors.InternalWrap(err, "failed to lock channel")
		}
		return VerifyResult{IsLocked: true}, nil
	}
	return VerifyResult{AttemptsRemaining: remaining}, nil
}

// backupVerifier redeems single-use backup codes; a match consumes the code
// atomically so it can never be replayed.
type backupVerifier struct {
	service *TwoFaService
}

func (v backupVerifier) Verify(ctx context.Context, accountID uuid.UUID, code string) (VerifyResult, error) {
	codes, err := v.service.methods.FindActiveBackupCodes(ctx, accountID)
	if err != nil {
		return VerifyResult{}, errors.InternalWrap(err, "failed to load backup codes")
	}

	codeHash := utils.HashToken(code)
	for _, candidate := range codes {
		if !utils.SecureCompare(candidate.CodeHash, codeHash) {
			continue
		}
		consumed, err := v.service.methods.ConsumeBackupCode(ctx, candidate.ID)
		if err != nil {
			return VerifyResult{}, errors.InternalWrap(err, "failed to consume backup code")
		}
		// A concurrent redemption of the same code loses the race.
		return VerifyResult{IsValid: consumed, AttemptsRemaining: AttemptsUnlimited}, nil
	}
	return VerifyResult{AttemptsRemaining: AttemptsUnlimited}, nil
}
