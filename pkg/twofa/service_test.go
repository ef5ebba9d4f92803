package twofa

import (
	"context"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/averly/authcore/pkg/accounts"
	"github.com/averly/authcore/pkg/audit"
	"github.com/averly/authcore/pkg/errors"
	"github.com/averly/authcore/pkg/notification"
)

type twofaFixture struct {
	svc      *TwoFaService
	methods  *InMemoryMethodRepository
	store    *InMemoryOTPStore
	accounts *accounts.InMemoryAccountRepository
	notifier *notification.MockNotifier
	account  accounts.Account
}

func newTwofaFixture(t *testing.T) *twofaFixture {
	t.Helper()

	methods := NewInMemoryMethodRepository()
	store := NewInMemoryOTPStore()
	accountRepo := accounts.NewInMemoryAccountRepository()

	notifier := &notification.MockNotifier{}
	nm, err := notification.NewNotificationManagerWithOptions(notification.WithDefaultTemplates())
	require.NoError(t, err)
	nm.RegisterNotifier(notification.EmailSystem, notifier)
	nm.RegisterNotifier(notification.SMSSystem, notifier)

	account, err := accountRepo.Create(context.Background(), accounts.Account{
		Email:        "user@example.com",
		PasswordHash: []byte("irrelevant"),
		Active:       true,
	})
	require.NoError(t, err)

	return &twofaFixture{
		svc:      NewTwoFaService(methods, store, accountRepo, nm, audit.NewInMemoryLogger()),
		methods:  methods,
		store:    store,
		accounts: accountRepo,
		notifier: notifier,
		account:  account,
	}
}

func totpCode(t *testing.T, secret string) string {
	t.Helper()
	code, err := totp.GenerateCode(secret, time.Now().UTC())
	require.NoError(t, err)
	return code
}

func TestTOTPEnrollment(t *testing.T) {
	ctx := context.Background()

	t.Run("setup then enable with valid code", func(t *testing.T) {
		f := newTwofaFixture(t)

		setup, err := f.svc.SetupTOTP(ctx, f.account.ID)
		require.NoError(t, err)
		assert.NotEmpty(t, setup.Secret)
		assert.Contains(t, setup.ProvisioningURI, "otpauth://totp/")

		// Not usable until enabled
		enabled, err := f.svc.FindEnabledMethods(ctx, f.account.ID)
		require.NoError(t, err)
		assert.Empty(t, enabled)

		backupCodes, err := f.svc.EnableTOTP(ctx, f.account.ID, totpCode(t, setup.Secret))
		require.NoError(t, err)
		assert.Len(t, backupCodes, 10)

		enabled, err = f.svc.FindEnabledMethods(ctx, f.account.ID)
		require.NoError(t, err)
		require.Len(t, enabled, 1)
		assert.Equal(t, MethodTOTP, enabled[0].Kind)
	})

	t.Run("enable with wrong code", func(t *testing.T) {
		f := newTwofaFixture(t)

		_, err := f.svc.SetupTOTP(ctx, f.account.ID)
		require.NoError(t, err)

		_, err = f.svc.EnableTOTP(ctx, f.account.ID, "000000")
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCode2FAInvalid))
	})

	t.Run("enable without setup", func(t *testing.T) {
		f := newTwofaFixture(t)

		_, err := f.svc.EnableTOTP(ctx, f.account.ID, "123456")
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCode2FANotSetUp))
	})
}

func TestVerifyTOTP(t *testing.T) {
	ctx := context.Background()
	f := newTwofaFixture(t)

	setup, err := f.svc.SetupTOTP(ctx, f.account.ID)
	require.NoError(t, err)
	_, err = f.svc.EnableTOTP(ctx, f.account.ID, totpCode(t, setup.Secret))
	require.NoError(t, err)

	t.Run("valid code", func(t *testing.T) {
		result, err := f.svc.VerifyCode(ctx, f.account.ID, MethodTOTP, totpCode(t, setup.Secret))
		require.NoError(t, err)
		assert.True(t, result.IsValid)
		assert.Equal(t, AttemptsUnlimited, result.AttemptsRemaining)
	})

	t.Run("wrong code does not touch account lockout", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			result, err := f.svc.VerifyCode(ctx, f.account.ID, MethodTOTP, "000000")
			require.NoError(t, err)
			assert.False(t, result.IsValid)
			assert.False(t, result.IsLocked)
		}

		stored, err := f.accounts.FindByID(ctx, f.account.ID)
		require.NoError(t, err)
		assert.Zero(t, stored.FailedLoginAttempts)
		assert.True(t, stored.LockedUntil.IsZero())
	})
}

func TestOTPChannel(t *testing.T) {
	ctx := context.Background()

	sentCode := func(t *testing.T, f *twofaFixture) string {
		t.Helper()
		last, ok := f.notifier.Last()
		require.True(t, ok)
		code := last.Data["Code"]
		require.NotEmpty(t, code)
		return code
	}

	enableEmail := func(t *testing.T, f *twofaFixture) {
		t.Helper()
		require.NoError(t, f.svc.SetupOTPChannel(ctx, f.account.ID, MethodEmailOTP, ""))
		require.NoError(t, f.svc.EnableOTPChannel(ctx, f.account.ID, MethodEmailOTP, sentCode(t, f)))
	}

	t.Run("setup delivers a code and enable verifies it", func(t *testing.T) {
		f := newTwofaFixture(t)
		enableEmail(t, f)

		enabled, err := f.svc.FindEnabledMethods(ctx, f.account.ID)
		require.NoError(t, err)
		require.Len(t, enabled, 1)
		assert.Equal(t, MethodEmailOTP, enabled[0].Kind)
	})

	t.Run("verify challenge round trip", func(t *testing.T) {
		f := newTwofaFixture(t)
		enableEmail(t, f)

		require.NoError(t, f.svc.SendChallenge(ctx, f.account.ID, MethodEmailOTP))
		code := sentCode(t, f)

		result, err := f.svc.VerifyCode(ctx, f.account.ID, MethodEmailOTP, code)
		require.NoError(t, err)
		assert.True(t, result.IsValid)

		// The code is consumed on success.
		result, err = f.svc.VerifyCode(ctx, f.account.ID, MethodEmailOTP, code)
		require.NoError(t, err)
		assert.False(t, result.IsValid)
	})

	t.Run("channel locks after repeated bad codes", func(t *testing.T) {
		f := newTwofaFixture(t)
		enableEmail(t, f)
		require.NoError(t, f.svc.SendChallenge(ctx, f.account.ID, MethodEmailOTP))
		goodCode := sentCode(t, f)

		for i := 1; i < 5; i++ {
			result, err := f.svc.VerifyCode(ctx, f.account.ID, MethodEmailOTP, "000000")
			require.NoError(t, err)
			assert.False(t, result.IsValid)
			assert.False(t, result.IsLocked)
			assert.Equal(t, 5-i, result.AttemptsRemaining)
		}

		result, err := f.svc.VerifyCode(ctx, f.account.ID, MethodEmailOTP, "000000")
		require.NoError(t, err)
		assert.True(t, result.IsLocked)

		// The correct code is refused while the channel is locked.
		result, err = f.svc.VerifyCode(ctx, f.account.ID, MethodEmailOTP, goodCode)
		require.NoError(t, err)
		assert.False(t, result.IsValid)
		assert.True(t, result.IsLocked)

		// The account-level lockout tracker is untouched.
		stored, err := f.accounts.FindByID(ctx, f.account.ID)
		require.NoError(t, err)
		assert.Zero(t, stored.FailedLoginAttempts)
	})

	t.Run("sms requires a phone number", func(t *testing.T) {
		f := newTwofaFixture(t)

		err := f.svc.SetupOTPChannel(ctx, f.account.ID, MethodSMSOTP, "")
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidInput))

		require.NoError(t, f.svc.SetupOTPChannel(ctx, f.account.ID, MethodSMSOTP, "+15551234567"))
		last, ok := f.notifier.Last()
		require.True(t, ok)
		assert.Equal(t, "+15551234567", last.To)
	})
}

func TestBackupCodes(t *testing.T) {
	ctx := context.Background()

	enrollTOTP := func(t *testing.T, f *twofaFixture) []string {
		t.Helper()
		setup, err := f.svc.SetupTOTP(ctx, f.account.ID)
		require.NoError(t, err)
		codes, err := f.svc.EnableTOTP(ctx, f.account.ID, totpCode(t, setup.Secret))
		require.NoError(t, err)
		return codes
	}

	t.Run("single use", func(t *testing.T) {
		f := newTwofaFixture(t)
		codes := enrollTOTP(t, f)

		result, err := f.svc.VerifyCode(ctx, f.account.ID, MethodBackupCode, codes[0])
		require.NoError(t, err)
		assert.True(t, result.IsValid)

		result, err = f.svc.VerifyCode(ctx, f.account.ID, MethodBackupCode, codes[0])
		require.NoError(t, err)
		assert.False(t, result.IsValid)
	})

	t.Run("regeneration invalidates prior codes", func(t *testing.T) {
		f := newTwofaFixture(t)
		oldCodes := enrollTOTP(t, f)

		newCodes, err := f.svc.RegenerateBackupCodes(ctx, f.account.ID)
		require.NoError(t, err)
		assert.Len(t, newCodes, 10)

		result, err := f.svc.VerifyCode(ctx, f.account.ID, MethodBackupCode, oldCodes[0])
		require.NoError(t, err)
		assert.False(t, result.IsValid)

		result, err = f.svc.VerifyCode(ctx, f.account.ID, MethodBackupCode, newCodes[0])
		require.NoError(t, err)
		assert.True(t, result.IsValid)
	})
}

func TestDisableMethod(t *testing.T) {
	ctx := context.Background()
	f := newTwofaFixture(t)

	setup, err := f.svc.SetupTOTP(ctx, f.account.ID)
	require.NoError(t, err)
	_, err = f.svc.EnableTOTP(ctx, f.account.ID, totpCode(t, setup.Secret))
	require.NoError(t, err)

	require.NoError(t, f.svc.SetupOTPChannel(ctx, f.account.ID, MethodEmailOTP, ""))
	last, ok := f.notifier.Last()
	require.True(t, ok)
	require.NoError(t, f.svc.EnableOTPChannel(ctx, f.account.ID, MethodEmailOTP, last.Data["Code"]))

	require.NoError(t, f.svc.DisableMethod(ctx, f.account.ID, MethodEmailOTP))

	// The other method stays queryable and usable.
	enabled, err := f.svc.FindEnabledMethods(ctx, f.account.ID)
	require.NoError(t, err)
	require.Len(t, enabled, 1)
	assert.Equal(t, MethodTOTP, enabled[0].Kind)

	result, err := f.svc.VerifyCode(ctx, f.account.ID, MethodTOTP, totpCode(t, setup.Secret))
	require.NoError(t, err)
	assert.True(t, result.IsValid)

	// The disabled row is kept, not deleted.
	all, err := f.svc.FindMethods(ctx, f.account.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	// Verifying against the disabled channel reports it as not set up.
	_, err = f.svc.VerifyCode(ctx, f.account.ID, MethodEmailOTP, "123456")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCode2FANotSetUp))
}
