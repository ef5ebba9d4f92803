package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/averly/authcore/pkg/accounts"
	"github.com/averly/authcore/pkg/audit"
	"github.com/averly/authcore/pkg/login"
	"github.com/averly/authcore/pkg/loginflow"
	"github.com/averly/authcore/pkg/notification"
	"github.com/averly/authcore/pkg/tokengenerator"
	"github.com/averly/authcore/pkg/twofa"
)

const testJWTSecret = "api-test-secret"

type apiFixture struct {
	router   chi.Router
	accounts *accounts.InMemoryAccountRepository
	twoFa    *twofa.TwoFaService
	notifier *notification.MockNotifier
	account  accounts.Account
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	accountRepo := accounts.NewInMemoryAccountRepository()
	logger := audit.NewInMemoryLogger()

	notifier := &notification.MockNotifier{}
	nm, err := notification.NewNotificationManagerWithOptions(notification.WithDefaultTemplates())
	require.NoError(t, err)
	nm.RegisterNotifier(notification.EmailSystem, notifier)
	nm.RegisterNotifier(notification.SMSSystem, notifier)

	loginService := login.NewLoginService(accountRepo, logger)
	hasher := loginService.Hasher()
	passwordManager := login.NewPasswordManager(accountRepo, hasher, loginService.Config().PasswordPolicy, logger)
	resetTokens := login.NewResetTokenService(
		login.NewInMemoryResetTokenRepository(), accountRepo, logger, nm, loginService.Config())
	twoFaService := twofa.NewTwoFaService(
		twofa.NewInMemoryMethodRepository(), twofa.NewInMemoryOTPStore(), accountRepo, nm, logger)
	tokenService := tokengenerator.NewSessionTokenService(
		tokengenerator.NewJwtTokenGenerator(testJWTSecret, "authcore", "authcore-api"))

	flow := loginflow.NewLoginFlowService(&loginflow.ServiceDependencies{
		LoginService:    loginService,
		PasswordManager: passwordManager,
		ResetTokens:     resetTokens,
		TwoFaService:    twoFaService,
		TokenService:    tokenService,
		Accounts:        accountRepo,
		AuditLogger:     logger,
	})

	hash, err := hasher.Hash("Password1")
	require.NoError(t, err)
	account, err := accountRepo.Create(context.Background(), accounts.Account{
		Email:        "user@example.com",
		PasswordHash: hash,
		Active:       true,
	})
	require.NoError(t, err)

	router := chi.NewRouter()
	SetupRoutes(router, RouterConfig{
		Handle:  NewHandle(flow, twoFaService, passwordManager, tokengenerator.NewDefaultCookieSetter(false)),
		JWTAuth: NewJWTAuth(testJWTSecret),
	})

	return &apiFixture{
		router:   router,
		accounts: accountRepo,
		twoFa:    twoFaService,
		notifier: notifier,
		account:  account,
	}
}

func (f *apiFixture) do(t *testing.T, method, path, bearer string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func (f *apiFixture) loginSession(t *testing.T) string {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Email: "user@example.com", Password: "Password1"})
	require.Equal(t, http.StatusOK, rec.Code)
	return decodeBody[LoginResponse](t, rec).SessionToken
}

func (f *apiFixture) enrollTOTP(t *testing.T) string {
	t.Helper()
	setup, err := f.twoFa.SetupTOTP(context.Background(), f.account.ID)
	require.NoError(t, err)
	code, err := totp.GenerateCode(setup.Secret, time.Now().UTC())
	require.NoError(t, err)
	_, err = f.twoFa.EnableTOTP(context.Background(), f.account.ID, code)
	require.NoError(t, err)
	return setup.Secret
}

func TestLoginEndpoint(t *testing.T) {
	t.Run("success sets the session cookie", func(t *testing.T) {
		f := newAPIFixture(t)

		rec := f.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Email: "user@example.com", Password: "Password1"})
		require.Equal(t, http.StatusOK, rec.Code)

		resp := decodeBody[LoginResponse](t, rec)
		assert.Equal(t, StatusSuccess, resp.Status)
		assert.NotEmpty(t, resp.SessionToken)
		require.NotNil(t, resp.User)
		assert.Equal(t, "user@example.com", resp.User.Email)

		cookies := rec.Result().Cookies()
		require.NotEmpty(t, cookies)
		assert.Equal(t, tokengenerator.SessionCookieName, cookies[0].Name)
		assert.True(t, cookies[0].HttpOnly)
	})

	t.Run("bad credentials return 401 with the generic message", func(t *testing.T) {
		f := newAPIFixture(t)

		wrong := f.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Email: "user@example.com", Password: "nope"})
		unknown := f.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Email: "nobody@example.com", Password: "nope"})

		require.Equal(t, http.StatusUnauthorized, wrong.Code)
		require.Equal(t, http.StatusUnauthorized, unknown.Code)
		assert.Equal(t, wrong.Body.String(), unknown.Body.String())
	})

	t.Run("missing fields return 400", func(t *testing.T) {
		f := newAPIFixture(t)
		rec := f.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Email: "user@example.com"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestTwoFaVerifyEndpoint(t *testing.T) {
	t.Run("challenge then verify", func(t *testing.T) {
		f := newAPIFixture(t)
		secret := f.enrollTOTP(t)

		rec := f.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Email: "user@example.com", Password: "Password1"})
		require.Equal(t, http.StatusAccepted, rec.Code)

		resp := decodeBody[LoginResponse](t, rec)
		require.Equal(t, Status2FARequired, resp.Status)
		require.NotNil(t, resp.TwoFactor)
		assert.Contains(t, resp.TwoFactor.Methods, twofa.MethodTOTP)
		assert.Empty(t, resp.SessionToken)

		code, err := totp.GenerateCode(secret, time.Now().UTC())
		require.NoError(t, err)
		rec = f.do(t, http.MethodPost, "/auth/2fa/verify", "", VerifyTwoFaRequest{
			ChallengeToken: resp.TwoFactor.ChallengeToken,
			Code:           code,
			Method:         twofa.MethodTOTP,
		})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, StatusSuccess, decodeBody[LoginResponse](t, rec).Status)
	})

	t.Run("wrong code returns 401 with verification state", func(t *testing.T) {
		f := newAPIFixture(t)
		f.enrollTOTP(t)

		rec := f.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Email: "user@example.com", Password: "Password1"})
		resp := decodeBody[LoginResponse](t, rec)
		require.NotNil(t, resp.TwoFactor)

		rec = f.do(t, http.MethodPost, "/auth/2fa/verify", "", VerifyTwoFaRequest{
			ChallengeToken: resp.TwoFactor.ChallengeToken,
			Code:           "000000",
			Method:         twofa.MethodTOTP,
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		body := decodeBody[TwoFaFailureBody](t, rec)
		assert.False(t, body.MethodLocked)
		assert.Nil(t, body.AttemptsRemaining)
	})

	t.Run("challenge token is rejected on authenticated endpoints", func(t *testing.T) {
		f := newAPIFixture(t)
		f.enrollTOTP(t)

		rec := f.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Email: "user@example.com", Password: "Password1"})
		resp := decodeBody[LoginResponse](t, rec)
		require.NotNil(t, resp.TwoFactor)

		rec = f.do(t, http.MethodGet, "/2fa/methods", resp.TwoFactor.ChallengeToken, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestTwoFaManagementEndpoints(t *testing.T) {
	t.Run("requires authentication", func(t *testing.T) {
		f := newAPIFixture(t)
		rec := f.do(t, http.MethodGet, "/2fa/methods", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("totp enrollment over http", func(t *testing.T) {
		f := newAPIFixture(t)
		session := f.loginSession(t)

		rec := f.do(t, http.MethodPost, "/2fa/totp/setup", session, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		setup := decodeBody[TotpSetupResponse](t, rec)
		require.NotEmpty(t, setup.Secret)

		code, err := totp.GenerateCode(setup.Secret, time.Now().UTC())
		require.NoError(t, err)
		rec = f.do(t, http.MethodPost, "/2fa/totp/enable", session, map[string]string{"code": code})
		require.Equal(t, http.StatusOK, rec.Code)
		codes := decodeBody[BackupCodesResponse](t, rec)
		assert.Len(t, codes.BackupCodes, 10)

		rec = f.do(t, http.MethodGet, "/2fa/methods", session, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		methods := decodeBody[[]MethodInfo](t, rec)
		require.Len(t, methods, 1)
		assert.Equal(t, twofa.MethodTOTP, methods[0].Kind)
		assert.True(t, methods[0].Enabled)

		rec = f.do(t, http.MethodDelete, fmt.Sprintf("/2fa/methods/%s", twofa.MethodTOTP), session, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("disabled method is not listed", func(t *testing.T) {
		f := newAPIFixture(t)
		session := f.loginSession(t)
		ctx := context.Background()
		f.enrollTOTP(t)

		require.NoError(t, f.twoFa.SetupOTPChannel(ctx, f.account.ID, twofa.MethodEmailOTP, ""))
		last, ok := f.notifier.Last()
		require.True(t, ok)
		require.NoError(t, f.twoFa.EnableOTPChannel(ctx, f.account.ID, twofa.MethodEmailOTP, last.Data["Code"]))

		rec := f.do(t, http.MethodGet, "/2fa/methods", session, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, decodeBody[[]MethodInfo](t, rec), 2)

		rec = f.do(t, http.MethodDelete, fmt.Sprintf("/2fa/methods/%s", twofa.MethodEmailOTP), session, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = f.do(t, http.MethodGet, "/2fa/methods", session, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		methods := decodeBody[[]MethodInfo](t, rec)
		require.Len(t, methods, 1)
		assert.Equal(t, twofa.MethodTOTP, methods[0].Kind)
		assert.True(t, methods[0].Enabled)
	})

	t.Run("change password", func(t *testing.T) {
		f := newAPIFixture(t)
		session := f.loginSession(t)

		rec := f.do(t, http.MethodPut, "/password", session, ChangePasswordRequest{
			CurrentPassword: "Password1",
			NewPassword:     "Fresh-Password2",
		})
		require.Equal(t, http.StatusOK, rec.Code)

		rec = f.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Email: "user@example.com", Password: "Fresh-Password2"})
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestPasswordResetEndpoints(t *testing.T) {
	t.Run("request and confirm", func(t *testing.T) {
		f := newAPIFixture(t)

		rec := f.do(t, http.MethodPost, "/auth/password/reset", "", PasswordResetRequest{Email: "user@example.com"})
		require.Equal(t, http.StatusOK, rec.Code)

		last, ok := f.notifier.Last()
		require.True(t, ok)
		token := last.Data["Token"]
		require.NotEmpty(t, token)

		rec = f.do(t, http.MethodPost, "/auth/password/reset/confirm", "", PasswordResetConfirm{
			Token:       token,
			NewPassword: "Fresh-Password2",
		})
		require.Equal(t, http.StatusOK, rec.Code)

		rec = f.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Email: "user@example.com", Password: "Fresh-Password2"})
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("unknown email gets the same response", func(t *testing.T) {
		f := newAPIFixture(t)

		known := f.do(t, http.MethodPost, "/auth/password/reset", "", PasswordResetRequest{Email: "user@example.com"})
		unknown := f.do(t, http.MethodPost, "/auth/password/reset", "", PasswordResetRequest{Email: "nobody@example.com"})

		require.Equal(t, http.StatusOK, known.Code)
		require.Equal(t, http.StatusOK, unknown.Code)
		assert.Equal(t, known.Body.String(), unknown.Body.String())
	})

	t.Run("bad token is rejected", func(t *testing.T) {
		f := newAPIFixture(t)
		rec := f.do(t, http.MethodPost, "/auth/password/reset/confirm", "", PasswordResetConfirm{
			Token:       "not-a-token",
			NewPassword: "Fresh-Password2",
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
