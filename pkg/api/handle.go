package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"github.com/averly/authcore/pkg/errors"
	"github.com/averly/authcore/pkg/login"
	"github.com/averly/authcore/pkg/loginflow"
	"github.com/averly/authcore/pkg/tokengenerator"
	"github.com/averly/authcore/pkg/twofa"
)

// Status values returned by the authentication endpoints
const (
	StatusSuccess     = "success"
	Status2FARequired = "2fa_required"
)

type Handle struct {
	flow            *loginflow.LoginFlowService
	twoFaService    *twofa.TwoFaService
	passwordManager *login.PasswordManager
	cookieSetter    tokengenerator.CookieSetter
}

func NewHandle(flow *loginflow.LoginFlowService, twoFaService *twofa.TwoFaService, passwordManager *login.PasswordManager, cookieSetter tokengenerator.CookieSetter) Handle {
	return Handle{
		flow:            flow,
		twoFaService:    twoFaService,
		passwordManager: passwordManager,
		cookieSetter:    cookieSetter,
	}
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TwoFactorPrompt describes a pending second-factor challenge.
type TwoFactorPrompt struct {
	ChallengeToken string    `json:"challenge_token"`
	ExpiresAt      time.Time `json:"expires_at"`
	Methods        []string  `json:"methods"`
}

// LoginResponse is returned by login and 2FA verification on success or
// when a second factor is still pending.
type LoginResponse struct {
	Status       string              `json:"status"`
	Message      string              `json:"message"`
	SessionToken string              `json:"session_token,omitempty"`
	ExpiresAt    *time.Time          `json:"expires_at,omitempty"`
	User         *loginflow.UserInfo `json:"user,omitempty"`
	TwoFactor    *TwoFactorPrompt    `json:"two_factor,omitempty"`
}

// TwoFaFailureBody extends the error payload with verification state.
type TwoFaFailureBody struct {
	ErrorBody
	AttemptsRemaining *int `json:"attempts_remaining,omitempty"`
	MethodLocked      bool `json:"method_locked"`
}

// Authenticate with email and password
// (POST /login)
func (h Handle) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Failed to decode request body", "err", err)
		renderBadRequest(w, r, "Invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		renderBadRequest(w, r, "Email and password are required")
		return
	}

	result := h.flow.Login(r.Context(), req.Email, req.Password)
	h.renderFlowResult(w, r, result)
}

type VerifyTwoFaRequest struct {
	ChallengeToken string `json:"challenge_token"`
	Code           string `json:"code"`
	Method         string `json:"method"`
}

// Complete a pending second-factor challenge
// (POST /2fa/verify)
func (h Handle) VerifyTwoFa(w http.ResponseWriter, r *http.Request) {
	var req VerifyTwoFaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Failed to decode request body", "err", err)
		renderBadRequest(w, r, "Invalid request body")
		return
	}
	if req.ChallengeToken == "" || req.Code == "" || req.Method == "" {
		renderBadRequest(w, r, "Challenge token, code, and method are required")
		return
	}

	result := h.flow.VerifyChallenge(r.Context(), req.ChallengeToken, req.Code, req.Method)
	if result.ErrorResponse != nil {
		body := TwoFaFailureBody{
			ErrorBody:    ErrorBody{Code: result.ErrorResponse.Code, Message: result.ErrorResponse.Message},
			MethodLocked: result.MethodLocked,
		}
		if result.AttemptsRemaining != twofa.AttemptsUnlimited {
			body.AttemptsRemaining = &result.AttemptsRemaining
		}
		render.Status(r, errors.MapErrorCodeToHTTPStatus(result.ErrorResponse.Code))
		render.JSON(w, r, body)
		return
	}
	h.renderFlowResult(w, r, result)
}

// Resend a challenge code for an OTP channel
// (POST /2fa/resend)
func (h Handle) ResendTwoFaCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChallengeToken string `json:"challenge_token"`
		Method         string `json:"method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Failed to decode request body", "err", err)
		renderBadRequest(w, r, "Invalid request body")
		return
	}

	claims, err := h.flow.DecodeChallenge(req.ChallengeToken)
	if err != nil {
		renderError(w, r, err)
		return
	}
	if err := h.twoFaService.SendChallenge(r.Context(), claims.AccountID, req.Method); err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, MessageBody{Message: "A new verification code has been sent"})
}

type PasswordResetRequest struct {
	Email string `json:"email"`
}

// Request a password reset token
// (POST /password/reset)
func (h Handle) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req PasswordResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Failed to decode request body", "err", err)
		renderBadRequest(w, r, "Invalid request body")
		return
	}
	if req.Email == "" {
		renderBadRequest(w, r, "Email is required")
		return
	}

	result := h.flow.RequestPasswordReset(r.Context(), req.Email)
	render.JSON(w, r, MessageBody{Message: result.Message})
}

type PasswordResetConfirm struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// Redeem a password reset token
// (POST /password/reset/confirm)
func (h Handle) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req PasswordResetConfirm
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Failed to decode request body", "err", err)
		renderBadRequest(w, r, "Invalid request body")
		return
	}
	if req.Token == "" || req.NewPassword == "" {
		renderBadRequest(w, r, "Token and new password are required")
		return
	}

	result := h.flow.ResetPassword(r.Context(), req.Token, req.NewPassword)
	if result.ErrorResponse != nil {
		renderFlowError(w, r, result.ErrorResponse)
		return
	}
	render.JSON(w, r, MessageBody{Message: result.Message})
}

// Clear the session cookie
// (POST /logout)
func (h Handle) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.cookieSetter.ClearCookie(w, tokengenerator.SessionCookieName); err != nil {
		slog.Error("Failed to clear session cookie", "err", err)
	}
	render.JSON(w, r, MessageBody{Message: "Logged out"})
}

func (h Handle) renderFlowResult(w http.ResponseWriter, r *http.Request, result loginflow.Result) {
	if result.ErrorResponse != nil {
		renderFlowError(w, r, result.ErrorResponse)
		return
	}

	if result.RequiresTwoFA {
		render.Status(r, http.StatusAccepted)
		render.JSON(w, r, LoginResponse{
			Status:  Status2FARequired,
			Message: result.Message,
			TwoFactor: &TwoFactorPrompt{
				ChallengeToken: result.Token,
				ExpiresAt:      result.TokenExpires,
				Methods:        result.AvailableMethods,
			},
		})
		return
	}

	if err := h.cookieSetter.SetCookie(w, tokengenerator.SessionCookieName, result.Token, result.TokenExpires); err != nil {
		slog.Error("Failed to set session cookie", "err", err)
	}
	render.JSON(w, r, LoginResponse{
		Status:       StatusSuccess,
		Message:      result.Message,
		SessionToken: result.Token,
		ExpiresAt:    &result.TokenExpires,
		User:         result.User,
	})
}
