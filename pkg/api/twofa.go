package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/jinzhu/copier"

	"github.com/averly/authcore/pkg/errors"
)

// MethodInfo is the client view of an enrolled method. Secrets never leave
// the server; the phone number is returned as stored since the owner
// provided it.
type MethodInfo struct {
	Kind        string    `json:"kind"`
	Enabled     bool      `json:"enabled"`
	PhoneNumber string    `json:"phone_number,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// List enabled 2FA methods. Disabled enrollments stay in storage but are
// not part of the account's method list.
// (GET /2fa/methods)
func (h Handle) ListTwoFaMethods(w http.ResponseWriter, r *http.Request) {
	accountID, ok := AccountIDFromContext(r.Context())
	if !ok {
		renderError(w, r, errors.New(errors.ErrCodeSessionExpired, "session expired or invalid"))
		return
	}

	methods, err := h.twoFaService.FindEnabledMethods(r.Context(), accountID)
	if err != nil {
		slog.Error("Failed to list 2FA methods", "err", err)
		renderError(w, r, err)
		return
	}

	infos := make([]MethodInfo, 0, len(methods))
	for _, m := range methods {
		var info MethodInfo
		if err := copier.Copy(&info, &m); err != nil {
			renderError(w, r, errors.InternalWrap(err, "failed to map method"))
			return
		}
		infos = append(infos, info)
	}
	render.JSON(w, r, infos)
}

// TotpSetupResponse carries the enrollment secret. It is shown once, at
// setup time.
type TotpSetupResponse struct {
	Secret          string `json:"secret"`
	ProvisioningURI string `json:"provisioning_uri"`
}

// Begin TOTP enrollment
// (POST /2fa/totp/setup)
func (h Handle) SetupTotp(w http.ResponseWriter, r *http.Request) {
	accountID, ok := AccountIDFromContext(r.Context())
	if !ok {
		renderError(w, r, errors.New(errors.ErrCodeSessionExpired, "session expired or invalid"))
		return
	}

	setup, err := h.twoFaService.SetupTOTP(r.Context(), accountID)
	if err != nil {
		slog.Error("Failed to set up TOTP", "err", err)
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, TotpSetupResponse{
		Secret:          setup.Secret,
		ProvisioningURI: setup.ProvisioningURI,
	})
}

// BackupCodesResponse carries freshly generated backup codes. They are
// shown once and stored only as hashes.
type BackupCodesResponse struct {
	Message     string   `json:"message"`
	BackupCodes []string `json:"backup_codes"`
}

// Confirm TOTP enrollment with a live code
// (POST /2fa/totp/enable)
func (h Handle) EnableTotp(w http.ResponseWriter, r *http.Request) {
	accountID, ok := AccountIDFromContext(r.Context())
	if !ok {
		renderError(w, r, errors.New(errors.ErrCodeSessionExpired, "session expired or invalid"))
		return
	}

	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		renderBadRequest(w, r, "Code is required")
		return
	}

	backupCodes, err := h.twoFaService.EnableTOTP(r.Context(), accountID, req.Code)
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, BackupCodesResponse{
		Message:     "Authenticator enabled. Store these backup codes somewhere safe; they will not be shown again.",
		BackupCodes: backupCodes,
	})
}

type OtpChannelSetupRequest struct {
	Method      string `json:"method"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

// Begin OTP channel enrollment; a confirmation code is sent to the channel
// (POST /2fa/otp/setup)
func (h Handle) SetupOtpChannel(w http.ResponseWriter, r *http.Request) {
	accountID, ok := AccountIDFromContext(r.Context())
	if !ok {
		renderError(w, r, errors.New(errors.ErrCodeSessionExpired, "session expired or invalid"))
		return
	}

	var req OtpChannelSetupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderBadRequest(w, r, "Invalid request body")
		return
	}

	if err := h.twoFaService.SetupOTPChannel(r.Context(), accountID, req.Method, req.PhoneNumber); err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, MessageBody{Message: "A confirmation code has been sent"})
}

// Confirm OTP channel enrollment with the delivered code
// (POST /2fa/otp/enable)
func (h Handle) EnableOtpChannel(w http.ResponseWriter, r *http.Request) {
	accountID, ok := AccountIDFromContext(r.Context())
	if !ok {
		renderError(w, r, errors.New(errors.ErrCodeSessionExpired, "session expired or invalid"))
		return
	}

	var req struct {
		Method string `json:"method"`
		Code   string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Method == "" || req.Code == "" {
		renderBadRequest(w, r, "Method and code are required")
		return
	}

	if err := h.twoFaService.EnableOTPChannel(r.Context(), accountID, req.Method, req.Code); err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, MessageBody{Message: "Verification method enabled"})
}

// Disable an enrolled method
// (DELETE /2fa/methods/{method})
func (h Handle) DisableTwoFaMethod(w http.ResponseWriter, r *http.Request) {
	accountID, ok := AccountIDFromContext(r.Context())
	if !ok {
		renderError(w, r, errors.New(errors.ErrCodeSessionExpired, "session expired or invalid"))
		return
	}

	kind := chi.URLParam(r, "method")
	if err := h.twoFaService.DisableMethod(r.Context(), accountID, kind); err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, MessageBody{Message: "Verification method disabled"})
}

// Replace all backup codes
// (POST /2fa/backup-codes)
func (h Handle) RegenerateBackupCodes(w http.ResponseWriter, r *http.Request) {
	accountID, ok := AccountIDFromContext(r.Context())
	if !ok {
		renderError(w, r, errors.New(errors.ErrCodeSessionExpired, "session expired or invalid"))
		return
	}

	codes, err := h.twoFaService.RegenerateBackupCodes(r.Context(), accountID)
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, BackupCodesResponse{
		Message:     "Previous backup codes are no longer valid.",
		BackupCodes: codes,
	})
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// Change password for the authenticated account
// (PUT /password)
func (h Handle) ChangePassword(w http.ResponseWriter, r *http.Request) {
	accountID, ok := AccountIDFromContext(r.Context())
	if !ok {
		renderError(w, r, errors.New(errors.ErrCodeSessionExpired, "session expired or invalid"))
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderBadRequest(w, r, "Invalid request body")
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		renderBadRequest(w, r, "Current password and new password are required")
		return
	}

	if err := h.passwordManager.ChangePassword(r.Context(), accountID, req.CurrentPassword, req.NewPassword); err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, MessageBody{Message: "Password updated successfully"})
}
