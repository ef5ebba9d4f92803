package twofa

import (
	"log/slog"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	totpPeriod = 30
	totpSkew   = 1
)

// TOTPSetup is the material handed to the user during TOTP enrollment. The
// provisioning URI renders as a QR code for authenticator apps.
type TOTPSetup struct {
	Secret          string
	ProvisioningURI string
}

func generateTOTPSecret(issuer, accountName string) (TOTPSetup, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: accountName,
		Period:      totpPeriod,
		Digits:      otp.DigitsSix,
	})
	if err != nil {
		slog.Error("Failed to generate totp secret", "err", err)
		return TOTPSetup{}, err
	}
	return TOTPSetup{
		Secret:          key.Secret(),
		ProvisioningURI: key.URL(),
	}, nil
}

func validateTOTPCode(secret, code string) (bool, error) {
	valid, err := totp.ValidateCustom(code, secret, time.Now().UTC(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		slog.Error("Failed to validate totp code", "err", err)
		return false, err
	}
	return valid, nil
}
