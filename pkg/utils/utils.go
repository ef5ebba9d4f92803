package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"database/sql"
	"encoding/hex"
	"fmt"
	"math/big"
	mrand "math/rand"
	"strings"

	"github.com/google/uuid"
)

const randomCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateRandomString returns a cryptographically secure random string of
// the given length, suitable for reset tokens and backup codes.
func GenerateRandomString(length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = randomCharset[RandomInt(len(randomCharset))]
	}
	return string(b)
}

// GenerateNumericCode returns a random code of the given number of digits,
// zero-padded, for email/SMS one-time passcodes.
func GenerateNumericCode(digits int) string {
	max := big.NewInt(1)
	for i := 0; i < digits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		// crypto/rand failing is effectively unrecoverable; fall back so
		// callers never receive an empty code
		return fmt.Sprintf("%0*d", digits, mrand.Intn(int(max.Int64())))
	}
	return fmt.Sprintf("%0*d", digits, n)
}

// RandomInt returns a secure random integer in [0, max).
func RandomInt(max int) int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return mrand.Intn(max)
	}
	return int(n.Int64())
}

// HashToken returns the hex-encoded SHA-256 digest of a token value. Raw
// token values are never persisted; only this digest is.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// SecureCompare reports whether two digests are equal in constant time.
func SecureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// HashEmail returns a deterministic digest of an email address for
// privacy-preserving lookups.
func HashEmail(email string) string {
	return HashToken(strings.ToLower(strings.TrimSpace(email)))
}

// HashPhone returns a deterministic digest of a phone number.
func HashPhone(phone string) string {
	return HashToken(phone)
}

// MaskEmail masks the local part of an email for display and logging.
// "john@example.com" becomes "j**n@example.com".
func MaskEmail(email string) string {
	at := strings.Index(email, "@")
	if at <= 1 {
		return email
	}
	local := email[:at]
	domain := email[at:]
	if len(local) == 2 {
		return local[:1] + "*" + local[1:] + domain
	}
	return local[:1] + strings.Repeat("*", len(local)-2) + local[len(local)-1:] + domain
}

// MaskPhone masks all but the last four digits of a phone number.
func MaskPhone(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}

// NormalizeEmail lower-cases and trims an email address. All repository
// lookups go through this so that case differences never split accounts.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ParseUUID parses s, returning uuid.Nil instead of an error on bad input.
func ParseUUID(s string) uuid.UUID {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil
	}
	return id
}

// ToNullString converts a string to sql.NullString, treating "" as NULL.
func ToNullString(str string) sql.NullString {
	return sql.NullString{String: str, Valid: str != ""}
}

// GetValidStrings extracts the valid values from a slice of sql.NullString.
func GetValidStrings(nullStrings []sql.NullString) []string {
	var validStrings []string
	for _, ns := range nullStrings {
		if ns.Valid {
			validStrings = append(validStrings, ns.String)
		}
	}
	return validStrings
}

// StringPtr returns a pointer to s, for optional fields.
func StringPtr(s string) *string {
	return &s
}
