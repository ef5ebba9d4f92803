package tokengenerator

import (
	"net/http"
	"time"
)

const SessionCookieName = "session_token"

// CookieSetter writes and clears token cookies on HTTP responses.
type CookieSetter interface {
	SetCookie(w http.ResponseWriter, name, value string, expire time.Time) error
	ClearCookie(w http.ResponseWriter, name string) error
}

// DefaultCookieSetter issues HttpOnly cookies. Secure should be true in any
// deployment served over HTTPS.
type DefaultCookieSetter struct {
	Path     string
	Secure   bool
	SameSite http.SameSite
}

func NewDefaultCookieSetter(secure bool) *DefaultCookieSetter {
	return &DefaultCookieSetter{
		Path:     "/",
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (c *DefaultCookieSetter) SetCookie(w http.ResponseWriter, name, value string, expire time.Time) error {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     c.Path,
		Expires:  expire,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	})
	return nil
}

func (c *DefaultCookieSetter) ClearCookie(w http.ResponseWriter, name string) error {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     c.Path,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	})
	return nil
}
