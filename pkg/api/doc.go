// Package api exposes the authentication flow over HTTP. Public endpoints
// cover login, second-factor verification, and password reset; the
// management endpoints under a session-token guard cover 2FA enrollment and
// password changes.
package api
