// Package errors provides structured error handling with error codes for
// the authentication core.
//
// Every user-facing failure carries a typed ErrorCode; the HTTP layer maps
// codes to status codes with MapErrorCodeToHTTPStatus. Internal errors are
// wrapped with full detail for server-side logs and converted to a generic
// response at the orchestrator boundary, so nothing about hashing, token
// signing, or storage internals reaches a caller.
//
// Creating errors:
//
//	err := errors.New(errors.ErrCodeInvalidCredentials, "invalid email or password")
//	err := errors.Wrap(dbErr, errors.ErrCodeInternal, "failed to query account")
//	err := errors.InvalidInput("email", "must not be empty")
//
// Inspecting errors:
//
//	if errors.IsCode(err, errors.ErrCodeAccountLocked) { ... }
//	status := errors.GetCode(err)
package errors
