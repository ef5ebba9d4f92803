// Package utils provides small, stateless helpers shared across the
// authentication core: secure random generation, one-way token digests with
// constant-time comparison, email/phone masking for logs, and SQL null type
// conversions. Only the standard library and google/uuid are used here.
package utils
