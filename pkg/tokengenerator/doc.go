// Package tokengenerator issues and validates the JWTs used by the
// authentication flow: one-hour session tokens and ten-minute challenge
// tokens for pending second-factor verification. Both are HS256-signed and
// stateless; a token's type is carried in its claims and checked on decode
// so the two kinds are never interchangeable.
package tokengenerator
