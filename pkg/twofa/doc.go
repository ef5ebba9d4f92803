// Package twofa implements second-factor verification and enrollment.
//
// Four strategies sit behind one MethodVerifier interface, dispatched by
// method kind: totp (stateless, checked against the enrolled shared secret),
// email_otp and sms_otp (codes issued at login time with a per-channel
// attempt counter that locks the channel independently of the account
// lockout), and backup_code (single-use, consumed on match).
//
// Enrollments are soft-disabled, never deleted. Backup codes are generated
// ten at a time whenever TOTP is enabled or codes are regenerated, and
// regeneration invalidates every prior unconsumed code atomically.
package twofa
