// Package loginflow orchestrates the end-to-end authentication flow. It
// composes the password phase, the optional second-factor challenge, and the
// password reset flow into a small set of operations that each return a
// Result envelope ready to serialize to a client.
//
// The orchestrator owns two invariants the underlying services cannot
// enforce on their own: the failed-login tracker is reset only when a full
// session is issued (which may be after the second factor), and every
// internal failure is replaced here with a generic user-facing message.
package loginflow
