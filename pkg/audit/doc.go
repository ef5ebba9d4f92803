// Package audit provides the audit event sink for the authentication core.
//
// Logging is best-effort: a sink failure is logged server-side and never
// surfaces into an authentication flow. The event log is also the source of
// truth for the password-reset request ceiling (CountRecentEvents over
// password_reset_requested events), so there is no separate counter table.
package audit
