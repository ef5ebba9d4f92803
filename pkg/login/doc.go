// Package login implements the password phase of authentication.
//
// LoginService verifies email/password credentials and drives the account
// lockout tracker: five failures lock an account for fifteen minutes, and an
// expired lockout is cleared lazily the next time the account is checked.
// PasswordManager applies the complexity policy and handles password changes,
// rejecting a change to the same password. ResetTokenService issues and
// redeems single-use password reset tokens, storing only one-way hashes and
// throttling requests per email against the audit log.
//
// All rejection paths that could reveal whether an email is registered
// return the same generic message.
package login
