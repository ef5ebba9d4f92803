// Package accounts defines the Account identity record and its repository.
//
// Two implementations are provided: an in-memory repository for tests and
// lightweight deployments, and a Postgres repository on pgx. The lockout
// fields (failed_login_attempts, locked_until) are owned by the login
// service's lockout tracking; everything else in the broader application
// treats accounts as plain CRUD.
package accounts
