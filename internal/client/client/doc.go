// Package client contains the client-side building blocks that talk to the
// outside world: the finance backend and the local database.
//
// # Overview
//
// The package provides:
//  1. RESTClient, a JSON-over-HTTP client for the backend: signup, OTP
//     verification, login, password reset, user update/delete, the admin
//     user endpoints and transaction CRUD. A TokenSource supplies the bearer
//     token, and every request carries an X-Request-ID.
//  2. Local persistence bootstrap (InitDatabase, RunMigrations) that opens the
//     SQLite database and applies the embedded goose migrations.
//
// # Error Handling
//
// Every RESTClient failure is an *Error with a Kind (validation, auth,
// verification, network, rejected). Callers match with errors.Is against
// ErrValidation, ErrUnauthorized, ErrVerification, ErrUnavailable and
// ErrRejected, or read the Kind with KindOf. Rejections of an OTP submission
// are reported as verification errors.
//
// No retries are performed; a failed call is terminal for that call.
package client
