// Package cli provides the interactive SpendSmart command-line client.
//
// It drives the identity controller (signup, OTP verification, login,
// password reset, profile changes, sign-out) and the transactions and admin
// services from a line-oriented REPL. The prompt shows who is signed in and
// their role; every command ends with a one-line success or failure notice.
//
// Key features:
//   - signup / verify / cancel / login / forgot / logout
//   - profile changes with email re-verification, account deletion
//   - transaction list / add / edit / remove with a balance summary
//   - admin user list, role changes and user deletion (admins only)
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
