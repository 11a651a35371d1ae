// Package services contains the application services behind the REPL views
// that are not part of the identity lifecycle: the transactions editor and
// the admin user list. Each call checks the role gate against the current
// session before it reaches the backend.
package services
