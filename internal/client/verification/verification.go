// Package verification tracks the one-time-passcode challenge the user is
// currently answering.
//
// A challenge is created when the backend hands out a temporary subject id
// (signup, email change, forgot password). Its concrete type decides which
// call the passcode is sent to.
package verification

import (
	"sync"
	"time"

	"github.com/dmitrijs2005/spendsmart/internal/client/session"
)

// Purpose names the action a challenge confirms.
type Purpose string

const (
	PurposeSignup        Purpose = "signup"
	PurposeEmailChange   Purpose = "email-change"
	PurposePasswordReset Purpose = "password-reset"
)

// Challenge is one of SignupChallenge, EmailChangeChallenge or
// PasswordResetChallenge.
type Challenge interface {
	Purpose() Purpose
	challenge()
}

// SignupChallenge confirms a newly registered account.
type SignupChallenge struct {
	Username string
	Email    string
}

func (SignupChallenge) Purpose() Purpose { return PurposeSignup }
func (SignupChallenge) challenge()       {}

// EmailChangeChallenge confirms a new address for a signed-in account.
// Previous is the session as it was when the change was requested.
type EmailChangeChallenge struct {
	Previous       session.Session
	NewEmail       string
	NewDisplayName string
}

func (EmailChangeChallenge) Purpose() Purpose { return PurposeEmailChange }
func (EmailChangeChallenge) challenge()       {}

// PasswordResetChallenge authorises setting a new password.
type PasswordResetChallenge struct {
	Email string
}

func (PasswordResetChallenge) Purpose() Purpose { return PurposePasswordReset }
func (PasswordResetChallenge) challenge()       {}

// Context is a live challenge.
type Context struct {
	TempSubjectID string
	CreatedAt     time.Time
	Challenge     Challenge
	// Generation identifies this context within its Slot.
	Generation uint64
}

func (c Context) Purpose() Purpose { return c.Challenge.Purpose() }

// Slot holds at most one Context.
type Slot struct {
	mu      sync.Mutex
	current *Context
	gen     uint64
}

// Replace installs a new context, superseding any existing one, and returns
// a copy of it.
func (s *Slot) Replace(tempSubjectID string, ch Challenge, now time.Time) Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	c := Context{
		TempSubjectID: tempSubjectID,
		CreatedAt:     now,
		Challenge:     ch,
		Generation:    s.gen,
	}
	s.current = &c
	return c
}

// Current returns the live context, if any.
func (s *Slot) Current() (Context, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return Context{}, false
	}
	return *s.current, true
}

// Clear discards the live context.
func (s *Slot) Clear() {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
}

// Resolve clears the slot only if it still holds the context with generation
// gen, and reports whether it did.
func (s *Slot) Resolve(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil || s.current.Generation != gen {
		return false
	}
	s.current = nil
	return true
}
