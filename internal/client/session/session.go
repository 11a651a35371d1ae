// Package session owns the client-held signed-in session: the identity
// fields returned by login, persisted so that a restart resumes the session.
//
// A Store is the only writer of the persisted fields. Every mutation goes
// through Set, Patch or Clear; nothing else reads or writes the keys.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// Role is the authorization level of a signed-in account.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

var (
	// ErrNoSession is returned by Patch when nothing is stored.
	ErrNoSession = errors.New("no active session")
	// ErrUnknownRole is returned by ParseRole for anything but user/admin.
	ErrUnknownRole = errors.New("unknown role")
)

// ParseRole validates a role string received from the backend.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleUser, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
}

// Session is the identity of the signed-in user.
type Session struct {
	SubjectID   string
	DisplayName string
	Email       string
	Role        Role
	AuthToken   string
	IssuedAt    time.Time
}

// Validate reports whether s is complete enough to be stored.
func (s Session) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.SubjectID, validation.Required),
		validation.Field(&s.DisplayName, validation.Required),
		validation.Field(&s.Email, validation.Required, is.Email),
		validation.Field(&s.Role, validation.Required, validation.In(RoleUser, RoleAdmin)),
		validation.Field(&s.AuthToken, validation.Required),
		validation.Field(&s.IssuedAt, validation.By(notZeroTime)),
	)
}

func notZeroTime(v interface{}) error {
	if t, ok := v.(time.Time); ok && t.IsZero() {
		return errors.New("cannot be blank")
	}
	return nil
}

// IsAdmin reports whether the session carries the admin role.
func (s *Session) IsAdmin() bool {
	return s != nil && s.Role == RoleAdmin
}

func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// Patch carries the profile fields to change. Empty fields are left as is.
type Patch struct {
	DisplayName string
	Email       string
}

func (p Patch) apply(s Session) Session {
	if p.DisplayName != "" {
		s.DisplayName = p.DisplayName
	}
	if p.Email != "" {
		s.Email = p.Email
	}
	return s
}

// Listener is notified after every change of the stored session. It
// receives a copy, or nil after Clear.
type Listener func(*Session)

// Store persists the current session.
//
// Set, Patch and Clear are visible to Current as soon as they return.
// Implementations are safe for concurrent use.
type Store interface {
	// Init loads a previously persisted session. It returns (nil, nil) when
	// nothing complete is stored; partial leftovers are wiped.
	Init(ctx context.Context) (*Session, error)
	// Current returns a copy of the stored session, or nil.
	Current() *Session
	Set(ctx context.Context, s Session) error
	Patch(ctx context.Context, p Patch) error
	// Clear removes the session. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
	// OnChange registers l; listeners run synchronously in registration order.
	OnChange(l Listener)
}
