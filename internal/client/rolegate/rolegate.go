// Package rolegate decides which parts of the application the current
// session may reach. It holds no state; callers pass the session each time.
package rolegate

import (
	"errors"

	"github.com/dmitrijs2005/spendsmart/internal/client/session"
)

// View is a gated part of the application.
type View int

const (
	ViewTransactions View = iota + 1
	ViewAdmin
)

func (v View) String() string {
	switch v {
	case ViewTransactions:
		return "transactions"
	case ViewAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

var (
	ErrUnauthenticated = errors.New("sign in required")
	ErrForbidden       = errors.New("not permitted for this role")
)

// Views is the set of reachable views.
type Views struct {
	Admin             bool
	TransactionEditor bool
}

// VisibleViews computes the reachable views for s (nil when signed out).
func VisibleViews(s *session.Session) Views {
	return Views{
		Admin:             s.IsAdmin(),
		TransactionEditor: s != nil,
	}
}

// Require returns nil when s may open v.
func Require(s *session.Session, v View) error {
	if s == nil {
		return ErrUnauthenticated
	}
	views := VisibleViews(s)
	switch v {
	case ViewTransactions:
		if views.TransactionEditor {
			return nil
		}
	case ViewAdmin:
		if views.Admin {
			return nil
		}
	}
	return ErrForbidden
}
