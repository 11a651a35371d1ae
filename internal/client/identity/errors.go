package identity

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy is returned when another backend call is still in flight.
	ErrBusy = errors.New("another request is in progress")
	// ErrSuperseded is returned when the state changed locally (sign-out,
	// cancel, expiry) while the call was in flight; its result was dropped.
	ErrSuperseded = errors.New("request result discarded: state changed meanwhile")
	// ErrNoVerification is returned by SubmitOTP when no challenge is live.
	ErrNoVerification = errors.New("no verification in progress")
	// ErrInvalidCredentials is the only login failure reported for rejected
	// credentials, whatever the backend said.
	ErrInvalidCredentials = errors.New("login failed, check your credentials")
)

// ErrInvalidTransition reports an operation that is not allowed in the
// current state. Nothing was changed.
type ErrInvalidTransition struct {
	State   State
	Trigger Trigger
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("cannot %s while %s", e.Trigger, e.State)
}

func IsInvalidTransition(err error) bool {
	var e *ErrInvalidTransition
	return errors.As(err, &e)
}
