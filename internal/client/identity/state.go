package identity

import (
	"github.com/dmitrijs2005/spendsmart/internal/client/session"
	"github.com/dmitrijs2005/spendsmart/internal/client/verification"
)

// State is the account state of the local user.
type State int

const (
	Anonymous State = iota
	PendingVerification
	Authenticated
)

func (s State) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case PendingVerification:
		return "pending-verification"
	case Authenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Trigger names the operation that caused a transition.
type Trigger string

const (
	TriggerRestore            Trigger = "restore"
	TriggerSignup             Trigger = "signup"
	TriggerSubmitOTP          Trigger = "submit-otp"
	TriggerCancelVerification Trigger = "cancel-verification"
	TriggerLogin              Trigger = "login"
	TriggerForgotPassword     Trigger = "forgot-password"
	TriggerUpdateProfile      Trigger = "update-profile"
	TriggerDeleteAccount      Trigger = "delete-account"
	TriggerSignOut            Trigger = "sign-out"
	TriggerExpire             Trigger = "expire"
)

// Transition records one state change.
type Transition struct {
	From    State
	To      State
	Trigger Trigger
	// Purpose is set when To is PendingVerification.
	Purpose verification.Purpose
}

// TransitionHook observes transitions. It runs after the controller lock is
// released and may call back into the Controller.
type TransitionHook func(Transition)

// Snapshot is a consistent view of the controller.
type Snapshot struct {
	State        State
	Session      *session.Session
	Verification *verification.Context
}
