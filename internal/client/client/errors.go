package client

import (
	"errors"
	"fmt"
)

// Kind classifies a failed backend call. Every error returned by RESTClient
// is an *Error carrying one of these kinds.
type Kind int

const (
	// KindValidation: the input was rejected as malformed or conflicting
	// (local checks, HTTP 400/409/422). Surfaced inline, no state change.
	KindValidation Kind = iota + 1
	// KindAuth: credentials or token rejected (HTTP 401/403).
	KindAuth
	// KindVerification: a one-time passcode was wrong or expired.
	KindVerification
	// KindNetwork: transport failure, timeout, 5xx or an undecodable response.
	KindNetwork
	// KindRejected: any other non-2xx answer from the backend.
	KindRejected
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindVerification:
		return "verification"
	case KindNetwork:
		return "network"
	case KindRejected:
		return "rejected"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Sentinels for errors.Is; an *Error matches the sentinel of its Kind.
var (
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrVerification = errors.New("verification failed")
	ErrUnavailable  = errors.New("server unavailable")
	ErrRejected     = errors.New("request rejected")
)

func (k Kind) sentinel() error {
	switch k {
	case KindValidation:
		return ErrValidation
	case KindAuth:
		return ErrUnauthorized
	case KindVerification:
		return ErrVerification
	case KindNetwork:
		return ErrUnavailable
	case KindRejected:
		return ErrRejected
	default:
		return nil
	}
}

// Error is a classified failure of a backend call or of local input checks.
type Error struct {
	Kind   Kind
	Op     string // e.g. "login", "verify-otp"
	Status int    // HTTP status, 0 when no response was received
	Detail string // human-readable reason from the backend or validator
	Err    error  // underlying cause, if any
}

func (e *Error) Error() string {
	msg := e.Detail
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		if s := e.Kind.sentinel(); s != nil {
			msg = s.Error()
		} else {
			msg = e.Kind.String()
		}
	}
	if e.Op == "" {
		return msg
	}
	return e.Op + ": " + msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// NewValidationError reports locally rejected input for op.
func NewValidationError(op string, err error) *Error {
	return &Error{Kind: KindValidation, Op: op, Detail: err.Error(), Err: err}
}

// KindOf returns the Kind of err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// kindForStatus maps a non-2xx HTTP status to a Kind.
func kindForStatus(status int) Kind {
	switch {
	case status == 400, status == 409, status == 422:
		return KindValidation
	case status == 401, status == 403:
		return KindAuth
	case status == 408, status == 429, status >= 500:
		return KindNetwork
	default:
		return KindRejected
	}
}

// asVerification re-tags client-side rejections of an OTP submission as
// verification failures. Network failures keep their kind.
func asVerification(err error) error {
	var e *Error
	if !errors.As(err, &e) {
		return err
	}
	switch e.Kind {
	case KindValidation, KindAuth, KindRejected:
		c := *e
		c.Kind = KindVerification
		return &c
	default:
		return err
	}
}
