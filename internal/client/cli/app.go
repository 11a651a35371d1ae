package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/spendsmart/internal/client/client"
	"github.com/dmitrijs2005/spendsmart/internal/client/identity"
	"github.com/dmitrijs2005/spendsmart/internal/client/rolegate"
	"github.com/dmitrijs2005/spendsmart/internal/client/services"
	"github.com/dmitrijs2005/spendsmart/internal/client/session"
	"github.com/dmitrijs2005/spendsmart/internal/client/verification"
	"github.com/dmitrijs2005/spendsmart/internal/logging"
)

// Identity is the part of identity.Controller the REPL drives.
type Identity interface {
	State() identity.State
	Session() *session.Session
	Verification() (verification.Context, bool)
	Views() rolegate.Views

	SubmitSignup(ctx context.Context, form identity.SignupForm) error
	SubmitOTP(ctx context.Context, code string, opts ...identity.OTPOption) error
	CancelVerification() error
	Login(ctx context.Context, username, password string) error
	ForgotPassword(ctx context.Context, email string) error
	UpdateProfile(ctx context.Context, upd identity.ProfileUpdate) error
	DeleteAccount(ctx context.Context) error
	SignOut(ctx context.Context) error
}

type App struct {
	identity     Identity
	transactions services.TransactionService
	admin        services.AdminService
	logger       logging.Logger
	reader       *bufio.Reader
	out          io.Writer
}

type Option func(*App)

// WithIO replaces stdin/stdout.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(a *App) {
		a.reader = bufio.NewReader(in)
		a.out = out
	}
}

func WithLogger(l logging.Logger) Option {
	return func(a *App) {
		if l != nil {
			a.logger = l
		}
	}
}

func NewApp(id Identity, tx services.TransactionService, admin services.AdminService, opts ...Option) *App {
	a := &App{
		identity:     id,
		transactions: tx,
		admin:        admin,
		logger:       logging.Discard(),
		reader:       bufio.NewReader(os.Stdin),
		out:          os.Stdout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run starts the REPL and blocks until the user exits or input ends.
func (a *App) Run(ctx context.Context) {
	printlnFn("Welcome to SpendSmart CLI (type 'help' for commands)")
	runREPL(ctx, a, a.status, a.reader)
}

// OnTransition is meant to be installed as the controller's transition hook.
// It reports transitions the user did not ask for.
func (a *App) OnTransition(tr identity.Transition) {
	if tr.Trigger == identity.TriggerExpire {
		printlnFn("\nYour session has expired. Please log in again.")
	}
}

func (a *App) state() identity.State { return a.identity.State() }

func (a *App) views() rolegate.Views { return a.identity.Views() }

// status renders the prompt decoration: who is signed in and their role,
// or which passcode is awaited.
func (a *App) status() string {
	switch a.identity.State() {
	case identity.Authenticated:
		if s := a.identity.Session(); s != nil {
			return fmt.Sprintf("(%s %s)", s.DisplayName, s.Role)
		}
	case identity.PendingVerification:
		if vc, ok := a.identity.Verification(); ok {
			return fmt.Sprintf("(awaiting %s code)", vc.Purpose())
		}
	}
	return ""
}

func (a *App) ask(prompt string) (string, error) {
	return getSimpleText(a.reader, prompt, a.out)
}

func (a *App) askPassword(prompt string) (string, error) {
	pw, err := getPassword(a.out, prompt)
	if err != nil {
		return "", err
	}
	s := string(pw)
	wipe(pw)
	return s, nil
}

func (a *App) success(msg string) {
	printlnFn("OK:", msg)
}

// fail reports err to the user and returns it.
func (a *App) fail(ctx context.Context, cmd string, err error) error {
	a.logger.Debug(ctx, "command failed", "command", cmd, "error", err)
	printlnFn("Error:", describe(err))
	return err
}

// describe turns an error into a one-line user-facing message.
func describe(err error) string {
	var it *identity.ErrInvalidTransition
	var ce *client.Error

	switch {
	case errors.As(err, &it):
		return fmt.Sprintf("%s is not available while %s", it.Trigger, it.State)
	case errors.Is(err, identity.ErrInvalidCredentials),
		errors.Is(err, identity.ErrBusy),
		errors.Is(err, identity.ErrNoVerification),
		errors.Is(err, identity.ErrSuperseded):
		return err.Error()
	case errors.Is(err, rolegate.ErrUnauthenticated):
		return "please log in first"
	case errors.Is(err, rolegate.ErrForbidden):
		return "this command requires the admin role"
	case errors.As(err, &ce):
		switch ce.Kind {
		case client.KindNetwork:
			return "server unavailable, try again later"
		case client.KindVerification:
			if ce.Detail != "" {
				return "verification failed: " + ce.Detail
			}
			return "verification failed: wrong or expired code"
		}
		if ce.Detail != "" {
			return ce.Detail
		}
		return ce.Error()
	default:
		return err.Error()
	}
}
