package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/spendsmart/internal/client/identity"
	"github.com/dmitrijs2005/spendsmart/internal/client/verification"
)

// Signup prompts for username, email and password and registers a new
// account. On success the REPL waits for the emailed code ("verify").
func (a *App) Signup(ctx context.Context) error {
	username, err := a.ask("Enter username")
	if err != nil {
		return err
	}
	email, err := a.ask("Enter email")
	if err != nil {
		return err
	}
	password, err := a.askPassword("Enter password")
	if err != nil {
		return err
	}

	form := identity.SignupForm{Username: username, Email: email, Password: password}
	if err := a.identity.SubmitSignup(ctx, form); err != nil {
		return a.fail(ctx, "signup", err)
	}
	a.success("a verification code was sent to " + email + "; enter it with 'verify'")
	return nil
}

// Verify reads the passcode for the live challenge. For a password reset it
// also asks for the new password.
func (a *App) Verify(ctx context.Context) error {
	vc, ok := a.identity.Verification()
	if !ok {
		return a.fail(ctx, "verify", identity.ErrNoVerification)
	}

	code, err := a.ask("Enter the code sent to your email")
	if err != nil {
		return err
	}

	var opts []identity.OTPOption
	if _, reset := vc.Challenge.(verification.PasswordResetChallenge); reset {
		pw, err := a.askPassword("Enter new password")
		if err != nil {
			return err
		}
		opts = append(opts, identity.WithNewPassword(pw))
	}

	if err := a.identity.SubmitOTP(ctx, code, opts...); err != nil {
		return a.fail(ctx, "verify", err)
	}

	switch vc.Challenge.(type) {
	case verification.SignupChallenge:
		a.success("account verified, you can now log in")
	case verification.EmailChangeChallenge:
		a.success("email changed, please log in again")
	case verification.PasswordResetChallenge:
		a.success("password reset, you can now log in")
	}
	return nil
}

// Cancel abandons the pending verification.
func (a *App) Cancel(ctx context.Context) error {
	if err := a.identity.CancelVerification(); err != nil {
		return a.fail(ctx, "cancel", err)
	}
	if a.identity.State() == identity.Authenticated {
		a.success("email change cancelled, you are still logged in")
		return nil
	}
	a.success("verification cancelled")
	return nil
}

func (a *App) Login(ctx context.Context) error {
	username, err := a.ask("Enter username")
	if err != nil {
		return err
	}
	password, err := a.askPassword("Enter password")
	if err != nil {
		return err
	}

	if err := a.identity.Login(ctx, username, password); err != nil {
		return a.fail(ctx, "login", err)
	}
	s := a.identity.Session()
	if s != nil {
		a.success(fmt.Sprintf("welcome, %s", s.DisplayName))
	}
	return nil
}

// Forgot starts a password reset for an email address.
func (a *App) Forgot(ctx context.Context) error {
	email, err := a.ask("Enter your account email")
	if err != nil {
		return err
	}
	if err := a.identity.ForgotPassword(ctx, email); err != nil {
		return a.fail(ctx, "forgot", err)
	}
	a.success("a reset code was sent to " + email + "; enter it with 'verify'")
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	if err := a.identity.SignOut(ctx); err != nil {
		return a.fail(ctx, "logout", err)
	}
	a.success("logged out")
	return nil
}

// WhoAmI prints the signed-in identity.
func (a *App) WhoAmI(ctx context.Context) error {
	s := a.identity.Session()
	if s == nil {
		printlnFn("Not logged in (" + a.identity.State().String() + ")")
		return nil
	}
	printlnFn(fmt.Sprintf("%s <%s>, role %s, id %s", s.DisplayName, s.Email, s.Role, s.SubjectID))
	return nil
}
