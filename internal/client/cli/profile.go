package cli

import (
	"context"

	"github.com/dmitrijs2005/spendsmart/internal/client/identity"
)

// Profile edits username and email. Blank answers keep the current value.
// A new email has to be confirmed with 'verify' and ends the session.
func (a *App) Profile(ctx context.Context) error {
	cur := a.identity.Session()
	if cur == nil {
		return a.fail(ctx, "profile", &identity.ErrInvalidTransition{State: a.identity.State(), Trigger: identity.TriggerUpdateProfile})
	}

	username, err := a.ask("Username [" + cur.DisplayName + "]")
	if err != nil {
		return err
	}
	email, err := a.ask("Email [" + cur.Email + "]")
	if err != nil {
		return err
	}

	if err := a.identity.UpdateProfile(ctx, identity.ProfileUpdate{Username: username, Email: email}); err != nil {
		return a.fail(ctx, "profile", err)
	}

	switch a.identity.State() {
	case identity.PendingVerification:
		a.success("a verification code was sent to " + email + "; enter it with 'verify'")
	default:
		a.success("profile saved")
	}
	return nil
}

// DeleteAccount deletes the signed-in account after confirmation.
func (a *App) DeleteAccount(ctx context.Context) error {
	ok, err := getConfirmation(a.reader, "Delete your account permanently?", a.out)
	if err != nil {
		return err
	}
	if !ok {
		printlnFn("Aborted.")
		return nil
	}
	if err := a.identity.DeleteAccount(ctx); err != nil {
		return a.fail(ctx, "delete-account", err)
	}
	a.success("account deleted")
	return nil
}
