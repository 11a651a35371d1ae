package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/dmitrijs2005/spendsmart/internal/client/client"
	"github.com/dmitrijs2005/spendsmart/internal/client/services"
	"github.com/dmitrijs2005/spendsmart/internal/client/session"
)

// Users lists every other account. Admin only.
func (a *App) Users(ctx context.Context) error {
	users, err := a.admin.ListUsers(ctx)
	if err != nil {
		return a.fail(ctx, "users", err)
	}
	if len(users) == 0 {
		printlnFn("No other users.")
		return nil
	}
	return a.printUsers(users)
}

func (a *App) printUsers(users []client.User) error {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSERNAME\tEMAIL\tROLE")
	for _, u := range users {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", u.ID, u.Username, u.Email, u.Role)
	}
	return tw.Flush()
}

// User shows one account and its transactions. Admin only.
func (a *App) User(ctx context.Context, id string) error {
	u, err := a.admin.GetUser(ctx, id)
	if err != nil {
		return a.fail(ctx, "user", err)
	}
	if err := a.printUsers([]client.User{*u}); err != nil {
		return err
	}
	if len(u.Transactions) == 0 {
		return nil
	}
	printlnFn(fmt.Sprintf("%d transaction(s):", len(u.Transactions)))
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, tx := range u.Transactions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%s\n", tx.ID, tx.Date, kindLabel(tx.IsIncome), tx.Amount, tx.Category)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	a.printSummary(services.Summarize(u.Transactions))
	return nil
}

// Role changes the role of account id. Admin only.
func (a *App) Role(ctx context.Context, id, role string) error {
	r, err := session.ParseRole(role)
	if err != nil {
		return a.fail(ctx, "role", err)
	}
	if err := a.admin.UpdateRole(ctx, id, r); err != nil {
		return a.fail(ctx, "role", err)
	}
	a.success(fmt.Sprintf("user %s is now %s", id, r))
	return nil
}

// DeleteUser removes account id after confirmation. Admin only.
func (a *App) DeleteUser(ctx context.Context, id string) error {
	ok, err := getConfirmation(a.reader, "Delete user "+id+"?", a.out)
	if err != nil {
		return err
	}
	if !ok {
		printlnFn("Aborted.")
		return nil
	}
	if err := a.admin.DeleteUser(ctx, id); err != nil {
		return a.fail(ctx, "deluser", err)
	}
	a.success(fmt.Sprintf("user %s deleted", id))
	return nil
}
