package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/spendsmart/internal/client/client"
	"github.com/dmitrijs2005/spendsmart/internal/client/services"
)

// List prints the signed-in user's transactions followed by totals.
func (a *App) List(ctx context.Context) error {
	txs, err := a.transactions.List(ctx)
	if err != nil {
		return a.fail(ctx, "list", err)
	}
	if len(txs) == 0 {
		printlnFn("No transactions yet.")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tTYPE\tAMOUNT\tCATEGORY\tDESCRIPTION")
	for _, tx := range txs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%s\t%s\n",
			tx.ID, tx.Date, kindLabel(tx.IsIncome), tx.Amount, tx.Category, tx.Description)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	a.printSummary(services.Summarize(txs))
	return nil
}

// Summary prints only the totals.
func (a *App) Summary(ctx context.Context) error {
	txs, err := a.transactions.List(ctx)
	if err != nil {
		return a.fail(ctx, "summary", err)
	}
	a.printSummary(services.Summarize(txs))
	return nil
}

func (a *App) printSummary(s services.Summary) {
	printlnFn(fmt.Sprintf("Income: %.2f  Expenses: %.2f  Balance: %.2f", s.Income, s.Expense, s.Balance()))
}

// Add asks for the fields of a new transaction and creates it.
func (a *App) Add(ctx context.Context) error {
	in, err := a.readTransaction(nil)
	if err != nil {
		return a.fail(ctx, "add", err)
	}
	tx, err := a.transactions.Create(ctx, in)
	if err != nil {
		return a.fail(ctx, "add", err)
	}
	a.success(fmt.Sprintf("transaction %s added", tx.ID))
	return nil
}

// Edit rewrites transaction id. Blank answers keep the listed value.
func (a *App) Edit(ctx context.Context, id string) error {
	txs, err := a.transactions.List(ctx)
	if err != nil {
		return a.fail(ctx, "edit", err)
	}
	var cur *client.Transaction
	for i := range txs {
		if string(txs[i].ID) == id {
			cur = &txs[i]
			break
		}
	}
	if cur == nil {
		return a.fail(ctx, "edit", fmt.Errorf("transaction %s not found", id))
	}

	in, err := a.readTransaction(cur)
	if err != nil {
		return a.fail(ctx, "edit", err)
	}
	if _, err := a.transactions.Update(ctx, id, in); err != nil {
		return a.fail(ctx, "edit", err)
	}
	a.success(fmt.Sprintf("transaction %s updated", id))
	return nil
}

// Remove deletes transaction id after confirmation.
func (a *App) Remove(ctx context.Context, id string) error {
	ok, err := getConfirmation(a.reader, "Delete transaction "+id+"?", a.out)
	if err != nil {
		return err
	}
	if !ok {
		printlnFn("Aborted.")
		return nil
	}
	if err := a.transactions.Delete(ctx, id); err != nil {
		return a.fail(ctx, "remove", err)
	}
	a.success(fmt.Sprintf("transaction %s deleted", id))
	return nil
}

// readTransaction prompts for every field. With cur set, blank answers keep
// the existing values; otherwise the date defaults to today and the type to
// expense.
func (a *App) readTransaction(cur *client.Transaction) (client.TransactionInput, error) {
	in := client.TransactionInput{Date: time.Now().Format(time.DateOnly)}
	if cur != nil {
		in = client.TransactionInput{
			Amount:      cur.Amount,
			Category:    cur.Category,
			Description: cur.Description,
			IsIncome:    cur.IsIncome,
			Date:        cur.Date,
		}
	}

	amount, err := a.ask(withDefault("Amount", formatAmount(cur)))
	if err != nil {
		return in, err
	}
	if amount != "" {
		v, err := strconv.ParseFloat(amount, 64)
		if err != nil {
			return in, fmt.Errorf("amount: %q is not a number", amount)
		}
		in.Amount = v
	}

	kind, err := a.ask(withDefault("Type (income/expense)", kindLabel(in.IsIncome)))
	if err != nil {
		return in, err
	}
	switch strings.ToLower(kind) {
	case "":
	case "income", "i":
		in.IsIncome = true
	case "expense", "e":
		in.IsIncome = false
	default:
		return in, fmt.Errorf("type: %q is neither income nor expense", kind)
	}

	if in.Category, err = a.askKeep(withDefault("Category", in.Category), in.Category); err != nil {
		return in, err
	}
	if in.Description, err = a.askKeep(withDefault("Description", in.Description), in.Description); err != nil {
		return in, err
	}
	if in.Date, err = a.askKeep(withDefault("Date (YYYY-MM-DD)", in.Date), in.Date); err != nil {
		return in, err
	}
	return in, nil
}

func (a *App) askKeep(prompt, cur string) (string, error) {
	v, err := a.ask(prompt)
	if err != nil || v == "" {
		return cur, err
	}
	return v, nil
}

func withDefault(prompt, def string) string {
	if def == "" {
		return prompt
	}
	return prompt + " [" + def + "]"
}

func formatAmount(tx *client.Transaction) string {
	if tx == nil {
		return ""
	}
	return strconv.FormatFloat(tx.Amount, 'f', 2, 64)
}

func kindLabel(income bool) string {
	if income {
		return "income"
	}
	return "expense"
}
