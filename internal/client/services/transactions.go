package services

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/dmitrijs2005/spendsmart/internal/client/client"
	"github.com/dmitrijs2005/spendsmart/internal/client/rolegate"
	"github.com/dmitrijs2005/spendsmart/internal/client/session"
)

// SessionSource yields the current session; session.Store implements it.
type SessionSource interface {
	Current() *session.Session
}

// TransactionBackend is the transactions part of the REST API.
type TransactionBackend interface {
	ListTransactions(ctx context.Context) ([]client.Transaction, error)
	CreateTransaction(ctx context.Context, in client.TransactionInput) (*client.Transaction, error)
	UpdateTransaction(ctx context.Context, id string, in client.TransactionInput) (*client.Transaction, error)
	DeleteTransaction(ctx context.Context, id string) error
}

// TransactionService edits the signed-in user's transactions.
type TransactionService interface {
	List(ctx context.Context) ([]client.Transaction, error)
	Create(ctx context.Context, in client.TransactionInput) (*client.Transaction, error)
	Update(ctx context.Context, id string, in client.TransactionInput) (*client.Transaction, error)
	Delete(ctx context.Context, id string) error
}

// Summary totals a list of transactions.
type Summary struct {
	Income  float64
	Expense float64
}

func (s Summary) Balance() float64 { return s.Income - s.Expense }

// Summarize adds up income and expenses.
func Summarize(txs []client.Transaction) Summary {
	var s Summary
	for _, tx := range txs {
		if tx.IsIncome {
			s.Income += tx.Amount
		} else {
			s.Expense += tx.Amount
		}
	}
	return s
}

type transactionService struct {
	backend  TransactionBackend
	sessions SessionSource
}

func NewTransactionService(backend TransactionBackend, sessions SessionSource) TransactionService {
	return &transactionService{backend: backend, sessions: sessions}
}

func (s *transactionService) gate() error {
	return rolegate.Require(s.sessions.Current(), rolegate.ViewTransactions)
}

func (s *transactionService) List(ctx context.Context) ([]client.Transaction, error) {
	if err := s.gate(); err != nil {
		return nil, err
	}
	return s.backend.ListTransactions(ctx)
}

func (s *transactionService) Create(ctx context.Context, in client.TransactionInput) (*client.Transaction, error) {
	if err := s.gate(); err != nil {
		return nil, err
	}
	in = normalizeInput(in)
	if err := validateInput(in); err != nil {
		return nil, client.NewValidationError("create-transaction", err)
	}
	return s.backend.CreateTransaction(ctx, in)
}

func (s *transactionService) Update(ctx context.Context, id string, in client.TransactionInput) (*client.Transaction, error) {
	if err := s.gate(); err != nil {
		return nil, err
	}
	in = normalizeInput(in)
	if err := validateInput(in); err != nil {
		return nil, client.NewValidationError("update-transaction", err)
	}
	if strings.TrimSpace(id) == "" {
		return nil, client.NewValidationError("update-transaction", errMissingID)
	}
	return s.backend.UpdateTransaction(ctx, id, in)
}

func (s *transactionService) Delete(ctx context.Context, id string) error {
	if err := s.gate(); err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return client.NewValidationError("delete-transaction", errMissingID)
	}
	return s.backend.DeleteTransaction(ctx, id)
}

func normalizeInput(in client.TransactionInput) client.TransactionInput {
	in.Category = strings.TrimSpace(in.Category)
	in.Description = strings.TrimSpace(in.Description)
	in.Date = strings.TrimSpace(in.Date)
	return in
}

func validateInput(in client.TransactionInput) error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Amount, validation.Required, validation.Min(0.01)),
		validation.Field(&in.Category, validation.Required, validation.Length(1, 50)),
		validation.Field(&in.Description, validation.Required, validation.Length(1, 255)),
		validation.Field(&in.Date, validation.Required, validation.Date("2006-01-02")),
	)
}
