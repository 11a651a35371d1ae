package services

import (
	"context"

	"github.com/dmitrijs2005/spendsmart/internal/client/client"
	"github.com/dmitrijs2005/spendsmart/internal/client/session"
)

type staticSessions struct{ s *session.Session }

func (f staticSessions) Current() *session.Session { return f.s }

func userSession(role session.Role) staticSessions {
	return staticSessions{s: &session.Session{SubjectID: "1", DisplayName: "me", Email: "me@x.com", Role: role, AuthToken: "t"}}
}

// fakeBackend implements TransactionBackend and AdminBackend.
type fakeBackend struct {
	calls []string

	Txs     []client.Transaction
	Users   []client.User
	Err     error
	LastIn  client.TransactionInput
	LastID  string
	LastRol string
}

func (f *fakeBackend) ListTransactions(context.Context) ([]client.Transaction, error) {
	f.calls = append(f.calls, "list-transactions")
	return f.Txs, f.Err
}

func (f *fakeBackend) CreateTransaction(_ context.Context, in client.TransactionInput) (*client.Transaction, error) {
	f.calls = append(f.calls, "create-transaction")
	f.LastIn = in
	if f.Err != nil {
		return nil, f.Err
	}
	return &client.Transaction{ID: "new", Amount: in.Amount, Category: in.Category, Description: in.Description, IsIncome: in.IsIncome, Date: in.Date}, nil
}

func (f *fakeBackend) UpdateTransaction(_ context.Context, id string, in client.TransactionInput) (*client.Transaction, error) {
	f.calls = append(f.calls, "update-transaction")
	f.LastID, f.LastIn = id, in
	if f.Err != nil {
		return nil, f.Err
	}
	return &client.Transaction{ID: client.ID(id), Amount: in.Amount}, nil
}

func (f *fakeBackend) DeleteTransaction(_ context.Context, id string) error {
	f.calls = append(f.calls, "delete-transaction")
	f.LastID = id
	return f.Err
}

func (f *fakeBackend) ListUsers(context.Context) ([]client.User, error) {
	f.calls = append(f.calls, "list-users")
	return f.Users, f.Err
}

func (f *fakeBackend) GetUser(_ context.Context, id string) (*client.User, error) {
	f.calls = append(f.calls, "get-user")
	f.LastID = id
	if f.Err != nil {
		return nil, f.Err
	}
	return &client.User{ID: client.ID(id)}, nil
}

func (f *fakeBackend) UpdateUserRole(_ context.Context, id, role string) error {
	f.calls = append(f.calls, "update-role")
	f.LastID, f.LastRol = id, role
	return f.Err
}

func (f *fakeBackend) DeleteUser(_ context.Context, id string) error {
	f.calls = append(f.calls, "delete-user")
	f.LastID = id
	return f.Err
}
