package services

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/spendsmart/internal/client/client"
	"github.com/dmitrijs2005/spendsmart/internal/client/rolegate"
	"github.com/dmitrijs2005/spendsmart/internal/client/session"
)

var (
	errMissingID = errors.New("id: cannot be blank")
	// ErrSelfTarget is returned when an admin tries to change or delete their
	// own account from the admin view; the profile commands do that.
	ErrSelfTarget = errors.New("cannot change your own account from the admin view")
)

// AdminBackend is the admin part of the REST API.
type AdminBackend interface {
	ListUsers(ctx context.Context) ([]client.User, error)
	GetUser(ctx context.Context, id string) (*client.User, error)
	UpdateUserRole(ctx context.Context, id, role string) error
	DeleteUser(ctx context.Context, id string) error
}

// AdminService manages other users' accounts. Every call requires the admin
// role.
type AdminService interface {
	ListUsers(ctx context.Context) ([]client.User, error)
	GetUser(ctx context.Context, id string) (*client.User, error)
	UpdateRole(ctx context.Context, id string, role session.Role) error
	DeleteUser(ctx context.Context, id string) error
}

type adminService struct {
	backend  AdminBackend
	sessions SessionSource
}

func NewAdminService(backend AdminBackend, sessions SessionSource) AdminService {
	return &adminService{backend: backend, sessions: sessions}
}

func (s *adminService) gate() (*session.Session, error) {
	cur := s.sessions.Current()
	if err := rolegate.Require(cur, rolegate.ViewAdmin); err != nil {
		return nil, err
	}
	return cur, nil
}

// ListUsers returns every account except the signed-in one.
func (s *adminService) ListUsers(ctx context.Context) ([]client.User, error) {
	cur, err := s.gate()
	if err != nil {
		return nil, err
	}
	users, err := s.backend.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]client.User, 0, len(users))
	for _, u := range users {
		if u.ID.String() != cur.SubjectID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *adminService) GetUser(ctx context.Context, id string) (*client.User, error) {
	if _, err := s.gate(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, client.NewValidationError("get-user", errMissingID)
	}
	return s.backend.GetUser(ctx, id)
}

func (s *adminService) UpdateRole(ctx context.Context, id string, role session.Role) error {
	cur, err := s.gate()
	if err != nil {
		return err
	}
	if id == "" {
		return client.NewValidationError("update-role", errMissingID)
	}
	if _, err := session.ParseRole(string(role)); err != nil {
		return client.NewValidationError("update-role", err)
	}
	if id == cur.SubjectID {
		return ErrSelfTarget
	}
	return s.backend.UpdateUserRole(ctx, id, string(role))
}

func (s *adminService) DeleteUser(ctx context.Context, id string) error {
	cur, err := s.gate()
	if err != nil {
		return err
	}
	if id == "" {
		return client.NewValidationError("delete-user", errMissingID)
	}
	if id == cur.SubjectID {
		return ErrSelfTarget
	}
	return s.backend.DeleteUser(ctx, id)
}
