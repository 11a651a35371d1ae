package cli

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/dmitrijs2005/spendsmart/internal/client/client"
	"github.com/dmitrijs2005/spendsmart/internal/client/identity"
	"github.com/dmitrijs2005/spendsmart/internal/client/rolegate"
	"github.com/dmitrijs2005/spendsmart/internal/client/session"
	"github.com/dmitrijs2005/spendsmart/internal/client/verification"
)

type fakeIdentity struct {
	st   identity.State
	sess *session.Session
	vc   *verification.Context

	err error

	signupForm identity.SignupForm
	otp        string
	otpOpts    int
	username   string
	password   string
	email      string
	profile    identity.ProfileUpdate
	calls      []string
}

func (f *fakeIdentity) State() identity.State      { return f.st }
func (f *fakeIdentity) Session() *session.Session { return f.sess }
func (f *fakeIdentity) Views() rolegate.Views     { return rolegate.VisibleViews(f.sess) }

func (f *fakeIdentity) Verification() (verification.Context, bool) {
	if f.vc == nil {
		return verification.Context{}, false
	}
	return *f.vc, true
}

func (f *fakeIdentity) SubmitSignup(_ context.Context, form identity.SignupForm) error {
	f.calls = append(f.calls, "signup")
	f.signupForm = form
	return f.err
}

func (f *fakeIdentity) SubmitOTP(_ context.Context, code string, opts ...identity.OTPOption) error {
	f.calls = append(f.calls, "otp")
	f.otp = code
	f.otpOpts = len(opts)
	return f.err
}

func (f *fakeIdentity) CancelVerification() error {
	f.calls = append(f.calls, "cancel")
	if f.err == nil && f.vc != nil {
		if _, ok := f.vc.Challenge.(verification.EmailChangeChallenge); ok {
			f.st = identity.Authenticated
		}
	}
	f.vc = nil
	return f.err
}

func (f *fakeIdentity) Login(_ context.Context, username, password string) error {
	f.calls = append(f.calls, "login")
	f.username, f.password = username, password
	return f.err
}

func (f *fakeIdentity) ForgotPassword(_ context.Context, email string) error {
	f.calls = append(f.calls, "forgot")
	f.email = email
	return f.err
}

func (f *fakeIdentity) UpdateProfile(_ context.Context, upd identity.ProfileUpdate) error {
	f.calls = append(f.calls, "profile")
	f.profile = upd
	return f.err
}

func (f *fakeIdentity) DeleteAccount(context.Context) error {
	f.calls = append(f.calls, "delete-account")
	return f.err
}

func (f *fakeIdentity) SignOut(context.Context) error {
	f.calls = append(f.calls, "sign-out")
	return f.err
}

type fakeTransactions struct {
	txs     []client.Transaction
	err     error
	created []client.TransactionInput
	updated map[string]client.TransactionInput
	deleted []string
}

func (f *fakeTransactions) List(context.Context) ([]client.Transaction, error) {
	return f.txs, f.err
}

func (f *fakeTransactions) Create(_ context.Context, in client.TransactionInput) (*client.Transaction, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, in)
	return &client.Transaction{ID: "new", Amount: in.Amount}, nil
}

func (f *fakeTransactions) Update(_ context.Context, id string, in client.TransactionInput) (*client.Transaction, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.updated == nil {
		f.updated = map[string]client.TransactionInput{}
	}
	f.updated[id] = in
	return &client.Transaction{ID: client.ID(id)}, nil
}

func (f *fakeTransactions) Delete(_ context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeAdmin struct {
	users   []client.User
	err     error
	roles   map[string]session.Role
	deleted []string
}

func (f *fakeAdmin) ListUsers(context.Context) ([]client.User, error) { return f.users, f.err }

func (f *fakeAdmin) GetUser(_ context.Context, id string) (*client.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, u := range f.users {
		if string(u.ID) == id {
			return &u, nil
		}
	}
	return nil, &client.Error{Kind: client.KindRejected, Op: "get-user", Status: 404, Detail: "User not found"}
}

func (f *fakeAdmin) UpdateRole(_ context.Context, id string, role session.Role) error {
	if f.err != nil {
		return f.err
	}
	if f.roles == nil {
		f.roles = map[string]session.Role{}
	}
	f.roles[id] = role
	return nil
}

func (f *fakeAdmin) DeleteUser(_ context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

type harness struct {
	app   *App
	id    *fakeIdentity
	tx    *fakeTransactions
	adm   *fakeAdmin
	out   *bytes.Buffer
	lines *[]string
}

// newHarness builds an App reading answers from input. Passwords are served
// from passwords in order.
func newHarness(t *testing.T, input string, passwords ...string) *harness {
	t.Helper()

	orig := getPassword
	getPassword = func(_ io.Writer, _ string) ([]byte, error) {
		if len(passwords) == 0 {
			return nil, io.EOF
		}
		pw := []byte(passwords[0])
		passwords = passwords[1:]
		return pw, nil
	}
	t.Cleanup(func() { getPassword = orig })

	h := &harness{
		id:    &fakeIdentity{},
		tx:    &fakeTransactions{},
		adm:   &fakeAdmin{},
		out:   &bytes.Buffer{},
		lines: captureOutput(t),
	}
	h.app = NewApp(h.id, h.tx, h.adm, WithIO(strings.NewReader(input), h.out))
	return h
}

func (h *harness) printed() string { return strings.Join(*h.lines, "\n") }

func aliceSession(role session.Role) *session.Session {
	return &session.Session{
		SubjectID:   "42",
		DisplayName: "alice",
		Email:       "alice@example.com",
		Role:        role,
		AuthToken:   "tok",
	}
}
