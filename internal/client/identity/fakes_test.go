package identity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/spendsmart/internal/client/client"
	"github.com/dmitrijs2005/spendsmart/internal/client/expiry"
	"github.com/dmitrijs2005/spendsmart/internal/client/session"
)

const goodOTP = "123456"

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// fakeBackend implements Backend for controller tests.
type fakeBackend struct {
	mu    sync.Mutex
	calls []string

	SignupTempID string
	SignupErr    error

	LoginResp *client.LoginResponse
	LoginErr  error

	ForgotTempID string
	ForgotErr    error

	UpdateTempID string
	UpdateErr    error
	LastUpdateID string
	LastUpdate   client.UpdateUserRequest

	DeleteErr    error
	LastDeleteID string

	LastResetPassword string

	// gate, when set, blocks every call until it is closed; entered is
	// signalled as soon as a call starts.
	gate    chan struct{}
	entered chan string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		SignupTempID: "tmp-signup",
		ForgotTempID: "tmp-reset",
		LoginResp: &client.LoginResponse{
			ID: "7", AccessToken: "tok-7", Username: "alice", Email: "a@x.com", Role: "user",
		},
	}
}

func (f *fakeBackend) record(op string) {
	f.mu.Lock()
	f.calls = append(f.calls, op)
	gate, entered := f.gate, f.entered
	f.mu.Unlock()

	if entered != nil {
		entered <- op
	}
	if gate != nil {
		<-gate
	}
}

func (f *fakeBackend) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// hold makes subsequent calls block until the returned func is called.
func (f *fakeBackend) hold() (entered <-chan string, release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = make(chan struct{})
	f.entered = make(chan string, 4)
	gate := f.gate
	var once sync.Once
	return f.entered, func() {
		once.Do(func() { close(gate) })
	}
}

func (f *fakeBackend) unhold() {
	f.mu.Lock()
	f.gate = nil
	f.entered = nil
	f.mu.Unlock()
}

func verificationErr() error {
	return &client.Error{Kind: client.KindVerification, Op: "verify-otp", Status: 400, Detail: "Invalid OTP"}
}

func (f *fakeBackend) Signup(_ context.Context, _ client.SignupRequest) (string, error) {
	f.record("signup")
	return f.SignupTempID, f.SignupErr
}

func (f *fakeBackend) VerifyOTP(_ context.Context, tempID, otp string) error {
	f.record("verify-otp:" + tempID)
	if otp != goodOTP {
		return verificationErr()
	}
	return nil
}

func (f *fakeBackend) Login(_ context.Context, _, _ string) (*client.LoginResponse, error) {
	f.record("login")
	if f.LoginErr != nil {
		return nil, f.LoginErr
	}
	r := *f.LoginResp
	return &r, nil
}

func (f *fakeBackend) ForgotPassword(_ context.Context, _ string) (string, error) {
	f.record("forgot-password")
	return f.ForgotTempID, f.ForgotErr
}

func (f *fakeBackend) ResetPassword(_ context.Context, tempID, otp, newPassword string) error {
	f.record("reset-password:" + tempID)
	f.mu.Lock()
	f.LastResetPassword = newPassword
	f.mu.Unlock()
	if otp != goodOTP {
		return verificationErr()
	}
	return nil
}

func (f *fakeBackend) UpdateUser(_ context.Context, id string, req client.UpdateUserRequest) (string, error) {
	f.record("update-user")
	f.mu.Lock()
	f.LastUpdateID = id
	f.LastUpdate = req
	f.mu.Unlock()
	if f.UpdateErr != nil {
		return "", f.UpdateErr
	}
	if req.Email == "" {
		return "", nil
	}
	return f.UpdateTempID, nil
}

func (f *fakeBackend) DeleteUser(_ context.Context, id string) error {
	f.record("delete-user")
	f.mu.Lock()
	f.LastDeleteID = id
	f.mu.Unlock()
	return f.DeleteErr
}

// flakyStore wraps MemoryStore and can fail Set and Clear.
type flakyStore struct {
	*session.MemoryStore
	setErr   error
	clearErr error
}

func (s *flakyStore) Set(ctx context.Context, sess session.Session) error {
	if s.setErr != nil {
		return s.setErr
	}
	return s.MemoryStore.Set(ctx, sess)
}

func (s *flakyStore) Clear(ctx context.Context) error {
	if s.clearErr != nil {
		return s.clearErr
	}
	return s.MemoryStore.Clear(ctx)
}

var errDisk = errors.New("disk full")

type harness struct {
	ctl     *Controller
	backend *fakeBackend
	store   *flakyStore
	clock   *expiry.ManualClock
	events  []Transition
	mu      sync.Mutex
}

func (h *harness) Events() []Transition {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Transition, len(h.events))
	copy(out, h.events)
	return out
}

func newHarness(t *testing.T, seed *session.Session) *harness {
	t.Helper()
	h := &harness{
		backend: newFakeBackend(),
		store:   &flakyStore{MemoryStore: session.NewMemoryStore(seed)},
		clock:   expiry.NewManualClock(epoch),
	}
	ctl, err := New(context.Background(), h.store, h.backend,
		WithClock(h.clock),
		WithSessionTTL(time.Hour),
		WithTransitionHook(func(tr Transition) {
			h.mu.Lock()
			h.events = append(h.events, tr)
			h.mu.Unlock()
		}),
	)
	require.NoError(t, err)
	t.Cleanup(ctl.Close)
	h.ctl = ctl
	return h
}

// checkInvariant asserts: session stored iff Authenticated, and a live
// verification context iff PendingVerification.
func checkInvariant(t *testing.T, ctl *Controller) {
	t.Helper()
	snap := ctl.Snapshot()
	require.Equal(t, snap.State == Authenticated, snap.Session != nil,
		"session presence must match Authenticated (state=%s)", snap.State)
	require.Equal(t, snap.State == PendingVerification, snap.Verification != nil,
		"verification presence must match PendingVerification (state=%s)", snap.State)
}

func login(t *testing.T, h *harness) {
	t.Helper()
	require.NoError(t, h.ctl.Login(context.Background(), "alice", "pw"))
	require.Equal(t, Authenticated, h.ctl.State())
	checkInvariant(t, h.ctl)
}
