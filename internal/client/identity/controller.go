// Package identity implements the account state machine of the client:
// Anonymous, PendingVerification and Authenticated, and every transition
// between them.
//
// The Controller is single-writer. Operations that call the backend are
// exclusive: a second one started while the first is in flight fails with
// ErrBusy. Local operations (SignOut, CancelVerification, session expiry) are
// always accepted. State is only changed after a backend call has completed,
// and only if no local operation happened meanwhile; otherwise the result is
// dropped and ErrSuperseded returned.
//
// Invariant: the session store holds a session iff the state is
// Authenticated, and a verification context is live iff the state is
// PendingVerification.
package identity

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/spendsmart/internal/client/client"
	"github.com/dmitrijs2005/spendsmart/internal/client/expiry"
	"github.com/dmitrijs2005/spendsmart/internal/client/rolegate"
	"github.com/dmitrijs2005/spendsmart/internal/client/session"
	"github.com/dmitrijs2005/spendsmart/internal/client/verification"
	"github.com/dmitrijs2005/spendsmart/internal/common"
	"github.com/dmitrijs2005/spendsmart/internal/logging"
)

// expiryRetryDelay is how long an expired session whose store could not be
// cleared waits before the next attempt.
const expiryRetryDelay = 30 * time.Second

// Backend is the subset of the REST API the controller drives.
// *client.RESTClient implements it.
type Backend interface {
	Signup(ctx context.Context, req client.SignupRequest) (string, error)
	VerifyOTP(ctx context.Context, tempID, otp string) error
	Login(ctx context.Context, username, password string) (*client.LoginResponse, error)
	ForgotPassword(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, tempID, otp, newPassword string) error
	UpdateUser(ctx context.Context, id string, req client.UpdateUserRequest) (string, error)
	DeleteUser(ctx context.Context, id string) error
}

type Controller struct {
	store   session.Store
	backend Backend
	clock   expiry.Clock
	timer   *expiry.Timer
	ttl     time.Duration
	logger  logging.Logger
	hook    TransitionHook
	slot    verification.Slot

	mu    sync.Mutex
	state State
	// epoch advances on every local transition; a backend result is applied
	// only if the epoch it started in is still current.
	epoch     uint64
	busy      bool
	busyEpoch uint64
	// authGen identifies the current Authenticated period for the expiry
	// callback.
	authGen uint64
	events  []Transition
}

type Option func(*Controller)

func WithClock(c expiry.Clock) Option {
	return func(ctl *Controller) {
		if c != nil {
			ctl.clock = c
		}
	}
}

// WithSessionTTL sets how long a session lives after login.
func WithSessionTTL(d time.Duration) Option {
	return func(ctl *Controller) {
		if d > 0 {
			ctl.ttl = d
		}
	}
}

func WithLogger(l logging.Logger) Option {
	return func(ctl *Controller) {
		if l != nil {
			ctl.logger = l
		}
	}
}

func WithTransitionHook(h TransitionHook) Option {
	return func(ctl *Controller) { ctl.hook = h }
}

// New restores the persisted session, if any, and returns a controller in
// the matching state. A restored session that already outlived its TTL is
// cleared.
func New(ctx context.Context, store session.Store, backend Backend, opts ...Option) (*Controller, error) {
	c := &Controller{
		store:   store,
		backend: backend,
		clock:   expiry.RealClock{},
		ttl:     common.DefaultSessionTTL,
		logger:  logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.timer = expiry.New(c.clock)

	s, err := store.Init(ctx)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return c, nil
	}

	remaining := c.remaining(s.IssuedAt)
	if remaining <= 0 {
		c.logger.Info(ctx, "persisted session expired", "subject_id", s.SubjectID)
		if err := store.Clear(ctx); err != nil {
			return nil, err
		}
		return c, nil
	}

	c.mu.Lock()
	c.enterAuthenticated(remaining, TriggerRestore)
	c.unlock()
	return c, nil
}

// Close stops the expiry timer.
func (c *Controller) Close() {
	c.timer.Cancel()
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns a copy of the current session, or nil.
func (c *Controller) Session() *session.Session {
	return c.store.Current()
}

// Verification returns the live challenge, if any.
func (c *Controller) Verification() (verification.Context, bool) {
	return c.slot.Current()
}

// Views is recomputed from the stored session on every call.
func (c *Controller) Views() rolegate.Views {
	return rolegate.VisibleViews(c.store.Current())
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{State: c.state, Session: c.store.Current()}
	if v, ok := c.slot.Current(); ok {
		snap.Verification = &v
	}
	return snap
}

// SessionExpiresAt reports when the current session will expire.
func (c *Controller) SessionExpiresAt() (time.Time, bool) {
	s := c.store.Current()
	if s == nil {
		return time.Time{}, false
	}
	return s.IssuedAt.Add(c.ttl), true
}

// SubmitSignup registers a new account and opens its signup challenge.
func (c *Controller) SubmitSignup(ctx context.Context, form SignupForm) error {
	const op = "signup"
	form = form.normalize()

	epoch, err := c.begin(TriggerSignup, Anonymous)
	if err != nil {
		return err
	}
	if err := form.Validate(); err != nil {
		c.release(epoch)
		return client.NewValidationError(op, err)
	}

	tempID, callErr := c.backend.Signup(ctx, client.SignupRequest{
		Username: form.Username,
		Email:    form.Email,
		Password: form.Password,
	})

	c.mu.Lock()
	defer c.unlock()
	if err := c.finish(ctx, epoch, TriggerSignup, callErr); err != nil {
		return err
	}

	c.openChallenge(tempID, verification.SignupChallenge{Username: form.Username, Email: form.Email}, TriggerSignup)
	return nil
}

// SubmitOTP answers the live challenge. The backend call is chosen by the
// challenge type. A password-reset challenge needs WithNewPassword.
func (c *Controller) SubmitOTP(ctx context.Context, code string, opts ...OTPOption) error {
	const op = "verify-otp"
	var o otpOptions
	for _, opt := range opts {
		opt(&o)
	}

	vc, ok := c.slot.Current()
	if !ok {
		return ErrNoVerification
	}

	epoch, err := c.begin(TriggerSubmitOTP, PendingVerification)
	if err != nil {
		return err
	}
	// The slot may have been replaced between the read above and begin.
	if cur, ok := c.slot.Current(); !ok || cur.Generation != vc.Generation {
		c.release(epoch)
		return ErrSuperseded
	}

	if err := (otpForm{Code: code}).Validate(); err != nil {
		c.release(epoch)
		return client.NewValidationError(op, err)
	}

	var callErr error
	switch ch := vc.Challenge.(type) {
	case verification.SignupChallenge, verification.EmailChangeChallenge:
		callErr = c.backend.VerifyOTP(ctx, vc.TempSubjectID, code)
	case verification.PasswordResetChallenge:
		if err := (newPasswordForm{NewPassword: o.newPassword}).Validate(); err != nil {
			c.release(epoch)
			return client.NewValidationError("reset-password", err)
		}
		callErr = c.backend.ResetPassword(ctx, vc.TempSubjectID, code, o.newPassword)
	default:
		c.release(epoch)
		c.logger.Error(ctx, "unroutable verification challenge", "type", ch)
		return ErrNoVerification
	}

	c.mu.Lock()
	defer c.unlock()
	if err := c.finish(ctx, epoch, TriggerSubmitOTP, callErr); err != nil {
		if errors.Is(err, client.ErrVerification) {
			c.logger.Info(ctx, "passcode rejected", "purpose", vc.Purpose())
		}
		return err
	}

	if _, ok := vc.Challenge.(verification.EmailChangeChallenge); ok {
		// Credentials were rotated server side; nothing of the old session
		// may survive.
		if err := c.store.Clear(ctx); err != nil {
			return err
		}
	}

	c.slot.Resolve(vc.Generation)
	c.transition(Anonymous, TriggerSubmitOTP, "")
	return nil
}

// CancelVerification abandons the live challenge. A request still in flight
// is not aborted, but its result will be ignored.
//
// Cancelling an email change puts the set-aside session back for the rest of
// its TTL; any other challenge returns to Anonymous.
func (c *Controller) CancelVerification() error {
	ctx := context.Background()

	c.mu.Lock()
	defer c.unlock()

	if c.state != PendingVerification {
		return &ErrInvalidTransition{State: c.state, Trigger: TriggerCancelVerification}
	}
	vc, _ := c.slot.Current()
	c.slot.Clear()
	c.bumpEpoch()

	if ch, ok := vc.Challenge.(verification.EmailChangeChallenge); ok && c.resume(ctx, ch.Previous) {
		return nil
	}
	c.transition(Anonymous, TriggerCancelVerification, "")
	return nil
}

// resume stores s again and re-enters Authenticated. It reports false when s
// has outlived its TTL or cannot be stored.
func (c *Controller) resume(ctx context.Context, s session.Session) bool {
	remaining := c.remaining(s.IssuedAt)
	if remaining <= 0 {
		c.logger.Info(ctx, "set-aside session expired", "subject_id", s.SubjectID)
		return false
	}
	if err := c.store.Set(ctx, s); err != nil {
		c.logger.Error(ctx, "failed to restore set-aside session", "error", err)
		return false
	}
	c.enterAuthenticated(remaining, TriggerCancelVerification)
	return true
}

// Login signs in and starts the session expiry countdown. Any credential
// rejection is reported as ErrInvalidCredentials.
func (c *Controller) Login(ctx context.Context, username, password string) error {
	const op = "login"
	form := loginForm{Username: username, Password: password}

	epoch, err := c.begin(TriggerLogin, Anonymous)
	if err != nil {
		return err
	}
	if err := form.Validate(); err != nil {
		c.release(epoch)
		return client.NewValidationError(op, err)
	}

	resp, callErr := c.backend.Login(ctx, form.Username, form.Password)
	if callErr != nil {
		switch client.KindOf(callErr) {
		case client.KindAuth, client.KindValidation, client.KindRejected:
			c.logger.Debug(ctx, "login rejected", "error", callErr)
			callErr = ErrInvalidCredentials
		}
	}

	c.mu.Lock()
	defer c.unlock()
	if err := c.finish(ctx, epoch, TriggerLogin, callErr); err != nil {
		return err
	}

	s, err := sessionFromLogin(resp, form.Username, c.clock.Now())
	if err != nil {
		return client.NewValidationError(op, err)
	}
	if err := c.store.Set(ctx, s); err != nil {
		return err
	}

	c.enterAuthenticated(c.ttl, TriggerLogin)
	return nil
}

func sessionFromLogin(resp *client.LoginResponse, username string, now time.Time) (session.Session, error) {
	role, err := session.ParseRole(resp.Role)
	if err != nil {
		return session.Session{}, err
	}
	name := resp.Username
	if name == "" {
		name = username
	}
	s := session.Session{
		SubjectID:   resp.ID.String(),
		DisplayName: name,
		Email:       resp.Email,
		Role:        role,
		AuthToken:   resp.AccessToken,
		IssuedAt:    session.IssuedAtFromToken(resp.AccessToken, now),
	}
	return s, s.Validate()
}

// ForgotPassword asks the backend to mail a reset passcode to email.
func (c *Controller) ForgotPassword(ctx context.Context, email string) error {
	const op = "forgot-password"
	form := emailForm{Email: email}

	epoch, err := c.begin(TriggerForgotPassword, Anonymous)
	if err != nil {
		return err
	}
	if err := form.Validate(); err != nil {
		c.release(epoch)
		return client.NewValidationError(op, err)
	}

	tempID, callErr := c.backend.ForgotPassword(ctx, form.Email)

	c.mu.Lock()
	defer c.unlock()
	if err := c.finish(ctx, epoch, TriggerForgotPassword, callErr); err != nil {
		return err
	}

	c.openChallenge(tempID, verification.PasswordResetChallenge{Email: form.Email}, TriggerForgotPassword)
	return nil
}

// UpdateProfile changes the username and/or email of the signed-in account.
//
// A new email has to be confirmed: the session is dropped and an
// email-change challenge opened; a username sent along is applied by the
// same request. A username-only change is applied to the session in place.
// An update that changes nothing is a no-op.
func (c *Controller) UpdateProfile(ctx context.Context, upd ProfileUpdate) error {
	const op = "update-user"
	upd = upd.normalize()

	epoch, err := c.begin(TriggerUpdateProfile, Authenticated)
	if err != nil {
		return err
	}

	cur := c.store.Current()
	if cur == nil {
		c.release(epoch)
		return session.ErrNoSession
	}

	usernameChanged := upd.Username != "" && upd.Username != cur.DisplayName
	emailChanged := upd.Email != "" && upd.Email != cur.Email
	if !usernameChanged && !emailChanged {
		c.release(epoch)
		return nil
	}
	if err := upd.Validate(); err != nil {
		c.release(epoch)
		return client.NewValidationError(op, err)
	}

	var req client.UpdateUserRequest
	if usernameChanged {
		req.Username = upd.Username
	}
	if emailChanged {
		req.Email = upd.Email
	}

	tempID, callErr := c.backend.UpdateUser(ctx, cur.SubjectID, req)

	c.mu.Lock()
	defer c.unlock()
	if err := c.finish(ctx, epoch, TriggerUpdateProfile, callErr); err != nil {
		return err
	}

	if !emailChanged {
		return c.store.Patch(ctx, session.Patch{DisplayName: req.Username})
	}

	if tempID == "" {
		return &client.Error{Kind: client.KindNetwork, Op: op, Detail: "malformed response: missing temp_user_id"}
	}
	if err := c.store.Clear(ctx); err != nil {
		return err
	}
	c.timer.Cancel()
	c.openChallenge(tempID, verification.EmailChangeChallenge{
		Previous:       *cur,
		NewEmail:       req.Email,
		NewDisplayName: req.Username,
	}, TriggerUpdateProfile)
	return nil
}

// DeleteAccount deletes the signed-in account and drops the session.
func (c *Controller) DeleteAccount(ctx context.Context) error {
	epoch, err := c.begin(TriggerDeleteAccount, Authenticated)
	if err != nil {
		return err
	}
	cur := c.store.Current()
	if cur == nil {
		c.release(epoch)
		return session.ErrNoSession
	}

	callErr := c.backend.DeleteUser(ctx, cur.SubjectID)

	c.mu.Lock()
	defer c.unlock()
	if err := c.finish(ctx, epoch, TriggerDeleteAccount, callErr); err != nil {
		return err
	}
	return c.leaveAuthenticated(ctx, TriggerDeleteAccount)
}

// SignOut drops the session without calling the backend. It is a no-op
// unless Authenticated.
func (c *Controller) SignOut(ctx context.Context) error {
	c.mu.Lock()
	defer c.unlock()

	if c.state != Authenticated {
		return nil
	}
	return c.leaveAuthenticated(ctx, TriggerSignOut)
}

func (c *Controller) expire(gen uint64) {
	ctx := context.Background()

	c.mu.Lock()
	defer c.unlock()

	if c.state != Authenticated || c.authGen != gen {
		return
	}
	if err := c.leaveAuthenticated(ctx, TriggerExpire); err != nil {
		c.logger.Error(ctx, "failed to clear expired session, retrying", "error", err, "retry_in", expiryRetryDelay)
		c.timer.Arm(expiryRetryDelay, func() { c.expire(gen) })
	}
}

// remaining is what is left of the TTL of a session issued at issuedAt,
// capped at the full TTL.
func (c *Controller) remaining(issuedAt time.Time) time.Duration {
	d := c.ttl - c.clock.Now().Sub(issuedAt)
	if d > c.ttl {
		d = c.ttl
	}
	return d
}

// begin claims the single in-flight slot for a backend call.
func (c *Controller) begin(trigger Trigger, want State) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != want {
		return 0, &ErrInvalidTransition{State: c.state, Trigger: trigger}
	}
	if c.busy {
		return 0, ErrBusy
	}
	c.busy = true
	c.busyEpoch = c.epoch
	return c.epoch, nil
}

// release gives up the in-flight slot without a backend call.
func (c *Controller) release(epoch uint64) {
	c.mu.Lock()
	c.clearBusy(epoch)
	c.mu.Unlock()
}

func (c *Controller) clearBusy(epoch uint64) {
	if c.busy && c.busyEpoch == epoch {
		c.busy = false
	}
}

// finish must be called with c.mu held. It returns ErrSuperseded if a local
// transition happened since begin, otherwise callErr.
func (c *Controller) finish(ctx context.Context, epoch uint64, trigger Trigger, callErr error) error {
	c.clearBusy(epoch)

	if c.epoch != epoch {
		c.logger.Info(ctx, "dropping late result", "trigger", trigger, "state", c.state, "error", callErr)
		return ErrSuperseded
	}
	if callErr != nil {
		c.logger.Warn(ctx, "transition failed", "trigger", trigger, "state", c.state, "error", callErr)
		return callErr
	}
	return nil
}

func (c *Controller) bumpEpoch() {
	c.epoch++
	c.busy = false
}

func (c *Controller) openChallenge(tempID string, ch verification.Challenge, trigger Trigger) {
	c.slot.Replace(tempID, ch, c.clock.Now())
	c.transition(PendingVerification, trigger, ch.Purpose())
}

func (c *Controller) enterAuthenticated(ttl time.Duration, trigger Trigger) {
	c.authGen++
	gen := c.authGen
	c.timer.Arm(ttl, func() { c.expire(gen) })
	c.transition(Authenticated, trigger, "")
}

// leaveAuthenticated clears the store and moves to Anonymous. If the store
// cannot be cleared nothing changes.
func (c *Controller) leaveAuthenticated(ctx context.Context, trigger Trigger) error {
	if err := c.store.Clear(ctx); err != nil {
		return err
	}
	c.timer.Cancel()
	c.bumpEpoch()
	c.transition(Anonymous, trigger, "")
	return nil
}

func (c *Controller) transition(to State, trigger Trigger, purpose verification.Purpose) {
	t := Transition{From: c.state, To: to, Trigger: trigger, Purpose: purpose}
	c.state = to
	c.logger.Info(context.Background(), "identity transition",
		"from", t.From.String(), "to", t.To.String(), "trigger", string(trigger))
	c.events = append(c.events, t)
}

// unlock releases c.mu and then delivers queued transitions to the hook.
func (c *Controller) unlock() {
	events := c.events
	c.events = nil
	c.mu.Unlock()

	if c.hook == nil {
		return
	}
	for _, t := range events {
		c.hook(t)
	}
}
