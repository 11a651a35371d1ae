package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/spendsmart/internal/client/client"
	"github.com/dmitrijs2005/spendsmart/internal/client/rolegate"
	"github.com/dmitrijs2005/spendsmart/internal/client/session"
	"github.com/dmitrijs2005/spendsmart/internal/client/verification"
)

func storedSession(issuedAt time.Time) *session.Session {
	return &session.Session{
		SubjectID:   "7",
		DisplayName: "alice",
		Email:       "a@x.com",
		Role:        session.RoleUser,
		AuthToken:   "tok-7",
		IssuedAt:    issuedAt,
	}
}

func TestNew_StartsAnonymousWithEmptyStore(t *testing.T) {
	h := newHarness(t, nil)
	assert.Equal(t, Anonymous, h.ctl.State())
	assert.Equal(t, rolegate.Views{}, h.ctl.Views())
	checkInvariant(t, h.ctl)
}

func TestNew_RestoresPersistedSession(t *testing.T) {
	h := newHarness(t, storedSession(epoch.Add(-20*time.Minute)))

	require.Equal(t, Authenticated, h.ctl.State())
	checkInvariant(t, h.ctl)
	assert.Equal(t, []Transition{{From: Anonymous, To: Authenticated, Trigger: TriggerRestore}}, h.Events())

	// The remaining 40 minutes of the hour are honoured.
	h.clock.Advance(39 * time.Minute)
	assert.Equal(t, Authenticated, h.ctl.State())
	h.clock.Advance(time.Minute)
	assert.Equal(t, Anonymous, h.ctl.State())
	assert.Nil(t, h.store.Current())
}

func TestNew_DropsOutlivedSession(t *testing.T) {
	h := newHarness(t, storedSession(epoch.Add(-2*time.Hour)))

	assert.Equal(t, Anonymous, h.ctl.State())
	assert.Nil(t, h.store.Current())
	checkInvariant(t, h.ctl)
}

// A wrong code can be retried until the right one is entered.
func TestSignup_WrongThenCorrectCode(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	require.NoError(t, h.ctl.SubmitSignup(ctx, SignupForm{Username: "alice", Email: "a@x.com", Password: "pw"}))
	checkInvariant(t, h.ctl)
	require.Equal(t, PendingVerification, h.ctl.State())

	vc, ok := h.ctl.Verification()
	require.True(t, ok)
	assert.Equal(t, verification.PurposeSignup, vc.Purpose())
	assert.Equal(t, "tmp-signup", vc.TempSubjectID)
	assert.Equal(t, epoch, vc.CreatedAt)
	assert.Equal(t, verification.SignupChallenge{Username: "alice", Email: "a@x.com"}, vc.Challenge)

	err := h.ctl.SubmitOTP(ctx, "000000")
	require.Error(t, err)
	assert.ErrorIs(t, err, client.ErrVerification)
	assert.Equal(t, PendingVerification, h.ctl.State())
	checkInvariant(t, h.ctl)

	require.NoError(t, h.ctl.SubmitOTP(ctx, goodOTP))
	assert.Equal(t, Anonymous, h.ctl.State())
	assert.Nil(t, h.store.Current(), "signup never signs in")
	checkInvariant(t, h.ctl)

	assert.Equal(t, []string{"signup", "verify-otp:tmp-signup", "verify-otp:tmp-signup"}, h.backend.Calls())
}

func TestSignup_FailureStaysAnonymous(t *testing.T) {
	h := newHarness(t, nil)
	h.backend.SignupErr = &client.Error{Kind: client.KindValidation, Op: "signup", Status: 400, Detail: "Username already registered"}

	err := h.ctl.SubmitSignup(context.Background(), SignupForm{Username: "alice", Email: "a@x.com", Password: "pw"})
	require.ErrorIs(t, err, client.ErrValidation)
	assert.Equal(t, Anonymous, h.ctl.State())
	_, ok := h.ctl.Verification()
	assert.False(t, ok)
	checkInvariant(t, h.ctl)
}

func TestSignup_LocalValidationMakesNoCall(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	forms := []SignupForm{
		{Username: "", Email: "a@x.com", Password: "pw"},
		{Username: "alice", Email: "not-an-email", Password: "pw"},
		{Username: "alice", Email: "a@x.com", Password: ""},
	}
	for _, f := range forms {
		err := h.ctl.SubmitSignup(ctx, f)
		require.Error(t, err)
		assert.Equal(t, client.KindValidation, client.KindOf(err))
	}
	assert.Empty(t, h.backend.Calls())
	assert.Equal(t, Anonymous, h.ctl.State())

	// Validation failure must not leave the controller busy.
	require.NoError(t, h.ctl.SubmitSignup(ctx, SignupForm{Username: "alice", Email: "a@x.com", Password: "pw"}))
}

func TestLogin_SetsSessionAndViews(t *testing.T) {
	h := newHarness(t, nil)
	login(t, h)

	want := &session.Session{
		SubjectID:   "7",
		DisplayName: "alice",
		Email:       "a@x.com",
		Role:        session.RoleUser,
		AuthToken:   "tok-7",
		IssuedAt:    epoch,
	}
	if diff := cmp.Diff(want, h.ctl.Session()); diff != "" {
		t.Fatalf("session mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, rolegate.Views{Admin: false, TransactionEditor: true}, h.ctl.Views())

	exp, ok := h.ctl.SessionExpiresAt()
	require.True(t, ok)
	assert.Equal(t, epoch.Add(time.Hour), exp)
}

func TestLogin_AdminViews(t *testing.T) {
	h := newHarness(t, nil)
	h.backend.LoginResp.Role = "admin"
	login(t, h)
	assert.Equal(t, rolegate.Views{Admin: true, TransactionEditor: true}, h.ctl.Views())
}

func TestLogin_RejectionIsGeneric(t *testing.T) {
	for _, backendErr := range []error{
		&client.Error{Kind: client.KindAuth, Status: 401, Detail: "Incorrect password"},
		&client.Error{Kind: client.KindRejected, Status: 404, Detail: "User not found"},
		&client.Error{Kind: client.KindValidation, Status: 400, Detail: "Incorrect username or password"},
	} {
		h := newHarness(t, nil)
		h.backend.LoginErr = backendErr

		err := h.ctl.Login(context.Background(), "alice", "pw")
		require.ErrorIs(t, err, ErrInvalidCredentials)
		assert.Equal(t, ErrInvalidCredentials.Error(), err.Error())
		assert.Equal(t, Anonymous, h.ctl.State())
		checkInvariant(t, h.ctl)
	}
}

func TestLogin_NetworkErrorPassesThrough(t *testing.T) {
	h := newHarness(t, nil)
	h.backend.LoginErr = &client.Error{Kind: client.KindNetwork, Op: "login", Err: errors.New("connection refused")}

	err := h.ctl.Login(context.Background(), "alice", "pw")
	require.ErrorIs(t, err, client.ErrUnavailable)
	assert.Equal(t, Anonymous, h.ctl.State())
	checkInvariant(t, h.ctl)
}

func TestLogin_UnknownRoleRejected(t *testing.T) {
	h := newHarness(t, nil)
	h.backend.LoginResp.Role = "superuser"

	err := h.ctl.Login(context.Background(), "alice", "pw")
	require.ErrorIs(t, err, client.ErrValidation)
	assert.Equal(t, Anonymous, h.ctl.State())
	checkInvariant(t, h.ctl)
}

func TestLogin_WrongState(t *testing.T) {
	h := newHarness(t, nil)
	login(t, h)

	err := h.ctl.Login(context.Background(), "alice", "pw")
	var it *ErrInvalidTransition
	require.ErrorAs(t, err, &it)
	assert.Equal(t, Authenticated, it.State)
	assert.Equal(t, TriggerLogin, it.Trigger)
	assert.True(t, IsInvalidTransition(err))
	assert.Equal(t, []string{"login"}, h.backend.Calls())
}

func TestExpiry_ClearsSessionAfterTTL(t *testing.T) {
	h := newHarness(t, nil)
	login(t, h)

	h.clock.Advance(59 * time.Minute)
	assert.Equal(t, Authenticated, h.ctl.State())

	h.clock.Advance(time.Minute)
	assert.Equal(t, Anonymous, h.ctl.State())
	assert.Nil(t, h.store.Current())
	checkInvariant(t, h.ctl)

	events := h.Events()
	require.NotEmpty(t, events)
	assert.Equal(t, Transition{From: Authenticated, To: Anonymous, Trigger: TriggerExpire}, events[len(events)-1])
}

func TestExpiry_ClearFailureIsRetried(t *testing.T) {
	h := newHarness(t, nil)
	login(t, h)

	h.store.clearErr = errDisk
	h.clock.Advance(time.Hour)
	assert.Equal(t, Authenticated, h.ctl.State())
	assert.True(t, h.ctl.timer.Armed(), "expiry must be retried")
	checkInvariant(t, h.ctl)

	// Still failing: another retry is scheduled.
	h.clock.Advance(expiryRetryDelay)
	assert.Equal(t, Authenticated, h.ctl.State())
	assert.True(t, h.ctl.timer.Armed())

	h.store.clearErr = nil
	h.clock.Advance(expiryRetryDelay)
	assert.Equal(t, Anonymous, h.ctl.State())
	assert.Nil(t, h.store.Current())
	assert.False(t, h.ctl.timer.Armed())
	checkInvariant(t, h.ctl)
}

func TestExpiry_RetryStopsAfterSignOut(t *testing.T) {
	h := newHarness(t, nil)
	login(t, h)

	h.store.clearErr = errDisk
	h.clock.Advance(time.Hour)
	require.Equal(t, Authenticated, h.ctl.State())

	h.store.clearErr = nil
	require.NoError(t, h.ctl.SignOut(context.Background()))
	assert.False(t, h.ctl.timer.Armed())

	login(t, h)
	h.clock.Advance(expiryRetryDelay)
	assert.Equal(t, Authenticated, h.ctl.State(), "an old retry must not end the new session")
	checkInvariant(t, h.ctl)
}

func TestSignOut_Idempotent(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	login(t, h)

	require.NoError(t, h.ctl.SignOut(ctx))
	first := h.ctl.Snapshot()
	require.NoError(t, h.ctl.SignOut(ctx))
	second := h.ctl.Snapshot()

	assert.Equal(t, first, second)
	assert.Equal(t, Anonymous, second.State)
	checkInvariant(t, h.ctl)

	// Timer was cancelled.
	h.clock.Advance(2 * time.Hour)
	assert.Equal(t, Anonymous, h.ctl.State())
	assert.Equal(t, []string{"login"}, h.backend.Calls(), "sign-out makes no backend call")
}

func TestSignOut_ClearFailureKeepsState(t *testing.T) {
	h := newHarness(t, nil)
	login(t, h)

	h.store.clearErr = errDisk
	require.ErrorIs(t, h.ctl.SignOut(context.Background()), errDisk)
	assert.Equal(t, Authenticated, h.ctl.State())
	checkInvariant(t, h.ctl)
}

func TestUpdateProfile_UsernameOnlyPatches(t *testing.T) {
	h := newHarness(t, nil)
	login(t, h)

	require.NoError(t, h.ctl.UpdateProfile(context.Background(), ProfileUpdate{Username: "alice2", Email: "a@x.com"}))

	assert.Equal(t, Authenticated, h.ctl.State())
	_, ok := h.ctl.Verification()
	assert.False(t, ok)
	s := h.ctl.Session()
	assert.Equal(t, "alice2", s.DisplayName)
	assert.Equal(t, "tok-7", s.AuthToken)
	assert.Equal(t, client.UpdateUserRequest{Username: "alice2"}, h.backend.LastUpdate)
	assert.Equal(t, "7", h.backend.LastUpdateID)
	checkInvariant(t, h.ctl)
}

func TestUpdateProfile_EmailOmittedIsAllowed(t *testing.T) {
	h := newHarness(t, nil)
	login(t, h)

	require.NoError(t, h.ctl.UpdateProfile(context.Background(), ProfileUpdate{Username: "alice2"}))
	assert.Equal(t, "alice2", h.ctl.Session().DisplayName)
}

func TestUpdateProfile_NothingChangedIsNoop(t *testing.T) {
	h := newHarness(t, nil)
	login(t, h)

	require.NoError(t, h.ctl.UpdateProfile(context.Background(), ProfileUpdate{Username: "alice", Email: "a@x.com"}))
	require.NoError(t, h.ctl.UpdateProfile(context.Background(), ProfileUpdate{}))
	assert.Equal(t, []string{"login"}, h.backend.Calls())
	assert.Equal(t, Authenticated, h.ctl.State())
}

func TestUpdateProfile_InvalidEmailMakesNoCall(t *testing.T) {
	h := newHarness(t, nil)
	login(t, h)

	err := h.ctl.UpdateProfile(context.Background(), ProfileUpdate{Email: "broken"})
	require.ErrorIs(t, err, client.ErrValidation)
	assert.Equal(t, []string{"login"}, h.backend.Calls())
	assert.Equal(t, Authenticated, h.ctl.State())
}

// A new email takes effect only once its code is confirmed.
func TestUpdateProfile_EmailChangeRequiresOTP(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	login(t, h)
	h.backend.UpdateTempID = "tmp-email"

	require.NoError(t, h.ctl.UpdateProfile(ctx, ProfileUpdate{Email: "new@x.com"}))
	require.Equal(t, PendingVerification, h.ctl.State())
	checkInvariant(t, h.ctl)

	vc, ok := h.ctl.Verification()
	require.True(t, ok)
	assert.Equal(t, verification.PurposeEmailChange, vc.Purpose())
	ch, ok := vc.Challenge.(verification.EmailChangeChallenge)
	require.True(t, ok)
	assert.Equal(t, "new@x.com", ch.NewEmail)
	assert.Equal(t, "a@x.com", ch.Previous.Email)

	// The expiry timer was cancelled with the session.
	h.clock.Advance(2 * time.Hour)
	assert.Equal(t, PendingVerification, h.ctl.State())

	require.NoError(t, h.ctl.SubmitOTP(ctx, goodOTP))
	assert.Equal(t, Anonymous, h.ctl.State())
	assert.Nil(t, h.store.Current())
	checkInvariant(t, h.ctl)
	assert.Equal(t, []string{"login", "update-user", "verify-otp:tmp-email"}, h.backend.Calls())
}

func TestCancelEmailChange_ResumesSession(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	login(t, h)
	before := h.ctl.Session()

	h.clock.Advance(20 * time.Minute)
	h.backend.UpdateTempID = "tmp-email"
	require.NoError(t, h.ctl.UpdateProfile(ctx, ProfileUpdate{Email: "new@x.com"}))
	require.Equal(t, PendingVerification, h.ctl.State())

	require.NoError(t, h.ctl.CancelVerification())
	assert.Equal(t, Authenticated, h.ctl.State())
	checkInvariant(t, h.ctl)
	if diff := cmp.Diff(before, h.store.Current()); diff != "" {
		t.Errorf("restored session mismatch (-want +got):\n%s", diff)
	}

	events := h.Events()
	assert.Equal(t, Transition{From: PendingVerification, To: Authenticated, Trigger: TriggerCancelVerification}, events[len(events)-1])

	// Only the rest of the original hour is left.
	h.clock.Advance(39 * time.Minute)
	assert.Equal(t, Authenticated, h.ctl.State())
	h.clock.Advance(time.Minute)
	assert.Equal(t, Anonymous, h.ctl.State())
	checkInvariant(t, h.ctl)
}

func TestCancelEmailChange_OutlivedSessionSignsOut(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	login(t, h)

	h.backend.UpdateTempID = "tmp-email"
	require.NoError(t, h.ctl.UpdateProfile(ctx, ProfileUpdate{Email: "new@x.com"}))
	h.clock.Advance(2 * time.Hour)

	require.NoError(t, h.ctl.CancelVerification())
	assert.Equal(t, Anonymous, h.ctl.State())
	assert.Nil(t, h.store.Current())
	checkInvariant(t, h.ctl)
}

func TestCancelEmailChange_StoreFailureSignsOut(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	login(t, h)

	h.backend.UpdateTempID = "tmp-email"
	require.NoError(t, h.ctl.UpdateProfile(ctx, ProfileUpdate{Email: "new@x.com"}))
	h.store.setErr = errDisk

	require.NoError(t, h.ctl.CancelVerification())
	assert.Equal(t, Anonymous, h.ctl.State())
	assert.False(t, h.ctl.timer.Armed())
	checkInvariant(t, h.ctl)
}

func TestUpdateProfile_BothChangedEmailWins(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	login(t, h)
	h.backend.UpdateTempID = "tmp-email"

	require.NoError(t, h.ctl.UpdateProfile(ctx, ProfileUpdate{Username: "alice2", Email: "new@x.com"}))
	assert.Equal(t, PendingVerification, h.ctl.State())
	assert.Equal(t, client.UpdateUserRequest{Username: "alice2", Email: "new@x.com"}, h.backend.LastUpdate)

	vc, _ := h.ctl.Verification()
	assert.Equal(t, "alice2", vc.Challenge.(verification.EmailChangeChallenge).NewDisplayName)

	require.NoError(t, h.ctl.SubmitOTP(ctx, goodOTP))
	assert.Equal(t, []string{"login", "update-user", "verify-otp:tmp-email"}, h.backend.Calls(), "username is not re-sent")
}

func TestUpdateProfile_EmailChangeWithoutTempID(t *testing.T) {
	h := newHarness(t, nil)
	login(t, h)
	h.backend.UpdateTempID = ""

	err := h.ctl.UpdateProfile(context.Background(), ProfileUpdate{Email: "new@x.com"})
	require.ErrorIs(t, err, client.ErrUnavailable)
	assert.Equal(t, Authenticated, h.ctl.State())
	checkInvariant(t, h.ctl)
}

func TestUpdateProfile_FailureKeepsSession(t *testing.T) {
	h := newHarness(t, nil)
	login(t, h)
	h.backend.UpdateErr = &client.Error{Kind: client.KindValidation, Status: 409, Detail: "Email already in use"}

	err := h.ctl.UpdateProfile(context.Background(), ProfileUpdate{Email: "taken@x.com"})
	require.ErrorIs(t, err, client.ErrValidation)
	assert.Equal(t, Authenticated, h.ctl.State())
	assert.Equal(t, "a@x.com", h.ctl.Session().Email)
	checkInvariant(t, h.ctl)
}

func TestDeleteAccount_ClearsAndStaleFireIsNoop(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	login(t, h)

	h.ctl.mu.Lock()
	oldGen := h.ctl.authGen
	h.ctl.mu.Unlock()

	require.NoError(t, h.ctl.DeleteAccount(ctx))
	assert.Equal(t, "7", h.backend.LastDeleteID)
	assert.Equal(t, Anonymous, h.ctl.State())
	assert.Nil(t, h.store.Current())
	assert.False(t, h.ctl.timer.Armed())
	checkInvariant(t, h.ctl)

	h.clock.Advance(2 * time.Hour)
	assert.Equal(t, Anonymous, h.ctl.State())

	// A fire from the old arming after a fresh login must not end the new session.
	login(t, h)
	h.ctl.expire(oldGen)
	assert.Equal(t, Authenticated, h.ctl.State())
	checkInvariant(t, h.ctl)
}

func TestDeleteAccount_FailureKeepsSession(t *testing.T) {
	h := newHarness(t, nil)
	login(t, h)
	h.backend.DeleteErr = &client.Error{Kind: client.KindNetwork, Status: 503}

	require.ErrorIs(t, h.ctl.DeleteAccount(context.Background()), client.ErrUnavailable)
	assert.Equal(t, Authenticated, h.ctl.State())
	assert.True(t, h.ctl.timer.Armed())
	checkInvariant(t, h.ctl)
}

func TestForgotPassword_ResetFlow(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	require.NoError(t, h.ctl.ForgotPassword(ctx, "a@x.com"))
	require.Equal(t, PendingVerification, h.ctl.State())
	vc, _ := h.ctl.Verification()
	assert.Equal(t, verification.PurposePasswordReset, vc.Purpose())
	checkInvariant(t, h.ctl)

	// No new password: rejected locally.
	err := h.ctl.SubmitOTP(ctx, goodOTP)
	require.ErrorIs(t, err, client.ErrValidation)
	assert.Equal(t, []string{"forgot-password"}, h.backend.Calls())
	assert.Equal(t, PendingVerification, h.ctl.State())

	require.ErrorIs(t, h.ctl.SubmitOTP(ctx, "999999", WithNewPassword("n3w")), client.ErrVerification)
	assert.Equal(t, PendingVerification, h.ctl.State())

	require.NoError(t, h.ctl.SubmitOTP(ctx, goodOTP, WithNewPassword("n3w")))
	assert.Equal(t, Anonymous, h.ctl.State())
	assert.Equal(t, "n3w", h.backend.LastResetPassword)
	assert.Equal(t, []string{"forgot-password", "reset-password:tmp-reset", "reset-password:tmp-reset"}, h.backend.Calls())
	checkInvariant(t, h.ctl)
}

func TestForgotPassword_InvalidEmail(t *testing.T) {
	h := newHarness(t, nil)
	require.ErrorIs(t, h.ctl.ForgotPassword(context.Background(), "nope"), client.ErrValidation)
	assert.Empty(t, h.backend.Calls())
}

func TestSubmitOTP_NoContextMakesNoCall(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	require.ErrorIs(t, h.ctl.SubmitOTP(ctx, goodOTP), ErrNoVerification)
	login(t, h)
	require.ErrorIs(t, h.ctl.SubmitOTP(ctx, goodOTP), ErrNoVerification)

	assert.Equal(t, []string{"login"}, h.backend.Calls())
}

func TestSubmitOTP_NonDigitCodeRejectedLocally(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	require.NoError(t, h.ctl.SubmitSignup(ctx, SignupForm{Username: "alice", Email: "a@x.com", Password: "pw"}))

	require.ErrorIs(t, h.ctl.SubmitOTP(ctx, "12ab"), client.ErrValidation)
	require.ErrorIs(t, h.ctl.SubmitOTP(ctx, ""), client.ErrValidation)
	assert.Equal(t, []string{"signup"}, h.backend.Calls())
	assert.Equal(t, PendingVerification, h.ctl.State())
}

func TestCancelVerification(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	require.True(t, IsInvalidTransition(h.ctl.CancelVerification()))

	require.NoError(t, h.ctl.SubmitSignup(ctx, SignupForm{Username: "alice", Email: "a@x.com", Password: "pw"}))
	require.NoError(t, h.ctl.CancelVerification())
	assert.Equal(t, Anonymous, h.ctl.State())
	checkInvariant(t, h.ctl)

	require.ErrorIs(t, h.ctl.SubmitOTP(ctx, goodOTP), ErrNoVerification)
}

func TestChallengeAfterCancelIsFresh(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	require.NoError(t, h.ctl.SubmitSignup(ctx, SignupForm{Username: "alice", Email: "a@x.com", Password: "pw"}))
	first, _ := h.ctl.Verification()
	require.NoError(t, h.ctl.CancelVerification())
	require.NoError(t, h.ctl.ForgotPassword(ctx, "a@x.com"))

	cur, ok := h.ctl.Verification()
	require.True(t, ok)
	assert.NotEqual(t, first.Generation, cur.Generation)
	assert.Equal(t, verification.PurposePasswordReset, cur.Purpose())

	require.NoError(t, h.ctl.SubmitOTP(ctx, goodOTP, WithNewPassword("x")))
	assert.Contains(t, h.backend.Calls(), "reset-password:tmp-reset")
	assert.NotContains(t, h.backend.Calls(), "verify-otp:tmp-signup")
}

func TestLateOTPResultAfterCancelIsIgnored(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	require.NoError(t, h.ctl.SubmitSignup(ctx, SignupForm{Username: "alice", Email: "a@x.com", Password: "pw"}))

	entered, release := h.backend.hold()
	done := make(chan error, 1)
	go func() { done <- h.ctl.SubmitOTP(ctx, goodOTP) }()
	<-entered

	require.True(t, IsInvalidTransition(h.ctl.SubmitSignup(ctx, SignupForm{Username: "x", Email: "x@x.com", Password: "p"})))
	require.NoError(t, h.ctl.CancelVerification())
	h.backend.unhold()

	// A new operation is not blocked by the abandoned request.
	require.NoError(t, h.ctl.ForgotPassword(ctx, "a@x.com"))
	require.Equal(t, PendingVerification, h.ctl.State())

	release()
	require.ErrorIs(t, <-done, ErrSuperseded)

	vc, ok := h.ctl.Verification()
	require.True(t, ok, "the newer challenge must survive the late result")
	assert.Equal(t, verification.PurposePasswordReset, vc.Purpose())
	assert.Equal(t, PendingVerification, h.ctl.State())
	checkInvariant(t, h.ctl)
}

func TestLateDeleteResultAfterSignOutIsIgnored(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	login(t, h)

	entered, release := h.backend.hold()
	done := make(chan error, 1)
	go func() { done <- h.ctl.DeleteAccount(ctx) }()
	<-entered

	require.NoError(t, h.ctl.SignOut(ctx))
	release()
	require.ErrorIs(t, <-done, ErrSuperseded)

	assert.Equal(t, Anonymous, h.ctl.State())
	checkInvariant(t, h.ctl)
}

func TestBusyWhileCallInFlight(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	entered, release := h.backend.hold()
	done := make(chan error, 1)
	go func() { done <- h.ctl.Login(ctx, "alice", "pw") }()
	<-entered

	require.ErrorIs(t, h.ctl.ForgotPassword(ctx, "a@x.com"), ErrBusy)
	require.ErrorIs(t, h.ctl.SubmitSignup(ctx, SignupForm{Username: "a", Email: "a@x.com", Password: "p"}), ErrBusy)
	// Still Anonymous: nothing is applied before the call completes.
	assert.Equal(t, Anonymous, h.ctl.State())
	checkInvariant(t, h.ctl)

	release()
	require.NoError(t, <-done)
	assert.Equal(t, Authenticated, h.ctl.State())
	checkInvariant(t, h.ctl)
}

func TestExpiryDuringInFlightUpdateDropsResult(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	login(t, h)
	h.backend.UpdateTempID = "tmp-email"

	entered, release := h.backend.hold()
	done := make(chan error, 1)
	go func() { done <- h.ctl.UpdateProfile(ctx, ProfileUpdate{Email: "new@x.com"}) }()
	<-entered

	h.clock.Advance(time.Hour)
	assert.Equal(t, Anonymous, h.ctl.State())

	release()
	require.ErrorIs(t, <-done, ErrSuperseded)
	assert.Equal(t, Anonymous, h.ctl.State())
	_, ok := h.ctl.Verification()
	assert.False(t, ok)
	checkInvariant(t, h.ctl)
}

func TestTransitionsAreReported(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	require.NoError(t, h.ctl.SubmitSignup(ctx, SignupForm{Username: "alice", Email: "a@x.com", Password: "pw"}))
	require.NoError(t, h.ctl.SubmitOTP(ctx, goodOTP))
	login(t, h)
	require.NoError(t, h.ctl.SignOut(ctx))

	want := []Transition{
		{From: Anonymous, To: PendingVerification, Trigger: TriggerSignup, Purpose: verification.PurposeSignup},
		{From: PendingVerification, To: Anonymous, Trigger: TriggerSubmitOTP},
		{From: Anonymous, To: Authenticated, Trigger: TriggerLogin},
		{From: Authenticated, To: Anonymous, Trigger: TriggerSignOut},
	}
	if diff := cmp.Diff(want, h.Events()); diff != "" {
		t.Fatalf("transitions mismatch (-want +got):\n%s", diff)
	}
}

func TestWrongStateOperations(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	assert.True(t, IsInvalidTransition(h.ctl.UpdateProfile(ctx, ProfileUpdate{Username: "x"})))
	assert.True(t, IsInvalidTransition(h.ctl.DeleteAccount(ctx)))
	assert.NoError(t, h.ctl.SignOut(ctx))

	login(t, h)
	assert.True(t, IsInvalidTransition(h.ctl.SubmitSignup(ctx, SignupForm{Username: "a", Email: "a@x.com", Password: "p"})))
	assert.True(t, IsInvalidTransition(h.ctl.ForgotPassword(ctx, "a@x.com")))
	assert.True(t, IsInvalidTransition(h.ctl.CancelVerification()))

	assert.Equal(t, []string{"login"}, h.backend.Calls())
	checkInvariant(t, h.ctl)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "anonymous", Anonymous.String())
	assert.Equal(t, "pending-verification", PendingVerification.String())
	assert.Equal(t, "authenticated", Authenticated.String())
	assert.Equal(t, "unknown", State(9).String())
	assert.Equal(t, "cannot login while authenticated",
		(&ErrInvalidTransition{State: Authenticated, Trigger: TriggerLogin}).Error())
}
