package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sakif/trading-post/internal/apperror"
	"github.com/sakif/trading-post/internal/auth"
	"github.com/sakif/trading-post/internal/model"
)

// =========================================================================
// HELPERS
// =========================================================================

type authFixture struct {
	svc      *AuthService
	store    *fakeStore
	provider *fakeProvider
	tokens   *auth.TokenService
	events   *countingRecorder
}

// newTestAuthService returns an AuthService wired with fake dependencies.
// The provider asserts jane@email.com unless a test swaps it.
func newTestAuthService(t *testing.T) *authFixture {
	t.Helper()

	ts, err := auth.NewTokenService("test-secret-at-least-16-chars!!", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	store := newFakeStore()
	provider := &fakeProvider{user: &auth.ProviderUser{
		Subject: "1001",
		Email:   "jane@email.com",
		Name:    "Jane Doe",
	}}
	events := newCountingRecorder()

	svc := NewAuthService(store, store, ts, provider, events, discardLogger())
	return &authFixture{svc: svc, store: store, provider: provider, tokens: ts, events: events}
}

// =========================================================================
// LOGIN TESTS
// =========================================================================

func TestLoginWithCode_NewUser(t *testing.T) {
	f := newTestAuthService(t)

	res, err := f.svc.LoginWithCode(context.Background(), "abc")
	if err != nil {
		t.Fatalf("LoginWithCode() error = %v", err)
	}

	if res.User.Email != "jane@email.com" {
		t.Errorf("User.Email = %q, want jane@email.com", res.User.Email)
	}
	if res.User.Name != "Jane Doe" {
		t.Errorf("User.Name = %q, want Jane Doe", res.User.Name)
	}
	if res.Session.AccessToken != "access-for-abc" {
		t.Errorf("Session.AccessToken = %q, want access-for-abc", res.Session.AccessToken)
	}
	if _, err := f.store.GetSession(context.Background(), res.Session.ID); err != nil {
		t.Errorf("session was not stored: %v", err)
	}
	if f.events.events[EventLogin] != 1 {
		t.Errorf("login events = %d, want 1", f.events.events[EventLogin])
	}
}

func TestLoginWithCode_TokenCarriesSessionID(t *testing.T) {
	f := newTestAuthService(t)

	res, err := f.svc.LoginWithCode(context.Background(), "abc")
	if err != nil {
		t.Fatalf("LoginWithCode() error = %v", err)
	}

	sid, err := f.tokens.Validate(res.Token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if sid != res.Session.ID {
		t.Errorf("token subject = %q, want %q", sid, res.Session.ID)
	}
}

func TestLogin_SameEmailResolvesToSameUser(t *testing.T) {
	f := newTestAuthService(t)
	ctx := context.Background()

	first, err := f.svc.LoginWithCode(ctx, "one")
	if err != nil {
		t.Fatalf("first login: %v", err)
	}
	second, err := f.svc.LoginWithAccessToken(ctx, "handed-off")
	if err != nil {
		t.Fatalf("second login: %v", err)
	}

	if first.User.ID != second.User.ID {
		t.Errorf("user IDs differ: %q vs %q", first.User.ID, second.User.ID)
	}
	if len(f.store.users) != 1 {
		t.Errorf("users stored = %d, want 1", len(f.store.users))
	}
	if first.Session.ID == second.Session.ID {
		t.Error("each login should get its own session")
	}
}

func TestLoginWithAccessToken_PassesTokenToProvider(t *testing.T) {
	f := newTestAuthService(t)

	res, err := f.svc.LoginWithAccessToken(context.Background(), "handed-off")
	if err != nil {
		t.Fatalf("LoginWithAccessToken() error = %v", err)
	}
	if len(f.provider.seenTokens) != 1 || f.provider.seenTokens[0] != "handed-off" {
		t.Errorf("provider saw tokens %v, want [handed-off]", f.provider.seenTokens)
	}
	if res.Session.AccessToken != "handed-off" {
		t.Errorf("Session.AccessToken = %q, want handed-off", res.Session.AccessToken)
	}
}

func TestLogin_MissingInput(t *testing.T) {
	f := newTestAuthService(t)

	if _, err := f.svc.LoginWithCode(context.Background(), ""); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("LoginWithCode(\"\") error = %v, want ErrValidation", err)
	}
	if _, err := f.svc.LoginWithAccessToken(context.Background(), ""); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("LoginWithAccessToken(\"\") error = %v, want ErrValidation", err)
	}
}

func TestLogin_ExchangeFailureIsUpstream(t *testing.T) {
	f := newTestAuthService(t)
	f.provider.exchangeErr = errors.New("invalid_grant")

	_, err := f.svc.LoginWithCode(context.Background(), "abc")
	if !errors.Is(err, apperror.ErrUpstream) {
		t.Fatalf("error = %v, want ErrUpstream", err)
	}
	if f.store.writes != 0 {
		t.Errorf("writes = %d, want 0", f.store.writes)
	}
}

func TestLogin_UserInfoFailureCreatesNoUser(t *testing.T) {
	f := newTestAuthService(t)
	f.provider.userInfoErr = errors.New("503 from userinfo")

	_, err := f.svc.LoginWithAccessToken(context.Background(), "handed-off")
	if !errors.Is(err, apperror.ErrUpstream) {
		t.Fatalf("error = %v, want ErrUpstream", err)
	}
	if len(f.store.users) != 0 {
		t.Errorf("users stored = %d, want 0", len(f.store.users))
	}
	if len(f.store.sessions) != 0 {
		t.Errorf("sessions stored = %d, want 0", len(f.store.sessions))
	}
}

func TestLogin_StorageFailureIsNotUpstream(t *testing.T) {
	f := newTestAuthService(t)
	dbErr := errors.New("database is locked")
	f.store.resolveErr = dbErr

	_, err := f.svc.LoginWithCode(context.Background(), "abc")
	if !errors.Is(err, dbErr) {
		t.Fatalf("error = %v, want wrapped %v", err, dbErr)
	}
	if errors.Is(err, apperror.ErrUpstream) || errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("storage failure misclassified: %v", err)
	}
}

func TestLogin_SessionStoreFailure(t *testing.T) {
	f := newTestAuthService(t)
	f.store.createSessionErr = errors.New("disk full")

	if _, err := f.svc.LoginWithCode(context.Background(), "abc"); err == nil {
		t.Fatal("LoginWithCode() should fail when the session cannot be stored")
	}
	if f.events.events[EventLogin] != 0 {
		t.Error("failed login should not be recorded")
	}
}

// =========================================================================
// LOGOUT TESTS
// =========================================================================

func TestLogout_RevokesAndDeletes(t *testing.T) {
	f := newTestAuthService(t)
	ctx := context.Background()

	res, err := f.svc.LoginWithCode(ctx, "abc")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := f.svc.Logout(ctx, res.Session); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if len(f.provider.revoked) != 1 || f.provider.revoked[0] != "access-for-abc" {
		t.Errorf("revoked = %v, want [access-for-abc]", f.provider.revoked)
	}
	if _, err := f.store.GetSession(ctx, res.Session.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("session still present: %v", err)
	}
}

func TestLogout_RevokeFailureStillDeletesSession(t *testing.T) {
	f := newTestAuthService(t)
	ctx := context.Background()

	res, err := f.svc.LoginWithCode(ctx, "abc")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	f.provider.revokeErr = errors.New("400 invalid_token")

	err = f.svc.Logout(ctx, res.Session)
	if !errors.Is(err, apperror.ErrUpstream) {
		t.Fatalf("Logout() error = %v, want ErrUpstream", err)
	}
	if _, err := f.store.GetSession(ctx, res.Session.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("session should be deleted even when revoke fails: %v", err)
	}
}

func TestLogout_NoSession(t *testing.T) {
	f := newTestAuthService(t)

	err := f.svc.Logout(context.Background(), nil)
	if !errors.Is(err, apperror.ErrUnauthorized) {
		t.Fatalf("Logout(nil) error = %v, want ErrUnauthorized", err)
	}
	if len(f.provider.revoked) != 0 {
		t.Error("nothing should be revoked without a session")
	}
}

func TestLogout_DeleteFailure(t *testing.T) {
	f := newTestAuthService(t)
	f.store.deleteSessionErr = errors.New("database is locked")

	err := f.svc.Logout(context.Background(), &model.Session{ID: "s1", AccessToken: "tok"})
	if err == nil {
		t.Fatal("Logout() should report a failed session delete")
	}
	if f.events.events[EventLogout] != 0 {
		t.Error("failed logout should not be recorded")
	}
}

// =========================================================================
// CurrentUser / SweepSessions TESTS
// =========================================================================

func TestCurrentUser(t *testing.T) {
	f := newTestAuthService(t)
	ctx := context.Background()

	res, err := f.svc.LoginWithCode(ctx, "abc")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	u, err := f.svc.CurrentUser(ctx, res.User.ID)
	if err != nil {
		t.Fatalf("CurrentUser() error = %v", err)
	}
	if u.Email != "jane@email.com" {
		t.Errorf("Email = %q, want jane@email.com", u.Email)
	}

	if _, err := f.svc.CurrentUser(ctx, ""); !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("CurrentUser(\"\") error = %v, want ErrUnauthorized", err)
	}
	if _, err := f.svc.CurrentUser(ctx, "nope"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("CurrentUser(nope) error = %v, want ErrNotFound", err)
	}
}

func TestSweepSessions(t *testing.T) {
	f := newTestAuthService(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	_ = f.store.CreateSession(ctx, &model.Session{ID: "old", ExpiresAt: past})
	_ = f.store.CreateSession(ctx, &model.Session{ID: "live", ExpiresAt: time.Now().Add(time.Hour)})

	n, err := f.svc.SweepSessions(ctx)
	if err != nil {
		t.Fatalf("SweepSessions() error = %v", err)
	}
	if n != 1 {
		t.Errorf("swept = %d, want 1", n)
	}
	if _, err := f.store.GetSession(ctx, "live"); err != nil {
		t.Errorf("live session removed: %v", err)
	}
}
