package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"proctor-integrity/backend/internal/audit"
	auditrepo "proctor-integrity/backend/internal/audit/repository"
	"proctor-integrity/backend/internal/security"
	sessionrepo "proctor-integrity/backend/internal/session/repository"
	userdomain "proctor-integrity/backend/internal/user/domain"
	userrepo "proctor-integrity/backend/internal/user/repository"
)

type authFixture struct {
	svc    *AuthService
	tp     *security.TokenProvider
	users  *userrepo.MemoryRepository
	tokens *sessionrepo.MemoryRepository
	audits *auditrepo.MemoryRepository
	clock  time.Time
}

func newAuthFixture(t *testing.T, keep int) *authFixture {
	t.Helper()
	tp, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	f := &authFixture{
		tp:     tp,
		users:  userrepo.NewMemoryRepository(),
		tokens: sessionrepo.NewMemoryRepository(),
		audits: auditrepo.NewMemoryRepository(),
		clock:  time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC),
	}
	f.svc = NewAuthService(f.users, f.tokens, tp, 24*time.Hour, keep, audit.NewLogger(f.audits, nil), nil)
	f.svc.now = func() time.Time { return f.clock }
	tp.SetClock(func() time.Time { return f.clock })
	return f
}

func (f *authFixture) advance(d time.Duration) {
	f.clock = f.clock.Add(d)
}

func (f *authFixture) login(t *testing.T, providerID string) *AuthResult {
	t.Helper()
	res, err := f.svc.Login(context.Background(), ExternalIdentity{ProviderID: providerID, Login: "octo-" + providerID})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	f.advance(time.Second)
	return res
}

func TestLogin_IssuesPair(t *testing.T) {
	f := newAuthFixture(t, 0)
	issuedAt := f.clock
	res := f.login(t, "gh-1")

	if res.AccessToken == "" || res.RefreshToken == "" {
		t.Fatal("Login should return both tokens")
	}
	if res.UserID == "" {
		t.Fatal("Login should return the user id")
	}
	sub, err := f.tp.ValidateAccess(res.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccess: %v", err)
	}
	if sub != res.UserID {
		t.Errorf("access token sub = %q, want %q", sub, res.UserID)
	}
	if got := res.ExpiresAt.Sub(issuedAt); got != 15*time.Minute {
		t.Errorf("access ttl = %v, want 15m", got)
	}
	if got := res.RefreshExpiresAt.Sub(issuedAt); got != 24*time.Hour {
		t.Errorf("refresh ttl = %v, want 24h", got)
	}
	u, _ := f.users.GetByID(context.Background(), res.UserID)
	if u == nil || u.Role != userdomain.RoleStudent {
		t.Errorf("new user = %+v, want student role", u)
	}
}

func TestLogin_ExistingUserKeepsRole(t *testing.T) {
	f := newAuthFixture(t, 0)
	first := f.login(t, "gh-1")
	f.users.SetRole(first.UserID, userdomain.RoleInstructor)

	second := f.login(t, "gh-1")
	if second.UserID != first.UserID {
		t.Errorf("second login user = %q, want %q", second.UserID, first.UserID)
	}
	u, _ := f.users.GetByID(context.Background(), first.UserID)
	if u.Role != userdomain.RoleInstructor {
		t.Errorf("role = %q, want instructor", u.Role)
	}
}

func TestLogin_InvalidIdentity(t *testing.T) {
	f := newAuthFixture(t, 0)
	for _, ident := range []ExternalIdentity{{}, {ProviderID: "gh-1"}, {Login: "octo"}, {ProviderID: " ", Login: " "}} {
		if _, err := f.svc.Login(context.Background(), ident); !errors.Is(err, ErrInvalidIdentity) {
			t.Errorf("Login(%+v) = %v, want ErrInvalidIdentity", ident, err)
		}
	}
}

func TestLogin_PrunesToKeepPerUser(t *testing.T) {
	f := newAuthFixture(t, 0)
	var last *AuthResult
	for i := 0; i < 8; i++ {
		last = f.login(t, "gh-1")
	}
	if n := f.tokens.CountForUser(last.UserID); n != DefaultRefreshTokensPerUser {
		t.Errorf("tokens = %d, want %d", n, DefaultRefreshTokensPerUser)
	}
	if _, err := f.svc.Refresh(context.Background(), last.RefreshToken); err != nil {
		t.Errorf("newest token should survive pruning: %v", err)
	}
}

func TestRefresh_RotationDoesNotEvictOtherSessions(t *testing.T) {
	f := newAuthFixture(t, 0)
	ctx := context.Background()
	sessionB := f.login(t, "gh-1")
	sessionA := f.login(t, "gh-1")

	cur := sessionA.RefreshToken
	for i := 0; i < 2*DefaultRefreshTokensPerUser; i++ {
		res, err := f.svc.Refresh(ctx, cur)
		if err != nil {
			t.Fatalf("rotation %d of session A: %v", i, err)
		}
		cur = res.RefreshToken
		f.advance(time.Second)
	}

	if _, err := f.svc.Refresh(ctx, sessionB.RefreshToken); err != nil {
		t.Fatalf("session B after A rotated: %v", err)
	}
}

func TestRefresh_TombstonesAgeOut(t *testing.T) {
	f := newAuthFixture(t, 0)
	ctx := context.Background()
	r1 := f.login(t, "gh-1")
	if _, err := f.svc.Refresh(ctx, r1.RefreshToken); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if n := f.tokens.CountForUser(r1.UserID); n != 2 {
		t.Fatalf("tokens after rotation = %d, want 2", n)
	}

	f.advance(25 * time.Hour)
	r3 := f.login(t, "gh-1")
	if n := f.tokens.CountForUser(r1.UserID); n != 2 {
		t.Errorf("tokens after tombstone expiry = %d, want 2", n)
	}
	if _, err := f.svc.Refresh(ctx, r1.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Errorf("expired tombstone = %v, want ErrInvalidRefreshToken", err)
	}
	if _, err := f.svc.Refresh(ctx, r3.RefreshToken); err != nil {
		t.Errorf("fresh login token: %v", err)
	}
}

func TestRefresh_Rotates(t *testing.T) {
	f := newAuthFixture(t, 0)
	r1 := f.login(t, "gh-1")

	r2, err := f.svc.Refresh(context.Background(), r1.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if r2.RefreshToken == r1.RefreshToken {
		t.Error("refresh token must change on rotation")
	}
	if r2.UserID != r1.UserID {
		t.Errorf("user = %q, want %q", r2.UserID, r1.UserID)
	}
}

// Scenario D: R1 rotates into R2, then R1 comes back.
func TestRefresh_ReuseRevokesAllTokens(t *testing.T) {
	f := newAuthFixture(t, 0)
	ctx := context.Background()
	r1 := f.login(t, "gh-1")
	other := f.login(t, "gh-1")

	r2, err := f.svc.Refresh(ctx, r1.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	if _, err := f.svc.Refresh(ctx, r1.RefreshToken); !errors.Is(err, ErrRefreshTokenReuse) {
		t.Fatalf("reuse Refresh = %v, want ErrRefreshTokenReuse", err)
	}
	if n := f.tokens.CountForUser(r1.UserID); n != 0 {
		t.Errorf("tokens after reuse = %d, want 0", n)
	}
	for name, tok := range map[string]string{"r2": r2.RefreshToken, "other": other.RefreshToken} {
		if _, err := f.svc.Refresh(ctx, tok); !errors.Is(err, ErrInvalidRefreshToken) {
			t.Errorf("%s after reuse = %v, want ErrInvalidRefreshToken", name, err)
		}
	}
	actions := f.audits.Actions()
	if len(actions) == 0 || actions[len(actions)-1] != audit.ActionRefreshTokenReuse {
		t.Errorf("audit actions = %v, want %q last", actions, audit.ActionRefreshTokenReuse)
	}
}

func TestRefresh_ReuseDoesNotTouchOtherUsers(t *testing.T) {
	f := newAuthFixture(t, 0)
	ctx := context.Background()
	alice := f.login(t, "gh-alice")
	bob := f.login(t, "gh-bob")

	if _, err := f.svc.Refresh(ctx, alice.RefreshToken); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	_, _ = f.svc.Refresh(ctx, alice.RefreshToken)

	if _, err := f.svc.Refresh(ctx, bob.RefreshToken); err != nil {
		t.Errorf("other user's token should still rotate: %v", err)
	}
}

func TestRefresh_Expired(t *testing.T) {
	f := newAuthFixture(t, 0)
	r1 := f.login(t, "gh-1")
	f.advance(25 * time.Hour)

	if _, err := f.svc.Refresh(context.Background(), r1.RefreshToken); !errors.Is(err, ErrRefreshTokenExpired) {
		t.Fatalf("Refresh = %v, want ErrRefreshTokenExpired", err)
	}
	if n := f.tokens.CountForUser(r1.UserID); n != 0 {
		t.Errorf("expired token should be deleted, %d left", n)
	}
	if _, err := f.svc.Refresh(context.Background(), r1.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Errorf("second Refresh = %v, want ErrInvalidRefreshToken", err)
	}
}

func TestRefresh_Invalid(t *testing.T) {
	f := newAuthFixture(t, 0)
	for _, tok := range []string{"", "not-a-token"} {
		if _, err := f.svc.Refresh(context.Background(), tok); !errors.Is(err, ErrInvalidRefreshToken) {
			t.Errorf("Refresh(%q) = %v, want ErrInvalidRefreshToken", tok, err)
		}
	}
}

func TestRefresh_ConcurrentRotationOnlyOneWins(t *testing.T) {
	f := newAuthFixture(t, 0)
	r1 := f.login(t, "gh-1")

	var wg sync.WaitGroup
	results := make([]error, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = f.svc.Refresh(context.Background(), r1.RefreshToken)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrRefreshTokenReuse), errors.Is(err, ErrInvalidRefreshToken):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if wins > 1 {
		t.Errorf("%d rotations succeeded, want at most 1", wins)
	}
}

func TestLogout(t *testing.T) {
	f := newAuthFixture(t, 0)
	ctx := context.Background()
	r1 := f.login(t, "gh-1")

	if err := f.svc.Logout(ctx, r1.RefreshToken); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if n := f.tokens.CountForUser(r1.UserID); n != 0 {
		t.Errorf("tokens after logout = %d, want 0", n)
	}
	if _, err := f.svc.Refresh(ctx, r1.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Errorf("Refresh after logout = %v, want ErrInvalidRefreshToken", err)
	}
	actions := f.audits.Actions()
	if len(actions) != 1 || actions[0] != audit.ActionLogout {
		t.Errorf("audit actions = %v", actions)
	}

	for _, tok := range []string{"", "unknown", r1.RefreshToken} {
		if err := f.svc.Logout(ctx, tok); err != nil {
			t.Errorf("Logout(%q) = %v, want nil", tok, err)
		}
	}
}

func TestLogout_LeavesOtherSessions(t *testing.T) {
	f := newAuthFixture(t, 0)
	ctx := context.Background()
	laptop := f.login(t, "gh-1")
	desktop := f.login(t, "gh-1")

	if err := f.svc.Logout(ctx, laptop.RefreshToken); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if n := f.tokens.CountForUser(laptop.UserID); n != 1 {
		t.Errorf("tokens after logout = %d, want 1", n)
	}
	if _, err := f.svc.Refresh(ctx, desktop.RefreshToken); err != nil {
		t.Errorf("other session after logout: %v", err)
	}
}
