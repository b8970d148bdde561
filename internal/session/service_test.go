package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"health-backend/internal/audit"
	"health-backend/internal/auth"
	"health-backend/internal/tokens"
)

type fixture struct {
	svc      *Service
	verifier *auth.Verifier
	users    *auth.MemoryUserStore
	ledger   *tokens.Ledger
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	priv, _, err := auth.GenerateEd25519()
	if err != nil {
		t.Fatalf("GenerateEd25519: %v", err)
	}
	signer := auth.NewJWTSigner(priv, "health-backend", 15*time.Minute)
	users := auth.NewMemoryUserStore()
	ledger := tokens.NewLedger(tokens.NewMemoryStore(), time.Hour)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := New(cfg, signer, ledger, users, audit.New(), logger)

	hash, err := auth.HashPassword(auth.DefaultArgon, "correct horse")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	err = users.Add(context.Background(), &auth.User{
		ID:       "u-1",
		Email:    "a@x.com",
		PassHash: hash,
		Roles:    []auth.Role{auth.RoleUser},
	})
	if err != nil {
		t.Fatalf("add user: %v", err)
	}

	return &fixture{
		svc:      svc,
		verifier: auth.NewVerifier(signer, users),
		users:    users,
		ledger:   ledger,
	}
}

func TestLoginIssuesUsablePair(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})

	creds, err := f.svc.Login(ctx, "a@x.com", "correct horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	claims, err := f.verifier.Verify(ctx, creds.AccessToken)
	if err != nil {
		t.Fatalf("verify access token: %v", err)
	}
	if claims.Sub != "u-1" {
		t.Fatalf("wrong subject: %s", claims.Sub)
	}
	if creds.RefreshToken == "" || !creds.RefreshExp.After(time.Now()) {
		t.Fatal("missing or expired refresh token")
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	f := newFixture(t, Config{})
	if _, err := f.svc.Login(context.Background(), "a@x.com", "wrong"); !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("expected ErrBadCredentials, got %v", err)
	}
	if _, err := f.svc.Login(context.Background(), "nobody@x.com", "whatever"); !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("expected ErrBadCredentials for unknown email, got %v", err)
	}
}

func TestRefreshRotates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})

	creds, err := f.svc.Login(ctx, "a@x.com", "correct horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	next, err := f.svc.Refresh(ctx, creds.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if next.RefreshToken == creds.RefreshToken {
		t.Fatal("refresh token not rotated")
	}
	if _, err := f.verifier.Verify(ctx, next.AccessToken); err != nil {
		t.Fatalf("new access token rejected: %v", err)
	}
}

func TestRefreshReuseRevokesChainAndAccessTokens(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})

	creds, err := f.svc.Login(ctx, "a@x.com", "correct horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	next, err := f.svc.Refresh(ctx, creds.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}

	// Replay of the rotated-away token.
	if _, err := f.svc.Refresh(ctx, creds.RefreshToken); !errors.Is(err, ErrReuseDetected) {
		t.Fatalf("expected ErrReuseDetected, got %v", err)
	}

	// The legitimate successor is dead too.
	if _, err := f.svc.Refresh(ctx, next.RefreshToken); err == nil {
		t.Fatal("successor token survived reuse punishment")
	}
	// Outstanding access tokens died via the version bump.
	if _, err := f.verifier.Verify(ctx, next.AccessToken); !errors.Is(err, auth.ErrStaleToken) {
		t.Fatalf("expected ErrStaleToken, got %v", err)
	}
}

func TestLogoutEverywhere(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})

	creds, err := f.svc.Login(ctx, "a@x.com", "correct horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := f.svc.LogoutEverywhere(ctx, "u-1"); err != nil {
		t.Fatalf("logout everywhere: %v", err)
	}
	if _, err := f.verifier.Verify(ctx, creds.AccessToken); !errors.Is(err, auth.ErrStaleToken) {
		t.Fatalf("expected ErrStaleToken, got %v", err)
	}
	if _, err := f.svc.Refresh(ctx, creds.RefreshToken); err == nil {
		t.Fatal("refresh token survived logout everywhere")
	}
}

func TestChangePasswordKillsSessions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})

	creds, err := f.svc.Login(ctx, "a@x.com", "correct horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := f.svc.ChangePassword(ctx, "u-1", "wrong", "new password"); !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("expected ErrBadCredentials, got %v", err)
	}
	if err := f.svc.ChangePassword(ctx, "u-1", "correct horse", "new password"); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if _, err := f.verifier.Verify(ctx, creds.AccessToken); !errors.Is(err, auth.ErrStaleToken) {
		t.Fatalf("expected ErrStaleToken after password change, got %v", err)
	}
	if _, err := f.svc.Login(ctx, "a@x.com", "new password"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

func TestRefreshThrottle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{RefreshPerMinute: 0.001, RefreshBurst: 3})

	var throttled bool
	for i := 0; i < 6; i++ {
		_, err := f.svc.Refresh(ctx, "hammered-token")
		if errors.Is(err, ErrThrottled) {
			throttled = true
			break
		}
		if !errors.Is(err, tokens.ErrTokenInvalid) {
			t.Fatalf("attempt %d: unexpected error %v", i, err)
		}
	}
	if !throttled {
		t.Fatal("expected throttling after burst")
	}
}
