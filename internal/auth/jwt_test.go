package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestSigner(t *testing.T) *JWTSigner {
	priv, _, err := GenerateEd25519()
	if err != nil {
		t.Fatalf("GenerateEd25519: %v", err)
	}
	return NewJWTSigner(priv, "health-backend", 15*time.Minute)
}

func TestIssueParseRoundTrip(t *testing.T) {
	s := newTestSigner(t)
	token, exp, err := s.IssueToken("u-1", 3, []Role{RoleUser})
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if !exp.After(time.Now()) {
		t.Fatal("expiry not in the future")
	}
	claims, err := s.ParseAndValidate(token)
	if err != nil {
		t.Fatalf("ParseAndValidate: %v", err)
	}
	if claims.Sub != "u-1" || claims.Ver != 3 {
		t.Fatalf("claims mismatch: %+v", claims)
	}
	if len(claims.Roles) != 1 || claims.Roles[0] != RoleUser {
		t.Fatalf("roles mismatch: %v", claims.Roles)
	}
	if claims.TokenID == "" {
		t.Fatal("missing jti")
	}
}

func TestParseRejectsForeignKey(t *testing.T) {
	a := newTestSigner(t)
	b := newTestSigner(t)
	token, _, err := a.IssueToken("u-1", 1, nil)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if _, err := b.ParseAndValidate(token); !errors.Is(err, ErrInvalidAccessToken) {
		t.Fatalf("expected ErrInvalidAccessToken, got %v", err)
	}
}

func TestVerifierRejectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	s := newTestSigner(t)
	users := NewMemoryUserStore()
	if err := users.Add(ctx, &User{ID: "u-1", Email: "a@x.com", TokenVersion: 3}); err != nil {
		t.Fatalf("add user: %v", err)
	}
	v := NewVerifier(s, users)

	token, _, err := s.IssueToken("u-1", 3, []Role{RoleUser})
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if _, err := v.Verify(ctx, token); err != nil {
		t.Fatalf("verify at current version: %v", err)
	}

	// Logout-everywhere bumps the version; the not-yet-expired token dies.
	if _, err := users.BumpTokenVersion(ctx, "u-1"); err != nil {
		t.Fatalf("bump: %v", err)
	}
	if _, err := v.Verify(ctx, token); !errors.Is(err, ErrStaleToken) {
		t.Fatalf("expected ErrStaleToken, got %v", err)
	}

	// A token issued at the new version is admitted.
	fresh, _, err := s.IssueToken("u-1", 4, []Role{RoleUser})
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if _, err := v.Verify(ctx, fresh); err != nil {
		t.Fatalf("verify fresh token: %v", err)
	}
}

func TestVerifierRejectsUnknownUser(t *testing.T) {
	ctx := context.Background()
	s := newTestSigner(t)
	v := NewVerifier(s, NewMemoryUserStore())
	token, _, err := s.IssueToken("ghost", 0, nil)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if _, err := v.Verify(ctx, token); err == nil {
		t.Fatal("expected rejection for unknown subject")
	}
}
