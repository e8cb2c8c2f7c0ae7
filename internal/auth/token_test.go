package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func testTokens(t *testing.T) *Tokens {
	t.Helper()
	tokens, err := NewTokens("test-secret", DefaultTokenTTL)
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	return tokens
}

func TestIssueAndVerify(t *testing.T) {
	tokens := testTokens(t)
	id := Identity{ID: "user-1", Phone: "9954091882", Name: "Ivan", Role: RoleAdmin}

	raw, expiresAt, err := tokens.Issue(id)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if until := time.Until(expiresAt); until < 6*24*time.Hour {
		t.Fatalf("expected ~7 day expiry, got %s", until)
	}

	claims, err := tokens.Verify(raw)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Fatalf("unexpected subject %q", claims.Subject)
	}
	if claims.Role != string(RoleAdmin) {
		t.Fatalf("unexpected role %q", claims.Role)
	}
	if claims.Phone != "9954091882" {
		t.Fatalf("unexpected phone %q", claims.Phone)
	}
}

func TestVerifyRejectsEmptyToken(t *testing.T) {
	tokens := testTokens(t)
	if _, err := tokens.Verify(""); !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected ErrNoToken, got %v", err)
	}
}

func TestVerifyRejectsTampering(t *testing.T) {
	tokens := testTokens(t)
	raw, _, err := tokens.Issue(Identity{ID: "user-1", Role: RoleManager})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		t.Fatalf("expected 3 JWT segments")
	}
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))
	if _, err := tokens.Verify(tampered); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	tokens := testTokens(t)
	other, err := NewTokens("other-secret", DefaultTokenTTL)
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	raw, _, err := other.Issue(Identity{ID: "user-1", Role: RoleAdmin})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := tokens.Verify(raw); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyReportsExpiry(t *testing.T) {
	tokens := testTokens(t)
	issuedAt := time.Now().Add(-8 * 24 * time.Hour)
	tokens.WithClock(func() time.Time { return issuedAt })
	raw, _, err := tokens.Issue(Identity{ID: "user-1", Role: RoleAdmin})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	tokens.WithClock(time.Now)
	if _, err := tokens.Verify(raw); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestVerifyRejectsUnknownRoleClaim(t *testing.T) {
	tokens := testTokens(t)
	raw, _, err := tokens.Issue(Identity{ID: "user-1", Role: Role("owner")})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := tokens.Verify(raw); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestNewTokensRequiresSecret(t *testing.T) {
	if _, err := NewTokens("  ", DefaultTokenTTL); err == nil {
		t.Fatal("expected error for blank secret")
	}
}
