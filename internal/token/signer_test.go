package token

import (
	"errors"
	"testing"
	"time"

	"github.com/dkrasnov/gatekeeper/internal/common"
)

func TestIssueAndVerify_Success(t *testing.T) {
	t.Parallel()

	s := NewSigner([]byte("super-secret"), nil)
	userID := "user-123"

	tok, err := s.Issue(userID, time.Hour)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	gotUserID, err := s.Verify(tok)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if gotUserID != userID {
		t.Fatalf("userID mismatch: got %q want %q", gotUserID, userID)
	}
}

func TestVerify_Expired(t *testing.T) {
	t.Parallel()

	s := NewSigner([]byte("secret"), nil)

	tok, err := s.Issue("u1", -1*time.Second)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	_, err = s.Verify(tok)
	if !errors.Is(err, common.ErrTokenExpired) {
		t.Fatalf("expected common.ErrTokenExpired, got %v", err)
	}
}

func TestVerify_ExpiredByInjectedClock(t *testing.T) {
	t.Parallel()

	issuedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := issuedAt
	s := NewSigner([]byte("secret"), func() time.Time { return clock })

	tok, err := s.Issue("u1", 5*time.Minute)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	clock = issuedAt.Add(4 * time.Minute)
	if _, err := s.Verify(tok); err != nil {
		t.Fatalf("token should still be valid: %v", err)
	}

	clock = issuedAt.Add(6 * time.Minute)
	if _, err := s.Verify(tok); !errors.Is(err, common.ErrTokenExpired) {
		t.Fatalf("expected common.ErrTokenExpired, got %v", err)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	t.Parallel()

	issuer := NewSigner([]byte("right-secret"), nil)
	verifier := NewSigner([]byte("wrong-secret"), nil)

	tok, err := issuer.Issue("u2", time.Hour)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	_, err = verifier.Verify(tok)
	if !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected common.ErrInvalidToken, got %v", err)
	}
}

func TestVerify_MalformedString(t *testing.T) {
	t.Parallel()

	s := NewSigner([]byte("k"), nil)
	_, err := s.Verify("not.a.jwt")
	if !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected common.ErrInvalidToken, got %v", err)
	}
}
