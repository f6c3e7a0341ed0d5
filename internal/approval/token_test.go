package approval

import (
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
)

var tokenNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestSigner(t *testing.T) *TokenSigner {
	t.Helper()
	s, err := NewTokenSigner([]byte("0123456789abcdef"), time.Hour)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	return s
}

func TestSignerRejectsShortSecret(t *testing.T) {
	if _, err := NewTokenSigner([]byte("too-short"), time.Hour); err == nil {
		t.Fatal("expected error for short secret")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	s := newTestSigner(t)
	token := s.Sign("apr_1", "quote_1", tokenNow)

	claims, err := s.Verify(token, tokenNow.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.ApprovalID != "apr_1" || claims.QuoteID != "quote_1" {
		t.Fatalf("claims: %+v", claims)
	}
	if !claims.IssuedAt.Equal(tokenNow) {
		t.Fatalf("issued_at: %s", claims.IssuedAt)
	}
}

func TestTokenExpired(t *testing.T) {
	s := newTestSigner(t)
	token := s.Sign("apr_1", "quote_1", tokenNow)

	_, err := s.Verify(token, tokenNow.Add(time.Hour+time.Second))
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestTokenTampered(t *testing.T) {
	s := newTestSigner(t)
	token := s.Sign("apr_1", "quote_1", tokenNow)

	flippedSig := token[:len(token)-1] + "A"
	if strings.HasSuffix(token, "A") {
		flippedSig = token[:len(token)-1] + "B"
	}
	cases := map[string]string{
		"no separator":    strings.ReplaceAll(token, ".", ""),
		"garbage":         "not-a-token",
		"flipped payload": "x" + token,
		"flipped sig":     flippedSig,
		"extra segment":   token + ".extra",
		"empty":           "",
		"separator only":  ".",
	}
	for name, bad := range cases {
		if _, err := s.Verify(bad, tokenNow); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("%s: expected ErrTokenInvalid, got %v", name, err)
		}
	}
}

func TestTokenWrongKeyRejected(t *testing.T) {
	s := newTestSigner(t)
	other, err := NewTokenSigner([]byte("fedcba9876543210"), time.Hour)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	token := other.Sign("apr_1", "quote_1", tokenNow)

	if _, err := s.Verify(token, tokenNow); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestTokenHashStable(t *testing.T) {
	s := newTestSigner(t)
	token := s.Sign("apr_1", "quote_1", tokenNow)

	h1, h2 := TokenHash(token), TokenHash(token)
	if h1 != h2 {
		t.Fatalf("hash not stable: %s vs %s", h1, h2)
	}
	if !strings.HasPrefix(h1, "sha256:") {
		t.Fatalf("hash: %s", h1)
	}
	if TokenHash(token+"x") == h1 {
		t.Fatal("different tokens must hash differently")
	}
}
