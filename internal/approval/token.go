package approval

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/quotegate/quotegate/internal/crypto"
)

// MinSecretLen is the minimum signing secret length in bytes.
const MinSecretLen = 16

// TokenClaims is the signed payload binding a token to one approval of one
// quote.
type TokenClaims struct {
	ApprovalID string
	QuoteID    string
	IssuedAt   time.Time
}

// TokenSigner issues and verifies approval tokens. A token is
// base64url(payload) "." base64url(hmac-sha256(payload)) where the payload is
// the canonical JSON encoding of the claims. Token semantics are independent
// of transport: the signer never sees URLs or headers.
type TokenSigner struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenSigner(secret []byte, ttl time.Duration) (*TokenSigner, error) {
	if len(secret) < MinSecretLen {
		return nil, errors.Errorf("signing secret must be at least %d bytes", MinSecretLen)
	}
	if ttl <= 0 {
		return nil, errors.New("token ttl must be positive")
	}
	return &TokenSigner{secret: secret, ttl: ttl}, nil
}

// Sign issues a token for the given approval/quote pair.
func (s *TokenSigner) Sign(approvalID, quoteID string, issuedAt time.Time) string {
	payload := crypto.Canonical(map[string]string{
		"approval_id": approvalID,
		"quote_id":    quoteID,
		"issued_at":   issuedAt.UTC().Format(time.RFC3339),
	})
	sig := crypto.SignHMAC(s.secret, payload)
	return base64.RawURLEncoding.EncodeToString(payload) + "." + base64.RawURLEncoding.EncodeToString(sig)
}

// Verify checks shape, signature and TTL. Shape and signature failures map to
// ErrTokenInvalid, an aged-out token to ErrTokenExpired. The quote binding is
// checked by the caller against the stored record.
func (s *TokenSigner) Verify(token string, now time.Time) (TokenClaims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return TokenClaims{}, errors.Wrap(ErrTokenInvalid, "token must have two segments")
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return TokenClaims{}, errors.Wrap(ErrTokenInvalid, "payload not base64url")
	}
	sig, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return TokenClaims{}, errors.Wrap(ErrTokenInvalid, "signature not base64url")
	}
	if !crypto.VerifyHMAC(s.secret, payload, sig) {
		return TokenClaims{}, errors.Wrap(ErrTokenInvalid, "signature mismatch")
	}

	var fields map[string]string
	if err := json.Unmarshal(payload, &fields); err != nil {
		return TokenClaims{}, errors.Wrap(ErrTokenInvalid, "payload not an object")
	}
	issuedAt, err := time.Parse(time.RFC3339, fields["issued_at"])
	if err != nil {
		return TokenClaims{}, errors.Wrap(ErrTokenInvalid, "issued_at not a timestamp")
	}
	if fields["approval_id"] == "" || fields["quote_id"] == "" {
		return TokenClaims{}, errors.Wrap(ErrTokenInvalid, "missing claims")
	}
	if now.Sub(issuedAt) > s.ttl {
		return TokenClaims{}, errors.Wrapf(ErrTokenExpired, "issued %s", fields["issued_at"])
	}

	return TokenClaims{
		ApprovalID: fields["approval_id"],
		QuoteID:    fields["quote_id"],
		IssuedAt:   issuedAt,
	}, nil
}

// TokenHash is the stored fingerprint of a presented token. The raw token
// never lands in the database or the audit trail.
func TokenHash(token string) string {
	return crypto.DigestWithPrefix([]byte(token))
}
