// Package approval implements the one-time manager decision over a pending
// override. A decision is authorized by a signed, time-limited token and is
// applied as a single atomic conditional update: of any number of racing
// decision calls exactly one transitions the record, the rest observe a
// no-op.
package approval

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound       = errors.New("approval not found")
	ErrTokenExpired   = errors.New("TOKEN_EXPIRED")
	ErrTokenInvalid   = errors.New("TOKEN_INVALID")
	ErrQuoteMismatch  = errors.New("token quote_id does not match approval record")
	ErrReasonTooShort = errors.New("reason must be at least 10 characters")
	ErrInvalidPct     = errors.New("override_pct must be greater than zero")
	ErrBadDecision    = errors.New("decision must be APPROVED or REJECTED")
)

// Record is one approval request. APPROVED and REJECTED are terminal: once
// reached, no decision-affecting field changes again.
type Record struct {
	ApprovalID        string          `json:"approval_id"`
	QuoteID           string          `json:"quote_id"`
	Status            string          `json:"status"`
	RequestedBy       string          `json:"requested_by"`
	OverridePct       decimal.Decimal `json:"override_pct"`
	Reason            string          `json:"reason"`
	CreatedAt         string          `json:"created_at"`
	DecidedAt         string          `json:"decided_at,omitempty"`
	TokenUsedAt       string          `json:"token_used_at,omitempty"`
	DecisionTokenHash string          `json:"decision_token_hash,omitempty"`
}

// Store persists approval records. DecideOnce must be an atomic conditional
// update: it applies newStatus, decided_at, token_used_at and the token hash
// only when the record is not yet terminal and token_used_at is unset.
// When the guard fails it returns the unchanged record and transitioned
// false, never an error. Timestamps are assigned by the store itself.
type Store interface {
	Create(r Record) error
	Get(approvalID string) (Record, bool)
	DecideOnce(approvalID, newStatus, tokenHash string) (Record, bool, error)
}
