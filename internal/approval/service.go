package approval

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/quotegate/quotegate/internal/audit"
	"github.com/quotegate/quotegate/internal/crypto"
	"github.com/quotegate/quotegate/pkg/types"
)

// Service drives the approval workflow: create a pending record with a
// signed link, then decide it exactly once. Every step writes to the audit
// log; the decision write is deduplicated by a content-derived event id so
// repeated decision calls cannot fan out into repeated trail entries.
type Service struct {
	store    Store
	auditLog *audit.Logger
	signer   *TokenSigner
	baseURL  string
	log      zerolog.Logger
	now      func() time.Time
}

func NewService(store Store, auditLog *audit.Logger, signer *TokenSigner, baseURL string, log zerolog.Logger) *Service {
	return &Service{
		store:    store,
		auditLog: auditLog,
		signer:   signer,
		baseURL:  strings.TrimRight(baseURL, "/"),
		log:      log,
		now:      time.Now,
	}
}

// Created is the result of a successful Create: the stored record plus the
// one-time token and the human-facing link embedding it.
type Created struct {
	Record Record
	Token  string
	Link   string
}

// Create validates the request, writes the OVERRIDE_REQUESTED trail entry and
// stores a pending record with a fresh signed token. Validation rejects
// before any state mutation.
func (s *Service) Create(quoteID, requestedBy string, overridePct decimal.Decimal, reason string) (Created, error) {
	if strings.TrimSpace(quoteID) == "" {
		return Created{}, errors.New("quote_id is required")
	}
	if strings.TrimSpace(requestedBy) == "" {
		return Created{}, errors.New("requested_by is required")
	}
	if len(strings.TrimSpace(reason)) < 10 {
		return Created{}, ErrReasonTooShort
	}
	if !overridePct.IsPositive() {
		return Created{}, ErrInvalidPct
	}

	rec := Record{
		ApprovalID:  "apr_" + uuid.NewString(),
		QuoteID:     quoteID,
		Status:      types.ApprovalPending,
		RequestedBy: requestedBy,
		OverridePct: overridePct,
		Reason:      reason,
	}

	if _, err := s.auditLog.Log(audit.Action{
		ActionType: audit.ActionOverrideRequested,
		Actor:      requestedBy,
		TargetType: "approval",
		TargetID:   rec.ApprovalID,
		QuoteID:    quoteID,
		ApprovalID: rec.ApprovalID,
		NewValue: map[string]string{
			"status":       types.ApprovalPending,
			"override_pct": overridePct.String(),
		},
		Reason: reason,
	}); err != nil {
		return Created{}, errors.Wrap(err, "audit override request")
	}

	if err := s.store.Create(rec); err != nil {
		return Created{}, errors.Wrap(err, "store approval")
	}
	stored, ok := s.store.Get(rec.ApprovalID)
	if ok {
		rec = stored
	}

	token := s.signer.Sign(rec.ApprovalID, rec.QuoteID, s.now())
	s.log.Info().
		Str("approval_id", rec.ApprovalID).
		Str("quote_id", quoteID).
		Str("override_pct", overridePct.String()).
		Msg("approval requested")

	return Created{Record: rec, Token: token, Link: s.link(rec.ApprovalID, token)}, nil
}

// Decide verifies the token, applies the one-time transition and writes the
// OVERRIDE_DECIDED trail entry. Safe to call any number of times with the
// same token: the record transitions once and the trail gains one entry.
func (s *Service) Decide(approvalID, decision, token, actor string) (Record, error) {
	if decision != types.ApprovalApproved && decision != types.ApprovalRejected {
		return Record{}, ErrBadDecision
	}

	claims, err := s.signer.Verify(token, s.now())
	if err != nil {
		return Record{}, err
	}
	if claims.ApprovalID != approvalID {
		return Record{}, errors.Wrap(ErrTokenInvalid, "token approval_id mismatch")
	}

	rec, ok := s.store.Get(approvalID)
	if !ok {
		return Record{}, ErrNotFound
	}
	if claims.QuoteID != rec.QuoteID {
		return Record{}, errors.Wrapf(ErrQuoteMismatch, "approval %s", approvalID)
	}

	tokenHash := TokenHash(token)
	oldStatus := rec.Status

	updated, transitioned, err := s.store.DecideOnce(approvalID, decision, tokenHash)
	if err != nil {
		return Record{}, errors.Wrap(err, "decide approval")
	}

	// Content-derived id: the same decision with the same token always maps
	// to the same trail entry, so retries dedupe instead of duplicating.
	eventID := crypto.DigestWithPrefix(crypto.Canonical(map[string]string{
		"approval_id": approvalID,
		"decision":    decision,
		"token_hash":  tokenHash,
	}))
	if _, err := s.auditLog.LogDeduped(audit.Action{
		EventID:    eventID,
		ActionType: audit.ActionOverrideDecided,
		Actor:      actor,
		TargetType: "approval",
		TargetID:   approvalID,
		QuoteID:    updated.QuoteID,
		ApprovalID: approvalID,
		OldValue:   map[string]string{"status": oldStatus},
		NewValue:   map[string]string{"status": updated.Status},
		Meta:       map[string]string{"transitioned": fmt.Sprintf("%t", transitioned)},
	}); err != nil {
		return Record{}, errors.Wrap(err, "audit override decision")
	}

	s.log.Info().
		Str("approval_id", approvalID).
		Str("decision", decision).
		Bool("transitioned", transitioned).
		Msg("approval decided")

	return updated, nil
}

func (s *Service) link(approvalID, token string) string {
	return fmt.Sprintf("%s/approvals/%s?token=%s", s.baseURL, approvalID, url.QueryEscape(token))
}
