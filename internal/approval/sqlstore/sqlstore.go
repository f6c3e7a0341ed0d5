// Package sqlstore persists approval records in SQLite. The one-time
// decision guarantee lives in a single conditional UPDATE: concurrent
// decisions race on the row guard and exactly one wins.
package sqlstore

import (
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/quotegate/quotegate/internal/approval"
	"github.com/quotegate/quotegate/internal/audit"
	"github.com/quotegate/quotegate/pkg/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS approvals (
    approval_id TEXT PRIMARY KEY,
    quote_id TEXT NOT NULL,
    status TEXT NOT NULL,
    requested_by TEXT NOT NULL,
    override_pct TEXT NOT NULL,
    reason TEXT NOT NULL,
    created_at TEXT NOT NULL,
    decided_at TEXT,
    token_used_at TEXT,
    decision_token_hash TEXT
);

CREATE INDEX IF NOT EXISTS idx_approvals_quote ON approvals(quote_id);
`

type Store struct {
	db *sql.DB
}

func OpenSQLite(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// Single connection: sqlite allows one writer, and serializing here avoids
	// SQLITE_BUSY under racing decisions.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return New(db)
}

func New(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, errors.Wrap(err, "apply approvals schema")
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Create inserts a new record. created_at is stamped here, never taken from
// the caller.
func (s *Store) Create(r approval.Record) error {
	createdAt := time.Now().UTC().Format(audit.TimeFormat)

	_, err := s.db.Exec(`INSERT INTO approvals
  (approval_id, quote_id, status, requested_by, override_pct, reason, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ApprovalID,
		r.QuoteID,
		r.Status,
		r.RequestedBy,
		r.OverridePct.String(),
		r.Reason,
		createdAt,
	)
	return errors.Wrap(err, "insert approval")
}

func (s *Store) Get(approvalID string) (approval.Record, bool) {
	row := s.db.QueryRow(`SELECT approval_id, quote_id, status, requested_by, override_pct, reason,
  created_at, decided_at, token_used_at, decision_token_hash
FROM approvals WHERE approval_id = ?`, approvalID)
	r, err := scanRecord(row)
	if err != nil {
		return approval.Record{}, false
	}
	return r, true
}

// DecideOnce performs the atomic one-time transition. The WHERE clause is the
// whole concurrency story: only a non-terminal record with an unused token
// matches, so of any number of racing calls exactly one updates the row.
// A guard miss returns the unchanged record with transitioned false.
func (s *Store) DecideOnce(approvalID, newStatus, tokenHash string) (approval.Record, bool, error) {
	now := time.Now().UTC().Format(audit.TimeFormat)

	res, err := s.db.Exec(`UPDATE approvals
SET status = ?, decided_at = ?, token_used_at = ?, decision_token_hash = ?
WHERE approval_id = ?
  AND status NOT IN (?, ?)
  AND token_used_at IS NULL`,
		newStatus, now, now, tokenHash,
		approvalID, types.ApprovalApproved, types.ApprovalRejected,
	)
	if err != nil {
		return approval.Record{}, false, errors.Wrap(err, "decide approval")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return approval.Record{}, false, errors.Wrap(err, "decide approval rows")
	}

	r, ok := s.Get(approvalID)
	if !ok {
		return approval.Record{}, false, approval.ErrNotFound
	}
	return r, affected == 1, nil
}

func scanRecord(row *sql.Row) (approval.Record, error) {
	var r approval.Record
	var pct string
	var decidedAt, tokenUsedAt, tokenHash sql.NullString

	err := row.Scan(&r.ApprovalID, &r.QuoteID, &r.Status, &r.RequestedBy, &pct, &r.Reason,
		&r.CreatedAt, &decidedAt, &tokenUsedAt, &tokenHash)
	if err != nil {
		return approval.Record{}, err
	}
	r.OverridePct, err = decimal.NewFromString(pct)
	if err != nil {
		return approval.Record{}, errors.Wrap(err, "override_pct")
	}
	r.DecidedAt = decidedAt.String
	r.TokenUsedAt = tokenUsedAt.String
	r.DecisionTokenHash = tokenHash.String
	return r, nil
}
