// Package pgstore persists the audit ledger in PostgreSQL. The same
// append-only contract as the sqlite store, enforced by a trigger function
// that raises on UPDATE or DELETE.
package pgstore

import (
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/quotegate/quotegate/internal/audit"
	"github.com/quotegate/quotegate/internal/crypto"
)

const schema = `
CREATE TABLE IF NOT EXISTS audit_events (
    event_id TEXT PRIMARY KEY,
    action_type TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    actor TEXT NOT NULL,
    target_type TEXT,
    target_id TEXT,
    quote_id TEXT,
    approval_id TEXT,
    old_json JSONB,
    new_json JSONB,
    reason TEXT,
    meta_json JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_quote ON audit_events(quote_id);
CREATE INDEX IF NOT EXISTS idx_audit_approval ON audit_events(approval_id);
CREATE INDEX IF NOT EXISTS idx_audit_action_time ON audit_events(action_type, created_at);

CREATE OR REPLACE FUNCTION audit_events_immutable() RETURNS trigger AS $$
BEGIN
    RAISE EXCEPTION 'audit_events is append-only: % is not allowed', TG_OP;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS trg_audit_no_update ON audit_events;
CREATE TRIGGER trg_audit_no_update
BEFORE UPDATE ON audit_events
FOR EACH ROW EXECUTE FUNCTION audit_events_immutable();

DROP TRIGGER IF EXISTS trg_audit_no_delete ON audit_events;
CREATE TRIGGER trg_audit_no_delete
BEFORE DELETE ON audit_events
FOR EACH ROW EXECUTE FUNCTION audit_events_immutable();
`

type Store struct {
	db *sql.DB
}

func OpenPostgres(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return New(db)
}

func New(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, errors.Wrap(err, "apply audit schema")
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Append(a audit.Action) error {
	createdAt := time.Now().UTC()

	_, err := s.db.Exec(`INSERT INTO audit_events
  (event_id, action_type, created_at, actor, target_type, target_id, quote_id, approval_id, old_json, new_json, reason, meta_json)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		a.EventID,
		a.ActionType,
		createdAt,
		a.Actor,
		nullable(a.TargetType),
		nullable(a.TargetID),
		nullable(a.QuoteID),
		nullable(a.ApprovalID),
		nullableJSON(a.OldValue),
		nullableJSON(a.NewValue),
		nullable(strings.TrimSpace(a.Reason)),
		string(crypto.Canonical(a.Meta)),
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return errors.Wrap(audit.ErrDuplicateEvent, a.EventID)
		}
		return errors.Wrap(err, "append audit event")
	}
	return nil
}

func (s *Store) Get(eventID string) (audit.Event, bool) {
	row := s.db.QueryRow(selectColumns+` FROM audit_events WHERE event_id = $1`, eventID)
	e, err := scanEvent(row)
	if err != nil {
		return audit.Event{}, false
	}
	return e, true
}

func (s *Store) ListByQuote(quoteID string) ([]audit.Event, error) {
	return s.query(selectColumns+` FROM audit_events WHERE quote_id = $1 ORDER BY created_at ASC`, quoteID)
}

func (s *Store) ListByApproval(approvalID string) ([]audit.Event, error) {
	return s.query(selectColumns+` FROM audit_events WHERE approval_id = $1 ORDER BY created_at ASC`, approvalID)
}

func (s *Store) ListRecent(limit int) ([]audit.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.query(selectColumns+` FROM audit_events ORDER BY created_at DESC LIMIT $1`, limit)
}

const selectColumns = `SELECT event_id, action_type, created_at, actor, target_type, target_id, quote_id, approval_id, old_json, new_json, reason, meta_json`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(r rowScanner) (audit.Event, error) {
	var e audit.Event
	var createdAt time.Time
	var targetType, targetID, quoteID, approvalID, oldJSON, newJSON, reason sql.NullString
	var metaJSON string
	if err := r.Scan(&e.EventID, &e.ActionType, &createdAt, &e.Actor,
		&targetType, &targetID, &quoteID, &approvalID, &oldJSON, &newJSON, &reason, &metaJSON); err != nil {
		return audit.Event{}, err
	}
	e.CreatedAt = createdAt.UTC().Format(audit.TimeFormat)
	e.TargetType = targetType.String
	e.TargetID = targetID.String
	e.QuoteID = quoteID.String
	e.ApprovalID = approvalID.String
	e.Reason = reason.String
	e.OldValue = decodeMap(oldJSON)
	e.NewValue = decodeMap(newJSON)
	e.Meta = map[string]string{}
	_ = json.Unmarshal([]byte(metaJSON), &e.Meta)
	return e, nil
}

func (s *Store) query(q string, args ...any) ([]audit.Event, error) {
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []audit.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableJSON(m map[string]string) any {
	if m == nil {
		return nil
	}
	return string(crypto.Canonical(m))
}

func decodeMap(ns sql.NullString) map[string]string {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	m := map[string]string{}
	if err := json.Unmarshal([]byte(ns.String), &m); err != nil {
		return nil
	}
	return m
}
