// Package audit is the append-only ledger of governance actions. Every
// dataset change, override request, and approval decision lands here; writes
// fail closed so a governed action cannot succeed without its trail.
package audit

import (
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Canonical action types.
const (
	ActionDataUpload        = "DATA_UPLOAD"
	ActionDataValidate      = "DATA_VALIDATE"
	ActionDataActivate      = "DATA_ACTIVATE"
	ActionDataRollback      = "DATA_ROLLBACK"
	ActionProfileUpdate     = "PROFILE_UPDATE"
	ActionOverrideRequested = "OVERRIDE_REQUESTED"
	ActionOverrideDecided   = "OVERRIDE_DECIDED"
	ActionQuoteViewed       = "QUOTE_VIEWED"
)

// TimeFormat is the created_at wire and storage format. Unlike RFC3339Nano
// it keeps trailing zeros, so timestamps stay fixed width and lexicographic
// order matches chronological order in TEXT columns and string sorts.
const TimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

var (
	ErrMissingActionType = errors.New("action_type is required")
	ErrMissingActor      = errors.New("actor is required")
	ErrReasonRequired    = errors.New("reason is required for this action type")
	ErrDuplicateEvent    = errors.New("event_id already exists")
)

// Action is the canonical write shape. EventID doubles as the idempotency
// key; when empty the logger generates one. CreatedAt is never part of the
// write shape: the store assigns it, which rules out backdating.
type Action struct {
	EventID    string
	ActionType string
	Actor      string
	TargetType string
	TargetID   string
	QuoteID    string
	ApprovalID string
	OldValue   map[string]string
	NewValue   map[string]string
	Reason     string
	Meta       map[string]string
}

// Event is the read view over a stored action. The legacy event-centric shape
// is served from the same rows; there is no parallel write path.
type Event struct {
	EventID    string
	ActionType string
	Actor      string
	TargetType string
	TargetID   string
	QuoteID    string
	ApprovalID string
	OldValue   map[string]string
	NewValue   map[string]string
	Reason     string
	Meta       map[string]string
	CreatedAt  string
}

// Store persists actions. Implementations must reject updates and deletes at
// the storage layer itself, and must return ErrDuplicateEvent (possibly
// wrapped) for an existing EventID without corrupting other rows.
type Store interface {
	Append(a Action) error
	Get(eventID string) (Event, bool)
	ListByQuote(quoteID string) ([]Event, error)
	ListByApproval(approvalID string) ([]Event, error)
	ListRecent(limit int) ([]Event, error)
}

// Logger validates and writes actions. Zero-value is not usable; construct
// with NewLogger.
type Logger struct {
	store          Store
	reasonRequired map[string]struct{}
}

// DefaultReasonRequired lists the action types that must carry a reason.
func DefaultReasonRequired() []string {
	return []string{ActionDataRollback, ActionProfileUpdate, ActionOverrideRequested}
}

func NewLogger(store Store, reasonRequired ...string) *Logger {
	if len(reasonRequired) == 0 {
		reasonRequired = DefaultReasonRequired()
	}
	set := make(map[string]struct{}, len(reasonRequired))
	for _, t := range reasonRequired {
		set[t] = struct{}{}
	}
	return &Logger{store: store, reasonRequired: set}
}

func (l *Logger) validate(a Action) error {
	if strings.TrimSpace(a.ActionType) == "" {
		return ErrMissingActionType
	}
	if strings.TrimSpace(a.Actor) == "" {
		return ErrMissingActor
	}
	if _, ok := l.reasonRequired[a.ActionType]; ok && strings.TrimSpace(a.Reason) == "" {
		return errors.Wrap(ErrReasonRequired, a.ActionType)
	}
	return nil
}

// Log appends strictly. Any persistence failure propagates so the governed
// operation fails closed.
func (l *Logger) Log(a Action) (string, error) {
	if err := l.validate(a); err != nil {
		return "", err
	}
	if a.EventID == "" {
		a.EventID = strings.ToLower(a.ActionType) + ":" + uuid.NewString()
	}
	if err := l.store.Append(a); err != nil {
		return "", err
	}
	return a.EventID, nil
}

// LogDeduped is the idempotent sibling: a duplicate EventID is accepted as
// a no-op. Used for dedup-sensitive flows such as repeated decision clicks.
func (l *Logger) LogDeduped(a Action) (string, error) {
	if err := l.validate(a); err != nil {
		return "", err
	}
	if a.EventID == "" {
		a.EventID = strings.ToLower(a.ActionType) + ":" + uuid.NewString()
	}
	if err := l.store.Append(a); err != nil {
		if errors.Is(err, ErrDuplicateEvent) {
			return a.EventID, nil
		}
		return "", err
	}
	return a.EventID, nil
}

// Recent returns the newest events, most recent first.
func (l *Logger) Recent(limit int) ([]Event, error) {
	return l.store.ListRecent(limit)
}

// ByQuote returns the trail for one quote in insertion order.
func (l *Logger) ByQuote(quoteID string) ([]Event, error) {
	return l.store.ListByQuote(quoteID)
}

// ByApproval returns the trail for one approval in insertion order.
func (l *Logger) ByApproval(approvalID string) ([]Event, error) {
	return l.store.ListByApproval(approvalID)
}
