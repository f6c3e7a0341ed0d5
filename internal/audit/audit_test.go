package audit

import (
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
)

func TestLogRequiresActionTypeAndActor(t *testing.T) {
	logger := NewLogger(NewMemStore())

	if _, err := logger.Log(Action{Actor: "admin"}); !errors.Is(err, ErrMissingActionType) {
		t.Fatalf("expected ErrMissingActionType, got %v", err)
	}
	if _, err := logger.Log(Action{ActionType: ActionDataUpload}); !errors.Is(err, ErrMissingActor) {
		t.Fatalf("expected ErrMissingActor, got %v", err)
	}
}

func TestLogGeneratesEventID(t *testing.T) {
	store := NewMemStore()
	logger := NewLogger(store)

	id, err := logger.Log(Action{ActionType: ActionDataUpload, Actor: "admin"})
	if err != nil {
		t.Fatalf("log: %v", err)
	}
	if !strings.HasPrefix(id, "data_upload:") {
		t.Fatalf("expected generated id with action prefix, got %q", id)
	}
	if _, ok := store.Get(id); !ok {
		t.Fatalf("event not stored")
	}
}

func TestReasonEnforcement(t *testing.T) {
	logger := NewLogger(NewMemStore())

	_, err := logger.Log(Action{ActionType: ActionDataRollback, Actor: "admin"})
	if !errors.Is(err, ErrReasonRequired) {
		t.Fatalf("expected ErrReasonRequired, got %v", err)
	}
	_, err = logger.Log(Action{ActionType: ActionDataRollback, Actor: "admin", Reason: "   "})
	if !errors.Is(err, ErrReasonRequired) {
		t.Fatalf("whitespace reason must be rejected, got %v", err)
	}
	_, err = logger.Log(Action{ActionType: ActionDataRollback, Actor: "admin", Reason: "bad tier data"})
	if err != nil {
		t.Fatalf("valid rollback rejected: %v", err)
	}
	// Non-listed action types need no reason.
	_, err = logger.Log(Action{ActionType: ActionDataUpload, Actor: "admin"})
	if err != nil {
		t.Fatalf("upload without reason rejected: %v", err)
	}
}

func TestStrictLogFailsOnDuplicate(t *testing.T) {
	logger := NewLogger(NewMemStore())

	a := Action{EventID: "evt-1", ActionType: ActionDataUpload, Actor: "admin"}
	if _, err := logger.Log(a); err != nil {
		t.Fatalf("first log: %v", err)
	}
	if _, err := logger.Log(a); !errors.Is(err, ErrDuplicateEvent) {
		t.Fatalf("expected ErrDuplicateEvent, got %v", err)
	}
}

func TestLogDedupedNoOpsOnDuplicate(t *testing.T) {
	store := NewMemStore()
	logger := NewLogger(store)

	a := Action{EventID: "evt-dedup", ActionType: ActionQuoteViewed, Actor: "viewer", QuoteID: "q-1"}
	if _, err := logger.LogDeduped(a); err != nil {
		t.Fatalf("first deduped log: %v", err)
	}
	id, err := logger.LogDeduped(a)
	if err != nil {
		t.Fatalf("second deduped log must succeed: %v", err)
	}
	if id != "evt-dedup" {
		t.Fatalf("expected original id back, got %q", id)
	}
	events, err := store.ListByQuote("q-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected exactly one stored event, got %d", len(events))
	}
}

func TestCreatedAtAssignedByStore(t *testing.T) {
	store := NewMemStore()
	logger := NewLogger(store)

	id, err := logger.Log(Action{ActionType: ActionDataActivate, Actor: "admin"})
	if err != nil {
		t.Fatalf("log: %v", err)
	}
	e, ok := store.Get(id)
	if !ok {
		t.Fatalf("event missing")
	}
	if e.CreatedAt == "" {
		t.Fatalf("store must assign created_at")
	}
}

func TestCreatedAtOrdersAcrossWholeSecondBoundary(t *testing.T) {
	store := NewMemStore()
	logger := NewLogger(store)

	// A whole-second timestamp followed by a fractional one in the same
	// second. A format that trims zeros renders the first one longer than
	// wide ("...:00Z" vs "...:00.5Z") and string sorts flip the pair.
	clock := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return clock }

	first, err := logger.Log(Action{ActionType: ActionDataUpload, Actor: "dana"})
	if err != nil {
		t.Fatalf("log first: %v", err)
	}
	clock = clock.Add(500 * time.Millisecond)
	second, err := logger.Log(Action{ActionType: ActionDataActivate, Actor: "dana"})
	if err != nil {
		t.Fatalf("log second: %v", err)
	}

	events, err := store.ListRecent(0)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].EventID != second || events[1].EventID != first {
		t.Fatalf("newest first expected, got %s then %s", events[0].EventID, events[1].EventID)
	}
	if len(events[0].CreatedAt) != len(events[1].CreatedAt) {
		t.Fatalf("created_at must be fixed width: %q vs %q", events[0].CreatedAt, events[1].CreatedAt)
	}
}

func TestListByApproval(t *testing.T) {
	store := NewMemStore()
	logger := NewLogger(store)

	for i := 0; i < 3; i++ {
		_, err := logger.Log(Action{ActionType: ActionOverrideDecided, Actor: "manager", ApprovalID: "ap-7"})
		if err != nil {
			t.Fatalf("log %d: %v", i, err)
		}
	}
	_, _ = logger.Log(Action{ActionType: ActionOverrideDecided, Actor: "manager", ApprovalID: "ap-other"})

	events, err := store.ListByApproval("ap-7")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events for ap-7, got %d", len(events))
	}
}
