package sqlstore

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/quotegate/quotegate/internal/approval"
	"github.com/quotegate/quotegate/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "approvals.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func pendingRecord(id string) approval.Record {
	return approval.Record{
		ApprovalID:  id,
		QuoteID:     "quote_1",
		Status:      types.ApprovalPending,
		RequestedBy: "alice",
		OverridePct: decimal.RequireFromString("7.5"),
		Reason:      "customer retention gesture",
	}
}

func TestCreateAndGet(t *testing.T) {
	s := newTestStore(t)

	if err := s.Create(pendingRecord("apr_1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	r, ok := s.Get("apr_1")
	if !ok {
		t.Fatal("record not found")
	}
	if r.Status != types.ApprovalPending || r.QuoteID != "quote_1" {
		t.Fatalf("record: %+v", r)
	}
	if !r.OverridePct.Equal(decimal.RequireFromString("7.5")) {
		t.Fatalf("override_pct: %s", r.OverridePct)
	}
	if r.CreatedAt == "" {
		t.Fatal("created_at not stamped")
	}
	if r.DecidedAt != "" || r.TokenUsedAt != "" || r.DecisionTokenHash != "" {
		t.Fatalf("decision fields set on a pending record: %+v", r)
	}
}

func TestCreateDuplicateRejected(t *testing.T) {
	s := newTestStore(t)

	if err := s.Create(pendingRecord("apr_1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Create(pendingRecord("apr_1")); err == nil {
		t.Fatal("expected duplicate primary key error")
	}
}

func TestDecideOnceTransitions(t *testing.T) {
	s := newTestStore(t)
	if err := s.Create(pendingRecord("apr_1")); err != nil {
		t.Fatalf("create: %v", err)
	}

	r, transitioned, err := s.DecideOnce("apr_1", types.ApprovalApproved, "sha256:tok")
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if !transitioned {
		t.Fatal("first decide must transition")
	}
	if r.Status != types.ApprovalApproved {
		t.Fatalf("status %s", r.Status)
	}
	if r.DecidedAt == "" || r.TokenUsedAt == "" || r.DecisionTokenHash != "sha256:tok" {
		t.Fatalf("decision fields: %+v", r)
	}

	// Second decide is a guard miss: unchanged record, no error.
	again, transitioned, err := s.DecideOnce("apr_1", types.ApprovalRejected, "sha256:other")
	if err != nil {
		t.Fatalf("second decide: %v", err)
	}
	if transitioned {
		t.Fatal("second decide must not transition")
	}
	if again.Status != types.ApprovalApproved || again.DecisionTokenHash != "sha256:tok" {
		t.Fatalf("record changed: %+v", again)
	}
}

func TestDecideOnceUnknownID(t *testing.T) {
	s := newTestStore(t)
	if _, _, err := s.DecideOnce("apr_missing", types.ApprovalApproved, "sha256:tok"); err == nil {
		t.Fatal("expected error for unknown approval")
	}
}

func TestDecideOnceConcurrentSingleWinner(t *testing.T) {
	s := newTestStore(t)
	if err := s.Create(pendingRecord("apr_race")); err != nil {
		t.Fatalf("create: %v", err)
	}

	const callers = 8
	var wg sync.WaitGroup
	wins := make(chan bool, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, transitioned, err := s.DecideOnce("apr_race", types.ApprovalApproved, "sha256:tok")
			if err != nil {
				t.Errorf("decide: %v", err)
				return
			}
			wins <- transitioned
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for transitioned := range wins {
		if transitioned {
			won++
		}
	}
	if won != 1 {
		t.Fatalf("expected exactly one winner, got %d", won)
	}

	r, _ := s.Get("apr_race")
	if r.Status != types.ApprovalApproved {
		t.Fatalf("status %s", r.Status)
	}
}
