package approval

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/quotegate/quotegate/internal/audit"
	"github.com/quotegate/quotegate/pkg/types"
)

// MemStore is the in-memory Store used by tests and by callers that have not
// configured a database. DecideOnce holds the mutex across the guard check
// and the write, which gives the same one-winner semantics as the sqlite
// store's conditional UPDATE.
type MemStore struct {
	mu      sync.Mutex
	records map[string]Record
	now     func() time.Time
}

func NewMemStore() *MemStore {
	return &MemStore{
		records: make(map[string]Record),
		now:     time.Now,
	}
}

func (s *MemStore) Create(r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[r.ApprovalID]; exists {
		return errors.Errorf("approval_id already exists: %s", r.ApprovalID)
	}
	r.CreatedAt = s.now().UTC().Format(audit.TimeFormat)
	s.records[r.ApprovalID] = r
	return nil
}

func (s *MemStore) Get(approvalID string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[approvalID]
	return r, ok
}

func (s *MemStore) DecideOnce(approvalID, newStatus, tokenHash string) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[approvalID]
	if !ok {
		return Record{}, false, ErrNotFound
	}
	if r.Status == types.ApprovalApproved || r.Status == types.ApprovalRejected || r.TokenUsedAt != "" {
		return r, false, nil
	}

	now := s.now().UTC().Format(audit.TimeFormat)
	r.Status = newStatus
	r.DecidedAt = now
	r.TokenUsedAt = now
	r.DecisionTokenHash = tokenHash
	s.records[approvalID] = r
	return r, true, nil
}
