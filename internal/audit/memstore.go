package audit

import (
	"sort"
	"sync"
	"time"
)

// MemStore is the in-memory Store used by tests and by callers that have not
// configured a database. It mirrors the sqlite store's behavior, including
// duplicate detection, but cannot provide trigger-level immutability; it
// simply exposes no mutating operations besides Append.
type MemStore struct {
	mu     sync.Mutex
	events map[string]Event
	order  []string
	now    func() time.Time
}

func NewMemStore() *MemStore {
	return &MemStore{
		events: make(map[string]Event),
		now:    time.Now,
	}
}

func (s *MemStore) Append(a Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.events[a.EventID]; exists {
		return ErrDuplicateEvent
	}
	s.events[a.EventID] = Event{
		EventID:    a.EventID,
		ActionType: a.ActionType,
		Actor:      a.Actor,
		TargetType: a.TargetType,
		TargetID:   a.TargetID,
		QuoteID:    a.QuoteID,
		ApprovalID: a.ApprovalID,
		OldValue:   copyMap(a.OldValue),
		NewValue:   copyMap(a.NewValue),
		Reason:     a.Reason,
		Meta:       copyMap(a.Meta),
		CreatedAt:  s.now().UTC().Format(TimeFormat),
	}
	s.order = append(s.order, a.EventID)
	return nil
}

func (s *MemStore) Get(eventID string) (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[eventID]
	return e, ok
}

func (s *MemStore) ListByQuote(quoteID string) ([]Event, error) {
	return s.list(func(e Event) bool { return e.QuoteID == quoteID }, 0)
}

func (s *MemStore) ListByApproval(approvalID string) ([]Event, error) {
	return s.list(func(e Event) bool { return e.ApprovalID == approvalID }, 0)
}

func (s *MemStore) ListRecent(limit int) ([]Event, error) {
	events, err := s.list(func(Event) bool { return true }, 0)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].CreatedAt > events[j].CreatedAt })
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

func (s *MemStore) list(match func(Event) bool, limit int) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Event{}
	for _, id := range s.order {
		e := s.events[id]
		if !match(e) {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
