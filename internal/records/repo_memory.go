package records

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MemoryStore is a simple in-memory record store for tests and early development.
// It enforces workspace isolation on reads and writes.
//
// NOTE: This is not intended for production; the CRM datastore is the real backend.
type MemoryStore struct {
	mu   sync.Mutex
	recs map[string]Record // key: workspace_id|record_id

	clock func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{recs: map[string]Record{}, clock: time.Now}
}

func key(workspaceID, recordID string) string { return workspaceID + "|" + recordID }

// Put seeds or replaces a record. Test helper.
func (s *MemoryStore) Put(r Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs[key(r.WorkspaceID, r.ID)] = r
}

func (s *MemoryStore) Get(ctx context.Context, workspaceID, recordID string) (Record, error) {
	_ = ctx
	if workspaceID == "" || recordID == "" {
		return Record{}, errors.New("records: workspace_id and record_id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.recs[key(workspaceID, recordID)]
	if !ok {
		return Record{}, ErrNotFound
	}
	return r, nil
}

func (s *MemoryStore) Match(ctx context.Context, workspaceID string, typ RecordType, f Filter) ([]Record, error) {
	_ = ctx
	if err := f.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Record, 0)
	for _, r := range s.recs {
		if r.WorkspaceID != workspaceID {
			continue
		}
		if typ != "" && r.Type != typ {
			continue
		}
		ok, err := f.Match(r)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *MemoryStore) SetDoNotCall(ctx context.Context, workspaceID, recordID string, dnc bool) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.recs[key(workspaceID, recordID)]
	if !ok {
		return ErrNotFound
	}
	r.DoNotCall = dnc
	r.UpdatedAt = s.clock().UTC()
	s.recs[key(workspaceID, recordID)] = r
	return nil
}

func (s *MemoryStore) SetStatus(ctx context.Context, workspaceID, recordID, status string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.recs[key(workspaceID, recordID)]
	if !ok {
		return ErrNotFound
	}
	r.Status = status
	r.UpdatedAt = s.clock().UTC()
	s.recs[key(workspaceID, recordID)] = r
	return nil
}
