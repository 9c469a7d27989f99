package records

import (
	"context"
	"errors"
	"testing"
)

func TestFilterValidate(t *testing.T) {
	cases := []struct {
		name string
		f    Filter
		ok   bool
	}{
		{"empty", Filter{}, false},
		{"missing field", Filter{Conditions: []Condition{{Field: " ", Op: OpEq, Value: "x"}}}, false},
		{"unknown op", Filter{Conditions: []Condition{{Field: "status", Op: "like", Value: "x"}}}, false},
		{"in without list", Filter{Conditions: []Condition{{Field: "state", Op: OpIn, Value: "TX"}}}, false},
		{"gt non-numeric", Filter{Conditions: []Condition{{Field: "score", Op: OpGt, Value: "high"}}}, false},
		{"valid eq", Filter{Conditions: []Condition{{Field: "status", Op: OpEq, Value: "new"}}}, true},
		{"valid in strings", Filter{Conditions: []Condition{{Field: "state", Op: OpIn, Value: []string{"TX", "CA"}}}}, true},
		{"valid gt", Filter{Conditions: []Condition{{Field: "score", Op: OpGt, Value: 10}}}, true},
	}
	for _, tc := range cases {
		err := tc.f.Validate()
		if tc.ok && err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if !tc.ok {
			if err == nil {
				t.Fatalf("%s: expected error", tc.name)
			}
			if !errors.Is(err, ErrFilter) {
				t.Fatalf("%s: expected ErrFilter, got %v", tc.name, err)
			}
		}
	}
}

func TestFilterMatch(t *testing.T) {
	rec := Record{
		ID:          "r1",
		WorkspaceID: "w1",
		Type:        RecordTypeLead,
		Status:      "new",
		State:       "TX",
		OwnerID:     "u1",
		Fields:      map[string]any{"score": 42, "company": "Acme Roofing"},
	}

	match := func(f Filter) bool {
		t.Helper()
		ok, err := f.Match(rec)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return ok
	}

	if !match(Filter{Conditions: []Condition{{Field: "status", Op: OpEq, Value: "new"}}}) {
		t.Fatalf("eq should match")
	}
	if match(Filter{Conditions: []Condition{{Field: "status", Op: OpNeq, Value: "new"}}}) {
		t.Fatalf("neq should not match")
	}
	if !match(Filter{Conditions: []Condition{{Field: "state", Op: OpIn, Value: []string{"CA", "TX"}}}}) {
		t.Fatalf("in should match")
	}
	if !match(Filter{Conditions: []Condition{{Field: "company", Op: OpContains, Value: "roofing"}}}) {
		t.Fatalf("contains should be case-insensitive")
	}
	if !match(Filter{Conditions: []Condition{{Field: "score", Op: OpGt, Value: 40}}}) {
		t.Fatalf("gt should match")
	}
	if match(Filter{Conditions: []Condition{{Field: "score", Op: OpLt, Value: 40}}}) {
		t.Fatalf("lt should not match")
	}

	// Conditions are AND-combined.
	both := Filter{Conditions: []Condition{
		{Field: "status", Op: OpEq, Value: "new"},
		{Field: "state", Op: OpEq, Value: "CA"},
	}}
	if match(both) {
		t.Fatalf("AND with one failing condition must not match")
	}

	// Missing field is a non-match, not an error.
	if match(Filter{Conditions: []Condition{{Field: "industry", Op: OpEq, Value: "solar"}}}) {
		t.Fatalf("missing field must not match")
	}
}

func TestMemoryStoreMatch(t *testing.T) {
	s := NewMemoryStore()
	s.Put(Record{ID: "r1", WorkspaceID: "w1", Type: RecordTypeLead, Status: "new"})
	s.Put(Record{ID: "r2", WorkspaceID: "w1", Type: RecordTypeLead, Status: "contacted"})
	s.Put(Record{ID: "r3", WorkspaceID: "w2", Type: RecordTypeLead, Status: "new"})
	s.Put(Record{ID: "r4", WorkspaceID: "w1", Type: RecordTypeContact, Status: "new"})

	ctx := context.Background()
	f := Filter{Conditions: []Condition{{Field: "status", Op: OpEq, Value: "new"}}}

	got, err := s.Match(ctx, "w1", RecordTypeLead, f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "r1" {
		t.Fatalf("expected only r1, got %+v", got)
	}

	// A malformed filter fails without results.
	if _, err := s.Match(ctx, "w1", RecordTypeLead, Filter{}); !errors.Is(err, ErrFilter) {
		t.Fatalf("expected ErrFilter, got %v", err)
	}
}

func TestMemoryStoreWriteback(t *testing.T) {
	s := NewMemoryStore()
	s.Put(Record{ID: "r1", WorkspaceID: "w1", Type: RecordTypeLead})
	ctx := context.Background()

	if err := s.SetDoNotCall(ctx, "w1", "r1", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.SetStatus(ctx, "w1", "r1", "not_interested"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec, err := s.Get(ctx, "w1", "r1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rec.DoNotCall || rec.Status != "not_interested" {
		t.Fatalf("writeback not applied: %+v", rec)
	}

	// Workspace isolation on mutation.
	if err := s.SetStatus(ctx, "w2", "r1", "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound across workspaces, got %v", err)
	}
}
