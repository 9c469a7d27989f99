package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"dialer-platform/internal/lists"
	"dialer-platform/internal/records"
)

var testNow = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func newTestQueue(t *testing.T) (*Service, *lists.MemoryRepo) {
	t.Helper()
	repo := lists.NewMemoryRepo()
	svc := NewService(repo, repo)
	svc.clock = func() time.Time { return testNow }
	return svc, repo
}

func seedList(t *testing.T, repo *lists.MemoryRepo, l lists.CallList) lists.CallList {
	t.Helper()
	if l.ID == "" {
		l.ID = "l1"
	}
	if l.WorkspaceID == "" {
		l.WorkspaceID = "w1"
	}
	if l.Name == "" {
		l.Name = l.ID
	}
	if l.MaxAttempts == 0 {
		l.MaxAttempts = 3
	}
	if l.Priority == 0 {
		l.Priority = 50
	}
	l.ListType = lists.ListTypeStatic
	l.TargetObject = records.RecordTypeLead
	l.IsActive = true
	if err := repo.Create(context.Background(), l); err != nil {
		t.Fatalf("seed list: %v", err)
	}
	return l
}

func seedItem(t *testing.T, repo *lists.MemoryRepo, it lists.Item) lists.Item {
	t.Helper()
	if it.WorkspaceID == "" {
		it.WorkspaceID = "w1"
	}
	if it.ListID == "" {
		it.ListID = "l1"
	}
	if it.TargetID == "" {
		it.TargetID = "t-" + it.ID
	}
	if it.Status == "" {
		it.Status = lists.ItemStatusPending
	}
	if it.AddedAt.IsZero() {
		it.AddedAt = testNow.Add(-time.Hour)
	}
	if err := repo.Insert(context.Background(), it); err != nil {
		t.Fatalf("seed item: %v", err)
	}
	return it
}

func TestNextItemClaimsAndOrders(t *testing.T) {
	svc, repo := newTestQueue(t)
	ctx := context.Background()
	mgr := lists.Viewer{UserID: "m", Manager: true}
	seedList(t, repo, lists.CallList{})

	attempted := testNow.Add(-30 * time.Minute)
	older := testNow.Add(-2 * time.Hour)
	seedItem(t, repo, lists.Item{ID: "i-attempted", AttemptCount: 1, LastAttemptAt: &attempted})
	seedItem(t, repo, lists.Item{ID: "i-fresh-new", AddedAt: testNow.Add(-time.Hour)})
	seedItem(t, repo, lists.Item{ID: "i-fresh-old", AddedAt: older})

	// Never-attempted first, oldest added first.
	it, ok, err := svc.NextItem(ctx, "w1", "l1", mgr)
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if it.ID != "i-fresh-old" {
		t.Fatalf("expected i-fresh-old first, got %s", it.ID)
	}
	if it.Status != lists.ItemStatusInProgress {
		t.Fatalf("claim must transition to in_progress, got %s", it.Status)
	}

	it, _, _ = svc.NextItem(ctx, "w1", "l1", mgr)
	if it.ID != "i-fresh-new" {
		t.Fatalf("expected i-fresh-new second, got %s", it.ID)
	}
	it, _, _ = svc.NextItem(ctx, "w1", "l1", mgr)
	if it.ID != "i-attempted" {
		t.Fatalf("expected i-attempted last, got %s", it.ID)
	}

	// Queue drained.
	_, ok, err = svc.NextItem(ctx, "w1", "l1", mgr)
	if err != nil || ok {
		t.Fatalf("drained queue must return empty, ok=%v err=%v", ok, err)
	}
}

func TestNextItemEligibilityBoundary(t *testing.T) {
	svc, repo := newTestQueue(t)
	ctx := context.Background()
	mgr := lists.Viewer{UserID: "m", Manager: true}
	seedList(t, repo, lists.CallList{})

	exactly := testNow
	later := testNow.Add(time.Minute)
	seedItem(t, repo, lists.Item{ID: "i-due", NextEligibleAt: &exactly})
	seedItem(t, repo, lists.Item{ID: "i-waiting", NextEligibleAt: &later})

	it, ok, err := svc.NextItem(ctx, "w1", "l1", mgr)
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	// next_eligible_at == now is selectable; the boundary is inclusive.
	if it.ID != "i-due" {
		t.Fatalf("expected i-due, got %s", it.ID)
	}
	if _, ok, _ := svc.NextItem(ctx, "w1", "l1", mgr); ok {
		t.Fatalf("i-waiting must not be selectable yet")
	}
}

func TestNextItemSkipsExhausted(t *testing.T) {
	svc, repo := newTestQueue(t)
	ctx := context.Background()
	mgr := lists.Viewer{UserID: "m", Manager: true}
	seedList(t, repo, lists.CallList{MaxAttempts: 2})

	seedItem(t, repo, lists.Item{ID: "i-capped", AttemptCount: 2})
	if _, ok, err := svc.NextItem(ctx, "w1", "l1", mgr); err != nil || ok {
		t.Fatalf("exhausted item must not be returned, ok=%v err=%v", ok, err)
	}
}

func TestNextItemResetOnCooldown(t *testing.T) {
	svc, repo := newTestQueue(t)
	ctx := context.Background()
	mgr := lists.Viewer{UserID: "m", Manager: true}
	seedList(t, repo, lists.CallList{MaxAttempts: 2, ResetOnCooldown: true})

	due := testNow.Add(-time.Minute)
	seedItem(t, repo, lists.Item{ID: "i-capped", AttemptCount: 2, NextEligibleAt: &due})
	it, ok, err := svc.NextItem(ctx, "w1", "l1", mgr)
	if err != nil || !ok {
		t.Fatalf("cooldown-expired item should re-enter, ok=%v err=%v", ok, err)
	}
	if it.ID != "i-capped" {
		t.Fatalf("expected i-capped, got %s", it.ID)
	}
}

func TestNextItemInactiveList(t *testing.T) {
	svc, repo := newTestQueue(t)
	ctx := context.Background()
	l := lists.CallList{ID: "l1", WorkspaceID: "w1", Name: "l1", MaxAttempts: 3, Priority: 50,
		ListType: lists.ListTypeStatic, TargetObject: records.RecordTypeLead}
	if err := repo.Create(ctx, l); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	seedItem(t, repo, lists.Item{ID: "i1"})

	_, ok, err := svc.NextItem(ctx, "w1", "l1", lists.Viewer{Manager: true})
	if err != nil || ok {
		t.Fatalf("inactive list yields empty, not error: ok=%v err=%v", ok, err)
	}
}

func TestNextItemViewerScope(t *testing.T) {
	svc, repo := newTestQueue(t)
	ctx := context.Background()
	seedList(t, repo, lists.CallList{})

	seedItem(t, repo, lists.Item{ID: "i-other", AssignedToID: "a2"})
	seedItem(t, repo, lists.Item{ID: "i-mine", AssignedToID: "a1"})

	it, ok, err := svc.NextItem(ctx, "w1", "l1", lists.Viewer{UserID: "a1"})
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if it.ID != "i-mine" {
		t.Fatalf("agent must only claim their items, got %s", it.ID)
	}
	if _, ok, _ := svc.NextItem(ctx, "w1", "l1", lists.Viewer{UserID: "a1"}); ok {
		t.Fatalf("nothing else visible to a1")
	}
}

func TestNextItemAnyPriorityOrder(t *testing.T) {
	svc, repo := newTestQueue(t)
	ctx := context.Background()
	mgr := lists.Viewer{UserID: "m", Manager: true}

	seedList(t, repo, lists.CallList{ID: "low", Priority: 10})
	seedList(t, repo, lists.CallList{ID: "high", Priority: 90})
	seedItem(t, repo, lists.Item{ID: "i-low", ListID: "low"})
	seedItem(t, repo, lists.Item{ID: "i-high", ListID: "high"})

	it, ok, err := svc.NextItemAny(ctx, "w1", mgr)
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if it.ID != "i-high" {
		t.Fatalf("higher priority list wins, got %s", it.ID)
	}
	it, _, _ = svc.NextItemAny(ctx, "w1", mgr)
	if it.ID != "i-low" {
		t.Fatalf("then the lower priority list, got %s", it.ID)
	}
}

func TestNextItemNoDoubleClaim(t *testing.T) {
	svc, repo := newTestQueue(t)
	ctx := context.Background()
	mgr := lists.Viewer{UserID: "m", Manager: true}
	seedList(t, repo, lists.CallList{})

	const n = 20
	for i := 0; i < n; i++ {
		seedItem(t, repo, lists.Item{ID: fmt.Sprintf("i-%02d", i)})
	}

	var mu sync.Mutex
	claimed := map[string]int{}
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				it, ok, err := svc.NextItem(ctx, "w1", "l1", mgr)
				if err != nil {
					t.Errorf("unexpected error: %v", err)
					return
				}
				if !ok {
					return
				}
				mu.Lock()
				claimed[it.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(claimed) != n {
		t.Fatalf("expected all %d items claimed, got %d", n, len(claimed))
	}
	for id, c := range claimed {
		if c != 1 {
			t.Fatalf("item %s claimed %d times", id, c)
		}
	}
}

func TestReleaseItem(t *testing.T) {
	svc, repo := newTestQueue(t)
	ctx := context.Background()
	mgr := lists.Viewer{UserID: "m", Manager: true}
	seedList(t, repo, lists.CallList{})
	seedItem(t, repo, lists.Item{ID: "i1"})

	it, ok, err := svc.NextItem(ctx, "w1", "l1", mgr)
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	released, err := svc.ReleaseItem(ctx, "w1", it.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if released.Status != lists.ItemStatusPending {
		t.Fatalf("release must return item to pending, got %s", released.Status)
	}
	// Releasing a pending item is a conflict.
	if _, err := svc.ReleaseItem(ctx, "w1", it.ID); !errors.Is(err, lists.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestBulkAssign(t *testing.T) {
	svc, repo := newTestQueue(t)
	ctx := context.Background()
	seedList(t, repo, lists.CallList{})

	a := seedItem(t, repo, lists.Item{ID: "i-a"})
	b := seedItem(t, repo, lists.Item{ID: "i-b", Status: lists.ItemStatusRemoved})

	out, err := svc.BulkAssign(ctx, "w1", []string{a.ID, b.ID, "missing"}, "agent-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Assigned != 1 || out.Skipped != 2 {
		t.Fatalf("expected 1 assigned / 2 skipped, got %+v", out)
	}

	got, err := repo.GetItem(ctx, "w1", a.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.AssignedToID != "agent-1" {
		t.Fatalf("assignment not applied: %+v", got)
	}

	// Empty agent clears the assignment.
	if _, err := svc.BulkAssign(ctx, "w1", []string{a.ID}, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ = repo.GetItem(ctx, "w1", a.ID)
	if got.AssignedToID != "" {
		t.Fatalf("assignment not cleared: %+v", got)
	}

	if _, err := svc.BulkAssign(ctx, "w1", nil, "agent-1"); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

// claimRacingItems interposes a claim immediately before the assignment write,
// modeling an agent pulling the item while a manager's bulk assign is in
// flight.
type claimRacingItems struct {
	*lists.MemoryRepo
	raced bool
}

func (r *claimRacingItems) Assign(ctx context.Context, workspaceID, itemID, agentID string, at time.Time) error {
	if !r.raced {
		r.raced = true
		if _, err := r.MemoryRepo.Claim(ctx, workspaceID, itemID, at); err != nil {
			return err
		}
	}
	return r.MemoryRepo.Assign(ctx, workspaceID, itemID, agentID, at)
}

func TestBulkAssignDoesNotRevertConcurrentClaim(t *testing.T) {
	repo := lists.NewMemoryRepo()
	racing := &claimRacingItems{MemoryRepo: repo}
	svc := NewService(repo, racing)
	svc.clock = func() time.Time { return testNow }
	ctx := context.Background()
	mgr := lists.Viewer{UserID: "m", Manager: true}

	seedList(t, repo, lists.CallList{})
	it := seedItem(t, repo, lists.Item{ID: "i1"})

	out, err := svc.BulkAssign(ctx, "w1", []string{it.ID}, "agent-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Assigned != 1 {
		t.Fatalf("live item should still take the assignment, got %+v", out)
	}

	// The claim that landed first must stand: still in_progress, with the
	// claim's attempt stamp intact and the new assignment applied.
	got, err := repo.GetItem(ctx, "w1", it.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != lists.ItemStatusInProgress {
		t.Fatalf("claim reverted to %s by bulk assign", got.Status)
	}
	if got.LastAttemptAt == nil {
		t.Fatalf("claim stamp lost: %+v", got)
	}
	if got.AssignedToID != "agent-1" {
		t.Fatalf("assignment not applied: %+v", got)
	}

	// And the item must not be claimable a second time.
	if _, ok, err := svc.NextItem(ctx, "w1", "l1", mgr); err != nil || ok {
		t.Fatalf("claimed item selectable again: ok=%v err=%v", ok, err)
	}
}
