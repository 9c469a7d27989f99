package reporting

import (
	"context"
	"errors"
	"testing"
	"time"

	"dialer-platform/internal/lists"
	"dialer-platform/internal/records"
	"dialer-platform/internal/sessions"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *lists.MemoryRepo, *sessions.MemoryRepo) {
	t.Helper()
	repo := lists.NewMemoryRepo()
	sess := sessions.NewMemoryRepo()
	svc := NewService(repo, repo, sess)
	svc.clock = func() time.Time { return testNow }
	return svc, repo, sess
}

func seedList(t *testing.T, repo *lists.MemoryRepo, id string, active bool) {
	t.Helper()
	err := repo.Create(context.Background(), lists.CallList{
		ID: id, WorkspaceID: "w1", Name: id,
		ListType: lists.ListTypeStatic, TargetObject: records.RecordTypeLead,
		MaxAttempts: 3, CadenceHours: 24, CooldownDays: 30,
		Priority: 50, IsActive: active,
	})
	if err != nil {
		t.Fatalf("seed list %s: %v", id, err)
	}
}

func seedItem(t *testing.T, repo *lists.MemoryRepo, it lists.Item) {
	t.Helper()
	it.WorkspaceID = "w1"
	if it.ListID == "" {
		it.ListID = "l1"
	}
	it.TargetType = records.RecordTypeLead
	if it.Status == "" {
		it.Status = lists.ItemStatusPending
	}
	if it.AddedAt.IsZero() {
		it.AddedAt = testNow.Add(-2 * time.Hour)
	}
	if err := repo.Insert(context.Background(), it); err != nil {
		t.Fatalf("seed item %s: %v", it.ID, err)
	}
}

func TestDashboardStatusCounts(t *testing.T) {
	svc, repo, _ := newTestService(t)
	seedList(t, repo, "l1", true)
	seedItem(t, repo, lists.Item{ID: "p1", TargetID: "r1"})
	seedItem(t, repo, lists.Item{ID: "p2", TargetID: "r2"})
	seedItem(t, repo, lists.Item{ID: "ip", TargetID: "r3", Status: lists.ItemStatusInProgress})
	seedItem(t, repo, lists.Item{ID: "done", TargetID: "r4", Status: lists.ItemStatusCompleted})
	seedItem(t, repo, lists.Item{ID: "gone", TargetID: "r5", Status: lists.ItemStatusRemoved})
	// Pending at the attempt cap counts as exhausted on top of pending.
	seedItem(t, repo, lists.Item{ID: "cap", TargetID: "r6", AttemptCount: 3})

	out, err := svc.DashboardStats(context.Background(), "w1", lists.Viewer{UserID: "m1", Manager: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Lists) != 1 {
		t.Fatalf("expected 1 list, got %d", len(out.Lists))
	}
	st := out.Lists[0]
	if st.Pending != 3 || st.InProgress != 1 || st.Completed != 1 || st.Removed != 1 {
		t.Fatalf("counts wrong: %+v", st)
	}
	if st.Exhausted != 1 {
		t.Fatalf("exhausted = %d, want 1", st.Exhausted)
	}
	if !out.GeneratedAt.Equal(testNow) {
		t.Fatalf("generated_at = %v", out.GeneratedAt)
	}
}

func TestDashboardSkipsInactiveLists(t *testing.T) {
	svc, repo, _ := newTestService(t)
	seedList(t, repo, "l1", true)
	seedList(t, repo, "paused", false)
	seedItem(t, repo, lists.Item{ID: "p1", TargetID: "r1"})
	seedItem(t, repo, lists.Item{ID: "p2", TargetID: "r2", ListID: "paused"})

	out, err := svc.DashboardStats(context.Background(), "w1", lists.Viewer{UserID: "m1", Manager: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Lists) != 1 || out.Lists[0].ListID != "l1" {
		t.Fatalf("inactive list leaked into dashboard: %+v", out.Lists)
	}
}

func TestDashboardAgentScoping(t *testing.T) {
	svc, repo, sess := newTestService(t)
	seedList(t, repo, "l1", true)
	seedItem(t, repo, lists.Item{ID: "mine", TargetID: "r1", AssignedToID: "a1"})
	seedItem(t, repo, lists.Item{ID: "owned", TargetID: "r2", OwnerID: "a1"})
	seedItem(t, repo, lists.Item{ID: "theirs", TargetID: "r3", AssignedToID: "a2"})
	// Ownership loses to assignment: owned by a1 but assigned elsewhere.
	seedItem(t, repo, lists.Item{ID: "taken", TargetID: "r4", OwnerID: "a1", AssignedToID: "a2"})

	mustStart := func(id, agent string) {
		if err := sess.CreateOpen(context.Background(), sessions.CallSession{
			ID: id, WorkspaceID: "w1", AgentID: agent, DialerMode: "manual", StartedAt: testNow,
			TotalCalls: 4, ConnectedCalls: 1,
		}); err != nil {
			t.Fatalf("seed session %s: %v", id, err)
		}
	}
	mustStart("s1", "a1")
	mustStart("s2", "a2")

	agent, err := svc.DashboardStats(context.Background(), "w1", lists.Viewer{UserID: "a1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if agent.Lists[0].Pending != 2 {
		t.Fatalf("agent should see 2 pending, got %+v", agent.Lists[0])
	}
	if len(agent.ActiveSessions) != 1 || agent.ActiveSessions[0].AgentID != "a1" {
		t.Fatalf("agent should see only own session: %+v", agent.ActiveSessions)
	}
	if got := agent.ActiveSessions[0].ConnectRate; got != 0.25 {
		t.Fatalf("connect rate = %v, want 0.25", got)
	}

	mgr, err := svc.DashboardStats(context.Background(), "w1", lists.Viewer{UserID: "m1", Manager: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mgr.Lists[0].Pending != 4 {
		t.Fatalf("manager should see all pending, got %+v", mgr.Lists[0])
	}
	if len(mgr.ActiveSessions) != 2 {
		t.Fatalf("manager should see both sessions: %+v", mgr.ActiveSessions)
	}
}

func TestDashboardLiveAgeMetrics(t *testing.T) {
	svc, repo, _ := newTestService(t)
	seedList(t, repo, "l1", true)
	seedItem(t, repo, lists.Item{ID: "young", TargetID: "r1", AddedAt: testNow.Add(-1 * time.Hour)})
	seedItem(t, repo, lists.Item{ID: "old", TargetID: "r2", AddedAt: testNow.Add(-5 * time.Hour)})
	// Completed items do not drag the live-age average.
	seedItem(t, repo, lists.Item{ID: "done", TargetID: "r3", Status: lists.ItemStatusCompleted, AddedAt: testNow.Add(-100 * time.Hour)})

	out, err := svc.DashboardStats(context.Background(), "w1", lists.Viewer{UserID: "m1", Manager: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := out.Lists[0].Metrics
	if m.AvgTimeInListHours != 3 {
		t.Fatalf("avg age = %v, want 3", m.AvgTimeInListHours)
	}
	if m.OldestItemHours != 5 {
		t.Fatalf("oldest = %v, want 5", m.OldestItemHours)
	}
}

func TestDashboardRequiresWorkspace(t *testing.T) {
	svc, _, _ := newTestService(t)
	if _, err := svc.DashboardStats(context.Background(), "", lists.Viewer{Manager: true}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}
