package audit

import (
	"context"
	"testing"
)

func TestService_AppendRequiresWorkspaceAndType(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.Append(context.Background(), Event{Type: EventTypeAdminAction}); err == nil {
		t.Fatalf("expected error")
	}
	if err := svc.Append(context.Background(), Event{WorkspaceID: "w"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestService_AppendsImmutableEvents(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.LogSideEffectFailure(context.Background(), "w", "list1", "item1", "NO_ANSWER", "move_to_list", "target list missing"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event")
	}
	if evs[0].Type != EventTypeSideEffectFailure {
		t.Fatalf("expected side_effect_failure")
	}
	if evs[0].ItemID != "item1" || evs[0].ListID != "list1" {
		t.Fatalf("expected item/list context captured")
	}
	if evs[0].ID == "" || evs[0].CreatedAt.IsZero() {
		t.Fatalf("expected id and created_at stamped")
	}
}

func TestService_LogDisposition(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.LogDisposition(context.Background(), "w", "agent1", "list1", "item1", "APPOINTMENT_SET", "{}"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event")
	}
	if evs[0].Disposition != "APPOINTMENT_SET" {
		t.Fatalf("expected disposition code captured")
	}
	if evs[0].ActorUserID != "agent1" {
		t.Fatalf("expected actor captured")
	}
}
