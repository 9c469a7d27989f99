package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
// No Update/Delete methods are provided by design.

type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs internal audit information.
//
// IMPORTANT:
// - Audit is internal-only. Do not expose these records to tenant users by default.
// - Callers should treat audit logging as best-effort.

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.WorkspaceID == "" {
		return ErrInvalidEvent
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// LogDisposition records a disposition application against an item.
func (s *Service) LogDisposition(ctx context.Context, workspaceID, agentID, listID, itemID, code, metadata string) error {
	return s.Append(ctx, Event{
		WorkspaceID: workspaceID,
		Type:        EventTypeDisposition,
		ActorUserID: agentID,
		ListID:      listID,
		ItemID:      itemID,
		Disposition: code,
		Message:     "disposition applied",
		Metadata:    metadata,
	})
}

// LogSideEffectFailure records a degraded disposition side effect.
// These must never be silently dropped.
func (s *Service) LogSideEffectFailure(ctx context.Context, workspaceID, listID, itemID, code, effect, failure string) error {
	return s.Append(ctx, Event{
		WorkspaceID: workspaceID,
		Type:        EventTypeSideEffectFailure,
		ListID:      listID,
		ItemID:      itemID,
		Disposition: code,
		Message:     "side effect " + effect + " failed: " + failure,
	})
}

// LogBulkAssign records a manager reassignment batch.
func (s *Service) LogBulkAssign(ctx context.Context, workspaceID, actorUserID, actorRole string, assigned, skipped int, metadata string) error {
	return s.Append(ctx, Event{
		WorkspaceID: workspaceID,
		Type:        EventTypeBulkAssign,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		Message:     "bulk assignment",
		Metadata:    metadata,
	})
}

// LogAdminAction records a manager/admin list operation.
func (s *Service) LogAdminAction(ctx context.Context, workspaceID, actorUserID, actorRole, listID, message, metadata string) error {
	return s.Append(ctx, Event{
		WorkspaceID: workspaceID,
		Type:        EventTypeAdminAction,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		ListID:      listID,
		Message:     message,
		Metadata:    metadata,
	})
}
