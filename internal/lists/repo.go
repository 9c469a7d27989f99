package lists

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound   = errors.New("lists: not found")
	ErrConflict   = errors.New("lists: conflict")
	ErrValidation = errors.New("lists: invalid input")
)

// ListRepo is the persistence contract for call list configuration.
type ListRepo interface {
	Create(ctx context.Context, l CallList) error
	Update(ctx context.Context, l CallList) error
	Delete(ctx context.Context, workspaceID, listID string) error
	Get(ctx context.Context, workspaceID, listID string) (CallList, error)
	List(ctx context.Context, workspaceID string, f ListFilter) ([]CallList, error)
	MarkRefreshed(ctx context.Context, workspaceID, listID string, at time.Time) error
}

type ListFilter struct {
	IsActive *bool
	Search   string
}

// ItemRepo is the persistence contract for list membership and dial history.
//
// Atomicity contract:
// - Claim must be a conditional transition (pending -> in_progress) that fails
//   with ErrConflict when the item was claimed or mutated concurrently.
// - RecordAttempt and Move must apply their attempt row and item mutation in a
//   single transaction; a crash must not separate them.
type ItemRepo interface {
	Insert(ctx context.Context, it Item) error
	GetItem(ctx context.Context, workspaceID, itemID string) (Item, error)
	UpdateItem(ctx context.Context, it Item) error

	// Assign sets (or clears, with an empty agentID) only the queue assignment
	// on a live (pending or in_progress) item. A conditional single-column
	// write: it must never touch status, attempt counters or cadence stamps,
	// so it cannot revert a concurrent claim or attempt. ErrConflict when the
	// item is no longer live.
	Assign(ctx context.Context, workspaceID, itemID, agentID string, at time.Time) error

	ListByList(ctx context.Context, workspaceID, listID string, f ItemFilter) ([]Item, error)

	// OnActiveList reports whether the target record already has a live
	// (pending or in-progress) membership on any active list in the workspace.
	OnActiveList(ctx context.Context, workspaceID, targetID string) (bool, error)

	// OnList reports whether the target record already has a live membership
	// on the given list. Used for refresh idempotency even when overlap
	// across lists is allowed.
	OnList(ctx context.Context, workspaceID, listID, targetID string) (bool, error)

	// Candidates returns eligible pending items for the list, ordered
	// never-attempted first, then oldest last attempt. The list's cadence
	// policy decides exhaustion; viewer scoping applies for non-managers.
	Candidates(ctx context.Context, l CallList, v Viewer, now time.Time, limit int) ([]Item, error)

	// Claim atomically transitions a pending item to in_progress, stamping
	// last_attempt_at as the provisional claim time.
	Claim(ctx context.Context, workspaceID, itemID string, at time.Time) (Item, error)

	// Release returns an in_progress item to pending without recording an attempt.
	Release(ctx context.Context, workspaceID, itemID string) (Item, error)

	// RecordAttempt appends a dial-history row and persists the mutated item
	// in one transaction. The item write is conditional on the item still
	// holding the status it had when the caller read it (from); ErrConflict
	// when a concurrent claim or disposition changed it in between.
	RecordAttempt(ctx context.Context, a Attempt, it Item, from ItemStatus) error

	// Move applies a move-to-list disposition: append the attempt, persist the
	// terminal source item, and insert the fresh target item atomically. The
	// source write carries the same status precondition as RecordAttempt.
	Move(ctx context.Context, a Attempt, src Item, dst Item, from ItemStatus) error

	ListAttempts(ctx context.Context, workspaceID, itemID string) ([]Attempt, error)

	// CountByStatus returns per-status item counts for a list.
	CountByStatus(ctx context.Context, workspaceID, listID string) (map[ItemStatus]int, error)
}

type ItemFilter struct {
	Status ItemStatus
	Viewer Viewer
	Limit  int
}

// Locker serializes dynamic-list refreshes. Implementations: redis (production)
// and an in-process mutex (tests).
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, key, token string) error
}
