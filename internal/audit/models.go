package audit

import "time"

// Event is an immutable, append-only audit log record.
//
// Invariants:
// - Events are never updated or deleted.
// - workspace_id is required for tenancy isolation.
// - Audit logging is best-effort; do not block calling flows on audit failures.
//
// Storage recommendation (Postgres):
// - Table audit_events with an INSERT-only policy.
// - Optional: trigger to prevent UPDATE/DELETE.
// - Optional: partition by time for retention.

type Event struct {
	ID          string `json:"id" db:"id"`
	WorkspaceID string `json:"workspace_id" db:"workspace_id"`

	// Type indicates the business category of the audit record.
	Type EventType `json:"type" db:"type"`

	// ActorUserID is the authenticated user causing the event (if applicable).
	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`
	ActorRole   string `json:"actor_role,omitempty" db:"actor_role"`

	// Target identifiers (optional, depending on the event type).
	ListID      string `json:"list_id,omitempty" db:"list_id"`
	ItemID      string `json:"item_id,omitempty" db:"item_id"`
	SessionID   string `json:"session_id,omitempty" db:"session_id"`
	Disposition string `json:"disposition,omitempty" db:"disposition"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeDisposition       EventType = "disposition_applied"
	EventTypeSideEffectFailure EventType = "side_effect_failure"
	EventTypeBulkAssign        EventType = "bulk_assign"
	EventTypeAdminAction       EventType = "admin_action"
)
