package records

import "time"

// Record is a tenant-scoped target record (lead, contact, or opportunity).
//
// Multi-tenant invariant: WorkspaceID is required on every row.
//
// The dialing engine treats records as an external collaborator: it reads
// identity/ownership, writes the do-not-call flag and status, and evaluates
// dynamic-list filters against them. Full CRUD belongs to the CRM surface,
// not here.
type Record struct {
	ID          string `json:"id" db:"id"`
	WorkspaceID string `json:"workspace_id" db:"workspace_id"`

	Type RecordType `json:"type" db:"type"`

	// OwnerID is the durable record owner (CRM ownership), distinct from
	// queue-scoped assignment on call list items.
	OwnerID string `json:"owner_id,omitempty" db:"owner_id"`

	Status string `json:"status,omitempty" db:"status"`

	// State is the jurisdiction code (e.g., "TX", "CA") used by list scope filters.
	State string `json:"state,omitempty" db:"state"`

	Phone string `json:"phone,omitempty" db:"phone"`

	// DoNotCall is a durable suppression flag, independent of any list.
	DoNotCall bool `json:"do_not_call" db:"do_not_call"`

	// Fields holds additional attributes referenced by dynamic-list filters.
	Fields map[string]any `json:"fields,omitempty" db:"-"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type RecordType string

const (
	RecordTypeLead        RecordType = "lead"
	RecordTypeContact     RecordType = "contact"
	RecordTypeOpportunity RecordType = "opportunity"
	RecordTypeAccount     RecordType = "account"
)

func (t RecordType) Valid() bool {
	switch t {
	case RecordTypeLead, RecordTypeContact, RecordTypeOpportunity, RecordTypeAccount:
		return true
	default:
		return false
	}
}
