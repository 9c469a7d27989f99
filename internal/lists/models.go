package lists

import (
	"time"

	"dialer-platform/internal/records"
)

// CallList is a named, policy-governed queue of contact targets for outbound
// calling.
//
// Multi-tenant invariant: WorkspaceID is required on every row.
//
// Cadence policy fields control selection eligibility, not presentation:
// - CadenceHours is the minimum re-contact interval after a non-terminal attempt.
// - MaxAttempts is a hard cap; items at the cap are exhausted.
// - CooldownDays quarantines an item after a terminal/negative disposition.
type CallList struct {
	ID          string `json:"id" db:"id"`
	WorkspaceID string `json:"workspace_id" db:"workspace_id"`

	Name        string `json:"name" db:"name"`
	Description string `json:"description,omitempty" db:"description"`

	ListType     ListType           `json:"list_type" db:"list_type"`
	TargetObject records.RecordType `json:"target_object" db:"target_object"`

	CadenceType  CadenceType `json:"cadence_type" db:"cadence_type"`
	CadenceHours int         `json:"cadence_hours" db:"cadence_hours"`
	MaxAttempts  int         `json:"max_attempts" db:"max_attempts"`
	CooldownDays int         `json:"cooldown_days" db:"cooldown_days"`

	// Priority ranks lists against each other when selecting across lists.
	// Range 1-100, higher is more urgent.
	Priority int `json:"priority" db:"priority"`

	// States restricts list scope to jurisdiction codes. Empty means all.
	States []string `json:"states,omitempty" db:"-"`

	// FilterCriteria drives membership for DYNAMIC lists only.
	FilterCriteria *records.Filter `json:"filter_criteria,omitempty" db:"-"`

	// AllowOverlap permits dynamic refresh to add records that already sit on
	// another active list. Default false: skip to avoid duplicate assignment.
	AllowOverlap bool `json:"allow_overlap" db:"allow_overlap"`

	// ResetOnCooldown re-admits exhausted items once their cooldown expires.
	// Default false: exhausted items require an explicit re-add.
	ResetOnCooldown bool `json:"reset_on_cooldown" db:"reset_on_cooldown"`

	// CallbackListID is where schedule-callback dispositions land their
	// follow-up item. Empty means the source list.
	CallbackListID string `json:"callback_list_id,omitempty" db:"callback_list_id"`

	IsActive bool `json:"is_active" db:"is_active"`

	LastRefreshedAt *time.Time `json:"last_refreshed_at,omitempty" db:"last_refreshed_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type ListType string

const (
	ListTypeStatic   ListType = "static"
	ListTypeDynamic  ListType = "dynamic"
	ListTypeCallback ListType = "callback"
	ListTypeImport   ListType = "import"
)

func (t ListType) Valid() bool {
	switch t {
	case ListTypeStatic, ListTypeDynamic, ListTypeCallback, ListTypeImport:
		return true
	default:
		return false
	}
}

type CadenceType string

const (
	CadencePreview     CadenceType = "preview"
	CadenceProgressive CadenceType = "progressive"
	CadencePredictive  CadenceType = "predictive"
	CadenceManual      CadenceType = "manual"
)

func (t CadenceType) Valid() bool {
	switch t {
	case CadencePreview, CadenceProgressive, CadencePredictive, CadenceManual:
		return true
	default:
		return false
	}
}

// Item is one target record's membership entry within a specific call list.
//
// OwnerID is denormalized from the underlying record at insert time so
// visibility filtering stays a single-table concern. AssignedToID is the
// queue-scoped assignment and may be cleared without touching ownership.
type Item struct {
	ID          string `json:"id" db:"id"`
	WorkspaceID string `json:"workspace_id" db:"workspace_id"`
	ListID      string `json:"list_id" db:"list_id"`

	TargetType records.RecordType `json:"target_type" db:"target_type"`
	TargetID   string             `json:"target_id" db:"target_id"`

	Status ItemStatus `json:"status" db:"status"`

	AttemptCount   int        `json:"attempt_count" db:"attempt_count"`
	LastAttemptAt  *time.Time `json:"last_attempt_at,omitempty" db:"last_attempt_at"`
	NextEligibleAt *time.Time `json:"next_eligible_at,omitempty" db:"next_eligible_at"`

	AssignedToID string `json:"assigned_to_id,omitempty" db:"assigned_to_id"`
	OwnerID      string `json:"owner_id,omitempty" db:"owner_id"`

	Source ItemSource `json:"source" db:"source"`

	AddedAt   time.Time `json:"added_at" db:"added_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type ItemStatus string

const (
	ItemStatusPending    ItemStatus = "pending"
	ItemStatusInProgress ItemStatus = "in_progress"
	ItemStatusCompleted  ItemStatus = "completed"
	ItemStatusRemoved    ItemStatus = "removed"
)

type ItemSource string

const (
	ItemSourceManual   ItemSource = "manual"
	ItemSourceDynamic  ItemSource = "dynamic"
	ItemSourceImport   ItemSource = "import"
	ItemSourceCallback ItemSource = "callback"
	ItemSourceMoved    ItemSource = "moved"
)

// Exhausted reports whether the item hit the list's attempt cap.
// An exhausted item stays visible but is excluded from selection unless the
// list re-admits it on cooldown expiry.
func (it Item) Exhausted(l CallList) bool {
	return it.AttemptCount >= l.MaxAttempts
}

// Attempt is one append-only dial-history row for an item.
type Attempt struct {
	ID          string `json:"id" db:"id"`
	WorkspaceID string `json:"workspace_id" db:"workspace_id"`
	ListID      string `json:"list_id" db:"list_id"`
	ItemID      string `json:"item_id" db:"item_id"`

	Disposition string `json:"disposition" db:"disposition"`
	Notes       string `json:"notes,omitempty" db:"notes"`
	AgentID     string `json:"agent_id,omitempty" db:"agent_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Viewer scopes item reads. Managers see everything in the workspace;
// agents see items assigned to them, falling back to record ownership only
// when the item is unassigned. The fallback is deliberate: assignment wins
// over ownership whenever both are present.
type Viewer struct {
	UserID  string
	Manager bool
}

func (v Viewer) CanSee(it Item) bool {
	if v.Manager {
		return true
	}
	if it.AssignedToID != "" {
		return it.AssignedToID == v.UserID
	}
	return it.OwnerID == v.UserID
}
