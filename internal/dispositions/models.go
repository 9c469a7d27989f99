package dispositions

import "time"

// Disposition is the recorded outcome type of a call attempt. The catalog is
// global: one set of codes shared across every list in a workspace.
//
// Action flags drive automated follow-up. MoveToListID implies removal from
// the source list plus insertion into the target; it is never a double
// removal even when RemoveFromList is also set.
type Disposition struct {
	Code     string   `json:"code" db:"code"`
	Name     string   `json:"name" db:"name"`
	Category Category `json:"category" db:"category"`

	RemoveFromList   bool   `json:"remove_from_list" db:"remove_from_list"`
	MoveToListID     string `json:"move_to_list_id,omitempty" db:"move_to_list_id"`
	ScheduleCallback bool   `json:"schedule_callback" db:"schedule_callback"`
	AddToDNC         bool   `json:"add_to_dnc" db:"add_to_dnc"`
	UpdateLeadStatus string `json:"update_lead_status,omitempty" db:"update_lead_status"`

	IsActive bool `json:"is_active" db:"is_active"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Category string

const (
	CategoryPositive     Category = "positive"
	CategoryNegative     Category = "negative"
	CategoryCallback     Category = "callback"
	CategoryNoContact    Category = "no_contact"
	CategoryQualified    Category = "qualified"
	CategoryDisqualified Category = "disqualified"
	CategoryOther        Category = "other"
)

// Terminal reports whether this outcome quarantines the item with the list's
// cooldown instead of the normal cadence wait.
func (d Disposition) Terminal() bool {
	return d.Category == CategoryNegative || d.Category == CategoryDisqualified
}
