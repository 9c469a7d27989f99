package reporting

import (
	"time"

	"dialer-platform/internal/sessions"
)

// ListStats is one list's slice of the call-center dashboard.
type ListStats struct {
	ListID   string `json:"list_id"`
	Name     string `json:"name"`
	Priority int    `json:"priority"`

	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
	Removed    int `json:"removed"`

	// Exhausted counts pending items at the attempt cap: visible, flagged,
	// not selectable.
	Exhausted int `json:"exhausted"`

	Metrics ListMetrics `json:"metrics"`
}

type ListMetrics struct {
	// AvgTimeInListHours averages the age of live (pending/in-progress) items.
	AvgTimeInListHours float64 `json:"avg_time_in_list_hours"`
	// OldestItemHours is the age of the longest-waiting live item.
	OldestItemHours float64 `json:"oldest_item_hours"`
}

// SessionStats decorates an open session with its derived connect rate.
type SessionStats struct {
	sessions.CallSession
	ConnectRate float64 `json:"connect_rate"`
}

// DashboardStats is the call-center dashboard payload, scoped to the viewer.
type DashboardStats struct {
	WorkspaceID    string         `json:"workspace_id"`
	Lists          []ListStats    `json:"lists"`
	ActiveSessions []SessionStats `json:"active_sessions"`
	GeneratedAt    time.Time      `json:"generated_at"`
}
