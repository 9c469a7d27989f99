package sessions

import "time"

// CallSession is one agent's continuous calling activity against one list.
//
// State machine: active <-> paused -> ended. Ended is terminal; the row is
// immutable afterwards.
//
// Invariant: no agent has two sessions with ended_at NULL in a workspace.
// The session owner is the sole writer of its counters.
type CallSession struct {
	ID          string `json:"id" db:"id"`
	WorkspaceID string `json:"workspace_id" db:"workspace_id"`
	AgentID     string `json:"agent_id" db:"agent_id"`
	ListID      string `json:"list_id" db:"list_id"`

	DialerMode string `json:"dialer_mode" db:"dialer_mode"`

	StartedAt time.Time  `json:"started_at" db:"started_at"`
	PausedAt  *time.Time `json:"paused_at,omitempty" db:"paused_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty" db:"ended_at"`
	EndReason string     `json:"end_reason,omitempty" db:"end_reason"`

	TotalCalls      int   `json:"total_calls" db:"total_calls"`
	ConnectedCalls  int   `json:"connected_calls" db:"connected_calls"`
	TotalTalkTimeMs int64 `json:"total_talk_time_ms" db:"total_talk_time_ms"`
}

func (s CallSession) Ended() bool  { return s.EndedAt != nil }
func (s CallSession) Paused() bool { return s.PausedAt != nil && !s.Ended() }

// ConnectRate is a derived read-only metric; 0 when no calls were made.
func (s CallSession) ConnectRate() float64 {
	if s.TotalCalls == 0 {
		return 0
	}
	return float64(s.ConnectedCalls) / float64(s.TotalCalls)
}

// EndReasonUserEnded is the normal agent-initiated end.
const EndReasonUserEnded = "user_ended"
