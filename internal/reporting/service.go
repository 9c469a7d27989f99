package reporting

import (
	"context"
	"errors"
	"time"

	"dialer-platform/internal/lists"
	"dialer-platform/internal/sessions"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Service aggregates dashboard statistics over lists, items and sessions.
//
// Visibility rule: the rule lives here at the read layer, not in writes.
// Managers see every item; agents see assigned items plus unassigned items
// they own. The same Viewer scoping the selector uses applies here, so the
// dashboard never shows an agent more than their queue would.
type Service struct {
	lists    lists.ListRepo
	items    lists.ItemRepo
	sessions sessions.Repo

	clock func() time.Time
}

func NewService(listRepo lists.ListRepo, itemRepo lists.ItemRepo, sessionRepo sessions.Repo) *Service {
	return &Service{lists: listRepo, items: itemRepo, sessions: sessionRepo, clock: time.Now}
}

func (s *Service) DashboardStats(ctx context.Context, workspaceID string, v lists.Viewer) (DashboardStats, error) {
	if workspaceID == "" {
		return DashboardStats{}, ErrInvalidRequest
	}

	now := s.clock().UTC()
	active := true
	ls, err := s.lists.List(ctx, workspaceID, lists.ListFilter{IsActive: &active})
	if err != nil {
		return DashboardStats{}, err
	}

	out := DashboardStats{WorkspaceID: workspaceID, GeneratedAt: now}
	for _, l := range ls {
		items, err := s.items.ListByList(ctx, workspaceID, l.ID, lists.ItemFilter{Viewer: v})
		if err != nil {
			return DashboardStats{}, err
		}

		st := ListStats{ListID: l.ID, Name: l.Name, Priority: l.Priority}
		var liveAgeSum time.Duration
		var liveCount int
		var oldest time.Duration

		for _, it := range items {
			switch it.Status {
			case lists.ItemStatusPending:
				st.Pending++
				if it.Exhausted(l) {
					st.Exhausted++
				}
			case lists.ItemStatusInProgress:
				st.InProgress++
			case lists.ItemStatusCompleted:
				st.Completed++
			case lists.ItemStatusRemoved:
				st.Removed++
			}

			if it.Status == lists.ItemStatusPending || it.Status == lists.ItemStatusInProgress {
				age := now.Sub(it.AddedAt)
				liveAgeSum += age
				liveCount++
				if age > oldest {
					oldest = age
				}
			}
		}

		if liveCount > 0 {
			st.Metrics.AvgTimeInListHours = (liveAgeSum / time.Duration(liveCount)).Hours()
			st.Metrics.OldestItemHours = oldest.Hours()
		}
		out.Lists = append(out.Lists, st)
	}

	open, err := s.sessions.ListOpen(ctx, workspaceID)
	if err != nil {
		return DashboardStats{}, err
	}
	for _, sess := range open {
		if !v.Manager && sess.AgentID != v.UserID {
			continue
		}
		out.ActiveSessions = append(out.ActiveSessions, SessionStats{
			CallSession: sess,
			ConnectRate: sess.ConnectRate(),
		})
	}
	return out, nil
}
