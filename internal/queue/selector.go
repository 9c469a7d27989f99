package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dialer-platform/internal/lists"
)

// Service picks the next dialable item for an agent and manages queue
// assignment. It never hands the same pending item to two agents: the claim
// is a conditional repo transition, and a lost race just moves on to the next
// candidate.
type Service struct {
	lists lists.ListRepo
	items lists.ItemRepo
	clock func() time.Time
}

func NewService(listRepo lists.ListRepo, itemRepo lists.ItemRepo) *Service {
	return &Service{lists: listRepo, items: itemRepo, clock: time.Now}
}

var ErrInvalidRequest = errors.New("queue: invalid request")

// candidateBatch bounds how many eligible items one claim round fetches.
const candidateBatch = 10

// claimRounds bounds retries when every candidate in a round is lost to
// concurrent claimers.
const claimRounds = 3

// NextItem returns the next eligible item from a list, claiming it for the
// caller. ok=false means the queue is empty for this viewer; that is a
// normal outcome, not an error.
func (s *Service) NextItem(ctx context.Context, workspaceID, listID string, v lists.Viewer) (lists.Item, bool, error) {
	if workspaceID == "" || listID == "" {
		return lists.Item{}, false, fmt.Errorf("%w: workspace_id and list_id required", ErrInvalidRequest)
	}
	l, err := s.lists.Get(ctx, workspaceID, listID)
	if err != nil {
		return lists.Item{}, false, err
	}
	if !l.IsActive {
		return lists.Item{}, false, nil
	}
	return s.claimFrom(ctx, l, v)
}

// NextItemAny selects across every active list in the workspace, highest
// priority first. Within a list the fairness ordering applies.
func (s *Service) NextItemAny(ctx context.Context, workspaceID string, v lists.Viewer) (lists.Item, bool, error) {
	if workspaceID == "" {
		return lists.Item{}, false, fmt.Errorf("%w: workspace_id required", ErrInvalidRequest)
	}
	active := true
	ls, err := s.lists.List(ctx, workspaceID, lists.ListFilter{IsActive: &active})
	if err != nil {
		return lists.Item{}, false, err
	}
	// Repo returns priority-descending order.
	for _, l := range ls {
		it, ok, err := s.claimFrom(ctx, l, v)
		if err != nil {
			return lists.Item{}, false, err
		}
		if ok {
			return it, true, nil
		}
	}
	return lists.Item{}, false, nil
}

func (s *Service) claimFrom(ctx context.Context, l lists.CallList, v lists.Viewer) (lists.Item, bool, error) {
	for round := 0; round < claimRounds; round++ {
		cands, err := s.items.Candidates(ctx, l, v, s.clock().UTC(), candidateBatch)
		if err != nil {
			return lists.Item{}, false, err
		}
		if len(cands) == 0 {
			return lists.Item{}, false, nil
		}
		for _, cand := range cands {
			it, err := s.items.Claim(ctx, l.WorkspaceID, cand.ID, s.clock().UTC())
			if err != nil {
				// Someone else claimed it, or it was deleted. Next candidate.
				if errors.Is(err, lists.ErrConflict) || errors.Is(err, lists.ErrNotFound) {
					continue
				}
				return lists.Item{}, false, err
			}
			return it, true, nil
		}
		// The whole batch was contended. If it was a partial batch there is
		// nothing left to fetch.
		if len(cands) < candidateBatch {
			return lists.Item{}, false, nil
		}
	}
	return lists.Item{}, false, nil
}

// ReleaseItem returns a claimed item to pending without recording an attempt
// (the agent skipped the preview or abandoned the dial).
func (s *Service) ReleaseItem(ctx context.Context, workspaceID, itemID string) (lists.Item, error) {
	return s.items.Release(ctx, workspaceID, itemID)
}

// GetItems lists the items of a call list, scoped to the viewer.
func (s *Service) GetItems(ctx context.Context, workspaceID, listID string, f lists.ItemFilter) ([]lists.Item, error) {
	if workspaceID == "" || listID == "" {
		return nil, fmt.Errorf("%w: workspace_id and list_id required", ErrInvalidRequest)
	}
	if _, err := s.lists.Get(ctx, workspaceID, listID); err != nil {
		return nil, err
	}
	return s.items.ListByList(ctx, workspaceID, listID, f)
}

func (s *Service) GetAttempts(ctx context.Context, workspaceID, itemID string) ([]lists.Attempt, error) {
	return s.items.ListAttempts(ctx, workspaceID, itemID)
}

// BulkAssignResult reports per-item outcomes without aborting the batch.
type BulkAssignResult struct {
	Assigned   int      `json:"assigned"`
	Skipped    int      `json:"skipped"`
	SkippedIDs []string `json:"skipped_ids,omitempty"`
}

// BulkAssign sets (or clears, with an empty agentID) the queue assignment on
// each item. Only pending and in-progress items are touched; removed or
// completed items are skipped, as are items deleted concurrently.
func (s *Service) BulkAssign(ctx context.Context, workspaceID string, itemIDs []string, agentID string) (BulkAssignResult, error) {
	if workspaceID == "" {
		return BulkAssignResult{}, fmt.Errorf("%w: workspace_id required", ErrInvalidRequest)
	}
	if len(itemIDs) == 0 {
		return BulkAssignResult{}, fmt.Errorf("%w: item_ids required", ErrInvalidRequest)
	}

	var out BulkAssignResult
	now := s.clock().UTC()
	for _, id := range itemIDs {
		// Conditional single-column write in the repo: a concurrent claim or
		// disposition can never be reverted by the assignment.
		err := s.items.Assign(ctx, workspaceID, id, agentID, now)
		if err != nil {
			if errors.Is(err, lists.ErrNotFound) || errors.Is(err, lists.ErrConflict) {
				out.Skipped++
				out.SkippedIDs = append(out.SkippedIDs, id)
				continue
			}
			return out, err
		}
		out.Assigned++
	}
	return out, nil
}
