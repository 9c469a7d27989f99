package lists

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"dialer-platform/internal/records"

	"github.com/google/uuid"
)

// Service owns call list configuration and membership population.
//
// Contract:
// - All operations are workspace-scoped.
// - Refresh never removes existing members whose records stopped matching;
//   pulling an item out from under an agent mid-cadence is worse than carrying
//   a stale member to its natural end.
// - A malformed filter fails the refresh before any membership write.
type Service struct {
	lists   ListRepo
	items   ItemRepo
	store   records.Store
	locker  Locker
	lockTTL time.Duration
	clock   func() time.Time
}

func NewService(listRepo ListRepo, itemRepo ItemRepo, store records.Store, locker Locker) *Service {
	return &Service{
		lists:   listRepo,
		items:   itemRepo,
		store:   store,
		locker:  locker,
		lockTTL: defaultRefreshLockTTL,
		clock:   time.Now,
	}
}

// SetRefreshLockTTL overrides how long a refresh may hold its lock.
func (s *Service) SetRefreshLockTTL(ttl time.Duration) {
	if ttl > 0 {
		s.lockTTL = ttl
	}
}

type CreateListRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	ListType     ListType           `json:"list_type"`
	TargetObject records.RecordType `json:"target_object"`

	CadenceType  CadenceType `json:"cadence_type"`
	CadenceHours int         `json:"cadence_hours"`
	MaxAttempts  int         `json:"max_attempts"`
	CooldownDays int         `json:"cooldown_days"`

	Priority int      `json:"priority"`
	States   []string `json:"states,omitempty"`

	FilterCriteria *records.Filter `json:"filter_criteria,omitempty"`

	AllowOverlap    bool   `json:"allow_overlap"`
	ResetOnCooldown bool   `json:"reset_on_cooldown"`
	CallbackListID  string `json:"callback_list_id,omitempty"`
}

// ListSummary pairs a list with its live queue depth.
type ListSummary struct {
	CallList
	PendingItems int `json:"pending_items"`
}

func (s *Service) CreateList(ctx context.Context, workspaceID string, req CreateListRequest) (ListSummary, error) {
	if workspaceID == "" {
		return ListSummary{}, fmt.Errorf("%w: workspace_id required", ErrValidation)
	}
	if err := validateListConfig(req); err != nil {
		return ListSummary{}, err
	}

	now := s.clock().UTC()
	l := CallList{
		ID:              uuid.NewString(),
		WorkspaceID:     workspaceID,
		Name:            strings.TrimSpace(req.Name),
		Description:     req.Description,
		ListType:        req.ListType,
		TargetObject:    req.TargetObject,
		CadenceType:     req.CadenceType,
		CadenceHours:    req.CadenceHours,
		MaxAttempts:     req.MaxAttempts,
		CooldownDays:    req.CooldownDays,
		Priority:        req.Priority,
		States:          req.States,
		FilterCriteria:  req.FilterCriteria,
		AllowOverlap:    req.AllowOverlap,
		ResetOnCooldown: req.ResetOnCooldown,
		CallbackListID:  req.CallbackListID,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.lists.Create(ctx, l); err != nil {
		return ListSummary{}, err
	}
	return ListSummary{CallList: l, PendingItems: 0}, nil
}

type UpdateListRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`

	CadenceType  *CadenceType `json:"cadence_type,omitempty"`
	CadenceHours *int         `json:"cadence_hours,omitempty"`
	MaxAttempts  *int         `json:"max_attempts,omitempty"`
	CooldownDays *int         `json:"cooldown_days,omitempty"`

	Priority *int      `json:"priority,omitempty"`
	States   *[]string `json:"states,omitempty"`

	FilterCriteria *records.Filter `json:"filter_criteria,omitempty"`

	AllowOverlap    *bool   `json:"allow_overlap,omitempty"`
	ResetOnCooldown *bool   `json:"reset_on_cooldown,omitempty"`
	CallbackListID  *string `json:"callback_list_id,omitempty"`

	IsActive *bool `json:"is_active,omitempty"`
}

func (s *Service) UpdateList(ctx context.Context, workspaceID, listID string, req UpdateListRequest) (CallList, error) {
	l, err := s.lists.Get(ctx, workspaceID, listID)
	if err != nil {
		return CallList{}, err
	}

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return CallList{}, fmt.Errorf("%w: name must not be empty", ErrValidation)
		}
		l.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		l.Description = *req.Description
	}
	if req.CadenceType != nil {
		if !req.CadenceType.Valid() {
			return CallList{}, fmt.Errorf("%w: unknown cadence type %q", ErrValidation, *req.CadenceType)
		}
		l.CadenceType = *req.CadenceType
	}
	if req.CadenceHours != nil {
		if *req.CadenceHours < 0 {
			return CallList{}, fmt.Errorf("%w: cadence_hours must be >= 0", ErrValidation)
		}
		l.CadenceHours = *req.CadenceHours
	}
	if req.MaxAttempts != nil {
		if *req.MaxAttempts < 1 {
			return CallList{}, fmt.Errorf("%w: max_attempts must be >= 1", ErrValidation)
		}
		l.MaxAttempts = *req.MaxAttempts
	}
	if req.CooldownDays != nil {
		if *req.CooldownDays < 0 {
			return CallList{}, fmt.Errorf("%w: cooldown_days must be >= 0", ErrValidation)
		}
		l.CooldownDays = *req.CooldownDays
	}
	if req.Priority != nil {
		if *req.Priority < 1 || *req.Priority > 100 {
			return CallList{}, fmt.Errorf("%w: priority must be 1-100", ErrValidation)
		}
		l.Priority = *req.Priority
	}
	if req.States != nil {
		l.States = *req.States
	}
	if req.FilterCriteria != nil {
		if l.ListType == ListTypeDynamic {
			if err := req.FilterCriteria.Validate(); err != nil {
				return CallList{}, err
			}
		}
		l.FilterCriteria = req.FilterCriteria
	}
	if req.AllowOverlap != nil {
		l.AllowOverlap = *req.AllowOverlap
	}
	if req.ResetOnCooldown != nil {
		l.ResetOnCooldown = *req.ResetOnCooldown
	}
	if req.CallbackListID != nil {
		l.CallbackListID = *req.CallbackListID
	}
	if req.IsActive != nil {
		l.IsActive = *req.IsActive
	}

	l.UpdatedAt = s.clock().UTC()
	if err := s.lists.Update(ctx, l); err != nil {
		return CallList{}, err
	}
	return l, nil
}

func (s *Service) DeleteList(ctx context.Context, workspaceID, listID string) error {
	return s.lists.Delete(ctx, workspaceID, listID)
}

func (s *Service) GetList(ctx context.Context, workspaceID, listID string) (CallList, error) {
	return s.lists.Get(ctx, workspaceID, listID)
}

// GetLists returns the workspace's lists with their live queue depth.
//
// PendingItems is intentionally the list's total pending count, not scoped to
// a viewer: it is capacity metadata (how deep is this queue), not item access.
// Per-item visibility is enforced where items are actually read — GetItems,
// Candidates and the dashboard.
func (s *Service) GetLists(ctx context.Context, workspaceID string, f ListFilter) ([]ListSummary, error) {
	if workspaceID == "" {
		return nil, fmt.Errorf("%w: workspace_id required", ErrValidation)
	}
	ls, err := s.lists.List(ctx, workspaceID, f)
	if err != nil {
		return nil, err
	}
	out := make([]ListSummary, 0, len(ls))
	for _, l := range ls {
		counts, err := s.items.CountByStatus(ctx, workspaceID, l.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, ListSummary{CallList: l, PendingItems: counts[ItemStatusPending]})
	}
	return out, nil
}

// AddItem places a record on a list manually.
// Rejects records flagged do-not-call; they are permanently uncallable.
func (s *Service) AddItem(ctx context.Context, workspaceID, listID, targetID, assignedTo string, source ItemSource) (Item, error) {
	l, err := s.lists.Get(ctx, workspaceID, listID)
	if err != nil {
		return Item{}, err
	}
	rec, err := s.store.Get(ctx, workspaceID, targetID)
	if err != nil {
		if errors.Is(err, records.ErrNotFound) {
			return Item{}, fmt.Errorf("%w: target record %s", ErrNotFound, targetID)
		}
		return Item{}, err
	}
	if rec.DoNotCall {
		return Item{}, fmt.Errorf("%w: record %s is marked do-not-call", ErrValidation, targetID)
	}
	if on, err := s.items.OnList(ctx, workspaceID, listID, targetID); err != nil {
		return Item{}, err
	} else if on {
		return Item{}, fmt.Errorf("%w: record %s already on list", ErrConflict, targetID)
	}
	if source == "" {
		source = ItemSourceManual
	}

	now := s.clock().UTC()
	it := Item{
		ID:           uuid.NewString(),
		WorkspaceID:  workspaceID,
		ListID:       listID,
		TargetType:   l.TargetObject,
		TargetID:     targetID,
		Status:       ItemStatusPending,
		AssignedToID: assignedTo,
		OwnerID:      rec.OwnerID,
		Source:       source,
		AddedAt:      now,
		UpdatedAt:    now,
	}
	if err := s.items.Insert(ctx, it); err != nil {
		return Item{}, err
	}
	return it, nil
}

// RefreshResult reports how a dynamic refresh went.
type RefreshResult struct {
	ListID  string `json:"list_id"`
	Added   int    `json:"added"`
	Skipped int    `json:"skipped"`
}

const defaultRefreshLockTTL = 5 * time.Minute

// RefreshList recomputes membership for a dynamic list.
// Only adds: records that stopped matching keep their items. Concurrent
// refreshes of the same list are serialized through the locker.
func (s *Service) RefreshList(ctx context.Context, workspaceID, listID string) (RefreshResult, error) {
	l, err := s.lists.Get(ctx, workspaceID, listID)
	if err != nil {
		return RefreshResult{}, err
	}
	if l.ListType != ListTypeDynamic {
		return RefreshResult{}, fmt.Errorf("%w: list %s is not dynamic", ErrValidation, listID)
	}

	lockKey := "list-refresh:" + workspaceID + ":" + listID
	token, ok, err := s.locker.Acquire(ctx, lockKey, s.lockTTL)
	if err != nil {
		return RefreshResult{}, err
	}
	if !ok {
		return RefreshResult{}, fmt.Errorf("%w: refresh already in progress", ErrConflict)
	}
	defer func() { _ = s.locker.Release(ctx, lockKey, token) }()

	res, err := s.refreshLocked(ctx, l, false)
	if err != nil {
		return RefreshResult{}, err
	}
	if err := s.lists.MarkRefreshed(ctx, workspaceID, listID, s.clock().UTC()); err != nil {
		return RefreshResult{}, err
	}
	return res, nil
}

func (s *Service) refreshLocked(ctx context.Context, l CallList, dryRun bool) (RefreshResult, error) {
	if l.FilterCriteria == nil {
		return RefreshResult{}, fmt.Errorf("%w: dynamic list has no filter", records.ErrFilter)
	}
	// Fail fast on a malformed predicate: no partial membership writes.
	if err := l.FilterCriteria.Validate(); err != nil {
		return RefreshResult{}, err
	}

	matched, err := s.store.Match(ctx, l.WorkspaceID, l.TargetObject, *l.FilterCriteria)
	if err != nil {
		return RefreshResult{}, err
	}

	res := RefreshResult{ListID: l.ID}
	now := s.clock().UTC()

	for _, rec := range matched {
		if rec.DoNotCall {
			res.Skipped++
			continue
		}
		if len(l.States) > 0 && !containsState(l.States, rec.State) {
			res.Skipped++
			continue
		}
		// Idempotency: never duplicate a live membership on this list.
		if on, err := s.items.OnList(ctx, l.WorkspaceID, l.ID, rec.ID); err != nil {
			return res, err
		} else if on {
			res.Skipped++
			continue
		}
		if !l.AllowOverlap {
			if on, err := s.items.OnActiveList(ctx, l.WorkspaceID, rec.ID); err != nil {
				return res, err
			} else if on {
				res.Skipped++
				continue
			}
		}
		if dryRun {
			res.Added++
			continue
		}
		it := Item{
			ID:          uuid.NewString(),
			WorkspaceID: l.WorkspaceID,
			ListID:      l.ID,
			TargetType:  l.TargetObject,
			TargetID:    rec.ID,
			Status:      ItemStatusPending,
			OwnerID:     rec.OwnerID,
			Source:      ItemSourceDynamic,
			AddedAt:     now,
			UpdatedAt:   now,
		}
		if err := s.items.Insert(ctx, it); err != nil {
			return res, err
		}
		res.Added++
	}
	return res, nil
}

// PopulateResult is a batch outcome: per-list counts, per-list failures.
// Failures do not abort the batch.
type PopulateResult struct {
	Added  map[string]int    `json:"added"`
	Failed map[string]string `json:"failed,omitempty"`
	DryRun bool              `json:"dry_run,omitempty"`
}

// PopulateLists refreshes every active dynamic list in the workspace.
// Idempotent: a rerun adds nothing new when membership is current.
func (s *Service) PopulateLists(ctx context.Context, workspaceID string, dryRun bool, limit int) (PopulateResult, error) {
	if workspaceID == "" {
		return PopulateResult{}, fmt.Errorf("%w: workspace_id required", ErrValidation)
	}

	active := true
	ls, err := s.lists.List(ctx, workspaceID, ListFilter{IsActive: &active})
	if err != nil {
		return PopulateResult{}, err
	}

	sort.Slice(ls, func(i, j int) bool { return ls[i].Priority > ls[j].Priority })

	out := PopulateResult{Added: map[string]int{}, Failed: map[string]string{}, DryRun: dryRun}
	processed := 0
	for _, l := range ls {
		if l.ListType != ListTypeDynamic {
			continue
		}
		if limit > 0 && processed >= limit {
			break
		}
		processed++

		lockKey := "list-refresh:" + workspaceID + ":" + l.ID
		token, ok, err := s.locker.Acquire(ctx, lockKey, s.lockTTL)
		if err != nil {
			out.Failed[l.ID] = err.Error()
			continue
		}
		if !ok {
			out.Failed[l.ID] = "refresh already in progress"
			continue
		}

		res, err := s.refreshLocked(ctx, l, dryRun)
		if err != nil {
			out.Failed[l.ID] = err.Error()
			_ = s.locker.Release(ctx, lockKey, token)
			continue
		}
		out.Added[l.ID] = res.Added
		if !dryRun {
			if err := s.lists.MarkRefreshed(ctx, workspaceID, l.ID, s.clock().UTC()); err != nil {
				out.Failed[l.ID] = err.Error()
			}
		}
		_ = s.locker.Release(ctx, lockKey, token)
	}
	if len(out.Failed) == 0 {
		out.Failed = nil
	}
	return out, nil
}

func validateListConfig(req CreateListRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return fmt.Errorf("%w: name must not be empty", ErrValidation)
	}
	if !req.ListType.Valid() {
		return fmt.Errorf("%w: unknown list type %q", ErrValidation, req.ListType)
	}
	if !req.TargetObject.Valid() {
		return fmt.Errorf("%w: unknown target object %q", ErrValidation, req.TargetObject)
	}
	if !req.CadenceType.Valid() {
		return fmt.Errorf("%w: unknown cadence type %q", ErrValidation, req.CadenceType)
	}
	if req.MaxAttempts < 1 {
		return fmt.Errorf("%w: max_attempts must be >= 1", ErrValidation)
	}
	if req.CooldownDays < 0 {
		return fmt.Errorf("%w: cooldown_days must be >= 0", ErrValidation)
	}
	if req.CadenceHours < 0 {
		return fmt.Errorf("%w: cadence_hours must be >= 0", ErrValidation)
	}
	if req.Priority < 1 || req.Priority > 100 {
		return fmt.Errorf("%w: priority must be 1-100", ErrValidation)
	}
	if req.ListType == ListTypeDynamic {
		if req.FilterCriteria == nil {
			return fmt.Errorf("%w: dynamic list requires filter_criteria", ErrValidation)
		}
		if err := req.FilterCriteria.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func containsState(states []string, state string) bool {
	for _, s := range states {
		if strings.EqualFold(s, state) {
			return true
		}
	}
	return false
}
