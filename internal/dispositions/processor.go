package dispositions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"dialer-platform/internal/audit"
	"dialer-platform/internal/lists"
	"dialer-platform/internal/records"

	"github.com/google/uuid"
)

var ErrInvalidState = errors.New("dispositions: item not dispositionable in its current state")

// Processor applies a disposition to a (list, item) pair.
//
// Ordering and durability:
//  1. The attempt record and the list-membership mutation commit together in
//     one repo transaction. A crash cannot leave the attempt counted without
//     the membership outcome (or vice versa).
//  2. The remaining side effects (DNC, status write-back, callback creation)
//     run afterwards as an ordered pipeline of named handlers. Their failures
//     never roll back the attempt; they degrade the result and are logged and
//     audited, not swallowed.
type Processor struct {
	lists   lists.ListRepo
	items   lists.ItemRepo
	catalog Catalog
	store   records.Store
	audit   *audit.Service
	log     *slog.Logger

	clock func() time.Time
}

func NewProcessor(listRepo lists.ListRepo, itemRepo lists.ItemRepo, catalog Catalog, store records.Store, auditSvc *audit.Service, log *slog.Logger) *Processor {
	if log == nil {
		log = slog.Default()
	}
	return &Processor{
		lists:   listRepo,
		items:   itemRepo,
		catalog: catalog,
		store:   store,
		audit:   auditSvc,
		log:     log,
		clock:   time.Now,
	}
}

type ApplyRequest struct {
	WorkspaceID string
	ListID      string
	ItemID      string
	Code        string
	Notes       string
	AgentID     string
}

// SideEffect reports one named pipeline stage outcome.
type SideEffect struct {
	Name    string `json:"name"`
	Applied bool   `json:"applied"`
	Error   string `json:"error,omitempty"`
}

// Result is the full outcome of a disposition application. Degraded means the
// attempt was durably recorded but at least one side effect failed.
type Result struct {
	Item        lists.Item   `json:"item"`
	Disposition Disposition  `json:"disposition"`
	Effects     []SideEffect `json:"effects"`
	Degraded    bool         `json:"degraded"`
	Exhausted   bool         `json:"exhausted"`
}

const (
	effectListTransition = "list_transition"
	effectDNC            = "dnc"
	effectStatusUpdate   = "status_update"
	effectCallback       = "callback"
)

// Apply executes the disposition. Validation failures before the attempt is
// recorded abort with nothing mutated.
func (p *Processor) Apply(ctx context.Context, req ApplyRequest) (Result, error) {
	if req.WorkspaceID == "" || req.ListID == "" || req.ItemID == "" || req.Code == "" {
		return Result{}, fmt.Errorf("%w: workspace_id, list_id, item_id and code required", lists.ErrValidation)
	}

	d, err := p.catalog.Get(ctx, req.Code)
	if err != nil {
		return Result{}, err
	}

	l, err := p.lists.Get(ctx, req.WorkspaceID, req.ListID)
	if err != nil {
		return Result{}, err
	}
	it, err := p.items.GetItem(ctx, req.WorkspaceID, req.ItemID)
	if err != nil {
		return Result{}, err
	}
	if it.ListID != l.ID {
		return Result{}, fmt.Errorf("%w: item %s is not on list %s", lists.ErrNotFound, req.ItemID, req.ListID)
	}
	if it.Status != lists.ItemStatusInProgress && it.Status != lists.ItemStatusPending {
		return Result{}, fmt.Errorf("%w: item status %s", ErrInvalidState, it.Status)
	}

	now := p.clock().UTC()

	// The move target is validated before the transaction so a bad reference
	// degrades the list transition instead of poisoning the attempt record.
	var moveTarget *lists.CallList
	var moveErr error
	if d.MoveToListID != "" {
		tl, err := p.lists.Get(ctx, req.WorkspaceID, d.MoveToListID)
		if err != nil {
			moveErr = fmt.Errorf("move target %s: %w", d.MoveToListID, err)
		} else {
			moveTarget = &tl
		}
	}

	attempt := lists.Attempt{
		ID:          uuid.NewString(),
		WorkspaceID: req.WorkspaceID,
		ListID:      l.ID,
		ItemID:      it.ID,
		Disposition: d.Code,
		Notes:       req.Notes,
		AgentID:     req.AgentID,
		CreatedAt:   now,
	}

	// The transactional write below is conditional on the item still holding
	// this status, so a claim landing between our read and the write surfaces
	// as ErrConflict instead of being overwritten.
	fromStatus := it.Status

	updated := it
	updated.AttemptCount++
	updated.LastAttemptAt = &now
	next := nextEligible(now, l, d)
	updated.NextEligibleAt = &next
	updated.UpdatedAt = now

	res := Result{Disposition: d}

	switch {
	case moveTarget != nil:
		// Move: source item leaves this list, fresh item starts over on the
		// target list with the attempt counter reset.
		updated.Status = lists.ItemStatusRemoved
		dst := lists.Item{
			ID:           uuid.NewString(),
			WorkspaceID:  req.WorkspaceID,
			ListID:       moveTarget.ID,
			TargetType:   updated.TargetType,
			TargetID:     updated.TargetID,
			Status:       lists.ItemStatusPending,
			AttemptCount: 0,
			AssignedToID: updated.AssignedToID,
			OwnerID:      updated.OwnerID,
			Source:       lists.ItemSourceMoved,
			AddedAt:      now,
			UpdatedAt:    now,
		}
		if err := p.items.Move(ctx, attempt, updated, dst, fromStatus); err != nil {
			return Result{}, err
		}
		res.Effects = append(res.Effects, SideEffect{Name: effectListTransition, Applied: true})
	case d.RemoveFromList && moveErr == nil:
		updated.Status = lists.ItemStatusRemoved
		if err := p.items.RecordAttempt(ctx, attempt, updated, fromStatus); err != nil {
			return Result{}, err
		}
		res.Effects = append(res.Effects, SideEffect{Name: effectListTransition, Applied: true})
	default:
		updated.Status = lists.ItemStatusPending
		if err := p.items.RecordAttempt(ctx, attempt, updated, fromStatus); err != nil {
			return Result{}, err
		}
		if moveErr != nil {
			// Attempt recorded, item kept on the source list; the failed move
			// is a degraded side effect, not a lost item.
			res.Effects = append(res.Effects, p.failEffect(ctx, req, d, effectListTransition, moveErr))
			res.Degraded = true
		}
	}

	res.Item = updated
	res.Exhausted = updated.Status == lists.ItemStatusPending && updated.Exhausted(l)

	// Best-effort pipeline. Order is fixed: dnc, status write-back, callback.
	for _, h := range p.pipeline() {
		if !h.applies(d) {
			continue
		}
		if err := h.apply(ctx, req, d, updated, l); err != nil {
			res.Effects = append(res.Effects, p.failEffect(ctx, req, d, h.name, err))
			res.Degraded = true
			continue
		}
		res.Effects = append(res.Effects, SideEffect{Name: h.name, Applied: true})
	}

	if p.audit != nil {
		_ = p.audit.LogDisposition(ctx, req.WorkspaceID, req.AgentID, req.ListID, req.ItemID, d.Code, "")
	}
	return res, nil
}

type effectHandler struct {
	name    string
	applies func(Disposition) bool
	apply   func(ctx context.Context, req ApplyRequest, d Disposition, it lists.Item, l lists.CallList) error
}

// pipeline returns the ordered best-effort side-effect handlers. New effects
// slot in here without touching Apply.
func (p *Processor) pipeline() []effectHandler {
	return []effectHandler{
		{
			name:    effectDNC,
			applies: func(d Disposition) bool { return d.AddToDNC },
			apply: func(ctx context.Context, req ApplyRequest, _ Disposition, it lists.Item, _ lists.CallList) error {
				return p.store.SetDoNotCall(ctx, req.WorkspaceID, it.TargetID, true)
			},
		},
		{
			name:    effectStatusUpdate,
			applies: func(d Disposition) bool { return d.UpdateLeadStatus != "" },
			apply: func(ctx context.Context, req ApplyRequest, d Disposition, it lists.Item, _ lists.CallList) error {
				return p.store.SetStatus(ctx, req.WorkspaceID, it.TargetID, d.UpdateLeadStatus)
			},
		},
		{
			name:    effectCallback,
			applies: func(d Disposition) bool { return d.ScheduleCallback },
			apply:   p.scheduleCallback,
		},
	}
}

// scheduleCallback surfaces the callback obligation as a fresh pending item on
// the list's callback list (or the source list when none is configured).
func (p *Processor) scheduleCallback(ctx context.Context, req ApplyRequest, _ Disposition, it lists.Item, l lists.CallList) error {
	targetListID := l.CallbackListID
	if targetListID == "" {
		targetListID = l.ID
	}
	if _, err := p.lists.Get(ctx, req.WorkspaceID, targetListID); err != nil {
		return fmt.Errorf("callback list %s: %w", targetListID, err)
	}

	// Already represented? Then the obligation is covered.
	on, err := p.items.OnList(ctx, req.WorkspaceID, targetListID, it.TargetID)
	if err != nil {
		return err
	}
	if on && targetListID != l.ID {
		return nil
	}
	if on && targetListID == l.ID && it.Status == lists.ItemStatusPending {
		// The source item itself stays pending; it carries the callback.
		return nil
	}

	now := p.clock().UTC()
	cb := lists.Item{
		ID:           uuid.NewString(),
		WorkspaceID:  req.WorkspaceID,
		ListID:       targetListID,
		TargetType:   it.TargetType,
		TargetID:     it.TargetID,
		Status:       lists.ItemStatusPending,
		AssignedToID: req.AgentID,
		OwnerID:      it.OwnerID,
		Source:       lists.ItemSourceCallback,
		AddedAt:      now,
		UpdatedAt:    now,
	}
	return p.items.Insert(ctx, cb)
}

func (p *Processor) failEffect(ctx context.Context, req ApplyRequest, d Disposition, name string, err error) SideEffect {
	p.log.Error("disposition side effect failed",
		"effect", name,
		"workspace_id", req.WorkspaceID,
		"list_id", req.ListID,
		"item_id", req.ItemID,
		"code", d.Code,
		"err", err,
	)
	if p.audit != nil {
		_ = p.audit.LogSideEffectFailure(ctx, req.WorkspaceID, req.ListID, req.ItemID, d.Code, name, err.Error())
	}
	return SideEffect{Name: name, Applied: false, Error: err.Error()}
}

// nextEligible computes the cadence wait: terminal outcomes quarantine with
// the list cooldown, everything else waits the normal cadence interval.
func nextEligible(now time.Time, l lists.CallList, d Disposition) time.Time {
	if d.Terminal() {
		return now.Add(time.Duration(l.CooldownDays) * 24 * time.Hour)
	}
	return now.Add(time.Duration(l.CadenceHours) * time.Hour)
}
