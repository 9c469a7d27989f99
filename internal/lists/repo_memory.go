package lists

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryRepo is an in-memory implementation of ListRepo and ItemRepo for tests
// and early development. It honors the same atomicity contracts as the
// Postgres repo: claims are conditional under one mutex, and attempt/membership
// mutations are applied together.
type MemoryRepo struct {
	mu sync.Mutex

	lists    map[string]CallList // key: workspace|list_id
	items    map[string]Item     // key: workspace|item_id
	attempts []Attempt
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		lists: map[string]CallList{},
		items: map[string]Item{},
	}
}

func memKey(workspaceID, id string) string { return workspaceID + "|" + id }

// --- ListRepo ---

func (r *MemoryRepo) Create(ctx context.Context, l CallList) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.lists[memKey(l.WorkspaceID, l.ID)]; ok {
		return ErrConflict
	}
	r.lists[memKey(l.WorkspaceID, l.ID)] = l
	return nil
}

func (r *MemoryRepo) Update(ctx context.Context, l CallList) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.lists[memKey(l.WorkspaceID, l.ID)]; !ok {
		return ErrNotFound
	}
	r.lists[memKey(l.WorkspaceID, l.ID)] = l
	return nil
}

func (r *MemoryRepo) Delete(ctx context.Context, workspaceID, listID string) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.lists[memKey(workspaceID, listID)]; !ok {
		return ErrNotFound
	}
	delete(r.lists, memKey(workspaceID, listID))
	// Cascade: membership rows go with the list.
	for k, it := range r.items {
		if it.WorkspaceID == workspaceID && it.ListID == listID {
			delete(r.items, k)
		}
	}
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, workspaceID, listID string) (CallList, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lists[memKey(workspaceID, listID)]
	if !ok {
		return CallList{}, ErrNotFound
	}
	return l, nil
}

func (r *MemoryRepo) List(ctx context.Context, workspaceID string, f ListFilter) ([]CallList, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]CallList, 0)
	for _, l := range r.lists {
		if l.WorkspaceID != workspaceID {
			continue
		}
		if f.IsActive != nil && l.IsActive != *f.IsActive {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(l.Name), strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (r *MemoryRepo) MarkRefreshed(ctx context.Context, workspaceID, listID string, at time.Time) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lists[memKey(workspaceID, listID)]
	if !ok {
		return ErrNotFound
	}
	t := at
	l.LastRefreshedAt = &t
	l.UpdatedAt = at
	r.lists[memKey(workspaceID, listID)] = l
	return nil
}

// --- ItemRepo ---

func (r *MemoryRepo) Insert(ctx context.Context, it Item) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[memKey(it.WorkspaceID, it.ID)]; ok {
		return ErrConflict
	}
	r.items[memKey(it.WorkspaceID, it.ID)] = it
	return nil
}

func (r *MemoryRepo) GetItem(ctx context.Context, workspaceID, itemID string) (Item, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[memKey(workspaceID, itemID)]
	if !ok {
		return Item{}, ErrNotFound
	}
	return it, nil
}

func (r *MemoryRepo) UpdateItem(ctx context.Context, it Item) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[memKey(it.WorkspaceID, it.ID)]; !ok {
		return ErrNotFound
	}
	r.items[memKey(it.WorkspaceID, it.ID)] = it
	return nil
}

func (r *MemoryRepo) Assign(ctx context.Context, workspaceID, itemID, agentID string, at time.Time) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[memKey(workspaceID, itemID)]
	if !ok {
		return ErrNotFound
	}
	if it.Status != ItemStatusPending && it.Status != ItemStatusInProgress {
		return ErrConflict
	}
	// Only the assignment moves; status and attempt state stay untouched.
	it.AssignedToID = agentID
	it.UpdatedAt = at
	r.items[memKey(workspaceID, itemID)] = it
	return nil
}

func (r *MemoryRepo) ListByList(ctx context.Context, workspaceID, listID string, f ItemFilter) ([]Item, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Item, 0)
	for _, it := range r.items {
		if it.WorkspaceID != workspaceID || it.ListID != listID {
			continue
		}
		if f.Status != "" && it.Status != f.Status {
			continue
		}
		if !f.Viewer.CanSee(it) {
			continue
		}
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AddedAt.Before(out[j].AddedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *MemoryRepo) OnActiveList(ctx context.Context, workspaceID, targetID string) (bool, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, it := range r.items {
		if it.WorkspaceID != workspaceID || it.TargetID != targetID {
			continue
		}
		if it.Status != ItemStatusPending && it.Status != ItemStatusInProgress {
			continue
		}
		l, ok := r.lists[memKey(workspaceID, it.ListID)]
		if ok && l.IsActive {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryRepo) OnList(ctx context.Context, workspaceID, listID, targetID string) (bool, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, it := range r.items {
		if it.WorkspaceID != workspaceID || it.ListID != listID || it.TargetID != targetID {
			continue
		}
		if it.Status == ItemStatusPending || it.Status == ItemStatusInProgress {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryRepo) Candidates(ctx context.Context, l CallList, v Viewer, now time.Time, limit int) ([]Item, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Item, 0)
	for _, it := range r.items {
		if it.WorkspaceID != l.WorkspaceID || it.ListID != l.ID {
			continue
		}
		if !eligible(it, l, now) {
			continue
		}
		if !v.CanSee(it) {
			continue
		}
		out = append(out, it)
	}

	// Never-attempted items first, then longest waiting.
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.LastAttemptAt == nil && b.LastAttemptAt == nil {
			return a.AddedAt.Before(b.AddedAt)
		}
		if a.LastAttemptAt == nil {
			return true
		}
		if b.LastAttemptAt == nil {
			return false
		}
		return a.LastAttemptAt.Before(*b.LastAttemptAt)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// eligible applies the cadence policy: pending, not waiting, not exhausted.
// The now >= next_eligible_at boundary is inclusive.
func eligible(it Item, l CallList, now time.Time) bool {
	if it.Status != ItemStatusPending {
		return false
	}
	if it.NextEligibleAt != nil && now.Before(*it.NextEligibleAt) {
		return false
	}
	if it.Exhausted(l) && !l.ResetOnCooldown {
		return false
	}
	return true
}

func (r *MemoryRepo) Claim(ctx context.Context, workspaceID, itemID string, at time.Time) (Item, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[memKey(workspaceID, itemID)]
	if !ok {
		return Item{}, ErrNotFound
	}
	if it.Status != ItemStatusPending {
		return Item{}, ErrConflict
	}
	t := at
	it.Status = ItemStatusInProgress
	it.LastAttemptAt = &t
	it.UpdatedAt = at
	r.items[memKey(workspaceID, itemID)] = it
	return it, nil
}

func (r *MemoryRepo) Release(ctx context.Context, workspaceID, itemID string) (Item, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[memKey(workspaceID, itemID)]
	if !ok {
		return Item{}, ErrNotFound
	}
	if it.Status != ItemStatusInProgress {
		return Item{}, ErrConflict
	}
	it.Status = ItemStatusPending
	r.items[memKey(workspaceID, itemID)] = it
	return it, nil
}

func (r *MemoryRepo) RecordAttempt(ctx context.Context, a Attempt, it Item, from ItemStatus) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.items[memKey(it.WorkspaceID, it.ID)]
	if !ok {
		return ErrNotFound
	}
	if cur.Status != from {
		return ErrConflict
	}
	r.attempts = append(r.attempts, a)
	r.items[memKey(it.WorkspaceID, it.ID)] = it
	return nil
}

func (r *MemoryRepo) Move(ctx context.Context, a Attempt, src Item, dst Item, from ItemStatus) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.items[memKey(src.WorkspaceID, src.ID)]
	if !ok {
		return ErrNotFound
	}
	if cur.Status != from {
		return ErrConflict
	}
	if _, ok := r.items[memKey(dst.WorkspaceID, dst.ID)]; ok {
		return ErrConflict
	}
	r.attempts = append(r.attempts, a)
	r.items[memKey(src.WorkspaceID, src.ID)] = src
	r.items[memKey(dst.WorkspaceID, dst.ID)] = dst
	return nil
}

func (r *MemoryRepo) ListAttempts(ctx context.Context, workspaceID, itemID string) ([]Attempt, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Attempt, 0)
	for _, a := range r.attempts {
		if a.WorkspaceID == workspaceID && a.ItemID == itemID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *MemoryRepo) CountByStatus(ctx context.Context, workspaceID, listID string) (map[ItemStatus]int, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[ItemStatus]int{}
	for _, it := range r.items {
		if it.WorkspaceID == workspaceID && it.ListID == listID {
			out[it.Status]++
		}
	}
	return out, nil
}

// MemoryLocker is an in-process Locker for tests and single-node development.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]string
}

func NewMemoryLocker() *MemoryLocker { return &MemoryLocker{held: map[string]string{}} }

func (l *MemoryLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	_ = ctx
	_ = ttl
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return "", false, nil
	}
	token := key + "-token"
	l.held[key] = token
	return token, true, nil
}

func (l *MemoryLocker) Release(ctx context.Context, key, token string) error {
	_ = ctx
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
	}
	return nil
}
