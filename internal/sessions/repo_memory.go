package sessions

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory session store for tests and early development.
// The check-and-insert in CreateOpen runs under one mutex, matching the
// atomicity the Postgres partial unique index provides.
type MemoryRepo struct {
	mu       sync.Mutex
	sessions map[string]CallSession // key: workspace_id|session_id
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{sessions: map[string]CallSession{}}
}

func key(workspaceID, id string) string { return workspaceID + "|" + id }

func (r *MemoryRepo) CreateOpen(ctx context.Context, s CallSession) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.sessions {
		if existing.WorkspaceID == s.WorkspaceID && existing.AgentID == s.AgentID && !existing.Ended() {
			return ErrConflict
		}
	}
	r.sessions[key(s.WorkspaceID, s.ID)] = s
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, workspaceID, sessionID string) (CallSession, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[key(workspaceID, sessionID)]
	if !ok {
		return CallSession{}, ErrNotFound
	}
	return s, nil
}

func (r *MemoryRepo) Update(ctx context.Context, s CallSession) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[key(s.WorkspaceID, s.ID)]; !ok {
		return ErrNotFound
	}
	r.sessions[key(s.WorkspaceID, s.ID)] = s
	return nil
}

func (r *MemoryRepo) OpenByAgent(ctx context.Context, workspaceID, agentID string) (CallSession, bool, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.WorkspaceID == workspaceID && s.AgentID == agentID && !s.Ended() {
			return s, true, nil
		}
	}
	return CallSession{}, false, nil
}

func (r *MemoryRepo) ListOpen(ctx context.Context, workspaceID string) ([]CallSession, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]CallSession, 0)
	for _, s := range r.sessions {
		if s.WorkspaceID == workspaceID && !s.Ended() {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}
