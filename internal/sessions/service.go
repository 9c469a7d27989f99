package sessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dialer-platform/internal/lists"

	"github.com/google/uuid"
)

var (
	ErrNotFound     = errors.New("sessions: not found")
	ErrConflict     = errors.New("sessions: agent already has an open session")
	ErrSessionEnded = errors.New("sessions: session already ended")
	ErrNotOwner     = errors.New("sessions: caller does not own this session")
	ErrInvalid      = errors.New("sessions: invalid request")
)

// Repo is the persistence contract for calling sessions.
//
// CreateOpen must be atomic with respect to the one-open-session-per-agent
// invariant: two concurrent creates for the same agent must not both succeed
// (Postgres: partial unique index on (workspace_id, agent_id) WHERE ended_at
// IS NULL; memory: check-and-insert under one mutex).
type Repo interface {
	CreateOpen(ctx context.Context, s CallSession) error
	Get(ctx context.Context, workspaceID, sessionID string) (CallSession, error)
	Update(ctx context.Context, s CallSession) error
	OpenByAgent(ctx context.Context, workspaceID, agentID string) (CallSession, bool, error)
	ListOpen(ctx context.Context, workspaceID string) ([]CallSession, error)
}

// ListSource resolves the list a session binds to. Satisfied by the lists
// repositories.
type ListSource interface {
	Get(ctx context.Context, workspaceID, listID string) (lists.CallList, error)
}

// Service runs the session state machine.
type Service struct {
	repo  Repo
	lists ListSource
	clock func() time.Time
}

func NewService(repo Repo, listSource ListSource) *Service {
	return &Service{repo: repo, lists: listSource, clock: time.Now}
}

// Start opens a session for the agent, counters zeroed. The list must exist
// and be active in the workspace; a session against a dead list would never
// serve a queue pull.
// Fails with ErrConflict while the agent still has an open session.
func (s *Service) Start(ctx context.Context, workspaceID, agentID, listID, dialerMode string) (CallSession, error) {
	if workspaceID == "" || agentID == "" || listID == "" {
		return CallSession{}, fmt.Errorf("%w: workspace_id, agent_id and list_id required", ErrInvalid)
	}
	l, err := s.lists.Get(ctx, workspaceID, listID)
	if err != nil {
		return CallSession{}, err
	}
	if !l.IsActive {
		return CallSession{}, fmt.Errorf("%w: list %s is not active", ErrInvalid, listID)
	}

	sess := CallSession{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		AgentID:     agentID,
		ListID:      listID,
		DialerMode:  dialerMode,
		StartedAt:   s.clock().UTC(),
	}
	if err := s.repo.CreateOpen(ctx, sess); err != nil {
		return CallSession{}, err
	}
	return sess, nil
}

// TogglePause flips active <-> paused. Illegal once ended.
func (s *Service) TogglePause(ctx context.Context, workspaceID, agentID, sessionID string) (CallSession, error) {
	sess, err := s.owned(ctx, workspaceID, agentID, sessionID)
	if err != nil {
		return CallSession{}, err
	}
	if sess.Ended() {
		return CallSession{}, ErrSessionEnded
	}

	if sess.Paused() {
		sess.PausedAt = nil
	} else {
		now := s.clock().UTC()
		sess.PausedAt = &now
	}
	if err := s.repo.Update(ctx, sess); err != nil {
		return CallSession{}, err
	}
	return sess, nil
}

// RecordCall adds one call to the session counters. Legal while active or
// paused (a call in flight when the agent paused still completes its
// recording), never once ended.
func (s *Service) RecordCall(ctx context.Context, workspaceID, agentID, sessionID string, connected bool, talkTimeMs int64) (CallSession, error) {
	if talkTimeMs < 0 {
		return CallSession{}, fmt.Errorf("%w: talk_time_ms must be >= 0", ErrInvalid)
	}
	sess, err := s.owned(ctx, workspaceID, agentID, sessionID)
	if err != nil {
		return CallSession{}, err
	}
	if sess.Ended() {
		// Late recordings against an ended session are rejected rather than
		// corrupting the frozen counters.
		return CallSession{}, ErrSessionEnded
	}

	sess.TotalCalls++
	if connected {
		sess.ConnectedCalls++
		sess.TotalTalkTimeMs += talkTimeMs
	}
	if err := s.repo.Update(ctx, sess); err != nil {
		return CallSession{}, err
	}
	return sess, nil
}

// End closes the session. Terminal: every later mutation fails.
func (s *Service) End(ctx context.Context, workspaceID, agentID, sessionID, reason string) (CallSession, error) {
	sess, err := s.owned(ctx, workspaceID, agentID, sessionID)
	if err != nil {
		return CallSession{}, err
	}
	if sess.Ended() {
		return CallSession{}, ErrSessionEnded
	}
	if reason == "" {
		reason = EndReasonUserEnded
	}

	now := s.clock().UTC()
	sess.EndedAt = &now
	sess.EndReason = reason
	if err := s.repo.Update(ctx, sess); err != nil {
		return CallSession{}, err
	}
	return sess, nil
}

func (s *Service) Get(ctx context.Context, workspaceID, sessionID string) (CallSession, error) {
	return s.repo.Get(ctx, workspaceID, sessionID)
}

func (s *Service) OpenByAgent(ctx context.Context, workspaceID, agentID string) (CallSession, bool, error) {
	return s.repo.OpenByAgent(ctx, workspaceID, agentID)
}

func (s *Service) ListOpen(ctx context.Context, workspaceID string) ([]CallSession, error) {
	return s.repo.ListOpen(ctx, workspaceID)
}

func (s *Service) owned(ctx context.Context, workspaceID, agentID, sessionID string) (CallSession, error) {
	if workspaceID == "" || sessionID == "" {
		return CallSession{}, fmt.Errorf("%w: workspace_id and session_id required", ErrInvalid)
	}
	sess, err := s.repo.Get(ctx, workspaceID, sessionID)
	if err != nil {
		return CallSession{}, err
	}
	if agentID != "" && sess.AgentID != agentID {
		return CallSession{}, ErrNotOwner
	}
	return sess, nil
}
