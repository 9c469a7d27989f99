package sessions

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgresRepo implements Repo on Postgres.
//
// NOTE: This repository assumes:
// - Table call_sessions.
// - A partial unique index enforcing one open session per agent:
//   CREATE UNIQUE INDEX call_sessions_open_per_agent
//   ON call_sessions (workspace_id, agent_id) WHERE ended_at IS NULL;
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const uniqueViolation = "23505"

const sessionColumns = `
id, workspace_id, agent_id, list_id, dialer_mode,
started_at, paused_at, ended_at, end_reason,
total_calls, connected_calls, total_talk_time_ms
`

func (r *PostgresRepo) CreateOpen(ctx context.Context, s CallSession) error {
	const q = `
INSERT INTO call_sessions (
  id, workspace_id, agent_id, list_id, dialer_mode,
  started_at, paused_at, ended_at, end_reason,
  total_calls, connected_calls, total_talk_time_ms
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
)
`
	_, err := r.db.ExecContext(ctx, q,
		s.ID, s.WorkspaceID, s.AgentID, s.ListID, s.DialerMode,
		s.StartedAt, s.PausedAt, s.EndedAt, nullString(s.EndReason),
		s.TotalCalls, s.ConnectedCalls, s.TotalTalkTimeMs,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (r *PostgresRepo) Get(ctx context.Context, workspaceID, sessionID string) (CallSession, error) {
	q := `SELECT ` + sessionColumns + ` FROM call_sessions WHERE workspace_id = $1 AND id = $2`
	s, err := scanSession(r.db.QueryRowContext(ctx, q, workspaceID, sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return CallSession{}, ErrNotFound
	}
	return s, err
}

func (r *PostgresRepo) Update(ctx context.Context, s CallSession) error {
	const q = `
UPDATE call_sessions SET
  paused_at = $3, ended_at = $4, end_reason = $5,
  total_calls = $6, connected_calls = $7, total_talk_time_ms = $8
WHERE workspace_id = $1 AND id = $2
`
	res, err := r.db.ExecContext(ctx, q,
		s.WorkspaceID, s.ID,
		s.PausedAt, s.EndedAt, nullString(s.EndReason),
		s.TotalCalls, s.ConnectedCalls, s.TotalTalkTimeMs,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) OpenByAgent(ctx context.Context, workspaceID, agentID string) (CallSession, bool, error) {
	q := `SELECT ` + sessionColumns + `
FROM call_sessions
WHERE workspace_id = $1 AND agent_id = $2 AND ended_at IS NULL
LIMIT 1`
	s, err := scanSession(r.db.QueryRowContext(ctx, q, workspaceID, agentID))
	if errors.Is(err, sql.ErrNoRows) {
		return CallSession{}, false, nil
	}
	if err != nil {
		return CallSession{}, false, err
	}
	return s, true, nil
}

func (r *PostgresRepo) ListOpen(ctx context.Context, workspaceID string) ([]CallSession, error) {
	q := `SELECT ` + sessionColumns + `
FROM call_sessions
WHERE workspace_id = $1 AND ended_at IS NULL
ORDER BY started_at ASC`
	rows, err := r.db.QueryContext(ctx, q, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]CallSession, 0)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (CallSession, error) {
	var s CallSession
	var paused, ended sql.NullTime
	var reason sql.NullString
	err := row.Scan(
		&s.ID, &s.WorkspaceID, &s.AgentID, &s.ListID, &s.DialerMode,
		&s.StartedAt, &paused, &ended, &reason,
		&s.TotalCalls, &s.ConnectedCalls, &s.TotalTalkTimeMs,
	)
	if err != nil {
		return CallSession{}, err
	}
	if paused.Valid {
		t := paused.Time
		s.PausedAt = &t
	}
	if ended.Valid {
		t := ended.Time
		s.EndedAt = &t
	}
	s.EndReason = reason.String
	return s, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
