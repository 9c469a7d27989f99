package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// PostgresStore reads and narrowly mutates the CRM `records` table.
//
// NOTE: Assumed schema columns:
// id, workspace_id, type, owner_id, status, state, phone, do_not_call,
// fields (jsonb), created_at, updated_at
//
// Filters evaluate in-process against the fetched candidate set rather than
// being compiled to SQL. Candidate sets are bounded per workspace and type,
// and keeping one evaluator (Filter.Match) means the memory store and this
// store cannot drift on operator semantics.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

const recordColumns = `id, workspace_id, type, owner_id, status, state, phone, do_not_call, fields, created_at, updated_at`

func (s *PostgresStore) Get(ctx context.Context, workspaceID, recordID string) (Record, error) {
	q := `SELECT ` + recordColumns + ` FROM records WHERE workspace_id = $1 AND id = $2`
	row := s.db.QueryRowContext(ctx, q, workspaceID, recordID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

func (s *PostgresStore) Match(ctx context.Context, workspaceID string, typ RecordType, f Filter) ([]Record, error) {
	// Validate up front: a malformed filter returns ErrFilter with no partial results.
	if err := f.Validate(); err != nil {
		return nil, err
	}

	q := `SELECT ` + recordColumns + ` FROM records WHERE workspace_id = $1 AND type = $2 ORDER BY created_at ASC`
	rows, err := s.db.QueryContext(ctx, q, workspaceID, typ)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		ok, err := f.Match(rec)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out, rows.Err()
}

func (s *PostgresStore) SetDoNotCall(ctx context.Context, workspaceID, recordID string, dnc bool) error {
	const q = `UPDATE records SET do_not_call = $3, updated_at = $4 WHERE workspace_id = $1 AND id = $2`
	return s.exec(ctx, q, workspaceID, recordID, dnc, time.Now().UTC())
}

func (s *PostgresStore) SetStatus(ctx context.Context, workspaceID, recordID, status string) error {
	const q = `UPDATE records SET status = $3, updated_at = $4 WHERE workspace_id = $1 AND id = $2`
	return s.exec(ctx, q, workspaceID, recordID, status, time.Now().UTC())
}

func (s *PostgresStore) exec(ctx context.Context, q string, args ...any) error {
	res, err := s.db.ExecContext(ctx, q, args...)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		rec    Record
		owner  sql.NullString
		status sql.NullString
		state  sql.NullString
		phone  sql.NullString
		fields []byte
	)
	err := row.Scan(
		&rec.ID, &rec.WorkspaceID, &rec.Type, &owner, &status, &state, &phone,
		&rec.DoNotCall, &fields, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return Record{}, err
	}
	rec.OwnerID = owner.String
	rec.Status = status.String
	rec.State = state.String
	rec.Phone = phone.String
	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &rec.Fields); err != nil {
			return Record{}, fmt.Errorf("decode record fields: %w", err)
		}
	}
	return rec, nil
}
