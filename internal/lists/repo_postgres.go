package lists

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"dialer-platform/internal/records"
	"dialer-platform/pkg/utils"
)

// PostgresRepo implements ListRepo and ItemRepo on Postgres.
//
// NOTE: This repository assumes the following tables exist:
// - call_lists
// - call_list_items
// - call_attempts (immutable append-only)
//
// Claim safety relies on a conditional UPDATE: the transition only succeeds
// when the row is still pending at write time, so two agents can never claim
// the same item. The attempt/membership pair in RecordAttempt and Move is a
// single transaction.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

// --- ListRepo ---

func (r *PostgresRepo) Create(ctx context.Context, l CallList) error {
	states, criteria, err := encodeListJSON(l)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO call_lists (
  id, workspace_id, name, description, list_type, target_object,
  cadence_type, cadence_hours, max_attempts, cooldown_days, priority,
  states, filter_criteria, allow_overlap, reset_on_cooldown, callback_list_id,
  is_active, last_refreshed_at, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20
)
`
	_, err = r.db.ExecContext(ctx, q,
		l.ID, l.WorkspaceID, l.Name, l.Description, l.ListType, l.TargetObject,
		l.CadenceType, l.CadenceHours, l.MaxAttempts, l.CooldownDays, l.Priority,
		states, criteria, l.AllowOverlap, l.ResetOnCooldown, nullable(l.CallbackListID),
		l.IsActive, l.LastRefreshedAt, l.CreatedAt, l.UpdatedAt,
	)
	return err
}

func (r *PostgresRepo) Update(ctx context.Context, l CallList) error {
	states, criteria, err := encodeListJSON(l)
	if err != nil {
		return err
	}
	const q = `
UPDATE call_lists SET
  name = $3, description = $4, cadence_type = $5, cadence_hours = $6,
  max_attempts = $7, cooldown_days = $8, priority = $9, states = $10,
  filter_criteria = $11, allow_overlap = $12, reset_on_cooldown = $13,
  callback_list_id = $14, is_active = $15, updated_at = $16
WHERE workspace_id = $1 AND id = $2
`
	res, err := r.db.ExecContext(ctx, q,
		l.WorkspaceID, l.ID,
		l.Name, l.Description, l.CadenceType, l.CadenceHours,
		l.MaxAttempts, l.CooldownDays, l.Priority, states,
		criteria, l.AllowOverlap, l.ResetOnCooldown,
		nullable(l.CallbackListID), l.IsActive, l.UpdatedAt,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *PostgresRepo) Delete(ctx context.Context, workspaceID, listID string) error {
	return utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		// Membership cascades with the list. Attempt history stays for audit.
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM call_list_items WHERE workspace_id = $1 AND list_id = $2`,
			workspaceID, listID,
		); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`DELETE FROM call_lists WHERE workspace_id = $1 AND id = $2`,
			workspaceID, listID,
		)
		if err != nil {
			return err
		}
		return requireRow(res)
	})
}

const listColumns = `
id, workspace_id, name, description, list_type, target_object,
cadence_type, cadence_hours, max_attempts, cooldown_days, priority,
states, filter_criteria, allow_overlap, reset_on_cooldown, callback_list_id,
is_active, last_refreshed_at, created_at, updated_at
`

func (r *PostgresRepo) Get(ctx context.Context, workspaceID, listID string) (CallList, error) {
	q := `SELECT ` + listColumns + ` FROM call_lists WHERE workspace_id = $1 AND id = $2`
	row := r.db.QueryRowContext(ctx, q, workspaceID, listID)
	l, err := scanList(row)
	if errors.Is(err, sql.ErrNoRows) {
		return CallList{}, ErrNotFound
	}
	return l, err
}

func (r *PostgresRepo) List(ctx context.Context, workspaceID string, f ListFilter) ([]CallList, error) {
	q := `SELECT ` + listColumns + ` FROM call_lists WHERE workspace_id = $1`
	args := []any{workspaceID}
	if f.IsActive != nil {
		q += ` AND is_active = $2`
		args = append(args, *f.IsActive)
	}
	if f.Search != "" {
		q += ` AND name ILIKE '%' || $` + itoa(len(args)+1) + ` || '%'`
		args = append(args, f.Search)
	}
	q += ` ORDER BY priority DESC, name ASC`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]CallList, 0)
	for rows.Next() {
		l, err := scanList(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) MarkRefreshed(ctx context.Context, workspaceID, listID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE call_lists SET last_refreshed_at = $3, updated_at = $3 WHERE workspace_id = $1 AND id = $2`,
		workspaceID, listID, at,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// --- ItemRepo ---

const itemColumns = `
id, workspace_id, list_id, target_type, target_id, status,
attempt_count, last_attempt_at, next_eligible_at,
assigned_to_id, owner_id, source, added_at, updated_at
`

func (r *PostgresRepo) Insert(ctx context.Context, it Item) error {
	const q = `
INSERT INTO call_list_items (
  id, workspace_id, list_id, target_type, target_id, status,
  attempt_count, last_attempt_at, next_eligible_at,
  assigned_to_id, owner_id, source, added_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14
)
`
	_, err := r.db.ExecContext(ctx, q,
		it.ID, it.WorkspaceID, it.ListID, it.TargetType, it.TargetID, it.Status,
		it.AttemptCount, it.LastAttemptAt, it.NextEligibleAt,
		nullable(it.AssignedToID), nullable(it.OwnerID), it.Source, it.AddedAt, it.UpdatedAt,
	)
	return err
}

func (r *PostgresRepo) GetItem(ctx context.Context, workspaceID, itemID string) (Item, error) {
	q := `SELECT ` + itemColumns + ` FROM call_list_items WHERE workspace_id = $1 AND id = $2`
	it, err := scanItem(r.db.QueryRowContext(ctx, q, workspaceID, itemID))
	if errors.Is(err, sql.ErrNoRows) {
		return Item{}, ErrNotFound
	}
	return it, err
}

func (r *PostgresRepo) UpdateItem(ctx context.Context, it Item) error {
	const q = `
UPDATE call_list_items SET
  list_id = $3, status = $4, attempt_count = $5, last_attempt_at = $6,
  next_eligible_at = $7, assigned_to_id = $8, updated_at = $9
WHERE workspace_id = $1 AND id = $2
`
	res, err := r.db.ExecContext(ctx, q,
		it.WorkspaceID, it.ID,
		it.ListID, it.Status, it.AttemptCount, it.LastAttemptAt,
		it.NextEligibleAt, nullable(it.AssignedToID), it.UpdatedAt,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *PostgresRepo) Assign(ctx context.Context, workspaceID, itemID, agentID string, at time.Time) error {
	// Single-column conditional write: never touches status or attempt state,
	// so a claim or disposition landing first cannot be reverted.
	const q = `
UPDATE call_list_items
SET assigned_to_id = $3, updated_at = $4
WHERE workspace_id = $1 AND id = $2 AND status IN ('pending','in_progress')
`
	res, err := r.db.ExecContext(ctx, q, workspaceID, itemID, nullable(agentID), at)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, getErr := r.GetItem(ctx, workspaceID, itemID); errors.Is(getErr, ErrNotFound) {
			return ErrNotFound
		}
		return ErrConflict
	}
	return nil
}

func (r *PostgresRepo) ListByList(ctx context.Context, workspaceID, listID string, f ItemFilter) ([]Item, error) {
	q := `SELECT ` + itemColumns + ` FROM call_list_items WHERE workspace_id = $1 AND list_id = $2`
	args := []any{workspaceID, listID}
	if f.Status != "" {
		q += ` AND status = $3`
		args = append(args, f.Status)
	}
	if !f.Viewer.Manager {
		// Assignment wins over ownership: ownership only matters when unassigned.
		q += ` AND (assigned_to_id = $` + itoa(len(args)+1) +
			` OR (assigned_to_id IS NULL AND owner_id = $` + itoa(len(args)+1) + `))`
		args = append(args, f.Viewer.UserID)
	}
	q += ` ORDER BY added_at ASC`
	if f.Limit > 0 {
		q += ` LIMIT $` + itoa(len(args)+1)
		args = append(args, f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectItems(rows)
}

func (r *PostgresRepo) OnActiveList(ctx context.Context, workspaceID, targetID string) (bool, error) {
	const q = `
SELECT EXISTS (
  SELECT 1
  FROM call_list_items i
  JOIN call_lists l ON l.workspace_id = i.workspace_id AND l.id = i.list_id
  WHERE i.workspace_id = $1 AND i.target_id = $2
    AND i.status IN ('pending','in_progress')
    AND l.is_active
)
`
	var exists bool
	err := r.db.QueryRowContext(ctx, q, workspaceID, targetID).Scan(&exists)
	return exists, err
}

func (r *PostgresRepo) OnList(ctx context.Context, workspaceID, listID, targetID string) (bool, error) {
	const q = `
SELECT EXISTS (
  SELECT 1 FROM call_list_items
  WHERE workspace_id = $1 AND list_id = $2 AND target_id = $3
    AND status IN ('pending','in_progress')
)
`
	var exists bool
	err := r.db.QueryRowContext(ctx, q, workspaceID, listID, targetID).Scan(&exists)
	return exists, err
}

func (r *PostgresRepo) Candidates(ctx context.Context, l CallList, v Viewer, now time.Time, limit int) ([]Item, error) {
	q := `SELECT ` + itemColumns + `
FROM call_list_items
WHERE workspace_id = $1 AND list_id = $2
  AND status = 'pending'
  AND (next_eligible_at IS NULL OR next_eligible_at <= $3)`
	args := []any{l.WorkspaceID, l.ID, now}

	if !l.ResetOnCooldown {
		q += ` AND attempt_count < $4`
		args = append(args, l.MaxAttempts)
	}
	if !v.Manager {
		q += ` AND (assigned_to_id = $` + itoa(len(args)+1) +
			` OR (assigned_to_id IS NULL AND owner_id = $` + itoa(len(args)+1) + `))`
		args = append(args, v.UserID)
	}
	// Fairness: never-attempted first, then longest waiting.
	q += ` ORDER BY last_attempt_at ASC NULLS FIRST, added_at ASC`
	if limit > 0 {
		q += ` LIMIT $` + itoa(len(args)+1)
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectItems(rows)
}

func (r *PostgresRepo) Claim(ctx context.Context, workspaceID, itemID string, at time.Time) (Item, error) {
	// Conditional claim: only succeeds if still pending at write time.
	q := `
UPDATE call_list_items
SET status = 'in_progress', last_attempt_at = $3, updated_at = $3
WHERE workspace_id = $1 AND id = $2 AND status = 'pending'
RETURNING ` + itemColumns
	it, err := scanItem(r.db.QueryRowContext(ctx, q, workspaceID, itemID, at))
	if errors.Is(err, sql.ErrNoRows) {
		// Either the item vanished or someone else got there first.
		if _, getErr := r.Get(ctx, workspaceID, itemID); errors.Is(getErr, ErrNotFound) {
			return Item{}, ErrNotFound
		}
		return Item{}, ErrConflict
	}
	return it, err
}

func (r *PostgresRepo) Release(ctx context.Context, workspaceID, itemID string) (Item, error) {
	q := `
UPDATE call_list_items
SET status = 'pending', updated_at = now()
WHERE workspace_id = $1 AND id = $2 AND status = 'in_progress'
RETURNING ` + itemColumns
	it, err := scanItem(r.db.QueryRowContext(ctx, q, workspaceID, itemID))
	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := r.Get(ctx, workspaceID, itemID); errors.Is(getErr, ErrNotFound) {
			return Item{}, ErrNotFound
		}
		return Item{}, ErrConflict
	}
	return it, err
}

func (r *PostgresRepo) RecordAttempt(ctx context.Context, a Attempt, it Item, from ItemStatus) error {
	return utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		if err := insertAttempt(ctx, tx, a); err != nil {
			return err
		}
		return updateItemGuardedTx(ctx, tx, it, from)
	})
}

func (r *PostgresRepo) Move(ctx context.Context, a Attempt, src Item, dst Item, from ItemStatus) error {
	return utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		if err := insertAttempt(ctx, tx, a); err != nil {
			return err
		}
		if err := updateItemGuardedTx(ctx, tx, src, from); err != nil {
			return err
		}
		const q = `
INSERT INTO call_list_items (
  id, workspace_id, list_id, target_type, target_id, status,
  attempt_count, last_attempt_at, next_eligible_at,
  assigned_to_id, owner_id, source, added_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14
)
`
		_, err := tx.ExecContext(ctx, q,
			dst.ID, dst.WorkspaceID, dst.ListID, dst.TargetType, dst.TargetID, dst.Status,
			dst.AttemptCount, dst.LastAttemptAt, dst.NextEligibleAt,
			nullable(dst.AssignedToID), nullable(dst.OwnerID), dst.Source, dst.AddedAt, dst.UpdatedAt,
		)
		return err
	})
}

func (r *PostgresRepo) ListAttempts(ctx context.Context, workspaceID, itemID string) ([]Attempt, error) {
	const q = `
SELECT id, workspace_id, list_id, item_id, disposition, notes, agent_id, created_at
FROM call_attempts
WHERE workspace_id = $1 AND item_id = $2
ORDER BY created_at ASC
`
	rows, err := r.db.QueryContext(ctx, q, workspaceID, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Attempt, 0)
	for rows.Next() {
		var a Attempt
		var notes, agent sql.NullString
		if err := rows.Scan(&a.ID, &a.WorkspaceID, &a.ListID, &a.ItemID, &a.Disposition, &notes, &agent, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Notes = notes.String
		a.AgentID = agent.String
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) CountByStatus(ctx context.Context, workspaceID, listID string) (map[ItemStatus]int, error) {
	const q = `
SELECT status, COUNT(*)
FROM call_list_items
WHERE workspace_id = $1 AND list_id = $2
GROUP BY status
`
	rows, err := r.db.QueryContext(ctx, q, workspaceID, listID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[ItemStatus]int{}
	for rows.Next() {
		var st ItemStatus
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, err
		}
		out[st] = n
	}
	return out, rows.Err()
}

// --- helpers ---

func insertAttempt(ctx context.Context, tx *sql.Tx, a Attempt) error {
	const q = `
INSERT INTO call_attempts (
  id, workspace_id, list_id, item_id, disposition, notes, agent_id, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8
)
`
	_, err := tx.ExecContext(ctx, q,
		a.ID, a.WorkspaceID, a.ListID, a.ItemID, a.Disposition,
		nullable(a.Notes), nullable(a.AgentID), a.CreatedAt,
	)
	return err
}

// updateItemGuardedTx writes the full row only while the stored status still
// matches what the caller read; a lost race rolls the transaction back with
// ErrConflict instead of clobbering the concurrent write.
func updateItemGuardedTx(ctx context.Context, tx *sql.Tx, it Item, from ItemStatus) error {
	const q = `
UPDATE call_list_items SET
  list_id = $3, status = $4, attempt_count = $5, last_attempt_at = $6,
  next_eligible_at = $7, assigned_to_id = $8, updated_at = $9
WHERE workspace_id = $1 AND id = $2 AND status = $10
`
	res, err := tx.ExecContext(ctx, q,
		it.WorkspaceID, it.ID,
		it.ListID, it.Status, it.AttemptCount, it.LastAttemptAt,
		it.NextEligibleAt, nullable(it.AssignedToID), it.UpdatedAt,
		from,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM call_list_items WHERE workspace_id = $1 AND id = $2)`,
			it.WorkspaceID, it.ID,
		).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrConflict
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanList(row rowScanner) (CallList, error) {
	var l CallList
	var desc, callback sql.NullString
	var states, criteria sql.NullString
	var refreshed sql.NullTime
	err := row.Scan(
		&l.ID, &l.WorkspaceID, &l.Name, &desc, &l.ListType, &l.TargetObject,
		&l.CadenceType, &l.CadenceHours, &l.MaxAttempts, &l.CooldownDays, &l.Priority,
		&states, &criteria, &l.AllowOverlap, &l.ResetOnCooldown, &callback,
		&l.IsActive, &refreshed, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return CallList{}, err
	}
	l.Description = desc.String
	l.CallbackListID = callback.String
	if refreshed.Valid {
		t := refreshed.Time
		l.LastRefreshedAt = &t
	}
	if states.Valid && states.String != "" {
		if err := json.Unmarshal([]byte(states.String), &l.States); err != nil {
			return CallList{}, err
		}
	}
	if criteria.Valid && criteria.String != "" {
		var f records.Filter
		if err := json.Unmarshal([]byte(criteria.String), &f); err != nil {
			return CallList{}, err
		}
		l.FilterCriteria = &f
	}
	return l, nil
}

func scanItem(row rowScanner) (Item, error) {
	var it Item
	var lastAt, nextAt sql.NullTime
	var assigned, owner sql.NullString
	err := row.Scan(
		&it.ID, &it.WorkspaceID, &it.ListID, &it.TargetType, &it.TargetID, &it.Status,
		&it.AttemptCount, &lastAt, &nextAt,
		&assigned, &owner, &it.Source, &it.AddedAt, &it.UpdatedAt,
	)
	if err != nil {
		return Item{}, err
	}
	if lastAt.Valid {
		t := lastAt.Time
		it.LastAttemptAt = &t
	}
	if nextAt.Valid {
		t := nextAt.Time
		it.NextEligibleAt = &t
	}
	it.AssignedToID = assigned.String
	it.OwnerID = owner.String
	return it, nil
}

func collectItems(rows *sql.Rows) ([]Item, error) {
	out := make([]Item, 0)
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func encodeListJSON(l CallList) (states, criteria sql.NullString, err error) {
	if len(l.States) > 0 {
		b, e := json.Marshal(l.States)
		if e != nil {
			return states, criteria, e
		}
		states = sql.NullString{String: string(b), Valid: true}
	}
	if l.FilterCriteria != nil {
		b, e := json.Marshal(l.FilterCriteria)
		if e != nil {
			return states, criteria, e
		}
		criteria = sql.NullString{String: string(b), Valid: true}
	}
	return states, criteria, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func itoa(n int) string { return strconv.Itoa(n) }
