package repo

import (
	"context"
	"database/sql"

	"siteline/internal/domain"
)

const assignmentCols = `id,worker_id,subtask_id,starts_at,ends_at,status,assigned_by,created_at`

func scanAssignment(row interface{ Scan(...any) error }) (domain.Assignment, error) {
	var a domain.Assignment
	err := row.Scan(&a.ID, &a.WorkerID, &a.SubtaskID, &a.StartsAt, &a.EndsAt, &a.Status, &a.AssignedBy, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	return a, err
}

func (r Repo) InsertAssignment(ctx context.Context, tx *sql.Tx, a domain.Assignment) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO assignments(id,worker_id,subtask_id,starts_at,ends_at,status,assigned_by,created_at) VALUES (?,?,?,?,?,?,?,?)`,
		a.ID, a.WorkerID, a.SubtaskID, a.StartsAt, a.EndsAt, a.Status, a.AssignedBy, a.CreatedAt)
	return err
}

func (r Repo) GetAssignment(ctx context.Context, id string) (domain.Assignment, error) {
	return scanAssignment(r.DB.QueryRowContext(ctx, `SELECT `+assignmentCols+` FROM assignments WHERE id=?`, id))
}

func (r Repo) GetAssignmentTx(ctx context.Context, tx *sql.Tx, id string) (domain.Assignment, error) {
	return scanAssignment(tx.QueryRowContext(ctx, `SELECT `+assignmentCols+` FROM assignments WHERE id=?`, id))
}

func (r Repo) ListWorkerAssignments(ctx context.Context, workerID string) ([]domain.Assignment, error) {
	return r.listAssignments(ctx, r.DB.QueryContext, `worker_id=?`, workerID)
}

// ListActiveWorkerAssignmentsTx returns the worker's non-cancelled
// assignments inside the allocator transaction, for the double-booking
// check. Cancelled assignments no longer block a slot.
func (r Repo) ListActiveWorkerAssignmentsTx(ctx context.Context, tx *sql.Tx, workerID string) ([]domain.Assignment, error) {
	return r.listAssignments(ctx, tx.QueryContext, `worker_id=? AND status != 'cancelled'`, workerID)
}

func (r Repo) ListSubtaskAssignments(ctx context.Context, subtaskID string) ([]domain.Assignment, error) {
	return r.listAssignments(ctx, r.DB.QueryContext, `subtask_id=?`, subtaskID)
}

func (r Repo) listAssignments(ctx context.Context, query queryFunc, where string, arg any) ([]domain.Assignment, error) {
	rows, err := query(ctx, `SELECT `+assignmentCols+` FROM assignments WHERE `+where+` ORDER BY starts_at ASC`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func (r Repo) UpdateAssignmentStatus(ctx context.Context, tx *sql.Tx, id, status string) error {
	res, err := tx.ExecContext(ctx, `UPDATE assignments SET status=? WHERE id=?`, status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteAssignment(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM assignments WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
