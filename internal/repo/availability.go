package repo

import (
	"context"
	"database/sql"

	"siteline/internal/domain"
)

const windowCols = `id,subject_kind,subject_id,day,start_time,end_time,created_at`

func scanWindow(row interface{ Scan(...any) error }) (domain.AvailabilityWindow, error) {
	var w domain.AvailabilityWindow
	err := row.Scan(&w.ID, &w.SubjectKind, &w.SubjectID, &w.Day, &w.StartTime, &w.EndTime, &w.CreatedAt)
	if err == sql.ErrNoRows {
		return w, ErrNotFound
	}
	return w, err
}

func (r Repo) InsertAvailabilityWindow(ctx context.Context, tx *sql.Tx, w domain.AvailabilityWindow) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO availability_windows(id,subject_kind,subject_id,day,start_time,end_time,created_at) VALUES (?,?,?,?,?,?,?)`,
		w.ID, w.SubjectKind, w.SubjectID, w.Day, w.StartTime, w.EndTime, w.CreatedAt)
	return err
}

func (r Repo) DeleteAvailabilityWindow(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM availability_windows WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetAvailabilityWindow(ctx context.Context, id string) (domain.AvailabilityWindow, error) {
	return scanWindow(r.DB.QueryRowContext(ctx, `SELECT `+windowCols+` FROM availability_windows WHERE id=?`, id))
}

// FindContainingWindow returns the window on the given day that fully
// contains [start,end), or ErrNotFound. Time bounds are HH:MM strings;
// zero-padded clock values order correctly under string comparison.
func (r Repo) FindContainingWindow(ctx context.Context, tx *sql.Tx, subjectKind, subjectID, day, start, end string) (domain.AvailabilityWindow, error) {
	return scanWindow(tx.QueryRowContext(ctx,
		`SELECT `+windowCols+` FROM availability_windows
		 WHERE subject_kind=? AND subject_id=? AND day=? AND start_time<=? AND end_time>=? LIMIT 1`,
		subjectKind, subjectID, day, start, end))
}

func (r Repo) ListAvailabilityWindows(ctx context.Context, subjectKind, subjectID string) ([]domain.AvailabilityWindow, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+windowCols+` FROM availability_windows WHERE subject_kind=? AND subject_id=? ORDER BY day ASC, start_time ASC`,
		subjectKind, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectWindows(rows)
}

func (r Repo) ListWindowsForDay(ctx context.Context, tx *sql.Tx, subjectKind, subjectID, day string) ([]domain.AvailabilityWindow, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+windowCols+` FROM availability_windows WHERE subject_kind=? AND subject_id=? AND day=? ORDER BY start_time ASC`,
		subjectKind, subjectID, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectWindows(rows)
}

func collectWindows(rows *sql.Rows) ([]domain.AvailabilityWindow, error) {
	var res []domain.AvailabilityWindow
	for rows.Next() {
		w, err := scanWindow(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, w)
	}
	return res, rows.Err()
}

// HasWindowOnDay reports whether any window exists for the subject on the
// given date. Declarations are limited to one per date; fragments created
// by splitting are the only way multiple rows appear for one day.
func (r Repo) HasWindowOnDay(ctx context.Context, subjectKind, subjectID, day string) (bool, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT 1 FROM availability_windows WHERE subject_kind=? AND subject_id=? AND day=? LIMIT 1`,
		subjectKind, subjectID, day)
	if err != nil {
		return false, err
	}
	defer rows.Close()
	return rows.Next(), nil
}
