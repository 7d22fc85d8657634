package repo

import (
	"context"
	"database/sql"

	"siteline/internal/domain"
)

func (r Repo) InsertWorker(ctx context.Context, tx *sql.Tx, w domain.Worker) error {
	if _, err := tx.ExecContext(ctx, `INSERT INTO workers(id,name,trade,status,created_at) VALUES (?,?,?,?,?)`,
		w.ID, w.Name, nullable(w.Trade), w.Status, w.CreatedAt); err != nil {
		return err
	}
	for _, skill := range w.Skills {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO worker_skills(worker_id,skill) VALUES (?,?)`, w.ID, skill); err != nil {
			return err
		}
	}
	return nil
}

func (r Repo) GetWorker(ctx context.Context, id string) (domain.Worker, error) {
	var w domain.Worker
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,COALESCE(trade,''),status,created_at FROM workers WHERE id=?`, id).
		Scan(&w.ID, &w.Name, &w.Trade, &w.Status, &w.CreatedAt)
	if err == sql.ErrNoRows {
		return w, ErrNotFound
	}
	if err != nil {
		return w, err
	}
	w.Skills, err = r.listWorkerSkills(ctx, id)
	return w, err
}

func (r Repo) GetWorkerTx(ctx context.Context, tx *sql.Tx, id string) (domain.Worker, error) {
	var w domain.Worker
	err := tx.QueryRowContext(ctx, `SELECT id,name,COALESCE(trade,''),status,created_at FROM workers WHERE id=?`, id).
		Scan(&w.ID, &w.Name, &w.Trade, &w.Status, &w.CreatedAt)
	if err == sql.ErrNoRows {
		return w, ErrNotFound
	}
	return w, err
}

func (r Repo) ListWorkers(ctx context.Context) ([]domain.Worker, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,COALESCE(trade,''),status,created_at FROM workers ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Worker
	for rows.Next() {
		var w domain.Worker
		if err := rows.Scan(&w.ID, &w.Name, &w.Trade, &w.Status, &w.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range res {
		res[i].Skills, err = r.listWorkerSkills(ctx, res[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (r Repo) listWorkerSkills(ctx context.Context, workerID string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT skill FROM worker_skills WHERE worker_id=? ORDER BY skill ASC`, workerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var skills []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		skills = append(skills, s)
	}
	return skills, rows.Err()
}

// ReplaceWorkerSkills swaps a worker's skill set wholesale. The old set
// is dropped and the new one inserted in the same transaction, so readers
// never observe a partially updated set.
func (r Repo) ReplaceWorkerSkills(ctx context.Context, tx *sql.Tx, workerID string, skills []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM worker_skills WHERE worker_id=?`, workerID); err != nil {
		return err
	}
	for _, skill := range skills {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO worker_skills(worker_id,skill) VALUES (?,?)`, workerID, skill); err != nil {
			return err
		}
	}
	return nil
}

func (r Repo) UpdateWorkerStatus(ctx context.Context, tx *sql.Tx, id, status string) error {
	res, err := tx.ExecContext(ctx, `UPDATE workers SET status=? WHERE id=?`, status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
