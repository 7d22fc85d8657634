package repo

import (
	"context"
	"database/sql"

	"siteline/internal/domain"
)

func (r Repo) InsertEquipment(ctx context.Context, tx *sql.Tx, e domain.Equipment) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO equipment(id,name,category,status,created_at) VALUES (?,?,?,?,?)`,
		e.ID, e.Name, nullable(e.Category), e.Status, e.CreatedAt)
	return err
}

func (r Repo) GetEquipment(ctx context.Context, id string) (domain.Equipment, error) {
	var e domain.Equipment
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,COALESCE(category,''),status,created_at FROM equipment WHERE id=?`, id).
		Scan(&e.ID, &e.Name, &e.Category, &e.Status, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return e, ErrNotFound
	}
	return e, err
}

func (r Repo) GetEquipmentTx(ctx context.Context, tx *sql.Tx, id string) (domain.Equipment, error) {
	var e domain.Equipment
	err := tx.QueryRowContext(ctx, `SELECT id,name,COALESCE(category,''),status,created_at FROM equipment WHERE id=?`, id).
		Scan(&e.ID, &e.Name, &e.Category, &e.Status, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return e, ErrNotFound
	}
	return e, err
}

func (r Repo) ListEquipment(ctx context.Context) ([]domain.Equipment, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,COALESCE(category,''),status,created_at FROM equipment ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Equipment
	for rows.Next() {
		var e domain.Equipment
		if err := rows.Scan(&e.ID, &e.Name, &e.Category, &e.Status, &e.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func (r Repo) UpdateEquipmentStatus(ctx context.Context, tx *sql.Tx, id, status string) error {
	res, err := tx.ExecContext(ctx, `UPDATE equipment SET status=? WHERE id=?`, status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- maintenance slots ---

func (r Repo) InsertEquipmentSlot(ctx context.Context, tx *sql.Tx, s domain.EquipmentSlot) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO equipment_slots(id,equipment_id,starts_at,ends_at,reason,created_at) VALUES (?,?,?,?,?,?)`,
		s.ID, s.EquipmentID, s.StartsAt, s.EndsAt, s.Reason, s.CreatedAt)
	return err
}

func (r Repo) DeleteEquipmentSlot(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM equipment_slots WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetEquipmentSlot(ctx context.Context, id string) (domain.EquipmentSlot, error) {
	var s domain.EquipmentSlot
	err := r.DB.QueryRowContext(ctx, `SELECT id,equipment_id,starts_at,ends_at,reason,created_at FROM equipment_slots WHERE id=?`, id).
		Scan(&s.ID, &s.EquipmentID, &s.StartsAt, &s.EndsAt, &s.Reason, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	return s, err
}

func (r Repo) ListEquipmentSlots(ctx context.Context, equipmentID string) ([]domain.EquipmentSlot, error) {
	return r.listEquipmentSlots(ctx, r.DB.QueryContext, equipmentID)
}

func (r Repo) ListEquipmentSlotsTx(ctx context.Context, tx *sql.Tx, equipmentID string) ([]domain.EquipmentSlot, error) {
	return r.listEquipmentSlots(ctx, tx.QueryContext, equipmentID)
}

type queryFunc func(ctx context.Context, query string, args ...any) (*sql.Rows, error)

func (r Repo) listEquipmentSlots(ctx context.Context, query queryFunc, equipmentID string) ([]domain.EquipmentSlot, error) {
	rows, err := query(ctx, `SELECT id,equipment_id,starts_at,ends_at,reason,created_at FROM equipment_slots WHERE equipment_id=? ORDER BY starts_at ASC`, equipmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.EquipmentSlot
	for rows.Next() {
		var s domain.EquipmentSlot
		if err := rows.Scan(&s.ID, &s.EquipmentID, &s.StartsAt, &s.EndsAt, &s.Reason, &s.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// --- equipment assignments ---

func (r Repo) InsertEquipmentAssignment(ctx context.Context, tx *sql.Tx, a domain.EquipmentAssignment) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO equipment_assignments(id,equipment_id,subtask_id,assigned_by,starts_at,ends_at,status,created_at) VALUES (?,?,?,?,?,?,?,?)`,
		a.ID, a.EquipmentID, a.SubtaskID, a.AssignedBy, a.StartsAt, a.EndsAt, a.Status, a.CreatedAt)
	return err
}

const equipAssignCols = `id,equipment_id,subtask_id,assigned_by,starts_at,ends_at,status,created_at`

func (r Repo) GetEquipmentAssignment(ctx context.Context, id string) (domain.EquipmentAssignment, error) {
	var a domain.EquipmentAssignment
	err := r.DB.QueryRowContext(ctx, `SELECT `+equipAssignCols+` FROM equipment_assignments WHERE id=?`, id).
		Scan(&a.ID, &a.EquipmentID, &a.SubtaskID, &a.AssignedBy, &a.StartsAt, &a.EndsAt, &a.Status, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	return a, err
}

func (r Repo) ListEquipmentAssignments(ctx context.Context, equipmentID string) ([]domain.EquipmentAssignment, error) {
	return r.listEquipmentAssignments(ctx, r.DB.QueryContext, equipmentID)
}

func (r Repo) ListEquipmentAssignmentsTx(ctx context.Context, tx *sql.Tx, equipmentID string) ([]domain.EquipmentAssignment, error) {
	return r.listEquipmentAssignments(ctx, tx.QueryContext, equipmentID)
}

func (r Repo) listEquipmentAssignments(ctx context.Context, query queryFunc, equipmentID string) ([]domain.EquipmentAssignment, error) {
	rows, err := query(ctx, `SELECT `+equipAssignCols+` FROM equipment_assignments WHERE equipment_id=? ORDER BY starts_at ASC`, equipmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.EquipmentAssignment
	for rows.Next() {
		var a domain.EquipmentAssignment
		if err := rows.Scan(&a.ID, &a.EquipmentID, &a.SubtaskID, &a.AssignedBy, &a.StartsAt, &a.EndsAt, &a.Status, &a.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func (r Repo) UpdateEquipmentAssignmentStatus(ctx context.Context, tx *sql.Tx, id, status string) error {
	res, err := tx.ExecContext(ctx, `UPDATE equipment_assignments SET status=? WHERE id=?`, status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteEquipmentAssignment(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM equipment_assignments WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
