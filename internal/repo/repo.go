package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"siteline/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

// --- projects ---

func (r Repo) InsertProject(ctx context.Context, tx *sql.Tx, p domain.Project) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO projects(id,name,status,planned_start,planned_end,description,created_at) VALUES (?,?,?,?,?,?,?)`,
		p.ID, p.Name, p.Status, nullable(p.PlannedStart), nullable(p.PlannedEnd), nullable(p.Description), p.CreatedAt)
	return err
}

func (r Repo) GetProject(ctx context.Context, id string) (domain.Project, error) {
	var p domain.Project
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,status,COALESCE(planned_start,''),COALESCE(planned_end,''),COALESCE(description,''),created_at FROM projects WHERE id=?`, id).
		Scan(&p.ID, &p.Name, &p.Status, &p.PlannedStart, &p.PlannedEnd, &p.Description, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

func (r Repo) SingleProject(ctx context.Context) (domain.Project, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,status,COALESCE(planned_start,''),COALESCE(planned_end,''),COALESCE(description,''),created_at FROM projects`)
	if err != nil {
		return domain.Project{}, err
	}
	defer rows.Close()
	var projects []domain.Project
	for rows.Next() {
		var p domain.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Status, &p.PlannedStart, &p.PlannedEnd, &p.Description, &p.CreatedAt); err != nil {
			return domain.Project{}, err
		}
		projects = append(projects, p)
	}
	if len(projects) == 0 {
		return domain.Project{}, ErrNotFound
	}
	if len(projects) > 1 {
		return domain.Project{}, fmt.Errorf("multiple projects exist; specify --project")
	}
	return projects[0], nil
}

func (r Repo) ListProjects(ctx context.Context) ([]domain.Project, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,status,COALESCE(planned_start,''),COALESCE(planned_end,''),COALESCE(description,''),created_at FROM projects ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Project
	for rows.Next() {
		var p domain.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Status, &p.PlannedStart, &p.PlannedEnd, &p.Description, &p.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r Repo) UpdateProjectStatus(ctx context.Context, tx *sql.Tx, id, status string) error {
	res, err := tx.ExecContext(ctx, `UPDATE projects SET status=? WHERE id=?`, status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteProject(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM projects WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- main tasks ---

func (r Repo) InsertMainTask(ctx context.Context, tx *sql.Tx, t domain.MainTask) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO main_tasks(id,project_id,name,status,planned_start,planned_end,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?)`,
		t.ID, t.ProjectID, t.Name, t.Status, nullable(t.PlannedStart), nullable(t.PlannedEnd), t.CreatedAt, t.UpdatedAt)
	return err
}

func scanMainTask(row interface{ Scan(...any) error }) (domain.MainTask, error) {
	var t domain.MainTask
	err := row.Scan(&t.ID, &t.ProjectID, &t.Name, &t.Status, &t.PlannedStart, &t.PlannedEnd, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	return t, err
}

const mainTaskCols = `id,project_id,name,status,COALESCE(planned_start,''),COALESCE(planned_end,''),created_at,updated_at`

func (r Repo) GetMainTask(ctx context.Context, id string) (domain.MainTask, error) {
	return scanMainTask(r.DB.QueryRowContext(ctx, `SELECT `+mainTaskCols+` FROM main_tasks WHERE id=?`, id))
}

func (r Repo) ListMainTasks(ctx context.Context, projectID string) ([]domain.MainTask, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+mainTaskCols+` FROM main_tasks WHERE project_id=? ORDER BY created_at ASC, id ASC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.MainTask
	for rows.Next() {
		t, err := scanMainTask(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) UpdateMainTaskStatus(ctx context.Context, tx *sql.Tx, id, status, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE main_tasks SET status=?, updated_at=? WHERE id=?`, status, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- subtasks ---

func (r Repo) InsertSubtask(ctx context.Context, tx *sql.Tx, s domain.Subtask) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO subtasks(id,main_task_id,name,status,planned_start,planned_end,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?)`,
		s.ID, s.MainTaskID, s.Name, s.Status, nullable(s.PlannedStart), nullable(s.PlannedEnd), s.CreatedAt, s.UpdatedAt)
	return err
}

func scanSubtask(row interface{ Scan(...any) error }) (domain.Subtask, error) {
	var s domain.Subtask
	err := row.Scan(&s.ID, &s.MainTaskID, &s.Name, &s.Status, &s.PlannedStart, &s.PlannedEnd, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	return s, err
}

const subtaskCols = `id,main_task_id,name,status,COALESCE(planned_start,''),COALESCE(planned_end,''),created_at,updated_at`

func (r Repo) GetSubtask(ctx context.Context, id string) (domain.Subtask, error) {
	return scanSubtask(r.DB.QueryRowContext(ctx, `SELECT `+subtaskCols+` FROM subtasks WHERE id=?`, id))
}

func (r Repo) GetSubtaskTx(ctx context.Context, tx *sql.Tx, id string) (domain.Subtask, error) {
	return scanSubtask(tx.QueryRowContext(ctx, `SELECT `+subtaskCols+` FROM subtasks WHERE id=?`, id))
}

func (r Repo) ListSubtasks(ctx context.Context, mainTaskID string) ([]domain.Subtask, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+subtaskCols+` FROM subtasks WHERE main_task_id=? ORDER BY created_at ASC, id ASC`, mainTaskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Subtask
	for rows.Next() {
		s, err := scanSubtask(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func (r Repo) UpdateSubtaskStatus(ctx context.Context, tx *sql.Tx, id, status, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE subtasks SET status=?, updated_at=? WHERE id=?`, status, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ProjectIDForSubtask resolves the owning project of a subtask, for event scoping.
func (r Repo) ProjectIDForSubtask(ctx context.Context, subtaskID string) (string, error) {
	var projectID string
	err := r.DB.QueryRowContext(ctx, `SELECT mt.project_id FROM subtasks s JOIN main_tasks mt ON mt.id=s.main_task_id WHERE s.id=?`, subtaskID).Scan(&projectID)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return projectID, err
}

// --- events ---

func (r Repo) LatestEvents(ctx context.Context, limit int, projectID, evtType, entityKind, entityID string) ([]domain.Event, error) {
	clauses := []string{"1=1"}
	var args []any
	if projectID != "" {
		clauses = append(clauses, "project_id=?")
		args = append(args, projectID)
	}
	if evtType != "" {
		clauses = append(clauses, "type=?")
		args = append(args, evtType)
	}
	if entityKind != "" {
		clauses = append(clauses, "entity_kind=?")
		args = append(args, entityKind)
	}
	if entityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, entityID)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := fmt.Sprintf(`SELECT id,ts,type,COALESCE(project_id,''),entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events %s ORDER BY id DESC LIMIT ?`, where)
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.ProjectID, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// EventsAfter returns events with IDs greater than the cursor in ascending order.
func (r Repo) EventsAfter(ctx context.Context, limit int, cursor int64, projectID string) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	clauses := []string{"1=1"}
	var args []any
	if projectID != "" {
		clauses = append(clauses, "project_id=?")
		args = append(args, projectID)
	}
	if cursor > 0 {
		clauses = append(clauses, "id>?")
		args = append(args, cursor)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := fmt.Sprintf(`SELECT id,ts,type,COALESCE(project_id,''),entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events %s ORDER BY id ASC LIMIT ?`, where)
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.ProjectID, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// LatestEventID returns the most recent event ID for a project.
func (r Repo) LatestEventID(ctx context.Context, projectID string) (int64, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM events WHERE project_id=?`, projectID)
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}
