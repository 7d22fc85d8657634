package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"siteline/internal/config"
	"siteline/internal/domain"
	"siteline/internal/events"
	"siteline/internal/interval"
	"siteline/internal/repo"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// ErrInvalidRange is returned when an assignment range has start >= end
// or an unparseable bound. Caller error; no retry.
var ErrInvalidRange = interval.ErrInvalidRange

// ConflictError rejects an allocation that would double-book a subject
// or fall outside its availability. The caller must pick a different
// range or subject; the engine never retries.
type ConflictError struct {
	Reason string
}

func (e ConflictError) Error() string { return "conflict: " + e.Reason }

const (
	ReasonDoubleBooked   = "double-booked"
	ReasonNotAvailable   = "not available"
	ReasonDecommissioned = "equipment decommissioned"
	ReasonEquipmentBusy  = "equipment not available"
)

var taskStatuses = map[string]bool{
	domain.StatusPlanned:    true,
	domain.StatusAssigned:   true,
	domain.StatusInProgress: true,
	domain.StatusOnHold:     true,
	domain.StatusDelayed:    true,
	domain.StatusCompleted:  true,
	domain.StatusCancelled:  true,
}

func ensureTaskStatus(status string) error {
	if !taskStatuses[status] {
		return fmt.Errorf("invalid status %q", status)
	}
	return nil
}

// notify records an in-app notification. Delivery failures are logged
// and never propagate: a committed allocation must not be rolled back
// because its notification could not be written.
func (e Engine) notify(ctx context.Context, recipientID, message, category string) {
	n := domain.Notification{
		ID:          uuid.New().String(),
		RecipientID: recipientID,
		Message:     message,
		Category:    category,
		CreatedAt:   e.now().UTC().Format(time.RFC3339),
	}
	if err := e.Repo.InsertNotification(ctx, n); err != nil {
		log.Printf("notify %s: %v", recipientID, err)
	}
}

// --- projects and task hierarchy ---

func (e Engine) CreateProject(ctx context.Context, p domain.Project, actorID string) (domain.Project, error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Name == "" {
		return domain.Project{}, errors.New("name is required")
	}
	if p.Status == "" {
		p.Status = domain.StatusPlanned
	}
	p.CreatedAt = e.now().UTC().Format(time.RFC3339)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertProject(ctx, tx, p); err != nil {
		return domain.Project{}, fmt.Errorf("insert project: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "project.created", p.ID, "project", p.ID, actorID, events.EventPayload{"name": p.Name, "status": p.Status}); err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

func (e Engine) CreateMainTask(ctx context.Context, t domain.MainTask, actorID string) (domain.MainTask, error) {
	if t.Name == "" {
		return domain.MainTask{}, errors.New("name is required")
	}
	if _, err := e.Repo.GetProject(ctx, t.ProjectID); err != nil {
		return domain.MainTask{}, err
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.Status == "" {
		t.Status = domain.StatusPlanned
	}
	now := e.now().UTC().Format(time.RFC3339)
	t.CreatedAt = now
	t.UpdatedAt = now
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.MainTask{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertMainTask(ctx, tx, t); err != nil {
		return domain.MainTask{}, err
	}
	if err := e.Events.Append(ctx, tx, "main_task.created", t.ProjectID, "main_task", t.ID, actorID, events.EventPayload{"name": t.Name}); err != nil {
		return domain.MainTask{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.MainTask{}, err
	}
	return t, nil
}

func (e Engine) CreateSubtask(ctx context.Context, s domain.Subtask, actorID string) (domain.Subtask, error) {
	if s.Name == "" {
		return domain.Subtask{}, errors.New("name is required")
	}
	parent, err := e.Repo.GetMainTask(ctx, s.MainTaskID)
	if err != nil {
		return domain.Subtask{}, err
	}
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.Status == "" {
		s.Status = domain.StatusPlanned
	}
	now := e.now().UTC().Format(time.RFC3339)
	s.CreatedAt = now
	s.UpdatedAt = now
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Subtask{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertSubtask(ctx, tx, s); err != nil {
		return domain.Subtask{}, err
	}
	if err := e.Events.Append(ctx, tx, "subtask.created", parent.ProjectID, "subtask", s.ID, actorID, events.EventPayload{"name": s.Name}); err != nil {
		return domain.Subtask{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Subtask{}, err
	}
	return s, nil
}

// SetSubtaskStatus applies a caller-driven status change. Completion
// percentages are never stored; they are derived from statuses on read.
func (e Engine) SetSubtaskStatus(ctx context.Context, id, status, actorID string) (domain.Subtask, error) {
	if err := ensureTaskStatus(status); err != nil {
		return domain.Subtask{}, err
	}
	s, err := e.Repo.GetSubtask(ctx, id)
	if err != nil {
		return s, err
	}
	projectID, err := e.Repo.ProjectIDForSubtask(ctx, id)
	if err != nil {
		return s, err
	}
	now := e.now().UTC().Format(time.RFC3339)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return s, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateSubtaskStatus(ctx, tx, id, status, now); err != nil {
		return s, err
	}
	if err := e.Events.Append(ctx, tx, "subtask.status", projectID, "subtask", id, actorID, events.EventPayload{"from": s.Status, "to": status}); err != nil {
		return s, err
	}
	if err := tx.Commit(); err != nil {
		return s, err
	}
	s.Status = status
	s.UpdatedAt = now
	return s, nil
}

func (e Engine) SetMainTaskStatus(ctx context.Context, id, status, actorID string) (domain.MainTask, error) {
	if err := ensureTaskStatus(status); err != nil {
		return domain.MainTask{}, err
	}
	t, err := e.Repo.GetMainTask(ctx, id)
	if err != nil {
		return t, err
	}
	now := e.now().UTC().Format(time.RFC3339)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return t, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateMainTaskStatus(ctx, tx, id, status, now); err != nil {
		return t, err
	}
	if err := e.Events.Append(ctx, tx, "main_task.status", t.ProjectID, "main_task", id, actorID, events.EventPayload{"from": t.Status, "to": status}); err != nil {
		return t, err
	}
	if err := tx.Commit(); err != nil {
		return t, err
	}
	t.Status = status
	t.UpdatedAt = now
	return t, nil
}

// --- workers and equipment ---

func (e Engine) CreateWorker(ctx context.Context, w domain.Worker, actorID string) (domain.Worker, error) {
	if w.Name == "" {
		return domain.Worker{}, errors.New("name is required")
	}
	if w.ID == "" {
		w.ID = uuid.New().String()
	}
	if w.Status == "" {
		w.Status = "active"
	}
	w.CreatedAt = e.now().UTC().Format(time.RFC3339)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Worker{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertWorker(ctx, tx, w); err != nil {
		return domain.Worker{}, err
	}
	if err := e.Events.Append(ctx, tx, "worker.created", "", "worker", w.ID, actorID, events.EventPayload{"name": w.Name}); err != nil {
		return domain.Worker{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Worker{}, err
	}
	return w, nil
}

// SetWorkerSkills replaces the worker's skill set atomically rather than
// mutating it in place, so concurrent readers see either the old or the
// new set, never a mix.
func (e Engine) SetWorkerSkills(ctx context.Context, workerID string, skills []string, actorID string) (domain.Worker, error) {
	w, err := e.Repo.GetWorker(ctx, workerID)
	if err != nil {
		return w, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return w, err
	}
	defer tx.Rollback()
	if err := e.Repo.ReplaceWorkerSkills(ctx, tx, workerID, skills); err != nil {
		return w, err
	}
	if err := e.Events.Append(ctx, tx, "worker.skills", "", "worker", workerID, actorID, events.EventPayload{"skills": skills}); err != nil {
		return w, err
	}
	if err := tx.Commit(); err != nil {
		return w, err
	}
	w.Skills = skills
	return w, nil
}

func (e Engine) CreateEquipment(ctx context.Context, eq domain.Equipment, actorID string) (domain.Equipment, error) {
	if eq.Name == "" {
		return domain.Equipment{}, errors.New("name is required")
	}
	if eq.ID == "" {
		eq.ID = uuid.New().String()
	}
	if eq.Status == "" {
		eq.Status = domain.EquipmentAvailable
	}
	eq.CreatedAt = e.now().UTC().Format(time.RFC3339)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Equipment{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertEquipment(ctx, tx, eq); err != nil {
		return domain.Equipment{}, err
	}
	if err := e.Events.Append(ctx, tx, "equipment.created", "", "equipment", eq.ID, actorID, events.EventPayload{"name": eq.Name}); err != nil {
		return domain.Equipment{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Equipment{}, err
	}
	return eq, nil
}

// SetEquipmentBaselineStatus updates the stored lifecycle status, e.g.
// decommissioning a machine. The resolved current status still takes
// precedence on reads.
func (e Engine) SetEquipmentBaselineStatus(ctx context.Context, id, status, actorID string) (domain.Equipment, error) {
	switch status {
	case domain.EquipmentAvailable, domain.EquipmentInUse, domain.EquipmentUnderMaintenance, domain.EquipmentDecommissioned:
	default:
		return domain.Equipment{}, fmt.Errorf("invalid equipment status %q", status)
	}
	eq, err := e.Repo.GetEquipment(ctx, id)
	if err != nil {
		return eq, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return eq, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateEquipmentStatus(ctx, tx, id, status); err != nil {
		return eq, err
	}
	if err := e.Events.Append(ctx, tx, "equipment.status", "", "equipment", id, actorID, events.EventPayload{"from": eq.Status, "to": status}); err != nil {
		return eq, err
	}
	if err := tx.Commit(); err != nil {
		return eq, err
	}
	eq.Status = status
	return eq, nil
}
