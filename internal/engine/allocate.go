package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"siteline/internal/domain"
	"siteline/internal/events"
	"siteline/internal/interval"
	"siteline/internal/repo"
)

// AssignWorkerOptions are parameters for allocating a worker to a subtask.
type AssignWorkerOptions struct {
	WorkerID  string
	SubtaskID string
	StartsAt  string
	EndsAt    string
	ActorID   string
}

// AssignWorker allocates a worker to a subtask for [StartsAt, EndsAt).
// The conflict checks and the window split run inside one transaction,
// so two racing allocations for the same worker cannot both pass the
// double-booking check and commit.
func (e Engine) AssignWorker(ctx context.Context, opts AssignWorkerOptions) (domain.Assignment, error) {
	rng, err := interval.Parse(opts.StartsAt, opts.EndsAt)
	if err != nil {
		return domain.Assignment{}, err
	}
	worker, err := e.Repo.GetWorker(ctx, opts.WorkerID)
	if err != nil {
		return domain.Assignment{}, err
	}
	subtask, err := e.Repo.GetSubtask(ctx, opts.SubtaskID)
	if err != nil {
		return domain.Assignment{}, err
	}
	projectID, err := e.Repo.ProjectIDForSubtask(ctx, subtask.ID)
	if err != nil {
		return domain.Assignment{}, err
	}
	// Availability windows are per calendar date; a range spanning
	// midnight cannot be contained in any window.
	if !rng.SameDay() {
		return domain.Assignment{}, ConflictError{Reason: ReasonNotAvailable}
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Assignment{}, err
	}
	defer tx.Rollback()

	existing, err := e.Repo.ListActiveWorkerAssignmentsTx(ctx, tx, worker.ID)
	if err != nil {
		return domain.Assignment{}, err
	}
	for _, a := range existing {
		other, err := interval.Parse(a.StartsAt, a.EndsAt)
		if err != nil {
			return domain.Assignment{}, fmt.Errorf("stored assignment %s: %w", a.ID, err)
		}
		if interval.Overlaps(rng, other) {
			return domain.Assignment{}, ConflictError{Reason: ReasonDoubleBooked}
		}
	}

	window, err := e.Repo.FindContainingWindow(ctx, tx, domain.SubjectWorker, worker.ID, rng.Day(), rng.StartClock(), rng.EndClock())
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Assignment{}, ConflictError{Reason: ReasonNotAvailable}
		}
		return domain.Assignment{}, err
	}

	now := e.now().UTC().Format(time.RFC3339)
	if err := e.Repo.DeleteAvailabilityWindow(ctx, tx, window.ID); err != nil {
		return domain.Assignment{}, err
	}
	for _, frag := range splitWindow(window, rng.StartClock(), rng.EndClock(), now) {
		if err := e.Repo.InsertAvailabilityWindow(ctx, tx, frag); err != nil {
			return domain.Assignment{}, err
		}
	}

	a := domain.Assignment{
		ID:         uuid.New().String(),
		WorkerID:   worker.ID,
		SubtaskID:  subtask.ID,
		StartsAt:   opts.StartsAt,
		EndsAt:     opts.EndsAt,
		Status:     domain.StatusAssigned,
		AssignedBy: opts.ActorID,
		CreatedAt:  now,
	}
	if err := e.Repo.InsertAssignment(ctx, tx, a); err != nil {
		return domain.Assignment{}, err
	}
	if err := e.Events.Append(ctx, tx, "assignment.created", projectID, "assignment", a.ID, opts.ActorID, events.EventPayload{
		"worker_id":  worker.ID,
		"subtask_id": subtask.ID,
		"starts_at":  a.StartsAt,
		"ends_at":    a.EndsAt,
	}); err != nil {
		return domain.Assignment{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Assignment{}, err
	}
	e.notify(ctx, worker.ID, fmt.Sprintf("You were assigned to %s from %s to %s", subtask.Name, a.StartsAt, a.EndsAt), "assignment")
	return a, nil
}

// RemoveWorkerAssignment deletes an assignment and gives the freed range
// back to the worker's availability, merging with adjacent windows on
// the same date when they touch.
func (e Engine) RemoveWorkerAssignment(ctx context.Context, id, actorID string) error {
	a, err := e.Repo.GetAssignment(ctx, id)
	if err != nil {
		return err
	}
	rng, err := interval.Parse(a.StartsAt, a.EndsAt)
	if err != nil {
		return fmt.Errorf("stored assignment %s: %w", a.ID, err)
	}
	projectID, err := e.Repo.ProjectIDForSubtask(ctx, a.SubtaskID)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteAssignment(ctx, tx, id); err != nil {
		return err
	}
	if rng.SameDay() {
		if err := e.restoreWindow(ctx, tx, domain.SubjectWorker, a.WorkerID, rng.Day(), rng.StartClock(), rng.EndClock()); err != nil {
			return err
		}
	}
	if err := e.Events.Append(ctx, tx, "assignment.removed", projectID, "assignment", id, actorID, events.EventPayload{
		"worker_id": a.WorkerID,
	}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	e.notify(ctx, a.WorkerID, fmt.Sprintf("Your assignment from %s to %s was removed", a.StartsAt, a.EndsAt), "assignment")
	return nil
}

var assignmentStatuses = map[string]bool{
	domain.StatusAssigned:   true,
	domain.StatusInProgress: true,
	domain.StatusCompleted:  true,
	domain.StatusCancelled:  true,
}

// SetAssignmentStatus applies a caller-driven transition; the engine
// does not compute assignment statuses.
func (e Engine) SetAssignmentStatus(ctx context.Context, id, status, actorID string) (domain.Assignment, error) {
	if !assignmentStatuses[status] {
		return domain.Assignment{}, fmt.Errorf("invalid assignment status %q", status)
	}
	a, err := e.Repo.GetAssignment(ctx, id)
	if err != nil {
		return a, err
	}
	projectID, err := e.Repo.ProjectIDForSubtask(ctx, a.SubtaskID)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return a, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return a, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateAssignmentStatus(ctx, tx, id, status); err != nil {
		return a, err
	}
	if err := e.Events.Append(ctx, tx, "assignment.status", projectID, "assignment", id, actorID, events.EventPayload{"from": a.Status, "to": status}); err != nil {
		return a, err
	}
	if err := tx.Commit(); err != nil {
		return a, err
	}
	a.Status = status
	return a, nil
}
