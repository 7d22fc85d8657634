package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"siteline/internal/domain"
	"siteline/internal/events"
	"siteline/internal/interval"
	"siteline/internal/repo"
)

// AssignEquipmentOptions are parameters for allocating equipment to a subtask.
type AssignEquipmentOptions struct {
	EquipmentID string
	SubtaskID   string
	StartsAt    string
	EndsAt      string
	ActorID     string
}

func activeEquipmentAssignment(status string) bool {
	return status == domain.EquipAssignAssigned || status == domain.EquipAssignInUse
}

// equipmentConflict reports whether the range collides with a
// maintenance slot or an active assignment. Both sets are read inside
// the caller's transaction so the check stays atomic with the write.
func (e Engine) equipmentConflict(ctx context.Context, tx *sql.Tx, equipmentID string, rng interval.Range) (bool, error) {
	slots, err := e.Repo.ListEquipmentSlotsTx(ctx, tx, equipmentID)
	if err != nil {
		return false, err
	}
	for _, s := range slots {
		other, err := interval.Parse(s.StartsAt, s.EndsAt)
		if err != nil {
			return false, fmt.Errorf("stored slot %s: %w", s.ID, err)
		}
		if interval.Overlaps(rng, other) {
			return true, nil
		}
	}
	assigns, err := e.Repo.ListEquipmentAssignmentsTx(ctx, tx, equipmentID)
	if err != nil {
		return false, err
	}
	for _, a := range assigns {
		if !activeEquipmentAssignment(a.Status) {
			continue
		}
		other, err := interval.Parse(a.StartsAt, a.EndsAt)
		if err != nil {
			return false, fmt.Errorf("stored assignment %s: %w", a.ID, err)
		}
		if interval.Overlaps(rng, other) {
			return true, nil
		}
	}
	return false, nil
}

// AssignEquipment allocates a piece of equipment to a subtask. There is
// no window splitting on this path: equipment availability is derived
// from maintenance slots plus active assignments, so the insert itself
// blocks the range for later requests.
func (e Engine) AssignEquipment(ctx context.Context, opts AssignEquipmentOptions) (domain.EquipmentAssignment, error) {
	rng, err := interval.Parse(opts.StartsAt, opts.EndsAt)
	if err != nil {
		return domain.EquipmentAssignment{}, err
	}
	eq, err := e.Repo.GetEquipment(ctx, opts.EquipmentID)
	if err != nil {
		return domain.EquipmentAssignment{}, err
	}
	if eq.Status == domain.EquipmentDecommissioned {
		return domain.EquipmentAssignment{}, ConflictError{Reason: ReasonDecommissioned}
	}
	subtask, err := e.Repo.GetSubtask(ctx, opts.SubtaskID)
	if err != nil {
		return domain.EquipmentAssignment{}, err
	}
	projectID, err := e.Repo.ProjectIDForSubtask(ctx, subtask.ID)
	if err != nil {
		return domain.EquipmentAssignment{}, err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.EquipmentAssignment{}, err
	}
	defer tx.Rollback()

	conflict, err := e.equipmentConflict(ctx, tx, eq.ID, rng)
	if err != nil {
		return domain.EquipmentAssignment{}, err
	}
	if conflict {
		return domain.EquipmentAssignment{}, ConflictError{Reason: ReasonEquipmentBusy}
	}

	a := domain.EquipmentAssignment{
		ID:          uuid.New().String(),
		EquipmentID: eq.ID,
		SubtaskID:   subtask.ID,
		AssignedBy:  opts.ActorID,
		StartsAt:    opts.StartsAt,
		EndsAt:      opts.EndsAt,
		Status:      domain.EquipAssignAssigned,
		CreatedAt:   e.now().UTC().Format(time.RFC3339),
	}
	if err := e.Repo.InsertEquipmentAssignment(ctx, tx, a); err != nil {
		return domain.EquipmentAssignment{}, err
	}
	if err := e.Events.Append(ctx, tx, "equipment_assignment.created", projectID, "equipment_assignment", a.ID, opts.ActorID, events.EventPayload{
		"equipment_id": eq.ID,
		"subtask_id":   subtask.ID,
		"starts_at":    a.StartsAt,
		"ends_at":      a.EndsAt,
	}); err != nil {
		return domain.EquipmentAssignment{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.EquipmentAssignment{}, err
	}
	e.notify(ctx, opts.ActorID, fmt.Sprintf("%s reserved for %s from %s to %s", eq.Name, subtask.Name, a.StartsAt, a.EndsAt), "equipment")
	return a, nil
}

// RemoveEquipmentAssignment deletes an equipment assignment. Nothing
// else needs cleanup: the assignment row itself was the reservation.
func (e Engine) RemoveEquipmentAssignment(ctx context.Context, id, actorID string) error {
	a, err := e.Repo.GetEquipmentAssignment(ctx, id)
	if err != nil {
		return err
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
	if err := e.Repo.DeleteEquipmentAssignment(ctx, tx, id); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "equipment_assignment.removed", projectID, "equipment_assignment", id, actorID, events.EventPayload{
		"equipment_id": a.EquipmentID,
	}); err != nil {
		return err
	}
	return tx.Commit()
}

var equipmentAssignmentStatuses = map[string]bool{
	domain.EquipAssignAssigned:        true,
	domain.EquipAssignInUse:           true,
	domain.EquipAssignCompleted:       true,
	domain.EquipAssignCancelled:       true,
	domain.EquipAssignReturnedDamaged: true,
}

func (e Engine) SetEquipmentAssignmentStatus(ctx context.Context, id, status, actorID string) (domain.EquipmentAssignment, error) {
	if !equipmentAssignmentStatuses[status] {
		return domain.EquipmentAssignment{}, fmt.Errorf("invalid equipment assignment status %q", status)
	}
	a, err := e.Repo.GetEquipmentAssignment(ctx, id)
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
	if err := e.Repo.UpdateEquipmentAssignmentStatus(ctx, tx, id, status); err != nil {
		return a, err
	}
	if err := e.Events.Append(ctx, tx, "equipment_assignment.status", projectID, "equipment_assignment", id, actorID, events.EventPayload{"from": a.Status, "to": status}); err != nil {
		return a, err
	}
	if err := tx.Commit(); err != nil {
		return a, err
	}
	a.Status = status
	return a, nil
}

// ScheduleMaintenance blocks equipment for a maintenance window.
func (e Engine) ScheduleMaintenance(ctx context.Context, equipmentID, startsAt, endsAt, actorID string) (domain.EquipmentSlot, error) {
	rng, err := interval.Parse(startsAt, endsAt)
	if err != nil {
		return domain.EquipmentSlot{}, err
	}
	eq, err := e.Repo.GetEquipment(ctx, equipmentID)
	if err != nil {
		return domain.EquipmentSlot{}, err
	}
	if eq.Status == domain.EquipmentDecommissioned {
		return domain.EquipmentSlot{}, ConflictError{Reason: ReasonDecommissioned}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.EquipmentSlot{}, err
	}
	defer tx.Rollback()
	conflict, err := e.equipmentConflict(ctx, tx, eq.ID, rng)
	if err != nil {
		return domain.EquipmentSlot{}, err
	}
	if conflict {
		return domain.EquipmentSlot{}, ConflictError{Reason: ReasonEquipmentBusy}
	}
	s := domain.EquipmentSlot{
		ID:          uuid.New().String(),
		EquipmentID: eq.ID,
		StartsAt:    startsAt,
		EndsAt:      endsAt,
		Reason:      "maintenance",
		CreatedAt:   e.now().UTC().Format(time.RFC3339),
	}
	if err := e.Repo.InsertEquipmentSlot(ctx, tx, s); err != nil {
		return domain.EquipmentSlot{}, err
	}
	if err := e.Events.Append(ctx, tx, "equipment.maintenance.scheduled", "", "equipment", eq.ID, actorID, events.EventPayload{
		"starts_at": startsAt,
		"ends_at":   endsAt,
	}); err != nil {
		return domain.EquipmentSlot{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.EquipmentSlot{}, err
	}
	return s, nil
}

// CancelMaintenance removes a maintenance slot.
func (e Engine) CancelMaintenance(ctx context.Context, slotID, actorID string) error {
	s, err := e.Repo.GetEquipmentSlot(ctx, slotID)
	if err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteEquipmentSlot(ctx, tx, slotID); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "equipment.maintenance.cancelled", "", "equipment", s.EquipmentID, actorID, events.EventPayload{}); err != nil {
		return err
	}
	return tx.Commit()
}

// ResolveEquipmentStatus computes the current operational status from
// interval data instead of trusting the stored flag. Decommissioned is
// terminal and overrides everything; otherwise a maintenance slot
// covering now wins over an active assignment covering now; with
// neither, the stored baseline stands.
func ResolveEquipmentStatus(eq domain.Equipment, slots []domain.EquipmentSlot, assigns []domain.EquipmentAssignment, now time.Time) string {
	if eq.Status == domain.EquipmentDecommissioned {
		return domain.EquipmentDecommissioned
	}
	for _, s := range slots {
		if s.Reason != "maintenance" {
			continue
		}
		rng, err := interval.Parse(s.StartsAt, s.EndsAt)
		if err != nil {
			continue
		}
		if rng.ContainsInstant(now) {
			return domain.EquipmentUnderMaintenance
		}
	}
	for _, a := range assigns {
		if !activeEquipmentAssignment(a.Status) {
			continue
		}
		rng, err := interval.Parse(a.StartsAt, a.EndsAt)
		if err != nil {
			continue
		}
		if rng.ContainsInstant(now) {
			return domain.EquipmentInUse
		}
	}
	return eq.Status
}

// EquipmentStatus resolves the equipment's current status at call time.
// The result is derived per read and never cached.
func (e Engine) EquipmentStatus(ctx context.Context, id string) (string, error) {
	eq, err := e.Repo.GetEquipment(ctx, id)
	if err != nil {
		return "", err
	}
	slots, err := e.Repo.ListEquipmentSlots(ctx, id)
	if err != nil {
		return "", err
	}
	assigns, err := e.Repo.ListEquipmentAssignments(ctx, id)
	if err != nil {
		return "", err
	}
	return ResolveEquipmentStatus(eq, slots, assigns, e.now()), nil
}

// EquipmentAvailable reports whether the equipment can take a new
// assignment over [startsAt, endsAt).
func (e Engine) EquipmentAvailable(ctx context.Context, id, startsAt, endsAt string) (bool, error) {
	rng, err := interval.Parse(startsAt, endsAt)
	if err != nil {
		return false, err
	}
	eq, err := e.Repo.GetEquipment(ctx, id)
	if err != nil {
		return false, err
	}
	if eq.Status == domain.EquipmentDecommissioned {
		return false, nil
	}
	tx, err := e.DB.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return false, err
	}
	defer tx.Rollback()
	conflict, err := e.equipmentConflict(ctx, tx, id, rng)
	if err != nil {
		return false, err
	}
	return !conflict, nil
}
