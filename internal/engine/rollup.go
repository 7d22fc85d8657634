package engine

import (
	"context"
	"math"
	"time"

	"siteline/internal/domain"
)

// completionFor maps a leaf status to a completion percentage.
func completionFor(status string) float64 {
	switch status {
	case domain.StatusCompleted:
		return 100
	case domain.StatusInProgress:
		return 50
	case domain.StatusAssigned:
		return 25
	case domain.StatusOnHold:
		return 10
	case domain.StatusDelayed:
		return 5
	default:
		return 0
	}
}

// round2 rounds half-up to two decimal places.
func round2(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}

// isOverdue reports whether the planned end date has passed without the
// entity reaching completed. A completed entity is never overdue, and a
// missing planned end never is either. plannedEnd may be a date or a
// full timestamp; only the date part is compared.
func isOverdue(status, plannedEnd string, today string) bool {
	if status == domain.StatusCompleted || plannedEnd == "" {
		return false
	}
	if len(plannedEnd) > len(time.DateOnly) {
		plannedEnd = plannedEnd[:len(time.DateOnly)]
	}
	return plannedEnd < today
}

// ProjectProgress derives the completion tree for a project: subtask
// percentages come from the status table, a main task averages its
// subtasks (or falls back to its own status when it has none), and the
// project averages its main tasks. Nothing here is cached or stored.
func (e Engine) ProjectProgress(ctx context.Context, projectID string) (domain.ProjectProgress, error) {
	p, err := e.Repo.GetProject(ctx, projectID)
	if err != nil {
		return domain.ProjectProgress{}, err
	}
	today := e.now().UTC().Format(time.DateOnly)
	mainTasks, err := e.Repo.ListMainTasks(ctx, projectID)
	if err != nil {
		return domain.ProjectProgress{}, err
	}

	out := domain.ProjectProgress{
		ProjectID: projectID,
		Overdue:   isOverdue(p.Status, p.PlannedEnd, today),
	}
	var projectSum float64
	for _, mt := range mainTasks {
		subtasks, err := e.Repo.ListSubtasks(ctx, mt.ID)
		if err != nil {
			return domain.ProjectProgress{}, err
		}
		mtp := domain.MainTaskProgress{
			MainTaskID: mt.ID,
			Status:     mt.Status,
			Overdue:    isOverdue(mt.Status, mt.PlannedEnd, today),
		}
		if len(subtasks) == 0 {
			mtp.Completion = round2(completionFor(mt.Status))
		} else {
			var sum float64
			for _, st := range subtasks {
				sp := domain.SubtaskProgress{
					SubtaskID:  st.ID,
					Status:     st.Status,
					Completion: round2(completionFor(st.Status)),
					Overdue:    isOverdue(st.Status, st.PlannedEnd, today),
				}
				sum += sp.Completion
				mtp.Subtasks = append(mtp.Subtasks, sp)
			}
			mtp.Completion = round2(sum / float64(len(subtasks)))
		}
		projectSum += mtp.Completion
		out.MainTasks = append(out.MainTasks, mtp)
	}
	if len(out.MainTasks) > 0 {
		out.Completion = round2(projectSum / float64(len(out.MainTasks)))
	}
	return out, nil
}
