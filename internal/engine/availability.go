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
	"siteline/internal/repo"
)

func validClock(v string) bool {
	if len(v) != 5 || v[2] != ':' {
		return false
	}
	_, err := time.Parse("15:04", v)
	return err == nil
}

// DeclareAvailability records a subject's free window for one date. A
// subject declares at most one window per date; fragments from later
// splits are the only way multiple rows appear for a day.
func (e Engine) DeclareAvailability(ctx context.Context, subjectKind, subjectID, day, start, end, actorID string) (domain.AvailabilityWindow, error) {
	if subjectKind != domain.SubjectWorker && subjectKind != domain.SubjectEquipment {
		return domain.AvailabilityWindow{}, fmt.Errorf("invalid subject kind %q", subjectKind)
	}
	if _, err := time.Parse(time.DateOnly, day); err != nil {
		return domain.AvailabilityWindow{}, fmt.Errorf("invalid day %q", day)
	}
	if !validClock(start) || !validClock(end) {
		return domain.AvailabilityWindow{}, fmt.Errorf("invalid time of day; want HH:MM")
	}
	if start >= end {
		return domain.AvailabilityWindow{}, ErrInvalidRange
	}
	if subjectKind == domain.SubjectWorker {
		if _, err := e.Repo.GetWorker(ctx, subjectID); err != nil {
			return domain.AvailabilityWindow{}, err
		}
	} else {
		if _, err := e.Repo.GetEquipment(ctx, subjectID); err != nil {
			return domain.AvailabilityWindow{}, err
		}
	}
	exists, err := e.Repo.HasWindowOnDay(ctx, subjectKind, subjectID, day)
	if err != nil {
		return domain.AvailabilityWindow{}, err
	}
	if exists {
		return domain.AvailabilityWindow{}, ConflictError{Reason: "availability already declared for " + day}
	}
	w := domain.AvailabilityWindow{
		ID:          uuid.New().String(),
		SubjectKind: subjectKind,
		SubjectID:   subjectID,
		Day:         day,
		StartTime:   start,
		EndTime:     end,
		CreatedAt:   e.now().UTC().Format(time.RFC3339),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.AvailabilityWindow{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertAvailabilityWindow(ctx, tx, w); err != nil {
		return domain.AvailabilityWindow{}, err
	}
	if err := e.Events.Append(ctx, tx, "availability.declared", "", subjectKind, subjectID, actorID, events.EventPayload{"day": day, "start": start, "end": end}); err != nil {
		return domain.AvailabilityWindow{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.AvailabilityWindow{}, err
	}
	return w, nil
}

// RemoveAvailability deletes a declared window or fragment.
func (e Engine) RemoveAvailability(ctx context.Context, windowID, actorID string) error {
	w, err := e.Repo.GetAvailabilityWindow(ctx, windowID)
	if err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteAvailabilityWindow(ctx, tx, windowID); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "availability.removed", "", w.SubjectKind, w.SubjectID, actorID, events.EventPayload{"day": w.Day}); err != nil {
		return err
	}
	return tx.Commit()
}

// splitWindow carves [cutStart,cutEnd) out of w and returns the
// surviving fragments: a leading one when the cut starts after the
// window does, a trailing one when it ends earlier. A cut equal to the
// whole window consumes it and yields nothing. The fragments plus the
// cut always cover exactly the original window.
func splitWindow(w domain.AvailabilityWindow, cutStart, cutEnd, createdAt string) []domain.AvailabilityWindow {
	var fragments []domain.AvailabilityWindow
	if w.StartTime < cutStart {
		fragments = append(fragments, domain.AvailabilityWindow{
			ID:          uuid.New().String(),
			SubjectKind: w.SubjectKind,
			SubjectID:   w.SubjectID,
			Day:         w.Day,
			StartTime:   w.StartTime,
			EndTime:     cutStart,
			CreatedAt:   createdAt,
		})
	}
	if cutEnd < w.EndTime {
		fragments = append(fragments, domain.AvailabilityWindow{
			ID:          uuid.New().String(),
			SubjectKind: w.SubjectKind,
			SubjectID:   w.SubjectID,
			Day:         w.Day,
			StartTime:   cutEnd,
			EndTime:     w.EndTime,
			CreatedAt:   createdAt,
		})
	}
	return fragments
}

// restoreWindow re-inserts a window covering [start,end) on the given
// day, coalescing with any existing windows it touches or overlaps so
// the freed time merges back into one contiguous range.
func (e Engine) restoreWindow(ctx context.Context, tx *sql.Tx, subjectKind, subjectID, day, start, end string) error {
	windows, err := e.Repo.ListWindowsForDay(ctx, tx, subjectKind, subjectID, day)
	if err != nil {
		return err
	}
	mergedStart, mergedEnd := start, end
	for _, w := range windows {
		if w.EndTime < start || w.StartTime > end {
			continue
		}
		if w.StartTime < mergedStart {
			mergedStart = w.StartTime
		}
		if w.EndTime > mergedEnd {
			mergedEnd = w.EndTime
		}
		if err := e.Repo.DeleteAvailabilityWindow(ctx, tx, w.ID); err != nil && !errors.Is(err, repo.ErrNotFound) {
			return err
		}
	}
	return e.Repo.InsertAvailabilityWindow(ctx, tx, domain.AvailabilityWindow{
		ID:          uuid.New().String(),
		SubjectKind: subjectKind,
		SubjectID:   subjectID,
		Day:         day,
		StartTime:   mergedStart,
		EndTime:     mergedEnd,
		CreatedAt:   e.now().UTC().Format(time.RFC3339),
	})
}
