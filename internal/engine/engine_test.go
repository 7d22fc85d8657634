package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"siteline/internal/config"
	"siteline/internal/db"
	"siteline/internal/domain"
	"siteline/internal/engine"
	"siteline/internal/migrate"
	"siteline/internal/repo"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

const actor = "user-test"

func newTestEngine(t *testing.T) engine.Engine {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default("test-project"))
	e.Now = func() time.Time { return testNow }
	return e
}

type fixture struct {
	project  domain.Project
	mainTask domain.MainTask
	subtask  domain.Subtask
	worker   domain.Worker
}

func seed(t *testing.T, e engine.Engine) fixture {
	t.Helper()
	ctx := context.Background()
	p, err := e.CreateProject(ctx, domain.Project{Name: "Riverside Depot"}, actor)
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	mt, err := e.CreateMainTask(ctx, domain.MainTask{ProjectID: p.ID, Name: "Foundations"}, actor)
	if err != nil {
		t.Fatalf("create main task: %v", err)
	}
	st, err := e.CreateSubtask(ctx, domain.Subtask{MainTaskID: mt.ID, Name: "Pour footings"}, actor)
	if err != nil {
		t.Fatalf("create subtask: %v", err)
	}
	w, err := e.CreateWorker(ctx, domain.Worker{Name: "Ana", Skills: []string{"concrete"}}, actor)
	if err != nil {
		t.Fatalf("create worker: %v", err)
	}
	return fixture{project: p, mainTask: mt, subtask: st, worker: w}
}

func declare(t *testing.T, e engine.Engine, workerID, day, start, end string) {
	t.Helper()
	if _, err := e.DeclareAvailability(context.Background(), domain.SubjectWorker, workerID, day, start, end, actor); err != nil {
		t.Fatalf("declare availability: %v", err)
	}
}

func assign(t *testing.T, e engine.Engine, f fixture, start, end string) domain.Assignment {
	t.Helper()
	a, err := e.AssignWorker(context.Background(), engine.AssignWorkerOptions{
		WorkerID:  f.worker.ID,
		SubtaskID: f.subtask.ID,
		StartsAt:  start,
		EndsAt:    end,
		ActorID:   actor,
	})
	if err != nil {
		t.Fatalf("assign worker: %v", err)
	}
	return a
}

func workerWindows(t *testing.T, e engine.Engine, workerID string) []domain.AvailabilityWindow {
	t.Helper()
	ws, err := e.Repo.ListAvailabilityWindows(context.Background(), domain.SubjectWorker, workerID)
	if err != nil {
		t.Fatalf("list windows: %v", err)
	}
	return ws
}

func conflictReason(t *testing.T, err error) string {
	t.Helper()
	var ce engine.ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	return ce.Reason
}

func TestAssignWorkerSplitsWindow(t *testing.T) {
	e := newTestEngine(t)
	f := seed(t, e)
	declare(t, e, f.worker.ID, "2024-06-02", "08:00", "17:00")

	a := assign(t, e, f, "2024-06-02T09:00:00Z", "2024-06-02T11:00:00Z")
	if a.Status != domain.StatusAssigned {
		t.Fatalf("assignment status=%s", a.Status)
	}

	ws := workerWindows(t, e, f.worker.ID)
	if len(ws) != 2 {
		t.Fatalf("windows=%d want 2 fragments", len(ws))
	}
	if ws[0].StartTime != "08:00" || ws[0].EndTime != "09:00" {
		t.Fatalf("leading fragment %s..%s", ws[0].StartTime, ws[0].EndTime)
	}
	if ws[1].StartTime != "11:00" || ws[1].EndTime != "17:00" {
		t.Fatalf("trailing fragment %s..%s", ws[1].StartTime, ws[1].EndTime)
	}
}

func TestOverlappingAssignmentIsDoubleBooked(t *testing.T) {
	e := newTestEngine(t)
	f := seed(t, e)
	declare(t, e, f.worker.ID, "2024-06-02", "08:00", "17:00")
	assign(t, e, f, "2024-06-02T09:00:00Z", "2024-06-02T11:00:00Z")

	other, err := e.CreateSubtask(context.Background(), domain.Subtask{MainTaskID: f.mainTask.ID, Name: "Strip formwork"}, actor)
	if err != nil {
		t.Fatalf("create subtask: %v", err)
	}
	_, err = e.AssignWorker(context.Background(), engine.AssignWorkerOptions{
		WorkerID:  f.worker.ID,
		SubtaskID: other.ID,
		StartsAt:  "2024-06-02T10:00:00Z",
		EndsAt:    "2024-06-02T12:00:00Z",
		ActorID:   actor,
	})
	if got := conflictReason(t, err); got != engine.ReasonDoubleBooked {
		t.Fatalf("reason=%q", got)
	}
}

func TestBackToBackAssignmentsAllowed(t *testing.T) {
	e := newTestEngine(t)
	f := seed(t, e)
	declare(t, e, f.worker.ID, "2024-06-02", "08:00", "17:00")
	assign(t, e, f, "2024-06-02T09:00:00Z", "2024-06-02T11:00:00Z")
	// [11:00,13:00) touches the first assignment at 11:00; half-open
	// ranges make that a non-conflict, and the trailing fragment
	// contains it.
	assign(t, e, f, "2024-06-02T11:00:00Z", "2024-06-02T13:00:00Z")

	ws := workerWindows(t, e, f.worker.ID)
	if len(ws) != 2 {
		t.Fatalf("windows=%d", len(ws))
	}
	if ws[1].StartTime != "13:00" || ws[1].EndTime != "17:00" {
		t.Fatalf("trailing fragment %s..%s", ws[1].StartTime, ws[1].EndTime)
	}
}

func TestAssignmentMustFitOneWindow(t *testing.T) {
	e := newTestEngine(t)
	f := seed(t, e)
	declare(t, e, f.worker.ID, "2024-06-02", "08:00", "12:00")

	// Partially outside the declared window.
	_, err := e.AssignWorker(context.Background(), engine.AssignWorkerOptions{
		WorkerID:  f.worker.ID,
		SubtaskID: f.subtask.ID,
		StartsAt:  "2024-06-02T11:00:00Z",
		EndsAt:    "2024-06-02T13:00:00Z",
		ActorID:   actor,
	})
	if got := conflictReason(t, err); got != engine.ReasonNotAvailable {
		t.Fatalf("reason=%q", got)
	}
}

func TestAssignmentCannotSpanFragments(t *testing.T) {
	e := newTestEngine(t)
	f := seed(t, e)
	declare(t, e, f.worker.ID, "2024-06-02", "08:00", "17:00")
	a := assign(t, e, f, "2024-06-02T09:00:00Z", "2024-06-02T10:00:00Z")
	if _, err := e.SetAssignmentStatus(context.Background(), a.ID, domain.StatusCancelled, actor); err != nil {
		t.Fatalf("cancel assignment: %v", err)
	}

	// The cancelled assignment no longer double-books, but the window is
	// still split into [08:00,09:00) and [10:00,17:00); a range bridging
	// the gap fits in neither fragment.
	_, err := e.AssignWorker(context.Background(), engine.AssignWorkerOptions{
		WorkerID:  f.worker.ID,
		SubtaskID: f.subtask.ID,
		StartsAt:  "2024-06-02T08:30:00Z",
		EndsAt:    "2024-06-02T10:30:00Z",
		ActorID:   actor,
	})
	if got := conflictReason(t, err); got != engine.ReasonNotAvailable {
		t.Fatalf("reason=%q", got)
	}
}

func TestRemoveAssignmentRestoresWindow(t *testing.T) {
	e := newTestEngine(t)
	f := seed(t, e)
	declare(t, e, f.worker.ID, "2024-06-02", "08:00", "17:00")
	a := assign(t, e, f, "2024-06-02T09:00:00Z", "2024-06-02T11:00:00Z")

	if err := e.RemoveWorkerAssignment(context.Background(), a.ID, actor); err != nil {
		t.Fatalf("remove assignment: %v", err)
	}
	ws := workerWindows(t, e, f.worker.ID)
	if len(ws) != 1 {
		t.Fatalf("windows=%d want 1 coalesced window", len(ws))
	}
	if ws[0].StartTime != "08:00" || ws[0].EndTime != "17:00" {
		t.Fatalf("restored window %s..%s", ws[0].StartTime, ws[0].EndTime)
	}
	if _, err := e.Repo.GetAssignment(context.Background(), a.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("assignment should be gone, got %v", err)
	}
}

func TestRemoveMiddleAssignmentMergesBothSides(t *testing.T) {
	e := newTestEngine(t)
	f := seed(t, e)
	declare(t, e, f.worker.ID, "2024-06-02", "08:00", "17:00")
	first := assign(t, e, f, "2024-06-02T09:00:00Z", "2024-06-02T11:00:00Z")
	assign(t, e, f, "2024-06-02T13:00:00Z", "2024-06-02T14:00:00Z")

	if err := e.RemoveWorkerAssignment(context.Background(), first.ID, actor); err != nil {
		t.Fatalf("remove assignment: %v", err)
	}
	ws := workerWindows(t, e, f.worker.ID)
	if len(ws) != 2 {
		t.Fatalf("windows=%d want 2", len(ws))
	}
	if ws[0].StartTime != "08:00" || ws[0].EndTime != "13:00" {
		t.Fatalf("merged window %s..%s", ws[0].StartTime, ws[0].EndTime)
	}
	if ws[1].StartTime != "14:00" || ws[1].EndTime != "17:00" {
		t.Fatalf("remaining fragment %s..%s", ws[1].StartTime, ws[1].EndTime)
	}
}

func TestDeclareAvailabilityOncePerDay(t *testing.T) {
	e := newTestEngine(t)
	f := seed(t, e)
	declare(t, e, f.worker.ID, "2024-06-02", "08:00", "12:00")
	_, err := e.DeclareAvailability(context.Background(), domain.SubjectWorker, f.worker.ID, "2024-06-02", "13:00", "17:00", actor)
	var ce engine.ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("expected conflict, got %v", err)
	}
	// A different date is fine.
	declare(t, e, f.worker.ID, "2024-06-03", "08:00", "12:00")
}

func TestDeclareAvailabilityValidation(t *testing.T) {
	e := newTestEngine(t)
	f := seed(t, e)
	ctx := context.Background()
	if _, err := e.DeclareAvailability(ctx, domain.SubjectWorker, f.worker.ID, "2024-06-02", "17:00", "08:00", actor); !errors.Is(err, engine.ErrInvalidRange) {
		t.Fatalf("inverted clock: %v", err)
	}
	if _, err := e.DeclareAvailability(ctx, domain.SubjectWorker, f.worker.ID, "2024-06-02", "09:00", "09:00", actor); !errors.Is(err, engine.ErrInvalidRange) {
		t.Fatalf("empty window: %v", err)
	}
	if _, err := e.DeclareAvailability(ctx, domain.SubjectWorker, f.worker.ID, "2024-06-02", "9am", "17:00", actor); err == nil {
		t.Fatal("bad clock format accepted")
	}
	if _, err := e.DeclareAvailability(ctx, domain.SubjectWorker, "no-such-worker", "2024-06-02", "08:00", "17:00", actor); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("unknown worker: %v", err)
	}
	if _, err := e.DeclareAvailability(ctx, "vehicle", f.worker.ID, "2024-06-02", "08:00", "17:00", actor); err == nil {
		t.Fatal("bad subject kind accepted")
	}
}

func TestAssignWorkerValidation(t *testing.T) {
	e := newTestEngine(t)
	f := seed(t, e)
	ctx := context.Background()

	_, err := e.AssignWorker(ctx, engine.AssignWorkerOptions{
		WorkerID: f.worker.ID, SubtaskID: f.subtask.ID,
		StartsAt: "2024-06-02T11:00:00Z", EndsAt: "2024-06-02T09:00:00Z", ActorID: actor,
	})
	if !errors.Is(err, engine.ErrInvalidRange) {
		t.Fatalf("inverted range: %v", err)
	}
	_, err = e.AssignWorker(ctx, engine.AssignWorkerOptions{
		WorkerID: "no-such-worker", SubtaskID: f.subtask.ID,
		StartsAt: "2024-06-02T09:00:00Z", EndsAt: "2024-06-02T11:00:00Z", ActorID: actor,
	})
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("unknown worker: %v", err)
	}
	_, err = e.AssignWorker(ctx, engine.AssignWorkerOptions{
		WorkerID: f.worker.ID, SubtaskID: "no-such-subtask",
		StartsAt: "2024-06-02T09:00:00Z", EndsAt: "2024-06-02T11:00:00Z", ActorID: actor,
	})
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("unknown subtask: %v", err)
	}

	// A range crossing midnight cannot fit any per-date window.
	declare(t, e, f.worker.ID, "2024-06-02", "08:00", "17:00")
	_, err = e.AssignWorker(ctx, engine.AssignWorkerOptions{
		WorkerID: f.worker.ID, SubtaskID: f.subtask.ID,
		StartsAt: "2024-06-02T22:00:00Z", EndsAt: "2024-06-03T02:00:00Z", ActorID: actor,
	})
	if got := conflictReason(t, err); got != engine.ReasonNotAvailable {
		t.Fatalf("reason=%q", got)
	}
}

func TestAssignmentWritesEventAndNotification(t *testing.T) {
	e := newTestEngine(t)
	f := seed(t, e)
	declare(t, e, f.worker.ID, "2024-06-02", "08:00", "17:00")
	a := assign(t, e, f, "2024-06-02T09:00:00Z", "2024-06-02T11:00:00Z")

	ctx := context.Background()
	evts, err := e.Repo.LatestEvents(ctx, 10, "", "assignment.created", "", "")
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(evts) != 1 || evts[0].EntityID != a.ID {
		t.Fatalf("events=%+v", evts)
	}
	notes, err := e.Repo.ListNotifications(ctx, f.worker.ID, true)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	if len(notes) != 1 {
		t.Fatalf("notifications=%d want 1", len(notes))
	}
}

// --- equipment ---

func seedEquipment(t *testing.T, e engine.Engine) domain.Equipment {
	t.Helper()
	eq, err := e.CreateEquipment(context.Background(), domain.Equipment{Name: "Tower crane"}, actor)
	if err != nil {
		t.Fatalf("create equipment: %v", err)
	}
	return eq
}

func TestAssignEquipmentConflicts(t *testing.T) {
	e := newTestEngine(t)
	f := seed(t, e)
	eq := seedEquipment(t, e)
	ctx := context.Background()

	first, err := e.AssignEquipment(ctx, engine.AssignEquipmentOptions{
		EquipmentID: eq.ID, SubtaskID: f.subtask.ID,
		StartsAt: "2024-06-02T09:00:00Z", EndsAt: "2024-06-02T12:00:00Z", ActorID: actor,
	})
	if err != nil {
		t.Fatalf("assign equipment: %v", err)
	}
	_, err = e.AssignEquipment(ctx, engine.AssignEquipmentOptions{
		EquipmentID: eq.ID, SubtaskID: f.subtask.ID,
		StartsAt: "2024-06-02T11:00:00Z", EndsAt: "2024-06-02T14:00:00Z", ActorID: actor,
	})
	if got := conflictReason(t, err); got != engine.ReasonEquipmentBusy {
		t.Fatalf("reason=%q", got)
	}
	// Touching at the boundary is not a conflict.
	if _, err := e.AssignEquipment(ctx, engine.AssignEquipmentOptions{
		EquipmentID: eq.ID, SubtaskID: f.subtask.ID,
		StartsAt: "2024-06-02T12:00:00Z", EndsAt: "2024-06-02T14:00:00Z", ActorID: actor,
	}); err != nil {
		t.Fatalf("back-to-back equipment assignment: %v", err)
	}

	// Cancelled assignments stop blocking their range.
	if _, err := e.SetEquipmentAssignmentStatus(ctx, first.ID, domain.EquipAssignCancelled, actor); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := e.AssignEquipment(ctx, engine.AssignEquipmentOptions{
		EquipmentID: eq.ID, SubtaskID: f.subtask.ID,
		StartsAt: "2024-06-02T09:00:00Z", EndsAt: "2024-06-02T12:00:00Z", ActorID: actor,
	}); err != nil {
		t.Fatalf("reassign over cancelled: %v", err)
	}
}

func TestMaintenanceBlocksAssignment(t *testing.T) {
	e := newTestEngine(t)
	f := seed(t, e)
	eq := seedEquipment(t, e)
	ctx := context.Background()

	slot, err := e.ScheduleMaintenance(ctx, eq.ID, "2024-06-02T08:00:00Z", "2024-06-02T12:00:00Z", actor)
	if err != nil {
		t.Fatalf("schedule maintenance: %v", err)
	}
	_, err = e.AssignEquipment(ctx, engine.AssignEquipmentOptions{
		EquipmentID: eq.ID, SubtaskID: f.subtask.ID,
		StartsAt: "2024-06-02T10:00:00Z", EndsAt: "2024-06-02T14:00:00Z", ActorID: actor,
	})
	if got := conflictReason(t, err); got != engine.ReasonEquipmentBusy {
		t.Fatalf("reason=%q", got)
	}
	if err := e.CancelMaintenance(ctx, slot.ID, actor); err != nil {
		t.Fatalf("cancel maintenance: %v", err)
	}
	if _, err := e.AssignEquipment(ctx, engine.AssignEquipmentOptions{
		EquipmentID: eq.ID, SubtaskID: f.subtask.ID,
		StartsAt: "2024-06-02T10:00:00Z", EndsAt: "2024-06-02T14:00:00Z", ActorID: actor,
	}); err != nil {
		t.Fatalf("assign after cancelled maintenance: %v", err)
	}
}

func TestDecommissionedEquipmentRejectsEverything(t *testing.T) {
	e := newTestEngine(t)
	f := seed(t, e)
	eq := seedEquipment(t, e)
	ctx := context.Background()

	if _, err := e.SetEquipmentBaselineStatus(ctx, eq.ID, domain.EquipmentDecommissioned, actor); err != nil {
		t.Fatalf("decommission: %v", err)
	}
	_, err := e.AssignEquipment(ctx, engine.AssignEquipmentOptions{
		EquipmentID: eq.ID, SubtaskID: f.subtask.ID,
		StartsAt: "2024-06-02T09:00:00Z", EndsAt: "2024-06-02T12:00:00Z", ActorID: actor,
	})
	if got := conflictReason(t, err); got != engine.ReasonDecommissioned {
		t.Fatalf("assign reason=%q", got)
	}
	if _, err := e.ScheduleMaintenance(ctx, eq.ID, "2024-06-02T09:00:00Z", "2024-06-02T12:00:00Z", actor); err == nil {
		t.Fatal("maintenance on decommissioned equipment accepted")
	}
	ok, err := e.EquipmentAvailable(ctx, eq.ID, "2024-06-02T09:00:00Z", "2024-06-02T12:00:00Z")
	if err != nil || ok {
		t.Fatalf("available=%v err=%v", ok, err)
	}
	status, err := e.EquipmentStatus(ctx, eq.ID)
	if err != nil || status != domain.EquipmentDecommissioned {
		t.Fatalf("status=%s err=%v", status, err)
	}
}

func TestEquipmentStatusResolution(t *testing.T) {
	e := newTestEngine(t)
	f := seed(t, e)
	eq := seedEquipment(t, e)
	ctx := context.Background()

	status, err := e.EquipmentStatus(ctx, eq.ID)
	if err != nil || status != domain.EquipmentAvailable {
		t.Fatalf("baseline status=%s err=%v", status, err)
	}

	// Maintenance covering the clock's current instant.
	slot, err := e.ScheduleMaintenance(ctx, eq.ID, "2024-06-01T10:00:00Z", "2024-06-01T14:00:00Z", actor)
	if err != nil {
		t.Fatalf("schedule maintenance: %v", err)
	}
	if status, _ = e.EquipmentStatus(ctx, eq.ID); status != domain.EquipmentUnderMaintenance {
		t.Fatalf("during maintenance status=%s", status)
	}
	if err := e.CancelMaintenance(ctx, slot.ID, actor); err != nil {
		t.Fatalf("cancel maintenance: %v", err)
	}

	// An active assignment covering now resolves to in_use; once the
	// clock moves past its end the baseline returns.
	if _, err := e.AssignEquipment(ctx, engine.AssignEquipmentOptions{
		EquipmentID: eq.ID, SubtaskID: f.subtask.ID,
		StartsAt: "2024-06-01T11:00:00Z", EndsAt: "2024-06-01T13:00:00Z", ActorID: actor,
	}); err != nil {
		t.Fatalf("assign equipment: %v", err)
	}
	if status, _ = e.EquipmentStatus(ctx, eq.ID); status != domain.EquipmentInUse {
		t.Fatalf("during assignment status=%s", status)
	}
	e.Now = func() time.Time { return time.Date(2024, 6, 1, 13, 0, 0, 0, time.UTC) }
	if status, _ = e.EquipmentStatus(ctx, eq.ID); status != domain.EquipmentAvailable {
		t.Fatalf("after assignment status=%s", status)
	}
}

// --- progress rollup ---

func TestProjectProgressRollup(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	p, err := e.CreateProject(ctx, domain.Project{Name: "Depot"}, actor)
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	mt1, err := e.CreateMainTask(ctx, domain.MainTask{ProjectID: p.ID, Name: "Foundations"}, actor)
	if err != nil {
		t.Fatalf("create main task: %v", err)
	}
	for i, status := range []string{domain.StatusCompleted, domain.StatusInProgress} {
		st, err := e.CreateSubtask(ctx, domain.Subtask{MainTaskID: mt1.ID, Name: "st" + string(rune('a'+i))}, actor)
		if err != nil {
			t.Fatalf("create subtask: %v", err)
		}
		if _, err := e.SetSubtaskStatus(ctx, st.ID, status, actor); err != nil {
			t.Fatalf("set subtask status: %v", err)
		}
	}
	// A main task without subtasks falls back to its own status.
	mt2, err := e.CreateMainTask(ctx, domain.MainTask{ProjectID: p.ID, Name: "Roofing"}, actor)
	if err != nil {
		t.Fatalf("create main task: %v", err)
	}
	if _, err := e.SetMainTaskStatus(ctx, mt2.ID, domain.StatusInProgress, actor); err != nil {
		t.Fatalf("set main task status: %v", err)
	}

	progress, err := e.ProjectProgress(ctx, p.ID)
	if err != nil {
		t.Fatalf("project progress: %v", err)
	}
	if len(progress.MainTasks) != 2 {
		t.Fatalf("main tasks=%d", len(progress.MainTasks))
	}
	// (100+50)/2 = 75 for the first, the second's own status gives 50.
	if got := progress.MainTasks[0].Completion; got != 75 {
		t.Fatalf("mt1 completion=%v", got)
	}
	if got := progress.MainTasks[1].Completion; got != 50 {
		t.Fatalf("mt2 completion=%v", got)
	}
	if progress.Completion != 62.5 {
		t.Fatalf("project completion=%v", progress.Completion)
	}
}

func TestProjectProgressRounding(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	p, err := e.CreateProject(ctx, domain.Project{Name: "Thirds"}, actor)
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	mt, err := e.CreateMainTask(ctx, domain.MainTask{ProjectID: p.ID, Name: "Only"}, actor)
	if err != nil {
		t.Fatalf("create main task: %v", err)
	}
	for i, status := range []string{domain.StatusCompleted, domain.StatusInProgress, domain.StatusAssigned} {
		st, err := e.CreateSubtask(ctx, domain.Subtask{MainTaskID: mt.ID, Name: "st" + string(rune('a'+i))}, actor)
		if err != nil {
			t.Fatalf("create subtask: %v", err)
		}
		if _, err := e.SetSubtaskStatus(ctx, st.ID, status, actor); err != nil {
			t.Fatalf("set subtask status: %v", err)
		}
	}
	progress, err := e.ProjectProgress(ctx, p.ID)
	if err != nil {
		t.Fatalf("project progress: %v", err)
	}
	// (100+50+25)/3 = 58.333..., rounded half-up to two decimals.
	if got := progress.MainTasks[0].Completion; got != 58.33 {
		t.Fatalf("main task completion=%v", got)
	}
	if progress.Completion != 58.33 {
		t.Fatalf("project completion=%v", progress.Completion)
	}
}

func TestProjectProgressEmptyProject(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	p, err := e.CreateProject(ctx, domain.Project{Name: "Empty"}, actor)
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	progress, err := e.ProjectProgress(ctx, p.ID)
	if err != nil {
		t.Fatalf("project progress: %v", err)
	}
	if progress.Completion != 0 || len(progress.MainTasks) != 0 {
		t.Fatalf("progress=%+v", progress)
	}
	if _, err := e.ProjectProgress(ctx, "no-such-project"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("unknown project: %v", err)
	}
}

func TestProjectProgressOverdue(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	p, err := e.CreateProject(ctx, domain.Project{Name: "Late", PlannedEnd: "2024-05-01"}, actor)
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	mt, err := e.CreateMainTask(ctx, domain.MainTask{ProjectID: p.ID, Name: "Slipping", PlannedEnd: "2024-05-15"}, actor)
	if err != nil {
		t.Fatalf("create main task: %v", err)
	}
	done, err := e.CreateSubtask(ctx, domain.Subtask{MainTaskID: mt.ID, Name: "done", PlannedEnd: "2024-05-10"}, actor)
	if err != nil {
		t.Fatalf("create subtask: %v", err)
	}
	if _, err := e.SetSubtaskStatus(ctx, done.ID, domain.StatusCompleted, actor); err != nil {
		t.Fatalf("set status: %v", err)
	}
	if _, err := e.CreateSubtask(ctx, domain.Subtask{MainTaskID: mt.ID, Name: "future", PlannedEnd: "2024-07-01"}, actor); err != nil {
		t.Fatalf("create subtask: %v", err)
	}

	progress, err := e.ProjectProgress(ctx, p.ID)
	if err != nil {
		t.Fatalf("project progress: %v", err)
	}
	if !progress.Overdue {
		t.Fatal("project past planned end must be overdue")
	}
	mtp := progress.MainTasks[0]
	if !mtp.Overdue {
		t.Fatal("main task past planned end must be overdue")
	}
	if mtp.Subtasks[0].Overdue {
		t.Fatal("completed subtask is never overdue")
	}
	if mtp.Subtasks[1].Overdue {
		t.Fatal("subtask due in the future is not overdue")
	}
}
