package server

import (
	"siteline/internal/domain"
)

// Request payloads

type CreateProjectRequest struct {
	ID           *string `json:"id,omitempty"`
	Name         string  `json:"name"`
	Description  *string `json:"description,omitempty"`
	PlannedStart *string `json:"planned_start,omitempty" format:"date"`
	PlannedEnd   *string `json:"planned_end,omitempty" format:"date"`
}

type CreateMainTaskRequest struct {
	Name         string  `json:"name"`
	PlannedStart *string `json:"planned_start,omitempty" format:"date"`
	PlannedEnd   *string `json:"planned_end,omitempty" format:"date"`
}

type CreateSubtaskRequest struct {
	MainTaskID   string  `json:"main_task_id"`
	Name         string  `json:"name"`
	PlannedStart *string `json:"planned_start,omitempty" format:"date"`
	PlannedEnd   *string `json:"planned_end,omitempty" format:"date"`
}

type SetStatusRequest struct {
	Status string `json:"status"`
}

type CreateWorkerRequest struct {
	Name   string   `json:"name"`
	Trade  *string  `json:"trade,omitempty"`
	Skills []string `json:"skills,omitempty"`
}

type SetSkillsRequest struct {
	Skills []string `json:"skills"`
}

type CreateEquipmentRequest struct {
	Name     string  `json:"name"`
	Category *string `json:"category,omitempty"`
}

type DeclareAvailabilityRequest struct {
	SubjectKind string `json:"subject_kind" enum:"worker,equipment"`
	SubjectID   string `json:"subject_id"`
	Day         string `json:"day" format:"date"`
	StartTime   string `json:"start_time" example:"08:00"`
	EndTime     string `json:"end_time" example:"17:00"`
}

type AssignWorkerRequest struct {
	WorkerID  string `json:"worker_id"`
	SubtaskID string `json:"subtask_id"`
	StartsAt  string `json:"starts_at" format:"date-time"`
	EndsAt    string `json:"ends_at" format:"date-time"`
}

type AssignEquipmentRequest struct {
	EquipmentID string `json:"equipment_id"`
	SubtaskID   string `json:"subtask_id"`
	StartsAt    string `json:"starts_at" format:"date-time"`
	EndsAt      string `json:"ends_at" format:"date-time"`
}

type ScheduleMaintenanceRequest struct {
	StartsAt string `json:"starts_at" format:"date-time"`
	EndsAt   string `json:"ends_at" format:"date-time"`
}

// Response helpers. Domain structs already carry JSON tags, so most
// responses embed them directly; the few wrappers below exist for
// collection endpoints.

type availabilityResponse struct {
	SubjectKind string                      `json:"subject_kind"`
	SubjectID   string                      `json:"subject_id"`
	Windows     []domain.AvailabilityWindow `json:"windows"`
}

type equipmentStatusResponse struct {
	EquipmentID string `json:"equipment_id"`
	Status      string `json:"status" enum:"available,in_use,under_maintenance,decommissioned"`
}

type equipmentAvailabilityResponse struct {
	EquipmentID string `json:"equipment_id"`
	StartsAt    string `json:"starts_at" format:"date-time"`
	EndsAt      string `json:"ends_at" format:"date-time"`
	Available   bool   `json:"available"`
}

func emptyIfNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func stringOrEmpty(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
