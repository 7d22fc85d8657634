package domain

// Subject kinds for availability windows.
const (
	SubjectWorker    = "worker"
	SubjectEquipment = "equipment"
)

// Task and subtask statuses. Completion percentages are derived from
// these on every read, never stored.
const (
	StatusPlanned    = "planned"
	StatusAssigned   = "assigned"
	StatusInProgress = "in_progress"
	StatusOnHold     = "on_hold"
	StatusDelayed    = "delayed"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// Equipment lifecycle statuses. The stored value is a baseline; the
// current status is resolved against maintenance slots and active
// assignments at read time.
const (
	EquipmentAvailable        = "available"
	EquipmentInUse            = "in_use"
	EquipmentUnderMaintenance = "under_maintenance"
	EquipmentDecommissioned   = "decommissioned"
)

// Equipment assignment statuses.
const (
	EquipAssignAssigned        = "assigned"
	EquipAssignInUse           = "in_use"
	EquipAssignCompleted       = "completed"
	EquipAssignCancelled       = "cancelled"
	EquipAssignReturnedDamaged = "returned_damaged"
)

type Project struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Status       string `json:"status" enum:"planned,in_progress,on_hold,delayed,completed,cancelled"`
	PlannedStart string `json:"planned_start,omitempty" format:"date"`
	PlannedEnd   string `json:"planned_end,omitempty" format:"date"`
	Description  string `json:"description,omitempty"`
	CreatedAt    string `json:"created_at" format:"date-time"`
}

type MainTask struct {
	ID           string `json:"id"`
	ProjectID    string `json:"project_id"`
	Name         string `json:"name"`
	Status       string `json:"status" enum:"planned,assigned,in_progress,on_hold,delayed,completed,cancelled"`
	PlannedStart string `json:"planned_start,omitempty" format:"date"`
	PlannedEnd   string `json:"planned_end,omitempty" format:"date"`
	CreatedAt    string `json:"created_at" format:"date-time"`
	UpdatedAt    string `json:"updated_at" format:"date-time"`
}

type Subtask struct {
	ID           string `json:"id"`
	MainTaskID   string `json:"main_task_id"`
	Name         string `json:"name"`
	Status       string `json:"status" enum:"planned,assigned,in_progress,on_hold,delayed,completed,cancelled"`
	PlannedStart string `json:"planned_start,omitempty" format:"date"`
	PlannedEnd   string `json:"planned_end,omitempty" format:"date"`
	CreatedAt    string `json:"created_at" format:"date-time"`
	UpdatedAt    string `json:"updated_at" format:"date-time"`
}

type Worker struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Trade     string   `json:"trade,omitempty"`
	Status    string   `json:"status" enum:"active,inactive"`
	Skills    []string `json:"skills,omitempty"`
	CreatedAt string   `json:"created_at" format:"date-time"`
}

type Equipment struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Category  string `json:"category,omitempty"`
	Status    string `json:"status" enum:"available,in_use,under_maintenance,decommissioned"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// AvailabilityWindow is a contiguous free time-of-day range on one
// calendar date for a worker or a piece of equipment. Windows are split
// into fragments as assignments are carved out of them.
type AvailabilityWindow struct {
	ID          string `json:"id"`
	SubjectKind string `json:"subject_kind" enum:"worker,equipment"`
	SubjectID   string `json:"subject_id"`
	Day         string `json:"day" format:"date"`
	StartTime   string `json:"start_time" example:"08:00"`
	EndTime     string `json:"end_time" example:"17:00"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

type Assignment struct {
	ID         string `json:"id"`
	WorkerID   string `json:"worker_id"`
	SubtaskID  string `json:"subtask_id"`
	StartsAt   string `json:"starts_at" format:"date-time"`
	EndsAt     string `json:"ends_at" format:"date-time"`
	Status     string `json:"status" enum:"assigned,in_progress,completed,cancelled"`
	AssignedBy string `json:"assigned_by"`
	CreatedAt  string `json:"created_at" format:"date-time"`
}

type EquipmentAssignment struct {
	ID          string `json:"id"`
	EquipmentID string `json:"equipment_id"`
	SubtaskID   string `json:"subtask_id"`
	AssignedBy  string `json:"assigned_by"`
	StartsAt    string `json:"starts_at" format:"date-time"`
	EndsAt      string `json:"ends_at" format:"date-time"`
	Status      string `json:"status" enum:"assigned,in_use,completed,cancelled,returned_damaged"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

// EquipmentSlot blocks a piece of equipment for maintenance. Assignment
// ranges are not mirrored here; availability is computed from slots plus
// active assignments at read time.
type EquipmentSlot struct {
	ID          string `json:"id"`
	EquipmentID string `json:"equipment_id"`
	StartsAt    string `json:"starts_at" format:"date-time"`
	EndsAt      string `json:"ends_at" format:"date-time"`
	Reason      string `json:"reason" enum:"maintenance"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	ProjectID  string `json:"project_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type Notification struct {
	ID          string `json:"id"`
	RecipientID string `json:"recipient_id"`
	Message     string `json:"message"`
	Category    string `json:"category"`
	Read        bool   `json:"read"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// ProjectProgress is the derived completion view of a project tree.
type ProjectProgress struct {
	ProjectID  string             `json:"project_id"`
	Completion float64            `json:"completion"`
	Overdue    bool               `json:"overdue"`
	MainTasks  []MainTaskProgress `json:"main_tasks,omitempty"`
}

type MainTaskProgress struct {
	MainTaskID string            `json:"main_task_id"`
	Status     string            `json:"status"`
	Completion float64           `json:"completion"`
	Overdue    bool              `json:"overdue"`
	Subtasks   []SubtaskProgress `json:"subtasks,omitempty"`
}

type SubtaskProgress struct {
	SubtaskID  string  `json:"subtask_id"`
	Status     string  `json:"status"`
	Completion float64 `json:"completion"`
	Overdue    bool    `json:"overdue"`
}
