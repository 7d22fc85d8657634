package sitelinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Siteline HTTP API client.
type Client struct {
	BaseURL     string
	ProjectID   string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, projectID string) *Client {
	return &Client{
		BaseURL:   baseURL,
		ProjectID: projectID,
		Timeout:   10 * time.Second,
	}
}

// MainTask represents the API main task model (partial).
type MainTask struct {
	ID           string `json:"id"`
	ProjectID    string `json:"project_id"`
	Name         string `json:"name"`
	Status       string `json:"status"`
	PlannedStart string `json:"planned_start,omitempty"`
	PlannedEnd   string `json:"planned_end,omitempty"`
}

// Subtask represents the API subtask model (partial).
type Subtask struct {
	ID           string `json:"id"`
	MainTaskID   string `json:"main_task_id"`
	Name         string `json:"name"`
	Status       string `json:"status"`
	PlannedStart string `json:"planned_start,omitempty"`
	PlannedEnd   string `json:"planned_end,omitempty"`
}

// Worker represents the API worker model (partial).
type Worker struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Trade  string   `json:"trade,omitempty"`
	Status string   `json:"status"`
	Skills []string `json:"skills,omitempty"`
}

// Equipment represents the API equipment model (partial).
type Equipment struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
	Status   string `json:"status"`
}

// AvailabilityWindow is one free window of a worker or machine on a date.
type AvailabilityWindow struct {
	ID          string `json:"id"`
	SubjectKind string `json:"subject_kind"`
	SubjectID   string `json:"subject_id"`
	Day         string `json:"day"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
}

// Assignment books a worker to a subtask for a half-open time range.
type Assignment struct {
	ID        string `json:"id"`
	WorkerID  string `json:"worker_id"`
	SubtaskID string `json:"subtask_id"`
	StartsAt  string `json:"starts_at"`
	EndsAt    string `json:"ends_at"`
	Status    string `json:"status"`
}

// EquipmentAssignment books equipment to a subtask.
type EquipmentAssignment struct {
	ID          string `json:"id"`
	EquipmentID string `json:"equipment_id"`
	SubtaskID   string `json:"subtask_id"`
	StartsAt    string `json:"starts_at"`
	EndsAt      string `json:"ends_at"`
	Status      string `json:"status"`
}

// MainTaskProgress is the rollup of one main task.
type MainTaskProgress struct {
	MainTaskID string  `json:"main_task_id"`
	Status     string  `json:"status"`
	Completion float64 `json:"completion"`
	Overdue    bool    `json:"overdue"`
}

// ProjectProgress is the full completion rollup of a project.
type ProjectProgress struct {
	ProjectID  string             `json:"project_id"`
	Completion float64            `json:"completion"`
	Overdue    bool               `json:"overdue"`
	MainTasks  []MainTaskProgress `json:"main_tasks,omitempty"`
}

// Event represents a log entry. Payload holds the raw JSON payload.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	ProjectID  string `json:"project_id"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// IsConflict reports whether the error is a 409 scheduling conflict.
func (e *APIError) IsConflict() bool {
	return e.StatusCode == http.StatusConflict
}

// CreateMainTask creates a main task in the client's project.
func (c *Client) CreateMainTask(ctx context.Context, name string) (MainTask, error) {
	body := map[string]any{"name": name}
	var resp MainTask
	err := c.do(ctx, http.MethodPost, c.projectPath("tasks"), body, &resp)
	return resp, err
}

// CreateSubtask creates a subtask under a main task.
func (c *Client) CreateSubtask(ctx context.Context, mainTaskID, name string) (Subtask, error) {
	body := map[string]any{"main_task_id": mainTaskID, "name": name}
	var resp Subtask
	endpoint := fmt.Sprintf("v0/tasks/%s/subtasks", url.PathEscape(mainTaskID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// SetSubtaskStatus updates a subtask's status.
func (c *Client) SetSubtaskStatus(ctx context.Context, id, status string) (Subtask, error) {
	var resp Subtask
	endpoint := fmt.Sprintf("v0/subtasks/%s/status", url.PathEscape(id))
	err := c.do(ctx, http.MethodPatch, endpoint, map[string]any{"status": status}, &resp)
	return resp, err
}

// CreateWorker registers a worker.
func (c *Client) CreateWorker(ctx context.Context, name, trade string, skills []string) (Worker, error) {
	body := map[string]any{"name": name, "trade": trade, "skills": skills}
	var resp Worker
	err := c.do(ctx, http.MethodPost, "v0/workers", body, &resp)
	return resp, err
}

// CreateEquipment registers a piece of equipment.
func (c *Client) CreateEquipment(ctx context.Context, name, category string) (Equipment, error) {
	body := map[string]any{"name": name, "category": category}
	var resp Equipment
	err := c.do(ctx, http.MethodPost, "v0/equipment", body, &resp)
	return resp, err
}

// DeclareAvailability declares a free window for a worker or machine on one date.
func (c *Client) DeclareAvailability(ctx context.Context, subjectKind, subjectID, day, startTime, endTime string) (AvailabilityWindow, error) {
	body := map[string]any{
		"subject_kind": subjectKind,
		"subject_id":   subjectID,
		"day":          day,
		"start_time":   startTime,
		"end_time":     endTime,
	}
	var resp AvailabilityWindow
	err := c.do(ctx, http.MethodPost, "v0/availability", body, &resp)
	return resp, err
}

// Availability lists remaining windows for a subject.
func (c *Client) Availability(ctx context.Context, subjectKind, subjectID string) ([]AvailabilityWindow, error) {
	var resp struct {
		Windows []AvailabilityWindow `json:"windows"`
	}
	endpoint := fmt.Sprintf("v0/availability/%s/%s", url.PathEscape(subjectKind), url.PathEscape(subjectID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Windows, err
}

// AssignWorker books a worker to a subtask for [startsAt, endsAt).
// A 409 APIError means the worker is double-booked or not available.
func (c *Client) AssignWorker(ctx context.Context, workerID, subtaskID, startsAt, endsAt string) (Assignment, error) {
	body := map[string]any{
		"worker_id":  workerID,
		"subtask_id": subtaskID,
		"starts_at":  startsAt,
		"ends_at":    endsAt,
	}
	var resp Assignment
	err := c.do(ctx, http.MethodPost, "v0/assignments", body, &resp)
	return resp, err
}

// RemoveAssignment cancels a worker assignment and frees its range.
func (c *Client) RemoveAssignment(ctx context.Context, id string) error {
	endpoint := fmt.Sprintf("v0/assignments/%s", url.PathEscape(id))
	return c.do(ctx, http.MethodDelete, endpoint, nil, nil)
}

// AssignEquipment books equipment to a subtask for [startsAt, endsAt).
func (c *Client) AssignEquipment(ctx context.Context, equipmentID, subtaskID, startsAt, endsAt string) (EquipmentAssignment, error) {
	body := map[string]any{
		"equipment_id": equipmentID,
		"subtask_id":   subtaskID,
		"starts_at":    startsAt,
		"ends_at":      endsAt,
	}
	var resp EquipmentAssignment
	err := c.do(ctx, http.MethodPost, "v0/equipment-assignments", body, &resp)
	return resp, err
}

// EquipmentStatus returns the live status of a piece of equipment.
func (c *Client) EquipmentStatus(ctx context.Context, id string) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	endpoint := fmt.Sprintf("v0/equipment/%s/status", url.PathEscape(id))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Status, err
}

// EquipmentAvailable reports whether equipment is free for a range.
func (c *Client) EquipmentAvailable(ctx context.Context, id, startsAt, endsAt string) (bool, error) {
	var resp struct {
		Available bool `json:"available"`
	}
	endpoint := fmt.Sprintf("v0/equipment/%s/availability?starts_at=%s&ends_at=%s",
		url.PathEscape(id), url.QueryEscape(startsAt), url.QueryEscape(endsAt))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Available, err
}

// Progress returns the completion rollup for the client's project.
func (c *Client) Progress(ctx context.Context) (ProjectProgress, error) {
	var resp ProjectProgress
	err := c.do(ctx, http.MethodGet, c.projectPath("progress"), nil, &resp)
	return resp, err
}

// Events returns recent events for the client's project.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	endpoint := "v0/events?project_id=" + url.QueryEscape(c.ProjectID)
	if limit > 0 {
		endpoint = fmt.Sprintf("%s&limit=%d", endpoint, limit)
	}
	var resp []Event
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) projectPath(p string) string {
	project := url.PathEscape(c.ProjectID)
	return fmt.Sprintf("v0/projects/%s/%s", project, strings.TrimLeft(p, "/"))
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
