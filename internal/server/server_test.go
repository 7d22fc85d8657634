package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"

	"siteline/internal/config"
	"siteline/internal/db"
	"siteline/internal/domain"
	"siteline/internal/engine"
	"siteline/internal/migrate"
)

const testJWTSecret = "server-test-secret"

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	cfg := config.Default("siteline")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, cfg)
	if _, err := e.CreateProject(context.Background(), domain.Project{ID: "siteline", Name: "Siteline"}, "tester"); err != nil {
		t.Fatalf("seed project: %v", err)
	}
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v0",
		Auth: AuthConfig{
			JWTSecret:              testJWTSecret,
			AllowLegacyActorHeader: true,
		},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if headers == nil {
		req.Header.Set("X-Actor-Id", "tester")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

// seedSubtask creates a main task and one subtask over HTTP and returns
// the subtask id.
func seedSubtask(t *testing.T, srv *testServer) string {
	t.Helper()
	client := srv.Client()
	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects/siteline/tasks", map[string]any{
		"name": "Foundations",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create main task: %d %s", res.StatusCode, string(data))
	}
	var mt domain.MainTask
	if err := json.Unmarshal(data, &mt); err != nil {
		t.Fatalf("unmarshal main task: %v", err)
	}
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks/"+mt.ID+"/subtasks", map[string]any{
		"main_task_id": mt.ID,
		"name":         "Pour slab",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create subtask: %d %s", res.StatusCode, string(data))
	}
	var st domain.Subtask
	if err := json.Unmarshal(data, &st); err != nil {
		t.Fatalf("unmarshal subtask: %v", err)
	}
	return st.ID
}

func seedWorker(t *testing.T, srv *testServer) string {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/workers", map[string]any{
		"name":  "Mara",
		"trade": "mason",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create worker: %d %s", res.StatusCode, string(data))
	}
	var w domain.Worker
	if err := json.Unmarshal(data, &w); err != nil {
		t.Fatalf("unmarshal worker: %v", err)
	}
	return w.ID
}

func TestAssignmentConflictOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	subtaskID := seedSubtask(t, srv)
	workerID := seedWorker(t, srv)

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/availability", map[string]any{
		"subject_kind": "worker",
		"subject_id":   workerID,
		"day":          "2030-05-01",
		"start_time":   "08:00",
		"end_time":     "17:00",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("declare availability: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/assignments", map[string]any{
		"worker_id":  workerID,
		"subtask_id": subtaskID,
		"starts_at":  "2030-05-01T09:00:00Z",
		"ends_at":    "2030-05-01T11:00:00Z",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("assign: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/assignments", map[string]any{
		"worker_id":  workerID,
		"subtask_id": subtaskID,
		"starts_at":  "2030-05-01T10:00:00Z",
		"ends_at":    "2030-05-01T12:00:00Z",
	}, nil)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error envelope: %v", err)
	}
	if envelope.Error.Code != "conflict" {
		t.Fatalf("expected code conflict, got %q", envelope.Error.Code)
	}
	if envelope.Error.Details["reason"] != "double-booked" {
		t.Fatalf("expected reason double-booked, got %v", envelope.Error.Details["reason"])
	}
}

func TestAvailabilitySplitVisibleOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	subtaskID := seedSubtask(t, srv)
	workerID := seedWorker(t, srv)

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/availability", map[string]any{
		"subject_kind": "worker",
		"subject_id":   workerID,
		"day":          "2030-05-02",
		"start_time":   "08:00",
		"end_time":     "17:00",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("declare availability: %d %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/assignments", map[string]any{
		"worker_id":  workerID,
		"subtask_id": subtaskID,
		"starts_at":  "2030-05-02T09:00:00Z",
		"ends_at":    "2030-05-02T11:00:00Z",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("assign: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/availability/worker/"+workerID, nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list availability: %d %s", res.StatusCode, string(data))
	}
	var listing struct {
		Windows []domain.AvailabilityWindow `json:"windows"`
	}
	if err := json.Unmarshal(data, &listing); err != nil {
		t.Fatalf("unmarshal availability: %v", err)
	}
	if len(listing.Windows) != 2 {
		t.Fatalf("expected 2 fragments, got %d: %s", len(listing.Windows), string(data))
	}
	if listing.Windows[0].EndTime != "09:00" || listing.Windows[1].StartTime != "11:00" {
		t.Fatalf("unexpected fragments: %+v", listing.Windows)
	}
}

func TestValidationErrorsOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	subtaskID := seedSubtask(t, srv)
	workerID := seedWorker(t, srv)

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/assignments", map[string]any{
		"worker_id":  workerID,
		"subtask_id": subtaskID,
		"starts_at":  "2030-05-01T11:00:00Z",
		"ends_at":    "2030-05-01T09:00:00Z",
	}, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("inverted range: expected 400, got %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/assignments", map[string]any{
		"worker_id":  "no-such-worker",
		"subtask_id": subtaskID,
		"starts_at":  "2030-05-01T09:00:00Z",
		"ends_at":    "2030-05-01T11:00:00Z",
	}, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown worker: expected 404, got %d %s", res.StatusCode, string(data))
	}
}

func TestAuthRequired(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/v0/workers", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", res.StatusCode)
	}

	// Health stays open.
	healthRes, err := client.Get(srv.URL + "/v0/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	healthRes.Body.Close()
	if healthRes.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from health, got %d", healthRes.StatusCode)
	}
}

func TestDevLoginIssuesUsableToken(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/auth/dev/login", map[string]any{
		"actor_id": "user-pm",
	}, map[string]string{"X-Actor-Id": "bootstrap"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("dev login: %d %s", res.StatusCode, string(data))
	}
	var login struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(data, &login); err != nil {
		t.Fatalf("unmarshal login: %v", err)
	}
	if login.Token == "" {
		t.Fatalf("expected a token, got %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/workers", map[string]any{
		"name": "Jules",
	}, map[string]string{"Authorization": "Bearer " + login.Token})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create worker with JWT: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/workers", map[string]any{
		"name": "Jules",
	}, map[string]string{"Authorization": "Bearer not-a-token"})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d %s", res.StatusCode, string(data))
	}
}

func TestEquipmentStatusOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/equipment", map[string]any{
		"name":     "Tower crane",
		"category": "crane",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create equipment: %d %s", res.StatusCode, string(data))
	}
	var eq domain.Equipment
	if err := json.Unmarshal(data, &eq); err != nil {
		t.Fatalf("unmarshal equipment: %v", err)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/equipment/"+eq.ID+"/status", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status: %d %s", res.StatusCode, string(data))
	}
	var status equipmentStatusResponse
	if err := json.Unmarshal(data, &status); err != nil {
		t.Fatalf("unmarshal status: %v", err)
	}
	if status.Status != domain.EquipmentAvailable {
		t.Fatalf("expected available, got %s", status.Status)
	}

	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v0/equipment/"+eq.ID+"/status", map[string]any{
		"status": "decommissioned",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("decommission: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/equipment/"+eq.ID+"/maintenance", map[string]any{
		"starts_at": "2030-05-01T08:00:00Z",
		"ends_at":   "2030-05-01T12:00:00Z",
	}, nil)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for decommissioned equipment, got %d %s", res.StatusCode, string(data))
	}
}
