package server

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/me/schedsim/internal/dispatcher"
	"github.com/me/schedsim/internal/store"
	"github.com/me/schedsim/internal/workload"
	"github.com/me/schedsim/pkg/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testDispatcher(t *testing.T) *dispatcher.Dispatcher {
	t.Helper()
	d, err := dispatcher.New(2, workload.NewLoader(nil, testLogger()), testLogger())
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { d.Shutdown(context.Background()) })
	return d
}

func testStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLiteStore(":memory:", testLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func testServer(t *testing.T) *Server {
	t.Helper()
	return New(testDispatcher(t), testLogger(), WithStore(testStore(t)))
}

func writeWorkload(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "workload.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// envelope is used to decode the standard response envelope.
type envelope struct {
	Status     string            `json:"status"`
	RequestID  string            `json:"request_id"`
	Timestamp  string            `json:"timestamp"`
	Data       json.RawMessage   `json:"data"`
	Pagination *model.Pagination `json:"pagination"`
	Error      *model.APIError   `json:"error"`
}

func do(t *testing.T, srv *Server, method, path, body string, wantStatus int) envelope {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != wantStatus {
		t.Fatalf("%s %s: status=%d, want %d, body=%s", method, path, w.Code, wantStatus, w.Body.String())
	}
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: invalid JSON: %v", method, path, err)
	}
	return env
}

func submit(t *testing.T, srv *Server, workload string) model.Cycle {
	t.Helper()
	body, _ := json.Marshal(model.SubmitCycleRequest{Workload: workload})
	env := do(t, srv, "POST", "/api/v1/cycles/", string(body), http.StatusCreated)
	var c model.Cycle
	if err := json.Unmarshal(env.Data, &c); err != nil {
		t.Fatalf("decode cycle: %v", err)
	}
	return c
}

func TestDiscovery(t *testing.T) {
	srv := testServer(t)
	env := do(t, srv, "GET", "/api/v1/", "", http.StatusOK)
	if env.Status != "ok" {
		t.Errorf("status = %q, want ok", env.Status)
	}
	if env.RequestID == "" {
		t.Error("request_id is empty")
	}

	var data discoveryResponse
	json.Unmarshal(env.Data, &data)
	if data.Name != "schedsim API" {
		t.Errorf("name = %q, want schedsim API", data.Name)
	}
	if len(data.Endpoints) != 3 {
		t.Errorf("endpoints count = %d, want 3", len(data.Endpoints))
	}
}

func TestRequestID_Propagated(t *testing.T) {
	srv := testServer(t)
	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "req_client1")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "req_client1" {
		t.Errorf("X-Request-ID = %q, want req_client1", got)
	}
}

func TestHealth(t *testing.T) {
	srv := testServer(t)
	env := do(t, srv, "GET", "/api/v1/health", "", http.StatusOK)

	var data healthResponse
	json.Unmarshal(env.Data, &data)
	if data.Status != "healthy" {
		t.Errorf("health status = %q, want healthy", data.Status)
	}
	if data.Dispatcher != string(model.DispatcherStateAwaitRequest) {
		t.Errorf("dispatcher = %q, want AWAIT_REQUEST", data.Dispatcher)
	}
	if len(data.Workers) != 2 {
		t.Fatalf("workers = %d, want 2", len(data.Workers))
	}
	if data.Workers[0].Policy != "SJF" || data.Workers[1].Policy != "RR" {
		t.Errorf("policies = %s, %s", data.Workers[0].Policy, data.Workers[1].Policy)
	}
	if data.Store != "sqlite" {
		t.Errorf("store = %q, want sqlite", data.Store)
	}
}

func TestCreateCycle(t *testing.T) {
	srv := testServer(t)
	c := submit(t, srv, writeWorkload(t, "4\n0 5\n1 3\n2 1\n"))

	if c.ID == "" || c.Workers != 2 {
		t.Errorf("cycle = %+v", c)
	}
	if len(c.Results) != 2 {
		t.Fatalf("results = %d, want 2", len(c.Results))
	}
	rr := c.Results[1]
	if rr.Policy != model.PolicyRoundRobin || rr.Waiting != 4 || rr.Turnaround != 7 {
		t.Errorf("rr result = %+v", rr)
	}

	env := do(t, srv, "GET", "/api/v1/cycles/"+c.ID, "", http.StatusOK)
	var stored model.Cycle
	json.Unmarshal(env.Data, &stored)
	if stored.ID != c.ID || len(stored.Results) != 2 {
		t.Errorf("stored cycle = %+v", stored)
	}
}

func TestCreateCycle_UnreadableWorkload(t *testing.T) {
	srv := testServer(t)
	c := submit(t, srv, filepath.Join(t.TempDir(), "missing.txt"))
	for _, r := range c.Results {
		if !strings.Contains(r.Error, "WorkloadOpenError") {
			t.Errorf("worker %d error = %q, want WorkloadOpenError", r.WorkerID, r.Error)
		}
	}
}

func TestCreateCycle_Validation(t *testing.T) {
	srv := testServer(t)

	env := do(t, srv, "POST", "/api/v1/cycles/", "not json", http.StatusBadRequest)
	if env.Status != "error" || env.Error == nil || env.Error.Code != model.ErrValidation {
		t.Errorf("invalid JSON error = %+v", env.Error)
	}

	env = do(t, srv, "POST", "/api/v1/cycles/", `{"workload":"  "}`, http.StatusBadRequest)
	if env.Error == nil || len(env.Error.Details) != 1 || env.Error.Details[0].Field != "workload" {
		t.Errorf("missing workload error = %+v", env.Error)
	}
}

func TestCreateCycle_AfterShutdown(t *testing.T) {
	d := testDispatcher(t)
	srv := New(d, testLogger())
	if err := d.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}

	env := do(t, srv, "POST", "/api/v1/cycles/", `{"workload":"w.txt"}`, http.StatusServiceUnavailable)
	if env.Error == nil || env.Error.Code != model.ErrUnavailable {
		t.Errorf("error = %+v, want UNAVAILABLE", env.Error)
	}

	health := do(t, srv, "GET", "/api/v1/health", "", http.StatusOK)
	var data healthResponse
	json.Unmarshal(health.Data, &data)
	if data.Status != "shutting_down" || data.Store != "disabled" {
		t.Errorf("health = %+v", data)
	}
}

func TestListCycles(t *testing.T) {
	srv := testServer(t)
	a := writeWorkload(t, "2\n0 1\n")
	b := writeWorkload(t, "3\n0 4\n")
	submit(t, srv, a)
	submit(t, srv, b)
	submit(t, srv, a)

	env := do(t, srv, "GET", "/api/v1/cycles/", "", http.StatusOK)
	if env.Pagination == nil || env.Pagination.Total != 3 || env.Pagination.HasMore {
		t.Errorf("pagination = %+v", env.Pagination)
	}

	env = do(t, srv, "GET", "/api/v1/cycles/?limit=1", "", http.StatusOK)
	var cycles []model.Cycle
	json.Unmarshal(env.Data, &cycles)
	if len(cycles) != 1 || !env.Pagination.HasMore {
		t.Errorf("limit=1: %d cycles, pagination %+v", len(cycles), env.Pagination)
	}

	env = do(t, srv, "GET", "/api/v1/cycles/?workload="+url.QueryEscape(b), "", http.StatusOK)
	if env.Pagination.Total != 1 {
		t.Errorf("workload filter total = %d, want 1", env.Pagination.Total)
	}

	env = do(t, srv, "GET", "/api/v1/cycles/?limit=abc", "", http.StatusBadRequest)
	if env.Error == nil || env.Error.Details[0].Field != "limit" {
		t.Errorf("bad limit error = %+v", env.Error)
	}
}

func TestGetCycle_NotFound(t *testing.T) {
	srv := testServer(t)
	env := do(t, srv, "GET", "/api/v1/cycles/nope", "", http.StatusNotFound)
	if env.Error == nil || env.Error.Code != model.ErrNotFound {
		t.Errorf("error = %+v, want NOT_FOUND", env.Error)
	}
}

func TestDeleteCycle(t *testing.T) {
	srv := testServer(t)
	c := submit(t, srv, writeWorkload(t, "2\n0 1\n"))

	do(t, srv, "DELETE", "/api/v1/cycles/"+c.ID, "", http.StatusOK)
	do(t, srv, "GET", "/api/v1/cycles/"+c.ID, "", http.StatusNotFound)
	do(t, srv, "DELETE", "/api/v1/cycles/"+c.ID, "", http.StatusNotFound)
}

func TestHistoryDisabled(t *testing.T) {
	srv := New(testDispatcher(t), testLogger())
	env := do(t, srv, "GET", "/api/v1/cycles/", "", http.StatusServiceUnavailable)
	if env.Error == nil || env.Error.Code != model.ErrUnavailable {
		t.Errorf("error = %+v, want UNAVAILABLE", env.Error)
	}
}

func TestCreateCycle_WorkloadRoots(t *testing.T) {
	root := t.TempDir()
	inside := filepath.Join(root, "w.txt")
	if err := os.WriteFile(inside, []byte("4\n0 5\n1 3\n2 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	srv := New(testDispatcher(t), testLogger(), WithStore(testStore(t)), WithWorkloadRoots(root))

	c := submit(t, srv, inside)
	if c.FailedCount() != 0 {
		t.Errorf("workload inside root failed: %+v", c.Results)
	}

	for _, id := range []string{
		writeWorkload(t, "4\n0 5\n"),
		root + "/../escape.txt",
		"http://127.0.0.1:1/w.txt",
	} {
		body, _ := json.Marshal(model.SubmitCycleRequest{Workload: id})
		env := do(t, srv, "POST", "/api/v1/cycles/", string(body), http.StatusForbidden)
		if env.Error == nil || env.Error.Code != model.ErrForbidden {
			t.Errorf("%s: error = %+v, want FORBIDDEN", id, env.Error)
			continue
		}
		if strings.Contains(env.Error.Message, id) {
			t.Errorf("%s: error message echoes the location: %q", id, env.Error.Message)
		}
	}

	list := do(t, srv, "GET", "/api/v1/cycles/", "", http.StatusOK)
	if list.Pagination == nil || list.Pagination.Total != 1 {
		t.Errorf("rejected workloads were recorded: %+v", list.Pagination)
	}
}

// abandoningDispatcher reports every cycle as abandoned by its caller.
type abandoningDispatcher struct {
	*dispatcher.Dispatcher
}

func (abandoningDispatcher) Dispatch(context.Context, string) (*model.Cycle, error) {
	return nil, context.DeadlineExceeded
}

func TestCreateCycle_Abandoned(t *testing.T) {
	srv := New(abandoningDispatcher{testDispatcher(t)}, testLogger())
	env := do(t, srv, "POST", "/api/v1/cycles/", `{"workload":"slow.txt"}`, http.StatusServiceUnavailable)
	if env.Error == nil || env.Error.Code != model.ErrUnavailable {
		t.Errorf("error = %+v, want UNAVAILABLE", env.Error)
	}
}
