package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/plastinin/identtracker/internal/adapter/http/dto"
	"github.com/plastinin/identtracker/internal/adapter/http/handler"
	"github.com/plastinin/identtracker/internal/domain"
	"github.com/plastinin/identtracker/internal/usecase"
	"go.uber.org/zap"
)

type fakeService struct {
	tasks     map[string]*domain.TrackedTask
	results   map[string]*domain.Result
	submitErr error
	cancelErr error
	prefs     map[string]domain.PollPreferences
	lastInput usecase.SubmitTaskInput
	lastPage  domain.Pagination
	lastQuery domain.TaskFilter
}

func newFakeService() *fakeService {
	return &fakeService{
		tasks:   map[string]*domain.TrackedTask{},
		results: map[string]*domain.Result{},
		prefs:   map[string]domain.PollPreferences{},
	}
}

func (s *fakeService) addTask(id string, state domain.TaskState) *domain.TrackedTask {
	task := &domain.TrackedTask{Profile: domain.DefaultProfile}
	task.ID = id
	task.FileID = 42
	task.AlgorithmKey = "algo-v2"
	task.State = state
	task.CreatedAt = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	task.UpdatedAt = task.CreatedAt
	s.tasks[id] = task
	return task
}

func (s *fakeService) Submit(_ context.Context, input usecase.SubmitTaskInput) (*domain.TrackedTask, error) {
	s.lastInput = input
	if s.submitErr != nil {
		return nil, s.submitErr
	}
	if err := input.Submission().Normalize().Validate(); err != nil {
		return nil, &domain.Error{Kind: domain.KindSubmission, Op: "submit", Message: "invalid submission", Err: err}
	}
	return s.addTask("t-1", domain.TaskStatePending), nil
}

func (s *fakeService) GetByID(_ context.Context, id string) (*domain.TrackedTask, error) {
	task, ok := s.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	return task, nil
}

func (s *fakeService) List(_ context.Context, filter domain.TaskFilter, pagination domain.Pagination) (*domain.TaskListResult, error) {
	s.lastQuery, s.lastPage = filter, pagination
	tasks := make([]*domain.TrackedTask, 0, len(s.tasks))
	for _, task := range s.tasks {
		tasks = append(tasks, task)
	}
	return &domain.TaskListResult{Tasks: tasks, Total: len(tasks), Pagination: pagination}, nil
}

func (s *fakeService) Cancel(_ context.Context, id string) (*domain.TrackedTask, error) {
	task, ok := s.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	if s.cancelErr != nil {
		return nil, s.cancelErr
	}
	if task.State.IsTerminal() {
		return nil, domain.NewInvalidStateError("cancel", id, task.State)
	}
	task.State = domain.TaskStateCancelled
	return task, nil
}

func (s *fakeService) Result(_ context.Context, id string) (*domain.Result, error) {
	task, ok := s.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	if task.State != domain.TaskStateSucceeded {
		return nil, domain.NewInvalidStateError("fetch result", id, task.State)
	}
	return s.results[id], nil
}

func (s *fakeService) ExportURLs(_ context.Context, id string) (map[string]string, error) {
	task, ok := s.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	if task.ResultKey == "" {
		return nil, domain.NewInvalidStateError("export urls", id, task.State)
	}
	return map[string]string{"json": "https://s3.local/" + task.ResultKey + ".json"}, nil
}

func (s *fakeService) Delete(_ context.Context, id string) error {
	if _, ok := s.tasks[id]; !ok {
		return domain.ErrTaskNotFound
	}
	delete(s.tasks, id)
	return nil
}

func (s *fakeService) Preferences(_ context.Context, profile string) (domain.PollPreferences, error) {
	if p, ok := s.prefs[profile]; ok {
		return p, nil
	}
	return domain.DefaultPollPreferences(), nil
}

func (s *fakeService) UpdatePreferences(_ context.Context, profile string, o domain.PreferenceOverrides) (domain.PollPreferences, error) {
	p, _ := s.Preferences(context.Background(), profile)
	p = o.Apply(p)
	s.prefs[profile] = p
	return p, nil
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func newTestRouter(svc *fakeService, db stubPinger) http.Handler {
	logger := zap.NewNop()
	return NewRouter(
		handler.NewTaskHandler(svc, logger),
		handler.NewPreferenceHandler(svc, logger),
		handler.NewHealthHandler(db, logger),
		logger,
	)
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return v
}

func TestCreateTask(t *testing.T) {
	svc := newFakeService()
	r := newTestRouter(svc, stubPinger{})

	rec := do(t, r, http.MethodPost, "/api/v1/tasks", `{"file_id":42,"algorithm_key":"algo-v2","params":{"depth":2},"profile":"lab"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body)
	}
	resp := decode[dto.TaskResponse](t, rec)
	if resp.ID != "t-1" || resp.State != "pending" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if svc.lastInput.Profile != "lab" || svc.lastInput.Params["depth"] != float64(2) {
		t.Fatalf("unexpected input %+v", svc.lastInput)
	}
}

func TestCreateTaskErrors(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		submitErr error
		code      int
		errCode   string
	}{
		{"malformed body", `{`, nil, http.StatusBadRequest, "invalid_request"},
		{"invalid file id", `{"file_id":0,"algorithm_key":"algo-v2"}`, nil, http.StatusBadRequest, "invalid_request"},
		{"missing algorithm", `{"file_id":1}`, nil, http.StatusBadRequest, "invalid_request"},
		{"remote rejected", `{"file_id":1,"algorithm_key":"a"}`, &domain.Error{Kind: domain.KindSubmission, Message: "create request failed"}, http.StatusBadGateway, "remote_error"},
		{"storage failure", `{"file_id":1,"algorithm_key":"a"}`, errors.New("failed to save task: conn refused"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newFakeService()
			svc.submitErr = tt.submitErr
			rec := do(t, newTestRouter(svc, stubPinger{}), http.MethodPost, "/api/v1/tasks", tt.body)

			if rec.Code != tt.code {
				t.Fatalf("expected %d, got %d: %s", tt.code, rec.Code, rec.Body)
			}
			if resp := decode[dto.ErrorResponse](t, rec); resp.Error != tt.errCode {
				t.Fatalf("expected %q, got %+v", tt.errCode, resp)
			}
		})
	}
}

func TestGetTask(t *testing.T) {
	svc := newFakeService()
	svc.addTask("t-7", domain.TaskStateRunning).Progress = 40
	r := newTestRouter(svc, stubPinger{})

	rec := do(t, r, http.MethodGet, "/api/v1/tasks/t-7", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if resp := decode[dto.TaskResponse](t, rec); resp.State != "running" || resp.Progress != 40 {
		t.Fatalf("unexpected response %+v", resp)
	}

	if rec := do(t, r, http.MethodGet, "/api/v1/tasks/missing", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestListTasks(t *testing.T) {
	svc := newFakeService()
	svc.addTask("t-1", domain.TaskStateRunning)
	r := newTestRouter(svc, stubPinger{})

	rec := do(t, r, http.MethodGet, "/api/v1/tasks?page=2&page_size=500&state=running&profile=lab", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if svc.lastPage.Page != 2 || svc.lastPage.PageSize != domain.MaxPageSize {
		t.Fatalf("unexpected pagination %+v", svc.lastPage)
	}
	if svc.lastQuery.State == nil || *svc.lastQuery.State != domain.TaskStateRunning || svc.lastQuery.Profile != "lab" {
		t.Fatalf("unexpected filter %+v", svc.lastQuery)
	}
	resp := decode[dto.TaskListResponse](t, rec)
	if resp.Total != 1 || resp.TotalPages != 1 {
		t.Fatalf("unexpected list %+v", resp)
	}

	do(t, r, http.MethodGet, "/api/v1/tasks?state=bogus", "")
	if svc.lastQuery.State != nil {
		t.Fatal("unknown state must be ignored")
	}
}

func TestCancelTask(t *testing.T) {
	svc := newFakeService()
	svc.addTask("t-1", domain.TaskStateRunning)
	svc.addTask("t-2", domain.TaskStateSucceeded)
	svc.addTask("t-3", domain.TaskStateRunning)
	r := newTestRouter(svc, stubPinger{})

	rec := do(t, r, http.MethodPost, "/api/v1/tasks/t-1/cancel", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if resp := decode[dto.TaskResponse](t, rec); resp.State != "cancelled" {
		t.Fatalf("unexpected state %q", resp.State)
	}

	rec = do(t, r, http.MethodPost, "/api/v1/tasks/t-2/cancel", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	resp := decode[dto.ErrorResponse](t, rec)
	if !strings.Contains(resp.Message, "succeeded") {
		t.Fatalf("error must name the state, got %q", resp.Message)
	}
	if resp.TaskID != "t-2" || resp.State != "succeeded" {
		t.Fatalf("expected task details in error, got %+v", resp)
	}

	svc.cancelErr = &domain.Error{Kind: domain.KindCancellation, Message: "cancel request failed"}
	if rec := do(t, r, http.MethodPost, "/api/v1/tasks/t-3/cancel", ""); rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
}

func TestTaskResult(t *testing.T) {
	svc := newFakeService()
	svc.addTask("t-1", domain.TaskStateSucceeded)
	svc.addTask("t-2", domain.TaskStateRunning)
	svc.results["t-1"] = &domain.Result{TaskID: "t-1", Values: map[string]any{"n1": 0.2, "n2": 0.9, "n3": 0.5}}
	r := newTestRouter(svc, stubPinger{})

	rec := do(t, r, http.MethodGet, "/api/v1/tasks/t-1/result?top=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decode[dto.ResultResponse](t, rec)
	if len(resp.Result) != 3 || len(resp.Top) != 2 || resp.Top[0].NodeID != "n2" {
		t.Fatalf("unexpected result %+v", resp)
	}

	if rec := do(t, r, http.MethodGet, "/api/v1/tasks/t-1/result?top=-1", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if rec := do(t, r, http.MethodGet, "/api/v1/tasks/t-2/result", ""); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 before success, got %d", rec.Code)
	}
}

func TestExportAndDelete(t *testing.T) {
	svc := newFakeService()
	svc.addTask("t-1", domain.TaskStateSucceeded).ResultKey = "2026/03/01/x/t-1"
	svc.addTask("t-2", domain.TaskStateRunning)
	r := newTestRouter(svc, stubPinger{})

	rec := do(t, r, http.MethodGet, "/api/v1/tasks/t-1/export", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if resp := decode[dto.ExportResponse](t, rec); resp.URLs["json"] == "" {
		t.Fatalf("unexpected export %+v", resp)
	}
	if rec := do(t, r, http.MethodGet, "/api/v1/tasks/t-2/export", ""); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}

	if rec := do(t, r, http.MethodDelete, "/api/v1/tasks/t-1", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec := do(t, r, http.MethodDelete, "/api/v1/tasks/t-1", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestPreferences(t *testing.T) {
	svc := newFakeService()
	r := newTestRouter(svc, stubPinger{})

	rec := do(t, r, http.MethodGet, "/api/v1/preferences/default", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if resp := decode[dto.PreferencesResponse](t, rec); resp.IntervalMs != 1000 || resp.TimeoutMs != 600000 || resp.MaxRetries != 3 {
		t.Fatalf("unexpected defaults %+v", resp)
	}

	rec = do(t, r, http.MethodPut, "/api/v1/preferences/lab", `{"interval_ms":250,"max_retries":5}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	resp := decode[dto.PreferencesResponse](t, rec)
	if resp.Profile != "lab" || resp.IntervalMs != 250 || resp.MaxRetries != 5 || resp.TimeoutMs != 600000 {
		t.Fatalf("unexpected preferences %+v", resp)
	}

	for _, body := range []string{`{"interval_ms":0}`, `{"timeout_ms":-1}`, `{"max_retries":-2}`, `[`} {
		if rec := do(t, r, http.MethodPut, "/api/v1/preferences/lab", body); rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for %s, got %d", body, rec.Code)
		}
	}
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestRouter(newFakeService(), stubPinger{}), http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = do(t, newTestRouter(newFakeService(), stubPinger{err: errors.New("down")}), http.MethodGet, "/health", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if resp := decode[dto.HealthResponse](t, rec); resp.Status != "degraded" {
		t.Fatalf("unexpected health %+v", resp)
	}
}

func TestBodyRoutesRequireJSON(t *testing.T) {
	r := newTestRouter(newFakeService(), stubPinger{})

	tests := []struct {
		method, target, body string
	}{
		{http.MethodPost, "/api/v1/tasks", `{"file_id":42,"algorithm_key":"algo-v2"}`},
		{http.MethodPut, "/api/v1/preferences/lab", `{"interval_ms":500}`},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body))
		req.Header.Set("Content-Type", "text/plain")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnsupportedMediaType {
			t.Fatalf("%s %s: expected 415, got %d", tt.method, tt.target, rec.Code)
		}
	}
}
