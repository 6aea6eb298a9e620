package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/plastinin/identtracker/internal/config"
	"github.com/plastinin/identtracker/internal/domain"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *Session) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	session := NewSession("secret-token")
	client := NewClient(config.RemoteAPIConfig{
		BaseURL:        srv.URL + "/api/identification/",
		RequestTimeout: 2 * time.Second,
	}, session, zap.NewNop())
	return client, session
}

func writeJSON(w http.ResponseWriter, code int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = io.WriteString(w, body)
}

func TestCreateTaskSendsBodyAndHeaders(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/identification/tasks" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret-token" {
			t.Errorf("unexpected authorization header %q", got)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("expected request id header")
		}

		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["file_id"] != float64(42) || body["algorithm_key"] != "algo-v2" {
			t.Errorf("unexpected body %v", body)
		}
		if params, ok := body["params"].(map[string]any); !ok || len(params) != 0 {
			t.Errorf("expected empty params object, got %v", body["params"])
		}

		writeJSON(w, http.StatusOK, `{"status":"success","task_id":"t-1"}`)
	})

	id, err := client.CreateTask(context.Background(), domain.Submission{FileID: 42, AlgorithmKey: "algo-v2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "t-1" {
		t.Fatalf("expected t-1, got %q", id)
	}
}

func TestCreateTaskNestedEnvelope(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, `{"status":"success","message":"created","data":{"task_id":"abc123","status":"queued","progress":0}}`)
	})

	id, err := client.CreateTask(context.Background(), domain.Submission{FileID: 1, AlgorithmKey: "cr"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "abc123" {
		t.Fatalf("expected abc123, got %q", id)
	}
}

func TestCreateTaskRejected(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusBadRequest, `{"status":"fail","message":"missing algorithm_key"}`)
	})

	_, err := client.CreateTask(context.Background(), domain.Submission{FileID: 1, AlgorithmKey: "cr"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || apiErr.Message != "missing algorithm_key" {
		t.Fatalf("unexpected api error %+v", apiErr)
	}
}

func TestNonSuccessStatusWithHTTP200(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, `{"status":"error","message":"db down"}`)
	})

	if _, err := client.GetTaskStatus(context.Background(), "t-1"); err == nil {
		t.Fatal("expected error for non-success envelope")
	}
}

func TestUnparseableBody(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "<html>bad gateway</html>")
	})

	_, err := client.GetTaskStatus(context.Background(), "t-1")
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestGetTaskStatusFlatForm(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/identification/tasks/t-1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		writeJSON(w, http.StatusOK, `{"status":"success","task_state":"running"}`)
	})

	status, err := client.GetTaskStatus(context.Background(), "t-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.State != domain.RemoteStateRunning {
		t.Fatalf("expected running, got %s", status.State)
	}
}

func TestGetTaskStatusServerForm(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, `{
			"status":"success","message":"success",
			"data":{"task_id":"t-1","status":"failed","progress":100,"stage":"failed",
			        "message":"file missing","error":{"code":"FILE_NOT_FOUND","message":"file does not exist"}}
		}`)
	})

	status, err := client.GetTaskStatus(context.Background(), "t-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.State != domain.RemoteStateFailed || status.Progress != 100 {
		t.Fatalf("unexpected status %+v", status)
	}
	if status.ErrorCode != "FILE_NOT_FOUND" || status.FailureMessage() != "file does not exist" {
		t.Fatalf("unexpected failure details %+v", status)
	}
}

func TestGetTaskStatusStringError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, `{"status":"success","task_state":"failed","error":"out of memory"}`)
	})

	status, err := client.GetTaskStatus(context.Background(), "t-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.FailureMessage() != "out of memory" {
		t.Fatalf("unexpected failure message %q", status.FailureMessage())
	}
}

func TestGetTaskStatusEnvelopeMessage(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"ignored with data", `{"status":"success","message":"success","data":{"task_id":"t-1","status":"failed"}}`, domain.DefaultFailureMessage},
		{"used without data", `{"status":"success","message":"worker crashed","task_state":"failed"}`, "worker crashed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusOK, tt.body)
			})

			status, err := client.GetTaskStatus(context.Background(), "t-1")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := status.FailureMessage(); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestGetTaskStatusUnknownState(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, `{"status":"success","task_state":"teleported"}`)
	})

	_, err := client.GetTaskStatus(context.Background(), "t-1")
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestGetTaskResult(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/identification/tasks/t-1/result" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		writeJSON(w, http.StatusOK, `{"status":"success","data":{"task_id":"t-1","result":{"n1":0.7,"n2":0.1},"meta":{"file_id":42}}}`)
	})

	result, err := client.GetTaskResult(context.Background(), "t-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Values["n1"] != 0.7 || len(result.Values) != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Meta["file_id"] != float64(42) {
		t.Fatalf("unexpected meta %+v", result.Meta)
	}
}

func TestGetTaskResultMissingPayload(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, `{"status":"success"}`)
	})

	if _, err := client.GetTaskResult(context.Background(), "t-1"); !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestCancelTask(t *testing.T) {
	called := false
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
		if r.Method != http.MethodPost || r.URL.Path != "/api/identification/tasks/t-1/cancel" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		writeJSON(w, http.StatusOK, `{"status":"success","message":"cancelled"}`)
	})

	if err := client.CancelTask(context.Background(), "t-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("expected cancel request")
	}
}

func TestUnauthorizedInvalidatesSession(t *testing.T) {
	requests := 0
	client, session := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		requests++
		writeJSON(w, http.StatusUnauthorized, `{"status":"unauthorized","message":"token expired"}`)
	})

	_, err := client.GetTaskStatus(context.Background(), "t-1")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := session.Token(context.Background()); !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("expected session to be cleared, got %v", err)
	}

	// Без токена запрос не уходит на сервер
	if _, err := client.GetTaskStatus(context.Background(), "t-1"); !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("expected ErrNoCredentials, got %v", err)
	}
	if requests != 1 {
		t.Fatalf("expected 1 request, got %d", requests)
	}
}

func TestTaskIDIsEscaped(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.EscapedPath() != "/api/identification/tasks/a%2Fb" {
			t.Errorf("unexpected escaped path %s", r.URL.EscapedPath())
		}
		writeJSON(w, http.StatusOK, `{"status":"success","task_state":"pending"}`)
	})

	if _, err := client.GetTaskStatus(context.Background(), "a/b"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
