package repository

import (
	"testing"
	"time"

	"github.com/plastinin/identtracker/internal/domain"
)

func TestBuildFilter(t *testing.T) {
	state := domain.TaskStateRunning

	tests := []struct {
		name      string
		filter    domain.TaskFilter
		wantQuery string
		wantArgs  int
	}{
		{"empty", domain.TaskFilter{}, "FROM tracked_tasks WHERE 1=1", 0},
		{"state", domain.TaskFilter{State: &state}, "FROM tracked_tasks WHERE 1=1 AND state = $1", 1},
		{"state and profile", domain.TaskFilter{State: &state, Profile: "lab"}, "FROM tracked_tasks WHERE 1=1 AND state = $1 AND profile = $2", 2},
		{"profile", domain.TaskFilter{Profile: "lab"}, "FROM tracked_tasks WHERE 1=1 AND profile = $1", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := buildFilter(tt.filter)
			if query != tt.wantQuery {
				t.Fatalf("expected %q, got %q", tt.wantQuery, query)
			}
			if len(args) != tt.wantArgs {
				t.Fatalf("expected %d args, got %d", tt.wantArgs, len(args))
			}
		})
	}
}

func TestDecodeJSONColumns(t *testing.T) {
	task := &domain.TrackedTask{}
	task.ID = "t-1"

	err := decodeJSONColumns(task, []byte(`{"depth":3}`), []byte(`{"result":{"n1":0.4},"meta":{"file_id":42}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.Params["depth"] != float64(3) {
		t.Fatalf("unexpected params %v", task.Params)
	}
	if task.Result == nil || task.Result.TaskID != "t-1" || task.Result.Values["n1"] != 0.4 {
		t.Fatalf("unexpected result %+v", task.Result)
	}
}

func TestDecodeJSONColumnsNullValues(t *testing.T) {
	task := &domain.TrackedTask{}

	if err := decodeJSONColumns(task, []byte("null"), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.Params == nil || len(task.Params) != 0 {
		t.Fatalf("expected empty params, got %v", task.Params)
	}
	if task.Result != nil {
		t.Fatal("expected no result")
	}
}

func TestOverridesFromColumns(t *testing.T) {
	interval := int64(250)
	retries := 0
	defaults := domain.DefaultPollPreferences()

	prefs := overridesFromColumns(&interval, nil, &retries).Apply(defaults)
	if prefs.Interval != 250*time.Millisecond {
		t.Fatalf("expected 250ms, got %s", prefs.Interval)
	}
	if prefs.Timeout != defaults.Timeout {
		t.Fatalf("unset timeout must fall back to default, got %s", prefs.Timeout)
	}
	if prefs.MaxRetries != 0 {
		t.Fatalf("expected explicit zero retries, got %d", prefs.MaxRetries)
	}

	d := 1500 * time.Millisecond
	if got := millis(&d); got == nil || *got != 1500 {
		t.Fatalf("unexpected millis %v", got)
	}
	if millis(nil) != nil {
		t.Fatal("nil duration must stay nil")
	}
}

func TestTerminalStates(t *testing.T) {
	got := terminalStates()
	want := []string{"succeeded", "failed", "cancelled", "timed_out"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}
