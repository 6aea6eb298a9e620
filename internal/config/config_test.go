package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Poll.Interval != time.Second {
		t.Fatalf("expected 1s poll interval, got %s", cfg.Poll.Interval)
	}
	if cfg.Poll.Timeout != 10*time.Minute {
		t.Fatalf("expected 10m poll timeout, got %s", cfg.Poll.Timeout)
	}
	if cfg.Poll.MaxRetries != 3 {
		t.Fatalf("expected 3 retries, got %d", cfg.Poll.MaxRetries)
	}
	if cfg.Server.Addr() != "0.0.0.0:8080" {
		t.Fatalf("unexpected server addr %q", cfg.Server.Addr())
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("IDENT_POLL_INTERVAL", "250ms")
	t.Setenv("IDENT_API_URL", "https://ident.example.com/api/identification")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PORT", "6543")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Poll.Interval != 250*time.Millisecond {
		t.Fatalf("expected 250ms, got %s", cfg.Poll.Interval)
	}
	if cfg.RemoteAPI.BaseURL != "https://ident.example.com/api/identification" {
		t.Fatalf("unexpected base url %q", cfg.RemoteAPI.BaseURL)
	}
	want := "postgres://identtracker:secret@db:6543/identtracker?sslmode=disable"
	if got := cfg.Database.DSN(); got != want {
		t.Fatalf("expected DSN %q, got %q", want, got)
	}
}

func TestLoadInvalidDuration(t *testing.T) {
	t.Setenv("IDENT_POLL_TIMEOUT", "forever")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func TestPollPreferencesNormalized(t *testing.T) {
	prefs := PollConfig{Interval: 0, Timeout: 5 * time.Second, MaxRetries: -1}.Preferences()

	if prefs.Interval != time.Second {
		t.Fatalf("expected default interval, got %s", prefs.Interval)
	}
	if prefs.Timeout != 5*time.Second || prefs.MaxRetries != 0 {
		t.Fatalf("unexpected preferences %+v", prefs)
	}
}
