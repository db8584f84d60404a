package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BTreeMap/BodyControl/internal/models"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}

	schedule := cfg.Schedule()
	if len(schedule) != 5 {
		t.Fatalf("expected 5 stages, got %d", len(schedule))
	}
	if schedule[4].Type != models.EventFinish || schedule[4].StartTime != 179*time.Second {
		t.Errorf("unexpected final stage: %+v", schedule[4])
	}
	if schedule[2].Duration != 30*time.Second {
		t.Errorf("expected coffee duration 30s, got %v", schedule[2].Duration)
	}
}

func TestLoad(t *testing.T) {
	t.Run("valid file overrides defaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join("testdata", "tuning.yaml"))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if cfg.Suspicion.Max != 80 {
			t.Errorf("expected suspicion max 80, got %v", cfg.Suspicion.Max)
		}
		if len(cfg.Stages) != 3 {
			t.Errorf("expected stage list to be replaced, got %d stages", len(cfg.Stages))
		}
		if cfg.Vitals.HeartRate.Rate != 30 {
			t.Errorf("expected untouched heart rate default, got %v", cfg.Vitals.HeartRate.Rate)
		}
		if len(cfg.Woods.Obstacles) != 1 || cfg.Woods.Obstacles[0] != "BRAMBLES" {
			t.Errorf("unexpected obstacles: %v", cfg.Woods.Obstacles)
		}
	})

	t.Run("unknown stage type", func(t *testing.T) {
		path := writeTempConfig(t, "version: 1\nstages:\n  - type: karaoke\n    start_ms: 0\n    duration_ms: 10\n")
		_, err := Load(path)
		if !errors.Is(err, models.ErrUnknownEventType) {
			t.Fatalf("expected ErrUnknownEventType, got %v", err)
		}
	})

	t.Run("finish not last", func(t *testing.T) {
		path := writeTempConfig(t, "version: 1\nstages:\n  - type: finish\n    start_ms: 0\n    duration_ms: 10\n  - type: baseline\n    start_ms: 5\n    duration_ms: 10\n")
		if _, err := Load(path); err == nil {
			t.Fatalf("expected error")
		}
	})

	t.Run("stages out of order", func(t *testing.T) {
		path := writeTempConfig(t, "version: 1\nstages:\n  - type: baseline\n    start_ms: 100\n    duration_ms: 10\n  - type: runningWoods\n    start_ms: 50\n    duration_ms: 10\n")
		if _, err := Load(path); err == nil {
			t.Fatalf("expected error")
		}
	})

	t.Run("seed above max", func(t *testing.T) {
		path := writeTempConfig(t, "version: 1\nvitals:\n  oxygen:\n    seed: 150\n    max: 100\n    rate: 3\n")
		if _, err := Load(path); err == nil {
			t.Fatalf("expected error")
		}
	})

	t.Run("unsupported version", func(t *testing.T) {
		path := writeTempConfig(t, "version: 2\n")
		if _, err := Load(path); err == nil {
			t.Fatalf("expected error")
		}
	})

	t.Run("file not found", func(t *testing.T) {
		if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
			t.Fatalf("expected error")
		}
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := writeTempConfig(t, "stages: [\n")
		if _, err := Load(path); err == nil {
			t.Fatalf("expected error")
		}
	})
}

func TestMillisDuration(t *testing.T) {
	if got := Millis(1500).Duration(); got != 1500*time.Millisecond {
		t.Errorf("Millis(1500).Duration() = %v", got)
	}
}

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}
