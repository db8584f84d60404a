package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/BTreeMap/BodyControl/internal/models"
)

func TestInitializeLogger(t *testing.T) {
	var buf bytes.Buffer
	if err := initializeLogger(&buf, "debug", "json"); err != nil {
		t.Fatalf("json logger: %v", err)
	}
	if err := initializeLogger(&buf, "warn", "text"); err != nil {
		t.Fatalf("text logger: %v", err)
	}
	if err := initializeLogger(&buf, "loud", "text"); err == nil {
		t.Error("expected error for unknown level")
	}
	if err := initializeLogger(&buf, "info", "xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestRunSeed(t *testing.T) {
	if runSeed(42, 0) != 42 || runSeed(42, 3) != 45 {
		t.Error("fixed base seeds should count up")
	}
	if runSeed(0, 0) == 0 && runSeed(0, 1) == 0 {
		t.Error("zero base should pick fresh seeds")
	}
}

func TestPlayURL(t *testing.T) {
	if got := playURL("127.0.0.1:8080"); got != "http://127.0.0.1:8080/" {
		t.Errorf("playURL = %q", got)
	}
	if got := playURL(":8080"); !strings.HasPrefix(got, "http://") || !strings.HasSuffix(got, ":8080/") {
		t.Errorf("playURL = %q", got)
	}
}

func TestDSNDefaultsToStateDir(t *testing.T) {
	o := &rootOptions{stateDir: "/tmp/bc"}
	if got := o.dsn(); got != filepath.Join("/tmp/bc", DefaultDBFileName) {
		t.Errorf("dsn = %q", got)
	}
	o.dbDSN = "postgres://localhost/bc"
	if got := o.dsn(); got != "postgres://localhost/bc" {
		t.Errorf("dsn = %q", got)
	}
}

func TestSimulateSuccess(t *testing.T) {
	var out bytes.Buffer
	root := &rootOptions{seed: 42, stateDir: t.TempDir()}
	opts := &simulateOptions{runs: 1, frame: 50 * time.Millisecond, limit: 4 * time.Minute, debrief: true}
	if err := runSimulate(context.Background(), &out, root, opts); err != nil {
		t.Fatalf("simulate: %v", err)
	}
	got := out.String()
	for _, want := range []string{"run 1 seed=42 outcome=success play=2m59s suspicion=0 stages=4 steps=80", "Mission complete"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestSimulateValidatesFlags(t *testing.T) {
	root := &rootOptions{seed: 1}
	var out bytes.Buffer
	if err := runSimulate(context.Background(), &out, root, &simulateOptions{runs: 0}); err == nil {
		t.Error("expected error for zero runs")
	}
	if err := runSimulate(context.Background(), &out, root, &simulateOptions{runs: 1, mistakes: 2}); err == nil {
		t.Error("expected error for mistake rate above 1")
	}
	root.configPath = filepath.Join(t.TempDir(), "missing.yaml")
	if err := runSimulate(context.Background(), &out, root, &simulateOptions{runs: 1}); err == nil {
		t.Error("expected error for a missing tuning file")
	}
}

func TestSimulateSaveAndHistory(t *testing.T) {
	dir := t.TempDir()
	root := &rootOptions{seed: 7, stateDir: dir}
	opts := &simulateOptions{runs: 2, frame: 50 * time.Millisecond, limit: 4 * time.Minute, save: true, jsonOut: true}

	var out bytes.Buffer
	if err := runSimulate(context.Background(), &out, root, opts); err != nil {
		t.Fatalf("simulate: %v", err)
	}
	dec := json.NewDecoder(&out)
	var ids []string
	for dec.More() {
		var rec models.SessionRecord
		if err := dec.Decode(&rec); err != nil {
			t.Fatalf("decode: %v", err)
		}
		ids = append(ids, rec.ID)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 records, got %d", len(ids))
	}

	st, err := root.openStore()
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	var list bytes.Buffer
	if err := listSessions(&list, st, 0); err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, id := range ids {
		if !strings.Contains(list.String(), id) {
			t.Errorf("history missing %s:\n%s", id, list.String())
		}
	}

	var show bytes.Buffer
	if err := showSession(&show, st, ids[0]); err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.Contains(show.String(), "Seed      7") || strings.Contains(show.String(), "(pending)") {
		t.Errorf("unexpected show output:\n%s", show.String())
	}

	err = showSession(&show, st, "missing")
	if !errors.Is(err, models.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestVersionCommand(t *testing.T) {
	cmd := newRootCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs([]string{"version"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if strings.TrimSpace(buf.String()) != version {
		t.Errorf("version output = %q", buf.String())
	}
}
