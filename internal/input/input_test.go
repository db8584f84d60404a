package input

import (
	"errors"
	"testing"
	"time"

	"github.com/BTreeMap/BodyControl/internal/models"
)

func TestDefaultBindings(t *testing.T) {
	b := DefaultBindings()
	tests := []struct {
		code string
		want models.Action
	}{
		{"KeyB", models.ActionHeartbeat},
		{"KeyH", models.ActionBreathe},
		{"KeyE", models.ActionBlink},
		{"KeyR", models.ActionEyeContact},
		{"KeyS", models.ActionSwallow},
		{"KeyD", models.ActionStepLeft},
		{"KeyF", models.ActionStepRight},
		{"Space", models.ActionJump},
		{"Digit1", models.ActionOption1},
		{"Digit4", models.ActionOption4},
	}
	for _, tt := range tests {
		got, err := b.Lookup(tt.code)
		if err != nil {
			t.Fatalf("Lookup(%q): %v", tt.code, err)
		}
		if got != tt.want {
			t.Errorf("Lookup(%q) = %s, want %s", tt.code, got, tt.want)
		}
	}

	if _, err := b.Lookup("KeyQ"); !errors.Is(err, models.ErrUnknownAction) {
		t.Errorf("expected ErrUnknownAction for unbound key, got %v", err)
	}
	if len(b.Keys()) != len(models.AllActions) {
		t.Errorf("every action should have exactly one key, got %d keys", len(b.Keys()))
	}
}

func TestRepeatGuard(t *testing.T) {
	g := NewRepeatGuard(0)
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	if !g.Allow("KeyD", t0) {
		t.Fatal("first press must pass")
	}
	if g.Allow("KeyD", t0.Add(99*time.Millisecond)) {
		t.Error("repeat inside window must be dropped")
	}
	if !g.Allow("KeyF", t0.Add(50*time.Millisecond)) {
		t.Error("other keys are guarded independently")
	}
	if !g.Allow("KeyD", t0.Add(100*time.Millisecond)) {
		t.Error("press at the window edge must pass")
	}

	if !g.Pressed("KeyD") {
		t.Error("KeyD should be held")
	}
	g.Release("KeyD")
	if g.Pressed("KeyD") {
		t.Error("KeyD should be released")
	}
}

func TestHandlerKeyDown(t *testing.T) {
	h := NewHandler(nil, nil)
	t0 := time.Now()

	a, ok := h.KeyDown("Space", t0)
	if !ok || a != models.ActionJump {
		t.Fatalf("KeyDown(Space) = %s, %v", a, ok)
	}
	if _, ok := h.KeyDown("Space", t0.Add(10*time.Millisecond)); ok {
		t.Error("repeat accepted")
	}
	if _, ok := h.KeyDown("Escape", t0); ok {
		t.Error("unbound key accepted")
	}
}

func TestFeedback(t *testing.T) {
	if got := Feedback(models.ActionOption3); got != "OPTION 3" {
		t.Errorf("got %q", got)
	}
	if got := Feedback(models.ActionBreathe); got != "INHALED" {
		t.Errorf("got %q", got)
	}
}
