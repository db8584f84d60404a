package media

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/BTreeMap/BodyControl/internal/models"
)

func TestCatalogDefaults(t *testing.T) {
	c := NewCatalog()
	for _, name := range []string{"idle", "loading", "baseline", "walking", "coffee", "success", "failure"} {
		if err := c.PlaySequence(name); err != nil {
			t.Fatalf("PlaySequence(%q) returned error: %v", name, err)
		}
		frame := c.Frame()
		lines := strings.Split(strings.TrimSuffix(frame, "\n"), "\n")
		if len(lines) != frameHeight {
			t.Errorf("%s: got %d lines, want %d", name, len(lines), frameHeight)
		}
		if len(lines[0]) != frameWidth {
			t.Errorf("%s: got width %d, want %d", name, len(lines[0]), frameWidth)
		}
	}
}

func TestCatalogUnknownSequence(t *testing.T) {
	c := NewCatalog()
	if err := c.PlaySequence("idle"); err != nil {
		t.Fatal(err)
	}
	err := c.PlaySequence("karaoke")
	if !errors.Is(err, models.ErrUnknownSequence) {
		t.Fatalf("expected ErrUnknownSequence, got %v", err)
	}
	if c.Current() != "idle" {
		t.Errorf("unknown sequence must not interrupt playback, current = %q", c.Current())
	}
}

func TestCatalogLoopsAtFrameRate(t *testing.T) {
	c := NewCatalog()
	c.Register("blip", []string{"a", "b", "c"}, 10)
	if err := c.PlaySequence("blip"); err != nil {
		t.Fatal(err)
	}

	c.Update(99 * time.Millisecond)
	if c.Frame() != "a" {
		t.Fatalf("frame advanced early: %q", c.Frame())
	}
	c.Update(time.Millisecond)
	if c.Frame() != "b" {
		t.Fatalf("got %q, want b", c.Frame())
	}
	c.Update(100 * time.Millisecond)
	c.Update(100 * time.Millisecond)
	if c.Frame() != "a" {
		t.Fatalf("expected loop back to a, got %q", c.Frame())
	}
}

func TestCatalogPlayOnceStopsOnLastFrame(t *testing.T) {
	c := NewCatalog()
	c.Register("blip", []string{"a", "b"}, 10)
	if err := c.PlayOnce("blip"); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		c.Update(100 * time.Millisecond)
	}
	if c.Playing() {
		t.Error("one-shot sequence still playing")
	}
	if c.Frame() != "b" {
		t.Errorf("got %q, want last frame", c.Frame())
	}
}

func TestParseNote(t *testing.T) {
	tests := []struct {
		in   string
		midi int
	}{
		{"A4", 69},
		{"C4", 60},
		{"c#4", 61},
		{"Bb3", 58},
		{"A0", 21},
	}
	for _, tt := range tests {
		n, err := ParseNote(tt.in)
		if err != nil {
			t.Fatalf("ParseNote(%q): %v", tt.in, err)
		}
		if got := n.Midi(); got != tt.midi {
			t.Errorf("ParseNote(%q).Midi() = %d, want %d", tt.in, got, tt.midi)
		}
	}

	if f := mustNote(t, "A4").Frequency(); math.Abs(f-440) > 1e-9 {
		t.Errorf("A4 frequency = %v", f)
	}
}

func TestParseNoteRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "H2", "A", "A10", "C##4", "Cb-1", " A4"} {
		if _, err := ParseNote(in); !errors.Is(err, models.ErrBadNote) {
			t.Errorf("ParseNote(%q) error = %v, want ErrBadNote", in, err)
		}
	}
}

func TestTranspose(t *testing.T) {
	got, err := Transpose("A3", -12)
	if err != nil {
		t.Fatal(err)
	}
	if got != "A2" {
		t.Errorf("got %s, want A2", got)
	}
	got, _ = Transpose("Bb3", 1)
	if got != "B3" {
		t.Errorf("got %s, want B3", got)
	}
	if _, err := Transpose("Q9", 1); !errors.Is(err, models.ErrBadNote) {
		t.Errorf("expected ErrBadNote, got %v", err)
	}
}

func mustNote(t *testing.T, s string) Note {
	t.Helper()
	n, err := ParseNote(s)
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func TestCueBus(t *testing.T) {
	b := NewCueBus()
	b.Play(models.CueStep)
	b.Play(models.CueJump)
	b.Play("kazoo")

	got := b.Drain()
	if len(got) != 2 || got[0] != models.CueStep || got[1] != models.CueJump {
		t.Fatalf("unexpected cues %v", got)
	}
	if len(b.Drain()) != 0 {
		t.Error("drain must clear the queue")
	}

	b.SetMuted(true)
	b.Play(models.CueStep)
	if len(b.Drain()) != 0 {
		t.Error("muted bus queued a cue")
	}
	if b.Count(models.CueStep) != 2 {
		t.Errorf("count = %d, want 2", b.Count(models.CueStep))
	}
}

func TestEveryActionCueHasTones(t *testing.T) {
	for _, a := range models.AllActions {
		if _, ok := TonesFor(a.Cue()); !ok {
			t.Errorf("no tones for %s (%s)", a, a.Cue())
		}
	}
	if _, ok := TonesFor(models.CueAlert); !ok {
		t.Error("no tones for alert")
	}
}

func TestBoardExpiresAlerts(t *testing.T) {
	b := NewBoard(0)
	b.Post(models.Alert{Level: models.AlertDanger, Message: "HEART FAILURE", At: time.Second})
	b.Post(models.Alert{Level: models.AlertInfo, Message: "BREATHING ONLINE", At: 2 * time.Second})

	if got := b.Active(2500 * time.Millisecond); len(got) != 2 {
		t.Fatalf("got %d alerts, want 2", len(got))
	}
	got := b.Active(3 * time.Second)
	if len(got) != 1 || got[0].Message != "BREATHING ONLINE" {
		t.Fatalf("unexpected alerts %v", got)
	}
	if got := b.Active(4 * time.Second); got != nil {
		t.Errorf("expected no alerts, got %v", got)
	}

	b.FadeOutPanels()
	if !b.PanelsFaded() {
		t.Error("panels not faded")
	}
	b.Reset()
	if b.PanelsFaded() {
		t.Error("reset must restore panels")
	}
}
