package flow

import (
	"log/slog"
	"time"

	"github.com/BTreeMap/BodyControl/internal/models"
)

// defaultDurations apply when an event starts outside its scheduled stage.
var defaultDurations = map[models.EventType]time.Duration{
	models.EventBaseline:     15 * time.Second,
	models.EventOrderCoffee:  30 * time.Second,
	models.EventRunningWoods: 45 * time.Second,
	models.EventFinish:       8 * time.Second,
}

const fallbackDuration = 20 * time.Second

// Unlock enables a vital at a fixed point of play time.
type Unlock struct {
	At   time.Duration
	Kind models.VitalKind
	done bool
}

// Enabler turns vitals on.
type Enabler interface {
	Enable(kind models.VitalKind) bool
}

// Timeline walks the fixed stage schedule with a forward-only cursor.
//
// Stage start times are absolute offsets from the start of play. An event
// that overruns does not push later stages back; the next stage simply waits
// until no event is active.
type Timeline struct {
	stages  []models.Stage
	cursor  int
	unlocks []Unlock
}

// NewTimeline creates a Timeline over stages. The slice is copied.
func NewTimeline(stages []models.Stage, unlocks ...Unlock) *Timeline {
	s := make([]models.Stage, len(stages))
	copy(s, stages)
	u := make([]Unlock, len(unlocks))
	copy(u, unlocks)
	return &Timeline{stages: s, unlocks: u}
}

// Stages returns a copy of the schedule.
func (t *Timeline) Stages() []models.Stage {
	s := make([]models.Stage, len(t.stages))
	copy(s, t.stages)
	return s
}

// Cursor returns the index of the current stage.
func (t *Timeline) Cursor() int { return t.cursor }

// Current returns the stage under the cursor.
func (t *Timeline) Current() (models.Stage, bool) {
	if t.cursor < 0 || t.cursor >= len(t.stages) {
		return models.Stage{}, false
	}
	return t.stages[t.cursor], true
}

// AtLast reports whether the cursor is on the final stage.
func (t *Timeline) AtLast() bool {
	return t.cursor >= len(t.stages)-1
}

// CheckAdvance returns the stage that should start now: the cursor's stage
// once its start time has passed, provided no event is running.
func (t *Timeline) CheckAdvance(elapsed time.Duration, eventActive bool) (models.Stage, bool) {
	if eventActive {
		return models.Stage{}, false
	}
	st, ok := t.Current()
	if !ok || elapsed < st.StartTime {
		return models.Stage{}, false
	}
	slog.Debug("Timeline.CheckAdvance: stage due", "stage", t.cursor+1, "type", st.Type, "elapsed", elapsed)
	return st, true
}

// AdvanceCursor moves to the next stage. It never moves past the last stage
// and reports whether the cursor moved.
func (t *Timeline) AdvanceCursor() bool {
	if t.AtLast() {
		return false
	}
	t.cursor++
	slog.Debug("Timeline.AdvanceCursor", "stage", t.cursor+1)
	return true
}

// DurationFor returns how long an event of the given type runs: the current
// stage's duration when the types match, otherwise the per-type default.
func (t *Timeline) DurationFor(et models.EventType) time.Duration {
	if st, ok := t.Current(); ok && st.Type == et {
		return st.Duration
	}
	if d, ok := defaultDurations[et]; ok {
		return d
	}
	return fallbackDuration
}

// CheckUnlocks enables every vital whose unlock time has passed and returns
// the kinds enabled by this call.
func (t *Timeline) CheckUnlocks(elapsed time.Duration, e Enabler) []models.VitalKind {
	var enabled []models.VitalKind
	for i := range t.unlocks {
		u := &t.unlocks[i]
		if u.done || elapsed < u.At {
			continue
		}
		u.done = true
		if e.Enable(u.Kind) {
			enabled = append(enabled, u.Kind)
		}
	}
	return enabled
}
