// Package flow implements the scripted progression: the stage timeline and
// the event state machine that runs baseline, coffee, woods and finish.
package flow

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BTreeMap/BodyControl/internal/clock"
	"github.com/BTreeMap/BodyControl/internal/config"
	"github.com/BTreeMap/BodyControl/internal/models"
	"github.com/BTreeMap/BodyControl/internal/util"
)

// Animator switches the ambient animation. Unknown names return an error the
// machine logs and otherwise ignores.
type Animator interface {
	PlaySequence(name string) error
}

// Display receives presentation-only transitions.
type Display interface {
	FadeOutPanels()
}

// Vitals is the side channel events use to raise suspicion and exertion.
type Vitals interface {
	AddSuspicion(amount float64, reason string) bool
	SetExertion(on bool)
}

// Dependencies holds everything the machine calls out to.
type Dependencies struct {
	Animator Animator
	Display  Display
	Vitals   Vitals
	Timer    *clock.VirtualTimer
	Random   util.Random
}

// Phase is the machine's top-level state. Ending and Ended are terminal.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseEvent
	PhaseEnding
	PhaseEnded
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseEvent:
		return "event"
	case PhaseEnding:
		return "ending"
	case PhaseEnded:
		return "ended"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Terminal reports whether the phase can never be left.
func (p Phase) Terminal() bool {
	return p == PhaseEnding || p == PhaseEnded
}

// EventHandler runs the type-specific part of an event.
type EventHandler interface {
	Setup(m *Machine)
	Update(m *Machine, dt time.Duration)
}

var registry = make(map[models.EventType]EventHandler)

// Register associates an EventType with its handler.
func Register(et models.EventType, h EventHandler) {
	registry[et] = h
}

// Get retrieves the handler for an EventType.
func Get(et models.EventType) (EventHandler, bool) {
	h, ok := registry[et]
	return h, ok
}

func init() {
	Register(models.EventBaseline, baselineHandler{})
	Register(models.EventOrderCoffee, coffeeHandler{})
	Register(models.EventRunningWoods, woodsHandler{})
}

// Machine owns the active event and its sub-state.
type Machine struct {
	cfg      *config.Config
	timeline *Timeline
	deps     Dependencies

	phase      Phase
	active     *models.ActiveEvent
	generation uint64
	conv       models.ConversationState
	run        models.RunningState
	jumpSeq    uint64

	popup       models.Popup
	endScreen   *models.EndScreen
	panelsFaded bool
	outcome     *models.Outcome
	sequence    string
}

// NewMachine creates an idle Machine.
func NewMachine(cfg *config.Config, timeline *Timeline, deps Dependencies) *Machine {
	if deps.Random == nil {
		deps.Random = util.NewSeededRandom(util.NewSeed())
	}
	if deps.Timer == nil {
		deps.Timer = clock.NewTimer()
	}
	return &Machine{
		cfg:      cfg,
		timeline: timeline,
		deps:     deps,
		conv:     models.DefaultConversationState(),
	}
}

func (m *Machine) now() time.Duration { return m.deps.Timer.Now() }

// Phase returns the current phase.
func (m *Machine) Phase() Phase { return m.phase }

// Ending reports whether an outcome has been resolved.
func (m *Machine) Ending() bool { return m.phase.Terminal() }

// Outcome returns the resolved outcome, or nil while play continues.
func (m *Machine) Outcome() *models.Outcome {
	if m.outcome == nil {
		return nil
	}
	o := *m.outcome
	return &o
}

// Active returns a copy of the active event, or nil.
func (m *Machine) Active() *models.ActiveEvent {
	if m.active == nil {
		return nil
	}
	e := *m.active
	return &e
}

// Conversation returns a copy of the coffee sub-state.
func (m *Machine) Conversation() models.ConversationState {
	c := m.conv
	if c.Options != nil {
		c.Options = append([]models.ConversationOption(nil), c.Options...)
	}
	return c
}

// Running returns a copy of the woods sub-state.
func (m *Machine) Running() models.RunningState { return m.run }

// Popup returns the current event display.
func (m *Machine) Popup() models.Popup {
	p := m.popup
	p.Lines = append([]string(nil), p.Lines...)
	return p
}

// EndScreen returns the terminal overlay once published.
func (m *Machine) EndScreen() *models.EndScreen {
	if m.endScreen == nil {
		return nil
	}
	e := *m.endScreen
	return &e
}

// Sequence returns the name of the last animation requested.
func (m *Machine) Sequence() string { return m.sequence }

// StartEvent begins an event of the given type. Starting finish resolves the
// session as a success. Unknown types are logged and ignored.
func (m *Machine) StartEvent(et models.EventType) error {
	if m.phase.Terminal() {
		slog.Debug("Machine.StartEvent: ignored while ending", "type", et)
		return nil
	}
	if et == models.EventFinish {
		m.Finish(models.Outcome{Kind: models.OutcomeSuccess})
		return nil
	}
	h, ok := Get(et)
	if !ok {
		slog.Warn("Machine.StartEvent: unknown event type", "type", et)
		return fmt.Errorf("start event %q: %w", et, models.ErrUnknownEventType)
	}
	if m.active != nil {
		slog.Warn("Machine.StartEvent: replacing active event", "active", m.active.Type, "type", et)
		m.deps.Timer.CancelOwner(clock.EventOwner(m.active.Generation))
	}

	m.generation++
	m.active = &models.ActiveEvent{
		Type:       et,
		Name:       models.EventName(et),
		StartedAt:  m.now(),
		Duration:   m.timeline.DurationFor(et),
		Generation: m.generation,
	}
	m.phase = PhaseEvent
	m.conv = models.DefaultConversationState()
	m.run = models.RunningState{}

	slog.Info("Machine.StartEvent", "type", et, "stage", m.timeline.Cursor()+1, "generation", m.generation, "duration", m.active.Duration)
	h.Setup(m)
	return nil
}

// Update ends the active event when its duration has passed, otherwise runs
// its per-frame logic.
func (m *Machine) Update(elapsed, dt time.Duration) {
	if m.phase != PhaseEvent || m.active == nil {
		return
	}
	if m.active.Age(elapsed) >= m.active.Duration {
		m.EndCurrentEvent()
		return
	}
	if h, ok := Get(m.active.Type); ok {
		h.Update(m, dt)
	}
}

// EndCurrentEvent clears the active event, drops its pending callbacks,
// resets sub-state and advances the timeline cursor.
func (m *Machine) EndCurrentEvent() {
	if m.active == nil {
		return
	}
	ended := *m.active
	slog.Info("Machine.EndCurrentEvent", "type", ended.Type, "name", ended.Name)

	m.timeline.AdvanceCursor()
	m.deps.Timer.CancelOwner(clock.EventOwner(ended.Generation))
	m.active = nil
	if m.phase == PhaseEvent {
		m.phase = PhaseIdle
	}
	if !m.phase.Terminal() {
		m.hidePopup()
	}
	m.conv = models.DefaultConversationState()
	m.run = models.RunningState{}
	m.deps.Vitals.SetExertion(false)

	if ended.Type != models.EventFinish {
		m.play("idle")
	}
}

// after schedules fn for the active event. The callback is dropped if the
// event has ended or been replaced by the time it fires.
func (m *Machine) after(delay time.Duration, description string, fn func()) {
	if m.active == nil {
		return
	}
	gen := m.active.Generation
	et := m.active.Type
	m.deps.Timer.ScheduleAfter(delay, clock.EventOwner(gen), description, func() {
		if m.phase != PhaseEvent || m.active == nil || m.active.Generation != gen || m.active.Type != et {
			slog.Debug("Machine: dropping stale callback", "description", description, "generation", gen)
			return
		}
		fn()
	})
}

func (m *Machine) isActive(et models.EventType) bool {
	return !m.phase.Terminal() && m.active != nil && m.active.Type == et
}

func (m *Machine) addSuspicion(amount float64, reason string) {
	m.deps.Vitals.AddSuspicion(amount, reason)
}

func (m *Machine) play(name string) {
	m.sequence = name
	if m.deps.Animator == nil {
		return
	}
	if err := m.deps.Animator.PlaySequence(name); err != nil {
		if errors.Is(err, models.ErrUnknownSequence) {
			slog.Warn("Machine: animation sequence not found", "name", name)
			return
		}
		slog.Warn("Machine: play sequence failed", "name", name, "error", err)
	}
}

// showPopup replaces the event display. It is suppressed while ending.
func (m *Machine) showPopup(title string, urgent bool, lines ...string) {
	m.display(title, urgent, false, lines)
}

func (m *Machine) display(title string, urgent, force bool, lines []string) {
	if m.phase.Terminal() && !force {
		return
	}
	m.popup = models.Popup{
		Title:   title,
		Lines:   lines,
		Urgent:  urgent,
		Visible: true,
		Forced:  force,
	}
}

// refreshPopup rewrites the lines of a visible popup.
func (m *Machine) refreshPopup(lines ...string) {
	if m.phase.Terminal() || !m.popup.Visible {
		return
	}
	m.popup.Lines = lines
}

func (m *Machine) hidePopup() {
	m.popup.Visible = false
	m.popup.Urgent = false
}

// Activity is the status panel text for the current event.
func (m *Machine) Activity() string {
	if m.active == nil {
		return "IDLE - AWAITING ORDERS"
	}
	return "EVENT: " + strings.ToUpper(m.active.Name)
}

// Snapshot returns the read-only view used by presentation layers.
func (m *Machine) Snapshot() models.EventSnapshot {
	snap := models.EventSnapshot{
		Phase:       m.phase.String(),
		Active:      m.Active(),
		Activity:    m.Activity(),
		Stage:       m.timeline.Cursor(),
		Popup:       m.Popup(),
		EndScreen:   m.EndScreen(),
		PanelsFaded: m.panelsFaded,
	}
	if m.active != nil {
		switch m.active.Type {
		case models.EventOrderCoffee:
			c := m.Conversation()
			snap.Conversation = &c
		case models.EventRunningWoods:
			r := m.run
			snap.Running = &r
		}
	}
	return snap
}
