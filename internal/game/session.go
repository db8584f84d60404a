// Package game wires the vitals model, timeline and event machine into a
// single session driven one frame at a time.
package game

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/BTreeMap/BodyControl/internal/clock"
	"github.com/BTreeMap/BodyControl/internal/config"
	"github.com/BTreeMap/BodyControl/internal/flow"
	"github.com/BTreeMap/BodyControl/internal/models"
	"github.com/BTreeMap/BodyControl/internal/util"
	"github.com/BTreeMap/BodyControl/internal/vitals"
)

const failureReason = "Suspicion reached maximum"

// AlertBoard keeps recent vital alerts for display.
type AlertBoard interface {
	Post(a models.Alert)
	Active(at time.Duration) []models.Alert
}

// Deps are the presentation collaborators. Any of them may be nil.
type Deps struct {
	Animator flow.Animator
	Display  flow.Display
	Audio    vitals.Audio
	Board    AlertBoard
}

// EndHook is called once when a session resolves.
type EndHook func(rec models.SessionRecord)

// Option configures a Session.
type Option func(*Session)

// WithID sets the session ID instead of generating one.
func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}

// WithSeed fixes the random seed.
func WithSeed(seed uint64) Option {
	return func(s *Session) {
		s.seed = seed
		s.seeded = true
	}
}

// WithEndHook registers a hook run once the outcome is known.
func WithEndHook(h EndHook) Option {
	return func(s *Session) {
		if h != nil {
			s.endHooks = append(s.endHooks, h)
		}
	}
}

// WithWallClock overrides the wall clock used for record timestamps.
func WithWallClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.wallClock = now
		}
	}
}

// Session is one play-through. It is not safe for concurrent use.
type Session struct {
	id     string
	seed   uint64
	seeded bool
	cfg    *config.Config
	deps   Deps

	timer    *clock.VirtualTimer
	random   *util.SeededRandom
	vitals   *vitals.Model
	timeline *flow.Timeline
	machine  *flow.Machine

	lifecycle models.Lifecycle
	elapsed   time.Duration
	playTime  time.Duration
	lastFrame time.Duration
	haveFrame bool
	steps     int

	startedAt time.Time
	endedAt   time.Time
	outcome   *models.Outcome
	endHooks  []EndHook
	wallClock func() time.Time
}

// NewSession builds a session in the init state.
func NewSession(cfg *config.Config, deps Deps, opts ...Option) *Session {
	if cfg == nil {
		cfg = config.Default()
	}
	s := &Session{
		cfg:       cfg,
		deps:      deps,
		lifecycle: models.LifecycleInit,
		wallClock: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}
	if !s.seeded {
		s.seed = util.NewSeed()
	}

	s.timer = clock.NewTimer()
	s.random = util.NewSeededRandom(s.seed)
	s.vitals = vitals.New(cfg, s.timer,
		vitals.WithAlerter(alertSink{s}),
		vitals.WithAudio(deps.Audio),
	)
	s.timeline = flow.NewTimeline(cfg.Schedule(),
		flow.Unlock{At: cfg.Unlocks.Breathing.Duration(), Kind: models.VitalOxygen},
		flow.Unlock{At: cfg.Unlocks.Blinking.Duration(), Kind: models.VitalEyes},
	)
	s.machine = flow.NewMachine(cfg, s.timeline, flow.Dependencies{
		Animator: deps.Animator,
		Display:  deps.Display,
		Vitals:   s.vitals,
		Timer:    s.timer,
		Random:   s.random,
	})

	slog.Debug("Session created", "id", s.id, "seed", s.seed)
	return s
}

// alertSink stamps vital alerts with play time before posting them.
type alertSink struct{ s *Session }

func (a alertSink) Alert(level models.AlertLevel, message string) {
	slog.Debug("Session alert", "id", a.s.id, "level", level, "message", message)
	if a.s.deps.Board == nil {
		return
	}
	a.s.deps.Board.Post(models.Alert{Level: level, Message: message, At: a.s.elapsed})
}

func (s *Session) ID() string                  { return s.id }
func (s *Session) Seed() uint64                { return s.seed }
func (s *Session) Lifecycle() models.Lifecycle { return s.lifecycle }
func (s *Session) Elapsed() time.Duration      { return s.elapsed }

// Start begins play and zeroes elapsed time. Calling it again has no effect.
func (s *Session) Start() {
	if s.lifecycle != models.LifecycleInit {
		return
	}
	s.lifecycle = models.LifecycleRunning
	s.elapsed = 0
	s.startedAt = s.wallClock()
	slog.Info("Session started", "id", s.id, "seed", s.seed)
	if s.deps.Animator != nil {
		if err := s.deps.Animator.PlaySequence("idle"); err != nil {
			slog.Warn("Session.Start: play idle failed", "error", err)
		}
	}
}

// Frame advances the session to a host frame timestamp. The first frame
// only records the timestamp.
func (s *Session) Frame(ts time.Duration) {
	if !s.haveFrame {
		s.haveFrame = true
		s.lastFrame = ts
		s.Tick(0)
		return
	}
	dt := ts - s.lastFrame
	s.lastFrame = ts
	s.Tick(dt)
}

// Tick advances play by dt. Negative deltas count as zero. Before Start
// nothing moves; after the outcome only the clock runs so the end screen
// still appears.
func (s *Session) Tick(dt time.Duration) {
	if dt < 0 {
		dt = 0
	}
	switch s.lifecycle {
	case models.LifecycleInit:
		return
	case models.LifecycleEnded:
		s.elapsed += dt
		s.timer.AdvanceTo(s.elapsed)
		return
	}

	s.elapsed += dt
	s.timer.AdvanceTo(s.elapsed)
	s.vitals.Update(dt, s.elapsed)
	s.timeline.CheckUnlocks(s.elapsed, s.vitals)

	if st, ok := s.timeline.CheckAdvance(s.elapsed, s.machine.Active() != nil); ok {
		if st.Type == models.EventFinish {
			s.resolve(models.Outcome{Kind: models.OutcomeSuccess})
		} else if err := s.machine.StartEvent(st.Type); err != nil {
			slog.Warn("Session.Tick: stage could not start", "id", s.id, "type", st.Type, "error", err)
		}
	}

	s.machine.Update(s.elapsed, dt)
	s.checkFailure()
}

// HandleAction routes a player action. It reports whether the action changed
// anything. Actions after the outcome are ignored.
func (s *Session) HandleAction(a models.Action) (bool, error) {
	if _, err := models.ParseAction(string(a)); err != nil {
		slog.Warn("Session.HandleAction: unknown action", "id", s.id, "action", a)
		return false, fmt.Errorf("handle action %q: %w", a, err)
	}
	switch s.lifecycle {
	case models.LifecycleInit:
		return false, models.ErrNotStarted
	case models.LifecycleEnded:
		return false, nil
	}

	s.vitals.SetElapsed(s.elapsed)
	var acted bool
	switch a {
	case models.ActionBreathe:
		acted = s.vitals.Breathe()
	case models.ActionHeartbeat:
		acted = s.vitals.Heartbeat()
	case models.ActionBlink:
		acted = s.vitals.Blink()
	case models.ActionEyeContact:
		acted = s.machine.HandleEyeContact()
	case models.ActionSwallow:
		acted = s.machine.HandleSwallow()
	case models.ActionStepLeft, models.ActionStepRight:
		foot := models.FootLeft
		if a == models.ActionStepRight {
			foot = models.FootRight
		}
		before := s.machine.Running().StepCount
		acted = s.machine.HandleStep(foot)
		if s.machine.Running().StepCount > before {
			s.steps++
		}
	case models.ActionJump:
		acted = s.machine.HandleJump()
	default:
		acted = s.machine.HandleOption(a.OptionNumber())
	}

	if s.deps.Audio != nil {
		s.deps.Audio.Play(a.Cue())
	}
	slog.Debug("Session.HandleAction", "id", s.id, "action", a, "acted", acted)

	s.checkFailure()
	return acted, nil
}

// checkFailure keys off the latched crossing: a timer penalty can hit max
// and decay can pull the meter back under it within the same tick.
func (s *Session) checkFailure() {
	if s.lifecycle == models.LifecycleRunning && s.vitals.MaxReached() {
		s.resolve(models.Outcome{Kind: models.OutcomeFailure, Reason: failureReason})
	}
}

// resolve ends play exactly once, whichever path gets here first.
func (s *Session) resolve(o models.Outcome) bool {
	if s.lifecycle != models.LifecycleRunning {
		return false
	}
	if !s.machine.Finish(o) {
		return false
	}
	s.lifecycle = models.LifecycleEnded
	s.vitals.Freeze()
	s.playTime = s.elapsed
	s.endedAt = s.wallClock()
	out := o
	s.outcome = &out
	slog.Info("Session resolved", "id", s.id, "outcome", o.Kind, "reason", o.Reason, "elapsed", s.elapsed)

	rec := s.Record()
	for _, h := range s.endHooks {
		h(rec)
	}
	return true
}

// Outcome returns the resolved outcome, or nil while play continues.
func (s *Session) Outcome() *models.Outcome {
	if s.outcome == nil {
		return nil
	}
	o := *s.outcome
	return &o
}

// EndScreenShown reports whether the finish playback has completed.
func (s *Session) EndScreenShown() bool {
	return s.machine.Phase() == flow.PhaseEnded
}

// Snapshot returns everything a presentation layer needs for one frame.
func (s *Session) Snapshot() models.SessionSnapshot {
	snap := models.SessionSnapshot{
		ID:        s.id,
		Lifecycle: s.lifecycle,
		Elapsed:   s.elapsed,
		Vitals:    s.vitals.Snapshot(),
		Event:     s.machine.Snapshot(),
		Sequence:  s.machine.Sequence(),
		Outcome:   s.Outcome(),
	}
	if s.deps.Board != nil {
		snap.Alerts = s.deps.Board.Active(s.elapsed)
	}
	return snap
}

// Record summarises the session for persistence.
func (s *Session) Record() models.SessionRecord {
	rec := models.SessionRecord{
		ID:              s.id,
		Seed:            s.seed,
		StartedAt:       s.startedAt,
		EndedAt:         s.endedAt,
		PlayTime:        s.elapsed,
		FinalSuspicion:  s.vitals.Suspicion().Current,
		StagesCompleted: s.timeline.Cursor(),
		StepCount:       s.steps,
		Ledger:          s.vitals.Ledger(),
	}
	if s.outcome != nil {
		rec.Outcome = *s.outcome
		rec.PlayTime = s.playTime
	}
	return rec
}
