package game

import (
	"math"
	"time"

	"github.com/BTreeMap/BodyControl/internal/models"
	"github.com/BTreeMap/BodyControl/internal/util"
)

// Autopilot is a scripted player for headless runs. With no mistakes
// configured it keeps every vital in band and clears every prompt, so a run
// ends in success with no suspicion.
type Autopilot struct {
	s *Session

	stepEvery time.Duration
	lastStep  time.Duration
	nextFoot  models.Foot

	mistakes float64
	random   util.Random
}

// AutopilotOption configures an Autopilot.
type AutopilotOption func(*Autopilot)

// WithStepInterval sets how often the pilot steps while running.
func WithStepInterval(d time.Duration) AutopilotOption {
	return func(a *Autopilot) {
		if d > 0 {
			a.stepEvery = d
		}
	}
}

// WithMistakes makes the pilot err with the given probability on each
// decision it takes.
func WithMistakes(rate float64, r util.Random) AutopilotOption {
	return func(a *Autopilot) {
		a.mistakes = rate
		a.random = r
	}
}

// NewAutopilot creates a pilot for s.
func NewAutopilot(s *Session, opts ...AutopilotOption) *Autopilot {
	a := &Autopilot{
		s:         s,
		stepEvery: 250 * time.Millisecond,
		lastStep:  -time.Hour,
		nextFoot:  models.FootLeft,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Autopilot) slip() bool {
	return a.random != nil && a.mistakes > 0 && a.random.Float64() < a.mistakes
}

// Act inspects the session and performs whatever actions are due. It returns
// the actions taken.
func (a *Autopilot) Act() []models.Action {
	snap := a.s.Snapshot()
	if snap.Lifecycle != models.LifecycleRunning {
		return nil
	}
	var plan []models.Action

	v := snap.Vitals
	if v.HeartRate.Enabled && v.HeartRate.Current < 40 {
		plan = append(plan, models.ActionHeartbeat)
	}
	if v.Oxygen.Enabled && v.Oxygen.Current < 45 {
		plan = append(plan, models.ActionBreathe)
	}
	if v.Eyes.Enabled && v.Eyes.Current < 40 {
		plan = append(plan, models.ActionBlink)
	}

	if c := snap.Event.Conversation; c != nil {
		if c.SwallowPromptActive && !a.slip() {
			plan = append(plan, models.ActionSwallow)
		}
		if math.Abs(c.EyeContactLevel-c.EyeContactTarget) > 15 {
			plan = append(plan, models.ActionEyeContact)
		}
		if c.WaitingForResponse {
			plan = append(plan, a.answer(c.Options))
		}
	}

	if r := snap.Event.Running; r != nil {
		if r.JumpPromptActive && !a.slip() {
			plan = append(plan, models.ActionJump)
		}
		if !r.Completed && snap.Elapsed-a.lastStep >= a.stepEvery {
			a.lastStep = snap.Elapsed
			plan = append(plan, a.step())
		}
	}

	var done []models.Action
	for _, act := range plan {
		if _, err := a.s.HandleAction(act); err != nil {
			continue
		}
		done = append(done, act)
	}
	return done
}

func (a *Autopilot) answer(options []models.ConversationOption) models.Action {
	pick := 0
	for i, o := range options {
		if o.Correct {
			pick = i
			break
		}
	}
	if a.slip() && len(options) > 1 {
		pick = (pick + 1) % len(options)
	}
	return models.AllActions[indexOf(models.ActionOption1)+pick]
}

func (a *Autopilot) step() models.Action {
	foot := a.nextFoot
	if !a.slip() {
		if a.nextFoot == models.FootLeft {
			a.nextFoot = models.FootRight
		} else {
			a.nextFoot = models.FootLeft
		}
	}
	if foot == models.FootRight {
		return models.ActionStepRight
	}
	return models.ActionStepLeft
}

func indexOf(act models.Action) int {
	for i, x := range models.AllActions {
		if x == act {
			return i
		}
	}
	return -1
}
