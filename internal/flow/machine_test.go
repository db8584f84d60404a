package flow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BTreeMap/BodyControl/internal/clock"
	"github.com/BTreeMap/BodyControl/internal/config"
	"github.com/BTreeMap/BodyControl/internal/models"
)

type fakeVitals struct {
	suspicion float64
	reasons   []string
	exertion  bool
}

func (f *fakeVitals) AddSuspicion(amount float64, reason string) bool {
	f.suspicion += amount
	f.reasons = append(f.reasons, reason)
	return false
}

func (f *fakeVitals) SetExertion(on bool) { f.exertion = on }

type fakeAnimator struct {
	played []string
}

func (f *fakeAnimator) PlaySequence(name string) error {
	f.played = append(f.played, name)
	if name == "baseline" {
		return models.ErrUnknownSequence
	}
	return nil
}

type fakeDisplay struct{ faded int }

func (f *fakeDisplay) FadeOutPanels() { f.faded++ }

// fixedRandom always returns the same draw.
type fixedRandom struct {
	f float64
	i int
}

func (r fixedRandom) Float64() float64 { return r.f }
func (r fixedRandom) IntN(n int) int   { return r.i % n }

type harness struct {
	m        *Machine
	vitals   *fakeVitals
	animator *fakeAnimator
	display  *fakeDisplay
	timer    *clock.VirtualTimer
	timeline *Timeline
}

func newHarness(t *testing.T, r fixedRandom) *harness {
	t.Helper()
	cfg := config.Default()
	h := &harness{
		vitals:   &fakeVitals{},
		animator: &fakeAnimator{},
		display:  &fakeDisplay{},
		timer:    clock.NewTimer(),
		timeline: NewTimeline(cfg.Schedule()),
	}
	h.m = NewMachine(cfg, h.timeline, Dependencies{
		Animator: h.animator,
		Display:  h.display,
		Vitals:   h.vitals,
		Timer:    h.timer,
		Random:   r,
	})
	return h
}

// step advances the clock and runs one machine update, as the orchestrator does.
func (h *harness) step(d time.Duration) {
	h.timer.Advance(d)
	h.m.Update(h.timer.Now(), d)
}

func TestStepAlternationAddsDistance(t *testing.T) {
	h := newHarness(t, fixedRandom{})
	require.NoError(t, h.m.StartEvent(models.EventRunningWoods))

	for _, foot := range []models.Foot{models.FootLeft, models.FootRight, models.FootLeft, models.FootRight} {
		assert.True(t, h.m.HandleStep(foot))
	}
	run := h.m.Running()
	assert.Equal(t, 10.0, run.Distance)
	assert.Equal(t, 4, run.StepCount)
	assert.Equal(t, 0.0, h.vitals.suspicion)
}

func TestRepeatedFootStumbles(t *testing.T) {
	h := newHarness(t, fixedRandom{})
	require.NoError(t, h.m.StartEvent(models.EventRunningWoods))

	h.m.HandleStep(models.FootLeft)
	h.m.HandleStep(models.FootLeft)

	run := h.m.Running()
	assert.Equal(t, 0.0, run.Distance, "2.5 - 5 floors at zero")
	assert.Equal(t, 1, run.StepCount)
	assert.Equal(t, 4.0, h.vitals.suspicion)
	assert.Equal(t, []string{"Stumbled while running"}, h.vitals.reasons)
}

func TestJumpTimeoutPenalises(t *testing.T) {
	h := newHarness(t, fixedRandom{f: 0, i: 2})
	require.NoError(t, h.m.StartEvent(models.EventRunningWoods))
	for i := 0; i < 8; i++ {
		foot := models.FootLeft
		if i%2 == 1 {
			foot = models.FootRight
		}
		h.m.HandleStep(foot)
	}
	require.Equal(t, 20.0, h.m.Running().Distance)

	// With a zero draw the first prompt fires after exactly 5s.
	h.timer.Advance(5 * time.Second)
	run := h.m.Running()
	require.True(t, run.JumpPromptActive)
	assert.Equal(t, "FALLEN TREE", run.Obstacle)
	assert.True(t, h.m.Popup().Urgent)

	before := h.vitals.suspicion
	h.timer.Advance(2 * time.Second)

	run = h.m.Running()
	assert.False(t, run.JumpPromptActive)
	assert.Equal(t, 10.0, h.vitals.suspicion-before)
	assert.Equal(t, 10.0, run.Distance)
	assert.False(t, h.m.Popup().Visible)
}

func TestJumpTimeoutFloorsDistance(t *testing.T) {
	h := newHarness(t, fixedRandom{})
	require.NoError(t, h.m.StartEvent(models.EventRunningWoods))
	h.m.HandleStep(models.FootLeft)

	h.timer.Advance(7 * time.Second)
	assert.Equal(t, 0.0, h.m.Running().Distance)
	assert.Equal(t, 10.0, h.vitals.suspicion)
}

func TestJumpInTimeAvoidsPenalty(t *testing.T) {
	h := newHarness(t, fixedRandom{})
	require.NoError(t, h.m.StartEvent(models.EventRunningWoods))

	assert.False(t, h.m.HandleJump(), "no prompt open yet")
	h.timer.Advance(5 * time.Second)
	assert.True(t, h.m.HandleJump())
	h.timer.Advance(2 * time.Second)

	assert.Equal(t, 0.0, h.vitals.suspicion)
	assert.False(t, h.m.Running().JumpPromptActive)
}

func TestJumpPromptsReschedule(t *testing.T) {
	h := newHarness(t, fixedRandom{})
	require.NoError(t, h.m.StartEvent(models.EventRunningWoods))

	h.timer.Advance(5 * time.Second)
	h.m.HandleJump()
	h.timer.Advance(5 * time.Second)
	assert.True(t, h.m.Running().JumpPromptActive, "second prompt fires 5s after the first")
}

func TestWoodsCompletion(t *testing.T) {
	h := newHarness(t, fixedRandom{f: 0.99})
	require.NoError(t, h.m.StartEvent(models.EventRunningWoods))
	assert.True(t, h.vitals.exertion)

	for i := 0; i < 40; i++ {
		foot := models.FootLeft
		if i%2 == 1 {
			foot = models.FootRight
		}
		h.m.HandleStep(foot)
	}
	require.Equal(t, 100.0, h.m.Running().Distance)

	h.step(100 * time.Millisecond)
	assert.True(t, h.m.Running().Completed)
	assert.Equal(t, "SUCCESS!", h.m.Popup().Title)

	h.step(100 * time.Millisecond)
	require.NotNil(t, h.m.Active(), "completion is one-shot and waits for the grace delay")

	h.step(1900 * time.Millisecond)
	assert.Nil(t, h.m.Active())
	assert.False(t, h.vitals.exertion)
	assert.Equal(t, 1, h.timeline.Cursor())
}

func TestCoffeeProgressionRegardlessOfAnswer(t *testing.T) {
	for option := 1; option <= 5; option++ {
		h := newHarness(t, fixedRandom{f: 0.5})
		require.NoError(t, h.m.StartEvent(models.EventOrderCoffee))

		h.timer.Advance(8 * time.Second)
		require.True(t, h.m.HandleSwallow())
		h.timer.Advance(4 * time.Second)

		conv := h.m.Conversation()
		require.Equal(t, 1, conv.ConversationStep)
		require.True(t, conv.WaitingForResponse)
		require.Len(t, conv.Options, 4)

		before := h.vitals.suspicion
		assert.True(t, h.m.HandleOption(option))
		assert.False(t, h.m.HandleOption(option), "answer is accepted once")

		conv = h.m.Conversation()
		assert.False(t, conv.WaitingForResponse)
		assert.Equal(t, 1, conv.ConversationStep)

		correct := option == 1
		if correct {
			assert.Equal(t, before, h.vitals.suspicion)
			h.timer.Advance(400 * time.Millisecond)
		} else {
			assert.Equal(t, 15.0, h.vitals.suspicion-before)
			assert.Equal(t, "AWKWARD...", h.m.Popup().Title)
			h.timer.Advance(2999 * time.Millisecond)
			assert.Equal(t, 1, h.m.Conversation().ConversationStep)
			h.timer.Advance(time.Millisecond)
		}

		conv = h.m.Conversation()
		assert.Equal(t, 2, conv.ConversationStep, "option %d", option)
		assert.True(t, conv.WaitingForResponse)
		assert.Len(t, conv.Options, 3)
		assert.Equal(t, "CONVERSATION (2/2)", h.m.Popup().Title)

		// Nothing moves the step again until it is answered.
		h.timer.Advance(5 * time.Second)
		assert.Equal(t, 2, h.m.Conversation().ConversationStep)

		assert.True(t, h.m.HandleOption(2))
		conv = h.m.Conversation()
		assert.Equal(t, 2, conv.ConversationStep)
		assert.True(t, conv.Completed)
		assert.Nil(t, conv.Options)
	}
}

func TestSwallowTimeout(t *testing.T) {
	h := newHarness(t, fixedRandom{f: 0.5})
	require.NoError(t, h.m.StartEvent(models.EventOrderCoffee))

	h.step(8 * time.Second)
	require.True(t, h.m.Conversation().SwallowPromptActive)
	assert.Equal(t, []string{"MOUTH IS WET", "SWALLOW [S]", "Time: 3.0s"}, h.m.Popup().Lines)

	h.step(time.Second)
	assert.Equal(t, "Time: 2.0s", h.m.Popup().Lines[2])

	h.step(2 * time.Second)
	assert.False(t, h.m.Conversation().SwallowPromptActive)
	assert.Equal(t, 8.0, h.vitals.suspicion)
	assert.Contains(t, h.vitals.reasons, "Failed to swallow")
	assert.False(t, h.m.HandleSwallow())
}

func TestEyeContactPenalty(t *testing.T) {
	// Target = 40 + 1.0*20 = 60.
	h := newHarness(t, fixedRandom{f: 1})
	require.NoError(t, h.m.StartEvent(models.EventOrderCoffee))
	require.Equal(t, 60.0, h.m.Conversation().EyeContactTarget)

	h.step(time.Second)
	assert.Equal(t, 0.0, h.vitals.suspicion, "level 50 is within 15 of 60")

	assert.True(t, h.m.HandleEyeContact())
	assert.Equal(t, 30.0, h.m.Conversation().EyeContactLevel)
	h.step(time.Second)
	assert.InDelta(t, 0.5, h.vitals.suspicion, 1e-9)

	assert.True(t, h.m.HandleEyeContact())
	assert.Equal(t, 70.0, h.m.Conversation().EyeContactLevel)
}

func TestHandlersIgnoreOtherEvents(t *testing.T) {
	h := newHarness(t, fixedRandom{})
	assert.False(t, h.m.HandleStep(models.FootLeft))
	assert.False(t, h.m.HandleEyeContact())

	require.NoError(t, h.m.StartEvent(models.EventBaseline))
	assert.False(t, h.m.HandleStep(models.FootLeft))
	assert.False(t, h.m.HandleOption(1))
	assert.False(t, h.m.HandleSwallow())
	assert.False(t, h.m.HandleJump())
}

func TestEventEndsAfterDuration(t *testing.T) {
	h := newHarness(t, fixedRandom{})
	require.NoError(t, h.m.StartEvent(models.EventBaseline))
	assert.Equal(t, PhaseEvent, h.m.Phase())
	assert.Equal(t, 20*time.Second, h.m.Active().Duration)
	assert.Equal(t, "EVENT: BASELINE RECORDING", h.m.Activity())

	h.step(19999 * time.Millisecond)
	require.NotNil(t, h.m.Active())
	h.step(time.Millisecond)

	assert.Nil(t, h.m.Active())
	assert.Equal(t, PhaseIdle, h.m.Phase())
	assert.Equal(t, 1, h.timeline.Cursor())
	assert.False(t, h.m.Popup().Visible)
	assert.Equal(t, []string{"baseline", "idle"}, h.animator.played)
	assert.Equal(t, "idle", h.m.Sequence())
}

func TestStaleCallbacksAreDropped(t *testing.T) {
	h := newHarness(t, fixedRandom{f: 0.5})
	require.NoError(t, h.m.StartEvent(models.EventOrderCoffee))
	h.timer.Advance(time.Second)
	h.m.EndCurrentEvent()

	assert.Zero(t, h.timer.Pending(), "ending an event cancels its callbacks")

	require.NoError(t, h.m.StartEvent(models.EventRunningWoods))
	for _, info := range h.timer.ListActive() {
		assert.Equal(t, clock.EventOwner(2), info.Owner)
	}

	h.timer.Advance(20 * time.Second)
	conv := h.m.Conversation()
	assert.False(t, conv.SwallowPromptActive)
	assert.Zero(t, conv.ConversationStep)
	assert.NotContains(t, h.vitals.reasons, "Failed to swallow")
}

func TestGenerationGuardDropsReplacedEventCallbacks(t *testing.T) {
	h := newHarness(t, fixedRandom{})
	require.NoError(t, h.m.StartEvent(models.EventRunningWoods))
	gen := h.m.Active().Generation

	// Schedule through the old generation without going through CancelOwner.
	fired := false
	h.m.after(time.Second, "probe", func() { fired = true })
	h.m.active.Generation = gen + 100

	h.timer.Advance(time.Second)
	assert.False(t, fired)
}

func TestUnknownEventType(t *testing.T) {
	h := newHarness(t, fixedRandom{})
	err := h.m.StartEvent("karaoke")
	assert.ErrorIs(t, err, models.ErrUnknownEventType)
	assert.Nil(t, h.m.Active())
	assert.Equal(t, PhaseIdle, h.m.Phase())
}

func TestFinishIsIdempotent(t *testing.T) {
	h := newHarness(t, fixedRandom{})
	require.NoError(t, h.m.StartEvent(models.EventRunningWoods))
	h.m.HandleStep(models.FootLeft)

	assert.True(t, h.m.Finish(models.Outcome{Kind: models.OutcomeFailure, Reason: "Suspicion reached maximum"}))
	assert.False(t, h.m.Finish(models.Outcome{Kind: models.OutcomeSuccess}))
	require.NoError(t, h.m.StartEvent(models.EventOrderCoffee))

	assert.Equal(t, PhaseEnding, h.m.Phase())
	assert.Equal(t, models.OutcomeFailure, h.m.Outcome().Kind)
	assert.Equal(t, models.EventFinish, h.m.Active().Type)
	assert.Equal(t, 1, h.display.faded)
	assert.True(t, h.m.Snapshot().PanelsFaded)
	assert.Equal(t, "failure", h.m.Sequence())

	popup := h.m.Popup()
	assert.True(t, popup.Visible)
	assert.True(t, popup.Forced)
	assert.Equal(t, "YOU HAVE BEEN DETECTED - Suspicion reached maximum", popup.Title)

	assert.False(t, h.m.HandleStep(models.FootRight))
	assert.False(t, h.m.HandleJump())

	h.step(7999 * time.Millisecond)
	assert.Nil(t, h.m.EndScreen())
	h.step(time.Millisecond)

	require.NotNil(t, h.m.EndScreen())
	assert.Equal(t, "YOU HAVE BEEN DETECTED", h.m.EndScreen().Title)
	assert.Equal(t, PhaseEnded, h.m.Phase())
	assert.False(t, h.m.Popup().Visible)
	assert.False(t, h.m.Finish(models.Outcome{Kind: models.OutcomeSuccess}))
}

func TestFinishSuccessShowsThanks(t *testing.T) {
	h := newHarness(t, fixedRandom{})
	require.NoError(t, h.m.StartEvent(models.EventFinish))

	assert.Equal(t, models.OutcomeSuccess, h.m.Outcome().Kind)
	assert.False(t, h.m.Popup().Visible)
	h.timer.Advance(8 * time.Second)

	end := h.m.EndScreen()
	require.NotNil(t, end)
	assert.Equal(t, "Thanks for playing.", end.Title)
	assert.NotEmpty(t, end.Art)
	assert.Equal(t, "success", h.m.Sequence(), "finish keeps the ending animation")
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "idle", PhaseIdle.String())
	assert.Equal(t, "ended", PhaseEnded.String())
	assert.True(t, PhaseEnding.Terminal())
	assert.False(t, PhaseEvent.Terminal())
}
