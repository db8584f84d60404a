package flow

import (
	"log/slog"
	"math"
	"time"

	"github.com/BTreeMap/BodyControl/internal/models"
	"github.com/BTreeMap/BodyControl/internal/util"
)

// woodsHandler runs the traversal: alternate feet to cover distance and jump
// the obstacles that appear at random intervals.
type woodsHandler struct{}

func (woodsHandler) Setup(m *Machine) {
	m.play("walking")
	m.run = models.RunningState{}
	m.deps.Vitals.SetExertion(true)

	m.showPopup("TRAVEL THROUGH WOODS", false,
		"SCENARIO: Forest",
		"OBJECTIVE: TRAVERSE",
		"",
		"CONTROLS:",
		"[D] - Step Left",
		"[F] - Step Right",
		"",
		"Alternate feet to maintain speed",
	)
	m.scheduleJumpPrompt()
}

func (woodsHandler) Update(m *Machine, _ time.Duration) {
	if m.run.Distance < 100 || m.run.Completed {
		return
	}
	m.run.Completed = true
	slog.Info("Machine: woods traversed", "steps", m.run.StepCount)
	m.showPopup("SUCCESS!", false, "You have traversed the woods.")
	m.after(m.cfg.Woods.CompletionGrace.Duration(), "woods complete", m.EndCurrentEvent)
}

func (m *Machine) scheduleJumpPrompt() {
	w := m.cfg.Woods
	delay := time.Duration(util.Between(m.deps.Random,
		float64(w.JumpIntervalMin.Duration()), float64(w.JumpIntervalSpan.Duration())))
	m.after(delay, "jump prompt", func() {
		m.promptJump()
		m.scheduleJumpPrompt()
	})
}

// promptJump opens a jump window. The timeout only applies to the prompt it
// was opened with.
func (m *Machine) promptJump() {
	w := m.cfg.Woods
	m.jumpSeq++
	seq := m.jumpSeq
	m.run.JumpPromptActive = true
	m.run.Obstacle = util.Pick(m.deps.Random, w.Obstacles)

	window := w.JumpWindow.Duration()
	m.showPopup("OBSTACLE!", true, m.run.Obstacle, "JUMP [SPACE]", "Time: 2.0s")

	m.after(window, "jump timeout", func() {
		if !m.run.JumpPromptActive || m.jumpSeq != seq {
			return
		}
		m.run.JumpPromptActive = false
		m.run.Obstacle = ""
		m.addSuspicion(w.JumpPenalty, "Failed to jump obstacle")
		m.run.Distance = math.Max(0, m.run.Distance-w.JumpDistanceLoss)
		slog.Debug("Machine: hit obstacle", "distance", m.run.Distance)
		m.hidePopup()
	})
}

// HandleStep records a step. Feet must alternate; repeating a foot stumbles.
func (m *Machine) HandleStep(foot models.Foot) bool {
	if !m.isActive(models.EventRunningWoods) {
		return false
	}
	w := m.cfg.Woods
	if m.run.LastStepFoot == foot {
		m.run.Distance = math.Max(0, m.run.Distance-w.StumbleDistance)
		m.addSuspicion(w.StumblePenalty, "Stumbled while running")
		slog.Debug("Machine.HandleStep: misstep", "distance", m.run.Distance)
		return true
	}
	m.run.Distance = math.Min(100, m.run.Distance+w.StepDistance)
	m.run.LastStepFoot = foot
	m.run.StepCount++
	return true
}

// HandleJump clears an open obstacle prompt.
func (m *Machine) HandleJump() bool {
	if !m.isActive(models.EventRunningWoods) || !m.run.JumpPromptActive {
		return false
	}
	m.run.JumpPromptActive = false
	m.run.Obstacle = ""
	m.hidePopup()
	slog.Debug("Machine.HandleJump: cleared obstacle")
	return true
}
