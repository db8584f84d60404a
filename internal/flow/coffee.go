package flow

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/BTreeMap/BodyControl/internal/models"
)

var (
	orderOptions = []models.ConversationOption{
		{Text: "coffee", Correct: true},
		{Text: "frog"},
		{Text: "revenge"},
		{Text: "sustenance"},
	}
	paymentOptions = []models.ConversationOption{
		{Text: "credits"},
		{Text: "human dollars", Correct: true},
		{Text: "frogs"},
	}
)

// coffeeHandler runs the barista conversation: eye contact tracking, a timed
// swallow prompt and two multiple-choice replies.
type coffeeHandler struct{}

func (coffeeHandler) Setup(m *Machine) {
	c := m.cfg.Coffee
	m.play("coffee")
	m.conv.EyeContactLevel = 50
	m.conv.EyeContactTarget = c.TargetBase + m.deps.Random.Float64()*c.TargetSpan

	m.showPopup("INCOMING SOCIAL INTERACTION", false,
		"SCENARIO: Coffee Shop",
		"OBJECTIVE: Order coffee without suspicion",
		"",
		"NEW CONTROLS ACTIVE:",
		"[R] - Eye Contact Toggle",
		"[S] - Swallow (when needed)",
		"[1-4] - Conversation Options",
	)

	m.after(c.EyeContactReminder.Duration(), "eye contact reminder", func() {
		slog.Info("Machine: eye contact required", "target", m.conv.EyeContactTarget)
	})
	m.after(c.SwallowPrompt.Duration(), "swallow prompt", m.promptSwallow)
	m.after(c.Conversation.Duration(), "conversation start", m.startConversation)
}

func (coffeeHandler) Update(m *Machine, dt time.Duration) {
	c := m.cfg.Coffee
	if math.Abs(m.conv.EyeContactLevel-m.conv.EyeContactTarget) > c.EyeContactSlack {
		m.addSuspicion(c.EyeContactPenalty*dt.Seconds(), "Poor eye contact")
	}
	if m.conv.SwallowPromptActive {
		left := c.SwallowWindow.Duration() - (m.now() - m.conv.LastSwallowTime)
		if left > 0 {
			m.refreshPopup(swallowLines(left)...)
		}
	}
}

func swallowLines(left time.Duration) []string {
	return []string{"MOUTH IS WET", "SWALLOW [S]", fmt.Sprintf("Time: %.1fs", left.Seconds())}
}

func (m *Machine) promptSwallow() {
	window := m.cfg.Coffee.SwallowWindow.Duration()
	m.conv.SwallowPromptActive = true
	m.conv.LastSwallowTime = m.now()
	m.showPopup("ACTION REQUIRED", true, swallowLines(window)...)

	m.after(window, "swallow timeout", func() {
		if !m.conv.SwallowPromptActive {
			return
		}
		m.conv.SwallowPromptActive = false
		m.addSuspicion(m.cfg.Coffee.SwallowPenalty, "Failed to swallow")
		m.hidePopup()
	})
}

func (m *Machine) startConversation() {
	m.conv.ConversationStep = 1
	m.offer("CONVERSATION (1/2)", `"I'd like a _____"`, orderOptions)
}

func (m *Machine) offer(title, prompt string, options []models.ConversationOption) {
	m.conv.Options = append([]models.ConversationOption(nil), options...)
	m.conv.WaitingForResponse = true
	lines := []string{prompt, ""}
	for i, o := range options {
		lines = append(lines, fmt.Sprintf("[%d] %s", i+1, o.Text))
	}
	m.showPopup(title, false, lines...)
}

// HandleEyeContact flips eye contact between a glance and a stare.
func (m *Machine) HandleEyeContact() bool {
	if !m.isActive(models.EventOrderCoffee) {
		return false
	}
	if m.conv.EyeContactLevel < 50 {
		m.conv.EyeContactLevel = 70
	} else {
		m.conv.EyeContactLevel = 30
	}
	slog.Debug("Machine.HandleEyeContact", "level", m.conv.EyeContactLevel)
	return true
}

// HandleSwallow answers an open swallow prompt.
func (m *Machine) HandleSwallow() bool {
	if !m.isActive(models.EventOrderCoffee) || !m.conv.SwallowPromptActive {
		return false
	}
	m.conv.SwallowPromptActive = false
	m.hidePopup()
	slog.Debug("Machine.HandleSwallow: swallowed")
	return true
}

// HandleOption answers the pending conversation step with the 1-based
// option n. Any answer moves the conversation on; numbers outside the
// offered options count as wrong.
func (m *Machine) HandleOption(n int) bool {
	if !m.isActive(models.EventOrderCoffee) || !m.conv.WaitingForResponse {
		return false
	}
	c := m.cfg.Coffee
	m.conv.WaitingForResponse = false

	correct := n >= 1 && n <= len(m.conv.Options) && m.conv.Options[n-1].Correct
	step := m.conv.ConversationStep
	if step == 0 {
		step = 1
	}
	m.conv.Options = nil
	slog.Info("Machine.HandleOption", "step", step, "option", n, "correct", correct)

	if correct {
		m.hidePopup()
	} else {
		m.addSuspicion(c.WrongAnswerPenalty, "Weird conversation choice")
		m.showPopup("AWKWARD...", false, "The barista stares at you weirdly")
	}

	switch step {
	case 1:
		delay := c.RightAnswerDelay.Duration()
		if !correct {
			delay = c.WrongAnswerDelay.Duration()
		}
		m.after(delay, "conversation step 2", func() {
			m.hidePopup()
			m.conv.ConversationStep = 2
			m.offer("CONVERSATION (2/2)", `"How will you pay?"`, paymentOptions)
		})
	default:
		m.conv.Completed = true
	}
	return true
}
