package flow

import (
	"log/slog"

	"github.com/BTreeMap/BodyControl/internal/clock"
	"github.com/BTreeMap/BodyControl/internal/models"
)

const thanksArt = `
 ███████╗██╗  ██╗ █████╗ ███╗   ██╗██╗  ██╗███████╗
╚══██╔══╝██║  ██║██╔══██╗████╗  ██║██║ ██╔╝██╔════╝
   ██║   ███████║███████║██╔██╗ ██║█████╔╝ ███████╗
   ██║   ██╔══██║██╔══██║██║╚██╗██║██╔═██╗ ╚════██║
   ██║   ██║  ██║██║  ██║██║ ╚████║██║  ██╗███████║
   ╚═╝   ╚═╝  ╚═╝╚═╝  ╚═╝╚═╝  ╚═══╝╚═╝  ╚═╝╚══════╝

    ███████╗ ██████╗ ██████╗     ██████╗ ██╗      █████╗ ██╗   ██╗██╗███╗   ██╗ ██████╗
    ██╔════╝██╔═══██╗██╔══██╗    ██╔══██╗██║     ██╔══██╗╚██╗ ██╔╝██║████╗  ██║██╔════╝
    █████╗  ██║   ██║██████╔╝    ██████╔╝██║     ███████║ ╚████╔╝ ██║██╔██╗ ██║██║  ███╗
    ██╔══╝  ██║   ██║██╔══██╗    ██╔═══╝ ██║     ██╔══██║  ╚██╔╝  ██║██║╚██╗██║██║   ██║
    ██║     ╚██████╔╝██║  ██║    ██║     ███████╗██║  ██║   ██║   ██║██║ ╚████║╚██████╔╝
    ╚═╝      ╚═════╝ ╚═╝  ╚═╝    ╚═╝     ╚══════╝╚═╝  ╚═╝   ╚═╝   ╚═╝╚═╝  ╚═══╝ ╚═════╝
`

// Finish resolves the session. The first call wins; later calls report false.
// Any active event is ended first, then the finish playback runs for the
// configured duration before the end screen is published.
func (m *Machine) Finish(outcome models.Outcome) bool {
	if m.phase.Terminal() {
		slog.Debug("Machine.Finish: already ending", "kind", outcome.Kind)
		return false
	}
	if m.active != nil {
		m.EndCurrentEvent()
	}

	o := outcome
	m.outcome = &o
	m.phase = PhaseEnding
	m.generation++
	m.active = &models.ActiveEvent{
		Type:       models.EventFinish,
		Name:       models.EventName(models.EventFinish),
		StartedAt:  m.now(),
		Duration:   m.cfg.Finish.Duration.Duration(),
		Generation: m.generation,
	}
	slog.Info("Machine.Finish", "kind", outcome.Kind, "reason", outcome.Reason)

	m.hidePopup()
	m.conv = models.DefaultConversationState()
	m.run.JumpPromptActive = false
	m.run.Obstacle = ""

	m.panelsFaded = true
	if m.deps.Display != nil {
		m.deps.Display.FadeOutPanels()
	}

	if outcome.Kind == models.OutcomeSuccess {
		m.play("success")
	} else {
		m.play("failure")
		caption := "YOU HAVE BEEN DETECTED"
		if outcome.Reason != "" {
			caption += " - " + outcome.Reason
		}
		m.display(caption, true, true, []string{"Ending playback..."})
	}

	m.deps.Timer.CancelOwner(clock.OwnerFinish)
	m.deps.Timer.ScheduleAfter(m.active.Duration, clock.OwnerFinish, "end screen", func() {
		if m.phase != PhaseEnding {
			return
		}
		m.hidePopup()
		m.popup.Forced = false
		m.endScreen = endScreenFor(outcome.Kind)
		m.phase = PhaseEnded
		slog.Info("Machine: end screen shown", "kind", outcome.Kind)
	})
	return true
}

func endScreenFor(kind models.OutcomeKind) *models.EndScreen {
	if kind == models.OutcomeSuccess {
		return &models.EndScreen{Kind: kind, Title: "Thanks for playing.", Art: thanksArt}
	}
	return &models.EndScreen{Kind: kind, Title: "YOU HAVE BEEN DETECTED"}
}
