package media

import (
	"log/slog"
	"time"

	"github.com/BTreeMap/BodyControl/internal/models"
)

// DefaultAlertLifetime is how long an alert stays on the board.
const DefaultAlertLifetime = 2000 * time.Millisecond

// Board holds recent alerts and panel visibility for the display.
type Board struct {
	lifetime time.Duration
	alerts   []models.Alert
	faded    bool
}

// NewBoard creates a board. A non-positive lifetime uses the default.
func NewBoard(lifetime time.Duration) *Board {
	if lifetime <= 0 {
		lifetime = DefaultAlertLifetime
	}
	return &Board{lifetime: lifetime}
}

// Post adds an alert.
func (b *Board) Post(a models.Alert) {
	b.alerts = append(b.alerts, a)
	slog.Debug("Board.Post", "level", a.Level, "message", a.Message, "at", a.At)
}

// Active returns the alerts still visible at the given play time and forgets
// the expired ones.
func (b *Board) Active(at time.Duration) []models.Alert {
	kept := b.alerts[:0]
	for _, a := range b.alerts {
		if at-a.At < b.lifetime {
			kept = append(kept, a)
		}
	}
	b.alerts = kept
	if len(kept) == 0 {
		return nil
	}
	out := make([]models.Alert, len(kept))
	copy(out, kept)
	return out
}

// FadeOutPanels hides the vitals panels for the ending.
func (b *Board) FadeOutPanels() {
	b.faded = true
	slog.Debug("Board.FadeOutPanels")
}

func (b *Board) PanelsFaded() bool { return b.faded }

// Reset clears alerts and restores the panels.
func (b *Board) Reset() {
	b.alerts = nil
	b.faded = false
}
