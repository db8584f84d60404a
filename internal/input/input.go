// Package input maps physical key codes to player actions.
package input

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/BTreeMap/BodyControl/internal/models"
)

// DefaultRepeatDelay is the minimum gap between two presses of one key.
const DefaultRepeatDelay = 100 * time.Millisecond

// Bindings maps key codes (DOM KeyboardEvent.code names) to actions.
type Bindings map[string]models.Action

// DefaultBindings returns the standard layout.
func DefaultBindings() Bindings {
	return Bindings{
		"KeyB":   models.ActionHeartbeat,
		"KeyH":   models.ActionBreathe,
		"KeyE":   models.ActionBlink,
		"KeyR":   models.ActionEyeContact,
		"KeyS":   models.ActionSwallow,
		"KeyD":   models.ActionStepLeft,
		"KeyF":   models.ActionStepRight,
		"Space":  models.ActionJump,
		"Digit1": models.ActionOption1,
		"Digit2": models.ActionOption2,
		"Digit3": models.ActionOption3,
		"Digit4": models.ActionOption4,
	}
}

// Lookup returns the action bound to code.
func (b Bindings) Lookup(code string) (models.Action, error) {
	a, ok := b[code]
	if !ok {
		return "", fmt.Errorf("key %q: %w", code, models.ErrUnknownAction)
	}
	return a, nil
}

// Keys returns the bound key codes in sorted order.
func (b Bindings) Keys() []string {
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var feedback = map[models.Action]string{
	models.ActionBreathe:    "INHALED",
	models.ActionHeartbeat:  "BEAT",
	models.ActionBlink:      "BLINK",
	models.ActionEyeContact: "EYE CONTACT",
	models.ActionSwallow:    "SWALLOW",
	models.ActionStepLeft:   "STEP LEFT",
	models.ActionStepRight:  "STEP RIGHT",
	models.ActionJump:       "JUMP",
}

// Feedback is the short text flashed after an action.
func Feedback(a models.Action) string {
	if n := a.OptionNumber(); n > 0 {
		return fmt.Sprintf("OPTION %d", n)
	}
	return feedback[a]
}

// Controls is the help panel listing the default layout.
const Controls = `VITAL FUNCTIONS:
  [B] - Heartbeat      [H] - Breathe
  [E] - Blink

EVENT ACTIONS:
  [R] - Eye Contact    [S] - Swallow
  [D] - Step Left      [F] - Step Right
  [SPACE] - Jump
  [1-4] - Conversation Options`

// RepeatGuard drops presses of the same key that arrive too quickly. It is
// safe for concurrent use.
type RepeatGuard struct {
	mu      sync.Mutex
	delay   time.Duration
	last    map[string]time.Time
	pressed map[string]bool
}

// NewRepeatGuard creates a guard. A non-positive delay uses the default.
func NewRepeatGuard(delay time.Duration) *RepeatGuard {
	if delay <= 0 {
		delay = DefaultRepeatDelay
	}
	return &RepeatGuard{
		delay:   delay,
		last:    make(map[string]time.Time),
		pressed: make(map[string]bool),
	}
}

// Allow records a key-down at now and reports whether it should be acted on.
func (g *RepeatGuard) Allow(code string, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if last, ok := g.last[code]; ok && now.Sub(last) < g.delay {
		return false
	}
	g.last[code] = now
	g.pressed[code] = true
	return true
}

// Release records a key-up.
func (g *RepeatGuard) Release(code string) {
	g.mu.Lock()
	delete(g.pressed, code)
	g.mu.Unlock()
}

// Pressed reports whether code is held down.
func (g *RepeatGuard) Pressed(code string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pressed[code]
}

// Handler resolves key-downs to actions through bindings and a repeat guard.
type Handler struct {
	bindings Bindings
	guard    *RepeatGuard
}

// NewHandler creates a handler. Nil bindings use the defaults.
func NewHandler(b Bindings, guard *RepeatGuard) *Handler {
	if b == nil {
		b = DefaultBindings()
	}
	if guard == nil {
		guard = NewRepeatGuard(DefaultRepeatDelay)
	}
	return &Handler{bindings: b, guard: guard}
}

// KeyDown returns the action for code. ok is false for unbound keys and for
// repeats inside the guard window.
func (h *Handler) KeyDown(code string, now time.Time) (models.Action, bool) {
	a, err := h.bindings.Lookup(code)
	if err != nil {
		slog.Debug("Handler.KeyDown: unbound key", "code", code)
		return "", false
	}
	if !h.guard.Allow(code, now) {
		slog.Debug("Handler.KeyDown: repeat dropped", "code", code)
		return "", false
	}
	return a, true
}

// KeyUp releases code.
func (h *Handler) KeyUp(code string) {
	h.guard.Release(code)
}

// Bindings returns the handler's bindings.
func (h *Handler) Bindings() Bindings { return h.bindings }
