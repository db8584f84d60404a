// Package models defines the core data structures for BodyControl.
//
// It includes the vital, suspicion, stage, event and outcome types shared by
// the simulation packages, the host API and the session store.
package models

import (
	"errors"
	"strings"
	"time"
)

// Error variables for invalid references and rejected operations.
var (
	ErrUnknownEventType = errors.New("unknown event type")
	ErrUnknownAction    = errors.New("unknown action")
	ErrUnknownSequence  = errors.New("unknown animation sequence")
	ErrUnknownVital     = errors.New("unknown vital")
	ErrBadNote          = errors.New("bad note")
	ErrSessionNotFound  = errors.New("session not found")
	ErrNotStarted       = errors.New("session has not started")
)

// EventType identifies a scripted encounter.
type EventType string

const (
	// EventBaseline is the calibration recording at the start of play.
	EventBaseline EventType = "baseline"
	// EventRunningWoods is the alternating-step traversal with jump obstacles.
	EventRunningWoods EventType = "runningWoods"
	// EventOrderCoffee is the barista conversation.
	EventOrderCoffee EventType = "orderCoffee"
	// EventFinish is the terminal ending playback.
	EventFinish EventType = "finish"
)

// IsValidEventType checks if the given event type is supported.
func IsValidEventType(t EventType) bool {
	switch t {
	case EventBaseline, EventRunningWoods, EventOrderCoffee, EventFinish:
		return true
	default:
		return false
	}
}

// EventName returns the human readable name shown in the activity panel.
func EventName(t EventType) string {
	switch t {
	case EventBaseline:
		return "Baseline Recording"
	case EventOrderCoffee:
		return "Order Coffee"
	case EventRunningWoods:
		return "Running Through Woods"
	case EventFinish:
		return "Mission Complete"
	default:
		return string(t)
	}
}

// VitalKind names one of the player-maintained vitals.
type VitalKind string

const (
	VitalOxygen    VitalKind = "oxygen"
	VitalHeartRate VitalKind = "heartRate"
	VitalEyes      VitalKind = "eyes"
)

// VitalStatus is the derived classification of a vital.
type VitalStatus string

const (
	StatusOffline  VitalStatus = "offline"
	StatusCritical VitalStatus = "critical"
	StatusLow      VitalStatus = "low"
	StatusNormal   VitalStatus = "normal"
	StatusHigh     VitalStatus = "high"
	StatusDry      VitalStatus = "dry"
)

// Vital is a decaying quantity the player tops up with discrete actions.
type Vital struct {
	Current float64     `json:"current"`
	Min     float64     `json:"min"`
	Max     float64     `json:"max"`
	Rate    float64     `json:"rate"` // decay per second before difficulty scaling
	Enabled bool        `json:"enabled"`
	Status  VitalStatus `json:"status"`
}

// Clamp forces Current into [Min, Max].
func (v *Vital) Clamp() {
	v.Current = ClampFloat(v.Current, v.Min, v.Max)
}

// Percent returns Current as a percentage of Max.
func (v Vital) Percent() float64 {
	if v.Max == 0 {
		return 0
	}
	return v.Current / v.Max * 100
}

// Suspicion is the accumulating detection score.
type Suspicion struct {
	Current   float64 `json:"current"`
	Max       float64 `json:"max"`
	DecayRate float64 `json:"decay_rate"`
}

// AtMax reports whether the meter is full.
func (s Suspicion) AtMax() bool {
	return s.Current >= s.Max
}

// Stage is one entry of the fixed progression schedule.
type Stage struct {
	Type      EventType     `json:"type" yaml:"type"`
	StartTime time.Duration `json:"start_time" yaml:"-"`
	Duration  time.Duration `json:"duration" yaml:"-"`
}

// ActiveEvent describes the encounter currently in progress.
type ActiveEvent struct {
	Type       EventType     `json:"type"`
	Name       string        `json:"name"`
	StartedAt  time.Duration `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	Generation uint64        `json:"generation"`
}

// Age returns how long the event has been running at the given elapsed time.
func (e ActiveEvent) Age(elapsed time.Duration) time.Duration {
	return elapsed - e.StartedAt
}

// Foot is the side of the last running step.
type Foot string

const (
	FootNone  Foot = ""
	FootLeft  Foot = "left"
	FootRight Foot = "right"
)

// ConversationOption is one selectable reply in the coffee conversation.
type ConversationOption struct {
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// ConversationState is the coffee event sub-state.
type ConversationState struct {
	EyeContactLevel     float64              `json:"eye_contact_level"`
	EyeContactTarget    float64              `json:"eye_contact_target"`
	SwallowPromptActive bool                 `json:"swallow_prompt_active"`
	LastSwallowTime     time.Duration        `json:"last_swallow_time"`
	ConversationStep    int                  `json:"conversation_step"`
	WaitingForResponse  bool                 `json:"waiting_for_response"`
	Options             []ConversationOption `json:"options,omitempty"`
	Completed           bool                 `json:"completed"`
}

// DefaultConversationState returns the reset value used between events.
func DefaultConversationState() ConversationState {
	return ConversationState{
		EyeContactLevel:  50,
		EyeContactTarget: 50,
	}
}

// RunningState is the woods event sub-state.
type RunningState struct {
	Distance         float64 `json:"distance"`
	LastStepFoot     Foot    `json:"last_step_foot"`
	StepCount        int     `json:"step_count"`
	JumpPromptActive bool    `json:"jump_prompt_active"`
	Obstacle         string  `json:"obstacle,omitempty"`
	Completed        bool    `json:"completed"`
}

// OutcomeKind distinguishes the two endings.
type OutcomeKind string

const (
	OutcomeSuccess OutcomeKind = "success"
	OutcomeFailure OutcomeKind = "failure"
)

// Outcome is the terminal result of a session. It is set exactly once.
type Outcome struct {
	Kind   OutcomeKind `json:"kind"`
	Reason string      `json:"reason,omitempty"`
}

// Popup is the event display text the presentation layer polls.
type Popup struct {
	Title   string   `json:"title,omitempty"`
	Lines   []string `json:"lines,omitempty"`
	Urgent  bool     `json:"urgent"`
	Visible bool     `json:"visible"`
	Forced  bool     `json:"forced,omitempty"`
}

// EndScreen is the terminal overlay shown after the finish playback.
type EndScreen struct {
	Kind  OutcomeKind `json:"kind"`
	Title string      `json:"title"`
	Art   string      `json:"art,omitempty"`
}

// AlertLevel is the severity of a vital alert.
type AlertLevel string

const (
	AlertInfo    AlertLevel = "info"
	AlertWarning AlertLevel = "warning"
	AlertDanger  AlertLevel = "danger"
)

// Alert is a transient notification raised by the vitals model.
type Alert struct {
	Level   AlertLevel    `json:"level"`
	Message string        `json:"message"`
	At      time.Duration `json:"at"`
}

// SuspicionEntry is one line of the suspicion ledger.
type SuspicionEntry struct {
	At     time.Duration `json:"at"`
	Amount float64       `json:"amount"`
	Reason string        `json:"reason,omitempty"`
	Total  float64       `json:"total"`
}

// ClampFloat bounds v to [lo, hi].
func ClampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Action is a discrete player input forwarded by the input collaborator.
type Action string

const (
	ActionBreathe    Action = "breathe"
	ActionHeartbeat  Action = "heartbeat"
	ActionBlink      Action = "blink"
	ActionEyeContact Action = "eyeContact"
	ActionSwallow    Action = "swallow"
	ActionStepLeft   Action = "stepLeft"
	ActionStepRight  Action = "stepRight"
	ActionJump       Action = "jump"
	ActionOption1    Action = "option1"
	ActionOption2    Action = "option2"
	ActionOption3    Action = "option3"
	ActionOption4    Action = "option4"
)

// AllActions lists every action in binding order.
var AllActions = []Action{
	ActionBreathe, ActionHeartbeat, ActionBlink,
	ActionEyeContact, ActionSwallow,
	ActionStepLeft, ActionStepRight, ActionJump,
	ActionOption1, ActionOption2, ActionOption3, ActionOption4,
}

// ParseAction resolves an action name, ignoring case.
func ParseAction(s string) (Action, error) {
	s = strings.TrimSpace(s)
	for _, a := range AllActions {
		if strings.EqualFold(s, string(a)) {
			return a, nil
		}
	}
	return "", ErrUnknownAction
}

// OptionNumber returns the 1-based option index for option actions, or 0.
func (a Action) OptionNumber() int {
	switch a {
	case ActionOption1:
		return 1
	case ActionOption2:
		return 2
	case ActionOption3:
		return 3
	case ActionOption4:
		return 4
	default:
		return 0
	}
}

// Cue is an audio cue fired on a qualifying transition.
type Cue string

const (
	CueAlert              Cue = "alert"
	CueBreathe            Cue = "breathe"
	CueHeartbeat          Cue = "heartbeat"
	CueBlink              Cue = "blink"
	CueEyeContact         Cue = "eyeContact"
	CueSwallow            Cue = "swallow"
	CueStep               Cue = "step"
	CueJump               Cue = "jump"
	CueConversationOption Cue = "conversationOption"
)

// Cue returns the audio cue fired when the action is handled.
func (a Action) Cue() Cue {
	switch a {
	case ActionBreathe:
		return CueBreathe
	case ActionHeartbeat:
		return CueHeartbeat
	case ActionBlink:
		return CueBlink
	case ActionEyeContact:
		return CueEyeContact
	case ActionSwallow:
		return CueSwallow
	case ActionStepLeft, ActionStepRight:
		return CueStep
	case ActionJump:
		return CueJump
	case ActionOption1, ActionOption2, ActionOption3, ActionOption4:
		return CueConversationOption
	default:
		return ""
	}
}
