package models

import "time"

// Lifecycle is the coarse state of a session.
type Lifecycle string

const (
	LifecycleInit    Lifecycle = "init"
	LifecycleRunning Lifecycle = "running"
	LifecycleEnded   Lifecycle = "ended"
)

// VitalsSnapshot is the read-only view of the vitals panel.
type VitalsSnapshot struct {
	Oxygen           Vital     `json:"oxygen"`
	HeartRate        Vital     `json:"heart_rate"`
	Eyes             Vital     `json:"eyes"`
	Suspicion        Suspicion `json:"suspicion"`
	OxygenPercent    float64   `json:"oxygen_percent"`
	HeartPercent     float64   `json:"heart_percent"`
	EyesPercent      float64   `json:"eyes_percent"`
	SuspicionPercent float64   `json:"suspicion_percent"`
	Difficulty       float64   `json:"difficulty"`
	Blinking         bool      `json:"blinking"`
	MissionStatus    string    `json:"mission_status"`
	SystemAlerts     []string  `json:"system_alerts"`
}

// EventSnapshot is the read-only view of the event machine.
type EventSnapshot struct {
	Phase        string             `json:"phase"`
	Active       *ActiveEvent       `json:"active,omitempty"`
	Activity     string             `json:"activity"`
	Stage        int                `json:"stage"`
	Conversation *ConversationState `json:"conversation,omitempty"`
	Running      *RunningState      `json:"running,omitempty"`
	Popup        Popup              `json:"popup"`
	EndScreen    *EndScreen         `json:"end_screen,omitempty"`
	PanelsFaded  bool               `json:"panels_faded"`
}

// SessionSnapshot is everything a presentation layer needs for one frame.
type SessionSnapshot struct {
	ID        string         `json:"id"`
	Lifecycle Lifecycle      `json:"lifecycle"`
	Elapsed   time.Duration  `json:"elapsed"`
	Vitals    VitalsSnapshot `json:"vitals"`
	Event     EventSnapshot  `json:"event"`
	Sequence  string         `json:"sequence"`
	Alerts    []Alert        `json:"alerts,omitempty"`
	Outcome   *Outcome       `json:"outcome,omitempty"`
}

// SessionRecord is the persisted summary of a finished session.
type SessionRecord struct {
	ID              string           `json:"id"`
	Seed            uint64           `json:"seed"`
	StartedAt       time.Time        `json:"started_at"`
	EndedAt         time.Time        `json:"ended_at"`
	PlayTime        time.Duration    `json:"play_time"`
	Outcome         Outcome          `json:"outcome"`
	FinalSuspicion  float64          `json:"final_suspicion"`
	StagesCompleted int              `json:"stages_completed"`
	StepCount       int              `json:"step_count"`
	Ledger          []SuspicionEntry `json:"ledger,omitempty"`
}
