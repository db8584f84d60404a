// Package config holds the simulation tuning: stage schedule, vital rates,
// suspicion penalties and prompt windows. Defaults reproduce the reference
// game; a YAML file may override any subset of them.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/BTreeMap/BodyControl/internal/models"
)

// Millis is a duration expressed in whole milliseconds in the tuning file.
type Millis int64

// Duration converts m to a time.Duration.
func (m Millis) Duration() time.Duration {
	return time.Duration(m) * time.Millisecond
}

// Config is the full tuning document.
type Config struct {
	Version    int              `yaml:"version"`
	Vitals     VitalsConfig     `yaml:"vitals"`
	Suspicion  SuspicionConfig  `yaml:"suspicion"`
	Difficulty DifficultyConfig `yaml:"difficulty"`
	Alerts     AlertsConfig     `yaml:"alerts"`
	Unlocks    UnlocksConfig    `yaml:"unlocks"`
	Stages     []StageConfig    `yaml:"stages"`
	Coffee     CoffeeConfig     `yaml:"coffee"`
	Woods      WoodsConfig      `yaml:"woods"`
	Finish     FinishConfig     `yaml:"finish"`
}

type VitalConfig struct {
	Seed    float64 `yaml:"seed"`
	Max     float64 `yaml:"max"`
	Rate    float64 `yaml:"rate"`
	Enabled bool    `yaml:"enabled"`
}

type VitalsConfig struct {
	Oxygen    VitalConfig `yaml:"oxygen"`
	HeartRate VitalConfig `yaml:"heart_rate"`
	Eyes      VitalConfig `yaml:"eyes"`

	BreatheBoost          float64 `yaml:"breathe_boost"`
	HeartbeatBoost        float64 `yaml:"heartbeat_boost"`
	HyperventilateAbove   float64 `yaml:"hyperventilate_above"`
	HyperventilatePenalty float64 `yaml:"hyperventilate_penalty"`
	BlinkFlash            Millis  `yaml:"blink_flash_ms"`

	// Extra drain per second while running.
	ExertionOxygenRate float64 `yaml:"exertion_oxygen_rate"`
	ExertionHeartRate  float64 `yaml:"exertion_heart_rate"`
}

type SuspicionConfig struct {
	Max       float64 `yaml:"max"`
	DecayRate float64 `yaml:"decay_rate"`
}

type DifficultyConfig struct {
	Ramp   Millis  `yaml:"ramp_ms"`
	Factor float64 `yaml:"factor"`
}

type AlertsConfig struct {
	Cooldown Millis `yaml:"cooldown_ms"`
	Lifetime Millis `yaml:"lifetime_ms"`
}

type UnlocksConfig struct {
	Breathing Millis `yaml:"breathing_ms"`
	Blinking  Millis `yaml:"blinking_ms"`
}

type StageConfig struct {
	Type     models.EventType `yaml:"type"`
	Start    Millis           `yaml:"start_ms"`
	Duration Millis           `yaml:"duration_ms"`
}

type CoffeeConfig struct {
	EyeContactReminder Millis  `yaml:"eye_contact_reminder_ms"`
	SwallowPrompt      Millis  `yaml:"swallow_prompt_ms"`
	Conversation       Millis  `yaml:"conversation_ms"`
	SwallowWindow      Millis  `yaml:"swallow_window_ms"`
	SwallowPenalty     float64 `yaml:"swallow_penalty"`
	TargetBase         float64 `yaml:"target_base"`
	TargetSpan         float64 `yaml:"target_span"`
	EyeContactSlack    float64 `yaml:"eye_contact_slack"`
	EyeContactPenalty  float64 `yaml:"eye_contact_penalty"` // per second
	WrongAnswerPenalty float64 `yaml:"wrong_answer_penalty"`
	WrongAnswerDelay   Millis  `yaml:"wrong_answer_delay_ms"`
	RightAnswerDelay   Millis  `yaml:"right_answer_delay_ms"`
}

type WoodsConfig struct {
	StepDistance     float64  `yaml:"step_distance"`
	StumbleDistance  float64  `yaml:"stumble_distance"`
	StumblePenalty   float64  `yaml:"stumble_penalty"`
	JumpIntervalMin  Millis   `yaml:"jump_interval_min_ms"`
	JumpIntervalSpan Millis   `yaml:"jump_interval_span_ms"`
	JumpWindow       Millis   `yaml:"jump_window_ms"`
	JumpPenalty      float64  `yaml:"jump_penalty"`
	JumpDistanceLoss float64  `yaml:"jump_distance_loss"`
	CompletionGrace  Millis   `yaml:"completion_grace_ms"`
	Obstacles        []string `yaml:"obstacles"`
}

type FinishConfig struct {
	Duration Millis `yaml:"duration_ms"`
}

// Default returns the reference tuning.
func Default() *Config {
	return &Config{
		Version: 1,
		Vitals: VitalsConfig{
			Oxygen:                VitalConfig{Seed: 50, Max: 100, Rate: 3},
			HeartRate:             VitalConfig{Seed: 50, Max: 100, Rate: 30, Enabled: true},
			Eyes:                  VitalConfig{Seed: 100, Max: 100, Rate: 3},
			BreatheBoost:          15,
			HeartbeatBoost:        30,
			HyperventilateAbove:   90,
			HyperventilatePenalty: 3,
			BlinkFlash:            300,
			ExertionOxygenRate:    0.8,
			ExertionHeartRate:     3,
		},
		Suspicion:  SuspicionConfig{Max: 100, DecayRate: 0.8},
		Difficulty: DifficultyConfig{Ramp: 120000, Factor: 0.5},
		Alerts:     AlertsConfig{Cooldown: 2000, Lifetime: 2000},
		Unlocks:    UnlocksConfig{Breathing: 20000, Blinking: 30000},
		Stages: []StageConfig{
			{Type: models.EventBaseline, Start: 30000, Duration: 20000},
			{Type: models.EventRunningWoods, Start: 50000, Duration: 45000},
			{Type: models.EventOrderCoffee, Start: 100000, Duration: 30000},
			{Type: models.EventRunningWoods, Start: 132000, Duration: 45000},
			{Type: models.EventFinish, Start: 179000, Duration: 8000},
		},
		Coffee: CoffeeConfig{
			EyeContactReminder: 3000,
			SwallowPrompt:      8000,
			Conversation:       12000,
			SwallowWindow:      3000,
			SwallowPenalty:     8,
			TargetBase:         40,
			TargetSpan:         20,
			EyeContactSlack:    15,
			EyeContactPenalty:  0.5,
			WrongAnswerPenalty: 15,
			WrongAnswerDelay:   3000,
			RightAnswerDelay:   400,
		},
		Woods: WoodsConfig{
			StepDistance:     2.5,
			StumbleDistance:  5,
			StumblePenalty:   4,
			JumpIntervalMin:  5000,
			JumpIntervalSpan: 8000,
			JumpWindow:       2000,
			JumpPenalty:      10,
			JumpDistanceLoss: 10,
			CompletionGrace:  2000,
			Obstacles:        []string{"LOG AHEAD", "ROCK OBSTACLE", "FALLEN TREE", "DEEP PUDDLE"},
		},
		Finish: FinishConfig{Duration: 8000},
	}
}

// Load reads a tuning file on top of the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	return cfg, nil
}

// Validate checks the tuning for values the simulation cannot run with.
func (c *Config) Validate() error {
	if c.Version != 1 {
		return fmt.Errorf("unsupported version: %d", c.Version)
	}
	for name, v := range map[string]VitalConfig{
		"oxygen":     c.Vitals.Oxygen,
		"heart_rate": c.Vitals.HeartRate,
		"eyes":       c.Vitals.Eyes,
	} {
		if v.Max <= 0 {
			return fmt.Errorf("vital %s max must be positive", name)
		}
		if v.Seed < 0 || v.Seed > v.Max {
			return fmt.Errorf("vital %s seed %.1f outside [0, %.1f]", name, v.Seed, v.Max)
		}
		if v.Rate < 0 {
			return fmt.Errorf("vital %s rate must not be negative", name)
		}
	}
	if c.Suspicion.Max <= 0 {
		return fmt.Errorf("suspicion max must be positive")
	}
	if c.Suspicion.DecayRate < 0 {
		return fmt.Errorf("suspicion decay rate must not be negative")
	}
	if c.Difficulty.Ramp <= 0 {
		return fmt.Errorf("difficulty ramp must be positive")
	}

	if len(c.Stages) == 0 {
		return fmt.Errorf("at least one stage is required")
	}
	var prev Millis = -1
	for i, st := range c.Stages {
		if !models.IsValidEventType(st.Type) {
			return fmt.Errorf("stage %d: %w: %q", i, models.ErrUnknownEventType, st.Type)
		}
		if st.Start < 0 || st.Duration <= 0 {
			return fmt.Errorf("stage %d has invalid timing", i)
		}
		if st.Start < prev {
			return fmt.Errorf("stage %d starts before stage %d", i, i-1)
		}
		if st.Type == models.EventFinish && i != len(c.Stages)-1 {
			return fmt.Errorf("finish stage must be last")
		}
		prev = st.Start
	}

	if c.Woods.JumpIntervalMin <= 0 {
		return fmt.Errorf("woods jump interval must be positive")
	}
	if len(c.Woods.Obstacles) == 0 {
		return fmt.Errorf("at least one obstacle is required")
	}
	for i, o := range c.Woods.Obstacles {
		if strings.TrimSpace(o) == "" {
			return fmt.Errorf("obstacle %d is empty", i)
		}
	}
	if c.Finish.Duration <= 0 {
		return fmt.Errorf("finish duration must be positive")
	}
	return nil
}

// Schedule converts the stage list into the progression schedule.
func (c *Config) Schedule() []models.Stage {
	stages := make([]models.Stage, 0, len(c.Stages))
	for _, st := range c.Stages {
		stages = append(stages, models.Stage{
			Type:      st.Type,
			StartTime: st.Start.Duration(),
			Duration:  st.Duration.Duration(),
		})
	}
	return stages
}
