// Package vitals implements the decaying body systems the player maintains and
// the suspicion meter that ends the session when it fills.
package vitals

import (
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/BTreeMap/BodyControl/internal/clock"
	"github.com/BTreeMap/BodyControl/internal/config"
	"github.com/BTreeMap/BodyControl/internal/models"
)

// Alerter receives transient vital notifications.
type Alerter interface {
	Alert(level models.AlertLevel, message string)
}

// Audio receives fire-and-forget cues.
type Audio interface {
	Play(cue models.Cue)
}

type nopAlerter struct{}

func (nopAlerter) Alert(models.AlertLevel, string) {}

type nopAudio struct{}

func (nopAudio) Play(models.Cue) {}

// Option configures a Model.
type Option func(*Model)

// WithAlerter routes alerts to a.
func WithAlerter(a Alerter) Option {
	return func(m *Model) {
		if a != nil {
			m.alerter = a
		}
	}
}

// WithAudio routes unlock cues to a.
func WithAudio(a Audio) Option {
	return func(m *Model) {
		if a != nil {
			m.audio = a
		}
	}
}

// extreme describes one cooldown-gated alert condition.
type extreme struct {
	key     string
	kind    models.VitalKind
	check   func(v models.Vital) bool
	level   models.AlertLevel
	message string
	penalty float64
	reason  string
}

// Alert conditions in evaluation order. Within a vital only the first
// matching condition fires per update.
var extremes = []extreme{
	{"oxygen", models.VitalOxygen, func(v models.Vital) bool { return v.Current <= 5 }, models.AlertDanger,
		"You're turning blue! Press [H] to BREATHE!", 3, "Oxygen critically low"},
	{"hyperventilating", models.VitalOxygen, func(v models.Vital) bool { return v.Current >= 90 }, models.AlertWarning,
		"You're gasping! Stop pressing [H] - hyperventilating!", 2, "Hyperventilating"},
	{"heartLow", models.VitalHeartRate, func(v models.Vital) bool { return v.Current <= 5 }, models.AlertDanger,
		"Heart rate critical! Press [B] to BEAT!", 3, "Heart rate too low"},
	{"heartHigh", models.VitalHeartRate, func(v models.Vital) bool { return v.Current >= 95 }, models.AlertWarning,
		"Heart racing! Stop pressing [B] so much!", 2, "Heart rate too high"},
	{"eyes", models.VitalEyes, func(v models.Vital) bool { return v.Current <= 10 }, models.AlertWarning,
		"Eyes extremely dry! Press [E] to BLINK!", 2, "Eyes too dry"},
}

var unlockMessages = map[models.VitalKind]string{
	models.VitalOxygen:    "RESPIRATORY SYSTEM ONLINE - Press [H] to breathe!",
	models.VitalHeartRate: "CARDIAC SYSTEM ONLINE - Press [B] to beat!",
	models.VitalEyes:      "OCULAR SYSTEM ONLINE - Press [E] to blink!",
}

// Model owns the three vitals and the suspicion meter.
type Model struct {
	cfg        config.VitalsConfig
	difficulty config.DifficultyConfig
	cooldown   time.Duration

	vitals    map[models.VitalKind]*models.Vital
	suspicion models.Suspicion
	ledger    []models.SuspicionEntry
	maxHit    bool
	frozen    bool

	exertion  bool
	blinking  bool
	blinkID   string
	elapsed   time.Duration
	lastAlert map[string]time.Duration

	timer   *clock.VirtualTimer
	alerter Alerter
	audio   Audio
}

// New creates a Model seeded from cfg. Vitals start disabled unless the tuning
// enables them; heart rate is enabled in the default tuning.
func New(cfg *config.Config, timer *clock.VirtualTimer, opts ...Option) *Model {
	m := &Model{
		cfg:        cfg.Vitals,
		difficulty: cfg.Difficulty,
		cooldown:   cfg.Alerts.Cooldown.Duration(),
		vitals: map[models.VitalKind]*models.Vital{
			models.VitalOxygen:    newVital(cfg.Vitals.Oxygen),
			models.VitalHeartRate: newVital(cfg.Vitals.HeartRate),
			models.VitalEyes:      newVital(cfg.Vitals.Eyes),
		},
		suspicion: models.Suspicion{Max: cfg.Suspicion.Max, DecayRate: cfg.Suspicion.DecayRate},
		lastAlert: make(map[string]time.Duration),
		timer:     timer,
		alerter:   nopAlerter{},
		audio:     nopAudio{},
	}
	for _, opt := range opts {
		opt(m)
	}
	m.refreshStatuses()
	return m
}

func newVital(c config.VitalConfig) *models.Vital {
	return &models.Vital{
		Current: c.Seed,
		Min:     0,
		Max:     c.Max,
		Rate:    c.Rate,
		Enabled: c.Enabled,
	}
}

// Difficulty returns the decay multiplier at elapsed play time. It grows
// without bound.
func (m *Model) Difficulty(elapsed time.Duration) float64 {
	if elapsed < 0 {
		elapsed = 0
	}
	return 1 + float64(elapsed)/float64(m.difficulty.Ramp.Duration())*m.difficulty.Factor
}

// Update decays enabled vitals and suspicion by dt, refreshes statuses and
// raises extreme-value alerts.
func (m *Model) Update(dt, elapsed time.Duration) {
	if m.frozen {
		return
	}
	if dt < 0 {
		dt = 0
	}
	m.elapsed = elapsed
	secs := dt.Seconds()
	diff := m.Difficulty(elapsed)

	for _, v := range m.vitals {
		if !v.Enabled {
			continue
		}
		v.Current -= v.Rate * secs * diff
	}
	if m.exertion {
		if o := m.vitals[models.VitalOxygen]; o.Enabled {
			o.Current -= m.cfg.ExertionOxygenRate * secs * diff
		}
		if h := m.vitals[models.VitalHeartRate]; h.Enabled {
			h.Current -= m.cfg.ExertionHeartRate * secs * diff
		}
	}
	for _, v := range m.vitals {
		v.Clamp()
	}
	m.refreshStatuses()

	m.suspicion.Current = models.ClampFloat(m.suspicion.Current-m.suspicion.DecayRate*secs, 0, m.suspicion.Max)

	m.checkExtremes()
}

func (m *Model) refreshStatuses() {
	for kind, v := range m.vitals {
		v.Status = classify(kind, *v)
	}
}

func classify(kind models.VitalKind, v models.Vital) models.VitalStatus {
	if !v.Enabled {
		return models.StatusOffline
	}
	switch kind {
	case models.VitalOxygen:
		switch {
		case v.Current < 20:
			return models.StatusCritical
		case v.Current < 40:
			return models.StatusLow
		case v.Current > 80:
			return models.StatusHigh
		}
	case models.VitalHeartRate:
		switch {
		case v.Current < 20:
			return models.StatusLow
		case v.Current > 80:
			return models.StatusHigh
		}
	case models.VitalEyes:
		if v.Current < 30 {
			return models.StatusDry
		}
	}
	return models.StatusNormal
}

func (m *Model) checkExtremes() {
	fired := make(map[models.VitalKind]bool)
	for _, x := range extremes {
		v := m.vitals[x.kind]
		if !v.Enabled || fired[x.kind] || !x.check(*v) {
			continue
		}
		fired[x.kind] = true
		if last, seen := m.lastAlert[x.key]; seen && m.elapsed-last <= m.cooldown {
			continue
		}
		m.lastAlert[x.key] = m.elapsed
		slog.Debug("Model.checkExtremes: vital out of range", "condition", x.key, "value", v.Current)
		m.alerter.Alert(x.level, x.message)
		m.AddSuspicion(x.penalty, x.reason)
	}
}

// SetExertion toggles the extra running drain on oxygen and heart rate.
func (m *Model) SetExertion(on bool) {
	m.exertion = on
}

// Enable unlocks a vital, reseeding it from the tuning. It reports false when
// the vital was already enabled.
func (m *Model) Enable(kind models.VitalKind) bool {
	v, ok := m.vitals[kind]
	if !ok {
		slog.Warn("Model.Enable: unknown vital", "kind", kind)
		return false
	}
	if v.Enabled {
		return false
	}
	v.Enabled = true
	v.Current = m.seedFor(kind)
	v.Clamp()
	v.Status = classify(kind, *v)
	slog.Info("Model.Enable: vital system online", "kind", kind, "elapsed", m.elapsed)
	m.alerter.Alert(models.AlertInfo, unlockMessages[kind])
	m.audio.Play(models.CueAlert)
	return true
}

func (m *Model) seedFor(kind models.VitalKind) float64 {
	switch kind {
	case models.VitalOxygen:
		return m.cfg.Oxygen.Seed
	case models.VitalHeartRate:
		return m.cfg.HeartRate.Seed
	default:
		return m.cfg.Eyes.Seed
	}
}

// ApplyAction performs the discrete top-up for a vital.
func (m *Model) ApplyAction(kind models.VitalKind) (bool, error) {
	switch kind {
	case models.VitalOxygen:
		return m.Breathe(), nil
	case models.VitalHeartRate:
		return m.Heartbeat(), nil
	case models.VitalEyes:
		return m.Blink(), nil
	default:
		return false, models.ErrUnknownVital
	}
}

// Breathe raises oxygen. Breathing past the hyperventilation line costs suspicion.
func (m *Model) Breathe() bool {
	o := m.vitals[models.VitalOxygen]
	if m.frozen || !o.Enabled {
		return false
	}
	o.Current = math.Min(o.Max, o.Current+m.cfg.BreatheBoost)
	o.Status = classify(models.VitalOxygen, *o)
	if o.Current > m.cfg.HyperventilateAbove {
		m.AddSuspicion(m.cfg.HyperventilatePenalty, "Hyperventilating")
	}
	return true
}

// Heartbeat raises heart rate.
func (m *Model) Heartbeat() bool {
	h := m.vitals[models.VitalHeartRate]
	if m.frozen || !h.Enabled {
		return false
	}
	h.Current = math.Min(h.Max, h.Current+m.cfg.HeartbeatBoost)
	h.Status = classify(models.VitalHeartRate, *h)
	return true
}

// Blink restores eye moisture and raises the blinking flag briefly.
func (m *Model) Blink() bool {
	e := m.vitals[models.VitalEyes]
	if m.frozen || !e.Enabled {
		return false
	}
	e.Current = e.Max
	e.Status = classify(models.VitalEyes, *e)
	m.blinking = true
	if m.blinkID != "" {
		m.timer.Cancel(m.blinkID)
	}
	m.blinkID = m.timer.ScheduleAfter(m.cfg.BlinkFlash.Duration(), clock.OwnerVitals, "blink flash", func() {
		m.blinking = false
		m.blinkID = ""
	})
	return true
}

// AddSuspicion raises (or, for negative amounts, lowers) the meter and
// records the change. It returns true only the first time the meter reaches
// its maximum.
func (m *Model) AddSuspicion(amount float64, reason string) bool {
	if m.frozen {
		return false
	}
	m.suspicion.Current = models.ClampFloat(m.suspicion.Current+amount, 0, m.suspicion.Max)
	m.record(amount, reason)
	if reason != "" {
		slog.Debug("Model.AddSuspicion", "amount", amount, "reason", reason, "total", m.suspicion.Current)
	}
	if m.suspicion.AtMax() && !m.maxHit {
		m.maxHit = true
		slog.Info("Model.AddSuspicion: suspicion reached maximum", "reason", reason)
		return true
	}
	return false
}

// record appends a ledger entry. Continuous penalties arrive every frame, so
// repeats of the same reason within a second fold into the previous entry.
func (m *Model) record(amount float64, reason string) {
	if n := len(m.ledger); n > 0 && reason != "" {
		last := &m.ledger[n-1]
		if last.Reason == reason && m.elapsed-last.At < time.Second {
			last.Amount += amount
			last.Total = m.suspicion.Current
			return
		}
	}
	m.ledger = append(m.ledger, models.SuspicionEntry{
		At:     m.elapsed,
		Amount: amount,
		Reason: reason,
		Total:  m.suspicion.Current,
	})
}

// Freeze stops all further decay, actions and suspicion changes.
func (m *Model) Freeze() {
	m.frozen = true
	m.exertion = false
}

// MaxReached reports whether the meter has ever hit its maximum. It stays
// true after decay pulls the meter back down.
func (m *Model) MaxReached() bool { return m.maxHit }

// Frozen reports whether Freeze has been called.
func (m *Model) Frozen() bool { return m.frozen }

// SetElapsed records the play time used for ledger entries and cooldowns
// between updates.
func (m *Model) SetElapsed(elapsed time.Duration) { m.elapsed = elapsed }

func (m *Model) Oxygen() models.Vital    { return *m.vitals[models.VitalOxygen] }
func (m *Model) HeartRate() models.Vital { return *m.vitals[models.VitalHeartRate] }
func (m *Model) Eyes() models.Vital      { return *m.vitals[models.VitalEyes] }

// Vital returns a copy of the named vital.
func (m *Model) Vital(kind models.VitalKind) (models.Vital, error) {
	v, ok := m.vitals[kind]
	if !ok {
		return models.Vital{}, models.ErrUnknownVital
	}
	return *v, nil
}

func (m *Model) Suspicion() models.Suspicion { return m.suspicion }
func (m *Model) Blinking() bool              { return m.blinking }
func (m *Model) Exertion() bool              { return m.exertion }

// Ledger returns a copy of every suspicion change so far.
func (m *Model) Ledger() []models.SuspicionEntry {
	out := make([]models.SuspicionEntry, len(m.ledger))
	copy(out, m.ledger)
	return out
}

func (m *Model) OxygenPercent() float64    { return m.vitals[models.VitalOxygen].Percent() }
func (m *Model) HeartRatePercent() float64 { return m.vitals[models.VitalHeartRate].Percent() }
func (m *Model) EyesPercent() float64      { return m.vitals[models.VitalEyes].Percent() }

// HeartRateDisplay returns heart rate rounded for display.
func (m *Model) HeartRateDisplay() int {
	return int(math.Round(m.vitals[models.VitalHeartRate].Current))
}

// SuspicionPercent returns the meter as a percentage of its maximum.
func (m *Model) SuspicionPercent() float64 {
	if m.suspicion.Max == 0 {
		return 0
	}
	return m.suspicion.Current / m.suspicion.Max * 100
}

// MissionStatus summarises how close the player is to being detected.
func (m *Model) MissionStatus() string {
	switch {
	case m.suspicion.Current > 50:
		return "COMPROMISED - REDUCE SUSPICION"
	case m.suspicion.Current > 25:
		return "CAUTION - BEING WATCHED"
	default:
		return "ACTIVE - MAINTAIN COVER"
	}
}

// SystemAlerts lists the monitoring lines shown in the status panel.
func (m *Model) SystemAlerts() []string {
	var alerts []string
	o, h, e := m.Oxygen(), m.HeartRate(), m.Eyes()
	if o.Status == models.StatusNormal {
		alerts = append(alerts, "Respiratory monitoring: ON")
	}
	if h.Status == models.StatusNormal {
		alerts = append(alerts, "Cardiac regulation: ON")
	}
	if e.Status == models.StatusNormal {
		alerts = append(alerts, "Ocular maintenance: ON")
	}
	if o.Status != models.StatusNormal {
		alerts = append(alerts, "OXYGEN "+strings.ToUpper(string(o.Status)))
	}
	if h.Status != models.StatusNormal {
		alerts = append(alerts, "CARDIAC IRREGULARITY")
	}
	if e.Status != models.StatusNormal {
		alerts = append(alerts, "OCULAR DRYNESS DETECTED")
	}
	return alerts
}

// Snapshot returns the read-only view used by presentation layers.
func (m *Model) Snapshot() models.VitalsSnapshot {
	return models.VitalsSnapshot{
		Oxygen:           m.Oxygen(),
		HeartRate:        m.HeartRate(),
		Eyes:             m.Eyes(),
		Suspicion:        m.suspicion,
		OxygenPercent:    m.OxygenPercent(),
		HeartPercent:     m.HeartRatePercent(),
		EyesPercent:      m.EyesPercent(),
		SuspicionPercent: m.SuspicionPercent(),
		Difficulty:       m.Difficulty(m.elapsed),
		Blinking:         m.blinking,
		MissionStatus:    m.MissionStatus(),
		SystemAlerts:     m.SystemAlerts(),
	}
}
