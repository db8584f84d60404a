package media

import (
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BTreeMap/BodyControl/internal/models"
)

// Wave is an oscillator shape.
type Wave string

const (
	WaveSine     Wave = "sine"
	WaveSquare   Wave = "square"
	WaveTriangle Wave = "triangle"
	WaveSawtooth Wave = "sawtooth"
)

// Tone describes how a cue sounds. A non-zero SweepTo glides the pitch.
type Tone struct {
	Frequency float64       `json:"frequency"`
	SweepTo   float64       `json:"sweep_to,omitempty"`
	Duration  time.Duration `json:"duration"`
	Volume    float64       `json:"volume"`
	Wave      Wave          `json:"wave"`
}

var tones = map[models.Cue][]Tone{
	models.CueHeartbeat: {
		{Frequency: 80, Duration: 100 * time.Millisecond, Volume: 0.15, Wave: WaveSine},
		{Frequency: 100, Duration: 80 * time.Millisecond, Volume: 0.12, Wave: WaveSine},
	},
	models.CueBreathe:    {{Frequency: 150, SweepTo: 300, Duration: 300 * time.Millisecond, Volume: 0.08, Wave: WaveSawtooth}},
	models.CueBlink:      {{Frequency: 800, Duration: 50 * time.Millisecond, Volume: 0.1, Wave: WaveSquare}},
	models.CueEyeContact: {{Frequency: 600, Duration: 100 * time.Millisecond, Volume: 0.08, Wave: WaveSine}},
	models.CueSwallow:    {{Frequency: 400, SweepTo: 200, Duration: 150 * time.Millisecond, Volume: 0.12, Wave: WaveTriangle}},
	models.CueStep:       {{Frequency: 120, Duration: 80 * time.Millisecond, Volume: 0.1, Wave: WaveSquare}},
	models.CueJump:       {{Frequency: 200, SweepTo: 600, Duration: 200 * time.Millisecond, Volume: 0.1, Wave: WaveSquare}},
	models.CueAlert: {
		{Frequency: 1000, Duration: 100 * time.Millisecond, Volume: 0.15, Wave: WaveSquare},
		{Frequency: 1200, Duration: 100 * time.Millisecond, Volume: 0.15, Wave: WaveSquare},
	},
	models.CueConversationOption: {{Frequency: 400, Duration: 100 * time.Millisecond, Volume: 0.08, Wave: WaveTriangle}},
}

// TonesFor returns the tones a cue is rendered with.
func TonesFor(cue models.Cue) ([]Tone, bool) {
	t, ok := tones[cue]
	if !ok {
		return nil, false
	}
	out := make([]Tone, len(t))
	copy(out, t)
	return out, true
}

// CueBus records played cues so a frontend can pick them up. It is safe for
// concurrent use.
type CueBus struct {
	mu      sync.Mutex
	pending []models.Cue
	counts  map[models.Cue]int
	muted   bool
}

// NewCueBus creates an empty bus.
func NewCueBus() *CueBus {
	return &CueBus{counts: make(map[models.Cue]int)}
}

// Play queues a cue. Unknown cues are logged and dropped.
func (b *CueBus) Play(cue models.Cue) {
	if _, ok := tones[cue]; !ok {
		slog.Warn("CueBus.Play: unknown cue", "cue", cue)
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.counts[cue]++
	if b.muted {
		return
	}
	b.pending = append(b.pending, cue)
}

// SetMuted stops cues from being queued. Counts are still kept.
func (b *CueBus) SetMuted(muted bool) {
	b.mu.Lock()
	b.muted = muted
	b.mu.Unlock()
}

// Drain returns and clears the queued cues.
func (b *CueBus) Drain() []models.Cue {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.pending
	b.pending = nil
	return out
}

// Count reports how many times a cue was played.
func (b *CueBus) Count(cue models.Cue) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts[cue]
}

var noteRe = regexp.MustCompile(`^([A-Ga-g])([#b]?)(\d)$`)

var noteBase = map[byte]int{'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11}

var noteNames = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Note is a pitch such as "A3", "C#4" or "Bb3".
type Note struct {
	Letter     byte
	Accidental string
	Octave     int
}

// ParseNote parses a note name. Malformed names fail with ErrBadNote.
func ParseNote(s string) (Note, error) {
	m := noteRe.FindStringSubmatch(s)
	if m == nil {
		return Note{}, fmt.Errorf("parse note %q: %w", s, models.ErrBadNote)
	}
	return Note{Letter: strings.ToUpper(m[1])[0], Accidental: m[2], Octave: int(m[3][0] - '0')}, nil
}

// Midi returns the MIDI number, with C4 = 60.
func (n Note) Midi() int {
	semis := noteBase[n.Letter]
	switch n.Accidental {
	case "#":
		semis++
	case "b":
		semis--
	}
	return semis + (n.Octave+1)*12
}

// Frequency returns the pitch in Hz with A4 = 440.
func (n Note) Frequency() float64 {
	return 440 * math.Pow(2, float64(n.Midi()-69)/12)
}

func (n Note) String() string {
	return string(n.Letter) + n.Accidental + strconv.Itoa(n.Octave)
}

// NoteName spells a MIDI number using sharps.
func NoteName(midi int) string {
	return noteNames[(midi+1200)%12] + strconv.Itoa(int(math.Floor(float64(midi)/12))-1)
}

// Transpose shifts a note name by semitones.
func Transpose(note string, semitones int) (string, error) {
	n, err := ParseNote(note)
	if err != nil {
		return "", err
	}
	return NoteName(n.Midi() + semitones), nil
}
