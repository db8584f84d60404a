// Package media provides the default presentation collaborators: an ASCII
// animation catalog, an audio cue bus and an alert board.
package media

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/BTreeMap/BodyControl/internal/models"
)

const (
	frameWidth  = 60
	frameHeight = 25
)

// asciiRamp runs from darkest to lightest.
var asciiRamp = []byte{'@', '#', 'S', '%', '?', '*', '+', ';', ':', ',', '.', ' '}

// Sequence is a named list of ASCII frames played at a fixed rate.
type Sequence struct {
	Name      string
	Frames    []string
	FrameRate float64
}

func (s *Sequence) interval() time.Duration {
	if s.FrameRate <= 0 {
		return time.Second
	}
	return time.Duration(float64(time.Second) / s.FrameRate)
}

// Catalog holds the known sequences and tracks which one is playing.
type Catalog struct {
	sequences map[string]*Sequence
	current   *Sequence
	index     int
	since     time.Duration
	loop      bool
	playing   bool
}

// NewCatalog returns a catalog preloaded with the generated default sequences.
func NewCatalog() *Catalog {
	c := &Catalog{sequences: make(map[string]*Sequence)}
	c.Register("idle", generate(8, idlePattern), 2)
	c.Register("loading", generate(12, loadingPattern), 8)
	c.Register("baseline", generate(10, baselinePattern), 6)
	c.Register("walking", generate(12, walkingPattern), 12)
	c.Register("coffee", generate(10, coffeePattern), 8)
	c.Register("success", generate(16, successPattern), 10)
	c.Register("failure", generate(16, failurePattern), 10)
	return c
}

// Register adds or replaces a sequence.
func (c *Catalog) Register(name string, frames []string, frameRate float64) {
	c.sequences[name] = &Sequence{Name: name, Frames: frames, FrameRate: frameRate}
	slog.Debug("Catalog.Register: loaded sequence", "name", name, "frames", len(frames), "fps", frameRate)
}

// Names lists the registered sequences.
func (c *Catalog) Names() []string {
	out := make([]string, 0, len(c.sequences))
	for name := range c.sequences {
		out = append(out, name)
	}
	return out
}

// PlaySequence starts a looping sequence from its first frame.
func (c *Catalog) PlaySequence(name string) error {
	seq, ok := c.sequences[name]
	if !ok {
		slog.Warn("Catalog.PlaySequence: sequence not found", "name", name)
		return fmt.Errorf("play sequence %q: %w", name, models.ErrUnknownSequence)
	}
	c.current = seq
	c.index = 0
	c.since = 0
	c.loop = true
	c.playing = true
	slog.Debug("Catalog.PlaySequence", "name", name)
	return nil
}

// PlayOnce starts a sequence that stops on its last frame.
func (c *Catalog) PlayOnce(name string) error {
	if err := c.PlaySequence(name); err != nil {
		return err
	}
	c.loop = false
	return nil
}

// Stop halts playback.
func (c *Catalog) Stop() {
	c.playing = false
	c.current = nil
}

// Update advances playback by dt, moving at most one frame per call.
func (c *Catalog) Update(dt time.Duration) {
	if !c.playing || c.current == nil || len(c.current.Frames) == 0 {
		return
	}
	c.since += dt
	if c.since < c.current.interval() {
		return
	}
	c.since = 0
	c.index++
	if c.index >= len(c.current.Frames) {
		if c.loop {
			c.index = 0
		} else {
			c.index = len(c.current.Frames) - 1
			c.playing = false
		}
	}
}

// Current returns the playing sequence name, or "".
func (c *Catalog) Current() string {
	if c.current == nil {
		return ""
	}
	return c.current.Name
}

func (c *Catalog) Playing() bool   { return c.playing }
func (c *Catalog) FrameIndex() int { return c.index }

// Frame returns the text of the current frame.
func (c *Catalog) Frame() string {
	if c.current == nil || c.index >= len(c.current.Frames) {
		return ""
	}
	return c.current.Frames[c.index]
}

type pattern func(x, y, f int) float64

func generate(count int, p pattern) []string {
	frames := make([]string, 0, count)
	var b strings.Builder
	for f := 0; f < count; f++ {
		b.Reset()
		b.Grow((frameWidth + 1) * frameHeight)
		for y := 0; y < frameHeight; y++ {
			for x := 0; x < frameWidth; x++ {
				b.WriteByte(rampChar(p(x, y, f)))
			}
			b.WriteByte('\n')
		}
		frames = append(frames, b.String())
	}
	return frames
}

// rampChar maps an intensity in [-1, 1] onto the ramp.
func rampChar(intensity float64) byte {
	i := int(math.Floor((intensity + 1) / 2 * float64(len(asciiRamp)-1)))
	if i < 0 {
		i = 0
	}
	if i >= len(asciiRamp) {
		i = len(asciiRamp) - 1
	}
	return asciiRamp[i]
}

func idlePattern(x, y, f int) float64 {
	return math.Sin(float64(x+f*2)*0.1) * math.Cos(float64(y+f)*0.15)
}

func loadingPattern(x, y, f int) float64 {
	wave := math.Sin(float64(x-f*5)*0.2) * math.Cos(float64(y)*0.1)
	pulse := math.Sin(float64(f)*0.5) * 0.3
	return wave + pulse
}

func baselinePattern(x, y, f int) float64 {
	// A trace line sweeping across a flat field.
	trace := float64(frameHeight)/2 + 4*math.Sin(float64(x)*0.3+float64(f))
	if math.Abs(float64(y)-trace) < 1 {
		return -1
	}
	return 1
}

func walkingPattern(x, y, f int) float64 {
	return math.Sin(float64(x+f*4)*0.25) * math.Sin(float64(y)*0.2)
}

func coffeePattern(x, y, f int) float64 {
	dx := float64(x-frameWidth/2) / 2
	dy := float64(y - frameHeight/2)
	r := math.Sqrt(dx*dx + dy*dy)
	return math.Cos(r*0.6 - float64(f)*0.8)
}

func successPattern(x, y, f int) float64 {
	return math.Cos(float64(x+y-f*3) * 0.15)
}

func failurePattern(x, y, f int) float64 {
	return math.Sin(float64(x*y+f*7)*0.05) - float64(f)/16
}
