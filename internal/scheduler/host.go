// Package scheduler runs a live session in real time.
//
// A Host owns the session and its presentation collaborators on a single
// goroutine. Frames are driven by a ticker; callers submit work through an
// inbox and wait for the reply, so the simulation core never needs locks.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/BTreeMap/BodyControl/internal/config"
	"github.com/BTreeMap/BodyControl/internal/game"
	"github.com/BTreeMap/BodyControl/internal/genai"
	"github.com/BTreeMap/BodyControl/internal/media"
	"github.com/BTreeMap/BodyControl/internal/models"
	"github.com/BTreeMap/BodyControl/internal/store"
)

// DefaultFrameRate is the number of frames driven per second.
const DefaultFrameRate = 60

// ErrStopped is returned by calls made after the host stopped.
var ErrStopped = errors.New("host stopped")

// View is a snapshot plus the current animation frame.
type View struct {
	models.SessionSnapshot
	Frame      string `json:"frame"`
	FrameIndex int    `json:"frame_index"`
}

// Option configures a Host.
type Option func(*Host)

// WithFrameRate sets the tick frequency in Hz.
func WithFrameRate(hz int) Option {
	return func(h *Host) {
		if hz > 0 {
			h.frameRate = hz
		}
	}
}

// WithStore persists finished sessions and queues their debriefs.
func WithStore(st store.Store) Option {
	return func(h *Host) { h.st = st }
}

// WithSeed fixes the seed of every session the host creates.
func WithSeed(seed uint64) Option {
	return func(h *Host) {
		h.seed = seed
		h.seeded = true
	}
}

// Host drives one session at a time.
type Host struct {
	cfg       *config.Config
	frameRate int
	st        store.Store
	seed      uint64
	seeded    bool

	inbox    chan func()
	quit     chan struct{}
	stopOnce sync.Once
	saving   sync.WaitGroup

	// Owned by the Run goroutine.
	catalog *media.Catalog
	board   *media.Board
	cues    *media.CueBus
	session *game.Session
	epoch   time.Time
	last    time.Duration
}

// New creates a host with a fresh session waiting to start.
func New(cfg *config.Config, opts ...Option) *Host {
	if cfg == nil {
		cfg = config.Default()
	}
	h := &Host{
		cfg:       cfg,
		frameRate: DefaultFrameRate,
		inbox:     make(chan func(), 64),
		quit:      make(chan struct{}),
		catalog:   media.NewCatalog(),
		board:     media.NewBoard(media.DefaultAlertLifetime),
		cues:      media.NewCueBus(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.session = h.newSession()
	return h
}

func (h *Host) newSession() *game.Session {
	opts := []game.Option{game.WithEndHook(h.persist)}
	if h.seeded {
		opts = append(opts, game.WithSeed(h.seed))
	}
	return game.NewSession(h.cfg, game.Deps{
		Animator: h.catalog,
		Display:  h.board,
		Audio:    h.cues,
		Board:    h.board,
	}, opts...)
}

// persist runs on the host goroutine when a session resolves. Store writes
// happen on their own goroutine so the frame loop never waits on I/O.
func (h *Host) persist(rec models.SessionRecord) {
	if h.st == nil {
		return
	}
	h.saving.Add(1)
	go func() {
		defer h.saving.Done()
		h.save(rec)
	}()
}

func (h *Host) save(rec models.SessionRecord) {
	if err := h.st.SaveSession(rec); err != nil {
		slog.Error("Host.save: save session failed", "id", rec.ID, "error", err)
		return
	}
	jobID, err := genai.EnqueueDebrief(h.st, rec.ID, time.Now())
	if err != nil {
		slog.Error("Host.save: enqueue debrief failed", "id", rec.ID, "error", err)
		return
	}
	slog.Info("Host.save: session saved", "id", rec.ID, "outcome", rec.Outcome.Kind, "debrief_job", jobID)
}

// Run drives frames until ctx is done or Stop is called. It returns once
// pending session saves have finished.
func (h *Host) Run(ctx context.Context) error {
	defer h.saving.Wait()
	ticker := time.NewTicker(time.Second / time.Duration(h.frameRate))
	defer ticker.Stop()
	h.epoch = time.Now()
	h.last = 0
	slog.Info("Host.Run: started", "frame_rate", h.frameRate)

	for {
		select {
		case <-ctx.Done():
			h.Stop()
			return ctx.Err()
		case <-h.quit:
			slog.Info("Host.Run: stopped")
			return nil
		case fn := <-h.inbox:
			fn()
		case <-ticker.C:
			h.frame()
		}
	}
}

func (h *Host) frame() {
	ts := time.Since(h.epoch)
	dt := ts - h.last
	h.last = ts
	h.session.Frame(ts)
	h.catalog.Update(dt)
}

// Stop ends Run. It is safe to call more than once.
func (h *Host) Stop() {
	h.stopOnce.Do(func() { close(h.quit) })
}

// Do runs fn on the host goroutine with the current session and waits for
// it to finish.
func (h *Host) Do(ctx context.Context, fn func(s *game.Session)) error {
	done := make(chan struct{})
	job := func() {
		defer close(done)
		fn(h.session)
	}
	select {
	case h.inbox <- job:
	case <-ctx.Done():
		return ctx.Err()
	case <-h.quit:
		return ErrStopped
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.quit:
		return ErrStopped
	}
}

func (h *Host) view() View {
	return View{
		SessionSnapshot: h.session.Snapshot(),
		Frame:           h.catalog.Frame(),
		FrameIndex:      h.catalog.FrameIndex(),
	}
}

// View returns the current snapshot and animation frame.
func (h *Host) View(ctx context.Context) (View, error) {
	var v View
	err := h.Do(ctx, func(*game.Session) { v = h.view() })
	if err != nil {
		return View{}, err
	}
	return v, nil
}

// Start begins play on the current session.
func (h *Host) Start(ctx context.Context) (View, error) {
	var v View
	err := h.Do(ctx, func(s *game.Session) {
		s.Start()
		v = h.view()
	})
	if err != nil {
		return View{}, err
	}
	return v, nil
}

// Reset discards the current session and replaces it with a new one in
// the init state. An unfinished session is not persisted.
func (h *Host) Reset(ctx context.Context) (View, error) {
	var v View
	err := h.Do(ctx, func(old *game.Session) {
		slog.Info("Host.Reset: replacing session", "old_id", old.ID(), "old_lifecycle", old.Lifecycle())
		h.catalog.Stop()
		h.board.Reset()
		h.cues.Drain()
		h.session = h.newSession()
		v = h.view()
	})
	if err != nil {
		return View{}, err
	}
	return v, nil
}

// Act applies a player action and returns whether it changed anything.
func (h *Host) Act(ctx context.Context, a models.Action) (bool, View, error) {
	var (
		acted  bool
		actErr error
		v      View
	)
	err := h.Do(ctx, func(s *game.Session) {
		acted, actErr = s.HandleAction(a)
		v = h.view()
	})
	if err != nil {
		return false, View{}, err
	}
	return acted, v, actErr
}

// Cues drains the audio cues played since the last call.
func (h *Host) Cues(ctx context.Context) ([]models.Cue, error) {
	var out []models.Cue
	if err := h.Do(ctx, func(*game.Session) { out = h.cues.Drain() }); err != nil {
		return nil, err
	}
	return out, nil
}
