package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BTreeMap/BodyControl/internal/game"
	"github.com/BTreeMap/BodyControl/internal/models"
	"github.com/BTreeMap/BodyControl/internal/store"
)

func startHost(t *testing.T, opts ...Option) (*Host, context.Context) {
	t.Helper()
	h := New(nil, append([]Option{WithSeed(42)}, opts...)...)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	errCh := make(chan error, 1)
	go func() { errCh <- h.Run(ctx) }()
	t.Cleanup(func() {
		h.Stop()
		cancel()
		<-errCh
	})
	return h, ctx
}

func TestHostStartAndAct(t *testing.T) {
	h, ctx := startHost(t)

	v, err := h.View(ctx)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if v.Lifecycle != models.LifecycleInit {
		t.Errorf("expected init lifecycle, got %s", v.Lifecycle)
	}

	_, _, err = h.Act(ctx, models.ActionHeartbeat)
	if !errors.Is(err, models.ErrNotStarted) {
		t.Errorf("expected ErrNotStarted before start, got %v", err)
	}

	v, err = h.Start(ctx)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if v.Lifecycle != models.LifecycleRunning {
		t.Errorf("expected running lifecycle, got %s", v.Lifecycle)
	}
	if v.Frame == "" {
		t.Error("expected an animation frame once idle plays")
	}

	acted, v, err := h.Act(ctx, models.ActionHeartbeat)
	if err != nil {
		t.Fatalf("act: %v", err)
	}
	if !acted {
		t.Error("heartbeat should act while running")
	}
	if v.Vitals.HeartRate.Current <= 50 {
		t.Errorf("expected heart rate above the initial value, got %v", v.Vitals.HeartRate.Current)
	}

	cues, err := h.Cues(ctx)
	if err != nil {
		t.Fatalf("cues: %v", err)
	}
	if len(cues) != 1 || cues[0] != models.CueHeartbeat {
		t.Errorf("expected one heartbeat cue, got %v", cues)
	}
}

func TestHostUnknownAction(t *testing.T) {
	h, ctx := startHost(t)
	if _, err := h.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	_, _, err := h.Act(ctx, "sneeze")
	if !errors.Is(err, models.ErrUnknownAction) {
		t.Errorf("expected ErrUnknownAction, got %v", err)
	}
}

func TestHostFramesAdvancePlay(t *testing.T) {
	h, ctx := startHost(t, WithFrameRate(100))
	if _, err := h.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		v, err := h.View(ctx)
		if err != nil {
			t.Fatalf("view: %v", err)
		}
		if v.Elapsed > 0 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("elapsed play time never advanced")
}

func TestHostResetReplacesSession(t *testing.T) {
	h, ctx := startHost(t)
	first, err := h.Start(ctx)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	second, err := h.Reset(ctx)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if first.ID == second.ID {
		t.Error("reset should create a new session")
	}
	if second.Lifecycle != models.LifecycleInit {
		t.Errorf("expected init after reset, got %s", second.Lifecycle)
	}
}

func TestHostPersistsFinishedSession(t *testing.T) {
	st := store.NewInMemoryStore()
	h, ctx := startHost(t, WithStore(st))

	err := h.Do(ctx, func(s *game.Session) {
		if _, err := game.Simulate(ctx, s, game.NewAutopilot(s), 50*time.Millisecond, 4*time.Minute); err != nil {
			t.Errorf("simulate: %v", err)
		}
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}

	list := waitForSessions(t, st, 1)
	rec := list[0]
	if rec.Outcome.Kind != models.OutcomeSuccess {
		t.Errorf("expected success, got %s", rec.Outcome.Kind)
	}

	jobs, err := st.ClaimDueJobs(time.Now().Add(time.Second), 10)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(jobs) != 1 || jobs[0].Kind != store.JobKindDebrief {
		t.Errorf("expected one debrief job, got %+v", jobs)
	}
}

func waitForSessions(t *testing.T, st store.Store, n int) []models.SessionRecord {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		list, err := st.ListSessions(0)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(list) >= n {
			return list
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected %d saved sessions, got %d", n, len(list))
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// slowStore blocks SaveSession until release is closed.
type slowStore struct {
	*store.InMemoryStore
	release chan struct{}
}

func (s *slowStore) SaveSession(rec models.SessionRecord) error {
	<-s.release
	return s.InMemoryStore.SaveSession(rec)
}

func TestHostSavesOffTheFrameLoop(t *testing.T) {
	st := &slowStore{InMemoryStore: store.NewInMemoryStore(), release: make(chan struct{})}
	h, ctx := startHost(t, WithStore(st))
	released := false
	defer func() {
		if !released {
			close(st.release)
		}
	}()

	// A save on the host goroutine would hold this call until release.
	doCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	err := h.Do(doCtx, func(s *game.Session) {
		if _, err := game.Simulate(ctx, s, game.NewAutopilot(s), 50*time.Millisecond, 4*time.Minute); err != nil {
			t.Errorf("simulate: %v", err)
		}
	})
	if err != nil {
		t.Fatalf("do while saving: %v", err)
	}
	v, err := h.View(doCtx)
	if err != nil {
		t.Fatalf("view while saving: %v", err)
	}
	if v.Outcome == nil || v.Outcome.Kind != models.OutcomeSuccess {
		t.Errorf("expected resolved session, got %+v", v.Outcome)
	}
	if list, _ := st.ListSessions(0); len(list) != 0 {
		t.Fatalf("save finished before release: %d sessions", len(list))
	}

	released = true
	close(st.release)
	list := waitForSessions(t, st, 1)
	if list[0].Outcome.Kind != models.OutcomeSuccess {
		t.Errorf("expected success, got %s", list[0].Outcome.Kind)
	}
}

func TestHostStopped(t *testing.T) {
	h := New(nil)
	h.Stop()
	h.Stop()
	if _, err := h.View(context.Background()); !errors.Is(err, ErrStopped) {
		t.Errorf("expected ErrStopped, got %v", err)
	}
}

func TestHostDoHonoursContext(t *testing.T) {
	h := New(nil)
	defer h.Stop()
	// Fill the inbox so the next submit blocks.
	for i := 0; i < cap(h.inbox); i++ {
		h.inbox <- func() {}
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := h.Do(ctx, func(*game.Session) {}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
