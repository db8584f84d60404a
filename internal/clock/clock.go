// Package clock provides the virtual timer that drives every deferred action
// in a session.
//
// Callbacks are kept in a priority queue ordered by fire time and insertion
// order, tagged with an owner so that everything belonging to an ended event
// can be dropped at once. Nothing runs on its own: the host advances the
// timer once per tick and due callbacks run synchronously on that goroutine.
package clock

import (
	"container/heap"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// Owner tags used by the simulation.
const (
	OwnerVitals = "vitals"
	OwnerFinish = "finish"
)

// EventOwner returns the owner tag for callbacks scheduled by an event generation.
func EventOwner(generation uint64) string {
	return fmt.Sprintf("event:%d", generation)
}

// TimerInfo describes a pending callback.
type TimerInfo struct {
	ID          string        `json:"id"`
	Owner       string        `json:"owner"`
	Description string        `json:"description"`
	ScheduledAt time.Duration `json:"scheduled_at"`
	FireAt      time.Duration `json:"fire_at"`
	Remaining   time.Duration `json:"remaining"`
}

// timerEntry tracks information about a scheduled callback
type timerEntry struct {
	id          string
	seq         uint64
	owner       string
	description string
	scheduledAt time.Duration
	fireAt      time.Duration
	fn          func()
	index       int
}

type timerQueue []*timerEntry

func (q timerQueue) Len() int { return len(q) }

func (q timerQueue) Less(i, j int) bool {
	if q[i].fireAt != q[j].fireAt {
		return q[i].fireAt < q[j].fireAt
	}
	return q[i].seq < q[j].seq
}

func (q timerQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *timerQueue) Push(x any) {
	e := x.(*timerEntry)
	e.index = len(*q)
	*q = append(*q, e)
}

func (q *timerQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*q = old[:n-1]
	return e
}

// VirtualTimer schedules callbacks against a manually advanced play clock.
// It is not safe for concurrent use; the session host serialises access.
type VirtualTimer struct {
	now     time.Duration
	queue   timerQueue
	entries map[string]*timerEntry
	nextSeq uint64
}

// NewTimer creates an empty VirtualTimer positioned at zero.
func NewTimer() *VirtualTimer {
	slog.Debug("Creating VirtualTimer")
	return &VirtualTimer{
		entries: make(map[string]*timerEntry),
	}
}

// Now returns the current virtual time.
func (t *VirtualTimer) Now() time.Duration {
	return t.now
}

// ScheduleAfter schedules fn to run once the clock has advanced by delay.
// Negative delays are treated as zero. The returned ID can be passed to Cancel.
func (t *VirtualTimer) ScheduleAfter(delay time.Duration, owner, description string, fn func()) string {
	if delay < 0 {
		delay = 0
	}
	return t.schedule(t.now+delay, owner, description, fn)
}

// ScheduleAt schedules fn at an absolute virtual time. Times in the past run
// on the next advance.
func (t *VirtualTimer) ScheduleAt(when time.Duration, owner, description string, fn func()) string {
	if when < t.now {
		slog.Debug("VirtualTimer.ScheduleAt: time is in the past, running on next advance", "when", when, "now", t.now)
		when = t.now
	}
	return t.schedule(when, owner, description, fn)
}

func (t *VirtualTimer) schedule(fireAt time.Duration, owner, description string, fn func()) string {
	t.nextSeq++
	id := fmt.Sprintf("timer_%d", t.nextSeq)
	e := &timerEntry{
		id:          id,
		seq:         t.nextSeq,
		owner:       owner,
		description: description,
		scheduledAt: t.now,
		fireAt:      fireAt,
		fn:          fn,
	}
	heap.Push(&t.queue, e)
	t.entries[id] = e
	slog.Debug("VirtualTimer scheduled", "id", id, "owner", owner, "description", description, "fire_at", fireAt)
	return id
}

// Cancel removes a pending callback. It reports whether anything was removed.
func (t *VirtualTimer) Cancel(id string) bool {
	e, ok := t.entries[id]
	if !ok {
		slog.Debug("VirtualTimer.Cancel: timer not found", "id", id)
		return false
	}
	heap.Remove(&t.queue, e.index)
	delete(t.entries, id)
	slog.Debug("VirtualTimer.Cancel succeeded", "id", id, "owner", e.owner)
	return true
}

// CancelOwner removes every pending callback tagged with owner and returns
// how many were dropped.
func (t *VirtualTimer) CancelOwner(owner string) int {
	var ids []string
	for id, e := range t.entries {
		if e.owner == owner {
			ids = append(ids, id)
		}
	}
	for _, id := range ids {
		e := t.entries[id]
		heap.Remove(&t.queue, e.index)
		delete(t.entries, id)
	}
	if len(ids) > 0 {
		slog.Debug("VirtualTimer.CancelOwner dropped callbacks", "owner", owner, "count", len(ids))
	}
	return len(ids)
}

// AdvanceTo moves the clock forward to target, running every callback due at
// or before it in (fire time, schedule order). While a callback runs, Now
// reports that callback's fire time, so nested schedules are relative to it.
// Callbacks scheduled during the drain run in the same call when they fall
// due. Targets behind the current time are ignored. It returns the number of
// callbacks executed.
func (t *VirtualTimer) AdvanceTo(target time.Duration) int {
	fired := 0
	for len(t.queue) > 0 && t.queue[0].fireAt <= target {
		e := heap.Pop(&t.queue).(*timerEntry)
		delete(t.entries, e.id)
		if e.fireAt > t.now {
			t.now = e.fireAt
		}
		slog.Debug("VirtualTimer executing scheduled function", "id", e.id, "owner", e.owner, "description", e.description)
		e.fn()
		fired++
	}
	if target > t.now {
		t.now = target
	}
	return fired
}

// Advance moves the clock forward by d. See AdvanceTo.
func (t *VirtualTimer) Advance(d time.Duration) int {
	if d < 0 {
		d = 0
	}
	return t.AdvanceTo(t.now + d)
}

// Pending returns the number of callbacks waiting to fire.
func (t *VirtualTimer) Pending() int {
	return len(t.queue)
}

// Stop drops all pending callbacks.
func (t *VirtualTimer) Stop() {
	slog.Debug("VirtualTimer stopping all timers", "count", len(t.entries))
	t.queue = nil
	t.entries = make(map[string]*timerEntry)
}

// ListActive returns information about all pending callbacks in fire order.
func (t *VirtualTimer) ListActive() []TimerInfo {
	sorted := make([]*timerEntry, len(t.queue))
	copy(sorted, t.queue)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].fireAt != sorted[j].fireAt {
			return sorted[i].fireAt < sorted[j].fireAt
		}
		return sorted[i].seq < sorted[j].seq
	})
	result := make([]TimerInfo, 0, len(sorted))
	for _, e := range sorted {
		result = append(result, t.info(e))
	}
	return result
}

// GetTimer returns information about a specific pending callback by ID.
func (t *VirtualTimer) GetTimer(id string) (*TimerInfo, error) {
	e, ok := t.entries[id]
	if !ok {
		return nil, fmt.Errorf("timer with ID %s not found", id)
	}
	info := t.info(e)
	return &info, nil
}

func (t *VirtualTimer) info(e *timerEntry) TimerInfo {
	remaining := e.fireAt - t.now
	if remaining < 0 {
		remaining = 0
	}
	return TimerInfo{
		ID:          e.id,
		Owner:       e.owner,
		Description: e.description,
		ScheduledAt: e.scheduledAt,
		FireAt:      e.fireAt,
		Remaining:   remaining,
	}
}
