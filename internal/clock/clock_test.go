package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVirtualTimerFiresInOrder(t *testing.T) {
	timer := NewTimer()
	var got []string

	timer.ScheduleAfter(300*time.Millisecond, "a", "third", func() { got = append(got, "third") })
	timer.ScheduleAfter(100*time.Millisecond, "a", "first", func() { got = append(got, "first") })
	timer.ScheduleAfter(100*time.Millisecond, "b", "second", func() { got = append(got, "second") })

	fired := timer.AdvanceTo(250 * time.Millisecond)
	assert.Equal(t, 2, fired)
	assert.Equal(t, []string{"first", "second"}, got)
	assert.Equal(t, 250*time.Millisecond, timer.Now())
	assert.Equal(t, 1, timer.Pending())

	timer.Advance(50 * time.Millisecond)
	assert.Equal(t, []string{"first", "second", "third"}, got)
	assert.Equal(t, 0, timer.Pending())
}

func TestVirtualTimerNestedScheduleUsesFireTime(t *testing.T) {
	timer := NewTimer()
	var at []time.Duration

	timer.ScheduleAfter(time.Second, "loop", "outer", func() {
		at = append(at, timer.Now())
		timer.ScheduleAfter(500*time.Millisecond, "loop", "inner", func() {
			at = append(at, timer.Now())
		})
	})

	// A single large step still runs the nested callback at its own due time.
	fired := timer.AdvanceTo(5 * time.Second)
	assert.Equal(t, 2, fired)
	assert.Equal(t, []time.Duration{time.Second, 1500 * time.Millisecond}, at)
	assert.Equal(t, 5*time.Second, timer.Now())
}

func TestVirtualTimerCancel(t *testing.T) {
	timer := NewTimer()
	ran := false
	id := timer.ScheduleAfter(time.Second, "x", "cancel me", func() { ran = true })

	assert.True(t, timer.Cancel(id))
	assert.False(t, timer.Cancel(id), "second cancel should report nothing removed")

	timer.Advance(2 * time.Second)
	assert.False(t, ran)
}

func TestVirtualTimerCancelOwner(t *testing.T) {
	timer := NewTimer()
	var got []string
	old := EventOwner(1)
	next := EventOwner(2)

	timer.ScheduleAfter(time.Second, old, "stale prompt", func() { got = append(got, "stale") })
	timer.ScheduleAfter(2*time.Second, old, "stale timeout", func() { got = append(got, "stale") })
	timer.ScheduleAfter(time.Second, next, "fresh prompt", func() { got = append(got, "fresh") })
	timer.ScheduleAfter(time.Second, OwnerVitals, "blink", func() { got = append(got, "blink") })

	assert.Equal(t, 2, timer.CancelOwner(old))
	assert.Equal(t, 0, timer.CancelOwner(old))

	timer.Advance(3 * time.Second)
	assert.Equal(t, []string{"fresh", "blink"}, got)
}

func TestVirtualTimerPastScheduleRunsOnNextAdvance(t *testing.T) {
	timer := NewTimer()
	timer.Advance(time.Second)

	ran := false
	timer.ScheduleAt(100*time.Millisecond, "x", "late", func() { ran = true })
	assert.False(t, ran)

	timer.Advance(0)
	assert.True(t, ran)
}

func TestVirtualTimerListAndGet(t *testing.T) {
	timer := NewTimer()
	second := timer.ScheduleAfter(2*time.Second, "x", "second", func() {})
	first := timer.ScheduleAfter(time.Second, "y", "first", func() {})

	list := timer.ListActive()
	require.Len(t, list, 2)
	assert.Equal(t, first, list[0].ID)
	assert.Equal(t, second, list[1].ID)

	timer.Advance(500 * time.Millisecond)
	info, err := timer.GetTimer(first)
	require.NoError(t, err)
	assert.Equal(t, "y", info.Owner)
	assert.Equal(t, 500*time.Millisecond, info.Remaining)

	_, err = timer.GetTimer("timer_999")
	assert.Error(t, err)

	timer.Stop()
	assert.Empty(t, timer.ListActive())
}

func TestVirtualTimerIgnoresBackwardTarget(t *testing.T) {
	timer := NewTimer()
	timer.Advance(time.Second)
	timer.AdvanceTo(500 * time.Millisecond)
	assert.Equal(t, time.Second, timer.Now())
}
