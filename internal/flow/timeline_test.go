package flow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BTreeMap/BodyControl/internal/config"
	"github.com/BTreeMap/BodyControl/internal/models"
)

type recordingEnabler struct {
	enabled []models.VitalKind
}

func (r *recordingEnabler) Enable(kind models.VitalKind) bool {
	r.enabled = append(r.enabled, kind)
	return true
}

func TestTimelineCheckAdvance(t *testing.T) {
	tl := NewTimeline(config.Default().Schedule())

	_, ok := tl.CheckAdvance(29999*time.Millisecond, false)
	assert.False(t, ok)

	st, ok := tl.CheckAdvance(30*time.Second, false)
	require.True(t, ok)
	assert.Equal(t, models.EventBaseline, st.Type)

	_, ok = tl.CheckAdvance(time.Hour, true)
	assert.False(t, ok, "nothing starts while an event is active")
}

func TestTimelineAbsoluteSchedule(t *testing.T) {
	tl := NewTimeline(config.Default().Schedule())
	tl.AdvanceCursor()

	// The woods stage is due at 50s even if the previous stage ended late.
	st, ok := tl.CheckAdvance(70*time.Second, false)
	require.True(t, ok)
	assert.Equal(t, models.EventRunningWoods, st.Type)
	assert.Equal(t, 50*time.Second, st.StartTime)
}

func TestTimelineCursorNeverPassesEnd(t *testing.T) {
	tl := NewTimeline(config.Default().Schedule())
	moves := 0
	for i := 0; i < 10; i++ {
		if tl.AdvanceCursor() {
			moves++
		}
	}
	assert.Equal(t, 4, moves)
	assert.Equal(t, 4, tl.Cursor())
	assert.True(t, tl.AtLast())

	st, ok := tl.Current()
	require.True(t, ok)
	assert.Equal(t, models.EventFinish, st.Type)
}

func TestTimelineDurationFor(t *testing.T) {
	tl := NewTimeline(config.Default().Schedule())

	assert.Equal(t, 20*time.Second, tl.DurationFor(models.EventBaseline), "stage duration wins when the type matches")
	assert.Equal(t, 30*time.Second, tl.DurationFor(models.EventOrderCoffee))
	assert.Equal(t, 8*time.Second, tl.DurationFor(models.EventFinish))
	assert.Equal(t, 20*time.Second, tl.DurationFor("karaoke"))

	tl.AdvanceCursor()
	assert.Equal(t, 15*time.Second, tl.DurationFor(models.EventBaseline), "default once the cursor moved on")
}

func TestTimelineUnlocks(t *testing.T) {
	tl := NewTimeline(config.Default().Schedule(),
		Unlock{At: 20 * time.Second, Kind: models.VitalOxygen},
		Unlock{At: 30 * time.Second, Kind: models.VitalEyes},
	)
	e := &recordingEnabler{}

	assert.Empty(t, tl.CheckUnlocks(19*time.Second, e))
	assert.Equal(t, []models.VitalKind{models.VitalOxygen}, tl.CheckUnlocks(20*time.Second, e))
	assert.Empty(t, tl.CheckUnlocks(25*time.Second, e))
	assert.Equal(t, []models.VitalKind{models.VitalEyes}, tl.CheckUnlocks(time.Minute, e))
	assert.Empty(t, tl.CheckUnlocks(time.Hour, e))
	assert.Len(t, e.enabled, 2)
}

func TestTimelineCopiesStages(t *testing.T) {
	stages := config.Default().Schedule()
	tl := NewTimeline(stages)
	stages[0].Type = models.EventFinish

	got := tl.Stages()
	assert.Equal(t, models.EventBaseline, got[0].Type)
}
