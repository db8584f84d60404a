package game

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BTreeMap/BodyControl/internal/models"
	"github.com/BTreeMap/BodyControl/internal/util"
)

func TestAutopilotIdleBeforeStart(t *testing.T) {
	s := newTestSession(t, Deps{})
	pilot := NewAutopilot(s)
	assert.Empty(t, pilot.Act())
}

func TestAutopilotKeepsHeartUp(t *testing.T) {
	s := newTestSession(t, Deps{})
	pilot := NewAutopilot(s)
	s.Start()

	s.Tick(400 * time.Millisecond)
	assert.Equal(t, []models.Action{models.ActionHeartbeat}, pilot.Act())
	assert.InDelta(t, 68.0, s.Snapshot().Vitals.HeartRate.Current, 0.1)
	assert.Empty(t, pilot.Act())
}

func TestSloppyAutopilotGetsCaught(t *testing.T) {
	s := newTestSession(t, Deps{})
	pilot := NewAutopilot(s, WithMistakes(1, util.NewSeededRandom(7)), WithStepInterval(100*time.Millisecond))

	rec, err := Simulate(context.Background(), s, pilot, 50*time.Millisecond, 4*time.Minute)
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeFailure, rec.Outcome.Kind)
	assert.Less(t, rec.PlayTime, 179*time.Second)
	assert.Equal(t, 100.0, rec.FinalSuspicion)
	assert.NotEmpty(t, rec.Ledger)
}
