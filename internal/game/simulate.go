package game

import (
	"context"
	"log/slog"
	"time"

	"github.com/BTreeMap/BodyControl/internal/models"
)

// Simulate drives s headlessly with a fixed frame step until the end screen
// shows, limit play time passes, or ctx is cancelled. A nil pilot leaves the
// player idle.
func Simulate(ctx context.Context, s *Session, pilot *Autopilot, frame, limit time.Duration) (models.SessionRecord, error) {
	if frame <= 0 {
		frame = 50 * time.Millisecond
	}
	s.Start()
	for ts := time.Duration(0); ts <= limit; ts += frame {
		if err := ctx.Err(); err != nil {
			return s.Record(), err
		}
		s.Frame(ts)
		if pilot != nil {
			pilot.Act()
		}
		if s.EndScreenShown() {
			break
		}
	}
	rec := s.Record()
	slog.Debug("Simulate finished", "id", s.ID(), "outcome", rec.Outcome.Kind, "play_time", rec.PlayTime)
	return rec, nil
}
