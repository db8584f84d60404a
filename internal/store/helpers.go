package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/BTreeMap/BodyControl/internal/models"
)

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// nilIfEmpty returns nil for "", so nullable columns store NULL.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// sessionRow flattens a record into column values in sessionColumns order.
func sessionRow(rec models.SessionRecord) ([]any, error) {
	var ledger string
	if len(rec.Ledger) > 0 {
		b, err := json.Marshal(rec.Ledger)
		if err != nil {
			return nil, fmt.Errorf("encode ledger: %w", err)
		}
		ledger = string(b)
	}
	return []any{
		rec.ID,
		strconv.FormatUint(rec.Seed, 10),
		rec.StartedAt.UTC(),
		rec.EndedAt.UTC(),
		rec.PlayTime.Milliseconds(),
		string(rec.Outcome.Kind),
		nilIfEmpty(rec.Outcome.Reason),
		rec.FinalSuspicion,
		rec.StagesCompleted,
		rec.StepCount,
		nilIfEmpty(ledger),
		time.Now().UTC(),
	}, nil
}

const sessionColumns = `id, seed, started_at, ended_at, play_time_ms, outcome, reason, final_suspicion, stages_completed, step_count, ledger_json`

// scanSession reads the columns listed in sessionColumns.
func scanSession(row rowScanner) (models.SessionRecord, error) {
	var rec models.SessionRecord
	var seed, outcome string
	var reason, ledger sql.NullString
	var playMS int64
	err := row.Scan(
		&rec.ID, &seed, &rec.StartedAt, &rec.EndedAt, &playMS, &outcome, &reason,
		&rec.FinalSuspicion, &rec.StagesCompleted, &rec.StepCount, &ledger,
	)
	if err != nil {
		return rec, err
	}
	rec.Seed, err = strconv.ParseUint(seed, 10, 64)
	if err != nil {
		return rec, fmt.Errorf("parse seed %q: %w", seed, err)
	}
	rec.PlayTime = time.Duration(playMS) * time.Millisecond
	rec.Outcome = models.Outcome{Kind: models.OutcomeKind(outcome), Reason: reason.String}
	if ledger.String != "" {
		if err := json.Unmarshal([]byte(ledger.String), &rec.Ledger); err != nil {
			// Keep the record readable even if its ledger is damaged.
			slog.Error("scanSession: ledger decode failed", "id", rec.ID, "error", err)
			rec.Ledger = nil
		}
	}
	return rec, nil
}

const jobColumns = `id, kind, run_at, payload_json, status, attempt, max_attempts, last_error, locked_at, dedupe_key, created_at, updated_at`

// scanJob reads the columns listed in jobColumns.
func scanJob(row rowScanner) (Job, error) {
	var j Job
	var payloadJSON, lastError, dedupeKey sql.NullString
	var lockedAt sql.NullTime
	err := row.Scan(
		&j.ID, &j.Kind, &j.RunAt, &payloadJSON, &j.Status, &j.Attempt, &j.MaxAttempts,
		&lastError, &lockedAt, &dedupeKey, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return j, err
	}
	j.PayloadJSON = payloadJSON.String
	j.LastError = lastError.String
	j.DedupeKey = dedupeKey.String
	if lockedAt.Valid {
		j.LockedAt = &lockedAt.Time
	}
	return j, nil
}

func pgLimit(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}
