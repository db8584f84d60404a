package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/openai/openai-go"

	"github.com/BTreeMap/BodyControl/internal/models"
	"github.com/BTreeMap/BodyControl/internal/store"
)

const debriefSystemPrompt = `You are mission control for a covert android infiltrator posing as a human.
After each mission you write a short in-character debrief for the operator.
Mention what went well, what raised suspicion, and one concrete tip for next time.
Keep it under 120 words. Plain text, no markdown headings.`

// Debriefer turns a finished session into a short written debrief.
type Debriefer interface {
	Debrief(ctx context.Context, rec models.SessionRecord) (string, error)
}

// ReasonTotal aggregates ledger entries sharing a reason.
type ReasonTotal struct {
	Reason string
	Count  int
	Amount float64
}

// SummarizeLedger groups increases by reason, largest total first. Decay
// and other negative entries are skipped.
func SummarizeLedger(ledger []models.SuspicionEntry) []ReasonTotal {
	byReason := map[string]*ReasonTotal{}
	var order []string
	for _, e := range ledger {
		if e.Amount <= 0 {
			continue
		}
		reason := e.Reason
		if reason == "" {
			reason = "unspecified"
		}
		rt, ok := byReason[reason]
		if !ok {
			rt = &ReasonTotal{Reason: reason}
			byReason[reason] = rt
			order = append(order, reason)
		}
		rt.Count++
		rt.Amount += e.Amount
	}
	out := make([]ReasonTotal, 0, len(order))
	for _, r := range order {
		out = append(out, *byReason[r])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Amount > out[j].Amount })
	return out
}

// MissionReport renders a record as the plain facts handed to the model.
func MissionReport(rec models.SessionRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Outcome: %s", rec.Outcome.Kind)
	if rec.Outcome.Reason != "" {
		fmt.Fprintf(&b, " (%s)", rec.Outcome.Reason)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Play time: %s\n", rec.PlayTime.Round(time.Second))
	fmt.Fprintf(&b, "Stages completed: %d\n", rec.StagesCompleted)
	fmt.Fprintf(&b, "Steps taken: %d\n", rec.StepCount)
	fmt.Fprintf(&b, "Final suspicion: %.0f%%\n", rec.FinalSuspicion)
	totals := SummarizeLedger(rec.Ledger)
	if len(totals) == 0 {
		b.WriteString("Suspicion sources: none\n")
		return b.String()
	}
	b.WriteString("Suspicion sources:\n")
	for _, rt := range totals {
		fmt.Fprintf(&b, "- %s: +%.1f over %d incident(s)\n", rt.Reason, rt.Amount, rt.Count)
	}
	return b.String()
}

// Debrief asks the model for an in-character debrief of rec.
func (c *Client) Debrief(ctx context.Context, rec models.SessionRecord) (string, error) {
	text, err := c.GenerateWithMessages(ctx, []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(debriefSystemPrompt),
		openai.UserMessage(MissionReport(rec)),
	})
	if err != nil {
		return "", fmt.Errorf("debrief %s: %w", rec.ID, err)
	}
	return text, nil
}

// Offline writes a canned debrief without calling any API.
type Offline struct{}

func (Offline) Debrief(_ context.Context, rec models.SessionRecord) (string, error) {
	var b strings.Builder
	switch rec.Outcome.Kind {
	case models.OutcomeSuccess:
		fmt.Fprintf(&b, "Mission complete in %s. ", rec.PlayTime.Round(time.Second))
	case models.OutcomeFailure:
		fmt.Fprintf(&b, "Cover blown after %s. ", rec.PlayTime.Round(time.Second))
	default:
		b.WriteString("Mission aborted. ")
	}
	fmt.Fprintf(&b, "Final suspicion %.0f%%.", rec.FinalSuspicion)
	totals := SummarizeLedger(rec.Ledger)
	if len(totals) == 0 {
		b.WriteString(" Nobody suspected a thing.")
		return b.String(), nil
	}
	top := totals[0]
	fmt.Fprintf(&b, " Biggest giveaway: %s (+%.1f). Work on that next time.", strings.ToLower(top.Reason), top.Amount)
	return b.String(), nil
}

// DebriefPayload is the job payload for store.JobKindDebrief.
type DebriefPayload struct {
	SessionID string `json:"session_id"`
}

// EnqueueDebrief queues debrief generation for a session. Repeat calls
// for the same session return the pending job.
func EnqueueDebrief(repo store.JobRepo, sessionID string, runAt time.Time) (string, error) {
	payload, err := json.Marshal(DebriefPayload{SessionID: sessionID})
	if err != nil {
		return "", fmt.Errorf("marshal debrief payload: %w", err)
	}
	return repo.EnqueueJob(store.JobKindDebrief, runAt, string(payload), "debrief:"+sessionID)
}

// NewDebriefHandler returns the job handler that loads a session, writes
// its debrief with d and saves it back to st.
func NewDebriefHandler(st store.Store, d Debriefer) store.JobHandler {
	return func(ctx context.Context, payload string) error {
		var p DebriefPayload
		if err := json.Unmarshal([]byte(payload), &p); err != nil {
			return fmt.Errorf("decode debrief payload: %w", err)
		}
		if p.SessionID == "" {
			return fmt.Errorf("debrief payload missing session_id")
		}
		rec, err := st.GetSession(p.SessionID)
		if err != nil {
			return fmt.Errorf("load session %s: %w", p.SessionID, err)
		}
		if rec == nil {
			return fmt.Errorf("load session %s: %w", p.SessionID, models.ErrSessionNotFound)
		}
		text, err := d.Debrief(ctx, *rec)
		if err != nil {
			return err
		}
		if err := st.SaveDebrief(p.SessionID, text); err != nil {
			return fmt.Errorf("save debrief %s: %w", p.SessionID, err)
		}
		slog.Info("DebriefHandler: debrief saved", "session_id", p.SessionID, "chars", len(text))
		return nil
	}
}
