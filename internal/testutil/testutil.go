// Package testutil provides shared helpers for BodyControl tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/BTreeMap/BodyControl/internal/models"
	"github.com/BTreeMap/BodyControl/internal/store"
)

// TB is the subset of testing.TB the helpers need.
type TB interface {
	Helper()
	Errorf(format string, args ...any)
	Fatalf(format string, args ...any)
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t TB, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// AssertJSONResponse decodes an APIResponse envelope and checks its status.
func AssertJSONResponse(t TB, rr *httptest.ResponseRecorder, expected models.APIStatus) models.APIResponse {
	t.Helper()
	var resp models.APIResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
		return resp
	}
	if resp.Status != string(expected) {
		t.Errorf("expected status '%s', got '%s' (%s)", expected, resp.Status, resp.Message)
	}
	return resp
}

// CreateHTTPRequest creates a request with an optional JSON body.
func CreateHTTPRequest(t TB, method, url string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		buf.Write(MustMarshalJSON(t, body))
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
	}
	return req
}

// SessionRecord builds a finished record. Records with a higher index end
// later.
func SessionRecord(i int, kind models.OutcomeKind) models.SessionRecord {
	ended := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Hour)
	rec := models.SessionRecord{
		ID:              fmt.Sprintf("sess-%d", i),
		Seed:            uint64(1000 + i),
		StartedAt:       ended.Add(-3 * time.Minute),
		EndedAt:         ended,
		PlayTime:        179 * time.Second,
		Outcome:         models.Outcome{Kind: kind},
		StagesCompleted: 4,
		StepCount:       80,
	}
	if kind == models.OutcomeFailure {
		rec.PlayTime = 70 * time.Second
		rec.Outcome.Reason = "Suspicion reached maximum"
		rec.FinalSuspicion = 100
		rec.StagesCompleted = 3
		rec.Ledger = []models.SuspicionEntry{
			{At: 60 * time.Second, Amount: 60, Reason: "Stumbled", Total: 60},
			{At: 70 * time.Second, Amount: 40, Reason: "Wrong answer", Total: 100},
		}
	}
	return rec
}

// SeedSessions saves n records, alternating success and failure, and
// returns them in save order.
func SeedSessions(t TB, st store.Store, n int) []models.SessionRecord {
	t.Helper()
	recs := make([]models.SessionRecord, 0, n)
	for i := 0; i < n; i++ {
		kind := models.OutcomeSuccess
		if i%2 == 1 {
			kind = models.OutcomeFailure
		}
		rec := SessionRecord(i, kind)
		if err := st.SaveSession(rec); err != nil {
			t.Fatalf("failed to save session %s: %v", rec.ID, err)
		}
		recs = append(recs, rec)
	}
	return recs
}

// MustMarshalJSON marshals an object to JSON and fails test on error.
func MustMarshalJSON(t TB, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}
	return data
}

// MustUnmarshalJSON unmarshals JSON data into target and fails test on error.
func MustUnmarshalJSON(t TB, data []byte, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, target); err != nil {
		t.Fatalf("failed to unmarshal JSON: %v", err)
	}
}
