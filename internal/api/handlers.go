package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/BTreeMap/BodyControl/internal/input"
	"github.com/BTreeMap/BodyControl/internal/models"
	"github.com/BTreeMap/BodyControl/internal/scheduler"
)

// ActionRequest names an action directly or by key code.
type ActionRequest struct {
	Action string `json:"action,omitempty"`
	Key    string `json:"key,omitempty"`
}

// ActionResult is returned for an applied action.
type ActionResult struct {
	Action   models.Action  `json:"action"`
	Acted    bool           `json:"acted"`
	Cue      models.Cue     `json:"cue"`
	Feedback string         `json:"feedback"`
	State    scheduler.View `json:"state"`
}

// DebriefResult is the body of a ready debrief.
type DebriefResult struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

func allow(w http.ResponseWriter, r *http.Request, method, handler string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	slog.Warn("Server."+handler+": method not allowed", "method", r.Method)
	w.WriteHeader(http.StatusMethodNotAllowed)
	return false
}

func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), DefaultRequestTimeout)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet, "healthHandler") {
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]any{
		"store": s.st != nil,
	}))
}

func (s *Server) controlsHandler(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet, "controlsHandler") {
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]any{
		"help":     input.Controls,
		"bindings": s.keys.Bindings(),
	}))
}

func (s *Server) startHandler(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost, "startHandler") {
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()
	v, err := s.host.Start(ctx)
	if err != nil {
		writeHostError(w, "startHandler", err)
		return
	}
	slog.Info("Server.startHandler: session started", "id", v.ID)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Session started", v))
}

func (s *Server) resetHandler(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost, "resetHandler") {
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()
	v, err := s.host.Reset(ctx)
	if err != nil {
		writeHostError(w, "resetHandler", err)
		return
	}
	slog.Info("Server.resetHandler: session reset", "id", v.ID)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Session reset", v))
}

func (s *Server) stateHandler(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet, "stateHandler") {
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()
	v, err := s.host.View(ctx)
	if err != nil {
		writeHostError(w, "stateHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(v))
}

// resolveAction turns a request into an action. ok is false, with err nil,
// when a key press was dropped as a repeat.
func (s *Server) resolveAction(req ActionRequest, now time.Time) (a models.Action, ok bool, err error) {
	switch {
	case req.Action != "":
		a, err = models.ParseAction(req.Action)
		return a, err == nil, err
	case req.Key != "":
		if _, err := s.keys.Bindings().Lookup(req.Key); err != nil {
			return "", false, err
		}
		a, ok = s.keys.KeyDown(req.Key, now)
		return a, ok, nil
	default:
		return "", false, errors.New("missing required field: action or key")
	}
}

// applyAction runs req against the host. A nil result with a nil error
// means the key press was filtered.
func (s *Server) applyAction(ctx context.Context, req ActionRequest) (*ActionResult, error) {
	a, ok, err := s.resolveAction(req, time.Now())
	if err != nil || !ok {
		return nil, err
	}
	acted, v, err := s.host.Act(ctx, a)
	if err != nil {
		return nil, err
	}
	return &ActionResult{
		Action:   a,
		Acted:    acted,
		Cue:      a.Cue(),
		Feedback: input.Feedback(a),
		State:    v,
	}, nil
}

func (s *Server) actionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if !allow(w, r, http.MethodPost, "actionHandler") {
		return
	}
	var req ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.actionHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()
	res, err := s.applyAction(ctx, req)
	switch {
	case errors.Is(err, models.ErrNotStarted):
		writeJSONResponse(w, http.StatusConflict, models.Error(err.Error()))
		return
	case errors.Is(err, models.ErrUnknownAction):
		slog.Warn("Server.actionHandler: unknown action", "action", req.Action, "key", req.Key)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	case errors.Is(err, scheduler.ErrStopped), errors.Is(err, context.DeadlineExceeded):
		writeHostError(w, "actionHandler", err)
		return
	case err != nil:
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	case res == nil:
		writeJSONResponse(w, http.StatusOK, models.Ignored("Repeat key press dropped"))
		return
	}

	slog.Debug("Server.actionHandler: action applied", "action", res.Action, "acted", res.Acted)
	if !res.Acted {
		writeJSONResponse(w, http.StatusOK, models.NewAPIResponseBuilder().
			WithStatus(models.APIStatusIgnored).
			WithMessage("Action had no effect").
			WithResult(res).
			Build())
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(res))
}

func (s *Server) requireStore(w http.ResponseWriter, handler string) bool {
	if s.st != nil {
		return true
	}
	slog.Warn("Server."+handler+": no store configured")
	writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("Session history is not configured"))
	return false
}

func (s *Server) listSessionsHandler(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet, "listSessionsHandler") || !s.requireStore(w, "listSessionsHandler") {
		return
	}
	limit := DefaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	recs, err := s.st.ListSessions(limit)
	if err != nil {
		slog.Error("Server.listSessionsHandler: list failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list sessions"))
		return
	}
	slog.Debug("Server.listSessionsHandler: sessions listed", "count", len(recs))
	writeJSONResponse(w, http.StatusOK, models.Success(recs))
}

func (s *Server) getSessionHandler(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet, "getSessionHandler") || !s.requireStore(w, "getSessionHandler") {
		return
	}
	id := r.PathValue("id")
	rec, err := s.st.GetSession(id)
	if err != nil {
		slog.Error("Server.getSessionHandler: lookup failed", "id", id, "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load session"))
		return
	}
	if rec == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error(models.ErrSessionNotFound.Error()))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(rec))
}

func (s *Server) getDebriefHandler(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet, "getDebriefHandler") || !s.requireStore(w, "getDebriefHandler") {
		return
	}
	id := r.PathValue("id")
	rec, err := s.st.GetSession(id)
	if err != nil {
		slog.Error("Server.getDebriefHandler: lookup failed", "id", id, "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load session"))
		return
	}
	if rec == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error(models.ErrSessionNotFound.Error()))
		return
	}
	text, err := s.st.GetDebrief(id)
	if err != nil {
		slog.Error("Server.getDebriefHandler: lookup failed", "id", id, "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load debrief"))
		return
	}
	if text == "" {
		writeJSONResponse(w, http.StatusAccepted, models.SuccessWithMessage("Debrief pending", nil))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(DebriefResult{SessionID: id, Text: text}))
}
