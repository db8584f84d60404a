package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/BTreeMap/BodyControl/internal/models"
	"github.com/BTreeMap/BodyControl/internal/scheduler"
)

// Pre-marshaled fallback so a broken payload still yields valid JSON.
var fallbackErrorResponse []byte

func init() {
	var err error
	fallbackErrorResponse, err = json.Marshal(models.Error("Internal server error"))
	if err != nil {
		panic(fmt.Sprintf("Failed to marshal fallback error response at startup: %v", err))
	}
}

// writeJSONResponse writes response as JSON with statusCode.
func writeJSONResponse(w http.ResponseWriter, statusCode int, response interface{}) {
	// Marshal first so an encoding failure can still change the status.
	jsonData, err := json.Marshal(response)
	if err != nil {
		slog.Error("Server.writeJSONResponse: failed to marshal JSON response", "error", err)
		jsonData = fallbackErrorResponse
		statusCode = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, writeErr := w.Write(jsonData); writeErr != nil {
		slog.Error("Server.writeJSONResponse: failed to write JSON response", "error", writeErr)
	}
}

// writeHostError maps session host failures to a status code.
func writeHostError(w http.ResponseWriter, handler string, err error) {
	switch {
	case errors.Is(err, scheduler.ErrStopped):
		slog.Warn("Server."+handler+": host stopped", "error", err)
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("Session host is not running"))
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		slog.Warn("Server."+handler+": host did not respond", "error", err)
		writeJSONResponse(w, http.StatusGatewayTimeout, models.Error("Session host timed out"))
	default:
		slog.Error("Server."+handler+": host call failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Internal server error"))
	}
}
