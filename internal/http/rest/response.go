package rest

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/bwise1/hazard_map/util"
	"github.com/bwise1/hazard_map/util/tracing"
)

// ServerResponse is the envelope every JSON endpoint answers with.
type ServerResponse struct {
	Status     string      `json:"status"`
	Message    string      `json:"message"`
	StatusCode int         `json:"-"`
	Data       interface{} `json:"data,omitempty"`
}

func respondWithError(err error, message, status string, tc *tracing.Context) *ServerResponse {
	attrs := []any{"error", err, "status", status}
	if tc != nil {
		attrs = append(attrs, "request_id", tc.RequestID, "source", tc.RequestSource)
	}
	if util.StatusCode(status) >= http.StatusInternalServerError {
		slog.Error(message, attrs...)
	} else {
		slog.Debug(message, attrs...)
	}

	return &ServerResponse{
		Status:     status,
		Message:    message,
		StatusCode: util.StatusCode(status),
	}
}

func writeErrorResponse(w http.ResponseWriter, err error, status, message string) {
	slog.Debug(message, "error", err, "status", status)

	resp := ServerResponse{Status: status, Message: message}
	respByte, marshalErr := json.Marshal(resp)
	if marshalErr != nil {
		http.Error(w, message, util.StatusCode(status))
		return
	}
	writeJSONResponse(w, respByte, util.StatusCode(status))
}

func writeJSONResponse(w http.ResponseWriter, body []byte, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(body)
}
