package handlers

import (
	"encoding/json"
	"net/http"

	"cryptotracker/internal/failure"
	"cryptotracker/internal/logger"

	"go.uber.org/zap"
)

type Response struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Message   string `json:"message"`
	Code      string `json:"code"`
	Kind      string `json:"kind"`
	Retryable bool   `json:"retryable"`
}

func errorBody(err error) (int, ErrorResponse) {
	fe := failure.From(err)
	return fe.Status(), ErrorResponse{
		Message:   fe.Message(),
		Code:      fe.Code,
		Kind:      string(fe.Kind),
		Retryable: fe.Retryable(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Error("Failed to encode JSON response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, traceID string, err error) {
	status, body := errorBody(err)
	fields := []zap.Field{
		zap.String("trace_id", traceID),
		zap.String("code", body.Code),
		zap.Int("status", status),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		logger.Log.Error("Request failed", fields...)
	} else {
		logger.Log.Info("Request rejected", fields...)
	}
	writeJSON(w, status, body)
}

func decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return failure.Invalid("invalid request body: %v", err)
	}
	return nil
}
