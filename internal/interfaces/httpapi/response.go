package httpapi

import (
	"context"
	"net/http"

	sonic "github.com/bytedance/sonic"
	"github.com/streetlift/meet-engine/internal/usecase"
)

type responseEnvelope struct {
	Data  any            `json:"data,omitempty"`
	Error *responseError `json:"error,omitempty"`
}

type responseError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	_, span := startSpan(ctx, "httpapi.writeJSON")
	defer span.End()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = sonic.ConfigDefault.NewEncoder(w).Encode(payload)
}

func writeSuccess(ctx context.Context, w http.ResponseWriter, status int, data any) {
	writeJSON(ctx, w, status, responseEnvelope{Data: data})
}

func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	writeJSON(ctx, w, statusFor(err), responseEnvelope{
		Error: &responseError{Kind: usecase.Kind(err), Message: err.Error()},
	})
}

func statusFor(err error) int {
	switch usecase.Kind(err) {
	case "BadInput":
		return http.StatusBadRequest
	case "NotFound":
		return http.StatusNotFound
	case "Unauthorized":
		return http.StatusUnauthorized
	case "StateConflict", "NotReady", "AlreadySynced":
		return http.StatusConflict
	case "Transient":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
