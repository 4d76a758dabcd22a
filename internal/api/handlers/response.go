package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wonny/pipeline-metrics/backend/internal/metrics"
	"github.com/wonny/pipeline-metrics/backend/internal/params"
	"github.com/wonny/pipeline-metrics/backend/internal/store"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// statusFor maps evaluation errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, params.ErrParameterInvalid):
		return http.StatusBadRequest
	case errors.Is(err, metrics.ErrUnknownView):
		return http.StatusNotFound
	case errors.Is(err, store.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// rawParams reads the parameter context from the query string
func rawParams(r *http.Request) params.Raw {
	q := r.URL.Query()
	return params.Raw{
		Start:    q.Get("start"),
		Pipeline: q.Get("pipeline"),
	}
}
