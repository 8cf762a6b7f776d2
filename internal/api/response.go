package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/tazhate/fiscalbot/internal/domain"
	"github.com/tazhate/fiscalbot/internal/service"
	"github.com/tazhate/fiscalbot/internal/storage"
)

// maxBodyBytes limits JSON request bodies.
const maxBodyBytes = 1 << 20

type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIResponse{Success: true, Data: data})
}

func jsonOK(w http.ResponseWriter, data any) {
	jsonResponse(w, http.StatusOK, data)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIResponse{Success: false, Error: msg})
}

// serviceError maps service and storage errors to HTTP statuses.
func (h *Handler) serviceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		jsonError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, service.ErrInvalidInput):
		jsonError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, storage.ErrDuplicateObligation):
		jsonError(w, err.Error(), http.StatusConflict)
	default:
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		jsonError(w, "internal error", http.StatusInternalServerError)
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: malformed JSON body: %v", service.ErrInvalidInput, err)
	}
	return nil
}

// civil keeps the calendar day written by the client, at midnight in loc.
func civil(t time.Time, loc *time.Location) time.Time {
	if t.IsZero() {
		return t
	}
	return domain.Date(t.Year(), t.Month(), t.Day(), loc)
}

// dateQuery parses an optional YYYY-MM-DD query parameter.
func dateQuery(r *http.Request, name string, loc *time.Location) (time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := domain.ParseDate(v, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be YYYY-MM-DD", service.ErrInvalidInput, name)
	}
	return t, nil
}
