package httpapi

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"

	"proctor-integrity/backend/internal/canonical"
	"proctor-integrity/backend/internal/ingest"
	"proctor-integrity/backend/internal/server/middleware"
	"proctor-integrity/backend/internal/signal"
)

var errMalformedBatch = errors.New("body must be an object with a signals array")

type batchResponse struct {
	Accepted    int      `json:"accepted"`
	Rejected    int      `json:"rejected"`
	RejectedIDs []string `json:"rejectedIds"`
}

// handleSignalBatch ingests {"signals":[...]}. Per-signal rejection reasons stay in server logs.
func (s *Server) handleSignalBatch(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ingest == nil {
		writeError(w, http.StatusNotImplemented, "not_implemented")
		return
	}
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "body_too_large")
		return
	}
	wires, err := decodeBatch(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	res, err := s.deps.Ingest.Ingest(r.Context(), userID, wires)
	switch {
	case err == nil:
	case errors.Is(err, ingest.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	case errors.Is(err, ingest.ErrEmptyBatch):
		writeError(w, http.StatusBadRequest, "empty_batch")
		return
	case errors.Is(err, ingest.ErrBatchTooLarge):
		writeError(w, http.StatusBadRequest, "batch_too_large")
		return
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		log.Printf("httpapi: batch for user %s interrupted: %v", userID, err)
		writeError(w, http.StatusServiceUnavailable, "request_interrupted")
		return
	default:
		log.Printf("httpapi: ingest batch for user %s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	rejected := res.RejectedIDs
	if rejected == nil {
		rejected = []string{}
	}
	writeJSON(w, http.StatusOK, batchResponse{Accepted: res.Accepted, Rejected: res.Rejected, RejectedIDs: rejected})
}

// decodeBatch keeps every signal exactly as sent, numbers included, so signatures verify over the
// client's values. Elements that are not objects become empty signals and are rejected individually.
func decodeBatch(body []byte) ([]signal.Wire, error) {
	tree, err := canonical.Decode(body)
	if err != nil {
		return nil, err
	}
	obj, ok := tree.(map[string]any)
	if !ok {
		return nil, errMalformedBatch
	}
	items, ok := obj["signals"].([]any)
	if !ok {
		return nil, errMalformedBatch
	}
	wires := make([]signal.Wire, len(items))
	for i, item := range items {
		m, _ := item.(map[string]any)
		if m == nil {
			m = map[string]any{}
		}
		wires[i] = signal.Wire(m)
	}
	return wires, nil
}
