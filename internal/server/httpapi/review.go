package httpapi

import (
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"proctor-integrity/backend/internal/server/middleware"
	"proctor-integrity/backend/internal/tamper/review"
)

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	if s.deps.Review == nil {
		writeError(w, http.StatusNotImplemented, "not_implemented")
		return
	}
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	err := s.deps.Review.MarkReviewed(r.Context(), userID, chi.URLParam(r, "id"))
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, review.ErrFlagNotFound):
		writeError(w, http.StatusNotFound, "not_found")
	case errors.Is(err, review.ErrReviewDenied):
		writeError(w, http.StatusForbidden, "forbidden")
	default:
		log.Printf("httpapi: review flag: %v", err)
		writeError(w, http.StatusInternalServerError, "server_error")
	}
}
