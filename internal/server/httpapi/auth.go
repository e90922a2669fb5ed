package httpapi

import (
	"errors"
	"log"
	"net/http"
	"time"

	identityservice "proctor-integrity/backend/internal/identity/service"
)

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type tokenResponse struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	ExpiresAt        time.Time `json:"expiresAt"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
	UserID           string    `json:"userId"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.deps.Auth == nil {
		writeError(w, http.StatusNotImplemented, "not_implemented")
		return
	}
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil || req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	res, err := s.deps.Auth.Refresh(r.Context(), req.RefreshToken)
	switch {
	case err == nil:
	case errors.Is(err, identityservice.ErrRefreshTokenReuse):
		writeError(w, http.StatusUnauthorized, "refresh_token_reuse")
		return
	case errors.Is(err, identityservice.ErrRefreshTokenExpired):
		writeError(w, http.StatusUnauthorized, "refresh_token_expired")
		return
	case errors.Is(err, identityservice.ErrInvalidRefreshToken):
		writeError(w, http.StatusUnauthorized, "invalid_refresh_token")
		return
	default:
		log.Printf("httpapi: refresh: %v", err)
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:      res.AccessToken,
		RefreshToken:     res.RefreshToken,
		ExpiresAt:        res.ExpiresAt,
		RefreshExpiresAt: res.RefreshExpiresAt,
		UserID:           res.UserID,
	})
}

// handleLogout always answers 204 so the response says nothing about the token.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err == nil && req.RefreshToken != "" && s.deps.Auth != nil {
		if err := s.deps.Auth.Logout(r.Context(), req.RefreshToken); err != nil {
			log.Printf("httpapi: logout: %v", err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
