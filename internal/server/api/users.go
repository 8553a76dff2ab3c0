package api

import (
	"encoding/json"
	"net/http"

	"github.com/avoronov/demorelay/internal/server/models"
)

type settingsRequest struct {
	AccountID            string `json:"accountId"`
	DisplayName          string `json:"displayName"`
	ResolutionCredential string `json:"resolutionCredential"`
	KnownCode            string `json:"knownCode"`
}

// handleUpdateSettings stores the per-account discovery settings the walker
// needs. Settings changes invalidate the cached history.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AccountID == "" {
		s.respondError(w, http.StatusBadRequest, "accountId is required")
		return
	}

	ctx := r.Context()
	err := s.users.UpsertSettings(ctx, &models.User{
		AccountID:            req.AccountID,
		DisplayName:          req.DisplayName,
		ResolutionCredential: req.ResolutionCredential,
		KnownCode:            req.KnownCode,
	})
	if err != nil {
		s.logger.Error(ctx, "storing settings failed", "account_id", req.AccountID, "error", err)
		s.respondError(w, http.StatusInternalServerError, "storing settings failed")
		return
	}

	s.invalidateHistory(ctx, req.AccountID)
	w.WriteHeader(http.StatusNoContent)
}
