package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/avoronov/demorelay/internal/common"
	"github.com/avoronov/demorelay/internal/server/models"
)

// historyDepth caps how far past the account's known code the history
// endpoint looks ahead.
const historyDepth = 10

type requestMatchRequest struct {
	AccountID string `json:"accountId"`
	MatchCode string `json:"matchCode"`
}

// handleRequestMatch queues a specific share code for processing. The
// upsert is idempotent and never moves a match that is already further
// along back to queued.
func (s *Server) handleRequestMatch(w http.ResponseWriter, r *http.Request) {
	var req requestMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AccountID == "" || req.MatchCode == "" {
		s.respondError(w, http.StatusBadRequest, "accountId and matchCode are required")
		return
	}

	ctx := r.Context()
	err := s.matches.UpsertByCode(ctx, &models.Match{
		MatchCode: req.MatchCode,
		OwnerID:   req.AccountID,
		Status:    models.StatusQueued,
	})
	if err != nil {
		s.logger.Error(ctx, "queueing match failed", "match_code", req.MatchCode, "error", err)
		s.respondError(w, http.StatusInternalServerError, "storing match failed")
		return
	}

	s.invalidateHistory(ctx, req.AccountID)
	s.respondJSON(w, http.StatusAccepted, map[string]string{"matchCode": req.MatchCode, "status": string(models.StatusQueued)})
}

type historyEntry struct {
	MatchCode string `json:"matchCode"`
	Status    string `json:"status"`
	UploadRef string `json:"uploadRef,omitempty"`
}

type historyResponse struct {
	AccountID string         `json:"accountId"`
	Matches   []historyEntry `json:"matches"`
}

// handleHistory lists the account's recent share codes with their stored
// pipeline status. The walk past the known code is read-only; nothing is
// queued here. Responses are cached per account.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("accountId")
	if accountID == "" {
		s.respondError(w, http.StatusBadRequest, "accountId is required")
		return
	}

	ctx := r.Context()

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, accountID)
		if err != nil {
			s.logger.Warn(ctx, "history cache read failed", "account_id", accountID, "error", err)
		}
		if cached != nil {
			w.Header().Set("Content-Type", "application/json")
			w.Write(cached)
			return
		}
	}

	user, err := s.users.GetByAccountID(ctx, accountID)
	if errors.Is(err, common.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "unknown account")
		return
	}
	if err != nil {
		s.logger.Error(ctx, "loading account failed", "account_id", accountID, "error", err)
		s.respondError(w, http.StatusInternalServerError, "loading account failed")
		return
	}

	resp := historyResponse{AccountID: accountID, Matches: []historyEntry{}}

	cursor := user.KnownCode
	for i := 0; i < historyDepth && cursor != ""; i++ {
		next, err := s.resolver.NextCode(ctx, user.AccountID, user.ResolutionCredential, cursor)
		if errors.Is(err, common.ErrNoNewerMatch) {
			break
		}
		if err != nil {
			// Partial history is better than none when the resolution API
			// is flaky; what we collected so far still reflects the store.
			s.logger.Warn(ctx, "history walk interrupted", "account_id", accountID, "error", err)
			break
		}
		resp.Matches = append(resp.Matches, s.historyEntryFor(ctx, next))
		cursor = next
	}

	body, err := json.Marshal(resp)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "encoding response failed")
		return
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, accountID, body); err != nil {
			s.logger.Warn(ctx, "history cache write failed", "account_id", accountID, "error", err)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

func (s *Server) historyEntryFor(ctx context.Context, code string) historyEntry {
	m, err := s.matches.GetByCode(ctx, code)
	if errors.Is(err, common.ErrNotFound) {
		return historyEntry{MatchCode: code, Status: string(models.StatusNone)}
	}
	if err != nil {
		s.logger.Warn(ctx, "loading match for history failed", "match_code", code, "error", err)
		return historyEntry{MatchCode: code, Status: string(models.StatusNone)}
	}
	return historyEntry{MatchCode: code, Status: string(m.Status), UploadRef: m.UploadRef}
}

func (s *Server) invalidateHistory(ctx context.Context, accountID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, accountID); err != nil {
		s.logger.Warn(ctx, "history cache invalidation failed", "account_id", accountID, "error", err)
	}
}
