// Package api exposes the inbound HTTP surface. Authentication is owned by
// the fronting layer; handlers trust the account id in the request.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/avoronov/demorelay/internal/logging"
	"github.com/avoronov/demorelay/internal/server/models"
)

type MatchStore interface {
	UpsertByCode(ctx context.Context, match *models.Match) error
	GetByCode(ctx context.Context, code string) (*models.Match, error)
}

type UserStore interface {
	UpsertSettings(ctx context.Context, user *models.User) error
	GetByAccountID(ctx context.Context, accountID string) (*models.User, error)
}

type CodeResolver interface {
	NextCode(ctx context.Context, accountID, credential, knownCode string) (string, error)
}

// Cache stores serialized history responses. A nil Cache disables caching.
type Cache interface {
	Get(ctx context.Context, accountID string) ([]byte, error)
	Set(ctx context.Context, accountID string, data []byte) error
	Invalidate(ctx context.Context, accountID string) error
}

type Server struct {
	matches  MatchStore
	users    UserStore
	resolver CodeResolver
	cache    Cache
	logger   logging.Logger
}

func NewServer(matches MatchStore, users UserStore, resolver CodeResolver, cache Cache, logger logging.Logger) *Server {
	return &Server{
		matches:  matches,
		users:    users,
		resolver: resolver,
		cache:    cache,
		logger:   logger.With("module", "api"),
	}
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/matches/request", s.handleRequestMatch).Methods(http.MethodPost)
	r.HandleFunc("/api/matches/history", s.handleHistory).Methods(http.MethodGet)
	r.HandleFunc("/api/users/settings", s.handleUpdateSettings).Methods(http.MethodPut)
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	return r
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error(context.Background(), "writing response failed", "error", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, msg string) {
	s.respondJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
