// Package resolver turns queued share codes into resolved matches by asking
// the game-coordinator session for the match's download URL.
package resolver

import (
	"context"
	"sync"
	"time"

	"github.com/avoronov/demorelay/internal/coordinator"
	"github.com/avoronov/demorelay/internal/logging"
	"github.com/avoronov/demorelay/internal/server/models"
)

// defaultPendingTTL is how long a fired resolution request suppresses
// re-requests for the same code. Requests are fire-and-forget, so a request
// the session lost is retried after the TTL expires.
const defaultPendingTTL = 2 * time.Minute

type MatchStore interface {
	FindByStatus(ctx context.Context, status models.MatchStatus) ([]*models.Match, error)
	MarkResolved(ctx context.Context, code, matchID, artifactURL string) (bool, error)
}

type Session interface {
	Ready() bool
	RequestResolution(ctx context.Context, shareCode string) error
	Events() <-chan coordinator.MatchEvent
}

// Resolver requests resolution for queued matches, one per tick, and applies
// the session's match events to storage.
type Resolver struct {
	matches    MatchStore
	session    Session
	logger     logging.Logger
	pendingTTL time.Duration

	mu      sync.Mutex
	pending map[string]time.Time
}

func NewResolver(matches MatchStore, session Session, logger logging.Logger) *Resolver {
	return &Resolver{
		matches:    matches,
		session:    session,
		logger:     logger.With("module", "resolver"),
		pendingTTL: defaultPendingTTL,
		pending:    make(map[string]time.Time),
	}
}

// Tick requests resolution for one queued match. It is a no-op while the
// session is not ready or while every queued match has a request in flight.
func (r *Resolver) Tick(ctx context.Context) {
	if !r.session.Ready() {
		r.logger.Debug(ctx, "session not ready, skipping resolution tick")
		return
	}

	queued, err := r.matches.FindByStatus(ctx, models.StatusQueued)
	if err != nil {
		r.logger.Error(ctx, "listing queued matches failed", "error", err)
		return
	}

	for _, m := range queued {
		if r.inFlight(m.MatchCode) {
			continue
		}
		if err := r.session.RequestResolution(ctx, m.MatchCode); err != nil {
			r.logger.Warn(ctx, "resolution request failed",
				"match_code", m.MatchCode, "error", err)
			return
		}
		r.markPending(m.MatchCode)
		r.logger.Info(ctx, "requested match resolution", "match_code", m.MatchCode)
		return
	}
}

// Run consumes match events from the session until the context is cancelled
// or the event channel is closed.
func (r *Resolver) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-r.session.Events():
			if !ok {
				return
			}
			r.handleEvent(ctx, ev)
		}
	}
}

func (r *Resolver) handleEvent(ctx context.Context, ev coordinator.MatchEvent) {
	r.clearPending(ev.ShareCode)

	if ev.ArtifactURL == "" {
		// The demo is not downloadable yet. The match stays queued and is
		// re-requested on a later tick.
		r.logger.Warn(ctx, "match resolved without download url, keeping queued",
			"match_code", ev.ShareCode, "match_id", ev.MatchID)
		return
	}

	ok, err := r.matches.MarkResolved(ctx, ev.ShareCode, ev.MatchID, ev.ArtifactURL)
	if err != nil {
		r.logger.Error(ctx, "recording resolution failed",
			"match_code", ev.ShareCode, "error", err)
		return
	}
	if !ok {
		r.logger.Warn(ctx, "discarding event for unknown or already resolved match",
			"match_code", ev.ShareCode)
		return
	}
	r.logger.Info(ctx, "match resolved",
		"match_code", ev.ShareCode, "match_id", ev.MatchID)
}

func (r *Resolver) inFlight(code string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	at, ok := r.pending[code]
	if !ok {
		return false
	}
	if time.Since(at) > r.pendingTTL {
		delete(r.pending, code)
		return false
	}
	return true
}

func (r *Resolver) markPending(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[code] = time.Now()
}

func (r *Resolver) clearPending(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pending, code)
}
