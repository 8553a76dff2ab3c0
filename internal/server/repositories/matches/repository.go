package matches

import (
	"context"

	"github.com/avoronov/demorelay/internal/server/models"
)

// Update is an unconditional field merge applied to a match that the caller
// has already claimed exclusively. Nil fields are left untouched.
type Update struct {
	Status    *models.MatchStatus
	UploadRef *string
}

// Repository is the match store contract the pipeline coordinates through.
//
// TryClaim is the only safe way to take ownership of a match for a stage:
// it performs an atomic compare-and-swap on status, so at most one worker
// wins even when scheduler ticks overlap. A store error from any method
// means the operation did not happen; callers must leave the match alone
// and retry on their next tick.
type Repository interface {
	// UpsertByCode creates the match or merges into the existing row keyed
	// by share code. It never downgrades status: the write is dropped when
	// the stored status ranks at or above the incoming one.
	UpsertByCode(ctx context.Context, match *models.Match) error

	// FindByStatus returns an unordered snapshot of matches in the given status.
	FindByStatus(ctx context.Context, status models.MatchStatus) ([]*models.Match, error)

	// GetByCode returns the match with the given share code, or common.ErrNotFound.
	GetByCode(ctx context.Context, code string) (*models.Match, error)

	// TryClaim atomically moves the match from status `from` to `to`.
	// It reports false, without error, when the current status is not `from`.
	TryClaim(ctx context.Context, code string, from, to models.MatchStatus) (bool, error)

	// MarkResolved moves a QUEUED match to RESOLVED, recording the external
	// match id and artifact URL in the same statement. It reports false when
	// the match is missing or no longer QUEUED.
	MarkResolved(ctx context.Context, code, matchID, artifactURL string) (bool, error)

	// Update merges fields into an already-claimed match.
	Update(ctx context.Context, code string, upd Update) error
}
