// Package discovery advances each account's share-code chain and queues a
// match record for every newly discovered code.
package discovery

import (
	"context"
	"errors"

	"github.com/avoronov/demorelay/internal/common"
	"github.com/avoronov/demorelay/internal/logging"
	"github.com/avoronov/demorelay/internal/server/models"
)

// DefaultMaxSteps bounds one account's walk in a single run, so a
// misbehaving resolution API cannot keep the walker busy forever.
const DefaultMaxSteps = 100

// UserStore is the slice of account storage the walker needs.
type UserStore interface {
	ListEligible(ctx context.Context) ([]*models.User, error)
	UpdateKnownCode(ctx context.Context, accountID, code string) error
}

// MatchStore is the slice of match storage the walker needs.
type MatchStore interface {
	UpsertByCode(ctx context.Context, match *models.Match) error
}

// CodeResolver asks the external resolution API for the code following
// knownCode. It returns common.ErrNoNewerMatch when the chain is exhausted.
type CodeResolver interface {
	NextCode(ctx context.Context, accountID, credential, knownCode string) (string, error)
}

// Walker performs one discovery pass over all eligible accounts per Run.
type Walker struct {
	users    UserStore
	matches  MatchStore
	resolver CodeResolver
	maxSteps int
	logger   logging.Logger
}

func NewWalker(users UserStore, matches MatchStore, resolver CodeResolver, maxSteps int, logger logging.Logger) *Walker {
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	return &Walker{
		users:    users,
		matches:  matches,
		resolver: resolver,
		maxSteps: maxSteps,
		logger:   logger.With("module", "discovery"),
	}
}

// Run walks every eligible account once. A failure for one account is
// logged and never aborts the walk for the others; a store failure listing
// accounts ends the run, to be retried on the next tick.
func (w *Walker) Run(ctx context.Context) {
	users, err := w.users.ListEligible(ctx)
	if err != nil {
		w.logger.Error(ctx, "listing eligible accounts failed", "error", err)
		return
	}

	w.logger.Info(ctx, "checking accounts for new matches", "accounts", len(users))

	for _, u := range users {
		if ctx.Err() != nil {
			return
		}
		if err := w.walkAccount(ctx, u); err != nil {
			w.logger.Error(ctx, "account walk failed",
				"account_id", u.AccountID, "error", err)
		}
	}
}

// walkAccount advances one account's cursor as far as the API allows,
// queueing a match per discovered code. The final cursor is persisted in a
// single write even when a later iteration failed, so codes already
// recorded are never re-walked.
func (w *Walker) walkAccount(ctx context.Context, u *models.User) error {
	cursor := u.KnownCode
	var walkErr error

	for i := 0; i < w.maxSteps; i++ {
		next, err := w.resolver.NextCode(ctx, u.AccountID, u.ResolutionCredential, cursor)
		if errors.Is(err, common.ErrNoNewerMatch) {
			break
		}
		if err != nil {
			walkErr = err
			break
		}

		err = w.matches.UpsertByCode(ctx, &models.Match{
			MatchCode: next,
			OwnerID:   u.AccountID,
			Status:    models.StatusQueued,
		})
		if err != nil {
			// The cursor must not advance past a code we failed to record.
			walkErr = err
			break
		}

		w.logger.Info(ctx, "discovered match", "account_id", u.AccountID, "match_code", next)
		cursor = next
	}

	if err := w.users.UpdateKnownCode(ctx, u.AccountID, cursor); err != nil {
		if walkErr != nil {
			return errors.Join(walkErr, err)
		}
		return err
	}
	return walkErr
}
