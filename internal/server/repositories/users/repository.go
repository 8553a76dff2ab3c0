package users

import (
	"context"

	"github.com/avoronov/demorelay/internal/server/models"
)

// Repository stores per-account discovery state. The auth layer owns the
// rest of the user entity; only the fields the walker and the settings
// endpoint need live here.
type Repository interface {
	// UpsertSettings creates or updates an account's display name,
	// resolution credential and known code.
	UpsertSettings(ctx context.Context, user *models.User) error

	// GetByAccountID returns the account, or common.ErrNotFound.
	GetByAccountID(ctx context.Context, accountID string) (*models.User, error)

	// ListEligible returns accounts that have both a resolution credential
	// and a known code, i.e. those the walker can advance.
	ListEligible(ctx context.Context) ([]*models.User, error)

	// UpdateKnownCode persists the walker's advanced cursor in one write.
	UpdateKnownCode(ctx context.Context, accountID, code string) error
}
