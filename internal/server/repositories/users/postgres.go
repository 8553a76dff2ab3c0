package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/avoronov/demorelay/internal/common"
	"github.com/avoronov/demorelay/internal/dbx"
	"github.com/avoronov/demorelay/internal/server/models"
)

// PostgresRepository implements account storage over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) UpsertSettings(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (account_id, display_name, resolution_credential, known_code)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account_id)
		DO UPDATE SET
			display_name = EXCLUDED.display_name,
			resolution_credential = EXCLUDED.resolution_credential,
			known_code = EXCLUDED.known_code,
			updated_at = now();
	`
	_, err := r.db.ExecContext(ctx, query,
		user.AccountID, user.DisplayName, user.ResolutionCredential, user.KnownCode)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByAccountID(ctx context.Context, accountID string) (*models.User, error) {
	query := `
		SELECT account_id, display_name, resolution_credential, known_code
		FROM users
		WHERE account_id = $1
	`
	result := &models.User{}
	err := r.db.QueryRowContext(ctx, query, accountID).Scan(
		&result.AccountID, &result.DisplayName, &result.ResolutionCredential, &result.KnownCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) ListEligible(ctx context.Context) ([]*models.User, error) {
	query := `
		SELECT account_id, display_name, resolution_credential, known_code
		FROM users
		WHERE resolution_credential <> '' AND known_code <> ''
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.User
	for rows.Next() {
		var item models.User
		if err := rows.Scan(&item.AccountID, &item.DisplayName,
			&item.ResolutionCredential, &item.KnownCode); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) UpdateKnownCode(ctx context.Context, accountID, code string) error {
	query := `UPDATE users SET known_code = $2, updated_at = now() WHERE account_id = $1`
	res, err := r.db.ExecContext(ctx, query, accountID, code)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n != 1 {
		return common.ErrNotFound
	}
	return nil
}
