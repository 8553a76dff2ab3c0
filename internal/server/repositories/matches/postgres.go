package matches

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/avoronov/demorelay/internal/common"
	"github.com/avoronov/demorelay/internal/dbx"
	"github.com/avoronov/demorelay/internal/server/models"
)

// PostgresRepository implements the match store over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// UpsertByCode inserts the match or merges status into an existing row.
// The status_rank guard makes the statement a no-op instead of a downgrade
// when the stored status is already further along; owner_id is kept from
// the first sighting.
func (r *PostgresRepository) UpsertByCode(ctx context.Context, match *models.Match) error {
	query := `
		INSERT INTO matches (match_code, owner_id, status, status_rank)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (match_code)
		DO UPDATE SET
			status = EXCLUDED.status,
			status_rank = EXCLUDED.status_rank,
			updated_at = now()
			WHERE matches.status_rank < EXCLUDED.status_rank;
	`
	_, err := r.db.ExecContext(ctx, query,
		match.MatchCode, match.OwnerID, match.Status, match.Status.Rank())
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// FindByStatus returns a snapshot of all matches currently in the given status.
func (r *PostgresRepository) FindByStatus(ctx context.Context, status models.MatchStatus) ([]*models.Match, error) {
	query := `
		SELECT match_code, match_id, owner_id, artifact_url, upload_ref, status, observed_at, updated_at
		FROM matches
		WHERE status = $1
	`
	rows, err := r.db.QueryContext(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Match
	for rows.Next() {
		var item models.Match
		if err := rows.Scan(&item.MatchCode, &item.MatchID, &item.OwnerID, &item.ArtifactURL,
			&item.UploadRef, &item.Status, &item.ObservedAt, &item.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// GetByCode returns the match with the given share code.
func (r *PostgresRepository) GetByCode(ctx context.Context, code string) (*models.Match, error) {
	query := `
		SELECT match_code, match_id, owner_id, artifact_url, upload_ref, status, observed_at, updated_at
		FROM matches
		WHERE match_code = $1
	`
	result := &models.Match{}
	err := r.db.QueryRowContext(ctx, query, code).Scan(&result.MatchCode, &result.MatchID,
		&result.OwnerID, &result.ArtifactURL, &result.UploadRef, &result.Status,
		&result.ObservedAt, &result.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

// TryClaim compare-and-swaps the status column. Exactly one concurrent
// caller observes a single affected row; everyone else gets false.
func (r *PostgresRepository) TryClaim(ctx context.Context, code string, from, to models.MatchStatus) (bool, error) {
	query := `
		UPDATE matches
		SET status = $3, status_rank = $4, updated_at = now()
		WHERE match_code = $1 AND status = $2
	`
	res, err := r.db.ExecContext(ctx, query, code, from, to, to.Rank())
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	return n == 1, nil
}

// MarkResolved performs the QUEUED→RESOLVED swap while writing the
// write-once resolution fields in the same statement.
func (r *PostgresRepository) MarkResolved(ctx context.Context, code, matchID, artifactURL string) (bool, error) {
	query := `
		UPDATE matches
		SET status = $4, status_rank = $5, match_id = $2, artifact_url = $3, updated_at = now()
		WHERE match_code = $1 AND status = $6
	`
	res, err := r.db.ExecContext(ctx, query, code, matchID, artifactURL,
		models.StatusResolved, models.StatusResolved.Rank(), models.StatusQueued)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	return n == 1, nil
}

// Update merges the non-nil fields into the row. The caller must hold the
// claim on the match; there is no status guard here.
func (r *PostgresRepository) Update(ctx context.Context, code string, upd Update) error {
	var status sql.NullString
	var rank sql.NullInt64
	if upd.Status != nil {
		status = sql.NullString{String: string(*upd.Status), Valid: true}
		rank = sql.NullInt64{Int64: int64(upd.Status.Rank()), Valid: true}
	}
	var uploadRef sql.NullString
	if upd.UploadRef != nil {
		uploadRef = sql.NullString{String: *upd.UploadRef, Valid: true}
	}

	query := `
		UPDATE matches
		SET status = COALESCE($2, status),
			status_rank = COALESCE($3, status_rank),
			upload_ref = COALESCE($4, upload_ref),
			updated_at = now()
		WHERE match_code = $1
	`
	res, err := r.db.ExecContext(ctx, query, code, status, rank, uploadRef)
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
