package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/nbakenov/tournament-core/models"
)

// VerificationLogRepository is append-only by contract: there is no update
// or delete, and retrieval is always time-ordered.
type VerificationLogRepository interface {
	Append(ctx context.Context, exec SQLExecutor, entry *models.VerificationLogEntry) error
	ListByMatch(ctx context.Context, matchID int) ([]*models.VerificationLogEntry, error)
	ListBySubmission(ctx context.Context, submissionID uuid.UUID) ([]*models.VerificationLogEntry, error)
}

type postgresVerificationLogRepository struct {
	db *sql.DB
}

func NewPostgresVerificationLogRepository(db *sql.DB) VerificationLogRepository {
	return &postgresVerificationLogRepository{db: db}
}

func (r *postgresVerificationLogRepository) Append(ctx context.Context, exec SQLExecutor, e *models.VerificationLogEntry) error {
	query := `
		INSERT INTO result_verification_log (match_id, submission_id, step, status, detail, actor_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := exec.QueryRowContext(ctx, query,
		e.MatchID, e.SubmissionID, e.Step, e.Status, e.Detail, e.ActorID,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append verification log entry: %w", err)
	}
	return nil
}

func (r *postgresVerificationLogRepository) ListByMatch(ctx context.Context, matchID int) ([]*models.VerificationLogEntry, error) {
	query := `
		SELECT id, match_id, submission_id, step, status, detail, actor_id, created_at
		FROM result_verification_log
		WHERE match_id = $1 ORDER BY created_at ASC, id ASC`

	return r.list(ctx, query, matchID)
}

func (r *postgresVerificationLogRepository) ListBySubmission(ctx context.Context, submissionID uuid.UUID) ([]*models.VerificationLogEntry, error) {
	query := `
		SELECT id, match_id, submission_id, step, status, detail, actor_id, created_at
		FROM result_verification_log
		WHERE submission_id = $1 ORDER BY created_at ASC, id ASC`

	return r.list(ctx, query, submissionID)
}

func (r *postgresVerificationLogRepository) list(ctx context.Context, query string, arg interface{}) ([]*models.VerificationLogEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query verification log: %w", err)
	}
	defer rows.Close()

	entries := make([]*models.VerificationLogEntry, 0)
	for rows.Next() {
		e := &models.VerificationLogEntry{}
		if scanErr := rows.Scan(&e.ID, &e.MatchID, &e.SubmissionID, &e.Step, &e.Status, &e.Detail, &e.ActorID, &e.CreatedAt); scanErr != nil {
			return nil, fmt.Errorf("failed to scan verification log row: %w", scanErr)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("verification log rows iteration error: %w", err)
	}
	return entries, nil
}
