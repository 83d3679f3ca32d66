package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/nbakenov/tournament-core/models"
)

var ErrSubmissionNotFound = errors.New("result submission not found")

type SubmissionRepository interface {
	Create(ctx context.Context, exec SQLExecutor, submission *models.ResultSubmission) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ResultSubmission, error)
	ListByMatch(ctx context.Context, matchID int) ([]*models.ResultSubmission, error)
}

type postgresSubmissionRepository struct {
	db *sql.DB
}

func NewPostgresSubmissionRepository(db *sql.DB) SubmissionRepository {
	return &postgresSubmissionRepository{db: db}
}

func (r *postgresSubmissionRepository) Create(ctx context.Context, exec SQLExecutor, s *models.ResultSubmission) error {
	query := `
		INSERT INTO result_submissions (id, match_id, submitter_id, submitter_slot, score1, score2)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`

	err := exec.QueryRowContext(ctx, query,
		s.ID, s.MatchID, s.SubmitterID, s.SubmitterSlot, s.Score1, s.Score2,
	).Scan(&s.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert result submission: %w", err)
	}
	return nil
}

func (r *postgresSubmissionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ResultSubmission, error) {
	query := `
		SELECT id, match_id, submitter_id, submitter_slot, score1, score2, created_at
		FROM result_submissions WHERE id = $1`

	s := &models.ResultSubmission{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&s.ID, &s.MatchID, &s.SubmitterID, &s.SubmitterSlot, &s.Score1, &s.Score2, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("failed to scan result submission %s: %w", id, err)
	}
	return s, nil
}

func (r *postgresSubmissionRepository) ListByMatch(ctx context.Context, matchID int) ([]*models.ResultSubmission, error) {
	query := `
		SELECT id, match_id, submitter_id, submitter_slot, score1, score2, created_at
		FROM result_submissions WHERE match_id = $1 ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query submissions for match %d: %w", matchID, err)
	}
	defer rows.Close()

	submissions := make([]*models.ResultSubmission, 0)
	for rows.Next() {
		s := &models.ResultSubmission{}
		if scanErr := rows.Scan(&s.ID, &s.MatchID, &s.SubmitterID, &s.SubmitterSlot, &s.Score1, &s.Score2, &s.CreatedAt); scanErr != nil {
			return nil, fmt.Errorf("failed to scan submission row: %w", scanErr)
		}
		submissions = append(submissions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("submission rows iteration error: %w", err)
	}
	return submissions, nil
}
