package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nbakenov/tournament-core/models"
)

var ErrTournamentNotFound = errors.New("tournament not found")

type TournamentRepository interface {
	Create(ctx context.Context, exec SQLExecutor, tournament *models.Tournament) error
	GetByID(ctx context.Context, id int) (*models.Tournament, error)
	UpdateRoundCount(ctx context.Context, exec SQLExecutor, id, roundCount int) error
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

func (r *postgresTournamentRepository) Create(ctx context.Context, exec SQLExecutor, t *models.Tournament) error {
	query := `
		INSERT INTO tournaments (name, format, round_count, organizer_id, group_count, advancement_count)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := exec.QueryRowContext(ctx, query,
		t.Name,
		t.Format,
		t.RoundCount,
		t.OrganizerID,
		t.GroupCount,
		t.AdvancementCount,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert tournament: %w", err)
	}
	return nil
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	query := `
		SELECT id, name, format, round_count, organizer_id, group_count, advancement_count, created_at
		FROM tournaments
		WHERE id = $1`

	t := &models.Tournament{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&t.ID,
		&t.Name,
		&t.Format,
		&t.RoundCount,
		&t.OrganizerID,
		&t.GroupCount,
		&t.AdvancementCount,
		&t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to scan tournament %d: %w", id, err)
	}
	return t, nil
}

func (r *postgresTournamentRepository) UpdateRoundCount(ctx context.Context, exec SQLExecutor, id, roundCount int) error {
	result, err := exec.ExecContext(ctx,
		`UPDATE tournaments SET round_count = $1 WHERE id = $2`, roundCount, id)
	if err != nil {
		return fmt.Errorf("failed to update tournament %d round count: %w", id, err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}
