package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nbakenov/tournament-core/models"
)

var ErrGroupNotFound = errors.New("group not found")

type GroupRepository interface {
	Create(ctx context.Context, exec SQLExecutor, group *models.Group) error
	GetByID(ctx context.Context, id int) (*models.Group, error)
	ListByTournament(ctx context.Context, tournamentID int) ([]*models.Group, error)
	AddMember(ctx context.Context, exec SQLExecutor, member *models.GroupMember) error
	ListMembers(ctx context.Context, groupID int) ([]models.GroupMember, error)
}

type postgresGroupRepository struct {
	db *sql.DB
}

func NewPostgresGroupRepository(db *sql.DB) GroupRepository {
	return &postgresGroupRepository{db: db}
}

func (r *postgresGroupRepository) Create(ctx context.Context, exec SQLExecutor, g *models.Group) error {
	query := `
		INSERT INTO groups (tournament_id, name, advancement_count)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := exec.QueryRowContext(ctx, query, g.TournamentID, g.Name, g.AdvancementCount).
		Scan(&g.ID, &g.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert group: %w", err)
	}
	return nil
}

func (r *postgresGroupRepository) GetByID(ctx context.Context, id int) (*models.Group, error) {
	query := `
		SELECT id, tournament_id, name, advancement_count, created_at
		FROM groups WHERE id = $1`

	g := &models.Group{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&g.ID, &g.TournamentID, &g.Name, &g.AdvancementCount, &g.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to scan group %d: %w", id, err)
	}
	return g, nil
}

func (r *postgresGroupRepository) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Group, error) {
	query := `
		SELECT id, tournament_id, name, advancement_count, created_at
		FROM groups WHERE tournament_id = $1 ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query groups for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	groups := make([]*models.Group, 0)
	for rows.Next() {
		g := &models.Group{}
		if scanErr := rows.Scan(&g.ID, &g.TournamentID, &g.Name, &g.AdvancementCount, &g.CreatedAt); scanErr != nil {
			return nil, fmt.Errorf("failed to scan group row: %w", scanErr)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("group rows iteration error: %w", err)
	}
	return groups, nil
}

func (r *postgresGroupRepository) AddMember(ctx context.Context, exec SQLExecutor, m *models.GroupMember) error {
	query := `
		INSERT INTO group_members (group_id, participant_id, seed)
		VALUES ($1, $2, $3)`

	if _, err := exec.ExecContext(ctx, query, m.GroupID, m.ParticipantID, m.Seed); err != nil {
		return fmt.Errorf("failed to insert group member: %w", err)
	}
	return nil
}

func (r *postgresGroupRepository) ListMembers(ctx context.Context, groupID int) ([]models.GroupMember, error) {
	query := `
		SELECT group_id, participant_id, seed
		FROM group_members WHERE group_id = $1 ORDER BY seed ASC`

	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to query members for group %d: %w", groupID, err)
	}
	defer rows.Close()

	members := make([]models.GroupMember, 0)
	for rows.Next() {
		var m models.GroupMember
		if scanErr := rows.Scan(&m.GroupID, &m.ParticipantID, &m.Seed); scanErr != nil {
			return nil, fmt.Errorf("failed to scan group member row: %w", scanErr)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("group member rows iteration error: %w", err)
	}
	return members, nil
}
