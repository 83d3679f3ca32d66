package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/nbakenov/tournament-core/models"
)

var ErrMatchNotFound = errors.New("match not found")

// MatchFilter narrows and pages match listings for the read API.
type MatchFilter struct {
	State  *models.MatchState
	Round  *int
	Limit  int
	Offset int
}

type MatchRepository interface {
	Create(ctx context.Context, exec SQLExecutor, match *models.Match) error
	GetByID(ctx context.Context, id int) (*models.Match, error)
	// GetByIDForUpdate locks the row for the duration of the caller's
	// transaction; every state-machine mutation goes through it.
	GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error)
	ListByTournament(ctx context.Context, tournamentID int, filter MatchFilter) ([]*models.Match, int, error)
	ListByGroup(ctx context.Context, groupID int) ([]*models.Match, error)
	Update(ctx context.Context, exec SQLExecutor, match *models.Match) error
	UpdateSlot(ctx context.Context, exec SQLExecutor, matchID, slot int, participantID, seed *int) error
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

const matchColumns = `id, tournament_id, group_id, round,
	slot1_participant_id, slot1_seed, slot1_is_bye,
	slot2_participant_id, slot2_seed, slot2_is_bye,
	score1, score2, state, winner_id, loser_id,
	slot1_checked_in, slot2_checked_in,
	scheduled_at, started_at, completed_at, created_at, lobby_info`

func scanMatch(row interface{ Scan(...interface{}) error }) (*models.Match, error) {
	m := &models.Match{}
	err := row.Scan(
		&m.ID, &m.TournamentID, &m.GroupID, &m.Round,
		&m.Slot1ParticipantID, &m.Slot1Seed, &m.Slot1IsBye,
		&m.Slot2ParticipantID, &m.Slot2Seed, &m.Slot2IsBye,
		&m.Score1, &m.Score2, &m.State, &m.WinnerID, &m.LoserID,
		&m.Slot1CheckedIn, &m.Slot2CheckedIn,
		&m.ScheduledAt, &m.StartedAt, &m.CompletedAt, &m.CreatedAt, &m.LobbyInfo,
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *postgresMatchRepository) Create(ctx context.Context, exec SQLExecutor, m *models.Match) error {
	query := `
		INSERT INTO matches
			(tournament_id, group_id, round,
			 slot1_participant_id, slot1_seed, slot1_is_bye,
			 slot2_participant_id, slot2_seed, slot2_is_bye,
			 score1, score2, state, winner_id, loser_id, scheduled_at, lobby_info)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id, created_at`

	err := exec.QueryRowContext(ctx, query,
		m.TournamentID, m.GroupID, m.Round,
		m.Slot1ParticipantID, m.Slot1Seed, m.Slot1IsBye,
		m.Slot2ParticipantID, m.Slot2Seed, m.Slot2IsBye,
		m.Score1, m.Score2, m.State, m.WinnerID, m.LoserID, m.ScheduledAt, m.LobbyInfo,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert match: %w", err)
	}
	return nil
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, id int) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`
	m, err := scanMatch(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match %d: %w", id, err)
	}
	return m, nil
}

func (r *postgresMatchRepository) GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1 FOR UPDATE`
	m, err := scanMatch(exec.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match %d for update: %w", id, err)
	}
	return m, nil
}

func (r *postgresMatchRepository) ListByTournament(ctx context.Context, tournamentID int, filter MatchFilter) ([]*models.Match, int, error) {
	var where strings.Builder
	where.WriteString(" WHERE tournament_id = $1")
	args := []interface{}{tournamentID}

	if filter.State != nil {
		args = append(args, *filter.State)
		where.WriteString(" AND state = $" + strconv.Itoa(len(args)))
	}
	if filter.Round != nil {
		args = append(args, *filter.Round)
		where.WriteString(" AND round = $" + strconv.Itoa(len(args)))
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM matches" + where.String()
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count matches for tournament %d: %w", tournamentID, err)
	}

	query := "SELECT " + matchColumns + " FROM matches" + where.String() + " ORDER BY round ASC, id ASC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += " OFFSET $" + strconv.Itoa(len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query matches for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		m, scanErr := scanMatch(rows)
		if scanErr != nil {
			return nil, 0, fmt.Errorf("failed to scan match row: %w", scanErr)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("match rows iteration error: %w", err)
	}
	return matches, total, nil
}

func (r *postgresMatchRepository) ListByGroup(ctx context.Context, groupID int) ([]*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE group_id = $1 ORDER BY round ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches for group %d: %w", groupID, err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		m, scanErr := scanMatch(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", scanErr)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("match rows iteration error: %w", err)
	}
	return matches, nil
}

func (r *postgresMatchRepository) Update(ctx context.Context, exec SQLExecutor, m *models.Match) error {
	query := `
		UPDATE matches SET
			score1 = $1, score2 = $2, state = $3, winner_id = $4, loser_id = $5,
			slot1_checked_in = $6, slot2_checked_in = $7,
			scheduled_at = $8, started_at = $9, completed_at = $10, lobby_info = $11
		WHERE id = $12`

	result, err := exec.ExecContext(ctx, query,
		m.Score1, m.Score2, m.State, m.WinnerID, m.LoserID,
		m.Slot1CheckedIn, m.Slot2CheckedIn,
		m.ScheduledAt, m.StartedAt, m.CompletedAt, m.LobbyInfo,
		m.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update match %d: %w", m.ID, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) UpdateSlot(ctx context.Context, exec SQLExecutor, matchID, slot int, participantID, seed *int) error {
	var query string
	if slot == models.SlotOne {
		query = `UPDATE matches SET slot1_participant_id = $1, slot1_seed = $2 WHERE id = $3`
	} else {
		query = `UPDATE matches SET slot2_participant_id = $1, slot2_seed = $2 WHERE id = $3`
	}
	result, err := exec.ExecContext(ctx, query, participantID, seed, matchID)
	if err != nil {
		return fmt.Errorf("failed to update match %d slot %d: %w", matchID, slot, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}
