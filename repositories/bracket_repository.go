package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nbakenov/tournament-core/models"
)

var (
	ErrBracketNotFound     = errors.New("bracket not found")
	ErrBracketNodeNotFound = errors.New("bracket node not found")
)

type BracketRepository interface {
	CreateBracket(ctx context.Context, exec SQLExecutor, bracket *models.Bracket) error
	GetBracket(ctx context.Context, tournamentID int, stage string) (*models.Bracket, error)
	Finalize(ctx context.Context, exec SQLExecutor, bracketID int) error

	CreateNode(ctx context.Context, exec SQLExecutor, node *models.BracketNode) error
	UpdateNodeLinks(ctx context.Context, exec SQLExecutor, node *models.BracketNode) error
	GetNodeByID(ctx context.Context, id int) (*models.BracketNode, error)
	GetNodeByMatchID(ctx context.Context, matchID int) (*models.BracketNode, error)
	ListNodes(ctx context.Context, bracketID int) ([]*models.BracketNode, error)
}

type postgresBracketRepository struct {
	db *sql.DB
}

func NewPostgresBracketRepository(db *sql.DB) BracketRepository {
	return &postgresBracketRepository{db: db}
}

func (r *postgresBracketRepository) CreateBracket(ctx context.Context, exec SQLExecutor, b *models.Bracket) error {
	query := `
		INSERT INTO brackets (tournament_id, stage, is_finalized)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := exec.QueryRowContext(ctx, query, b.TournamentID, b.Stage, b.IsFinalized).
		Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert bracket: %w", err)
	}
	return nil
}

func (r *postgresBracketRepository) GetBracket(ctx context.Context, tournamentID int, stage string) (*models.Bracket, error) {
	query := `
		SELECT id, tournament_id, stage, is_finalized, created_at
		FROM brackets
		WHERE tournament_id = $1 AND stage = $2`

	b := &models.Bracket{}
	err := r.db.QueryRowContext(ctx, query, tournamentID, stage).Scan(
		&b.ID, &b.TournamentID, &b.Stage, &b.IsFinalized, &b.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBracketNotFound
		}
		return nil, fmt.Errorf("failed to scan bracket for tournament %d: %w", tournamentID, err)
	}
	return b, nil
}

func (r *postgresBracketRepository) Finalize(ctx context.Context, exec SQLExecutor, bracketID int) error {
	result, err := exec.ExecContext(ctx,
		`UPDATE brackets SET is_finalized = TRUE WHERE id = $1`, bracketID)
	if err != nil {
		return fmt.Errorf("failed to finalize bracket %d: %w", bracketID, err)
	}
	return checkAffectedRows(result, ErrBracketNotFound)
}

const nodeColumns = `id, bracket_id, round_number, match_number_in_round, match_id,
	parent_node_id, parent_slot, loser_node_id, loser_slot`

func scanNode(row interface{ Scan(...interface{}) error }) (*models.BracketNode, error) {
	n := &models.BracketNode{}
	err := row.Scan(
		&n.ID, &n.BracketID, &n.RoundNumber, &n.MatchNumberInRound, &n.MatchID,
		&n.ParentNodeID, &n.ParentSlot, &n.LoserNodeID, &n.LoserSlot,
	)
	if err != nil {
		return nil, err
	}
	return n, nil
}

func (r *postgresBracketRepository) CreateNode(ctx context.Context, exec SQLExecutor, n *models.BracketNode) error {
	query := `
		INSERT INTO bracket_nodes
			(bracket_id, round_number, match_number_in_round, match_id,
			 parent_node_id, parent_slot, loser_node_id, loser_slot)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	err := exec.QueryRowContext(ctx, query,
		n.BracketID, n.RoundNumber, n.MatchNumberInRound, n.MatchID,
		n.ParentNodeID, n.ParentSlot, n.LoserNodeID, n.LoserSlot,
	).Scan(&n.ID)
	if err != nil {
		return fmt.Errorf("failed to insert bracket node: %w", err)
	}
	return nil
}

// UpdateNodeLinks is only called during bracket persistence, before the
// bracket is finalized; the node graph is immutable afterwards.
func (r *postgresBracketRepository) UpdateNodeLinks(ctx context.Context, exec SQLExecutor, n *models.BracketNode) error {
	query := `
		UPDATE bracket_nodes
		SET parent_node_id = $1, parent_slot = $2, loser_node_id = $3, loser_slot = $4
		WHERE id = $5`

	result, err := exec.ExecContext(ctx, query,
		n.ParentNodeID, n.ParentSlot, n.LoserNodeID, n.LoserSlot, n.ID)
	if err != nil {
		return fmt.Errorf("failed to update links for node %d: %w", n.ID, err)
	}
	return checkAffectedRows(result, ErrBracketNodeNotFound)
}

func (r *postgresBracketRepository) GetNodeByID(ctx context.Context, id int) (*models.BracketNode, error) {
	query := `SELECT ` + nodeColumns + ` FROM bracket_nodes WHERE id = $1`
	n, err := scanNode(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBracketNodeNotFound
		}
		return nil, fmt.Errorf("failed to scan bracket node %d: %w", id, err)
	}
	return n, nil
}

func (r *postgresBracketRepository) GetNodeByMatchID(ctx context.Context, matchID int) (*models.BracketNode, error) {
	query := `SELECT ` + nodeColumns + ` FROM bracket_nodes WHERE match_id = $1`
	n, err := scanNode(r.db.QueryRowContext(ctx, query, matchID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBracketNodeNotFound
		}
		return nil, fmt.Errorf("failed to scan bracket node for match %d: %w", matchID, err)
	}
	return n, nil
}

func (r *postgresBracketRepository) ListNodes(ctx context.Context, bracketID int) ([]*models.BracketNode, error) {
	query := `SELECT ` + nodeColumns + ` FROM bracket_nodes
		WHERE bracket_id = $1
		ORDER BY round_number ASC, match_number_in_round ASC`

	rows, err := r.db.QueryContext(ctx, query, bracketID)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes for bracket %d: %w", bracketID, err)
	}
	defer rows.Close()

	nodes := make([]*models.BracketNode, 0)
	for rows.Next() {
		n, scanErr := scanNode(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan bracket node row: %w", scanErr)
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bracket node rows iteration error: %w", err)
	}
	return nodes, nil
}
