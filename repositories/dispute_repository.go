package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/nbakenov/tournament-core/models"
)

var (
	ErrDisputeNotFound = errors.New("dispute not found")
	// ErrDisputeOpenConflict maps the partial unique index
	// disputes_one_open_like_per_submission: at most one dispute in an
	// open-like status may exist per submission.
	ErrDisputeOpenConflict = errors.New("an active dispute already exists for this submission")
)

type DisputeFilter struct {
	Status *models.DisputeStatus
	Reason *models.DisputeReason
	Limit  int
	Offset int
}

type DisputeRepository interface {
	// CreateOpen performs the atomic check-and-insert: the partial unique
	// index rejects a second open-like dispute for the same submission and
	// the violation surfaces as ErrDisputeOpenConflict.
	CreateOpen(ctx context.Context, exec SQLExecutor, dispute *models.Dispute) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
	GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id uuid.UUID) (*models.Dispute, error)
	Update(ctx context.Context, exec SQLExecutor, dispute *models.Dispute) error
	List(ctx context.Context, filter DisputeFilter) ([]*models.Dispute, int, error)

	AddEvidence(ctx context.Context, exec SQLExecutor, evidence *models.DisputeEvidence) error
	ListEvidence(ctx context.Context, disputeID uuid.UUID) ([]*models.DisputeEvidence, error)
}

type postgresDisputeRepository struct {
	db *sql.DB
}

func NewPostgresDisputeRepository(db *sql.DB) DisputeRepository {
	return &postgresDisputeRepository{db: db}
}

const disputeColumns = `id, submission_id, match_id, status, reason_code, description,
	initiated_by, initiator_team_id, resolved_by, resolution_notes,
	final_score1, final_score2, opened_at, escalated_at, resolved_at`

func scanDispute(row interface{ Scan(...interface{}) error }) (*models.Dispute, error) {
	d := &models.Dispute{}
	err := row.Scan(
		&d.ID, &d.SubmissionID, &d.MatchID, &d.Status, &d.ReasonCode, &d.Description,
		&d.InitiatedBy, &d.InitiatorTeamID, &d.ResolvedBy, &d.ResolutionNotes,
		&d.FinalScore1, &d.FinalScore2, &d.OpenedAt, &d.EscalatedAt, &d.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *postgresDisputeRepository) CreateOpen(ctx context.Context, exec SQLExecutor, d *models.Dispute) error {
	query := `
		INSERT INTO disputes
			(id, submission_id, match_id, status, reason_code, description,
			 initiated_by, initiator_team_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING opened_at`

	err := exec.QueryRowContext(ctx, query,
		d.ID, d.SubmissionID, d.MatchID, d.Status, d.ReasonCode, d.Description,
		d.InitiatedBy, d.InitiatorTeamID,
	).Scan(&d.OpenedAt)
	if err != nil {
		if isUniqueViolation(err, "disputes_one_open_like_per_submission") {
			return ErrDisputeOpenConflict
		}
		return fmt.Errorf("failed to insert dispute: %w", err)
	}
	return nil
}

func (r *postgresDisputeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	query := `SELECT ` + disputeColumns + ` FROM disputes WHERE id = $1`
	d, err := scanDispute(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDisputeNotFound
		}
		return nil, fmt.Errorf("failed to scan dispute %s: %w", id, err)
	}
	return d, nil
}

func (r *postgresDisputeRepository) GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id uuid.UUID) (*models.Dispute, error) {
	query := `SELECT ` + disputeColumns + ` FROM disputes WHERE id = $1 FOR UPDATE`
	d, err := scanDispute(exec.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDisputeNotFound
		}
		return nil, fmt.Errorf("failed to scan dispute %s for update: %w", id, err)
	}
	return d, nil
}

func (r *postgresDisputeRepository) Update(ctx context.Context, exec SQLExecutor, d *models.Dispute) error {
	query := `
		UPDATE disputes SET
			status = $1, resolved_by = $2, resolution_notes = $3,
			final_score1 = $4, final_score2 = $5, escalated_at = $6, resolved_at = $7
		WHERE id = $8`

	result, err := exec.ExecContext(ctx, query,
		d.Status, d.ResolvedBy, d.ResolutionNotes,
		d.FinalScore1, d.FinalScore2, d.EscalatedAt, d.ResolvedAt,
		d.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update dispute %s: %w", d.ID, err)
	}
	return checkAffectedRows(result, ErrDisputeNotFound)
}

func (r *postgresDisputeRepository) List(ctx context.Context, filter DisputeFilter) ([]*models.Dispute, int, error) {
	var where strings.Builder
	where.WriteString(" WHERE 1=1")
	args := make([]interface{}, 0, 4)

	if filter.Status != nil {
		args = append(args, *filter.Status)
		where.WriteString(" AND status = $" + strconv.Itoa(len(args)))
	}
	if filter.Reason != nil {
		args = append(args, *filter.Reason)
		where.WriteString(" AND reason_code = $" + strconv.Itoa(len(args)))
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM disputes" + where.String()
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count disputes: %w", err)
	}

	query := "SELECT " + disputeColumns + " FROM disputes" + where.String() + " ORDER BY opened_at ASC, id ASC"
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
		return nil, 0, fmt.Errorf("failed to query disputes: %w", err)
	}
	defer rows.Close()

	disputes := make([]*models.Dispute, 0)
	for rows.Next() {
		d, scanErr := scanDispute(rows)
		if scanErr != nil {
			return nil, 0, fmt.Errorf("failed to scan dispute row: %w", scanErr)
		}
		disputes = append(disputes, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("dispute rows iteration error: %w", err)
	}
	return disputes, total, nil
}

func (r *postgresDisputeRepository) AddEvidence(ctx context.Context, exec SQLExecutor, e *models.DisputeEvidence) error {
	query := `
		INSERT INTO dispute_evidence (dispute_id, uploader_id, kind, reference, notes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := exec.QueryRowContext(ctx, query,
		e.DisputeID, e.UploaderID, e.Kind, e.Reference, e.Notes,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert dispute evidence: %w", err)
	}
	return nil
}

func (r *postgresDisputeRepository) ListEvidence(ctx context.Context, disputeID uuid.UUID) ([]*models.DisputeEvidence, error) {
	query := `
		SELECT id, dispute_id, uploader_id, kind, reference, notes, created_at
		FROM dispute_evidence WHERE dispute_id = $1 ORDER BY created_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, disputeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query evidence for dispute %s: %w", disputeID, err)
	}
	defer rows.Close()

	evidence := make([]*models.DisputeEvidence, 0)
	for rows.Next() {
		e := &models.DisputeEvidence{}
		if scanErr := rows.Scan(&e.ID, &e.DisputeID, &e.UploaderID, &e.Kind, &e.Reference, &e.Notes, &e.CreatedAt); scanErr != nil {
			return nil, fmt.Errorf("failed to scan evidence row: %w", scanErr)
		}
		evidence = append(evidence, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("evidence rows iteration error: %w", err)
	}
	return evidence, nil
}
