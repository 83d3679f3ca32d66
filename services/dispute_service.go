package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/nbakenov/tournament-core/events"
	"github.com/nbakenov/tournament-core/models"
	"github.com/nbakenov/tournament-core/repositories"
	"github.com/nbakenov/tournament-core/storage"
)

type DisputeService interface {
	// Open contests a result submission. The atomic check-and-insert on the
	// disputes table enforces at most one open-like dispute per submission,
	// and the match flips to disputed in the same transaction.
	Open(ctx context.Context, submissionID uuid.UUID, actorID int, teamID *int, reason models.DisputeReason, description *string) (*models.Dispute, error)

	GetDispute(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
	List(ctx context.Context, filter repositories.DisputeFilter) ([]*models.Dispute, int, error)

	AddEvidence(ctx context.Context, disputeID uuid.UUID, uploaderID int, kind models.EvidenceKind, reference string, notes *string) (*models.DisputeEvidence, error)
	UploadEvidence(ctx context.Context, disputeID uuid.UUID, uploaderID int, kind models.EvidenceKind, filename, contentType string, file io.Reader, notes *string) (*models.DisputeEvidence, error)
	ListEvidence(ctx context.Context, disputeID uuid.UUID) ([]*models.DisputeEvidence, error)

	// Transition moves a dispute along the review graph (under_review,
	// escalated, cancelled). Resolution statuses go through Resolve because
	// they also rewrite the match.
	Transition(ctx context.Context, disputeID uuid.UUID, to models.DisputeStatus, actorID int, notes *string) (*models.Dispute, error)

	// Resolve closes the dispute in favor of one side, rewriting the match
	// result through an organizer override carrying an explicit grant.
	Resolve(ctx context.Context, disputeID uuid.UUID, forSubmitter bool, score1, score2 int, actorID int, notes *string) (*models.Dispute, error)
}

type disputeService struct {
	db             *sql.DB
	disputeRepo    repositories.DisputeRepository
	submissionRepo repositories.SubmissionRepository
	matchRepo      repositories.MatchRepository
	logRepo        repositories.VerificationLogRepository
	matches        MatchService
	uploader       storage.FileUploader
	publisher      events.Publisher
	logger         *slog.Logger
}

func NewDisputeService(
	db *sql.DB,
	disputeRepo repositories.DisputeRepository,
	submissionRepo repositories.SubmissionRepository,
	matchRepo repositories.MatchRepository,
	logRepo repositories.VerificationLogRepository,
	matches MatchService,
	uploader storage.FileUploader,
	publisher events.Publisher,
	logger *slog.Logger,
) DisputeService {
	return &disputeService{
		db:             db,
		disputeRepo:    disputeRepo,
		submissionRepo: submissionRepo,
		matchRepo:      matchRepo,
		logRepo:        logRepo,
		matches:        matches,
		uploader:       uploader,
		publisher:      publisher,
		logger:         logger,
	}
}

func (s *disputeService) Open(ctx context.Context, submissionID uuid.UUID, actorID int, teamID *int, reason models.DisputeReason, description *string) (*models.Dispute, error) {
	if !reason.Valid() {
		return nil, fmt.Errorf("%w: unknown dispute reason %q", ErrValidationFailed, reason)
	}

	submission, err := s.submissionRepo.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, repositories.ErrSubmissionNotFound) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}

	var dispute *models.Dispute
	var tournamentID int
	err = withTx(ctx, s.db, func(tx *sql.Tx) error {
		match, err := s.matchRepo.GetByIDForUpdate(ctx, tx, submission.MatchID)
		if err != nil {
			if errors.Is(err, repositories.ErrMatchNotFound) {
				return ErrMatchNotFound
			}
			return err
		}
		tournamentID = match.TournamentID

		if match.SlotOf(actorID) == 0 {
			return ErrNotMatchParticipant
		}
		if actorID == submission.SubmitterID {
			return fmt.Errorf("%w: a submission is contested by the opponent, not its submitter", ErrValidationFailed)
		}
		if !models.CanTransition(match.State, models.MatchStateDisputed) {
			return fmt.Errorf("%w: cannot dispute a %s match", ErrInvalidTransition, match.State)
		}

		dispute = &models.Dispute{
			ID:              uuid.New(),
			SubmissionID:    submissionID,
			MatchID:         match.ID,
			Status:          models.DisputeStatusOpen,
			ReasonCode:      reason,
			Description:     description,
			InitiatedBy:     actorID,
			InitiatorTeamID: teamID,
		}
		if err := s.disputeRepo.CreateOpen(ctx, tx, dispute); err != nil {
			if errors.Is(err, repositories.ErrDisputeOpenConflict) {
				return ErrDuplicateOpenDispute
			}
			return err
		}

		match.State = models.MatchStateDisputed
		if err := s.matchRepo.Update(ctx, tx, match); err != nil {
			return err
		}

		entry := &models.VerificationLogEntry{
			MatchID:      match.ID,
			SubmissionID: &submissionID,
			Step:         models.StepOpponentDispute,
			Status:       models.VerificationSuccess,
			ActorID:      &actorID,
			Detail: detailJSON(map[string]interface{}{
				"dispute_id": dispute.ID.String(),
				"reason":     string(reason),
			}),
		}
		return s.logRepo.Append(ctx, tx, entry)
	})
	if err != nil {
		return nil, err
	}

	s.publishDispute(tournamentID, dispute)
	s.logger.Info("dispute opened",
		slog.String("dispute_id", dispute.ID.String()),
		slog.Int("match_id", dispute.MatchID),
		slog.String("reason", string(reason)))
	return dispute, nil
}

func (s *disputeService) GetDispute(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	dispute, err := s.disputeRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrDisputeNotFound) {
			return nil, ErrDisputeNotFound
		}
		return nil, err
	}
	return dispute, nil
}

func (s *disputeService) List(ctx context.Context, filter repositories.DisputeFilter) ([]*models.Dispute, int, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown dispute status %q", ErrValidationFailed, *filter.Status)
	}
	if filter.Reason != nil && !filter.Reason.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown dispute reason %q", ErrValidationFailed, *filter.Reason)
	}
	return s.disputeRepo.List(ctx, filter)
}

func (s *disputeService) AddEvidence(ctx context.Context, disputeID uuid.UUID, uploaderID int, kind models.EvidenceKind, reference string, notes *string) (*models.DisputeEvidence, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown evidence kind %q", ErrValidationFailed, kind)
	}
	if reference == "" {
		return nil, fmt.Errorf("%w: evidence reference is required", ErrValidationFailed)
	}

	var evidence *models.DisputeEvidence
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		dispute, err := s.disputeRepo.GetByIDForUpdate(ctx, tx, disputeID)
		if err != nil {
			if errors.Is(err, repositories.ErrDisputeNotFound) {
				return ErrDisputeNotFound
			}
			return err
		}
		if !dispute.Status.OpenLike() {
			return fmt.Errorf("%w: evidence can only be added while the dispute is active (status %s)",
				ErrInvalidDisputeTransition, dispute.Status)
		}

		evidence = &models.DisputeEvidence{
			DisputeID:  disputeID,
			UploaderID: uploaderID,
			Kind:       kind,
			Reference:  reference,
			Notes:      notes,
		}
		if err := s.disputeRepo.AddEvidence(ctx, tx, evidence); err != nil {
			return err
		}

		entry := &models.VerificationLogEntry{
			MatchID:      dispute.MatchID,
			SubmissionID: &dispute.SubmissionID,
			Step:         models.StepEvidenceAdded,
			Status:       models.VerificationSuccess,
			ActorID:      &uploaderID,
			Detail: detailJSON(map[string]interface{}{
				"dispute_id": disputeID.String(),
				"kind":       string(kind),
			}),
		}
		return s.logRepo.Append(ctx, tx, entry)
	})
	if err != nil {
		return nil, err
	}
	return evidence, nil
}

// UploadEvidence stores the file in object storage under a random key and
// records the public URL as the evidence reference. The upload happens before
// the database write; an orphaned object on failure is harmless.
func (s *disputeService) UploadEvidence(ctx context.Context, disputeID uuid.UUID, uploaderID int, kind models.EvidenceKind, filename, contentType string, file io.Reader, notes *string) (*models.DisputeEvidence, error) {
	if s.uploader == nil {
		return nil, fmt.Errorf("%w: file uploads are not configured", ErrValidationFailed)
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown evidence kind %q", ErrValidationFailed, kind)
	}

	key := fmt.Sprintf("disputes/%s/%s%s", disputeID, uuid.New(), path.Ext(filename))
	result, err := s.uploader.Upload(ctx, key, contentType, file)
	if err != nil {
		return nil, fmt.Errorf("failed to store evidence file: %w", err)
	}

	evidence, err := s.AddEvidence(ctx, disputeID, uploaderID, kind, result.Location, notes)
	if err != nil {
		if delErr := s.uploader.Delete(ctx, key); delErr != nil {
			s.logger.Warn("failed to delete orphaned evidence object",
				slog.String("key", key), slog.Any("error", delErr))
		}
		return nil, err
	}
	return evidence, nil
}

func (s *disputeService) ListEvidence(ctx context.Context, disputeID uuid.UUID) ([]*models.DisputeEvidence, error) {
	if _, err := s.GetDispute(ctx, disputeID); err != nil {
		return nil, err
	}
	return s.disputeRepo.ListEvidence(ctx, disputeID)
}

func (s *disputeService) Transition(ctx context.Context, disputeID uuid.UUID, to models.DisputeStatus, actorID int, notes *string) (*models.Dispute, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("%w: unknown dispute status %q", ErrValidationFailed, to)
	}
	if to == models.DisputeStatusResolvedForSubmitter || to == models.DisputeStatusResolvedForOpponent {
		return nil, fmt.Errorf("%w: resolution statuses are set through the resolve operation", ErrValidationFailed)
	}

	var dispute *models.Dispute
	var tournamentID int
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		dispute, err = s.disputeRepo.GetByIDForUpdate(ctx, tx, disputeID)
		if err != nil {
			if errors.Is(err, repositories.ErrDisputeNotFound) {
				return ErrDisputeNotFound
			}
			return err
		}

		// Re-setting a terminal status is a no-op.
		if dispute.Status == to && dispute.Status.Terminal() {
			return nil
		}
		if !models.CanTransitionDispute(dispute.Status, to) {
			return s.rejectDisputeTransition(ctx, dispute, to, actorID)
		}

		from := dispute.Status
		now := time.Now().UTC()
		dispute.Status = to
		if to == models.DisputeStatusEscalated && dispute.EscalatedAt == nil {
			dispute.EscalatedAt = &now
		}
		if to == models.DisputeStatusCancelled {
			dispute.ResolvedBy = &actorID
			dispute.ResolutionNotes = notes
			if dispute.ResolvedAt == nil {
				dispute.ResolvedAt = &now
			}
		}
		if err := s.disputeRepo.Update(ctx, tx, dispute); err != nil {
			return err
		}

		if to == models.DisputeStatusCancelled {
			if err := s.releaseMatch(ctx, tx, dispute, actorID); err != nil {
				return err
			}
		}

		match, err := s.matchRepo.GetByID(ctx, dispute.MatchID)
		if err == nil {
			tournamentID = match.TournamentID
		}

		entry := &models.VerificationLogEntry{
			MatchID:      dispute.MatchID,
			SubmissionID: &dispute.SubmissionID,
			Step:         models.StepDisputeTransition,
			Status:       models.VerificationSuccess,
			ActorID:      &actorID,
			Detail: detailJSON(map[string]interface{}{
				"dispute_id": dispute.ID.String(),
				"from":       string(from),
				"to":         string(to),
			}),
		}
		return s.logRepo.Append(ctx, tx, entry)
	})
	if err != nil {
		return nil, err
	}

	s.publishDispute(tournamentID, dispute)
	return dispute, nil
}

func (s *disputeService) Resolve(ctx context.Context, disputeID uuid.UUID, forSubmitter bool, score1, score2 int, actorID int, notes *string) (*models.Dispute, error) {
	dispute, err := s.GetDispute(ctx, disputeID)
	if err != nil {
		return nil, err
	}

	target := models.DisputeStatusResolvedForOpponent
	if forSubmitter {
		target = models.DisputeStatusResolvedForSubmitter
	}
	if dispute.Status == target {
		return dispute, nil
	}
	if !models.CanTransitionDispute(dispute.Status, target) {
		return nil, fmt.Errorf("%w: cannot resolve a dispute in status %s", ErrInvalidDisputeTransition, dispute.Status)
	}

	// The match is rewritten first, under an explicit grant. If recording
	// the dispute outcome below fails, the dispute stays open and the
	// resolve can be retried; the override is idempotent for equal scores.
	grant := &OverrideGrant{GrantedBy: actorID, Reason: fmt.Sprintf("dispute %s resolution", disputeID)}
	reason := fmt.Sprintf("dispute resolved %s", target)
	if err := s.matches.OverrideScore(ctx, dispute.MatchID, score1, score2, reason, actorID, grant); err != nil {
		return nil, err
	}

	var tournamentID int
	err = withTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		dispute, err = s.disputeRepo.GetByIDForUpdate(ctx, tx, disputeID)
		if err != nil {
			return err
		}
		if dispute.Status == target {
			return nil
		}

		now := time.Now().UTC()
		from := dispute.Status
		dispute.Status = target
		dispute.ResolvedBy = &actorID
		dispute.ResolutionNotes = notes
		dispute.FinalScore1 = &score1
		dispute.FinalScore2 = &score2
		if dispute.ResolvedAt == nil {
			dispute.ResolvedAt = &now
		}
		if err := s.disputeRepo.Update(ctx, tx, dispute); err != nil {
			return err
		}

		match, err := s.matchRepo.GetByID(ctx, dispute.MatchID)
		if err == nil {
			tournamentID = match.TournamentID
		}

		entry := &models.VerificationLogEntry{
			MatchID:      dispute.MatchID,
			SubmissionID: &dispute.SubmissionID,
			Step:         models.StepDisputeResolved,
			Status:       models.VerificationSuccess,
			ActorID:      &actorID,
			Detail: detailJSON(map[string]interface{}{
				"dispute_id":   dispute.ID.String(),
				"from":         string(from),
				"to":           string(target),
				"final_score1": score1,
				"final_score2": score2,
			}),
		}
		return s.logRepo.Append(ctx, tx, entry)
	})
	if err != nil {
		return nil, err
	}

	s.publishDispute(tournamentID, dispute)
	s.logger.Info("dispute resolved",
		slog.String("dispute_id", dispute.ID.String()),
		slog.String("status", string(dispute.Status)))
	return dispute, nil
}

// releaseMatch returns a match whose dispute was cancelled to its pre-dispute
// state: completed when a confirmed result exists, pending_result otherwise.
func (s *disputeService) releaseMatch(ctx context.Context, tx *sql.Tx, dispute *models.Dispute, actorID int) error {
	match, err := s.matchRepo.GetByIDForUpdate(ctx, tx, dispute.MatchID)
	if err != nil {
		return err
	}
	if match.State != models.MatchStateDisputed {
		return nil
	}
	if match.Score1 != nil && match.Score2 != nil {
		match.State = models.MatchStateCompleted
	} else {
		match.State = models.MatchStatePendingResult
	}
	return s.matchRepo.Update(ctx, tx, match)
}

// rejectDisputeTransition records the rejected change in the audit trail via
// the plain connection so the failure entry survives the rollback.
func (s *disputeService) rejectDisputeTransition(ctx context.Context, dispute *models.Dispute, to models.DisputeStatus, actorID int) error {
	cause := fmt.Errorf("%w: %s -> %s", ErrInvalidDisputeTransition, dispute.Status, to)
	entry := &models.VerificationLogEntry{
		MatchID:      dispute.MatchID,
		SubmissionID: &dispute.SubmissionID,
		Step:         models.StepDisputeTransition,
		Status:       models.VerificationFailure,
		ActorID:      &actorID,
		Detail: detailJSON(map[string]interface{}{
			"dispute_id": dispute.ID.String(),
			"from":       string(dispute.Status),
			"to":         string(to),
			"error":      cause.Error(),
		}),
	}
	if err := s.logRepo.Append(ctx, s.db, entry); err != nil {
		s.logger.Error("failed to record rejected dispute transition",
			slog.String("dispute_id", dispute.ID.String()), slog.Any("error", err))
	}
	return cause
}

func (s *disputeService) publishDispute(tournamentID int, dispute *models.Dispute) {
	if dispute == nil || tournamentID == 0 {
		return
	}
	s.publisher.Publish(tournamentID, events.TypeDisputeUpdated, events.DisputeUpdatedFact{
		DisputeID: dispute.ID.String(),
		MatchID:   dispute.MatchID,
		Status:    string(dispute.Status),
	})
}
