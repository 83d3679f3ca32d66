package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nbakenov/tournament-core/events"
	"github.com/nbakenov/tournament-core/models"
	"github.com/nbakenov/tournament-core/repositories"
)

// OverrideGrant is the explicit capability required to rewrite a result that
// has already settled (a completed or disputed match). It is always threaded
// as a parameter - never ambient state - so the guard logic stays pure and
// auditable. Dispute resolution constructs one from the dispute itself.
type OverrideGrant struct {
	GrantedBy int
	Reason    string
}

type MatchService interface {
	GetMatch(ctx context.Context, id int) (*models.Match, error)
	ListByTournament(ctx context.Context, tournamentID int, filter repositories.MatchFilter) ([]*models.Match, int, error)
	VerificationLog(ctx context.Context, matchID int) ([]*models.VerificationLogEntry, error)

	// Participant-driven lifecycle.
	CheckIn(ctx context.Context, matchID, actorID int) error
	ConfirmReady(ctx context.Context, matchID, actorID int) error
	Start(ctx context.Context, matchID, actorID int) error
	SubmitResult(ctx context.Context, matchID, actorID, score1, score2 int) (*models.ResultSubmission, error)
	ConfirmResult(ctx context.Context, matchID int, submissionID uuid.UUID, actorID int) error

	// Organizer operations.
	MarkPendingResult(ctx context.Context, matchID, actorID int, reason string) error
	Reschedule(ctx context.Context, matchID int, newTime time.Time, reason string, actorID int) error
	Forfeit(ctx context.Context, matchID, forfeitingSlot int, reason string, actorID int) error
	OverrideScore(ctx context.Context, matchID, score1, score2 int, reason string, actorID int, grant *OverrideGrant) error
	Cancel(ctx context.Context, matchID int, reason string, actorID int) error
}

type matchService struct {
	db             *sql.DB
	matchRepo      repositories.MatchRepository
	submissionRepo repositories.SubmissionRepository
	logRepo        repositories.VerificationLogRepository
	propagator     AdvancementPropagator
	publisher      events.Publisher
	logger         *slog.Logger
}

func NewMatchService(
	db *sql.DB,
	matchRepo repositories.MatchRepository,
	submissionRepo repositories.SubmissionRepository,
	logRepo repositories.VerificationLogRepository,
	propagator AdvancementPropagator,
	publisher events.Publisher,
	logger *slog.Logger,
) MatchService {
	return &matchService{
		db:             db,
		matchRepo:      matchRepo,
		submissionRepo: submissionRepo,
		logRepo:        logRepo,
		propagator:     propagator,
		publisher:      publisher,
		logger:         logger,
	}
}

func (s *matchService) GetMatch(ctx context.Context, id int) (*models.Match, error) {
	match, err := s.matchRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return match, nil
}

func (s *matchService) ListByTournament(ctx context.Context, tournamentID int, filter repositories.MatchFilter) ([]*models.Match, int, error) {
	return s.matchRepo.ListByTournament(ctx, tournamentID, filter)
}

func (s *matchService) VerificationLog(ctx context.Context, matchID int) ([]*models.VerificationLogEntry, error) {
	if _, err := s.GetMatch(ctx, matchID); err != nil {
		return nil, err
	}
	return s.logRepo.ListByMatch(ctx, matchID)
}

func (s *matchService) CheckIn(ctx context.Context, matchID, actorID int) error {
	var tournamentID int
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		match, err := s.lockMatch(ctx, tx, matchID)
		if err != nil {
			return err
		}
		tournamentID = match.TournamentID

		if match.State != models.MatchStateScheduled && match.State != models.MatchStateCheckIn {
			return fmt.Errorf("%w: check-in not available in state %s", ErrInvalidTransition, match.State)
		}
		slot := match.SlotOf(actorID)
		if slot == 0 {
			return ErrNotMatchParticipant
		}
		if (slot == models.SlotOne && match.Slot1CheckedIn) || (slot == models.SlotTwo && match.Slot2CheckedIn) {
			return ErrAlreadyCheckedIn
		}
		if slot == models.SlotOne {
			match.Slot1CheckedIn = true
		} else {
			match.Slot2CheckedIn = true
		}
		if match.State == models.MatchStateScheduled {
			match.State = models.MatchStateCheckIn
		}
		if err := s.matchRepo.Update(ctx, tx, match); err != nil {
			return err
		}
		return s.appendLog(ctx, tx, match.ID, nil, models.StepCheckIn, models.VerificationSuccess, &actorID,
			map[string]interface{}{"slot": slot})
	})
	if err != nil {
		return err
	}
	s.publishState(tournamentID, matchID, models.MatchStateCheckIn)
	return nil
}

func (s *matchService) ConfirmReady(ctx context.Context, matchID, actorID int) error {
	var tournamentID int
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		match, err := s.lockMatch(ctx, tx, matchID)
		if err != nil {
			return err
		}
		tournamentID = match.TournamentID

		if !models.CanTransition(match.State, models.MatchStateReady) {
			return fmt.Errorf("%w: cannot mark ready from %s", ErrInvalidTransition, match.State)
		}
		if !match.Slot1CheckedIn || !match.Slot2CheckedIn {
			return ErrCheckInIncomplete
		}
		match.State = models.MatchStateReady
		if err := s.matchRepo.Update(ctx, tx, match); err != nil {
			return err
		}
		return s.appendLog(ctx, tx, match.ID, nil, models.StepReadyConfirm, models.VerificationSuccess, &actorID, nil)
	})
	if err != nil {
		return err
	}
	s.publishState(tournamentID, matchID, models.MatchStateReady)
	return nil
}

func (s *matchService) Start(ctx context.Context, matchID, actorID int) error {
	var tournamentID int
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		match, err := s.lockMatch(ctx, tx, matchID)
		if err != nil {
			return err
		}
		tournamentID = match.TournamentID

		if !models.CanTransition(match.State, models.MatchStateLive) {
			return fmt.Errorf("%w: cannot start from %s", ErrInvalidTransition, match.State)
		}
		now := time.Now().UTC()
		match.State = models.MatchStateLive
		match.StartedAt = &now
		if err := s.matchRepo.Update(ctx, tx, match); err != nil {
			return err
		}
		return s.appendLog(ctx, tx, match.ID, nil, models.StepMatchStarted, models.VerificationSuccess, &actorID, nil)
	})
	if err != nil {
		return err
	}
	s.publishState(tournamentID, matchID, models.MatchStateLive)
	return nil
}

func (s *matchService) SubmitResult(ctx context.Context, matchID, actorID, score1, score2 int) (*models.ResultSubmission, error) {
	if score1 < 0 || score2 < 0 {
		return nil, fmt.Errorf("%w: scores must be non-negative", ErrValidationFailed)
	}

	var submission *models.ResultSubmission
	var tournamentID int
	var newState models.MatchState
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		match, err := s.lockMatch(ctx, tx, matchID)
		if err != nil {
			return err
		}
		tournamentID = match.TournamentID

		if match.State != models.MatchStateLive {
			return fmt.Errorf("%w: results are submitted on live matches, match is %s", ErrMatchNotReadyForResult, match.State)
		}
		slot := match.SlotOf(actorID)
		if slot == 0 {
			return ErrNotMatchParticipant
		}

		// Earlier submissions are visible outside this transaction;
		// ours is the only in-flight one because the match row is
		// locked.
		previous, err := s.submissionRepo.ListByMatch(ctx, matchID)
		if err != nil {
			return err
		}

		submission = &models.ResultSubmission{
			ID:            uuid.New(),
			MatchID:       matchID,
			SubmitterID:   actorID,
			SubmitterSlot: slot,
			Score1:        score1,
			Score2:        score2,
		}
		if err := s.submissionRepo.Create(ctx, tx, submission); err != nil {
			return err
		}

		opponentSubmitted := false
		for _, prev := range previous {
			if prev.SubmitterSlot != slot {
				opponentSubmitted = true
				break
			}
		}
		if opponentSubmitted {
			match.State = models.MatchStatePendingResult
			if err := s.matchRepo.Update(ctx, tx, match); err != nil {
				return err
			}
		}
		newState = match.State

		return s.appendLog(ctx, tx, match.ID, &submission.ID, models.StepResultSubmitted, models.VerificationSuccess, &actorID,
			map[string]interface{}{"score1": score1, "score2": score2, "slot": slot})
	})
	if err != nil {
		return nil, err
	}
	s.publishState(tournamentID, matchID, newState)
	return submission, nil
}

func (s *matchService) MarkPendingResult(ctx context.Context, matchID, actorID int, reason string) error {
	var tournamentID int
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		match, err := s.lockMatch(ctx, tx, matchID)
		if err != nil {
			return err
		}
		tournamentID = match.TournamentID

		if !models.CanTransition(match.State, models.MatchStatePendingResult) {
			return fmt.Errorf("%w: cannot mark pending result from %s", ErrInvalidTransition, match.State)
		}
		match.State = models.MatchStatePendingResult
		if err := s.matchRepo.Update(ctx, tx, match); err != nil {
			return err
		}
		return s.appendLog(ctx, tx, match.ID, nil, models.StepPendingResultMarked, models.VerificationSuccess, &actorID,
			map[string]interface{}{"reason": reason})
	})
	if err != nil {
		return err
	}
	s.publishState(tournamentID, matchID, models.MatchStatePendingResult)
	return nil
}

func (s *matchService) ConfirmResult(ctx context.Context, matchID int, submissionID uuid.UUID, actorID int) error {
	var fact *events.MatchCompletedFact
	var tournamentID int
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		match, err := s.lockMatch(ctx, tx, matchID)
		if err != nil {
			return err
		}
		tournamentID = match.TournamentID

		if !models.CanTransition(match.State, models.MatchStateCompleted) || match.State != models.MatchStatePendingResult {
			return fmt.Errorf("%w: cannot confirm result from %s", ErrInvalidTransition, match.State)
		}
		submission, err := s.submissionRepo.GetByID(ctx, submissionID)
		if err != nil {
			if errors.Is(err, repositories.ErrSubmissionNotFound) {
				return ErrSubmissionNotFound
			}
			return err
		}
		if submission.MatchID != matchID {
			return fmt.Errorf("%w: submission %s does not belong to match %d", ErrValidationFailed, submissionID, matchID)
		}
		if match.SlotOf(actorID) == 0 {
			return ErrNotMatchParticipant
		}
		if actorID == submission.SubmitterID {
			return fmt.Errorf("%w: a submission is confirmed by the opponent, not its submitter", ErrValidationFailed)
		}

		fact, err = s.settle(ctx, tx, match, submission.Score1, submission.Score2,
			models.StepOpponentConfirm, &actorID, &submission.ID, false)
		return err
	})
	if err != nil {
		return err
	}
	s.publishCompleted(tournamentID, fact)
	return nil
}

func (s *matchService) Reschedule(ctx context.Context, matchID int, newTime time.Time, reason string, actorID int) error {
	var tournamentID int
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		match, err := s.lockMatch(ctx, tx, matchID)
		if err != nil {
			return err
		}
		tournamentID = match.TournamentID

		if !overrideAllowed(match.State) {
			return s.rejectOverride(ctx, match, models.StepOrganizerReschedule, actorID,
				fmt.Errorf("%w: cannot reschedule a %s match", ErrInvalidTransition, match.State))
		}

		var oldTime interface{}
		if match.ScheduledAt != nil {
			oldTime = match.ScheduledAt.Format(time.RFC3339)
		}
		match.ScheduledAt = &newTime
		appendLobbyEntry(match, map[string]interface{}{
			"action":   "reschedule",
			"old_time": oldTime,
			"new_time": newTime.Format(time.RFC3339),
			"reason":   reason,
			"actor_id": actorID,
		})
		if err := s.matchRepo.Update(ctx, tx, match); err != nil {
			return err
		}
		return s.appendLog(ctx, tx, match.ID, nil, models.StepOrganizerReschedule, models.VerificationSuccess, &actorID,
			map[string]interface{}{"old_time": oldTime, "new_time": newTime.Format(time.RFC3339), "reason": reason})
	})
	if err != nil {
		return err
	}
	s.publisher.Publish(tournamentID, events.TypeMatchUpdated, events.MatchUpdatedFact{MatchID: matchID, State: "rescheduled"})
	return nil
}

func (s *matchService) Forfeit(ctx context.Context, matchID, forfeitingSlot int, reason string, actorID int) error {
	if forfeitingSlot != models.SlotOne && forfeitingSlot != models.SlotTwo {
		return fmt.Errorf("%w: forfeiting slot must be 1 or 2", ErrValidationFailed)
	}

	var fact *events.MatchCompletedFact
	var tournamentID int
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		match, err := s.lockMatch(ctx, tx, matchID)
		if err != nil {
			return err
		}
		tournamentID = match.TournamentID

		if !overrideAllowed(match.State) {
			return s.rejectOverride(ctx, match, models.StepOrganizerForfeit, actorID,
				fmt.Errorf("%w: cannot forfeit a %s match", ErrInvalidTransition, match.State))
		}

		winnerSlot := models.SlotOne
		if forfeitingSlot == models.SlotOne {
			winnerSlot = models.SlotTwo
		}
		winnerID := match.ParticipantInSlot(winnerSlot)
		if winnerID == nil {
			return fmt.Errorf("%w: no participant present to receive the forfeit win", ErrValidationFailed)
		}

		// Canonical forfeit score: winner 1, loser 0.
		now := time.Now().UTC()
		if winnerSlot == models.SlotOne {
			match.Score1, match.Score2 = intPtr(1), intPtr(0)
		} else {
			match.Score1, match.Score2 = intPtr(0), intPtr(1)
		}
		match.State = models.MatchStateForfeit
		match.WinnerID = winnerID
		match.LoserID = match.ParticipantInSlot(forfeitingSlot)
		match.CompletedAt = &now
		appendLobbyEntry(match, map[string]interface{}{
			"action":          "forfeit",
			"forfeiting_slot": forfeitingSlot,
			"reason":          reason,
			"actor_id":        actorID,
		})
		if err := s.matchRepo.Update(ctx, tx, match); err != nil {
			return err
		}
		if err := s.appendLog(ctx, tx, match.ID, nil, models.StepOrganizerForfeit, models.VerificationSuccess, &actorID,
			map[string]interface{}{"forfeiting_slot": forfeitingSlot, "reason": reason, "winner_id": *winnerID}); err != nil {
			return err
		}
		if err := s.propagator.Propagate(ctx, tx, match); err != nil {
			return err
		}
		fact = &events.MatchCompletedFact{
			MatchID:  match.ID,
			WinnerID: match.WinnerID,
			LoserID:  match.LoserID,
			Score1:   match.Score1,
			Score2:   match.Score2,
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.publishCompleted(tournamentID, fact)
	return nil
}

func (s *matchService) OverrideScore(ctx context.Context, matchID, score1, score2 int, reason string, actorID int, grant *OverrideGrant) error {
	if score1 < 0 || score2 < 0 {
		return fmt.Errorf("%w: scores must be non-negative", ErrValidationFailed)
	}

	var fact *events.MatchCompletedFact
	var tournamentID int
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		match, err := s.lockMatch(ctx, tx, matchID)
		if err != nil {
			return err
		}
		tournamentID = match.TournamentID

		settled := match.State == models.MatchStateCompleted || match.State == models.MatchStateDisputed
		if !overrideAllowed(match.State) && !settled {
			return s.rejectOverride(ctx, match, models.StepOrganizerOverride, actorID,
				fmt.Errorf("%w: cannot override score of a %s match", ErrInvalidTransition, match.State))
		}
		if settled && grant == nil {
			return s.rejectOverride(ctx, match, models.StepOrganizerOverride, actorID, ErrOverrideGrantRequired)
		}

		hadDispute := match.State == models.MatchStateDisputed
		oldScore1, oldScore2 := match.Score1, match.Score2
		appendLobbyEntry(match, map[string]interface{}{
			"action":     "override_score",
			"old_score1": oldScore1,
			"old_score2": oldScore2,
			"new_score1": score1,
			"new_score2": score2,
			"reason":     reason,
			"actor_id":   actorID,
		})

		fact, err = s.settle(ctx, tx, match, score1, score2, models.StepOrganizerOverride, &actorID, nil, hadDispute)
		return err
	})
	if err != nil {
		return err
	}
	s.publishCompleted(tournamentID, fact)
	return nil
}

func (s *matchService) Cancel(ctx context.Context, matchID int, reason string, actorID int) error {
	var tournamentID int
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		match, err := s.lockMatch(ctx, tx, matchID)
		if err != nil {
			return err
		}
		tournamentID = match.TournamentID

		// A completed match can only be voided through an active
		// dispute; everything else non-terminal cancels directly.
		if !overrideAllowed(match.State) {
			return s.rejectOverride(ctx, match, models.StepOrganizerCancel, actorID,
				fmt.Errorf("%w: cannot cancel a %s match", ErrInvalidTransition, match.State))
		}
		match.State = models.MatchStateCancelled
		match.WinnerID = nil
		match.LoserID = nil
		appendLobbyEntry(match, map[string]interface{}{
			"action":   "cancel",
			"reason":   reason,
			"actor_id": actorID,
		})
		if err := s.matchRepo.Update(ctx, tx, match); err != nil {
			return err
		}
		return s.appendLog(ctx, tx, match.ID, nil, models.StepOrganizerCancel, models.VerificationSuccess, &actorID,
			map[string]interface{}{"reason": reason})
	})
	if err != nil {
		return err
	}
	s.publishState(tournamentID, matchID, models.MatchStateCancelled)
	return nil
}

// settle finishes a match with the given scores: winner/loser derivation,
// persistence, the audit entry, advancement, and the completion fact for the
// caller to publish after commit. Ties are only tolerated for group-phase
// matches, where they score as draws.
func (s *matchService) settle(ctx context.Context, tx *sql.Tx, match *models.Match, score1, score2 int,
	step models.VerificationStep, actorID *int, submissionID *uuid.UUID, hadDispute bool) (*events.MatchCompletedFact, error) {

	var winnerID, loserID *int
	switch {
	case score1 == score2:
		if match.GroupID == nil {
			return nil, fmt.Errorf("%w: %d-%d", ErrAmbiguousResult, score1, score2)
		}
	case score1 > score2:
		winnerID, loserID = match.Slot1ParticipantID, match.Slot2ParticipantID
	default:
		winnerID, loserID = match.Slot2ParticipantID, match.Slot1ParticipantID
	}
	if score1 != score2 && winnerID == nil {
		return nil, fmt.Errorf("%w: winning slot of match %d has no participant", ErrContractViolation, match.ID)
	}

	now := time.Now().UTC()
	match.Score1, match.Score2 = &score1, &score2
	match.State = models.MatchStateCompleted
	match.WinnerID = winnerID
	match.LoserID = loserID
	if match.CompletedAt == nil {
		match.CompletedAt = &now
	}
	if err := s.matchRepo.Update(ctx, tx, match); err != nil {
		return nil, err
	}

	detail := map[string]interface{}{"score1": score1, "score2": score2}
	if winnerID != nil {
		detail["winner_id"] = *winnerID
	}
	if err := s.appendLog(ctx, tx, match.ID, submissionID, step, models.VerificationSuccess, actorID, detail); err != nil {
		return nil, err
	}

	if err := s.propagator.Propagate(ctx, tx, match); err != nil {
		return nil, err
	}

	return &events.MatchCompletedFact{
		MatchID:    match.ID,
		WinnerID:   match.WinnerID,
		LoserID:    match.LoserID,
		Score1:     match.Score1,
		Score2:     match.Score2,
		HadDispute: hadDispute,
	}, nil
}

// overrideAllowed reports whether an organizer override may touch the match:
// any non-terminal state except an already-cancelled (or otherwise settled)
// match. Settled matches are reachable only by OverrideScore with a grant.
func overrideAllowed(state models.MatchState) bool {
	switch state {
	case models.MatchStateScheduled, models.MatchStateCheckIn, models.MatchStateReady,
		models.MatchStateLive, models.MatchStatePendingResult, models.MatchStateDisputed:
		return true
	}
	return false
}

// rejectOverride records the rejected organizer action in the audit trail
// (outside the failing transaction, via the plain connection) and returns
// the guard error unchanged.
func (s *matchService) rejectOverride(ctx context.Context, match *models.Match, step models.VerificationStep, actorID int, cause error) error {
	entry := &models.VerificationLogEntry{
		MatchID: match.ID,
		Step:    step,
		Status:  models.VerificationFailure,
		ActorID: &actorID,
		Detail:  detailJSON(map[string]interface{}{"state": string(match.State), "error": cause.Error()}),
	}
	if err := s.logRepo.Append(ctx, s.db, entry); err != nil {
		s.logger.Error("failed to record rejected override", slog.Int("match_id", match.ID), slog.Any("error", err))
	}
	return cause
}

func (s *matchService) lockMatch(ctx context.Context, tx *sql.Tx, matchID int) (*models.Match, error) {
	match, err := s.matchRepo.GetByIDForUpdate(ctx, tx, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return match, nil
}

func (s *matchService) appendLog(ctx context.Context, exec repositories.SQLExecutor, matchID int, submissionID *uuid.UUID,
	step models.VerificationStep, status models.VerificationStatus, actorID *int, detail map[string]interface{}) error {
	entry := &models.VerificationLogEntry{
		MatchID:      matchID,
		SubmissionID: submissionID,
		Step:         step,
		Status:       status,
		ActorID:      actorID,
	}
	if detail != nil {
		entry.Detail = detailJSON(detail)
	}
	return s.logRepo.Append(ctx, exec, entry)
}

func (s *matchService) publishState(tournamentID, matchID int, state models.MatchState) {
	s.publisher.Publish(tournamentID, events.TypeMatchUpdated, events.MatchUpdatedFact{
		MatchID: matchID,
		State:   string(state),
	})
}

func (s *matchService) publishCompleted(tournamentID int, fact *events.MatchCompletedFact) {
	if fact == nil {
		return
	}
	s.publisher.Publish(tournamentID, events.TypeMatchCompleted, *fact)
	s.logger.Info("match completed",
		slog.Int("match_id", fact.MatchID), slog.Bool("had_dispute", fact.HadDispute))
}
