package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nbakenov/tournament-core/models"
	"github.com/nbakenov/tournament-core/repositories"
	"github.com/nbakenov/tournament-core/standings"
)

// AdvancementPropagator pushes settled results through the bracket graph:
// winners (and, for double elimination, losers) into their destination
// slots, and completed groups into the playoff bracket. It is the only
// writer of participant slots once a bracket is finalized.
type AdvancementPropagator interface {
	// Propagate routes the outcome of a settled match. Idempotent per
	// (destination node, slot): delivering the same winner twice is a
	// no-op; a different winner is accepted only while the destination
	// match is still scheduled, otherwise the correction fails with
	// ErrContractViolation and nothing is written.
	Propagate(ctx context.Context, exec repositories.SQLExecutor, match *models.Match) error

	// StandingsForGroup recomputes the group's current table.
	StandingsForGroup(ctx context.Context, groupID int) ([]models.GroupStanding, error)
}

type advancementPropagator struct {
	matchRepo   repositories.MatchRepository
	bracketRepo repositories.BracketRepository
	groupRepo   repositories.GroupRepository
	logRepo     repositories.VerificationLogRepository
	logger      *slog.Logger
}

func NewAdvancementPropagator(
	matchRepo repositories.MatchRepository,
	bracketRepo repositories.BracketRepository,
	groupRepo repositories.GroupRepository,
	logRepo repositories.VerificationLogRepository,
	logger *slog.Logger,
) AdvancementPropagator {
	return &advancementPropagator{
		matchRepo:   matchRepo,
		bracketRepo: bracketRepo,
		groupRepo:   groupRepo,
		logRepo:     logRepo,
		logger:      logger,
	}
}

func (p *advancementPropagator) Propagate(ctx context.Context, exec repositories.SQLExecutor, match *models.Match) error {
	if match.GroupID != nil {
		return p.propagateGroup(ctx, exec, match)
	}

	node, err := p.bracketRepo.GetNodeByMatchID(ctx, match.ID)
	if err != nil {
		if errors.Is(err, repositories.ErrBracketNodeNotFound) {
			return fmt.Errorf("%w: settled match %d has no bracket node", ErrContractViolation, match.ID)
		}
		return err
	}

	if match.WinnerID != nil && node.ParentNodeID != nil {
		winnerSeed := match.SeedOf(*match.WinnerID)
		if err := p.fillSlot(ctx, exec, *node.ParentNodeID, *node.ParentSlot, *match.WinnerID, winnerSeed, match.ID); err != nil {
			return err
		}
	}
	if match.LoserID != nil && node.LoserNodeID != nil {
		loserSeed := match.SeedOf(*match.LoserID)
		if err := p.fillSlot(ctx, exec, *node.LoserNodeID, *node.LoserSlot, *match.LoserID, loserSeed, match.ID); err != nil {
			return err
		}
	}
	return nil
}

// fillSlot writes a participant into one side of a destination match. The
// destination match row is locked for the transaction, making the
// exactly-once rule safe against concurrent completion deliveries.
func (p *advancementPropagator) fillSlot(ctx context.Context, exec repositories.SQLExecutor, nodeID, slot, participantID int, seed *int, sourceMatchID int) error {
	node, err := p.bracketRepo.GetNodeByID(ctx, nodeID)
	if err != nil {
		if errors.Is(err, repositories.ErrBracketNodeNotFound) {
			return fmt.Errorf("%w: destination node %d missing", ErrContractViolation, nodeID)
		}
		return err
	}
	dest, err := p.matchRepo.GetByIDForUpdate(ctx, exec, node.MatchID)
	if err != nil {
		return fmt.Errorf("failed to load destination match %d: %w", node.MatchID, err)
	}

	current := dest.ParticipantInSlot(slot)
	if current != nil {
		if *current == participantID {
			return nil // same winner re-delivered: exactly-once no-op
		}
		if dest.State != models.MatchStateScheduled {
			return fmt.Errorf("%w: cannot replace participant %d with %d in match %d slot %d: match already %s",
				ErrContractViolation, *current, participantID, dest.ID, slot, dest.State)
		}
	}

	if err := p.matchRepo.UpdateSlot(ctx, exec, dest.ID, slot, &participantID, seed); err != nil {
		return err
	}
	if slot == models.SlotOne {
		dest.Slot1ParticipantID = &participantID
		dest.Slot1Seed = seed
	} else {
		dest.Slot2ParticipantID = &participantID
		dest.Slot2Seed = seed
	}

	detail := map[string]interface{}{
		"source_match_id": sourceMatchID,
		"participant_id":  participantID,
		"slot":            slot,
	}
	if current != nil {
		detail["replaced_participant_id"] = *current
	}
	entry := &models.VerificationLogEntry{
		MatchID: dest.ID,
		Step:    models.StepAdvancement,
		Status:  models.VerificationSuccess,
		Detail:  detailJSON(detail),
	}
	if err := p.logRepo.Append(ctx, exec, entry); err != nil {
		return err
	}

	// A slot whose sibling is a bye marker can never be contested: the
	// arriving participant wins the match immediately and advances on.
	otherBye := dest.Slot2IsBye
	if slot == models.SlotTwo {
		otherBye = dest.Slot1IsBye
	}
	if otherBye && dest.State == models.MatchStateScheduled {
		return p.completeByeMatch(ctx, exec, dest, participantID)
	}
	return nil
}

func (p *advancementPropagator) completeByeMatch(ctx context.Context, exec repositories.SQLExecutor, match *models.Match, winnerID int) error {
	now := time.Now().UTC()
	match.State = models.MatchStateCompleted
	match.WinnerID = &winnerID
	match.CompletedAt = &now
	if err := p.matchRepo.Update(ctx, exec, match); err != nil {
		return err
	}
	entry := &models.VerificationLogEntry{
		MatchID: match.ID,
		Step:    models.StepAdvancement,
		Status:  models.VerificationSuccess,
		Detail:  detailJSON(map[string]interface{}{"bye_auto_completed": true, "winner_id": winnerID}),
	}
	if err := p.logRepo.Append(ctx, exec, entry); err != nil {
		return err
	}
	p.logger.Info("bye match auto-completed",
		slog.Int("match_id", match.ID), slog.Int("winner_id", winnerID))
	return p.Propagate(ctx, exec, match)
}

// propagateGroup checks whether the settled match finished its group and, if
// so, seeds the playoff bracket with the group's qualifiers. Re-running after
// a correction is harmless: unchanged qualifiers are no-ops in fillSlot.
func (p *advancementPropagator) propagateGroup(ctx context.Context, exec repositories.SQLExecutor, match *models.Match) error {
	group, err := p.groupRepo.GetByID(ctx, *match.GroupID)
	if err != nil {
		if errors.Is(err, repositories.ErrGroupNotFound) {
			return fmt.Errorf("%w: match %d references missing group %d", ErrContractViolation, match.ID, *match.GroupID)
		}
		return err
	}

	groupMatches, err := p.groupMatchesWithCurrent(ctx, group.ID, match)
	if err != nil {
		return err
	}
	for _, gm := range groupMatches {
		if !gm.State.Settled() && gm.State != models.MatchStateCancelled {
			return nil // group still in progress
		}
	}

	members, err := p.groupRepo.ListMembers(ctx, group.ID)
	if err != nil {
		return err
	}
	table := standings.Calculate(group, members, groupMatches, standings.DefaultPointRules)

	groups, err := p.groupRepo.ListByTournament(ctx, match.TournamentID)
	if err != nil {
		return err
	}
	groupIdx := -1
	for i, g := range groups {
		if g.ID == group.ID {
			groupIdx = i
			break
		}
	}
	if groupIdx < 0 {
		return fmt.Errorf("%w: group %d not listed under tournament %d", ErrContractViolation, group.ID, match.TournamentID)
	}

	openSlots, err := p.playoffOpenSlots(ctx, match.TournamentID)
	if err != nil {
		return err
	}

	for rank := 0; rank < group.AdvancementCount && rank < len(table); rank++ {
		qualifier := table[rank]
		// Rank-major injection order: all winners first, then all
		// runners-up, and so on.
		q := rank*len(groups) + groupIdx
		if q >= len(openSlots) {
			return fmt.Errorf("%w: qualifier index %d exceeds playoff capacity %d", ErrContractViolation, q, len(openSlots))
		}
		target := openSlots[q]
		if err := p.fillSlot(ctx, exec, target.nodeID, target.slot, qualifier.ParticipantID, intPtr(q+1), match.ID); err != nil {
			return err
		}
		entry := &models.VerificationLogEntry{
			MatchID: target.matchID,
			Step:    models.StepGroupAdvancement,
			Status:  models.VerificationSuccess,
			Detail: detailJSON(map[string]interface{}{
				"group_id":       group.ID,
				"participant_id": qualifier.ParticipantID,
				"rank":           qualifier.Rank,
			}),
		}
		if err := p.logRepo.Append(ctx, exec, entry); err != nil {
			return err
		}
	}

	p.logger.Info("group completed, qualifiers seeded into playoff",
		slog.Int("group_id", group.ID), slog.Int("tournament_id", match.TournamentID))
	return nil
}

type playoffSlot struct {
	nodeID  int
	matchID int
	slot    int
}

// playoffOpenSlots lists the playoff first-round slots in injection order:
// node order, slot one before slot two, bye positions skipped.
func (p *advancementPropagator) playoffOpenSlots(ctx context.Context, tournamentID int) ([]playoffSlot, error) {
	bracket, err := p.bracketRepo.GetBracket(ctx, tournamentID, models.BracketStagePlayoff)
	if err != nil {
		if errors.Is(err, repositories.ErrBracketNotFound) {
			return nil, fmt.Errorf("%w: tournament %d has no playoff bracket", ErrContractViolation, tournamentID)
		}
		return nil, err
	}
	nodes, err := p.bracketRepo.ListNodes(ctx, bracket.ID)
	if err != nil {
		return nil, err
	}

	slots := make([]playoffSlot, 0)
	for _, node := range nodes {
		if node.RoundNumber != 1 {
			continue
		}
		m, err := p.matchRepo.GetByID(ctx, node.MatchID)
		if err != nil {
			return nil, err
		}
		if !m.Slot1IsBye {
			slots = append(slots, playoffSlot{nodeID: node.ID, matchID: m.ID, slot: models.SlotOne})
		}
		if !m.Slot2IsBye {
			slots = append(slots, playoffSlot{nodeID: node.ID, matchID: m.ID, slot: models.SlotTwo})
		}
	}
	return slots, nil
}

// groupMatchesWithCurrent lists the group's matches with the in-flight match
// swapped in, since the listing read does not see this transaction's write.
func (p *advancementPropagator) groupMatchesWithCurrent(ctx context.Context, groupID int, current *models.Match) ([]*models.Match, error) {
	matches, err := p.matchRepo.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	for i, m := range matches {
		if m.ID == current.ID {
			matches[i] = current
		}
	}
	return matches, nil
}

func (p *advancementPropagator) StandingsForGroup(ctx context.Context, groupID int) ([]models.GroupStanding, error) {
	group, err := p.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, repositories.ErrGroupNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, err
	}
	members, err := p.groupRepo.ListMembers(ctx, groupID)
	if err != nil {
		return nil, err
	}
	matches, err := p.matchRepo.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return standings.Calculate(group, members, matches, standings.DefaultPointRules), nil
}
