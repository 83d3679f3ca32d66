package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nbakenov/tournament-core/brackets"
	"github.com/nbakenov/tournament-core/events"
	"github.com/nbakenov/tournament-core/models"
	"github.com/nbakenov/tournament-core/repositories"
)

type TournamentService interface {
	CreateTournament(ctx context.Context, t *models.Tournament) (*models.Tournament, error)
	GetTournament(ctx context.Context, id int) (*models.Tournament, error)

	// FinalizeBracket generates the full structure for the confirmed roster
	// and persists it atomically: groups and their round-robin schedules,
	// the bracket node graph, and every match row. Once finalized the node
	// graph is immutable; only participant slots change afterwards, through
	// advancement.
	FinalizeBracket(ctx context.Context, tournamentID int, roster []models.RosterEntry, seeding models.SeedingMethod) (*models.Bracket, error)

	GetBracket(ctx context.Context, tournamentID int) (*models.Bracket, []*models.BracketNode, error)
	ListGroups(ctx context.Context, tournamentID int) ([]*models.Group, error)
}

type tournamentService struct {
	db             *sql.DB
	tournamentRepo repositories.TournamentRepository
	bracketRepo    repositories.BracketRepository
	matchRepo      repositories.MatchRepository
	groupRepo      repositories.GroupRepository
	publisher      events.Publisher
	logger         *slog.Logger
}

func NewTournamentService(
	db *sql.DB,
	tournamentRepo repositories.TournamentRepository,
	bracketRepo repositories.BracketRepository,
	matchRepo repositories.MatchRepository,
	groupRepo repositories.GroupRepository,
	publisher events.Publisher,
	logger *slog.Logger,
) TournamentService {
	return &tournamentService{
		db:             db,
		tournamentRepo: tournamentRepo,
		bracketRepo:    bracketRepo,
		matchRepo:      matchRepo,
		groupRepo:      groupRepo,
		publisher:      publisher,
		logger:         logger,
	}
}

func (s *tournamentService) CreateTournament(ctx context.Context, t *models.Tournament) (*models.Tournament, error) {
	if t.Name == "" {
		return nil, fmt.Errorf("%w: tournament name is required", ErrValidationFailed)
	}
	if !t.Format.Valid() {
		return nil, fmt.Errorf("%w: unknown tournament format %q", ErrValidationFailed, t.Format)
	}
	if t.Format == models.FormatGroupThenPlayoff {
		if t.GroupCount < 1 {
			return nil, fmt.Errorf("%w: group format requires at least one group", ErrValidationFailed)
		}
		if t.AdvancementCount < 1 {
			return nil, fmt.Errorf("%w: group format requires at least one qualifier per group", ErrValidationFailed)
		}
	}

	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		return s.tournamentRepo.Create(ctx, tx, t)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("tournament created",
		slog.Int("tournament_id", t.ID), slog.String("format", string(t.Format)))
	return t, nil
}

func (s *tournamentService) GetTournament(ctx context.Context, id int) (*models.Tournament, error) {
	t, err := s.tournamentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	return t, nil
}

func (s *tournamentService) FinalizeBracket(ctx context.Context, tournamentID int, roster []models.RosterEntry, seeding models.SeedingMethod) (*models.Bracket, error) {
	tournament, err := s.GetTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if seeding != models.SeedingRanked && seeding != models.SeedingSlotOrder {
		return nil, fmt.Errorf("%w: unknown seeding method %q", ErrValidationFailed, seeding)
	}

	stage := stageForFormat(tournament.Format)
	if existing, err := s.bracketRepo.GetBracket(ctx, tournamentID, stage); err == nil && existing != nil {
		return nil, ErrBracketAlreadyFinalized
	} else if err != nil && !errors.Is(err, repositories.ErrBracketNotFound) {
		return nil, err
	}

	generator, err := brackets.GeneratorFor(tournament.Format)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	plan, err := generator.GenerateBracket(ctx, brackets.GenerateParams{
		Tournament: tournament,
		Roster:     roster,
		Seeding:    seeding,
	})
	if err != nil {
		if errors.Is(err, brackets.ErrInvalidBracketSize) || errors.Is(err, brackets.ErrInvalidGroupConfig) {
			return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
		}
		return nil, err
	}

	bracket := &models.Bracket{TournamentID: tournamentID, Stage: stage}
	err = withTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.persistGroups(ctx, tx, tournament, plan); err != nil {
			return err
		}
		if err := s.persistBracket(ctx, tx, tournament, plan, bracket); err != nil {
			return err
		}
		if err := s.bracketRepo.Finalize(ctx, tx, bracket.ID); err != nil {
			return err
		}
		return s.tournamentRepo.UpdateRoundCount(ctx, tx, tournamentID, plan.Rounds)
	})
	if err != nil {
		return nil, err
	}
	bracket.IsFinalized = true

	s.publisher.Publish(tournamentID, events.TypeBracketFinal, map[string]interface{}{
		"bracket_id": bracket.ID,
		"format":     string(tournament.Format),
		"rounds":     plan.Rounds,
	})
	s.logger.Info("bracket finalized",
		slog.Int("tournament_id", tournamentID),
		slog.Int("bracket_id", bracket.ID),
		slog.Int("participants", len(roster)),
		slog.Int("rounds", plan.Rounds),
		slog.String("generator", generator.GetName()))
	return bracket, nil
}

// persistGroups creates the group phase of a group_then_playoff plan: group
// rows, their memberships, and the round-robin match schedule.
func (s *tournamentService) persistGroups(ctx context.Context, tx *sql.Tx, tournament *models.Tournament, plan *brackets.Plan) error {
	for _, pg := range plan.Groups {
		group := &models.Group{
			TournamentID:     tournament.ID,
			Name:             pg.Name,
			AdvancementCount: tournament.AdvancementCount,
		}
		if err := s.groupRepo.Create(ctx, tx, group); err != nil {
			return err
		}
		for _, member := range pg.Members {
			gm := &models.GroupMember{
				GroupID:       group.ID,
				ParticipantID: member.ParticipantID,
				Seed:          member.Seed,
			}
			if err := s.groupRepo.AddMember(ctx, tx, gm); err != nil {
				return err
			}
		}
		for _, planned := range pg.Matches {
			match := &models.Match{
				TournamentID:       tournament.ID,
				GroupID:            &group.ID,
				Round:              planned.Round,
				Slot1ParticipantID: intPtr(planned.Slot1.ParticipantID),
				Slot1Seed:          intPtr(planned.Slot1.Seed),
				Slot2ParticipantID: intPtr(planned.Slot2.ParticipantID),
				Slot2Seed:          intPtr(planned.Slot2.Seed),
				State:              models.MatchStateScheduled,
			}
			if err := s.matchRepo.Create(ctx, tx, match); err != nil {
				return err
			}
		}
	}
	return nil
}

// persistBracket writes the node graph in two passes: first every match and
// node row (collecting generated ids), then the parent/loser links, which
// translate plan arena indexes into node ids.
func (s *tournamentService) persistBracket(ctx context.Context, tx *sql.Tx, tournament *models.Tournament, plan *brackets.Plan, bracket *models.Bracket) error {
	if err := s.bracketRepo.CreateBracket(ctx, tx, bracket); err != nil {
		return err
	}

	nodeByIndex := make(map[int]*models.BracketNode, len(plan.Nodes))
	for _, planned := range plan.Nodes {
		match := &models.Match{
			TournamentID:       tournament.ID,
			Round:              planned.Round,
			Slot1ParticipantID: planned.Slot1.ParticipantID,
			Slot1Seed:          planned.Slot1.Seed,
			Slot1IsBye:         planned.Slot1.IsBye,
			Slot2ParticipantID: planned.Slot2.ParticipantID,
			Slot2Seed:          planned.Slot2.Seed,
			Slot2IsBye:         planned.Slot2.IsBye,
			State:              models.MatchStateScheduled,
		}
		if planned.AutoComplete {
			// Construction-resolved positions: byes complete with
			// their walkover winner, dead losers-bracket positions
			// (fed only by byes) are never playable.
			if planned.WinnerID != nil {
				match.State = models.MatchStateCompleted
				match.WinnerID = planned.WinnerID
			} else {
				match.State = models.MatchStateCancelled
			}
		}
		if err := s.matchRepo.Create(ctx, tx, match); err != nil {
			return err
		}

		node := &models.BracketNode{
			BracketID:          bracket.ID,
			RoundNumber:        planned.Round,
			MatchNumberInRound: planned.MatchNumberInRound,
			MatchID:            match.ID,
		}
		if err := s.bracketRepo.CreateNode(ctx, tx, node); err != nil {
			return err
		}
		nodeByIndex[planned.Index] = node
	}

	for _, planned := range plan.Nodes {
		if planned.ParentIndex == nil && planned.LoserIndex == nil {
			continue
		}
		node := nodeByIndex[planned.Index]
		if planned.ParentIndex != nil {
			parent, ok := nodeByIndex[*planned.ParentIndex]
			if !ok {
				return fmt.Errorf("%w: plan node %d links to unknown parent index %d",
					ErrContractViolation, planned.Index, *planned.ParentIndex)
			}
			node.ParentNodeID = &parent.ID
			node.ParentSlot = planned.ParentSlot
		}
		if planned.LoserIndex != nil {
			loserDest, ok := nodeByIndex[*planned.LoserIndex]
			if !ok {
				return fmt.Errorf("%w: plan node %d links to unknown loser index %d",
					ErrContractViolation, planned.Index, *planned.LoserIndex)
			}
			node.LoserNodeID = &loserDest.ID
			node.LoserSlot = planned.LoserSlot
		}
		if err := s.bracketRepo.UpdateNodeLinks(ctx, tx, node); err != nil {
			return err
		}
	}
	return nil
}

func (s *tournamentService) GetBracket(ctx context.Context, tournamentID int) (*models.Bracket, []*models.BracketNode, error) {
	tournament, err := s.GetTournament(ctx, tournamentID)
	if err != nil {
		return nil, nil, err
	}
	bracket, err := s.bracketRepo.GetBracket(ctx, tournamentID, stageForFormat(tournament.Format))
	if err != nil {
		if errors.Is(err, repositories.ErrBracketNotFound) {
			return nil, nil, ErrBracketNotFound
		}
		return nil, nil, err
	}
	nodes, err := s.bracketRepo.ListNodes(ctx, bracket.ID)
	if err != nil {
		return nil, nil, err
	}
	return bracket, nodes, nil
}

func (s *tournamentService) ListGroups(ctx context.Context, tournamentID int) ([]*models.Group, error) {
	if _, err := s.GetTournament(ctx, tournamentID); err != nil {
		return nil, err
	}
	return s.groupRepo.ListByTournament(ctx, tournamentID)
}

func stageForFormat(format models.TournamentFormat) string {
	if format == models.FormatGroupThenPlayoff {
		return models.BracketStagePlayoff
	}
	return models.BracketStageMain
}
