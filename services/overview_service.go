package services

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/nbakenov/tournament-core/models"
	"github.com/nbakenov/tournament-core/repositories"
)

// TournamentOverview aggregates everything a bracket view needs in one
// response: structure, matches, and group tables.
type TournamentOverview struct {
	Tournament *models.Tournament    `json:"tournament"`
	Bracket    *models.Bracket       `json:"bracket,omitempty"`
	Nodes      []*models.BracketNode `json:"nodes,omitempty"`
	Matches    []*models.Match       `json:"matches"`
	Groups     []*GroupOverview      `json:"groups,omitempty"`
}

type GroupOverview struct {
	Group     *models.Group          `json:"group"`
	Standings []models.GroupStanding `json:"standings"`
}

type OverviewService interface {
	GetOverview(ctx context.Context, tournamentID int) (*TournamentOverview, error)
}

type overviewService struct {
	tournamentRepo repositories.TournamentRepository
	bracketRepo    repositories.BracketRepository
	matchRepo      repositories.MatchRepository
	groupRepo      repositories.GroupRepository
	propagator     AdvancementPropagator
}

func NewOverviewService(
	tournamentRepo repositories.TournamentRepository,
	bracketRepo repositories.BracketRepository,
	matchRepo repositories.MatchRepository,
	groupRepo repositories.GroupRepository,
	propagator AdvancementPropagator,
) OverviewService {
	return &overviewService{
		tournamentRepo: tournamentRepo,
		bracketRepo:    bracketRepo,
		matchRepo:      matchRepo,
		groupRepo:      groupRepo,
		propagator:     propagator,
	}
}

// GetOverview fans the independent reads out in parallel. A missing bracket
// (not yet finalized) is not an error; the overview just omits it.
func (s *overviewService) GetOverview(ctx context.Context, tournamentID int) (*TournamentOverview, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}

	overview := &TournamentOverview{Tournament: tournament}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		bracket, err := s.bracketRepo.GetBracket(gctx, tournamentID, stageForFormat(tournament.Format))
		if err != nil {
			if errors.Is(err, repositories.ErrBracketNotFound) {
				return nil
			}
			return err
		}
		nodes, err := s.bracketRepo.ListNodes(gctx, bracket.ID)
		if err != nil {
			return err
		}
		overview.Bracket = bracket
		overview.Nodes = nodes
		return nil
	})

	g.Go(func() error {
		matches, _, err := s.matchRepo.ListByTournament(gctx, tournamentID, repositories.MatchFilter{})
		if err != nil {
			return err
		}
		overview.Matches = matches
		return nil
	})

	g.Go(func() error {
		if tournament.Format != models.FormatGroupThenPlayoff {
			return nil
		}
		groups, err := s.groupRepo.ListByTournament(gctx, tournamentID)
		if err != nil {
			return err
		}
		groupViews := make([]*GroupOverview, 0, len(groups))
		for _, group := range groups {
			standings, err := s.propagator.StandingsForGroup(gctx, group.ID)
			if err != nil {
				return err
			}
			groupViews = append(groupViews, &GroupOverview{Group: group, Standings: standings})
		}
		overview.Groups = groupViews
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return overview, nil
}
