package brackets

import (
	"context"
	"errors"

	"github.com/nbakenov/tournament-core/models"
)

var (
	// ErrInvalidBracketSize is returned when the roster is below the
	// per-format minimum (2 for elimination, group_count*2 for groups).
	ErrInvalidBracketSize = errors.New("participant count below minimum for format")
	ErrInvalidGroupConfig = errors.New("invalid group configuration")
)

type GenerateParams struct {
	Tournament *models.Tournament
	Roster     []models.RosterEntry
	Seeding    models.SeedingMethod
}

// Slot describes one side of a planned match. Exactly one of the pointer
// fields is set, or none for a slot awaiting advancement. IsBye marks a slot
// construction proved can never receive a participant.
type Slot struct {
	ParticipantID *int
	Seed          *int
	// QualifierIndex is the 0-based group-qualifier injection order for
	// playoff round-1 slots; nil everywhere else.
	QualifierIndex *int
	IsBye          bool
}

// Node is one planned bracket position. Index is the node's arena index
// within the plan; parent/loser links are arena indexes, never object
// references, so the graph is trivially acyclic to verify.
type Node struct {
	Index              int
	Round              int
	MatchNumberInRound int
	ParentIndex        *int
	ParentSlot         *int
	LoserIndex         *int
	LoserSlot          *int

	Slot1 Slot
	Slot2 Slot

	// AutoComplete marks matches resolved at construction time: byes
	// (WinnerID set) and dead losers-bracket positions fed only by byes
	// (WinnerID nil).
	AutoComplete bool
	WinnerID     *int
	WinnerSeed   *int
}

type GroupMatch struct {
	Round int
	Slot1 models.RosterEntry
	Slot2 models.RosterEntry
}

type Group struct {
	Name    string
	Members []models.RosterEntry
	Matches []GroupMatch
}

// Plan is the complete generated structure for one tournament, to be
// persisted by the caller. For group formats Nodes describe the (initially
// empty) playoff bracket and Groups the round-robin phase.
type Plan struct {
	Format models.TournamentFormat
	Rounds int
	Nodes  []*Node
	Groups []*Group
}

type BracketGenerator interface {
	GenerateBracket(ctx context.Context, params GenerateParams) (*Plan, error)

	GetName() string
}

// GeneratorFor returns the generator for a tournament format.
func GeneratorFor(format models.TournamentFormat) (BracketGenerator, error) {
	switch format {
	case models.FormatSingleElimination:
		return NewSingleEliminationGenerator(), nil
	case models.FormatDoubleElimination:
		return NewDoubleEliminationGenerator(), nil
	case models.FormatGroupThenPlayoff:
		return NewGroupPlayoffGenerator(), nil
	default:
		return nil, errors.New("unsupported tournament format: " + string(format))
	}
}
