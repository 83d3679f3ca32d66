package brackets

import (
	"context"
	"fmt"

	"github.com/nbakenov/tournament-core/models"
)

type GroupPlayoffGenerator struct{}

func NewGroupPlayoffGenerator() BracketGenerator {
	return &GroupPlayoffGenerator{}
}

func (g *GroupPlayoffGenerator) GetName() string {
	return "GroupThenPlayoff"
}

// GenerateBracket deals the roster into group_count groups of near-equal
// size, schedules a single round-robin inside each group (circle method),
// and lays out an empty single-elimination playoff bracket sized
// group_count * advancement_count. Playoff round-one slots carry qualifier
// indexes in standing-major order: qualifier q is the (q/group_count)-ranked
// finisher of group q%group_count, injected once group play completes.
// Rank-major order keeps group mates apart in the first playoff round.
func (g *GroupPlayoffGenerator) GenerateBracket(ctx context.Context, params GenerateParams) (*Plan, error) {
	t := params.Tournament
	roster := params.Roster
	n := len(roster)

	groupCount := t.GroupCount
	advance := t.AdvancementCount
	if groupCount < 1 || advance < 1 {
		return nil, fmt.Errorf("%w: group_count and advancement_count must be positive", ErrInvalidGroupConfig)
	}
	if n < groupCount*2 {
		return nil, fmt.Errorf("%w: group format requires at least %d participants, got %d", ErrInvalidBracketSize, groupCount*2, n)
	}
	qualifiers := groupCount * advance
	if qualifiers < 2 {
		return nil, fmt.Errorf("%w: playoff needs at least 2 qualifiers, got %d", ErrInvalidGroupConfig, qualifiers)
	}
	for _, g := range dealGroups(roster, groupCount) {
		if advance > len(g) {
			return nil, fmt.Errorf("%w: advancement_count %d exceeds smallest group size %d", ErrInvalidGroupConfig, advance, len(g))
		}
	}

	groups := make([]*Group, 0, groupCount)
	for i, members := range dealGroups(roster, groupCount) {
		groups = append(groups, &Group{
			Name:    fmt.Sprintf("Group %c", 'A'+i),
			Members: members,
			Matches: roundRobinSchedule(members),
		})
	}

	// Playoff: a single-elimination tree over qualifier placeholders,
	// filled in slot order; byes (when the qualifier count is not a power
	// of two) therefore fall to the earliest-injected, i.e. best-placed,
	// qualifiers.
	rounds := eliminationRounds(qualifiers)
	size := 1 << uint(rounds)
	nodes := eliminationSkeleton(rounds, 0)
	positions := slotOrderPositions(size, qualifiers)
	for p, entrant := range positions {
		node := nodes[p/2]
		slot := &node.Slot1
		if p%2 == 1 {
			slot = &node.Slot2
		}
		if entrant == 0 {
			slot.IsBye = true
			continue
		}
		q := entrant - 1
		slot.QualifierIndex = &q
	}

	return &Plan{
		Format: models.FormatGroupThenPlayoff,
		Rounds: rounds,
		Nodes:  nodes,
		Groups: groups,
	}, nil
}

// dealGroups distributes the roster round-robin across groups, so group
// sizes differ by at most one and top seeds land in different groups.
func dealGroups(roster []models.RosterEntry, groupCount int) [][]models.RosterEntry {
	groups := make([][]models.RosterEntry, groupCount)
	for i, entry := range roster {
		g := i % groupCount
		groups[g] = append(groups[g], entry)
	}
	return groups
}

// roundRobinSchedule pairs every member against every other exactly once,
// assigning round numbers by the circle method (one fixed pivot, the rest
// rotating). With an odd member count the phantom opponent produces a
// sit-out, not a match.
func roundRobinSchedule(members []models.RosterEntry) []GroupMatch {
	k := len(members)
	arrangement := make([]int, 0, k+1)
	for i := range members {
		arrangement = append(arrangement, i)
	}
	if k%2 == 1 {
		arrangement = append(arrangement, -1)
	}
	m := len(arrangement)

	matches := make([]GroupMatch, 0, k*(k-1)/2)
	for round := 1; round < m; round++ {
		for i := 0; i < m/2; i++ {
			a, b := arrangement[i], arrangement[m-1-i]
			if a == -1 || b == -1 {
				continue
			}
			matches = append(matches, GroupMatch{
				Round: round,
				Slot1: members[a],
				Slot2: members[b],
			})
		}
		// Rotate all but the first position.
		last := arrangement[m-1]
		copy(arrangement[2:], arrangement[1:m-1])
		arrangement[1] = last
	}
	return matches
}
