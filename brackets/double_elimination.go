package brackets

import (
	"context"
	"fmt"

	"github.com/nbakenov/tournament-core/models"
)

type DoubleEliminationGenerator struct{}

func NewDoubleEliminationGenerator() BracketGenerator {
	return &DoubleEliminationGenerator{}
}

func (g *DoubleEliminationGenerator) GetName() string {
	return "DoubleElimination"
}

// GenerateBracket builds a winners bracket (rounds 1..r), a losers bracket
// (rounds r+1..r+2(r-1), alternating drop-in and internal rounds) and a grand
// final. Round numbers are global so that every parent or loser link points
// at a strictly higher round. No bracket reset match is generated: the grand
// final decides the tournament in one match.
func (g *DoubleEliminationGenerator) GenerateBracket(ctx context.Context, params GenerateParams) (*Plan, error) {
	roster := params.Roster
	n := len(roster)
	if n < 2 {
		return nil, fmt.Errorf("%w: double elimination requires at least 2 participants, got %d", ErrInvalidBracketSize, n)
	}

	rounds := eliminationRounds(n)
	size := 1 << uint(rounds)

	if rounds == 1 {
		// Two entrants: a losers bracket cannot exist, degrade to a
		// single final.
		return NewSingleEliminationGenerator().GenerateBracket(ctx, params)
	}

	// Winners bracket skeleton, arena indexes 0..size-2.
	nodes := eliminationSkeleton(rounds, 0)

	// Losers bracket rounds are numbered globally after the winners
	// bracket. lbFirst[j] is the arena index of the first node of losers
	// round j+1; losers round 2m-1 pairs survivors, round 2m receives the
	// losers of winners round m+1.
	lbRounds := 2 * (rounds - 1)
	lbFirst := make([]int, lbRounds)
	idx := len(nodes)
	for j := 0; j < lbRounds; j++ {
		lbFirst[j] = idx
		idx += lbRoundSize(size, j+1)
	}
	grandFinalIdx := idx

	for j := 0; j < lbRounds; j++ {
		count := lbRoundSize(size, j+1)
		for k := 0; k < count; k++ {
			node := &Node{
				Index:              lbFirst[j] + k,
				Round:              rounds + j + 1,
				MatchNumberInRound: k + 1,
			}
			// Winner destination within (or out of) the losers bracket.
			if j == lbRounds-1 {
				slot := models.SlotTwo
				gf := grandFinalIdx
				node.ParentIndex = &gf
				node.ParentSlot = &slot
			} else if (j+1)%2 == 1 {
				// Odd losers round k feeds slot 1 of the same-index
				// match in the next (drop-in) round.
				parent := lbFirst[j+1] + k
				slot := models.SlotOne
				node.ParentIndex = &parent
				node.ParentSlot = &slot
			} else {
				parent := lbFirst[j+1] + k/2
				slot := models.SlotOne
				if k%2 == 1 {
					slot = models.SlotTwo
				}
				node.ParentIndex = &parent
				node.ParentSlot = &slot
			}
			nodes = append(nodes, node)
		}
	}

	gfSlot := models.SlotOne
	nodes = append(nodes, &Node{
		Index:              grandFinalIdx,
		Round:              rounds + lbRounds + 1,
		MatchNumberInRound: 1,
	})
	// Winners bracket final feeds grand final slot 1.
	wbFinal := nodes[(1<<uint(rounds))-2]
	gf := grandFinalIdx
	wbFinal.ParentIndex = &gf
	wbFinal.ParentSlot = &gfSlot

	// Loser routing out of the winners bracket.
	wbIdx := 0
	for r := 1; r <= rounds; r++ {
		count := 1 << uint(rounds-r)
		for k := 0; k < count; k++ {
			node := nodes[wbIdx]
			var dest, slot int
			if r == 1 {
				dest = lbFirst[0] + k/2
				slot = models.SlotOne
				if k%2 == 1 {
					slot = models.SlotTwo
				}
			} else {
				// Losers of winners round r drop into losers round
				// 2(r-1), always slot 2.
				dest = lbFirst[2*(r-1)-1] + k
				slot = models.SlotTwo
			}
			node.LoserIndex = &dest
			node.LoserSlot = &slot
			wbIdx++
		}
	}

	positions := bracketPositions(size, n, params.Seeding == models.SeedingRanked)
	fillRoundOne(nodes, positions, roster, 0)

	if err := resolveConstructionByes(nodes); err != nil {
		return nil, err
	}

	return &Plan{
		Format: models.FormatDoubleElimination,
		Rounds: rounds + lbRounds + 1,
		Nodes:  nodes,
	}, nil
}

// lbRoundSize returns the match count of losers round j (1-based) for a full
// winners bracket of the given size: rounds 2m-1 and 2m both hold
// size/2^(m+1) matches.
func lbRoundSize(size, j int) int {
	m := (j + 1) / 2
	return size >> uint(m+1)
}
