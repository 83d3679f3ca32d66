package brackets

import (
	"context"
	"fmt"
	"sort"

	"github.com/nbakenov/tournament-core/models"
)

type SingleEliminationGenerator struct{}

func NewSingleEliminationGenerator() BracketGenerator {
	return &SingleEliminationGenerator{}
}

func (g *SingleEliminationGenerator) GetName() string {
	return "SingleElimination"
}

// GenerateBracket builds the full 2^r-1 node tree for the roster. Byes are
// assigned to the highest seeds when the roster is not a power of two, and
// bye matches are auto-resolved at construction so advancement never has to
// special-case them. Deterministic for a given roster order.
func (g *SingleEliminationGenerator) GenerateBracket(ctx context.Context, params GenerateParams) (*Plan, error) {
	roster := params.Roster
	n := len(roster)
	if n < 2 {
		return nil, fmt.Errorf("%w: single elimination requires at least 2 participants, got %d", ErrInvalidBracketSize, n)
	}

	rounds := eliminationRounds(n)
	size := 1 << uint(rounds)

	nodes := eliminationSkeleton(rounds, 0)
	positions := bracketPositions(size, n, params.Seeding == models.SeedingRanked)
	fillRoundOne(nodes, positions, roster, 0)

	if err := resolveConstructionByes(nodes); err != nil {
		return nil, err
	}

	return &Plan{
		Format: models.FormatSingleElimination,
		Rounds: rounds,
		Nodes:  nodes,
	}, nil
}

// eliminationSkeleton creates the node arena for a full single-elimination
// tree of 2^rounds leaves. Rounds are numbered roundBase+1..roundBase+rounds;
// parent links point one round up, slot by child position.
func eliminationSkeleton(rounds, roundBase int) []*Node {
	total := (1 << uint(rounds)) - 1
	nodes := make([]*Node, 0, total)

	// firstIndex[r] is the arena index of the first node in round r+1.
	firstIndex := make([]int, rounds)
	idx := 0
	for r := 0; r < rounds; r++ {
		firstIndex[r] = idx
		idx += 1 << uint(rounds-r-1)
	}

	for r := 0; r < rounds; r++ {
		count := 1 << uint(rounds-r-1)
		for j := 0; j < count; j++ {
			node := &Node{
				Index:              firstIndex[r] + j,
				Round:              roundBase + r + 1,
				MatchNumberInRound: j + 1,
			}
			if r < rounds-1 {
				parent := firstIndex[r+1] + j/2
				slot := models.SlotOne
				if j%2 == 1 {
					slot = models.SlotTwo
				}
				node.ParentIndex = &parent
				node.ParentSlot = &slot
			}
			nodes = append(nodes, node)
		}
	}
	return nodes
}

// fillRoundOne writes the position assignment into the first-round slots.
// nodeBase is the arena index of the first round-one node.
func fillRoundOne(nodes []*Node, positions []int, roster []models.RosterEntry, nodeBase int) {
	for p, entrant := range positions {
		node := nodes[nodeBase+p/2]
		slot := &node.Slot1
		if p%2 == 1 {
			slot = &node.Slot2
		}
		if entrant == 0 {
			slot.IsBye = true
			continue
		}
		entry := roster[entrant-1]
		pid := entry.ParticipantID
		seed := entry.Seed
		slot.ParticipantID = &pid
		slot.Seed = &seed
	}
}

// resolveConstructionByes walks the arena in round order and settles every
// match decidable at construction time: a real participant against a bye wins
// immediately, and a match fed only by byes dies and passes a bye marker on.
// Winners (or bye markers) are pushed into parent and loser destinations so
// the runtime propagator never sees a construction bye.
func resolveConstructionByes(nodes []*Node) error {
	ordered := make([]*Node, len(nodes))
	copy(ordered, nodes)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Round < ordered[j].Round })

	for _, node := range ordered {
		s1, s2 := node.Slot1, node.Slot2
		switch {
		case s1.IsBye && s2.IsBye:
			node.AutoComplete = true
			planPropagateBye(nodes, node.ParentIndex, node.ParentSlot)
			planPropagateBye(nodes, node.LoserIndex, node.LoserSlot)
		case s1.ParticipantID != nil && s2.IsBye:
			node.AutoComplete = true
			node.WinnerID = s1.ParticipantID
			node.WinnerSeed = s1.Seed
			planPropagateWinner(nodes, node)
			planPropagateBye(nodes, node.LoserIndex, node.LoserSlot)
		case s2.ParticipantID != nil && s1.IsBye:
			node.AutoComplete = true
			node.WinnerID = s2.ParticipantID
			node.WinnerSeed = s2.Seed
			planPropagateWinner(nodes, node)
			planPropagateBye(nodes, node.LoserIndex, node.LoserSlot)
		}
		// A bye next to a slot only known at runtime (an advancement or
		// group-qualifier slot) is left for the propagator's
		// arriving-next-to-a-bye rule.
	}
	return nil
}

func planPropagateWinner(nodes []*Node, node *Node) {
	if node.ParentIndex == nil || node.WinnerID == nil {
		return
	}
	parent := nodes[*node.ParentIndex]
	slot := &parent.Slot1
	if *node.ParentSlot == models.SlotTwo {
		slot = &parent.Slot2
	}
	slot.ParticipantID = node.WinnerID
	slot.Seed = node.WinnerSeed
}

func planPropagateBye(nodes []*Node, idx, slotNum *int) {
	if idx == nil {
		return
	}
	parent := nodes[*idx]
	slot := &parent.Slot1
	if *slotNum == models.SlotTwo {
		slot = &parent.Slot2
	}
	slot.IsBye = true
}
