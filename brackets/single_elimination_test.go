package brackets

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nbakenov/tournament-core/models"
)

func rosterOf(n int) []models.RosterEntry {
	roster := make([]models.RosterEntry, 0, n)
	for i := 1; i <= n; i++ {
		roster = append(roster, models.RosterEntry{ParticipantID: 100 + i, Seed: i})
	}
	return roster
}

func generate(t *testing.T, format models.TournamentFormat, roster []models.RosterEntry, seeding models.SeedingMethod) *Plan {
	t.Helper()
	gen, err := GeneratorFor(format)
	require.NoError(t, err)
	plan, err := gen.GenerateBracket(context.Background(), GenerateParams{
		Tournament: &models.Tournament{Format: format},
		Roster:     roster,
		Seeding:    seeding,
	})
	require.NoError(t, err)
	return plan
}

func slotSeed(t *testing.T, s Slot) int {
	t.Helper()
	require.NotNil(t, s.Seed)
	return *s.Seed
}

func TestSingleEliminationEightRanked(t *testing.T) {
	plan := generate(t, models.FormatSingleElimination, rosterOf(8), models.SeedingRanked)

	require.Len(t, plan.Nodes, 7)
	assert.Equal(t, 3, plan.Rounds)

	// Standard placement: 1v8, 4v5 in one half, 2v7, 3v6 in the other.
	wantPairs := [][2]int{{1, 8}, {4, 5}, {2, 7}, {3, 6}}
	for i, want := range wantPairs {
		node := plan.Nodes[i]
		assert.Equal(t, 1, node.Round)
		assert.Equal(t, i+1, node.MatchNumberInRound)
		assert.Equal(t, want[0], slotSeed(t, node.Slot1), "node %d slot1", i)
		assert.Equal(t, want[1], slotSeed(t, node.Slot2), "node %d slot2", i)
		assert.False(t, node.AutoComplete)
	}

	// Semifinal and final linkage.
	for i, want := range []struct{ parent, slot int }{
		{4, models.SlotOne}, {4, models.SlotTwo},
		{5, models.SlotOne}, {5, models.SlotTwo},
		{6, models.SlotOne}, {6, models.SlotTwo},
	} {
		node := plan.Nodes[i]
		require.NotNil(t, node.ParentIndex, "node %d", i)
		assert.Equal(t, want.parent, *node.ParentIndex)
		assert.Equal(t, want.slot, *node.ParentSlot)
		assert.Greater(t, plan.Nodes[want.parent].Round, node.Round)
	}
	assert.Nil(t, plan.Nodes[6].ParentIndex)

	// No byes at a power-of-two roster: all N-1 matches playable.
	for _, node := range plan.Nodes {
		assert.False(t, node.Slot1.IsBye)
		assert.False(t, node.Slot2.IsBye)
	}
}

func TestSingleEliminationByesGoToTopSeeds(t *testing.T) {
	plan := generate(t, models.FormatSingleElimination, rosterOf(6), models.SeedingRanked)

	require.Len(t, plan.Nodes, 7)

	// Seeds 1 and 2 sit in the two bye positions and auto-advance.
	byeWinners := map[int]bool{}
	playable := 0
	for _, node := range plan.Nodes {
		if node.AutoComplete {
			require.NotNil(t, node.WinnerSeed)
			byeWinners[*node.WinnerSeed] = true
			continue
		}
		playable++
	}
	assert.Equal(t, map[int]bool{1: true, 2: true}, byeWinners)
	assert.Equal(t, 5, playable, "six entrants need five playable matches")

	// The walkover winners are already waiting in their semifinal slots.
	semi1, semi2 := plan.Nodes[4], plan.Nodes[5]
	require.NotNil(t, semi1.Slot1.ParticipantID)
	assert.Equal(t, 101, *semi1.Slot1.ParticipantID)
	require.NotNil(t, semi2.Slot1.ParticipantID)
	assert.Equal(t, 102, *semi2.Slot1.ParticipantID)
}

func TestSingleEliminationSlotOrderSeeding(t *testing.T) {
	plan := generate(t, models.FormatSingleElimination, rosterOf(6), models.SeedingSlotOrder)

	// Slot-order placement grants the byes to the front of the list.
	node0, node1 := plan.Nodes[0], plan.Nodes[1]
	assert.Equal(t, 1, slotSeed(t, node0.Slot1))
	assert.True(t, node0.Slot2.IsBye)
	assert.Equal(t, 2, slotSeed(t, node1.Slot1))
	assert.True(t, node1.Slot2.IsBye)

	// Remaining entrants pair in list order.
	assert.Equal(t, 3, slotSeed(t, plan.Nodes[2].Slot1))
	assert.Equal(t, 4, slotSeed(t, plan.Nodes[2].Slot2))
	assert.Equal(t, 5, slotSeed(t, plan.Nodes[3].Slot1))
	assert.Equal(t, 6, slotSeed(t, plan.Nodes[3].Slot2))
}

func TestSingleEliminationDeterministic(t *testing.T) {
	a := generate(t, models.FormatSingleElimination, rosterOf(11), models.SeedingRanked)
	b := generate(t, models.FormatSingleElimination, rosterOf(11), models.SeedingRanked)

	require.Len(t, b.Nodes, len(a.Nodes))
	for i := range a.Nodes {
		assert.Equal(t, a.Nodes[i], b.Nodes[i], "node %d", i)
	}
}

func TestSingleEliminationOddSizes(t *testing.T) {
	for _, n := range []int{2, 3, 5, 7, 9, 16, 17} {
		plan := generate(t, models.FormatSingleElimination, rosterOf(n), models.SeedingRanked)

		playable := 0
		seen := map[int]bool{}
		for _, node := range plan.Nodes {
			if !node.AutoComplete {
				playable++
			}
			for _, s := range []Slot{node.Slot1, node.Slot2} {
				if s.ParticipantID != nil && node.Round == 1 {
					assert.False(t, seen[*s.ParticipantID], "participant placed twice (n=%d)", n)
					seen[*s.ParticipantID] = true
				}
			}
		}
		assert.Equal(t, n-1, playable, "n=%d", n)
	}
}

func TestSingleEliminationTooSmall(t *testing.T) {
	gen := NewSingleEliminationGenerator()
	_, err := gen.GenerateBracket(context.Background(), GenerateParams{
		Tournament: &models.Tournament{Format: models.FormatSingleElimination},
		Roster:     rosterOf(1),
		Seeding:    models.SeedingRanked,
	})
	assert.ErrorIs(t, err, ErrInvalidBracketSize)
}

func TestSeedPositions(t *testing.T) {
	assert.Equal(t, []int{1, 2}, seedPositions(2))
	assert.Equal(t, []int{1, 4, 2, 3}, seedPositions(4))
	assert.Equal(t, []int{1, 8, 4, 5, 2, 7, 3, 6}, seedPositions(8))

	// Every seed appears exactly once at size 16.
	seen := map[int]bool{}
	for _, s := range seedPositions(16) {
		assert.False(t, seen[s])
		seen[s] = true
	}
	assert.Len(t, seen, 16)
}
