package brackets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nbakenov/tournament-core/models"
)

func TestDoubleEliminationEight(t *testing.T) {
	plan := generate(t, models.FormatDoubleElimination, rosterOf(8), models.SeedingRanked)

	// 7 winners nodes, 6 losers nodes (2+2+1+1), 1 grand final.
	require.Len(t, plan.Nodes, 14)
	assert.Equal(t, 8, plan.Rounds)

	// Round layout: winners 1..3, losers 4..7, grand final 8.
	roundCounts := map[int]int{}
	for _, node := range plan.Nodes {
		roundCounts[node.Round]++
	}
	assert.Equal(t, map[int]int{1: 4, 2: 2, 3: 1, 4: 2, 5: 2, 6: 1, 7: 1, 8: 1}, roundCounts)

	// Winners round 1 losers pair up in losers round 1.
	wantLoserDest := []struct{ dest, slot int }{
		{7, models.SlotOne}, {7, models.SlotTwo},
		{8, models.SlotOne}, {8, models.SlotTwo},
	}
	for i, want := range wantLoserDest {
		node := plan.Nodes[i]
		require.NotNil(t, node.LoserIndex, "winners node %d", i)
		assert.Equal(t, want.dest, *node.LoserIndex)
		assert.Equal(t, want.slot, *node.LoserSlot)
	}

	// Later winners losers drop into slot 2 of the matching drop-in round.
	require.NotNil(t, plan.Nodes[4].LoserIndex)
	assert.Equal(t, 9, *plan.Nodes[4].LoserIndex)
	assert.Equal(t, models.SlotTwo, *plan.Nodes[4].LoserSlot)
	require.NotNil(t, plan.Nodes[5].LoserIndex)
	assert.Equal(t, 10, *plan.Nodes[5].LoserIndex)
	assert.Equal(t, models.SlotTwo, *plan.Nodes[5].LoserSlot)
	require.NotNil(t, plan.Nodes[6].LoserIndex)
	assert.Equal(t, 12, *plan.Nodes[6].LoserIndex)
	assert.Equal(t, models.SlotTwo, *plan.Nodes[6].LoserSlot)

	// Grand final: winners champion in slot 1, losers champion in slot 2.
	gf := plan.Nodes[13]
	assert.Nil(t, gf.ParentIndex)
	require.NotNil(t, plan.Nodes[6].ParentIndex)
	assert.Equal(t, 13, *plan.Nodes[6].ParentIndex)
	assert.Equal(t, models.SlotOne, *plan.Nodes[6].ParentSlot)
	require.NotNil(t, plan.Nodes[12].ParentIndex)
	assert.Equal(t, 13, *plan.Nodes[12].ParentIndex)
	assert.Equal(t, models.SlotTwo, *plan.Nodes[12].ParentSlot)

	// Losers bracket internal routing.
	assert.Equal(t, 9, *plan.Nodes[7].ParentIndex)
	assert.Equal(t, models.SlotOne, *plan.Nodes[7].ParentSlot)
	assert.Equal(t, 10, *plan.Nodes[8].ParentIndex)
	assert.Equal(t, models.SlotOne, *plan.Nodes[8].ParentSlot)
	assert.Equal(t, 11, *plan.Nodes[9].ParentIndex)
	assert.Equal(t, models.SlotOne, *plan.Nodes[9].ParentSlot)
	assert.Equal(t, 11, *plan.Nodes[10].ParentIndex)
	assert.Equal(t, models.SlotTwo, *plan.Nodes[10].ParentSlot)
	assert.Equal(t, 12, *plan.Nodes[11].ParentIndex)
	assert.Equal(t, models.SlotOne, *plan.Nodes[11].ParentSlot)

	// Every link points at a strictly later round.
	for _, node := range plan.Nodes {
		if node.ParentIndex != nil {
			assert.Greater(t, plan.Nodes[*node.ParentIndex].Round, node.Round, "node %d parent", node.Index)
		}
		if node.LoserIndex != nil {
			assert.Greater(t, plan.Nodes[*node.LoserIndex].Round, node.Round, "node %d loser dest", node.Index)
		}
	}
}

func TestDoubleEliminationTwoDegradesToSingleFinal(t *testing.T) {
	plan := generate(t, models.FormatDoubleElimination, rosterOf(2), models.SeedingRanked)

	require.Len(t, plan.Nodes, 1)
	node := plan.Nodes[0]
	assert.Nil(t, node.ParentIndex)
	assert.Nil(t, node.LoserIndex)
	assert.Equal(t, 1, slotSeed(t, node.Slot1))
	assert.Equal(t, 2, slotSeed(t, node.Slot2))
}

func TestDoubleEliminationWithByes(t *testing.T) {
	// Six entrants in an eight bracket: two winners round 1 byes. The dead
	// losers round 1 slots they imply must not leave unplayable matches
	// waiting on participants who can never arrive.
	plan := generate(t, models.FormatDoubleElimination, rosterOf(6), models.SeedingRanked)

	require.Len(t, plan.Nodes, 14)

	byeAutoCompleted := 0
	for _, node := range plan.Nodes {
		if node.AutoComplete && node.WinnerID != nil {
			byeAutoCompleted++
		}
	}
	assert.Equal(t, 2, byeAutoCompleted)

	// Losers round 1 receives the bye markers of the walkover matches.
	lb1, lb2 := plan.Nodes[7], plan.Nodes[8]
	assert.True(t, lb1.Slot1.IsBye || lb1.Slot2.IsBye)
	assert.True(t, lb2.Slot1.IsBye || lb2.Slot2.IsBye)
}

func TestLosersRoundSizes(t *testing.T) {
	// size 8: rounds of 2, 2, 1, 1.
	assert.Equal(t, 2, lbRoundSize(8, 1))
	assert.Equal(t, 2, lbRoundSize(8, 2))
	assert.Equal(t, 1, lbRoundSize(8, 3))
	assert.Equal(t, 1, lbRoundSize(8, 4))

	// size 16: 4, 4, 2, 2, 1, 1.
	assert.Equal(t, 4, lbRoundSize(16, 1))
	assert.Equal(t, 4, lbRoundSize(16, 2))
	assert.Equal(t, 2, lbRoundSize(16, 3))
	assert.Equal(t, 2, lbRoundSize(16, 4))
	assert.Equal(t, 1, lbRoundSize(16, 5))
	assert.Equal(t, 1, lbRoundSize(16, 6))
}
