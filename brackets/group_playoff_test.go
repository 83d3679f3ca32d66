package brackets

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nbakenov/tournament-core/models"
)

func generateGroups(t *testing.T, n, groupCount, advance int) *Plan {
	t.Helper()
	gen := NewGroupPlayoffGenerator()
	plan, err := gen.GenerateBracket(context.Background(), GenerateParams{
		Tournament: &models.Tournament{
			Format:           models.FormatGroupThenPlayoff,
			GroupCount:       groupCount,
			AdvancementCount: advance,
		},
		Roster:  rosterOf(n),
		Seeding: models.SeedingRanked,
	})
	require.NoError(t, err)
	return plan
}

func TestGroupPlayoffEightTwoGroups(t *testing.T) {
	plan := generateGroups(t, 8, 2, 2)

	require.Len(t, plan.Groups, 2)
	assert.Equal(t, "Group A", plan.Groups[0].Name)
	assert.Equal(t, "Group B", plan.Groups[1].Name)

	// Round-robin dealing: top seeds split across groups.
	seedsA := memberSeeds(plan.Groups[0].Members)
	seedsB := memberSeeds(plan.Groups[1].Members)
	assert.Equal(t, []int{1, 3, 5, 7}, seedsA)
	assert.Equal(t, []int{2, 4, 6, 8}, seedsB)

	// Four members: full round robin is 6 matches over 3 rounds.
	for _, group := range plan.Groups {
		assert.Len(t, group.Matches, 6)
		assertRoundRobin(t, group)
	}

	// Playoff skeleton: 4 qualifiers, 3 nodes, slots carrying qualifier
	// indexes in rank-major order (group winners first).
	require.Len(t, plan.Nodes, 3)
	assert.Equal(t, 2, plan.Rounds)
	wantQualifiers := [][2]int{{0, 1}, {2, 3}}
	for i, want := range wantQualifiers {
		node := plan.Nodes[i]
		require.NotNil(t, node.Slot1.QualifierIndex)
		require.NotNil(t, node.Slot2.QualifierIndex)
		assert.Equal(t, want[0], *node.Slot1.QualifierIndex)
		assert.Equal(t, want[1], *node.Slot2.QualifierIndex)
		assert.Nil(t, node.Slot1.ParticipantID)
		assert.Nil(t, node.Slot2.ParticipantID)
	}
}

func TestGroupPlayoffUnevenGroups(t *testing.T) {
	plan := generateGroups(t, 7, 2, 2)

	require.Len(t, plan.Groups, 2)
	assert.Len(t, plan.Groups[0].Members, 4)
	assert.Len(t, plan.Groups[1].Members, 3)

	// Odd member count: the circle method sits one member out per round.
	assert.Len(t, plan.Groups[1].Matches, 3)
	assertRoundRobin(t, plan.Groups[1])
}

func TestGroupPlayoffQualifierByes(t *testing.T) {
	// Three groups advancing two: six qualifiers in an eight bracket. The
	// two byes fall to the earliest-injected qualifiers, the group winners.
	plan := generateGroups(t, 12, 3, 2)

	require.Len(t, plan.Nodes, 7)

	byes := 0
	for _, node := range plan.Nodes {
		if node.Round != 1 {
			continue
		}
		for _, s := range []Slot{node.Slot1, node.Slot2} {
			if s.IsBye {
				byes++
			}
		}
	}
	assert.Equal(t, 2, byes)

	// Qualifiers 0 and 1 (the best-placed) hold the bye positions.
	require.NotNil(t, plan.Nodes[0].Slot1.QualifierIndex)
	assert.Equal(t, 0, *plan.Nodes[0].Slot1.QualifierIndex)
	assert.True(t, plan.Nodes[0].Slot2.IsBye)
	require.NotNil(t, plan.Nodes[1].Slot1.QualifierIndex)
	assert.Equal(t, 1, *plan.Nodes[1].Slot1.QualifierIndex)
	assert.True(t, plan.Nodes[1].Slot2.IsBye)
}

func TestGroupPlayoffValidation(t *testing.T) {
	gen := NewGroupPlayoffGenerator()

	cases := []struct {
		name       string
		n          int
		groupCount int
		advance    int
		wantErr    error
	}{
		{"zero groups", 8, 0, 2, ErrInvalidGroupConfig},
		{"zero advancement", 8, 2, 0, ErrInvalidGroupConfig},
		{"too few participants", 3, 2, 1, ErrInvalidBracketSize},
		{"single qualifier", 4, 1, 1, ErrInvalidGroupConfig},
		{"advance beyond smallest group", 5, 2, 3, ErrInvalidGroupConfig},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := gen.GenerateBracket(context.Background(), GenerateParams{
				Tournament: &models.Tournament{
					Format:           models.FormatGroupThenPlayoff,
					GroupCount:       tc.groupCount,
					AdvancementCount: tc.advance,
				},
				Roster:  rosterOf(tc.n),
				Seeding: models.SeedingRanked,
			})
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func memberSeeds(members []models.RosterEntry) []int {
	seeds := make([]int, 0, len(members))
	for _, m := range members {
		seeds = append(seeds, m.Seed)
	}
	return seeds
}

// assertRoundRobin checks every pair meets exactly once and nobody plays
// twice in the same round.
func assertRoundRobin(t *testing.T, group *Group) {
	t.Helper()
	k := len(group.Members)
	assert.Len(t, group.Matches, k*(k-1)/2)

	pairs := map[string]int{}
	perRound := map[int]map[int]bool{}
	for _, m := range group.Matches {
		a, b := m.Slot1.ParticipantID, m.Slot2.ParticipantID
		require.NotEqual(t, a, b)
		lo, hi := a, b
		if lo > hi {
			lo, hi = hi, lo
		}
		pairs[fmt.Sprintf("%d-%d", lo, hi)]++

		if perRound[m.Round] == nil {
			perRound[m.Round] = map[int]bool{}
		}
		assert.False(t, perRound[m.Round][a], "participant %d plays twice in round %d", a, m.Round)
		assert.False(t, perRound[m.Round][b], "participant %d plays twice in round %d", b, m.Round)
		perRound[m.Round][a] = true
		perRound[m.Round][b] = true
	}
	for pair, count := range pairs {
		assert.Equal(t, 1, count, "pair %s", pair)
	}
}
