package standings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nbakenov/tournament-core/models"
)

func member(groupID, participantID, seed int) models.GroupMember {
	return models.GroupMember{GroupID: groupID, ParticipantID: participantID, Seed: seed}
}

func groupMatch(groupID, p1, p2, s1, s2 int, state models.MatchState) *models.Match {
	m := &models.Match{
		GroupID:            &groupID,
		Slot1ParticipantID: &p1,
		Slot2ParticipantID: &p2,
		Score1:             &s1,
		Score2:             &s2,
		State:              state,
	}
	if state.Settled() && s1 != s2 {
		if s1 > s2 {
			m.WinnerID = &p1
			m.LoserID = &p2
		} else {
			m.WinnerID = &p2
			m.LoserID = &p1
		}
	}
	return m
}

func TestCalculatePointsAndRanks(t *testing.T) {
	group := &models.Group{ID: 1, AdvancementCount: 2}
	members := []models.GroupMember{
		member(1, 10, 1), member(1, 20, 2), member(1, 30, 3), member(1, 40, 4),
	}
	matches := []*models.Match{
		groupMatch(1, 10, 20, 2, 0, models.MatchStateCompleted), // 10 beats 20
		groupMatch(1, 30, 40, 1, 1, models.MatchStateCompleted), // draw
		groupMatch(1, 10, 30, 3, 1, models.MatchStateCompleted), // 10 beats 30
		groupMatch(1, 20, 40, 0, 2, models.MatchStateCompleted), // 40 beats 20
	}

	table := Calculate(group, members, matches, DefaultPointRules)
	require.Len(t, table, 4)

	assert.Equal(t, 10, table[0].ParticipantID)
	assert.Equal(t, 6, table[0].Points)
	assert.Equal(t, 2, table[0].Wins)
	assert.Equal(t, 1, table[0].Rank)

	assert.Equal(t, 40, table[1].ParticipantID)
	assert.Equal(t, 4, table[1].Points)
	assert.Equal(t, 1, table[1].Wins)
	assert.Equal(t, 1, table[1].Draws)

	assert.Equal(t, 30, table[2].ParticipantID)
	assert.Equal(t, 1, table[2].Points)

	assert.Equal(t, 20, table[3].ParticipantID)
	assert.Equal(t, 0, table[3].Points)
	assert.Equal(t, 4, table[3].Rank)
}

func TestCalculateIgnoresUnsettledAndForeignMatches(t *testing.T) {
	group := &models.Group{ID: 1}
	members := []models.GroupMember{member(1, 10, 1), member(1, 20, 2)}
	matches := []*models.Match{
		groupMatch(1, 10, 20, 2, 0, models.MatchStateLive),      // in progress
		groupMatch(1, 10, 20, 0, 2, models.MatchStateCancelled), // voided
		groupMatch(2, 10, 20, 0, 2, models.MatchStateCompleted), // other group
	}

	table := Calculate(group, members, matches, DefaultPointRules)
	for _, row := range table {
		assert.Zero(t, row.MatchesPlayed)
		assert.Zero(t, row.Points)
	}
}

func TestCalculateForfeitCounts(t *testing.T) {
	group := &models.Group{ID: 1}
	members := []models.GroupMember{member(1, 10, 1), member(1, 20, 2)}
	matches := []*models.Match{
		groupMatch(1, 10, 20, 0, 1, models.MatchStateForfeit), // 10 forfeits
	}

	table := Calculate(group, members, matches, DefaultPointRules)
	assert.Equal(t, 20, table[0].ParticipantID)
	assert.Equal(t, 3, table[0].Points)
	assert.Equal(t, 10, table[1].ParticipantID)
	assert.Equal(t, 1, table[1].Losses)
}

func TestCalculateTieBreaksBySeed(t *testing.T) {
	// Two participants perfectly level on every criterion: the lower seed
	// ranks first, keeping advancement deterministic.
	group := &models.Group{ID: 1}
	members := []models.GroupMember{
		member(1, 30, 3), member(1, 10, 1), member(1, 20, 2),
	}
	matches := []*models.Match{
		groupMatch(1, 10, 20, 1, 1, models.MatchStateCompleted),
		groupMatch(1, 10, 30, 1, 1, models.MatchStateCompleted),
		groupMatch(1, 20, 30, 1, 1, models.MatchStateCompleted),
	}

	table := Calculate(group, members, matches, DefaultPointRules)
	require.Len(t, table, 3)
	assert.Equal(t, []int{10, 20, 30}, []int{table[0].ParticipantID, table[1].ParticipantID, table[2].ParticipantID})
	assert.Equal(t, []int{1, 2, 3}, []int{table[0].Rank, table[1].Rank, table[2].Rank})
}

func TestCalculateRoundDifferentialTieBreak(t *testing.T) {
	group := &models.Group{ID: 1}
	members := []models.GroupMember{
		member(1, 10, 1), member(1, 20, 2), member(1, 30, 3), member(1, 40, 4),
	}
	// 10 and 20 both win once, but 20 wins bigger.
	matches := []*models.Match{
		groupMatch(1, 10, 30, 2, 1, models.MatchStateCompleted),
		groupMatch(1, 20, 40, 5, 0, models.MatchStateCompleted),
	}

	table := Calculate(group, members, matches, DefaultPointRules)
	assert.Equal(t, 20, table[0].ParticipantID)
	assert.Equal(t, 10, table[1].ParticipantID)
}

func TestCalculateIsRecomputable(t *testing.T) {
	group := &models.Group{ID: 1}
	members := []models.GroupMember{member(1, 10, 1), member(1, 20, 2)}
	matches := []*models.Match{
		groupMatch(1, 10, 20, 2, 1, models.MatchStateCompleted),
	}

	first := Calculate(group, members, matches, DefaultPointRules)
	second := Calculate(group, members, matches, DefaultPointRules)
	assert.Equal(t, first, second)
}
