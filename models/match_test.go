package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchTransitions(t *testing.T) {
	allowed := []struct{ from, to MatchState }{
		{MatchStateScheduled, MatchStateCheckIn},
		{MatchStateCheckIn, MatchStateReady},
		{MatchStateReady, MatchStateLive},
		{MatchStateLive, MatchStatePendingResult},
		{MatchStatePendingResult, MatchStateCompleted},
		{MatchStatePendingResult, MatchStateDisputed},
		{MatchStateCompleted, MatchStateDisputed},
		{MatchStateDisputed, MatchStateCompleted},
		{MatchStateDisputed, MatchStateCancelled},
	}
	for _, tc := range allowed {
		assert.True(t, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}

	denied := []struct{ from, to MatchState }{
		{MatchStateScheduled, MatchStateLive},
		{MatchStateScheduled, MatchStateCompleted},
		{MatchStateCheckIn, MatchStateScheduled},
		{MatchStateLive, MatchStateCompleted},
		{MatchStateCompleted, MatchStatePendingResult},
		{MatchStateForfeit, MatchStateCompleted},
		{MatchStateCancelled, MatchStateScheduled},
		{MatchStateDisputed, MatchStateLive},
	}
	for _, tc := range denied {
		assert.False(t, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestMatchStatePredicates(t *testing.T) {
	assert.True(t, MatchStateForfeit.Terminal())
	assert.True(t, MatchStateCancelled.Terminal())
	assert.False(t, MatchStateCompleted.Terminal(), "completed can still be disputed")

	assert.True(t, MatchStateCompleted.Settled())
	assert.True(t, MatchStateForfeit.Settled())
	assert.False(t, MatchStateCancelled.Settled())
	assert.False(t, MatchStateDisputed.Settled())

	assert.True(t, MatchStateLive.Valid())
	assert.False(t, MatchState("finished").Valid())
}

func TestMatchSlotHelpers(t *testing.T) {
	p1, p2 := 11, 22
	s1, s2 := 1, 4
	m := &Match{
		Slot1ParticipantID: &p1, Slot1Seed: &s1,
		Slot2ParticipantID: &p2, Slot2Seed: &s2,
	}

	assert.Equal(t, SlotOne, m.SlotOf(11))
	assert.Equal(t, SlotTwo, m.SlotOf(22))
	assert.Zero(t, m.SlotOf(99))

	assert.Equal(t, &s1, m.SeedOf(11))
	assert.Equal(t, &s2, m.SeedOf(22))
	assert.Nil(t, m.SeedOf(99))

	assert.Equal(t, &p1, m.ParticipantInSlot(SlotOne))
	assert.Equal(t, &p2, m.ParticipantInSlot(SlotTwo))
	assert.True(t, m.BothSlotsFilled())

	empty := &Match{Slot1ParticipantID: &p1}
	assert.False(t, empty.BothSlotsFilled())
}
