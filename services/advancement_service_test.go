package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nbakenov/tournament-core/models"
)

type propagatorFixture struct {
	matches  *fakeMatchRepo
	brackets *fakeBracketRepo
	groups   *fakeGroupRepo
	logs     *fakeLogRepo
	prop     AdvancementPropagator
}

func newPropagatorFixture() *propagatorFixture {
	f := &propagatorFixture{
		matches:  newFakeMatchRepo(),
		brackets: newFakeBracketRepo(),
		groups:   newFakeGroupRepo(),
		logs:     newFakeLogRepo(),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.prop = NewAdvancementPropagator(f.matches, f.brackets, f.groups, f.logs, logger)
	return f
}

func (f *propagatorFixture) addMatch(t *testing.T, m *models.Match) *models.Match {
	t.Helper()
	require.NoError(t, f.matches.Create(context.Background(), nil, m))
	return m
}

func (f *propagatorFixture) addNode(t *testing.T, bracketID, round, number, matchID int) *models.BracketNode {
	t.Helper()
	n := &models.BracketNode{
		BracketID:          bracketID,
		RoundNumber:        round,
		MatchNumberInRound: number,
		MatchID:            matchID,
	}
	require.NoError(t, f.brackets.CreateNode(context.Background(), nil, n))
	return n
}

func (f *propagatorFixture) link(t *testing.T, n *models.BracketNode, parentID, parentSlot int) {
	t.Helper()
	n.ParentNodeID = &parentID
	n.ParentSlot = &parentSlot
	require.NoError(t, f.brackets.UpdateNodeLinks(context.Background(), nil, n))
}

func (f *propagatorFixture) linkLoser(t *testing.T, n *models.BracketNode, loserID, loserSlot int) {
	t.Helper()
	n.LoserNodeID = &loserID
	n.LoserSlot = &loserSlot
	require.NoError(t, f.brackets.UpdateNodeLinks(context.Background(), nil, n))
}

func (f *propagatorFixture) reload(t *testing.T, matchID int) *models.Match {
	t.Helper()
	m, err := f.matches.GetByID(context.Background(), matchID)
	require.NoError(t, err)
	return m
}

// completedMatch builds a settled round-one match with a decided winner.
func completedMatch(tournamentID int, p1, p2, seed1, seed2 int) *models.Match {
	now := time.Now().UTC()
	return &models.Match{
		TournamentID:       tournamentID,
		Round:              1,
		Slot1ParticipantID: &p1,
		Slot1Seed:          &seed1,
		Slot2ParticipantID: &p2,
		Slot2Seed:          &seed2,
		Score1:             intPtr(2),
		Score2:             intPtr(0),
		State:              models.MatchStateCompleted,
		WinnerID:           &p1,
		LoserID:            &p2,
		CompletedAt:        &now,
	}
}

func TestPropagateWinnerToParentSlot(t *testing.T) {
	f := newPropagatorFixture()
	ctx := context.Background()

	src := f.addMatch(t, completedMatch(1, 11, 22, 1, 2))
	dest := f.addMatch(t, &models.Match{TournamentID: 1, Round: 2, State: models.MatchStateScheduled})

	srcNode := f.addNode(t, 1, 1, 1, src.ID)
	destNode := f.addNode(t, 1, 2, 1, dest.ID)
	f.link(t, srcNode, destNode.ID, models.SlotOne)

	require.NoError(t, f.prop.Propagate(ctx, nil, src))

	got := f.reload(t, dest.ID)
	require.NotNil(t, got.Slot1ParticipantID)
	assert.Equal(t, 11, *got.Slot1ParticipantID)
	require.NotNil(t, got.Slot1Seed)
	assert.Equal(t, 1, *got.Slot1Seed)
	assert.Equal(t, 1, f.logs.countStep(dest.ID, models.StepAdvancement))

	// Re-delivering the same winner changes nothing and logs nothing.
	require.NoError(t, f.prop.Propagate(ctx, nil, src))
	assert.Equal(t, 1, f.logs.countStep(dest.ID, models.StepAdvancement))
}

func TestPropagateCorrectionWhileDestinationScheduled(t *testing.T) {
	f := newPropagatorFixture()
	ctx := context.Background()

	src := f.addMatch(t, completedMatch(1, 11, 22, 1, 2))
	dest := f.addMatch(t, &models.Match{TournamentID: 1, Round: 2, State: models.MatchStateScheduled})
	srcNode := f.addNode(t, 1, 1, 1, src.ID)
	destNode := f.addNode(t, 1, 2, 1, dest.ID)
	f.link(t, srcNode, destNode.ID, models.SlotOne)

	require.NoError(t, f.prop.Propagate(ctx, nil, src))

	// An organizer override flips the result; the destination has not
	// started, so the correction replaces the earlier delivery.
	src.WinnerID, src.LoserID = src.LoserID, src.WinnerID
	require.NoError(t, f.matches.Update(ctx, nil, src))
	require.NoError(t, f.prop.Propagate(ctx, nil, src))

	got := f.reload(t, dest.ID)
	require.NotNil(t, got.Slot1ParticipantID)
	assert.Equal(t, 22, *got.Slot1ParticipantID)

	entries, err := f.logs.ListByMatch(ctx, dest.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.NotNil(t, entries[1].Detail)
	assert.Contains(t, *entries[1].Detail, "replaced_participant_id")
}

func TestPropagateCorrectionRejectedAfterDestinationStarts(t *testing.T) {
	f := newPropagatorFixture()
	ctx := context.Background()

	src := f.addMatch(t, completedMatch(1, 11, 22, 1, 2))
	dest := f.addMatch(t, &models.Match{TournamentID: 1, Round: 2, State: models.MatchStateScheduled})
	srcNode := f.addNode(t, 1, 1, 1, src.ID)
	destNode := f.addNode(t, 1, 2, 1, dest.ID)
	f.link(t, srcNode, destNode.ID, models.SlotOne)

	require.NoError(t, f.prop.Propagate(ctx, nil, src))

	started := f.reload(t, dest.ID)
	started.State = models.MatchStateLive
	require.NoError(t, f.matches.Update(ctx, nil, started))

	src.WinnerID, src.LoserID = src.LoserID, src.WinnerID
	require.NoError(t, f.matches.Update(ctx, nil, src))

	err := f.prop.Propagate(ctx, nil, src)
	require.ErrorIs(t, err, ErrContractViolation)

	got := f.reload(t, dest.ID)
	require.NotNil(t, got.Slot1ParticipantID)
	assert.Equal(t, 11, *got.Slot1ParticipantID, "rejected correction must not touch the slot")
}

func TestPropagateRoutesLoserToLosersBracket(t *testing.T) {
	f := newPropagatorFixture()
	ctx := context.Background()

	src := f.addMatch(t, completedMatch(1, 11, 22, 1, 2))
	winnersDest := f.addMatch(t, &models.Match{TournamentID: 1, Round: 2, State: models.MatchStateScheduled})
	losersDest := f.addMatch(t, &models.Match{TournamentID: 1, Round: 3, State: models.MatchStateScheduled})

	srcNode := f.addNode(t, 1, 1, 1, src.ID)
	winnersNode := f.addNode(t, 1, 2, 1, winnersDest.ID)
	losersNode := f.addNode(t, 1, 3, 1, losersDest.ID)
	f.link(t, srcNode, winnersNode.ID, models.SlotOne)
	f.linkLoser(t, srcNode, losersNode.ID, models.SlotTwo)

	require.NoError(t, f.prop.Propagate(ctx, nil, src))

	wb := f.reload(t, winnersDest.ID)
	require.NotNil(t, wb.Slot1ParticipantID)
	assert.Equal(t, 11, *wb.Slot1ParticipantID)

	lb := f.reload(t, losersDest.ID)
	require.NotNil(t, lb.Slot2ParticipantID)
	assert.Equal(t, 22, *lb.Slot2ParticipantID)
	require.NotNil(t, lb.Slot2Seed)
	assert.Equal(t, 2, *lb.Slot2Seed)
}

func TestPropagateByeSiblingAutoCompletes(t *testing.T) {
	f := newPropagatorFixture()
	ctx := context.Background()

	src := f.addMatch(t, completedMatch(1, 11, 22, 1, 2))
	// The semifinal's other slot is a bye marker, so the arriving winner
	// should sweep straight through to the final.
	semi := f.addMatch(t, &models.Match{TournamentID: 1, Round: 2, State: models.MatchStateScheduled, Slot2IsBye: true})
	final := f.addMatch(t, &models.Match{TournamentID: 1, Round: 3, State: models.MatchStateScheduled})

	srcNode := f.addNode(t, 1, 1, 1, src.ID)
	semiNode := f.addNode(t, 1, 2, 1, semi.ID)
	finalNode := f.addNode(t, 1, 3, 1, final.ID)
	f.link(t, srcNode, semiNode.ID, models.SlotOne)
	f.link(t, semiNode, finalNode.ID, models.SlotOne)

	require.NoError(t, f.prop.Propagate(ctx, nil, src))

	gotSemi := f.reload(t, semi.ID)
	assert.Equal(t, models.MatchStateCompleted, gotSemi.State)
	require.NotNil(t, gotSemi.WinnerID)
	assert.Equal(t, 11, *gotSemi.WinnerID)
	assert.NotNil(t, gotSemi.CompletedAt)

	gotFinal := f.reload(t, final.ID)
	require.NotNil(t, gotFinal.Slot1ParticipantID)
	assert.Equal(t, 11, *gotFinal.Slot1ParticipantID)

	// Two advancement entries on the semifinal: the delivery and the bye
	// auto-completion.
	assert.Equal(t, 2, f.logs.countStep(semi.ID, models.StepAdvancement))
}

func TestPropagateWithoutNodeIsContractViolation(t *testing.T) {
	f := newPropagatorFixture()

	orphan := f.addMatch(t, completedMatch(1, 11, 22, 1, 2))
	err := f.prop.Propagate(context.Background(), nil, orphan)
	require.ErrorIs(t, err, ErrContractViolation)
}

func TestGroupCompletionSeedsPlayoff(t *testing.T) {
	f := newPropagatorFixture()
	ctx := context.Background()

	groupA := &models.Group{TournamentID: 1, Name: "Group A", AdvancementCount: 1}
	groupB := &models.Group{TournamentID: 1, Name: "Group B", AdvancementCount: 1}
	require.NoError(t, f.groups.Create(ctx, nil, groupA))
	require.NoError(t, f.groups.Create(ctx, nil, groupB))
	require.NoError(t, f.groups.AddMember(ctx, nil, &models.GroupMember{GroupID: groupA.ID, ParticipantID: 11, Seed: 1}))
	require.NoError(t, f.groups.AddMember(ctx, nil, &models.GroupMember{GroupID: groupA.ID, ParticipantID: 12, Seed: 3}))
	require.NoError(t, f.groups.AddMember(ctx, nil, &models.GroupMember{GroupID: groupB.ID, ParticipantID: 21, Seed: 2}))
	require.NoError(t, f.groups.AddMember(ctx, nil, &models.GroupMember{GroupID: groupB.ID, ParticipantID: 22, Seed: 4}))

	matchA := completedMatch(1, 11, 12, 1, 3)
	matchA.GroupID = &groupA.ID
	f.addMatch(t, matchA)
	matchB := completedMatch(1, 21, 22, 2, 4)
	matchB.GroupID = &groupB.ID
	matchB.State = models.MatchStateLive
	matchB.WinnerID, matchB.LoserID = nil, nil
	f.addMatch(t, matchB)

	playoff := &models.Bracket{TournamentID: 1, Stage: models.BracketStagePlayoff}
	require.NoError(t, f.brackets.CreateBracket(ctx, nil, playoff))
	playoffFinal := f.addMatch(t, &models.Match{TournamentID: 1, Round: 1, State: models.MatchStateScheduled})
	f.addNode(t, playoff.ID, 1, 1, playoffFinal.ID)

	// Group A finishes first: its winner takes qualifier slot one.
	require.NoError(t, f.prop.Propagate(ctx, nil, matchA))
	got := f.reload(t, playoffFinal.ID)
	require.NotNil(t, got.Slot1ParticipantID)
	assert.Equal(t, 11, *got.Slot1ParticipantID)
	assert.Nil(t, got.Slot2ParticipantID, "group B still playing")
	assert.Equal(t, 1, f.logs.countStep(playoffFinal.ID, models.StepGroupAdvancement))

	// Group B wraps up and fills the second qualifier slot.
	matchB.State = models.MatchStateCompleted
	matchB.WinnerID, matchB.LoserID = intPtr(21), intPtr(22)
	require.NoError(t, f.matches.Update(ctx, nil, matchB))
	require.NoError(t, f.prop.Propagate(ctx, nil, matchB))

	got = f.reload(t, playoffFinal.ID)
	require.NotNil(t, got.Slot2ParticipantID)
	assert.Equal(t, 21, *got.Slot2ParticipantID)
	assert.Equal(t, 2, f.logs.countStep(playoffFinal.ID, models.StepGroupAdvancement))
}

func TestGroupInProgressInjectsNothing(t *testing.T) {
	f := newPropagatorFixture()
	ctx := context.Background()

	group := &models.Group{TournamentID: 1, Name: "Group A", AdvancementCount: 1}
	require.NoError(t, f.groups.Create(ctx, nil, group))
	require.NoError(t, f.groups.AddMember(ctx, nil, &models.GroupMember{GroupID: group.ID, ParticipantID: 11, Seed: 1}))
	require.NoError(t, f.groups.AddMember(ctx, nil, &models.GroupMember{GroupID: group.ID, ParticipantID: 12, Seed: 2}))
	require.NoError(t, f.groups.AddMember(ctx, nil, &models.GroupMember{GroupID: group.ID, ParticipantID: 13, Seed: 3}))

	done := completedMatch(1, 11, 12, 1, 2)
	done.GroupID = &group.ID
	f.addMatch(t, done)
	pending := &models.Match{
		TournamentID:       1,
		GroupID:            &group.ID,
		Round:              2,
		Slot1ParticipantID: intPtr(11),
		Slot2ParticipantID: intPtr(13),
		State:              models.MatchStateScheduled,
	}
	f.addMatch(t, pending)

	playoff := &models.Bracket{TournamentID: 1, Stage: models.BracketStagePlayoff}
	require.NoError(t, f.brackets.CreateBracket(ctx, nil, playoff))
	playoffFinal := f.addMatch(t, &models.Match{TournamentID: 1, Round: 1, State: models.MatchStateScheduled})
	f.addNode(t, playoff.ID, 1, 1, playoffFinal.ID)

	require.NoError(t, f.prop.Propagate(ctx, nil, done))

	got := f.reload(t, playoffFinal.ID)
	assert.Nil(t, got.Slot1ParticipantID)
	assert.Nil(t, got.Slot2ParticipantID)
	assert.Zero(t, f.logs.countStep(playoffFinal.ID, models.StepGroupAdvancement))
}

func TestStandingsForGroup(t *testing.T) {
	f := newPropagatorFixture()
	ctx := context.Background()

	group := &models.Group{TournamentID: 1, Name: "Group A", AdvancementCount: 1}
	require.NoError(t, f.groups.Create(ctx, nil, group))
	require.NoError(t, f.groups.AddMember(ctx, nil, &models.GroupMember{GroupID: group.ID, ParticipantID: 11, Seed: 1}))
	require.NoError(t, f.groups.AddMember(ctx, nil, &models.GroupMember{GroupID: group.ID, ParticipantID: 12, Seed: 2}))

	m := completedMatch(1, 12, 11, 2, 1)
	m.GroupID = &group.ID
	f.addMatch(t, m)

	table, err := f.prop.StandingsForGroup(ctx, group.ID)
	require.NoError(t, err)
	require.Len(t, table, 2)
	assert.Equal(t, 12, table[0].ParticipantID)
	assert.Equal(t, 1, table[0].Rank)
	assert.Equal(t, 11, table[1].ParticipantID)

	_, err = f.prop.StandingsForGroup(ctx, 999)
	require.ErrorIs(t, err, ErrGroupNotFound)
}
