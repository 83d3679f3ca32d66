package services

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/nbakenov/tournament-core/models"
	"github.com/nbakenov/tournament-core/repositories"
)

// In-memory repository fakes. They ignore the SQLExecutor argument (the fake
// has no transactions) and hand out copies so service-side mutation never
// aliases stored state.

type fakeMatchRepo struct {
	mu      sync.Mutex
	nextID  int
	matches map[int]*models.Match
}

func newFakeMatchRepo() *fakeMatchRepo {
	return &fakeMatchRepo{matches: make(map[int]*models.Match)}
}

func copyMatch(m *models.Match) *models.Match {
	c := *m
	return &c
}

func (r *fakeMatchRepo) Create(ctx context.Context, exec repositories.SQLExecutor, m *models.Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	m.ID = r.nextID
	r.matches[m.ID] = copyMatch(m)
	return nil
}

func (r *fakeMatchRepo) GetByID(ctx context.Context, id int) (*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	return copyMatch(m), nil
}

func (r *fakeMatchRepo) GetByIDForUpdate(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Match, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeMatchRepo) ListByTournament(ctx context.Context, tournamentID int, filter repositories.MatchFilter) ([]*models.Match, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Match, 0)
	for id := 1; id <= r.nextID; id++ {
		m, ok := r.matches[id]
		if !ok || m.TournamentID != tournamentID {
			continue
		}
		if filter.State != nil && m.State != *filter.State {
			continue
		}
		if filter.Round != nil && m.Round != *filter.Round {
			continue
		}
		out = append(out, copyMatch(m))
	}
	return out, len(out), nil
}

func (r *fakeMatchRepo) ListByGroup(ctx context.Context, groupID int) ([]*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Match, 0)
	for id := 1; id <= r.nextID; id++ {
		m, ok := r.matches[id]
		if ok && m.GroupID != nil && *m.GroupID == groupID {
			out = append(out, copyMatch(m))
		}
	}
	return out, nil
}

func (r *fakeMatchRepo) Update(ctx context.Context, exec repositories.SQLExecutor, m *models.Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.matches[m.ID]; !ok {
		return repositories.ErrMatchNotFound
	}
	r.matches[m.ID] = copyMatch(m)
	return nil
}

func (r *fakeMatchRepo) UpdateSlot(ctx context.Context, exec repositories.SQLExecutor, matchID, slot int, participantID, seed *int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[matchID]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	if slot == models.SlotOne {
		m.Slot1ParticipantID = participantID
		m.Slot1Seed = seed
	} else {
		m.Slot2ParticipantID = participantID
		m.Slot2Seed = seed
	}
	return nil
}

type fakeBracketRepo struct {
	mu        sync.Mutex
	nextID    int
	brackets  map[int]*models.Bracket
	nodes     map[int]*models.BracketNode
	byMatchID map[int]int
}

func newFakeBracketRepo() *fakeBracketRepo {
	return &fakeBracketRepo{
		brackets:  make(map[int]*models.Bracket),
		nodes:     make(map[int]*models.BracketNode),
		byMatchID: make(map[int]int),
	}
}

func (r *fakeBracketRepo) CreateBracket(ctx context.Context, exec repositories.SQLExecutor, b *models.Bracket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	b.ID = r.nextID
	c := *b
	r.brackets[b.ID] = &c
	return nil
}

func (r *fakeBracketRepo) GetBracket(ctx context.Context, tournamentID int, stage string) (*models.Bracket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.brackets {
		if b.TournamentID == tournamentID && b.Stage == stage {
			c := *b
			return &c, nil
		}
	}
	return nil, repositories.ErrBracketNotFound
}

func (r *fakeBracketRepo) Finalize(ctx context.Context, exec repositories.SQLExecutor, bracketID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.brackets[bracketID]
	if !ok {
		return repositories.ErrBracketNotFound
	}
	b.IsFinalized = true
	return nil
}

func (r *fakeBracketRepo) CreateNode(ctx context.Context, exec repositories.SQLExecutor, n *models.BracketNode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	n.ID = r.nextID
	c := *n
	r.nodes[n.ID] = &c
	r.byMatchID[n.MatchID] = n.ID
	return nil
}

func (r *fakeBracketRepo) UpdateNodeLinks(ctx context.Context, exec repositories.SQLExecutor, n *models.BracketNode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.nodes[n.ID]
	if !ok {
		return repositories.ErrBracketNodeNotFound
	}
	stored.ParentNodeID = n.ParentNodeID
	stored.ParentSlot = n.ParentSlot
	stored.LoserNodeID = n.LoserNodeID
	stored.LoserSlot = n.LoserSlot
	return nil
}

func (r *fakeBracketRepo) GetNodeByID(ctx context.Context, id int) (*models.BracketNode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nodes[id]
	if !ok {
		return nil, repositories.ErrBracketNodeNotFound
	}
	c := *n
	return &c, nil
}

func (r *fakeBracketRepo) GetNodeByMatchID(ctx context.Context, matchID int) (*models.BracketNode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byMatchID[matchID]
	if !ok {
		return nil, repositories.ErrBracketNodeNotFound
	}
	c := *r.nodes[id]
	return &c, nil
}

func (r *fakeBracketRepo) ListNodes(ctx context.Context, bracketID int) ([]*models.BracketNode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.BracketNode, 0)
	for id := 1; id <= r.nextID; id++ {
		n, ok := r.nodes[id]
		if ok && n.BracketID == bracketID {
			c := *n
			out = append(out, &c)
		}
	}
	return out, nil
}

type fakeGroupRepo struct {
	mu      sync.Mutex
	nextID  int
	groups  map[int]*models.Group
	members map[int][]models.GroupMember
}

func newFakeGroupRepo() *fakeGroupRepo {
	return &fakeGroupRepo{
		groups:  make(map[int]*models.Group),
		members: make(map[int][]models.GroupMember),
	}
}

func (r *fakeGroupRepo) Create(ctx context.Context, exec repositories.SQLExecutor, g *models.Group) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	g.ID = r.nextID
	c := *g
	r.groups[g.ID] = &c
	return nil
}

func (r *fakeGroupRepo) GetByID(ctx context.Context, id int) (*models.Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groups[id]
	if !ok {
		return nil, repositories.ErrGroupNotFound
	}
	c := *g
	return &c, nil
}

func (r *fakeGroupRepo) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Group, 0)
	for id := 1; id <= r.nextID; id++ {
		g, ok := r.groups[id]
		if ok && g.TournamentID == tournamentID {
			c := *g
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *fakeGroupRepo) AddMember(ctx context.Context, exec repositories.SQLExecutor, m *models.GroupMember) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[m.GroupID] = append(r.members[m.GroupID], *m)
	return nil
}

func (r *fakeGroupRepo) ListMembers(ctx context.Context, groupID int) ([]models.GroupMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.GroupMember(nil), r.members[groupID]...), nil
}

type fakeLogRepo struct {
	mu      sync.Mutex
	entries []*models.VerificationLogEntry
}

func newFakeLogRepo() *fakeLogRepo {
	return &fakeLogRepo{}
}

func (r *fakeLogRepo) Append(ctx context.Context, exec repositories.SQLExecutor, e *models.VerificationLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.ID = len(r.entries) + 1
	c := *e
	r.entries = append(r.entries, &c)
	return nil
}

func (r *fakeLogRepo) ListByMatch(ctx context.Context, matchID int) ([]*models.VerificationLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.VerificationLogEntry, 0)
	for _, e := range r.entries {
		if e.MatchID == matchID {
			c := *e
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *fakeLogRepo) ListBySubmission(ctx context.Context, submissionID uuid.UUID) ([]*models.VerificationLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.VerificationLogEntry, 0)
	for _, e := range r.entries {
		if e.SubmissionID != nil && *e.SubmissionID == submissionID {
			c := *e
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *fakeLogRepo) countStep(matchID int, step models.VerificationStep) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, e := range r.entries {
		if e.MatchID == matchID && e.Step == step {
			count++
		}
	}
	return count
}
