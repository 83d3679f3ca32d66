package models

import "time"

type MatchState string

const (
	MatchStateScheduled     MatchState = "scheduled"
	MatchStateCheckIn       MatchState = "check_in"
	MatchStateReady         MatchState = "ready"
	MatchStateLive          MatchState = "live"
	MatchStatePendingResult MatchState = "pending_result"
	MatchStateCompleted     MatchState = "completed"
	MatchStateDisputed      MatchState = "disputed"
	MatchStateForfeit       MatchState = "forfeit"
	MatchStateCancelled     MatchState = "cancelled"
)

// matchTransitions is the non-override state graph. Organizer overrides
// (forfeit, override_score, cancel) are guarded separately in the service
// layer because they may jump states.
var matchTransitions = map[MatchState][]MatchState{
	MatchStateScheduled:     {MatchStateCheckIn},
	MatchStateCheckIn:       {MatchStateReady},
	MatchStateReady:         {MatchStateLive},
	MatchStateLive:          {MatchStatePendingResult},
	MatchStatePendingResult: {MatchStateCompleted, MatchStateDisputed},
	MatchStateCompleted:     {MatchStateDisputed},
	MatchStateDisputed:      {MatchStateCompleted, MatchStateCancelled},
}

// CanTransition reports whether from → to is a legal non-override step.
func CanTransition(from, to MatchState) bool {
	for _, next := range matchTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal states never leave through the ordinary graph. completed is
// deliberately not listed: a dispute or an organizer override can still
// reopen it.
func (s MatchState) Terminal() bool {
	return s == MatchStateForfeit || s == MatchStateCancelled
}

// Settled reports whether the match has produced an outcome that counts
// (completed or forfeited). Settled matches feed advancement and standings.
func (s MatchState) Settled() bool {
	return s == MatchStateCompleted || s == MatchStateForfeit
}

func (s MatchState) Valid() bool {
	switch s {
	case MatchStateScheduled, MatchStateCheckIn, MatchStateReady, MatchStateLive,
		MatchStatePendingResult, MatchStateCompleted, MatchStateDisputed,
		MatchStateForfeit, MatchStateCancelled:
		return true
	}
	return false
}

// Match is one playable (or bye) fixture. Elimination matches belong to
// exactly one BracketNode; group matches carry GroupID instead. Participant
// slots may be empty pending advancement, or bye-marked when construction
// proved no participant can ever arrive there.
type Match struct {
	ID           int  `json:"id" db:"id"`
	TournamentID int  `json:"tournament_id" db:"tournament_id"`
	GroupID      *int `json:"group_id,omitempty" db:"group_id"`
	Round        int  `json:"round" db:"round"`

	Slot1ParticipantID *int `json:"slot1_participant_id,omitempty" db:"slot1_participant_id"`
	Slot1Seed          *int `json:"slot1_seed,omitempty" db:"slot1_seed"`
	Slot1IsBye         bool `json:"slot1_is_bye,omitempty" db:"slot1_is_bye"`
	Slot2ParticipantID *int `json:"slot2_participant_id,omitempty" db:"slot2_participant_id"`
	Slot2Seed          *int `json:"slot2_seed,omitempty" db:"slot2_seed"`
	Slot2IsBye         bool `json:"slot2_is_bye,omitempty" db:"slot2_is_bye"`

	Score1 *int `json:"score1,omitempty" db:"score1"`
	Score2 *int `json:"score2,omitempty" db:"score2"`

	State    MatchState `json:"state" db:"state"`
	WinnerID *int       `json:"winner_id,omitempty" db:"winner_id"`
	LoserID  *int       `json:"loser_id,omitempty" db:"loser_id"`

	Slot1CheckedIn bool `json:"slot1_checked_in" db:"slot1_checked_in"`
	Slot2CheckedIn bool `json:"slot2_checked_in" db:"slot2_checked_in"`

	ScheduledAt *time.Time `json:"scheduled_at,omitempty" db:"scheduled_at"`
	StartedAt   *time.Time `json:"started_at,omitempty" db:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`

	// LobbyInfo holds free-form organizer action records (reschedule,
	// forfeit, override, cancel) serialized as JSON for audit purposes.
	LobbyInfo *string `json:"lobby_info,omitempty" db:"lobby_info"`
}

// SlotOf returns which slot (SlotOne/SlotTwo) the participant occupies, or 0.
func (m *Match) SlotOf(participantID int) int {
	if m.Slot1ParticipantID != nil && *m.Slot1ParticipantID == participantID {
		return SlotOne
	}
	if m.Slot2ParticipantID != nil && *m.Slot2ParticipantID == participantID {
		return SlotTwo
	}
	return 0
}

// SeedOf returns the seed recorded for the participant's slot, or nil.
func (m *Match) SeedOf(participantID int) *int {
	switch m.SlotOf(participantID) {
	case SlotOne:
		return m.Slot1Seed
	case SlotTwo:
		return m.Slot2Seed
	}
	return nil
}

// ParticipantInSlot returns the participant id in the given slot, or nil.
func (m *Match) ParticipantInSlot(slot int) *int {
	if slot == SlotOne {
		return m.Slot1ParticipantID
	}
	return m.Slot2ParticipantID
}

func (m *Match) BothSlotsFilled() bool {
	return m.Slot1ParticipantID != nil && m.Slot2ParticipantID != nil
}
