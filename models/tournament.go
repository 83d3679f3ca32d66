package models

import "time"

type TournamentFormat string

const (
	FormatSingleElimination TournamentFormat = "single_elimination"
	FormatDoubleElimination TournamentFormat = "double_elimination"
	FormatGroupThenPlayoff  TournamentFormat = "group_then_playoff"
)

func (f TournamentFormat) Valid() bool {
	switch f {
	case FormatSingleElimination, FormatDoubleElimination, FormatGroupThenPlayoff:
		return true
	}
	return false
}

// AllowsDraw reports whether matches in this format may end level.
// Only the round-robin phase of group play tolerates a draw; elimination
// matches must produce a winner.
func (f TournamentFormat) AllowsDraw() bool {
	return f == FormatGroupThenPlayoff
}

type Tournament struct {
	ID          int              `json:"id" db:"id"`
	Name        string           `json:"name" db:"name"`
	Format      TournamentFormat `json:"format" db:"format"`
	RoundCount  int              `json:"round_count" db:"round_count"`
	OrganizerID int              `json:"organizer_id" db:"organizer_id"`

	// Group-format settings; ignored for elimination formats.
	GroupCount       int `json:"group_count,omitempty" db:"group_count"`
	AdvancementCount int `json:"advancement_count,omitempty" db:"advancement_count"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// SeedingMethod describes how the roster order maps onto bracket positions.
type SeedingMethod string

const (
	SeedingRanked    SeedingMethod = "ranked"     // seed 1 meets seed 2 in the final
	SeedingSlotOrder SeedingMethod = "slot-order" // pair the list as given
)

// RosterEntry is one confirmed participant as supplied by the eligibility
// provider. Seed is 1-based registration/rank order.
type RosterEntry struct {
	ParticipantID int `json:"participant_id"`
	Seed          int `json:"seed"`
}
