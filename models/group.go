package models

import "time"

type Group struct {
	ID           int       `json:"id" db:"id"`
	TournamentID int       `json:"tournament_id" db:"tournament_id"`
	Name         string    `json:"name" db:"name"`
	// AdvancementCount is how many of this group's finishers enter the
	// playoff bracket once group play ends.
	AdvancementCount int       `json:"advancement_count" db:"advancement_count"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

type GroupMember struct {
	GroupID       int `json:"group_id" db:"group_id"`
	ParticipantID int `json:"participant_id" db:"participant_id"`
	Seed          int `json:"seed" db:"seed"`
}

// GroupStanding is a derived projection over a group's completed matches.
// Rows are disposable: they are recomputed from matches, never edited.
type GroupStanding struct {
	GroupID           int `json:"group_id" db:"group_id"`
	ParticipantID     int `json:"participant_id" db:"participant_id"`
	Seed              int `json:"seed" db:"seed"`
	MatchesPlayed     int `json:"matches_played" db:"matches_played"`
	Wins              int `json:"wins" db:"wins"`
	Draws             int `json:"draws" db:"draws"`
	Losses            int `json:"losses" db:"losses"`
	Points            int `json:"points" db:"points"`
	RoundDifferential int `json:"round_differential" db:"round_differential"`
	Rank              int `json:"rank" db:"rank"`
}
