package models

import "time"

type Bracket struct {
	ID           int       `json:"id" db:"id"`
	TournamentID int       `json:"tournament_id" db:"tournament_id"`
	// Stage distinguishes the playoff bracket of a group format from the
	// (single) bracket of a pure elimination format.
	Stage       string    `json:"stage" db:"stage"`
	IsFinalized bool      `json:"is_finalized" db:"is_finalized"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

const (
	BracketStageMain    = "main"
	BracketStagePlayoff = "playoff"
)

// Slot positions within a match / parent node.
const (
	SlotOne = 1
	SlotTwo = 2
)

// BracketNode is one position in the bracket graph. Nodes form a forest:
// ParentNodeID points at the node that receives this node's winner (nil for a
// root), ParentSlot says which side of the parent's match the winner fills.
// Round numbers strictly increase toward the root.
//
// For double elimination LoserNodeID/LoserSlot route the loser into the losers
// bracket; both are nil everywhere else.
type BracketNode struct {
	ID                 int  `json:"id" db:"id"`
	BracketID          int  `json:"bracket_id" db:"bracket_id"`
	RoundNumber        int  `json:"round_number" db:"round_number"`
	MatchNumberInRound int  `json:"match_number_in_round" db:"match_number_in_round"`
	MatchID            int  `json:"match_id" db:"match_id"`
	ParentNodeID       *int `json:"parent_node_id,omitempty" db:"parent_node_id"`
	ParentSlot         *int `json:"parent_slot,omitempty" db:"parent_slot"`
	LoserNodeID        *int `json:"loser_node_id,omitempty" db:"loser_node_id"`
	LoserSlot          *int `json:"loser_slot,omitempty" db:"loser_slot"`
}
