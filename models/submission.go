package models

import (
	"time"

	"github.com/google/uuid"
)

// ResultSubmission is one reported outcome for a match. The opponent either
// confirms it (match completes) or disputes it; disputes always reference a
// submission, never the match directly.
type ResultSubmission struct {
	ID            uuid.UUID `json:"id" db:"id"`
	MatchID       int       `json:"match_id" db:"match_id"`
	SubmitterID   int       `json:"submitter_id" db:"submitter_id"`
	SubmitterSlot int       `json:"submitter_slot" db:"submitter_slot"`
	Score1        int       `json:"score1" db:"score1"`
	Score2        int       `json:"score2" db:"score2"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
