// Package events carries facts out of the core: completed matches, dispute
// movement and bracket updates are broadcast to whoever subscribed to the
// tournament. Delivery and ordering guarantees are the consumer's concern.
package events

const (
	TypeMatchCompleted = "MATCH_COMPLETED"
	TypeMatchUpdated   = "MATCH_UPDATED"
	TypeDisputeUpdated = "DISPUTE_UPDATED"
	TypeBracketFinal   = "BRACKET_FINALIZED"
)

// MatchCompletedFact is the downstream-facing record of a settled match,
// consumed by ranking/notification systems.
type MatchCompletedFact struct {
	MatchID    int  `json:"match_id"`
	WinnerID   *int `json:"winner_id"`
	LoserID    *int `json:"loser_id"`
	Score1     *int `json:"score1"`
	Score2     *int `json:"score2"`
	HadDispute bool `json:"had_dispute"`
}

type MatchUpdatedFact struct {
	MatchID int    `json:"match_id"`
	State   string `json:"state"`
}

type DisputeUpdatedFact struct {
	DisputeID string `json:"dispute_id"`
	MatchID   int    `json:"match_id"`
	Status    string `json:"status"`
}

// Publisher is the emit side of the hub; services depend on this interface
// so tests can record instead of broadcast.
type Publisher interface {
	Publish(tournamentID int, messageType string, payload interface{})
}
