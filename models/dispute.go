package models

import (
	"time"

	"github.com/google/uuid"
)

type DisputeStatus string

const (
	DisputeStatusOpen                 DisputeStatus = "open"
	DisputeStatusUnderReview          DisputeStatus = "under_review"
	DisputeStatusResolvedForSubmitter DisputeStatus = "resolved_for_submitter"
	DisputeStatusResolvedForOpponent  DisputeStatus = "resolved_for_opponent"
	DisputeStatusCancelled            DisputeStatus = "cancelled"
	DisputeStatusEscalated            DisputeStatus = "escalated"
)

// OpenLike statuses count toward the one-active-dispute-per-submission
// invariant.
func (s DisputeStatus) OpenLike() bool {
	return s == DisputeStatusOpen || s == DisputeStatusUnderReview || s == DisputeStatusEscalated
}

func (s DisputeStatus) Terminal() bool {
	switch s {
	case DisputeStatusResolvedForSubmitter, DisputeStatusResolvedForOpponent, DisputeStatusCancelled:
		return true
	}
	return false
}

func (s DisputeStatus) Valid() bool {
	switch s {
	case DisputeStatusOpen, DisputeStatusUnderReview, DisputeStatusResolvedForSubmitter,
		DisputeStatusResolvedForOpponent, DisputeStatusCancelled, DisputeStatusEscalated:
		return true
	}
	return false
}

var disputeTransitions = map[DisputeStatus][]DisputeStatus{
	DisputeStatusOpen: {DisputeStatusUnderReview},
	DisputeStatusUnderReview: {
		DisputeStatusResolvedForSubmitter,
		DisputeStatusResolvedForOpponent,
		DisputeStatusCancelled,
		DisputeStatusEscalated,
	},
	// Escalated disputes only resolve or cancel, never reopen.
	DisputeStatusEscalated: {
		DisputeStatusResolvedForSubmitter,
		DisputeStatusResolvedForOpponent,
		DisputeStatusCancelled,
	},
}

func CanTransitionDispute(from, to DisputeStatus) bool {
	for _, next := range disputeTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// DisputeReason is machine-read; free text lives only in Description and
// ResolutionNotes.
type DisputeReason string

const (
	ReasonIncorrectScore    DisputeReason = "incorrect_score"
	ReasonOpponentNoShow    DisputeReason = "opponent_no_show"
	ReasonRuleViolation     DisputeReason = "rule_violation"
	ReasonCheatingSuspected DisputeReason = "cheating_suspected"
	ReasonOther             DisputeReason = "other"
)

func (r DisputeReason) Valid() bool {
	switch r {
	case ReasonIncorrectScore, ReasonOpponentNoShow, ReasonRuleViolation,
		ReasonCheatingSuspected, ReasonOther:
		return true
	}
	return false
}

type Dispute struct {
	ID           uuid.UUID     `json:"id" db:"id"`
	SubmissionID uuid.UUID     `json:"submission_id" db:"submission_id"`
	MatchID      int           `json:"match_id" db:"match_id"`
	Status       DisputeStatus `json:"status" db:"status"`
	ReasonCode   DisputeReason `json:"reason_code" db:"reason_code"`
	Description  *string       `json:"description,omitempty" db:"description"`

	InitiatedBy     int     `json:"initiated_by" db:"initiated_by"`
	InitiatorTeamID *int    `json:"initiator_team_id,omitempty" db:"initiator_team_id"`
	ResolvedBy      *int    `json:"resolved_by,omitempty" db:"resolved_by"`
	ResolutionNotes *string `json:"resolution_notes,omitempty" db:"resolution_notes"`

	FinalScore1 *int `json:"final_score1,omitempty" db:"final_score1"`
	FinalScore2 *int `json:"final_score2,omitempty" db:"final_score2"`

	OpenedAt    time.Time  `json:"opened_at" db:"opened_at"`
	EscalatedAt *time.Time `json:"escalated_at,omitempty" db:"escalated_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`
}

type EvidenceKind string

const (
	EvidenceScreenshot EvidenceKind = "screenshot"
	EvidenceVideo      EvidenceKind = "video"
	EvidenceChatLog    EvidenceKind = "chat_log"
	EvidenceOther      EvidenceKind = "other"
)

func (k EvidenceKind) Valid() bool {
	switch k {
	case EvidenceScreenshot, EvidenceVideo, EvidenceChatLog, EvidenceOther:
		return true
	}
	return false
}

// DisputeEvidence entries are append-only, ordered by submission time.
type DisputeEvidence struct {
	ID         int          `json:"id" db:"id"`
	DisputeID  uuid.UUID    `json:"dispute_id" db:"dispute_id"`
	UploaderID int          `json:"uploader_id" db:"uploader_id"`
	Kind       EvidenceKind `json:"kind" db:"kind"`
	Reference  string       `json:"reference" db:"reference"`
	Notes      *string      `json:"notes,omitempty" db:"notes"`
	CreatedAt  time.Time    `json:"created_at" db:"created_at"`
}
