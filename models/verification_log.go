package models

import (
	"time"

	"github.com/google/uuid"
)

type VerificationStep string

const (
	StepCheckIn             VerificationStep = "check_in"
	StepReadyConfirm        VerificationStep = "ready_confirm"
	StepMatchStarted        VerificationStep = "match_started"
	StepResultSubmitted     VerificationStep = "result_submitted"
	StepPendingResultMarked VerificationStep = "pending_result_marked"
	StepOpponentConfirm     VerificationStep = "opponent_confirm"
	StepOpponentDispute     VerificationStep = "opponent_dispute"
	StepEvidenceAdded       VerificationStep = "dispute_evidence_added"
	StepDisputeTransition   VerificationStep = "dispute_status_changed"
	StepDisputeResolved     VerificationStep = "dispute_resolved"
	StepOrganizerReschedule VerificationStep = "organizer_reschedule"
	StepOrganizerForfeit    VerificationStep = "organizer_forfeit"
	StepOrganizerOverride   VerificationStep = "organizer_override"
	StepOrganizerCancel     VerificationStep = "organizer_cancel"
	StepAdvancement         VerificationStep = "advancement"
	StepGroupAdvancement    VerificationStep = "group_advancement"
)

type VerificationStatus string

const (
	VerificationSuccess VerificationStatus = "success"
	VerificationFailure VerificationStatus = "failure"
)

// VerificationLogEntry is one immutable audit record. ActorID is nil for
// system-triggered steps (advancement, group seeding). Detail is a free-form
// JSON payload.
type VerificationLogEntry struct {
	ID           int                `json:"id" db:"id"`
	MatchID      int                `json:"match_id" db:"match_id"`
	SubmissionID *uuid.UUID         `json:"submission_id,omitempty" db:"submission_id"`
	Step         VerificationStep   `json:"step" db:"step"`
	Status       VerificationStatus `json:"status" db:"status"`
	Detail       *string            `json:"detail,omitempty" db:"detail"`
	ActorID      *int               `json:"actor_id,omitempty" db:"actor_id"`
	CreatedAt    time.Time          `json:"created_at" db:"created_at"`
}
