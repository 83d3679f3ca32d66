package services

import "errors"

// Shared sentinel errors used across services and the HTTP error mapping.
var (
	// Lookup failures
	ErrNotFound           = errors.New("requested resource not found")
	ErrTournamentNotFound = errors.New("tournament not found")
	ErrMatchNotFound      = errors.New("match not found")
	ErrBracketNotFound    = errors.New("bracket not found")
	ErrGroupNotFound      = errors.New("group not found")
	ErrSubmissionNotFound = errors.New("result submission not found")
	ErrDisputeNotFound    = errors.New("dispute not found")

	// State machine guards
	ErrInvalidTransition        = errors.New("invalid state transition")
	ErrInvalidDisputeTransition = errors.New("invalid dispute status transition")
	ErrMatchNotReadyForResult   = errors.New("match is not accepting results")
	ErrNotMatchParticipant      = errors.New("actor is not a participant of this match")
	ErrAlreadyCheckedIn         = errors.New("participant already checked in")
	ErrCheckInIncomplete        = errors.New("both participants must check in first")

	// Business rule violations
	ErrDuplicateOpenDispute    = errors.New("an active dispute already exists for this submission")
	ErrAmbiguousResult         = errors.New("tied score is not allowed for this match")
	ErrBracketAlreadyFinalized = errors.New("bracket is already finalized")
	ErrOverrideGrantRequired   = errors.New("rewriting a settled result requires an explicit override grant")
	ErrValidationFailed        = errors.New("validation failed")

	// ErrContractViolation marks a broken internal invariant (a filled
	// downstream slot that cannot be corrected, a node without its match,
	// ...). It signals a bug or operator misuse, not a normal user error,
	// and should alert rather than be silently recovered.
	ErrContractViolation = errors.New("internal invariant violated")
)
