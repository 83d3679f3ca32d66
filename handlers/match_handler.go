package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/nbakenov/tournament-core/middleware"
	"github.com/nbakenov/tournament-core/services"
)

type MatchHandler struct {
	matchService services.MatchService
}

func NewMatchHandler(ms services.MatchService) *MatchHandler {
	return &MatchHandler{matchService: ms}
}

// GetByIDHandler handles GET /matches/{matchID}
func (h *MatchHandler) GetByIDHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.GetMatch(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// VerificationLogHandler handles GET /matches/{matchID}/log
func (h *MatchHandler) VerificationLogHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	entries, err := h.matchService.VerificationLog(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"log": entries}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// CheckInHandler handles POST /matches/{matchID}/check-in
func (h *MatchHandler) CheckInHandler(w http.ResponseWriter, r *http.Request) {
	h.simpleLifecycleOp(w, r, h.matchService.CheckIn)
}

// ReadyHandler handles POST /matches/{matchID}/ready
func (h *MatchHandler) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	h.simpleLifecycleOp(w, r, h.matchService.ConfirmReady)
}

// StartHandler handles POST /matches/{matchID}/start
func (h *MatchHandler) StartHandler(w http.ResponseWriter, r *http.Request) {
	h.simpleLifecycleOp(w, r, h.matchService.Start)
}

type submitResultInput struct {
	Score1 int `json:"score1"`
	Score2 int `json:"score2"`
}

// SubmitResultHandler handles POST /matches/{matchID}/results
func (h *MatchHandler) SubmitResultHandler(w http.ResponseWriter, r *http.Request) {
	id, actorID, ok := h.matchAndActor(w, r)
	if !ok {
		return
	}

	var input submitResultInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	submission, err := h.matchService.SubmitResult(r.Context(), id, actorID, input.Score1, input.Score2)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"submission": submission}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type confirmResultInput struct {
	SubmissionID string `json:"submission_id"`
}

// ConfirmResultHandler handles POST /matches/{matchID}/confirm
func (h *MatchHandler) ConfirmResultHandler(w http.ResponseWriter, r *http.Request) {
	id, actorID, ok := h.matchAndActor(w, r)
	if !ok {
		return
	}

	var input confirmResultInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	submissionID, err := parseUUID(input.SubmissionID, "submission_id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.matchService.ConfirmResult(r.Context(), id, submissionID, actorID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.respondWithMatch(w, r, id)
}

type pendingResultInput struct {
	Reason string `json:"reason"`
}

// MarkPendingHandler handles POST /matches/{matchID}/pending-result
func (h *MatchHandler) MarkPendingHandler(w http.ResponseWriter, r *http.Request) {
	id, actorID, ok := h.matchAndActor(w, r)
	if !ok {
		return
	}

	var input pendingResultInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.matchService.MarkPendingResult(r.Context(), id, actorID, input.Reason); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.respondWithMatch(w, r, id)
}

type rescheduleInput struct {
	ScheduledAt time.Time `json:"scheduled_at"`
	Reason      string    `json:"reason"`
}

// RescheduleHandler handles POST /matches/{matchID}/reschedule
func (h *MatchHandler) RescheduleHandler(w http.ResponseWriter, r *http.Request) {
	id, actorID, ok := h.matchAndActor(w, r)
	if !ok {
		return
	}

	var input rescheduleInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.ScheduledAt.IsZero() {
		badRequestResponse(w, r, errors.New("scheduled_at is required"))
		return
	}

	if err := h.matchService.Reschedule(r.Context(), id, input.ScheduledAt, input.Reason, actorID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.respondWithMatch(w, r, id)
}

type forfeitInput struct {
	ForfeitingSlot int    `json:"forfeiting_slot"`
	Reason         string `json:"reason"`
}

// ForfeitHandler handles POST /matches/{matchID}/forfeit
func (h *MatchHandler) ForfeitHandler(w http.ResponseWriter, r *http.Request) {
	id, actorID, ok := h.matchAndActor(w, r)
	if !ok {
		return
	}

	var input forfeitInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.matchService.Forfeit(r.Context(), id, input.ForfeitingSlot, input.Reason, actorID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.respondWithMatch(w, r, id)
}

type overrideScoreInput struct {
	Score1 int    `json:"score1"`
	Score2 int    `json:"score2"`
	Reason string `json:"reason"`
	// Confirm must be true to rewrite a result that has already settled.
	Confirm bool `json:"confirm"`
}

// OverrideScoreHandler handles POST /matches/{matchID}/override
func (h *MatchHandler) OverrideScoreHandler(w http.ResponseWriter, r *http.Request) {
	id, actorID, ok := h.matchAndActor(w, r)
	if !ok {
		return
	}

	var input overrideScoreInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var grant *services.OverrideGrant
	if input.Confirm {
		grant = &services.OverrideGrant{GrantedBy: actorID, Reason: input.Reason}
	}

	if err := h.matchService.OverrideScore(r.Context(), id, input.Score1, input.Score2, input.Reason, actorID, grant); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.respondWithMatch(w, r, id)
}

type cancelInput struct {
	Reason string `json:"reason"`
}

// CancelHandler handles POST /matches/{matchID}/cancel
func (h *MatchHandler) CancelHandler(w http.ResponseWriter, r *http.Request) {
	id, actorID, ok := h.matchAndActor(w, r)
	if !ok {
		return
	}

	var input cancelInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.matchService.Cancel(r.Context(), id, input.Reason, actorID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.respondWithMatch(w, r, id)
}

// simpleLifecycleOp covers the body-less participant transitions (check-in,
// ready, start): resolve match and actor, run the operation, echo the match.
func (h *MatchHandler) simpleLifecycleOp(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, matchID, actorID int) error) {
	id, actorID, ok := h.matchAndActor(w, r)
	if !ok {
		return
	}
	if err := op(r.Context(), id, actorID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.respondWithMatch(w, r, id)
}

func (h *MatchHandler) matchAndActor(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	id, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return 0, 0, false
	}
	actorID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return 0, 0, false
	}
	return id, actorID, true
}

func (h *MatchHandler) respondWithMatch(w http.ResponseWriter, r *http.Request, id int) {
	match, err := h.matchService.GetMatch(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
