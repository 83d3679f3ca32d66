package handlers

import (
	"errors"
	"net/http"

	"github.com/nbakenov/tournament-core/middleware"
	"github.com/nbakenov/tournament-core/models"
	"github.com/nbakenov/tournament-core/repositories"
	"github.com/nbakenov/tournament-core/services"
)

// Evidence uploads are capped well below readJSON's limit because they carry
// binary attachments.
const maxEvidenceUploadBytes = 10 << 20 // 10MB

type DisputeHandler struct {
	disputeService services.DisputeService
}

func NewDisputeHandler(ds services.DisputeService) *DisputeHandler {
	return &DisputeHandler{disputeService: ds}
}

type openDisputeInput struct {
	SubmissionID string               `json:"submission_id"`
	Reason       models.DisputeReason `json:"reason"`
	Description  *string              `json:"description"`
	TeamID       *int                 `json:"team_id"`
}

// OpenHandler handles POST /disputes
func (h *DisputeHandler) OpenHandler(w http.ResponseWriter, r *http.Request) {
	actorID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	var input openDisputeInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	submissionID, err := parseUUID(input.SubmissionID, "submission_id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	dispute, err := h.disputeService.Open(r.Context(), submissionID, actorID, input.TeamID, input.Reason, input.Description)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"dispute": dispute}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetByIDHandler handles GET /disputes/{disputeID}
func (h *DisputeHandler) GetByIDHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getUUIDFromURL(r, "disputeID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	dispute, err := h.disputeService.GetDispute(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"dispute": dispute}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListHandler handles GET /disputes
func (h *DisputeHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	page, err := parsePagination(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	filter := repositories.DisputeFilter{Limit: page.Limit, Offset: page.Offset}
	query := r.URL.Query()
	if statusStr := query.Get("status"); statusStr != "" {
		status := models.DisputeStatus(statusStr)
		filter.Status = &status
	}
	if reasonStr := query.Get("reason"); reasonStr != "" {
		reason := models.DisputeReason(reasonStr)
		filter.Reason = &reason
	}

	disputes, total, err := h.disputeService.List(r.Context(), filter)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, paginatedResponse("disputes", disputes, total, page), nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type addEvidenceInput struct {
	Kind      models.EvidenceKind `json:"kind"`
	Reference string              `json:"reference"`
	Notes     *string             `json:"notes"`
}

// AddEvidenceHandler handles POST /disputes/{disputeID}/evidence
func (h *DisputeHandler) AddEvidenceHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getUUIDFromURL(r, "disputeID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actorID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	var input addEvidenceInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	evidence, err := h.disputeService.AddEvidence(r.Context(), id, actorID, input.Kind, input.Reference, input.Notes)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"evidence": evidence}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// UploadEvidenceHandler handles POST /disputes/{disputeID}/evidence/upload
// (multipart form with a "file" part, plus "kind" and optional "notes" fields).
func (h *DisputeHandler) UploadEvidenceHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getUUIDFromURL(r, "disputeID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actorID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxEvidenceUploadBytes)
	if err := r.ParseMultipartForm(maxEvidenceUploadBytes); err != nil {
		badRequestResponse(w, r, errors.New("invalid multipart form or file too large"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		badRequestResponse(w, r, errors.New("file part is required"))
		return
	}
	defer file.Close()

	kind := models.EvidenceKind(r.FormValue("kind"))
	var notes *string
	if n := r.FormValue("notes"); n != "" {
		notes = &n
	}

	evidence, err := h.disputeService.UploadEvidence(r.Context(), id, actorID, kind,
		header.Filename, header.Header.Get("Content-Type"), file, notes)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"evidence": evidence}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListEvidenceHandler handles GET /disputes/{disputeID}/evidence
func (h *DisputeHandler) ListEvidenceHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getUUIDFromURL(r, "disputeID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	evidence, err := h.disputeService.ListEvidence(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"evidence": evidence}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type transitionDisputeInput struct {
	Status models.DisputeStatus `json:"status"`
	Notes  *string              `json:"notes"`
}

// TransitionHandler handles POST /disputes/{disputeID}/transition
func (h *DisputeHandler) TransitionHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getUUIDFromURL(r, "disputeID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actorID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	var input transitionDisputeInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	dispute, err := h.disputeService.Transition(r.Context(), id, input.Status, actorID, input.Notes)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"dispute": dispute}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type resolveDisputeInput struct {
	ForSubmitter bool    `json:"for_submitter"`
	Score1       int     `json:"score1"`
	Score2       int     `json:"score2"`
	Notes        *string `json:"notes"`
}

// ResolveHandler handles POST /disputes/{disputeID}/resolve
func (h *DisputeHandler) ResolveHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getUUIDFromURL(r, "disputeID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actorID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	var input resolveDisputeInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	dispute, err := h.disputeService.Resolve(r.Context(), id, input.ForSubmitter, input.Score1, input.Score2, actorID, input.Notes)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"dispute": dispute}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
