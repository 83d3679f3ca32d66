package handlers

import (
	"errors"
	"net/http"

	"github.com/nbakenov/tournament-core/middleware"
	"github.com/nbakenov/tournament-core/models"
	"github.com/nbakenov/tournament-core/repositories"
	"github.com/nbakenov/tournament-core/services"
)

type TournamentHandler struct {
	tournamentService services.TournamentService
	matchService      services.MatchService
	overviewService   services.OverviewService
	propagator        services.AdvancementPropagator
}

func NewTournamentHandler(
	ts services.TournamentService,
	ms services.MatchService,
	os services.OverviewService,
	ap services.AdvancementPropagator,
) *TournamentHandler {
	return &TournamentHandler{
		tournamentService: ts,
		matchService:      ms,
		overviewService:   os,
		propagator:        ap,
	}
}

type createTournamentInput struct {
	Name             string                  `json:"name"`
	Format           models.TournamentFormat `json:"format"`
	GroupCount       int                     `json:"group_count"`
	AdvancementCount int                     `json:"advancement_count"`
}

// CreateHandler handles POST /tournaments
func (h *TournamentHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	organizerID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required to create a tournament")
		return
	}

	var input createTournamentInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	tournament := &models.Tournament{
		Name:             input.Name,
		Format:           input.Format,
		OrganizerID:      organizerID,
		GroupCount:       input.GroupCount,
		AdvancementCount: input.AdvancementCount,
	}
	tournament, err = h.tournamentService.CreateTournament(r.Context(), tournament)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetByIDHandler handles GET /tournaments/{tournamentID}
func (h *TournamentHandler) GetByIDHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	tournament, err := h.tournamentService.GetTournament(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type finalizeBracketInput struct {
	Roster  []models.RosterEntry `json:"roster"`
	Seeding models.SeedingMethod `json:"seeding"`
}

// FinalizeBracketHandler handles POST /tournaments/{tournamentID}/bracket
func (h *TournamentHandler) FinalizeBracketHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input finalizeBracketInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.Seeding == "" {
		input.Seeding = models.SeedingRanked
	}

	bracket, err := h.tournamentService.FinalizeBracket(r.Context(), id, input.Roster, input.Seeding)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"bracket": bracket}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetBracketHandler handles GET /tournaments/{tournamentID}/bracket
func (h *TournamentHandler) GetBracketHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	bracket, nodes, err := h.tournamentService.GetBracket(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"bracket": bracket, "nodes": nodes}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListMatchesHandler handles GET /tournaments/{tournamentID}/matches
func (h *TournamentHandler) ListMatchesHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	page, err := parsePagination(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	filter := repositories.MatchFilter{Limit: page.Limit, Offset: page.Offset}
	query := r.URL.Query()
	if stateStr := query.Get("state"); stateStr != "" {
		state := models.MatchState(stateStr)
		if !state.Valid() {
			badRequestResponse(w, r, errors.New("invalid state query parameter"))
			return
		}
		filter.State = &state
	}
	if roundStr := query.Get("round"); roundStr != "" {
		round, err := getQueryInt(roundStr)
		if err != nil {
			badRequestResponse(w, r, errors.New("invalid round query parameter"))
			return
		}
		filter.Round = &round
	}

	matches, total, err := h.matchService.ListByTournament(r.Context(), id, filter)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, paginatedResponse("matches", matches, total, page), nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListGroupsHandler handles GET /tournaments/{tournamentID}/groups
func (h *TournamentHandler) ListGroupsHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	groups, err := h.tournamentService.ListGroups(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"groups": groups}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GroupStandingsHandler handles GET /groups/{groupID}/standings
func (h *TournamentHandler) GroupStandingsHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "groupID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	standings, err := h.propagator.StandingsForGroup(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"standings": standings}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// OverviewHandler handles GET /tournaments/{tournamentID}/overview
func (h *TournamentHandler) OverviewHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	overview, err := h.overviewService.GetOverview(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"overview": overview}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
