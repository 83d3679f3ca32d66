package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/nbakenov/tournament-core/handlers"
	"github.com/nbakenov/tournament-core/middleware"
)

type Handlers struct {
	Tournament *handlers.TournamentHandler
	Match      *handlers.MatchHandler
	Dispute    *handlers.DisputeHandler
	WebSocket  *handlers.WebSocketHandler
}

// InitRoutes wires the HTTP surface. Reads are public; participant actions
// need a token; organizer operations additionally need an organizer or
// referee role.
func InitRoutes(h Handlers, jwtSecret string) *chi.Mux {
	router := chi.NewRouter()

	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authenticate := middleware.Authenticate(jwtSecret)
	organizerOnly := middleware.Authorize(middleware.RoleOrganizer, middleware.RoleReferee)

	router.Route("/tournaments", func(r chi.Router) {
		r.Get("/{tournamentID}", h.Tournament.GetByIDHandler)
		r.Get("/{tournamentID}/bracket", h.Tournament.GetBracketHandler)
		r.Get("/{tournamentID}/matches", h.Tournament.ListMatchesHandler)
		r.Get("/{tournamentID}/groups", h.Tournament.ListGroupsHandler)
		r.Get("/{tournamentID}/overview", h.Tournament.OverviewHandler)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(organizerOnly)

			r.Post("/", h.Tournament.CreateHandler)
			r.Post("/{tournamentID}/bracket", h.Tournament.FinalizeBracketHandler)
		})
	})

	router.Get("/groups/{groupID}/standings", h.Tournament.GroupStandingsHandler)

	router.Route("/matches", func(r chi.Router) {
		r.Get("/{matchID}", h.Match.GetByIDHandler)
		r.Get("/{matchID}/log", h.Match.VerificationLogHandler)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)

			r.Post("/{matchID}/check-in", h.Match.CheckInHandler)
			r.Post("/{matchID}/results", h.Match.SubmitResultHandler)
			r.Post("/{matchID}/confirm", h.Match.ConfirmResultHandler)
		})

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(organizerOnly)

			r.Post("/{matchID}/ready", h.Match.ReadyHandler)
			r.Post("/{matchID}/start", h.Match.StartHandler)
			r.Post("/{matchID}/pending-result", h.Match.MarkPendingHandler)
			r.Post("/{matchID}/reschedule", h.Match.RescheduleHandler)
			r.Post("/{matchID}/forfeit", h.Match.ForfeitHandler)
			r.Post("/{matchID}/override", h.Match.OverrideScoreHandler)
			r.Post("/{matchID}/cancel", h.Match.CancelHandler)
		})
	})

	router.Route("/disputes", func(r chi.Router) {
		r.Get("/{disputeID}", h.Dispute.GetByIDHandler)
		r.Get("/{disputeID}/evidence", h.Dispute.ListEvidenceHandler)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)

			r.Post("/", h.Dispute.OpenHandler)
			r.Post("/{disputeID}/evidence", h.Dispute.AddEvidenceHandler)
			r.Post("/{disputeID}/evidence/upload", h.Dispute.UploadEvidenceHandler)
		})

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(organizerOnly)

			r.Get("/", h.Dispute.ListHandler)
			r.Post("/{disputeID}/transition", h.Dispute.TransitionHandler)
			r.Post("/{disputeID}/resolve", h.Dispute.ResolveHandler)
		})
	})

	router.Get("/ws/tournaments/{tournamentID}", h.WebSocket.ServeWs)

	return router
}
