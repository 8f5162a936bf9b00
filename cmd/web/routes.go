package main

import (
	"net/http"

	"github.com/AdamBeresnev/tourney-live/internal/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func (app *application) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	origins := app.cfg.Server.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Serve static files
	fileServer := http.FileServer(http.Dir("./static"))
	r.Handle("/static/*", http.StripPrefix("/static/", fileServer))

	r.Handle("/metrics", app.metrics.Handler())

	// Sockets stay outside the session middleware, which cannot hijack connections
	r.Get("/ws/displays/{code}", app.displaySocket)
	r.Get("/ws/tournaments/{id}", app.tournamentSocket)
	r.Get("/display", app.displayPage)

	r.Group(func(r chi.Router) {
		r.Use(app.sessionManager.LoadAndSave)
		r.Use(middleware.LoadController(app.sessionManager))

		r.Route("/api", func(r chi.Router) {
			r.Post("/displays", app.registerDisplay)
			r.Get("/displays", app.listDisplays)
			r.Post("/displays/{code}/command", app.displayCommand)
			r.Post("/displays/{code}/refresh", app.refreshDisplay)
			r.Get("/display/state", app.displayState)
			r.Post("/sessions/{code}/heartbeat", app.heartbeat)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimit(app.limiter, app.metrics.PairingLimited))
				r.Post("/pair", app.pair)
				r.Post("/pair-all", app.pairAll)
				r.Post("/pair/validate", app.validatePairings)
			})
			r.Post("/unpair", app.unpair)

			r.Route("/tournaments", func(r chi.Router) {
				r.Get("/", app.listTournaments)
				r.Post("/", app.createTournament)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/state", app.tournamentState)
					r.Post("/activate", app.activateTournament)
					r.Get("/standings", app.standings)
					r.Get("/standings.xlsx", app.standingsWorkbook)
					r.Get("/next-match", app.nextMatch)
					r.Get("/stats", app.stats)
					r.Post("/display", app.setDisplay)

					r.Route("/matches/{mid}", func(r chi.Router) {
						r.Post("/score", app.setScore)
						r.Post("/add-point", app.addPoint)
						r.Post("/determine-winner", app.determineWinner)
						r.Post("/complete", app.completeMatch)
						r.Post("/reset", app.resetMatch)
						r.Post("/swap", app.swapTeams)
						r.Post("/current", app.setCurrentMatch)
					})

					r.Route("/timer", func(r chi.Router) {
						r.Post("/start", app.startTimer)
						r.Post("/pause", app.pauseTimer)
						r.Post("/resume", app.resumeTimer)
						r.Post("/stop", app.stopTimer)
						r.Post("/duration", app.setTimerDuration)
					})
				})
			})
		})
	})

	return r
}
