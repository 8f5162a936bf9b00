package main

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/AdamBeresnev/tourney-live/internal/bracket"
	"github.com/AdamBeresnev/tourney-live/internal/config"
	"github.com/AdamBeresnev/tourney-live/internal/export"
	"github.com/AdamBeresnev/tourney-live/internal/httputil"
	"github.com/AdamBeresnev/tourney-live/internal/metrics"
	"github.com/AdamBeresnev/tourney-live/internal/middleware"
	"github.com/AdamBeresnev/tourney-live/internal/service"
	"github.com/AdamBeresnev/tourney-live/internal/session"
	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type application struct {
	cfg            *config.Config
	logger         *slog.Logger
	svc            *service.TournamentService
	sessions       *session.Manager
	hub            *session.Hub
	sessionManager *scs.SessionManager
	metrics        *metrics.Metrics
	limiter        *middleware.IPRateLimiter
}

func urlID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		httputil.BadRequest(w, fmt.Sprintf("Invalid %s", param), err)
		return uuid.Nil, false
	}
	return id, true
}

// decode reads the optional JSON body into v and answers 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := httputil.DecodeJSON(w, r, v); err != nil {
		httputil.BadRequest(w, "Invalid request body", err)
		return false
	}
	return true
}

// respond answers a control call with the new snapshot or the engine error.
func respond(w http.ResponseWriter, r *http.Request, t *bracket.Tournament, err error) {
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, service.BuildState(t))
}

type createTournamentRequest struct {
	service.CreateTournamentInput
	// One team per line, see service.ParseTeamList
	TeamList string `json:"team_list,omitempty"`
}

func (app *application) createTournament(w http.ResponseWriter, r *http.Request) {
	var req createTournamentRequest
	if !decode(w, r, &req) {
		return
	}
	if req.TeamList != "" {
		teams, err := service.ParseTeamList(req.TeamList)
		if err != nil {
			httputil.WriteError(w, r, err)
			return
		}
		req.Teams = append(req.Teams, teams...)
	}

	t, err := app.svc.CreateTournament(r.Context(), req.CreateTournamentInput)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, service.BuildState(t))
}

type tournamentSummary struct {
	ID     uuid.UUID                `json:"id"`
	Name   string                   `json:"name"`
	Format bracket.Format           `json:"format"`
	Status bracket.TournamentStatus `json:"status"`
	Active bool                     `json:"active"`
	Stats  service.Stats            `json:"stats"`
}

func (app *application) listTournaments(w http.ResponseWriter, r *http.Request) {
	var activeID uuid.UUID
	if active, err := app.svc.Active(); err == nil {
		activeID = active.ID
	}

	out := []tournamentSummary{}
	for _, t := range app.svc.List() {
		out = append(out, tournamentSummary{
			ID:     t.ID,
			Name:   t.Name,
			Format: t.Format,
			Status: t.Status,
			Active: t.ID == activeID,
			Stats:  service.ComputeStats(t),
		})
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (app *application) tournamentState(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	st, err := app.svc.State(id)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, st)
}

func (app *application) activateTournament(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	t, err := app.svc.SetActive(id)
	respond(w, r, t, err)
}

func (app *application) standings(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	rows, err := app.svc.Standings(id)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rows)
}

func (app *application) standingsWorkbook(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	t, err := app.svc.Tournament(id)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	rows, err := app.svc.Standings(id)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="standings-%s.xlsx"`, t.ID))
	if err := export.Write(w, t, rows); err != nil {
		app.logger.Error("failed to export standings", "tournament", t.ID, "error", err)
	}
}

func (app *application) nextMatch(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	m, err := app.svc.NextMatch(id)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]*service.MatchView{"match": m})
}

func (app *application) stats(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	s, err := app.svc.Stats(id)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, s)
}

func (app *application) setDisplay(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	var req service.DisplayUpdate
	if !decode(w, r, &req) {
		return
	}
	t, err := app.svc.SetDisplay(id, req)
	respond(w, r, t, err)
}

func matchIDs(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	id, ok := urlID(w, r, "id")
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	matchID, ok := urlID(w, r, "mid")
	return id, matchID, ok
}
