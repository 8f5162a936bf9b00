package main

import (
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/AdamBeresnev/tourney-live/internal/bracket"
	"github.com/AdamBeresnev/tourney-live/internal/httputil"
	"github.com/AdamBeresnev/tourney-live/internal/middleware"
	"github.com/AdamBeresnev/tourney-live/internal/service"
	"github.com/AdamBeresnev/tourney-live/internal/session"
	"github.com/AdamBeresnev/tourney-live/views"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type codeRequest struct {
	Code string `json:"code"`
}

type validateRequest struct {
	// Empty checks the codes remembered for this browser
	Codes []string `json:"codes,omitempty"`
}

type registerDisplayRequest struct {
	TournamentID *uuid.UUID `json:"tournament_id,omitempty"`
}

type registerDisplayResponse struct {
	session.Session
	HeartbeatSeconds int `json:"heartbeat_seconds"`
}

type displayCommandRequest struct {
	Mode         *string    `json:"mode,omitempty"`
	Message      *string    `json:"message,omitempty"`
	WinnerTeamID *uuid.UUID `json:"winner_team_id,omitempty"`
	TournamentID *uuid.UUID `json:"tournament_id,omitempty"`
	Clear        bool       `json:"clear,omitempty"`
}

// displayView is what a display renders: its session overrides and the state of
// the tournament it follows, nil until one exists.
type displayView struct {
	Session session.Session `json:"session"`
	State   *service.State  `json:"state,omitempty"`
}

func (app *application) controllerCode(r *http.Request) string {
	code, _ := middleware.ControllerFromContext(r.Context())
	return code
}

func (app *application) registerDisplay(w http.ResponseWriter, r *http.Request) {
	var req registerDisplayRequest
	if !decode(w, r, &req) {
		return
	}
	if req.TournamentID != nil {
		if _, err := app.svc.Tournament(*req.TournamentID); err != nil {
			httputil.WriteError(w, r, err)
			return
		}
	}
	s, err := app.sessions.RegisterDisplay(req.TournamentID)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, registerDisplayResponse{
		Session:          s,
		HeartbeatSeconds: int(app.cfg.Sessions.HeartbeatInterval / time.Second),
	})
}

func (app *application) listDisplays(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, app.sessions.Displays())
}

func (app *application) pair(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if !decode(w, r, &req) {
		return
	}
	ctrl, err := app.sessions.Pair(app.controllerCode(r), req.Code)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	middleware.RememberPaired(r.Context(), app.sessionManager, ctrl.PairedWith)
	httputil.WriteJSON(w, http.StatusOK, ctrl)
}

func (app *application) pairAll(w http.ResponseWriter, r *http.Request) {
	ctrl, paired := app.sessions.PairAll(app.controllerCode(r))
	if len(paired) > 0 {
		middleware.RememberPaired(r.Context(), app.sessionManager, paired)
	}
	httputil.WriteJSON(w, http.StatusOK, ctrl)
}

func (app *application) unpair(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if !decode(w, r, &req) {
		return
	}
	err := app.sessions.Unpair(app.controllerCode(r), req.Code)
	if err != nil && !errors.Is(err, session.ErrSessionNotFound) {
		httputil.WriteError(w, r, err)
		return
	}
	if req.Code == "" {
		middleware.RememberPaired(r.Context(), app.sessionManager, nil)
	} else {
		middleware.ForgetPaired(r.Context(), app.sessionManager, session.NormalizeCode(req.Code))
	}
	w.WriteHeader(http.StatusNoContent)
}

func (app *application) validatePairings(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if !decode(w, r, &req) {
		return
	}
	remembered := len(req.Codes) == 0
	if remembered {
		req.Codes = middleware.PairedDisplays(r.Context(), app.sessionManager)
	}

	active, stale := app.sessions.Validate(req.Codes)
	if remembered {
		for _, code := range stale {
			middleware.ForgetPaired(r.Context(), app.sessionManager, code)
		}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string][]string{
		"active": nonNil(active),
		"stale":  nonNil(stale),
	})
}

func (app *application) heartbeat(w http.ResponseWriter, r *http.Request) {
	s, err := app.sessions.Heartbeat(chi.URLParam(r, "code"))
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, s)
}

func (app *application) displayCommand(w http.ResponseWriter, r *http.Request) {
	var req displayCommandRequest
	if !decode(w, r, &req) {
		return
	}
	o := session.DisplayOverride{
		Message:      req.Message,
		WinnerTeamID: req.WinnerTeamID,
		TournamentID: req.TournamentID,
		Clear:        req.Clear,
	}
	if req.Mode != nil {
		mode, err := bracket.ParseDisplayMode(*req.Mode)
		if err != nil {
			httputil.WriteError(w, r, err)
			return
		}
		o.Mode = &mode
	}
	if req.TournamentID != nil {
		if _, err := app.svc.Tournament(*req.TournamentID); err != nil {
			httputil.WriteError(w, r, err)
			return
		}
	}

	s, err := app.sessions.UpdateDisplay(chi.URLParam(r, "code"), o)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, s)
}

func (app *application) refreshDisplay(w http.ResponseWriter, r *http.Request) {
	if err := app.sessions.Refresh(chi.URLParam(r, "code")); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// followed is the tournament a display shows: its own, or the active one.
func (app *application) followed(s session.Session) (*bracket.Tournament, error) {
	if s.TournamentID != nil {
		return app.svc.Tournament(*s.TournamentID)
	}
	return app.svc.Active()
}

func (app *application) viewFor(s session.Session) displayView {
	v := displayView{Session: s}
	if t, err := app.followed(s); err == nil {
		st := service.BuildState(t)
		v.State = &st
	}
	return v
}

func (app *application) displayState(w http.ResponseWriter, r *http.Request) {
	s, err := app.sessions.Get(r.URL.Query().Get("code"))
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, app.viewFor(s))
}

// displayPage registers a fresh display and renders its pairing screen.
func (app *application) displayPage(w http.ResponseWriter, r *http.Request) {
	s, err := app.sessions.RegisterDisplay(nil)
	if err != nil {
		httputil.InternalServerError(w, "Failed to register display", err)
		return
	}

	var data *views.BracketData
	if v := app.viewFor(s); v.State != nil {
		prepared := views.PrepareBracketData(*v.State)
		data = &prepared
	}
	if err := views.Render(w, r, views.DisplayPage(s.Code, app.cfg.Sessions.HeartbeatInterval, data)); err != nil {
		app.logger.Error("failed to render display page", "error", err)
	}
}

func (app *application) upgrader() *websocket.Upgrader {
	origins := app.cfg.Server.AllowedOrigins
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || len(origins) == 0 || slices.Contains(origins, "*") || slices.Contains(origins, origin)
		},
	}
}

// displaySocket streams the display's full view, then every delta of the
// tournament it follows and every command aimed at it.
func (app *application) displaySocket(w http.ResponseWriter, r *http.Request) {
	s, err := app.sessions.Get(chi.URLParam(r, "code"))
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	conn, err := app.upgrader().Upgrade(w, r, nil)
	if err != nil {
		app.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	topics := []string{session.SessionTopic(s.Code)}
	if t, err := app.followed(s); err == nil {
		topics = append(topics, session.TournamentTopic(t.ID))
	}
	if s.TournamentID == nil {
		topics = append(topics, session.BroadcastTopic)
	}
	client := session.NewClient(conn, app.hub, s.Code, topics, app.logger)

	// Built after subscribing so no delta falls between snapshot and stream
	view := app.viewFor(s)
	snapshot := session.Event{Type: session.EventSnapshot, SessionCode: s.Code, Payload: view}
	if view.State != nil {
		snapshot.TournamentID = view.State.TournamentID
		snapshot.Version = view.State.Version
	}

	client.OnMessage(func(msg session.ClientMessage) {
		if msg.Type == "heartbeat" {
			if _, err := app.sessions.Heartbeat(s.Code); err != nil {
				app.logger.Debug("heartbeat for evicted display", "code", s.Code)
			}
		}
	})
	client.Serve(snapshot)
}

// tournamentSocket is the read-only feed for controllers and scoreboards.
func (app *application) tournamentSocket(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	if _, err := app.svc.Tournament(id); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	conn, err := app.upgrader().Upgrade(w, r, nil)
	if err != nil {
		app.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	client := session.NewClient(conn, app.hub, id.String(), []string{session.TournamentTopic(id)}, app.logger)
	// Tournaments are never unregistered, so the lookup above still holds
	t, _ := app.svc.Tournament(id)
	st := service.BuildState(t)
	client.Serve(session.Event{Type: session.EventSnapshot, TournamentID: id, Version: st.Version, Payload: st})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
