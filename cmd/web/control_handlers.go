package main

import (
	"net/http"

	"github.com/google/uuid"
)

type scoreRequest struct {
	Slot  int `json:"slot"`
	Value int `json:"value"`
}

type pointRequest struct {
	Slot int `json:"slot"`
}

type determineWinnerRequest struct {
	// 1 or 2 settles a tie, 0 decides by score
	ForceSlot int `json:"force_slot,omitempty"`
}

type completeRequest struct {
	WinnerID uuid.UUID `json:"winner_id"`
}

type timerRequest struct {
	// 0 keeps the tournament default
	Seconds int `json:"seconds,omitempty"`
}

func (app *application) setScore(w http.ResponseWriter, r *http.Request) {
	id, matchID, ok := matchIDs(w, r)
	if !ok {
		return
	}
	var req scoreRequest
	if !decode(w, r, &req) {
		return
	}
	t, err := app.svc.SetScore(id, matchID, req.Slot, req.Value)
	respond(w, r, t, err)
}

func (app *application) addPoint(w http.ResponseWriter, r *http.Request) {
	id, matchID, ok := matchIDs(w, r)
	if !ok {
		return
	}
	var req pointRequest
	if !decode(w, r, &req) {
		return
	}
	t, err := app.svc.AddPoint(id, matchID, req.Slot)
	respond(w, r, t, err)
}

func (app *application) determineWinner(w http.ResponseWriter, r *http.Request) {
	id, matchID, ok := matchIDs(w, r)
	if !ok {
		return
	}
	var req determineWinnerRequest
	if !decode(w, r, &req) {
		return
	}
	t, err := app.svc.DetermineWinner(id, matchID, req.ForceSlot)
	respond(w, r, t, err)
}

func (app *application) completeMatch(w http.ResponseWriter, r *http.Request) {
	id, matchID, ok := matchIDs(w, r)
	if !ok {
		return
	}
	var req completeRequest
	if !decode(w, r, &req) {
		return
	}
	t, err := app.svc.CompleteMatch(id, matchID, req.WinnerID)
	respond(w, r, t, err)
}

func (app *application) resetMatch(w http.ResponseWriter, r *http.Request) {
	id, matchID, ok := matchIDs(w, r)
	if !ok {
		return
	}
	t, err := app.svc.ResetMatch(id, matchID)
	respond(w, r, t, err)
}

func (app *application) swapTeams(w http.ResponseWriter, r *http.Request) {
	id, matchID, ok := matchIDs(w, r)
	if !ok {
		return
	}
	t, err := app.svc.SwapTeams(id, matchID)
	respond(w, r, t, err)
}

func (app *application) setCurrentMatch(w http.ResponseWriter, r *http.Request) {
	id, matchID, ok := matchIDs(w, r)
	if !ok {
		return
	}
	t, err := app.svc.SetCurrentMatch(id, matchID)
	respond(w, r, t, err)
}

func (app *application) startTimer(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	var req timerRequest
	if !decode(w, r, &req) {
		return
	}
	t, err := app.svc.StartTimer(id, req.Seconds)
	respond(w, r, t, err)
}

func (app *application) pauseTimer(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	t, err := app.svc.PauseTimer(id)
	respond(w, r, t, err)
}

func (app *application) resumeTimer(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	t, err := app.svc.ResumeTimer(id)
	respond(w, r, t, err)
}

func (app *application) stopTimer(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	t, err := app.svc.StopTimer(id)
	respond(w, r, t, err)
}

func (app *application) setTimerDuration(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	var req timerRequest
	if !decode(w, r, &req) {
		return
	}
	t, err := app.svc.SetTimerDuration(id, req.Seconds)
	respond(w, r, t, err)
}
