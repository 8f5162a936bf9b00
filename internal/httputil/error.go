package httputil

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/AdamBeresnev/tourney-live/internal/bracket"
	"github.com/AdamBeresnev/tourney-live/internal/session"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

var statuses = []struct {
	err    error
	status int
}{
	{bracket.ErrTournamentNotFound, http.StatusNotFound},
	{bracket.ErrMatchNotFound, http.StatusNotFound},
	{bracket.ErrTeamNotFound, http.StatusNotFound},
	{session.ErrPairingNotFound, http.StatusNotFound},
	{session.ErrSessionNotFound, http.StatusNotFound},
	{bracket.ErrAlreadyCompleted, http.StatusConflict},
	{bracket.ErrDependencyConflict, http.StatusConflict},
	{bracket.ErrMatchNotReady, http.StatusConflict},
	{bracket.ErrResetNotAllowed, http.StatusConflict},
	{bracket.ErrTiedScore, http.StatusUnprocessableEntity},
	{bracket.ErrPairingExhausted, http.StatusUnprocessableEntity},
	{bracket.ErrFormatConstraint, http.StatusBadRequest},
	{bracket.ErrInvalidWinner, http.StatusBadRequest},
	{bracket.ErrInvalidScore, http.StatusBadRequest},
	{bracket.ErrInvalidSlot, http.StatusBadRequest},
	{bracket.ErrInvalidDisplayMode, http.StatusBadRequest},
	{bracket.ErrInvalidDuration, http.StatusBadRequest},
}

// StatusOf maps an engine error to its HTTP status; anything unknown is a 500.
func StatusOf(err error) int {
	for _, s := range statuses {
		if errors.Is(err, s.err) {
			return s.status
		}
	}
	return http.StatusInternalServerError
}

func kindOf(err error) string {
	if kind := bracket.ErrorKind(err); kind != "" {
		return kind
	}
	switch {
	case errors.Is(err, session.ErrPairingNotFound):
		return "PairingNotFoundError"
	case errors.Is(err, session.ErrSessionNotFound):
		return "SessionNotFoundError"
	}
	return "InternalError"
}

// WriteError reports err to a controller as {"error": {"kind", "message"}}.
// Internal errors are logged and their message withheld.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusOf(err)
	body := errorBody{Error: errorDetail{Kind: kindOf(err), Message: err.Error()}}

	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		body.Error.Message = http.StatusText(status)
	} else {
		slog.WarnContext(r.Context(), "request rejected", "path", r.URL.Path, "kind", body.Error.Kind, "error", err)
	}
	WriteJSON(w, status, body)
}

func InternalServerError(w http.ResponseWriter, msg string, err error) {
	slog.Error(msg, "error", err)
	WriteJSON(w, http.StatusInternalServerError, errorBody{Error: errorDetail{Kind: "InternalError", Message: "Internal Server Error"}})
}

func BadRequest(w http.ResponseWriter, msg string, err error) {
	if err != nil {
		slog.Warn("bad request", "message", msg, "error", err)
	} else {
		slog.Warn("bad request", "message", msg)
	}
	WriteJSON(w, http.StatusBadRequest, errorBody{Error: errorDetail{Kind: "BadRequest", Message: msg}})
}

func NotFound(w http.ResponseWriter, msg string, err error) {
	if err != nil {
		slog.Warn("not found", "message", msg, "error", err)
	} else {
		slog.Warn("not found", "message", msg)
	}
	WriteJSON(w, http.StatusNotFound, errorBody{Error: errorDetail{Kind: "NotFound", Message: msg}})
}
