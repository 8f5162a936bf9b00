package session

import "github.com/google/uuid"

const (
	EventSnapshot            = "snapshot"
	EventScoreUpdate         = "score_update"
	EventMatchCompleted      = "match_completed"
	EventMatchReset          = "match_reset"
	EventCurrentMatch        = "current_match_changed"
	EventBracketUpdated      = "bracket_updated"
	EventTournamentCompleted = "tournament_completed"
	EventTimerTick           = "timer_tick"
	EventTimerExpired        = "timer_expired"
	EventDisplayUpdate       = "display_update"
	EventSwissFallback       = "swiss_fallback"
	EventActiveTournament    = "active_tournament_changed"

	EventSessionRemoved         = "session_removed"
	EventControllerConnected    = "controller_connected"
	EventControllerDisconnected = "controller_disconnected"
	EventTVCommand              = "tv_command"
	EventRefresh                = "refresh"
)

// Event is one delta pushed to subscribers. Version is the tournament version
// the change produced; displays that see a gap re-fetch the full snapshot.
type Event struct {
	Type         string    `json:"type"`
	TournamentID uuid.UUID `json:"tournament_id"`
	SessionCode  string    `json:"session_code,omitempty"`
	Version      uint64    `json:"version,omitempty"`
	Payload      any       `json:"payload,omitempty"`
}

func TournamentTopic(id uuid.UUID) string {
	return "tournament:" + id.String()
}

func SessionTopic(code string) string {
	return "session:" + code
}

// BroadcastTopic reaches every connected display regardless of tournament.
const BroadcastTopic = "broadcast"

// Topic routes session-targeted events to that session only.
func (e Event) Topic() string {
	if e.SessionCode != "" {
		return SessionTopic(e.SessionCode)
	}
	if e.TournamentID == uuid.Nil {
		return BroadcastTopic
	}
	return TournamentTopic(e.TournamentID)
}
