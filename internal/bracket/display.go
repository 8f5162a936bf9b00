package bracket

import (
	"fmt"

	"github.com/google/uuid"
)

type DisplayMode string

const (
	ModeWaiting    DisplayMode = "waiting"
	ModeScoreboard DisplayMode = "scoreboard"
	ModeBracket    DisplayMode = "bracket"
	ModeWinner     DisplayMode = "winner"
	ModeMessage    DisplayMode = "message"
)

func ParseDisplayMode(s string) (DisplayMode, error) {
	switch m := DisplayMode(s); m {
	case ModeWaiting, ModeScoreboard, ModeBracket, ModeWinner, ModeMessage:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDisplayMode, s)
}

// DisplayState is what every display of a tournament shows unless a display
// has its own override.
type DisplayState struct {
	Mode         DisplayMode `json:"mode"`
	Message      string      `json:"message,omitempty"`
	WinnerTeamID *uuid.UUID  `json:"winner_team_id,omitempty"`
	ShowPlayers  bool        `json:"show_players"`
}
