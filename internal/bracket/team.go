package bracket

import (
	"github.com/AdamBeresnev/tourney-live/internal/utils"
	"github.com/google/uuid"
)

type Roster struct {
	Player1 string `json:"player_1"`
	Player2 string `json:"player_2"`
}

type Team struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Seed   *int      `json:"seed,omitempty"`
	Roster *Roster   `json:"roster,omitempty"`
}

// NewTeam sanitizes the display names. Both player names are needed for a roster.
func NewTeam(name string, seed *int, player1, player2 string) Team {
	t := Team{
		ID:   uuid.New(),
		Name: utils.Sanitize(name, utils.MaxTeamNameLen),
		Seed: seed,
	}

	p1 := utils.Sanitize(player1, utils.MaxPlayerNameLen)
	p2 := utils.Sanitize(player2, utils.MaxPlayerNameLen)
	if p1 != "" && p2 != "" {
		t.Roster = &Roster{Player1: p1, Player2: p2}
	}
	return t
}

func (t Team) clone() Team {
	c := t
	c.Seed = cloneInt(t.Seed)
	if t.Roster != nil {
		r := *t.Roster
		c.Roster = &r
	}
	return c
}
