package bracket

import "github.com/google/uuid"

type Standing struct {
	Rank          int       `json:"rank"`
	TeamID        uuid.UUID `json:"team_id"`
	TeamName      string    `json:"team_name"`
	Played        int       `json:"played"`
	Wins          int       `json:"wins"`
	Losses        int       `json:"losses"`
	Byes          int       `json:"byes"`
	PointsFor     int       `json:"points_for"`
	PointsAgainst int       `json:"points_against"`
}

func (s Standing) PointDiff() int {
	return s.PointsFor - s.PointsAgainst
}
