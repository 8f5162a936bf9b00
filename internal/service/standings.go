package service

import (
	"sort"

	"github.com/AdamBeresnev/tourney-live/internal/bracket"
	"github.com/google/uuid"
)

// ComputeStandings ranks every team of the tournament over the given matches:
// wins, then point differential, then points scored, then seed order.
// A bye counts as a win with no points.
func ComputeStandings(t *bracket.Tournament, matches []*bracket.Match) []bracket.Standing {
	rows := make(map[uuid.UUID]*bracket.Standing, len(t.Teams))
	order := make(map[uuid.UUID]int, len(t.Teams))
	for i, team := range seedOrder(t.Teams) {
		rows[team.ID] = &bracket.Standing{TeamID: team.ID, TeamName: team.Name}
		order[team.ID] = i
	}

	for _, m := range matches {
		if m.State != bracket.MatchCompleted || m.WinnerID == nil {
			continue
		}
		if m.IsBye {
			if row, ok := rows[*m.WinnerID]; ok {
				row.Played++
				row.Wins++
				row.Byes++
			}
			continue
		}

		for slot := 1; slot <= 2; slot++ {
			id, ok := m.TeamInSlot(slot)
			if !ok {
				continue
			}
			row, ok := rows[id]
			if !ok {
				continue
			}
			row.Played++
			row.PointsFor += m.Score(slot)
			row.PointsAgainst += m.Score(3 - slot)
			if m.IsWinner(slot) {
				row.Wins++
			} else {
				row.Losses++
			}
		}
	}

	out := make([]bracket.Standing, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Wins != b.Wins {
			return a.Wins > b.Wins
		}
		if a.PointDiff() != b.PointDiff() {
			return a.PointDiff() > b.PointDiff()
		}
		if a.PointsFor != b.PointsFor {
			return a.PointsFor > b.PointsFor
		}
		return order[a.TeamID] < order[b.TeamID]
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// standingsFor picks the matches that count for the table of this format.
func standingsFor(t *bracket.Tournament) []bracket.Standing {
	switch t.Format {
	case bracket.Swiss:
		return ComputeStandings(t, t.MatchesOn(bracket.SwissSide))
	case bracket.RoundRobin, bracket.RoundRobinPlayoffs:
		return ComputeStandings(t, t.MatchesOn(bracket.GroupSide))
	}
	return ComputeStandings(t, t.MatchesInOrder())
}
