package service

import (
	"github.com/AdamBeresnev/tourney-live/internal/bracket"
	"github.com/AdamBeresnev/tourney-live/internal/timer"
	"github.com/google/uuid"
)

type TeamView struct {
	ID      uuid.UUID       `json:"id"`
	Name    string          `json:"name"`
	Roster  *bracket.Roster `json:"roster,omitempty"`
	Score   int             `json:"score"`
	Winner  bool            `json:"winner"`
	Pending bool            `json:"pending"`
	Bye     bool            `json:"bye"`
}

type MatchView struct {
	ID          uuid.UUID           `json:"id"`
	Side        bracket.BracketSide `json:"side"`
	RoundNumber int                 `json:"round_number"`
	MatchOrder  int                 `json:"match_order"`
	State       bracket.MatchState  `json:"state"`
	Team1       TeamView            `json:"team_1"`
	Team2       TeamView            `json:"team_2"`
	IsBye       bool                `json:"is_bye"`
}

func newMatchView(t *bracket.Tournament, m *bracket.Match) *MatchView {
	if m == nil {
		return nil
	}
	return &MatchView{
		ID:          m.ID,
		Side:        m.BracketSide,
		RoundNumber: m.RoundNumber,
		MatchOrder:  m.MatchOrder,
		State:       m.State,
		Team1:       newTeamView(t, m, 1),
		Team2:       newTeamView(t, m, 2),
		IsBye:       m.IsBye,
	}
}

func newTeamView(t *bracket.Tournament, m *bracket.Match, slot int) TeamView {
	s := m.Slot(slot)
	v := TeamView{Score: m.Score(slot), Pending: s.Kind == bracket.SlotAwaiting, Bye: s.Kind == bracket.SlotBye}
	if id, ok := s.Team(); ok {
		team, _ := t.Team(id)
		v.ID = id
		v.Name = team.Name
		v.Roster = team.Roster
		v.Winner = m.IsWinner(slot)
	}
	return v
}

// Stats is the progress summary shown to controllers.
type Stats struct {
	Total        int  `json:"total"`
	Completed    int  `json:"completed"`
	Remaining    int  `json:"remaining"`
	HasCurrent   bool `json:"has_current"`
	CurrentRound int  `json:"current_round"`
}

// State is the full picture a display needs after connecting or reconnecting.
type State struct {
	TournamentID uuid.UUID                `json:"tournament_id"`
	Name         string                   `json:"name"`
	Format       bracket.Format           `json:"format"`
	Status       bracket.TournamentStatus `json:"status"`
	Phase        bracket.Phase            `json:"phase,omitempty"`
	Version      uint64                   `json:"version"`
	Current      *MatchView               `json:"current_match,omitempty"`
	UpNext       *MatchView               `json:"up_next,omitempty"`
	Timer        timer.State              `json:"timer"`
	Display      bracket.DisplayState     `json:"display"`
	Champion     *bracket.Team            `json:"champion,omitempty"`
	Rounds       []RoundView              `json:"rounds"`
	Standings    []bracket.Standing       `json:"standings,omitempty"`
	Stats        Stats                    `json:"stats"`
}

type RoundView struct {
	Index   int                 `json:"index"`
	Side    bracket.BracketSide `json:"side"`
	Number  int                 `json:"number"`
	Matches []*MatchView        `json:"matches"`
	// Team pairs replayed because no repeat-free Swiss pairing existed
	RepeatPairings [][2]uuid.UUID `json:"repeat_pairings,omitempty"`
}

// BuildState renders a committed tournament for displays. It only reads.
func BuildState(t *bracket.Tournament) State {
	st := State{
		TournamentID: t.ID,
		Name:         t.Name,
		Format:       t.Format,
		Status:       t.Status,
		Phase:        t.Phase,
		Version:      t.Version,
		Current:      newMatchView(t, t.CurrentMatch()),
		Timer:        t.Timer,
		Display:      t.Display,
		Stats:        ComputeStats(t),
	}
	if next := UpNext(t); next != nil {
		st.UpNext = newMatchView(t, next)
	}
	if t.ChampionID != nil {
		if team, ok := t.Team(*t.ChampionID); ok {
			st.Champion = &team
		}
	}
	for _, r := range t.Rounds {
		rv := RoundView{Index: r.Index, Side: r.Side, Number: r.Number}
		if len(r.RepeatPairings) > 0 {
			rv.RepeatPairings = append([][2]uuid.UUID(nil), r.RepeatPairings...)
		}
		for _, m := range t.RoundMatches(r) {
			rv.Matches = append(rv.Matches, newMatchView(t, m))
		}
		st.Rounds = append(st.Rounds, rv)
	}
	switch t.Format {
	case bracket.RoundRobin, bracket.RoundRobinPlayoffs, bracket.Swiss:
		st.Standings = standingsFor(t)
	}
	return st
}

func ComputeStats(t *bracket.Tournament) Stats {
	var s Stats
	for _, m := range t.Matches {
		if m.IsBye {
			continue
		}
		s.Total++
		if m.State == bracket.MatchCompleted {
			s.Completed++
		}
	}
	s.Remaining = s.Total - s.Completed
	if cur := t.CurrentMatch(); cur != nil {
		s.HasCurrent = true
		s.CurrentRound = cur.RoundNumber
	}
	return s
}

// UpNext suggests the match to play after the current one. It prefers a ready
// match involving a team from the last finished match so players can stay on,
// otherwise the first ready match in schedule order.
func UpNext(t *bracket.Tournament) *bracket.Match {
	var last *bracket.Match
	var ready []*bracket.Match
	for _, m := range t.MatchesInOrder() {
		switch {
		case m.State == bracket.MatchCompleted && !m.IsBye:
			last = m
		case m.State == bracket.MatchReady && (t.CurrentMatchID == nil || *t.CurrentMatchID != m.ID):
			ready = append(ready, m)
		}
	}
	if len(ready) == 0 {
		return nil
	}

	if last != nil {
		for _, m := range ready {
			for slot := 1; slot <= 2; slot++ {
				if id, ok := last.TeamInSlot(slot); ok && m.HasTeam(id) {
					return m
				}
			}
		}
	}
	return ready[0]
}
