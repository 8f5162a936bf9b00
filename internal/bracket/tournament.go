package bracket

import (
	"fmt"
	"sort"
	"time"

	"github.com/AdamBeresnev/tourney-live/internal/timer"
	"github.com/google/uuid"
)

type TournamentStatus string

const (
	TournamentSetup      TournamentStatus = "setup"
	TournamentInProgress TournamentStatus = "in_progress"
	TournamentCompleted  TournamentStatus = "completed"
)

type Format string

const (
	SingleElimination  Format = "single_elimination"
	DoubleElimination  Format = "double_elimination"
	RoundRobin         Format = "round_robin"
	RoundRobinPlayoffs Format = "round_robin_playoffs"
	Swiss              Format = "swiss"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case SingleElimination, DoubleElimination, RoundRobin, RoundRobinPlayoffs, Swiss:
		return f, nil
	}
	return "", fmt.Errorf("%w: unknown format %q", ErrFormatConstraint, s)
}

type Phase string

const (
	PhaseNone     Phase = ""
	PhaseGroup    Phase = "group"
	PhasePlayoffs Phase = "playoffs"
)

type Options struct {
	// Informational, shown on displays
	BestOf int `json:"best_of,omitempty" yaml:"best_of"`
	// Top K teams that advance from round robin
	PlayoffTeams int `json:"playoff_teams,omitempty" yaml:"playoff_teams"`
	SwissRounds  int `json:"swiss_rounds,omitempty" yaml:"swiss_rounds"`
	// 2 plays every round robin pairing twice with sides swapped
	Legs int `json:"legs,omitempty" yaml:"legs"`
}

type Round struct {
	Index          int            `json:"index"`
	Side           BracketSide    `json:"side"`
	Number         int            `json:"number"`
	MatchIDs       []uuid.UUID    `json:"match_ids"`
	RepeatPairings [][2]uuid.UUID `json:"repeat_pairings,omitempty"`
}

type Tournament struct {
	ID      uuid.UUID        `json:"id"`
	Name    string           `json:"name"`
	Format  Format           `json:"format"`
	Options Options          `json:"options"`
	Status  TournamentStatus `json:"status"`
	Phase   Phase            `json:"phase,omitempty"`

	Teams   []Team               `json:"teams"`
	Rounds  []*Round             `json:"rounds"`
	Matches map[uuid.UUID]*Match `json:"matches"`

	CurrentMatchID *uuid.UUID `json:"current_match_id,omitempty"`
	ChampionID     *uuid.UUID `json:"champion_id,omitempty"`

	TimerDefault time.Duration `json:"-"`
	Timer        timer.State   `json:"timer"`
	Display      DisplayState  `json:"display"`

	// Bumped on every committed change
	Version   uint64    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
}

func (t *Tournament) Match(id uuid.UUID) (*Match, error) {
	m, ok := t.Matches[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMatchNotFound, id)
	}
	return m, nil
}

func (t *Tournament) Team(id uuid.UUID) (Team, bool) {
	for _, team := range t.Teams {
		if team.ID == id {
			return team, true
		}
	}
	return Team{}, false
}

func (t *Tournament) TeamName(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	team, _ := t.Team(*id)
	return team.Name
}

func (t *Tournament) CurrentMatch() *Match {
	if t.CurrentMatchID == nil {
		return nil
	}
	return t.Matches[*t.CurrentMatchID]
}

// AddRound appends a round at the end of the schedule.
func (t *Tournament) AddRound(side BracketSide, number int) *Round {
	r := &Round{Index: len(t.Rounds) + 1, Side: side, Number: number}
	t.Rounds = append(t.Rounds, r)
	return r
}

// AddMatch places m at the end of round r.
func (t *Tournament) AddMatch(r *Round, m *Match) {
	if t.Matches == nil {
		t.Matches = make(map[uuid.UUID]*Match)
	}
	m.TournamentID = t.ID
	m.RoundIndex = r.Index
	m.BracketSide = r.Side
	m.RoundNumber = r.Number
	m.MatchOrder = len(r.MatchIDs) + 1
	r.MatchIDs = append(r.MatchIDs, m.ID)
	t.Matches[m.ID] = m
}

// RemoveRoundsAfter drops every round with an index greater than idx.
func (t *Tournament) RemoveRoundsAfter(idx int) {
	kept := t.Rounds[:0]
	for _, r := range t.Rounds {
		if r.Index <= idx {
			kept = append(kept, r)
			continue
		}
		for _, id := range r.MatchIDs {
			delete(t.Matches, id)
		}
	}
	t.Rounds = kept
}

func (t *Tournament) RoundsOn(side BracketSide) []*Round {
	var out []*Round
	for _, r := range t.Rounds {
		if r.Side == side {
			out = append(out, r)
		}
	}
	return out
}

func (t *Tournament) RoundMatches(r *Round) []*Match {
	out := make([]*Match, 0, len(r.MatchIDs))
	for _, id := range r.MatchIDs {
		if m, ok := t.Matches[id]; ok {
			out = append(out, m)
		}
	}
	return out
}

// MatchesInOrder returns every match in schedule order.
func (t *Tournament) MatchesInOrder() []*Match {
	out := make([]*Match, 0, len(t.Matches))
	for _, m := range t.Matches {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RoundIndex != out[j].RoundIndex {
			return out[i].RoundIndex < out[j].RoundIndex
		}
		return out[i].MatchOrder < out[j].MatchOrder
	})
	return out
}

func (t *Tournament) MatchesOn(side BracketSide) []*Match {
	var out []*Match
	for _, m := range t.MatchesInOrder() {
		if m.BracketSide == side {
			out = append(out, m)
		}
	}
	return out
}

func (t *Tournament) AllCompleted(matches []*Match) bool {
	for _, m := range matches {
		if m.State != MatchCompleted {
			return false
		}
	}
	return true
}

// Clone is a deep copy; mutations are applied to clones and swapped in whole.
func (t *Tournament) Clone() *Tournament {
	c := *t
	c.Teams = make([]Team, len(t.Teams))
	for i, team := range t.Teams {
		c.Teams[i] = team.clone()
	}

	c.Rounds = make([]*Round, len(t.Rounds))
	for i, r := range t.Rounds {
		rc := *r
		rc.MatchIDs = append([]uuid.UUID(nil), r.MatchIDs...)
		rc.RepeatPairings = append([][2]uuid.UUID(nil), r.RepeatPairings...)
		c.Rounds[i] = &rc
	}

	c.Matches = make(map[uuid.UUID]*Match, len(t.Matches))
	for id, m := range t.Matches {
		c.Matches[id] = m.Clone()
	}

	c.CurrentMatchID = cloneID(t.CurrentMatchID)
	c.ChampionID = cloneID(t.ChampionID)
	c.Display.WinnerTeamID = cloneID(t.Display.WinnerTeamID)
	return &c
}
