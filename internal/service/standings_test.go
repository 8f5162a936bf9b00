package service

import (
	"testing"

	"github.com/AdamBeresnev/tourney-live/internal/bracket"
	"github.com/AdamBeresnev/tourney-live/internal/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type standingsFixture struct {
	t     *bracket.Tournament
	round *bracket.Round
}

func newStandingsFixture(names ...string) *standingsFixture {
	t := &bracket.Tournament{ID: uuid.New(), Format: bracket.RoundRobin}
	for _, name := range names {
		t.Teams = append(t.Teams, bracket.NewTeam(name, nil, "", ""))
	}
	return &standingsFixture{t: t, round: t.AddRound(bracket.GroupSide, 1)}
}

func (f *standingsFixture) id(i int) uuid.UUID { return f.t.Teams[i].ID }

func (f *standingsFixture) result(home, away, s1, s2 int) {
	m := &bracket.Match{
		ID:     uuid.New(),
		Slots:  [2]bracket.Slot{bracket.TeamSlot(f.id(home)), bracket.TeamSlot(f.id(away))},
		Score1: s1,
		Score2: s2,
		State:  bracket.MatchCompleted,
	}
	if s1 > s2 {
		m.WinnerID = utils.Ptr(f.id(home))
	} else {
		m.WinnerID = utils.Ptr(f.id(away))
	}
	f.t.AddMatch(f.round, m)
}

func (f *standingsFixture) bye(team int) {
	m := &bracket.Match{ID: uuid.New(), Slots: [2]bracket.Slot{bracket.TeamSlot(f.id(team)), bracket.ByeSlot()}}
	m.AutoComplete(f.id(team))
	f.t.AddMatch(f.round, m)
}

func (f *standingsFixture) order() []uuid.UUID {
	var out []uuid.UUID
	for _, s := range standingsFor(f.t) {
		out = append(out, s.TeamID)
	}
	return out
}

func TestStandingsOrder(t *testing.T) {
	t.Run("wins first", func(t *testing.T) {
		f := newStandingsFixture("A", "B", "C")
		f.result(0, 1, 1, 2)
		f.result(1, 2, 1, 0)
		f.result(0, 2, 0, 9)
		assert.Equal(t, []uuid.UUID{f.id(1), f.id(2), f.id(0)}, f.order())
	})

	t.Run("point differential breaks equal wins", func(t *testing.T) {
		f := newStandingsFixture("A", "B", "C", "D")
		f.result(0, 2, 3, 2)
		f.result(1, 3, 6, 0)
		assert.Equal(t, f.id(1), f.order()[0])
		assert.Equal(t, f.id(0), f.order()[1])
	})

	t.Run("points scored breaks equal differential", func(t *testing.T) {
		f := newStandingsFixture("A", "B", "C", "D")
		f.result(0, 2, 2, 1)
		f.result(1, 3, 5, 4)
		assert.Equal(t, f.id(1), f.order()[0])
	})

	t.Run("seed order settles the rest", func(t *testing.T) {
		f := newStandingsFixture("A", "B", "C", "D")
		f.t.Teams[3].Seed = utils.Ptr(1)
		f.result(0, 1, 2, 1)
		f.result(3, 2, 2, 1)
		assert.Equal(t, []uuid.UUID{f.id(3), f.id(0), f.id(1), f.id(2)}, f.order())
	})
}

func TestStandingsCountByes(t *testing.T) {
	f := newStandingsFixture("A", "B", "C")
	f.result(0, 1, 3, 1)
	f.bye(2)
	f.t.Format = bracket.Swiss
	f.t.Rounds[0].Side = bracket.SwissSide
	for _, m := range f.t.Matches {
		m.BracketSide = bracket.SwissSide
	}

	rows := standingsFor(f.t)
	var c bracket.Standing
	for _, row := range rows {
		if row.TeamID == f.id(2) {
			c = row
		}
	}
	assert.Equal(t, 1, c.Wins)
	assert.Equal(t, 1, c.Byes)
	assert.Equal(t, 1, c.Played)
	assert.Zero(t, c.PointsFor)

	assert.Equal(t, f.id(0), rows[0].TeamID, "a real win with points beats a bye")
	assert.Equal(t, 2, rows[0].PointDiff())
}

func TestStandingsIgnoreUnfinished(t *testing.T) {
	f := newStandingsFixture("A", "B")
	m := &bracket.Match{
		ID:     uuid.New(),
		Slots:  [2]bracket.Slot{bracket.TeamSlot(f.id(0)), bracket.TeamSlot(f.id(1))},
		Score1: 4,
		State:  bracket.MatchInProgress,
	}
	f.t.AddMatch(f.round, m)

	for _, row := range standingsFor(f.t) {
		assert.Zero(t, row.Played)
		assert.Zero(t, row.PointsFor)
	}
}
