package bracket

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneIsIndependent(t *testing.T) {
	a := NewTeam("Alpha", nil, "Ana", "Bo")
	b := NewTeam("Bravo", nil, "", "")
	tour := &Tournament{ID: uuid.New(), Teams: []Team{a, b}}
	r := tour.AddRound(WinnersSide, 1)
	m := &Match{ID: uuid.New(), Slots: [2]Slot{TeamSlot(a.ID), TeamSlot(b.ID)}, State: MatchReady}
	tour.AddMatch(r, m)

	c := tour.Clone()
	cm, err := c.Match(m.ID)
	require.NoError(t, err)
	require.NoError(t, cm.AddPoint(1))
	c.Teams[0].Roster.Player1 = "Changed"
	c.AddRound(WinnersSide, 2)

	assert.Equal(t, 0, m.Score1)
	assert.Equal(t, "Ana", tour.Teams[0].Roster.Player1)
	assert.Len(t, tour.Rounds, 1)
	assert.Nil(t, b.Roster, "a roster needs both players")
}

func TestRemoveRoundsAfter(t *testing.T) {
	tour := &Tournament{ID: uuid.New()}
	for n := 1; n <= 3; n++ {
		r := tour.AddRound(SwissSide, n)
		tour.AddMatch(r, &Match{ID: uuid.New(), State: MatchPending})
	}

	tour.RemoveRoundsAfter(1)
	assert.Len(t, tour.Rounds, 1)
	assert.Len(t, tour.Matches, 1)
	assert.Equal(t, 2, tour.AddRound(SwissSide, 2).Index)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("swiss")
	require.NoError(t, err)
	assert.Equal(t, Swiss, f)

	_, err = ParseFormat("ladder")
	assert.ErrorIs(t, err, ErrFormatConstraint)
}
