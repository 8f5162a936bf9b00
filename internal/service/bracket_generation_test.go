package service

import (
	"fmt"
	"testing"

	"github.com/AdamBeresnev/tourney-live/internal/bracket"
	"github.com/AdamBeresnev/tourney-live/internal/utils"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRound1SeedOrder(t *testing.T) {
	testCases := []struct {
		name       string
		numEntries int
		expected   [][2]int
	}{
		{
			name:       "2 entries",
			numEntries: 2,
			expected:   [][2]int{{0, 1}},
		},
		{
			name:       "4 entries",
			numEntries: 4,
			expected:   [][2]int{{0, 3}, {1, 2}},
		},
		{
			name:       "8 entries",
			numEntries: 8,
			expected:   [][2]int{{0, 7}, {3, 4}, {1, 6}, {2, 5}},
		},
		{
			name:       "Non-power of 2 (7 entries)",
			numEntries: 7,
			expected:   [][2]int{{0, 7}, {3, 4}, {1, 6}, {2, 5}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			actual := generateRound1Pairs(tc.numEntries)
			assert.Equal(t, tc.expected, actual)
		})
	}
}

func TestCalcBracketSize(t *testing.T) {
	for in, want := range map[int]int{0: 0, 1: 1, 2: 2, 3: 4, 5: 8, 8: 8, 9: 16, 33: 64} {
		assert.Equal(t, want, calcBracketSize(in), "count %d", in)
	}
}

func TestFormatConstraints(t *testing.T) {
	testCases := []struct {
		name   string
		format bracket.Format
		teams  int
		opts   bracket.Options
	}{
		{name: "single elimination with one team", format: bracket.SingleElimination, teams: 1},
		{name: "double elimination with no teams", format: bracket.DoubleElimination, teams: 0},
		{name: "round robin with two teams", format: bracket.RoundRobin, teams: 2},
		{name: "swiss with two teams", format: bracket.Swiss, teams: 2},
		{name: "playoff bigger than field", format: bracket.RoundRobinPlayoffs, teams: 5, opts: bracket.Options{PlayoffTeams: 6}},
		{name: "default playoff bigger than field", format: bracket.RoundRobinPlayoffs, teams: 3},
		{name: "unknown format", format: bracket.Format("ladder"), teams: 8},
		{name: "three legs", format: bracket.RoundRobin, teams: 4, opts: bracket.Options{Legs: 3}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := GenerateBracket(uuid.New(), makeTeams(tc.teams), tc.format, tc.opts)
			assert.ErrorIs(t, err, bracket.ErrFormatConstraint)
		})
	}
}

func TestSingleEliminationShape(t *testing.T) {
	for n := 2; n <= 33; n++ {
		t.Run(fmt.Sprintf("%d teams", n), func(t *testing.T) {
			s, err := GenerateBracket(uuid.New(), makeTeams(n), bracket.SingleElimination, bracket.Options{})
			require.NoError(t, err)

			assert.Len(t, s.Matches, n-1, "one match per eliminated team")

			finals := 0
			for _, m := range s.Matches {
				assert.Nil(t, m.LoserNextMatchID)
				if m.WinnerNextMatchID == nil {
					finals++
				}
				for _, slot := range m.Slots {
					assert.NotEqual(t, bracket.SlotBye, slot.Kind, "byes never get a match in a knockout")
				}
			}
			assert.Equal(t, 1, finals)
		})
	}
}

func TestSingleEliminationByesGoToTopSeeds(t *testing.T) {
	teams := makeTeams(5)
	s, err := GenerateBracket(uuid.New(), teams, bracket.SingleElimination, bracket.Options{})
	require.NoError(t, err)

	tour := &bracket.Tournament{Rounds: s.Rounds, Matches: s.Matches}
	round1 := tour.RoundMatches(s.Rounds[0])
	require.Len(t, round1, 1, "only seeds 4 and 5 play in round one")
	assert.Equal(t, teams[3].ID, *round1[0].Slots[0].TeamID)
	assert.Equal(t, teams[4].ID, *round1[0].Slots[1].TeamID)

	round2 := tour.RoundMatches(s.Rounds[1])
	require.Len(t, round2, 2)
	assert.Equal(t, teams[0].ID, *round2[0].Slots[0].TeamID, "seed 1 is through on a bye")
	assert.True(t, round2[0].Slots[1].Awaits(round1[0].ID, bracket.OutcomeWinner))
	assert.Equal(t, bracket.MatchReady, round2[1].State, "seeds 2 and 3 both had byes")
}

func TestSeedsOverrideRegistrationOrder(t *testing.T) {
	teams := makeTeams(4)
	teams[3].Seed = utils.Ptr(1)
	teams[0].Seed = utils.Ptr(2)

	ordered := seedOrder(teams)
	assert.Equal(t, []uuid.UUID{teams[3].ID, teams[0].ID, teams[1].ID, teams[2].ID},
		[]uuid.UUID{ordered[0].ID, ordered[1].ID, ordered[2].ID, ordered[3].ID})
}

func TestDoubleEliminationFeeds(t *testing.T) {
	for n := 2; n <= 32; n++ {
		t.Run(fmt.Sprintf("%d teams", n), func(t *testing.T) {
			s, err := GenerateBracket(uuid.New(), makeTeams(n), bracket.DoubleElimination, bracket.Options{})
			require.NoError(t, err)

			var grandFinal *bracket.Match
			for _, m := range s.Matches {
				switch m.BracketSide {
				case bracket.WinnersSide:
					assert.NotNil(t, m.WinnerNextMatchID, "winners matches always feed on")
					assert.NotNil(t, m.LoserNextMatchID, "winners losers always drop down")
				case bracket.LosersSide:
					assert.Nil(t, m.LoserNextMatchID, "a second loss eliminates")
					assert.NotNil(t, m.WinnerNextMatchID)
				case bracket.FinalsSide:
					grandFinal = m
				}
			}

			require.NotNil(t, grandFinal)
			for _, slot := range grandFinal.Slots {
				assert.Equal(t, bracket.SlotAwaiting, slot.Kind, "both finalists come from earlier matches")
			}
		})
	}
}

func TestRoundRobinCoversEveryPairingOnce(t *testing.T) {
	for n := 3; n <= 12; n++ {
		t.Run(fmt.Sprintf("%d teams", n), func(t *testing.T) {
			teams := makeTeams(n)
			s, err := GenerateBracket(uuid.New(), teams, bracket.RoundRobin, bracket.Options{})
			require.NoError(t, err)
			assert.Len(t, s.Matches, n*(n-1)/2)

			seen := make(map[pairKey]int)
			tour := &bracket.Tournament{Rounds: s.Rounds, Matches: s.Matches}
			for _, r := range s.Rounds {
				inRound := make(map[uuid.UUID]bool)
				for _, m := range tour.RoundMatches(r) {
					a, b := *m.Slots[0].TeamID, *m.Slots[1].TeamID
					assert.False(t, inRound[a] || inRound[b], "team plays twice in round %d", r.Number)
					inRound[a], inRound[b] = true, true
					seen[keyOf(a, b)]++
					assert.Equal(t, bracket.MatchReady, m.State)
				}
			}
			assert.Len(t, seen, n*(n-1)/2)
			for _, count := range seen {
				assert.Equal(t, 1, count)
			}
		})
	}
}

func TestRoundRobinTwoLegs(t *testing.T) {
	s, err := GenerateBracket(uuid.New(), makeTeams(4), bracket.RoundRobin, bracket.Options{Legs: 2})
	require.NoError(t, err)
	assert.Len(t, s.Matches, 12)
	assert.Len(t, s.Rounds, 6)
}

func TestSwissFirstRound(t *testing.T) {
	teams := makeTeams(7)
	s, err := GenerateBracket(uuid.New(), teams, bracket.Swiss, bracket.Options{})
	require.NoError(t, err)
	require.Len(t, s.Rounds, 1)

	tour := &bracket.Tournament{Rounds: s.Rounds, Matches: s.Matches}
	matches := tour.RoundMatches(s.Rounds[0])
	require.Len(t, matches, 4)
	for i := 0; i < 3; i++ {
		assert.Equal(t, teams[i].ID, *matches[i].Slots[0].TeamID)
		assert.Equal(t, teams[i+3].ID, *matches[i].Slots[1].TeamID)
	}

	bye := matches[3]
	assert.True(t, bye.IsBye)
	assert.Equal(t, bracket.MatchCompleted, bye.State)
	assert.Equal(t, teams[6].ID, *bye.WinnerID, "lowest seed sits out")
	assert.Equal(t, 3, SwissRounds(bracket.Options{}, 7))
}

// shape strips ids so two generations can be compared
type matchShape struct {
	Side   bracket.BracketSide
	Round  int
	Order  int
	Kinds  [2]bracket.SlotKind
	Teams  [2]string
	Winner bool
	Loser  bool
}

func shapeOf(s *Schedule, names map[uuid.UUID]string) []matchShape {
	tour := &bracket.Tournament{Rounds: s.Rounds, Matches: s.Matches}
	var out []matchShape
	for _, m := range tour.MatchesInOrder() {
		sh := matchShape{Side: m.BracketSide, Round: m.RoundNumber, Order: m.MatchOrder,
			Winner: m.WinnerNextMatchID != nil, Loser: m.LoserNextMatchID != nil}
		for i, slot := range m.Slots {
			sh.Kinds[i] = slot.Kind
			if slot.TeamID != nil {
				sh.Teams[i] = names[*slot.TeamID]
			}
		}
		out = append(out, sh)
	}
	return out
}

func TestGenerationIsDeterministic(t *testing.T) {
	teams := makeTeams(11)
	names := make(map[uuid.UUID]string)
	for i, team := range teams {
		names[team.ID] = fmt.Sprintf("seed-%d", i+1)
	}

	for _, format := range []bracket.Format{bracket.SingleElimination, bracket.DoubleElimination, bracket.RoundRobin, bracket.Swiss} {
		first, err := GenerateBracket(uuid.New(), teams, format, bracket.Options{})
		require.NoError(t, err)
		second, err := GenerateBracket(uuid.New(), teams, format, bracket.Options{})
		require.NoError(t, err)

		if diff := cmp.Diff(shapeOf(first, names), shapeOf(second, names)); diff != "" {
			t.Errorf("%s differs between runs (-first +second):\n%s", format, diff)
		}
	}
}

func TestVerifyAcyclicRejectsBackwardFeed(t *testing.T) {
	s, err := GenerateBracket(uuid.New(), makeTeams(4), bracket.SingleElimination, bracket.Options{})
	require.NoError(t, err)

	tour := &bracket.Tournament{Rounds: s.Rounds, Matches: s.Matches}
	final := tour.RoundMatches(s.Rounds[1])[0]
	semi := tour.RoundMatches(s.Rounds[0])[0]
	final.WinnerNextMatchID = &semi.ID
	final.WinnerNextSlot = utils.Ptr(1)

	assert.ErrorIs(t, verifyAcyclic(tour), bracket.ErrCycleDetected)
}
