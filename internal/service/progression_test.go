package service

import (
	"testing"

	"github.com/AdamBeresnev/tourney-live/internal/bracket"
	"github.com/AdamBeresnev/tourney-live/internal/session"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func win(t *testing.T, s *TournamentService, id, matchID uuid.UUID, slot int) *bracket.Tournament {
	t.Helper()
	_, err := s.SetScore(id, matchID, slot, 3)
	require.NoError(t, err)
	tour, err := s.DetermineWinner(id, matchID, 0)
	require.NoError(t, err)
	return tour
}

func TestSingleEliminationFourTeams(t *testing.T) {
	s, pub, _ := newTestService()
	tour := createTournament(t, s, bracket.SingleElimination, bracket.Options{}, teamInputs("Alpha", "Bravo", "Charlie", "Delta"))
	alpha, bravo := teamID(t, tour, "Alpha"), teamID(t, tour, "Bravo")

	semi1 := findMatch(t, tour, bracket.WinnersSide, 1, 1)
	semi2 := findMatch(t, tour, bracket.WinnersSide, 1, 2)
	final := findMatch(t, tour, bracket.WinnersSide, 2, 1)

	require.NotNil(t, tour.CurrentMatchID)
	assert.Equal(t, semi1.ID, *tour.CurrentMatchID, "first ready match is proposed")
	assert.Equal(t, bracket.TournamentSetup, tour.Status)

	tour = win(t, s, tour.ID, semi1.ID, 1)
	assert.Equal(t, bracket.TournamentInProgress, tour.Status)
	assert.Equal(t, semi2.ID, *tour.CurrentMatchID, "current moves on after completion")
	assert.Equal(t, bracket.MatchPending, tour.Matches[final.ID].State)
	assert.Equal(t, alpha, *tour.Matches[final.ID].Slots[0].TeamID)

	tour = win(t, s, tour.ID, semi2.ID, 1)
	assert.Equal(t, bracket.MatchReady, tour.Matches[final.ID].State)
	assert.Equal(t, bravo, *tour.Matches[final.ID].Slots[1].TeamID)

	tour = win(t, s, tour.ID, final.ID, 2)
	assert.Equal(t, bracket.TournamentCompleted, tour.Status)
	require.NotNil(t, tour.ChampionID)
	assert.Equal(t, bravo, *tour.ChampionID)
	assert.Nil(t, tour.CurrentMatchID)
	assert.Equal(t, 1, pub.count(session.EventTournamentCompleted))
}

func TestByeAdvancesTopSeed(t *testing.T) {
	s, _, _ := newTestService()
	tour := createTournament(t, s, bracket.SingleElimination, bracket.Options{}, teamInputs("A", "B", "C", "D", "E"))

	opener := findMatch(t, tour, bracket.WinnersSide, 1, 1)
	assert.Equal(t, teamID(t, tour, "D"), *opener.Slots[0].TeamID)
	assert.Equal(t, teamID(t, tour, "E"), *opener.Slots[1].TeamID)

	tour = win(t, s, tour.ID, opener.ID, 2)
	next := findMatch(t, tour, bracket.WinnersSide, 2, 1)
	assert.Equal(t, bracket.MatchReady, next.State)
	assert.Equal(t, teamID(t, tour, "A"), *next.Slots[0].TeamID)
	assert.Equal(t, teamID(t, tour, "E"), *next.Slots[1].TeamID)

	stats := ComputeStats(tour)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 1, stats.Completed)
}

func TestTiedScoreNeedsForce(t *testing.T) {
	s, _, _ := newTestService()
	tour := createTournament(t, s, bracket.SingleElimination, bracket.Options{}, teamInputs("A", "B"))
	m := findMatch(t, tour, bracket.WinnersSide, 1, 1)

	_, err := s.SetScore(tour.ID, m.ID, 1, 2)
	require.NoError(t, err)
	_, err = s.SetScore(tour.ID, m.ID, 2, 2)
	require.NoError(t, err)

	_, err = s.DetermineWinner(tour.ID, m.ID, 0)
	require.ErrorIs(t, err, bracket.ErrTiedScore)
	assert.Equal(t, "TiedScoreError", bracket.ErrorKind(err))

	tour, err = s.DetermineWinner(tour.ID, m.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, teamID(t, tour, "B"), *tour.ChampionID)
}

func TestCompleteRejectsOutsider(t *testing.T) {
	s, _, _ := newTestService()
	tour := createTournament(t, s, bracket.SingleElimination, bracket.Options{}, teamInputs("A", "B", "C", "D"))
	m := findMatch(t, tour, bracket.WinnersSide, 1, 1)

	_, err := s.CompleteMatch(tour.ID, m.ID, teamID(t, tour, "B"))
	assert.ErrorIs(t, err, bracket.ErrInvalidWinner)

	final := findMatch(t, tour, bracket.WinnersSide, 2, 1)
	_, err = s.SetScore(tour.ID, final.ID, 1, 1)
	assert.ErrorIs(t, err, bracket.ErrMatchNotReady)
}

func TestResetWithPlayedDependent(t *testing.T) {
	s, pub, _ := newTestService()
	tour := createTournament(t, s, bracket.SingleElimination, bracket.Options{}, teamInputs("A", "B", "C", "D"))
	semi1 := findMatch(t, tour, bracket.WinnersSide, 1, 1)
	semi2 := findMatch(t, tour, bracket.WinnersSide, 1, 2)
	final := findMatch(t, tour, bracket.WinnersSide, 2, 1)

	win(t, s, tour.ID, semi1.ID, 1)
	win(t, s, tour.ID, semi2.ID, 2)
	tour = win(t, s, tour.ID, final.ID, 1)
	require.Equal(t, bracket.TournamentCompleted, tour.Status)

	_, err := s.ResetMatch(tour.ID, semi1.ID)
	require.ErrorIs(t, err, bracket.ErrDependencyConflict)

	tour, err = s.ResetMatch(tour.ID, final.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.TournamentInProgress, tour.Status)
	assert.Nil(t, tour.ChampionID)
	assert.Equal(t, bracket.MatchReady, tour.Matches[final.ID].State)

	tour, err = s.ResetMatch(tour.ID, semi1.ID)
	require.NoError(t, err)
	f := tour.Matches[final.ID]
	assert.Equal(t, bracket.MatchPending, f.State)
	assert.True(t, f.Slots[0].Awaits(semi1.ID, bracket.OutcomeWinner))
	assert.Equal(t, teamID(t, tour, "C"), *f.Slots[1].TeamID, "other semi result stays")
	assert.Equal(t, 2, pub.count(session.EventMatchReset))

	// Re-completing with the other team sends the new winner on
	tour = win(t, s, tour.ID, semi1.ID, 2)
	assert.Equal(t, teamID(t, tour, "D"), *tour.Matches[final.ID].Slots[0].TeamID)
}

func TestResetRefusesStartedDependent(t *testing.T) {
	s, _, _ := newTestService()
	tour := createTournament(t, s, bracket.SingleElimination, bracket.Options{}, teamInputs("A", "B", "C", "D"))
	semi1 := findMatch(t, tour, bracket.WinnersSide, 1, 1)
	semi2 := findMatch(t, tour, bracket.WinnersSide, 1, 2)
	final := findMatch(t, tour, bracket.WinnersSide, 2, 1)

	win(t, s, tour.ID, semi1.ID, 1)
	win(t, s, tour.ID, semi2.ID, 1)
	_, err := s.AddPoint(tour.ID, final.ID, 1)
	require.NoError(t, err)

	_, err = s.ResetMatch(tour.ID, semi2.ID)
	assert.ErrorIs(t, err, bracket.ErrDependencyConflict)

	_, err = s.ResetMatch(tour.ID, findMatch(t, tour, bracket.WinnersSide, 1, 1).ID)
	assert.ErrorIs(t, err, bracket.ErrDependencyConflict)
}

func TestResetOfUnplayedMatch(t *testing.T) {
	s, _, _ := newTestService()
	tour := createTournament(t, s, bracket.SingleElimination, bracket.Options{}, teamInputs("A", "B"))
	m := findMatch(t, tour, bracket.WinnersSide, 1, 1)

	_, err := s.ResetMatch(tour.ID, m.ID)
	assert.ErrorIs(t, err, bracket.ErrResetNotAllowed)

	_, err = s.AddPoint(tour.ID, m.ID, 2)
	require.NoError(t, err)
	tour, err = s.ResetMatch(tour.ID, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, tour.Matches[m.ID].Score2)
	assert.Equal(t, bracket.MatchReady, tour.Matches[m.ID].State)
}

func TestDoubleEliminationPlayOut(t *testing.T) {
	for _, n := range []int{2, 3, 4, 5, 6, 8, 11, 16} {
		s, _, _ := newTestService()
		tour := createTournament(t, s, bracket.DoubleElimination, bracket.Options{}, numberedInputs(n))
		tour = playOut(t, s, tour.ID, uint64(n))

		losses := make(map[uuid.UUID]int)
		for _, m := range tour.Matches {
			if loser := m.LoserID(); loser != nil {
				losses[*loser]++
			}
		}
		for _, team := range tour.Teams {
			assert.LessOrEqual(t, losses[team.ID], 2, "%d teams: %s lost too often", n, team.Name)
		}
		require.NotNil(t, tour.ChampionID)
		assert.LessOrEqual(t, losses[*tour.ChampionID], 1)

		eliminated := 0
		for _, team := range tour.Teams {
			if team.ID != *tour.ChampionID && losses[team.ID] >= 1 {
				eliminated++
			}
		}
		assert.Equal(t, n-1, eliminated, "everyone but the champion lost")
	}
}

func TestDoubleEliminationLoserDropsDown(t *testing.T) {
	s, _, _ := newTestService()
	tour := createTournament(t, s, bracket.DoubleElimination, bracket.Options{}, teamInputs("A", "B", "C", "D"))
	wb1 := findMatch(t, tour, bracket.WinnersSide, 1, 1)

	tour = win(t, s, tour.ID, wb1.ID, 1)
	lb := tour.Matches[*wb1.LoserNextMatchID]
	assert.Equal(t, bracket.LosersSide, lb.BracketSide)
	assert.True(t, lb.HasTeam(teamID(t, tour, "D")))

	// Resetting the winners match also pulls the loser back out
	tour, err := s.ResetMatch(tour.ID, wb1.ID)
	require.NoError(t, err)
	assert.False(t, tour.Matches[lb.ID].HasTeam(teamID(t, tour, "D")))
}

func TestPlayoffsGeneratedAfterGroup(t *testing.T) {
	s, pub, _ := newTestService()
	tour := createTournament(t, s, bracket.RoundRobinPlayoffs, bracket.Options{PlayoffTeams: 4}, numberedInputs(5))
	assert.Equal(t, bracket.PhaseGroup, tour.Phase)
	assert.Len(t, tour.Matches, 10)

	var group []*bracket.Match
	for _, m := range tour.MatchesInOrder() {
		group = append(group, m)
		if len(group) < 10 {
			tour = win(t, s, tour.ID, m.ID, 1)
		}
	}
	assert.Empty(t, tour.MatchesOn(bracket.PlayoffsSide), "no playoffs while the group is running")

	tour = win(t, s, tour.ID, group[9].ID, 1)
	assert.Equal(t, bracket.PhasePlayoffs, tour.Phase)
	playoffs := tour.MatchesOn(bracket.PlayoffsSide)
	require.Len(t, playoffs, 3)

	standings := ComputeStandings(tour, tour.MatchesOn(bracket.GroupSide))
	first := playoffs[0]
	assert.Equal(t, standings[0].TeamID, *first.Slots[0].TeamID, "group winner meets fourth")
	assert.Equal(t, standings[3].TeamID, *first.Slots[1].TeamID)
	assert.NotEqual(t, bracket.TournamentCompleted, tour.Status)

	// Unplayed playoffs are dropped when a group result changes
	tour, err := s.ResetMatch(tour.ID, group[9].ID)
	require.NoError(t, err)
	assert.Empty(t, tour.MatchesOn(bracket.PlayoffsSide))
	assert.Equal(t, bracket.PhaseGroup, tour.Phase)

	tour = win(t, s, tour.ID, group[9].ID, 2)
	playoffs = tour.MatchesOn(bracket.PlayoffsSide)
	require.Len(t, playoffs, 3)

	_, err = s.AddPoint(tour.ID, playoffs[0].ID, 1)
	require.NoError(t, err)
	_, err = s.ResetMatch(tour.ID, group[0].ID)
	assert.ErrorIs(t, err, bracket.ErrDependencyConflict)

	tour = playOut(t, s, tour.ID, 7)
	assert.Equal(t, bracket.TournamentCompleted, tour.Status)
	assert.Positive(t, pub.count(session.EventBracketUpdated))
}

func TestSwissEightTeamsNoRematches(t *testing.T) {
	s, pub, _ := newTestService()
	tour := createTournament(t, s, bracket.Swiss, bracket.Options{}, numberedInputs(8))
	tour = playOut(t, s, tour.ID, 42)

	require.Len(t, tour.RoundsOn(bracket.SwissSide), 3)
	seen := make(map[pairKey]bool)
	for _, m := range tour.Matches {
		a, _ := m.TeamInSlot(1)
		b, _ := m.TeamInSlot(2)
		k := keyOf(a, b)
		assert.False(t, seen[k], "rematch in round %d", m.RoundNumber)
		seen[k] = true
	}
	assert.Zero(t, pub.count(session.EventSwissFallback))

	standings := standingsFor(tour)
	for _, row := range standings {
		assert.Equal(t, 3, row.Played)
	}
	assert.Equal(t, standings[0].TeamID, *tour.ChampionID)
}

func TestSwissFallsBackToRematches(t *testing.T) {
	s, pub, _ := newTestService()
	tour := createTournament(t, s, bracket.Swiss, bracket.Options{SwissRounds: 4}, teamInputs("A", "B", "C", "D"))

	round1 := tour.RoundMatches(tour.Rounds[0])
	tour = playOut(t, s, tour.ID, 3)
	require.Len(t, tour.Rounds, 4)
	assert.Equal(t, 1, pub.count(session.EventSwissFallback))

	last := tour.Rounds[3]
	require.Len(t, last.RepeatPairings, 2, "four teams run out of fresh opponents after three rounds")

	// The oldest pairings are replayed first
	want := map[pairKey]bool{}
	for _, m := range round1 {
		a, _ := m.TeamInSlot(1)
		b, _ := m.TeamInSlot(2)
		want[keyOf(a, b)] = true
	}
	for _, p := range last.RepeatPairings {
		assert.True(t, want[keyOf(p[0], p[1])])
	}
	assert.Equal(t, bracket.TournamentCompleted, tour.Status)

	st := BuildState(tour)
	require.Len(t, st.Rounds, 4)
	assert.Empty(t, st.Rounds[2].RepeatPairings)
	assert.Equal(t, last.RepeatPairings, st.Rounds[3].RepeatPairings, "callers see which pairings were replayed")
}

func TestSwissResetDropsLaterRound(t *testing.T) {
	s, _, _ := newTestService()
	tour := createTournament(t, s, bracket.Swiss, bracket.Options{}, teamInputs("A", "B", "C", "D"))
	round1 := tour.RoundMatches(tour.Rounds[0])
	for _, m := range round1 {
		tour = win(t, s, tour.ID, m.ID, 1)
	}
	require.Len(t, tour.Rounds, 2)

	tour, err := s.ResetMatch(tour.ID, round1[0].ID)
	require.NoError(t, err)
	assert.Len(t, tour.Rounds, 1)
	assert.Len(t, tour.Matches, 2)
}

func TestSwapTeamsKeepsFeeds(t *testing.T) {
	s, _, _ := newTestService()
	tour := createTournament(t, s, bracket.SingleElimination, bracket.Options{}, teamInputs("A", "B", "C", "D", "E"))
	opener := findMatch(t, tour, bracket.WinnersSide, 1, 1)
	next := findMatch(t, tour, bracket.WinnersSide, 2, 1)

	// Swap while the feed is still pending is refused
	_, err := s.SwapTeams(tour.ID, next.ID)
	require.ErrorIs(t, err, bracket.ErrMatchNotReady)

	_, err = s.AddPoint(tour.ID, opener.ID, 1)
	require.NoError(t, err)
	tour, err = s.SwapTeams(tour.ID, opener.ID)
	require.NoError(t, err)
	m := tour.Matches[opener.ID]
	assert.Equal(t, teamID(t, tour, "E"), *m.Slots[0].TeamID)
	assert.Equal(t, 0, m.Score1)
	assert.Equal(t, 1, m.Score2)

	tour = win(t, s, tour.ID, opener.ID, 1)
	tour, err = s.SwapTeams(tour.ID, next.ID)
	require.NoError(t, err)
	assert.Equal(t, teamID(t, tour, "E"), *tour.Matches[next.ID].Slots[0].TeamID)
	assert.Equal(t, 1, *tour.Matches[opener.ID].WinnerNextSlot, "feeder follows its team")

	// Retraction finds the moved team through the rewritten feed
	tour, err = s.ResetMatch(tour.ID, opener.ID)
	require.NoError(t, err)
	n := tour.Matches[next.ID]
	assert.True(t, n.Slots[0].Awaits(opener.ID, bracket.OutcomeWinner))
	assert.Equal(t, teamID(t, tour, "A"), *n.Slots[1].TeamID)
}

func TestUpNextPrefersContinuity(t *testing.T) {
	s, _, _ := newTestService()
	tour := createTournament(t, s, bracket.RoundRobin, bracket.Options{}, teamInputs("A", "B", "C", "D"))

	first := tour.MatchesInOrder()[0]
	tour = win(t, s, tour.ID, first.ID, 1)

	next := UpNext(tour)
	require.NotNil(t, next)
	winner := *tour.Matches[first.ID].WinnerID
	loser := *tour.Matches[first.ID].LoserID()
	assert.True(t, next.HasTeam(winner) || next.HasTeam(loser))
	assert.NotEqual(t, *tour.CurrentMatchID, next.ID)
}

func TestSetCurrentMatch(t *testing.T) {
	s, pub, _ := newTestService()
	tour := createTournament(t, s, bracket.SingleElimination, bracket.Options{}, teamInputs("A", "B", "C", "D"))
	semi2 := findMatch(t, tour, bracket.WinnersSide, 1, 2)
	final := findMatch(t, tour, bracket.WinnersSide, 2, 1)

	tour, err := s.SetCurrentMatch(tour.ID, semi2.ID)
	require.NoError(t, err)
	assert.Equal(t, semi2.ID, *tour.CurrentMatchID)
	assert.Equal(t, 1, pub.count(session.EventCurrentMatch))

	_, err = s.SetCurrentMatch(tour.ID, final.ID)
	assert.ErrorIs(t, err, bracket.ErrMatchNotReady)
}
