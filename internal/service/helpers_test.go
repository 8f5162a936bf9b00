package service

import (
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/AdamBeresnev/tourney-live/internal/bracket"
	"github.com/AdamBeresnev/tourney-live/internal/session"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []session.Event
}

func (p *recordingPublisher) Publish(ev session.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, ev := range p.events {
		if ev.Type == eventType {
			n++
		}
	}
	return n
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestService() (*TournamentService, *recordingPublisher, *testClock) {
	pub := &recordingPublisher{}
	clock := &testClock{now: time.Date(2026, 6, 1, 19, 0, 0, 0, time.UTC)}
	return NewTournamentService(WithPublisher(pub), WithClock(clock.Now)), pub, clock
}

func makeTeams(n int) []bracket.Team {
	faker := gofakeit.New(uint64(n))
	teams := make([]bracket.Team, n)
	for i := range teams {
		teams[i] = bracket.NewTeam(faker.Animal(), nil, faker.FirstName(), faker.FirstName())
	}
	return teams
}

func teamInputs(names ...string) []TeamInput {
	out := make([]TeamInput, len(names))
	for i, name := range names {
		out[i] = TeamInput{Name: name}
	}
	return out
}

func numberedInputs(n int) []TeamInput {
	faker := gofakeit.New(uint64(n) + 100)
	out := make([]TeamInput, n)
	for i := range out {
		out[i] = TeamInput{Name: faker.Color(), Player1: faker.FirstName(), Player2: faker.FirstName()}
	}
	return out
}

func createTournament(t *testing.T, s *TournamentService, format bracket.Format, opts bracket.Options, teams []TeamInput) *bracket.Tournament {
	t.Helper()
	tour, err := s.CreateTournament(t.Context(), CreateTournamentInput{Name: "Test Cup", Format: format, Options: opts, Teams: teams})
	require.NoError(t, err)
	return tour
}

func teamID(t *testing.T, tour *bracket.Tournament, name string) uuid.UUID {
	t.Helper()
	for _, team := range tour.Teams {
		if team.Name == name {
			return team.ID
		}
	}
	t.Fatalf("no team %q", name)
	return uuid.Nil
}

// findMatch returns the match in the given round of a side holding both teams.
func findMatch(t *testing.T, tour *bracket.Tournament, side bracket.BracketSide, round, order int) *bracket.Match {
	t.Helper()
	for _, m := range tour.Matches {
		if m.BracketSide == side && m.RoundNumber == round && m.MatchOrder == order {
			return m
		}
	}
	t.Fatalf("no match %s round %d order %d", side, round, order)
	return nil
}

// playOut completes ready matches with random winners until nothing is left.
func playOut(t *testing.T, s *TournamentService, id uuid.UUID, seed uint64) *bracket.Tournament {
	t.Helper()
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	for guard := 0; guard < 10_000; guard++ {
		tour, err := s.Tournament(id)
		require.NoError(t, err)
		if tour.Status == bracket.TournamentCompleted {
			return tour
		}

		var next *bracket.Match
		for _, m := range tour.MatchesInOrder() {
			if m.Playable() {
				next = m
				break
			}
		}
		require.NotNil(t, next, "tournament stuck with nothing playable")

		slot := 1 + rng.IntN(2)
		_, err = s.SetScore(id, next.ID, slot, 2+rng.IntN(5))
		require.NoError(t, err)
		_, err = s.SetScore(id, next.ID, 3-slot, rng.IntN(2))
		require.NoError(t, err)
		_, err = s.DetermineWinner(id, next.ID, 0)
		require.NoError(t, err)
	}
	t.Fatal("tournament did not finish")
	return nil
}
