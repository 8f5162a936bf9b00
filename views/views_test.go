package views

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/AdamBeresnev/tourney-live/internal/bracket"
	"github.com/AdamBeresnev/tourney-live/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doubleEliminationState(t *testing.T) service.State {
	t.Helper()
	s := service.NewTournamentService()
	tour, err := s.CreateTournament(context.Background(), service.CreateTournamentInput{
		Name:   "<b>Cup</b>",
		Format: bracket.DoubleElimination,
		Teams:  []service.TeamInput{{Name: "Lions"}, {Name: "Tigers"}, {Name: "Bears"}, {Name: "Wolves"}},
	})
	require.NoError(t, err)
	st, err := s.State(tour.ID)
	require.NoError(t, err)
	return st
}

func TestPrepareBracketData(t *testing.T) {
	data := PrepareBracketData(doubleEliminationState(t))

	var sides []bracket.BracketSide
	for _, s := range data.Sections {
		sides = append(sides, s.Side)
		for i, r := range s.Rounds {
			if i > 0 {
				assert.Less(t, s.Rounds[i-1].Number, r.Number)
			}
			for j := 1; j < len(r.Matches); j++ {
				assert.Less(t, r.Matches[j-1].MatchOrder, r.Matches[j].MatchOrder)
			}
		}
	}
	assert.Equal(t, []bracket.BracketSide{bracket.WinnersSide, bracket.LosersSide, bracket.FinalsSide}, sides)
	assert.Empty(t, data.Champion)
}

func TestDisplayPageEscapes(t *testing.T) {
	data := PrepareBracketData(doubleEliminationState(t))
	data.Name = `<script>alert(1)</script>`

	var buf bytes.Buffer
	require.NoError(t, DisplayPage("K7QX9M", 30*time.Second, &data).Render(context.Background(), &buf))

	html := buf.String()
	assert.Contains(t, html, `<h1 id="pairing-code">K7QX9M</h1>`)
	assert.Contains(t, html, `data-heartbeat="30"`)
	assert.Contains(t, html, "&lt;script&gt;")
	assert.NotContains(t, html, "<script>alert")
	assert.Contains(t, html, `class="side side-losers"`)
	assert.Contains(t, html, "TBD")
}

func TestDisplayPageWithoutTournament(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, DisplayPage("ABC123", 30*time.Second, nil).Render(context.Background(), &buf))
	assert.NotContains(t, buf.String(), `id="bracket"`)
	assert.Contains(t, buf.String(), "<title>Display</title>")
}

func TestMatchCardMarksWinner(t *testing.T) {
	m := &service.MatchView{
		State: bracket.MatchCompleted,
		Team1: service.TeamView{Name: "Lions", Score: 5, Winner: true},
		Team2: service.TeamView{Name: "Tigers", Score: 2},
	}

	var buf bytes.Buffer
	require.NoError(t, matchCard(m).Render(context.Background(), &buf))

	html := buf.String()
	assert.Contains(t, html, `class="match match-completed"`)
	assert.Contains(t, html, `<div class="team winner"><span class="name">Lions</span>`)
	assert.Contains(t, html, `<div class="team"><span class="name">Tigers</span>`)
	assert.Contains(t, html, `<span class="score">5</span>`)
}
