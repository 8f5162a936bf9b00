package views

import (
	"sort"

	"github.com/AdamBeresnev/tourney-live/internal/bracket"
	"github.com/AdamBeresnev/tourney-live/internal/service"
)

// Section is one column group of the bracket view, e.g. the winners bracket.
type Section struct {
	Side   bracket.BracketSide
	Title  string
	Rounds []service.RoundView
}

type BracketData struct {
	Name     string
	Sections []Section
	Champion string
}

var sideOrder = []struct {
	side  bracket.BracketSide
	title string
}{
	{bracket.WinnersSide, "Winners"},
	{bracket.LosersSide, "Losers"},
	{bracket.FinalsSide, "Final"},
	{bracket.GroupSide, "Group"},
	{bracket.PlayoffsSide, "Playoffs"},
	{bracket.SwissSide, "Swiss"},
}

// PrepareBracketData groups the rounds of a state by bracket side, each side's
// rounds by number and each round's matches by order.
func PrepareBracketData(st service.State) BracketData {
	bySide := make(map[bracket.BracketSide][]service.RoundView)
	for _, r := range st.Rounds {
		matches := append([]*service.MatchView(nil), r.Matches...)
		sort.Slice(matches, func(i, j int) bool { return matches[i].MatchOrder < matches[j].MatchOrder })
		r.Matches = matches
		bySide[r.Side] = append(bySide[r.Side], r)
	}

	data := BracketData{Name: st.Name}
	if st.Champion != nil {
		data.Champion = st.Champion.Name
	}
	for _, s := range sideOrder {
		rounds, ok := bySide[s.side]
		if !ok {
			continue
		}
		sort.SliceStable(rounds, func(i, j int) bool { return rounds[i].Number < rounds[j].Number })
		data.Sections = append(data.Sections, Section{Side: s.side, Title: s.title, Rounds: rounds})
	}
	return data
}
