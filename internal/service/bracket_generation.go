package service

import (
	"fmt"
	"math"
	"math/bits"
	"sort"

	"github.com/AdamBeresnev/tourney-live/internal/bracket"
	"github.com/AdamBeresnev/tourney-live/internal/utils"
	"github.com/google/uuid"
)

const defaultPlayoffTeams = 4

// Schedule is the generated match graph of a new tournament.
type Schedule struct {
	Rounds  []*bracket.Round
	Matches map[uuid.UUID]*bracket.Match
}

// GenerateBracket builds the initial schedule for the format. The result only
// depends on the team order, so regenerating from the same seeds gives the same
// structure.
func GenerateBracket(tournamentID uuid.UUID, teams []bracket.Team, format bracket.Format, opts bracket.Options) (*Schedule, error) {
	if err := checkConstraints(len(teams), format, opts); err != nil {
		return nil, err
	}

	b := newBuilder(&bracket.Tournament{ID: tournamentID, Matches: make(map[uuid.UUID]*bracket.Match)})
	ordered := seedOrder(teams)

	switch format {
	case bracket.SingleElimination:
		b.elimination(bracket.WinnersSide, ordered, nil)
	case bracket.DoubleElimination:
		b.doubleElimination(ordered)
	case bracket.RoundRobin, bracket.RoundRobinPlayoffs:
		b.roundRobin(ordered, legs(opts))
	case bracket.Swiss:
		b.swissFirstRound(ordered)
	}

	if err := verifyAcyclic(b.t); err != nil {
		return nil, err
	}

	return &Schedule{Rounds: b.t.Rounds, Matches: b.t.Matches}, nil
}

func checkConstraints(count int, format bracket.Format, opts bracket.Options) error {
	minTeams := 3
	switch format {
	case bracket.SingleElimination, bracket.DoubleElimination:
		minTeams = 2
	case bracket.RoundRobin, bracket.RoundRobinPlayoffs, bracket.Swiss:
	default:
		return fmt.Errorf("%w: unknown format %q", bracket.ErrFormatConstraint, format)
	}

	if count < minTeams {
		return fmt.Errorf("%w: %s needs at least %d teams, got %d", bracket.ErrFormatConstraint, format, minTeams, count)
	}

	if format == bracket.RoundRobinPlayoffs {
		k := PlayoffTeams(opts)
		if k < 2 || k > count {
			return fmt.Errorf("%w: %d playoff teams with %d registered", bracket.ErrFormatConstraint, k, count)
		}
	}
	if opts.SwissRounds < 0 || opts.Legs < 0 || opts.Legs > 2 {
		return fmt.Errorf("%w: invalid options", bracket.ErrFormatConstraint)
	}
	return nil
}

func PlayoffTeams(opts bracket.Options) int {
	if opts.PlayoffTeams == 0 {
		return defaultPlayoffTeams
	}
	return opts.PlayoffTeams
}

// SwissRounds defaults to ceil(log2 N), enough to separate a single unbeaten team.
func SwissRounds(opts bracket.Options, teams int) int {
	if opts.SwissRounds > 0 {
		return opts.SwissRounds
	}
	return bits.Len(uint(teams - 1))
}

func legs(opts bracket.Options) int {
	if opts.Legs == 2 {
		return 2
	}
	return 1
}

// Seeded teams first by rank, the rest keep registration order
func seedOrder(teams []bracket.Team) []bracket.Team {
	ordered := append([]bracket.Team(nil), teams...)
	sort.SliceStable(ordered, func(i, j int) bool {
		si, sj := ordered[i].Seed, ordered[j].Seed
		switch {
		case si != nil && sj != nil:
			return *si < *sj
		case si != nil:
			return true
		}
		return false
	})
	return ordered
}

// Gets the nearest power of 2 while rounding up, so with input 5 it returns 8 and so on
func calcBracketSize(count int) int {
	if count <= 0 {
		return 0
	}

	// Log2 -> Ceil -> 2^^log2 to round up
	log2 := math.Ceil(math.Log2(float64(count)))
	return int(math.Pow(2, log2))
}

// Standard seeding: 1 v N, 2 v N-1, folded so the top seeds meet as late as possible
func generateRound1Pairs(bracketSize int) [][2]int {
	if bracketSize == 0 {
		return [][2]int{}
	}

	rounds := []int{0}
	for len(rounds) < bracketSize {
		var nextRound []int
		currentCount := len(rounds) * 2

		for _, seed := range rounds {
			nextRound = append(nextRound, seed)
			nextRound = append(nextRound, (currentCount-1)-seed)
		}
		rounds = nextRound
	}

	pairs := make([][2]int, 0, len(rounds)/2)
	for i := 0; i < len(rounds); i += 2 {
		pairs = append(pairs, [2]int{rounds[i], rounds[i+1]})
	}
	return pairs
}

// source is where a slot's team will come from while the graph is being built
type source struct {
	kind    bracket.SlotKind
	team    uuid.UUID
	match   *bracket.Match
	outcome bracket.Outcome
}

func teamSource(id uuid.UUID) source { return source{kind: bracket.SlotTeam, team: id} }
func byeSource() source              { return source{kind: bracket.SlotBye} }

func winnerOf(m *bracket.Match) source {
	return source{kind: bracket.SlotAwaiting, match: m, outcome: bracket.OutcomeWinner}
}

func loserOf(m *bracket.Match) source {
	return source{kind: bracket.SlotAwaiting, match: m, outcome: bracket.OutcomeLoser}
}

type builder struct {
	t *bracket.Tournament
}

func newBuilder(t *bracket.Tournament) *builder {
	return &builder{t: t}
}

func (b *builder) newMatch(round *bracket.Round, s1, s2 source) *bracket.Match {
	m := &bracket.Match{ID: uuid.New(), State: bracket.MatchPending}
	b.t.AddMatch(round, m)
	b.link(s1, m, 1)
	b.link(s2, m, 2)
	m.Refresh()
	return m
}

// link is the only place a feed between two matches gets created
func (b *builder) link(src source, target *bracket.Match, slot int) {
	switch src.kind {
	case bracket.SlotTeam:
		*target.Slot(slot) = bracket.TeamSlot(src.team)
	case bracket.SlotBye:
		*target.Slot(slot) = bracket.ByeSlot()
	case bracket.SlotAwaiting:
		*target.Slot(slot) = bracket.AwaitingSlot(src.match.ID, src.outcome)
		id := target.ID
		if src.outcome == bracket.OutcomeWinner {
			src.match.WinnerNextMatchID = &id
			src.match.WinnerNextSlot = utils.Ptr(slot)
		} else {
			src.match.LoserNextMatchID = &id
			src.match.LoserNextSlot = utils.Ptr(slot)
		}
	}
}

// elimination lays out a knockout bracket round by round. afterRound gets the
// loser feed of every bracket position, with byes where a position had no match,
// so a losers bracket can be interleaved in schedule order.
func (b *builder) elimination(side bracket.BracketSide, teams []bracket.Team, afterRound func(round, total int, losers []source)) source {
	bracketSize := calcBracketSize(len(teams))
	totalRounds := bits.Len(uint(bracketSize)) - 1

	seed := func(i int) source {
		if i >= len(teams) {
			return byeSource()
		}
		return teamSource(teams[i].ID)
	}

	// A bye places the seed straight into round 2, so only real pairs get a match
	round := b.t.AddRound(side, 1)
	var current, losers []source
	for _, pair := range generateRound1Pairs(bracketSize) {
		s1, s2 := seed(pair[0]), seed(pair[1])
		if s2.kind == bracket.SlotBye {
			current = append(current, s1)
			losers = append(losers, byeSource())
			continue
		}
		m := b.newMatch(round, s1, s2)
		current = append(current, winnerOf(m))
		losers = append(losers, loserOf(m))
	}
	if afterRound != nil {
		afterRound(1, totalRounds, losers)
	}

	for r := 2; r <= totalRounds; r++ {
		round := b.t.AddRound(side, r)
		next := make([]source, 0, len(current)/2)
		losers = make([]source, 0, len(current)/2)
		for i := 0; i < len(current); i += 2 {
			m := b.newMatch(round, current[i], current[i+1])
			next = append(next, winnerOf(m))
			losers = append(losers, loserOf(m))
		}
		current = next
		if afterRound != nil {
			afterRound(r, totalRounds, losers)
		}
	}

	return current[0]
}

func (b *builder) doubleElimination(teams []bracket.Team) {
	var carry []source
	lbNumber := 0
	lbRound := func() func() *bracket.Round {
		var r *bracket.Round
		return func() *bracket.Round {
			if r == nil {
				lbNumber++
				r = b.t.AddRound(bracket.LosersSide, lbNumber)
			}
			return r
		}
	}

	// Losers rounds: first the round-1 losers among themselves, then for every
	// later winners round a drop-in round against its losers and, except after
	// the winners final, a consolidation round.
	champion := b.elimination(bracket.WinnersSide, teams, func(r, total int, losers []source) {
		if r == 1 {
			if total == 1 {
				carry = losers
				return
			}
			carry = b.pairUp(lbRound(), losers)
			return
		}

		if r%2 == 0 {
			// Reversed drop-ins keep round one opponents apart
			reversed := make([]source, len(losers))
			for i := range losers {
				reversed[len(losers)-1-i] = losers[i]
			}
			losers = reversed
		}
		next := lbRound()
		dropped := make([]source, 0, len(carry))
		for i := range carry {
			dropped = append(dropped, b.losersMatch(next, carry[i], losers[i]))
		}
		carry = dropped

		if r < total {
			carry = b.pairUp(lbRound(), carry)
		}
	})

	final := b.t.AddRound(bracket.FinalsSide, 1)
	b.newMatch(final, champion, carry[0])
}

func (b *builder) pairUp(round func() *bracket.Round, feeds []source) []source {
	out := make([]source, 0, len(feeds)/2)
	for i := 0; i+1 < len(feeds); i += 2 {
		out = append(out, b.losersMatch(round, feeds[i], feeds[i+1]))
	}
	return out
}

// losersMatch collapses byes that can be settled now. A pending feed against a
// bye still gets a match, which completes itself once the feed arrives.
func (b *builder) losersMatch(round func() *bracket.Round, s1, s2 source) source {
	switch {
	case s1.kind == bracket.SlotBye && s2.kind == bracket.SlotBye:
		return byeSource()
	case s1.kind == bracket.SlotBye && s2.kind == bracket.SlotTeam:
		return s2
	case s2.kind == bracket.SlotBye && s1.kind == bracket.SlotTeam:
		return s1
	}
	return winnerOf(b.newMatch(round(), s1, s2))
}

// Circle method: the first team stays put and the rest rotate. A nil entry is
// the sit-out slot for odd team counts and never gets a match.
func (b *builder) roundRobin(teams []bracket.Team, legCount int) {
	list := make([]*bracket.Team, 0, len(teams)+1)
	for i := range teams {
		list = append(list, &teams[i])
	}
	if len(list)%2 != 0 {
		list = append(list, nil)
	}
	n := len(list)

	number := 0
	for leg := 1; leg <= legCount; leg++ {
		order := append([]*bracket.Team(nil), list...)
		for r := 0; r < n-1; r++ {
			number++
			round := b.t.AddRound(bracket.GroupSide, number)
			for i := 0; i < n/2; i++ {
				home, away := order[i], order[n-1-i]
				if home == nil || away == nil {
					continue
				}
				if leg == 2 {
					home, away = away, home
				}
				b.newMatch(round, teamSource(home.ID), teamSource(away.ID))
			}

			rotated := make([]*bracket.Team, 0, n)
			rotated = append(rotated, order[0], order[n-1])
			rotated = append(rotated, order[1:n-1]...)
			order = rotated
		}
	}
}

// Round one of a Swiss event: top half against bottom half by seed, the
// lowest seed sits out with a bye when the count is odd.
func (b *builder) swissFirstRound(teams []bracket.Team) {
	round := b.t.AddRound(bracket.SwissSide, 1)

	var bye *bracket.Team
	if len(teams)%2 != 0 {
		bye = &teams[len(teams)-1]
		teams = teams[:len(teams)-1]
	}

	half := len(teams) / 2
	for i := 0; i < half; i++ {
		b.newMatch(round, teamSource(teams[i].ID), teamSource(teams[i+half].ID))
	}
	if bye != nil {
		b.byeMatch(round, bye.ID)
	}
}

func (b *builder) byeMatch(round *bracket.Round, teamID uuid.UUID) *bracket.Match {
	m := b.newMatch(round, teamSource(teamID), byeSource())
	m.AutoComplete(teamID)
	return m
}

// verifyAcyclic checks every feed points at a strictly later round and that the
// feeds form a DAG. A failure here is a generator bug.
func verifyAcyclic(t *bracket.Tournament) error {
	indegree := make(map[uuid.UUID]int, len(t.Matches))
	edges := make(map[uuid.UUID][]uuid.UUID, len(t.Matches))

	for id, m := range t.Matches {
		if _, ok := indegree[id]; !ok {
			indegree[id] = 0
		}
		for _, next := range []*uuid.UUID{m.WinnerNextMatchID, m.LoserNextMatchID} {
			if next == nil {
				continue
			}
			target, ok := t.Matches[*next]
			if !ok {
				return fmt.Errorf("%w: match %s feeds unknown match %s", bracket.ErrCycleDetected, id, *next)
			}
			if target.RoundIndex <= m.RoundIndex {
				return fmt.Errorf("%w: match %s feeds round %d from round %d", bracket.ErrCycleDetected, id, target.RoundIndex, m.RoundIndex)
			}
			edges[id] = append(edges[id], *next)
			indegree[*next]++
		}
	}

	queue := make([]uuid.UUID, 0, len(indegree))
	for id, d := range indegree {
		if d == 0 {
			queue = append(queue, id)
		}
	}
	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		for _, next := range edges[id] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if visited != len(indegree) {
		return fmt.Errorf("%w: %d matches unreachable in topological order", bracket.ErrCycleDetected, len(indegree)-visited)
	}
	return nil
}
