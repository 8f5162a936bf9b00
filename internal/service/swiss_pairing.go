package service

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/AdamBeresnev/tourney-live/internal/bracket"
	"github.com/google/uuid"
)

// Step budget per search. Keeps a hopeless search from stalling the tournament lock.
var maxPairingSteps = 200_000

type pairKey [2]uuid.UUID

func keyOf(a, b uuid.UUID) pairKey {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	return pairKey{a, b}
}

// PairingHistory maps a pairing to the last round number it was played in.
type PairingHistory map[pairKey]int

func (h PairingHistory) Played(a, b uuid.UUID) bool {
	_, ok := h[keyOf(a, b)]
	return ok
}

func (h PairingHistory) Record(a, b uuid.UUID, round int) {
	k := keyOf(a, b)
	if round > h[k] {
		h[k] = round
	}
}

type SwissPairing struct {
	Pairs   [][2]uuid.UUID
	Bye     *uuid.UUID
	Repeats [][2]uuid.UUID
}

// PairSwissRound pairs teams of similar record without any rematch. The input
// must already be sorted by standing. Fails with ErrPairingExhausted when no
// rematch-free pairing exists.
func PairSwissRound(standings []bracket.Standing, history PairingHistory, hadBye map[uuid.UUID]bool) (*SwissPairing, error) {
	return pairSwiss(standings, history, hadBye, 0)
}

// PairSwissRoundWithRepeats is the explicit fallback once PairSwissRound is
// exhausted: it allows as few rematches as possible, least recent first.
func PairSwissRoundWithRepeats(standings []bracket.Standing, history PairingHistory, hadBye map[uuid.UUID]bool) (*SwissPairing, error) {
	for allowed := 1; allowed <= len(standings)/2; allowed++ {
		p, err := pairSwiss(standings, history, hadBye, allowed)
		if err == nil {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: even with rematches", bracket.ErrPairingExhausted)
}

func pairSwiss(standings []bracket.Standing, history PairingHistory, hadBye map[uuid.UUID]bool, allowedRepeats int) (*SwissPairing, error) {
	ranked := make([]uuid.UUID, len(standings))
	for i, s := range standings {
		ranked[i] = s.TeamID
	}

	if len(ranked)%2 == 0 {
		p := &pairer{history: history}
		if pairs, repeats, ok := p.search(ranked, allowedRepeats); ok {
			return &SwissPairing{Pairs: pairs, Repeats: repeats}, nil
		}
		return nil, fmt.Errorf("%w: %d teams", bracket.ErrPairingExhausted, len(ranked))
	}

	// Lowest-ranked team without a bye sits out, then the rest in reverse order
	var candidates []int
	for i := len(ranked) - 1; i >= 0; i-- {
		if !hadBye[ranked[i]] {
			candidates = append(candidates, i)
		}
	}
	for i := len(ranked) - 1; i >= 0; i-- {
		if hadBye[ranked[i]] {
			candidates = append(candidates, i)
		}
	}

	for _, i := range candidates {
		rest := make([]uuid.UUID, 0, len(ranked)-1)
		rest = append(rest, ranked[:i]...)
		rest = append(rest, ranked[i+1:]...)
		// Each bye candidate gets the full budget
		p := &pairer{history: history}
		if pairs, repeats, ok := p.search(rest, allowedRepeats); ok {
			bye := ranked[i]
			return &SwissPairing{Pairs: pairs, Bye: &bye, Repeats: repeats}, nil
		}
	}
	return nil, fmt.Errorf("%w: %d teams", bracket.ErrPairingExhausted, len(ranked))
}

type pairer struct {
	history PairingHistory
	steps   int
}

// search pairs the top remaining team with the next one it has not met,
// skipping forward on rematches and backtracking when stuck.
func (p *pairer) search(remaining []uuid.UUID, repeatsLeft int) ([][2]uuid.UUID, [][2]uuid.UUID, bool) {
	if len(remaining) == 0 {
		return nil, nil, true
	}
	p.steps++
	if p.steps > maxPairingSteps {
		return nil, nil, false
	}

	top := remaining[0]
	var fresh, repeats []int
	for i := 1; i < len(remaining); i++ {
		if p.history.Played(top, remaining[i]) {
			repeats = append(repeats, i)
		} else {
			fresh = append(fresh, i)
		}
	}
	sort.SliceStable(repeats, func(a, b int) bool {
		return p.history[keyOf(top, remaining[repeats[a]])] < p.history[keyOf(top, remaining[repeats[b]])]
	})

	try := func(i int, left int) ([][2]uuid.UUID, [][2]uuid.UUID, bool) {
		rest := make([]uuid.UUID, 0, len(remaining)-2)
		rest = append(rest, remaining[1:i]...)
		rest = append(rest, remaining[i+1:]...)
		pairs, reps, ok := p.search(rest, left)
		if !ok {
			return nil, nil, false
		}
		return append([][2]uuid.UUID{{top, remaining[i]}}, pairs...), reps, true
	}

	for _, i := range fresh {
		if pairs, reps, ok := try(i, repeatsLeft); ok {
			return pairs, reps, true
		}
	}
	if repeatsLeft > 0 {
		for _, i := range repeats {
			if pairs, reps, ok := try(i, repeatsLeft-1); ok {
				return pairs, append([][2]uuid.UUID{{top, remaining[i]}}, reps...), true
			}
		}
	}
	return nil, nil, false
}

// swissHistory collects who has met whom and who already had a bye.
func swissHistory(t *bracket.Tournament) (PairingHistory, map[uuid.UUID]bool) {
	history := make(PairingHistory)
	hadBye := make(map[uuid.UUID]bool)
	for _, m := range t.MatchesOn(bracket.SwissSide) {
		if m.IsBye {
			if id, ok := m.TeamInSlot(1); ok {
				hadBye[id] = true
			}
			continue
		}
		a, okA := m.TeamInSlot(1)
		b, okB := m.TeamInSlot(2)
		if okA && okB {
			history.Record(a, b, m.RoundNumber)
		}
	}
	return history, hadBye
}
