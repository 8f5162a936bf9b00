package service

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AdamBeresnev/tourney-live/internal/bracket"
	"github.com/AdamBeresnev/tourney-live/internal/session"
	"github.com/AdamBeresnev/tourney-live/internal/timer"
	"github.com/google/uuid"
)

// txn is one mutation of a tournament clone. Nothing it does is visible until
// the engine commits the clone; returning an error throws all of it away.
type txn struct {
	t       *bracket.Tournament
	now     time.Time
	log     *slog.Logger
	events  []session.Event
	changed bool
	// Timer ticks are not worth a database write
	skipPersist bool
}

func (x *txn) emit(eventType string, payload any) {
	x.changed = true
	x.events = append(x.events, session.Event{Type: eventType, TournamentID: x.t.ID, Payload: payload})
}

func (x *txn) emitMatch(eventType string, m *bracket.Match) {
	x.emit(eventType, newMatchView(x.t, m))
}

func (x *txn) markStarted() {
	if x.t.Status == bracket.TournamentSetup {
		x.t.Status = bracket.TournamentInProgress
	}
}

// completeMatch records the winner and pushes the result through the graph.
func (x *txn) completeMatch(m *bracket.Match, winnerID uuid.UUID) error {
	if err := m.Complete(winnerID); err != nil {
		return err
	}
	x.markStarted()
	x.emitMatch(session.EventMatchCompleted, m)

	if err := x.propagate(m); err != nil {
		return err
	}
	return x.afterCompletion(m)
}

func (x *txn) propagate(m *bracket.Match) error {
	if m.WinnerNextMatchID != nil && m.WinnerNextSlot != nil && m.WinnerID != nil {
		if err := x.fill(*m.WinnerNextMatchID, *m.WinnerNextSlot, *m.WinnerID, m, bracket.OutcomeWinner); err != nil {
			return err
		}
	}
	if m.LoserNextMatchID != nil && m.LoserNextSlot != nil {
		if loser := m.LoserID(); loser != nil {
			if err := x.fill(*m.LoserNextMatchID, *m.LoserNextSlot, *loser, m, bracket.OutcomeLoser); err != nil {
				return err
			}
		}
	}
	return nil
}

// fill resolves one awaiting slot. A target facing a permanent bye completes
// itself and keeps cascading; the graph is acyclic so this terminates.
func (x *txn) fill(targetID uuid.UUID, slot int, teamID uuid.UUID, src *bracket.Match, outcome bracket.Outcome) error {
	target, err := x.t.Match(targetID)
	if err != nil {
		return err
	}
	s := target.Slot(slot)
	if !s.Awaits(src.ID, outcome) {
		return fmt.Errorf("%w: slot %d of match %s does not wait on match %s", bracket.ErrDependencyConflict, slot, target.ID, src.ID)
	}

	*s = bracket.TeamSlot(teamID)
	target.Refresh()
	x.emitMatch(session.EventBracketUpdated, target)

	if id, ok := target.OpenSlotAgainstBye(); ok {
		target.AutoComplete(id)
		x.emitMatch(session.EventMatchCompleted, target)
		return x.propagate(target)
	}
	return nil
}

func (x *txn) afterCompletion(m *bracket.Match) error {
	switch {
	case x.t.Format == bracket.RoundRobinPlayoffs && m.BracketSide == bracket.GroupSide:
		if x.t.AllCompleted(x.t.MatchesOn(bracket.GroupSide)) {
			if err := x.generatePlayoffs(); err != nil {
				return err
			}
		}
	case x.t.Format == bracket.Swiss:
		rounds := x.t.RoundsOn(bracket.SwissSide)
		last := rounds[len(rounds)-1]
		if m.RoundIndex == last.Index && x.t.AllCompleted(x.t.RoundMatches(last)) && len(rounds) < SwissRounds(x.t.Options, len(x.t.Teams)) {
			if err := x.generateSwissRound(); err != nil {
				return err
			}
		}
	}

	x.checkFinished()

	if x.t.CurrentMatchID != nil && *x.t.CurrentMatchID == m.ID {
		x.proposeCurrent()
	}
	return nil
}

func (x *txn) generatePlayoffs() error {
	standings := ComputeStandings(x.t, x.t.MatchesOn(bracket.GroupSide))
	k := PlayoffTeams(x.t.Options)

	teams := make([]bracket.Team, 0, k)
	for _, s := range standings[:k] {
		team, _ := x.t.Team(s.TeamID)
		teams = append(teams, team)
	}

	newBuilder(x.t).elimination(bracket.PlayoffsSide, teams, nil)
	if err := verifyAcyclic(x.t); err != nil {
		return err
	}
	x.t.Phase = bracket.PhasePlayoffs
	x.emit(session.EventBracketUpdated, map[string]any{"phase": bracket.PhasePlayoffs, "standings": standings})
	return nil
}

func (x *txn) generateSwissRound() error {
	standings := ComputeStandings(x.t, x.t.MatchesOn(bracket.SwissSide))
	history, hadBye := swissHistory(x.t)

	pairing, err := PairSwissRound(standings, history, hadBye)
	if errors.Is(err, bracket.ErrPairingExhausted) {
		pairing, err = PairSwissRoundWithRepeats(standings, history, hadBye)
		if err == nil {
			x.log.Warn("swiss pairing needed rematches", "tournament", x.t.ID, "repeats", len(pairing.Repeats))
			x.emit(session.EventSwissFallback, pairing.Repeats)
		}
	}
	if err != nil {
		return err
	}

	b := newBuilder(x.t)
	round := x.t.AddRound(bracket.SwissSide, len(x.t.RoundsOn(bracket.SwissSide))+1)
	for _, p := range pairing.Pairs {
		b.newMatch(round, teamSource(p[0]), teamSource(p[1]))
	}
	if pairing.Bye != nil {
		b.byeMatch(round, *pairing.Bye)
	}
	round.RepeatPairings = pairing.Repeats

	if err := verifyAcyclic(x.t); err != nil {
		return err
	}
	x.emit(session.EventBracketUpdated, map[string]int{"swiss_round": round.Number})
	return nil
}

func (x *txn) generationPending() bool {
	switch x.t.Format {
	case bracket.RoundRobinPlayoffs:
		return x.t.Phase == bracket.PhaseGroup
	case bracket.Swiss:
		return len(x.t.RoundsOn(bracket.SwissSide)) < SwissRounds(x.t.Options, len(x.t.Teams))
	}
	return false
}

func (x *txn) checkFinished() {
	if x.t.Status == bracket.TournamentCompleted || x.generationPending() {
		return
	}
	for _, m := range x.t.Matches {
		if m.State != bracket.MatchCompleted {
			return
		}
	}

	x.t.Status = bracket.TournamentCompleted
	x.t.ChampionID = x.champion()
	x.t.Display.WinnerTeamID = x.t.ChampionID
	x.emit(session.EventTournamentCompleted, map[string]any{"champion_id": x.t.ChampionID})
}

func (x *txn) champion() *uuid.UUID {
	switch x.t.Format {
	case bracket.RoundRobin, bracket.Swiss:
		standings := standingsFor(x.t)
		if len(standings) == 0 {
			return nil
		}
		id := standings[0].TeamID
		return &id
	}

	// Elimination: the one match with no outgoing feed in the last round
	if len(x.t.Rounds) == 0 {
		return nil
	}
	for _, m := range x.t.RoundMatches(x.t.Rounds[len(x.t.Rounds)-1]) {
		if m.WinnerNextMatchID == nil && m.WinnerID != nil {
			id := *m.WinnerID
			return &id
		}
	}
	return nil
}

// proposeCurrent moves the current pointer to the next playable match in
// schedule order, or clears it.
func (x *txn) proposeCurrent() {
	for _, m := range x.t.MatchesInOrder() {
		if m.State == bracket.MatchReady {
			x.setCurrent(m)
			return
		}
	}
	x.clearCurrent()
}

func (x *txn) setCurrent(m *bracket.Match) {
	if x.t.CurrentMatchID != nil && *x.t.CurrentMatchID == m.ID {
		return
	}
	id := m.ID
	x.t.CurrentMatchID = &id
	x.resetTimer()
	x.emitMatch(session.EventCurrentMatch, m)
}

func (x *txn) clearCurrent() {
	if x.t.CurrentMatchID == nil {
		return
	}
	x.t.CurrentMatchID = nil
	x.resetTimer()
	x.emit(session.EventCurrentMatch, nil)
}

func (x *txn) resetTimer() {
	x.t.Timer = timer.Stopped(x.t.TimerDefault)
	x.emit(session.EventTimerTick, x.t.Timer)
}

// resetMatch undoes a result and everything that was derived from it.
func (x *txn) resetMatch(m *bracket.Match) error {
	if m.State == bracket.MatchCompleted && !m.IsBye {
		if err := x.retract(m); err != nil {
			return err
		}
		if err := x.retractGenerated(m); err != nil {
			return err
		}
	}
	if err := m.Reset(); err != nil {
		return err
	}

	if x.t.Status == bracket.TournamentCompleted {
		x.t.Status = bracket.TournamentInProgress
		x.t.ChampionID = nil
		x.t.Display.WinnerTeamID = nil
	}
	x.emitMatch(session.EventMatchReset, m)
	return nil
}

// retract pulls m's result back out of its dependents. Auto-completed bye
// matches are unwound too; a dependent somebody already played refuses.
func (x *txn) retract(m *bracket.Match) error {
	links := []struct {
		next    *uuid.UUID
		slot    *int
		outcome bracket.Outcome
	}{
		{m.WinnerNextMatchID, m.WinnerNextSlot, bracket.OutcomeWinner},
		{m.LoserNextMatchID, m.LoserNextSlot, bracket.OutcomeLoser},
	}

	for _, l := range links {
		if l.next == nil || l.slot == nil {
			continue
		}
		target, err := x.t.Match(*l.next)
		if err != nil {
			return err
		}
		s := target.Slot(*l.slot)
		if s.Kind != bracket.SlotTeam {
			continue
		}

		switch target.State {
		case bracket.MatchCompleted:
			if !target.IsBye {
				return fmt.Errorf("%w: match %s is already completed", bracket.ErrDependencyConflict, target.ID)
			}
			if err := x.retract(target); err != nil {
				return err
			}
			target.WinnerID = nil
			target.IsBye = false
			target.State = bracket.MatchPending
		case bracket.MatchInProgress:
			return fmt.Errorf("%w: match %s is in progress", bracket.ErrDependencyConflict, target.ID)
		}

		*s = bracket.AwaitingSlot(m.ID, l.outcome)
		target.Refresh()
		if x.t.CurrentMatchID != nil && *x.t.CurrentMatchID == target.ID {
			x.clearCurrent()
		}
		x.emitMatch(session.EventBracketUpdated, target)
	}
	return nil
}

// retractGenerated drops rounds that were generated from results m was part
// of: the playoff bracket for a group match, later rounds for a Swiss match.
func (x *txn) retractGenerated(m *bracket.Match) error {
	var after int
	switch {
	case m.BracketSide == bracket.GroupSide && x.t.Phase == bracket.PhasePlayoffs:
		for _, r := range x.t.RoundsOn(bracket.GroupSide) {
			after = max(after, r.Index)
		}
	case m.BracketSide == bracket.SwissSide:
		after = m.RoundIndex
	default:
		return nil
	}

	var doomed []*bracket.Round
	for _, r := range x.t.Rounds {
		if r.Index > after {
			doomed = append(doomed, r)
		}
	}
	if len(doomed) == 0 {
		return nil
	}

	for _, r := range doomed {
		for _, later := range x.t.RoundMatches(r) {
			if later.State == bracket.MatchInProgress || (later.State == bracket.MatchCompleted && !later.IsBye) {
				return fmt.Errorf("%w: match %s in round %d was already played", bracket.ErrDependencyConflict, later.ID, r.Number)
			}
		}
	}

	x.t.RemoveRoundsAfter(after)
	if x.t.CurrentMatchID != nil {
		if _, ok := x.t.Matches[*x.t.CurrentMatchID]; !ok {
			x.clearCurrent()
		}
	}
	if x.t.Format == bracket.RoundRobinPlayoffs {
		x.t.Phase = bracket.PhaseGroup
	}
	x.emit(session.EventBracketUpdated, map[string]int{"removed_rounds": len(doomed)})
	return nil
}

// swapTeams flips the two sides of a match that has not finished and keeps
// the feeding matches pointing at the right slot.
func (x *txn) swapTeams(m *bracket.Match) error {
	switch m.State {
	case bracket.MatchCompleted:
		return fmt.Errorf("%w: match %s", bracket.ErrAlreadyCompleted, m.ID)
	case bracket.MatchPending:
		return fmt.Errorf("%w: match %s is waiting for teams", bracket.ErrMatchNotReady, m.ID)
	}

	m.Slots[0], m.Slots[1] = m.Slots[1], m.Slots[0]
	m.Score1, m.Score2 = m.Score2, m.Score1

	for _, src := range x.t.Matches {
		if src.WinnerNextMatchID != nil && *src.WinnerNextMatchID == m.ID && src.WinnerNextSlot != nil {
			flipped := 3 - *src.WinnerNextSlot
			src.WinnerNextSlot = &flipped
		}
		if src.LoserNextMatchID != nil && *src.LoserNextMatchID == m.ID && src.LoserNextSlot != nil {
			flipped := 3 - *src.LoserNextSlot
			src.LoserNextSlot = &flipped
		}
	}
	x.emitMatch(session.EventScoreUpdate, m)
	return nil
}
