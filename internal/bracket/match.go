package bracket

import (
	"fmt"

	"github.com/google/uuid"
)

type MatchState string

const (
	MatchPending    MatchState = "pending"
	MatchReady      MatchState = "ready"
	MatchInProgress MatchState = "in_progress"
	MatchCompleted  MatchState = "completed"
)

type BracketSide string

const (
	WinnersSide  BracketSide = "winners"
	LosersSide   BracketSide = "losers"
	FinalsSide   BracketSide = "finals"
	GroupSide    BracketSide = "group"
	PlayoffsSide BracketSide = "playoffs"
	SwissSide    BracketSide = "swiss"
)

type Match struct {
	ID           uuid.UUID `json:"id"`
	TournamentID uuid.UUID `json:"tournament_id"`

	// Position in the tournament for reconstructing the view
	RoundIndex  int         `json:"round_index"`
	BracketSide BracketSide `json:"bracket_side"`
	RoundNumber int         `json:"round_number"`
	MatchOrder  int         `json:"match_order"`

	Slots [2]Slot `json:"slots"`

	Score1   int        `json:"score_1"`
	Score2   int        `json:"score_2"`
	WinnerID *uuid.UUID `json:"winner_id,omitempty"`
	State    MatchState `json:"state"`

	WinnerNextMatchID *uuid.UUID `json:"winner_next_match_id,omitempty"`
	WinnerNextSlot    *int       `json:"winner_next_slot,omitempty"`

	LoserNextMatchID *uuid.UUID `json:"loser_next_match_id,omitempty"`
	LoserNextSlot    *int       `json:"loser_next_slot,omitempty"`

	IsBye bool `json:"is_bye"`
}

func checkSlot(slot int) error {
	if slot != 1 && slot != 2 {
		return fmt.Errorf("%w: got %d", ErrInvalidSlot, slot)
	}
	return nil
}

// Slot returns a pointer to slot 1 or 2. Callers validate the index first.
func (m *Match) Slot(slot int) *Slot {
	return &m.Slots[slot-1]
}

func (m *Match) Score(slot int) int {
	if slot == 1 {
		return m.Score1
	}
	return m.Score2
}

func (m *Match) TeamInSlot(slot int) (uuid.UUID, bool) {
	if checkSlot(slot) != nil {
		return uuid.Nil, false
	}
	return m.Slot(slot).Team()
}

// SlotOf returns the slot holding teamID, or 0.
func (m *Match) SlotOf(teamID uuid.UUID) int {
	for i := 1; i <= 2; i++ {
		if id, ok := m.TeamInSlot(i); ok && id == teamID {
			return i
		}
	}
	return 0
}

func (m *Match) HasTeam(teamID uuid.UUID) bool {
	return m.SlotOf(teamID) != 0
}

func (m *Match) BothResolved() bool {
	return m.Slots[0].Resolved() && m.Slots[1].Resolved()
}

func (m *Match) Playable() bool {
	return m.State == MatchReady || m.State == MatchInProgress
}

func (m *Match) LoserID() *uuid.UUID {
	if m.State != MatchCompleted || m.WinnerID == nil || m.IsBye {
		return nil
	}
	for i := 1; i <= 2; i++ {
		if id, ok := m.TeamInSlot(i); ok && id != *m.WinnerID {
			return &id
		}
	}
	return nil
}

func (m *Match) IsWinner(slot int) bool {
	id, ok := m.TeamInSlot(slot)
	return ok && m.State == MatchCompleted && m.WinnerID != nil && *m.WinnerID == id
}

func (m *Match) IsLoser(slot int) bool {
	_, ok := m.TeamInSlot(slot)
	return ok && m.State == MatchCompleted && !m.IsWinner(slot)
}

func (m *Match) checkScoreable() error {
	switch m.State {
	case MatchCompleted:
		return fmt.Errorf("%w: match %s", ErrAlreadyCompleted, m.ID)
	case MatchPending:
		return fmt.Errorf("%w: match %s is waiting for teams", ErrMatchNotReady, m.ID)
	}
	return nil
}

// SetScore sets one side's score and moves a ready match into progress.
// It never decides a winner.
func (m *Match) SetScore(slot, value int) error {
	if err := m.checkScoreable(); err != nil {
		return err
	}
	if err := checkSlot(slot); err != nil {
		return err
	}
	if value < 0 {
		return fmt.Errorf("%w: %d is negative", ErrInvalidScore, value)
	}

	if slot == 1 {
		m.Score1 = value
	} else {
		m.Score2 = value
	}
	m.State = MatchInProgress
	return nil
}

func (m *Match) AddPoint(slot int) error {
	if err := checkSlot(slot); err != nil {
		return err
	}
	return m.SetScore(slot, m.Score(slot)+1)
}

// DecideWinner picks the higher scorer. forceSlot (1 or 2) overrides the
// scores; 0 means no override, in which case a tie is an error.
func (m *Match) DecideWinner(forceSlot int) (uuid.UUID, error) {
	if err := m.checkScoreable(); err != nil {
		return uuid.Nil, err
	}

	if forceSlot != 0 {
		if err := checkSlot(forceSlot); err != nil {
			return uuid.Nil, err
		}
		id, ok := m.TeamInSlot(forceSlot)
		if !ok {
			return uuid.Nil, fmt.Errorf("%w: slot %d has no team", ErrInvalidWinner, forceSlot)
		}
		return id, nil
	}

	switch {
	case m.Score1 > m.Score2:
		id, _ := m.TeamInSlot(1)
		return id, nil
	case m.Score2 > m.Score1:
		id, _ := m.TeamInSlot(2)
		return id, nil
	}
	return uuid.Nil, fmt.Errorf("%w: %d-%d", ErrTiedScore, m.Score1, m.Score2)
}

// Complete records the result. A ready match passes through in_progress
// implicitly.
func (m *Match) Complete(winnerID uuid.UUID) error {
	if err := m.checkScoreable(); err != nil {
		return err
	}
	if !m.HasTeam(winnerID) {
		return fmt.Errorf("%w: team %s in match %s", ErrInvalidWinner, winnerID, m.ID)
	}
	m.WinnerID = &winnerID
	m.State = MatchCompleted
	return nil
}

// AutoComplete resolves a match whose opponent slot is a permanent bye.
func (m *Match) AutoComplete(teamID uuid.UUID) {
	m.WinnerID = &teamID
	m.IsBye = true
	m.State = MatchCompleted
}

// Reset returns a completed or started match to ready. Dependents are the
// caller's business.
func (m *Match) Reset() error {
	if m.IsBye {
		return fmt.Errorf("%w: match %s was a bye", ErrResetNotAllowed, m.ID)
	}
	if m.State != MatchCompleted && m.State != MatchInProgress {
		return fmt.Errorf("%w: match %s is %s", ErrResetNotAllowed, m.ID, m.State)
	}
	m.Score1, m.Score2 = 0, 0
	m.WinnerID = nil
	m.State = MatchReady
	return nil
}

// Refresh moves between pending and ready as slots resolve or are retracted.
func (m *Match) Refresh() {
	switch m.State {
	case MatchPending:
		if m.BothResolved() {
			m.State = MatchReady
		}
	case MatchReady:
		if !m.BothResolved() {
			m.State = MatchPending
		}
	}
}

// OpenSlotAgainstBye returns the team of a match whose other slot is a bye.
func (m *Match) OpenSlotAgainstBye() (uuid.UUID, bool) {
	if m.State == MatchCompleted {
		return uuid.Nil, false
	}
	for i := 1; i <= 2; i++ {
		other := 3 - i
		if m.Slot(other).Kind == SlotBye {
			return m.Slot(i).Team()
		}
	}
	return uuid.Nil, false
}

func (m *Match) Clone() *Match {
	c := *m
	c.Slots = [2]Slot{m.Slots[0].clone(), m.Slots[1].clone()}
	c.WinnerID = cloneID(m.WinnerID)
	c.WinnerNextMatchID = cloneID(m.WinnerNextMatchID)
	c.LoserNextMatchID = cloneID(m.LoserNextMatchID)
	c.WinnerNextSlot = cloneInt(m.WinnerNextSlot)
	c.LoserNextSlot = cloneInt(m.LoserNextSlot)
	return &c
}

func cloneID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	c := *id
	return &c
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
