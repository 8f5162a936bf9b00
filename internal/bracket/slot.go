package bracket

import "github.com/google/uuid"

type SlotKind string

const (
	SlotTeam     SlotKind = "team"
	SlotAwaiting SlotKind = "awaiting"
	SlotBye      SlotKind = "bye"
)

type Outcome string

const (
	OutcomeWinner Outcome = "winner"
	OutcomeLoser  Outcome = "loser"
)

// Slot is one side of a match: a known team, the winner or loser of an
// earlier match, or a permanent bye.
type Slot struct {
	Kind    SlotKind   `json:"kind"`
	TeamID  *uuid.UUID `json:"team_id,omitempty"`
	MatchID *uuid.UUID `json:"source_match_id,omitempty"`
	Outcome Outcome    `json:"outcome,omitempty"`
}

func TeamSlot(teamID uuid.UUID) Slot {
	return Slot{Kind: SlotTeam, TeamID: &teamID}
}

func AwaitingSlot(matchID uuid.UUID, outcome Outcome) Slot {
	return Slot{Kind: SlotAwaiting, MatchID: &matchID, Outcome: outcome}
}

func ByeSlot() Slot {
	return Slot{Kind: SlotBye}
}

func (s Slot) Resolved() bool {
	return s.Kind == SlotTeam && s.TeamID != nil
}

func (s Slot) Team() (uuid.UUID, bool) {
	if !s.Resolved() {
		return uuid.Nil, false
	}
	return *s.TeamID, true
}

// Awaits reports whether the slot is filled by the given outcome of matchID.
func (s Slot) Awaits(matchID uuid.UUID, outcome Outcome) bool {
	return s.Kind == SlotAwaiting && s.MatchID != nil && *s.MatchID == matchID && s.Outcome == outcome
}

func (s Slot) clone() Slot {
	c := Slot{Kind: s.Kind, Outcome: s.Outcome}
	if s.TeamID != nil {
		id := *s.TeamID
		c.TeamID = &id
	}
	if s.MatchID != nil {
		id := *s.MatchID
		c.MatchID = &id
	}
	return c
}
