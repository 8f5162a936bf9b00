package service

import (
	"fmt"

	"github.com/AdamBeresnev/tourney-live/internal/bracket"
	"github.com/AdamBeresnev/tourney-live/internal/session"
	"github.com/AdamBeresnev/tourney-live/internal/utils"
	"github.com/google/uuid"
)

// DisplayUpdate changes what every display of a tournament shows. Nil fields
// are left alone.
type DisplayUpdate struct {
	Mode         *string    `json:"mode,omitempty"`
	Message      *string    `json:"message,omitempty"`
	WinnerTeamID *uuid.UUID `json:"winner_team_id,omitempty"`
	ShowPlayers  *bool      `json:"show_players,omitempty"`
}

func (s *TournamentService) SetDisplay(id uuid.UUID, u DisplayUpdate) (*bracket.Tournament, error) {
	return s.mutate(id, func(x *txn) error {
		d := x.t.Display
		if u.Mode != nil {
			mode, err := bracket.ParseDisplayMode(*u.Mode)
			if err != nil {
				return err
			}
			d.Mode = mode
		}
		if u.Message != nil {
			d.Message = utils.Sanitize(*u.Message, utils.MaxMessageLen)
		}
		if u.WinnerTeamID != nil {
			if _, ok := x.t.Team(*u.WinnerTeamID); !ok {
				return fmt.Errorf("%w: %s", bracket.ErrTeamNotFound, *u.WinnerTeamID)
			}
			d.WinnerTeamID = u.WinnerTeamID
		}
		if u.ShowPlayers != nil {
			d.ShowPlayers = *u.ShowPlayers
		}

		x.t.Display = d
		x.emit(session.EventDisplayUpdate, d)
		return nil
	})
}

// NextMatch is the suggestion shown to controllers, see UpNext.
func (s *TournamentService) NextMatch(id uuid.UUID) (*MatchView, error) {
	t, err := s.Tournament(id)
	if err != nil {
		return nil, err
	}
	return newMatchView(t, UpNext(t)), nil
}

func (s *TournamentService) Stats(id uuid.UUID) (Stats, error) {
	t, err := s.Tournament(id)
	if err != nil {
		return Stats{}, err
	}
	return ComputeStats(t), nil
}
