package service

import (
	"context"
	"fmt"
	"time"

	"github.com/AdamBeresnev/tourney-live/internal/bracket"
	"github.com/AdamBeresnev/tourney-live/internal/session"
	"github.com/AdamBeresnev/tourney-live/internal/timer"
	"github.com/google/uuid"
)

const DefaultTickInterval = time.Second

// StartTimer arms the countdown; seconds <= 0 uses the tournament default.
// The first tick goes out immediately.
func (s *TournamentService) StartTimer(id uuid.UUID, seconds int) (*bracket.Tournament, error) {
	return s.mutate(id, func(x *txn) error {
		d := time.Duration(seconds) * time.Second
		if d <= 0 {
			d = x.t.TimerDefault
		}
		x.t.Timer.Start(d, x.now)
		x.skipPersist = true
		x.emit(session.EventTimerTick, x.t.Timer)
		return nil
	})
}

func (s *TournamentService) PauseTimer(id uuid.UUID) (*bracket.Tournament, error) {
	return s.mutate(id, func(x *txn) error {
		if x.t.Timer.Pause(x.now) {
			x.skipPersist = true
			x.emit(session.EventTimerTick, x.t.Timer)
		}
		return nil
	})
}

func (s *TournamentService) ResumeTimer(id uuid.UUID) (*bracket.Tournament, error) {
	return s.mutate(id, func(x *txn) error {
		if x.t.Timer.Resume(x.now) {
			x.skipPersist = true
			x.emit(session.EventTimerTick, x.t.Timer)
		}
		return nil
	})
}

func (s *TournamentService) StopTimer(id uuid.UUID) (*bracket.Tournament, error) {
	return s.mutate(id, func(x *txn) error {
		x.t.Timer.Stop()
		x.skipPersist = true
		x.emit(session.EventTimerTick, x.t.Timer)
		return nil
	})
}

// SetTimerDuration changes the tournament default used by later starts.
func (s *TournamentService) SetTimerDuration(id uuid.UUID, seconds int) (*bracket.Tournament, error) {
	return s.mutate(id, func(x *txn) error {
		if seconds <= 0 {
			return fmt.Errorf("%w: got %d", bracket.ErrInvalidDuration, seconds)
		}
		x.t.TimerDefault = time.Duration(seconds) * time.Second
		if !x.t.Timer.Running {
			x.t.Timer.Duration = x.t.TimerDefault
			x.t.Timer.Remaining = x.t.TimerDefault
			x.t.Timer.Expired = false
		}
		x.emit(session.EventTimerTick, x.t.Timer)
		return nil
	})
}

// TickTimers advances every running timer once. Each tick goes through the
// owning tournament's lock like any other mutation.
func (s *TournamentService) TickTimers() {
	s.tournaments.Range(func(key, v any) bool {
		if !v.(*tournamentEntry).state.Load().Timer.Running {
			return true
		}
		_, err := s.mutate(key.(uuid.UUID), func(x *txn) error {
			x.skipPersist = true
			switch x.t.Timer.Tick(x.now) {
			case timer.Ticked:
				x.emit(session.EventTimerTick, x.t.Timer)
			case timer.Expired:
				s.metrics.TimerExpired()
				x.emit(session.EventTimerExpired, x.t.Timer)
			}
			return nil
		})
		if err != nil {
			s.log.Warn("timer tick failed", "tournament", key, "error", err)
		}
		return true
	})
}

// RunTimers drives TickTimers on a fixed cadence until ctx is done.
func (s *TournamentService) RunTimers(ctx context.Context, every time.Duration) error {
	if every <= 0 {
		every = DefaultTickInterval
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.TickTimers()
		}
	}
}
