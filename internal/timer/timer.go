package timer

import (
	"encoding/json"
	"math"
	"time"
)

// DefaultDuration is used when a tournament has no timer duration configured.
const DefaultDuration = 150 * time.Second

type TickResult int

const (
	Idle TickResult = iota
	Ticked
	Expired
)

// State is the countdown attached to the current match. It holds no goroutines;
// the owner calls Tick on its own cadence.
type State struct {
	Duration  time.Duration
	Remaining time.Duration
	Running   bool
	Expired   bool
	LastTick  time.Time
}

func Stopped(d time.Duration) State {
	if d <= 0 {
		d = DefaultDuration
	}
	return State{Duration: d, Remaining: d}
}

// Start (re)arms the countdown. A non-positive duration keeps the configured one.
func (s *State) Start(d time.Duration, now time.Time) {
	if d > 0 {
		s.Duration = d
	}
	if s.Duration <= 0 {
		s.Duration = DefaultDuration
	}
	s.Remaining = s.Duration
	s.Running = true
	s.Expired = false
	s.LastTick = now
}

// Pause freezes the remaining time. Returns false if nothing was running.
func (s *State) Pause(now time.Time) bool {
	if !s.Running {
		return false
	}
	s.advance(now)
	s.Running = false
	return true
}

func (s *State) Resume(now time.Time) bool {
	if s.Running || s.Expired || s.Remaining <= 0 {
		return false
	}
	s.Running = true
	s.LastTick = now
	return true
}

func (s *State) Stop() {
	s.Running = false
	s.Remaining = 0
}

// Tick applies wall-clock time elapsed since the previous tick. Expired is
// reported exactly once, after which the timer is stopped.
func (s *State) Tick(now time.Time) TickResult {
	if !s.Running {
		return Idle
	}
	s.advance(now)
	if s.Remaining > 0 {
		return Ticked
	}
	s.Running = false
	s.Expired = true
	return Expired
}

func (s *State) advance(now time.Time) {
	if elapsed := now.Sub(s.LastTick); elapsed > 0 {
		s.Remaining -= elapsed
	}
	if s.Remaining < 0 {
		s.Remaining = 0
	}
	s.LastTick = now
}

// RemainingSeconds rounds up so a display never shows 0 before expiry.
func (s State) RemainingSeconds() int {
	return int(math.Ceil(s.Remaining.Seconds()))
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Duration  int  `json:"duration"`
		Remaining int  `json:"remaining"`
		Running   bool `json:"running"`
		Expired   bool `json:"expired"`
	}{
		Duration:  int(s.Duration.Seconds()),
		Remaining: s.RemainingSeconds(),
		Running:   s.Running,
		Expired:   s.Expired,
	})
}
