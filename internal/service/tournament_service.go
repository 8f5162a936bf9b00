package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AdamBeresnev/tourney-live/internal/bracket"
	"github.com/AdamBeresnev/tourney-live/internal/metrics"
	"github.com/AdamBeresnev/tourney-live/internal/session"
	"github.com/AdamBeresnev/tourney-live/internal/timer"
	"github.com/AdamBeresnev/tourney-live/internal/utils"
	"github.com/google/uuid"
)

const maxTournamentNameLen = 64

type Publisher interface {
	Publish(ev session.Event)
}

// Persister receives every committed snapshot. It must not block; the engine
// never waits for storage.
type Persister interface {
	Enqueue(t *bracket.Tournament)
}

type nopPublisher struct{}

func (nopPublisher) Publish(session.Event) {}

type nopPersister struct{}

func (nopPersister) Enqueue(*bracket.Tournament) {}

type Option func(*TournamentService)

func WithPublisher(p Publisher) Option {
	return func(s *TournamentService) { s.publisher = p }
}

func WithPersister(p Persister) Option {
	return func(s *TournamentService) { s.persister = p }
}

func WithClock(now func() time.Time) Option {
	return func(s *TournamentService) { s.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *TournamentService) { s.log = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *TournamentService) { s.metrics = m }
}

func WithTimerDefault(d time.Duration) Option {
	return func(s *TournamentService) {
		if d > 0 {
			s.timerDefault = d
		}
	}
}

type tournamentEntry struct {
	// Single writer per tournament; readers only ever load state
	mu    sync.Mutex
	state atomic.Pointer[bracket.Tournament]
}

// TournamentService owns every live tournament. Mutations of one tournament
// are serialized by its own lock and applied to a clone that replaces the
// published snapshot in one atomic store, so reads never lock and never see a
// half-applied change. Snapshots handed out must be treated as read-only.
type TournamentService struct {
	tournaments sync.Map // uuid.UUID -> *tournamentEntry
	active      atomic.Pointer[uuid.UUID]

	publisher    Publisher
	persister    Persister
	now          func() time.Time
	log          *slog.Logger
	metrics      *metrics.Metrics
	timerDefault time.Duration
}

func NewTournamentService(opts ...Option) *TournamentService {
	s := &TournamentService{
		publisher:    nopPublisher{},
		persister:    nopPersister{},
		now:          time.Now,
		log:          slog.Default(),
		timerDefault: timer.DefaultDuration,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type TeamInput struct {
	Name    string `json:"name"`
	Seed    *int   `json:"seed,omitempty"`
	Player1 string `json:"player_1,omitempty"`
	Player2 string `json:"player_2,omitempty"`
}

type CreateTournamentInput struct {
	Name    string          `json:"name"`
	Format  bracket.Format  `json:"format"`
	Options bracket.Options `json:"options"`
	Teams   []TeamInput     `json:"teams"`
	// Seconds; 0 uses the configured default
	TimerDuration int `json:"timer_duration,omitempty"`
}

// CreateTournament generates the schedule and registers the tournament. The
// first tournament created becomes the active one.
func (s *TournamentService) CreateTournament(ctx context.Context, in CreateTournamentInput) (*bracket.Tournament, error) {
	teams := make([]bracket.Team, 0, len(in.Teams))
	for _, ti := range in.Teams {
		team := bracket.NewTeam(ti.Name, ti.Seed, ti.Player1, ti.Player2)
		if team.Name == "" {
			return nil, fmt.Errorf("%w: team without a name", bracket.ErrFormatConstraint)
		}
		teams = append(teams, team)
	}

	id := uuid.New()
	schedule, err := GenerateBracket(id, teams, in.Format, in.Options)
	if err != nil {
		s.metrics.ControlRejected(bracket.ErrorKind(err))
		return nil, err
	}

	timerDefault := s.timerDefault
	if in.TimerDuration > 0 {
		timerDefault = time.Duration(in.TimerDuration) * time.Second
	}

	name := utils.Sanitize(in.Name, maxTournamentNameLen)
	if name == "" {
		name = "Tournament"
	}

	t := &bracket.Tournament{
		ID:           id,
		Name:         name,
		Format:       in.Format,
		Options:      in.Options,
		Status:       bracket.TournamentSetup,
		Teams:        teams,
		Rounds:       schedule.Rounds,
		Matches:      schedule.Matches,
		TimerDefault: timerDefault,
		Timer:        timer.Stopped(timerDefault),
		Display:      bracket.DisplayState{Mode: bracket.ModeWaiting},
		Version:      1,
		CreatedAt:    s.now(),
	}
	if in.Format == bracket.RoundRobinPlayoffs {
		t.Phase = bracket.PhaseGroup
	}

	x := &txn{t: t, now: s.now(), log: s.log}
	x.proposeCurrent()

	e := &tournamentEntry{}
	e.state.Store(t)
	s.tournaments.Store(id, e)
	s.active.CompareAndSwap(nil, &id)

	s.persister.Enqueue(t)
	s.log.InfoContext(ctx, "tournament created", "id", id, "format", in.Format, "teams", len(teams), "matches", len(t.Matches))
	return t, nil
}

// Restore registers a tournament loaded from storage.
func (s *TournamentService) Restore(t *bracket.Tournament) {
	if t.TimerDefault <= 0 {
		t.TimerDefault = s.timerDefault
	}
	t.Timer = timer.Stopped(t.TimerDefault)
	e := &tournamentEntry{}
	e.state.Store(t)
	s.tournaments.Store(t.ID, e)
	id := t.ID
	s.active.CompareAndSwap(nil, &id)
}

func (s *TournamentService) entry(id uuid.UUID) (*tournamentEntry, error) {
	v, ok := s.tournaments.Load(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", bracket.ErrTournamentNotFound, id)
	}
	return v.(*tournamentEntry), nil
}

// Tournament returns the latest committed snapshot without locking.
func (s *TournamentService) Tournament(id uuid.UUID) (*bracket.Tournament, error) {
	e, err := s.entry(id)
	if err != nil {
		return nil, err
	}
	return e.state.Load(), nil
}

func (s *TournamentService) List() []*bracket.Tournament {
	var out []*bracket.Tournament
	s.tournaments.Range(func(_, v any) bool {
		out = append(out, v.(*tournamentEntry).state.Load())
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *TournamentService) SetActive(id uuid.UUID) (*bracket.Tournament, error) {
	t, err := s.Tournament(id)
	if err != nil {
		return nil, err
	}
	s.active.Store(&id)
	s.publisher.Publish(session.Event{Type: session.EventActiveTournament, Payload: map[string]uuid.UUID{"tournament_id": id}})
	return t, nil
}

func (s *TournamentService) Active() (*bracket.Tournament, error) {
	id := s.active.Load()
	if id == nil {
		return nil, fmt.Errorf("%w: no active tournament", bracket.ErrTournamentNotFound)
	}
	return s.Tournament(*id)
}

func (s *TournamentService) mutate(id uuid.UUID, fn func(x *txn) error) (*bracket.Tournament, error) {
	e, err := s.entry(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	current := e.state.Load()
	x := &txn{t: current.Clone(), now: s.now(), log: s.log}
	if err := fn(x); err != nil {
		s.metrics.ControlRejected(bracket.ErrorKind(err))
		return nil, err
	}
	if !x.changed {
		return current, nil
	}

	x.t.Version = current.Version + 1
	e.state.Store(x.t)

	if !x.skipPersist {
		s.persister.Enqueue(x.t)
	}
	for _, ev := range x.events {
		ev.Version = x.t.Version
		s.publisher.Publish(ev)
	}
	return x.t, nil
}

func (s *TournamentService) mutateMatch(id, matchID uuid.UUID, fn func(x *txn, m *bracket.Match) error) (*bracket.Tournament, error) {
	return s.mutate(id, func(x *txn) error {
		m, err := x.t.Match(matchID)
		if err != nil {
			return err
		}
		return fn(x, m)
	})
}

func (s *TournamentService) SetScore(id, matchID uuid.UUID, slot, value int) (*bracket.Tournament, error) {
	return s.mutateMatch(id, matchID, func(x *txn, m *bracket.Match) error {
		if err := m.SetScore(slot, value); err != nil {
			return err
		}
		x.markStarted()
		x.emitMatch(session.EventScoreUpdate, m)
		return nil
	})
}

func (s *TournamentService) AddPoint(id, matchID uuid.UUID, slot int) (*bracket.Tournament, error) {
	return s.mutateMatch(id, matchID, func(x *txn, m *bracket.Match) error {
		if err := m.AddPoint(slot); err != nil {
			return err
		}
		x.markStarted()
		x.emitMatch(session.EventScoreUpdate, m)
		return nil
	})
}

// DetermineWinner decides the match from its score (or forceSlot, 1 or 2)
// and completes it. A tie without forceSlot is rejected.
func (s *TournamentService) DetermineWinner(id, matchID uuid.UUID, forceSlot int) (*bracket.Tournament, error) {
	return s.mutateMatch(id, matchID, func(x *txn, m *bracket.Match) error {
		winner, err := m.DecideWinner(forceSlot)
		if err != nil {
			return err
		}
		return x.completeMatch(m, winner)
	})
}

func (s *TournamentService) CompleteMatch(id, matchID, winnerID uuid.UUID) (*bracket.Tournament, error) {
	return s.mutateMatch(id, matchID, func(x *txn, m *bracket.Match) error {
		return x.completeMatch(m, winnerID)
	})
}

func (s *TournamentService) ResetMatch(id, matchID uuid.UUID) (*bracket.Tournament, error) {
	return s.mutateMatch(id, matchID, func(x *txn, m *bracket.Match) error {
		return x.resetMatch(m)
	})
}

func (s *TournamentService) SwapTeams(id, matchID uuid.UUID) (*bracket.Tournament, error) {
	return s.mutateMatch(id, matchID, func(x *txn, m *bracket.Match) error {
		return x.swapTeams(m)
	})
}

func (s *TournamentService) SetCurrentMatch(id, matchID uuid.UUID) (*bracket.Tournament, error) {
	return s.mutateMatch(id, matchID, func(x *txn, m *bracket.Match) error {
		switch m.State {
		case bracket.MatchCompleted:
			return fmt.Errorf("%w: match %s", bracket.ErrAlreadyCompleted, m.ID)
		case bracket.MatchPending:
			return fmt.Errorf("%w: match %s is waiting for teams", bracket.ErrMatchNotReady, m.ID)
		}
		x.setCurrent(m)
		return nil
	})
}

func (s *TournamentService) Standings(id uuid.UUID) ([]bracket.Standing, error) {
	t, err := s.Tournament(id)
	if err != nil {
		return nil, err
	}
	return standingsFor(t), nil
}

func (s *TournamentService) State(id uuid.UUID) (State, error) {
	t, err := s.Tournament(id)
	if err != nil {
		return State{}, err
	}
	return BuildState(t), nil
}
