package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/AdamBeresnev/tourney-live/internal/bracket"
	"github.com/AdamBeresnev/tourney-live/internal/metrics"
	"github.com/AdamBeresnev/tourney-live/internal/utils"
	"github.com/google/uuid"
)

const (
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultStaleThreshold    = 2 * time.Minute
	DefaultSweepInterval     = 30 * time.Second
)

var (
	ErrPairingNotFound = errors.New("no display with that pairing code")
	ErrSessionNotFound = errors.New("session not found")
)

type Role string

const (
	RoleDisplay    Role = "display"
	RoleController Role = "controller"
)

type Session struct {
	Code          string    `json:"code"`
	Role          Role      `json:"role"`
	LastHeartbeat time.Time `json:"last_heartbeat"`

	// Per-display overrides; empty values follow the tournament's display state
	Mode         bracket.DisplayMode `json:"mode,omitempty"`
	Message      string              `json:"message,omitempty"`
	WinnerTeamID *uuid.UUID          `json:"winner_team_id,omitempty"`

	// nil follows the active tournament
	TournamentID *uuid.UUID `json:"tournament_id,omitempty"`
	PairedWith   []string   `json:"paired_with,omitempty"`
}

func (s *Session) copy() Session {
	c := *s
	c.PairedWith = slices.Clone(s.PairedWith)
	if s.TournamentID != nil {
		id := *s.TournamentID
		c.TournamentID = &id
	}
	if s.WinnerTeamID != nil {
		id := *s.WinnerTeamID
		c.WinnerTeamID = &id
	}
	return c
}

type Publisher interface {
	Publish(ev Event)
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithStaleThreshold(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.staleAfter = d
		}
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// Manager is the session registry. Its lock is never held while publishing and
// is independent of any tournament lock.
type Manager struct {
	mu         sync.Mutex
	sessions   map[string]*Session
	publisher  Publisher
	now        func() time.Time
	staleAfter time.Duration
	metrics    *metrics.Metrics
	log        *slog.Logger
}

func NewManager(publisher Publisher, opts ...Option) *Manager {
	m := &Manager{
		sessions:   make(map[string]*Session),
		publisher:  publisher,
		now:        time.Now,
		staleAfter: DefaultStaleThreshold,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RegisterDisplay is the display's handshake: it gets a fresh pairing code.
func (m *Manager) RegisterDisplay(tournamentID *uuid.UUID) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var code string
	for attempt := 0; ; attempt++ {
		c, err := newCode()
		if err != nil {
			return Session{}, fmt.Errorf("generating pairing code: %w", err)
		}
		if _, taken := m.sessions[c]; !taken {
			code = c
			break
		}
		if attempt > 32 {
			return Session{}, errors.New("could not find a free pairing code")
		}
	}

	s := &Session{
		Code:          code,
		Role:          RoleDisplay,
		LastHeartbeat: m.now(),
		TournamentID:  tournamentID,
	}
	m.sessions[code] = s
	m.updateGauges()
	return s.copy(), nil
}

// registerController keeps a well formed code the browser already holds so its
// cookie and the registry agree. Caller holds mu.
func (m *Manager) registerController(code string) *Session {
	if _, err := uuid.Parse(code); err != nil {
		code = uuid.NewString()
	}
	s := &Session{
		Code:          code,
		Role:          RoleController,
		LastHeartbeat: m.now(),
	}
	m.sessions[s.Code] = s
	return s
}

// Pair links a controller to the display showing displayCode. An unknown
// controllerCode registers a controller under that code, an empty one under a
// new code.
func (m *Manager) Pair(controllerCode, displayCode string) (Session, error) {
	m.mu.Lock()
	display, ok := m.sessions[NormalizeCode(displayCode)]
	if !ok || display.Role != RoleDisplay {
		m.mu.Unlock()
		return Session{}, fmt.Errorf("%w: %q", ErrPairingNotFound, displayCode)
	}

	ctrl := m.controller(controllerCode)
	link(ctrl, display)
	ctrl.LastHeartbeat = m.now()
	m.updateGauges()
	out := ctrl.copy()
	m.mu.Unlock()

	m.publisher.Publish(Event{Type: EventControllerConnected, SessionCode: display.Code, Payload: map[string]string{"controller": out.Code}})
	return out, nil
}

// PairAll links the controller to every live display.
func (m *Manager) PairAll(controllerCode string) (Session, []string) {
	m.mu.Lock()
	ctrl := m.controller(controllerCode)
	now := m.now()
	var paired []string
	for _, s := range m.sessions {
		if s.Role == RoleDisplay && !m.stale(s, now) {
			link(ctrl, s)
			paired = append(paired, s.Code)
		}
	}
	sort.Strings(paired)
	ctrl.LastHeartbeat = now
	m.updateGauges()
	out := ctrl.copy()
	m.mu.Unlock()

	for _, code := range paired {
		m.publisher.Publish(Event{Type: EventControllerConnected, SessionCode: code, Payload: map[string]string{"controller": out.Code}})
	}
	return out, paired
}

// Unpair removes one link, or every link of the controller when displayCode is empty.
func (m *Manager) Unpair(controllerCode, displayCode string) error {
	m.mu.Lock()
	ctrl, ok := m.sessions[controllerCode]
	if !ok || ctrl.Role != RoleController {
		m.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrSessionNotFound, controllerCode)
	}

	targets := slices.Clone(ctrl.PairedWith)
	if displayCode != "" {
		targets = []string{NormalizeCode(displayCode)}
	}
	for _, code := range targets {
		unlink(ctrl, code)
		if d, ok := m.sessions[code]; ok {
			unlink(d, ctrl.Code)
		}
	}
	m.mu.Unlock()

	for _, code := range targets {
		m.publisher.Publish(Event{Type: EventControllerDisconnected, SessionCode: code, Payload: map[string]string{"controller": controllerCode}})
	}
	return nil
}

// Validate splits codes into live and stale/unknown ones.
func (m *Manager) Validate(codes []string) (active, stale []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for _, raw := range codes {
		code := NormalizeCode(raw)
		s, ok := m.sessions[code]
		if ok && s.Role == RoleDisplay && !m.stale(s, now) {
			active = append(active, code)
		} else {
			stale = append(stale, code)
		}
	}
	return active, stale
}

func (m *Manager) Heartbeat(code string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.lookup(code)
	if !ok {
		return Session{}, fmt.Errorf("%w: %q", ErrSessionNotFound, code)
	}
	s.LastHeartbeat = m.now()
	return s.copy(), nil
}

func (m *Manager) Get(code string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.lookup(code)
	if !ok {
		return Session{}, fmt.Errorf("%w: %q", ErrSessionNotFound, code)
	}
	return s.copy(), nil
}

func (m *Manager) Displays() []Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		if s.Role == RoleDisplay {
			out = append(out, s.copy())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

type DisplayOverride struct {
	Mode         *bracket.DisplayMode
	Message      *string
	WinnerTeamID *uuid.UUID
	TournamentID *uuid.UUID
	// Clear drops every override before applying the rest
	Clear bool
}

// UpdateDisplay changes what a single display shows and tells that display.
func (m *Manager) UpdateDisplay(code string, o DisplayOverride) (Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[NormalizeCode(code)]
	if !ok || s.Role != RoleDisplay {
		m.mu.Unlock()
		return Session{}, fmt.Errorf("%w: %q", ErrSessionNotFound, code)
	}

	if o.Clear {
		s.Mode, s.Message, s.WinnerTeamID = "", "", nil
	}
	if o.Mode != nil {
		s.Mode = *o.Mode
	}
	if o.Message != nil {
		s.Message = utils.Sanitize(*o.Message, utils.MaxMessageLen)
	}
	if o.WinnerTeamID != nil {
		s.WinnerTeamID = o.WinnerTeamID
	}
	retarget := o.TournamentID != nil && (s.TournamentID == nil || *s.TournamentID != *o.TournamentID)
	if o.TournamentID != nil {
		s.TournamentID = o.TournamentID
	}
	out := s.copy()
	m.mu.Unlock()

	m.publisher.Publish(Event{Type: EventTVCommand, SessionCode: out.Code, Payload: out})
	if retarget {
		// The display has to resubscribe to its new tournament
		m.publisher.Publish(Event{Type: EventRefresh, SessionCode: out.Code})
	}
	return out, nil
}

func (m *Manager) Refresh(code string) error {
	s, err := m.Get(code)
	if err != nil {
		return err
	}
	m.publisher.Publish(Event{Type: EventRefresh, SessionCode: s.Code})
	return nil
}

// Sweep evicts sessions whose last heartbeat is older than the stale threshold.
// Running it twice in a row is harmless.
func (m *Manager) Sweep() []Session {
	m.mu.Lock()
	now := m.now()
	var evicted []Session
	for code, s := range m.sessions {
		if m.stale(s, now) {
			evicted = append(evicted, s.copy())
			delete(m.sessions, code)
		}
	}
	for _, gone := range evicted {
		for _, code := range gone.PairedWith {
			if peer, ok := m.sessions[code]; ok {
				unlink(peer, gone.Code)
			}
		}
	}
	if len(evicted) > 0 {
		m.updateGauges()
	}
	m.mu.Unlock()

	if len(evicted) == 0 {
		return nil
	}
	m.metrics.SessionsEvicted(len(evicted))
	for _, s := range evicted {
		m.log.Info("session evicted", "code", s.Code, "role", s.Role, "last_heartbeat", s.LastHeartbeat)
		ev := Event{Type: EventSessionRemoved, Payload: map[string]string{"code": s.Code, "role": string(s.Role)}}
		if s.TournamentID != nil {
			ev.TournamentID = *s.TournamentID
		}
		m.publisher.Publish(ev)
		m.publisher.Publish(Event{Type: EventSessionRemoved, SessionCode: s.Code})
	}
	return evicted
}

// Run sweeps on a fixed period until ctx is done.
func (m *Manager) Run(ctx context.Context, every time.Duration) error {
	if every <= 0 {
		every = DefaultSweepInterval
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Controller codes are uuids and match as given, display codes in any case. Caller holds mu.
func (m *Manager) lookup(code string) (*Session, bool) {
	if s, ok := m.sessions[code]; ok {
		return s, true
	}
	s, ok := m.sessions[NormalizeCode(code)]
	return s, ok
}

func (m *Manager) stale(s *Session, now time.Time) bool {
	return now.Sub(s.LastHeartbeat) > m.staleAfter
}

// controller looks up a controller session, creating one when unknown. Caller holds mu.
func (m *Manager) controller(code string) *Session {
	s, ok := m.sessions[code]
	if ok && s.Role == RoleController {
		return s
	}
	if ok {
		// Never take over a display's code
		code = ""
	}
	return m.registerController(code)
}

// Caller holds mu.
func (m *Manager) updateGauges() {
	counts := map[Role]int{RoleDisplay: 0, RoleController: 0}
	for _, s := range m.sessions {
		counts[s.Role]++
	}
	for role, n := range counts {
		m.metrics.SetSessions(string(role), n)
	}
}

func link(ctrl, display *Session) {
	if !slices.Contains(ctrl.PairedWith, display.Code) {
		ctrl.PairedWith = append(ctrl.PairedWith, display.Code)
	}
	if !slices.Contains(display.PairedWith, ctrl.Code) {
		display.PairedWith = append(display.PairedWith, ctrl.Code)
	}
}

func unlink(s *Session, code string) {
	s.PairedWith = slices.DeleteFunc(s.PairedWith, func(c string) bool { return c == code })
}
