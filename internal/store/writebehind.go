package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/AdamBeresnev/tourney-live/internal/bracket"
	"github.com/AdamBeresnev/tourney-live/internal/metrics"
	"github.com/google/uuid"
)

const saveTimeout = 5 * time.Second

type Saver interface {
	SaveTournament(ctx context.Context, t *bracket.Tournament) error
}

// Archiver receives the final snapshot of every completed tournament.
type Archiver interface {
	Archive(ctx context.Context, t *bracket.Tournament) error
}

// WriteBehind persists committed snapshots off the engine's hot path. Only the
// newest pending snapshot per tournament is kept, so the queue is bounded by
// the number of tournaments no matter how fast they change.
type WriteBehind struct {
	saver    Saver
	archiver Archiver
	log      *slog.Logger
	metrics  *metrics.Metrics

	mu       sync.Mutex
	pending  map[uuid.UUID]*bracket.Tournament
	archived map[uuid.UUID]uint64
	wake     chan struct{}
}

func NewWriteBehind(saver Saver, archiver Archiver, m *metrics.Metrics, log *slog.Logger) *WriteBehind {
	if log == nil {
		log = slog.Default()
	}
	return &WriteBehind{
		saver:    saver,
		archiver: archiver,
		log:      log,
		metrics:  m,
		pending:  make(map[uuid.UUID]*bracket.Tournament),
		archived: make(map[uuid.UUID]uint64),
		wake:     make(chan struct{}, 1),
	}
}

// Enqueue never blocks. Snapshots are immutable once committed, so the
// pointer is stored as is.
func (w *WriteBehind) Enqueue(t *bracket.Tournament) {
	w.mu.Lock()
	if prev, ok := w.pending[t.ID]; !ok || prev.Version <= t.Version {
		w.pending[t.ID] = t
	}
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Run saves pending snapshots until ctx is done, then flushes what is left.
func (w *WriteBehind) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.Flush(context.WithoutCancel(ctx))
			return nil
		case <-w.wake:
			w.Flush(ctx)
		}
	}
}

// Flush writes every pending snapshot once.
func (w *WriteBehind) Flush(ctx context.Context) {
	w.mu.Lock()
	batch := w.pending
	w.pending = make(map[uuid.UUID]*bracket.Tournament)
	w.mu.Unlock()

	for _, t := range batch {
		w.save(ctx, t)
	}
}

func (w *WriteBehind) save(ctx context.Context, t *bracket.Tournament) {
	ctx, cancel := context.WithTimeout(ctx, saveTimeout)
	defer cancel()

	if err := w.saver.SaveTournament(ctx, t); err != nil {
		w.metrics.PersistFailed()
		w.log.Error("failed to persist tournament", "tournament", t.ID, "version", t.Version, "error", err)
		return
	}

	if w.archiver == nil || t.Status != bracket.TournamentCompleted {
		return
	}
	w.mu.Lock()
	done := w.archived[t.ID] >= t.Version
	w.mu.Unlock()
	if done {
		return
	}

	if err := w.archiver.Archive(ctx, t); err != nil {
		w.metrics.PersistFailed()
		w.log.Error("failed to archive tournament", "tournament", t.ID, "error", err)
		return
	}
	w.mu.Lock()
	w.archived[t.ID] = t.Version
	w.mu.Unlock()
	w.log.Info("tournament archived", "tournament", t.ID, "version", t.Version)
}

// Pending reports how many tournaments wait for a write.
func (w *WriteBehind) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}
