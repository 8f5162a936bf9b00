package session

import (
	"log/slog"
	"sync"

	"github.com/AdamBeresnev/tourney-live/internal/metrics"
)

const (
	defaultSubscriberBuffer = 64
	topicBacklog            = 256
)

type Subscriber struct {
	C     <-chan Event
	ch    chan Event
	topic string
}

func (s *Subscriber) Topic() string { return s.topic }

type topic struct {
	in   chan Event
	mu   sync.Mutex
	subs map[*Subscriber]struct{}
}

// Hub fans events out per topic. Each topic has its own dispatcher goroutine,
// and every subscriber its own buffer: a subscriber whose buffer is full is
// dropped and its channel closed, so one slow display never holds up the rest.
type Hub struct {
	mu         sync.RWMutex
	topics     map[string]*topic
	bufferSize int
	metrics    *metrics.Metrics
	log        *slog.Logger
}

func NewHub(bufferSize int, m *metrics.Metrics, logger *slog.Logger) *Hub {
	if bufferSize <= 0 {
		bufferSize = defaultSubscriberBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		topics:     make(map[string]*topic),
		bufferSize: bufferSize,
		metrics:    m,
		log:        logger,
	}
}

// Publish never blocks. Events for topics nobody listens to are discarded.
func (h *Hub) Publish(ev Event) {
	h.metrics.EventPublished(ev.Type)

	h.mu.RLock()
	defer h.mu.RUnlock()

	t, ok := h.topics[ev.Topic()]
	if !ok {
		return
	}
	select {
	case t.in <- ev:
	default:
		h.metrics.EventDropped("topic_backlog")
		h.log.Warn("topic backlog full, dropping event", "topic", ev.Topic(), "type", ev.Type)
	}
}

func (h *Hub) Subscribe(name string) *Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()

	t, ok := h.topics[name]
	if !ok {
		t = &topic{in: make(chan Event, topicBacklog), subs: make(map[*Subscriber]struct{})}
		h.topics[name] = t
		go h.dispatch(name, t)
	}

	ch := make(chan Event, h.bufferSize)
	sub := &Subscriber{C: ch, ch: ch, topic: name}
	t.mu.Lock()
	t.subs[sub] = struct{}{}
	t.mu.Unlock()
	return sub
}

func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	t, ok := h.topics[sub.topic]
	if !ok {
		return
	}

	t.mu.Lock()
	if _, ok := t.subs[sub]; ok {
		delete(t.subs, sub)
		close(sub.ch)
	}
	empty := len(t.subs) == 0
	t.mu.Unlock()

	if empty {
		delete(h.topics, sub.topic)
		close(t.in)
	}
}

// Subscribers reports how many subscribers a topic currently has.
func (h *Hub) Subscribers(name string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	t, ok := h.topics[name]
	if !ok {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}

// Close drops every subscriber. Used on shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for name, t := range h.topics {
		t.mu.Lock()
		for sub := range t.subs {
			delete(t.subs, sub)
			close(sub.ch)
		}
		t.mu.Unlock()
		close(t.in)
		delete(h.topics, name)
	}
}

func (h *Hub) dispatch(name string, t *topic) {
	for ev := range t.in {
		t.mu.Lock()
		for sub := range t.subs {
			select {
			case sub.ch <- ev:
			default:
				delete(t.subs, sub)
				close(sub.ch)
				h.metrics.EventDropped("slow_subscriber")
				h.log.Warn("subscriber too slow, dropping", "topic", name)
			}
		}
		t.mu.Unlock()
	}
}
