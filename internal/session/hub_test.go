package session

import (
	"testing"
	"time"

	"github.com/AdamBeresnev/tourney-live/internal/metrics"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, sub *Subscriber) (Event, bool) {
	t.Helper()
	select {
	case ev, ok := <-sub.C:
		return ev, ok
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}, false
}

func TestHubDeliversInOrder(t *testing.T) {
	hub := NewHub(8, nil, nil)
	defer hub.Close()

	tid := uuid.New()
	sub := hub.Subscribe(TournamentTopic(tid))
	for v := uint64(1); v <= 3; v++ {
		hub.Publish(Event{Type: EventScoreUpdate, TournamentID: tid, Version: v})
	}

	for v := uint64(1); v <= 3; v++ {
		ev, ok := receive(t, sub)
		require.True(t, ok)
		assert.Equal(t, v, ev.Version)
	}
}

func TestHubRoutesByTopic(t *testing.T) {
	hub := NewHub(8, nil, nil)
	defer hub.Close()

	tid := uuid.New()
	tournamentSub := hub.Subscribe(TournamentTopic(tid))
	sessionSub := hub.Subscribe(SessionTopic("ABC234"))

	hub.Publish(Event{Type: EventRefresh, SessionCode: "ABC234"})
	hub.Publish(Event{Type: EventScoreUpdate, TournamentID: tid})

	ev, _ := receive(t, sessionSub)
	assert.Equal(t, EventRefresh, ev.Type)
	ev, _ = receive(t, tournamentSub)
	assert.Equal(t, EventScoreUpdate, ev.Type)
}

func TestSlowSubscriberIsDropped(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	hub := NewHub(1, m, nil)
	defer hub.Close()

	tid := uuid.New()
	topic := TournamentTopic(tid)
	slow := hub.Subscribe(topic)
	fast := hub.Subscribe(topic)

	for i := 0; i < 5; i++ {
		hub.Publish(Event{Type: EventTimerTick, TournamentID: tid})
		_, ok := receive(t, fast)
		require.True(t, ok, "the fast subscriber gets everything")
	}

	// slow never read, so its buffer overflowed and it was closed after the first event
	ev, ok := <-slow.C
	assert.True(t, ok)
	assert.Equal(t, EventTimerTick, ev.Type)
	_, ok = <-slow.C
	assert.False(t, ok)
}

func TestUnsubscribeRemovesTopic(t *testing.T) {
	hub := NewHub(4, nil, nil)
	sub := hub.Subscribe("broadcast")
	assert.Equal(t, 1, hub.Subscribers("broadcast"))

	hub.Unsubscribe(sub)
	hub.Unsubscribe(sub)
	assert.Equal(t, 0, hub.Subscribers("broadcast"))

	// publishing to a topic without listeners is a no-op
	hub.Publish(Event{Type: EventRefresh})
}
