package timer

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountdownReachesZeroOnce(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := Stopped(0)
	assert.Equal(t, DefaultDuration, s.Duration)

	s.Start(150*time.Second, now)
	require.True(t, s.Running)
	assert.Equal(t, 150, s.RemainingSeconds())

	expired := 0
	for i := 1; i <= 200; i++ {
		res := s.Tick(now.Add(time.Duration(i) * time.Second))
		if res == Expired {
			expired++
			assert.Equal(t, 150, i, "expiry should land on the 150th second")
		}
	}

	assert.Equal(t, 1, expired)
	assert.Equal(t, 0, s.RemainingSeconds())
	assert.False(t, s.Running)
	assert.True(t, s.Expired)
}

func TestPauseResume(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := Stopped(60 * time.Second)
	s.Start(0, now)

	assert.Equal(t, Ticked, s.Tick(now.Add(10*time.Second)))
	require.True(t, s.Pause(now.Add(15*time.Second)))
	assert.False(t, s.Pause(now.Add(16*time.Second)))

	// time passing while paused is not counted
	assert.Equal(t, Idle, s.Tick(now.Add(40*time.Second)))
	assert.Equal(t, 45, s.RemainingSeconds())

	require.True(t, s.Resume(now.Add(40*time.Second)))
	s.Tick(now.Add(45 * time.Second))
	assert.Equal(t, 40, s.RemainingSeconds())
}

func TestRepeatedTickIsHarmless(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := Stopped(30 * time.Second)
	s.Start(0, now)

	at := now.Add(5 * time.Second)
	s.Tick(at)
	s.Tick(at)
	assert.Equal(t, 25, s.RemainingSeconds())
}

func TestStopAndResume(t *testing.T) {
	now := time.Now()
	s := Stopped(30 * time.Second)
	s.Start(0, now)
	s.Stop()

	assert.Equal(t, 0, s.RemainingSeconds())
	assert.False(t, s.Resume(now), "a stopped timer has nothing left to resume")
}

func TestMarshalSeconds(t *testing.T) {
	s := Stopped(90 * time.Second)
	out, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"duration":90,"remaining":90,"running":false,"expired":false}`, string(out))
}
