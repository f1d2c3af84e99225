package debounce

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
)

func received(d *Debouncer, wait time.Duration) bool {
	select {
	case <-d.C():
		return true
	case <-time.After(wait):
		return false
	}
}

func TestDebouncer_BurstFiresOnce(t *testing.T) {
	mock := clock.NewMock()
	d := New(time.Second, WithClock(mock))
	defer d.Stop()

	for range 5 {
		d.Trigger()
		mock.Add(40 * time.Millisecond)
	}
	assert.True(t, d.Pending())

	// 0.8s after the last trigger nothing has fired yet.
	mock.Add(800 * time.Millisecond)
	assert.False(t, received(d, 50*time.Millisecond))

	mock.Add(200 * time.Millisecond)
	assert.True(t, received(d, time.Second))
	assert.False(t, received(d, 50*time.Millisecond), "a burst must fire exactly once")
	assert.False(t, d.Pending())
}

func TestDebouncer_TriggerRestartsQuietPeriod(t *testing.T) {
	mock := clock.NewMock()
	d := New(time.Second, WithClock(mock))
	defer d.Stop()

	d.Trigger()
	mock.Add(900 * time.Millisecond)
	d.Trigger()
	mock.Add(900 * time.Millisecond)
	assert.False(t, received(d, 50*time.Millisecond))

	mock.Add(100 * time.Millisecond)
	assert.True(t, received(d, time.Second))
}

func TestDebouncer_SeparateBursts(t *testing.T) {
	mock := clock.NewMock()
	d := New(time.Second, WithClock(mock))
	defer d.Stop()

	d.Trigger()
	mock.Add(time.Second)
	assert.True(t, received(d, time.Second))

	d.Trigger()
	mock.Add(time.Second)
	assert.True(t, received(d, time.Second))
}

func TestDebouncer_Stop(t *testing.T) {
	mock := clock.NewMock()
	d := New(time.Second, WithClock(mock))

	d.Trigger()
	d.Stop()
	mock.Add(2 * time.Second)
	assert.False(t, received(d, 50*time.Millisecond))

	d.Trigger()
	assert.False(t, d.Pending())
}

func TestDebouncer_DefaultQuietPeriod(t *testing.T) {
	d := New(0)
	assert.Equal(t, DefaultQuietPeriod, d.quiet)
}
