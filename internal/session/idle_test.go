package session

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdleTimerFiresOncePerArming(t *testing.T) {
	var fires atomic.Int32
	timer := NewIdleTimer(20*time.Millisecond, func() { fires.Add(1) })
	defer timer.Disarm()

	timer.Arm()
	require.Eventually(t, func() bool { return fires.Load() == 1 }, time.Second, 5*time.Millisecond)

	// No second fire without re-arming.
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), fires.Load())

	timer.Arm()
	require.Eventually(t, func() bool { return fires.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestIdleTimerTouchResetsCountdown(t *testing.T) {
	var fires atomic.Int32
	timer := NewIdleTimer(80*time.Millisecond, func() { fires.Add(1) })
	defer timer.Disarm()

	timer.Arm()
	for i := 0; i < 4; i++ {
		time.Sleep(40 * time.Millisecond)
		timer.Touch()
	}
	assert.Equal(t, int32(0), fires.Load(), "activity keeps the timer from firing")

	require.Eventually(t, func() bool { return fires.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestIdleTimerDisarm(t *testing.T) {
	var fires atomic.Int32
	timer := NewIdleTimer(30*time.Millisecond, func() { fires.Add(1) })

	timer.Arm()
	timer.Disarm()
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(0), fires.Load())

	// Touch on a disarmed timer does not re-arm it.
	timer.Touch()
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(0), fires.Load())
}

func TestIdleTimerSetTimeoutRestartsArmed(t *testing.T) {
	var fires atomic.Int32
	timer := NewIdleTimer(10*time.Second, func() { fires.Add(1) })
	defer timer.Disarm()

	timer.Arm()
	timer.SetTimeout(20 * time.Millisecond)
	require.Eventually(t, func() bool { return fires.Load() == 1 }, time.Second, 5*time.Millisecond)
}
