package timer

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimerExpiresExactlyOnce(t *testing.T) {
	var expireCount int32
	var ticks int32

	tm := New(30*time.Millisecond, 10*time.Millisecond,
		func(time.Duration) { atomic.AddInt32(&ticks, 1) },
		func() { atomic.AddInt32(&expireCount, 1) },
	)

	go tm.Start()
	time.Sleep(100 * time.Millisecond)
	tm.Stop()

	require.Equal(t, int32(1), atomic.LoadInt32(&expireCount), "expire callback must fire exactly once")
	require.Greater(t, atomic.LoadInt32(&ticks), int32(0))
}

func TestTimerFiresImmediateTickOnStart(t *testing.T) {
	tickCh := make(chan time.Duration, 1)
	tm := New(5*time.Second, time.Minute,
		func(remaining time.Duration) {
			select {
			case tickCh <- remaining:
			default:
			}
		},
		func() {},
	)
	defer tm.Stop()

	go tm.Start()

	select {
	case remaining := <-tickCh:
		require.InDelta(t, 5*time.Second, remaining, float64(50*time.Millisecond), "first tick must report the full duration")
	case <-time.After(200 * time.Millisecond):
		t.Fatal("expected an immediate tick before the first tickEvery interval elapsed")
	}
}

func TestTimerPauseFreezesRemaining(t *testing.T) {
	tm := New(200*time.Millisecond, 10*time.Millisecond, func(time.Duration) {}, func() {})
	go tm.Start()
	defer tm.Stop()

	time.Sleep(50 * time.Millisecond)
	tm.Pause()
	frozen := tm.Remaining()

	time.Sleep(80 * time.Millisecond)
	require.Equal(t, frozen, tm.Remaining(), "remaining must not change while paused")

	tm.Resume()
	time.Sleep(20 * time.Millisecond)
	require.Less(t, tm.Remaining(), frozen, "remaining must decrease again after resume")
}

func TestTimerResetRestartsCountdown(t *testing.T) {
	tm := New(20*time.Millisecond, 10*time.Millisecond, func(time.Duration) {}, func() {})
	defer tm.Stop()

	tm.Reset(500 * time.Millisecond)
	require.Greater(t, tm.Remaining(), 400*time.Millisecond)
}

func TestTimerStopPreventsExpiry(t *testing.T) {
	var expired int32
	tm := New(20*time.Millisecond, 5*time.Millisecond, func(time.Duration) {}, func() { atomic.AddInt32(&expired, 1) })
	go tm.Start()
	tm.Stop()
	time.Sleep(40 * time.Millisecond)
	require.Equal(t, int32(0), atomic.LoadInt32(&expired))
}
