// Package timer implements the authoritative per-question countdown.
// Grounded on the teacher's pkg/websocket Hub.StartTimerBroadcast /
// RedisHub.StartTimerBroadcast, which already compute remaining time by
// comparing wall-clock now against a fixed endTime rather than
// decrementing a counter — that drift-correction idea is generalized
// here into pause/resume/reset semantics spec.md's teacher lacks.
package timer

import (
	"sync"
	"time"
)

// Timer drives one question's countdown. Every tick is computed from
// wall-clock time against EndTime, so a delayed goroutine schedule never
// accumulates drift the way a naive "sleep 1s, subtract 1" loop would.
type Timer struct {
	mu sync.Mutex

	endTime     time.Time
	remaining   time.Duration // remaining duration at the moment of the last pause
	paused      bool
	stopped     bool
	fired       bool
	totalDur    time.Duration
	tickFn      func(remaining time.Duration)
	expireFn    func()
	tickEvery   time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// New creates a timer for a duration. tickFn is called at tickEvery
// cadence with the remaining duration; expireFn fires at most once, when
// a tick finds the countdown has reached zero. Stop never fires it.
func New(duration time.Duration, tickEvery time.Duration, tickFn func(time.Duration), expireFn func()) *Timer {
	return &Timer{
		endTime:   time.Now().Add(duration),
		totalDur:  duration,
		tickFn:    tickFn,
		expireFn:  expireFn,
		tickEvery: tickEvery,
		stopCh:    make(chan struct{}),
	}
}

// Start begins the tick loop in the caller's goroutine. Callers
// typically invoke this via `go timer.Start()`. It fires one tick
// immediately with the full duration before the tickEvery schedule
// begins, so a countdown of N seconds emits exactly N+1 ticks (N down
// to 0) instead of starting one interval late.
func (t *Timer) Start() {
	if t.tick() {
		return
	}

	ticker := time.NewTicker(t.tickEvery)
	defer ticker.Stop()

	for {
		select {
		case <-t.stopCh:
			return
		case <-ticker.C:
			if t.tick() {
				return
			}
		}
	}
}

// tick computes the remaining duration and fires callbacks; it returns
// true once the timer has expired and the loop should exit.
func (t *Timer) tick() bool {
	t.mu.Lock()
	if t.stopped || t.fired {
		t.mu.Unlock()
		return true
	}
	if t.paused {
		remaining := t.remaining
		t.mu.Unlock()
		t.tickFn(remaining)
		return false
	}

	remaining := time.Until(t.endTime)
	if remaining <= 0 {
		t.fired = true
		t.mu.Unlock()
		t.tickFn(0)
		t.expireFn()
		return true
	}
	t.mu.Unlock()
	t.tickFn(remaining)
	return false
}

// Pause freezes the remaining duration so Resume can restore it exactly.
func (t *Timer) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.paused || t.stopped || t.fired {
		return
	}
	t.remaining = time.Until(t.endTime)
	if t.remaining < 0 {
		t.remaining = 0
	}
	t.paused = true
}

// Resume recomputes EndTime from the frozen remaining duration so the
// next tick's wall-clock comparison is correct.
func (t *Timer) Resume() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.paused || t.stopped || t.fired {
		return
	}
	t.endTime = time.Now().Add(t.remaining)
	t.paused = false
}

// Reset restarts the countdown at a new duration, unpausing if paused.
func (t *Timer) Reset(duration time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.totalDur = duration
	t.endTime = time.Now().Add(duration)
	t.paused = false
	t.fired = false
}

// Stop halts the tick loop without firing expireFn.
func (t *Timer) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
	t.stopOnce.Do(func() { close(t.stopCh) })
}

// Remaining returns the current remaining duration, accounting for pause.
func (t *Timer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.paused {
		return t.remaining
	}
	remaining := time.Until(t.endTime)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// EndTimeUnixMs returns the wall-clock deadline in epoch milliseconds,
// the value mirrored into model.Session.TimerEndTimeMs so a reconnecting
// client can compute its own remaining time without another round trip.
func (t *Timer) EndTimeUnixMs() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.paused {
		return 0
	}
	return t.endTime.UnixMilli()
}
