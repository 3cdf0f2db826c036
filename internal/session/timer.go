package session

import (
	"sync"
	"time"
)

// TimerState is the Session Timer state.
type TimerState string

const (
	TimerIdle    TimerState = "idle"
	TimerRunning TimerState = "running"
	TimerPaused  TimerState = "paused"
)

// Timer counts whole seconds of active time. Elapsed time survives Stop and
// is cleared only by Reset.
//
// With a positive tick the timer drives itself from a background ticker.
// With tick <= 0 nothing runs in the background and the owner calls Tick.
type Timer struct {
	tick time.Duration

	mu      sync.Mutex
	state   TimerState
	elapsed int
	quit    chan struct{}
	done    chan struct{}
}

// NewTimer constructs an idle timer.
func NewTimer(tick time.Duration) *Timer {
	return &Timer{tick: tick, state: TimerIdle}
}

// Start moves idle or paused to running. Elapsed time is kept.
func (t *Timer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == TimerRunning {
		return
	}
	t.state = TimerRunning
	if t.tick > 0 && t.quit == nil {
		t.quit = make(chan struct{})
		t.done = make(chan struct{})
		go t.loop(t.tick, t.quit, t.done)
	}
}

// Stop pauses a running timer. The periodic callback has stopped by the time
// Stop returns.
func (t *Timer) Stop() {
	t.mu.Lock()
	if t.state == TimerRunning {
		t.state = TimerPaused
	}
	quit, done := t.detach()
	t.mu.Unlock()
	halt(quit, done)
}

// Reset returns to idle with zero elapsed time from any state.
func (t *Timer) Reset() {
	t.mu.Lock()
	t.state = TimerIdle
	t.elapsed = 0
	quit, done := t.detach()
	t.mu.Unlock()
	halt(quit, done)
}

// Tick advances elapsed time by one second while running.
func (t *Timer) Tick() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == TimerRunning {
		t.elapsed++
	}
}

// Elapsed returns the elapsed whole seconds.
func (t *Timer) Elapsed() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.elapsed
}

// State returns the current state.
func (t *Timer) State() TimerState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Timer) detach() (chan struct{}, chan struct{}) {
	quit, done := t.quit, t.done
	t.quit, t.done = nil, nil
	return quit, done
}

func halt(quit, done chan struct{}) {
	if quit == nil {
		return
	}
	close(quit)
	<-done
}

func (t *Timer) loop(every time.Duration, quit <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-quit:
			return
		case <-ticker.C:
			select {
			case <-quit:
				return
			default:
			}
			t.Tick()
		}
	}
}
