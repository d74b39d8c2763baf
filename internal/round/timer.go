package round

import (
	"time"

	"github.com/freeeve/tworooms/internal/model"
)

// Timer is a pausable countdown. While running, remaining is derived on
// read from the start epoch; pausing freezes it. All methods assume the
// owning game's lock is held.
type Timer struct {
	duration   time.Duration
	remaining  time.Duration
	startEpoch time.Time
	state      model.TimerState

	// generation increments on every start/pause/resume/stop so late
	// callbacks scheduled against an earlier configuration can no-op.
	generation uint64
}

// Prepare sets the timer paused at its full duration without starting it.
func (t *Timer) Prepare(d time.Duration) {
	t.duration = d
	t.remaining = d
	t.state = model.TimerPaused
	t.generation++
}

// Start begins (or restarts) the countdown from the full duration.
func (t *Timer) Start(d time.Duration, now time.Time) {
	t.duration = d
	t.remaining = d
	t.startEpoch = now
	t.state = model.TimerRunning
	t.generation++
}

// Ignite transitions a prepared (paused, untouched) timer to running
// without resetting its remaining span.
func (t *Timer) Ignite(now time.Time) {
	if t.state != model.TimerPaused {
		return
	}
	t.startEpoch = now.Add(t.remaining - t.duration)
	t.state = model.TimerRunning
	t.generation++
}

// Pause freezes the remaining span.
func (t *Timer) Pause(now time.Time) {
	if t.state != model.TimerRunning {
		return
	}
	t.remaining = t.remainingAt(now)
	t.state = model.TimerPaused
	t.generation++
}

// Resume shifts the start epoch forward by the pause span and continues.
func (t *Timer) Resume(now time.Time) {
	if t.state != model.TimerPaused {
		return
	}
	t.startEpoch = now.Add(t.remaining - t.duration)
	t.state = model.TimerRunning
	t.generation++
}

// Stop halts the timer permanently. A stopped timer never fires.
func (t *Timer) Stop() {
	t.state = model.TimerStopped
	t.generation++
}

// remainingAt derives the live remaining span.
func (t *Timer) remainingAt(now time.Time) time.Duration {
	rem := t.duration - now.Sub(t.startEpoch)
	if rem < 0 {
		return 0
	}
	return rem
}

// Remaining returns the remaining span as observed at now.
func (t *Timer) Remaining(now time.Time) time.Duration {
	if t.state == model.TimerRunning {
		return t.remainingAt(now)
	}
	return t.remaining
}

// State returns the timer's lifecycle state.
func (t *Timer) State() model.TimerState { return t.state }

// Generation returns the current configuration generation.
func (t *Timer) Generation() uint64 { return t.generation }

// View snapshots the timer for public state.
func (t *Timer) View(now time.Time) model.TimerView {
	return model.TimerView{
		Duration:  t.duration,
		Remaining: t.Remaining(now),
		State:     t.state,
	}
}
