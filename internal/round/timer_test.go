package round

import (
	"testing"
	"time"

	"github.com/freeeve/tworooms/internal/model"
)

func TestTimerStartAndRemaining(t *testing.T) {
	var tm Timer
	now := time.Now()
	tm.Start(3*time.Minute, now)

	if tm.State() != model.TimerRunning {
		t.Fatalf("state = %s, want running", tm.State())
	}
	if rem := tm.Remaining(now.Add(time.Minute)); rem != 2*time.Minute {
		t.Errorf("remaining after 1m = %v, want 2m", rem)
	}
	if rem := tm.Remaining(now.Add(4 * time.Minute)); rem != 0 {
		t.Errorf("remaining past expiry = %v, want 0", rem)
	}
}

func TestTimerPauseFreezesRemaining(t *testing.T) {
	var tm Timer
	now := time.Now()
	tm.Start(3*time.Minute, now)
	tm.Pause(now.Add(time.Minute))

	if tm.State() != model.TimerPaused {
		t.Fatalf("state = %s, want paused", tm.State())
	}
	// Remaining does not decay while paused.
	if rem := tm.Remaining(now.Add(10 * time.Minute)); rem != 2*time.Minute {
		t.Errorf("paused remaining = %v, want 2m", rem)
	}
}

func TestTimerResumeContinuesFromPause(t *testing.T) {
	var tm Timer
	now := time.Now()
	tm.Start(3*time.Minute, now)
	tm.Pause(now.Add(time.Minute))
	tm.Resume(now.Add(5 * time.Minute))

	if rem := tm.Remaining(now.Add(6 * time.Minute)); rem != time.Minute {
		t.Errorf("remaining after resume+1m = %v, want 1m", rem)
	}
}

func TestTimerPrepareAndIgnite(t *testing.T) {
	var tm Timer
	tm.Prepare(3 * time.Minute)
	if tm.State() != model.TimerPaused {
		t.Fatalf("prepared state = %s, want paused", tm.State())
	}
	now := time.Now()
	tm.Ignite(now)
	if tm.State() != model.TimerRunning {
		t.Fatalf("ignited state = %s, want running", tm.State())
	}
	if rem := tm.Remaining(now); rem != 3*time.Minute {
		t.Errorf("remaining at ignition = %v, want full 3m", rem)
	}
}

func TestTimerIgniteOnlyFromPaused(t *testing.T) {
	var tm Timer
	now := time.Now()
	tm.Start(time.Minute, now)
	gen := tm.Generation()
	tm.Ignite(now)
	if tm.Generation() != gen {
		t.Error("ignite on a running timer must be a no-op")
	}
}

func TestTimerStopIsTerminal(t *testing.T) {
	var tm Timer
	tm.Start(time.Minute, time.Now())
	tm.Stop()
	if tm.State() != model.TimerStopped {
		t.Fatalf("state = %s, want stopped", tm.State())
	}
	tm.Resume(time.Now())
	if tm.State() != model.TimerStopped {
		t.Error("resume must not revive a stopped timer")
	}
}

func TestTimerGenerationGuardsLateCallbacks(t *testing.T) {
	var tm Timer
	now := time.Now()
	tm.Start(time.Minute, now)
	gen := tm.Generation()
	tm.Pause(now)
	if tm.Generation() == gen {
		t.Error("every state change must bump the generation")
	}
}

func TestTimerView(t *testing.T) {
	var tm Timer
	now := time.Now()
	tm.Start(2*time.Minute, now)
	view := tm.View(now.Add(30 * time.Second))
	if view.Duration != 2*time.Minute || view.Remaining != 90*time.Second || view.State != model.TimerRunning {
		t.Errorf("view = %+v", view)
	}
}
