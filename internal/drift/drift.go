// Package drift implements the anchor+counter drift-corrected scheduling
// model shared by the step loop and the clock generator (the two run the
// same algorithm at different thresholds).
package drift

import (
	"sync"
	"time"
)

// Event reports what a single Tick observed.
type Event struct {
	Started      bool          // anchor was (re)established this tick; no drift measured
	Drift        time.Duration // signed: positive = behind schedule
	Reset        bool          // |drift| exceeded the reset threshold
	Suppressed   bool          // reset happened but the suppress latch ate the telemetry event
	Warning      bool          // |drift| exceeded the warning threshold but not the reset one
	SkippedSteps int           // only set on a non-suppressed reset
	Direction    string        // "behind" or "ahead"
}

// Stats is a point-in-time snapshot of accumulated drift statistics,
// exposed for telemetry/metrics.
type Stats struct {
	ResetCount        int
	MaxDriftMs        float64
	TotalSkippedSteps int
	LastResetDriftMs  float64
	CurrentStepCount  int64
	AnchorAge         time.Duration
}

// Tracker holds one loop's anchor, iteration counter, and accumulated
// statistics. It is safe for concurrent use, though in practice each
// Tracker is touched only by its own loop goroutine plus handlers that
// latch Suppress or call Reset from the command loop.
type Tracker struct {
	resetThreshold time.Duration
	warnThreshold  time.Duration

	mu             sync.Mutex
	anchor         time.Time
	k              int64
	suppress       bool
	maxDrift       time.Duration
	resetCount     int
	totalSkipped   int
	lastResetDrift time.Duration
}

// New builds a Tracker with the given reset/warning thresholds.
func New(resetThreshold, warnThreshold time.Duration) *Tracker {
	return &Tracker{resetThreshold: resetThreshold, warnThreshold: warnThreshold}
}

// Disable clears the anchor so the next Tick re-establishes it fresh; used
// when the owning loop is not currently playing.
func (t *Tracker) Disable() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.anchor = time.Time{}
	t.k = 0
}

// LatchSuppress arms the one-shot suppress flag so the next reset, if any,
// produces no telemetry event. Used after a BPM change.
func (t *Tracker) LatchSuppress() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.suppress = true
}

// Reset re-anchors immediately at now, as if a drift reset had just
// occurred, without touching statistics. Used when a BPM change forces
// both the step-loop and clock-generator anchors to restart in lockstep.
func (t *Tracker) Reset(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.anchor = now
	t.k = 1
}

// Tick evaluates drift for now against unit (step_duration or
// pulse_duration). It establishes the anchor on the first call after
// Disable, otherwise computes signed drift from the expected time,
// applies the reset/warning policy, and advances the
// anchor across a reset. It does not advance k on a non-reset tick —
// call Advance after the loop body runs.
func (t *Tracker) Tick(now time.Time, unit time.Duration) Event {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.anchor.IsZero() {
		t.anchor = now
		t.k = 0
		return Event{Started: true}
	}

	expected := t.anchor.Add(time.Duration(t.k) * unit)
	d := now.Sub(expected)
	abs := d
	if abs < 0 {
		abs = -abs
	}
	if abs > t.maxDrift {
		t.maxDrift = abs
	}

	direction := "behind"
	if d < 0 {
		direction = "ahead"
	}

	if abs > t.resetThreshold {
		suppressed := t.suppress
		t.suppress = false
		t.anchor = now
		t.k = 1
		if suppressed {
			return Event{Drift: d, Reset: true, Suppressed: true, Direction: direction}
		}
		t.resetCount++
		skipped := int(abs / unit)
		t.totalSkipped += skipped
		t.lastResetDrift = d
		return Event{Drift: d, Reset: true, SkippedSteps: skipped, Direction: direction}
	}
	if abs > t.warnThreshold {
		return Event{Drift: d, Warning: true, Direction: direction}
	}
	return Event{Drift: d, Direction: direction}
}

// Advance increments the iteration counter after a tick's loop body has
// run (k := k+1 happens after message dispatch).
func (t *Tracker) Advance() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.k++
}

// SleepFor returns how long the loop should sleep to hit the next expected
// time, floored at zero.
func (t *Tracker) SleepFor(now time.Time, unit time.Duration) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	expected := t.anchor.Add(time.Duration(t.k) * unit)
	d := expected.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Stats returns a snapshot of accumulated drift statistics. MaxDriftMs is
// preserved across Disable/re-establish (treated as a
// monitoring feature, see DESIGN.md), reset only by constructing a fresh
// Tracker.
func (t *Tracker) Stats(now time.Time) Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	age := time.Duration(0)
	if !t.anchor.IsZero() {
		age = now.Sub(t.anchor)
	}
	return Stats{
		ResetCount:        t.resetCount,
		MaxDriftMs:        float64(t.maxDrift) / float64(time.Millisecond),
		TotalSkippedSteps: t.totalSkipped,
		LastResetDriftMs:  float64(t.lastResetDrift) / float64(time.Millisecond),
		CurrentStepCount:  t.k,
		AnchorAge:         age,
	}
}
