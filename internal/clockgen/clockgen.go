// Package clockgen implements the 24-PPQ MIDI clock generator, sharing the
// drift-corrected scheduling model used by the step loop.
package clockgen

import (
	"context"
	"time"

	"github.com/iltempo/oiduna-loop/internal/drift"
	"github.com/iltempo/oiduna-loop/internal/midiout"
)

// Reset thresholds are tighter than the step loop's because pulses are
// finer-grained.
const (
	DriftResetThreshold   = 30 * time.Millisecond
	DriftWarningThreshold = 15 * time.Millisecond
)

// DriftEvent is forwarded to the caller's handler for telemetry/logging;
// it mirrors drift.Event so callers don't need to import the drift package.
type DriftEvent = drift.Event

// Generator emits one MIDI clock pulse every pulse_duration while playing.
// It holds only a midiout.Output, never a back-pointer to the engine.
type Generator struct {
	out     midiout.Output
	tracker *drift.Tracker

	// IsPlaying and PulseDuration are supplied by the caller each tick
	// rather than read from shared engine state, keeping this component
	// self-contained.
	IsPlaying     func() bool
	PulseDuration func() time.Duration

	OnDrift func(DriftEvent)
}

func New(out midiout.Output) *Generator {
	return &Generator{
		out:     out,
		tracker: drift.New(DriftResetThreshold, DriftWarningThreshold),
	}
}

// SetOutput repoints the generator at a newly (re)opened MIDI output.
func (g *Generator) SetOutput(out midiout.Output) { g.out = out }

// LatchSuppress arms the suppress flag, called by the engine right after a
// BPM change so the clock generator's own next reset stays silent.
func (g *Generator) LatchSuppress() { g.tracker.LatchSuppress() }

// ResetAnchor forces an immediate re-anchor, called alongside LatchSuppress.
func (g *Generator) ResetAnchor(now time.Time) { g.tracker.Reset(now) }

// Stats exposes the generator's own drift statistics.
func (g *Generator) Stats(now time.Time) drift.Stats { return g.tracker.Stats(now) }

// Run drives the pulse loop until ctx is cancelled.
func (g *Generator) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if !g.IsPlaying() {
			g.tracker.Disable()
			time.Sleep(time.Millisecond)
			continue
		}

		unit := g.PulseDuration()
		now := time.Now()
		ev := g.tracker.Tick(now, unit)
		if !ev.Started {
			if ev.Reset && !ev.Suppressed && g.OnDrift != nil {
				g.OnDrift(ev)
			}
		}

		_ = g.out.SendClock()

		g.tracker.Advance()
		sleep := g.tracker.SleepFor(time.Now(), unit)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(sleep):
		}
	}
}
