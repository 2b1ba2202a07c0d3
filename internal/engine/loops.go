package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/iltempo/oiduna-loop/internal/runtime"
	"github.com/iltempo/oiduna-loop/internal/session"
	"github.com/iltempo/oiduna-loop/internal/telemetry"
)

// commandLoop drains the command source with exponential backoff on an
// empty poll, capped at 50ms and reset to 1ms whenever a command was
// processed.
func (e *Engine) commandLoop(ctx context.Context) error {
	backoff := commandBackoffFloor
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		cmd, ok := e.commands.Process()
		if !ok {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > commandBackoffCeiling {
				backoff = commandBackoffCeiling
			}
			continue
		}

		backoff = commandBackoffFloor
		cmd.Reply(e.dispatch(cmd))
	}
}

// stepLoop is the 256-step drift-corrected sequencer loop.
func (e *Engine) stepLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		sleep := e.stepTick()
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(sleep):
		}
	}
}

func (e *Engine) stepTick() (sleep time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			e.publishError(telemetry.ErrCodeStepError, fmt.Sprintf("step loop panic: %v", r))
			sleep = notLoopIdleSleep
		}
	}()

	if e.state.Playback() != runtime.Playing {
		e.stepTracker.Disable()
		return notLoopIdleSleep
	}

	unit := e.state.StepDuration()
	now := time.Now()
	ev := e.stepTracker.Tick(now, unit)

	if !ev.Started {
		switch {
		case ev.Reset && !ev.Suppressed:
			e.publishError(telemetry.ErrCodeClockDriftReset,
				fmt.Sprintf("step loop drift reset, direction=%s, skipped_steps=%d", ev.Direction, ev.SkippedSteps))
			if e.metrics != nil {
				e.metrics.DriftResetTotal.WithLabelValues("step").Inc()
			}
		case ev.Warning:
			e.log.Warn().Dur("drift", ev.Drift).Msg("step loop drift warning")
		}
	}
	if e.metrics != nil {
		e.metrics.MaxDriftMs.WithLabelValues("step").Set(e.stepTracker.Stats(now).MaxDriftMs)
	}

	if e.state.ShouldApplyPending() {
		if bpmChanged, _ := e.state.ApplyPending(); bpmChanged {
			e.stepTracker.LatchSuppress()
			e.clock.LatchSuppress()
			e.clock.ResetAnchor(now)
		}
	}

	pos := e.state.Position()
	bpm := e.state.BPM()

	msgs := e.scheduler.At(pos.Step)
	for _, h := range e.hooks {
		msgs = h(msgs, bpm, pos.Step)
	}
	for _, p := range e.router.Send(msgs) {
		e.noteSched.EnqueueOff(p.Channel, p.Note, unit, p.Gate)
	}

	eff := e.state.Effective()
	e.stepProc.ProcessStep(session.ActiveTracks(eff.Tracks), eff.Sequences, pos.Step)

	if pos.Step%4 == 0 {
		bpmCopy := bpm
		e.Telemetry.Publish(telemetry.Position(pos.Step, pos.Beat, pos.Bar, pos.Timestamp, &bpmCopy, e.state.Playback().String()))
	}
	if pos.Step%16 == 0 {
		e.publishTracks()
	}

	e.stepTracker.Advance()
	e.state.AdvanceStep(time.Now())
	return e.stepTracker.SleepFor(time.Now(), unit)
}

// noteOffLoop retires due note-offs and sleeps adaptively.
func (e *Engine) noteOffLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					e.publishError(telemetry.ErrCodeStepError, fmt.Sprintf("note-off loop panic: %v", r))
				}
			}()
			e.noteSched.ProcessDue(time.Now())
		}()

		sleep := e.noteSched.AdaptiveSleep(time.Now())
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(sleep):
		}
	}
}

// heartbeatLoop publishes liveness every 5s and checks connection deltas
// emits a falling-edge connection-lost event.
func (e *Engine) heartbeatLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(HeartbeatInterval):
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					e.publishError(telemetry.ErrCodeStepError, fmt.Sprintf("heartbeat loop panic: %v", r))
				}
			}()
			e.checkConnections()
			e.Telemetry.Publish(telemetry.Heartbeat(time.Now()))
			if e.metrics != nil {
				e.metrics.HeartbeatTotal.Inc()
				e.metrics.QueueDepth.Set(float64(e.Telemetry.Len()))
				dropped := e.Telemetry.Dropped()
				if delta := dropped - e.lastDropped; delta > 0 {
					e.metrics.QueueDroppedTotal.Add(float64(delta))
				}
				e.lastDropped = dropped
			}
		}()
	}
}

// checkConnections diffs the previous and current connected state of
// every sender and emits a CONNECTION_LOST_* event on a falling edge.
func (e *Engine) checkConnections() {
	statuses := e.router.ConnectionStatus()
	statuses["__legacy_midi"] = e.legacyMidi.IsConnected()
	statuses["__legacy_osc"] = e.legacyOsc.IsConnected()

	for id, connected := range statuses {
		wasConnected, known := e.connPrev[id]
		if known && wasConnected && !connected {
			code := telemetry.ErrCodeConnectionLostOSC
			if id == "__legacy_midi" || e.router.SenderKind(id) == "midi" {
				code = telemetry.ErrCodeConnectionLostMIDI
			}
			e.publishError(code, fmt.Sprintf("connection lost: %s", id))
		}
		e.connPrev[id] = connected
		if e.metrics != nil {
			v := 0.0
			if connected {
				v = 1.0
			}
			e.metrics.ConnectionStatus.WithLabelValues(id).Set(v)
		}
	}
}
