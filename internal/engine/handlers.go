package engine

import (
	"fmt"
	"time"

	"github.com/iltempo/oiduna-loop/internal/command"
	"github.com/iltempo/oiduna-loop/internal/midiout"
	"github.com/iltempo/oiduna-loop/internal/runtime"
	"github.com/iltempo/oiduna-loop/internal/session"
	"github.com/iltempo/oiduna-loop/internal/telemetry"
)

// dispatch validates and routes one command to its handler, recovering
// from any handler panic so one bad command can't take a loop down.
func (e *Engine) dispatch(cmd command.Command) (result command.Result) {
	defer func() {
		if r := recover(); r != nil {
			e.publishError(telemetry.ErrCodeStepError, fmt.Sprintf("command handler panic: %v", r))
			result = command.Err(fmt.Sprintf("internal error: %v", r))
		}
	}()

	if v, ok := cmd.Payload.(interface{ Validate() error }); ok {
		if err := v.Validate(); err != nil {
			return command.Err(err.Error())
		}
	}

	switch cmd.Type {
	case command.TypeSession:
		return e.handleSession(cmd.Payload.(command.SessionPayload))
	case command.TypeCompile:
		return e.handleCompile(cmd.Payload.(command.CompilePayload))
	case command.TypePlay:
		return e.handlePlay()
	case command.TypeStop:
		return e.handleStop()
	case command.TypePause:
		return e.handlePause()
	case command.TypeMuteSolo:
		return e.handleMuteSolo(cmd.Payload.(command.MuteSoloPayload))
	case command.TypeBPM:
		return e.handleBPM(cmd.Payload.(command.BpmPayload))
	case command.TypeMidiPort:
		return e.handleMidiPort(cmd.Payload.(command.MidiPortPayload))
	case command.TypeMidiPanic:
		return e.handleMidiPanic()
	case command.TypePanic:
		return e.handlePanic()
	case command.TypeScene:
		return e.handleScene(cmd.Payload.(command.ScenePayload))
	case command.TypeScenes:
		return e.handleScenes()
	default:
		return command.Err(fmt.Sprintf("unknown command type: %s", cmd.Type))
	}
}

// handleSession loads a message batch directly into the scheduler,
// bypassing the session IR entirely, and sets the tempo it was compiled
// against.
func (e *Engine) handleSession(p command.SessionPayload) command.Result {
	if err := e.scheduler.Load(p.Batch); err != nil {
		return command.Err(err.Error())
	}
	e.state.SetBPM(p.Batch.BPM)
	e.publishStatus()
	return command.Ok("session loaded")
}

// handleCompile merges a compiled session IR into live state, either
// immediately or deferred to the requested apply boundary. A compile
// received while not playing always applies immediately, regardless of
// timing, since a stopped step loop never reaches a beat/bar/seq
// boundary to drain a pending apply.
func (e *Engine) handleCompile(p command.CompilePayload) command.Result {
	timing := session.ApplyNow
	var trackIDs []string
	var sceneName string
	if p.Apply != nil {
		timing = p.Apply.Timing
		trackIDs = p.Apply.TrackIDs
		sceneName = p.Apply.SceneName
	}

	if timing == session.ApplyNow || e.state.Playback() != runtime.Playing {
		e.state.ApplyCompiled(p.Session, trackIDs)
		if sceneName != "" {
			e.state.ApplyScene(sceneName)
		}
		e.publishStatus()
		e.publishTracks()
		return command.Ok("compiled session applied")
	}

	e.state.SetPending(runtime.PendingApply{
		Timing:     timing,
		Session:    p.Session,
		TrackIDs:   trackIDs,
		SceneName:  sceneName,
		ReceivedAt: time.Now(),
	})
	e.publishStatus()
	return command.Ok(fmt.Sprintf("compiled session queued for %s apply", timing))
}

// handlePlay transitions to Playing, resetting position on a cold start
// and resuming in place from Paused, and emits the matching MIDI
// transport message over the legacy port. The drift trackers are left
// alone: both loops disable their tracker while not playing, so the next
// tick finds an unset anchor and re-establishes k=0 with zero drift on
// its own, the same way a first tick ever does.
func (e *Engine) handlePlay() command.Result {
	transport := e.state.Play(time.Now())
	e.emitTransport(transport)
	e.publishStatus()
	return command.Ok("playing")
}

// handleStop halts playback, resets position to zero, clears any pending
// apply and queued note-offs, and sends MIDI Stop.
func (e *Engine) handleStop() command.Result {
	transport := e.state.Stop(time.Now())
	e.emitTransport(transport)
	_ = e.noteSched.ClearAll()
	e.publishStatus()
	return command.Ok("stopped")
}

// handlePause halts playback in place, preserving position; calling it
// while already stopped/paused is reported as a no-op success.
func (e *Engine) handlePause() command.Result {
	transport, err := e.state.Pause()
	if err != nil {
		return command.Ok("already paused or stopped")
	}
	e.emitTransport(transport)
	_ = e.noteSched.ClearAll()
	e.publishStatus()
	return command.Ok("paused")
}

func (e *Engine) emitTransport(t runtime.Transport) {
	switch t {
	case runtime.TransportStart:
		_ = e.legacyMidi.SendStart()
	case runtime.TransportContinue:
		_ = e.legacyMidi.SendContinue()
	case runtime.TransportStop:
		_ = e.legacyMidi.SendStop()
	}
}

// handleMuteSolo writes a mute/solo flag to the live-override layer.
func (e *Engine) handleMuteSolo(p command.MuteSoloPayload) command.Result {
	if err := e.state.SetMuteSolo(p.TrackID, p.Mute, p.Solo); err != nil {
		return command.Err(err.Error())
	}
	e.publishStatus()
	e.publishTracks()
	return command.Ok("mute/solo updated")
}

// handleBPM clamps and stores the new tempo, and — if it actually
// changed while playing — arms the suppress flag on both drift trackers
// so the expected recalibration doesn't surface as a telemetry reset.
func (e *Engine) handleBPM(p command.BpmPayload) command.Result {
	before := e.state.BPM()
	clamped := e.state.SetBPM(p.BPM)
	if clamped != before && e.state.Playback() == runtime.Playing {
		now := time.Now()
		e.stepTracker.LatchSuppress()
		e.stepTracker.Reset(now)
		e.clock.LatchSuppress()
		e.clock.ResetAnchor(now)
	}
	e.publishStatus()
	return command.OkData("bpm set", map[string]any{"bpm": clamped})
}

// handleMidiPort closes the current legacy MIDI output (if any) and opens
// the named one, repointing the note scheduler and clock generator at it
// without losing queued note-offs.
func (e *Engine) handleMidiPort(p command.MidiPortPayload) command.Result {
	port, err := midiout.OpenByName(p.PortName)
	if err != nil {
		return command.Err(fmt.Sprintf("midi_port: %v", err))
	}
	old := e.legacyMidi
	e.legacyMidi = port
	e.noteSched.SetOutput(port)
	e.clock.SetOutput(port)
	if old != nil {
		_ = old.Close()
	}
	return command.Ok(fmt.Sprintf("midi port switched to %s", p.PortName))
}

// handleMidiPanic sends an immediate all-notes-off on the legacy port and
// clears the note-off queue, without touching playback state.
func (e *Engine) handleMidiPanic() command.Result {
	if err := e.noteSched.ClearAll(); err != nil {
		return command.Err(err.Error())
	}
	return command.Ok("midi panic sent")
}

// handlePanic is the full panic: stop playback, reset position, clear any
// pending apply, and silence MIDI.
func (e *Engine) handlePanic() command.Result {
	e.state.Panic(time.Now())
	_ = e.noteSched.ClearAll()
	_ = e.legacyMidi.SendStop()
	e.publishStatus()
	return command.Ok("panic")
}

// handleScene activates a named scene immediately, discarding live
// overrides.
func (e *Engine) handleScene(p command.ScenePayload) command.Result {
	if !e.state.ApplyScene(p.Name) {
		return command.Err(fmt.Sprintf("unknown scene: %s", p.Name))
	}
	e.publishStatus()
	e.publishTracks()
	return command.Ok(fmt.Sprintf("scene %s activated", p.Name))
}

// handleScenes triggers a status update; the scene list travels as part
// of the status payload rather than this command's own reply.
func (e *Engine) handleScenes() command.Result {
	names := e.state.SceneNames()
	e.publishStatus()
	return command.OkData("scenes", map[string]any{"scenes": names})
}
