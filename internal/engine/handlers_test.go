package engine

import (
	"testing"
	"time"

	"github.com/iltempo/oiduna-loop/internal/command"
	"github.com/iltempo/oiduna-loop/internal/message"
	"github.com/iltempo/oiduna-loop/internal/runtime"
	"github.com/iltempo/oiduna-loop/internal/session"
	"github.com/iltempo/oiduna-loop/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchRejectsInvalidPayloadBeforeMutatingState(t *testing.T) {
	e, _ := newTestEngine(t)
	result := e.dispatch(command.Command{Type: command.TypeBPM, Payload: command.BpmPayload{BPM: -5}})
	assert.False(t, result.Success)
	assert.Equal(t, runtime.Stopped, e.state.Playback())
}

func TestDispatchUnknownCommandType(t *testing.T) {
	e, _ := newTestEngine(t)
	result := e.dispatch(command.Command{Type: "bogus", Payload: struct{}{}})
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "unknown command type")
}

func TestDispatchRoutesSceneCommandToHandler(t *testing.T) {
	e, _ := newTestEngine(t)
	result := e.dispatch(command.Command{Type: command.TypeScene, Payload: command.ScenePayload{Name: "missing"}})
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "unknown scene")
}

func TestHandlePlayFromStoppedResetsPositionAndSendsStart(t *testing.T) {
	e, fm := newTestEngine(t)
	result := e.handlePlay()
	assert.True(t, result.Success)
	assert.Equal(t, runtime.Playing, e.state.Playback())
	assert.Equal(t, 1, fm.starts)
}

func TestHandlePlayFromPausedSendsContinue(t *testing.T) {
	e, fm := newTestEngine(t)
	e.handlePlay()
	e.handlePause()
	fm.starts, fm.continues = 0, 0

	e.handlePlay()
	assert.Equal(t, 0, fm.starts)
	assert.Equal(t, 1, fm.continues)
}

func TestHandleStopClearsNoteQueueAndSendsStop(t *testing.T) {
	e, fm := newTestEngine(t)
	e.handlePlay()
	e.noteSched.EnqueueOff(0, 60, time.Second, 1.0)
	result := e.handleStop()
	assert.True(t, result.Success)
	assert.Equal(t, runtime.Stopped, e.state.Playback())
	assert.Equal(t, 0, e.noteSched.Len())
	assert.Equal(t, 1, fm.stops)
}

func TestHandlePauseWhenAlreadyStoppedIsNoOpSuccess(t *testing.T) {
	e, _ := newTestEngine(t)
	result := e.handlePause()
	assert.True(t, result.Success)
	assert.Contains(t, result.Message, "already")
}

func TestHandleBPMClampsAndArmsSuppressWhilePlaying(t *testing.T) {
	e, _ := newTestEngine(t)
	e.handlePlay()

	result := e.handleBPM(command.BpmPayload{BPM: 5000})
	assert.True(t, result.Success)
	assert.Equal(t, 999.0, result.Data["bpm"])
	assert.Equal(t, 999.0, e.state.BPM())

	// The next large drift on the step tracker is a silent reset.
	ev := e.stepTracker.Tick(time.Now().Add(time.Second), e.state.StepDuration())
	assert.True(t, ev.Reset)
	assert.True(t, ev.Suppressed)
}

func TestHandleBPMDoesNotArmSuppressWhenStopped(t *testing.T) {
	e, _ := newTestEngine(t)
	result := e.handleBPM(command.BpmPayload{BPM: 140})
	assert.True(t, result.Success)
	assert.Equal(t, 140.0, e.state.BPM())

	// With no latch armed, a large drift produces a reported reset.
	unit := e.state.StepDuration()
	now := time.Now()
	e.stepTracker.Tick(now, unit)
	ev := e.stepTracker.Tick(now.Add(time.Second), unit)
	assert.True(t, ev.Reset)
	assert.False(t, ev.Suppressed)
}

func TestHandleMuteSoloUnknownTrackFails(t *testing.T) {
	e, _ := newTestEngine(t)
	mute := true
	result := e.handleMuteSolo(command.MuteSoloPayload{TrackID: "ghost", Mute: &mute})
	assert.False(t, result.Success)
}

func TestHandleMuteSoloKnownTrackSucceeds(t *testing.T) {
	e, _ := newTestEngine(t)
	sess := session.New()
	sess.Tracks["kick"] = session.Track{ID: "kick"}
	e.state.ApplyCompiled(sess, nil)

	mute := true
	result := e.handleMuteSolo(command.MuteSoloPayload{TrackID: "kick", Mute: &mute})
	assert.True(t, result.Success)

	active := e.state.ActiveTracks()
	assert.Empty(t, active)
}

func TestHandleCompileAppliesImmediatelyWhenTimingNow(t *testing.T) {
	e, _ := newTestEngine(t)
	sess := session.New()
	sess.Tracks["kick"] = session.Track{ID: "kick"}

	result := e.handleCompile(command.CompilePayload{Session: sess})
	assert.True(t, result.Success)
	assert.Contains(t, e.state.Effective().Tracks, "kick")
	assert.False(t, e.state.HasPending())
}

func TestHandleCompileAppliesImmediatelyWhenNotPlayingRegardlessOfTiming(t *testing.T) {
	e, _ := newTestEngine(t)
	sess := session.New()
	sess.Tracks["kick"] = session.Track{ID: "kick"}

	result := e.handleCompile(command.CompilePayload{
		Session: sess,
		Apply:   &session.ApplyCmd{Timing: session.ApplyBar},
	})
	assert.True(t, result.Success)
	assert.False(t, e.state.HasPending())
	assert.Contains(t, e.state.Effective().Tracks, "kick")
}

func TestHandleCompileDefersWhenTimingNotNowWhilePlaying(t *testing.T) {
	e, _ := newTestEngine(t)
	e.handlePlay()
	sess := session.New()
	sess.Tracks["kick"] = session.Track{ID: "kick"}

	result := e.handleCompile(command.CompilePayload{
		Session: sess,
		Apply:   &session.ApplyCmd{Timing: session.ApplyBar},
	})
	assert.True(t, result.Success)
	assert.True(t, e.state.HasPending())
	assert.NotContains(t, e.state.Effective().Tracks, "kick")
}

func TestHandleSceneUnknownFails(t *testing.T) {
	e, _ := newTestEngine(t)
	result := e.handleScene(command.ScenePayload{Name: "missing"})
	assert.False(t, result.Success)
}

func TestHandleScenesReturnsSceneNames(t *testing.T) {
	e, _ := newTestEngine(t)
	result := e.handleScenes()
	assert.True(t, result.Success)
	_, ok := result.Data["scenes"]
	assert.True(t, ok)
}

func TestHandleMidiPanicClearsQueueWithoutTouchingPlayback(t *testing.T) {
	e, fm := newTestEngine(t)
	e.handlePlay()
	result := e.handleMidiPanic()
	assert.True(t, result.Success)
	assert.Equal(t, 1, fm.allNotesOff)
	assert.Equal(t, runtime.Playing, e.state.Playback())
}

func TestHandlePanicStopsAndSilencesMidi(t *testing.T) {
	e, fm := newTestEngine(t)
	e.handlePlay()
	result := e.handlePanic()
	assert.True(t, result.Success)
	assert.Equal(t, runtime.Stopped, e.state.Playback())
	assert.Equal(t, 1, fm.stops)
	assert.Equal(t, 1, fm.allNotesOff)
}

func TestHandleMidiPortFailsForUnknownPort(t *testing.T) {
	e, _ := newTestEngine(t)
	result := e.handleMidiPort(command.MidiPortPayload{PortName: "definitely-not-a-real-port-xyz"})
	assert.False(t, result.Success)
}

func TestHandleSessionLoadsBatchIntoScheduler(t *testing.T) {
	e, _ := newTestEngine(t)
	batch := validBatch()
	result := e.handleSession(command.SessionPayload{Batch: batch})
	assert.True(t, result.Success)
}

func TestHandleSessionSetsBPMFromBatch(t *testing.T) {
	e, _ := newTestEngine(t)
	batch := validBatch()
	batch.BPM = 90
	result := e.handleSession(command.SessionPayload{Batch: batch})
	assert.True(t, result.Success)
	assert.Equal(t, 90.0, e.state.BPM())
}

func TestHandleSessionRejectsInvalidBatch(t *testing.T) {
	e, _ := newTestEngine(t)
	batch := validBatch()
	batch.BPM = -1
	result := e.handleSession(command.SessionPayload{Batch: batch})
	assert.False(t, result.Success)
}

// validBatch builds a minimal valid message.Batch for session-command tests.
func validBatch() message.Batch {
	return message.Batch{
		BPM:           120,
		PatternLength: 16,
		Messages: []message.ScheduledMessage{
			{DestinationID: "drums", Step: 0, Params: value.Map{}},
		},
	}
}

func TestHandleMidiPortValidationRequiresPortName(t *testing.T) {
	p := command.MidiPortPayload{}
	require.Error(t, p.Validate())
}
