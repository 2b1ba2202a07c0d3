package runtime

import (
	"testing"
	"time"

	"github.com/iltempo/oiduna-loop/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStateDefaultsToStoppedAndDefaultBPM(t *testing.T) {
	s := New()
	assert.Equal(t, Stopped, s.Playback())
	assert.Equal(t, DefaultBPM, s.BPM())
}

func TestPlayFromStoppedResetsPositionAndSendsStart(t *testing.T) {
	s := New()
	s.AdvanceStep(time.Now()) // move off 0 so Play's reset is observable
	transport := s.Play(time.Now())
	assert.Equal(t, TransportStart, transport)
	assert.Equal(t, Playing, s.Playback())
	assert.Equal(t, 0, s.Position().Step)
}

func TestPlayFromPausedResumesInPlace(t *testing.T) {
	s := New()
	s.Play(time.Now())
	s.AdvanceStep(time.Now())
	s.AdvanceStep(time.Now())
	pos := s.Position()

	_, err := s.Pause()
	require.NoError(t, err)

	transport := s.Play(time.Now())
	assert.Equal(t, TransportContinue, transport)
	assert.Equal(t, pos.Step, s.Position().Step)
}

func TestPlayWhileAlreadyPlayingIsNoTransport(t *testing.T) {
	s := New()
	s.Play(time.Now())
	transport := s.Play(time.Now())
	assert.Equal(t, TransportNone, transport)
}

func TestPauseWhileStoppedErrors(t *testing.T) {
	s := New()
	_, err := s.Pause()
	assert.Error(t, err)
}

func TestStopClearsPendingAndResetsPosition(t *testing.T) {
	s := New()
	s.Play(time.Now())
	s.AdvanceStep(time.Now())
	s.SetPending(PendingApply{Timing: session.ApplyNow})

	transport := s.Stop(time.Now())
	assert.Equal(t, TransportStop, transport)
	assert.Equal(t, Stopped, s.Playback())
	assert.Equal(t, 0, s.Position().Step)
	assert.False(t, s.HasPending())
}

func TestSetBPMClampsToRange(t *testing.T) {
	s := New()
	assert.Equal(t, 1.0, s.SetBPM(-5))
	assert.Equal(t, 999.0, s.SetBPM(5000))
	assert.Equal(t, 140.0, s.SetBPM(140))
}

func TestSetMuteSoloRejectsUnknownTrack(t *testing.T) {
	s := New()
	mute := true
	err := s.SetMuteSolo("ghost", &mute, nil)
	assert.Error(t, err)
}

func TestSetMuteSoloWritesLiveOverride(t *testing.T) {
	s := New()
	sess := session.New()
	sess.Tracks["kick"] = session.Track{ID: "kick"}
	s.ApplyCompiled(sess, nil)

	mute := true
	require.NoError(t, s.SetMuteSolo("kick", &mute, nil))

	active := s.ActiveTracks()
	assert.Empty(t, active)
}

func TestApplyCompiledFullReplacesAllSequences(t *testing.T) {
	s := New()
	sess := session.New()
	sess.Tracks["kick"] = session.Track{ID: "kick"}
	sess.Tracks["snare"] = session.Track{ID: "snare"}
	sess.Sequences["kick"] = session.EventSequence{TrackID: "kick", Events: []session.Event{{Step: 0}}}
	sess.Sequences["snare"] = session.EventSequence{TrackID: "snare", Events: []session.Event{{Step: 4}}}
	s.ApplyCompiled(sess, nil)

	eff := s.Effective()
	assert.Len(t, eff.Sequences["kick"].Events, 1)
	assert.Len(t, eff.Sequences["snare"].Events, 1)
}

func TestApplyCompiledExclusiveEmptiesOtherKnownTracks(t *testing.T) {
	s := New()
	base := session.New()
	base.Tracks["kick"] = session.Track{ID: "kick"}
	base.Tracks["snare"] = session.Track{ID: "snare"}
	base.Sequences["snare"] = session.EventSequence{TrackID: "snare", Events: []session.Event{{Step: 4}}}
	s.ApplyCompiled(base, nil)

	patch := session.New()
	patch.Sequences["kick"] = session.EventSequence{TrackID: "kick", Events: []session.Event{{Step: 0}}}
	s.ApplyCompiled(patch, []string{"kick"})

	eff := s.Effective()
	assert.Len(t, eff.Sequences["kick"].Events, 1)
	assert.Empty(t, eff.Sequences["snare"].Events)
}

func TestApplyCompiledExclusivePreservesTrackDefinitionWhileClearingEvents(t *testing.T) {
	s := New()
	base := session.New()
	base.Tracks["snare"] = session.Track{ID: "snare", Mute: true}
	base.Sequences["snare"] = session.EventSequence{TrackID: "snare", Events: []session.Event{{Step: 4}}}
	s.ApplyCompiled(base, nil)

	patch := session.New()
	s.ApplyCompiled(patch, []string{"nonexistent"})

	eff := s.Effective()
	require.Contains(t, eff.Tracks, "snare")
	assert.Empty(t, eff.Sequences["snare"].Events)
}

func TestSetPendingResetsPassedNonZero(t *testing.T) {
	s := New()
	s.SetPending(PendingApply{Timing: session.ApplySeq, PassedNonZero: true})
	assert.False(t, s.ShouldApplyPending()) // position is still at step 0, and PassedNonZero was reset
}

func TestAdvanceStepLatchesPassedNonZeroOnPending(t *testing.T) {
	s := New()
	s.SetPending(PendingApply{Timing: session.ApplySeq})
	s.AdvanceStep(time.Now()) // moves to step 1, a non-zero step
	assert.False(t, s.ShouldApplyPending())

	for i := 0; i < LoopSteps-1; i++ {
		s.AdvanceStep(time.Now())
	}
	assert.True(t, s.ShouldApplyPending()) // wrapped back to step 0 with PassedNonZero latched
}

func TestApplyPendingReportsBPMChange(t *testing.T) {
	s := New()
	sess := session.New()
	sess.Environment.BPM = 150
	s.SetPending(PendingApply{Timing: session.ApplyNow, Session: sess})

	changed, ok := s.ApplyPending()
	assert.True(t, ok)
	assert.True(t, changed)
	assert.Equal(t, 150.0, s.BPM())
	assert.False(t, s.HasPending())
}

func TestApplyPendingNoBPMFieldReportsNoChange(t *testing.T) {
	s := New()
	s.SetPending(PendingApply{Timing: session.ApplyNow, Session: session.New()})
	changed, ok := s.ApplyPending()
	assert.True(t, ok)
	assert.False(t, changed)
}

func TestApplySceneDiscardsLiveOverridesAndSwitchesBase(t *testing.T) {
	s := New()
	sess := session.New()
	sceneContent := session.New()
	sceneContent.Tracks["lead"] = session.Track{ID: "lead"}
	sess.Scenes["verse"] = session.Scene{Name: "verse", Content: sceneContent}
	s.ApplyCompiled(sess, nil)

	require.True(t, s.ApplyScene("verse"))

	assert.Equal(t, "verse", s.CurrentScene())
	eff := s.Effective()
	require.Contains(t, eff.Tracks, "lead")
}

func TestApplySceneUnknownReturnsFalse(t *testing.T) {
	s := New()
	assert.False(t, s.ApplyScene("nope"))
}

func TestPanicResetsTransportAndClearsPending(t *testing.T) {
	s := New()
	s.Play(time.Now())
	s.SetPending(PendingApply{Timing: session.ApplyNow})
	s.Panic(time.Now())

	assert.Equal(t, Stopped, s.Playback())
	assert.Equal(t, 0, s.Position().Step)
	assert.False(t, s.HasPending())
}

func TestStepDurationAndPulseDuration(t *testing.T) {
	s := New()
	s.SetBPM(120)
	step := s.StepDuration()
	pulse := s.PulseDuration()
	assert.InDelta(t, 125*time.Millisecond, step, float64(time.Millisecond))
	assert.InDelta(t, step/6, pulse, float64(time.Microsecond))
}
