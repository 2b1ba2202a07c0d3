// Package runtime implements the layered session state machine: the
// scene/live-override merge, playback transitions, pending-apply
// evaluation, and the BPM-derived timing constants the loops schedule
// against.
package runtime

import (
	"fmt"
	"sync"
	"time"

	"github.com/iltempo/oiduna-loop/internal/session"
)

// DefaultBPM is used until a session or compile payload sets one; the
// source leaves this implicit, so picking a concrete default here is a
// reimplementation decision.
const DefaultBPM = 120.0

// State is the engine's layered session state: a scene base, a live
// override layer, the memoized merge of the two, transport position and
// state, and at most one pending apply.
type State struct {
	mu sync.Mutex

	sceneState    *session.Session
	liveOverrides *session.Session
	effective     *session.Session

	position     Position
	playback     PlaybackState
	pending      *PendingApply
	currentScene string
}

func New() *State {
	return &State{playback: Stopped}
}

func (s *State) invalidateLocked() {
	s.effective = nil
}

// Effective returns the memoized deep merge of scene_state and
// live_overrides, recomputing it if either layer changed since the last
// call.
func (s *State) Effective() session.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.effectiveLocked()
}

func (s *State) effectiveLocked() session.Session {
	if s.effective == nil {
		merged := DeepMerge(s.sceneState, s.liveOverrides)
		s.effective = &merged
	}
	return *s.effective
}

// BPM returns the effective tempo, defaulting to DefaultBPM when no session
// has set one.
func (s *State) BPM() float64 {
	eff := s.Effective()
	if eff.Environment.BPM <= 0 {
		return DefaultBPM
	}
	return eff.Environment.BPM
}

// StepDuration is 60/bpm/4 seconds per 16th-note step.
func (s *State) StepDuration() time.Duration {
	secs := 60.0 / s.BPM() / 4.0
	return time.Duration(secs * float64(time.Second))
}

// PulseDuration is StepDuration/6, i.e. 24 PPQ.
func (s *State) PulseDuration() time.Duration {
	return s.StepDuration() / 6
}

// SetBPM clamps to [1, 999] and stores it on the live-override layer.
func (s *State) SetBPM(bpm float64) float64 {
	if bpm < 1 {
		bpm = 1
	}
	if bpm > 999 {
		bpm = 999
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureOverridesLocked()
	s.liveOverrides.Environment.BPM = bpm
	s.invalidateLocked()
	return bpm
}

func isZeroEnvironment(e session.Environment) bool {
	return e.BPM == 0 && e.Scale == "" && e.DefaultGate == 0 && e.Swing == 0 &&
		e.LoopSteps == 0 && len(e.Chords) == 0
}

func (s *State) ensureOverridesLocked() {
	if s.liveOverrides == nil {
		fresh := session.New()
		s.liveOverrides = &fresh
	}
}

// Position returns the current read head.
func (s *State) Position() Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

// Playback returns the current transport state.
func (s *State) Playback() PlaybackState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playback
}

// ResetPosition returns the head to step 0.
func (s *State) ResetPosition(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.position = Reset(now)
}

// AdvanceStep moves the position forward one step and latches
// PassedNonZero on any pending apply once a non-zero step is observed.
func (s *State) AdvanceStep(now time.Time) Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.position = s.position.Advance(now)
	if s.pending != nil && s.position.Step != 0 {
		s.pending.PassedNonZero = true
	}
	return s.position
}

// Play transitions Stopped/Paused -> Playing, returning the MIDI transport
// message the caller must emit (TransportNone if already Playing).
func (s *State) Play(now time.Time) Transport {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.playback {
	case Stopped:
		s.playback = Playing
		s.position = Reset(now)
		return TransportStart
	case Paused:
		s.playback = Playing
		return TransportContinue
	default:
		return TransportNone
	}
}

// Stop transitions to Stopped, resetting position. Returns TransportStop if
// a transport message is due (i.e. playback was not already Stopped).
func (s *State) Stop(now time.Time) Transport {
	s.mu.Lock()
	defer s.mu.Unlock()
	wasPlaying := s.playback != Stopped
	s.playback = Stopped
	s.position = Reset(now)
	s.pending = nil
	if wasPlaying {
		return TransportStop
	}
	return TransportNone
}

// Pause transitions Playing -> Paused, preserving position.
func (s *State) Pause() (Transport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.playback != Playing {
		return TransportNone, fmt.Errorf("pause: not currently playing")
	}
	s.playback = Paused
	return TransportStop, nil
}

// Panic resets playback to Stopped and position to zero unconditionally.
func (s *State) Panic(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playback = Stopped
	s.position = Reset(now)
	s.pending = nil
}

// SetMuteSolo writes a mute or solo flag onto the live-override layer for
// trackID, creating a sparse override entry if one doesn't exist yet.
// Returns an error if trackID is not a known track in the effective
// session.
func (s *State) SetMuteSolo(trackID string, mute, solo *bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	eff := s.effectiveLocked()
	base, ok := eff.Tracks[trackID]
	if !ok {
		return fmt.Errorf("unknown track: %s", trackID)
	}

	s.ensureOverridesLocked()
	ov, exists := s.liveOverrides.Tracks[trackID]
	if !exists {
		ov = session.Track{ID: trackID, Mute: base.Mute, Solo: base.Solo}
	}
	if mute != nil {
		ov.Mute = *mute
	}
	if solo != nil {
		ov.Solo = *solo
	}
	s.liveOverrides.Tracks[trackID] = ov
	s.invalidateLocked()
	return nil
}

// ActiveTracks applies the solo/mute filter to the effective session.
func (s *State) ActiveTracks() []session.Track {
	eff := s.Effective()
	return session.ActiveTracks(eff.Tracks)
}

// ActiveMidiTracks mirrors ActiveTracks for MIDI tracks.
func (s *State) ActiveMidiTracks() []session.MidiTrack {
	eff := s.Effective()
	return session.ActiveMidiTracks(eff.TracksMidi)
}

// ApplyScene activates a named scene: it becomes the new scene_state, and
// any live overrides are discarded. Returns false if the scene is unknown.
func (s *State) ApplyScene(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	eff := s.effectiveLocked()
	scene, ok := eff.Scenes[name]
	if !ok {
		return false
	}
	content := scene.Content.Clone()
	s.sceneState = &content
	s.liveOverrides = nil
	s.currentScene = name
	s.invalidateLocked()
	return true
}

// CurrentScene returns the name of the last scene activated via ApplyScene
// or a pending scene apply, or "" if none has been.
func (s *State) CurrentScene() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentScene
}

// SceneNames lists the scenes known to the effective session, for the
// scenes/status telemetry payload.
func (s *State) SceneNames() []string {
	eff := s.Effective()
	names := make([]string, 0, len(eff.Scenes))
	for name := range eff.Scenes {
		names = append(names, name)
	}
	return names
}

// HasPending reports whether a compile is queued awaiting its apply
// boundary.
func (s *State) HasPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

// SetPending queues a compiled session for deferred application,
// replacing whatever was previously queued.
func (s *State) SetPending(p PendingApply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.PassedNonZero = false
	s.pending = &p
}

// ShouldApplyPending evaluates the queued apply's timing predicate against
// the current step.
func (s *State) ShouldApplyPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return false
	}
	return s.pending.ShouldApply(s.position.Step)
}

// ApplyPending merges the queued compile into the live-override layer and
// clears the pending slot, reporting whether BPM changed as a result.
func (s *State) ApplyPending() (bpmChanged bool, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return false, false
	}
	before := s.effectiveLocked().Environment.BPM
	s.applyCompiledLocked(s.pending.Session, s.pending.TrackIDs)
	if s.pending.SceneName != "" {
		if scene, exists := s.effectiveLocked().Scenes[s.pending.SceneName]; exists {
			content := scene.Content.Clone()
			s.sceneState = &content
			s.liveOverrides = nil
			s.currentScene = s.pending.SceneName
			s.invalidateLocked()
		}
	}
	s.pending = nil
	after := s.effectiveLocked().Environment.BPM
	return before != after, true
}

// ApplyCompiled merges a freshly compiled session into the live-override
// layer immediately (used by the compile handler's non-deferred path).
func (s *State) ApplyCompiled(sess session.Session, trackIDs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyCompiledLocked(sess, trackIDs)
}

// applyCompiledLocked implements the exclusive/full apply rule: empty
// trackIDs replaces every sequence in sess; non-empty trackIDs keeps
// only the named tracks' new events and empties every other known track's
// sequence while preserving its definition.
func (s *State) applyCompiledLocked(sess session.Session, trackIDs []string) {
	s.ensureOverridesLocked()
	lo := s.liveOverrides

	for id, t := range sess.Tracks {
		lo.Tracks[id] = t.Clone()
	}
	for id, t := range sess.TracksMidi {
		lo.TracksMidi[id] = t.Clone()
	}
	for id, m := range sess.MixerLines {
		lo.MixerLines[id] = m
	}
	for name, sc := range sess.Scenes {
		lo.Scenes[name] = session.Scene{Name: sc.Name, Content: sc.Content.Clone()}
	}
	if !isZeroEnvironment(sess.Environment) {
		lo.Environment = sess.Environment
	}

	if len(trackIDs) == 0 {
		for id, seq := range sess.Sequences {
			lo.Sequences[id] = seq.Clone()
		}
		s.invalidateLocked()
		return
	}

	wanted := make(map[string]struct{}, len(trackIDs))
	for _, id := range trackIDs {
		wanted[id] = struct{}{}
	}

	universe := map[string]struct{}{}
	if s.sceneState != nil {
		for id := range s.sceneState.Tracks {
			universe[id] = struct{}{}
		}
	}
	for id := range lo.Tracks {
		universe[id] = struct{}{}
	}

	for id := range universe {
		if _, want := wanted[id]; want {
			if seq, ok := sess.Sequences[id]; ok {
				lo.Sequences[id] = seq.Clone()
			}
			continue
		}
		if existing, ok := lo.Sequences[id]; ok {
			lo.Sequences[id] = existing.Empty()
		} else {
			lo.Sequences[id] = session.EventSequence{TrackID: id}
		}
	}
	s.invalidateLocked()
}
