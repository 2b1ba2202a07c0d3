// Package session defines the session intermediate representation consumed
// by the compile and scene-activation command handlers.
package session

import "github.com/iltempo/oiduna-loop/internal/value"

// DefaultLoopSteps is the schema default for Environment.LoopSteps; the
// deep-merge override-wins-unless-default rule treats this value, not the
// zero value, as "unset".
const DefaultLoopSteps = 256

// Environment holds the global musical parameters of a session.
type Environment struct {
	BPM         float64
	Scale       string
	DefaultGate float64
	Swing       float64
	LoopSteps   int
	Chords      []string
}

// TrackParams and FxParams are sparse dynamic bags: a key's absence means
// "use the base layer's value", not "zero". This makes the override-wins
// merge a plain per-key overlay.
type TrackParams = value.Map
type FxParams = value.Map

// Track is one audio/OSC-routed voice in the session.
type Track struct {
	ID          string
	Mute        bool
	Solo        bool
	Params      TrackParams
	Fx          FxParams
	Sends       map[string]float64
	Modulations map[string]string
}

// Clone deep-copies a Track so callers may mutate the copy without
// disturbing whichever session layer owns the original.
func (t Track) Clone() Track {
	out := t
	out.Params = t.Params.Clone()
	out.Fx = t.Fx.Clone()
	if t.Sends != nil {
		out.Sends = make(map[string]float64, len(t.Sends))
		for k, v := range t.Sends {
			out.Sends[k] = v
		}
	}
	if t.Modulations != nil {
		out.Modulations = make(map[string]string, len(t.Modulations))
		for k, v := range t.Modulations {
			out.Modulations[k] = v
		}
	}
	return out
}

// MidiTrack is a MIDI-routed voice.
type MidiTrack struct {
	ID       string
	Mute     bool
	Solo     bool
	PortName string
	Channel  int
	Params   value.Map
}

func (t MidiTrack) Clone() MidiTrack {
	out := t
	out.Params = t.Params.Clone()
	return out
}

// Event is one scheduled occurrence inside an EventSequence.
type Event struct {
	Step   int
	Params value.Map
}

// EventSequence is the list of events bound to a track id.
type EventSequence struct {
	TrackID string
	Events  []Event
}

func (s EventSequence) Clone() EventSequence {
	out := EventSequence{TrackID: s.TrackID}
	if s.Events != nil {
		out.Events = make([]Event, len(s.Events))
		for i, e := range s.Events {
			out.Events[i] = Event{Step: e.Step, Params: e.Params.Clone()}
		}
	}
	return out
}

// Empty returns an EventSequence for the same track with no events, used
// by exclusive apply to clear non-targeted tracks.
func (s EventSequence) Empty() EventSequence {
	return EventSequence{TrackID: s.TrackID}
}

// MixerLine is a channel-strip level control.
type MixerLine struct {
	ID     string
	Volume float64
	Mute   bool
	Solo   bool
}

// Scene is a named, complete session snapshot that can become the new base
// layer via the scene command.
type Scene struct {
	Name    string
	Content Session
}

// ApplyTiming selects when a pending compile takes effect.
type ApplyTiming int

const (
	ApplyNow ApplyTiming = iota
	ApplyBeat
	ApplyBar
	ApplySeq
)

func (t ApplyTiming) String() string {
	switch t {
	case ApplyBeat:
		return "beat"
	case ApplyBar:
		return "bar"
	case ApplySeq:
		return "seq"
	default:
		return "now"
	}
}

// ParseApplyTiming maps the wire string to an ApplyTiming.
func ParseApplyTiming(s string) (ApplyTiming, bool) {
	switch s {
	case "", "now":
		return ApplyNow, true
	case "beat":
		return ApplyBeat, true
	case "bar":
		return ApplyBar, true
	case "seq":
		return ApplySeq, true
	default:
		return ApplyNow, false
	}
}

// ApplyCmd describes how and which tracks a compiled session should apply.
type ApplyCmd struct {
	Timing    ApplyTiming
	TrackIDs  []string
	SceneName string
}

// Session is the full intermediate representation: environment, tracks,
// MIDI tracks, event sequences, mixer lines, scenes, and an optional
// pending apply directive carried alongside a compile payload.
type Session struct {
	Environment Environment
	Tracks      map[string]Track
	TracksMidi  map[string]MidiTrack
	Sequences   map[string]EventSequence
	MixerLines  map[string]MixerLine
	Scenes      map[string]Scene
	Apply       *ApplyCmd
}

// New returns an empty Session with the default environment.
func New() Session {
	return Session{
		Environment: Environment{LoopSteps: DefaultLoopSteps},
		Tracks:      map[string]Track{},
		TracksMidi:  map[string]MidiTrack{},
		Sequences:   map[string]EventSequence{},
		MixerLines:  map[string]MixerLine{},
		Scenes:      map[string]Scene{},
	}
}

// Clone deep-copies a Session, including nested scenes.
func (s Session) Clone() Session {
	out := s
	out.Environment.Chords = append([]string(nil), s.Environment.Chords...)

	out.Tracks = make(map[string]Track, len(s.Tracks))
	for id, t := range s.Tracks {
		out.Tracks[id] = t.Clone()
	}
	out.TracksMidi = make(map[string]MidiTrack, len(s.TracksMidi))
	for id, t := range s.TracksMidi {
		out.TracksMidi[id] = t.Clone()
	}
	out.Sequences = make(map[string]EventSequence, len(s.Sequences))
	for id, seq := range s.Sequences {
		out.Sequences[id] = seq.Clone()
	}
	out.MixerLines = make(map[string]MixerLine, len(s.MixerLines))
	for id, m := range s.MixerLines {
		out.MixerLines[id] = m
	}
	out.Scenes = make(map[string]Scene, len(s.Scenes))
	for name, sc := range s.Scenes {
		out.Scenes[name] = Scene{Name: sc.Name, Content: sc.Content.Clone()}
	}
	if s.Apply != nil {
		applyCopy := *s.Apply
		applyCopy.TrackIDs = append([]string(nil), s.Apply.TrackIDs...)
		out.Apply = &applyCopy
	}
	return out
}

// ActiveTracks returns the audio tracks that should currently sound: only
// soloed tracks if any track is soloed, otherwise every non-muted track.
func ActiveTracks(tracks map[string]Track) []Track {
	var soloed []Track
	var unmuted []Track
	for _, t := range tracks {
		if t.Solo {
			soloed = append(soloed, t)
		}
		if !t.Mute {
			unmuted = append(unmuted, t)
		}
	}
	if len(soloed) > 0 {
		return soloed
	}
	return unmuted
}

// ActiveMidiTracks mirrors ActiveTracks for the MIDI track map.
func ActiveMidiTracks(tracks map[string]MidiTrack) []MidiTrack {
	var soloed []MidiTrack
	var unmuted []MidiTrack
	for _, t := range tracks {
		if t.Solo {
			soloed = append(soloed, t)
		}
		if !t.Mute {
			unmuted = append(unmuted, t)
		}
	}
	if len(soloed) > 0 {
		return soloed
	}
	return unmuted
}
