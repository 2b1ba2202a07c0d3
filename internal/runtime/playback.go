package runtime

// PlaybackState is the transport's coarse state machine.
type PlaybackState int

const (
	Stopped PlaybackState = iota
	Playing
	Paused
)

func (s PlaybackState) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "stopped"
	}
}

// Transport is a MIDI realtime transport message the engine must issue as
// the side effect of a playback-state transition.
type Transport int

const (
	TransportNone Transport = iota
	TransportStart
	TransportContinue
	TransportStop
)
