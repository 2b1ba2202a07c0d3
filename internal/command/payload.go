package command

import (
	"fmt"

	"github.com/iltempo/oiduna-loop/internal/message"
	"github.com/iltempo/oiduna-loop/internal/session"
)

// SessionPayload is the "session" command's body: a message batch to load
// directly into the scheduler.
type SessionPayload struct {
	Batch message.Batch
}

func (p SessionPayload) Validate() error { return p.Batch.Validate() }

// CompilePayload is the "compile" command's body: a full session IR with
// an optional apply directive.
type CompilePayload struct {
	Session session.Session
	Apply   *session.ApplyCmd
}

func (p CompilePayload) Validate() error { return nil }

// PlayPayload, StopPayload, PausePayload, MidiPanicPayload, PanicPayload,
// and ScenesPayload carry no fields; they exist so every command type has
// a uniform Payload shape.
type PlayPayload struct{}
type StopPayload struct{}
type PausePayload struct{}
type MidiPanicPayload struct{}
type PanicPayload struct{}
type ScenesPayload struct{}

// MuteSoloPayload is the "mute/solo" command's body. Exactly one of Mute,
// Solo should be non-nil in a single submission; the handler applies
// whichever is set.
type MuteSoloPayload struct {
	TrackID string
	Mute    *bool
	Solo    *bool
}

func (p MuteSoloPayload) Validate() error {
	if p.TrackID == "" {
		return fmt.Errorf("mute/solo: track_id is required")
	}
	if p.Mute == nil && p.Solo == nil {
		return fmt.Errorf("mute/solo: one of mute or solo must be set")
	}
	return nil
}

// BpmPayload is the "bpm" command's body.
type BpmPayload struct {
	BPM float64
}

func (p BpmPayload) Validate() error {
	if p.BPM <= 0 {
		return fmt.Errorf("bpm: must be > 0")
	}
	return nil
}

// MidiPortPayload is the "midi_port" command's body.
type MidiPortPayload struct {
	PortName string
}

func (p MidiPortPayload) Validate() error {
	if p.PortName == "" {
		return fmt.Errorf("midi_port: port_name is required")
	}
	return nil
}

// ScenePayload is the "scene" command's body.
type ScenePayload struct {
	Name string
}

func (p ScenePayload) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("scene: name is required")
	}
	return nil
}
