package destination

import (
	"fmt"

	"github.com/iltempo/oiduna-loop/internal/message"
	"github.com/iltempo/oiduna-loop/internal/midiout"
	"github.com/iltempo/oiduna-loop/internal/oscout"
	"github.com/iltempo/oiduna-loop/internal/value"
)

// DefaultGate is used for a MIDI-routed message that carries no "gate" of
// its own; it mirrors the 90%-of-step gate the original playback loop used.
const DefaultGate = 0.9

// PendingNoteOn describes a note-on a MidiSender has just fired; the
// caller (DestinationRouter/engine) registers it with the note scheduler
// so the matching note-off fires on time — "note-off is the caller's
// responsibility via NoteScheduler".
type PendingNoteOn struct {
	Channel uint8
	Note    uint8
	Gate    float64
}

// Sender transmits a batch of messages already grouped for one
// destination.
type Sender interface {
	Send(msgs []message.ScheduledMessage) ([]PendingNoteOn, error)
	IsConnected() bool
	Close() error
	Kind() string
}

// OscSender formats params as an alternating [key, value, ...] OSC
// argument list and transmits one packet per message.
type OscSender struct {
	client    *oscout.Client
	address   string
	useBundle bool
}

func NewOscSender(entry Entry) *OscSender {
	return &OscSender{
		client:    oscout.Dial(entry.Host, entry.Port),
		address:   entry.Address,
		useBundle: entry.UseBundle,
	}
}

func (s *OscSender) Send(msgs []message.ScheduledMessage) ([]PendingNoteOn, error) {
	var firstErr error
	for _, m := range msgs {
		args := flattenParams(m.Params)
		if err := s.client.SendEvent(s.address, args...); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}

// flattenParams turns the params bag into the conventional
// [key, value, key, value, ...] OSC argument list. Map iteration order is
// unspecified; only per-destination message ordering is guaranteed.
func flattenParams(params value.Map) []any {
	args := make([]any, 0, len(params)*2)
	for k, v := range params {
		args = append(args, k, v.Any())
	}
	return args
}

func (s *OscSender) IsConnected() bool { return s.client.IsConnected() }
func (s *OscSender) Close() error      { return s.client.Close() }
func (s *OscSender) Kind() string      { return "osc" }

// sendBundle is a reserved extension point; bundling is not
// required by any tested scenario.
func (s *OscSender) sendBundle(msgs []message.ScheduledMessage) error {
	return fmt.Errorf("osc bundle sending not implemented")
}

// MidiSender dispatches by which params keys a message carries: "note"
// fires a note-on (the caller schedules the matching note-off); "cc" sends
// a control change; "pitch_bend" sends a pitch bend. A message's own
// "channel" param overrides the destination's configured default.
type MidiSender struct {
	out            midiout.Output
	defaultChannel uint8
}

func NewMidiSender(out midiout.Output, defaultChannel int) *MidiSender {
	return &MidiSender{out: out, defaultChannel: uint8(defaultChannel)}
}

func (s *MidiSender) Send(msgs []message.ScheduledMessage) ([]PendingNoteOn, error) {
	var pending []PendingNoteOn
	var firstErr error

	for _, m := range msgs {
		channel := s.defaultChannel
		if c, ok := m.Params["channel"]; ok {
			if v, ok := c.IntValue(); ok {
				channel = uint8(v)
			}
		}

		if n, ok := m.Params["note"]; ok {
			note, _ := n.IntValue()
			velocity := int64(100)
			if v, ok := m.Params["velocity"]; ok {
				velocity, _ = v.IntValue()
			}
			gate := DefaultGate
			if g, ok := m.Params["gate"]; ok {
				if v, ok := g.FloatValue(); ok {
					gate = v
				}
			}
			if err := s.out.NoteOn(channel, uint8(note), uint8(velocity)); err != nil && firstErr == nil {
				firstErr = err
				continue
			}
			pending = append(pending, PendingNoteOn{Channel: channel, Note: uint8(note), Gate: gate})
		}
		if cc, ok := m.Params["cc"]; ok {
			ctrl, _ := cc.IntValue()
			val := int64(0)
			if v, ok := m.Params["cc_value"]; ok {
				val, _ = v.IntValue()
			}
			if err := s.out.ControlChange(channel, uint8(ctrl), uint8(val)); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		if pb, ok := m.Params["pitch_bend"]; ok {
			v, _ := pb.IntValue()
			if err := s.out.PitchBend(channel, int16(v)); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return pending, firstErr
}

func (s *MidiSender) IsConnected() bool { return s.out.IsConnected() }
func (s *MidiSender) Close() error      { return s.out.Close() }
func (s *MidiSender) Kind() string      { return "midi" }
