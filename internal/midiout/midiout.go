// Package midiout wraps gitlab.com/gomidi/midi/v2 behind the narrow
// MidiOutput interface that the note scheduler, clock generator, and
// engine depend on. No caller holds a reference back to a port beyond this
// package; thresholds and wiring are all supplied at construction time.
package midiout

import (
	"fmt"
	"sync"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // auto-register RtMIDI driver
)

// Output is the subset of MIDI behavior every loop component needs: note
// on/off, transport realtime bytes, continuous controllers, and liveness.
// NoteScheduler and ClockGenerator hold only this interface, never a
// concrete port or the engine.
type Output interface {
	NoteOn(channel, note, velocity uint8) error
	NoteOff(channel, note uint8) error
	ControlChange(channel, controller, value uint8) error
	PitchBend(channel uint8, value int16) error
	Aftertouch(channel, pressure uint8) error
	SendStart() error
	SendStop() error
	SendContinue() error
	SendClock() error
	AllNotesOff() error
	IsConnected() bool
	PortName() string
	Close() error
}

// ListPorts returns the names of the available MIDI output ports.
func ListPorts() []string {
	ports := midi.GetOutPorts()
	names := make([]string, len(ports))
	for i, p := range ports {
		names[i] = p.String()
	}
	return names
}

// Port is the gomidi-backed Output implementation. A Port is exclusively
// owned by whichever component opened it (exclusive
// ownership by MidiSender; all uses serialize through it").
type Port struct {
	mu        sync.Mutex
	port      drivers.Out
	send      func(msg midi.Message) error
	name      string
	connected bool
}

// Open opens a MIDI output port by index.
func Open(portIndex int) (*Port, error) {
	port, err := midi.OutPort(portIndex)
	if err != nil {
		return nil, fmt.Errorf("open midi port %d: %w", portIndex, err)
	}
	send, err := midi.SendTo(port)
	if err != nil {
		return nil, fmt.Errorf("open midi sender for port %d: %w", portIndex, err)
	}
	return &Port{port: port, send: send, name: port.String(), connected: true}, nil
}

// OpenByName opens the first output port whose name matches exactly.
func OpenByName(name string) (*Port, error) {
	ports := midi.GetOutPorts()
	for i, p := range ports {
		if p.String() == name {
			return Open(i)
		}
	}
	return nil, fmt.Errorf("midi port not found: %s", name)
}

func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = false
	return p.port.Close()
}

func (p *Port) PortName() string { return p.name }

func (p *Port) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

func (p *Port) sendLocked(msg midi.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	err := p.send(msg)
	if err != nil {
		p.connected = false
	}
	return err
}

func (p *Port) NoteOn(channel, note, velocity uint8) error {
	return p.sendLocked(midi.NoteOn(channel, note, velocity))
}

func (p *Port) NoteOff(channel, note uint8) error {
	return p.sendLocked(midi.NoteOff(channel, note))
}

func (p *Port) ControlChange(channel, controller, value uint8) error {
	return p.sendLocked(midi.ControlChange(channel, controller, value))
}

func (p *Port) PitchBend(channel uint8, value int16) error {
	return p.sendLocked(midi.Pitchbend(channel, value))
}

func (p *Port) Aftertouch(channel, pressure uint8) error {
	return p.sendLocked(midi.AfterTouch(channel, pressure))
}

func (p *Port) SendStart() error    { return p.sendLocked(midi.Start()) }
func (p *Port) SendStop() error     { return p.sendLocked(midi.Stop()) }
func (p *Port) SendContinue() error { return p.sendLocked(midi.Continue()) }
func (p *Port) SendClock() error    { return p.sendLocked(midi.TimingClock()) }

// AllNotesOff broadcasts CC 123 (all notes off) on every channel. This is
// the standard MIDI panic mechanism, simpler and more robust than tracking
// active notes, since it reaches notes this process never scheduled.
func (p *Port) AllNotesOff() error {
	for ch := uint8(0); ch < 16; ch++ {
		if err := p.ControlChange(ch, 123, 0); err != nil {
			return err
		}
	}
	return nil
}

// Null is a disconnected Output stand-in used when no MIDI port could be
// opened at start (a fatal startup error for one destination does
// not prevent the engine from starting). Every send is a silent no-op.
type Null struct{}

func (Null) NoteOn(uint8, uint8, uint8) error       { return nil }
func (Null) NoteOff(uint8, uint8) error              { return nil }
func (Null) ControlChange(uint8, uint8, uint8) error { return nil }
func (Null) PitchBend(uint8, int16) error            { return nil }
func (Null) Aftertouch(uint8, uint8) error           { return nil }
func (Null) SendStart() error                        { return nil }
func (Null) SendStop() error                         { return nil }
func (Null) SendContinue() error                     { return nil }
func (Null) SendClock() error                        { return nil }
func (Null) AllNotesOff() error                      { return nil }
func (Null) IsConnected() bool                       { return false }
func (Null) PortName() string                        { return "" }
func (Null) Close() error                             { return nil }
