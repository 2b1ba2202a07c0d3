// Package noteoff implements the note-off scheduler: it fires note-on
// immediately and retires the matching note-off once its gate has elapsed.
package noteoff

import (
	"sync"
	"time"

	"github.com/iltempo/oiduna-loop/internal/midiout"
)

// pendingOff is one queued note-off.
type pendingOff struct {
	offTime time.Time
	channel uint8
	note    uint8
}

// Scheduler holds pending note-offs and owns exactly one midiout.Output; it
// never references the engine.
type Scheduler struct {
	out midiout.Output

	mu      sync.Mutex
	pending []pendingOff
}

func New(out midiout.Output) *Scheduler {
	return &Scheduler{out: out}
}

// SetOutput repoints the scheduler at a newly (re)opened MIDI output,
// e.g. after a midi_port command. Previously queued note-offs are left
// pending against the new output.
func (s *Scheduler) SetOutput(out midiout.Output) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.out = out
}

// Schedule emits a note-on now and enqueues the matching note-off at
// now + stepDuration*gate.
func (s *Scheduler) Schedule(channel, note, velocity uint8, stepDuration time.Duration, gate float64) error {
	if err := s.out.NoteOn(channel, note, velocity); err != nil {
		return err
	}
	s.EnqueueOff(channel, note, stepDuration, gate)
	return nil
}

// EnqueueOff enqueues a note-off without sending a note-on, for callers
// (the destination router's MidiSender) that already transmitted the
// note-on themselves and only need the matching release scheduled.
func (s *Scheduler) EnqueueOff(channel, note uint8, stepDuration time.Duration, gate float64) {
	off := time.Duration(float64(stepDuration) * gate)
	s.mu.Lock()
	s.pending = append(s.pending, pendingOff{
		offTime: time.Now().Add(off),
		channel: channel,
		note:    note,
	})
	s.mu.Unlock()
}

// ProcessDue sends note-off for every pending entry whose time has come,
// iterating in reverse so in-place removal doesn't skip elements.
func (s *Scheduler) ProcessDue(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.pending) - 1; i >= 0; i-- {
		if !s.pending[i].offTime.After(now) {
			p := s.pending[i]
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			_ = s.out.NoteOff(p.channel, p.note)
		}
	}
}

// NextOffTime returns the earliest pending off time, or false if the queue
// is empty.
func (s *Scheduler) NextOffTime() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return time.Time{}, false
	}
	min := s.pending[0].offTime
	for _, p := range s.pending[1:] {
		if p.offTime.Before(min) {
			min = p.offTime
		}
	}
	return min, true
}

// AdaptiveSleep computes how long the note-off loop should sleep before its
// next ProcessDue call: the time until the next pending off, floored at
// 1ms and capped at 10ms.
func (s *Scheduler) AdaptiveSleep(now time.Time) time.Duration {
	const floor = time.Millisecond
	const ceiling = 10 * time.Millisecond
	next, ok := s.NextOffTime()
	if !ok {
		return ceiling
	}
	d := next.Sub(now)
	if d < floor {
		return floor
	}
	if d > ceiling {
		return ceiling
	}
	return d
}

// ClearAll empties the queue and emits an all-notes-off, used on stop,
// pause, and panic.
func (s *Scheduler) ClearAll() error {
	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()
	return s.out.AllNotesOff()
}

// Len reports the number of pending note-offs, for tests and telemetry.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
