// Package stepproc implements the legacy step-processing path: building
// outbound OSC events directly from the session IR's event sequences,
// run alongside the newer destination-routed path on every step.
package stepproc

import (
	"github.com/iltempo/oiduna-loop/internal/oscout"
	"github.com/iltempo/oiduna-loop/internal/session"
)

// StepProcessor holds only an OscOutput — no reference back to the engine
// or to RuntimeState.
type StepProcessor struct {
	out     oscout.Output
	address string
}

// New builds a StepProcessor that sends to a single fixed OSC address,
// matching the legacy source's hardcoded event address.
func New(out oscout.Output, address string) *StepProcessor {
	return &StepProcessor{out: out, address: address}
}

// ProcessStep emits one OSC event per active track whose event sequence
// has an event at step. Errors from individual sends are swallowed here
// (the sender already downgrades connection state); the caller treats a
// failed legacy send as a non-fatal I/O error.
func (p *StepProcessor) ProcessStep(tracks []session.Track, sequences map[string]session.EventSequence, step int) {
	for _, t := range tracks {
		seq, ok := sequences[t.ID]
		if !ok {
			continue
		}
		for _, ev := range seq.Events {
			if ev.Step != step {
				continue
			}
			args := make([]any, 0, len(ev.Params)*2+2)
			args = append(args, "track", t.ID)
			for k, v := range ev.Params {
				args = append(args, k, v.Any())
			}
			_ = p.out.SendEvent(p.address, args...)
		}
	}
}

// IsConnected reports whether the underlying OSC output believes its last
// send succeeded.
func (p *StepProcessor) IsConnected() bool { return p.out.IsConnected() }
