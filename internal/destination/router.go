// Package destination implements destination configuration, the
// destination router, and the OSC/MIDI senders it dispatches to.
package destination

import (
	"github.com/iltempo/oiduna-loop/internal/message"
	"github.com/iltempo/oiduna-loop/internal/midiout"
	"github.com/rs/zerolog"
)

// Router maps a destination id to the Sender that owns it. Send groups
// messages by destination, preserving per-destination arrival order, and
// makes no inter-destination ordering guarantee.
type Router struct {
	log       zerolog.Logger
	senders   map[string]Sender
	midiPorts map[string]midiout.Output // keyed by port_name, shared across midi senders on the same port
}

func NewRouter(log zerolog.Logger) *Router {
	return &Router{
		log:       log,
		senders:   map[string]Sender{},
		midiPorts: map[string]midiout.Output{},
	}
}

// Load (re)builds the sender set from cfg. A destination whose sender
// fails to construct (e.g. MIDI port open error) is simply not
// registered — this does not prevent startup.
func (r *Router) Load(cfg *Config) {
	for id, s := range r.senders {
		_ = s.Close()
		delete(r.senders, id)
	}
	// Closing a MIDI sender closes its port, so cached ports are reopened.
	r.midiPorts = map[string]midiout.Output{}

	for id, entry := range cfg.Destinations {
		switch entry.Type {
		case "osc":
			r.senders[id] = NewOscSender(entry)
		case "midi":
			port, ok := r.midiPorts[entry.PortName]
			if !ok {
				opened, err := midiout.OpenByName(entry.PortName)
				if err != nil {
					r.log.Warn().Str("destination", id).Str("port_name", entry.PortName).Err(err).
						Msg("midi destination port open failed, skipping")
					continue
				}
				port = opened
				r.midiPorts[entry.PortName] = port
			}
			r.senders[id] = NewMidiSender(port, entry.DefaultChannel)
		}
	}
}

// Send groups msgs by DestinationID and dispatches each group to its
// sender, aggregating any note-ons the MIDI senders want scheduled.
// Messages addressed to an unregistered destination are dropped with a
// warning log.
func (r *Router) Send(msgs []message.ScheduledMessage) []PendingNoteOn {
	byDest := make(map[string][]message.ScheduledMessage)
	order := make([]string, 0, len(r.senders))
	seen := make(map[string]bool)
	for _, m := range msgs {
		if !seen[m.DestinationID] {
			seen[m.DestinationID] = true
			order = append(order, m.DestinationID)
		}
		byDest[m.DestinationID] = append(byDest[m.DestinationID], m)
	}

	var pending []PendingNoteOn
	for _, id := range order {
		sender, ok := r.senders[id]
		if !ok {
			r.log.Warn().Str("destination", id).Msg("message addressed to unregistered destination, dropping")
			continue
		}
		got, err := sender.Send(byDest[id])
		if err != nil {
			r.log.Warn().Str("destination", id).Err(err).Msg("sender transmit failed")
		}
		pending = append(pending, got...)
	}
	return pending
}

// ConnectionStatus reports IsConnected() for every registered sender,
// keyed by destination id; used by the heartbeat loop's connection-delta
// check.
func (r *Router) ConnectionStatus() map[string]bool {
	out := make(map[string]bool, len(r.senders))
	for id, s := range r.senders {
		out[id] = s.IsConnected()
	}
	return out
}

// SenderKind reports the registered sender's transport kind ("midi" or
// "osc"), or "" if id is not registered.
func (r *Router) SenderKind(id string) string {
	if s, ok := r.senders[id]; ok {
		return s.Kind()
	}
	return ""
}

// Close closes every registered sender and shared MIDI port.
func (r *Router) Close() {
	for _, s := range r.senders {
		_ = s.Close()
	}
	for _, p := range r.midiPorts {
		_ = p.Close()
	}
}
