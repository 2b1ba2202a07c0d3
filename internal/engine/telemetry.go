package engine

import (
	"github.com/iltempo/oiduna-loop/internal/session"
	"github.com/iltempo/oiduna-loop/internal/telemetry"
)

// publishStatus emits a STATUS telemetry event; called after every command
// handler that can change transport, tempo, track activity, or the scene
// catalog.
func (e *Engine) publishStatus() {
	active := e.state.ActiveTracks()
	ids := make([]string, 0, len(active))
	for _, t := range active {
		ids = append(ids, t.ID)
	}
	e.Telemetry.Publish(telemetry.Status(
		e.state.Playback().String(),
		e.state.BPM(),
		ids,
		e.state.SceneNames(),
		e.state.CurrentScene(),
		e.state.HasPending(),
	))
}

// publishTracks emits a TRACKS telemetry event summarizing every active
// track's mute/solo state and its first-16-step pattern encoding.
func (e *Engine) publishTracks() {
	eff := e.state.Effective()
	active := session.ActiveTracks(eff.Tracks)

	entries := make([]map[string]any, 0, len(active))
	for _, t := range active {
		seq := eff.Sequences[t.ID]
		entries = append(entries, map[string]any{
			"track_id": t.ID,
			"mute":     t.Mute,
			"solo":     t.Solo,
			"pattern":  encodePattern(seq),
		})
	}
	e.Telemetry.Publish(telemetry.Tracks(entries))
}

// encodePattern renders a track's first 16 steps as 4 hex nibbles, high
// bit first within each nibble, prefixed with "x" — e.g. a hit on step 0
// only is "x8000".
func encodePattern(seq session.EventSequence) string {
	var hit [16]bool
	for _, ev := range seq.Events {
		if ev.Step >= 0 && ev.Step < 16 {
			hit[ev.Step] = true
		}
	}

	out := make([]byte, 0, 5)
	out = append(out, 'x')
	for nibble := 0; nibble < 4; nibble++ {
		var v byte
		for bit := 0; bit < 4; bit++ {
			step := nibble*4 + bit
			v <<= 1
			if hit[step] {
				v |= 1
			}
		}
		out = append(out, hexDigit(v))
	}
	return string(out)
}

func hexDigit(v byte) byte {
	const digits = "0123456789abcdef"
	return digits[v&0xf]
}
