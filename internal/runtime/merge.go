package runtime

import "github.com/iltempo/oiduna-loop/internal/session"

// DeepMerge produces the effective session from a base (scene_state) and an
// override (live_overrides) layer. Either may be nil, in which case the
// other is returned as-is (cloned).
func DeepMerge(base, override *session.Session) session.Session {
	if base == nil && override == nil {
		return session.New()
	}
	if base == nil {
		return override.Clone()
	}
	if override == nil {
		return base.Clone()
	}

	out := base.Clone()
	out.Environment = mergeEnvironment(base.Environment, override.Environment)

	for id, ot := range override.Tracks {
		if bt, ok := out.Tracks[id]; ok {
			out.Tracks[id] = mergeTrack(bt, ot)
		} else {
			out.Tracks[id] = ot.Clone()
		}
	}
	for id, ot := range override.TracksMidi {
		out.TracksMidi[id] = ot.Clone()
	}
	for id, seq := range override.Sequences {
		out.Sequences[id] = seq.Clone()
	}
	for id, ml := range override.MixerLines {
		out.MixerLines[id] = ml
	}
	for name, sc := range override.Scenes {
		out.Scenes[name] = session.Scene{Name: sc.Name, Content: sc.Content.Clone()}
	}
	if override.Apply != nil {
		applyCopy := *override.Apply
		out.Apply = &applyCopy
	}
	return out
}

// mergeEnvironment applies override-wins-unless-default per field. The
// schema default for each numeric field is its zero value except
// LoopSteps, whose default is session.DefaultLoopSteps.
func mergeEnvironment(base, override session.Environment) session.Environment {
	out := base
	if override.BPM != 0 {
		out.BPM = override.BPM
	}
	if override.Scale != "" {
		out.Scale = override.Scale
	}
	if override.DefaultGate != 0 {
		out.DefaultGate = override.DefaultGate
	}
	if override.Swing != 0 {
		out.Swing = override.Swing
	}
	if override.LoopSteps != 0 && override.LoopSteps != session.DefaultLoopSteps {
		out.LoopSteps = override.LoopSteps
	}
	if len(override.Chords) > 0 {
		out.Chords = append([]string(nil), override.Chords...)
	}
	return out
}

// mergeTrack merges Params/Fx per key (override wins for any key it
// supplies); Sends and Modulations are replaced wholesale when the
// override supplies any entries; Mute/Solo follow the override track
// verbatim, since those fields are only ever present in an override when a
// mute/solo command explicitly set them.
func mergeTrack(base, override session.Track) session.Track {
	out := base
	out.Mute = override.Mute
	out.Solo = override.Solo
	out.Params = mergeParams(base.Params, override.Params)
	out.Fx = mergeParams(base.Fx, override.Fx)
	if len(override.Sends) > 0 {
		out.Sends = override.Sends
	}
	if len(override.Modulations) > 0 {
		out.Modulations = override.Modulations
	}
	return out
}

func mergeParams(base, override session.TrackParams) session.TrackParams {
	if len(base) == 0 && len(override) == 0 {
		return nil
	}
	out := base.Clone()
	if out == nil {
		out = session.TrackParams{}
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}
