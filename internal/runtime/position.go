package runtime

import "time"

// LoopSteps is the fixed sequencer loop length: 256 steps, even though
// Environment.LoopSteps is carried separately for display.
const LoopSteps = 256

// Position is the sequencer's read head.
type Position struct {
	Step      int
	Beat      int
	Bar       uint32
	Timestamp time.Time
}

// Reset returns the head to step 0 at the given time.
func Reset(now time.Time) Position {
	return Position{Timestamp: now}
}

// Advance wraps Step modulo LoopSteps and recomputes Beat/Bar from it,
// stamping Timestamp with now: step' = (step+1) mod 256; beat' =
// (step'/4) mod 4; bar' = step'/16.
func (p Position) Advance(now time.Time) Position {
	step := (p.Step + 1) % LoopSteps
	return Position{
		Step:      step,
		Beat:      (step / 4) % 4,
		Bar:       uint32(step / 16),
		Timestamp: now,
	}
}
