// Package message defines the immutable scheduled-message record that
// flows from the compiled batch through the scheduler to the destination
// router.
package message

import (
	"fmt"

	"github.com/iltempo/oiduna-loop/internal/value"
)

// ScheduledMessage is an immutable record produced by the (out-of-scope)
// compiler and consumed by the scheduler. Step is always in 0..=255.
type ScheduledMessage struct {
	DestinationID string
	Cycle         float64
	Step          int
	Params        value.Map
}

// Clone returns a message with its own copy of Params; DestinationID,
// Cycle, and Step are value types already.
func (m ScheduledMessage) Clone() ScheduledMessage {
	m.Params = m.Params.Clone()
	return m
}

// Batch is a single submission: a flat sequence of messages plus the tempo
// and loop length they were compiled against. Consumed once by
// scheduler.MessageScheduler.Load and then discarded.
type Batch struct {
	Messages      []ScheduledMessage
	BPM           float64
	PatternLength float64
}

// Validate checks the structural invariants a Batch must satisfy before
// it can be loaded: positive BPM and pattern length, and every message's
// step within range.
func (b Batch) Validate() error {
	if b.BPM <= 0 {
		return &ValidationError{Field: "bpm", Reason: "must be > 0"}
	}
	if b.PatternLength <= 0 {
		return &ValidationError{Field: "pattern_length", Reason: "must be > 0"}
	}
	for i, m := range b.Messages {
		if m.Step < 0 || m.Step > 255 {
			return &ValidationError{Field: fmt.Sprintf("messages[%d].step", i), Reason: "must be 0..=255"}
		}
	}
	return nil
}

// ValidationError reports a rejected payload field; command handlers return
// its message to the submitter without mutating any state.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Reason
}
