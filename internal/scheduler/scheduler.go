// Package scheduler indexes scheduled messages by step for O(1) lookup
// during the step loop.
package scheduler

import (
	"sync"

	"github.com/iltempo/oiduna-loop/internal/message"
)

const numSteps = 256

// MessageScheduler maps a step (0..=255) to the ordered sequence of
// messages due at that step. Load fully replaces prior contents.
type MessageScheduler struct {
	mu      sync.RWMutex
	byStep  [numSteps][]message.ScheduledMessage
	bpm     float64
	length  float64
	loaded  bool
}

func New() *MessageScheduler {
	return &MessageScheduler{}
}

// Load clears and rebuilds the index from batch. Messages keep their
// insertion order within a step.
func (s *MessageScheduler) Load(batch message.Batch) error {
	if err := batch.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.byStep {
		s.byStep[i] = nil
	}
	for _, m := range batch.Messages {
		s.byStep[m.Step] = append(s.byStep[m.Step], m)
	}
	s.bpm = batch.BPM
	s.length = batch.PatternLength
	s.loaded = true
	return nil
}

// At returns the messages scheduled at step, or nil if none. The returned
// slice must not be mutated by the caller.
func (s *MessageScheduler) At(step int) []message.ScheduledMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if step < 0 || step >= numSteps {
		return nil
	}
	return s.byStep[step]
}

// BPM returns the tempo the currently loaded batch was compiled against,
// and whether any batch has been loaded yet.
func (s *MessageScheduler) BPM() (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bpm, s.loaded
}

// PatternLength returns the loop length in steps the batch declared.
func (s *MessageScheduler) PatternLength() (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.length, s.loaded
}
