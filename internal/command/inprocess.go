package command

import (
	"context"

	"github.com/google/uuid"
)

// InProcessSource is a buffered-channel CommandSource for an in-process
// submitter (e.g. an embedding HTTP layer or test harness talking to the
// engine directly, with no IPC boundary). Grounded on the legacy
// in-process command/state bridge: a bounded channel standing in for what
// would otherwise be a cross-process queue.
type InProcessSource struct {
	ch chan Command
}

func NewInProcessSource(buffer int) *InProcessSource {
	if buffer <= 0 {
		buffer = 64
	}
	return &InProcessSource{ch: make(chan Command, buffer)}
}

// Process implements Source: a non-blocking receive.
func (s *InProcessSource) Process() (Command, bool) {
	select {
	case c := <-s.ch:
		return c, true
	default:
		return Command{}, false
	}
}

// Submit enqueues a command and blocks for its Result, or until ctx is
// cancelled.
func (s *InProcessSource) Submit(ctx context.Context, typ Type, payload any) (Result, error) {
	resultCh := make(chan Result, 1)
	cmd := Command{ID: uuid.New(), Type: typ, Payload: payload, result: resultCh}

	select {
	case s.ch <- cmd:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}

	select {
	case r := <-resultCh:
		return r, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}
