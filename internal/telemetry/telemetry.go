// Package telemetry implements the bounded, drop-oldest event queue that
// fans status out to a single external consumer.
package telemetry

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType discriminates the telemetry payload shapes.
type EventType string

const (
	EventConnected EventType = "connected"
	EventPosition  EventType = "position"
	EventStatus    EventType = "status"
	EventTracks    EventType = "tracks"
	EventError     EventType = "error"
	EventHeartbeat EventType = "heartbeat"
)

// Error codes for EventError payloads.
const (
	ErrCodeClockDriftReset    = "CLOCK_DRIFT_RESET"
	ErrCodeConnectionLostMIDI = "CONNECTION_LOST_MIDI"
	ErrCodeConnectionLostOSC  = "CONNECTION_LOST_OSC"
	ErrCodeStepError          = "STEP_ERROR"
)

// Event is one queued telemetry entry. ID is a correlation id a UI
// consumer can use to deduplicate across a reconnect.
type Event struct {
	ID   uuid.UUID
	Type EventType
	Data map[string]any
}

// Sink receives telemetry events. The engine's five loops are
// single-producers; exactly one consumer drains the queue.
type Sink interface {
	Publish(evt Event)
}

// Queue is a bounded FIFO that drops its oldest entry rather than blocking
// a producer loop when full.
type Queue struct {
	mu      sync.Mutex
	cap     int
	items   []Event
	dropped int
}

func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 256
	}
	return &Queue{cap: capacity}
}

// Publish appends evt, dropping the oldest entry first if the queue is
// already at capacity. ID is filled in if the caller left it zero.
func (q *Queue) Publish(evt Event) {
	if evt.ID == uuid.Nil {
		evt.ID = uuid.New()
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) >= q.cap {
		q.items = q.items[1:]
		q.dropped++
	}
	q.items = append(q.items, evt)
}

// Drain removes and returns every currently queued event, oldest first.
func (q *Queue) Drain() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	return out
}

// Len reports the current queue depth.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Dropped reports the cumulative number of events evicted for overflow.
func (q *Queue) Dropped() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Helpers for the common event shapes:

func Position(step, beat int, bar uint32, ts time.Time, bpm *float64, transport string) Event {
	data := map[string]any{
		"step": step, "beat": beat, "bar": bar, "timestamp": ts,
	}
	if bpm != nil {
		data["bpm"] = *bpm
	}
	if transport != "" {
		data["transport"] = transport
	}
	return Event{Type: EventPosition, Data: data}
}

func Status(transport string, bpm float64, activeTracks, scenes []string, currentScene string, hasPending bool) Event {
	return Event{Type: EventStatus, Data: map[string]any{
		"transport":     transport,
		"bpm":           bpm,
		"active_tracks": activeTracks,
		"scenes":        scenes,
		"current_scene": currentScene,
		"has_pending":   hasPending,
	}}
}

func Tracks(entries []map[string]any) Event {
	return Event{Type: EventTracks, Data: map[string]any{"tracks": entries}}
}

func Error(code, message string) Event {
	return Event{Type: EventError, Data: map[string]any{"code": code, "message": message}}
}

func Heartbeat(ts time.Time) Event {
	return Event{Type: EventHeartbeat, Data: map[string]any{"timestamp": ts}}
}

func Connected(ts time.Time) Event {
	return Event{Type: EventConnected, Data: map[string]any{"timestamp": ts}}
}
