// Package command defines the command intake contract: the payload types
// for every handler in the catalog, the result type handlers return, and
// the CommandSource interface the command loop polls.
package command

import "github.com/google/uuid"

// Result is what every command handler returns: success with an optional
// message/data, or failure with a message. No handler mutates shared state
// until its payload has validated.
type Result struct {
	Success bool
	Message string
	Data    map[string]any
}

func Ok(message string) Result { return Result{Success: true, Message: message} }

func OkData(message string, data map[string]any) Result {
	return Result{Success: true, Message: message, Data: data}
}

func Err(message string) Result { return Result{Success: false, Message: message} }

// Type enumerates the command catalog.
type Type string

const (
	TypeSession   Type = "session"
	TypeCompile   Type = "compile"
	TypePlay      Type = "play"
	TypeStop      Type = "stop"
	TypePause     Type = "pause"
	TypeMuteSolo  Type = "mute_solo"
	TypeBPM       Type = "bpm"
	TypeMidiPort  Type = "midi_port"
	TypeMidiPanic Type = "midi_panic"
	TypePanic     Type = "panic"
	TypeScene     Type = "scene"
	TypeScenes    Type = "scenes"
)

// Command is one queued, typed request plus the channel its Result is
// delivered back on.
type Command struct {
	ID      uuid.UUID
	Type    Type
	Payload any
	result  chan<- Result
}

// Reply delivers r to whoever submitted the command, if anyone is
// listening (a non-blocking command source may leave this nil).
func (c Command) Reply(r Result) {
	if c.result == nil {
		return
	}
	select {
	case c.result <- r:
	default:
	}
}

// Source is polled by the command loop once per iteration. Process
// returns false when nothing is queued; the command loop backs off
// exponentially in that case.
type Source interface {
	Process() (Command, bool)
}
