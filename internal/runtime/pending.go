package runtime

import (
	"time"

	"github.com/iltempo/oiduna-loop/internal/session"
)

// PendingApply is a queued compile waiting for its timing boundary.
// At most one exists at a time; SetPending replaces whatever was queued.
type PendingApply struct {
	Timing         session.ApplyTiming
	Session        session.Session
	TrackIDs       []string
	SceneName      string
	ReceivedAt     time.Time
	PassedNonZero  bool
}

// ShouldApply evaluates the apply-timing predicate against the current
// step. Seq additionally requires that PassedNonZero has latched, so a
// pending apply never fires on the same step it arrived if that step
// happens to be 0 — it waits for a full loop.
func (p PendingApply) ShouldApply(step int) bool {
	switch p.Timing {
	case session.ApplyNow:
		return true
	case session.ApplyBeat:
		return step%4 == 0
	case session.ApplyBar:
		return step%16 == 0
	case session.ApplySeq:
		return step == 0 && p.PassedNonZero
	default:
		return false
	}
}
