package runtime

import (
	"testing"

	"github.com/iltempo/oiduna-loop/internal/session"
	"github.com/stretchr/testify/assert"
)

func TestPendingApplyShouldApplyNow(t *testing.T) {
	p := PendingApply{Timing: session.ApplyNow}
	assert.True(t, p.ShouldApply(0))
	assert.True(t, p.ShouldApply(7))
}

func TestPendingApplyShouldApplyBeat(t *testing.T) {
	p := PendingApply{Timing: session.ApplyBeat}
	assert.True(t, p.ShouldApply(0))
	assert.True(t, p.ShouldApply(4))
	assert.False(t, p.ShouldApply(5))
}

func TestPendingApplyShouldApplyBar(t *testing.T) {
	p := PendingApply{Timing: session.ApplyBar}
	assert.True(t, p.ShouldApply(16))
	assert.False(t, p.ShouldApply(4))
}

func TestPendingApplyShouldApplySeqWaitsForFullLoop(t *testing.T) {
	p := PendingApply{Timing: session.ApplySeq}
	assert.False(t, p.ShouldApply(0)) // arrives before a non-zero step is seen
	p.PassedNonZero = true
	assert.True(t, p.ShouldApply(0))
	assert.False(t, p.ShouldApply(1))
}
