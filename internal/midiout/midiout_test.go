package midiout

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNullIsDisconnectedAndSilent(t *testing.T) {
	var n Null
	assert.False(t, n.IsConnected())
	assert.Equal(t, "", n.PortName())
	assert.NoError(t, n.NoteOn(0, 60, 100))
	assert.NoError(t, n.NoteOff(0, 60))
	assert.NoError(t, n.ControlChange(0, 1, 64))
	assert.NoError(t, n.PitchBend(0, 0))
	assert.NoError(t, n.Aftertouch(0, 64))
	assert.NoError(t, n.SendStart())
	assert.NoError(t, n.SendStop())
	assert.NoError(t, n.SendContinue())
	assert.NoError(t, n.SendClock())
	assert.NoError(t, n.AllNotesOff())
	assert.NoError(t, n.Close())
}

func TestNullSatisfiesOutput(t *testing.T) {
	var _ Output = Null{}
}
