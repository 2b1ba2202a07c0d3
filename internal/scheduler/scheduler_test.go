package scheduler

import (
	"testing"

	"github.com/iltempo/oiduna-loop/internal/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRejectsInvalidBatch(t *testing.T) {
	s := New()
	err := s.Load(message.Batch{BPM: 0, PatternLength: 256})
	require.Error(t, err)

	_, loaded := s.BPM()
	assert.False(t, loaded)
}

func TestLoadIndexesMessagesByStepPreservingOrder(t *testing.T) {
	s := New()
	batch := message.Batch{
		BPM:           120,
		PatternLength: 256,
		Messages: []message.ScheduledMessage{
			{DestinationID: "a", Step: 4},
			{DestinationID: "b", Step: 4},
			{DestinationID: "c", Step: 8},
		},
	}
	require.NoError(t, s.Load(batch))

	at4 := s.At(4)
	require.Len(t, at4, 2)
	assert.Equal(t, "a", at4[0].DestinationID)
	assert.Equal(t, "b", at4[1].DestinationID)

	at8 := s.At(8)
	require.Len(t, at8, 1)
	assert.Equal(t, "c", at8[0].DestinationID)

	assert.Empty(t, s.At(0))

	bpm, loaded := s.BPM()
	assert.True(t, loaded)
	assert.Equal(t, 120.0, bpm)

	length, loaded := s.PatternLength()
	assert.True(t, loaded)
	assert.Equal(t, 256.0, length)
}

func TestAtOutOfRangeReturnsNil(t *testing.T) {
	s := New()
	assert.Nil(t, s.At(-1))
	assert.Nil(t, s.At(256))
}

func TestLoadReplacesPriorContents(t *testing.T) {
	s := New()
	require.NoError(t, s.Load(message.Batch{
		BPM:           120,
		PatternLength: 256,
		Messages:      []message.ScheduledMessage{{DestinationID: "a", Step: 4}},
	}))
	require.NoError(t, s.Load(message.Batch{
		BPM:           140,
		PatternLength: 256,
		Messages:      []message.ScheduledMessage{{DestinationID: "b", Step: 5}},
	}))

	assert.Empty(t, s.At(4))
	got := s.At(5)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].DestinationID)
}
