package logging

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesJSONForNonTerminalFile(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "log")
	require.NoError(t, err)
	defer f.Close()

	logger := New(f, zerolog.InfoLevel)
	logger.Info().Msg("hello")

	data, err := os.ReadFile(f.Name())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"hello"`)
	assert.Contains(t, string(data), `"level":"info"`)
}

func TestNewHonorsLevel(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "log")
	require.NoError(t, err)
	defer f.Close()

	logger := New(f, zerolog.WarnLevel)
	logger.Info().Msg("suppressed")
	logger.Warn().Msg("kept")

	data, err := os.ReadFile(f.Name())
	require.NoError(t, err)
	assert.NotContains(t, string(data), "suppressed")
	assert.Contains(t, string(data), "kept")
}

func TestContextWithEngineIDRoundTrip(t *testing.T) {
	ctx := ContextWithEngineID(context.Background(), "engine-1")
	id, ok := EngineIDFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "engine-1", id)
}

func TestEngineIDFromContextMissing(t *testing.T) {
	_, ok := EngineIDFromContext(context.Background())
	assert.False(t, ok)
}

func TestWithContextAddsEngineIDWhenPresent(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	ctx := ContextWithEngineID(context.Background(), "engine-7")
	enriched := WithContext(ctx, base)
	enriched.Info().Msg("tick")

	assert.Contains(t, buf.String(), `"engine_id":"engine-7"`)
}

func TestWithContextOmitsEngineIDWhenAbsent(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	enriched := WithContext(context.Background(), base)
	enriched.Info().Msg("tick")

	assert.NotContains(t, buf.String(), "engine_id")
}
