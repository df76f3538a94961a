package logger_test

import (
	"bytes"
	"testing"

	"codeberg.org/mutker/senselog/internal/logger"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	lvl, ok := logger.ParseLevel("debug")
	assert.True(t, ok)
	assert.Equal(t, logger.DebugLevel, lvl)

	lvl, ok = logger.ParseLevel("warning")
	assert.True(t, ok)
	assert.Equal(t, logger.WarnLevel, lvl)

	_, ok = logger.ParseLevel("verbose")
	assert.False(t, ok)
}

func TestComponentLogger(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWithWriter(&buf, "debug", true)
	t.Cleanup(func() { logger.SetLogLevel(logger.InfoLevel) })

	logger.New("sampler").Info().Int("cycle", 3).Msg("Cycle complete")

	out := buf.String()
	assert.Contains(t, out, "Cycle complete")
	assert.Contains(t, out, "component=sampler")
	assert.Contains(t, out, "cycle=3")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWithWriter(&buf, "error", true)
	t.Cleanup(func() { logger.SetLogLevel(logger.InfoLevel) })

	logger.Info().Msg("hidden")
	logger.Error().Msg("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestWriterLogsAtInfo(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWithWriter(&buf, "info", true)
	t.Cleanup(func() { logger.SetLogLevel(logger.InfoLevel) })

	line := `127.0.0.1 - - [01/Mar/2024:12:00:00 +0000] "GET /live-graph HTTP/1.1" 200 447` + "\n"
	n, err := logger.Writer().Write([]byte(line))
	assert.NoError(t, err)
	assert.Equal(t, len(line), n)

	out := buf.String()
	assert.Contains(t, out, "INF")
	assert.NotContains(t, out, "???")
	assert.Contains(t, out, `"GET /live-graph HTTP/1.1" 200 447`)

	buf.Reset()
	logger.SetLogLevel(logger.ErrorLevel)
	_, err = logger.Writer().Write([]byte(line))
	assert.NoError(t, err)
	assert.Empty(t, buf.String())
}
