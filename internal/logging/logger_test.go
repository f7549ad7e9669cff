package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info")
	log.Info().Str("tool", "calculator").Msg("tool finished")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "tool finished", line["message"])
	assert.Equal(t, "calculator", line["tool"])
	assert.Equal(t, "info", line["level"])
}

func TestSubTagsSubsystem(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "debug").Sub("chain")

	log.Debug().Msg("dispatch")
	assert.Contains(t, buf.String(), `"subsystem":"chain"`)
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "warn")

	log.Debug().Msg("debug msg")
	log.Info().Msg("info msg")
	assert.Empty(t, buf.String(), "debug and info should be filtered at warn level")

	log.Warn().Msg("warn msg")
	assert.Contains(t, buf.String(), "warn msg")
}

func TestSilentAndNop(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "silent").Error().Msg("should not appear")
	assert.Empty(t, buf.String())

	nop := Nop()
	require.NotNil(t, nop)
	nop.Sub("x").Error().Msg("discarded")
}

func TestNewWithStyle(t *testing.T) {
	var buf bytes.Buffer
	NewWithStyle(&buf, StyleJSON, "info").Info().Msg("json line")
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "json line", line["message"])

	buf.Reset()
	NewWithStyle(&buf, StylePretty, "debug").Debug().Str("tool", "calculator").Msg("pretty line")
	out := buf.String()
	assert.Contains(t, out, "pretty line")
	assert.Contains(t, out, "tool=calculator")
	assert.NotContains(t, out, "\x1b[", "no color outside a terminal")
	assert.False(t, json.Valid(buf.Bytes()))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"silent", zerolog.Disabled},
		{"", zerolog.InfoLevel},
		{"INFO", zerolog.InfoLevel},
		{" Debug ", zerolog.DebugLevel},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"verbose", "panic", "disabled", "5"} {
		_, err := ParseLevel(bad)
		assert.Error(t, err, bad)
	}
}

func TestValidLevelsParse(t *testing.T) {
	for _, name := range ValidLevels {
		_, err := ParseLevel(name)
		assert.NoError(t, err, name)
	}
}

func TestUnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "verbose")
	log.Debug().Msg("hidden")
	log.Info().Msg("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
