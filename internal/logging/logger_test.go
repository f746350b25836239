package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesToWriter(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info")
	require.NotNil(t, log)

	log.Info().Str("counterpart", "u2").Msg("history loaded")
	assert.Contains(t, buf.String(), "history loaded")
	assert.Contains(t, buf.String(), `"counterpart":"u2"`)
}

func TestNewStyled(t *testing.T) {
	assert.NotNil(t, NewStyled(StylePretty, "info"))
	assert.NotNil(t, NewStyled(StyleJSON, "info"))
	assert.NotNil(t, NewStyled("weird", "info"))
}

func TestSubAndWith(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "debug").Sub("socket").With("connId", "c-1")

	log.Debug().Msg("frame written")
	out := buf.String()
	assert.Contains(t, out, "frame written")
	assert.Contains(t, out, `"subsystem":"socket"`)
	assert.Contains(t, out, `"connId":"c-1"`)
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "warn")

	log.Debug().Msg("debug msg")
	log.Info().Msg("info msg")
	assert.Empty(t, buf.String())

	log.Warn().Msg("warn msg")
	assert.Contains(t, buf.String(), "warn msg")
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
		{"silent", zerolog.Disabled},
		{"", zerolog.InfoLevel},
		{"LOUD", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.input))
		})
	}
}

func TestSilentAndNop(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "silent").Error().Msg("hidden")
	assert.Empty(t, buf.String())

	Nop().Error().Msg("also hidden")
}
