package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_Levels(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"WARN", zerolog.WarnLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			l := NewWithWriter(&bytes.Buffer{}, tt.level, false)
			assert.Equal(t, tt.want, l.GetLevel())
		})
	}
}

func TestComponent_AddsField(t *testing.T) {
	var buf bytes.Buffer
	l := Component(NewWithWriter(&buf, "info", false), "strategy")

	l.Info().Str("symbol", "NQ=F").Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "strategy", entry["component"])
	assert.Equal(t, "NQ=F", entry["symbol"])
	assert.Equal(t, "hello", entry["message"])
}
