package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]zerolog.Level{
		"debug": zerolog.DebugLevel, "INFO": zerolog.InfoLevel, "": zerolog.InfoLevel,
		"Warn": zerolog.WarnLevel, "ERROR": zerolog.ErrorLevel, "DISABLED": zerolog.Disabled,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("LOUD")
	assert.Error(t, err)
}

func TestInitWriterJSON(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)
	var buf bytes.Buffer
	require.NoError(t, InitWriter(&buf, "WARN", false))

	log.Info().Msg("hidden")
	log.Warn().Str("digest", "abc").Msg("shown")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "shown", entry["message"])
	assert.Equal(t, "abc", entry["digest"])
	assert.Equal(t, "warn", entry["level"])
}

func TestInitRejectsUnknownLevel(t *testing.T) {
	assert.Error(t, InitWriter(&bytes.Buffer{}, "verbose", true))
}
