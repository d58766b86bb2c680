package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-digest/pkg/types"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel(" WARN "))
	assert.Equal(t, zerolog.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("verbose"))
}

func TestNew_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	log := Component(New(types.LogConfig{Level: "info"}, &buf), "acquire")

	log.Debug().Msg("hidden")
	log.Info().Str("paper", "7").Msg("downloaded")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "paper-digest", rec["service"])
	assert.Equal(t, "acquire", rec["component"])
	assert.Equal(t, "7", rec["paper"])
	assert.Equal(t, "downloaded", rec["message"])
}
