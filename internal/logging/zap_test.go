package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZapLogger_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewZapLoggerTo(&buf, false)
	ctx := context.Background()

	log.Debug(ctx, "hidden")
	log.With("component", "auth").Info(ctx, "login ok", "user_id", "u1")
	log.Warn(ctx, "slow kdf", "ms", 250)
	log.Error(ctx, "db down")
	require.NoError(t, log.Sync())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3, "debug is filtered at info level")

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "info", first["level"])
	assert.Equal(t, "login ok", first["msg"])
	assert.Equal(t, "auth", first["component"])
	assert.Equal(t, "u1", first["user_id"])
}

func TestNew_Formats(t *testing.T) {
	for _, f := range []string{"", FormatText, FormatJSON, FormatZap} {
		var buf bytes.Buffer
		log, err := New(f, &buf, true)
		require.NoError(t, err, f)
		log.Info(context.Background(), "hello", "k", "v")
		assert.Contains(t, buf.String(), "hello", f)
	}

	_, err := New("xml", &bytes.Buffer{}, false)
	require.Error(t, err)

	Nop().Error(context.Background(), "nothing")
}

func TestMaskEmail(t *testing.T) {
	tests := map[string]string{
		"":                     "",
		"john.doe@example.com": "joh***@example.com",
		"a@b.com":              "a***@b.com",
		"no-at-sign":           "***",
	}
	for in, want := range tests {
		assert.Equal(t, want, MaskEmail(in), in)
	}
}
