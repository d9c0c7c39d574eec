package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Configure(&buf, "json", "WARN")
	t.Cleanup(func() { Configure(os.Stderr, "console", "INFO") })

	Infof("hidden %d", 1)
	Warnf("shown %d", 2)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "shown 2", entry["message"])
}

func TestSetLogLevel_Unknown(t *testing.T) {
	var buf bytes.Buffer
	Configure(&buf, "json", "ERROR")
	t.Cleanup(func() { Configure(os.Stderr, "console", "INFO") })

	SetLogLevel("verbose")
	Debugf("not written")

	assert.Contains(t, buf.String(), "Unknown log level 'verbose'")
	assert.NotContains(t, buf.String(), "not written")
}
