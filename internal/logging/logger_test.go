package logging_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vfxpublish/internal/config"
	"vfxpublish/internal/logging"
)

func TestNewJSONWritesStructuredEntries(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "publish.log")

	logger, err := logging.New(logging.Options{
		Level:            "info",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("Published version")
	logger.Sync() //nolint:errcheck

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "Published version", entry["msg"])
	assert.Equal(t, "info", entry["level"])
	assert.Contains(t, entry, "ts")
}

func TestNewRejectsUnknownSettings(t *testing.T) {
	_, err := logging.New(logging.Options{Format: "xml"})
	assert.Error(t, err)

	_, err = logging.New(logging.Options{Level: "loud"})
	assert.Error(t, err)
}

func TestNewFromConfig(t *testing.T) {
	logger, err := logging.NewFromConfig(config.LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(-1))
}
