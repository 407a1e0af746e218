package logging_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-modular/framework/logging"
)

func TestCreateLogger_LabelsNest(t *testing.T) {
	root := logging.NewDefault("App")
	child := root.CreateLogger("Router").CreateLogger("UserController")

	assert.Equal(t, "App", root.Label())
	assert.Equal(t, "App.Router.UserController", child.Label())
}

func TestNew_JSONCarriesComponent(t *testing.T) {
	var buf bytes.Buffer
	root, err := logging.New(logging.Options{Level: "info", Format: "json", Output: &buf})
	require.NoError(t, err)

	root.CreateLogger("App").Info("server running")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "App", line["component"])
	assert.Equal(t, "server running", line["msg"])
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	root, err := logging.New(logging.Options{Level: "warn", Output: &buf})
	require.NoError(t, err)

	root.Debug("hidden")
	root.Info("hidden")
	assert.Empty(t, buf.String())

	root.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := logging.New(logging.Options{Level: "loud"})
	assert.Error(t, err)
}

func TestNew_WritesLogFiles(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	root, err := logging.New(logging.Options{Level: "debug", Dir: dir, Output: &buf})
	require.NoError(t, err)

	root.Debug("debug line")
	root.Error("error line")
	require.NoError(t, root.Close())

	debugLog, err := os.ReadFile(filepath.Join(dir, "debug.log"))
	require.NoError(t, err)
	assert.Contains(t, string(debugLog), "debug line")
	assert.Contains(t, string(debugLog), "error line")

	errorLog, err := os.ReadFile(filepath.Join(dir, "error.log"))
	require.NoError(t, err)
	assert.NotContains(t, string(errorLog), "debug line")
	assert.Contains(t, string(errorLog), "error line")
}
