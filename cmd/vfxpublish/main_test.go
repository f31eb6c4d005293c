package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vfxpublish/internal/domain"
)

func setupCLIEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	work := filepath.Join(dir, "work")
	require.NoError(t, os.MkdirAll(work, 0o755))

	t.Setenv("VFXPUBLISH_DATABASE_DRIVER", "sqlite")
	t.Setenv("VFXPUBLISH_DATABASE_PATH", filepath.Join(dir, "cli.db"))
	t.Setenv("VFXPUBLISH_PUBLISH_WORKROOT", work)
	t.Setenv("VFXPUBLISH_LOG_LEVEL", "error")
	t.Setenv("VFXPUBLISH_KAFKA_BROKERS", "")
	return work
}

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestMigrateCommand(t *testing.T) {
	setupCLIEnv(t)

	out, err := runCLI(t, "", "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "sqlite")

	// second run is a no-op
	_, err = runCLI(t, "", "migrate")
	require.NoError(t, err)
}

func TestFolderCommands(t *testing.T) {
	setupCLIEnv(t)

	out, err := runCLI(t, "", "folder", "create", "demo", "assets/characters/hero")
	require.NoError(t, err)
	assert.Contains(t, out, "/assets/characters/hero")

	out, err = runCLI(t, "", "folder", "ls", "demo", "/assets")
	require.NoError(t, err)
	assert.Contains(t, out, "/assets/characters")
	assert.NotContains(t, out, "/assets/characters/hero")
}

func TestPublishCommandFromStdin(t *testing.T) {
	work := setupCLIEnv(t)

	_, err := runCLI(t, "", "folder", "create", "demo", "/assets/characters/hero")
	require.NoError(t, err)

	request := `{
		"project_name": "demo",
		"folder_path": "/assets/characters/hero",
		"product_type": "usd",
		"author": "alice",
		"comment": "from cli",
		"time": "20261019T120000Z",
		"published_representations": [{"name": "geo", "published_files": ["/pub/a.usd"]}]
	}`
	out, err := runCLI(t, request, "publish", "-")
	require.NoError(t, err)

	var result domain.PublishResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.False(t, result.Skipped)
	assert.Equal(t, 1, result.Version)

	want := filepath.Join(work, "demo", "assets", "characters", "hero", "publish", "usd", "hero_USD_v00001.usda")
	assert.Equal(t, want, result.RootPath)
	assert.FileExists(t, want)

	out, err = runCLI(t, request, "publish", "-")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 2, result.Version)
}

func TestPublishCommandUnknownFolder(t *testing.T) {
	setupCLIEnv(t)

	file := filepath.Join(t.TempDir(), "request.json")
	require.NoError(t, os.WriteFile(file, []byte(`{
		"project_name": "demo",
		"folder_path": "/missing",
		"product_type": "usd",
		"author": "alice",
		"published_representations": [{"published_files": ["/pub/a.usd"]}]
	}`), 0o644))

	_, err := runCLI(t, "", "publish", file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "folder")
}

func TestPublishCommandRejectsBadJSON(t *testing.T) {
	setupCLIEnv(t)

	_, err := runCLI(t, "{", "publish", "-")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse publish request")
}
