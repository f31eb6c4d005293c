package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewConfigDefaults(t *testing.T) {
	t.Setenv("VFXPUBLISH_DATABASE_DRIVER", "sqlite")
	t.Setenv("VFXPUBLISH_PUBLISH_WORKROOT", "/mnt/work")

	cfg, err := NewConfig("")
	require.NoError(t, err)

	assert.Equal(t, "2525", cfg.Server.Port)
	assert.Equal(t, "50051", cfg.Server.GRPCPort)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "vfxpublish.db", cfg.Database.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "/mnt/work", cfg.Publish.WorkRoot)
	assert.False(t, cfg.Kafka.Enabled())
	assert.Empty(t, cfg.Auth.Tokens)
}

func TestNewConfigFileAndEnvOverrides(t *testing.T) {
	path := writeFile(t, "config.yaml", `
Server:
  Port: "8080"
Database:
  Driver: postgres
  Host: db.local
  User: publisher
  Password: secret
  Name: publish
Publish:
  WorkRoot: /mnt/work
Kafka:
  Brokers: ["kafka-1:9092"]
`)
	t.Setenv("VFXPUBLISH_DATABASE_HOST", "db.prod")
	t.Setenv("VFXPUBLISH_AUTH_TOKENS", "token-a,token-b")

	cfg, err := NewConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "db.prod", cfg.Database.Host)
	assert.Equal(t, []string{"kafka-1:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Kafka.Enabled())
	assert.Equal(t, []string{"token-a", "token-b"}, cfg.Auth.Tokens)
	assert.Equal(t,
		"host=db.prod port=5432 user=publisher password=secret dbname=publish sslmode=disable",
		cfg.Database.GetDSN())
}

func TestNewConfigMissingFileUsesEnvironment(t *testing.T) {
	t.Setenv("VFXPUBLISH_DATABASE_DRIVER", "sqlite")
	t.Setenv("VFXPUBLISH_PUBLISH_WORKROOT", "/mnt/work")

	cfg, err := NewConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
}

func TestValidate(t *testing.T) {
	tests := map[string]Config{
		"incomplete postgres": {
			Database: DatabaseConfig{Driver: "postgres", Host: "db"},
			Publish:  PublishConfig{WorkRoot: "/w"},
		},
		"sqlite without path": {
			Database: DatabaseConfig{Driver: "sqlite"},
			Publish:  PublishConfig{WorkRoot: "/w"},
		},
		"unknown driver": {
			Database: DatabaseConfig{Driver: "mysql"},
			Publish:  PublishConfig{WorkRoot: "/w"},
		},
		"no work root": {
			Database: DatabaseConfig{Driver: "sqlite", Path: "x.db"},
		},
	}
	for name, cfg := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestAnatomy(t *testing.T) {
	path := writeFile(t, "anatomy.yaml", `
roots:
  work: /mnt/projects
  cache: /mnt/cache
templates:
  dir: "{root[work]}/{project[name]}/publish"
  file: "{root[work]}/{project[name]}/publish/{folder[name]}_USD_v{version:0>5}.usda"
version_pattern: '_USD_v(\d+)\.usda$'
`)

	anatomy, err := PublishConfig{AnatomyFile: path}.Anatomy()
	require.NoError(t, err)
	assert.Equal(t, "/mnt/projects", anatomy.Roots["work"])
	assert.Equal(t, "/mnt/cache", anatomy.Roots["cache"])
	assert.Equal(t, "{root[work]}/{project[name]}/publish", anatomy.Templates.Dir)
	assert.Equal(t, `_USD_v(\d+)\.usda$`, anatomy.VersionPattern)

	anatomy, err = PublishConfig{AnatomyFile: path, WorkRoot: "/override"}.Anatomy()
	require.NoError(t, err)
	assert.Equal(t, "/override", anatomy.Roots["work"])

	_, err = PublishConfig{}.Anatomy()
	assert.Error(t, err)

	_, err = PublishConfig{AnatomyFile: writeFile(t, "bad.yaml", "roots: [")}.Anatomy()
	assert.Error(t, err)
}
