package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
mirror: /var/lib/choirsync/mirror.db
roster: ./infos.json
id_prefix: ASC
drain_interval: 30s
remote:
  uri: mongodb://localhost:27017
  database: choir
log_level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/choirsync/mirror.db", cfg.Mirror)
	assert.Equal(t, "./infos.json", cfg.Roster)
	assert.Equal(t, 30*time.Second, cfg.DrainInterval.Std())
	assert.Equal(t, "mongodb://localhost:27017", cfg.Remote.URI)
	assert.Equal(t, "choir", cfg.Remote.Database)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_UnsetFieldsKeepDefaults(t *testing.T) {
	path := writeConfig(t, "mirror: /tmp/m.db\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ASC", cfg.IDPrefix)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.Remote.URI)
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, "mirror: /tmp/m.db\nmiror_path: typo\n")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty mirror", "mirror: \"\"\n"},
		{"remote uri without database", "mirror: /tmp/m.db\nremote:\n  uri: mongodb://h\n"},
		{"negative drain interval", "mirror: /tmp/m.db\ndrain_interval: -5s\n"},
		{"unknown log level", "mirror: /tmp/m.db\nlog_level: loud\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.NotEmpty(t, cfg.Mirror)
	require.NoError(t, cfg.validate())
}
