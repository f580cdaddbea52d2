package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoader(t *testing.T) {
	loader := NewLoader()
	assert.NotNil(t, loader)
	assert.NotNil(t, loader.v)
}

func TestLoaderLoad(t *testing.T) {
	t.Run("loads config from file", func(t *testing.T) {
		tmpDir := t.TempDir()
		configFile := filepath.Join(tmpDir, "config.yaml")

		content := `
workspaceDir: /srv/appforge/workspace
artifactsDir: /srv/appforge/artifacts
registry:
  driver: kubernetes
  namespace: generation
  context: production
server:
  addr: 127.0.0.1:9000
identity:
  policy: reject
owner:
  email: dev@example.com
  name: Dev
log:
  timestamps: false
`
		require.NoError(t, os.WriteFile(configFile, []byte(content), 0o644))

		cfg, err := NewLoader().Load(configFile)

		require.NoError(t, err)
		assert.Equal(t, "/srv/appforge/workspace", cfg.WorkspaceDir)
		assert.Equal(t, "/srv/appforge/artifacts", cfg.ArtifactsDir)
		assert.Equal(t, "kubernetes", cfg.Registry.Driver)
		assert.Equal(t, "generation", cfg.Registry.Namespace)
		assert.Equal(t, "production", cfg.Registry.Context)
		assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
		assert.Equal(t, "reject", cfg.Identity.Policy)
		assert.Equal(t, "dev@example.com", cfg.Owner.Email)
		assert.Equal(t, "Dev", cfg.Owner.Name)
		require.NotNil(t, cfg.Log.Timestamps)
		assert.False(t, *cfg.Log.Timestamps)
	})

	t.Run("returns empty config for missing file", func(t *testing.T) {
		cfg, err := NewLoader().Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))

		require.NoError(t, err)
		assert.Empty(t, cfg.WorkspaceDir)
		assert.Empty(t, cfg.Registry.Driver)
		assert.Nil(t, cfg.Log.Timestamps)
	})

	t.Run("loads from environment variables", func(t *testing.T) {
		t.Setenv("APPFORGE_WORKSPACE_DIR", "/env/ws")
		t.Setenv("APPFORGE_REGISTRY_DRIVER", "memory")
		t.Setenv("APPFORGE_OWNER_EMAIL", "env@example.com")

		cfg, err := NewLoader().Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))

		require.NoError(t, err)
		assert.Equal(t, "/env/ws", cfg.WorkspaceDir)
		assert.Equal(t, "memory", cfg.Registry.Driver)
		assert.Equal(t, "env@example.com", cfg.Owner.Email)
	})

	t.Run("environment overrides file", func(t *testing.T) {
		configFile := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(configFile, []byte("server:\n  addr: :7000\n"), 0o644))
		t.Setenv("APPFORGE_SERVER_ADDR", ":9999")

		cfg, err := NewLoader().Load(configFile)

		require.NoError(t, err)
		assert.Equal(t, ":9999", cfg.Server.Addr)
	})

	t.Run("rejects malformed yaml", func(t *testing.T) {
		configFile := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(configFile, []byte("registry: [unclosed\n"), 0o644))

		_, err := NewLoader().Load(configFile)
		assert.ErrorContains(t, err, "reading config file")
	})
}

func TestLoadWithDefaults(t *testing.T) {
	t.Setenv("APPFORGE_REGISTRY_DRIVER", "memory")

	cfg, err := NewLoader().LoadWithDefaults(filepath.Join(t.TempDir(), "nonexistent.yaml"))

	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Registry.Driver)
	assert.NotContains(t, cfg.WorkspaceDir, "~")
	assert.Equal(t, DefaultOwnerEmail, cfg.Owner.Email)
}

func TestConfigFileExists(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	exists, err := ConfigFileExists(configFile)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, os.WriteFile(configFile, []byte("{}\n"), 0o644))
	exists, err = ConfigFileExists(configFile)
	require.NoError(t, err)
	assert.True(t, exists)
}
