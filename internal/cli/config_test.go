package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMorphServer(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"catalog.example.com:8678", "https://catalog.example.com:8678"},
		{"catalog.example.com:8678/", "https://catalog.example.com:8678"},
		{"http://localhost:8678", "http://localhost:8678"},
		{"https://catalog.example.com:443//", "https://catalog.example.com:443"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MorphServer(tt.in), tt.in)
	}
}

func TestClientConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", DefaultClientConfigFile)
	cfg := &ClientConfig{
		Version:   "0.1.0",
		ServerURL: "http://localhost:8678",
		APIKey:    "secret",
		Tenant:    "clinic-1",
	}
	require.NoError(t, cfg.WriteConfig(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadClientConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
	assert.Equal(t, "secret", loaded.GetAPIKey())
}

func TestLoadClientConfig(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadClientConfig(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	bare := filepath.Join(dir, "bare.yaml")
	require.NoError(t, os.WriteFile(bare, []byte("server_url: catalog.example.com:8678/\n"), 0o600))
	cfg, err := LoadClientConfig(bare)
	require.NoError(t, err)
	assert.Equal(t, "https://catalog.example.com:8678", cfg.ServerURL)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("tenant: clinic-1\n"), 0o600))
	_, err = LoadClientConfig(empty)
	assert.EqualError(t, err, "server_url is required")

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("server_url: [\n"), 0o600))
	_, err = LoadClientConfig(broken)
	assert.ErrorContains(t, err, "unable to parse client config file")
}

func TestApplyClientSettings(t *testing.T) {
	cmd := newConfigCmd()
	require.NoError(t, cmd.Flags().Set("server", "catalog.example.com:8678"))
	require.NoError(t, cmd.Flags().Set("tenant", "clinic-1"))

	cfg := &ClientConfig{APIKey: "kept"}
	require.NoError(t, applyClientSettings(cfg, cmd, "catalog.example.com:8678", "", "clinic-1"))
	assert.Equal(t, "https://catalog.example.com:8678", cfg.ServerURL)
	assert.Equal(t, "clinic-1", cfg.Tenant)
	assert.Equal(t, "kept", cfg.APIKey)

	assert.EqualError(t,
		applyClientSettings(&ClientConfig{}, cmd, "https://catalog.example.com", "", ""),
		"server must include port number (e.g., catalog.example.com:8678)")
}

func TestResolveServerConfigPath(t *testing.T) {
	t.Setenv(EnvConfigFile, "")
	assert.Equal(t, DefaultServerConfigFile, resolveServerConfigPath(""))
	assert.Equal(t, "/etc/catalogsrv.conf", resolveServerConfigPath("/etc/catalogsrv.conf"))

	t.Setenv(EnvConfigFile, "/srv/catalogsrv.conf")
	assert.Equal(t, "/srv/catalogsrv.conf", resolveServerConfigPath(""))
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, loadEnvFile(filepath.Join(dir, ".env"), false))
	assert.Error(t, loadEnvFile(filepath.Join(dir, ".env"), true))

	path := filepath.Join(dir, "catalog.env")
	require.NoError(t, os.WriteFile(path, []byte("CATALOGSRV_TEST_VALUE=from-file\n"), 0o600))
	t.Setenv("CATALOGSRV_TEST_VALUE", "")
	os.Unsetenv("CATALOGSRV_TEST_VALUE")
	require.NoError(t, loadEnvFile(path, true))
	assert.Equal(t, "from-file", os.Getenv("CATALOGSRV_TEST_VALUE"))
}
