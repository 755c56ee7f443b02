package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	conf, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "localhost:4242", conf.Listen)
	assert.NotEmpty(t, conf.DataDir)
	assert.NotEmpty(t, conf.KeystoreDir)
	assert.Empty(t, conf.PinServiceURL)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
dataDir: /var/lib/cidvault
listen: 0.0.0.0:9000
minimumFreeGB: 5
pinServiceURL: https://pin.example.com
`), 0o600))

	conf, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/cidvault", conf.DataDir)
	assert.Equal(t, "0.0.0.0:9000", conf.Listen)
	assert.Equal(t, 5, conf.MinimumFreeGB)
	assert.Equal(t, "https://pin.example.com", conf.PinServiceURL)
	// Unset fields keep their defaults.
	assert.NotEmpty(t, conf.KeystoreDir)
}

func TestLoad_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: [unclosed"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}
