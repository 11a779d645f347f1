package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Load_missingFileReportsNotExist(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))

	require.Error(t, err)
	assert.True(t, os.IsNotExist(err), "missing config file must be reported via os.IsNotExist, not ErrInvalidConfig")
	assert.Equal(t, Default(), cfg, "Load still returns usable defaults alongside a not-exist error")
}

func Test_Load_malformedYAMLIsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("enable_gps: [this is not a bool"), 0o600))

	_, err := Load(path)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.False(t, os.IsNotExist(err))
}

func Test_Load_validationFailureIsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("enable_wifi_locator: true\nwifi_left_interface: wlan1\nwifi_right_interface: wlan1\n")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	_, err := Load(path)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func Test_Load_validFileParsesCleanly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("enable_gps: false\nwifi_scan_interface: wlan3\n")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.False(t, cfg.EnableGPS)
	assert.Equal(t, "wlan3", cfg.WifiScanInterface)
}

func Test_Validate_rejectsMatchingLeftRightInterfaces(t *testing.T) {
	cfg := Default()
	cfg.EnableWifiLocator = true
	cfg.WifiLeftInterface = "wlan1"
	cfg.WifiRightInterface = "wlan1"

	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
}

func Test_Validate_acceptsDefaults(t *testing.T) {
	assert.NoError(t, Default().Validate())
}
