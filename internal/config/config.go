// Package config loads and validates the service manager's config
// record: which producers are enabled, and their interface/parameter
// bindings.
//
// Grounded on the teacher's src/config.go ("read config file, validate
// line by line, reject and report rather than partially apply") but
// generalized from the teacher's bespoke directive-keyword parser to a
// YAML document via gopkg.in/yaml.v3, matching the calibration file
// format and the rest of the pack's config-file conventions.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig marks a config file that exists but fails to parse or
// validate. Callers must distinguish this from a missing file (which
// os.IsNotExist on Load's returned error reports instead): per the
// external interfaces section, a missing config is fine to default, but
// a present-and-invalid one is an unrecoverable startup failure and must
// exit non-zero.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the service manager's config record, per the external
// interfaces section: which producers run, and their hardware bindings.
type Config struct {
	EnableSystemMetrics bool `yaml:"enable_system_metrics"`
	EnableGPS           bool `yaml:"enable_gps"`
	EnableIMU           bool `yaml:"enable_imu"`
	EnableWifiScanner   bool `yaml:"enable_wifi_scanner"`
	EnableWifiLocator   bool `yaml:"enable_wifi_locator"`
	EnableAudio         bool `yaml:"enable_audio"`

	WifiScanInterface  string `yaml:"wifi_scan_interface"`
	WifiLeftInterface  string `yaml:"wifi_left_interface"`
	WifiRightInterface string `yaml:"wifi_right_interface"`

	AdapterSeparationM float64 `yaml:"adapter_separation_m"`

	GPSSerialPort string `yaml:"gps_serial_port"`
	GPSBaudRate   int    `yaml:"gps_baud_rate"`

	IMUDevicePath string `yaml:"imu_device_path"`

	AudioDevice     string `yaml:"audio_device"`
	AudioSampleRate int    `yaml:"audio_sample_rate"`

	CalibrationFilePath string `yaml:"calibration_file_path"`

	// EnableMDNSAdvertise turns on the narrow, optional mDNS advertisement
	// of this unit's presence (internal/service: service name and type
	// only; no locator status is published), grounded on the
	// teacher's src/dns_sd.go. Not required by the core's spec; off by
	// default.
	EnableMDNSAdvertise bool `yaml:"enable_mdns_advertise"`
}

// Default returns a Config with conservative defaults: every producer
// enabled except the dual-receiver locator (which needs calibration to
// mean anything), and the standard interface/path conventions used on
// the reference hardware.
func Default() Config {
	return Config{
		EnableSystemMetrics: true,
		EnableGPS:           true,
		EnableIMU:           true,
		EnableWifiScanner:   true,
		EnableWifiLocator:   false,
		EnableAudio:         true,

		WifiScanInterface:  "wlan1",
		WifiLeftInterface:  "wlan1",
		WifiRightInterface: "wlan2",
		AdapterSeparationM: 0.15,

		GPSSerialPort: "/dev/ttyUSB0",
		GPSBaudRate:   9600,

		IMUDevicePath: "/dev/i2c-1",

		AudioDevice:     "default",
		AudioSampleRate: 44100,

		CalibrationFilePath: "/etc/huskyhud/calibration.yaml",
	}
}

// Load reads and validates a Config from path. A missing file is not an
// error here: the caller decides whether an absent config file means
// "use defaults" or "fail startup" (checking os.IsNotExist on the
// returned error). A file that exists but fails to parse or validate
// returns an error wrapping ErrInvalidConfig, which callers must treat
// as an unrecoverable startup failure, not silently fall back from.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		// Returned unwrapped: os.IsNotExist does not see through
		// fmt.Errorf wrapping, and callers rely on it here.
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: parsing config %s: %w", ErrInvalidConfig, path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate rejects a Config with an internally inconsistent or
// out-of-domain setting. It does not touch hardware: a config can be
// structurally valid and still fail when a producer tries to open its
// device.
func (c Config) Validate() error {
	if c.EnableWifiLocator && c.WifiLeftInterface == c.WifiRightInterface {
		return fmt.Errorf("%w: wifi_left_interface and wifi_right_interface must differ when the locator is enabled",
			ErrInvalidConfig)
	}

	if c.AdapterSeparationM < 0 {
		return fmt.Errorf("%w: adapter_separation_m must be non-negative, got %v", ErrInvalidConfig, c.AdapterSeparationM)
	}

	if c.EnableAudio && c.AudioSampleRate <= 0 {
		return fmt.Errorf("%w: audio_sample_rate must be positive, got %d", ErrInvalidConfig, c.AudioSampleRate)
	}

	return nil
}
