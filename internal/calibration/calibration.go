// Package calibration implements the startup protocol that binds the
// logical identifiers "left receiver" and "right receiver" to actual
// wireless interface names, since USB enumeration order is not stable
// across reboots.
//
// Grounded on the teacher's src/cm108.go, which identifies a PTT HID
// device by enumerating USB devices and matching attributes via libudev
// directly through cgo. Here the same enumeration-diff idea is
// reimplemented atop the teacher's declared, previously uncalled
// github.com/jochenvg/go-udev dependency instead of raw libudev calls.
package calibration

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jochenvg/go-udev"

	"github.com/doismellburning/huskyhud/internal/huderrors"
)

// Record is the persisted calibration: which interface is which, and the
// physical separation between the two receivers. Field order and names
// match the external calibration file schema exactly.
type Record struct {
	LeftInterface  string  `yaml:"left_interface"`
	RightInterface string  `yaml:"right_interface"`
	ScanInterface  string  `yaml:"scan_interface"`
	SeparationM    float64 `yaml:"separation_m"`
}

// Save persists a Record to path in the human-readable YAML schema.
func Save(path string, r Record) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshalling calibration: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec
		return fmt.Errorf("writing calibration file %s: %w", path, err)
	}

	return nil
}

// Load reads a persisted Record. A missing or corrupt file is reported
// as huderrors.ErrNoCalibration, per the spec: the locator producer is
// then disabled and the rest of the system proceeds.
func Load(path string) (Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %w", huderrors.ErrNoCalibration, err)
	}

	var r Record

	if err := yaml.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("%w: %w", huderrors.ErrNoCalibration, err)
	}

	if r.LeftInterface == "" || r.RightInterface == "" {
		return Record{}, fmt.Errorf("%w: incomplete calibration record in %s", huderrors.ErrNoCalibration, path)
	}

	return r, nil
}

// InterfaceSet is an unordered set of wireless interface names, as
// observed at one enumeration instant.
type InterfaceSet map[string]bool

// onboardPatterns match interface names reserved for onboard
// connectivity, excluded from calibration candidates. "wlan0" is the
// conventional onboard Wi-Fi radio on the reference hardware; "eth",
// "lo", and "usb0" (USB-tethered networking, not a scanning receiver)
// round out the denylist.
var onboardPatterns = []string{"wlan0", "eth", "lo", "usb0"}

func isOnboard(name string) bool {
	for _, pat := range onboardPatterns {
		if strings.HasPrefix(name, pat) {
			return true
		}
	}

	return false
}

// Enumerator lists the currently-present wireless interface names. The
// production implementation (UdevEnumerator) walks the "net" subsystem
// via go-udev; tests substitute a fake to drive the protocol without
// real hardware.
type Enumerator interface {
	Enumerate() (InterfaceSet, error)
}

// UdevEnumerator lists wireless network interfaces (udev devtype "wlan")
// via libudev, excluding onboard ones, the way src/cm108.go enumerates
// the "sound" subsystem to find a PTT HID device.
type UdevEnumerator struct {
	u udev.Udev
}

// Enumerate walks the udev "net" subsystem and returns every non-onboard
// wireless interface name currently present.
func (e *UdevEnumerator) Enumerate() (InterfaceSet, error) {
	enum := e.u.NewEnumerateFromUdev()

	if err := enum.AddMatchSubsystem("net"); err != nil {
		return nil, fmt.Errorf("enumerating net subsystem: %w", err)
	}

	devices, err := enum.Devices()
	if err != nil {
		return nil, fmt.Errorf("listing net devices: %w", err)
	}

	set := make(InterfaceSet)

	for _, d := range devices {
		name := d.Sysname()
		if name == "" || d.Devtype() != "wlan" || isOnboard(name) {
			continue
		}

		set[name] = true
	}

	return set, nil
}

// pollWindow and pollInterval implement the design-note recommendation:
// poll enumeration every ~200ms for up to 5s and accept the first
// unambiguous delta, rather than a fixed 2s sleep.
const (
	pollWindow   = 5 * time.Second
	pollInterval = 200 * time.Millisecond
)

// pick returns the single new interface name appearing in next but not
// in baseline, or ErrCalibrationAmbiguous if zero or more than one
// appeared.
func pick(baseline, next InterfaceSet) (string, error) {
	var added []string

	for name := range next {
		if !baseline[name] {
			added = append(added, name)
		}
	}

	if len(added) != 1 {
		return "", fmt.Errorf("%w: %d new interfaces appeared (want exactly 1)", huderrors.ErrCalibrationAmbiguous, len(added))
	}

	return added[0], nil
}

// WaitForNewInterface polls the enumerator until exactly one new
// interface appears relative to baseline, or pollWindow elapses without
// an unambiguous delta.
func WaitForNewInterface(enum Enumerator, baseline InterfaceSet) (string, error) {
	deadline := time.Now().Add(pollWindow)

	var lastErr error

	for time.Now().Before(deadline) {
		next, err := enum.Enumerate()
		if err != nil {
			return "", fmt.Errorf("enumerating interfaces: %w", err)
		}

		name, err := pick(baseline, next)
		if err == nil {
			return name, nil
		}

		lastErr = err

		time.Sleep(pollInterval)
	}

	if lastErr == nil {
		lastErr = huderrors.ErrCalibrationAmbiguous
	}

	return "", lastErr
}

// Prompter drives the interactive operator prompts the calibration
// protocol needs: "power the right receiver", "power the left
// receiver", "enter adapter separation". Separated from Run so tests can
// substitute a scripted prompter.
type Prompter interface {
	PromptPowerRight() error
	PromptPowerLeft() error
	PromptSeparationCM() (float64, error)
}

const (
	minSeparationCM = 5.0
	maxSeparationCM = 50.0
	cmPerMeter      = 100.0
)

// Run executes the five-step interactive calibration protocol and
// returns the Record to persist.
func Run(enum Enumerator, prompt Prompter) (Record, error) {
	baseline, err := enum.Enumerate()
	if err != nil {
		return Record{}, fmt.Errorf("enumerating baseline interfaces: %w", err)
	}

	if err := prompt.PromptPowerRight(); err != nil {
		return Record{}, err
	}

	right, err := WaitForNewInterface(enum, baseline)
	if err != nil {
		return Record{}, fmt.Errorf("identifying right receiver: %w", err)
	}

	afterRight, err := enum.Enumerate()
	if err != nil {
		return Record{}, fmt.Errorf("enumerating after right power-up: %w", err)
	}

	if err := prompt.PromptPowerLeft(); err != nil {
		return Record{}, err
	}

	left, err := WaitForNewInterface(enum, afterRight)
	if err != nil {
		return Record{}, fmt.Errorf("identifying left receiver: %w", err)
	}

	separationCM, err := prompt.PromptSeparationCM()
	if err != nil {
		return Record{}, err
	}

	// Outside [5, 50]cm is accepted but flagged; the caller (the
	// interactive CLI) is responsible for calling SeparationOutOfRange
	// and surfacing the warning.
	return Record{
		LeftInterface:  left,
		RightInterface: right,
		ScanInterface:  left,
		SeparationM:    separationCM / cmPerMeter,
	}, nil
}

// SeparationOutOfRange reports whether a separation (in centimetres)
// falls outside the expected [5, 50]cm physical-mounting range. The
// value is still accepted; this is a warn-but-accept check.
func SeparationOutOfRange(cm float64) bool {
	return cm < minSeparationCM || cm > maxSeparationCM
}
