// Package sharedstate is the central thread-safe store that producers
// write to and the renderer reads a consistent snapshot from.
//
// Grounded directly on the teacher's src/dwgps.go: one mutex, short
// critical sections that do only an in-memory struct copy, generalized
// from a single GPS record to the six data families of the fusion core.
package sharedstate

import (
	"sync"

	"github.com/doismellburning/huskyhud/internal/huderrors"
	"github.com/doismellburning/huskyhud/internal/palette"
)

// GPS is a GPS fix. Every field is nullable independently: a fix with no
// course reports a null Heading only.
type GPS struct {
	Latitude  *float64
	Longitude *float64
	SpeedMPS  *float64
	Heading   *float64
}

// IMU is an inertial-measurement sample. Either every field is present or
// the sample is absent (a Snapshot's IMUSet is false).
type IMU struct {
	HeadingDeg float64
	PitchDeg   float64
	RollDeg    float64
}

// Metrics is a system-resource sample.
type Metrics struct {
	CPUPercent   float64
	RAMPercent   float64
	TemperatureC *float64 // nil => "unavailable"
	NetTXKiB     uint64   // cumulative, monotonically nondecreasing
	NetRXKiB     uint64   // cumulative, monotonically nondecreasing
}

// RFDevice is one classified, distance-estimated access point.
type RFDevice struct {
	SSID          string
	SignalDBm     int
	Channel       int
	Security      string
	FrequencyBand string
	DeviceClass   string
	DistanceM     float64
	Colour        palette.Colour
}

// RFDirection is a fused bearing-and-distance estimate for one SSID.
type RFDirection struct {
	SSID       string
	BearingDeg float64
	Confidence float64
}

// AudioFrame is the most recent fixed-length mono PCM window.
type AudioFrame struct {
	Samples []int16
}

// Snapshot is a deep-copied, internally consistent view of the entire
// store at one instant. Readers must never observe a partially-updated
// record, but need not observe writes that happened after the snapshot
// acquisition began.
type Snapshot struct {
	GPS GPS

	IMU    IMU
	IMUSet bool

	Metrics Metrics

	Networks   []RFDevice
	Directions []RFDirection

	Audio AudioFrame

	// EffectiveHeadingDeg is the heading consumers should use: the IMU
	// heading when present, else the GPS heading, else 0. Computed at
	// snapshot time so every reader agrees without re-deriving the
	// precedence rule documented in the data model (IMU heading
	// supersedes GPS heading).
	EffectiveHeadingDeg float64
	HeadingFromIMU      bool
}

// Store is the single process-wide exclusive-locked shared state. All
// setters and the snapshot accessor contend for the same lock; critical
// sections perform only in-memory copies, never I/O, matching the
// teacher's src/dwgps.go mutex discipline.
type Store struct {
	mu sync.Mutex

	gps    GPS
	imu    IMU
	imuSet bool

	metrics Metrics

	networks   []RFDevice
	directions []RFDirection

	audio AudioFrame
}

// New returns a Store with every field at its cold-start default:
// nulls/empties per the data model.
func New() *Store {
	return &Store{}
}

func inRange(v, lo, hi float64) bool {
	return v >= lo && v <= hi
}

// SetGPS replaces the current GPS fix. Heading, if present, must be in
// [0, 360).
func (s *Store) SetGPS(g GPS) error {
	if g.Heading != nil && (*g.Heading < 0 || *g.Heading >= 360) {
		return &huderrors.RangeError{Field: "gps.heading", Value: *g.Heading, Want: "[0, 360)"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.gps = g

	return nil
}

// HasIMU reports whether an IMU sample is currently present, without
// taking a full snapshot. The GPS producer calls this before writing its
// own heading, since an IMU-sourced heading must never be overwritten by
// a GPS-sourced one.
func (s *Store) HasIMU() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.imuSet
}

// SetIMU replaces the current IMU sample. heading in [0,360), pitch in
// [-90,90], roll in (-180,180].
func (s *Store) SetIMU(sample IMU) error {
	if sample.HeadingDeg < 0 || sample.HeadingDeg >= 360 {
		return &huderrors.RangeError{Field: "imu.heading", Value: sample.HeadingDeg, Want: "[0, 360)"}
	}

	if !inRange(sample.PitchDeg, -90, 90) {
		return &huderrors.RangeError{Field: "imu.pitch", Value: sample.PitchDeg, Want: "[-90, 90]"}
	}

	if sample.RollDeg <= -180 || sample.RollDeg > 180 {
		return &huderrors.RangeError{Field: "imu.roll", Value: sample.RollDeg, Want: "(-180, 180]"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.imu = sample
	s.imuSet = true

	return nil
}

// ClearIMU marks the IMU sample absent, e.g. when the producer exits with
// ErrProducerTerminal and there is no longer any IMU hardware to trust.
func (s *Store) ClearIMU() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.imuSet = false
}

// SetMetrics replaces the current system-metrics sample. Percentages
// must be in [0, 100]. Cumulative counters are kept monotonic by the
// store: a counter lower than the one already held is replaced by the
// held value, so snapshots never see it decrease.
func (s *Store) SetMetrics(m Metrics) error {
	if !inRange(m.CPUPercent, 0, 100) {
		return &huderrors.RangeError{Field: "metrics.cpu_percent", Value: m.CPUPercent, Want: "[0, 100]"}
	}

	if !inRange(m.RAMPercent, 0, 100) {
		return &huderrors.RangeError{Field: "metrics.ram_percent", Value: m.RAMPercent, Want: "[0, 100]"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if m.NetTXKiB < s.metrics.NetTXKiB {
		m.NetTXKiB = s.metrics.NetTXKiB
	}

	if m.NetRXKiB < s.metrics.NetRXKiB {
		m.NetRXKiB = s.metrics.NetRXKiB
	}

	s.metrics = m

	return nil
}

// SetNetworks replaces the whole set of scanned RF devices. Per-device
// entries are overwritten wholesale at each scan; entries not present in
// devices are dropped, matching the spec's "stale entries are dropped"
// lifecycle rule.
func (s *Store) SetNetworks(devices []RFDevice) error {
	for _, d := range devices {
		if d.DistanceM < 0 {
			return &huderrors.RangeError{Field: "rfdevice.distance_m", Value: d.DistanceM, Want: "non-negative"}
		}
	}

	cp := make([]RFDevice, len(devices))
	copy(cp, devices)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.networks = cp

	return nil
}

// SetDirections replaces the whole set of fused RF directions.
func (s *Store) SetDirections(dirs []RFDirection) error {
	for _, d := range dirs {
		if d.BearingDeg < 0 || d.BearingDeg >= 360 {
			return &huderrors.RangeError{Field: "rfdirection.bearing_deg", Value: d.BearingDeg, Want: "[0, 360)"}
		}

		if !inRange(d.Confidence, 0, 1) {
			return &huderrors.RangeError{Field: "rfdirection.confidence", Value: d.Confidence, Want: "[0, 1]"}
		}
	}

	cp := make([]RFDirection, len(dirs))
	copy(cp, dirs)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.directions = cp

	return nil
}

// SetAudio replaces the latest captured PCM window.
func (s *Store) SetAudio(frame AudioFrame) {
	cp := make([]int16, len(frame.Samples))
	copy(cp, frame.Samples)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.audio = AudioFrame{Samples: cp}
}

// Snapshot returns a deep-copied, internally consistent view of the
// entire store, computed under a single lock acquisition covering the
// whole copy-out.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		GPS:     s.gps,
		IMU:     s.imu,
		IMUSet:  s.imuSet,
		Metrics: s.metrics,
	}

	snap.Networks = make([]RFDevice, len(s.networks))
	copy(snap.Networks, s.networks)

	snap.Directions = make([]RFDirection, len(s.directions))
	copy(snap.Directions, s.directions)

	snap.Audio.Samples = make([]int16, len(s.audio.Samples))
	copy(snap.Audio.Samples, s.audio.Samples)

	switch {
	case s.imuSet:
		snap.EffectiveHeadingDeg = s.imu.HeadingDeg
		snap.HeadingFromIMU = true
	case s.gps.Heading != nil:
		snap.EffectiveHeadingDeg = *s.gps.Heading
	default:
		snap.EffectiveHeadingDeg = 0
	}

	return snap
}
