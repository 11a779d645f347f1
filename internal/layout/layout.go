// Package layout computes the overlay's render-composition primitives:
// heading-bar and compass stacking, graceful-degradation placeholders,
// and device-list rotation. The actual drawing is external; this package
// only produces the placement data the drawing layer consumes.
//
// No teacher file computes a bearing-bar layout directly; grounded on
// src/latlong.go's angle-normalization idioms (wrap-around course/bearing
// arithmetic), generalized into the delta-offset formula below, and on
// github.com/golang/geo's s1.Angle for the underlying angle-wrap math.
package layout

import (
	"sort"
	"time"

	"github.com/golang/geo/s1"
)

// Placeholder literals the drawing layer must emit when the relevant
// field is null or its producer is disabled.
const (
	PlaceholderGPS  = "GPS: N/A"
	PlaceholderWifi = "Wi-Fi: N/A"
	PlaceholderTemp = "N/A"
)

// MaxOffBarDeg is the relative-offset cutoff beyond which a device is
// off-bar entirely.
const MaxOffBarDeg = 60.0

// HeadingBarStackThresholdDeg groups devices whose relative offsets
// differ by no more than this into one stack.
const HeadingBarStackThresholdDeg = 5.0

// CompassStackThresholdDeg is the wider grouping threshold used when
// devices are projected onto the 360-degree compass ring instead of the
// heading bar.
const CompassStackThresholdDeg = 15.0

// DirectedDevice is the minimal input a layout needs per device: a
// bearing and a signal strength to order a stack by.
type DirectedDevice struct {
	SSID       string
	BearingDeg float64
	SignalDBm  int
}

// relativeOffset computes delta_i = ((beta_i - H + 540) mod 360) - 180,
// the signed angular offset. s1.Angle.Normalized gives the same wrap for
// (beta_i - H), mapped into (-180, 180] (it returns +180 where the
// formula gives -180, a value off-bar either way): golang/geo's
// wrap primitive is reused here rather than hand-rolled degree
// arithmetic, so the same wrap logic the pack already uses for
// geographic bearings backs the overlay's bearing math too.
func relativeOffset(bearingDeg, headingDeg float64) float64 {
	raw := s1.Angle(bearingDeg-headingDeg) * s1.Degree

	return raw.Normalized().Degrees()
}

// Slot is one placed device within a stack: its perpendicular offset
// from the bar/ring (0 = on the bar) and its position along the bar.
type Slot struct {
	SSID         string
	OnBarDeg     float64 // the group's mean delta; where the slot sits along the bar
	TrueDeltaDeg float64 // the device's own, un-averaged delta; leader line target
	PerpIndex    int     // 0 = topmost slot sits on the bar, 1, 2, ... stack outward
	SignalDBm    int
}

// Stack is a group of devices close enough in bearing that their icons
// cannot be drawn on top of each other.
type Stack struct {
	MeanDeltaDeg float64
	Slots        []Slot
}

// groupByThreshold buckets devices whose deltas differ by <= threshold.
// Devices are first sorted by delta, then chained together: a new device
// joins the current group if it is within threshold of the group's most
// recently added member's delta (a tolerance chain, not a fixed window),
// so a group can span more than threshold overall. With a 5deg threshold,
// -4, -2 and 0 are 2deg apart pairwise and form one stack, while +15 is
// 15deg from 0 and starts its own.
func groupByThreshold(items []deltaItem, threshold float64) [][]deltaItem {
	if len(items) == 0 {
		return nil
	}

	sort.Slice(items, func(i, j int) bool { return items[i].delta < items[j].delta })

	var groups [][]deltaItem

	current := []deltaItem{items[0]}

	for _, it := range items[1:] {
		last := current[len(current)-1]
		if it.delta-last.delta <= threshold {
			current = append(current, it)
		} else {
			groups = append(groups, current)
			current = []deltaItem{it}
		}
	}

	groups = append(groups, current)

	return groups
}

type deltaItem struct {
	device DirectedDevice
	delta  float64
}

func mean(items []deltaItem) float64 {
	var sum float64

	for _, it := range items {
		sum += it.delta
	}

	return sum / float64(len(items))
}

// buildStacks is shared by HeadingBar and Compass: compute relative
// offsets, drop off-bar devices, group within threshold, sort each group
// by descending signal strength (strongest first, becomes the topmost /
// on-bar slot), and assign perpendicular stacking indices.
func buildStacks(devices []DirectedDevice, headingDeg, threshold float64) []Stack {
	items := make([]deltaItem, 0, len(devices))

	for _, d := range devices {
		delta := relativeOffset(d.BearingDeg, headingDeg)
		if delta > MaxOffBarDeg || delta < -MaxOffBarDeg {
			continue
		}

		items = append(items, deltaItem{device: d, delta: delta})
	}

	groups := groupByThreshold(items, threshold)

	stacks := make([]Stack, 0, len(groups))

	for _, g := range groups {
		sort.SliceStable(g, func(i, j int) bool { return g[i].device.SignalDBm > g[j].device.SignalDBm })

		meanDelta := mean(g)

		slots := make([]Slot, len(g))
		for i, it := range g {
			slots[i] = Slot{
				SSID:         it.device.SSID,
				OnBarDeg:     meanDelta,
				TrueDeltaDeg: it.delta,
				PerpIndex:    i,
				SignalDBm:    it.device.SignalDBm,
			}
		}

		stacks = append(stacks, Stack{MeanDeltaDeg: meanDelta, Slots: slots})
	}

	return stacks
}

// HeadingBar computes the linear heading-bar layout: devices within
// +-60deg of headingDeg, grouped into stacks within 5deg of each other.
func HeadingBar(devices []DirectedDevice, headingDeg float64) []Stack {
	return buildStacks(devices, headingDeg, HeadingBarStackThresholdDeg)
}

// Compass computes the same algorithm projected onto a 360-degree ring
// instead of a line, using the wider 15deg grouping threshold.
func Compass(devices []DirectedDevice, headingDeg float64) []Stack {
	return buildStacks(devices, headingDeg, CompassStackThresholdDeg)
}

// RotationWindow is the render-thread-owned state for rotating the
// visible device list when it exceeds MaxVisibleDevices. It lives in the
// render loop, not the shared store, per the concurrency model.
type RotationWindow struct {
	MaxVisible  int
	RotateEvery time.Duration

	index        int
	lastRotateAt time.Time
}

// MaxVisibleDevices is the count above which the visible window rotates.
const MaxVisibleDevices = 8

// RotationInterval is the literal cadence the spec names for advancing
// the visible window by one entry.
const RotationInterval = 3 * time.Second

// NewRotationWindow returns a window that rotates every RotationInterval.
func NewRotationWindow() *RotationWindow {
	return &RotationWindow{MaxVisible: MaxVisibleDevices, RotateEvery: RotationInterval}
}

// Visible returns the slice of devices currently in the rotation window,
// advancing the window by one entry if now has passed RotateEvery since
// the last advance. The first call starts the clock and shows the window
// from the first entry.
func (w *RotationWindow) Visible(devices []string, now time.Time) []string {
	if len(devices) <= w.MaxVisible {
		return devices
	}

	if w.lastRotateAt.IsZero() {
		w.lastRotateAt = now
	} else if now.Sub(w.lastRotateAt) >= w.RotateEvery {
		w.index = (w.index + 1) % len(devices)
		w.lastRotateAt = now
	}

	window := make([]string, 0, w.MaxVisible)

	for i := 0; i < w.MaxVisible; i++ {
		window = append(window, devices[(w.index+i)%len(devices)])
	}

	return window
}

// EffectiveHeadingWithFallback applies the IMU-absent-heading fallback:
// the IMU heading if present (fromFallback=false), else the GPS heading,
// else 0. fromFallback=true means the drawing layer should show its
// "no IMU heading" visual indicator.
func EffectiveHeadingWithFallback(imuHeading *float64, gpsHeading *float64) (headingDeg float64, fromFallback bool) {
	if imuHeading != nil {
		return *imuHeading, false
	}

	if gpsHeading != nil {
		return *gpsHeading, true
	}

	return 0, true
}
