// Package rfmodel implements the RF-environment analytics used by the
// heads-up overlay: access-point classification, path-loss distance
// estimation, and dual-receiver triangulation.
//
// Grounded on the teacher's src/deviceid.go pattern of token-substring
// classification tables, and on src/latlong.go for angle-normalization
// idioms reused in bearing arithmetic.
package rfmodel

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Device class labels, as they appear in a Snapshot's RF device entries.
const (
	ClassDrone   = "drone"
	ClassRouter  = "router"
	ClassUnknown = "unknown"
)

// Band labels.
const (
	Band24 = "2.4GHz"
	Band58 = "5.8GHz"
)

// Security labels.
const (
	SecurityOpen    = "open"
	SecuritySecured = "secured"
)

// droneTokens are manufacturer substrings matched case-insensitively
// against an SSID. Any match makes Classify return ClassDrone.
var droneTokens = []string{"dji", "mavic", "phantom", "parrot", "autel"}

// residentialLookingTokens are substrings suggesting an access point is a
// consumer router rather than a purpose-flown drone: known residential
// ISP/vendor brand tokens, plus generic placeholder names that mark an
// AP that was never given a deliberate custom SSID. A drone operator's
// SSID is a deliberately chosen name; an unconfigured consumer router's
// is a vendor default or a blank/"unnamed" placeholder — so rule 2 (5.8GHz
// => drone) must treat a match against either set as "looks residential",
// not just the brand tokens. Grounded on the teacher's deviceid.go habit
// of keeping small match tables of recognized name tokens rather than a
// generic classifier; this is the allowlist rule 2's "does not look like
// a residential router SSID" check matches against.
var residentialLookingTokens = []string{
	"netgear", "linksys", "xfinity", "spectrum", "att-", "frontier",
	"-5g", "home", "tp-link", "asus", "comcast",
	"unnamed", "unknown", "default", "untitled", "new network", "no ssid", "hidden",
}

// standard24GHzChannels are the three non-overlapping 2.4GHz channels.
var standard24GHzChannels = map[int]bool{1: true, 6: true, 11: true}

// Observation is one receiver's view of a single scanned access point
// across one or more successive scans, enough to evaluate the
// classification rules.
type Observation struct {
	SSID         string
	SignalDBm    int
	Channel      int
	Band         string // Band24 or Band58
	PriorSignals []int  // signal history from the most recent prior scans, strongest-first not required
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), needle)
}

// Classify applies the four ordered classification rules from the RF
// model: drone token match, 5.8GHz-and-not-residential, stable 2.4GHz
// standard channel, else unknown.
func Classify(obs Observation) string {
	for _, tok := range droneTokens {
		if containsFold(obs.SSID, tok) {
			return ClassDrone
		}
	}

	if obs.Band == Band58 {
		residential := obs.SSID == ""

		for _, tok := range residentialLookingTokens {
			if containsFold(obs.SSID, tok) {
				residential = true

				break
			}
		}

		if !residential {
			return ClassDrone
		}
	}

	if standard24GHzChannels[obs.Channel] && signalStable(obs.SignalDBm, obs.PriorSignals) {
		return ClassRouter
	}

	return ClassUnknown
}

// signalStable reports whether the current signal is within a small
// tolerance of the most recent prior reading. With no prior history, a
// single observation is treated as stable (nothing to contradict it yet).
func signalStable(current int, prior []int) bool {
	if len(prior) == 0 {
		return true
	}

	last := prior[len(prior)-1]
	delta := current - last

	if delta < 0 {
		delta = -delta
	}

	const stableToleranceDB = 6

	return delta <= stableToleranceDB
}

// Path-loss model constants. These encode an assumed transmit power and
// frequency-dependent loss differential; they are approximate but must
// be reproduced exactly so distance displays agree across the fleet.
const (
	txReferenceDBm  = 27.55
	band24OffsetDB  = 0.0
	band58OffsetDB  = 7.6
	pathLossDivisor = 20.0
)

// BandOffset returns the frequency-dependent loss differential for a band.
func BandOffset(band string) float64 {
	if band == Band58 {
		return band58OffsetDB
	}

	return band24OffsetDB
}

// DistanceMeters inverts the free-space path-loss formula to estimate
// distance from signal strength.
//
//	distance_m = 10 ^ ((tx_reference_dBm - rssi_dBm - band_offset_dB) / 20)
func DistanceMeters(rssiDBm int, band string) float64 {
	exponent := (txReferenceDBm - float64(rssiDBm) - BandOffset(band)) / pathLossDivisor

	return math.Pow(10, exponent)
}

// RSSIFromDistance inverts DistanceMeters, recovering the RSSI that would
// produce a given distance under the same path-loss model. Used to verify
// the round-trip testable property.
func RSSIFromDistance(distanceM float64, band string) float64 {
	return txReferenceDBm - BandOffset(band) - pathLossDivisor*math.Log10(distanceM)
}

// Direction is a fused bearing-and-distance estimate for one SSID seen
// by two receivers.
type Direction struct {
	SSID       string
	BearingDeg float64 // absolute, [0, 360)
	Confidence float64 // [0, 1]
}

// FusedDistance is the signal-weighted mean distance from dual-receiver
// triangulation, plus the signed bearing bias before it is applied to
// the vehicle heading.
type FusedDistance struct {
	DistanceM  float64
	BiasDeg    float64 // signed: negative = left, positive = right
	Confidence float64
}

const (
	maxBearingBiasDeg      = 60.0
	biasPerDBDeg           = 3.0 // degrees of bias per dB of signal differential
	equalSignalToleranceDB = 1.0
)

// Triangulate fuses left- and right-receiver RSSI and per-receiver
// path-loss distance for the same SSID into one distance-and-bearing
// estimate.
//
// Bearing is signed by the stronger side: a stronger left signal biases
// left of current heading, a stronger right signal biases right,
// proportional to the |L-R| differential and clamped to +-60 degrees.
// Confidence is min(1, |L-R|/20). Within 1dB the two receivers are
// treated as equal: bearing bias is 0, confidence stays low because the
// formula is continuous at the threshold (no special-cased jump).
func Triangulate(leftRSSI, rightRSSI int, distLeft, distRight float64) FusedDistance {
	lDBm := float64(leftRSSI)
	rDBm := float64(rightRSSI)

	fused := (distLeft*rDBm + distRight*lDBm) / (lDBm + rDBm)

	diff := float64(leftRSSI - rightRSSI)
	absDiff := diff

	if absDiff < 0 {
		absDiff = -absDiff
	}

	var bias float64

	if absDiff <= equalSignalToleranceDB {
		bias = 0
	} else if leftRSSI > rightRSSI {
		// Stronger left signal => bias left (negative).
		bias = -clamp(absDiff*biasPerDBDeg, 0, maxBearingBiasDeg)
	} else {
		bias = clamp(absDiff*biasPerDBDeg, 0, maxBearingBiasDeg)
	}

	confidence := absDiff / 20.0
	if confidence > 1 {
		confidence = 1
	}

	return FusedDistance{DistanceM: fused, BiasDeg: bias, Confidence: confidence}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}

// NormalizeDeg wraps a degree value into [0, 360).
func NormalizeDeg(deg float64) float64 {
	const full = 360.0

	deg = math.Mod(deg, full)
	if deg < 0 {
		deg += full
	}

	return deg
}

// FormatDistance renders a distance in metres the way the overlay's
// compact readout does: "~5m" under a kilometre, "~1.5km" at or above it.
func FormatDistance(distanceM float64) string {
	const kmThreshold = 1000.0

	if distanceM < kmThreshold {
		return "~" + strconv.Itoa(int(distanceM)) + "m"
	}

	km := distanceM / kmThreshold

	return "~" + fmt.Sprintf("%.1f", km) + "km"
}
