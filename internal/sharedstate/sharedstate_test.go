package sharedstate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doismellburning/huskyhud/internal/huderrors"
)

func ptr(v float64) *float64 { return &v }

func Test_SetGPS_rejectsOutOfRangeHeading(t *testing.T) {
	s := New()

	err := s.SetGPS(GPS{Heading: ptr(400)})

	require.Error(t, err)
	assert.True(t, errors.Is(err, huderrors.ErrInvalidRange))

	snap := s.Snapshot()
	assert.Nil(t, snap.GPS.Heading, "rejected update must leave the store unchanged")
}

func Test_SetIMU_rejectsOutOfRangeFields(t *testing.T) {
	s := New()

	cases := []IMU{
		{HeadingDeg: 400, PitchDeg: 0, RollDeg: 0},
		{HeadingDeg: 0, PitchDeg: 95, RollDeg: 0},
		{HeadingDeg: 0, PitchDeg: 0, RollDeg: -180},
	}

	for _, sample := range cases {
		err := s.SetIMU(sample)
		require.Error(t, err)
		assert.True(t, errors.Is(err, huderrors.ErrInvalidRange))
	}

	assert.False(t, s.HasIMU())
}

func Test_IMU_supersedesGPS_heading(t *testing.T) {
	s := New()

	require.NoError(t, s.SetGPS(GPS{Heading: ptr(90)}))
	require.NoError(t, s.SetIMU(IMU{HeadingDeg: 270, PitchDeg: 0, RollDeg: 0}))

	snap := s.Snapshot()

	assert.True(t, snap.HeadingFromIMU)
	assert.Equal(t, 270.0, snap.EffectiveHeadingDeg)
}

func Test_EffectiveHeading_fallsBackToGPSThenZero(t *testing.T) {
	s := New()

	assert.Equal(t, 0.0, s.Snapshot().EffectiveHeadingDeg)

	require.NoError(t, s.SetGPS(GPS{Heading: ptr(45)}))
	assert.Equal(t, 45.0, s.Snapshot().EffectiveHeadingDeg)
}

func Test_SetMetrics_countersNeverDecrease(t *testing.T) {
	s := New()

	require.NoError(t, s.SetMetrics(Metrics{CPUPercent: 10, RAMPercent: 10, NetTXKiB: 100, NetRXKiB: 50}))
	require.NoError(t, s.SetMetrics(Metrics{CPUPercent: 20, RAMPercent: 20, NetTXKiB: 40, NetRXKiB: 10}))

	snap := s.Snapshot()

	assert.Equal(t, uint64(100), snap.Metrics.NetTXKiB, "counters must never decrease across snapshots")
	assert.Equal(t, uint64(50), snap.Metrics.NetRXKiB)
}

func Test_SetMetrics_rejectsOutOfRangePercent(t *testing.T) {
	s := New()

	err := s.SetMetrics(Metrics{CPUPercent: 150, RAMPercent: 10})
	require.Error(t, err)
	assert.True(t, errors.Is(err, huderrors.ErrInvalidRange))
}

func Test_SetNetworks_rejectsNegativeDistance(t *testing.T) {
	s := New()

	err := s.SetNetworks([]RFDevice{{SSID: "bad", DistanceM: -1}})
	require.Error(t, err)
}

func Test_SetNetworks_wholesaleReplace(t *testing.T) {
	s := New()

	require.NoError(t, s.SetNetworks([]RFDevice{{SSID: "one"}, {SSID: "two"}}))
	require.NoError(t, s.SetNetworks([]RFDevice{{SSID: "three"}}))

	snap := s.Snapshot()
	require.Len(t, snap.Networks, 1)
	assert.Equal(t, "three", snap.Networks[0].SSID)
}

func Test_SetDirections_rejectsOutOfRangeBearingAndConfidence(t *testing.T) {
	s := New()

	require.Error(t, s.SetDirections([]RFDirection{{SSID: "x", BearingDeg: 400, Confidence: 0.5}}))
	require.Error(t, s.SetDirections([]RFDirection{{SSID: "x", BearingDeg: 90, Confidence: 1.5}}))
}

func Test_Snapshot_isAtomicAcrossFamilies(t *testing.T) {
	// Scenario E: metrics then GPS writes must both be visible together.
	s := New()

	require.NoError(t, s.SetMetrics(Metrics{CPUPercent: 45, RAMPercent: 62}))
	require.NoError(t, s.SetGPS(GPS{Latitude: ptr(37.7749), Longitude: ptr(-122.4194)}))

	snap := s.Snapshot()

	assert.Equal(t, 45.0, snap.Metrics.CPUPercent)
	assert.Equal(t, 62.0, snap.Metrics.RAMPercent)
	assert.Nil(t, snap.Metrics.TemperatureC)
	require.NotNil(t, snap.GPS.Latitude)
	assert.InDelta(t, 37.7749, *snap.GPS.Latitude, 1e-9)
	require.NotNil(t, snap.GPS.Longitude)
	assert.InDelta(t, -122.4194, *snap.GPS.Longitude, 1e-9)
}

func Test_Snapshot_isDeepCopy(t *testing.T) {
	s := New()

	require.NoError(t, s.SetNetworks([]RFDevice{{SSID: "one"}}))

	snap := s.Snapshot()
	snap.Networks[0].SSID = "mutated"

	assert.Equal(t, "one", s.Snapshot().Networks[0].SSID, "mutating a snapshot must not affect the store")
}

func Test_ClearIMU(t *testing.T) {
	s := New()

	require.NoError(t, s.SetIMU(IMU{HeadingDeg: 10}))
	assert.True(t, s.HasIMU())

	s.ClearIMU()
	assert.False(t, s.HasIMU())
}
