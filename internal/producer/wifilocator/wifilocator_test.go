package wifilocator

import (
	"context"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doismellburning/huskyhud/internal/sharedstate"
)

const leftScan = `BSS aa:bb:cc:dd:ee:01(on wlan1)
	SSID: SharedNet
	signal: -40.00 dBm
	DS Parameter set: channel 6
BSS aa:bb:cc:dd:ee:02(on wlan1)
	SSID: LeftOnly
	signal: -55.00 dBm
	DS Parameter set: channel 6
`

const rightScan = `BSS aa:bb:cc:dd:ee:03(on wlan2)
	SSID: SharedNet
	signal: -50.00 dBm
	DS Parameter set: channel 6
BSS aa:bb:cc:dd:ee:04(on wlan2)
	SSID: RightOnly
	signal: -55.00 dBm
	DS Parameter set: channel 6
`

func Test_parseScan_extractsSSIDSignalAndBand(t *testing.T) {
	obs := parseScan(leftScan)

	require.Len(t, obs, 2)
	assert.Equal(t, "SharedNet", obs[0].SSID)
	assert.Equal(t, -40, obs[0].SignalDBm)
	assert.Equal(t, 6, obs[0].Channel)
}

func Test_indexBySSID(t *testing.T) {
	obs := parseScan(leftScan)
	m := indexBySSID(obs)

	require.Contains(t, m, "SharedNet")
	require.Contains(t, m, "LeftOnly")
	assert.Equal(t, -40, m["SharedNet"].SignalDBm)
}

type stubRunner struct {
	byInterface map[string]string
}

func (s stubRunner) Scan(_ context.Context, iface string) (string, error) {
	return s.byInterface[iface], nil
}

func Test_locateOnce_onlySharedSSIDsGetBearings(t *testing.T) {
	p := &Producer{
		LeftInterface:  "wlan1",
		RightInterface: "wlan2",
		Store:          sharedstate.New(),
		Logger:         log.NewWithOptions(io.Discard, log.Options{}), //nolint:exhaustruct
		Runner: stubRunner{byInterface: map[string]string{
			"wlan1": leftScan,
			"wlan2": rightScan,
		}},
	}

	require.NoError(t, p.locateOnce(context.Background()))

	snap := p.Store.Snapshot()
	require.Len(t, snap.Directions, 1)
	assert.Equal(t, "SharedNet", snap.Directions[0].SSID)

	assert.GreaterOrEqual(t, snap.Directions[0].BearingDeg, 0.0)
	assert.Less(t, snap.Directions[0].BearingDeg, 360.0)
}

func Test_locateOnce_bearingIncorporatesEffectiveHeading(t *testing.T) {
	store := sharedstate.New()
	require.NoError(t, store.SetIMU(sharedstate.IMU{HeadingDeg: 90, PitchDeg: 0, RollDeg: 0}))

	p := &Producer{
		LeftInterface:  "wlan1",
		RightInterface: "wlan2",
		Store:          store,
		Logger:         log.NewWithOptions(io.Discard, log.Options{}), //nolint:exhaustruct
		Runner: stubRunner{byInterface: map[string]string{
			"wlan1": leftScan,
			"wlan2": rightScan,
		}},
	}

	require.NoError(t, p.locateOnce(context.Background()))

	snap := p.Store.Snapshot()
	require.Len(t, snap.Directions, 1)

	// Left is stronger (-40 > -50) so the bias is non-zero; the
	// resulting bearing must differ from the bare heading of 90.
	assert.NotEqual(t, 90.0, snap.Directions[0].BearingDeg)
}

func Test_Run_requiresBothReceivers(t *testing.T) {
	p := &Producer{
		LeftInterface:  "",
		RightInterface: "wlan2",
		Store:          sharedstate.New(),
		Logger:         log.NewWithOptions(io.Discard, log.Options{}), //nolint:exhaustruct
		Runner:         stubRunner{},
	}

	err := p.Run(context.Background())
	require.Error(t, err)
}
