package wifiscan

import (
	"context"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doismellburning/huskyhud/internal/rfmodel"
	"github.com/doismellburning/huskyhud/internal/sharedstate"
)

const sampleScan = `BSS aa:bb:cc:dd:ee:01(on wlan0)
	SSID: HomeNetwork
	signal: -45.00 dBm
	DS Parameter set: channel 6
	RSN:	 * Version: 1
BSS aa:bb:cc:dd:ee:02(on wlan0)
	SSID: DJI-Mavic-1234
	signal: -60.00 dBm
	DS Parameter set: channel 149
BSS aa:bb:cc:dd:ee:03(on wlan0)
	SSID: OpenGuest
	signal: -70.00 dBm
	DS Parameter set: channel 1
`

func Test_parseIWScan_parsesAllFields(t *testing.T) {
	results := parseIWScan(sampleScan)

	require.Len(t, results, 3)

	home := results[0]
	assert.Equal(t, "HomeNetwork", home.Observation.SSID)
	assert.Equal(t, -45, home.Observation.SignalDBm)
	assert.Equal(t, 6, home.Observation.Channel)
	assert.Equal(t, rfmodel.Band24, home.Observation.Band)
	assert.Equal(t, rfmodel.SecuritySecured, home.Security)

	drone := results[1]
	assert.Equal(t, "DJI-Mavic-1234", drone.Observation.SSID)
	assert.Equal(t, 149, drone.Observation.Channel)
	assert.Equal(t, rfmodel.Band58, drone.Observation.Band)
	assert.Equal(t, rfmodel.SecurityOpen, drone.Security)

	guest := results[2]
	assert.Equal(t, "OpenGuest", guest.Observation.SSID)
	assert.Equal(t, rfmodel.SecurityOpen, guest.Security)
}

func Test_parseIWScan_blockWithoutSSIDIsKeptWithEmptySSID(t *testing.T) {
	const noSSID = "BSS aa:bb:cc:dd:ee:99(on wlan0)\n\tsignal: -50.00 dBm\n"

	results := parseIWScan(noSSID)
	require.Len(t, results, 1)
	assert.Empty(t, results[0].Observation.SSID)
	assert.Equal(t, -50, results[0].Observation.SignalDBm)
}

func Test_parseIWScan_emptyOutput(t *testing.T) {
	assert.Empty(t, parseIWScan(""))
}

func Test_channelToBand_boundary(t *testing.T) {
	assert.Equal(t, rfmodel.Band24, channelToBand(1))
	assert.Equal(t, rfmodel.Band24, channelToBand(14))
	assert.Equal(t, rfmodel.Band58, channelToBand(15))
	assert.Equal(t, rfmodel.Band58, channelToBand(149))
}

func Test_recordHistory_keepsLastThree(t *testing.T) {
	p := &Producer{history: make(map[string][]int)}

	for _, signal := range []int{-40, -41, -42, -43} {
		p.recordHistory("net", signal)
	}

	assert.Equal(t, []int{-41, -42, -43}, p.history["net"])
}

type stubRunner struct {
	output string
	err    error
}

func (s stubRunner) Scan(_ context.Context, _ string) (string, error) {
	return s.output, s.err
}

func Test_scanOnce_writesClassifiedDevicesIntoStore(t *testing.T) {
	p := &Producer{
		Interface: "wlan0",
		Store:     sharedstate.New(),
		Logger:    log.NewWithOptions(io.Discard, log.Options{}), //nolint:exhaustruct
		Runner:    stubRunner{output: sampleScan},
		history:   make(map[string][]int),
	}

	require.NoError(t, p.scanOnce(context.Background()))

	snap := p.Store.Snapshot()
	require.Len(t, snap.Networks, 3)

	var drone *sharedstate.RFDevice

	for i := range snap.Networks {
		if snap.Networks[i].SSID == "DJI-Mavic-1234" {
			drone = &snap.Networks[i]
		}
	}

	require.NotNil(t, drone)
	assert.Equal(t, rfmodel.ClassDrone, drone.DeviceClass)
	assert.Greater(t, drone.DistanceM, 0.0)
}

func Test_scanOnce_propagatesRunnerFailureAsTransient(t *testing.T) {
	p := &Producer{
		Interface: "wlan0",
		Store:     sharedstate.New(),
		Logger:    log.NewWithOptions(io.Discard, log.Options{}), //nolint:exhaustruct
		Runner:    stubRunner{err: assert.AnError},
		history:   make(map[string][]int),
	}

	err := p.scanOnce(context.Background())
	require.Error(t, err)
}
