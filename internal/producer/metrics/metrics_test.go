package metrics

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doismellburning/huskyhud/internal/sharedstate"
)

func testProducer(t *testing.T) (*Producer, string) {
	t.Helper()

	procRoot := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(procRoot, "net"), 0o755))

	return &Producer{
		Store:       sharedstate.New(),
		Logger:      log.NewWithOptions(io.Discard, log.Options{}), //nolint:exhaustruct
		ProcRoot:    procRoot,
		ThermalRoot: filepath.Join(procRoot, "thermal-missing"),
	}, procRoot
}

func Test_readRAMPercent(t *testing.T) {
	p, procRoot := testProducer(t)

	meminfo := "MemTotal:        2000000 kB\nMemAvailable:     500000 kB\n"
	require.NoError(t, os.WriteFile(filepath.Join(procRoot, "meminfo"), []byte(meminfo), 0o600))

	pct := p.readRAMPercent()

	assert.InDelta(t, 75.0, pct, 1e-6)
}

func Test_readRAMPercent_missingFileYieldsZero(t *testing.T) {
	p, _ := testProducer(t)

	assert.Equal(t, 0.0, p.readRAMPercent())
}

func Test_readCPUPercent_noPriorSampleIsZero(t *testing.T) {
	p, procRoot := testProducer(t)

	require.NoError(t, os.WriteFile(filepath.Join(procRoot, "stat"),
		[]byte("cpu  100 0 100 800 0 0 0 0 0 0\n"), 0o600))

	assert.Equal(t, 0.0, p.readCPUPercent())
}

func Test_readCPUPercent_secondSampleComputesDelta(t *testing.T) {
	p, procRoot := testProducer(t)
	statPath := filepath.Join(procRoot, "stat")

	require.NoError(t, os.WriteFile(statPath, []byte("cpu  100 0 100 800 0 0 0 0 0 0\n"), 0o600))
	p.readCPUPercent()

	// total delta = 200, idle delta = 100 => 50% utilization.
	require.NoError(t, os.WriteFile(statPath, []byte("cpu  150 0 150 900 0 0 0 0 0 0\n"), 0o600))

	pct := p.readCPUPercent()
	assert.InDelta(t, 50.0, pct, 1e-6)
}

func Test_readTemperatureC_thermalZone(t *testing.T) {
	p, procRoot := testProducer(t)

	thermalRoot := filepath.Join(procRoot, "thermal")
	p.ThermalRoot = thermalRoot

	zoneDir := filepath.Join(thermalRoot, "thermal_zone0")
	require.NoError(t, os.MkdirAll(zoneDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(zoneDir, "temp"), []byte("45123\n"), 0o600))

	temp := p.readTemperatureC()
	require.NotNil(t, temp)
	assert.InDelta(t, 45.123, *temp, 1e-6)
}

func Test_readTemperatureC_unavailableWhenNoSensor(t *testing.T) {
	p, _ := testProducer(t)

	assert.Nil(t, p.readTemperatureC())
}

func Test_readNetCounters_sumsNonLoopbackInterfaces(t *testing.T) {
	p, procRoot := testProducer(t)

	netDev := `Inter-|   Receive                                                |  Transmit
 face |bytes    packets errs drop fifo frame compressed multicast|bytes    packets errs drop fifo colls carrier compressed
    lo:  100       1    0    0    0     0          0         0      100       1    0    0    0     0       0          0
  eth0: 2048       4    0    0    0     0          0         0     1024       2    0    0    0     0       0          0
`
	require.NoError(t, os.WriteFile(filepath.Join(procRoot, "net", "dev"), []byte(netDev), 0o600))

	tx, rx := p.readNetCounters()

	assert.Equal(t, uint64(1), tx) // 1024 bytes / 1024 = 1 KiB
	assert.Equal(t, uint64(2), rx) // 2048 bytes / 1024 = 2 KiB
}

func Test_clampPercent(t *testing.T) {
	assert.Equal(t, 0.0, clampPercent(-5))
	assert.Equal(t, 100.0, clampPercent(150))
	assert.Equal(t, 50.0, clampPercent(50))
}

func Test_sampleOnce_writesIntoStore(t *testing.T) {
	p, procRoot := testProducer(t)

	require.NoError(t, os.WriteFile(filepath.Join(procRoot, "meminfo"),
		[]byte("MemTotal: 1000 kB\nMemAvailable: 1000 kB\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(procRoot, "net", "dev"), []byte("Inter-|\n face |\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(procRoot, "stat"), []byte("cpu  0 0 0 0 0 0 0 0 0 0\n"), 0o600))

	require.NoError(t, p.sampleOnce(nil))

	snap := p.Store.Snapshot()
	assert.Nil(t, snap.Metrics.TemperatureC)
}
