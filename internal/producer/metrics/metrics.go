// Package metrics polls CPU, RAM, temperature and cumulative network
// counters at 1Hz and writes them into the shared store.
//
// Grounded on the teacher's src/audio_stats.go periodic-polling-loop
// shape; the readings themselves come straight from /proc and
// thermal-zone files the way the teacher reads other host facts
// directly off the filesystem rather than through a library (see
// DESIGN.md for why no metrics-collection dependency is wired here).
package metrics

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/doismellburning/huskyhud/internal/huderrors"
	"github.com/doismellburning/huskyhud/internal/producer"
	"github.com/doismellburning/huskyhud/internal/sharedstate"
)

// PollInterval is the producer's documented 1Hz cadence.
const PollInterval = time.Second

// Producer samples host resource usage once per PollInterval. It never
// returns a terminal error: per the producer table, a metrics query
// failure writes "unavailable" and continues rather than giving up.
type Producer struct {
	Store  *sharedstate.Store
	Logger *log.Logger

	ProcRoot    string // normally "/proc"; overridable for tests
	ThermalRoot string // normally "/sys/class/thermal"

	prevIdle, prevTotal uint64
	havePrevCPU         bool
}

// New returns a metrics producer reading the real /proc and
// /sys/class/thermal hierarchies.
func New(store *sharedstate.Store) *Producer {
	return &Producer{
		Store:       store,
		Logger:      log.Default(),
		ProcRoot:    "/proc",
		ThermalRoot: "/sys/class/thermal",
	}
}

// Name implements producer.Producer.
func (p *Producer) Name() string { return "metrics" }

// SetLogger swaps in a subsystem-tagged logger, used by the service
// manager before launching the producer.
func (p *Producer) SetLogger(l *log.Logger) { p.Logger = l }

// Run implements producer.Producer.
func (p *Producer) Run(ctx context.Context) error {
	return producer.RunLoop(ctx, p.Logger, PollInterval, p.sampleOnce)
}

// sampleOnce never returns an error that the barrier treats as terminal:
// every individual reading degrades to "unavailable" on its own failure,
// matching the producer table's "never" terminal-error entry.
func (p *Producer) sampleOnce(ctx context.Context) error {
	cpuPct := p.readCPUPercent()
	ramPct := p.readRAMPercent()
	temp := p.readTemperatureC()
	tx, rx := p.readNetCounters()

	sample := sharedstate.Metrics{
		CPUPercent:   cpuPct,
		RAMPercent:   ramPct,
		TemperatureC: temp,
		NetTXKiB:     tx,
		NetRXKiB:     rx,
	}

	if err := p.Store.SetMetrics(sample); err != nil {
		p.Logger.Warn("metrics sample rejected", "err", err)

		return fmt.Errorf("%w: %w", huderrors.ErrProducerTransient, err)
	}

	return nil
}

// readCPUPercent computes utilization from two successive /proc/stat
// "cpu " lines' idle/total deltas. The first call after startup has no
// prior sample to diff against and reports 0.
func (p *Producer) readCPUPercent() float64 {
	f, err := os.Open(filepath.Join(p.ProcRoot, "stat"))
	if err != nil {
		p.Logger.Warn("reading /proc/stat failed", "err", err)

		return 0
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return 0
	}

	fields := strings.Fields(scanner.Text())
	if len(fields) < 5 || fields[0] != "cpu" {
		return 0
	}

	var total, idle uint64

	for i, field := range fields[1:] {
		v, err := strconv.ParseUint(field, 10, 64)
		if err != nil {
			continue
		}

		total += v

		const idleFieldIndex = 3
		if i == idleFieldIndex {
			idle = v
		}
	}

	defer func() {
		p.prevIdle, p.prevTotal = idle, total
		p.havePrevCPU = true
	}()

	if !p.havePrevCPU || total <= p.prevTotal {
		return 0
	}

	totalDelta := total - p.prevTotal
	idleDelta := idle - p.prevIdle

	if totalDelta == 0 {
		return 0
	}

	pct := 100 * (1 - float64(idleDelta)/float64(totalDelta))

	return clampPercent(pct)
}

// readRAMPercent derives used-memory percentage from /proc/meminfo's
// MemTotal and MemAvailable fields.
func (p *Producer) readRAMPercent() float64 {
	f, err := os.Open(filepath.Join(p.ProcRoot, "meminfo"))
	if err != nil {
		p.Logger.Warn("reading /proc/meminfo failed", "err", err)

		return 0
	}
	defer f.Close()

	var totalKB, availKB uint64

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, "MemTotal:"):
			totalKB = parseMeminfoKB(line)
		case strings.HasPrefix(line, "MemAvailable:"):
			availKB = parseMeminfoKB(line)
		}
	}

	if totalKB == 0 {
		return 0
	}

	usedPct := 100 * (1 - float64(availKB)/float64(totalKB))

	return clampPercent(usedPct)
}

func parseMeminfoKB(line string) uint64 {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0
	}

	v, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return 0
	}

	return v
}

// readTemperatureC applies the fallback order: thermal-zone file, then a
// platform-sensor-named zone, then "unavailable" (nil).
func (p *Producer) readTemperatureC() *float64 {
	if v, ok := p.readThermalZone(); ok {
		return &v
	}

	if v, ok := p.readPlatformSensor(); ok {
		return &v
	}

	return nil
}

// readThermalZone scans /sys/class/thermal/thermal_zone* in lexical name
// order (thermal_zone10 before thermal_zone2) and returns the first zone
// that yields a value.
func (p *Producer) readThermalZone() (float64, bool) {
	entries, err := os.ReadDir(p.ThermalRoot)
	if err != nil {
		return 0, false
	}

	var zones []string

	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "thermal_zone") {
			zones = append(zones, e.Name())
		}
	}

	sort.Strings(zones)

	for _, zone := range zones {
		path := filepath.Join(p.ThermalRoot, zone, "temp")

		raw, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		milliC, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
		if err != nil {
			continue
		}

		return float64(milliC) / 1000.0, true
	}

	return 0, false
}

// readPlatformSensor reads the first hwmon device's temp1_input
// (millidegrees C), in the hwmon directory beside ThermalRoot
// (/sys/class/hwmon/hwmon0/temp1_input by default), as a fallback when
// no thermal_zone file could be read, per the documented fallback order.
func (p *Producer) readPlatformSensor() (float64, bool) {
	sensorPath := filepath.Join(filepath.Dir(p.ThermalRoot), "hwmon", "hwmon0", "temp1_input")

	raw, err := os.ReadFile(sensorPath)
	if err != nil {
		return 0, false
	}

	milliC, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		return 0, false
	}

	return float64(milliC) / 1000.0, true
}

// readNetCounters sums rx/tx bytes across every non-loopback interface in
// /proc/net/dev, converted to cumulative KiB.
func (p *Producer) readNetCounters() (txKiB, rxKiB uint64) {
	f, err := os.Open(filepath.Join(p.ProcRoot, "net", "dev"))
	if err != nil {
		p.Logger.Warn("reading /proc/net/dev failed", "err", err)

		return 0, 0
	}
	defer f.Close()

	var totalTXBytes, totalRXBytes uint64

	scanner := bufio.NewScanner(f)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if lineNo <= 2 {
			continue // header lines
		}

		iface, rxBytes, txBytes, ok := parseNetDevLine(scanner.Text())
		if !ok || iface == "lo" {
			continue
		}

		totalRXBytes += rxBytes
		totalTXBytes += txBytes
	}

	return totalTXBytes / 1024, totalRXBytes / 1024
}

func parseNetDevLine(line string) (iface string, rxBytes, txBytes uint64, ok bool) {
	name, rest, found := strings.Cut(line, ":")
	if !found {
		return "", 0, 0, false
	}

	fields := strings.Fields(rest)

	const minFields = 9
	if len(fields) < minFields {
		return "", 0, 0, false
	}

	rx, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return "", 0, 0, false
	}

	const txBytesFieldIndex = 8

	tx, err := strconv.ParseUint(fields[txBytesFieldIndex], 10, 64)
	if err != nil {
		return "", 0, 0, false
	}

	return strings.TrimSpace(name), rx, tx, true
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}

	if v > 100 {
		return 100
	}

	return v
}
