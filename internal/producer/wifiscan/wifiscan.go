// Package wifiscan periodically shells out to a wireless scan utility
// and classifies/distances every access point it reports through
// internal/rfmodel.
//
// Grounded on the teacher's src/kissutil.go and src/nettnc.go pattern of
// invoking and parsing the text output of an external utility rather
// than linking a netlink/wireless library directly.
package wifiscan

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/doismellburning/huskyhud/internal/huderrors"
	"github.com/doismellburning/huskyhud/internal/palette"
	"github.com/doismellburning/huskyhud/internal/producer"
	"github.com/doismellburning/huskyhud/internal/rfmodel"
	"github.com/doismellburning/huskyhud/internal/sharedstate"
)

// ScanInterval is the producer's documented cadence.
const ScanInterval = 15 * time.Second

// Runner abstracts "invoke the scan utility and return its stdout", so
// tests can stub the external process without actually shelling out.
type Runner interface {
	Scan(ctx context.Context, iface string) (string, error)
}

// execRunner shells out to `iw dev <iface> scan`, the teacher's
// shell-out-to-a-utility idiom applied to wireless scanning.
type execRunner struct{}

func (execRunner) Scan(ctx context.Context, iface string) (string, error) {
	cmd := exec.CommandContext(ctx, "iw", "dev", iface, "scan")

	out, err := cmd.Output()
	if err != nil {
		return "", err
	}

	return string(out), nil
}

// Producer scans one wireless interface on a timer and writes classified,
// distance-estimated devices into the shared store.
type Producer struct {
	Interface string
	Store     *sharedstate.Store
	Logger    *log.Logger
	Runner    Runner

	// history holds each SSID's most recent prior signal readings, for
	// rfmodel.Classify's stability check across successive scans.
	history map[string][]int
}

// New returns a Wi-Fi scan producer for the named interface, invoking the
// real `iw` utility.
func New(store *sharedstate.Store, iface string) *Producer {
	return &Producer{
		Interface: iface,
		Store:     store,
		Logger:    log.Default(),
		Runner:    execRunner{},
		history:   make(map[string][]int),
	}
}

// Name implements producer.Producer.
func (p *Producer) Name() string { return "wifiscan" }

// SetLogger swaps in a subsystem-tagged logger, used by the service
// manager before launching the producer.
func (p *Producer) SetLogger(l *log.Logger) { p.Logger = l }

// Run implements producer.Producer.
func (p *Producer) Run(ctx context.Context) error {
	if _, err := exec.LookPath("iw"); err != nil {
		return fmt.Errorf("%w: scan utility not found: %w", huderrors.ErrProducerTerminal, err)
	}

	return producer.RunLoop(ctx, p.Logger, ScanInterval, p.scanOnce)
}

func (p *Producer) scanOnce(ctx context.Context) error {
	out, err := p.Runner.Scan(ctx, p.Interface)
	if err != nil {
		return fmt.Errorf("%w: scan invocation failed: %w", huderrors.ErrProducerTransient, err)
	}

	results := parseIWScan(out)

	devices := make([]sharedstate.RFDevice, 0, len(results))

	for _, res := range results {
		res.Observation.PriorSignals = p.history[res.Observation.SSID]
		class := rfmodel.Classify(res.Observation)
		distance := rfmodel.DistanceMeters(res.Observation.SignalDBm, res.Observation.Band)

		devices = append(devices, sharedstate.RFDevice{
			SSID:          res.Observation.SSID,
			SignalDBm:     res.Observation.SignalDBm,
			Channel:       res.Observation.Channel,
			Security:      res.Security,
			FrequencyBand: res.Observation.Band,
			DeviceClass:   class,
			DistanceM:     distance,
			Colour:        palette.ColourFor(res.Observation.SSID),
		})

		p.recordHistory(res.Observation.SSID, res.Observation.SignalDBm)
	}

	if err := p.Store.SetNetworks(devices); err != nil {
		return fmt.Errorf("%w: %w", huderrors.ErrProducerTransient, err)
	}

	return nil
}

// recordHistory keeps the most recent few readings per SSID so the next
// scan's stability check has something to compare against.
func (p *Producer) recordHistory(ssid string, signal int) {
	const maxHistory = 3

	h := append(p.history[ssid], signal)
	if len(h) > maxHistory {
		h = h[len(h)-maxHistory:]
	}

	p.history[ssid] = h
}

// channelToBand maps an 802.11 channel number to its frequency band:
// channels 1-14 are 2.4GHz, everything else is treated as 5.8GHz.
func channelToBand(channel int) string {
	const max24GHzChannel = 14
	if channel >= 1 && channel <= max24GHzChannel {
		return rfmodel.Band24
	}

	return rfmodel.Band58
}

// scanResult pairs an rfmodel.Observation with the security label parsed
// from the same BSS block; Security isn't part of the classification
// model so it travels alongside rather than inside rfmodel.Observation.
type scanResult struct {
	Observation rfmodel.Observation
	Security    string
}

// parseIWScan extracts one scanResult per BSS block from `iw scan`
// output. The format is line-oriented: a "BSS xx:xx:..." header starts
// each block, followed by indented "SSID:", "signal:",
// "DS Parameter set: channel N" and "RSN:"/"WPA:" lines.
func parseIWScan(output string) []scanResult {
	var results []scanResult

	var current *scanResult

	// A BSS block is kept even when it never saw an "SSID:" line: per the
	// data model, ssid "may be empty" — a hidden/cloaked AP is a real
	// device, not a parse failure, and reports SSID "".
	flush := func() {
		if current != nil {
			results = append(results, *current)
		}

		current = nil
	}

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		switch {
		case strings.HasPrefix(line, "BSS "):
			flush()
			current = &scanResult{Security: rfmodel.SecurityOpen}
		case current == nil:
			continue
		case strings.HasPrefix(line, "SSID:"):
			current.Observation.SSID = strings.TrimSpace(strings.TrimPrefix(line, "SSID:"))
		case strings.HasPrefix(line, "signal:"):
			current.Observation.SignalDBm = parseSignalDBm(line)
		case strings.HasPrefix(line, "DS Parameter set: channel"):
			current.Observation.Channel = parseChannel(line)
			current.Observation.Band = channelToBand(current.Observation.Channel)
		case strings.HasPrefix(line, "RSN:"), strings.HasPrefix(line, "WPA:"):
			current.Security = rfmodel.SecuritySecured
		}
	}

	flush()

	return results
}

func parseSignalDBm(line string) int {
	fields := strings.Fields(strings.TrimPrefix(line, "signal:"))
	if len(fields) == 0 {
		return 0
	}

	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0
	}

	return int(v)
}

func parseChannel(line string) int {
	fields := strings.Fields(line)

	v, err := strconv.Atoi(fields[len(fields)-1])
	if err != nil {
		return 0
	}

	return v
}
