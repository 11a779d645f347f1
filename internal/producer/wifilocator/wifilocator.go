// Package wifilocator pairs simultaneous scans from two wireless
// receivers and triangulates a bearing/distance estimate for every SSID
// both receivers observe.
//
// Grounded on the same src/kissutil.go/src/nettnc.go shell-out pattern as
// internal/producer/wifiscan, run twice (once per receiver) and fused
// through internal/rfmodel.Triangulate.
package wifilocator

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
	"github.com/doismellburning/huskyhud/internal/producer"
	"github.com/doismellburning/huskyhud/internal/rfmodel"
	"github.com/doismellburning/huskyhud/internal/sharedstate"
)

// LocateInterval is the producer's documented cadence.
const LocateInterval = 5 * time.Second

// Runner abstracts "invoke the scan utility against one interface and
// return its raw text output" (parsed by parseScan), shared with internal/producer/wifiscan's
// Runner contract so both producers can be driven by the same stub in
// tests.
type Runner interface {
	Scan(ctx context.Context, iface string) (string, error)
}

type execRunner struct{}

func (execRunner) Scan(ctx context.Context, iface string) (string, error) {
	cmd := exec.CommandContext(ctx, "iw", "dev", iface, "scan")

	out, err := cmd.Output()
	if err != nil {
		return "", err
	}

	return string(out), nil
}

// Producer scans both receivers and triangulates every commonly observed
// SSID.
type Producer struct {
	LeftInterface  string
	RightInterface string
	Store          *sharedstate.Store
	Logger         *log.Logger
	Runner         Runner
}

// New returns a Wi-Fi locator producer for the given left/right receiver
// interfaces, invoking the real `iw` utility.
func New(store *sharedstate.Store, leftIface, rightIface string) *Producer {
	return &Producer{
		LeftInterface:  leftIface,
		RightInterface: rightIface,
		Store:          store,
		Logger:         log.Default(),
		Runner:         execRunner{},
	}
}

// Name implements producer.Producer.
func (p *Producer) Name() string { return "wifilocator" }

// SetLogger swaps in a subsystem-tagged logger, used by the service
// manager before launching the producer.
func (p *Producer) SetLogger(l *log.Logger) { p.Logger = l }

// Run implements producer.Producer. Either receiver's interface name
// being empty means calibration never bound it, which the locator treats
// as permanently disabled — "either receiver absent" from the producer
// table's terminal-error column.
func (p *Producer) Run(ctx context.Context) error {
	if p.LeftInterface == "" || p.RightInterface == "" {
		return fmt.Errorf("%w: wifilocator requires both receivers bound", huderrors.ErrProducerTerminal)
	}

	if _, err := exec.LookPath("iw"); err != nil {
		return fmt.Errorf("%w: scan utility not found: %w", huderrors.ErrProducerTerminal, err)
	}

	return producer.RunLoop(ctx, p.Logger, LocateInterval, p.locateOnce)
}

func (p *Producer) locateOnce(ctx context.Context) error {
	left, err := p.Runner.Scan(ctx, p.LeftInterface)
	if err != nil {
		return fmt.Errorf("%w: left receiver scan failed: %w", huderrors.ErrProducerTransient, err)
	}

	right, err := p.Runner.Scan(ctx, p.RightInterface)
	if err != nil {
		return fmt.Errorf("%w: right receiver scan failed: %w", huderrors.ErrProducerTransient, err)
	}

	leftBySSID := indexBySSID(parseScan(left))
	rightBySSID := indexBySSID(parseScan(right))

	heading := p.Store.Snapshot().EffectiveHeadingDeg

	dirs := make([]sharedstate.RFDirection, 0, len(leftBySSID))

	for ssid, l := range leftBySSID {
		r, seenByBoth := rightBySSID[ssid]
		if !seenByBoth {
			// "If only one receiver observes an SSID, emit per-receiver
			// distance and no bearing": the device is already present in
			// the wifiscan producer's networks list with its own
			// distance, so there is nothing further for the locator to
			// emit here.
			continue
		}

		distLeft := rfmodel.DistanceMeters(l.SignalDBm, l.Band)
		distRight := rfmodel.DistanceMeters(r.SignalDBm, r.Band)

		fused := rfmodel.Triangulate(l.SignalDBm, r.SignalDBm, distLeft, distRight)

		bearing := rfmodel.NormalizeDeg(heading + fused.BiasDeg)

		dirs = append(dirs, sharedstate.RFDirection{
			SSID:       ssid,
			BearingDeg: bearing,
			Confidence: fused.Confidence,
		})
	}

	if err := p.Store.SetDirections(dirs); err != nil {
		return fmt.Errorf("%w: %w", huderrors.ErrProducerTransient, err)
	}

	return nil
}

func indexBySSID(observations []rfmodel.Observation) map[string]rfmodel.Observation {
	m := make(map[string]rfmodel.Observation, len(observations))
	for _, obs := range observations {
		m[obs.SSID] = obs
	}

	return m
}

// parseScan extracts one rfmodel.Observation per BSS block from `iw
// scan` output; a locator-local twin of wifiscan's parser, since the
// locator only needs SSID/signal/band, not security.
func parseScan(output string) []rfmodel.Observation {
	var observations []rfmodel.Observation

	var current *rfmodel.Observation

	// Kept even without an "SSID:" line: ssid "may be empty" per the data
	// model, so a hidden/cloaked AP is a real observation, not discarded.
	flush := func() {
		if current != nil {
			observations = append(observations, *current)
		}

		current = nil
	}

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		switch {
		case strings.HasPrefix(line, "BSS "):
			flush()
			current = &rfmodel.Observation{}
		case current == nil:
			continue
		case strings.HasPrefix(line, "SSID:"):
			current.SSID = strings.TrimSpace(strings.TrimPrefix(line, "SSID:"))
		case strings.HasPrefix(line, "signal:"):
			fields := strings.Fields(strings.TrimPrefix(line, "signal:"))
			if len(fields) > 0 {
				if v, err := strconv.ParseFloat(fields[0], 64); err == nil {
					current.SignalDBm = int(v)
				}
			}
		case strings.HasPrefix(line, "DS Parameter set: channel"):
			fields := strings.Fields(line)
			if v, err := strconv.Atoi(fields[len(fields)-1]); err == nil {
				current.Channel = v

				const max24GHzChannel = 14
				if v >= 1 && v <= max24GHzChannel {
					current.Band = rfmodel.Band24
				} else {
					current.Band = rfmodel.Band58
				}
			}
		}
	}

	flush()

	return observations
}
