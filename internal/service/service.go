// Package service implements the config-driven producer orchestration
// layer: start every enabled producer, track its handle, and stop them
// all within a bounded join budget.
//
// Grounded on the teacher's cmd/direwolf/main.go orchestration shape
// (parse config, launch every enabled subsystem thread, install a SIGINT
// handler that signals shutdown) generalized from one monolithic main
// into a reusable, independently testable Manager type.
package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/brutella/dnssd"
	"github.com/charmbracelet/log"

	"github.com/doismellburning/huskyhud/internal/calibration"
	"github.com/doismellburning/huskyhud/internal/config"
	"github.com/doismellburning/huskyhud/internal/hudlog"
	"github.com/doismellburning/huskyhud/internal/producer"
	"github.com/doismellburning/huskyhud/internal/producer/audio"
	"github.com/doismellburning/huskyhud/internal/producer/gps"
	"github.com/doismellburning/huskyhud/internal/producer/imu"
	"github.com/doismellburning/huskyhud/internal/producer/metrics"
	"github.com/doismellburning/huskyhud/internal/producer/wifilocator"
	"github.com/doismellburning/huskyhud/internal/producer/wifiscan"
	"github.com/doismellburning/huskyhud/internal/sharedstate"
)

// StopBudget is the total time stop_all waits for every producer to join
// before abandoning stragglers, per the service manager's documented
// shutdown contract.
const StopBudget = 5 * time.Second

// handle is the manager's record of one launched producer: its name (for
// reporting) and a channel closed when its goroutine returns.
type handle struct {
	name   string
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager owns the set of running producers and the shared store they
// write to.
type Manager struct {
	Store  *sharedstate.Store
	Logger *log.Logger

	mu      sync.Mutex
	handles []handle
}

// New returns a Manager bound to store, ready to start_all from cfg.
func New(store *sharedstate.Store) *Manager {
	return &Manager{Store: store, Logger: hudlog.New("service")}
}

// StartupFailure records one producer that could not be launched.
// start_all reports these without aborting the others.
type StartupFailure struct {
	Producer string
	Err      error
}

func (f StartupFailure) Error() string {
	return fmt.Sprintf("%s: %v", f.Producer, f.Err)
}

// StartAll launches every producer cfg enables, binding calibration's
// left/right/scan interfaces when the locator is enabled and a
// calibration record is available. It never aborts early: a producer
// whose launch reports an error is recorded as a StartupFailure and the
// rest still start. A producer that cannot open its device fails inside
// Run on its own goroutine; that failure is logged when Run returns and
// is not part of the returned list.
func (m *Manager) StartAll(ctx context.Context, cfg config.Config, cal *calibration.Record) []StartupFailure {
	var failures []StartupFailure

	record := func(name string, err error) {
		if err != nil {
			failures = append(failures, StartupFailure{Producer: name, Err: err})
		}
	}

	if cfg.EnableSystemMetrics {
		record("metrics", m.launch(ctx, metrics.New(m.Store)))
	}

	if cfg.EnableGPS {
		record("gps", m.launch(ctx, gps.New(m.Store, cfg.GPSSerialPort, cfg.GPSBaudRate)))
	}

	if cfg.EnableIMU {
		record("imu", m.launch(ctx, imu.New(m.Store, cfg.IMUDevicePath)))
	}

	if cfg.EnableWifiScanner {
		scanIface := cfg.WifiScanInterface
		if cfg.EnableWifiLocator && cal != nil && cal.ScanInterface != "" {
			scanIface = cal.ScanInterface
		}

		record("wifiscan", m.launch(ctx, wifiscan.New(m.Store, scanIface)))
	}

	if cfg.EnableWifiLocator {
		left, right := cfg.WifiLeftInterface, cfg.WifiRightInterface
		if cal != nil {
			left, right = cal.LeftInterface, cal.RightInterface
		}

		record("wifilocator", m.launch(ctx, wifilocator.New(m.Store, left, right)))
	}

	if cfg.EnableAudio {
		record("audio", m.launch(ctx, audio.New(m.Store)))
	}

	if cfg.EnableMDNSAdvertise {
		m.announceMDNS(cfg)
	}

	for _, f := range failures {
		m.Logger.Error("producer failed to start", "producer", f.Producer, "err", f.Err)
	}

	return failures
}

// loggerSetter is implemented by every producer in this package: their
// exported Logger field lets the manager swap in a subsystem-tagged
// logger before Run starts, instead of the package-default logger their
// constructors assign.
type loggerSetter interface {
	SetLogger(*log.Logger)
}

// launch starts p's goroutine under its own cancellable context and
// records its handle. Launching never itself returns an error today (no
// producer currently fails synchronously before Run begins) but the
// signature is kept error-returning so a future producer requiring
// preflight validation has somewhere to report it, matching StartAll's
// per-producer failure contract.
func (m *Manager) launch(ctx context.Context, p producer.Producer) error {
	pctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	m.mu.Lock()
	m.handles = append(m.handles, handle{name: p.Name(), cancel: cancel, done: done})
	m.mu.Unlock()

	logger := hudlog.New(p.Name())

	if ls, ok := p.(loggerSetter); ok {
		ls.SetLogger(logger)
	}

	go func() {
		defer close(done)

		if err := p.Run(pctx); err != nil {
			logger.Error("producer exited with error", "err", err)
		}
	}()

	return nil
}

// StopAll fires every producer's shutdown signal in parallel and waits up
// to StopBudget in total for all of them to join. Stragglers past the
// budget are abandoned; StopAll returns their names so the caller can log
// which resources were left to the operating system.
func (m *Manager) StopAll() (abandoned []string) {
	m.mu.Lock()
	handles := m.handles
	m.handles = nil
	m.mu.Unlock()

	for _, h := range handles {
		h.cancel()
	}

	deadline := time.After(StopBudget)

	remaining := make(map[string]chan struct{}, len(handles))
	for _, h := range handles {
		remaining[h.name] = h.done
	}

	for len(remaining) > 0 {
		select {
		case <-deadline:
			for name := range remaining {
				abandoned = append(abandoned, name)
			}

			return abandoned
		default:
		}

		for name, done := range remaining {
			select {
			case <-done:
				delete(remaining, name)
			default:
			}
		}

		if len(remaining) > 0 {
			time.Sleep(10 * time.Millisecond)
		}
	}

	return nil
}

// announceMDNS publishes this unit's presence via mDNS/DNS-SD, grounded
// directly on the teacher's src/dns_sd.go announcement sequence (new
// service, new responder, add, respond in the background) using the
// teacher's declared github.com/brutella/dnssd dependency. Narrow and
// optional: nothing in the core's spec depends on this being reachable.
func (m *Manager) announceMDNS(cfg config.Config) {
	host := defaultHostname()

	const mdnsServiceType = "_huskyhud._tcp"

	const mdnsAnnouncePort = 8420

	name := "HuskyHUD on " + host

	sv, err := dnssd.NewService(dnssd.Config{ //nolint:exhaustruct
		Name: name,
		Type: mdnsServiceType,
		Port: mdnsAnnouncePort,
	})
	if err != nil {
		m.Logger.Error("mDNS: failed to create service", "err", err)

		return
	}

	responder, err := dnssd.NewResponder()
	if err != nil {
		m.Logger.Error("mDNS: failed to create responder", "err", err)

		return
	}

	if _, err := responder.Add(sv); err != nil {
		m.Logger.Error("mDNS: failed to add service", "err", err)

		return
	}

	m.Logger.Info("mDNS: announcing", "name", name, "type", mdnsServiceType)

	go func() {
		if err := responder.Respond(context.Background()); err != nil {
			m.Logger.Error("mDNS: responder error", "err", err)
		}
	}()
}

// defaultHostname mirrors the teacher's dns_sd_default_service_name:
// the local hostname with any FQDN domain suffix stripped, falling back
// to a fixed name if the hostname can't be read.
func defaultHostname() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "huskyhud"
	}

	hostname, _, _ = strings.Cut(hostname, ".")

	return hostname
}
