// Command huskyhud is the wearable heads-up-display fusion core: it
// loads its config, runs interactive calibration if needed, starts every
// enabled producer, and serves shared-state snapshots until interrupted.
//
// Grounded on the teacher's cmd/direwolf/main.go: pflag-based flag
// parsing, a config load, subsystem startup, and a SIGINT-driven
// shutdown, generalized from one monolithic main into calls against
// internal/service.Manager.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/doismellburning/huskyhud/internal/buildinfo"
	"github.com/doismellburning/huskyhud/internal/calibration"
	"github.com/doismellburning/huskyhud/internal/config"
	"github.com/doismellburning/huskyhud/internal/hudlog"
	"github.com/doismellburning/huskyhud/internal/service"
	"github.com/doismellburning/huskyhud/internal/sharedstate"
)

// noInputTimeout is how long interactive calibration waits for operator
// input before falling back to the persisted calibration, per the
// external interfaces section's "30s with no input" rule.
const noInputTimeout = 30 * time.Second

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags := pflag.NewFlagSet("huskyhud", pflag.ContinueOnError)

	configPath := flags.StringP("config", "c", "/etc/huskyhud/config.yaml", "Configuration file path.")
	logLevel := flags.String("log-level", "info", "Log level: debug, info, warn, error.")
	skipCalibration := flags.Bool("skip-calibration", false, "Skip interactive calibration; use the persisted calibration.")
	showVersion := flags.Bool("version", false, "Print version information and exit.")

	if err := flags.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return 0
		}

		fmt.Fprintln(os.Stderr, err)

		return 2
	}

	if *showVersion {
		fmt.Println(buildinfo.String())

		return 0
	}

	hudlog.SetLevel(hudlog.ParseLevel(*logLevel))
	logger := hudlog.New("main")

	cfg, err := config.Load(*configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Error("config file invalid, cannot start", "path", *configPath, "err", err)

			return 1
		}

		cfg = config.Default()
		logger.Warn("config file not found, using defaults", "path", *configPath, "err", err)
	}

	store := sharedstate.New()

	cal := resolveCalibration(logger, cfg, *skipCalibration)
	if cal == nil {
		cfg.EnableWifiLocator = false
	}

	mgr := service.New(store)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	failures := mgr.StartAll(ctx, cfg, cal)
	for _, f := range failures {
		logger.Error("startup failure", "err", f)
	}

	<-ctx.Done()
	logger.Info("shutdown signal received, stopping producers")

	abandoned := mgr.StopAll()
	if len(abandoned) > 0 {
		logger.Warn("producers did not exit within the stop budget", "abandoned", abandoned)
	}

	return 0
}

// resolveCalibration implements the calibration step's non-interactive
// and timeout modes: --skip-calibration always uses the persisted
// record; running interactively with no operator input for
// noInputTimeout falls back to it too. An absent/corrupt calibration
// file in either mode disables the locator and lets the rest of the
// system proceed, per spec.
func resolveCalibration(logger *log.Logger, cfg config.Config, skip bool) *calibration.Record {
	if !cfg.EnableWifiLocator {
		return nil
	}

	if skip {
		rec, err := calibration.Load(cfg.CalibrationFilePath)
		if err != nil {
			logger.Warn("no persisted calibration, disabling locator", "err", err)

			return nil
		}

		return &rec
	}

	rec, ranInteractively := runInteractiveOrTimeout(logger, cfg)
	if !ranInteractively {
		loaded, err := calibration.Load(cfg.CalibrationFilePath)
		if err != nil {
			logger.Warn("no persisted calibration, disabling locator", "err", err)

			return nil
		}

		return &loaded
	}

	return rec
}

// runInteractiveOrTimeout runs the interactive calibration protocol on a
// background goroutine and races it against noInputTimeout; if the timer
// wins, it reports "fell back" (ran=false) so the caller loads the
// persisted record instead.
func runInteractiveOrTimeout(logger *log.Logger, cfg config.Config) (rec *calibration.Record, ran bool) {
	enum := &calibration.UdevEnumerator{}
	prompt := newTerminalPrompter()

	resultCh := make(chan calibration.Record, 1)
	errCh := make(chan error, 1)

	go func() {
		result, err := calibration.Run(enum, prompt)
		if err != nil {
			errCh <- err

			return
		}

		resultCh <- result
	}()

	select {
	case result := <-resultCh:
		if calibration.SeparationOutOfRange(result.SeparationM * 100) {
			logger.Warn("adapter separation outside expected range", "separation_m", result.SeparationM)
		}

		if err := calibration.Save(cfg.CalibrationFilePath, result); err != nil {
			logger.Warn("failed to persist calibration", "err", err)
		}

		return &result, true
	case err := <-errCh:
		logger.Warn("calibration failed, falling back to persisted record", "err", err)

		return nil, false
	case <-time.After(noInputTimeout):
		logger.Info("no calibration input received, falling back to persisted record")

		return nil, false
	}
}
