// Package producer defines the contract every sensor-reading task
// satisfies, and the error barrier that runs its loop body.
//
// Grounded on the teacher's "go <name>_thread(...)" launch convention
// (src/dwgpsnmea.go, src/beacon.go, src/igate.go, src/xmit.go): one
// goroutine per long-running task, sharing nothing but the store. The
// Producer interface formalizes what the teacher leaves implicit across
// those near-identical call sites.
package producer

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"

	"github.com/doismellburning/huskyhud/internal/huderrors"
)

// Producer is a task that writes one data family into the shared store
// on its own schedule. Run blocks until ctx is cancelled or the producer
// hits a terminal error (huderrors.ErrProducerTerminal), and must return
// within GraceBudget of ctx being cancelled.
type Producer interface {
	// Name identifies the producer for logging, e.g. "gps", "imu".
	Name() string
	// Run executes the producer's main loop. It must check ctx.Done()
	// between work units and never let a panic or transient error escape.
	Run(ctx context.Context) error
}

// GraceBudget is the maximum time a producer may take to exit after its
// context is cancelled, per the concurrency model.
const GraceBudget = 5 * time.Second

// Iteration is one unit of producer work. RunLoop calls it repeatedly,
// sleeping sleepBetween in between, until ctx is done or it returns
// ErrProducerTerminal.
type Iteration func(ctx context.Context) error

// RunLoop wraps iterate in the error barrier described by the producer
// contract: a panic or returned error from one iteration is logged and
// swallowed as ProducerTransient, allowing the next iteration; iterate
// returning huderrors.ErrProducerTerminal (or wrapping it) causes RunLoop
// to return cleanly without propagating further.
//
// This is the one place the teacher's repeated per-thread "catch,
// log, continue" bodies (e.g. read_gpsnmea_thread's handling of a lost
// serial connection) are generalized into shared plumbing.
//
// sleepBetween of zero means "no ticker": iterate's own blocking call
// (a serial read, an audio-device read) paces the loop, and RunLoop only
// checks ctx between iterations. This fits event-driven producers (GPS,
// audio) that would otherwise never see their ticker fire between two
// long blocking reads.
func RunLoop(ctx context.Context, logger *log.Logger, sleepBetween time.Duration, iterate Iteration) error {
	var tickC <-chan time.Time

	if sleepBetween > 0 {
		ticker := time.NewTicker(sleepBetween)
		defer ticker.Stop()

		tickC = ticker.C
	}

	for {
		if err := runOnce(ctx, logger, iterate); err != nil {
			if errors.Is(err, huderrors.ErrProducerTerminal) {
				logger.Warn("producer exiting: backing hardware unavailable", "err", err)

				return nil
			}

			logger.Error("producer iteration failed, will retry", "err", err)
		}

		if tickC == nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}

			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case <-tickC:
		}
	}
}

// runOnce executes a single iteration behind a recover() so a panic in
// producer-specific code can never bring down the process; it is reported
// as an ErrProducerTransient-wrapped error instead.
func runOnce(ctx context.Context, logger *log.Logger, iterate Iteration) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("producer iteration panicked, recovering", "panic", r)
			err = huderrors.ErrProducerTransient
		}
	}()

	return iterate(ctx)
}
