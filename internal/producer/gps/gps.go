// Package gps reads NMEA sentences from a serial-attached GPS receiver
// and writes fixes into the shared store.
//
// Grounded directly on the teacher's src/dwgpsnmea.go read_gpsnmea_thread:
// open the serial port via github.com/pkg/term, read sentences in a
// loop, and on a lost connection mark the fix errored and let the
// producer's error barrier decide whether to retry or give up.
package gps

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/term"

	"github.com/doismellburning/huskyhud/internal/huderrors"
	"github.com/doismellburning/huskyhud/internal/nmea"
	"github.com/doismellburning/huskyhud/internal/producer"
	"github.com/doismellburning/huskyhud/internal/sharedstate"
)

// Producer reads NMEA sentences from a serial GPS receiver.
type Producer struct {
	PortName string
	BaudRate int
	Store    *sharedstate.Store
	Logger   *log.Logger

	port   *term.Term
	reader *bufio.Reader

	// maxOpenRetries bounds how many consecutive open failures the producer
	// tolerates before treating the daemon as unreachable (terminal),
	// per the producer table's "daemon unreachable after bounded
	// retries" terminal condition.
	maxOpenRetries int
}

// New returns a GPS producer reading NMEA sentences at up to ~1Hz from
// the named serial port.
func New(store *sharedstate.Store, portName string, baudRate int) *Producer {
	return &Producer{
		PortName:       portName,
		BaudRate:       baudRate,
		Store:          store,
		Logger:         log.Default(),
		maxOpenRetries: 5,
	}
}

// Name implements producer.Producer.
func (p *Producer) Name() string { return "gps" }

// SetLogger swaps in a subsystem-tagged logger, used by the service
// manager before launching the producer.
func (p *Producer) SetLogger(l *log.Logger) { p.Logger = l }

// Run implements producer.Producer: opens the serial port and processes
// sentences until ctx is cancelled or the port is permanently lost.
func (p *Producer) Run(ctx context.Context) error {
	if err := p.open(); err != nil {
		return fmt.Errorf("%w: %w", huderrors.ErrProducerTerminal, err)
	}
	defer p.close()

	return producer.RunLoop(ctx, p.Logger, 0, p.readOneSentence)
}

func (p *Producer) open() error {
	var err error

	for attempt := 0; attempt < p.maxOpenRetries; attempt++ {
		p.port, err = term.Open(p.PortName, term.Speed(p.BaudRate), term.RawMode)
		if err == nil {
			p.reader = bufio.NewReader(p.port)

			return nil
		}

		p.Logger.Warn("opening GPS serial port failed, retrying", "port", p.PortName, "attempt", attempt, "err", err)
		time.Sleep(200 * time.Millisecond)
	}

	return fmt.Errorf("could not open GPS serial port %s after %d attempts: %w", p.PortName, p.maxOpenRetries, err)
}

func (p *Producer) close() {
	if p.port != nil {
		_ = p.port.Close()
	}
}

// readOneSentence blocks for at most one NMEA line. A read error means
// the USB/serial device was likely unplugged, matching the teacher's
// "Lost communication with GPS receiver" handling in dwgpsnmea.go: that
// is treated as terminal here, since there is no supervisor above this
// producer that would benefit from a transient retry of a severed serial
// line.
func (p *Producer) readOneSentence(ctx context.Context) error {
	line, err := p.reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("%w: %w", huderrors.ErrProducerTerminal, err)
	}

	fix, err := nmea.ParseRMC(line)
	if err != nil {
		if errors.Is(err, nmea.ErrVoidFix) {
			return nil // sentence correctly says "no fix yet"; not an error
		}

		return fmt.Errorf("%w: %w", huderrors.ErrProducerTransient, err)
	}

	return p.writeFix(fix)
}

func (p *Producer) writeFix(fix nmea.Fix) error {
	lat := fix.Latitude
	lon := fix.Longitude
	speed := fix.SpeedMPS

	sample := sharedstate.GPS{
		Latitude:  &lat,
		Longitude: &lon,
		SpeedMPS:  &speed,
	}

	// GPS heading must never overwrite an IMU-sourced heading: check IMU
	// presence before writing, per the data model's precedence rule.
	if fix.HasCourse && !p.Store.HasIMU() {
		course := fix.CourseDeg
		sample.Heading = &course
	}

	return p.Store.SetGPS(sample)
}
