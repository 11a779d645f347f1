// Package imu reads heading/pitch/roll samples from an inertial sensor
// bus at 50Hz and writes them into the shared store.
//
// Grounded on the teacher's src/dwgpsnmea.go read-loop shape (open once,
// loop reading fixed-size records, treat a read failure as loss of the
// device) and on other_examples/27ed9f97_relabs-tech-inertial_computer
// for the heading/pitch/roll field layout polled off a character device.
package imu

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/doismellburning/huskyhud/internal/huderrors"
	"github.com/doismellburning/huskyhud/internal/producer"
	"github.com/doismellburning/huskyhud/internal/sharedstate"
)

// samplePeriod is the producer's documented 50Hz cadence, one sample
// every 20ms.
const samplePeriod = time.Second / 50

// Producer polls an inertial sensor bus device for heading/pitch/roll.
type Producer struct {
	DevicePath string
	Store      *sharedstate.Store
	Logger     *log.Logger

	bus *os.File
}

// New returns an IMU producer reading from the named bus character
// device (e.g. an I2C device node).
func New(store *sharedstate.Store, devicePath string) *Producer {
	return &Producer{DevicePath: devicePath, Store: store, Logger: log.Default()}
}

// Name implements producer.Producer.
func (p *Producer) Name() string { return "imu" }

// SetLogger swaps in a subsystem-tagged logger, used by the service
// manager before launching the producer.
func (p *Producer) SetLogger(l *log.Logger) { p.Logger = l }

// Run implements producer.Producer.
func (p *Producer) Run(ctx context.Context) error {
	bus, err := os.OpenFile(p.DevicePath, os.O_RDONLY, 0)
	if err != nil {
		return fmt.Errorf("%w: opening IMU bus %s: %w", huderrors.ErrProducerTerminal, p.DevicePath, err)
	}
	p.bus = bus

	defer func() {
		_ = p.bus.Close()

		p.Store.ClearIMU()
	}()

	return producer.RunLoop(ctx, p.Logger, samplePeriod, p.readOneSample)
}

// sampleRecord is the fixed-size record the bus yields per poll: three
// little-endian int16 values scaled by 100, matching the compact binary
// layout other inertial-sensor drivers in the pack use over a raw bus
// read rather than a textual protocol.
type sampleRecord struct {
	HeadingX100 int16
	PitchX100   int16
	RollX100    int16
}

const sampleRecordBytes = 6

func (p *Producer) readOneSample(ctx context.Context) error {
	buf := make([]byte, sampleRecordBytes)

	if _, err := p.bus.Read(buf); err != nil {
		return fmt.Errorf("%w: reading IMU bus: %w", huderrors.ErrProducerTerminal, err)
	}

	rec := sampleRecord{
		HeadingX100: int16(binary.LittleEndian.Uint16(buf[0:2])),
		PitchX100:   int16(binary.LittleEndian.Uint16(buf[2:4])),
		RollX100:    int16(binary.LittleEndian.Uint16(buf[4:6])),
	}

	sample := sharedstate.IMU{
		HeadingDeg: float64(rec.HeadingX100) / 100,
		PitchDeg:   float64(rec.PitchX100) / 100,
		RollDeg:    float64(rec.RollX100) / 100,
	}

	if err := p.Store.SetIMU(sample); err != nil {
		return fmt.Errorf("%w: %w", huderrors.ErrProducerTransient, err)
	}

	return nil
}
