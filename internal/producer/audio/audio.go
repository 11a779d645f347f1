// Package audio continuously captures mono PCM frames from the default
// input device and publishes the most recent fixed-size window.
//
// Grounded on the teacher's src/audio.go capture-loop shape (open device
// once, read fixed-size buffers in a loop, treat a device-open failure as
// permanent), reimplemented atop the teacher's declared but previously
// unused github.com/gordonklaus/portaudio dependency in place of the
// teacher's cgo ALSA/OSS bindings.
package audio

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/gordonklaus/portaudio"

	"github.com/doismellburning/huskyhud/internal/huderrors"
	"github.com/doismellburning/huskyhud/internal/producer"
	"github.com/doismellburning/huskyhud/internal/sharedstate"
)

// FrameSamples is the fixed window length the spec's audio frame carries:
// 20ms at a 16kHz sample rate, matching the teacher's default
// ADEVICE_RATE/2 framing granularity.
const (
	SampleRateHz = 16000
	FrameSamples = SampleRateHz / 50
)

// Producer owns one portaudio input stream, reading one fixed-size frame
// per iteration and writing it into the shared store.
type Producer struct {
	Store  *sharedstate.Store
	Logger *log.Logger

	stream *portaudio.Stream
	buf    []int16
}

// New returns an audio producer capturing from the system default input
// device.
func New(store *sharedstate.Store) *Producer {
	return &Producer{Store: store, Logger: log.Default(), buf: make([]int16, FrameSamples)}
}

// Name implements producer.Producer.
func (p *Producer) Name() string { return "audio" }

// SetLogger swaps in a subsystem-tagged logger, used by the service
// manager before launching the producer.
func (p *Producer) SetLogger(l *log.Logger) { p.Logger = l }

// Run implements producer.Producer.
func (p *Producer) Run(ctx context.Context) error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("%w: initializing portaudio: %w", huderrors.ErrProducerTerminal, err)
	}
	defer portaudio.Terminate()

	stream, err := portaudio.OpenDefaultStream(1, 0, float64(SampleRateHz), len(p.buf), p.buf)
	if err != nil {
		return fmt.Errorf("%w: opening capture device: %w", huderrors.ErrProducerTerminal, err)
	}
	p.stream = stream

	defer func() {
		_ = p.stream.Close()
	}()

	if err := p.stream.Start(); err != nil {
		return fmt.Errorf("%w: starting capture stream: %w", huderrors.ErrProducerTerminal, err)
	}
	defer func() {
		_ = p.stream.Stop()
	}()

	return producer.RunLoop(ctx, p.Logger, 0, p.readOneFrame)
}

func (p *Producer) readOneFrame(ctx context.Context) error {
	if err := p.stream.Read(); err != nil {
		return fmt.Errorf("%w: reading capture stream: %w", huderrors.ErrProducerTransient, err)
	}

	frame := make([]int16, len(p.buf))
	copy(frame, p.buf)

	p.Store.SetAudio(sharedstate.AudioFrame{Samples: frame})

	return nil
}
