// Package audio handles microphone capture and prompt playback
package audio

import (
	"context"
	"encoding/binary"
	"log/slog"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/parleyhq/platform/internal/errors"
)

// Chunk is a captured block of mono samples.
type Chunk struct {
	Data      []float32
	Timestamp time.Time
}

const captureFrames = 1024 // ~64ms at 16kHz

// Capturer captures mono microphone audio with drop-on-full backpressure:
// if the consumer stalls, old audio is dropped rather than accumulated.
type Capturer struct {
	outCh      chan Chunk
	sampleRate int

	mu      sync.Mutex
	stream  *portaudio.Stream
	running bool
}

// NewCapturer initializes portaudio and prepares a capturer.
func NewCapturer(sampleRate, bufferSize int) (*Capturer, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, errors.Wrap(err, errors.CodeAudio, "portaudio init failed")
	}
	return &Capturer{
		outCh:      make(chan Chunk, bufferSize),
		sampleRate: sampleRate,
	}, nil
}

// Output returns the channel for receiving audio chunks.
func (c *Capturer) Output() <-chan Chunk { return c.outCh }

// Start begins capturing from the default input device.
func (c *Capturer) Start(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return nil
	}

	stream, err := portaudio.OpenDefaultStream(1, 0, float64(c.sampleRate), captureFrames,
		func(in []float32) {
			data := make([]float32, len(in))
			copy(data, in)
			select {
			case c.outCh <- Chunk{Data: data, Timestamp: time.Now()}:
			default:
				slog.Debug("audio capture buffer full, dropping chunk")
			}
		})
	if err != nil {
		return errors.Wrap(err, errors.CodeAudio, "open input stream failed")
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return errors.Wrap(err, errors.CodeAudio, "start input stream failed")
	}

	c.stream = stream
	c.running = true
	slog.Info("audio capture started", "sample_rate", c.sampleRate)
	return nil
}

// Stop stops capturing.
func (c *Capturer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	if err := c.stream.Stop(); err != nil {
		slog.Warn("audio capture stop failed", "error", err)
	}
	_ = c.stream.Close()
	c.stream = nil
	c.running = false
}

// Terminate releases portaudio. Call once at process shutdown.
func (c *Capturer) Terminate() {
	c.Stop()
	_ = portaudio.Terminate()
}

// Float32ToPCM16 converts samples to 16-bit little-endian PCM for the
// recognition service.
func Float32ToPCM16(samples []float32) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(int16(s*32767)))
	}
	return buf
}
