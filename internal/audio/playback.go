package audio

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/parleyhq/platform/internal/errors"
)

const playbackFrames = 1024

// Player writes synthesized prompt audio to the default output device. One
// playback runs at a time; Prompt Delivery already serializes callers.
type Player struct {
	sampleRate int
	mu         sync.Mutex
}

// NewPlayer creates a player for PCM16LE mono audio at the given rate.
// Assumes portaudio is already initialized by the capturer.
func NewPlayer(sampleRate int) *Player {
	return &Player{sampleRate: sampleRate}
}

// Play drains pcmCh (PCM16LE mono) to the output device, returning when the
// channel closes or the context is cancelled.
func (p *Player) Play(ctx context.Context, pcmCh <-chan []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]int16, playbackFrames)
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(p.sampleRate), len(out), &out)
	if err != nil {
		return errors.Wrap(err, errors.CodeAudio, "open output stream failed")
	}
	defer func() { _ = stream.Close() }()

	if err := stream.Start(); err != nil {
		return errors.Wrap(err, errors.CodeAudio, "start output stream failed")
	}
	defer func() { _ = stream.Stop() }()

	var leftover []int16
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case pcm, ok := <-pcmCh:
			if !ok {
				// Flush what remains, padded with silence.
				if len(leftover) > 0 {
					copy(out, leftover)
					for i := len(leftover); i < len(out); i++ {
						out[i] = 0
					}
					_ = stream.Write()
				}
				return nil
			}
			leftover = append(leftover, decodePCM16(pcm)...)
			for len(leftover) >= len(out) {
				copy(out, leftover[:len(out)])
				leftover = leftover[len(out):]
				if err := stream.Write(); err != nil {
					return errors.Wrap(err, errors.CodeAudio, "output write failed")
				}
			}
		}
	}
}

func decodePCM16(pcm []byte) []int16 {
	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return samples
}
