// Package tts provides speech synthesis engines for prompt delivery.
package tts

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/pkg/api/speak/v1/websocket/interfaces"
	clientinterfaces "github.com/deepgram/deepgram-go-sdk/pkg/client/interfaces/v1"
	"github.com/deepgram/deepgram-go-sdk/pkg/client/speak"

	"github.com/parleyhq/platform/internal/audio"
	"github.com/parleyhq/platform/internal/errors"
)

const (
	synthSampleRate = 48000
	synthEncoding   = "linear16"

	// idleWindow: once audio has been received, this much silence from the
	// service means synthesis is complete.
	idleWindow    = 400 * time.Millisecond
	synthDeadline = 12 * time.Second
)

// DeepgramEngine synthesizes phrases through the Deepgram speak websocket
// and plays them on the local output device.
type DeepgramEngine struct {
	apiKey string
	model  string
	player *audio.Player
}

// NewDeepgramEngine creates a Deepgram TTS engine.
func NewDeepgramEngine(apiKey, model string) *DeepgramEngine {
	if model == "" {
		model = "aura-2-thalia-en"
	}
	return &DeepgramEngine{
		apiKey: apiKey,
		model:  model,
		player: audio.NewPlayer(synthSampleRate),
	}
}

// Speak implements prompt.Engine: synthesize, play, return when done.
func (d *DeepgramEngine) Speak(ctx context.Context, text string) error {
	pcmCh, errCh := d.stream(ctx, text)
	playErr := d.player.Play(ctx, pcmCh)
	if err := <-errCh; err != nil {
		return err
	}
	return playErr
}

// stream opens a speak websocket and forwards PCM until synthesis goes idle
// or the deadline passes. pcmCh closes when the stream ends; errCh carries
// at most one error.
func (d *DeepgramEngine) stream(ctx context.Context, text string) (<-chan []byte, <-chan error) {
	pcmCh := make(chan []byte, 4096)
	errCh := make(chan error, 1)

	go func() {
		defer close(pcmCh)
		defer close(errCh)

		if d.apiKey == "" {
			errCh <- errors.New(errors.CodeTTS, "deepgram API key missing")
			return
		}

		options := &clientinterfaces.WSSpeakOptions{
			Model:      d.model,
			Encoding:   synthEncoding,
			SampleRate: synthSampleRate,
		}

		var lastRecvUnix atomic.Int64
		var seenAudio atomic.Bool

		cb := &speakCallback{onBinary: func(data []byte) error {
			if len(data) == 0 {
				return nil
			}
			lastRecvUnix.Store(time.Now().UnixNano())
			seenAudio.Store(true)
			b := make([]byte, len(data))
			copy(b, data)
			select {
			case pcmCh <- b:
			default:
			}
			return nil
		}}

		dg, err := speak.NewWSUsingCallback(ctx, d.apiKey, &clientinterfaces.ClientOptions{}, options, cb)
		if err != nil {
			errCh <- errors.Wrap(err, errors.CodeTTS, "create speak client failed")
			return
		}
		defer dg.Stop()

		if ok := dg.Connect(); !ok {
			errCh <- errors.New(errors.CodeTTS, "speak connect failed")
			return
		}
		if err := dg.SpeakWithText(text); err != nil {
			errCh <- errors.Wrap(err, errors.CodeTTS, "speak text failed")
			return
		}
		if err := dg.Flush(); err != nil {
			slog.Debug("speak flush failed", "error", err)
		}

		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		deadline := time.Now().Add(synthDeadline)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if seenAudio.Load() && time.Since(time.Unix(0, lastRecvUnix.Load())) > idleWindow {
					return
				}
				if time.Now().After(deadline) {
					return
				}
			}
		}
	}()

	return pcmCh, errCh
}

type speakCallback struct{ onBinary func([]byte) error }

func (s *speakCallback) Open(*msginterfaces.OpenResponse) error         { return nil }
func (s *speakCallback) Metadata(*msginterfaces.MetadataResponse) error { return nil }
func (s *speakCallback) Flush(*msginterfaces.FlushedResponse) error     { return nil }
func (s *speakCallback) Clear(*msginterfaces.ClearedResponse) error     { return nil }
func (s *speakCallback) Close(*msginterfaces.CloseResponse) error       { return nil }
func (s *speakCallback) Warning(*msginterfaces.WarningResponse) error   { return nil }
func (s *speakCallback) Error(*msginterfaces.ErrorResponse) error       { return nil }
func (s *speakCallback) UnhandledEvent([]byte) error                    { return nil }
func (s *speakCallback) Binary(byMsg []byte) error {
	if s.onBinary != nil {
		return s.onBinary(byMsg)
	}
	return nil
}
