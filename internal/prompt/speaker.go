// Package prompt serializes filler and follow-up phrases through speech
// synthesis, coordinating mutual exclusion with the recognition session.
package prompt

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
)

// Engine synthesizes one phrase and returns when playback finishes (or
// fails; the caller treats both the same).
type Engine interface {
	Speak(ctx context.Context, text string) error
}

// Recognition is the suspend/resume surface of the speech session.
// Recognition must pause while a prompt plays, or the system transcribes
// its own voice.
type Recognition interface {
	Suspend()
	Resume()
	Active() bool
}

// Speaker delivers prompts one at a time. A Speak call while another is in
// progress is a silent no-op: busy is a designed condition, not an error.
type Speaker struct {
	engine      Engine
	recognition Recognition
	speaking    atomic.Bool
}

// NewSpeaker creates a prompt speaker.
func NewSpeaker(engine Engine, recognition Recognition) *Speaker {
	return &Speaker{engine: engine, recognition: recognition}
}

// Speaking reports whether a prompt is currently being spoken.
func (s *Speaker) Speaking() bool {
	return s.speaking.Load()
}

// Speak plays one phrase. Empty or whitespace phrases are skipped. The
// speaking flag is cleared and recognition resumed regardless of playback
// outcome: a TTS failure must never leave recognition suspended.
func (s *Speaker) Speak(ctx context.Context, phrase string) error {
	phrase = strings.TrimSpace(phrase)
	if phrase == "" {
		return nil
	}
	if !s.speaking.CompareAndSwap(false, true) {
		slog.Debug("prompt already in progress, skipping", "phrase", phrase)
		return nil
	}

	s.recognition.Suspend()
	defer func() {
		s.speaking.Store(false)
		if s.recognition.Active() {
			s.recognition.Resume()
		}
	}()

	if err := s.engine.Speak(ctx, phrase); err != nil {
		slog.Warn("prompt playback failed", "error", err)
		return err
	}
	return nil
}
