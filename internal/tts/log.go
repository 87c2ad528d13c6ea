package tts

import (
	"context"
	"log/slog"
)

// LogEngine stands in for real synthesis when no TTS credentials are
// configured: prompts are logged instead of spoken, and the rest of the
// pipeline behaves as if playback completed instantly.
type LogEngine struct{}

// NewLogEngine creates a logging engine.
func NewLogEngine() *LogEngine { return &LogEngine{} }

// Speak implements prompt.Engine.
func (e *LogEngine) Speak(_ context.Context, text string) error {
	slog.Info("prompt (tts disabled)", "phrase", text)
	return nil
}
