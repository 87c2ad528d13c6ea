// Package speech wraps an unreliable continuous recognition stream behind a
// stable "listening" abstraction with auto-restart and TTS suspension.
package speech

import "context"

// EventKind identifies a recognition stream event.
type EventKind int

const (
	// EventInterim carries a partial, still-changing transcript.
	EventInterim EventKind = iota
	// EventFinal carries a finalized utterance.
	EventFinal
	// EventError carries a transient recognizer error. The stream keeps
	// running (or ends, which is reported separately by channel close).
	EventError
)

// Event is a single recognition stream event. Timestamp is stamped by the
// stream when the event was produced; the session fills it in if zero.
type Event struct {
	Kind EventKind
	Text string
	Err  error
}

// Stream is one continuous recognition pass. The events channel closes when
// the pass ends, whether by request or on its own; production recognition
// streams end arbitrarily and each Open starts a fresh pass with fresh
// utterance state, so consumers must never assume monotonic sentence
// numbering across passes.
type Stream interface {
	Events() <-chan Event
	Close() error
}

// Opener opens a new recognition pass.
type Opener interface {
	Open(ctx context.Context) (Stream, error)
}
