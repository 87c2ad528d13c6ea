package flow

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Dispatcher delivers filler and follow-up prompts. Implementations are
// expected to return quickly; generation and playback happen elsewhere. A
// dispatch error still rolls the cycle state forward so the evaluator does
// not re-trigger on every tick.
type Dispatcher interface {
	DispatchFiller(ctx context.Context) error
	DispatchFollowup(ctx context.Context) error
}

// Config holds the evaluator's timing constants. Zero values fall back to
// the package constants.
type Config struct {
	FillerPause    time.Duration
	FillerCooldown time.Duration
	ResponseWait   time.Duration
}

func (c Config) withDefaults() Config {
	if c.FillerPause <= 0 {
		c.FillerPause = FillerPause
	}
	if c.FillerCooldown <= 0 {
		c.FillerCooldown = FillerCooldown
	}
	if c.ResponseWait <= 0 {
		c.ResponseWait = ResponseWait
	}
	return c
}

// Controller is the pause state machine: a periodic evaluator that inspects
// elapsed silence and decides to emit a filler, escalate to a follow-up, or
// hold off until speech resumes. One Controller exists per interview
// session; it never fails, it only gates dispatch calls.
type Controller struct {
	cfg        Config
	tracker    *Tracker
	dispatcher Dispatcher

	// speaking reports whether a prompt is currently being spoken;
	// hasTranscript reports whether any finalized speech exists yet.
	speaking      func() bool
	hasTranscript func() bool

	mu           sync.Mutex
	cycle        Cycle
	lastPromptAt time.Time
}

// NewController creates a flow controller.
func NewController(cfg Config, tracker *Tracker, dispatcher Dispatcher, speaking, hasTranscript func() bool) *Controller {
	return &Controller{
		cfg:           cfg.withDefaults(),
		tracker:       tracker,
		dispatcher:    dispatcher,
		speaking:      speaking,
		hasTranscript: hasTranscript,
	}
}

// NoteActivity is invoked on every interim or final recognition event. Any
// speech activity proves the candidate is talking, so a pending
// awaiting-response or locked state is cancelled immediately rather than on
// the next tick.
func (c *Controller) NoteActivity() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cycle.Kind != CycleIdle {
		slog.Debug("prompt cycle cleared by speech activity", "was", c.cycle.Kind.String())
		c.cycle = Cycle{}
	}
}

// Cycle returns a copy of the current prompt-cycle state.
func (c *Controller) Cycle() Cycle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cycle
}

// LastPromptAt returns the timestamp of the last prompt dispatch.
func (c *Controller) LastPromptAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastPromptAt
}

// Reset returns the controller to its initial state.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cycle = Cycle{}
	c.lastPromptAt = time.Time{}
}

// Tick evaluates the state machine once. The activity timestamp is read
// fresh here, never cached across ticks, so an activity event racing the
// ticker is picked up before any dispatch decision.
func (c *Controller) Tick(ctx context.Context, now time.Time) {
	lastSpeech := c.tracker.LastActivity()

	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.cycle.Kind {
	case CycleLockedUntilSpeech:
		// Waiting for NoteActivity to clear us.
		return

	case CycleAwaitingResponse:
		if now.Before(c.cycle.Deadline) {
			return
		}
		if lastSpeech.After(c.cycle.SpeechAtIssue) {
			// The candidate spoke after the filler: resolved.
			c.cycle = Cycle{}
			return
		}
		if c.speaking() {
			// Keep waiting; mutual exclusion with prompt delivery.
			return
		}
		c.cycle = Cycle{Kind: CycleLockedUntilSpeech}
		c.lastPromptAt = now
		if err := c.dispatcher.DispatchFollowup(ctx); err != nil {
			slog.Warn("follow-up dispatch failed", "error", err)
		}

	default: // CycleIdle
		silence := now.Sub(lastSpeech)
		if silence < c.cfg.FillerPause {
			return
		}
		if c.speaking() {
			return
		}
		if !c.lastPromptAt.IsZero() && now.Sub(c.lastPromptAt) < c.cfg.FillerCooldown {
			return
		}
		if !c.hasTranscript() {
			// Never prompt before any speech has occurred.
			return
		}
		c.cycle = Cycle{
			Kind:          CycleAwaitingResponse,
			IssuedAt:      now,
			Deadline:      now.Add(c.cfg.ResponseWait),
			SpeechAtIssue: lastSpeech,
		}
		c.lastPromptAt = now
		if err := c.dispatcher.DispatchFiller(ctx); err != nil {
			slog.Warn("filler dispatch failed", "error", err)
		}
	}
}
