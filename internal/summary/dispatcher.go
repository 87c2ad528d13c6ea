// Package summary batches finalized transcript segments into rolling
// summarization requests.
package summary

import (
	"context"
	"log/slog"
	"sync"

	"github.com/parleyhq/platform/internal/resilience"
)

const (
	// TriggerSentences is how many finalized segments accumulate before a
	// summarization request is considered.
	TriggerSentences = 3

	// WindowSentences is how many recent segments form the request text.
	WindowSentences = 30
)

// Summarizer is the external summarization collaborator.
type Summarizer interface {
	Ready() bool
	Summarize(ctx context.Context, text string) (string, error)
}

// Dispatcher enforces the at-most-one-in-flight summarization policy: while
// a request is outstanding, further trigger conditions are silently skipped
// rather than queued, so a slow summarizer never builds a backlog.
type Dispatcher struct {
	summarizer Summarizer
	breaker    *resilience.Breaker
	window     func() string // most recent WindowSentences segments, joined
	onSummary  func(string)

	mu        sync.Mutex
	sinceLast int
	inFlight  bool
	wg        sync.WaitGroup
}

// NewDispatcher creates a summarization dispatcher. window supplies the
// request text; onSummary receives results (including the not-enough-content
// sentinel).
func NewDispatcher(summarizer Summarizer, window func() string, onSummary func(string)) *Dispatcher {
	return &Dispatcher{
		summarizer: summarizer,
		breaker:    resilience.NewBreaker(resilience.DefaultBreakerConfig()),
		window:     window,
		onSummary:  onSummary,
	}
}

// NoteFinal records one finalized segment and dispatches a summarization
// request when the trigger count is reached, the worker is initialized, and
// no request is outstanding.
func (d *Dispatcher) NoteFinal(ctx context.Context) {
	d.mu.Lock()
	d.sinceLast++
	if d.sinceLast < TriggerSentences || d.inFlight || !d.summarizer.Ready() {
		d.mu.Unlock()
		return
	}
	d.sinceLast = 0
	d.inFlight = true
	d.mu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.summarize(ctx)
	}()
}

// Flush issues one final summarization request regardless of the trigger
// count. The in-flight guard still applies: if a request is already
// outstanding its result stands in for the final one.
func (d *Dispatcher) Flush(ctx context.Context) {
	d.mu.Lock()
	if d.inFlight {
		d.mu.Unlock()
		return
	}
	d.sinceLast = 0
	d.inFlight = true
	d.mu.Unlock()

	d.summarize(ctx)
}

// InFlight reports whether a summarization request is outstanding.
func (d *Dispatcher) InFlight() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inFlight
}

// Wait blocks until any outstanding background request has completed.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) summarize(ctx context.Context) {
	defer func() {
		d.mu.Lock()
		d.inFlight = false
		d.mu.Unlock()
	}()

	text := d.window()
	var result string
	err := d.breaker.Execute(func() error {
		var sumErr error
		result, sumErr = d.summarizer.Summarize(ctx, text)
		return sumErr
	})
	if err != nil {
		slog.Warn("summarization failed", "error", err)
		return
	}

	if d.onSummary != nil && result != "" {
		d.onSummary(result)
	}
}
