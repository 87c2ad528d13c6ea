// Package flow decides when to inject filler and follow-up prompts based on
// observed speech activity.
package flow

import "time"

// Timing constants for the pause state machine. These are deliberately
// compile-time: the evaluator's behavior is part of the product, not an
// operator knob.
const (
	// FillerPause is the silence required before a filler prompt.
	FillerPause = 3500 * time.Millisecond

	// FillerCooldown is the minimum gap between any two prompt dispatches.
	FillerCooldown = 8000 * time.Millisecond

	// ResponseWait is the grace window after a filler during which new
	// speech counts as a response.
	ResponseWait = 6000 * time.Millisecond

	// PollInterval is how often the evaluator ticks. Anything materially
	// shorter than FillerPause/4 trades overhead for timing precision.
	PollInterval = 800 * time.Millisecond
)
