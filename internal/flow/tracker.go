package flow

import (
	"sync"
	"time"
)

// ActivityKind distinguishes interim from finalized recognition events.
type ActivityKind int

const (
	ActivityInterim ActivityKind = iota
	ActivityFinal
)

// Tracker records the timestamp of the most recent speech activity. It is a
// pure state update with no error conditions; the flow controller reads it
// fresh on every tick rather than caching, so an activity event that lands
// between ticks is never missed.
type Tracker struct {
	mu            sync.RWMutex
	lastActivity  time.Time
	lastInterimAt time.Time
	lastFinalAt   time.Time
}

// NewTracker creates an activity tracker. The zero value of every timestamp
// means "no speech observed yet".
func NewTracker() *Tracker {
	return &Tracker{}
}

// Record notes a speech activity event. lastActivity is always the max of
// the interim and final timestamps.
func (t *Tracker) Record(kind ActivityKind, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch kind {
	case ActivityFinal:
		if at.After(t.lastFinalAt) {
			t.lastFinalAt = at
		}
	default:
		if at.After(t.lastInterimAt) {
			t.lastInterimAt = at
		}
	}
	if at.After(t.lastActivity) {
		t.lastActivity = at
	}
}

// LastActivity returns the timestamp of the most recent speech activity of
// either kind.
func (t *Tracker) LastActivity() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastActivity
}

// LastFinal returns the timestamp of the most recent finalized utterance.
func (t *Tracker) LastFinal() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastFinalAt
}

// LastInterim returns the timestamp of the most recent interim result.
func (t *Tracker) LastInterim() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastInterimAt
}
