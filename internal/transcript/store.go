// Package transcript stores finalized utterances for display and summarization
package transcript

import (
	"strings"
	"sync"
	"time"
)

// Event represents a transcript event pushed to consumers.
type Event struct {
	Text    string
	Interim bool
}

// Entry is a stored finalized utterance.
type Entry struct {
	Timestamp time.Time
	Text      string
}

// Store keeps the most recent finalized utterances in arrival order, bounded
// to maxSize entries with the oldest evicted first. It is mutated only by the
// session's recognition result handler and read by the flow controller and
// the summarization dispatcher.
type Store struct {
	mu       sync.RWMutex
	entries  []Entry
	maxSize  int
	eventsCh chan Event
}

// NewStore creates a transcript store.
func NewStore(maxEntries, eventBuffer int) *Store {
	return &Store{
		entries:  make([]Entry, 0, maxEntries),
		maxSize:  maxEntries,
		eventsCh: make(chan Event, eventBuffer),
	}
}

// Add appends a finalized utterance, evicting the oldest beyond capacity.
func (s *Store) Add(text string, at time.Time) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, Entry{Timestamp: at, Text: text})
	if len(s.entries) > s.maxSize {
		s.entries = s.entries[len(s.entries)-s.maxSize:]
	}
}

// Len returns the number of stored utterances.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Window returns the last n utterances joined with single spaces, the source
// text for a summarization request.
func (s *Store) Window(n int) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := len(s.entries) - n
	if start < 0 {
		start = 0
	}
	parts := make([]string, 0, len(s.entries)-start)
	for _, e := range s.entries[start:] {
		parts = append(parts, e.Text)
	}
	return strings.Join(parts, " ")
}

// Entries returns a copy of all stored utterances.
func (s *Store) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]Entry, len(s.entries))
	copy(result, s.entries)
	return result
}

// Clear drops all stored utterances.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = s.entries[:0]
}

// Events returns the channel for transcript events.
func (s *Store) Events() <-chan Event {
	return s.eventsCh
}

// Emit sends a transcript event (non-blocking).
func (s *Store) Emit(event Event) {
	select {
	case s.eventsCh <- event:
	default:
	}
}
