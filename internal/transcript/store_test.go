package transcript

import (
	"fmt"
	"testing"
	"time"
)

func TestAddSkipsEmptyText(t *testing.T) {
	s := NewStore(10, 1)
	s.Add("", time.Now())
	s.Add("   ", time.Now())
	s.Add("\n\t", time.Now())

	if got := s.Len(); got != 0 {
		t.Errorf("Len = %d, want 0 after whitespace-only adds", got)
	}
}

func TestEvictionKeepsNewest(t *testing.T) {
	s := NewStore(3, 1)
	now := time.Now()
	for i := 0; i < 5; i++ {
		s.Add(fmt.Sprintf("utterance %d", i), now.Add(time.Duration(i)*time.Second))
	}

	if got := s.Len(); got != 3 {
		t.Fatalf("Len = %d, want 3", got)
	}
	entries := s.Entries()
	if entries[0].Text != "utterance 2" || entries[2].Text != "utterance 4" {
		t.Errorf("eviction dropped the wrong end: %v", entries)
	}
}

func TestWindowJoinsWithSingleSpaces(t *testing.T) {
	s := NewStore(10, 1)
	now := time.Now()
	s.Add("I started at a small startup.", now)
	s.Add("Then moved into platform work.", now)
	s.Add("Mostly distributed systems.", now)

	got := s.Window(2)
	want := "Then moved into platform work. Mostly distributed systems."
	if got != want {
		t.Errorf("Window(2) = %q, want %q", got, want)
	}
}

func TestWindowLargerThanStore(t *testing.T) {
	s := NewStore(10, 1)
	s.Add("only one", time.Now())

	if got := s.Window(30); got != "only one" {
		t.Errorf("Window(30) = %q, want %q", got, "only one")
	}
	if got := NewStore(10, 1).Window(5); got != "" {
		t.Errorf("Window on empty store = %q, want empty", got)
	}
}

func TestClear(t *testing.T) {
	s := NewStore(10, 1)
	s.Add("something", time.Now())
	s.Clear()

	if got := s.Len(); got != 0 {
		t.Errorf("Len = %d after Clear, want 0", got)
	}
}

func TestEmitNeverBlocks(t *testing.T) {
	s := NewStore(10, 1)
	// Fill the buffer, then emit again; the extra event is dropped, not
	// a deadlock.
	s.Emit(Event{Text: "a"})
	s.Emit(Event{Text: "b"})

	select {
	case ev := <-s.Events():
		if ev.Text != "a" {
			t.Errorf("first event = %q, want %q", ev.Text, "a")
		}
	default:
		t.Fatal("no event buffered")
	}
}
