package prompt

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeEngine struct {
	mu      sync.Mutex
	phrases []string
	err     error
	block   chan struct{}
	started chan struct{}
	once    sync.Once
}

func (e *fakeEngine) Speak(_ context.Context, text string) error {
	e.mu.Lock()
	e.phrases = append(e.phrases, text)
	block, started := e.block, e.started
	err := e.err
	e.mu.Unlock()

	if started != nil {
		e.once.Do(func() { close(started) })
	}
	if block != nil {
		<-block
	}
	return err
}

func (e *fakeEngine) spoken() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.phrases...)
}

type fakeRecognition struct {
	mu       sync.Mutex
	suspends int
	resumes  int
	active   bool
}

func (r *fakeRecognition) Suspend() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.suspends++
}

func (r *fakeRecognition) Resume() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resumes++
}

func (r *fakeRecognition) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

func (r *fakeRecognition) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.suspends, r.resumes
}

func TestSpeakSuspendsAndResumesRecognition(t *testing.T) {
	engine := &fakeEngine{}
	rec := &fakeRecognition{active: true}
	s := NewSpeaker(engine, rec)

	if err := s.Speak(context.Background(), "Mm-hmm, take your time."); err != nil {
		t.Fatalf("Speak: %v", err)
	}

	suspends, resumes := rec.counts()
	if suspends != 1 || resumes != 1 {
		t.Errorf("suspend/resume = (%d, %d), want (1, 1)", suspends, resumes)
	}
	if got := engine.spoken(); len(got) != 1 || got[0] != "Mm-hmm, take your time." {
		t.Errorf("spoken = %v", got)
	}
	if s.Speaking() {
		t.Errorf("Speaking = true after Speak returned")
	}
}

func TestSpeakResumesAfterEngineFailure(t *testing.T) {
	engine := &fakeEngine{err: errors.New("synthesis failed")}
	rec := &fakeRecognition{active: true}
	s := NewSpeaker(engine, rec)

	if err := s.Speak(context.Background(), "hello"); err == nil {
		t.Fatal("Speak returned nil, want engine error")
	}

	_, resumes := rec.counts()
	if resumes != 1 {
		t.Errorf("resumes = %d after failure, want 1", resumes)
	}
	if s.Speaking() {
		t.Errorf("speaking flag stuck after failure")
	}
}

func TestSpeakSkipsResumeWhenSessionStopped(t *testing.T) {
	engine := &fakeEngine{}
	rec := &fakeRecognition{active: false}
	s := NewSpeaker(engine, rec)

	if err := s.Speak(context.Background(), "hello"); err != nil {
		t.Fatalf("Speak: %v", err)
	}

	_, resumes := rec.counts()
	if resumes != 0 {
		t.Errorf("resumes = %d with inactive session, want 0", resumes)
	}
}

func TestEmptyPhraseIsNoOp(t *testing.T) {
	engine := &fakeEngine{}
	rec := &fakeRecognition{active: true}
	s := NewSpeaker(engine, rec)

	if err := s.Speak(context.Background(), "   "); err != nil {
		t.Fatalf("Speak: %v", err)
	}

	suspends, _ := rec.counts()
	if suspends != 0 || len(engine.spoken()) != 0 {
		t.Errorf("whitespace phrase reached the engine")
	}
}

func TestConcurrentSpeakIsSkipped(t *testing.T) {
	block := make(chan struct{})
	started := make(chan struct{})
	engine := &fakeEngine{block: block, started: started}
	rec := &fakeRecognition{active: true}
	s := NewSpeaker(engine, rec)

	done := make(chan error, 1)
	go func() { done <- s.Speak(context.Background(), "first") }()
	<-started

	if !s.Speaking() {
		t.Fatal("Speaking = false while engine is mid-playback")
	}
	// The overlapping call returns immediately without touching the engine.
	if err := s.Speak(context.Background(), "second"); err != nil {
		t.Fatalf("overlapping Speak: %v", err)
	}
	if got := engine.spoken(); len(got) != 1 {
		t.Errorf("spoken = %v, want only the first phrase", got)
	}

	close(block)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("first Speak never returned")
	}

	suspends, resumes := rec.counts()
	if suspends != 1 || resumes != 1 {
		t.Errorf("suspend/resume = (%d, %d), want (1, 1)", suspends, resumes)
	}
}
