package speech

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/parleyhq/platform/internal/syncx"
)

// Status of the listening abstraction as seen by the rest of the system.
type Status int

const (
	StatusIdle Status = iota
	StatusListening
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusListening:
		return "listening"
	case StatusError:
		return "error"
	default:
		return "idle"
	}
}

// Handlers receive session events. Nil handlers are skipped. Handlers are
// invoked from the session's event loop goroutine, in delivery order.
type Handlers struct {
	OnInterim func(text string, at time.Time)
	OnFinal   func(text string, at time.Time)
	OnStatus  func(Status)
	OnError   func(err error)
}

// reopenDelay paces restart attempts when opening a stream fails outright,
// so a dead recognizer does not produce a hot loop.
const reopenDelay = 1 * time.Second

type sessionState struct {
	active    bool
	suspended bool
}

// Session owns the lifecycle of the continuous recognition stream: start,
// stop, auto-restart on unexpected end, and suspension while the system's
// own TTS is playing so it never transcribes itself.
type Session struct {
	opener   Opener
	handlers Handlers
	clock    func() time.Time

	state      *syncx.Guard[sessionState]
	lastStatus *syncx.Guard[Status]

	mu        sync.Mutex // guards cancel/resumeCh/suspendCh handoff
	cancel    context.CancelFunc
	suspendCh chan struct{}
	resumeCh  chan struct{}
	done      chan struct{}
}

// NewSession creates a speech session controller around a stream opener.
func NewSession(opener Opener, handlers Handlers) *Session {
	return &Session{
		opener:     opener,
		handlers:   handlers,
		clock:      time.Now,
		state:      syncx.NewGuard(sessionState{}),
		lastStatus: syncx.NewGuard(StatusIdle),
	}
}

// Start begins continuous, interim-enabled recognition. No-op if already
// active. The stream is restarted automatically whenever it ends, unless the
// session is suspended or has been stopped.
func (s *Session) Start(ctx context.Context) {
	started := s.state.Update(func(st *sessionState) bool {
		if st.active {
			return false
		}
		st.active = true
		st.suspended = false
		return true
	})
	if !started {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.cancel = cancel
	s.suspendCh = make(chan struct{}, 1)
	s.resumeCh = make(chan struct{}, 1)
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		s.run(runCtx)
	}()
}

// Stop shuts recognition down and disables auto-restart. Safe to call more
// than once. Returns after the event loop has exited, so no handler fires
// after Stop.
func (s *Session) Stop() {
	stopped := s.state.Update(func(st *sessionState) bool {
		if !st.active {
			return false
		}
		st.active = false
		st.suspended = false
		return true
	})
	if !stopped {
		return
	}

	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	s.setStatus(StatusIdle)
}

// Suspend pauses recognition while self-generated speech plays. The current
// pass is closed and no restart happens until Resume.
func (s *Session) Suspend() {
	s.state.Write(func(st *sessionState) { st.suspended = true })

	s.mu.Lock()
	ch := s.suspendCh
	s.mu.Unlock()
	if ch != nil {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Resume restarts recognition if the interview is still active.
func (s *Session) Resume() {
	s.state.Write(func(st *sessionState) { st.suspended = false })

	s.mu.Lock()
	ch := s.resumeCh
	s.mu.Unlock()
	if ch != nil {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Active reports whether the session has been started and not stopped.
func (s *Session) Active() bool {
	return s.state.Get().active
}

// Suspended reports whether the session is paused for TTS playback.
func (s *Session) Suspended() bool {
	return s.state.Get().suspended
}

// Status returns the last reported status.
func (s *Session) Status() Status {
	return s.lastStatus.Get()
}

func (s *Session) run(ctx context.Context) {
	defer s.setStatus(StatusIdle)

	for {
		if ctx.Err() != nil {
			return
		}

		if s.Suspended() {
			select {
			case <-ctx.Done():
				return
			case <-s.resumeCh:
			}
			continue
		}

		// Drop any suspend signal left over from a pause that happened
		// while no pass was open.
		select {
		case <-s.suspendCh:
			continue
		default:
		}

		stream, err := s.opener.Open(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.setStatus(StatusError)
			s.reportError(err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(reopenDelay):
			}
			continue
		}

		s.setStatus(StatusListening)
		s.consume(ctx, stream)
		// Loop: restart unless stopped or suspended, both checked above.
		// A stream ending on its own is normal, not a failure.
		slog.Debug("recognition pass ended")
	}
}

// consume drains one recognition pass. Returns when the pass ends, the
// session is suspended, or the context is cancelled.
func (s *Session) consume(ctx context.Context, stream Stream) {
	defer func() { _ = stream.Close() }()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.suspendCh:
			return
		case ev, ok := <-stream.Events():
			if !ok {
				return
			}
			s.handle(ev)
		}
	}
}

func (s *Session) handle(ev Event) {
	now := s.clock()
	switch ev.Kind {
	case EventInterim:
		if s.handlers.OnInterim != nil && ev.Text != "" {
			s.handlers.OnInterim(ev.Text, now)
		}
	case EventFinal:
		if s.handlers.OnFinal != nil && ev.Text != "" {
			s.handlers.OnFinal(ev.Text, now)
		}
	case EventError:
		s.setStatus(StatusError)
		s.reportError(ev.Err)
	}
}

func (s *Session) setStatus(status Status) {
	changed := false
	s.lastStatus.Write(func(cur *Status) {
		if *cur != status {
			*cur = status
			changed = true
		}
	})
	if changed && s.handlers.OnStatus != nil {
		s.handlers.OnStatus(status)
	}
}

func (s *Session) reportError(err error) {
	if err == nil {
		return
	}
	slog.Warn("recognition error", "error", err)
	if s.handlers.OnError != nil {
		s.handlers.OnError(err)
	}
}
