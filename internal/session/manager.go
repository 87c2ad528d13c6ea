// Package session coordinates recognition, flow control, summarization, and
// prompt delivery for one interview at a time.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/parleyhq/platform/internal/audio"
	"github.com/parleyhq/platform/internal/errors"
	"github.com/parleyhq/platform/internal/flow"
	"github.com/parleyhq/platform/internal/prompt"
	"github.com/parleyhq/platform/internal/speech"
	"github.com/parleyhq/platform/internal/summary"
	"github.com/parleyhq/platform/internal/transcript"
)

// EventKind identifies a session event pushed to UI consumers.
type EventKind string

const (
	EventInterim    EventKind = "interim"
	EventTranscript EventKind = "transcript"
	EventSummary    EventKind = "summary"
	EventPrompt     EventKind = "prompt"
	EventStatus     EventKind = "status"
	EventModelLoad  EventKind = "model_load"
)

// Event is a session event.
type Event struct {
	Kind       EventKind
	Text       string
	PromptKind string  // "filler" or "followup", set for EventPrompt
	Progress   float64 // set for EventModelLoad
}

// Fallback phrases spoken when the worker cannot generate one. The flow
// cycle has already been rolled forward by then; a prompt must still reach
// the candidate.
const (
	fallbackFiller   = "Mm-hmm, take your time."
	fallbackFollowup = "Would you like to expand on that a little?"
)

const (
	transcriptMaxEntries  = 60
	transcriptEventBuffer = 100
	eventBuffer           = 100

	// promptContextSentences is how much recent transcript the worker sees
	// when generating a filler or follow-up phrase.
	promptContextSentences = 5

	// finalSummaryTimeout bounds the flush on interview stop.
	finalSummaryTimeout = 20 * time.Second
)

// Worker is the summarization/generation collaborator surface the session
// needs; satisfied by *worker.Client.
type Worker interface {
	Ready() bool
	Summarize(ctx context.Context, text string) (string, error)
	GenerateFiller(ctx context.Context, transcriptContext string) (string, error)
	GenerateFollowup(ctx context.Context, transcriptContext string) (string, error)
}

// AudioSource produces microphone chunks.
type AudioSource interface {
	Start(ctx context.Context) error
	Stop()
	Output() <-chan audio.Chunk
}

// AudioSink receives PCM16LE frames for recognition.
type AudioSink interface {
	SendAudio(pcm []byte)
}

// Manager owns all per-interview state. It is constructed once per process;
// interview state is reset on every start so sessions never leak into each
// other.
type Manager struct {
	workerClient Worker
	capturer     AudioSource
	sink         AudioSink
	clock        func() time.Time

	speechSession *speech.Session
	speaker       *prompt.Speaker
	store         *transcript.Store
	tracker       *flow.Tracker
	flowCtl       *flow.Controller
	dispatcher    *summary.Dispatcher

	eventsCh chan Event

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
	runCtx  context.Context
	cancel  context.CancelFunc
}

// New wires a session manager. opener streams recognition passes; sink
// receives captured audio (typically the same recognizer client); engine
// speaks prompts. A nil opener marks the environment as unsupported.
func New(workerClient Worker, opener speech.Opener, sink AudioSink, capturer AudioSource, engine prompt.Engine) *Manager {
	m := &Manager{
		workerClient: workerClient,
		capturer:     capturer,
		sink:         sink,
		clock:        time.Now,
		store:        transcript.NewStore(transcriptMaxEntries, transcriptEventBuffer),
		tracker:      flow.NewTracker(),
		eventsCh:     make(chan Event, eventBuffer),
	}

	if opener != nil {
		m.speechSession = speech.NewSession(opener, speech.Handlers{
			OnInterim: m.handleInterim,
			OnFinal:   m.handleFinal,
			OnStatus:  m.handleStatus,
			OnError:   m.handleRecognitionError,
		})
	}
	m.speaker = prompt.NewSpeaker(engine, recognitionAdapter{m})

	m.flowCtl = flow.NewController(flow.Config{}, m.tracker, m,
		m.speaker.Speaking,
		func() bool { return m.store.Len() > 0 },
	)
	m.dispatcher = summary.NewDispatcher(workerClient,
		func() string { return m.store.Window(summary.WindowSentences) },
		func(text string) { m.emit(Event{Kind: EventSummary, Text: text}) },
	)

	return m
}

// recognitionAdapter exposes the speech session to prompt delivery, and
// degrades to no-ops in unsupported environments.
type recognitionAdapter struct{ m *Manager }

func (r recognitionAdapter) Suspend() {
	if r.m.speechSession != nil {
		r.m.speechSession.Suspend()
	}
}

func (r recognitionAdapter) Resume() {
	if r.m.speechSession != nil {
		r.m.speechSession.Resume()
	}
}

func (r recognitionAdapter) Active() bool {
	return r.m.speechSession != nil && r.m.speechSession.Active()
}

// Supported reports whether speech recognition is available. When false,
// starting an interview is the feature's only fatal condition.
func (m *Manager) Supported() bool {
	return m.speechSession != nil
}

// Events returns the channel for session events.
func (m *Manager) Events() <-chan Event { return m.eventsCh }

// Running reports whether an interview is in progress.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Transcript returns a copy of the stored transcript entries.
func (m *Manager) Transcript() []transcript.Entry {
	return m.store.Entries()
}

// Start begins an interview: fresh transcript and flow state, microphone
// capture, continuous recognition, and the poll loop.
func (m *Manager) Start(ctx context.Context) error {
	if !m.Supported() {
		return errors.New(errors.CodeUnsupported, "speech recognition is not configured; interview feature disabled")
	}

	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.runCtx, m.cancel = context.WithCancel(ctx)
	stopCh, runCtx := m.stopCh, m.runCtx
	m.mu.Unlock()

	m.store.Clear()
	m.flowCtl.Reset()

	if m.capturer != nil {
		if err := m.capturer.Start(runCtx); err != nil {
			slog.Warn("audio capture start failed", "error", err)
		}
		m.wg.Add(1)
		go m.audioLoop(runCtx, stopCh)
	}

	m.speechSession.Start(runCtx)

	m.wg.Add(1)
	go m.pollLoop(runCtx, stopCh)

	slog.Info("interview started")
	return nil
}

// Stop ends the interview synchronously: recognition stops with auto-restart
// disabled, the poll loop exits, and one final summary is requested if any
// transcript exists. Worker responses that arrive afterwards are ignored by
// construction, since their request contexts are cancelled.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stopCh)
	cancel := m.cancel
	m.mu.Unlock()

	m.speechSession.Stop()
	if m.capturer != nil {
		m.capturer.Stop()
	}
	cancel()
	m.wg.Wait()

	if m.store.Len() > 0 {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), finalSummaryTimeout)
		m.dispatcher.Flush(flushCtx)
		flushCancel()
	}

	m.emit(Event{Kind: EventStatus, Text: speech.StatusIdle.String()})
	slog.Info("interview stopped")
}

func (m *Manager) audioLoop(ctx context.Context, stopCh chan struct{}) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case chunk := <-m.capturer.Output():
			m.sink.SendAudio(audio.Float32ToPCM16(chunk.Data))
		}
	}
}

func (m *Manager) pollLoop(ctx context.Context, stopCh chan struct{}) {
	defer m.wg.Done()
	ticker := time.NewTicker(flow.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			m.flowCtl.Tick(ctx, m.clock())
		}
	}
}

func (m *Manager) handleInterim(text string, at time.Time) {
	m.tracker.Record(flow.ActivityInterim, at)
	m.flowCtl.NoteActivity()
	m.emit(Event{Kind: EventInterim, Text: text})
}

func (m *Manager) handleFinal(text string, at time.Time) {
	m.tracker.Record(flow.ActivityFinal, at)
	m.flowCtl.NoteActivity()
	m.store.Add(text, at)

	m.mu.Lock()
	ctx := m.runCtx
	m.mu.Unlock()
	if ctx != nil {
		m.dispatcher.NoteFinal(ctx)
	}

	m.emit(Event{Kind: EventTranscript, Text: text})
}

func (m *Manager) handleStatus(status speech.Status) {
	m.emit(Event{Kind: EventStatus, Text: status.String()})
}

func (m *Manager) handleRecognitionError(err error) {
	m.emit(Event{Kind: EventStatus, Text: "error: " + err.Error()})
}

// NoteModelLoad forwards worker model download progress to consumers.
func (m *Manager) NoteModelLoad(progress float64) {
	m.emit(Event{Kind: EventModelLoad, Progress: progress})
}

// DispatchFiller implements flow.Dispatcher. Generation and playback run in
// the background; the flow cycle has already been advanced by the caller.
func (m *Manager) DispatchFiller(ctx context.Context) error {
	m.dispatchPrompt(ctx, "filler")
	return nil
}

// DispatchFollowup implements flow.Dispatcher.
func (m *Manager) DispatchFollowup(ctx context.Context) error {
	m.dispatchPrompt(ctx, "followup")
	return nil
}

func (m *Manager) dispatchPrompt(ctx context.Context, kind string) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		transcriptContext := m.store.Window(promptContextSentences)

		var phrase string
		var err error
		switch kind {
		case "followup":
			phrase, err = m.workerClient.GenerateFollowup(ctx, transcriptContext)
			if err != nil || phrase == "" {
				phrase = fallbackFollowup
			}
		default:
			phrase, err = m.workerClient.GenerateFiller(ctx, transcriptContext)
			if err != nil || phrase == "" {
				phrase = fallbackFiller
			}
		}
		if err != nil {
			slog.Warn("prompt generation failed, using fallback", "kind", kind, "error", err)
		}

		m.emit(Event{Kind: EventPrompt, Text: phrase, PromptKind: kind})
		if err := m.speaker.Speak(ctx, phrase); err != nil {
			slog.Warn("prompt delivery failed", "kind", kind, "error", err)
		}
	}()
}

func (m *Manager) emit(event Event) {
	select {
	case m.eventsCh <- event:
	default:
		slog.Debug("session event buffer full, dropping event", "kind", event.Kind)
	}
}
