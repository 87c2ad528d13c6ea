// Package recognizer implements the websocket client for the streaming
// speech-recognition service.
package recognizer

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	apperrors "github.com/parleyhq/platform/internal/errors"
	"github.com/parleyhq/platform/internal/speech"
)

const (
	audioBufferFrames = 1000
	eventBuffer       = 100
	writeTimeout      = 5 * time.Second
)

// Wire messages. The service speaks type-tagged JSON; audio goes upstream as
// binary PCM16LE frames.
type beginMessage struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type transcriptMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// Client dials the recognition service and exposes each connection as one
// recognition pass. Utterance state lives per pass: a restarted stream
// starts counting sentences from scratch, exactly as the session controller
// expects.
type Client struct {
	endpoint    string
	sampleRate  int
	dialTimeout time.Duration

	mu  sync.RWMutex
	cur *pass
}

// New creates a recognizer client. endpoint is a ws:// or wss:// URL.
func New(endpoint string, sampleRate int, dialTimeout time.Duration) *Client {
	return &Client{endpoint: endpoint, sampleRate: sampleRate, dialTimeout: dialTimeout}
}

// Open dials a fresh recognition pass. Implements speech.Opener.
func (c *Client) Open(ctx context.Context) (speech.Stream, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeRecognizer, "invalid recognizer URL")
	}
	q := u.Query()
	q.Set("sample_rate", strconv.Itoa(c.sampleRate))
	q.Set("encoding", "pcm_s16le")
	q.Set("interim", "true")
	u.RawQuery = q.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: c.dialTimeout}
	conn, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			slog.Debug("recognizer dial rejected", "status", resp.StatusCode)
		}
		return nil, apperrors.Wrap(err, apperrors.CodeUnavailable, "recognizer dial failed")
	}

	p := &pass{
		conn:    conn,
		events:  make(chan speech.Event, eventBuffer),
		audio:   make(chan []byte, audioBufferFrames),
		closeCh: make(chan struct{}),
	}
	go p.readLoop()
	go p.writeLoop()

	c.mu.Lock()
	c.cur = p
	c.mu.Unlock()

	return p, nil
}

// SendAudio forwards a PCM16LE frame to the current pass. Frames arriving
// while no pass is open (restart in progress, session suspended) are
// dropped; recognition is best-effort by contract.
func (c *Client) SendAudio(pcm []byte) {
	c.mu.RLock()
	p := c.cur
	c.mu.RUnlock()
	if p == nil {
		return
	}
	p.sendAudio(pcm)
}

// pass is a single websocket connection to the recognition service.
type pass struct {
	conn   *websocket.Conn
	events chan speech.Event
	audio  chan []byte

	closeOnce sync.Once
	closeCh   chan struct{}
}

// Events implements speech.Stream.
func (p *pass) Events() <-chan speech.Event { return p.events }

// Close implements speech.Stream. Idempotent.
func (p *pass) Close() error {
	p.closeOnce.Do(func() {
		close(p.closeCh)
		_ = p.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeTimeout))
		_ = p.conn.Close()
	})
	return nil
}

func (p *pass) sendAudio(pcm []byte) {
	select {
	case <-p.closeCh:
	case p.audio <- pcm:
	default:
		slog.Debug("recognizer audio buffer full, dropping frame")
	}
}

func (p *pass) writeLoop() {
	for {
		select {
		case <-p.closeCh:
			return
		case pcm := <-p.audio:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := p.conn.WriteMessage(websocket.BinaryMessage, pcm); err != nil {
				slog.Debug("recognizer write failed", "error", err)
				_ = p.Close()
				return
			}
		}
	}
}

// readLoop turns service messages into speech events. The events channel is
// closed when the connection ends, which the session controller treats as a
// normal end-of-pass.
func (p *pass) readLoop() {
	defer close(p.events)

	for {
		_, raw, err := p.conn.ReadMessage()
		if err != nil {
			select {
			case <-p.closeCh: // requested close, not an error
			default:
				slog.Debug("recognizer read ended", "error", err)
			}
			return
		}
		p.handleMessage(raw)
	}
}

func (p *pass) handleMessage(raw []byte) {
	var base struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &base); err != nil {
		slog.Debug("recognizer sent malformed message", "error", err)
		return
	}

	switch base.Type {
	case "begin":
		var msg beginMessage
		if err := json.Unmarshal(raw, &msg); err == nil {
			slog.Debug("recognition pass began", "id", msg.ID)
		}
	case "partial":
		var msg transcriptMessage
		if err := json.Unmarshal(raw, &msg); err == nil && msg.Text != "" {
			p.emit(speech.Event{Kind: speech.EventInterim, Text: msg.Text})
		}
	case "final":
		var msg transcriptMessage
		if err := json.Unmarshal(raw, &msg); err == nil && msg.Text != "" {
			p.emit(speech.Event{Kind: speech.EventFinal, Text: msg.Text})
		}
	case "error":
		var msg errorMessage
		if err := json.Unmarshal(raw, &msg); err == nil {
			p.emit(speech.Event{
				Kind: speech.EventError,
				Err:  apperrors.New(apperrors.CodeRecognizer, msg.Error),
			})
		}
	default:
		slog.Debug("recognizer sent unknown message type", "type", base.Type)
	}
}

func (p *pass) emit(ev speech.Event) {
	select {
	case p.events <- ev:
	default:
		slog.Debug("recognizer event buffer full, dropping event")
	}
}
