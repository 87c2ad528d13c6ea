// Package worker implements the client for the summarization worker
// service: summaries of transcript windows plus filler and follow-up phrase
// generation, over a type-tagged JSON websocket protocol.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	apperrors "github.com/parleyhq/platform/internal/errors"
	"github.com/parleyhq/platform/internal/resilience"
)

const (
	// MinSummaryInput is the minimum text length the summarizer accepts.
	MinSummaryInput = 50

	// NotEnoughContent is the sentinel summary for inputs below
	// MinSummaryInput. Not an error: short transcripts are expected early
	// in an interview.
	NotEnoughContent = "Not enough content to summarize yet."

	requestTimeout = 30 * time.Second
	initTimeout    = 2 * time.Minute // covers first-run model download
)

// Client talks to the summarizer worker. One connection serves the whole
// process; callers enforce their own in-flight limits.
type Client struct {
	conn       *websocket.Conn
	onProgress func(float64)

	reqSeq  atomic.Uint64
	ready   chan struct{}
	closed  chan struct{}
	closeMu sync.Once

	mu      sync.Mutex
	pending map[string]chan response
}

// Dial connects to the worker service, retrying with backoff; the worker may
// still be starting when the platform comes up.
func Dial(ctx context.Context, endpoint string, onProgress func(float64)) (*Client, error) {
	var conn *websocket.Conn
	err := resilience.Retry(ctx, resilience.DialRetryConfig(), func() error {
		var dialErr error
		conn, _, dialErr = websocket.Dial(ctx, endpoint, nil)
		return dialErr
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeUnavailable, "worker dial failed")
	}
	conn.SetReadLimit(1 << 20)

	c := &Client{
		conn:       conn,
		onProgress: onProgress,
		ready:      make(chan struct{}),
		closed:     make(chan struct{}),
		pending:    make(map[string]chan response),
	}
	go c.readLoop()
	return c, nil
}

// Init asks the worker to load its models and waits for the ready signal.
func (c *Client) Init(ctx context.Context) error {
	if err := wsjson.Write(ctx, c.conn, initRequest{Type: "init"}); err != nil {
		return apperrors.Wrap(err, apperrors.CodeWorker, "init send failed")
	}

	initCtx, cancel := context.WithTimeout(ctx, initTimeout)
	defer cancel()

	select {
	case <-c.ready:
		return nil
	case <-c.closed:
		return apperrors.New(apperrors.CodeWorker, "worker connection closed during init")
	case <-initCtx.Done():
		return apperrors.Wrap(initCtx.Err(), apperrors.CodeWorkerNotReady, "worker not ready")
	}
}

// Ready reports whether the worker has signalled readiness.
func (c *Client) Ready() bool {
	select {
	case <-c.ready:
		return true
	default:
		return false
	}
}

// Summarize requests a summary of the given transcript window. Inputs below
// MinSummaryInput short-circuit to the sentinel result without a round trip.
func (c *Client) Summarize(ctx context.Context, text string) (string, error) {
	if len(text) < MinSummaryInput {
		return NotEnoughContent, nil
	}

	id := c.nextID()
	resp, err := c.roundTrip(ctx, id, summarizeRequest{Type: "summarize", Text: text, RequestID: id})
	if err != nil {
		return "", err
	}
	return resp.Summary, nil
}

// GenerateFiller requests a short acknowledgement phrase for the given
// transcript context.
func (c *Client) GenerateFiller(ctx context.Context, transcriptContext string) (string, error) {
	id := c.nextID()
	resp, err := c.roundTrip(ctx, id, generateRequest{Type: "generate_filler", Context: transcriptContext, RequestID: id})
	if err != nil {
		return "", err
	}
	return resp.Phrase, nil
}

// GenerateFollowup requests an active check-in phrase for the given
// transcript context.
func (c *Client) GenerateFollowup(ctx context.Context, transcriptContext string) (string, error) {
	id := c.nextID()
	resp, err := c.roundTrip(ctx, id, generateRequest{Type: "generate_followup", Context: transcriptContext, RequestID: id})
	if err != nil {
		return "", err
	}
	return resp.Phrase, nil
}

// Close tears down the connection. In-flight requests fail with a closed
// error.
func (c *Client) Close() error {
	c.closeMu.Do(func() { close(c.closed) })
	return c.conn.Close(websocket.StatusNormalClosure, "")
}

func (c *Client) nextID() string {
	return fmt.Sprintf("req-%d", c.reqSeq.Add(1))
}

func (c *Client) roundTrip(ctx context.Context, id string, req any) (response, error) {
	if !c.Ready() {
		return response{}, apperrors.New(apperrors.CodeWorkerNotReady, "worker not initialized")
	}

	ch := make(chan response, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	if err := wsjson.Write(reqCtx, c.conn, req); err != nil {
		return response{}, apperrors.Wrap(err, apperrors.CodeWorker, "request send failed")
	}

	select {
	case resp := <-ch:
		if resp.Type == "error" {
			return response{}, apperrors.New(apperrors.CodeWorker, resp.Message)
		}
		return resp, nil
	case <-c.closed:
		return response{}, apperrors.New(apperrors.CodeWorker, "worker connection closed")
	case <-reqCtx.Done():
		return response{}, apperrors.Wrap(reqCtx.Err(), apperrors.CodeWorkerTimeout, "worker request timed out")
	}
}

func (c *Client) readLoop() {
	defer c.closeMu.Do(func() { close(c.closed) })

	for {
		var resp response
		if err := wsjson.Read(context.Background(), c.conn, &resp); err != nil {
			select {
			case <-c.closed:
			default:
				slog.Warn("worker connection lost", "error", err)
			}
			return
		}

		switch resp.Type {
		case "ready":
			select {
			case <-c.ready:
			default:
				close(c.ready)
				slog.Info("summarizer worker ready")
			}
		case "model_load":
			if c.onProgress != nil {
				c.onProgress(resp.Progress)
			}
		case "summary", "phrase", "error":
			if resp.RequestID == "" {
				// Untargeted error: surface it, nothing to resolve.
				slog.Warn("worker error", "message", resp.Message)
				continue
			}
			c.mu.Lock()
			ch, ok := c.pending[resp.RequestID]
			c.mu.Unlock()
			if ok {
				ch <- resp
			} else {
				slog.Debug("worker response for unknown request", "request_id", resp.RequestID)
			}
		default:
			slog.Debug("worker sent unknown message type", "type", resp.Type)
		}
	}
}
