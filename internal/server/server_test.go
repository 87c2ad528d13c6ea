package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/parleyhq/platform/internal/session"
	"github.com/parleyhq/platform/internal/speech"
)

type fakeWorker struct{}

func (fakeWorker) Ready() bool                                        { return true }
func (fakeWorker) Summarize(context.Context, string) (string, error)  { return "summary", nil }
func (fakeWorker) GenerateFiller(context.Context, string) (string, error) {
	return "mm-hmm", nil
}
func (fakeWorker) GenerateFollowup(context.Context, string) (string, error) {
	return "go on", nil
}

type fakeStream struct {
	events chan speech.Event
}

func (s *fakeStream) Events() <-chan speech.Event { return s.events }
func (s *fakeStream) Close() error                { return nil }

type fakeOpener struct {
	mu     sync.Mutex
	opened []*fakeStream
	connCh chan *fakeStream
}

func newFakeOpener() *fakeOpener {
	return &fakeOpener{connCh: make(chan *fakeStream, 8)}
}

func (o *fakeOpener) Open(context.Context) (speech.Stream, error) {
	st := &fakeStream{events: make(chan speech.Event, 16)}
	o.mu.Lock()
	o.opened = append(o.opened, st)
	o.mu.Unlock()
	o.connCh <- st
	return st, nil
}

type fakeEngine struct{}

func (fakeEngine) Speak(context.Context, string) error { return nil }

func newTestServer(t *testing.T, opener speech.Opener) (*httptest.Server, *session.Manager) {
	t.Helper()
	mgr := session.New(fakeWorker{}, opener, nil, nil, fakeEngine{})
	srv := httptest.NewServer(New(mgr).Handler())
	t.Cleanup(func() {
		mgr.Stop()
		srv.Close()
	})
	return srv, mgr
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	return resp
}

func postJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", nil)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	return resp
}

func TestStatusEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, newFakeOpener())

	var status struct {
		Supported bool `json:"supported"`
		Running   bool `json:"running"`
	}
	getJSON(t, srv.URL+"/api/status", &status)

	if !status.Supported || status.Running {
		t.Errorf("status = %+v, want supported and not running", status)
	}
}

func TestStartRejectedWhenUnsupported(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	var body struct {
		Code string `json:"code"`
	}
	resp := postJSON(t, srv.URL+"/api/interview/start", &body)

	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", resp.StatusCode)
	}
	if body.Code != "unsupported" {
		t.Errorf("code = %q, want unsupported", body.Code)
	}
}

func TestRESTStartStopLifecycle(t *testing.T) {
	opener := newFakeOpener()
	srv, mgr := newTestServer(t, opener)

	resp := postJSON(t, srv.URL+"/api/interview/start", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start status = %d", resp.StatusCode)
	}
	if !mgr.Running() {
		t.Fatalf("manager not running after start")
	}
	<-opener.connCh

	postJSON(t, srv.URL+"/api/interview/stop", nil)
	if mgr.Running() {
		t.Errorf("manager still running after stop")
	}
}

func TestTranscriptEndpoint(t *testing.T) {
	opener := newFakeOpener()
	srv, mgr := newTestServer(t, opener)

	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	st := <-opener.connCh
	st.events <- speech.Event{Kind: speech.EventFinal, Text: "I build backends."}

	deadline := time.After(2 * time.Second)
	for len(mgr.Transcript()) == 0 {
		select {
		case <-deadline:
			t.Fatal("transcript never populated")
		case <-time.After(5 * time.Millisecond):
		}
	}

	var body struct {
		Transcript []string `json:"transcript"`
	}
	getJSON(t, srv.URL+"/api/transcript", &body)
	if len(body.Transcript) != 1 || body.Transcript[0] != "I build backends." {
		t.Errorf("transcript = %v", body.Transcript)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/status", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("allow-origin = %q", got)
	}
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("ws dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func TestWebSocketStartStopCommands(t *testing.T) {
	opener := newFakeOpener()
	srv, mgr := newTestServer(t, opener)
	conn := dialWS(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := wsjson.Write(ctx, conn, map[string]string{"type": "start"}); err != nil {
		t.Fatalf("write start: %v", err)
	}
	var ack AckMessage
	if err := wsjson.Read(ctx, conn, &ack); err != nil {
		t.Fatalf("read ack: %v", err)
	}
	if ack.Type != "ack" || ack.Command != "start" {
		t.Fatalf("ack = %+v", ack)
	}
	if !mgr.Running() {
		t.Fatalf("manager not running after ws start")
	}
	<-opener.connCh

	if err := wsjson.Write(ctx, conn, map[string]string{"type": "stop"}); err != nil {
		t.Fatalf("write stop: %v", err)
	}
	if err := wsjson.Read(ctx, conn, &ack); err != nil {
		t.Fatalf("read stop ack: %v", err)
	}
	if ack.Command != "stop" {
		t.Errorf("ack = %+v", ack)
	}
	if mgr.Running() {
		t.Errorf("manager still running after ws stop")
	}
}

func TestWebSocketStartErrorWhenUnsupported(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	conn := dialWS(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := wsjson.Write(ctx, conn, map[string]string{"type": "start"}); err != nil {
		t.Fatalf("write start: %v", err)
	}
	var errMsg ErrorMessage
	if err := wsjson.Read(ctx, conn, &errMsg); err != nil {
		t.Fatalf("read error: %v", err)
	}
	if errMsg.Type != "error" || errMsg.Code != "unsupported" {
		t.Errorf("error message = %+v", errMsg)
	}
}

func TestWebSocketRateLimit(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	conn := dialWS(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Commands with an unknown type are still counted by the limiter but
	// produce no reply, so the first reply is the rate limit error.
	for i := 0; i < RateLimitMessages+1; i++ {
		if err := wsjson.Write(ctx, conn, map[string]string{"type": "noop"}); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	var errMsg ErrorMessage
	if err := wsjson.Read(ctx, conn, &errMsg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if errMsg.Type != "error" || !strings.Contains(errMsg.Message, "rate limit") {
		t.Errorf("message = %+v, want rate limit error", errMsg)
	}
}

func TestEventsBroadcastToClients(t *testing.T) {
	srv, mgr := newTestServer(t, nil)
	conn := dialWS(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Give the read loop a moment to register the connection.
	time.Sleep(20 * time.Millisecond)
	mgr.NoteModelLoad(0.6)

	var evt EventMessage
	if err := wsjson.Read(ctx, conn, &evt); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if evt.Type != "model_load" || evt.Progress != 0.6 {
		t.Errorf("event = %+v", evt)
	}
}
