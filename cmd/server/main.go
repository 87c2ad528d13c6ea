// Platform server - drives the interview copilot pipeline: microphone
// capture, streaming recognition, pause-driven prompts, rolling summaries.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/parleyhq/platform/internal/audio"
	"github.com/parleyhq/platform/internal/config"
	"github.com/parleyhq/platform/internal/logging"
	"github.com/parleyhq/platform/internal/prompt"
	"github.com/parleyhq/platform/internal/recognizer"
	"github.com/parleyhq/platform/internal/server"
	"github.com/parleyhq/platform/internal/session"
	"github.com/parleyhq/platform/internal/tts"
	"github.com/parleyhq/platform/internal/worker"
)

func main() {
	logging.Preinit()

	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}
	if err := logging.Init(cfg.LogFile); err != nil {
		slog.Error("logging init failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The manager is created after the worker client, but model-load
	// progress starts flowing at init time; bind late.
	var mgrRef atomic.Pointer[session.Manager]
	workerClient, err := worker.Dial(ctx, cfg.WorkerURL, func(progress float64) {
		if m := mgrRef.Load(); m != nil {
			m.NoteModelLoad(progress)
		}
	})
	if err != nil {
		slog.Error("worker connect failed", "url", cfg.WorkerURL, "error", err)
		os.Exit(1)
	}
	defer func() { _ = workerClient.Close() }()

	go func() {
		if err := workerClient.Init(ctx); err != nil {
			slog.Warn("worker init failed; summaries and prompts degraded", "error", err)
		}
	}()

	// Recognition is the only feature-fatal dependency: without it the
	// interview feature is disabled but the server still runs.
	var opener *recognizer.Client
	var sink session.AudioSink
	var capturer session.AudioSource
	if cfg.RecognizerURL != "" {
		rec := recognizer.New(cfg.RecognizerURL, cfg.SampleRate, cfg.DialTimeout)
		opener = rec
		sink = rec

		mic, err := audio.NewCapturer(cfg.SampleRate, cfg.AudioBuffer)
		if err != nil {
			slog.Warn("audio capture unavailable", "error", err)
		} else {
			capturer = mic
			defer mic.Terminate()
		}
	} else {
		slog.Warn("RECOGNIZER_URL not set; interview feature disabled")
	}

	var engine prompt.Engine
	if cfg.DeepgramAPIKey != "" {
		engine = tts.NewDeepgramEngine(cfg.DeepgramAPIKey, cfg.DeepgramVoice)
	} else {
		slog.Warn("DEEPGRAM_API_KEY not set; prompts will be logged, not spoken")
		engine = tts.NewLogEngine()
	}

	var mgr *session.Manager
	if opener != nil {
		mgr = session.New(workerClient, opener, sink, capturer, engine)
	} else {
		mgr = session.New(workerClient, nil, nil, nil, engine)
	}
	mgrRef.Store(mgr)

	srv := server.New(mgr)
	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("platform server starting", "http", cfg.HTTPAddr, "worker", cfg.WorkerURL, "recognizer", cfg.RecognizerURL)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down...")
	mgr.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}
}
