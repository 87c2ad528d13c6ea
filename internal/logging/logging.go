// Package logging configures the process-wide slog default.
package logging

import (
	"log/slog"
	"os"

	"github.com/phsym/console-slog"
	slogmulti "github.com/samber/slog-multi"
)

// Preinit installs a console handler before config is available, so startup
// errors are still readable.
func Preinit() {
	slog.SetDefault(slog.New(console.NewHandler(os.Stderr, &console.HandlerOptions{
		Level: slog.LevelDebug,
	})))
}

// Init installs the final handler chain: console on stderr, plus a JSON file
// handler when logFile is non-empty.
func Init(logFile string) error {
	handlers := []slog.Handler{
		console.NewHandler(os.Stderr, &console.HandlerOptions{
			Level: slog.LevelDebug,
		}),
	}

	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	slog.SetDefault(slog.New(slogmulti.Fanout(handlers...)))
	return nil
}
