// Package log is the console's process-wide logger. Call Init once from main;
// before that, messages go to stderr at info level.
package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/adrg/xdg"
)

var (
	mu      sync.RWMutex
	logger  = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	level   = new(slog.LevelVar)
	logFile *os.File
)

// ParseLevel maps a config string to a slog level. Unknown values mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Init sets up logging to stderr and to $XDG_STATE_HOME/<app>/<app>.log.
// A log file that cannot be opened is not fatal; stderr keeps working.
func Init(app, lvl string) error {
	path, err := xdg.StateFile(filepath.Join(app, app+".log"))
	if err != nil {
		Configure(os.Stderr, lvl)
		return fmt.Errorf("resolve log path: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		Configure(os.Stderr, lvl)
		return fmt.Errorf("open log file: %w", err)
	}

	mu.Lock()
	if logFile != nil {
		logFile.Close()
	}
	logFile = f
	mu.Unlock()

	Configure(io.MultiWriter(os.Stderr, f), lvl)
	return nil
}

// Configure replaces the output and level. Tests use it to capture output.
func Configure(w io.Writer, lvl string) {
	level.Set(ParseLevel(lvl))
	mu.Lock()
	logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	mu.Unlock()
}

// Close flushes and closes the log file, if any.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

// Logger returns the underlying structured logger.
func Logger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// With returns a logger carrying a subsystem attribute.
func With(subsystem string) *slog.Logger {
	return Logger().With("subsystem", subsystem)
}

func Debugf(format string, args ...any) { Logger().Debug(fmt.Sprintf(format, args...)) }
func Infof(format string, args ...any)  { Logger().Info(fmt.Sprintf(format, args...)) }
func Warnf(format string, args ...any)  { Logger().Warn(fmt.Sprintf(format, args...)) }
func Errorf(format string, args ...any) { Logger().Error(fmt.Sprintf(format, args...)) }
