package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/decred/slog"
	"github.com/jrick/logrotate/rotator"
)

// Config controls where log output goes and how verbose it is.
type Config struct {
	// LogFile is the path of the rotating log file. Empty disables file
	// logging and output goes to stderr only.
	LogFile string
	// DebugLevel is the level string applied to every subsystem logger,
	// e.g. "trace", "debug", "info", "warn", "error".
	DebugLevel string
	// MaxLogFiles is the number of rolled files kept around.
	MaxLogFiles int
}

// Backend hands out subsystem loggers that share a single output sink. It is
// safe for concurrent use.
type Backend struct {
	backend *slog.Backend
	level   slog.Level
	rotator *rotator.Rotator

	mu      sync.Mutex
	loggers map[string]slog.Logger
}

// logWriter duplicates writes to stderr and the file rotator.
type logWriter struct {
	r *rotator.Rotator
}

func (w *logWriter) Write(p []byte) (int, error) {
	os.Stderr.Write(p)
	if w.r != nil {
		return w.r.Write(p)
	}
	return len(p), nil
}

// NewBackend creates a logging backend from the given config.
func NewBackend(cfg Config) (*Backend, error) {
	level, ok := slog.LevelFromString(cfg.DebugLevel)
	if !ok {
		if cfg.DebugLevel == "" {
			level = slog.LevelInfo
		} else {
			return nil, fmt.Errorf("invalid debug level %q", cfg.DebugLevel)
		}
	}

	var r *rotator.Rotator
	if cfg.LogFile != "" {
		logDir := filepath.Dir(cfg.LogFile)
		if err := os.MkdirAll(logDir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %v", err)
		}
		maxRolls := cfg.MaxLogFiles
		if maxRolls == 0 {
			maxRolls = 5
		}
		var err error
		r, err = rotator.New(cfg.LogFile, 10*1024, false, maxRolls)
		if err != nil {
			return nil, fmt.Errorf("failed to create file rotator: %v", err)
		}
	}

	var w io.Writer = &logWriter{r: r}
	return &Backend{
		backend: slog.NewBackend(w),
		level:   level,
		rotator: r,
		loggers: make(map[string]slog.Logger),
	}, nil
}

// Logger returns the logger for the given subsystem tag, creating it on
// first use. Subsequent calls with the same tag return the same logger.
func (b *Backend) Logger(subsystem string) slog.Logger {
	b.mu.Lock()
	defer b.mu.Unlock()
	if l, ok := b.loggers[subsystem]; ok {
		return l
	}
	l := b.backend.Logger(subsystem)
	l.SetLevel(b.level)
	b.loggers[subsystem] = l
	return l
}

// Close flushes and closes the file rotator, if any.
func (b *Backend) Close() error {
	if b.rotator != nil {
		return b.rotator.Close()
	}
	return nil
}
