// Package log provides a leveled, category-tagged file logger.
//
// The logger writes to a single file so diagnostics never corrupt the
// terminal UI. Call Init once at startup; the zero state before Init
// discards everything, so library code can log unconditionally.
package log

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level controls which entries are written.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	}
	return "UNKNOWN"
}

// Category tags an entry with the subsystem that produced it.
type Category string

const (
	CatUI      Category = "ui"
	CatStore   Category = "store"
	CatSession Category = "session"
	CatEditor  Category = "editor"
	CatConfig  Category = "config"
)

var (
	mu       sync.Mutex
	out      *os.File
	minLevel = LevelDebug
)

// Init opens the log file at path, creating parent directories as needed.
// Returns a cleanup function that flushes and closes the file.
func Init(path string) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	mu.Lock()
	out = f
	mu.Unlock()

	return func() {
		mu.Lock()
		defer mu.Unlock()
		if out != nil {
			_ = out.Close()
			out = nil
		}
	}, nil
}

// SetLevel sets the minimum level written to the log file.
func SetLevel(l Level) {
	mu.Lock()
	minLevel = l
	mu.Unlock()
}

// Debug writes a debug entry with optional key-value pairs.
func Debug(cat Category, msg string, kv ...any) { write(LevelDebug, cat, msg, kv...) }

// Info writes an info entry with optional key-value pairs.
func Info(cat Category, msg string, kv ...any) { write(LevelInfo, cat, msg, kv...) }

// Warn writes a warning entry with optional key-value pairs.
func Warn(cat Category, msg string, kv ...any) { write(LevelWarn, cat, msg, kv...) }

// Error writes an error entry with optional key-value pairs.
func Error(cat Category, msg string, kv ...any) { write(LevelError, cat, msg, kv...) }

func write(level Level, cat Category, msg string, kv ...any) {
	mu.Lock()
	defer mu.Unlock()
	if out == nil || level < minLevel {
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] [%s] %s", time.Now().Format("2006-01-02 15:04:05.000"), level, cat, msg)
	for i := 0; i+1 < len(kv); i += 2 {
		fmt.Fprintf(&b, " %v=%v", kv[i], kv[i+1])
	}
	b.WriteByte('\n')
	_, _ = out.WriteString(b.String())
}
