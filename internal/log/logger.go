// Package log holds the process-wide debug log and the journal of executed
// console lines.
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"sync"
)

const timeLayout = "2006/01/02 15:04:05.000000"

// Logger is one debug log destination. Only file-backed loggers own their
// writer.
type Logger struct {
	logger *slog.Logger
	file   *os.File
}

var (
	mu      sync.RWMutex
	current = &Logger{logger: slog.New(newHandler(os.Stdout, false))}

	journalMu   sync.Mutex
	journalPath = "commands.log"
)

// newHandler builds the text handler used for every destination. Files get a
// fixed-width timestamp so lines from separate runs sort.
func newHandler(w io.Writer, stampTime bool) slog.Handler {
	opts := &slog.HandlerOptions{Level: slog.LevelDebug}
	if stampTime {
		opts.ReplaceAttr = func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(a.Value.Time().Format(timeLayout))
			}
			return a
		}
	}
	return slog.NewTextHandler(w, opts)
}

// NewLogger opens filename for appending and logs into it
func NewLogger(filename string) (*Logger, error) {
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return &Logger{logger: slog.New(newHandler(file, true)), file: file}, nil
}

func (l *Logger) close() {
	if l.file != nil {
		l.file.Close()
	}
}

// SetFileOutput switches the debug log to filename. The previous file, if
// any, is closed.
func SetFileOutput(filename string) error {
	next, err := NewLogger(filename)
	if err != nil {
		return err
	}

	mu.Lock()
	prev := current
	current = next
	mu.Unlock()

	prev.close()
	return nil
}

// Close releases the log file. Later messages are dropped until the next
// SetFileOutput.
func Close() {
	mu.Lock()
	prev := current
	current = &Logger{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	mu.Unlock()

	prev.close()
}

func emit(level slog.Level, msg string, args []any) {
	mu.RLock()
	l := current.logger
	mu.RUnlock()
	l.Log(context.Background(), level, msg, args...)
}

func Debug(msg string, args ...any) { emit(slog.LevelDebug, msg, args) }

func Info(msg string, args ...any) { emit(slog.LevelInfo, msg, args) }

func Warn(msg string, args ...any) { emit(slog.LevelWarn, msg, args) }

func Error(msg string, args ...any) { emit(slog.LevelError, msg, args) }

// SetCommandJournal points the journal at filename. Empty turns it off.
func SetCommandJournal(filename string) {
	journalMu.Lock()
	defer journalMu.Unlock()
	journalPath = filename
}

// LogCommandLine records one executed console line as "<source> <line>",
// with control characters escaped so every entry stays on one line.
func LogCommandLine(source string, line string) {
	journalMu.Lock()
	defer journalMu.Unlock()
	if journalPath == "" {
		return
	}

	journal, err := os.OpenFile(journalPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		Error("Could not open command journal", "error", err)
		Debug("Command line", "source", source, "line", line)
		return
	}
	defer journal.Close()

	fmt.Fprintf(journal, "%s %s\n", source, escapeLine(line))
}

func escapeLine(line string) string {
	quoted := strconv.Quote(line)
	return quoted[1 : len(quoted)-1]
}
