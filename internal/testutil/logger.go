package testutil

import (
	"sync"

	"github.com/hupe1980/taskmesh/logging"
)

// LogRecord is a single message captured by RecordingLogger.
type LogRecord struct {
	Level string
	Msg   string
	Args  []any
}

// RecordingLogger captures log calls in memory. Safe for concurrent use.
type RecordingLogger struct {
	mu      sync.Mutex
	records []LogRecord
}

var _ logging.Logger = (*RecordingLogger)(nil)

// NewRecordingLogger creates an empty recording logger.
func NewRecordingLogger() *RecordingLogger { return &RecordingLogger{} }

func (l *RecordingLogger) add(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, LogRecord{Level: level, Msg: msg, Args: append([]any(nil), args...)})
}

// Debug records a debug message.
func (l *RecordingLogger) Debug(msg string, args ...any) { l.add("DEBUG", msg, args) }

// Info records an informational message.
func (l *RecordingLogger) Info(msg string, args ...any) { l.add("INFO", msg, args) }

// Warn records a warning message.
func (l *RecordingLogger) Warn(msg string, args ...any) { l.add("WARN", msg, args) }

// Error records an error message.
func (l *RecordingLogger) Error(msg string, args ...any) { l.add("ERROR", msg, args) }

// Records returns a copy of everything logged so far.
func (l *RecordingLogger) Records() []LogRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]LogRecord(nil), l.records...)
}

// Messages returns the messages logged at level, in order.
func (l *RecordingLogger) Messages(level string) []string {
	var out []string
	for _, r := range l.Records() {
		if r.Level == level {
			out = append(out, r.Msg)
		}
	}
	return out
}
