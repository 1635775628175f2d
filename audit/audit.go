package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TimeLayout is the timestamp layout of the line format.
const TimeLayout = "2006-01-02 15:04:05"

// Entry is one audit record.
type Entry struct {
	ID        string
	Timestamp time.Time
	Component string
	Agent     string
	Task      string
	Result    string
}

// NewEntry creates an entry stamped with a fresh ID and the current time.
func NewEntry(component, agent, task, result string) Entry {
	return Entry{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Component: component,
		Agent:     agent,
		Task:      task,
		Result:    result,
	}
}

var lineEscaper = strings.NewReplacer("\r\n", `\n`, "\n", `\n`, "\r", `\n`)

// Line renders the entry in the single-line log format. Embedded newlines
// are escaped so one task always occupies one line.
func (e Entry) Line() string {
	return fmt.Sprintf("%s - %s handled task '%s' with result: %s",
		e.Timestamp.Format(TimeLayout),
		lineEscaper.Replace(e.Agent),
		lineEscaper.Replace(e.Task),
		lineEscaper.Replace(e.Result),
	)
}

// Sink receives audit entries.
type Sink interface {
	Append(ctx context.Context, e Entry) error
}

// NoOpSink discards entries.
type NoOpSink struct{}

// Append implements Sink.
func (NoOpSink) Append(context.Context, Entry) error { return nil }

// MemorySink keeps entries in memory.
type MemorySink struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMemorySink creates an empty memory sink.
func NewMemorySink() *MemorySink { return &MemorySink{} }

// Append implements Sink.
func (m *MemorySink) Append(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

// Entries returns a copy of the recorded entries in append order.
func (m *MemorySink) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.entries...)
}

// MultiSink appends to every sink. All sinks are attempted; failures are joined.
type MultiSink []Sink

// Append implements Sink.
func (ms MultiSink) Append(ctx context.Context, e Entry) error {
	var errs []error
	for _, s := range ms {
		if s == nil {
			continue
		}
		if err := s.Append(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ Sink = NoOpSink{}
	_ Sink = (*MemorySink)(nil)
	_ Sink = MultiSink(nil)
)
