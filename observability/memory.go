package observability

import "sync"

// Entry is one message captured by a MemoryLogger.
type Entry struct {
	Level   string
	Message string
	Fields  map[string]any
}

// MemoryLogger keeps every message in memory. It is used by tests that
// assert on what a component reported.
type MemoryLogger struct {
	mu      *sync.Mutex
	entries *[]Entry
	base    []Field
}

func NewMemoryLogger() *MemoryLogger {
	return &MemoryLogger{mu: &sync.Mutex{}, entries: &[]Entry{}}
}

func (m *MemoryLogger) record(level, msg string, fields []Field) {
	data := make(map[string]any, len(m.base)+len(fields))
	for _, f := range m.base {
		data[f.Key()] = f.Value()
	}
	for _, f := range fields {
		data[f.Key()] = f.Value()
	}
	m.mu.Lock()
	*m.entries = append(*m.entries, Entry{Level: level, Message: msg, Fields: data})
	m.mu.Unlock()
}

func (m *MemoryLogger) Debug(msg string, fields ...Field) { m.record("debug", msg, fields) }
func (m *MemoryLogger) Info(msg string, fields ...Field)  { m.record("info", msg, fields) }
func (m *MemoryLogger) Warn(msg string, fields ...Field)  { m.record("warn", msg, fields) }
func (m *MemoryLogger) Error(msg string, fields ...Field) { m.record("error", msg, fields) }

// With returns a logger sharing the same entry buffer.
func (m *MemoryLogger) With(fields ...Field) Logger {
	base := append(append([]Field(nil), m.base...), fields...)
	return &MemoryLogger{mu: m.mu, entries: m.entries, base: base}
}

// Entries returns a copy of the captured messages.
func (m *MemoryLogger) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), *m.entries...)
}

// Count returns how many messages were logged at level.
func (m *MemoryLogger) Count(level string) int {
	n := 0
	for _, e := range m.Entries() {
		if e.Level == level {
			n++
		}
	}
	return n
}
