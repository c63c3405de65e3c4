package vfs

import (
	"fmt"
	"sync"
	"time"
)

// consoleCapacity bounds the per-page console ring.
const consoleCapacity = 1000

// ConsoleEntry is one captured console call.
type ConsoleEntry struct {
	Level     string
	Timestamp int64 // epoch milliseconds
	Message   string
}

// ConsoleBuffer is a ring of the most recent console entries for one page.
// The version counts every entry ever appended, so it keeps moving after
// the ring starts evicting and stale reads stay detectable.
type ConsoleBuffer struct {
	mu      sync.Mutex
	entries []ConsoleEntry
	total   int64
}

// NewConsoleBuffer returns an empty buffer.
func NewConsoleBuffer() *ConsoleBuffer {
	return &ConsoleBuffer{}
}

// Append adds an entry stamped now, evicting the oldest when full.
func (b *ConsoleBuffer) Append(level, message string) {
	b.AppendAt(level, message, time.Now().UnixMilli())
}

// AppendAt adds an entry with an explicit timestamp, used when the host
// reports when the console call actually happened.
func (b *ConsoleBuffer) AppendAt(level, message string, ts int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, ConsoleEntry{
		Level:     level,
		Timestamp: ts,
		Message:   message,
	})
	if len(b.entries) > consoleCapacity {
		b.entries = b.entries[len(b.entries)-consoleCapacity:]
	}
	b.total++
}

// Version returns the total number of entries ever appended.
func (b *ConsoleBuffer) Version() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total
}

// Len returns the number of retained entries.
func (b *ConsoleBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Format renders the retained entries one per line.
func (b *ConsoleBuffer) Format() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := ""
	for i, e := range b.entries {
		if i > 0 {
			out += "\n"
		}
		ts := time.UnixMilli(e.Timestamp).UTC().Format("2006-01-02T15:04:05.000Z")
		out += fmt.Sprintf("[%s] [%s] %s", ts, e.Level, e.Message)
	}
	return out
}

// Clear drops retained entries without rewinding the version.
func (b *ConsoleBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = nil
}
