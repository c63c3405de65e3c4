package vfs

import (
	"fmt"
	"strings"
	"testing"
)

func TestConsoleBufferFormatAndVersion(t *testing.T) {
	b := NewConsoleBuffer()
	if b.Version() != 0 || b.Format() != "" {
		t.Fatalf("empty buffer: version=%d format=%q", b.Version(), b.Format())
	}

	b.Append("log", "checkout loaded")
	b.Append("error", "payment failed")

	if got := b.Version(); got != 2 {
		t.Errorf("Version() = %d, want 2", got)
	}
	out := b.Format()
	lines := strings.Split(out, "\n")
	if len(lines) != 2 {
		t.Fatalf("Format() = %q, want 2 lines", out)
	}
	if !strings.Contains(lines[0], "[log] checkout loaded") {
		t.Errorf("line 0 = %q", lines[0])
	}
	if !strings.Contains(lines[1], "[error] payment failed") {
		t.Errorf("line 1 = %q", lines[1])
	}
}

func TestConsoleBufferEvictsButVersionKeepsCounting(t *testing.T) {
	b := NewConsoleBuffer()
	for i := 0; i < consoleCapacity+50; i++ {
		b.Append("log", fmt.Sprintf("entry %d", i))
	}

	if got := b.Len(); got != consoleCapacity {
		t.Errorf("Len() = %d, want %d", got, consoleCapacity)
	}
	if got := b.Version(); got != int64(consoleCapacity+50) {
		t.Errorf("Version() = %d, want %d", got, consoleCapacity+50)
	}
	lines := strings.Split(b.Format(), "\n")
	if !strings.Contains(lines[0], "entry 50") {
		t.Errorf("first retained line = %q, want entry 50", lines[0])
	}
	if !strings.Contains(lines[len(lines)-1], fmt.Sprintf("entry %d", consoleCapacity+49)) {
		t.Errorf("last retained line = %q", lines[len(lines)-1])
	}
}

func TestConsoleBufferClearKeepsVersion(t *testing.T) {
	b := NewConsoleBuffer()
	b.Append("log", "x")
	b.Clear()
	if b.Len() != 0 {
		t.Errorf("Len() after Clear = %d", b.Len())
	}
	if b.Version() != 1 {
		t.Errorf("Version() after Clear = %d, want 1", b.Version())
	}
}
