package logging

import (
	"bytes"
	"os"
	"sync"
)

// LineRing keeps the most recent N log lines in memory. It implements
// io.Writer for use behind slog; when the dashboard panics the ring is
// dumped to disk so the last minutes of poll activity are not lost with
// the rotated file still mid-write.
type LineRing struct {
	mu      sync.Mutex
	lines   [][]byte
	next    int
	full    bool
	partial []byte
}

// NewLineRing creates a ring holding up to n lines.
func NewLineRing(n int) *LineRing {
	if n <= 0 {
		n = 2000
	}
	return &LineRing{lines: make([][]byte, n)}
}

// Write implements io.Writer. Input is split on newlines; an incomplete
// trailing fragment is buffered until the next write completes it.
func (r *LineRing) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := p
	if len(r.partial) > 0 {
		data = append(r.partial, p...)
		r.partial = nil
	}

	for {
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			break
		}
		line := make([]byte, idx)
		copy(line, data[:idx])
		r.push(line)
		data = data[idx+1:]
	}
	if len(data) > 0 {
		r.partial = append([]byte(nil), data...)
	}
	return len(p), nil
}

func (r *LineRing) push(line []byte) {
	r.lines[r.next] = line
	r.next++
	if r.next == len(r.lines) {
		r.next = 0
		r.full = true
	}
}

// Snapshot returns the buffered lines, oldest first.
func (r *LineRing) Snapshot() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out [][]byte
	if r.full {
		out = append(out, r.lines[r.next:]...)
	}
	out = append(out, r.lines[:r.next]...)
	return out
}

// DumpToFile writes the ring contents to path, oldest line first.
func (r *LineRing) DumpToFile(path string) error {
	var buf bytes.Buffer
	for _, line := range r.Snapshot() {
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}
