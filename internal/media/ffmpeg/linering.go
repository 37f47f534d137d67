// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ffmpeg

import (
	"bytes"
	"sync"
)

// maxPartial bounds an unterminated line held between writes.
const maxPartial = 4096

// LineRing is a thread-safe ring buffer for capturing the last N lines of log output.
// It implements io.Writer and stitches lines split across writes.
type LineRing struct {
	mu      sync.Mutex
	lines   []string
	head    int
	count   int
	partial bytes.Buffer
}

// NewLineRing creates a LineRing with the specified capacity.
func NewLineRing(capacity int) *LineRing {
	if capacity < 1 {
		capacity = 50
	}
	return &LineRing{lines: make([]string, capacity)}
}

// Write implements io.Writer.
func (r *LineRing) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := p
	for len(data) > 0 {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			if r.partial.Len()+len(data) > maxPartial {
				r.partial.Reset()
			}
			r.partial.Write(data)
			break
		}
		r.partial.Write(data[:i])
		r.push(r.partial.String())
		r.partial.Reset()
		data = data[i+1:]
	}
	return len(p), nil
}

// Flush moves an unterminated trailing line into the ring.
func (r *LineRing) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.partial.Len() > 0 {
		r.push(r.partial.String())
		r.partial.Reset()
	}
}

func (r *LineRing) push(line string) {
	line = string(bytes.TrimRight([]byte(line), "\r "))
	if line == "" {
		return
	}
	r.lines[r.head] = line
	r.head = (r.head + 1) % len(r.lines)
	if r.count < len(r.lines) {
		r.count++
	}
}

// LastN returns the last N lines in chronological order.
func (r *LineRing) LastN(n int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n > r.count {
		n = r.count
	}
	out := make([]string, 0, n)
	size := len(r.lines)
	for i := n; i > 0; i-- {
		out = append(out, r.lines[(r.head-i+size)%size])
	}
	return out
}
