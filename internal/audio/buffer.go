package audio

import (
	"sync"
)

// TailBuffer is a thread-safe ring buffer that keeps the last size bytes
// written to it. It bounds memory when capturing a child process's stderr.
type TailBuffer struct {
	buffer []byte
	size   int
	write  int
	full   bool
	mu     sync.Mutex
}

// NewTailBuffer creates a new tail buffer with the specified size
func NewTailBuffer(size int) *TailBuffer {
	if size < 1 {
		size = 1
	}
	return &TailBuffer{
		buffer: make([]byte, size),
		size:   size,
	}
}

// Write appends data, overwriting the oldest bytes once the buffer is full.
// It always reports len(data) so it can be used as an io.Writer.
func (tb *TailBuffer) Write(data []byte) (int, error) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	n := len(data)
	if n >= tb.size {
		copy(tb.buffer, data[n-tb.size:])
		tb.write = 0
		tb.full = true
		return n, nil
	}

	first := copy(tb.buffer[tb.write:], data)
	if first < n {
		copy(tb.buffer, data[first:])
		tb.full = true
	}
	next := tb.write + n
	if next >= tb.size {
		tb.full = true
	}
	tb.write = next % tb.size
	return n, nil
}

// Len returns the number of bytes held
func (tb *TailBuffer) Len() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	if tb.full {
		return tb.size
	}
	return tb.write
}

// Bytes returns a copy of the held bytes, oldest first
func (tb *TailBuffer) Bytes() []byte {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	if !tb.full {
		return append([]byte(nil), tb.buffer[:tb.write]...)
	}
	out := make([]byte, 0, tb.size)
	out = append(out, tb.buffer[tb.write:]...)
	return append(out, tb.buffer[:tb.write]...)
}

// String returns the held bytes as a string
func (tb *TailBuffer) String() string {
	return string(tb.Bytes())
}

// Reset empties the buffer
func (tb *TailBuffer) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.write = 0
	tb.full = false
}
