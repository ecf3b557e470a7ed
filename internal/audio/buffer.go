package audio

import (
	"sync"
)

// RingBuffer keeps the most recent bytes written to it. When full, new
// writes overwrite the oldest data. It holds microphone audio while an
// upstream recognizer reconnects.
type RingBuffer struct {
	buffer  []byte
	size    int
	start   int
	length  int
	dropped int64
	mu      sync.Mutex
}

// NewRingBuffer creates a new ring buffer holding at most size bytes
func NewRingBuffer(size int) *RingBuffer {
	if size < 1 {
		size = 1
	}
	return &RingBuffer{
		buffer: make([]byte, size),
		size:   size,
	}
}

// Write appends data, evicting the oldest bytes when the buffer is full.
// It always accepts the whole slice and returns len(data).
func (rb *RingBuffer) Write(data []byte) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	n := len(data)
	if n >= rb.size {
		// Only the tail fits
		rb.dropped += int64(rb.length + n - rb.size)
		copy(rb.buffer, data[n-rb.size:])
		rb.start = 0
		rb.length = rb.size
		return n
	}

	if overflow := rb.length + n - rb.size; overflow > 0 {
		rb.start = (rb.start + overflow) % rb.size
		rb.length -= overflow
		rb.dropped += int64(overflow)
	}

	end := (rb.start + rb.length) % rb.size
	first := copy(rb.buffer[end:], data)
	copy(rb.buffer, data[first:])
	rb.length += n
	return n
}

// Drain returns the buffered bytes oldest first and empties the buffer
func (rb *RingBuffer) Drain() []byte {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	out := make([]byte, rb.length)
	first := copy(out, rb.buffer[rb.start:min(rb.start+rb.length, rb.size)])
	copy(out[first:], rb.buffer[:rb.length-first])

	rb.start = 0
	rb.length = 0
	return out
}

// Available returns the number of buffered bytes
func (rb *RingBuffer) Available() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.length
}

// Dropped returns how many bytes were evicted since creation or the last Clear
func (rb *RingBuffer) Dropped() int64 {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.dropped
}

// Clear empties the buffer
func (rb *RingBuffer) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.start = 0
	rb.length = 0
	rb.dropped = 0
}

// IsEmpty returns true if the buffer is empty
func (rb *RingBuffer) IsEmpty() bool {
	return rb.Available() == 0
}

// IsFull returns true if the next write will evict data
func (rb *RingBuffer) IsFull() bool {
	return rb.Available() == rb.size
}
