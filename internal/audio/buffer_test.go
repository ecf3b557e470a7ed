package audio

import (
	"bytes"
	"testing"
)

func TestRingBuffer_Write(t *testing.T) {
	rb := NewRingBuffer(10)

	written := rb.Write([]byte{1, 2, 3, 4, 5})
	if written != 5 {
		t.Errorf("Expected to write 5 bytes, got %d", written)
	}
	if rb.Available() != 5 {
		t.Errorf("Expected available 5, got %d", rb.Available())
	}

	rb.Write([]byte{6, 7, 8})
	if rb.Available() != 8 {
		t.Errorf("Expected available 8, got %d", rb.Available())
	}
}

func TestRingBuffer_OverwritesOldest(t *testing.T) {
	rb := NewRingBuffer(5)

	rb.Write([]byte{1, 2, 3, 4})
	if rb.IsFull() {
		t.Error("Expected buffer not to be full with 4 of 5 bytes")
	}

	rb.Write([]byte{5, 6, 7})
	if !rb.IsFull() {
		t.Error("Expected buffer to be full")
	}
	if rb.Dropped() != 2 {
		t.Errorf("Expected 2 dropped bytes, got %d", rb.Dropped())
	}

	got := rb.Drain()
	want := []byte{3, 4, 5, 6, 7}
	if !bytes.Equal(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestRingBuffer_WriteLargerThanCapacity(t *testing.T) {
	rb := NewRingBuffer(4)
	rb.Write([]byte{9})

	rb.Write([]byte{1, 2, 3, 4, 5, 6})

	got := rb.Drain()
	if !bytes.Equal(got, []byte{3, 4, 5, 6}) {
		t.Errorf("Expected the newest 4 bytes, got %v", got)
	}
	if rb.Dropped() != 3 {
		t.Errorf("Expected 3 dropped bytes, got %d", rb.Dropped())
	}
}

func TestRingBuffer_DrainWrapsAround(t *testing.T) {
	rb := NewRingBuffer(6)

	rb.Write([]byte{1, 2, 3, 4, 5})
	rb.Write([]byte{6, 7, 8})

	got := rb.Drain()
	if !bytes.Equal(got, []byte{3, 4, 5, 6, 7, 8}) {
		t.Errorf("Expected [3 4 5 6 7 8], got %v", got)
	}
	if !rb.IsEmpty() {
		t.Error("Expected buffer to be empty after Drain")
	}
}

func TestRingBuffer_DrainEmpty(t *testing.T) {
	rb := NewRingBuffer(10)

	if !rb.IsEmpty() {
		t.Error("Expected buffer to be empty initially")
	}
	if got := rb.Drain(); len(got) != 0 {
		t.Errorf("Expected no bytes, got %v", got)
	}
}

func TestRingBuffer_Clear(t *testing.T) {
	rb := NewRingBuffer(3)
	rb.Write([]byte{1, 2, 3, 4})

	rb.Clear()
	if !rb.IsEmpty() {
		t.Error("Expected buffer to be empty after clear")
	}
	if rb.Dropped() != 0 {
		t.Errorf("Expected dropped counter reset, got %d", rb.Dropped())
	}
}
