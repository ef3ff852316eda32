package backend

import (
	"sync/atomic"

	"texttracker/internal/midimsg"
)

// Ring is a fixed-capacity, lock-free single-producer/single-consumer
// queue of midimsg.Message. The engine's pump goroutine calls Write, and
// so does Engine.StopSounds from its caller's goroutine; the ring does
// not synchronise two concurrent writers. Only the realtime callback
// calls Peek/Advance. Capacity must be strictly greater
// than one message, per the sizing invariant.
//
// Grounded on vsariola-sointu/tracker/scope.go's generic RingBuffer[T]
// (cursor plus fixed backing array), reworked from an overwrite-on-wrap
// scope buffer into a capacity-checked, non-overwriting SPSC queue: the
// writer here must never clobber an unread slot, so Write reports
// overflow instead of wrapping over it.
type Ring struct {
	buf  []midimsg.Message
	cap  int64
	head atomic.Int64 // next slot the reader will read
	tail atomic.Int64 // next slot the writer will write
}

// NewRing returns a Ring holding at most capacity messages.
func NewRing(capacity int) *Ring {
	if capacity < 2 {
		capacity = 2
	}
	return &Ring{
		buf: make([]midimsg.Message, capacity),
		cap: int64(capacity),
	}
}

// Write attempts to enqueue msg. It returns false if the ring is full
// (RingOverflow); the caller is responsible for logging and dropping.
func (r *Ring) Write(msg midimsg.Message) bool {
	head := r.head.Load()
	tail := r.tail.Load()
	if tail-head >= r.cap {
		return false
	}
	r.buf[tail%r.cap] = msg
	r.tail.Store(tail + 1)
	return true
}

// Peek returns the next unread message without consuming it. Safe to call
// from the realtime thread: no allocation, no locking.
func (r *Ring) Peek() (midimsg.Message, bool) {
	head := r.head.Load()
	tail := r.tail.Load()
	if head >= tail {
		return midimsg.Message{}, false
	}
	return r.buf[head%r.cap], true
}

// Advance consumes the message returned by the most recent Peek.
func (r *Ring) Advance() {
	r.head.Add(1)
}

// Len returns a non-blocking snapshot of the queue depth. Used only for
// diagnostics/tests, never from the realtime thread's hot path.
func (r *Ring) Len() int {
	return int(r.tail.Load() - r.head.Load())
}
