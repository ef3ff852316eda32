// Package timeheap implements the bounded, thread-safe min-heap of
// outbound MIDI messages that sits between the sequencer goroutine and
// the engine's pump goroutine.
//
// Ordering is (time, port) lexicographic via midimsg.Less. Capacity is
// fixed at construction; insert blocks while full, pop/peek block while
// empty. The sift-up/sift-down shape follows the comparison-driven
// container/heap idiom seen in rogpeppe-misc/drum/sequencer/sequencer.go,
// hand-rolled here because container/heap's package funcs have no notion
// of blocking on capacity.
package timeheap

import (
	"sync"

	"github.com/pkg/errors"

	"texttracker/internal/midimsg"
)

// ErrShutdown is returned by Insert/PopMin/PeekMin once the heap has been
// shut down and woken waiters find nothing left to do.
var ErrShutdown = errors.New("timeheap: shut down")

// Heap is a fixed-capacity binary min-heap of midimsg.Message.
type Heap struct {
	mu       sync.Mutex
	notFull  *sync.Cond
	notEmpty *sync.Cond
	buf      []midimsg.Message
	capacity int
	shutdown bool
}

// New returns a Heap that holds at most capacity-1 messages at once:
// Insert blocks once size+1 reaches capacity.
func New(capacity int) *Heap {
	if capacity < 1 {
		capacity = 1
	}
	h := &Heap{
		buf:      make([]midimsg.Message, 0, capacity),
		capacity: capacity,
	}
	h.notFull = sync.NewCond(&h.mu)
	h.notEmpty = sync.NewCond(&h.mu)
	return h
}

// Insert blocks while the heap is full, then inserts msg and sifts it up.
// Returns ErrShutdown if the heap is shut down before or while waiting.
func (h *Heap) Insert(msg midimsg.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for len(h.buf)+1 >= h.capacity && !h.shutdown {
		h.notFull.Wait()
	}
	if h.shutdown {
		return ErrShutdown
	}

	h.buf = append(h.buf, msg)
	h.siftUp(len(h.buf) - 1)
	h.notEmpty.Broadcast()
	return nil
}

// PopMin blocks while the heap is empty, then removes and returns the
// minimum element. Returns ErrShutdown if shut down while waiting.
func (h *Heap) PopMin() (midimsg.Message, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for len(h.buf) == 0 && !h.shutdown {
		h.notEmpty.Wait()
	}
	if len(h.buf) == 0 {
		return midimsg.Message{}, ErrShutdown
	}

	min := h.buf[0]
	last := len(h.buf) - 1
	h.buf[0] = h.buf[last]
	h.buf = h.buf[:last]
	if len(h.buf) > 0 {
		h.siftDown(0)
	}
	h.notFull.Broadcast()
	return min, nil
}

// PeekMin blocks while the heap is empty, then returns a copy of the
// minimum element without removing it. Returns ErrShutdown if shut down
// while waiting.
func (h *Heap) PeekMin() (midimsg.Message, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for len(h.buf) == 0 && !h.shutdown {
		h.notEmpty.Wait()
	}
	if len(h.buf) == 0 {
		return midimsg.Message{}, ErrShutdown
	}
	return h.buf[0], nil
}

// Count returns a non-blocking snapshot of the current size.
func (h *Heap) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.buf)
}

// Shutdown wakes every waiter; subsequent and in-flight blocking calls
// return ErrShutdown once the heap has drained (PopMin/PeekMin) or
// immediately (Insert).
func (h *Heap) Shutdown() {
	h.mu.Lock()
	h.shutdown = true
	h.mu.Unlock()
	h.notEmpty.Broadcast()
	h.notFull.Broadcast()
}

func (h *Heap) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !(h.buf[i].Time < h.buf[parent].Time) {
			break
		}
		h.buf[i], h.buf[parent] = h.buf[parent], h.buf[i]
		i = parent
	}
}

// imin returns the index of the in-range child with the smaller
// (time, port) key, or -1 if neither child is in range.
func (h *Heap) imin(i, j int) int {
	n := len(h.buf)
	iok, jok := i < n, j < n
	switch {
	case !iok && !jok:
		return -1
	case !iok:
		return j
	case !jok:
		return i
	case midimsg.Less(h.buf[j], h.buf[i]):
		return j
	default:
		return i
	}
}

func (h *Heap) siftDown(i int) {
	for {
		left, right := 2*i+1, 2*i+2
		child := h.imin(left, right)
		if child < 0 {
			return
		}
		if !midimsg.Less(h.buf[child], h.buf[i]) {
			return
		}
		h.buf[i], h.buf[child] = h.buf[child], h.buf[i]
		i = child
	}
}
