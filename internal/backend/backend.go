// Package backend captures the audio-backend contract spec.md §6 treats
// as an external collaborator: the small set of operations the engine
// needs from a JACK-or-equivalent low-latency audio-server client. This
// package defines that contract as a Go interface and ships one concrete
// implementation (rtmidi.go, over gitlab.com/gomidi/midi/v2) plus a
// deterministic mock (mock.go) used by the engine's own tests.
package backend

import (
	"github.com/pkg/errors"

	"texttracker/internal/midimsg"
)

// ErrBackendUnavailable is returned by Open when the underlying client
// cannot be opened at all.
var ErrBackendUnavailable = errors.New("backend: client unavailable")

// ErrActivationFailed is returned by Activate when the backend rejects
// the client.
var ErrActivationFailed = errors.New("backend: activation failed")

// ProcessFunc is the realtime callback contract: given the cycle length
// in frames, it must drain the ring buffer into port buffers without
// allocating, locking, or blocking, returning 0 on success or -1 only on
// an unrecoverable failure to acquire an output port buffer.
type ProcessFunc func(nframes int) int

// PortBuffer is one output port's per-cycle MIDI event buffer.
type PortBuffer interface {
	// Clear discards any events queued for this cycle.
	Clear()
	// Reserve allocates length bytes at the given frame offset within the
	// cycle and returns a slice to copy the message payload into. It
	// returns an error if the backend cannot reserve the space
	// (BufferReserveFailed).
	Reserve(offset, length int) ([]byte, error)
}

// Backend is the contract the engine needs from a JACK-or-equivalent
// realtime audio-server client. Non-goals per spec.md §1: the concrete
// backend library itself, signal handling, and process lifecycle beyond
// what Open/Activate/Shutdown expose.
type Backend interface {
	// Open opens the client under the given name. Returns
	// ErrBackendUnavailable if the client cannot be opened.
	Open(name string) error

	// RegisterOutputPort registers (or returns the existing handle for)
	// an output port with the given short name. Idempotent by name.
	RegisterOutputPort(name string) (midimsg.Port, error)

	// ConnectPort forwards a connection request to the backend. A
	// non-zero/failing status is the caller's to log; it is never fatal.
	ConnectPort(srcPort, dstName string) error

	// SampleRate returns the backend's sample rate in frames/second.
	SampleRate() int

	// BufferSize returns the number of frames in one process cycle.
	BufferSize() int

	// CurrentFrameTime returns the current frame count on the backend's
	// monotonic clock.
	CurrentFrameTime() int64

	// LastFrameTime returns the frame count at the start of the cycle
	// currently being processed (or the most recently completed one, if
	// called outside a cycle).
	LastFrameTime() int64

	// SetProcessCallback installs the realtime callback. Must be called
	// before Activate.
	SetProcessCallback(fn ProcessFunc)

	// PortBuffer returns the given port's buffer for the current cycle,
	// sized for nframes. A nil port means the default output port.
	PortBuffer(port midimsg.Port, nframes int) (PortBuffer, error)

	// Activate starts realtime processing. Returns ErrActivationFailed if
	// the backend rejects the client.
	Activate() error

	// Shutdown unregisters ports and closes the client.
	Shutdown()
}
