// Package engine implements the AudioEngine: the boundary between the
// sequencer's time-ordered event stream and the realtime backend
// callback. It owns the backend client, the registered output ports,
// the TimeHeap, the SPSC ring buffer, and the pump goroutine that moves
// messages from one to the other.
//
// Grounded on the teacher's controller.go send path (a single owned
// client plus registered ports) generalized from Launchpad LED/note
// output into the scheduling pipeline spec.md §4.2 describes; the pump
// loop and process callback are new, built to that section's algorithm
// with no direct teacher analogue since the teacher had no queued,
// time-ordered scheduling of its own.
package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"texttracker/internal/backend"
	"texttracker/internal/midimsg"
	"texttracker/internal/timeheap"
	"texttracker/internal/tracklog"
)

// DefaultPumpLookahead is the horizon, in frames, within which the pump
// moves heap entries into the ring buffer ahead of their due time, used
// when New is given a non-positive lookahead.
const DefaultPumpLookahead = 100

// PumpSleep is the interval the pump goroutine sleeps between passes
// when it finds nothing within the lookahead window.
const PumpSleep = time.Millisecond

// port is one registered output: its backend handle, short name, and
// the channel last assigned to it by a "port" directive (0 until set).
type port struct {
	handle  midimsg.Port
	name    string
	channel uint8
}

// Engine is the AudioEngine of spec.md §4.2.
type Engine struct {
	backend backend.Backend

	mu    sync.Mutex
	ports []port // index 0 is the default port

	heap *timeheap.Heap
	ring *backend.Ring

	pumpLookahead int64
	sampleRate    int

	playing  atomic.Bool
	pumpDone chan struct{}

	curPortHandle midimsg.Port
	curPortBuf    backend.PortBuffer
}

// New constructs an Engine around the given backend, pipeline
// capacities, and pump lookahead in frames. A non-positive lookahead
// falls back to DefaultPumpLookahead. Init must be called before use.
func New(be backend.Backend, heapCapacity, ringCapacity, pumpLookahead int) *Engine {
	if pumpLookahead <= 0 {
		pumpLookahead = DefaultPumpLookahead
	}
	return &Engine{
		backend:       be,
		heap:          timeheap.New(heapCapacity),
		ring:          backend.NewRing(ringCapacity),
		pumpLookahead: int64(pumpLookahead),
	}
}

// Init opens the client, registers the input and default ports, reads
// the backend's sample rate, installs the process callback, activates
// the client, and spawns the pump goroutine.
func (e *Engine) Init(clientName string) error {
	if err := e.backend.Open(clientName); err != nil {
		return errors.Wrap(err, "engine: open backend")
	}

	if _, err := e.RegisterOutputPort("default"); err != nil {
		return errors.Wrap(err, "engine: register default port")
	}
	if _, err := e.RegisterOutputPort("input"); err != nil {
		return errors.Wrap(err, "engine: register input port")
	}

	e.sampleRate = e.backend.SampleRate()

	e.backend.SetProcessCallback(e.processCallback)

	if err := e.backend.Activate(); err != nil {
		return errors.Wrap(err, "engine: activate backend")
	}

	e.playing.Store(true)
	e.pumpDone = make(chan struct{})
	go e.pump()

	return nil
}

// RegisterOutputPort registers name if it is not already registered,
// idempotent by short name.
func (e *Engine) RegisterOutputPort(name string) (midimsg.Port, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, p := range e.ports {
		if p.name == name {
			return p.handle, nil
		}
	}

	handle, err := e.backend.RegisterOutputPort(name)
	if err != nil {
		return nil, errors.Wrapf(err, "engine: register output port %q", name)
	}
	e.ports = append(e.ports, port{handle: handle, name: name})
	return handle, nil
}

// SetPortChannel records the channel a "port" directive assigned to
// name, so StopSounds can target the channel actually in use on that
// port rather than always channel 0. A no-op if name isn't registered.
func (e *Engine) SetPortChannel(name string, channel uint8) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range e.ports {
		if e.ports[i].name == name {
			e.ports[i].channel = channel
			return
		}
	}
}

// ConnectPort forwards to the backend. A failure is logged, not fatal,
// per spec.md §4.2.
func (e *Engine) ConnectPort(src, dst string) {
	if err := e.backend.ConnectPort(src, dst); err != nil {
		tracklog.Log("engine", "connect %s -> %s failed: %v", src, dst, err)
	}
}

// MsToFrames converts a millisecond duration to frames using integer
// arithmetic: ms * sample_rate / 1000.
func (e *Engine) MsToFrames(ms int64) int64 {
	return ms * int64(e.sampleRate) / 1000
}

// CurrentFrameTime returns the backend's current frame count.
func (e *Engine) CurrentFrameTime() int64 {
	return e.backend.CurrentFrameTime()
}

// Queue inserts a pre-built message into the heap. May block if the
// heap is full (QueueBackpressure); callers must not be on the
// realtime thread.
func (e *Engine) Queue(msg midimsg.Message) error {
	if err := e.heap.Insert(msg); err != nil {
		return errors.Wrap(err, "engine: queue")
	}
	return nil
}

// QueueBytes builds a message from raw status/data bytes and queues it.
func (e *Engine) QueueBytes(status, data1, data2 byte, length int, channel uint8, t int64, port midimsg.Port) error {
	return e.Queue(midimsg.New(status, data1, data2, length, channel, t, port))
}

// QueueRaw queues a message already carrying its time and port.
func (e *Engine) QueueRaw(data [3]byte, length int, t int64, port midimsg.Port) error {
	return e.Queue(midimsg.Message{Data: data, Len: length, Time: t, Port: port})
}

// HasPending reports whether the heap has any unqueued messages.
func (e *Engine) HasPending() bool {
	return e.heap.Count() > 0
}

// StopSounds writes one CC 0x7B (All Sound Off) per registered output
// port directly into the ring buffer at the current frame time,
// bypassing the heap so it takes effect on the very next cycle, per
// spec.md §8 property 8 ("at most output_ports.len() more messages").
// Each message targets the channel SetPortChannel last recorded for
// that port (0 if no "port" directive ever set one), rather than
// hardcoding channel 0 the way the original's JackEngine::stopSounds
// does, so a pattern that routed a port onto a non-zero channel is
// still silenced.
func (e *Engine) StopSounds() {
	e.mu.Lock()
	ports := make([]port, len(e.ports))
	copy(ports, e.ports)
	e.mu.Unlock()

	now := e.backend.CurrentFrameTime()
	for _, p := range ports {
		msg := midimsg.AllSoundOffMsg(p.channel, now, p.handle)
		if !e.ring.Write(msg) {
			tracklog.Log("engine", "ring overflow writing all-sound-off for port %q", p.name)
		}
	}
}

// Shutdown stops the pump goroutine, shuts down the heap so any
// blocked callers unblock, and closes the backend client.
func (e *Engine) Shutdown() {
	e.playing.Store(false)
	e.heap.Shutdown()
	if e.pumpDone != nil {
		<-e.pumpDone
	}
	e.backend.Shutdown()
}

// pump moves heap entries into the ring buffer once their due time
// falls within pumpLookahead frames of the current frame time.
func (e *Engine) pump() {
	defer close(e.pumpDone)

	for e.playing.Load() {
		moved := false
		for {
			msg, err := e.heap.PeekMin()
			if err != nil {
				break
			}
			if msg.Time > e.backend.CurrentFrameTime()+e.pumpLookahead {
				break
			}
			msg, err = e.heap.PopMin()
			if err != nil {
				break
			}
			if !e.ring.Write(msg) {
				tracklog.LogEvery(50, "engine", "ring overflow, dropping message for port at time %d", msg.Time)
			}
			moved = true
		}
		if !moved {
			time.Sleep(PumpSleep)
		}
	}
}

// processCallback drains the ring buffer into per-port event buffers
// for one process cycle. Runs on the realtime thread. It does not
// allocate while delivering messages, but it does take the engine's
// port-list mutex once per cycle to snapshot the port list, the
// backend's LastFrameTime/PortBuffer may take the backend's own lock,
// and its error paths log through tracklog, which takes a mutex.
func (e *Engine) processCallback(nframes int) int {
	lastFrame := e.backend.LastFrameTime()

	e.mu.Lock()
	ports := e.ports
	e.mu.Unlock()

	for _, p := range ports {
		buf, err := e.backend.PortBuffer(p.handle, nframes)
		if err != nil {
			tracklog.Log("engine", "clear port %q buffer: %v", p.name, err)
			return -1
		}
		buf.Clear()
	}

	e.curPortHandle = nil
	e.curPortBuf = nil

	for {
		msg, ok := e.ring.Peek()
		if !ok {
			break
		}

		t := msg.Time + int64(nframes) - lastFrame
		if t >= int64(nframes) {
			break
		}
		if t < 0 {
			t = 0
		}

		if msg.Port != e.curPortHandle || e.curPortBuf == nil {
			buf, err := e.backend.PortBuffer(msg.Port, nframes)
			if err != nil {
				tracklog.Log("engine", "acquire port buffer: %v", err)
				return -1
			}
			e.curPortHandle = msg.Port
			e.curPortBuf = buf
		}

		dst, err := e.curPortBuf.Reserve(int(t), msg.Len)
		if err != nil {
			tracklog.LogEvery(20, "engine", "buffer reserve failed at offset %d: %v", t, err)
			break
		}
		copy(dst, msg.Data[:msg.Len])
		e.ring.Advance()
	}

	return 0
}
