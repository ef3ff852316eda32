package backend

import (
	"sync"

	"github.com/pkg/errors"

	"texttracker/internal/midimsg"
)

// mockPort is a comparable handle used by Mock; its identity (not its
// contents) is what midimsg.Less's port tiebreak keys off of.
type mockPort struct{ name string }

func (p *mockPort) String() string { return p.name }

// mockBuffer records reserved (offset, bytes) writes for one cycle so
// tests can assert on exactly what the callback delivered.
type mockBuffer struct {
	nframes int
	events  []MockEvent
	failAt  int // Reserve fails once len(events) reaches failAt; 0 = never
}

// MockEvent is one reserved write into a mockBuffer, captured for
// assertions in engine/callback tests.
type MockEvent struct {
	Offset int
	Data   []byte
}

func (b *mockBuffer) Clear() { b.events = b.events[:0] }

func (b *mockBuffer) Reserve(offset, length int) ([]byte, error) {
	if b.failAt > 0 && len(b.events) >= b.failAt {
		return nil, errors.New("mock: reserve failed")
	}
	data := make([]byte, length)
	b.events = append(b.events, MockEvent{Offset: offset, Data: data})
	return data, nil
}

// Mock is a deterministic Backend for tests: frame time only advances
// when the test calls AdvanceFrames or Cycle, and the "realtime callback"
// only runs when the test calls Cycle.
type Mock struct {
	mu          sync.Mutex
	sampleRate  int
	bufferSize  int
	frame       int64
	lastFrame   int64
	ports       map[string]*mockPort
	buffers     map[*mockPort]*mockBuffer
	defaultPort *mockPort
	callback    ProcessFunc
	connections []string
	activated   bool
}

// NewMock returns a Mock backend with the given sample rate and cycle
// length in frames.
func NewMock(sampleRate, bufferSize int) *Mock {
	return &Mock{
		sampleRate: sampleRate,
		bufferSize: bufferSize,
		ports:      make(map[string]*mockPort),
		buffers:    make(map[*mockPort]*mockBuffer),
	}
}

func (m *Mock) Open(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	dp, err := m.registerLocked("default")
	if err != nil {
		return err
	}
	m.defaultPort = dp
	_, err = m.registerLocked("input")
	return err
}

func (m *Mock) RegisterOutputPort(name string) (midimsg.Port, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registerLocked(name)
}

func (m *Mock) registerLocked(name string) (*mockPort, error) {
	if p, ok := m.ports[name]; ok {
		return p, nil
	}
	p := &mockPort{name: name}
	m.ports[name] = p
	m.buffers[p] = &mockBuffer{nframes: m.bufferSize}
	return p, nil
}

func (m *Mock) ConnectPort(srcPort, dstName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connections = append(m.connections, srcPort+"->"+dstName)
	return nil
}

func (m *Mock) Connections() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.connections))
	copy(out, m.connections)
	return out
}

func (m *Mock) SampleRate() int { return m.sampleRate }
func (m *Mock) BufferSize() int { return m.bufferSize }

func (m *Mock) CurrentFrameTime() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frame
}

func (m *Mock) LastFrameTime() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastFrame
}

func (m *Mock) SetProcessCallback(fn ProcessFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callback = fn
}

func (m *Mock) PortBuffer(port midimsg.Port, nframes int) (PortBuffer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, _ := port.(*mockPort)
	if p == nil {
		p = m.defaultPort
	}
	buf, ok := m.buffers[p]
	if !ok {
		return nil, errors.New("mock: unknown port")
	}
	return buf, nil
}

func (m *Mock) Activate() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activated = true
	return nil
}

func (m *Mock) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activated = false
}

// DefaultPort returns the port registered as "default" during Open.
func (m *Mock) DefaultPort() midimsg.Port {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.defaultPort
}

// AdvanceFrames moves the virtual clock forward without invoking the
// callback. Used to test heap/pump lookahead behavior in isolation.
func (m *Mock) AdvanceFrames(n int64) {
	m.mu.Lock()
	m.frame += n
	m.mu.Unlock()
}

// Cycle runs exactly one realtime cycle: it snapshots LastFrameTime as
// the pre-cycle frame, advances the clock by BufferSize, and invokes the
// installed callback with that cycle length, returning its status.
func (m *Mock) Cycle() int {
	m.mu.Lock()
	m.lastFrame = m.frame
	m.frame += int64(m.bufferSize)
	cb := m.callback
	nframes := m.bufferSize
	m.mu.Unlock()

	if cb == nil {
		return 0
	}
	return cb(nframes)
}

// Events returns the events recorded on a port's buffer since the last
// Clear (i.e. during the most recent Cycle).
func (m *Mock) Events(port midimsg.Port) []MockEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, _ := port.(*mockPort)
	if p == nil {
		p = m.defaultPort
	}
	buf := m.buffers[p]
	if buf == nil {
		return nil
	}
	out := make([]MockEvent, len(buf.events))
	copy(out, buf.events)
	return out
}

// FailNextReserve makes every Reserve on the given port fail once failAt
// events have been reserved since the last Clear (so the (failAt+1)th
// call in a cycle is the first to fail), simulating BufferReserveFailed.
// A failAt of 0 disables the failure.
func (m *Mock) FailNextReserve(port midimsg.Port, failAt int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, _ := port.(*mockPort)
	if p == nil {
		p = m.defaultPort
	}
	if buf, ok := m.buffers[p]; ok {
		buf.failAt = failAt
	}
}
