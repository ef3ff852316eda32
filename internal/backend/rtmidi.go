// Concrete Backend over gitlab.com/gomidi/midi/v2 and its rtmididrv
// driver. Grounded on the teacher's midi/manager.go (GetOutPorts,
// rtmididrv registration) and controller.go (midi.SendTo, raw byte
// sends), reworked from a Launchpad hot-plug scanner into a fixed
// output-port client that drives its own realtime cycle.
//
// spec.md §1 treats the audio-server client itself as an external
// collaborator and leaves its concrete shape unspecified. A generic OS
// MIDI driver (unlike JACK) exposes no hardware sample clock or
// server-driven process callback, so RTMIDI derives a virtual frame
// clock from wall time and drives ProcessFunc from a time.Ticker sized
// to one buffer's worth of frames. See DESIGN.md's backend notes.
package backend

import (
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"texttracker/internal/midimsg"
	"texttracker/internal/tracklog"
)

// rtPort wraps the gomidi send closure for one registered output.
type rtPort struct {
	name string
	send func(gomidi.Message) error
	buf  *rtBuffer
}

// rtBuffer defers writes until the end of a cycle: Reserve just records
// the message, and the cycle driver flushes them in the order they were
// reserved after the callback returns, since a live MIDI port has no notion of
// "buffer offset" the way a JACK port buffer does.
type rtBuffer struct {
	pending []pendingWrite
}

type pendingWrite struct {
	offset int
	data   []byte
}

func (b *rtBuffer) Clear() { b.pending = b.pending[:0] }

func (b *rtBuffer) Reserve(offset, length int) ([]byte, error) {
	data := make([]byte, length)
	b.pending = append(b.pending, pendingWrite{offset: offset, data: data})
	return data, nil
}

// RTMIDI is the Backend implementation used by cmd/texttracker.
type RTMIDI struct {
	mu         sync.Mutex
	name       string
	sampleRate int
	bufferSize int

	ports    map[string]*rtPort
	defaultN string

	startedAt time.Time
	frame     int64
	lastFrame int64

	callback ProcessFunc
	ticker   *time.Ticker
	stop     chan struct{}
	wg       sync.WaitGroup
}

// NewRTMIDI returns an RTMIDI backend with the given virtual sample
// rate and cycle length in frames.
func NewRTMIDI(sampleRate, bufferSize int) *RTMIDI {
	return &RTMIDI{
		sampleRate: sampleRate,
		bufferSize: bufferSize,
		ports:      make(map[string]*rtPort),
	}
}

func (r *RTMIDI) Open(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(gomidi.GetOutPorts()) == 0 {
		return errors.Wrap(ErrBackendUnavailable, "no MIDI output ports available")
	}

	r.name = name
	r.startedAt = time.Now()
	return nil
}

func (r *RTMIDI) RegisterOutputPort(name string) (midimsg.Port, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.ports[name]; ok {
		return p, nil
	}

	out, err := findOutPort(name)
	if err != nil {
		return nil, errors.Wrapf(err, "register output port %q", name)
	}

	send, err := gomidi.SendTo(out)
	if err != nil {
		return nil, errors.Wrapf(err, "open send to %q", name)
	}

	p := &rtPort{name: name, send: send, buf: &rtBuffer{}}
	r.ports[name] = p
	if r.defaultN == "" {
		r.defaultN = name
	}
	return p, nil
}

// findOutPort resolves an output port by case-insensitive substring
// match against the system's registered MIDI outputs, per the
// teacher's isLaunchpad-style name matching in midi/manager.go.
func findOutPort(name string) (drivers.Out, error) {
	outs := gomidi.GetOutPorts()
	for _, o := range outs {
		if matchPortName(o.String(), name) {
			return o, nil
		}
	}
	if len(outs) > 0 {
		return outs[0], nil
	}
	return nil, errors.New("no matching or fallback output port")
}

func matchPortName(have, want string) bool {
	if want == "" {
		return true
	}
	return strings.Contains(strings.ToLower(have), strings.ToLower(want))
}

// ConnectPort is a no-op on this backend: gomidi.SendTo already binds
// to a concrete system port at registration time, so there is no
// separate patchbay connection step to make.
func (r *RTMIDI) ConnectPort(srcPort, dstName string) error {
	tracklog.Log("backend", "connect requested %s -> %s (no-op on rtmidi backend)", srcPort, dstName)
	return nil
}

func (r *RTMIDI) SampleRate() int { return r.sampleRate }
func (r *RTMIDI) BufferSize() int { return r.bufferSize }

func (r *RTMIDI) CurrentFrameTime() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frame
}

func (r *RTMIDI) LastFrameTime() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastFrame
}

func (r *RTMIDI) SetProcessCallback(fn ProcessFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callback = fn
}

func (r *RTMIDI) PortBuffer(port midimsg.Port, nframes int) (PortBuffer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := port.(*rtPort)
	if !ok || p == nil {
		p, ok = r.ports[r.defaultN]
		if !ok {
			return nil, errors.New("no default output port registered")
		}
	}
	return p.buf, nil
}

// Activate starts the ticker-driven cycle loop.
func (r *RTMIDI) Activate() error {
	r.mu.Lock()
	if r.callback == nil {
		r.mu.Unlock()
		return errors.Wrap(ErrActivationFailed, "no process callback installed")
	}
	period := time.Duration(r.bufferSize) * time.Second / time.Duration(r.sampleRate)
	r.ticker = time.NewTicker(period)
	r.stop = make(chan struct{})
	r.mu.Unlock()

	r.wg.Add(1)
	go r.run()
	return nil
}

func (r *RTMIDI) run() {
	defer r.wg.Done()
	for {
		select {
		case <-r.stop:
			return
		case <-r.ticker.C:
			r.cycle()
		}
	}
}

func (r *RTMIDI) cycle() {
	r.mu.Lock()
	r.lastFrame = r.frame
	r.frame = int64(time.Since(r.startedAt).Seconds() * float64(r.sampleRate))
	cb := r.callback
	nframes := r.bufferSize
	r.mu.Unlock()

	if cb == nil {
		return
	}
	if status := cb(nframes); status != 0 {
		tracklog.Log("backend", "process callback returned status %d", status)
	}
	r.flush()
}

// flush sends every port's pending writes in reserve order and clears
// their buffers, once per cycle, outside the callback's no-allocation
// discipline.
func (r *RTMIDI) flush() {
	r.mu.Lock()
	ports := make([]*rtPort, 0, len(r.ports))
	for _, p := range r.ports {
		ports = append(ports, p)
	}
	r.mu.Unlock()

	for _, p := range ports {
		for _, w := range p.buf.pending {
			msg := gomidi.Message(w.data)
			if err := p.send(msg); err != nil {
				tracklog.LogEvery(50, "backend", "send to %s failed: %v", p.name, err)
			}
		}
		p.buf.Clear()
	}
}

func (r *RTMIDI) Shutdown() {
	r.mu.Lock()
	ticker := r.ticker
	stop := r.stop
	r.mu.Unlock()

	if ticker != nil {
		ticker.Stop()
	}
	if stop != nil {
		close(stop)
	}
	r.wg.Wait()
}
