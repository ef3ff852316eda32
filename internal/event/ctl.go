package event

import "texttracker/internal/midimsg"

// CtlKind distinguishes a Control-Change ramp/shot from a PitchBend one.
type CtlKind int

const (
	CtlControl CtlKind = iota
	CtlPitchBend
)

// UnsetInitValue is the "unset" sentinel for InitValue: a ramp whose
// InitValue is unset always takes the single-shot path.
const UnsetInitValue = -1

// MidiCtl is a single CC/PitchBend message, or a ramp between two
// values emitted as a burst of messages spread across a time window.
type MidiCtl struct {
	Column     int
	Kind       CtlKind
	Controller byte
	InitValue  int
	Value      int
	Step       int
	Time       int64
	Delay      int64
	DelayDiv   int64

	Channel uint8
	Port    midimsg.Port
}

func (m MidiCtl) encode(value int) (data1, data2 byte) {
	if m.Kind == CtlPitchBend {
		v := uint16(value)
		return byte(v & 0x7F), byte((v >> 7) & 0x7F)
	}
	return m.Controller, byte(value)
}

func (m MidiCtl) status() byte {
	if m.Kind == CtlPitchBend {
		return midimsg.StatusPitchBend
	}
	return midimsg.StatusControl
}

func (m MidiCtl) send(eng Engine, value int, t int64) {
	d1, d2 := m.encode(value)
	eng.Queue(midimsg.New(m.status(), d1, d2, 3, m.Channel, t, m.Port))
}

// Execute takes the single-shot path when InitValue is unset, Time
// is zero, or the two values are equal (a zero-length ramp) — the last
// of these also happens to sidestep the |init_value-value|==0 division
// in the ramp path's time_step, which is otherwise undefined.
func (m MidiCtl) Execute(eng Engine, seq Sequencer) ControlFlow {
	qf := quantFrames(eng, seq)

	singleShot := m.InitValue == UnsetInitValue || m.Time == 0 || m.Value == m.InitValue
	if singleShot {
		t := seq.CurrentTime() + qf*m.Delay/m.DelayDiv
		m.send(eng, m.Value, t)
		return ControlFlow{TakesTime: true, SilencePrevious: true, NeedsStopping: false}
	}

	spread := m.Value - m.InitValue
	if spread < 0 {
		spread = -spread
	}
	timeStep := qf * m.Time / m.DelayDiv / int64(spread)
	base := seq.CurrentTime() + qf*m.Delay/m.DelayDiv

	step := m.Step
	if step <= 0 {
		step = 1
	}
	if m.Value < m.InitValue {
		step = -step
	}

	for i := m.InitValue; (step > 0 && i < m.Value) || (step < 0 && i > m.Value); i += step {
		diff := i - m.InitValue
		if diff < 0 {
			diff = -diff
		}
		t := base + timeStep*int64(diff)
		m.send(eng, i, t)
	}

	diff := m.Value - m.InitValue
	if diff < 0 {
		diff = -diff
	}
	m.send(eng, m.Value, base+timeStep*int64(diff))

	return ControlFlow{TakesTime: true, SilencePrevious: true, NeedsStopping: false}
}

func (MidiCtl) Stop(Engine, Sequencer)    {}
func (MidiCtl) Sustain(Engine, Sequencer) {}

// ColumnIndex reports the pattern-row column this control message
// occupies.
func (m MidiCtl) ColumnIndex() int { return m.Column }
