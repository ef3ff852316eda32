package event

// Skip is a timed rest on a column: it emits no MIDI but still
// silences the column and advances virtual time, same as a Note would.
type Skip struct {
	baseEvent
	Column int
}

func (Skip) Execute(Engine, Sequencer) ControlFlow {
	return ControlFlow{TakesTime: true, SilencePrevious: true, NeedsStopping: false}
}

// ColumnIndex reports the pattern-row column this rest occupies.
func (s Skip) ColumnIndex() int { return s.Column }

// Bar is a bar separator. A positive Nom updates the sequencer's
// quant; Nom==0 (an unparseable bar) leaves it unchanged. Bars never
// advance time themselves.
type Bar struct {
	baseEvent
	Nom int
	Div int
}

func (b Bar) Execute(_ Engine, seq Sequencer) ControlFlow {
	if b.Nom > 0 {
		seq.SetQuant(b.Nom)
	}
	return ControlFlow{}
}

// Tempo sets the sequencer's tempo. Never advances time.
type Tempo struct {
	baseEvent
	BPM int
}

func (te Tempo) Execute(_ Engine, seq Sequencer) ControlFlow {
	seq.SetTempo(te.BPM)
	return ControlFlow{}
}

// Pedal wraps a target event and calls Sustain on it every time the
// pedal event itself would be executed, keeping the target sounding
// instead of letting the sequencer silence it as it would a bare
// column re-trigger.
type Pedal struct {
	Column int
	Ref    Event
}

func (p Pedal) Execute(eng Engine, seq Sequencer) ControlFlow {
	if p.Ref != nil {
		p.Ref.Sustain(eng, seq)
	}
	return ControlFlow{TakesTime: true, SilencePrevious: false, NeedsStopping: false}
}

func (p Pedal) Stop(eng Engine, seq Sequencer) {
	if p.Ref != nil {
		p.Ref.Stop(eng, seq)
	}
}

func (p Pedal) Sustain(eng Engine, seq Sequencer) {
	if p.Ref != nil {
		p.Ref.Sustain(eng, seq)
	}
}

// ColumnIndex reports the pattern-row column this pedal occupies.
func (p Pedal) ColumnIndex() int { return p.Column }

// Wait advances virtual time by N quant units, sustaining every
// currently active event across all columns before each unit's advance.
type Wait struct {
	baseEvent
	N int
}

func (w Wait) Execute(eng Engine, seq Sequencer) ControlFlow {
	for i := 0; i < w.N; i++ {
		seq.SustainActive(eng)
		seq.AdvanceOneQuant(eng)
	}
	return ControlFlow{}
}

// Loop marks the start of a loop body. Count is the remaining
// iteration count as parsed; Infinite means "forever" (the ∞
// sentinel). Loop/EndLoop rows are consumed by the sequencer's
// get_next_line before ever reaching Execute — these methods exist
// only so both satisfy Event for storage in program.
type Loop struct {
	baseEvent
	Count    int
	Infinite bool
}

func (Loop) Execute(Engine, Sequencer) ControlFlow { return ControlFlow{} }

// EndLoop marks the end of a loop body.
type EndLoop struct {
	baseEvent
}

func (EndLoop) Execute(Engine, Sequencer) ControlFlow { return ControlFlow{} }

// SubpatternBegin and SubpatternEnd are textual delimiters consumed
// only at parse time by Sequencer.ReadFromStream; they never appear in
// a program and Execute is never called on them in practice.
type SubpatternBegin struct {
	baseEvent
	Name string
}

func (SubpatternBegin) Execute(Engine, Sequencer) ControlFlow { return ControlFlow{} }

type SubpatternEnd struct {
	baseEvent
}

func (SubpatternEnd) Execute(Engine, Sequencer) ControlFlow { return ControlFlow{} }
