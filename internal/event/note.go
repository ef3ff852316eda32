package event

import "texttracker/internal/midimsg"

// Note is a note-on, optionally paired with a scheduled note-off.
// DelayMS/TimeMS are the `%`/`@` millisecond modifiers;
// PartDelay/PartTime/PartDiv are the fractional-quant `+`/`:`/`/`
// modifiers. A natural (`n`) accidental is handled entirely by the
// parser before constructing the event and is not stored here.
type Note struct {
	Column    int
	Pitch     byte
	Volume    byte
	DelayMS   int64
	TimeMS    int64
	PartDelay int64
	PartTime  int64
	PartDiv   int64
	Endless   bool

	Channel uint8
	Port    midimsg.Port
}

// partFrames computes quant_frames * p / part_div, or 0 if part_div is
// zero (an explicit `/0` modifier; the parser defaults PartDiv to 1
// when no `/` modifier is present).
func partFrames(quantFrames, p, partDiv int64) int64 {
	if partDiv == 0 {
		return 0
	}
	return quantFrames * p / partDiv
}

func (n *Note) Execute(eng Engine, seq Sequencer) ControlFlow {
	qf := quantFrames(eng, seq)
	onTime := seq.CurrentTime() + eng.MsToFrames(n.DelayMS) + partFrames(qf, n.PartDelay, n.PartDiv) + int64(n.Column)

	eng.Queue(midimsg.NoteOn(n.Pitch, n.Volume, n.Channel, onTime, n.Port))

	hasOwnOff := !n.Endless && (n.TimeMS > 0 || n.PartTime > 0)
	if hasOwnOff {
		offTime := onTime + eng.MsToFrames(n.TimeMS) + partFrames(qf, n.PartTime, n.PartDiv) - 2
		eng.Queue(midimsg.NoteOff(n.Pitch, n.Channel, offTime, n.Port))
	}

	return ControlFlow{TakesTime: true, SilencePrevious: true, NeedsStopping: !hasOwnOff}
}

// Stop synthesizes a note-off for notes whose own off was not
// pre-scheduled (Execute reported needs_stopping). Fired at
// current_time - 1 - column so it precedes the next note-on even under
// the +column stagger.
func (n *Note) Stop(eng Engine, seq Sequencer) {
	offTime := seq.CurrentTime() - 1 - int64(n.Column)
	eng.Queue(midimsg.NoteOff(n.Pitch, n.Channel, offTime, n.Port))
}

// Sustain is a no-op for a bare Note: it is prolonged only via a
// wrapping Pedal or Wait event calling Sustain on it, and a Note by
// itself has no notion of "keep going" beyond its own scheduled off.
func (n *Note) Sustain(Engine, Sequencer) {}

// ColumnIndex reports the pattern-row column this note occupies, so the
// sequencer's active-list bookkeeping can address it.
func (n *Note) ColumnIndex() int { return n.Column }
