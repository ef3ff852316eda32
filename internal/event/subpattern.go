package event

// SubpatternPlay plays one line of a named sub-pattern each time it is
// executed. Sub is a non-owning reference to the sub-sequencer stored
// in the enclosing Sequencer's subpatterns map, threaded through as
// the event.Sequencer interface so this package never imports the
// concrete sequencer type.
type SubpatternPlay struct {
	Column int
	Sub    Sequencer
}

func (s SubpatternPlay) Execute(eng Engine, seq Sequencer) ControlFlow {
	s.Sub.SetCurrentTime(seq.CurrentTime())
	s.Sub.ResetCursor()
	s.Sub.PlayOneLine(eng)
	return ControlFlow{TakesTime: true, SilencePrevious: true, NeedsStopping: true}
}

// Stop silences the sub-sequencer, which recurses transitively through
// any nested SubpatternPlay events in its own active lists.
func (s SubpatternPlay) Stop(eng Engine, seq Sequencer) {
	s.Sub.SetCurrentTime(seq.CurrentTime())
	s.Sub.Silence(eng)
}

// Sustain advances the sub-sequencer by one more line rather than
// silencing it, keeping it "sounding" the way a pedal keeps a Note
// sounding.
func (s SubpatternPlay) Sustain(eng Engine, seq Sequencer) {
	s.Sub.SetCurrentTime(seq.CurrentTime())
	s.Sub.PlayOneLine(eng)
}

// ColumnIndex reports the pattern-row column this sub-pattern play
// occupies.
func (s SubpatternPlay) ColumnIndex() int { return s.Column }
