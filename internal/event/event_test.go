package event

import (
	"testing"

	"texttracker/internal/midimsg"
)

// fakeEngine is a deterministic Engine stand-in that records every
// queued message without needing the real heap/ring/backend pipeline.
type fakeEngine struct {
	sampleRate int64
	messages   []recordedMsg
}

type recordedMsg struct {
	status byte
	d1, d2 byte
	time   int64
}

func newFakeEngine(sampleRate int64) *fakeEngine {
	return &fakeEngine{sampleRate: sampleRate}
}

func (f *fakeEngine) Queue(msg midimsg.Message) error {
	f.messages = append(f.messages, recordedMsg{status: msg.Data[0], d1: msg.Data[1], d2: msg.Data[2], time: msg.Time})
	return nil
}

func (f *fakeEngine) MsToFrames(ms int64) int64 {
	return ms * f.sampleRate / 1000
}

func (f *fakeEngine) CurrentFrameTime() int64 { return 0 }

// fakeSequencer is a minimal Sequencer stand-in for event-level tests;
// it doesn't implement program walking, only the state events touch.
type fakeSequencer struct {
	tempo       int
	quant       int
	currentTime int64
	sustained   int
	quants      int
}

func newFakeSequencer() *fakeSequencer {
	return &fakeSequencer{tempo: 100, quant: 4}
}

func (s *fakeSequencer) Tempo() int              { return s.tempo }
func (s *fakeSequencer) SetTempo(bpm int)        { s.tempo = bpm }
func (s *fakeSequencer) Quant() int              { return s.quant }
func (s *fakeSequencer) SetQuant(q int)          { s.quant = q }
func (s *fakeSequencer) CurrentTime() int64      { return s.currentTime }
func (s *fakeSequencer) SetCurrentTime(t int64)  { s.currentTime = t }
func (s *fakeSequencer) AdvanceOneQuant(eng Engine) {
	s.currentTime += quantFrames(eng, s)
	s.quants++
}
func (s *fakeSequencer) SustainActive(Engine)             { s.sustained++ }
func (s *fakeSequencer) PlayOneLine(Engine) (bool, error) { return true, nil }
func (s *fakeSequencer) Silence(Engine)                   {}
func (s *fakeSequencer) ResetCursor()                     {}

// S1 from spec.md §8: "C4" -> one NOTE_ON at T+0, one NOTE_OFF at
// T+quant_frames-1-0 with default tempo=100, quant=4 (quant_frames=7200
// at 48kHz).
func TestNoteS1BareNote(t *testing.T) {
	eng := newFakeEngine(48000)
	seq := newFakeSequencer()

	n := &Note{Column: 0, Pitch: 0x3C, Volume: 0x40}
	flow := n.Execute(eng, seq)

	if !flow.TakesTime || !flow.SilencePrevious || !flow.NeedsStopping {
		t.Fatalf("expected {true,true,true}, got %+v", flow)
	}
	if len(eng.messages) != 1 {
		t.Fatalf("expected only a NOTE_ON queued by Execute, got %d messages", len(eng.messages))
	}
	if got := eng.messages[0]; got.status != 0x90 || got.time != 0 {
		t.Fatalf("expected NOTE_ON at T+0, got status %#x time %d", got.status, got.time)
	}

	seq.currentTime = 7200
	n.Stop(eng, seq)
	if len(eng.messages) != 2 {
		t.Fatalf("expected a synthesized NOTE_OFF from Stop")
	}
	off := eng.messages[1]
	if off.status != 0x80 || off.time != 7199 {
		t.Fatalf("expected NOTE_OFF at T+7199, got status %#x time %d", off.status, off.time)
	}
}

// S2: "C4@200" -> NOTE_ON at T+0, NOTE_OFF at T+ms_to_frames(200)-2.
func TestNoteS2OwnOff(t *testing.T) {
	eng := newFakeEngine(48000)
	seq := newFakeSequencer()

	n := &Note{Column: 0, Pitch: 0x3C, Volume: 0x40, TimeMS: 200}
	flow := n.Execute(eng, seq)

	if flow.NeedsStopping {
		t.Fatalf("a note with its own off must not need synthetic stopping")
	}
	if len(eng.messages) != 2 {
		t.Fatalf("expected NOTE_ON and NOTE_OFF queued together, got %d", len(eng.messages))
	}
	on, off := eng.messages[0], eng.messages[1]
	if on.time != 0 {
		t.Fatalf("expected NOTE_ON at T+0, got %d", on.time)
	}
	if want := int64(200*48000/1000 - 2); off.time != want {
		t.Fatalf("expected NOTE_OFF at T+%d, got %d", want, off.time)
	}
}

// S3: three notes on adjacent columns are staggered by exactly their
// column index in frames.
func TestNoteS3ColumnStagger(t *testing.T) {
	eng := newFakeEngine(48000)
	seq := newFakeSequencer()

	for col := 0; col < 3; col++ {
		n := &Note{Column: col, Pitch: byte(0x3C + col*4), Volume: 0x40}
		n.Execute(eng, seq)
	}

	for col, m := range eng.messages {
		if m.time != int64(col) {
			t.Fatalf("expected column %d note-on at T+%d, got T+%d", col, col, m.time)
		}
	}
}

// TestMidiCtlRampZeroSpreadIsSingleShot exercises the Open Question
// resolution: init_value==value with time>0 must not divide by zero
// and must take the single-shot path.
func TestMidiCtlRampZeroSpreadIsSingleShot(t *testing.T) {
	eng := newFakeEngine(48000)
	seq := newFakeSequencer()

	m := MidiCtl{Kind: CtlControl, Controller: 7, InitValue: 64, Value: 64, Time: 5000, DelayDiv: 1}
	flow := m.Execute(eng, seq)

	if !flow.TakesTime {
		t.Fatalf("expected takes_time true")
	}
	if len(eng.messages) != 1 {
		t.Fatalf("expected exactly one message for a zero-spread ramp, got %d", len(eng.messages))
	}
	if eng.messages[0].d2 != 64 {
		t.Fatalf("expected value 64, got %d", eng.messages[0].d2)
	}
}

func TestMidiCtlUnsetInitValueIsSingleShot(t *testing.T) {
	eng := newFakeEngine(48000)
	seq := newFakeSequencer()

	m := MidiCtl{Kind: CtlControl, Controller: 10, InitValue: UnsetInitValue, Value: 100, DelayDiv: 1}
	m.Execute(eng, seq)

	if len(eng.messages) != 1 {
		t.Fatalf("expected exactly one message, got %d", len(eng.messages))
	}
}

// S5-shaped: a CC ramp from 0 to 4 by step 1 emits one message per
// intermediate value plus the terminal value.
func TestMidiCtlRampEmitsIntermediateSteps(t *testing.T) {
	eng := newFakeEngine(48000)
	seq := newFakeSequencer()

	m := MidiCtl{Kind: CtlControl, Controller: 7, InitValue: 0, Value: 4, Step: 1, Time: 400, DelayDiv: 1}
	flow := m.Execute(eng, seq)

	if !flow.SilencePrevious {
		t.Fatalf("ramp path must report silence_previous true")
	}
	if len(eng.messages) != 5 {
		t.Fatalf("expected 5 messages (0,1,2,3,4), got %d", len(eng.messages))
	}
	for i, m := range eng.messages {
		if int(m.d2) != i {
			t.Fatalf("expected value %d at index %d, got %d", i, i, m.d2)
		}
	}
}

func TestMidiCtlPitchBendEncoding(t *testing.T) {
	eng := newFakeEngine(48000)
	seq := newFakeSequencer()

	m := MidiCtl{Kind: CtlPitchBend, InitValue: UnsetInitValue, Value: 0x2000, DelayDiv: 1}
	m.Execute(eng, seq)

	if len(eng.messages) != 1 {
		t.Fatalf("expected one message")
	}
	got := eng.messages[0]
	if got.status&0xF0 != 0xE0 {
		t.Fatalf("expected pitch bend status, got %#x", got.status)
	}
	if got.d1 != 0x00 || got.d2 != 0x40 {
		t.Fatalf("expected LSB 0x00 MSB 0x40 for center value, got %#x %#x", got.d1, got.d2)
	}
}

func TestSkipTakesTimeWithoutEmittingMidi(t *testing.T) {
	eng := newFakeEngine(48000)
	seq := newFakeSequencer()

	flow := Skip{Column: 2}.Execute(eng, seq)
	if !flow.TakesTime || !flow.SilencePrevious || flow.NeedsStopping {
		t.Fatalf("expected {true,true,false}, got %+v", flow)
	}
	if len(eng.messages) != 0 {
		t.Fatalf("skip must not emit MIDI")
	}
}

func TestBarUpdatesQuantOnlyWhenNomPositive(t *testing.T) {
	eng := newFakeEngine(48000)
	seq := newFakeSequencer()

	Bar{Nom: 0, Div: 4}.Execute(eng, seq)
	if seq.quant != 4 {
		t.Fatalf("expected quant unchanged by a zero-nom bar")
	}
	Bar{Nom: 3, Div: 4}.Execute(eng, seq)
	if seq.quant != 3 {
		t.Fatalf("expected quant updated to 3, got %d", seq.quant)
	}
}

func TestTempoSetsSequencerTempo(t *testing.T) {
	eng := newFakeEngine(48000)
	seq := newFakeSequencer()

	Tempo{BPM: 120}.Execute(eng, seq)
	if seq.tempo != 120 {
		t.Fatalf("expected tempo 120, got %d", seq.tempo)
	}
}

func TestPedalSustainsWithoutSilencingPrevious(t *testing.T) {
	eng := newFakeEngine(48000)
	seq := newFakeSequencer()

	n := &Note{Column: 0, Pitch: 60, Volume: 100}
	p := Pedal{Column: 0, Ref: n}
	flow := p.Execute(eng, seq)

	if !flow.TakesTime || flow.SilencePrevious {
		t.Fatalf("expected {true,false,false}, got %+v", flow)
	}
}

func TestWaitSustainsActiveAndAdvancesTime(t *testing.T) {
	eng := newFakeEngine(48000)
	seq := newFakeSequencer()

	Wait{N: 3}.Execute(eng, seq)

	if seq.sustained != 3 {
		t.Fatalf("expected 3 sustain calls, got %d", seq.sustained)
	}
	if seq.quants != 3 {
		t.Fatalf("expected 3 quant advances, got %d", seq.quants)
	}
}

func TestSubpatternPlayReturnsFullFlagsAndDrivesSub(t *testing.T) {
	eng := newFakeEngine(48000)
	seq := newFakeSequencer()
	seq.currentTime = 500

	sub := newFakeSequencer()
	play := SubpatternPlay{Column: 0, Sub: sub}
	flow := play.Execute(eng, seq)

	if !flow.TakesTime || !flow.SilencePrevious || !flow.NeedsStopping {
		t.Fatalf("expected {true,true,true}, got %+v", flow)
	}
	if sub.currentTime != 500 {
		t.Fatalf("expected sub current_time copied from parent, got %d", sub.currentTime)
	}
}
