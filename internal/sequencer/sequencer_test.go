package sequencer

import (
	"strings"
	"testing"

	"texttracker/internal/event"
	"texttracker/internal/lang"
	"texttracker/internal/midimsg"
)

// fakeEngine is a deterministic event.Engine stand-in recording every
// queued message, mirroring cbegin-mmlfm-go's sequencer test fakes.
type fakeEngine struct {
	sampleRate int64
	messages   []midimsg.Message
}

func newFakeEngine() *fakeEngine { return &fakeEngine{sampleRate: 48000} }

func (f *fakeEngine) Queue(msg midimsg.Message) error {
	f.messages = append(f.messages, msg)
	return nil
}
func (f *fakeEngine) MsToFrames(ms int64) int64 { return ms * f.sampleRate / 1000 }
func (f *fakeEngine) CurrentFrameTime() int64   { return 0 }

// fakeRegistry is a no-op PortRegistry for parser construction in tests
// that don't exercise the "port" directive.
type fakeRegistry struct{}

func (fakeRegistry) RegisterOutputPort(name string) (midimsg.Port, error) { return name, nil }
func (fakeRegistry) SetPortChannel(string, uint8)                        {}
func (fakeRegistry) ConnectPort(string, string)                          {}

func newTestSequencer(t *testing.T, text string) (*Sequencer, *fakeEngine) {
	t.Helper()
	s := New()
	p := lang.New(fakeRegistry{})
	if err := s.ReadFromStream(strings.NewReader(text), p); err != nil {
		t.Fatalf("ReadFromStream: %v", err)
	}
	return s, newFakeEngine()
}

func TestReadFromStreamBuildsProgram(t *testing.T) {
	s, _ := newTestSequencer(t, "C4\nD4\n")
	if len(s.program) != 2 {
		t.Fatalf("expected 2 program lines, got %d", len(s.program))
	}
}

func TestReadFromStreamSkipsUnparseableLines(t *testing.T) {
	s, _ := newTestSequencer(t, "C4\n$\nD4\n")
	if len(s.program) != 2 {
		t.Fatalf("expected the malformed midi-ctl line to be skipped, got %d program lines", len(s.program))
	}
}

func TestPlayOneLineAdvancesTimeOncePerRow(t *testing.T) {
	s, eng := newTestSequencer(t, "C4\nD4\n")

	ok, err := s.PlayOneLine(eng)
	if err != nil || !ok {
		t.Fatalf("expected first line to play, got ok=%v err=%v", ok, err)
	}
	if len(eng.messages) != 1 {
		t.Fatalf("expected 1 NOTE_ON queued, got %d", len(eng.messages))
	}
	firstTime := s.currentTime
	if firstTime == 0 {
		t.Fatalf("expected current_time to advance past 0 after one line")
	}

	ok, err = s.PlayOneLine(eng)
	if err != nil || !ok {
		t.Fatalf("expected second line to play, got ok=%v err=%v", ok, err)
	}
	if s.currentTime <= firstTime {
		t.Fatalf("expected current_time to advance again")
	}

	ok, err = s.PlayOneLine(eng)
	if err != nil || ok {
		t.Fatalf("expected end of program, got ok=%v err=%v", ok, err)
	}
}

func TestPlayOneLineTracksNeedsStoppingNote(t *testing.T) {
	s, eng := newTestSequencer(t, "C4\n")

	s.PlayOneLine(eng)
	if len(s.active.all()) != 1 {
		t.Fatalf("expected the bare note to be tracked as active, got %d", len(s.active.all()))
	}
}

func TestPlayOneLineOwnOffNoteIsNotActive(t *testing.T) {
	s, eng := newTestSequencer(t, "C4@200\n")

	s.PlayOneLine(eng)
	if len(s.active.all()) != 0 {
		t.Fatalf("expected a note with its own off to not be tracked active, got %d", len(s.active.all()))
	}
	if len(eng.messages) != 2 {
		t.Fatalf("expected NOTE_ON and NOTE_OFF queued, got %d", len(eng.messages))
	}
}

func TestSilenceStopsActiveNotes(t *testing.T) {
	s, eng := newTestSequencer(t, "C4\n")

	s.PlayOneLine(eng)
	s.Silence(eng)

	if len(s.active.all()) != 0 {
		t.Fatalf("expected active list cleared after silence")
	}
	if len(eng.messages) != 2 {
		t.Fatalf("expected a synthesized NOTE_OFF from silence, got %d messages", len(eng.messages))
	}
}

func TestGetNextLineRepeatsFiniteLoopBody(t *testing.T) {
	s, eng := newTestSequencer(t, "loop 2\nC4\nendloop\nD4\n")

	var pitches []byte
	for {
		ok, err := s.PlayOneLine(eng)
		if err != nil {
			t.Fatalf("PlayOneLine: %v", err)
		}
		if !ok {
			break
		}
	}
	for _, m := range eng.messages {
		if m.Data[0]&0xF0 == midimsg.StatusNoteOn {
			pitches = append(pitches, m.Data[1])
		}
	}
	// C4 (60) twice via the loop body, then D4 (62) once.
	if len(pitches) != 3 {
		t.Fatalf("expected 3 note-ons (C4,C4,D4), got %d: %v", len(pitches), pitches)
	}
	if pitches[0] != 60 || pitches[1] != 60 || pitches[2] != 62 {
		t.Fatalf("expected [60,60,62], got %v", pitches)
	}
}

func TestSubpatternDefinitionIsNotAppendedToProgram(t *testing.T) {
	s, _ := newTestSequencer(t, "define kick\nC1\nend\nD4\n")

	if len(s.program) != 1 {
		t.Fatalf("expected only the trailing D4 row in the top-level program, got %d", len(s.program))
	}
	sub, ok := s.Subpattern("kick")
	if !ok {
		t.Fatalf("expected sub-pattern %q to be registered", "kick")
	}
	if len(sub.program) != 1 {
		t.Fatalf("expected the sub-pattern's own program to hold its one row, got %d", len(sub.program))
	}
}

func TestPatternRowReferencesDefinedSubpattern(t *testing.T) {
	s, eng := newTestSequencer(t, "define kick\nC1\nend\nkick\n")

	ok, err := s.PlayOneLine(eng)
	if err != nil || !ok {
		t.Fatalf("expected the kick row to play, got ok=%v err=%v", ok, err)
	}
	if len(eng.messages) != 1 {
		t.Fatalf("expected the sub-pattern's own note-on to be queued, got %d", len(eng.messages))
	}
	if eng.messages[0].Data[1] != 24 {
		t.Fatalf("expected C1 (pitch 24 = (octave+1)*12), got %d", eng.messages[0].Data[1])
	}
}

func TestNestedSubpatternSilenceRecurses(t *testing.T) {
	s, eng := newTestSequencer(t, "define kick\nC1\nend\nkick\n")

	s.PlayOneLine(eng)
	if len(s.active.all()) != 1 {
		t.Fatalf("expected the SubpatternPlay itself to be tracked active")
	}

	s.Silence(eng)
	if len(s.active.all()) != 0 {
		t.Fatalf("expected silence to clear the top-level active list")
	}
	// The sub-sequencer's own C1 note should have been stopped too,
	// contributing one NOTE_OFF after the initial NOTE_ON.
	offCount := 0
	for _, m := range eng.messages {
		if m.Data[0]&0xF0 == midimsg.StatusNoteOff {
			offCount++
		}
	}
	if offCount != 1 {
		t.Fatalf("expected the nested note to receive a synthesized off, got %d offs", offCount)
	}
}

func TestAdvanceOneQuantUsesQuantFrames(t *testing.T) {
	s := New()
	eng := newFakeEngine()
	before := s.currentTime
	s.AdvanceOneQuant(eng)
	want := event.QuantFrames(eng, s)
	if s.currentTime-before != want {
		t.Fatalf("expected current_time to advance by %d, got %d", want, s.currentTime-before)
	}
}
