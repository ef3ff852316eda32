// Package sequencer owns the program (an ordered list of event lines),
// the loop stack, the sub-pattern table, and the per-column active-event
// bookkeeping described in spec.md §4.5. It is the concrete type behind
// event.Sequencer: events call back into it to advance time, sustain
// pedals, and recurse into sub-patterns.
//
// Grounded on the teacher's SessionDevice pattern/next/cursor bookkeeping
// (sequencer/session.go) for the general "current index + advance on
// boundary" shape, generalized here into an explicit loop stack, and on
// cbegin-mmlfm-go's sequencer_test.go for the fake-engine table-test
// style used below.
package sequencer

import (
	"bufio"
	"io"

	"texttracker/internal/event"
	"texttracker/internal/lang"
	"texttracker/internal/tracklog"
)

// loopFrame is one entry of the loop stack: spec.md §4.5's
// (remaining, return_index) pair, plus the infinite sentinel.
type loopFrame struct {
	remaining   int
	infinite    bool
	returnIndex int
}

// Sequencer drives playback of one program: a stdin stream (the
// top-level sequencer) or the body of a `define ... end` block (a
// sub-pattern, addressed from a SubpatternPlay event).
type Sequencer struct {
	program     [][]event.Event
	cursor      int
	loopStack   []loopFrame
	subpatterns map[string]*Sequencer

	active *active

	currentTime int64
	tempo       int
	quant       int
}

// New returns a Sequencer with spec.md §4.5's documented defaults:
// tempo 100bpm, quant 4.
func New() *Sequencer {
	return &Sequencer{
		subpatterns: make(map[string]*Sequencer),
		active:      newActive(),
		tempo:       100,
		quant:       4,
	}
}

func (s *Sequencer) Tempo() int             { return s.tempo }
func (s *Sequencer) SetTempo(bpm int)       { s.tempo = bpm }
func (s *Sequencer) Quant() int             { return s.quant }
func (s *Sequencer) SetQuant(quant int)     { s.quant = quant }
func (s *Sequencer) CurrentTime() int64     { return s.currentTime }
func (s *Sequencer) SetCurrentTime(t int64) { s.currentTime = t }
func (s *Sequencer) ResetCursor()           { s.cursor = 0 }

// Subpattern looks up a named sub-pattern sequencer, for tests.
func (s *Sequencer) Subpattern(name string) (*Sequencer, bool) {
	sub, ok := s.subpatterns[name]
	return sub, ok
}

// LookupSubpattern satisfies lang.SubpatternLookup, letting the Parser
// recognize a bare pattern-row token as a reference to a previously
// defined sub-pattern.
func (s *Sequencer) LookupSubpattern(name string) (event.Sequencer, bool) {
	sub, ok := s.subpatterns[name]
	if !ok {
		return nil, false
	}
	return sub, true
}

// AdvanceOneQuant advances virtual time by one quant unit, per spec.md
// §4.5's quant_frames formula.
func (s *Sequencer) AdvanceOneQuant(eng event.Engine) {
	s.currentTime += event.QuantFrames(eng, s)
}

// SustainActive calls Sustain on every event currently active across
// every column, per Wait's contract.
func (s *Sequencer) SustainActive(eng event.Engine) {
	for _, ev := range s.active.all() {
		ev.Sustain(eng, s)
	}
}

// Silence stops every active event on every column and clears the
// active lists. SubpatternPlay.Stop calls Silence on its referenced
// sub-sequencer, making this recursive through nested sub-patterns.
func (s *Sequencer) Silence(eng event.Engine) {
	s.active.stopAll(eng, s)
}

// ReadFromStream parses input line by line with parser, appending each
// resulting event line to program. A line beginning with
// SubpatternBegin(name) starts a recursive read into a freshly
// constructed child Sequencer (sharing the same Parser, so column maps,
// aliases and defaults carry across the sub-pattern boundary) until a
// line begins with SubpatternEnd; the child is then registered under
// name in the flat, stream-wide sub-pattern namespace so a pattern row
// anywhere in the stream — including inside another sub-pattern — can
// refer to it by name, per the Parser's single non-owning
// SubpatternLookup back-reference (spec.md's "Cyclic references" note:
// one lookup, granted here before the first line is parsed, not one per
// nesting level). Parse errors are logged and skipped, per spec.md §4.4/§7.
func (s *Sequencer) ReadFromStream(input io.Reader, parser *lang.Parser) error {
	parser.SetSubpatternLookup(s)
	scanner := bufio.NewScanner(input)
	offset := 0
	return s.readInto(scanner, &offset, parser, s)
}

// readInto reads lines into s.program until EOF or (when reading a
// sub-pattern body) a SubpatternEnd line, registering every nested
// define block into root's flat sub-pattern namespace.
func (s *Sequencer) readInto(scanner *bufio.Scanner, offset *int, parser *lang.Parser, root *Sequencer) error {
	forSubpattern := s != root
	for scanner.Scan() {
		line := scanner.Text()
		lineOffset := *offset
		*offset += len(line) + 1

		evs, err := parser.ParseLine(lineOffset, line)
		if err != nil {
			tracklog.Log("parser", "cannot parse line: %v", err)
			continue
		}
		if len(evs) == 0 {
			continue
		}

		if forSubpattern {
			if _, ok := evs[0].(event.SubpatternEnd); ok {
				return nil
			}
		}
		if begin, ok := evs[0].(event.SubpatternBegin); ok {
			child := New()
			if err := child.readInto(scanner, offset, parser, root); err != nil {
				tracklog.Log("parser", "sub-pattern %q: %v", begin.Name, err)
			}
			root.subpatterns[begin.Name] = child
			continue
		}

		s.program = append(s.program, evs)
	}
	return scanner.Err()
}

// GetNextLine implements spec.md §4.5's loop-aware cursor walk: Loop and
// EndLoop rows update loopStack and are skipped rather than returned.
func (s *Sequencer) GetNextLine() []event.Event {
	for {
		if s.cursor >= len(s.program) {
			return nil
		}
		line := s.program[s.cursor]

		if len(line) == 1 {
			switch ev := line[0].(type) {
			case event.Loop:
				s.loopStack = append(s.loopStack, loopFrame{
					remaining:   ev.Count,
					infinite:    ev.Infinite,
					returnIndex: s.cursor,
				})
				s.cursor++
				continue
			case event.EndLoop:
				if len(s.loopStack) > 0 {
					top := &s.loopStack[len(s.loopStack)-1]
					loopsAgain := top.infinite
					if !loopsAgain {
						top.remaining--
						loopsAgain = top.remaining > 0
					}
					if loopsAgain {
						s.cursor = top.returnIndex
					} else {
						s.loopStack = s.loopStack[:len(s.loopStack)-1]
					}
				}
				s.cursor++
				continue
			}
		}

		s.cursor++
		return line
	}
}

// PlayOneLine implements spec.md §4.5's play_next_line: it accumulates
// lines until one of their events reports takes_time, executing every
// event along the way and maintaining the active bookkeeping. It
// returns false once the program is exhausted.
func (s *Sequencer) PlayOneLine(eng event.Engine) (bool, error) {
	for {
		line := s.GetNextLine()
		if line == nil {
			return false, nil
		}

		nextActive := newActive()
		tookTime := false

		for _, ev := range line {
			flow := ev.Execute(eng, s)

			column, hasColumn := columnOf(ev)
			if flow.SilencePrevious && hasColumn {
				s.active.stopAndClear(column, eng, s)
			}
			if flow.NeedsStopping && hasColumn {
				nextActive.append(column, ev)
			}
			if flow.TakesTime {
				tookTime = true
			}
		}

		for c, evs := range nextActive.columns {
			for _, ev := range evs {
				s.active.append(c, ev)
			}
		}

		if tookTime {
			s.currentTime += event.QuantFrames(eng, s)
			return true, nil
		}
	}
}

// columned is implemented by every event variant that occupies a column
// in a pattern row, i.e. every variant except Bar, Tempo, Loop, EndLoop
// and Wait.
type columned interface {
	ColumnIndex() int
}

func columnOf(ev event.Event) (int, bool) {
	c, ok := ev.(columned)
	if !ok {
		return 0, false
	}
	return c.ColumnIndex(), true
}
