// Package lang implements the pattern-language parser: the
// line-oriented interpreter that turns pattern-language text into
// event.Event lists, carrying state (defaults, accidentals, aliases,
// column→port map, transpose) between calls the way the teacher's
// Launchpad grid state persisted across button events.
//
// Grounded on cbegin-mmlfm-go's internal/mml/parser.go: an
// index-scanning tokenizer with a persistent parse-state struct and
// small parseX(input, i, state) -> (value, nextIndex, error) helpers,
// adapted from a whole-input MML compiler into a line-at-a-time
// pattern-row/directive dispatcher.
package lang

import (
	"texttracker/internal/event"
	"texttracker/internal/midimsg"
)

// pitchClass maps a pitch letter to its semitone offset within an
// octave, per spec.md §4.4's table.
var pitchClass = map[byte]int{
	'c': 0, 'd': 2, 'e': 4, 'f': 5, 'g': 7, 'a': 9, 'b': 11,
}

// PortRegistry is the subset of the AudioEngine the "port" directive
// needs: register a named output, remember the channel it was last
// assigned (so stop_sounds can target it), and optionally connect it
// downstream. Satisfied by *texttracker/internal/engine.Engine.
type PortRegistry interface {
	RegisterOutputPort(name string) (midimsg.Port, error)
	SetPortChannel(name string, channel uint8)
	ConnectPort(src, dst string)
}

// SubpatternLookup resolves a name defined by an earlier `define ...
// end` block to its sequencer, so a bare pattern-row token matching a
// known sub-pattern name can be recognized as a SubpatternPlay rather
// than falling through to note parsing. Satisfied by
// *texttracker/internal/sequencer.Sequencer; granted to the Parser as a
// non-owning back-reference, per spec.md's "Cyclic references" note —
// the Parser never constructs or owns a Sequencer.
type SubpatternLookup interface {
	LookupSubpattern(name string) (event.Sequencer, bool)
}

// noteDefaults is the parser's carried "default note" template, copied
// into every bare `*` token and used as the base for `default NOTE`.
type noteDefaults struct {
	pitch     byte
	volume    byte
	delayMS   int64
	timeMS    int64
	partDelay int64
	partTime  int64
	partDiv   int64
	endless   bool
}

// State is the parser state carried between ParseLine calls on the
// same stream, per spec.md §3's "Parser state" entry.
type State struct {
	lastNote  map[int]*event.Note
	defaultNote noteDefaults
	volume    byte
	signs     [12]int8 // -1, 0, +1 per pitch class
	aliases   map[string]string
	columnMap []midimsg.PortMap // index = column
	transpose int
}

// NewState returns a State with the pattern language's documented
// defaults: default octave 4 (pitch class C, i.e. MIDI 60), volume 64
// (0x40).
func NewState() *State {
	return &State{
		lastNote: make(map[int]*event.Note),
		defaultNote: noteDefaults{
			pitch:   60,
			volume:  64,
			partDiv: 1,
		},
		volume:  64,
		aliases: make(map[string]string),
	}
}

// portMapFor returns the channel/port for a column, defaulting to
// {0, nil} for columns never assigned by a "port" directive.
func (s *State) portMapFor(column int) midimsg.PortMap {
	if column < len(s.columnMap) {
		return s.columnMap[column]
	}
	return midimsg.PortMap{}
}

// setPortMap grows columnMap as needed and assigns [a, b] to pm.
func (s *State) setPortMap(a, b int, pm midimsg.PortMap) {
	if b < a {
		a, b = b, a
	}
	for len(s.columnMap) <= b {
		s.columnMap = append(s.columnMap, midimsg.PortMap{})
	}
	for c := a; c <= b; c++ {
		s.columnMap[c] = pm
	}
}
