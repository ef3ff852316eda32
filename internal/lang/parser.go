package lang

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"texttracker/internal/event"
	"texttracker/internal/midimsg"
)

// ParseError carries the byte offset of the failing line within the
// stream, per spec.md §4.4/§7. The caller (Sequencer.ReadFromStream)
// logs "Cannot parse line: <text>" and continues with the next line;
// state mutations already made by the failing line are not rolled
// back.
type ParseError struct {
	Offset int
	Line   string
	cause  error
}

func (e *ParseError) Error() string {
	return errors.Wrapf(e.cause, "parse error at offset %d in line %q", e.Offset, e.Line).Error()
}

func (e *ParseError) Unwrap() error { return e.cause }

func parseErr(offset int, line string, cause error) error {
	return &ParseError{Offset: offset, Line: line, cause: cause}
}

// Parser turns pattern-language text into event.Event lists, one line
// at a time, carrying State between calls.
type Parser struct {
	engine      PortRegistry
	state       *State
	subpatterns SubpatternLookup
}

// New returns a Parser bound to the given port registry (for the
// "port" directive) with fresh state.
func New(engine PortRegistry) *Parser {
	return &Parser{engine: engine, state: NewState()}
}

// SetSubpatternLookup grants the Parser a non-owning back-reference to
// the sequencer resolving pattern-row sub-pattern names, established
// once the enclosing Sequencer exists (Sequencer.ReadFromStream does
// this before parsing its first line).
func (p *Parser) SetSubpatternLookup(l SubpatternLookup) { p.subpatterns = l }

// State exposes the parser's mutable state, e.g. so a sub-pattern's
// child Parser can share the same column map and aliases as the
// enclosing one.
func (p *Parser) State() *State { return p.state }

// SetState replaces the parser's state, used when constructing a
// sub-pattern's Parser sharing the enclosing stream's column map.
func (p *Parser) SetState(s *State) { p.state = s }

// ParseLine consumes one line of pattern-language text and returns its
// event list. An empty or comment-only line returns (nil, nil).
func (p *Parser) ParseLine(offset int, line string) ([]event.Event, error) {
	trimmed := strings.TrimRight(line, "\r\n")
	fields := strings.Fields(trimmed)
	if len(fields) == 0 {
		return nil, nil
	}
	if strings.HasPrefix(fields[0], ";") {
		return nil, nil
	}

	if strings.HasPrefix(trimmed, "-") {
		return p.parseBar(offset, trimmed)
	}

	switch fields[0] {
	case "define":
		if len(fields) < 2 {
			return nil, parseErr(offset, line, errors.New("define requires a name"))
		}
		return []event.Event{event.SubpatternBegin{Name: fields[1]}}, nil
	case "end":
		return []event.Event{event.SubpatternEnd{}}, nil
	case "default":
		return nil, p.parseDefault(offset, line, fields[1:])
	case "volume":
		return nil, p.parseVolume(offset, line, fields[1:])
	case "tempo":
		return p.parseTempo(offset, line, fields[1:])
	case "transpose":
		return nil, p.parseTranspose(offset, line, fields[1:])
	case "wait":
		return p.parseWait(offset, line, fields[1:])
	case "port":
		return nil, p.parsePort(offset, line, fields[1:])
	case "alias":
		return nil, p.parseAlias(offset, line, fields[1:])
	case "loop":
		return p.parseLoop(offset, line, fields[1:])
	case "endloop":
		return []event.Event{event.EndLoop{}}, nil
	default:
		return p.parseRow(offset, line, fields)
	}
}

func (p *Parser) parseBar(offset int, line string) ([]event.Event, error) {
	rest := strings.TrimLeft(line, "-")
	fields := strings.Fields(rest)

	nom, div := 0, 0
	if len(fields) > 0 {
		if n, d, ok := splitNomDiv(fields[0]); ok {
			nom, div = n, d
			fields = fields[1:]
		}
	}

	for _, tok := range fields {
		if len(tok) < 2 {
			continue
		}
		sign, ok := signFor(tok[0])
		if !ok {
			continue
		}
		pc, err := notePitchClass(tok[1])
		if err != nil {
			continue
		}
		p.state.signs[pc] = sign
	}

	return []event.Event{event.Bar{Nom: nom, Div: div}}, nil
}

// splitNomDiv parses "N/D" or "N" (div stays 0) from a bar's leading
// numerator/divisor token, on any single separator byte.
func splitNomDiv(tok string) (nom, div int, ok bool) {
	for i := 0; i < len(tok); i++ {
		c := tok[i]
		if c < '0' || c > '9' {
			n, err1 := strconv.Atoi(tok[:i])
			d, err2 := strconv.Atoi(tok[i+1:])
			if err1 == nil && err2 == nil {
				return n, d, true
			}
			return 0, 0, false
		}
	}
	n, err := strconv.Atoi(tok)
	if err != nil {
		return 0, 0, false
	}
	return n, 0, true
}

func signFor(c byte) (int8, bool) {
	switch c {
	case '#':
		return 1, true
	case 'b', '&':
		return -1, true
	case 'n':
		return 0, true
	}
	return 0, false
}

func notePitchClass(c byte) (int, error) {
	pc, ok := pitchClass[lower(c)]
	if !ok {
		return 0, errors.Errorf("not a pitch letter: %q", c)
	}
	return pc, nil
}

func lower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}

func (p *Parser) parseDefault(offset int, line string, fields []string) error {
	if len(fields) == 0 {
		return parseErr(offset, line, errors.New("default requires a note"))
	}
	n, err := p.parseNoteToken(0, strings.Join(fields, ""))
	if err != nil {
		return parseErr(offset, line, err)
	}
	p.state.defaultNote.pitch = n.Pitch
	p.state.defaultNote.volume = n.Volume
	p.state.defaultNote.timeMS = n.TimeMS
	p.state.defaultNote.delayMS = n.DelayMS
	return nil
}

func (p *Parser) parseVolume(offset int, line string, fields []string) error {
	if len(fields) == 0 {
		return parseErr(offset, line, errors.New("volume requires a value"))
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return parseErr(offset, line, err)
	}
	p.state.volume = byte(n)
	return nil
}

func (p *Parser) parseTempo(offset int, line string, fields []string) ([]event.Event, error) {
	if len(fields) == 0 {
		return nil, parseErr(offset, line, errors.New("tempo requires a value"))
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, parseErr(offset, line, err)
	}
	return []event.Event{event.Tempo{BPM: n}}, nil
}

func (p *Parser) parseTranspose(offset int, line string, fields []string) error {
	if len(fields) == 0 {
		return parseErr(offset, line, errors.New("transpose requires a value"))
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return parseErr(offset, line, err)
	}
	p.state.transpose = n
	return nil
}

func (p *Parser) parseWait(offset int, line string, fields []string) ([]event.Event, error) {
	if len(fields) == 0 {
		return nil, parseErr(offset, line, errors.New("wait requires a value"))
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, parseErr(offset, line, err)
	}
	return []event.Event{event.Wait{N: n}}, nil
}

// parsePort handles `port A [B] NAME [CH] [DEST]`. A and B are 0-based
// column indices, consistent with this parser's 0-based pattern
// columns (the original's `port` directive is 1-based internally).
func (p *Parser) parsePort(offset int, line string, fields []string) error {
	if len(fields) < 2 {
		return parseErr(offset, line, errors.New("port requires at least a column and a name"))
	}

	a, err := strconv.Atoi(fields[0])
	if err != nil {
		return parseErr(offset, line, err)
	}
	rest := fields[1:]

	b := a
	if len(rest) > 0 {
		if n, err := strconv.Atoi(rest[0]); err == nil {
			b = n
			rest = rest[1:]
		}
	}

	if len(rest) == 0 {
		return parseErr(offset, line, errors.New("port requires a name"))
	}
	name := rest[0]
	rest = rest[1:]

	channel := uint8(0)
	if len(rest) > 0 {
		if n, err := strconv.Atoi(rest[0]); err == nil {
			channel = uint8(n)
			rest = rest[1:]
		}
	}

	handle, err := p.engine.RegisterOutputPort(name)
	if err != nil {
		return parseErr(offset, line, err)
	}
	p.engine.SetPortChannel(name, channel)
	p.state.setPortMap(a, b, midimsg.PortMap{Channel: channel, Port: handle})

	if len(rest) > 0 {
		p.engine.ConnectPort(name, rest[0])
	}
	return nil
}

func (p *Parser) parseAlias(offset int, line string, fields []string) error {
	if len(fields) == 0 {
		return parseErr(offset, line, errors.New("alias requires a name"))
	}
	name := fields[0]
	if len(fields) == 1 {
		delete(p.state.aliases, name)
		return nil
	}
	p.state.aliases[name] = strings.Join(fields[1:], " ")
	return nil
}

func (p *Parser) parseLoop(offset int, line string, fields []string) ([]event.Event, error) {
	if len(fields) == 0 {
		return []event.Event{event.Loop{Infinite: true}}, nil
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, parseErr(offset, line, err)
	}
	return []event.Event{event.Loop{Count: n}}, nil
}

// parseRow parses a pattern row: tokens occupy successive columns,
// except tokens grouped by ( ) which share the current column.
func (p *Parser) parseRow(offset int, line string, fields []string) ([]event.Event, error) {
	var events []event.Event
	column := 0
	grouping := false

	for _, raw := range fields {
		tok := raw
		if strings.HasPrefix(tok, ";") {
			break
		}

		openGroup := strings.HasPrefix(tok, "(")
		closeGroup := strings.HasSuffix(tok, ")")
		tok = strings.TrimPrefix(tok, "(")
		tok = strings.TrimSuffix(tok, ")")
		if openGroup {
			grouping = true
		}

		if tok != "" {
			tok = p.expandAlias(tok)
			ev, err := p.parseToken(column, tok)
			if err != nil {
				return nil, parseErr(offset, line, err)
			}
			if ev != nil {
				events = append(events, ev)
			}
		}

		if closeGroup {
			grouping = false
			column++
		} else if !grouping {
			column++
		}
	}

	return events, nil
}

// expandAlias replaces the prefix of tok up to the first modifier
// character with its aliased expansion, per spec.md §4.4.
func (p *Parser) expandAlias(tok string) string {
	cut := strings.IndexAny(tok, "!%@/\\#.")
	prefix, suffix := tok, ""
	if cut >= 0 {
		prefix, suffix = tok[:cut], tok[cut:]
	}
	if repl, ok := p.state.aliases[prefix]; ok {
		return repl + suffix
	}
	return tok
}

// parseToken recognizes one pattern-row token per spec.md §4.4's
// dispatch order.
func (p *Parser) parseToken(column int, tok string) (event.Event, error) {
	switch tok {
	case ".":
		return event.Skip{Column: column}, nil
	case "|":
		last := p.state.lastNote[column]
		if last == nil {
			return nil, errors.Errorf("pedal on column %d with no preceding note", column)
		}
		return event.Pedal{Column: column, Ref: last}, nil
	case "*":
		n := p.cloneDefaultNote(column)
		p.state.lastNote[column] = n
		return n, nil
	case "^":
		last := p.state.lastNote[column]
		if last == nil {
			return nil, errors.Errorf("re-trigger on column %d with no preceding note", column)
		}
		return last, nil
	}

	if strings.HasPrefix(tok, "$") {
		return p.parseCtl(column, tok)
	}

	if p.subpatterns != nil {
		if sub, ok := p.subpatterns.LookupSubpattern(tok); ok {
			return event.SubpatternPlay{Column: column, Sub: sub}, nil
		}
	}

	n, err := p.parseNoteToken(column, tok)
	if err != nil {
		return nil, err
	}
	p.state.lastNote[column] = n
	return n, nil
}

func (p *Parser) cloneDefaultNote(column int) *event.Note {
	pm := p.state.portMapFor(column)
	d := p.state.defaultNote
	return &event.Note{
		Column:  column,
		Pitch:   d.pitch,
		Volume:  d.volume,
		DelayMS: d.delayMS,
		TimeMS:  d.timeMS,
		PartDelay: d.partDelay,
		PartTime:  d.partTime,
		PartDiv:   d.partDiv,
		Endless:   d.endless,
		Channel:   pm.Channel,
		Port:      pm.Port,
	}
}
