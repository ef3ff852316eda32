package lang

import (
	"github.com/pkg/errors"

	"texttracker/internal/event"
)

// parseNoteToken parses a bare note token: pitch letter, optional
// accidental, optional octave digit, then a free-form run of
// modifiers, per spec.md §4.4.
func (p *Parser) parseNoteToken(column int, tok string) (*event.Note, error) {
	if len(tok) == 0 {
		return nil, errors.New("empty note token")
	}

	i := 0
	pc, ok := pitchClass[lower(tok[i])]
	if !ok {
		return nil, errors.Errorf("not a note: %q", tok)
	}
	i++

	pitch := pc
	natural := false
	if i < len(tok) {
		switch tok[i] {
		case '#':
			pitch++
			i++
		case 'b', '&':
			pitch--
			i++
		case 'n':
			natural = true
			i++
		}
	}

	octave := 4
	if i < len(tok) && tok[i] >= '0' && tok[i] <= '9' {
		octave = int(tok[i] - '0')
		i++
	}
	pitch += (octave + 1) * 12

	n := &event.Note{PartDiv: 1}
	hasVolume := false

	for i < len(tok) {
		c := tok[i]
		i++
		switch c {
		case '.':
			n.Endless = true
			continue
		}

		v, next, err := readInt(tok, i)
		if err != nil {
			return nil, errors.Wrapf(err, "modifier %q in note %q", c, tok)
		}
		i = next

		switch c {
		case '@':
			n.TimeMS = v
		case '%':
			n.DelayMS = v
		case '+':
			n.PartDelay = v
		case '/':
			n.PartDiv = v
		case ':':
			n.PartTime = v
		case '!':
			n.Volume = byte(v)
			hasVolume = true
		default:
			return nil, errors.Errorf("unexpected modifier %q in note %q", c, tok)
		}
	}

	if !hasVolume {
		n.Volume = p.state.volume
	}
	if !natural {
		pitch += int(p.state.signs[((pitch%12)+12)%12])
	}
	pitch += p.state.transpose

	n.Pitch = byte(pitch)
	n.Column = column
	pm := p.state.portMapFor(column)
	n.Channel = pm.Channel
	n.Port = pm.Port
	return n, nil
}

// readInt reads a run of decimal digits (with an optional leading '-')
// starting at i, returning the parsed value and the index just past it.
func readInt(s string, i int) (int64, int, error) {
	start := i
	if i < len(s) && s[i] == '-' {
		i++
	}
	digitsStart := i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == digitsStart {
		return 0, start, errors.Errorf("expected a number at %q", s[start:])
	}

	neg := s[start] == '-'
	var v int64
	for j := digitsStart; j < i; j++ {
		v = v*10 + int64(s[j]-'0')
	}
	if neg {
		v = -v
	}
	return v, i, nil
}
