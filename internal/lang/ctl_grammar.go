package lang

import (
	"strings"

	"github.com/pkg/errors"

	"texttracker/internal/event"
)

// parseCtl parses `$[pb|N]=V1[..V2][..STEP][:TIME][+DELAY][/DELAYDIV]`.
func (p *Parser) parseCtl(column int, tok string) (event.Event, error) {
	i := 1 // skip '$'

	m := event.MidiCtl{Column: column, DelayDiv: 1, InitValue: event.UnsetInitValue}

	if strings.HasPrefix(strings.ToLower(tok[i:]), "pb") {
		m.Kind = event.CtlPitchBend
		i += 2
	} else {
		v, next, err := readInt(tok, i)
		if err != nil {
			return nil, errors.Wrap(err, "expected controller number after $")
		}
		m.Kind = event.CtlControl
		m.Controller = byte(v)
		i = next
	}

	if i >= len(tok) || tok[i] != '=' {
		return nil, errors.Errorf("expected '=' in midi control token %q", tok)
	}
	i++

	v1, next, err := readInt(tok, i)
	if err != nil {
		return nil, errors.Wrap(err, "expected init value")
	}
	m.InitValue = int(v1)
	m.Value = int(v1)
	i = next

	if strings.HasPrefix(tok[i:], "..") {
		i += 2
		v2, next, err := readInt(tok, i)
		if err != nil {
			return nil, errors.Wrap(err, "expected value after '..'")
		}
		m.Value = int(v2)
		i = next

		if strings.HasPrefix(tok[i:], "..") {
			i += 2
			step, next, err := readInt(tok, i)
			if err != nil {
				return nil, errors.Wrap(err, "expected step after second '..'")
			}
			m.Step = int(step)
			i = next
		}
	}

	for i < len(tok) {
		c := tok[i]
		i++
		v, next, err := readInt(tok, i)
		if err != nil {
			return nil, errors.Wrapf(err, "modifier %q in midi control token %q", c, tok)
		}
		i = next

		switch c {
		case ':':
			m.Time = v
		case '+':
			m.Delay = v
		case '/':
			m.DelayDiv = v
		default:
			return nil, errors.Errorf("unexpected modifier %q in midi control token %q", c, tok)
		}
	}

	pm := p.state.portMapFor(column)
	m.Channel = pm.Channel
	m.Port = pm.Port
	return m, nil
}
