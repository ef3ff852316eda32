package sequencer

import "texttracker/internal/event"

// active tracks, per column, the events currently sounding on that
// column and awaiting a stop call — spec.md §4.5's `active` vector.
// Grounded on the teacher's Track: a small per-column slot addressed by
// index, grown on demand, with a forwarding accessor rather than a fixed
// array sized up front.
type active struct {
	columns [][]event.Event
}

func newActive() *active {
	return &active{}
}

func (a *active) grow(column int) {
	for len(a.columns) <= column {
		a.columns = append(a.columns, nil)
	}
}

func (a *active) append(column int, ev event.Event) {
	a.grow(column)
	a.columns[column] = append(a.columns[column], ev)
}

// stopAndClear calls Stop on every event in column and empties it.
func (a *active) stopAndClear(column int, eng event.Engine, seq event.Sequencer) {
	if column >= len(a.columns) {
		return
	}
	for _, ev := range a.columns[column] {
		ev.Stop(eng, seq)
	}
	a.columns[column] = nil
}

// stopAll calls Stop on every active event across every column and
// clears the whole structure, per spec.md §4.5's `silence()`.
func (a *active) stopAll(eng event.Engine, seq event.Sequencer) {
	for c := range a.columns {
		a.stopAndClear(c, eng, seq)
	}
}

// all returns every currently active event across every column, in
// column order, for Wait's sustain fan-out.
func (a *active) all() []event.Event {
	var out []event.Event
	for _, col := range a.columns {
		out = append(out, col...)
	}
	return out
}
