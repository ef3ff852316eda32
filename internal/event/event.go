// Package event implements the tagged set of musical events and their
// execute/stop/sustain contract. Every variant is a Go struct
// implementing the Event interface below — a sum type expressed as an
// interface, in place of the teacher's runtime type-switch heavy
// controller/session code, which this package has no direct analogue
// for since the teacher never modeled a scheduled program of its own.
package event

import "texttracker/internal/midimsg"

// ControlFlow is the result of Execute: three independent flags the
// sequencer inspects after each event on a line.
type ControlFlow struct {
	TakesTime       bool
	SilencePrevious bool
	NeedsStopping   bool
}

// Engine is the subset of the AudioEngine that events need. Satisfied
// by *texttracker/internal/engine.Engine; kept as an interface here so
// this package never imports engine (which would cycle back through
// sequencer).
type Engine interface {
	Queue(msg midimsg.Message) error
	MsToFrames(ms int64) int64
	CurrentFrameTime() int64
}

// Sequencer is the subset of sequencer state and behavior events need
// to mutate or drive. Satisfied by *texttracker/internal/sequencer.Sequencer.
type Sequencer interface {
	Tempo() int
	SetTempo(bpm int)
	Quant() int
	SetQuant(quant int)
	CurrentTime() int64
	SetCurrentTime(t int64)
	AdvanceOneQuant(eng Engine)
	SustainActive(eng Engine)
	PlayOneLine(eng Engine) (bool, error)
	Silence(eng Engine)
	ResetCursor()
}

// Event is the common interface every pattern-language event
// implements. Column is common to every variant that occupies a
// column in a pattern row; variants that don't (Bar, Tempo, Loop,
// EndLoop, Wait) ignore it.
type Event interface {
	// Execute performs the event's primary action against the shared
	// engine and the owning sequencer.
	Execute(eng Engine, seq Sequencer) ControlFlow
	// Stop is called when the sequencer silences this event, e.g. a
	// new line starts on the same column without a pedal.
	Stop(eng Engine, seq Sequencer)
	// Sustain is called when the event should be prolonged (pedal,
	// wait).
	Sustain(eng Engine, seq Sequencer)
}

// QuantFrames computes ms_to_frames(60000 / tempo / quant), rounding
// at both integer division boundaries in millisecond domain before
// converting to frames. This is coarser than a single floating-point
// conversion would be; spec-mandated for test determinism. Exported so
// the sequencer package can use the identical formula for Wait's
// per-quant time advance.
func QuantFrames(eng Engine, seq Sequencer) int64 {
	ms := int64(60000 / seq.Tempo() / seq.Quant())
	return eng.MsToFrames(ms)
}

func quantFrames(eng Engine, seq Sequencer) int64 { return QuantFrames(eng, seq) }

// baseEvent implements the zero-flag, no-op Stop/Sustain shared by
// every variant that doesn't override them.
type baseEvent struct{}

func (baseEvent) Stop(Engine, Sequencer)    {}
func (baseEvent) Sustain(Engine, Sequencer) {}
