// Package player implements the top-level driver of spec.md §4.6: it
// alternates sequencer.PlayOneLine calls with a drain phase and observes
// a shutdown flag shared with the process's signal handler.
//
// Grounded on the teacher's DeviceManager.scan poll-loop shape (a
// ticker-free, sleep-driven loop with an explicit exit condition
// checked each pass) generalized from device hot-plug polling to
// program-walking and ring drain waiting.
package player

import (
	"sync/atomic"
	"time"

	"texttracker/internal/event"
)

// DefaultDrainSleep and DefaultFinalSleep are spec.md §4.6's "short
// interval"/"short sleep", concrete values chosen to comfortably exceed
// one audio cycle at typical buffer sizes without perceptibly delaying
// shutdown.
const (
	DefaultDrainSleep = 5 * time.Millisecond
	DefaultFinalSleep = 20 * time.Millisecond
)

// Engine is the subset of the AudioEngine the player needs beyond what
// it hands to the sequencer.
type Engine interface {
	event.Engine
	HasPending() bool
	StopSounds()
}

// Sequencer is the subset of event.Sequencer the player drives directly.
type Sequencer interface {
	PlayOneLine(eng event.Engine) (bool, error)
	Silence(eng event.Engine)
}

// Player runs the top-level playback loop until the program is
// exhausted or Stop is called from a signal handler.
type Player struct {
	Engine Engine
	Seq    Sequencer

	DrainSleep time.Duration
	FinalSleep time.Duration

	playing atomic.Bool
}

// New returns a Player with spec.md's default drain/final sleep
// intervals.
func New(eng Engine, seq Sequencer) *Player {
	return &Player{
		Engine:     eng,
		Seq:        seq,
		DrainSleep: DefaultDrainSleep,
		FinalSleep: DefaultFinalSleep,
	}
}

// Stop clears the playing flag, observed by Run between lines and
// during the drain phase. Safe to call from a signal handler.
func (p *Player) Stop() { p.playing.Store(false) }

// Playing reports whether Run's loop is still active.
func (p *Player) Playing() bool { return p.playing.Load() }

// Run walks the sequencer's program to completion (or until Stop is
// called), silences any note still active on a column (so a terminal
// bare note gets its own NOTE_OFF rather than only the blunt teardown
// All Sound Off), drains the engine's queued messages, then requests
// the engine stop all sound.
func (p *Player) Run() error {
	p.playing.Store(true)

	for p.playing.Load() {
		ok, err := p.Seq.PlayOneLine(p.Engine)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
	}

	p.Seq.Silence(p.Engine)

	for p.Engine.HasPending() && p.playing.Load() {
		time.Sleep(p.DrainSleep)
	}
	time.Sleep(p.FinalSleep)

	p.playing.Store(false)
	p.Engine.StopSounds()
	return nil
}
