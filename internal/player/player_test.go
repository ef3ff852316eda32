package player

import (
	"testing"
	"time"

	"texttracker/internal/event"
	"texttracker/internal/midimsg"
)

type fakeEngine struct {
	pending    int
	stopped    bool
	stopCalled int
}

func (f *fakeEngine) Queue(midimsg.Message) error { return nil }
func (f *fakeEngine) MsToFrames(ms int64) int64   { return ms }
func (f *fakeEngine) CurrentFrameTime() int64     { return 0 }
func (f *fakeEngine) HasPending() bool            { return f.pending > 0 }
func (f *fakeEngine) StopSounds()                 { f.stopped = true; f.stopCalled++ }

// fakeSequencer plays exactly `lines` lines before reporting end of
// program, sleeping `delay` (if set) before each line.
type fakeSequencer struct {
	lines    int
	played   int
	silenced int
	delay    time.Duration
}

func (s *fakeSequencer) PlayOneLine(event.Engine) (bool, error) {
	if s.played >= s.lines {
		return false, nil
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.played++
	return true, nil
}

func (s *fakeSequencer) Silence(event.Engine) {
	s.silenced++
}

func TestRunPlaysToCompletionAndStopsSounds(t *testing.T) {
	eng := &fakeEngine{}
	seq := &fakeSequencer{lines: 3}
	p := New(eng, seq)
	p.DrainSleep = time.Millisecond
	p.FinalSleep = time.Millisecond

	if err := p.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if seq.played != 3 {
		t.Fatalf("expected all 3 lines played, got %d", seq.played)
	}
	if seq.silenced != 1 {
		t.Fatalf("expected Silence to be called once, got %d", seq.silenced)
	}
	if !eng.stopped {
		t.Fatalf("expected StopSounds to be called")
	}
	if p.Playing() {
		t.Fatalf("expected playing to be false after Run returns")
	}
}

func TestRunDrainsWhilePending(t *testing.T) {
	eng := &fakeEngine{pending: 2}
	seq := &fakeSequencer{lines: 1}
	p := New(eng, seq)
	p.DrainSleep = time.Millisecond
	p.FinalSleep = time.Millisecond

	done := make(chan error, 1)
	go func() {
		done <- p.Run()
	}()

	time.Sleep(5 * time.Millisecond)
	eng.pending = 0

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after pending cleared")
	}
}

func TestStopHaltsRunEarly(t *testing.T) {
	eng := &fakeEngine{}
	seq := &fakeSequencer{lines: 1000000, delay: time.Millisecond}
	p := New(eng, seq)
	p.DrainSleep = time.Millisecond
	p.FinalSleep = time.Millisecond

	go func() {
		time.Sleep(2 * time.Millisecond)
		p.Stop()
	}()

	if err := p.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if seq.played >= seq.lines {
		t.Fatalf("expected Stop to interrupt playback before the program finished")
	}
}
