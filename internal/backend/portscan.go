// Background MIDI output port discovery. Grounded on the teacher's
// midi/manager.go DeviceManager: a ticker-driven scan of GetOutPorts
// with a timeout guard against CoreMIDI hangs, repurposed from
// Launchpad hot-plug detection into logging and reporting the output
// ports available to the concrete RTMIDI backend.
package backend

import (
	"context"
	"strings"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"

	"texttracker/internal/tracklog"
)

// PortScanner periodically lists available MIDI output ports and warns
// when the currently connected output disappears (device unplugged).
type PortScanner struct {
	pollRate time.Duration
	watching string
}

// NewPortScanner returns a scanner that watches for the named output
// port (case-insensitive substring match, same rule as findOutPort).
func NewPortScanner(watching string) *PortScanner {
	return &PortScanner{pollRate: 2 * time.Second, watching: watching}
}

// ListOutPorts returns the current output port names, guarding against
// a hung MIDI subsystem the way the teacher's scan() does.
func ListOutPorts() []string {
	type result struct{ names []string }
	ch := make(chan result, 1)
	go func() {
		outs := gomidi.GetOutPorts()
		names := make([]string, len(outs))
		for i, o := range outs {
			names[i] = o.String()
		}
		ch <- result{names: names}
	}()

	select {
	case r := <-ch:
		return r.names
	case <-time.After(3 * time.Second):
		tracklog.Log("backend", "port scan timed out, MIDI subsystem may be hung")
		return nil
	}
}

// Run polls ListOutPorts until ctx is cancelled, logging whenever the
// watched port name appears or disappears from the system.
func (s *PortScanner) Run(ctx context.Context) {
	ticker := time.NewTicker(s.pollRate)
	defer ticker.Stop()

	present := s.watchedPresent()
	if s.watching != "" && !present {
		tracklog.Log("backend", "watched output %q not present at startup", s.watching)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := s.watchedPresent()
			if now != present {
				if now {
					tracklog.Log("backend", "watched output %q became available", s.watching)
				} else {
					tracklog.Log("backend", "watched output %q disappeared", s.watching)
				}
				present = now
			}
		}
	}
}

func (s *PortScanner) watchedPresent() bool {
	if s.watching == "" {
		return true
	}
	for _, name := range ListOutPorts() {
		if strings.Contains(strings.ToLower(name), strings.ToLower(s.watching)) {
			return true
		}
	}
	return false
}
