// Package midimsg defines the wire-level value types shared by every
// stage of the scheduling pipeline: the timestamped MIDI payload that
// flows from the sequencer down through the heap and ring buffer, and the
// per-column channel/port routing used to build one.
package midimsg

import "fmt"

// Status byte categories. The low nibble of these carries the channel.
const (
	StatusNoteOff   byte = 0x80
	StatusNoteOn    byte = 0x90
	StatusControl   byte = 0xB0
	StatusPitchBend byte = 0xE0
)

// AllSoundOff is the CC number used by stop_sounds.
const AllSoundOff byte = 0x7B

// Port is an opaque handle to a registered output port. The zero value
// means "the engine's default output port". Concrete backends define
// their own comparable handle type and box it here.
type Port interface{}

// PortMap resolves a pattern-language column to a MIDI channel and an
// output port. The default PortMap is {0, nil}.
type PortMap struct {
	Channel uint8
	Port    Port
}

// Message is a 1-3 byte MIDI payload bound to an absolute frame time and
// an output port. Len is always 1, 2 or 3; bytes beyond Len are zero.
type Message struct {
	Data [3]byte
	Len  int
	Time int64
	Port Port
}

// New builds a Message, filling in the channel nibble when the status
// byte falls in the channel-voice range 0x80..0xEF. Status bytes outside
// that range (e.g. system messages) are left unchanged.
func New(status byte, data1, data2 byte, len int, channel uint8, t int64, port Port) Message {
	if status >= 0x80 && status <= 0xEF {
		status = (status & 0xF0) | (channel & 0x0F)
	}
	m := Message{Len: len, Time: t, Port: port}
	m.Data[0] = status
	if len > 1 {
		m.Data[1] = data1
	}
	if len > 2 {
		m.Data[2] = data2
	}
	return m
}

// NoteOn builds a 3-byte note-on message.
func NoteOn(note, velocity byte, channel uint8, t int64, port Port) Message {
	return New(StatusNoteOn, note, velocity, 3, channel, t, port)
}

// NoteOff builds a 3-byte note-off message (velocity 0).
func NoteOff(note byte, channel uint8, t int64, port Port) Message {
	return New(StatusNoteOff, note, 0, 3, channel, t, port)
}

// Control builds a 3-byte control-change message.
func Control(controller, value byte, channel uint8, t int64, port Port) Message {
	return New(StatusControl, controller, value, 3, channel, t, port)
}

// PitchBend builds a 3-byte pitch-bend message from a 14-bit value.
func PitchBend(value uint16, channel uint8, t int64, port Port) Message {
	return New(StatusPitchBend, byte(value&0x7F), byte((value>>7)&0x7F), 3, channel, t, port)
}

// AllSoundOffMsg builds the CC 0x7B message stop_sounds injects directly
// into the ring buffer, bypassing the heap.
func AllSoundOffMsg(channel uint8, t int64, port Port) Message {
	return New(StatusControl, AllSoundOff, 0, 3, channel, t, port)
}

// Less orders two messages by (time, port) lexicographically. Port
// ordering is a stability tiebreak only: it must be a total order but
// need not be meaningful, so we compare the handles' string forms.
func Less(a, b Message) bool {
	if a.Time != b.Time {
		return a.Time < b.Time
	}
	return portKey(a.Port) < portKey(b.Port)
}

// portKey gives ports a total order for the heap's stability tiebreak.
// The spec allows pointer bits for this; %p on the boxed handle gives us
// exactly that without the backend needing to implement anything extra.
func portKey(p Port) string {
	if p == nil {
		return ""
	}
	return fmt.Sprintf("%p", p)
}
