package midimsg

import "testing"

type fakePort struct{ name string }

func TestNewFillsChannelNibble(t *testing.T) {
	m := New(StatusNoteOn, 60, 100, 3, 5, 0, nil)
	if m.Data[0] != 0x95 {
		t.Fatalf("expected status 0x95, got 0x%02x", m.Data[0])
	}
	if m.Data[0]&0xF0 != StatusNoteOn {
		t.Fatalf("expected category preserved, got 0x%02x", m.Data[0]&0xF0)
	}
}

func TestNewLeavesSystemStatusUnchanged(t *testing.T) {
	m := New(0xF0, 1, 2, 3, 5, 0, nil)
	if m.Data[0] != 0xF0 {
		t.Fatalf("expected system status untouched, got 0x%02x", m.Data[0])
	}
}

func TestShortMessageZerosTrailingBytes(t *testing.T) {
	m := New(StatusControl, 7, 0, 2, 0, 0, nil)
	if m.Len != 2 {
		t.Fatalf("expected len 2, got %d", m.Len)
	}
	if m.Data[2] != 0 {
		t.Fatalf("expected trailing byte zero, got %d", m.Data[2])
	}
}

func TestLessOrdersByTimeThenPort(t *testing.T) {
	a := Message{Time: 10, Port: &fakePort{"a"}}
	b := Message{Time: 20, Port: &fakePort{"b"}}
	if !Less(a, b) {
		t.Fatalf("expected a < b by time")
	}
	if Less(b, a) {
		t.Fatalf("expected b not < a")
	}
}

func TestLessTiebreaksOnPortAtEqualTime(t *testing.T) {
	p1 := &fakePort{"1"}
	p2 := &fakePort{"2"}
	a := Message{Time: 5, Port: p1}
	b := Message{Time: 5, Port: p2}
	// exactly one direction must hold, and it must be consistent with portKey
	if Less(a, b) == Less(b, a) {
		t.Fatalf("expected exactly one order to hold for distinct ports at equal time")
	}
}

func TestNoteOnNoteOffHelpers(t *testing.T) {
	on := NoteOn(60, 100, 2, 0, nil)
	if on.Data[0] != 0x92 || on.Data[1] != 60 || on.Data[2] != 100 {
		t.Fatalf("unexpected note-on bytes: %v", on.Data)
	}
	off := NoteOff(60, 2, 0, nil)
	if off.Data[0] != 0x82 || off.Data[2] != 0 {
		t.Fatalf("unexpected note-off bytes: %v", off.Data)
	}
}

func TestPitchBendEncoding(t *testing.T) {
	m := PitchBend(0x2000, 0, 0, nil)
	if m.Data[0] != StatusPitchBend {
		t.Fatalf("expected pitch bend status, got 0x%02x", m.Data[0])
	}
	if m.Data[1] != 0x00 || m.Data[2] != 0x40 {
		t.Fatalf("expected LSB=0x00 MSB=0x40, got %02x %02x", m.Data[1], m.Data[2])
	}
}
