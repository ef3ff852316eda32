package backend

import "testing"

func TestMockRegisterOutputPortIdempotent(t *testing.T) {
	m := NewMock(48000, 256)
	p1, err := m.RegisterOutputPort("synth")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	p2, err := m.RegisterOutputPort("synth")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if p1 != p2 {
		t.Fatalf("expected same handle for repeated registration")
	}
}

func TestMockCycleInvokesCallbackWithBufferSize(t *testing.T) {
	m := NewMock(48000, 128)
	var gotN int
	m.SetProcessCallback(func(nframes int) int {
		gotN = nframes
		return 0
	})
	if status := m.Cycle(); status != 0 {
		t.Fatalf("expected status 0, got %d", status)
	}
	if gotN != 128 {
		t.Fatalf("expected nframes 128, got %d", gotN)
	}
	if got := m.CurrentFrameTime(); got != 128 {
		t.Fatalf("expected frame time 128 after one cycle, got %d", got)
	}
}

func TestMockPortBufferReserveRecordsEvents(t *testing.T) {
	m := NewMock(48000, 64)
	port, _ := m.RegisterOutputPort("out")
	buf, err := m.PortBuffer(port, 64)
	if err != nil {
		t.Fatalf("port buffer: %v", err)
	}
	data, err := buf.Reserve(10, 3)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	copy(data, []byte{0x90, 0x40, 0x7f})

	events := m.Events(port)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Offset != 10 {
		t.Fatalf("expected offset 10, got %d", events[0].Offset)
	}
	if events[0].Data[0] != 0x90 {
		t.Fatalf("expected data written through reserved slice")
	}
}

func TestMockFailNextReserveTriggersError(t *testing.T) {
	m := NewMock(48000, 64)
	port, _ := m.RegisterOutputPort("out")
	m.FailNextReserve(port, 1)
	buf, _ := m.PortBuffer(port, 64)

	if _, err := buf.Reserve(0, 3); err != nil {
		t.Fatalf("first reserve should succeed, got %v", err)
	}
	if _, err := buf.Reserve(1, 3); err == nil {
		t.Fatalf("expected second reserve to fail")
	}
}

func TestMockClearResetsEvents(t *testing.T) {
	m := NewMock(48000, 64)
	port, _ := m.RegisterOutputPort("out")
	buf, _ := m.PortBuffer(port, 64)
	buf.Reserve(0, 2)
	buf.Clear()
	if got := m.Events(port); len(got) != 0 {
		t.Fatalf("expected events cleared, got %d", len(got))
	}
}
