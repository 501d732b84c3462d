package spp

import (
	"bytes"
	"errors"
	"testing"

	"example.com/pvdxlink/internal/wire"
)

func encodeAll(t *testing.T, pkts ...Packet) []byte {
	t.Helper()
	var buf []byte
	for _, p := range pkts {
		raw, err := Encode(p)
		if err != nil {
			t.Fatalf("Encode returned error: %v", err)
		}
		buf = append(buf, raw...)
	}
	return buf
}

func mustPacket(t *testing.T, apid uint16, count uint16, data []byte) Packet {
	t.Helper()
	pkt, err := NewPacket(Telemetry, apid, Unsegmented, count, data)
	if err != nil {
		t.Fatalf("NewPacket returned error: %v", err)
	}
	return pkt
}

func TestScannerSplitsPackets(t *testing.T) {
	want := []Packet{
		mustPacket(t, 10, 0, []byte{1}),
		mustPacket(t, 11, 1, nil),
		mustPacket(t, 12, 2, []byte{2, 3, 4, 5}),
	}
	stream := encodeAll(t, want...)

	s := NewScanner(bytes.NewReader(stream))
	var got []Packet
	for s.Scan() {
		got = append(got, s.Packet())
	}
	if err := s.Err(); err != nil {
		t.Fatalf("Scanner error: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("scanned %d packets, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Primary != want[i].Primary {
			t.Fatalf("packet %d header = %+v, want %+v", i, got[i].Primary, want[i].Primary)
		}
		if !bytes.Equal(got[i].Data, want[i].Data) {
			t.Fatalf("packet %d data = % X, want % X", i, got[i].Data, want[i].Data)
		}
	}
	if s.Offset() != int64(len(stream)) {
		t.Fatalf("Offset = %d, want %d", s.Offset(), len(stream))
	}
}

func TestScannerPartialPacket(t *testing.T) {
	stream := encodeAll(t, mustPacket(t, 1, 0, []byte{1, 2}), mustPacket(t, 2, 1, []byte{3, 4, 5}))
	for _, cut := range []int{3, 10, len(stream) - 1} {
		s := NewScanner(bytes.NewReader(stream[:cut]))
		for s.Scan() {
		}
		if !errors.Is(s.Err(), wire.ErrTruncated) {
			t.Fatalf("cut %d: Err = %v, want ErrTruncated", cut, s.Err())
		}
	}
}

func TestSplitAll(t *testing.T) {
	stream := encodeAll(t, mustPacket(t, 1, 0, []byte{1}), mustPacket(t, 2, 1, []byte{2}))
	pkts, err := SplitAll(stream)
	if err != nil {
		t.Fatalf("SplitAll returned error: %v", err)
	}
	if len(pkts) != 2 || pkts[1].Primary.APID != 2 {
		t.Fatalf("SplitAll = %+v", pkts)
	}
	pkts, err = SplitAll(stream[:len(stream)-1])
	if !errors.Is(err, wire.ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
	if len(pkts) != 1 {
		t.Fatalf("packets before failure = %d, want 1", len(pkts))
	}
}
