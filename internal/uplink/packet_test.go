package uplink

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"reflect"
	"testing"

	"example.com/pvdxlink/internal/wire"
)

func mustCallsign(t *testing.T, s string) Callsign {
	t.Helper()
	cs, err := ParseCallsign(s)
	if err != nil {
		t.Fatalf("ParseCallsign(%q): %v", s, err)
	}
	return cs
}

func sampleBitmap() DisplayUpdate {
	var cmd DisplayUpdate
	for i := range cmd.Bitmap {
		cmd.Bitmap[i] = byte(i * 7)
	}
	return cmd
}

func TestBuildDerivesHeaders(t *testing.T) {
	pkt, err := Build(mustCallsign(t, "PVDX01"), Reboot{}, SetTime{Timestamp: 1700000000})
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if pkt.Header.NumCommands != 2 {
		t.Fatalf("NumCommands = %d, want 2", pkt.Header.NumCommands)
	}
	if pkt.Header.Size != 36 {
		t.Fatalf("Size = %d, want 36", pkt.Header.Size)
	}
	want := []CommandHeader{{Type: KindReboot, Size: 0}, {Type: KindSetTime, Size: 4}}
	if !reflect.DeepEqual(pkt.CommandHeaders, want) {
		t.Fatalf("CommandHeaders = %+v, want %+v", pkt.CommandHeaders, want)
	}
	if err := pkt.Validate(); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}

	raw, err := Encode(pkt)
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	if len(raw) != 36 {
		t.Fatalf("encoded length = %d, want 36", len(raw))
	}
	wantHeader := []byte{'P', 'V', 'D', 'X', '0', '1', 0, 0, 0, 0, 0, 36, 0, 2, 0, 0}
	if !bytes.Equal(raw[:16], wantHeader) {
		t.Fatalf("packet header = % X, want % X", raw[:16], wantHeader)
	}
	wantCmdHeaders := []byte{0, 6, 0, 0, 0, 0, 0, 0, 0, 9, 0, 0, 0, 0, 0, 4}
	if !bytes.Equal(raw[16:32], wantCmdHeaders) {
		t.Fatalf("command headers = % X, want % X", raw[16:32], wantCmdHeaders)
	}
	if got := binary.BigEndian.Uint32(raw[32:36]); got != 1700000000 {
		t.Fatalf("set_time payload = %d, want 1700000000", got)
	}
}

func allCommands() []Command {
	return []Command{
		DeviceEnable{Device: 1},
		DeviceDisable{Device: 2},
		DeviceBreak{Device: 3},
		DeviceUnbreak{Device: 4},
		sampleBitmap(),
		Sleep{Duration: 3600},
		Reboot{},
		PictureCapture{Timestamp: 1700000100},
		PictureSend{Count: 12},
		SetTime{Timestamp: 1700000000},
		SetPowerMode{Mode: 2},
		ADCSSetOpMode{Mode: 5},
		ADCSSetKeplers{Update: ADCSUpdate{
			Timestamp:    1700000000,
			Inclination:  51.6416,
			RAAN:         247.4627,
			Eccentricity: 0.0006703,
			PerigeeArg:   130.536,
			MeanAnomaly:  325.0288,
			MeanMotion:   15.72125391,
		}},
	}
}

func TestRoundTripEveryCommand(t *testing.T) {
	cmds := allCommands()
	pkt, err := Build(mustCallsign(t, "PVDX01"), cmds...)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	raw, err := Encode(pkt)
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	if uint32(len(raw)) != pkt.Header.Size {
		t.Fatalf("encoded length = %d, header size %d", len(raw), pkt.Header.Size)
	}
	got, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if !reflect.DeepEqual(got, pkt) {
		t.Fatalf("Decode(Encode(p)) differs from p")
	}
	if err := got.Validate(); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
}

func TestRoundTripSingleCommands(t *testing.T) {
	for _, cmd := range allCommands() {
		t.Run(cmd.Kind().String(), func(t *testing.T) {
			pkt, err := Build(mustCallsign(t, "GND"), cmd)
			if err != nil {
				t.Fatalf("Build returned error: %v", err)
			}
			raw, err := Encode(pkt)
			if err != nil {
				t.Fatalf("Encode returned error: %v", err)
			}
			got, err := Decode(raw)
			if err != nil {
				t.Fatalf("Decode returned error: %v", err)
			}
			if !reflect.DeepEqual(got.Commands[0], cmd) {
				t.Fatalf("command = %+v, want %+v", got.Commands[0], cmd)
			}
		})
	}
}

func TestEmptyPacket(t *testing.T) {
	pkt, err := Build(mustCallsign(t, "PVDX01"))
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	raw, err := Encode(pkt)
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	if len(raw) != PacketHeaderSize || pkt.Header.Size != PacketHeaderSize {
		t.Fatalf("empty packet length = %d, size %d", len(raw), pkt.Header.Size)
	}
	got, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if len(got.Commands) != 0 || len(got.CommandHeaders) != 0 {
		t.Fatalf("Decode produced %d commands", len(got.Commands))
	}
}

func rawPacket(headers []CommandHeader, payload []byte) []byte {
	w := wire.NewWriter(0)
	writePacketHeader(w, PacketHeader{
		Callsign:    Callsign{'P', 'V', 'D', 'X', '0', '1'},
		Size:        uint32(PacketHeaderSize + CommandHeaderSize*len(headers) + len(payload)),
		NumCommands: uint16(len(headers)),
	})
	for _, h := range headers {
		writeCommandHeader(w, h)
	}
	w.Bytes(payload)
	return w.Data()
}

func TestDecodeUnknownCommand(t *testing.T) {
	for _, tag := range []Kind{13, 14, 0xFFFF} {
		raw := rawPacket([]CommandHeader{{Type: KindReboot}, {Type: tag, Size: 1}}, []byte{0x00})
		pkt, err := Decode(raw)
		if !errors.Is(err, ErrUnknownCommand) {
			t.Fatalf("tag %d: error = %v, want ErrUnknownCommand", tag, err)
		}
		if pkt.Commands != nil || pkt.CommandHeaders != nil {
			t.Fatalf("tag %d: partial packet returned: %+v", tag, pkt)
		}
	}
}

func TestDecodeShortBitmap(t *testing.T) {
	tests := []struct {
		name    string
		size    uint32
		payload int
	}{
		{name: "declared short", size: 100, payload: 100},
		{name: "buffer short", size: BitmapSize, payload: BitmapSize - 1},
		{name: "empty", size: BitmapSize, payload: 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			raw := rawPacket([]CommandHeader{{Type: KindDisplayUpdate, Size: tc.size}}, make([]byte, tc.payload))
			pkt, err := Decode(raw)
			if !errors.Is(err, wire.ErrTruncated) {
				t.Fatalf("error = %v, want ErrTruncated", err)
			}
			if pkt.Commands != nil {
				t.Fatalf("partial commands returned: %d", len(pkt.Commands))
			}
		})
	}
}

func TestDecodeTruncatedHeaders(t *testing.T) {
	pkt, _ := Build(mustCallsign(t, "PVDX01"), SetTime{Timestamp: 1}, Sleep{Duration: 2})
	raw, _ := Encode(pkt)
	for n := 0; n < len(raw); n++ {
		if _, err := Decode(raw[:n]); !errors.Is(err, wire.ErrTruncated) {
			t.Fatalf("Decode(%d of %d bytes) error = %v, want ErrTruncated", n, len(raw), err)
		}
	}
}

func TestDecodeHugeCommandCount(t *testing.T) {
	raw := rawPacket(nil, nil)
	binary.BigEndian.PutUint16(raw[12:14], math.MaxUint16)
	if _, err := Decode(raw); !errors.Is(err, wire.ErrTruncated) {
		t.Fatalf("error = %v, want ErrTruncated", err)
	}
}

func TestDecodeTrustsDeclaredSize(t *testing.T) {
	// reboot declares 4 bytes, which are consumed and skipped; set_time still
	// lines up after them.
	payload := []byte{0xAA, 0xBB, 0xCC, 0xDD, 0x00, 0x00, 0x01, 0x00}
	raw := rawPacket([]CommandHeader{{Type: KindReboot, Size: 4}, {Type: KindSetTime, Size: 4}}, payload)
	pkt, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if _, ok := pkt.Commands[0].(Reboot); !ok {
		t.Fatalf("command 0 = %T, want Reboot", pkt.Commands[0])
	}
	if got := pkt.Commands[1].(SetTime).Timestamp; got != 256 {
		t.Fatalf("set_time timestamp = %d, want 256", got)
	}
	if err := pkt.Validate(); !errors.Is(err, ErrInconsistent) {
		t.Fatalf("Validate error = %v, want ErrInconsistent", err)
	}
}

func TestDecodeIgnoresReservedBytes(t *testing.T) {
	pkt, _ := Build(mustCallsign(t, "PVDX01"), PictureSend{Count: 3})
	raw, _ := Encode(pkt)
	raw[6], raw[7], raw[14], raw[15] = 0xFF, 0xFF, 0xFF, 0xFF
	raw[18], raw[19] = 0xFF, 0xFF
	got, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if !reflect.DeepEqual(got, pkt) {
		t.Fatalf("Decode = %+v, want %+v", got, pkt)
	}
}

func TestEncodeHandAssembledPacket(t *testing.T) {
	pkt := Packet{
		Header:         PacketHeader{Callsign: Callsign{'X'}, Size: 999, NumCommands: 5},
		CommandHeaders: []CommandHeader{{Type: KindSleep, Size: 1}},
		Commands:       []Command{SetPowerMode{Mode: 1}, Reboot{}},
	}
	raw, err := Encode(pkt)
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	if len(raw) != PacketHeaderSize+CommandHeaderSize+1 {
		t.Fatalf("encoded length = %d", len(raw))
	}
	if err := pkt.Validate(); !errors.Is(err, ErrInconsistent) {
		t.Fatalf("Validate error = %v, want ErrInconsistent", err)
	}
}

func TestBuildAcceptsPointers(t *testing.T) {
	pkt, err := Build(mustCallsign(t, "PVDX01"), &Sleep{Duration: 9})
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if _, ok := pkt.Commands[0].(Sleep); !ok {
		t.Fatalf("command stored as %T, want Sleep", pkt.Commands[0])
	}
	var nilCmd *Sleep
	if _, err := Build(mustCallsign(t, "PVDX01"), nilCmd); !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("nil pointer error = %v, want ErrUnknownCommand", err)
	}
	if _, err := Build(mustCallsign(t, "PVDX01"), nil); !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("nil command error = %v, want ErrUnknownCommand", err)
	}
}

type rogueCommand struct{}

func (rogueCommand) Kind() Kind { return KindSetTime }

func TestBuildRejectsUnregisteredType(t *testing.T) {
	if _, err := Build(mustCallsign(t, "PVDX01"), rogueCommand{}); !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("error = %v, want ErrUnknownCommand", err)
	}
}

func TestCallsign(t *testing.T) {
	cs := mustCallsign(t, "AB")
	if cs != (Callsign{'A', 'B', 0, 0, 0, 0}) {
		t.Fatalf("callsign = % X", cs[:])
	}
	if cs.String() != "AB" {
		t.Fatalf("String = %q, want AB", cs.String())
	}
	for _, bad := range []string{"", "TOOLONG"} {
		if _, err := ParseCallsign(bad); !errors.Is(err, ErrCallsign) {
			t.Fatalf("ParseCallsign(%q) error = %v, want ErrCallsign", bad, err)
		}
	}
}
