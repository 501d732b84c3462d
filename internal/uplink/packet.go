// Package uplink packs batches of spacecraft commands into a single uplink
// packet: a 16-byte packet header, one 8-byte header per command, then the
// command payloads in the same order.
package uplink

import (
	"errors"
	"fmt"
	"math"

	"example.com/pvdxlink/internal/wire"
)

const (
	CallsignSize      = 6
	PacketHeaderSize  = 16
	CommandHeaderSize = 8

	packetReserved1 = 2
	packetReserved2 = 2
	commandReserved = 2
)

var (
	ErrTooManyCommands = errors.New("too many commands for one uplink packet")
	ErrInconsistent    = errors.New("uplink packet headers disagree with commands")
	ErrCallsign        = errors.New("invalid callsign")
)

type Callsign [CallsignSize]byte

// ParseCallsign copies s into a callsign. Shorter values are padded with
// zero bytes.
func ParseCallsign(s string) (Callsign, error) {
	var cs Callsign
	if len(s) == 0 || len(s) > CallsignSize {
		return cs, fmt.Errorf("%w: %q must be 1-%d bytes", ErrCallsign, s, CallsignSize)
	}
	copy(cs[:], s)
	return cs, nil
}

func (c Callsign) String() string {
	n := len(c)
	for n > 0 && c[n-1] == 0 {
		n--
	}
	return string(c[:n])
}

// PacketHeader is the fixed uplink packet header. Size counts the header,
// every command header and every payload.
type PacketHeader struct {
	Callsign    Callsign
	Size        uint32
	NumCommands uint16
}

type CommandHeader struct {
	Type Kind
	Size uint32
}

type Packet struct {
	Header         PacketHeader
	CommandHeaders []CommandHeader
	Commands       []Command
}

// Build derives the packet and command headers from cmds. It is the only
// construction path that guarantees the headers agree with the commands.
func Build(callsign Callsign, cmds ...Command) (Packet, error) {
	if len(cmds) > math.MaxUint16 {
		return Packet{}, fmt.Errorf("%w: %d", ErrTooManyCommands, len(cmds))
	}
	total := uint64(PacketHeaderSize) + uint64(CommandHeaderSize)*uint64(len(cmds))
	headers := make([]CommandHeader, len(cmds))
	commands := make([]Command, len(cmds))
	for i, cmd := range cmds {
		v, spec, err := commandValue(cmd)
		if err != nil {
			return Packet{}, fmt.Errorf("command %d: %w", i, err)
		}
		headers[i] = CommandHeader{Type: v.Kind(), Size: spec.size}
		commands[i] = v
		total += uint64(spec.size)
	}
	if total > math.MaxUint32 {
		return Packet{}, fmt.Errorf("%w: %d bytes", ErrTooManyCommands, total)
	}
	return Packet{
		Header: PacketHeader{
			Callsign:    callsign,
			Size:        uint32(total),
			NumCommands: uint16(len(cmds)),
		},
		CommandHeaders: headers,
		Commands:       commands,
	}, nil
}

func readPacketHeader(r *wire.Reader) (PacketHeader, error) {
	var h PacketHeader
	if err := r.Fill(h.Callsign[:]); err != nil {
		return h, fmt.Errorf("read callsign: %w", err)
	}
	if err := r.Skip(packetReserved1); err != nil {
		return h, fmt.Errorf("read header padding: %w", err)
	}
	size, err := r.U32()
	if err != nil {
		return h, fmt.Errorf("read packet size: %w", err)
	}
	n, err := r.U16()
	if err != nil {
		return h, fmt.Errorf("read command count: %w", err)
	}
	if err := r.Skip(packetReserved2); err != nil {
		return h, fmt.Errorf("read header padding: %w", err)
	}
	h.Size = size
	h.NumCommands = n
	return h, nil
}

func writePacketHeader(w *wire.Writer, h PacketHeader) {
	w.Bytes(h.Callsign[:])
	w.Zero(packetReserved1)
	w.U32(h.Size)
	w.U16(h.NumCommands)
	w.Zero(packetReserved2)
}

func readCommandHeader(r *wire.Reader) (CommandHeader, error) {
	typ, err := r.U16()
	if err != nil {
		return CommandHeader{}, err
	}
	if err := r.Skip(commandReserved); err != nil {
		return CommandHeader{}, err
	}
	size, err := r.U32()
	if err != nil {
		return CommandHeader{}, err
	}
	return CommandHeader{Type: Kind(typ), Size: size}, nil
}

func writeCommandHeader(w *wire.Writer, h CommandHeader) {
	w.U16(uint16(h.Type))
	w.Zero(commandReserved)
	w.U32(h.Size)
}

// Decode parses an uplink packet. Each command header's Size decides how many
// payload bytes belong to that command; the command's fixed layout is read
// from the start of that record and any extra bytes in it are skipped.
// Reserved fields are not checked and bytes after the last payload are
// ignored.
func Decode(buf []byte) (Packet, error) {
	r := wire.NewReader(buf)
	hdr, err := readPacketHeader(r)
	if err != nil {
		return Packet{}, err
	}
	// Reject counts the buffer cannot hold before allocating for them.
	if need := int(hdr.NumCommands) * CommandHeaderSize; need > r.Remaining() {
		return Packet{}, fmt.Errorf("read command headers: %w: %d headers need %d bytes, have %d",
			wire.ErrTruncated, hdr.NumCommands, need, r.Remaining())
	}
	headers := make([]CommandHeader, hdr.NumCommands)
	for i := range headers {
		if headers[i], err = readCommandHeader(r); err != nil {
			return Packet{}, fmt.Errorf("read command header %d: %w", i, err)
		}
	}
	commands := make([]Command, len(headers))
	for i, ch := range headers {
		spec, err := lookup(ch.Type)
		if err != nil {
			return Packet{}, fmt.Errorf("command %d: %w", i, err)
		}
		payload, err := r.Bytes(int(ch.Size))
		if err != nil {
			return Packet{}, fmt.Errorf("command %d (%s): %w", i, spec.name, err)
		}
		cmd, err := DecodeCommand(ch.Type, payload)
		if err != nil {
			return Packet{}, fmt.Errorf("command %d: %w", i, err)
		}
		commands[i] = cmd
	}
	return Packet{Header: hdr, CommandHeaders: headers, Commands: commands}, nil
}

// Encode writes the packet header, then every command header, then every
// payload. Headers are written as given; use Build to derive them.
func Encode(p Packet) ([]byte, error) {
	w := wire.NewWriter(p.encodedLenHint())
	writePacketHeader(w, p.Header)
	for _, ch := range p.CommandHeaders {
		writeCommandHeader(w, ch)
	}
	for i, cmd := range p.Commands {
		if err := writeCommand(w, cmd); err != nil {
			return nil, fmt.Errorf("command %d: %w", i, err)
		}
	}
	return w.Data(), nil
}

func (p Packet) encodedLenHint() int {
	n := PacketHeaderSize + CommandHeaderSize*len(p.CommandHeaders)
	for _, ch := range p.CommandHeaders {
		if ch.Size <= BitmapSize {
			n += int(ch.Size)
		}
	}
	return n
}

// Validate checks that the headers agree with the commands: the command
// count, each command header's type and size, and the total size.
func (p Packet) Validate() error {
	n := len(p.Commands)
	if int(p.Header.NumCommands) != n {
		return fmt.Errorf("%w: header counts %d commands, packet has %d", ErrInconsistent, p.Header.NumCommands, n)
	}
	if len(p.CommandHeaders) != n {
		return fmt.Errorf("%w: %d command headers for %d commands", ErrInconsistent, len(p.CommandHeaders), n)
	}
	total := uint64(PacketHeaderSize) + uint64(CommandHeaderSize)*uint64(n)
	for i, cmd := range p.Commands {
		v, spec, err := commandValue(cmd)
		if err != nil {
			return fmt.Errorf("%w: command %d: %v", ErrInconsistent, i, err)
		}
		ch := p.CommandHeaders[i]
		if ch.Type != v.Kind() {
			return fmt.Errorf("%w: command %d header type %s, command is %s", ErrInconsistent, i, ch.Type, v.Kind())
		}
		if ch.Size != spec.size {
			return fmt.Errorf("%w: command %d (%s) header size %d, want %d", ErrInconsistent, i, spec.name, ch.Size, spec.size)
		}
		total += uint64(spec.size)
	}
	if uint64(p.Header.Size) != total {
		return fmt.Errorf("%w: header size %d, want %d", ErrInconsistent, p.Header.Size, total)
	}
	return nil
}
