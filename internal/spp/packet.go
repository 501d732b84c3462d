// Package spp encodes and decodes space packets modeled on the CCSDS Space
// Packet Protocol. The data length field holds the literal number of data
// bytes, not the CCSDS length-minus-one.
package spp

import (
	"errors"
	"fmt"
	"math"

	"example.com/pvdxlink/internal/wire"
)

const (
	PrimaryHeaderSize = 6

	// SecondaryHeaderSize is zero until ancillary or time-code fields are
	// assigned.
	SecondaryHeaderSize = 0

	MaxAPID          = 0x7FF
	MaxSequenceCount = 0x3FFF
	MaxVersion       = 0x7
	MaxDataLength    = math.MaxUint16

	versionShift = 13
	typeShift    = 12
	secHdrShift  = 11
	apidMask     = 0x7FF
	seqFlagShift = 14
	seqCountMask = 0x3FFF
	oneBitMask   = 0x1
	twoBitMask   = 0x3
	threeBitMask = 0x7
)

var (
	ErrInvalidPacketType   = errors.New("invalid packet type")
	ErrDataLengthMismatch  = errors.New("data length does not match data field")
	ErrDataTooLong         = errors.New("data field exceeds 65535 bytes")
	ErrSecondaryHeaderFlag = errors.New("secondary header flag does not match secondary header")
)

type PacketType uint8

const (
	Telemetry   PacketType = 0
	Telecommand PacketType = 1
)

// ParsePacketType maps the type bit to a PacketType.
func ParsePacketType(v uint8) (PacketType, error) {
	switch PacketType(v) {
	case Telemetry, Telecommand:
		return PacketType(v), nil
	}
	return 0, fmt.Errorf("%w: %d", ErrInvalidPacketType, v)
}

func (t PacketType) String() string {
	switch t {
	case Telemetry:
		return "telemetry"
	case Telecommand:
		return "telecommand"
	}
	return fmt.Sprintf("PacketType(%d)", uint8(t))
}

type SequenceFlag uint8

const (
	Continuation SequenceFlag = 0
	FirstSegment SequenceFlag = 1
	LastSegment  SequenceFlag = 2
	Unsegmented  SequenceFlag = 3
)

func (f SequenceFlag) String() string {
	switch f {
	case Continuation:
		return "continuation"
	case FirstSegment:
		return "first"
	case LastSegment:
		return "last"
	case Unsegmented:
		return "unsegmented"
	}
	return fmt.Sprintf("SequenceFlag(%d)", uint8(f))
}

// PrimaryHeader is the 48-bit packet primary header.
type PrimaryHeader struct {
	Version         uint8        `json:"version"`
	Type            PacketType   `json:"type"`
	SecondaryHeader bool         `json:"secondaryHeader"`
	APID            uint16       `json:"apid"`
	SequenceFlag    SequenceFlag `json:"sequenceFlag"`

	// SequenceCount is a per-APID counter for telemetry and may be a packet
	// name for telecommands.
	SequenceCount uint16 `json:"sequenceCount"`
	DataLength    uint16 `json:"dataLength"`
}

// SecondaryHeader carries no fields yet; its presence is signalled by the
// primary header flag only.
type SecondaryHeader struct{}

type Packet struct {
	Primary   PrimaryHeader
	Secondary *SecondaryHeader
	Data      []byte
}

// NewPacket assembles a packet whose data length matches data.
func NewPacket(typ PacketType, apid uint16, flag SequenceFlag, count uint16, data []byte) (Packet, error) {
	if len(data) > MaxDataLength {
		return Packet{}, fmt.Errorf("%w: %d", ErrDataTooLong, len(data))
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	return Packet{
		Primary: PrimaryHeader{
			Type:          typ,
			APID:          apid & apidMask,
			SequenceFlag:  flag & twoBitMask,
			SequenceCount: count & seqCountMask,
			DataLength:    uint16(len(data)),
		},
		Data: buf,
	}, nil
}

func packPrimaryHeader(h PrimaryHeader) (uint16, uint16) {
	var secHdr uint16
	if h.SecondaryHeader {
		secHdr = 1
	}
	meta := (uint16(h.Version)&threeBitMask)<<versionShift |
		(uint16(h.Type)&oneBitMask)<<typeShift |
		secHdr<<secHdrShift |
		h.APID&apidMask
	seq := (uint16(h.SequenceFlag)&twoBitMask)<<seqFlagShift | h.SequenceCount&seqCountMask
	return meta, seq
}

func unpackPrimaryHeader(meta, seq, length uint16) (PrimaryHeader, error) {
	typ, err := ParsePacketType(uint8((meta >> typeShift) & oneBitMask))
	if err != nil {
		return PrimaryHeader{}, err
	}
	return PrimaryHeader{
		Version:         uint8(meta >> versionShift),
		Type:            typ,
		SecondaryHeader: (meta>>secHdrShift)&oneBitMask == 1,
		APID:            meta & apidMask,
		SequenceFlag:    SequenceFlag(seq >> seqFlagShift),
		SequenceCount:   seq & seqCountMask,
		DataLength:      length,
	}, nil
}

// ReadPrimaryHeader decodes the six header bytes at the reader's cursor.
func ReadPrimaryHeader(r *wire.Reader) (PrimaryHeader, error) {
	meta, err := r.U16()
	if err != nil {
		return PrimaryHeader{}, fmt.Errorf("read packet identification: %w", err)
	}
	seq, err := r.U16()
	if err != nil {
		return PrimaryHeader{}, fmt.Errorf("read packet sequence control: %w", err)
	}
	length, err := r.U16()
	if err != nil {
		return PrimaryHeader{}, fmt.Errorf("read packet data length: %w", err)
	}
	return unpackPrimaryHeader(meta, seq, length)
}

func writePrimaryHeader(w *wire.Writer, h PrimaryHeader) {
	meta, seq := packPrimaryHeader(h)
	w.U16(meta)
	w.U16(seq)
	w.U16(h.DataLength)
}

func readSecondaryHeader(r *wire.Reader) (*SecondaryHeader, error) {
	if err := r.Skip(SecondaryHeaderSize); err != nil {
		return nil, fmt.Errorf("read secondary header: %w", err)
	}
	return &SecondaryHeader{}, nil
}

func writeSecondaryHeader(w *wire.Writer, _ *SecondaryHeader) {
	w.Zero(SecondaryHeaderSize)
}

// Decode parses one packet from buf. Bytes after the data field are ignored.
func Decode(buf []byte) (Packet, error) {
	pkt, _, err := DecodePrefix(buf)
	return pkt, err
}

// DecodePrefix parses one packet from the start of buf and reports how many
// bytes it occupied.
func DecodePrefix(buf []byte) (Packet, int, error) {
	r := wire.NewReader(buf)
	hdr, err := ReadPrimaryHeader(r)
	if err != nil {
		return Packet{}, 0, err
	}
	pkt := Packet{Primary: hdr}
	if hdr.SecondaryHeader {
		if pkt.Secondary, err = readSecondaryHeader(r); err != nil {
			return Packet{}, 0, err
		}
	}
	if pkt.Data, err = r.Bytes(int(hdr.DataLength)); err != nil {
		return Packet{}, 0, fmt.Errorf("read data field (apid %d): %w", hdr.APID, err)
	}
	return pkt, r.Offset(), nil
}

// Encode serializes p. Header fields wider than their bit slots are masked.
// The secondary header flag must agree with p.Secondary.
func Encode(p Packet) ([]byte, error) {
	if int(p.Primary.DataLength) != len(p.Data) {
		return nil, fmt.Errorf("%w: header %d, data %d", ErrDataLengthMismatch, p.Primary.DataLength, len(p.Data))
	}
	if p.Primary.SecondaryHeader != (p.Secondary != nil) {
		return nil, fmt.Errorf("%w: flag %t", ErrSecondaryHeaderFlag, p.Primary.SecondaryHeader)
	}
	w := wire.NewWriter(p.EncodedLen())
	writePrimaryHeader(w, p.Primary)
	if p.Secondary != nil {
		writeSecondaryHeader(w, p.Secondary)
	}
	w.Bytes(p.Data)
	return w.Data(), nil
}

// EncodedLen is the number of bytes Encode produces for p.
func (p Packet) EncodedLen() int {
	n := PrimaryHeaderSize + len(p.Data)
	if p.Secondary != nil {
		n += SecondaryHeaderSize
	}
	return n
}
