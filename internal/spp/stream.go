package spp

import (
	"errors"
	"fmt"
	"io"

	"example.com/pvdxlink/internal/wire"
)

// Scanner splits a byte stream into consecutive space packets. It does not
// reassemble segmented packets; every packet is returned as it was framed.
type Scanner struct {
	r      io.Reader
	pkt    Packet
	err    error
	offset int64
	count  int
}

func NewScanner(r io.Reader) *Scanner {
	return &Scanner{r: r}
}

// Scan advances to the next packet. It returns false at a clean end of
// stream or on error.
func (s *Scanner) Scan() bool {
	if s.err != nil {
		return false
	}
	hdr := make([]byte, PrimaryHeaderSize)
	n, err := io.ReadFull(s.r, hdr)
	if errors.Is(err, io.EOF) {
		return false
	}
	if err != nil {
		s.err = fmt.Errorf("%w: partial primary header at offset %d (%d of %d bytes)", wire.ErrTruncated, s.offset, n, PrimaryHeaderSize)
		return false
	}
	ph, err := ReadPrimaryHeader(wire.NewReader(hdr))
	if err != nil {
		s.err = fmt.Errorf("packet %d at offset %d: %w", s.count, s.offset, err)
		return false
	}
	bodyLen := int(ph.DataLength)
	if ph.SecondaryHeader {
		bodyLen += SecondaryHeaderSize
	}
	body := make([]byte, bodyLen)
	if n, err := io.ReadFull(s.r, body); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			s.err = fmt.Errorf("%w: packet %d at offset %d ends after %d of %d body bytes", wire.ErrTruncated, s.count, s.offset, n, bodyLen)
		} else {
			s.err = err
		}
		return false
	}
	pkt, err := Decode(append(hdr, body...))
	if err != nil {
		s.err = fmt.Errorf("packet %d at offset %d: %w", s.count, s.offset, err)
		return false
	}
	s.pkt = pkt
	s.offset += int64(PrimaryHeaderSize + bodyLen)
	s.count++
	return true
}

// Packet returns the packet read by the last successful Scan.
func (s *Scanner) Packet() Packet {
	return s.pkt
}

// Offset is the stream offset just past the last packet read.
func (s *Scanner) Offset() int64 {
	return s.offset
}

func (s *Scanner) Err() error {
	return s.err
}

// SplitAll decodes every packet packed back to back in buf.
func SplitAll(buf []byte) ([]Packet, error) {
	var out []Packet
	for off := 0; off < len(buf); {
		pkt, n, err := DecodePrefix(buf[off:])
		if err != nil {
			return out, fmt.Errorf("packet %d at offset %d: %w", len(out), off, err)
		}
		out = append(out, pkt)
		off += n
	}
	return out, nil
}
