package spp

import "sync"

// SequenceCounter hands out per-APID sequence counts that wrap at 16384.
type SequenceCounter struct {
	mu   sync.Mutex
	next map[uint16]uint16
}

func NewSequenceCounter() *SequenceCounter {
	return &SequenceCounter{next: make(map[uint16]uint16)}
}

// Next returns the count to stamp on the next packet for apid.
func (c *SequenceCounter) Next(apid uint16) uint16 {
	apid &= apidMask
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.next[apid]
	c.next[apid] = (v + 1) & seqCountMask
	return v
}

// Reset restarts the count for apid at start.
func (c *SequenceCounter) Reset(apid, start uint16) {
	c.mu.Lock()
	c.next[apid&apidMask] = start & seqCountMask
	c.mu.Unlock()
}
