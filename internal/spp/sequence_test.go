package spp

import (
	"sync"
	"testing"
)

func TestSequenceCounterPerAPID(t *testing.T) {
	c := NewSequenceCounter()
	for want := uint16(0); want < 3; want++ {
		if got := c.Next(5); got != want {
			t.Fatalf("Next(5) = %d, want %d", got, want)
		}
	}
	if got := c.Next(6); got != 0 {
		t.Fatalf("Next(6) = %d, want 0", got)
	}
}

func TestSequenceCounterWraps(t *testing.T) {
	c := NewSequenceCounter()
	c.Reset(1, MaxSequenceCount)
	if got := c.Next(1); got != MaxSequenceCount {
		t.Fatalf("Next = %d, want %d", got, MaxSequenceCount)
	}
	if got := c.Next(1); got != 0 {
		t.Fatalf("Next after wrap = %d, want 0", got)
	}
}

func TestSequenceCounterConcurrent(t *testing.T) {
	c := NewSequenceCounter()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Next(9)
			}
		}()
	}
	wg.Wait()
	if got := c.Next(9); got != 800 {
		t.Fatalf("Next = %d, want 800", got)
	}
}
