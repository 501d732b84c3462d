package common

import (
	"fmt"
	"sync"
	"time"
)

// Metrics counts codec work done by the daemon or a CLI run.
type Metrics struct {
	mu       sync.Mutex
	start    time.Time
	encoded  int64
	decoded  int64
	bytesOut int64
	bytesIn  int64
	failures int64
}

func NewMetrics() *Metrics {
	return &Metrics{start: time.Now()}
}

// AddEncoded records one packet of n bytes produced by an encoder.
func (m *Metrics) AddEncoded(n int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.encoded++
	m.bytesOut += int64(n)
	m.mu.Unlock()
}

// AddDecoded records one packet of n bytes accepted by a decoder.
func (m *Metrics) AddDecoded(n int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.decoded++
	m.bytesIn += int64(n)
	m.mu.Unlock()
}

func (m *Metrics) AddFailure() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.failures++
	m.mu.Unlock()
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return MetricsSnapshot{
		Uptime:   time.Since(m.start),
		Encoded:  m.encoded,
		Decoded:  m.decoded,
		BytesOut: m.bytesOut,
		BytesIn:  m.bytesIn,
		Failures: m.failures,
	}
}

type MetricsSnapshot struct {
	Uptime   time.Duration `json:"uptime"`
	Encoded  int64         `json:"encoded"`
	Decoded  int64         `json:"decoded"`
	BytesOut int64         `json:"bytesOut"`
	BytesIn  int64         `json:"bytesIn"`
	Failures int64         `json:"failures"`
}

func (s MetricsSnapshot) String() string {
	return fmt.Sprintf("encoded %d packets (%s), decoded %d packets (%s), %d failures in %s",
		s.Encoded, FormatBytes(s.BytesOut), s.Decoded, FormatBytes(s.BytesIn), s.Failures,
		s.Uptime.Round(time.Millisecond))
}

func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div := float64(unit)
	exp := 0
	for n := float64(b) / div; n >= unit && exp < 6; n /= unit {
		div *= unit
		exp++
	}
	prefixes := []string{"KiB", "MiB", "GiB", "TiB", "PiB", "EiB"}
	return fmt.Sprintf("%.2f %s", float64(b)/div, prefixes[exp])
}
