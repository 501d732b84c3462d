package common

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestMetricsCounts(t *testing.T) {
	m := NewMetrics()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.AddEncoded(100)
			m.AddDecoded(50)
		}()
	}
	wg.Wait()
	m.AddFailure()

	s := m.Snapshot()
	if s.Encoded != 10 || s.BytesOut != 1000 {
		t.Fatalf("encoded = %d/%d, want 10/1000", s.Encoded, s.BytesOut)
	}
	if s.Decoded != 10 || s.BytesIn != 500 {
		t.Fatalf("decoded = %d/%d, want 10/500", s.Decoded, s.BytesIn)
	}
	if s.Failures != 1 {
		t.Fatalf("failures = %d, want 1", s.Failures)
	}
	if !strings.Contains(s.String(), "1 failures") {
		t.Fatalf("String() = %q", s.String())
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.AddEncoded(1)
	m.AddFailure()
	if s := m.Snapshot(); s.Encoded != 0 {
		t.Fatalf("nil metrics snapshot = %+v", s)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.00 KiB"},
		{8192 + 40, "8.04 KiB"},
		{3 << 20, "3.00 MiB"},
	}
	for _, tc := range tests {
		if got := FormatBytes(tc.in); got != tc.want {
			t.Fatalf("FormatBytes(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestWriteFileAndHash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.bin")
	data := []byte("abc")
	if err := WriteFile(path, data); err != nil {
		t.Fatalf("WriteFile returned error: %v", err)
	}
	sum, n, err := Sha256OfFile(path)
	if err != nil {
		t.Fatalf("Sha256OfFile returned error: %v", err)
	}
	const want = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if sum != want || n != 3 {
		t.Fatalf("Sha256OfFile = %s/%d, want %s/3", sum, n, want)
	}
	if Sha256Hex(data) != want {
		t.Fatalf("Sha256Hex = %s, want %s", Sha256Hex(data), want)
	}
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Fatalf("parent dir missing: %v", err)
	}
}
