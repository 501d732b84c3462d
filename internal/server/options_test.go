package server

import (
	"errors"
	"testing"
)

func TestOptionsNormalize(t *testing.T) {
	opts, err := Options{Callsign: " PVDX01 "}.normalize()
	if err != nil {
		t.Fatalf("normalize returned error: %v", err)
	}
	if opts.Callsign != "PVDX01" {
		t.Fatalf("Callsign = %q, want PVDX01", opts.Callsign)
	}
	if opts.MaxBodyBytes != DefaultMaxBodyBytes {
		t.Fatalf("MaxBodyBytes = %d, want %d", opts.MaxBodyBytes, DefaultMaxBodyBytes)
	}
	if opts.Metrics == nil || opts.StorageDir == "" {
		t.Fatalf("defaults not filled: %+v", opts)
	}
}

func TestOptionsRejectsInvalid(t *testing.T) {
	big := uint16(0x800)
	tests := []struct {
		name string
		opts Options
	}{
		{"long callsign", Options{Callsign: "TOOLONGCALL"}},
		{"apid overflow", Options{APID: &big}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.opts.normalize(); !errors.Is(err, errBadOptions) {
				t.Fatalf("error = %v, want errBadOptions", err)
			}
			if _, err := NewServer(tc.opts); err == nil {
				t.Fatalf("NewServer accepted %+v", tc.opts)
			}
		})
	}
}
