package server

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"example.com/pvdxlink/internal/common"
	"example.com/pvdxlink/internal/spp"
	"example.com/pvdxlink/internal/uplink"
)

// DefaultMaxBodyBytes bounds request bodies and websocket messages. One
// display_update alone is 8 KiB, so this leaves room for large batches.
const DefaultMaxBodyBytes = 1 << 20

var errBadOptions = errors.New("invalid server options")

// Options configures server creation.
type Options struct {
	StorageDir string

	// Callsign fills plans that leave it empty.
	Callsign string

	// APID, when set, wraps uplinks from plans without a spacePacket section
	// in a telecommand space packet on this APID.
	APID *uint16

	MaxBodyBytes int64
	Metrics      *common.Metrics
}

func (o Options) normalize() (Options, error) {
	o.Callsign = strings.TrimSpace(o.Callsign)
	if o.Callsign != "" {
		if _, err := uplink.ParseCallsign(o.Callsign); err != nil {
			return o, fmt.Errorf("%w: %v", errBadOptions, err)
		}
	}
	if o.APID != nil && *o.APID > spp.MaxAPID {
		return o, fmt.Errorf("%w: apid %d exceeds %d", errBadOptions, *o.APID, spp.MaxAPID)
	}
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if o.StorageDir == "" {
		o.StorageDir = os.TempDir()
	}
	if o.Metrics == nil {
		o.Metrics = common.NewMetrics()
	}
	return o, nil
}
