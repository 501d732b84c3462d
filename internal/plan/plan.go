// Package plan reads operator-written uplink plans: a callsign, an optional
// space packet envelope and an ordered list of commands.
package plan

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"example.com/pvdxlink/internal/spp"
	"example.com/pvdxlink/internal/uplink"
)

var (
	ErrEmptyPlan    = errors.New("plan has no commands")
	ErrMissingField = errors.New("missing required field")
	ErrBitmap       = errors.New("invalid display bitmap")
)

type Plan struct {
	Callsign    string       `yaml:"callsign" json:"callsign"`
	SpacePacket *SpacePacket `yaml:"spacePacket,omitempty" json:"spacePacket,omitempty"`
	Commands    []Entry      `yaml:"commands" json:"commands"`

	// BaseDir resolves relative bitmap paths.
	BaseDir string `yaml:"-" json:"-"`
}

// SpacePacket asks for the uplink to be carried as the data field of one
// unsegmented telecommand space packet. A nil SequenceCount takes the next
// value from the caller's counter.
type SpacePacket struct {
	APID          uint16  `yaml:"apid" json:"apid"`
	SequenceCount *uint16 `yaml:"sequenceCount,omitempty" json:"sequenceCount,omitempty"`
}

// Entry is one command. Only the fields used by Type are read.
type Entry struct {
	Type      string   `yaml:"type" json:"type"`
	Device    *uint8   `yaml:"device,omitempty" json:"device,omitempty"`
	Duration  *uint32  `yaml:"duration,omitempty" json:"duration,omitempty"`
	Timestamp *uint32  `yaml:"timestamp,omitempty" json:"timestamp,omitempty"`
	Count     *uint16  `yaml:"count,omitempty" json:"count,omitempty"`
	Mode      *uint8   `yaml:"mode,omitempty" json:"mode,omitempty"`
	Keplers   *Keplers `yaml:"keplers,omitempty" json:"keplers,omitempty"`

	BitmapFile   string `yaml:"bitmapFile,omitempty" json:"bitmapFile,omitempty"`
	BitmapBase64 string `yaml:"bitmapBase64,omitempty" json:"bitmapBase64,omitempty"`
}

type Keplers struct {
	Timestamp    uint32  `yaml:"timestamp" json:"timestamp"`
	Inclination  float32 `yaml:"inclination" json:"inclination"`
	RAAN         float32 `yaml:"raan" json:"raan"`
	Eccentricity float32 `yaml:"eccentricity" json:"eccentricity"`
	PerigeeArg   float32 `yaml:"perigeeArg" json:"perigeeArg"`
	MeanAnomaly  float32 `yaml:"meanAnomaly" json:"meanAnomaly"`
	MeanMotion   float32 `yaml:"meanMotion" json:"meanMotion"`
}

func (k Keplers) update() uplink.ADCSUpdate {
	return uplink.ADCSUpdate{
		Timestamp:    k.Timestamp,
		Inclination:  k.Inclination,
		RAAN:         k.RAAN,
		Eccentricity: k.Eccentricity,
		PerigeeArg:   k.PerigeeArg,
		MeanAnomaly:  k.MeanAnomaly,
		MeanMotion:   k.MeanMotion,
	}
}

func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	p, err := Parse(data, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Parse decodes a YAML plan. JSON documents are accepted as well. Unknown
// keys are rejected so misspelled fields do not silently drop a value.
func Parse(data []byte, baseDir string) (*Plan, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var p Plan
	if err := dec.Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyPlan
		}
		return nil, fmt.Errorf("parse plan: %w", err)
	}
	if len(p.Commands) == 0 {
		return nil, ErrEmptyPlan
	}
	p.BaseDir = baseDir
	return &p, nil
}

// UplinkCommands converts every entry to its uplink command.
func (p *Plan) UplinkCommands() ([]uplink.Command, error) {
	out := make([]uplink.Command, 0, len(p.Commands))
	for i, e := range p.Commands {
		cmd, err := p.command(e)
		if err != nil {
			return nil, fmt.Errorf("command %d (%s): %w", i, e.Type, err)
		}
		out = append(out, cmd)
	}
	return out, nil
}

func (p *Plan) command(e Entry) (uplink.Command, error) {
	kind, err := uplink.ParseKind(e.Type)
	if err != nil {
		return nil, err
	}
	switch kind {
	case uplink.KindDeviceEnable, uplink.KindDeviceDisable, uplink.KindDeviceBreak, uplink.KindDeviceUnbreak:
		if e.Device == nil {
			return nil, fmt.Errorf("%w: device", ErrMissingField)
		}
		return deviceCommand(kind, *e.Device), nil
	case uplink.KindDisplayUpdate:
		return p.displayUpdate(e)
	case uplink.KindSleep:
		if e.Duration == nil {
			return nil, fmt.Errorf("%w: duration", ErrMissingField)
		}
		return uplink.Sleep{Duration: *e.Duration}, nil
	case uplink.KindReboot:
		return uplink.Reboot{}, nil
	case uplink.KindPictureCapture:
		if e.Timestamp == nil {
			return nil, fmt.Errorf("%w: timestamp", ErrMissingField)
		}
		return uplink.PictureCapture{Timestamp: *e.Timestamp}, nil
	case uplink.KindPictureSend:
		if e.Count == nil {
			return nil, fmt.Errorf("%w: count", ErrMissingField)
		}
		return uplink.PictureSend{Count: *e.Count}, nil
	case uplink.KindSetTime:
		if e.Timestamp == nil {
			return nil, fmt.Errorf("%w: timestamp", ErrMissingField)
		}
		return uplink.SetTime{Timestamp: *e.Timestamp}, nil
	case uplink.KindSetPowerMode:
		if e.Mode == nil {
			return nil, fmt.Errorf("%w: mode", ErrMissingField)
		}
		return uplink.SetPowerMode{Mode: *e.Mode}, nil
	case uplink.KindADCSSetOpMode:
		if e.Mode == nil {
			return nil, fmt.Errorf("%w: mode", ErrMissingField)
		}
		return uplink.ADCSSetOpMode{Mode: *e.Mode}, nil
	case uplink.KindADCSSetKeplers:
		if e.Keplers == nil {
			return nil, fmt.Errorf("%w: keplers", ErrMissingField)
		}
		return uplink.ADCSSetKeplers{Update: e.Keplers.update()}, nil
	}
	return nil, fmt.Errorf("%w: %s", uplink.ErrUnknownCommand, kind)
}

func deviceCommand(kind uplink.Kind, dev uint8) uplink.Command {
	switch kind {
	case uplink.KindDeviceDisable:
		return uplink.DeviceDisable{Device: dev}
	case uplink.KindDeviceBreak:
		return uplink.DeviceBreak{Device: dev}
	case uplink.KindDeviceUnbreak:
		return uplink.DeviceUnbreak{Device: dev}
	default:
		return uplink.DeviceEnable{Device: dev}
	}
}

func (p *Plan) displayUpdate(e Entry) (uplink.Command, error) {
	var data []byte
	switch {
	case e.BitmapFile != "" && e.BitmapBase64 != "":
		return nil, fmt.Errorf("%w: bitmapFile and bitmapBase64 are exclusive", ErrBitmap)
	case e.BitmapFile != "":
		path := e.BitmapFile
		if !filepath.IsAbs(path) && p.BaseDir != "" {
			path = filepath.Join(p.BaseDir, path)
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBitmap, err)
		}
		data = raw
	case e.BitmapBase64 != "":
		raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(e.BitmapBase64))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBitmap, err)
		}
		data = raw
	default:
		return nil, fmt.Errorf("%w: bitmapFile", ErrMissingField)
	}
	if len(data) != uplink.BitmapSize {
		return nil, fmt.Errorf("%w: %d bytes, want %d", ErrBitmap, len(data), uplink.BitmapSize)
	}
	var cmd uplink.DisplayUpdate
	copy(cmd.Bitmap[:], data)
	return cmd, nil
}

// Build assembles the uplink packet described by the plan.
func (p *Plan) Build() (uplink.Packet, error) {
	cs, err := uplink.ParseCallsign(p.Callsign)
	if err != nil {
		return uplink.Packet{}, err
	}
	cmds, err := p.UplinkCommands()
	if err != nil {
		return uplink.Packet{}, err
	}
	return uplink.Build(cs, cmds...)
}

// Result holds every stage of an assembled plan. Space is nil unless the plan
// asked for a space packet, in which case Bytes is the encoded space packet.
type Result struct {
	Uplink      uplink.Packet
	UplinkBytes []byte
	Space       *spp.Packet
	Bytes       []byte
}

// Assemble builds and encodes the plan. seq supplies sequence counts for
// space packets that do not pin one; a nil seq uses zero.
func (p *Plan) Assemble(seq *spp.SequenceCounter) (Result, error) {
	pkt, err := p.Build()
	if err != nil {
		return Result{}, err
	}
	raw, err := uplink.Encode(pkt)
	if err != nil {
		return Result{}, err
	}
	res := Result{Uplink: pkt, UplinkBytes: raw, Bytes: raw}
	if p.SpacePacket == nil {
		return res, nil
	}
	if p.SpacePacket.APID > spp.MaxAPID {
		return Result{}, fmt.Errorf("space packet apid %d exceeds %d", p.SpacePacket.APID, spp.MaxAPID)
	}
	var count uint16
	switch {
	case p.SpacePacket.SequenceCount != nil:
		count = *p.SpacePacket.SequenceCount
		if count > spp.MaxSequenceCount {
			return Result{}, fmt.Errorf("space packet sequence count %d exceeds %d", count, spp.MaxSequenceCount)
		}
	case seq != nil:
		count = seq.Next(p.SpacePacket.APID)
	}
	space, err := spp.NewPacket(spp.Telecommand, p.SpacePacket.APID, spp.Unsegmented, count, raw)
	if err != nil {
		return Result{}, err
	}
	wrapped, err := spp.Encode(space)
	if err != nil {
		return Result{}, err
	}
	res.Space = &space
	res.Bytes = wrapped
	return res, nil
}

// Encode returns the bytes to transmit: the uplink packet, or the space
// packet carrying it when the plan has a spacePacket section.
func (p *Plan) Encode() ([]byte, error) {
	res, err := p.Assemble(nil)
	if err != nil {
		return nil, err
	}
	return res.Bytes, nil
}
