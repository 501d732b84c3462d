// Package report describes encoded uplink packets for operators as JSON or a
// printable PDF sheet.
package report

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"example.com/pvdxlink/internal/common"
	"example.com/pvdxlink/internal/spp"
	"example.com/pvdxlink/internal/uplink"
)

type Summary struct {
	Space       *spp.PrimaryHeader `json:"spacePacket,omitempty"`
	Callsign    string             `json:"callsign"`
	Size        uint32             `json:"size"`
	NumCommands uint16             `json:"numCommands"`
	Bytes       int                `json:"bytes"`
	SHA256      string             `json:"sha256"`
	Consistent  bool               `json:"consistent"`
	Problem     string             `json:"problem,omitempty"`
	Commands    []CommandRow       `json:"commands"`
}

const maxPayloadHex = 32

type CommandRow struct {
	Index  int    `json:"index"`
	Type   uint16 `json:"type"`
	Name   string `json:"name"`
	Size   uint32 `json:"size"`
	Fields string `json:"fields,omitempty"`

	// Payload is the hex wire form of short payloads. Bitmaps are omitted.
	Payload string `json:"payload,omitempty"`

	// Params is the decoded command itself. It reads back as a JSON object.
	Params any `json:"params,omitempty"`
}

// Summarize describes pkt. raw is the byte form that will be hashed, normally
// the exact file or message that was decoded or transmitted. space is the
// envelope header when the uplink travelled inside a space packet.
func Summarize(raw []byte, pkt uplink.Packet, space *spp.PrimaryHeader) Summary {
	sum := Summary{
		Space:       space,
		Callsign:    pkt.Header.Callsign.String(),
		Size:        pkt.Header.Size,
		NumCommands: pkt.Header.NumCommands,
		Bytes:       len(raw),
		SHA256:      common.Sha256Hex(raw),
		Consistent:  true,
		Commands:    make([]CommandRow, 0, len(pkt.Commands)),
	}
	if err := pkt.Validate(); err != nil {
		sum.Consistent = false
		sum.Problem = err.Error()
	}
	for i, cmd := range pkt.Commands {
		row := CommandRow{
			Index:  i,
			Type:   uint16(cmd.Kind()),
			Name:   cmd.Kind().String(),
			Fields: describe(cmd),
			Params: cmd,
		}
		if i < len(pkt.CommandHeaders) {
			row.Size = pkt.CommandHeaders[i].Size
		}
		if b, err := uplink.EncodeCommand(cmd); err == nil && len(b) <= maxPayloadHex {
			row.Payload = hex.EncodeToString(b)
		}
		sum.Commands = append(sum.Commands, row)
	}
	return sum
}

func describe(cmd uplink.Command) string {
	switch c := cmd.(type) {
	case uplink.DeviceEnable:
		return fmt.Sprintf("device=%d", c.Device)
	case uplink.DeviceDisable:
		return fmt.Sprintf("device=%d", c.Device)
	case uplink.DeviceBreak:
		return fmt.Sprintf("device=%d", c.Device)
	case uplink.DeviceUnbreak:
		return fmt.Sprintf("device=%d", c.Device)
	case uplink.DisplayUpdate:
		return "bitmap sha256=" + common.Sha256Hex(c.Bitmap[:])[:16]
	case uplink.Sleep:
		return fmt.Sprintf("duration=%ds", c.Duration)
	case uplink.PictureCapture:
		return fmt.Sprintf("timestamp=%d", c.Timestamp)
	case uplink.PictureSend:
		return fmt.Sprintf("count=%d", c.Count)
	case uplink.SetTime:
		return fmt.Sprintf("timestamp=%d", c.Timestamp)
	case uplink.SetPowerMode:
		return fmt.Sprintf("mode=%d", c.Mode)
	case uplink.ADCSSetOpMode:
		return fmt.Sprintf("mode=%d", c.Mode)
	case uplink.ADCSSetKeplers:
		u := c.Update
		parts := []string{
			fmt.Sprintf("epoch=%d", u.Timestamp),
			fmt.Sprintf("i=%g", u.Inclination),
			fmt.Sprintf("raan=%g", u.RAAN),
			fmt.Sprintf("e=%g", u.Eccentricity),
			fmt.Sprintf("w=%g", u.PerigeeArg),
			fmt.Sprintf("M=%g", u.MeanAnomaly),
			fmt.Sprintf("n=%g", u.MeanMotion),
		}
		return strings.Join(parts, " ")
	}
	return ""
}

func SaveJSON(sum Summary, out string) error {
	b, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return err
	}
	return common.WriteFile(out, b)
}
