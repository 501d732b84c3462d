package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"example.com/pvdxlink/internal/report"
	"example.com/pvdxlink/internal/spp"
	"example.com/pvdxlink/internal/uplink"
)

// decoded is one uplink packet read from a file, with the space packet
// header that carried it when --space was given.
type decoded struct {
	raw   []byte
	pkt   uplink.Packet
	space *spp.PrimaryHeader
}

func newDecodeCmd(a *app) *cobra.Command {
	var inPath string
	var space, validate bool
	cmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode an uplink packet file and print a JSON summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.decode(inPath, space, validate)
		},
	}
	cmd.Flags().StringVar(&inPath, "in", "", "encoded uplink file")
	cmd.Flags().BoolVar(&space, "space", false, "input is a stream of space packets carrying uplinks")
	cmd.Flags().BoolVar(&validate, "validate", false, "fail when headers disagree with commands")
	cmd.MarkFlagRequired("in")
	return cmd
}

func (a *app) decode(inPath string, space, validate bool) error {
	items, err := a.decodeFile(inPath, space)
	if err != nil {
		return err
	}
	sums := make([]report.Summary, 0, len(items))
	for i, it := range items {
		if validate {
			if err := it.pkt.Validate(); err != nil {
				a.metrics.AddFailure()
				return fmt.Errorf("packet %d: %w", i, err)
			}
		}
		sums = append(sums, report.Summarize(it.raw, it.pkt, it.space))
	}
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	if !space {
		return enc.Encode(sums[0])
	}
	return enc.Encode(sums)
}

func (a *app) decodeFile(path string, space bool) ([]decoded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !space {
		pkt, err := uplink.Decode(data)
		if err != nil {
			a.metrics.AddFailure()
			return nil, err
		}
		a.metrics.AddDecoded(len(data))
		return []decoded{{raw: data, pkt: pkt}}, nil
	}
	packets, err := spp.SplitAll(data)
	if err != nil {
		a.metrics.AddFailure()
		return nil, fmt.Errorf("space packet %d: %w", len(packets), err)
	}
	if len(packets) == 0 {
		return nil, fmt.Errorf("%s holds no space packets", path)
	}
	out := make([]decoded, 0, len(packets))
	for i := range packets {
		sp := packets[i]
		pkt, err := uplink.Decode(sp.Data)
		if err != nil {
			a.metrics.AddFailure()
			return nil, fmt.Errorf("space packet %d: %w", i, err)
		}
		a.metrics.AddDecoded(sp.EncodedLen())
		out = append(out, decoded{raw: sp.Data, pkt: pkt, space: &sp.Primary})
	}
	return out, nil
}
