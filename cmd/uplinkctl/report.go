package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"example.com/pvdxlink/internal/report"
)

func newReportCmd(a *app) *cobra.Command {
	var inPath, pdfPath, jsonPath string
	var space bool
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render a printable uplink sheet with a QR code of the packet hash",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.report(inPath, pdfPath, jsonPath, space)
		},
	}
	cmd.Flags().StringVar(&inPath, "in", "", "encoded uplink file")
	cmd.Flags().StringVar(&pdfPath, "pdf", "uplink.pdf", "PDF output")
	cmd.Flags().StringVar(&jsonPath, "json", "", "optional JSON summary output")
	cmd.Flags().BoolVar(&space, "space", false, "input is a single space packet carrying the uplink")
	cmd.MarkFlagRequired("in")
	return cmd
}

func (a *app) report(inPath, pdfPath, jsonPath string, space bool) error {
	items, err := a.decodeFile(inPath, space)
	if err != nil {
		return err
	}
	if len(items) != 1 {
		return fmt.Errorf("%s holds %d space packets; report takes one", inPath, len(items))
	}
	it := items[0]
	sum := report.Summarize(it.raw, it.pkt, it.space)
	if err := report.SavePDF(sum, pdfPath); err != nil {
		return err
	}
	if jsonPath != "" {
		if err := report.SaveJSON(sum, jsonPath); err != nil {
			return err
		}
	}
	fmt.Fprintf(a.out, "wrote %s for %s (sha256 %s)\n", pdfPath, sum.Callsign, sum.SHA256)
	return nil
}
