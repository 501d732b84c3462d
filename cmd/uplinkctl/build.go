package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"example.com/pvdxlink/internal/common"
	"example.com/pvdxlink/internal/plan"
	"example.com/pvdxlink/internal/report"
	"example.com/pvdxlink/internal/spp"
)

func newBuildCmd(a *app) *cobra.Command {
	var planPath, outPath, summaryPath string
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Encode an uplink plan",
		Long: `Reads a YAML uplink plan and writes the encoded bytes. When the plan has a
spacePacket section the output is a telecommand space packet carrying the
uplink packet.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.build(planPath, outPath, summaryPath)
		},
	}
	cmd.Flags().StringVar(&planPath, "plan", "", "uplink plan (YAML)")
	cmd.Flags().StringVar(&outPath, "out", "uplink.bin", "output file")
	cmd.Flags().StringVar(&summaryPath, "summary", "", "optional JSON summary output")
	cmd.MarkFlagRequired("plan")
	return cmd
}

func (a *app) build(planPath, outPath, summaryPath string) error {
	p, err := plan.Load(planPath)
	if err != nil {
		a.metrics.AddFailure()
		return err
	}
	res, err := p.Assemble(spp.NewSequenceCounter())
	if err != nil {
		a.metrics.AddFailure()
		return err
	}
	if err := common.WriteFile(outPath, res.Bytes); err != nil {
		return err
	}
	a.metrics.AddEncoded(len(res.Bytes))

	var space *spp.PrimaryHeader
	if res.Space != nil {
		space = &res.Space.Primary
	}
	sum := report.Summarize(res.Bytes, res.Uplink, space)
	if summaryPath != "" {
		if err := report.SaveJSON(sum, summaryPath); err != nil {
			return err
		}
	}
	fileSum, n, err := common.Sha256OfFile(outPath)
	if err != nil {
		return err
	}
	if fileSum != sum.SHA256 || n != int64(len(res.Bytes)) {
		return fmt.Errorf("verify %s: read back %d bytes with sha256 %s, wrote %d with %s",
			outPath, n, fileSum, len(res.Bytes), sum.SHA256)
	}
	fmt.Fprintf(a.out, "wrote %s: %d commands, %d bytes, sha256 %s\n",
		outPath, len(res.Uplink.Commands), n, fileSum)
	return nil
}
