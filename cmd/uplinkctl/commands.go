package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"example.com/pvdxlink/internal/uplink"
)

func newCommandsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "commands",
		Short: "List every command type with its tag and payload size",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TAG\tNAME\tSIZE")
			for _, k := range uplink.Kinds() {
				size, err := k.PayloadSize()
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%d\t%s\t%d\n", uint16(k), k, size)
			}
			return w.Flush()
		},
	}
}
