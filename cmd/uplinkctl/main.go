package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"example.com/pvdxlink/internal/common"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// app carries what every subcommand shares.
type app struct {
	out         io.Writer
	errOut      io.Writer
	metrics     *common.Metrics
	showMetrics bool
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "uplinkctl",
		Short:         "Build, decode and report on spacecraft uplink packets",
		Version:       fmt.Sprintf("%s (built %s)", version, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(a.out)
	root.SetErr(a.errOut)
	root.PersistentFlags().BoolVar(&a.showMetrics, "metrics", false, "print codec metrics on exit")

	root.AddCommand(newBuildCmd(a))
	root.AddCommand(newDecodeCmd(a))
	root.AddCommand(newReportCmd(a))
	root.AddCommand(newCommandsCmd(a))
	return root
}

// run executes args and returns the process exit status.
func run(args []string, stdout, stderr io.Writer) int {
	a := &app{out: stdout, errOut: stderr, metrics: common.NewMetrics()}
	root := newRootCmd(a)
	root.SetArgs(args)
	cmd, err := root.ExecuteC()
	if a.showMetrics {
		fmt.Fprintln(stderr, a.metrics.Snapshot())
	}
	if err != nil {
		verb := root.Name()
		if cmd != nil {
			verb = cmd.Name()
		}
		fmt.Fprintf(stderr, "%s: %v\n", verb, err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
