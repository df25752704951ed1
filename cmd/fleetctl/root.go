// Command fleetctl drives and inspects a multi-robot task allocation
// simulation: assembling a fleet and material flow from TOML scenario
// files, running either the iterated-auction or round-robin allocator to
// completion over a virtual clock, and optionally serving a read-only
// status API once the run has finished. Command-tree shape grounded on the teacher's
// cobra agent CLI (formerly internal/cli/agent.go, superseded here -- see
// DESIGN.md): a package-level rootCmd, subcommands registered from init(),
// flags bound via cmd.Flags().
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "fleetctl",
	Short: "Operate a multi-robot task allocation fleet simulation",
	Long: `fleetctl assembles an AMR fleet and a material flow from TOML
scenario files and runs a discrete-event simulation of task allocation,
either via the iterated auction protocol or the round-robin central
allocator.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
