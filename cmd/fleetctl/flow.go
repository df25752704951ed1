package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tutu-network/mrta-fleet/internal/config"
)

func init() {
	rootCmd.AddCommand(flowCmd)
	flowCmd.AddCommand(flowRunCmd)

	flowRunCmd.Flags().String("fleet", "", "path to a fleet TOML scenario file")
	flowRunCmd.Flags().String("flow", "", "path to a material flow TOML scenario file")
	flowRunCmd.Flags().String("allocator", "auction", "allocator to run: auction or central")
	flowRunCmd.MarkFlagRequired("fleet")
	flowRunCmd.MarkFlagRequired("flow")
}

var flowCmd = &cobra.Command{
	Use:   "flow",
	Short: "Inspect and run material flow scenario files",
}

var flowRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a material flow to completion without serving the status API",
	Long: `A headless variant of "fleetctl simulate": runs the flow to
completion using config.Default() and prints the virtual time it took
and each participant's assigned task count, without the --serve or
--config options. Intended for quick
checks of a scenario file pair during authoring.`,
	RunE: runFlowRun,
}

func runFlowRun(cmd *cobra.Command, args []string) error {
	fleetPath, _ := cmd.Flags().GetString("fleet")
	flowPath, _ := cmd.Flags().GetString("flow")
	allocator, _ := cmd.Flags().GetString("allocator")

	result, err := runScenario(fleetPath, flowPath, allocator, config.Default())
	if err != nil {
		return err
	}

	if result.Err != nil {
		return fmt.Errorf("flow did not complete: %w", result.Err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "completed in virtual time %s\n", result.ElapsedClock)
	for _, p := range result.Participants {
		fmt.Fprintf(cmd.OutOrStdout(), "  %-16s tasks=%d\n", p.Connection, p.TaskCount)
	}
	return nil
}
