package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tutu-network/mrta-fleet/internal/fleet"
)

func init() {
	rootCmd.AddCommand(fleetCmd)
	fleetCmd.AddCommand(fleetDescribeCmd)

	fleetDescribeCmd.Flags().String("fleet", "", "path to a fleet TOML scenario file")
	fleetDescribeCmd.MarkFlagRequired("fleet")
}

var fleetCmd = &cobra.Command{
	Use:   "fleet",
	Short: "Inspect fleet scenario files",
}

var fleetDescribeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Print the ability roster a fleet file would register",
	Long: `Parses --fleet and prints the distinct abilities present and which
AMR serial numbers offer each one, the same partitioning
internal/fleet.Fleet uses to route CallForProposal broadcasts.`,
	RunE: runFleetDescribe,
}

func runFleetDescribe(cmd *cobra.Command, args []string) error {
	fleetPath, _ := cmd.Flags().GetString("fleet")
	ff, err := loadFleetFile(fleetPath)
	if err != nil {
		return err
	}

	fl := fleet.New()
	for _, spec := range ff.AMRs {
		fl.Register(spec.SerialNumber, spec.ability())
	}

	fmt.Fprintf(cmd.OutOrStdout(), "topology: %gx%g m\n", ff.Topology.Width, ff.Topology.Height)
	for _, a := range fl.Abilities() {
		fmt.Fprintf(cmd.OutOrStdout(), "%s (load_carrier=%s max_payload_kg=%g)\n", fleet.TopicForAbility(a), a.LoadCarrier, a.MaxPayloadKg)
		for _, conn := range fl.Connections(a) {
			fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", conn)
		}
	}
	return nil
}
