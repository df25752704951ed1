package main

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tutu-network/mrta-fleet/internal/api"
	"github.com/tutu-network/mrta-fleet/internal/auction"
	"github.com/tutu-network/mrta-fleet/internal/config"
	"github.com/tutu-network/mrta-fleet/internal/fleet"
	"github.com/tutu-network/mrta-fleet/internal/lpg"
	"github.com/tutu-network/mrta-fleet/internal/mrta"
	"github.com/tutu-network/mrta-fleet/internal/ordermanagement"
	"github.com/tutu-network/mrta-fleet/internal/overlay"
	"github.com/tutu-network/mrta-fleet/internal/simclock"
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("fleet", "", "path to a fleet TOML scenario file")
	serveCmd.Flags().String("flow", "", "path to a material flow TOML scenario file")
	serveCmd.Flags().String("addr", ":8080", "address to serve the status API on")
	serveCmd.Flags().Bool("metrics", true, "mount the Prometheus /metrics endpoint")
	serveCmd.MarkFlagRequired("fleet")
	serveCmd.MarkFlagRequired("flow")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the iterated auction and serve its final status over HTTP",
	Long: `Runs the iterated auction allocator over --fleet/--flow to
completion, then serves internal/api's read-only fleet/materialflow
status endpoints over --addr so the run's layered-precedence outcome can
be inspected after the fact (GET /fleet, GET /materialflow, GET
/materialflow/{id}).`,
	RunE: runServe,
}

// auctionFlowStatus adapts one auction.Initiator's layered precedence
// graph to api.FlowStatusProvider.
type auctionFlowStatus struct {
	flowID uuid.UUID
	graph  *lpg.Graph
}

func (a auctionFlowStatus) ActiveFlows() []uuid.UUID { return []uuid.UUID{a.flowID} }

func (a auctionFlowStatus) FlowStatus(id uuid.UUID) (api.FlowStatus, bool) {
	if id != a.flowID || a.graph == nil {
		return api.FlowStatus{}, false
	}
	return api.FlowStatus{
		FlowID:         a.flowID,
		FreeCount:      len(a.graph.GetLayerVertices(lpg.Free)),
		SecondCount:    len(a.graph.GetLayerVertices(lpg.Second)),
		HiddenCount:    len(a.graph.GetLayerVertices(lpg.Hidden)),
		ScheduledCount: len(a.graph.GetLayerVertices(lpg.Scheduled)),
		AllScheduled:   a.graph.AreAllTasksScheduled(),
	}, true
}

func runServe(cmd *cobra.Command, args []string) error {
	fleetPath, _ := cmd.Flags().GetString("fleet")
	flowPath, _ := cmd.Flags().GetString("flow")
	addr, _ := cmd.Flags().GetString("addr")
	withMetrics, _ := cmd.Flags().GetBool("metrics")

	ff, err := loadFleetFile(fleetPath)
	if err != nil {
		return err
	}
	flow, err := loadFlowFile(flowPath)
	if err != nil {
		return err
	}
	if err := flow.Validate(); err != nil {
		return fmt.Errorf("material flow: %w", err)
	}

	topo := mrta.Topology{Width: ff.Topology.Width, Height: ff.Topology.Height}
	ov := overlay.New()
	clk := simclock.New()
	fl := fleet.New()

	for _, spec := range ff.AMRs {
		desc, err := spec.description()
		if err != nil {
			return err
		}
		fl.Register(spec.SerialNumber, spec.ability())
		om := ordermanagement.New(desc, topo, mrta.Pose{}, nil)
		auction.NewParticipant(spec.SerialNumber, spec.ability(), ov, om)
	}

	cfg := config.Default()
	init := auction.NewInitiator("initiator", clk, ov, fl, cfg, nil)

	flowID := uuid.New()
	var done bool
	var runErr error
	init.PrepareInteraction(fl.Abilities(), func() {
		init.RunMaterialFlow(flow, func(err error) {
			done = true
			runErr = err
		})
	})
	if err := driveClock(clk, &done); err != nil {
		return err
	}
	if runErr != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "auction finished with an error: %v\n", runErr)
	}

	status := auctionFlowStatus{flowID: flowID, graph: init.Graph()}
	server := api.NewServer(fl, status)
	if withMetrics {
		server.EnableMetrics()
	}

	fmt.Fprintf(cmd.OutOrStdout(), "serving status for material flow %s on %s\n", flowID, addr)
	return http.ListenAndServe(addr, server.Handler())
}
