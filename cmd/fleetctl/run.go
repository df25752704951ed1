package main

import (
	"fmt"
	"time"

	"github.com/tutu-network/mrta-fleet/internal/auction"
	"github.com/tutu-network/mrta-fleet/internal/central"
	"github.com/tutu-network/mrta-fleet/internal/config"
	"github.com/tutu-network/mrta-fleet/internal/fleet"
	"github.com/tutu-network/mrta-fleet/internal/mrta"
	"github.com/tutu-network/mrta-fleet/internal/ordermanagement"
	"github.com/tutu-network/mrta-fleet/internal/overlay"
	"github.com/tutu-network/mrta-fleet/internal/simclock"
)

// participantView is the post-run roster entry reported by runScenario.
type participantView struct {
	Connection    string
	TaskCount     int
	TotalMakespan time.Duration
}

// runResult summarizes one completed (or failed) simulation run.
type runResult struct {
	Allocator    string
	ElapsedClock time.Duration
	Participants []participantView
	Err          error
}

// maxAdvanceWindow bounds a single Clock.Advance call: large enough that
// every callback scheduled during a run's protocol windows (seconds, per
// config.Config's defaults) chains through in one call, matching how
// internal/simclock's own tests drive the clock (simclock_test.go).
const maxAdvanceWindow = 7 * 24 * time.Hour

// maxAdvanceSteps bounds how many Advance calls runScenario will make
// before giving up on a run that never reports done, guarding against a
// pathological scenario file that wedges the event loop.
const maxAdvanceSteps = 1000

// runScenario assembles a fleet and material flow from the given scenario
// files and drives either allocator to completion.
func runScenario(fleetPath, flowPath, allocator string, cfg config.Config) (runResult, error) {
	ff, err := loadFleetFile(fleetPath)
	if err != nil {
		return runResult{}, err
	}
	flow, err := loadFlowFile(flowPath)
	if err != nil {
		return runResult{}, err
	}
	if err := flow.Validate(); err != nil {
		return runResult{}, fmt.Errorf("material flow: %w", err)
	}

	topo := mrta.Topology{Width: ff.Topology.Width, Height: ff.Topology.Height}
	ov := overlay.New()
	clk := simclock.New()
	fl := fleet.New()

	descs := make(map[string]mrta.AMRDescription, len(ff.AMRs))
	for _, spec := range ff.AMRs {
		desc, err := spec.description()
		if err != nil {
			return runResult{}, err
		}
		descs[spec.SerialNumber] = desc
		fl.Register(spec.SerialNumber, spec.ability())
	}

	var done bool
	var runErr error
	onDone := func(err error) {
		done = true
		runErr = err
	}

	result := runResult{Allocator: allocator}

	switch allocator {
	case "auction":
		oms := make(map[string]*ordermanagement.StnOrderManagement, len(ff.AMRs))
		for _, spec := range ff.AMRs {
			om := ordermanagement.New(descs[spec.SerialNumber], topo, mrta.Pose{}, nil)
			oms[spec.SerialNumber] = om
			auction.NewParticipant(spec.SerialNumber, spec.ability(), ov, om)
		}
		init := auction.NewInitiator("initiator", clk, ov, fl, cfg, nil)
		init.PrepareInteraction(fl.Abilities(), func() {
			init.RunMaterialFlow(flow, onDone)
		})
		if err := driveClock(clk, &done); err != nil {
			return runResult{}, err
		}
		for _, spec := range ff.AMRs {
			om := oms[spec.SerialNumber]
			result.Participants = append(result.Participants, participantView{
				Connection:    spec.SerialNumber,
				TaskCount:     om.QueueLength(),
				TotalMakespan: om.TotalMakespan(),
			})
		}
	case "central":
		oms := make(map[string]*central.SimpleOrderManagement, len(ff.AMRs))
		for _, spec := range ff.AMRs {
			om := central.NewSimpleOrderManagement(descs[spec.SerialNumber], topo, mrta.Pose{})
			oms[spec.SerialNumber] = om
			central.NewParticipant(spec.SerialNumber, ov, om)
		}
		ci := central.NewCentralInitiator("initiator", clk, ov, fl, cfg)
		tasks := make([]mrta.Task, 0, len(flow.Tasks))
		for _, t := range flow.Tasks {
			tasks = append(tasks, t)
		}
		ci.AssignAll(tasks, onDone)
		if err := driveClock(clk, &done); err != nil {
			return runResult{}, err
		}
		for _, spec := range ff.AMRs {
			om := oms[spec.SerialNumber]
			result.Participants = append(result.Participants, participantView{
				Connection: spec.SerialNumber,
				TaskCount:  om.TaskCount(),
			})
		}
	default:
		return runResult{}, fmt.Errorf("unknown allocator %q (want auction or central)", allocator)
	}

	result.ElapsedClock = clk.Now()
	result.Err = runErr
	return result, nil
}

// driveClock advances clk in large steps until done flips true or no
// callback remains pending.
func driveClock(clk *simclock.Clock, done *bool) error {
	for i := 0; i < maxAdvanceSteps && !*done; i++ {
		if clk.Pending() == 0 {
			break
		}
		clk.Advance(maxAdvanceWindow)
	}
	if !*done {
		return fmt.Errorf("simulation: no progress after %d clock advances", maxAdvanceSteps)
	}
	return nil
}
