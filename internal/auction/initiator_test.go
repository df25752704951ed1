package auction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tutu-network/mrta-fleet/internal/config"
	"github.com/tutu-network/mrta-fleet/internal/fleet"
	"github.com/tutu-network/mrta-fleet/internal/mrta"
	"github.com/tutu-network/mrta-fleet/internal/ordermanagement"
	"github.com/tutu-network/mrta-fleet/internal/overlay"
	"github.com/tutu-network/mrta-fleet/internal/simclock"
)

// driveToCompletion advances clk in large steps until done flips true or no
// callback remains pending, mirroring cmd/fleetctl's driveClock.
func driveToCompletion(t *testing.T, clk *simclock.Clock, done *bool) {
	t.Helper()
	for i := 0; i < 100 && !*done; i++ {
		if clk.Pending() == 0 {
			break
		}
		clk.Advance(24 * time.Hour)
	}
	require.True(t, *done, "auction did not complete")
}

// Scenario 2 of spec.md §8: two bidders for one task, one materially closer
// to the pickup than the other. Under the default utility
// (mrta.NegativeEmptyTravelTime, u(m) = -m.EmptyTravelTime) the bidder with
// less empty travel -- the closer one -- must win.
func TestInitiator_TwoBiddersCloserOneWinsUnderDefaultUtility(t *testing.T) {
	ov := overlay.New()
	clk := simclock.New()
	fl := fleet.New()

	ability := mrta.Ability{}
	fl.Register("amr-close", ability)
	fl.Register("amr-far", ability)

	desc := mrta.AMRDescription{
		SerialNumber: "amr",
		Kinematics:   mrta.Kinematics{VMax: 1, VMin: 0, AMax: 1, AMin: -1},
		LoadHandling: mrta.LoadHandling{LoadTime: time.Second, UnloadTime: time.Second},
		Functionalities: map[mrta.FunctionalityKind]bool{
			mrta.MoveTo: true, mrta.Load: true, mrta.Unload: true, mrta.Navigate: true,
		},
	}
	topo := mrta.Topology{Width: 1000, Height: 1000}

	omClose := ordermanagement.New(desc, topo, mrta.Pose{Position: mrta.Position{X: 4}}, nil)
	omFar := ordermanagement.New(desc, topo, mrta.Pose{Position: mrta.Position{X: 20}}, nil)
	NewParticipant("amr-close", ability, ov, omClose)
	NewParticipant("amr-far", ability, ov, omFar)

	init := NewInitiator("initiator", clk, ov, fl, config.Default(), nil)

	pickup := mrta.TransportStep{Location: mrta.Position{X: 5}}
	delivery := mrta.TransportStep{Location: mrta.Position{X: 20}}
	task := mrta.NewTask([]mrta.Order{mrta.NewTransportOrder([]mrta.TransportStep{pickup}, delivery)}, ability)
	flow := mrta.NewMaterialFlow([]mrta.Task{task})

	var done bool
	var gotErr error
	init.PrepareInteraction(fl.Abilities(), func() {
		init.RunMaterialFlow(flow, func(err error) {
			done = true
			gotErr = err
		})
	})
	driveToCompletion(t, clk, &done)

	require.NoError(t, gotErr)
	require.Equal(t, 1, omClose.QueueLength())
	require.Equal(t, 0, omFar.QueueLength())
}
