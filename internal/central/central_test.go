package central

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tutu-network/mrta-fleet/internal/config"
	"github.com/tutu-network/mrta-fleet/internal/fleet"
	"github.com/tutu-network/mrta-fleet/internal/mrta"
	"github.com/tutu-network/mrta-fleet/internal/overlay"
	"github.com/tutu-network/mrta-fleet/internal/simclock"
)

func testDescription() mrta.AMRDescription {
	return mrta.AMRDescription{
		SerialNumber: "amr",
		Kinematics:   mrta.Kinematics{VMax: 1, VMin: 0, AMax: 1, AMin: -1},
		LoadHandling: mrta.LoadHandling{LoadTime: time.Second, UnloadTime: time.Second},
		Functionalities: map[mrta.FunctionalityKind]bool{
			mrta.MoveTo: true, mrta.Load: true, mrta.Unload: true,
		},
	}
}

func moveTask(dest mrta.Position) mrta.Task {
	return mrta.NewTask([]mrta.Order{mrta.NewMoveOrder(dest)}, mrta.Ability{})
}

// With a single registered participant, AssignAll confirms every task and
// the participant's SimpleOrderManagement ends up holding all of them.
func TestCentralInitiator_SingleParticipantConfirmsAllTasks(t *testing.T) {
	ov := overlay.New()
	clk := simclock.New()
	fl := fleet.New()
	fl.Register("amr-1", mrta.Ability{})

	om := NewSimpleOrderManagement(testDescription(), mrta.Topology{Width: 1000, Height: 1000}, mrta.Pose{})
	NewParticipant("amr-1", ov, om)

	ci := NewCentralInitiator("central-1", clk, ov, fl, config.Default())

	var gotErr error
	done := false
	ci.AssignAll([]mrta.Task{moveTask(mrta.Position{X: 5}), moveTask(mrta.Position{X: 10})}, func(err error) {
		done = true
		gotErr = err
	})

	require.True(t, done)
	require.NoError(t, gotErr)
	require.Equal(t, 2, om.TaskCount())
}

// Round-robin over two participants alternates assignments instead of
// piling every task onto one connection.
func TestCentralInitiator_RoundRobinsAcrossParticipants(t *testing.T) {
	ov := overlay.New()
	clk := simclock.New()
	fl := fleet.New()
	fl.Register("amr-1", mrta.Ability{})
	fl.Register("amr-2", mrta.Ability{})

	om1 := NewSimpleOrderManagement(testDescription(), mrta.Topology{Width: 1000, Height: 1000}, mrta.Pose{})
	om2 := NewSimpleOrderManagement(testDescription(), mrta.Topology{Width: 1000, Height: 1000}, mrta.Pose{})
	NewParticipant("amr-1", ov, om1)
	NewParticipant("amr-2", ov, om2)

	ci := NewCentralInitiator("central-1", clk, ov, fl, config.Default())
	ci.AssignAll([]mrta.Task{
		moveTask(mrta.Position{X: 1}),
		moveTask(mrta.Position{X: 2}),
		moveTask(mrta.Position{X: 3}),
		moveTask(mrta.Position{X: 4}),
	}, func(error) {})

	require.Equal(t, 2, om1.TaskCount())
	require.Equal(t, 2, om2.TaskCount())
}

// An unconfirmed assignment is reassigned after the configured timeout; with
// only one (unconnected) fitting participant it is reissued to the same
// one, so the flow never completes and nothing panics.
func TestCentralInitiator_ReassignsAfterTimeout(t *testing.T) {
	ov := overlay.New()
	clk := simclock.New()
	fl := fleet.New()
	fl.Register("amr-stuck", mrta.Ability{})

	// No participant registered for "amr-stuck" direct connection, so the
	// AssignmentNotification is silently dropped by the overlay and the
	// initiator's timeout fires.
	ci := NewCentralInitiator("central-1", clk, ov, fl, config.Default())

	done := false
	var gotErr error
	ci.AssignAll([]mrta.Task{moveTask(mrta.Position{X: 1})}, func(err error) {
		done = true
		gotErr = err
	})
	require.False(t, done)
	require.Equal(t, 1, ci.AssignmentCount())

	clk.Advance(config.Default().Central.WaitToReceiveAssignmentResponse() + time.Millisecond)

	// Still only one participant exists, so the reassignment lands back on
	// it and times out again; onDone never fires but no panic occurs and
	// the state machine keeps cycling through REASSIGN.
	require.False(t, done)
	_ = gotErr
}

// No participant fits the required ability: AssignAll reports
// mrta.ErrInfeasible rather than hanging.
func TestCentralInitiator_NoFittingParticipantFails(t *testing.T) {
	ov := overlay.New()
	clk := simclock.New()
	fl := fleet.New()

	ci := NewCentralInitiator("central-1", clk, ov, fl, config.Default())

	var gotErr error
	ci.AssignAll([]mrta.Task{moveTask(mrta.Position{X: 1})}, func(err error) {
		gotErr = err
	})
	require.ErrorIs(t, gotErr, mrta.ErrInfeasible)
}
