package ordermanagement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tutu-network/mrta-fleet/internal/mrta"
)

func testDescription() mrta.AMRDescription {
	return mrta.AMRDescription{
		SerialNumber: "amr-1",
		Kinematics:   mrta.Kinematics{VMax: 1, VMin: 0, AMax: 1, AMin: -1},
		LoadHandling: mrta.LoadHandling{LoadTime: time.Second, UnloadTime: time.Second},
		Functionalities: map[mrta.FunctionalityKind]bool{
			mrta.MoveTo: true, mrta.Load: true, mrta.Unload: true, mrta.Navigate: true,
		},
	}
}

func testTopology() mrta.Topology { return mrta.Topology{Width: 1000, Height: 1000} }

func transportTask(pickup, delivery mrta.Position) mrta.Task {
	step := mrta.TransportStep{Location: pickup}
	order := mrta.NewTransportOrder([]mrta.TransportStep{step}, mrta.TransportStep{Location: delivery})
	return mrta.NewTask([]mrta.Order{order}, mrta.Ability{})
}

// Scenario 1 of spec.md §8: single TransportOrder from (0,0) to (10,0),
// AMR at rest with VMax=AMax=AMin=1 -- trapezoidal long leg totals 11s.
func TestAddTask_SingleTransportOrder(t *testing.T) {
	desc := testDescription()
	topo := testTopology()
	om := New(desc, topo, mrta.Pose{}, nil)

	task := transportTask(mrta.Position{}, mrta.Position{X: 10, Y: 0})

	require.True(t, om.CanAddTask(task))
	metrics, point, err := om.LatestCalculatedInsertionInfo()
	require.NoError(t, err)
	require.InDelta(t, 11.0, metrics.MetricsForAuction().LoadedTravelTime.Seconds(), 1e-9)

	require.NoError(t, om.AddTask(task, &point))
	committed, _, err := om.LatestCalculatedInsertionInfo()
	require.NoError(t, err)
	require.Equal(t, metrics.MetricsForAuction(), committed.MetricsForAuction())
}

// Scenario 5 of spec.md §8: a task whose time window is too tight for its
// own duration is rejected by CanAddTask, and LatestCalculatedInsertionInfo
// then reports ErrNoInsertionInfo; no state is mutated by the failed trial.
func TestCanAddTask_InfeasibleTimeWindow(t *testing.T) {
	desc := testDescription()
	topo := testTopology()
	om := New(desc, topo, mrta.Pose{}, nil)

	task := transportTask(mrta.Position{}, mrta.Position{X: 10, Y: 0})
	task.Window = &mrta.TimeWindow{EarliestStart: 0, LatestFinish: 5}

	require.False(t, om.CanAddTask(task))
	_, _, err := om.LatestCalculatedInsertionInfo()
	require.ErrorIs(t, err, mrta.ErrNoInsertionInfo)
	require.Empty(t, om.ordering)
}

// Time windows are expressed against the STN's moving origin, not wall
// clock: once SetCurrentTime has advanced m.now, a window whose
// earliest_start already lies behind the new origin must be rejected even
// though its raw value is still a positive, "future-looking" number.
// Exercises the spec.md §4.2 "earliest_start - now" / "latest_finish - now"
// subtraction for a task added after the origin has moved, not just one
// added at om.now == 0.
func TestCanAddTask_TimeWindowRelativeToCurrentTime(t *testing.T) {
	desc := testDescription()
	topo := testTopology()
	om := New(desc, topo, mrta.Pose{}, nil)

	require.NoError(t, om.SetCurrentTime(20*time.Second))

	task := transportTask(mrta.Position{}, mrta.Position{X: 1, Y: 0})
	task.Window = &mrta.TimeWindow{EarliestStart: 15, LatestFinish: 30}

	require.False(t, om.CanAddTask(task), "window's earliest_start (15s) is already behind the 20s origin")
	_, _, err := om.LatestCalculatedInsertionInfo()
	require.ErrorIs(t, err, mrta.ErrNoInsertionInfo)
}

// The mirror case: once the origin has moved, a window that is still ahead
// of it in absolute terms must be bounded relative to that origin, not
// treated as an offset from zero.
func TestCanAddTask_TimeWindowAheadOfCurrentTimeIsFeasible(t *testing.T) {
	desc := testDescription()
	topo := testTopology()
	om := New(desc, topo, mrta.Pose{}, nil)

	require.NoError(t, om.SetCurrentTime(20*time.Second))

	task := transportTask(mrta.Position{}, mrta.Position{X: 1, Y: 0})
	task.Window = &mrta.TimeWindow{EarliestStart: 25, LatestFinish: 45}

	require.True(t, om.CanAddTask(task), "window 5s..25s ahead of the 20s origin leaves ample slack for a 1m leg")
	_, _, err := om.LatestCalculatedInsertionInfo()
	require.NoError(t, err)
}

// addBestOrdering should prefer inserting a cheaper task ahead of a more
// expensive one when both candidate slots are feasible -- exercises the
// "enumerate all insertion points, keep the best" path of spec.md §4.2
// step 3.
func TestAddTask_BestOrderingPicksCheaperSplice(t *testing.T) {
	desc := testDescription()
	topo := testTopology()
	om := New(desc, topo, mrta.Pose{}, nil)

	far := transportTask(mrta.Position{X: 100, Y: 0}, mrta.Position{X: 110, Y: 0})
	require.True(t, om.CanAddTask(far))
	_, point, err := om.LatestCalculatedInsertionInfo()
	require.NoError(t, err)
	require.NoError(t, om.AddTask(far, &point))

	near := transportTask(mrta.Position{X: 1, Y: 0}, mrta.Position{X: 2, Y: 0})
	require.True(t, om.CanAddTask(near))
	metrics, _, err := om.LatestCalculatedInsertionInfo()
	require.NoError(t, err)
	require.NoError(t, om.AddTask(near, nil))

	require.Len(t, om.ordering, 2)
	require.Equal(t, near.ID, om.ordering[0].Task.ID)
	require.True(t, metrics.MetricsForAuction().EmptyTravelTime >= 0)
}

// A participant never commits a task whose metrics silently changed
// between bidding and awarding -- re-trialling the exact same insertion
// point on an unmodified schedule must reproduce identical metrics
// (spec.md §8's "STN solvability" invariant).
func TestCanAddTask_Idempotent(t *testing.T) {
	desc := testDescription()
	topo := testTopology()
	om := New(desc, topo, mrta.Pose{}, nil)

	task := transportTask(mrta.Position{}, mrta.Position{X: 5, Y: 0})
	require.True(t, om.CanAddTask(task))
	first, _, err := om.LatestCalculatedInsertionInfo()
	require.NoError(t, err)

	require.True(t, om.CanAddTask(task))
	second, _, err := om.LatestCalculatedInsertionInfo()
	require.NoError(t, err)

	require.Equal(t, first.MetricsForAuction(), second.MetricsForAuction())
}

func TestSetCurrentTime_RejectsBackwardsMove(t *testing.T) {
	desc := testDescription()
	topo := testTopology()
	om := New(desc, topo, mrta.Pose{}, nil)

	require.NoError(t, om.SetCurrentTime(5*time.Second))
	err := om.SetCurrentTime(time.Second)
	require.ErrorIs(t, err, mrta.ErrInvalidArgument)
}

func TestSetNextTask_PopsEarliestAndRemovesVertices(t *testing.T) {
	desc := testDescription()
	topo := testTopology()
	om := New(desc, topo, mrta.Pose{}, nil)

	require.False(t, om.SetNextTask())

	task := transportTask(mrta.Position{}, mrta.Position{X: 5, Y: 0})
	require.True(t, om.CanAddTask(task))
	require.NoError(t, om.AddTask(task, nil))

	require.True(t, om.SetNextTask())
	current, err := om.CurrentTask()
	require.NoError(t, err)
	require.Equal(t, task.ID, current.ID)
	require.True(t, om.HasTasks())
	require.Empty(t, om.ordering)
}
