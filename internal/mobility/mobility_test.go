package mobility

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tutu-network/mrta-fleet/internal/mrta"
)

func testDescription() mrta.AMRDescription {
	return mrta.AMRDescription{
		SerialNumber: "amr-1",
		Kinematics:   mrta.Kinematics{VMax: 1, VMin: 0, AMax: 1, AMin: -1},
		LoadHandling: mrta.LoadHandling{LoadTime: 2 * time.Second, UnloadTime: 3 * time.Second},
		Functionalities: map[mrta.FunctionalityKind]bool{
			mrta.MoveTo: true, mrta.Load: true, mrta.Unload: true, mrta.Navigate: true,
		},
	}
}

func testTopology() mrta.Topology { return mrta.Topology{Width: 100, Height: 100} }

func TestEstimateDuration_TrapezoidalLongLeg(t *testing.T) {
	desc := testDescription()
	topo := testTopology()

	f := mrta.NewMoveTo(mrta.Position{X: 10, Y: 0})
	d, err := EstimateDuration(mrta.Pose{}, f, desc, topo, false)
	require.NoError(t, err)
	// d_acc = d_dec = 0.5, threshold 1 < 10, so const phase covers 9m at v=1
	// t_acc=1, t_dec=1, t_const=9 -> total 11s
	assert.InDelta(t, 11.0, d.Seconds(), 1e-9)
}

func TestEstimateDuration_ShortLegTriangular(t *testing.T) {
	desc := testDescription()
	desc.Kinematics = mrta.Kinematics{VMax: 10, VMin: 0, AMax: 10, AMin: -10}
	topo := testTopology()

	f := mrta.NewMoveTo(mrta.Position{X: 3, Y: 0})
	d, err := EstimateDuration(mrta.Pose{}, f, desc, topo, false)
	require.NoError(t, err)
	// threshold = v^2/(2a) *2 = 10 > 3: short leg. symmetric accel params so
	// split is d/2 each phase; t = sqrt(2*(d/2)/a) = sqrt(d/a) = sqrt(0.3)
	phases, err := CalculatePhases(0, mrta.Pose{}, f, desc, topo)
	require.NoError(t, err)
	require.Len(t, phases, 3) // Accelerating, Decelerating, Idle: no ConstSpeed phase for a short leg
	last := phases[len(phases)-1]
	assert.Equal(t, Idle, last.State)
	assert.InDelta(t, d.Seconds(), last.Timestamp.Seconds(), 1e-9)
}

func TestEstimateDuration_OutOfTopology(t *testing.T) {
	desc := testDescription()
	topo := testTopology()
	f := mrta.NewMoveTo(mrta.Position{X: 1000, Y: 0})
	_, err := EstimateDuration(mrta.Pose{}, f, desc, topo, false)
	require.Error(t, err)
}

func TestEstimateDuration_LoadPositionCheck(t *testing.T) {
	desc := testDescription()
	topo := testTopology()
	f := mrta.NewLoad(mrta.Position{X: 5, Y: 5})
	_, err := EstimateDuration(mrta.Pose{Position: mrta.Position{X: 0, Y: 0}}, f, desc, topo, true)
	require.Error(t, err)

	d, err := EstimateDuration(mrta.Pose{Position: mrta.Position{X: 5, Y: 5}}, f, desc, topo, true)
	require.NoError(t, err)
	assert.Equal(t, desc.LoadHandling.LoadTime, d)
}

func TestCalculatePhases_MonotonicAndEndsIdle(t *testing.T) {
	desc := testDescription()
	topo := testTopology()
	f := mrta.NewMoveTo(mrta.Position{X: 10, Y: 0})

	phases, err := CalculatePhases(0, mrta.Pose{}, f, desc, topo)
	require.NoError(t, err)
	require.NotEmpty(t, phases)

	for i := 1; i < len(phases); i++ {
		assert.GreaterOrEqual(t, phases[i].Timestamp, phases[i-1].Timestamp)
	}
	last := phases[len(phases)-1]
	assert.Equal(t, Idle, last.State)
	assert.Equal(t, f.Destination, last.Position)

	total, err := EstimateDuration(mrta.Pose{}, f, desc, topo, false)
	require.NoError(t, err)
	assert.InDelta(t, total.Seconds(), last.Timestamp.Seconds(), 1e-9)
}

func TestCalculateMobilityStatus_ReachesNextPhasePosition(t *testing.T) {
	desc := testDescription()
	topo := testTopology()
	f := mrta.NewMoveTo(mrta.Position{X: 10, Y: 0})

	phases, err := CalculatePhases(0, mrta.Pose{}, f, desc, topo)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(phases), 2)

	status, err := CalculateMobilityStatus(phases[0], phases[1].Timestamp)
	require.NoError(t, err)
	assert.InDelta(t, phases[1].Position.X, status.Position.X, 1e-9)
	assert.InDelta(t, phases[1].Position.Y, status.Position.Y, 1e-9)
}

func TestCalculateMobilityStatus_BeforePhaseStartFails(t *testing.T) {
	s := Status{State: ConstSpeed, Timestamp: 5 * time.Second}
	_, err := CalculateMobilityStatus(s, 4*time.Second)
	require.Error(t, err)
}

func TestNavigate_ShortLegsNoStop(t *testing.T) {
	desc := testDescription()
	desc.Kinematics = mrta.Kinematics{VMax: 10, VMin: 0, AMax: 10, AMin: -10}
	topo := testTopology()

	f := mrta.NewNavigate([]mrta.Position{{X: 1, Y: 0}, {X: 2, Y: 0}, {X: 3, Y: 0}})
	phases, err := CalculatePhases(0, mrta.Pose{}, f, desc, topo)
	require.NoError(t, err)
	require.NotEmpty(t, phases)

	for _, p := range phases {
		assert.NotEqual(t, Stationary, p.State)
	}
	last := phases[len(phases)-1]
	assert.Equal(t, Idle, last.State)
	assert.InDelta(t, 3.0, last.Position.X, 1e-9)

	total, err := EstimateDuration(mrta.Pose{}, f, desc, topo, false)
	require.NoError(t, err)
	assert.InDelta(t, total.Seconds(), last.Timestamp.Seconds(), 1e-9)
}

func TestCalculateMetricsByDomain_TransportSplit(t *testing.T) {
	desc := testDescription()
	topo := testTopology()

	fs := []mrta.Functionality{
		mrta.NewMoveTo(mrta.Position{X: 5, Y: 0}),
		mrta.NewLoad(mrta.Position{X: 5, Y: 0}),
		mrta.NewMoveTo(mrta.Position{X: 15, Y: 0}),
		mrta.NewUnload(mrta.Position{X: 15, Y: 0}),
	}

	m, err := CalculateMetricsByDomain(mrta.Position{}, fs, desc, topo)
	require.NoError(t, err)
	assert.Greater(t, m.EmptyTravelTime, time.Duration(0))
	assert.Greater(t, m.LoadedTravelTime, time.Duration(0))
	assert.Equal(t, desc.LoadHandling.LoadTime+desc.LoadHandling.UnloadTime, m.ActionTime)
	assert.InDelta(t, 5.0, m.EmptyTravelDistance, 1e-9)
	assert.InDelta(t, 10.0, m.LoadedTravelDistance, 1e-9)
}
