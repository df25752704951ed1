package mrta

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestTopology_Contains(t *testing.T) {
	topo := Topology{Width: 10, Height: 5}

	require.True(t, topo.Contains(Position{X: 0, Y: 0}))
	require.True(t, topo.Contains(Position{X: 10, Y: 5}))
	require.False(t, topo.Contains(Position{X: -0.1, Y: 0}))
	require.False(t, topo.Contains(Position{X: 0, Y: 5.1}))
}

func TestPosition_UnitAndLength(t *testing.T) {
	p := Position{X: 3, Y: 4}
	require.InDelta(t, 5.0, p.Length(), 1e-9)

	u := p.Unit()
	require.InDelta(t, 1.0, u.Length(), 1e-9)
}

func TestMaterialFlow_ValidateDetectsCycle(t *testing.T) {
	a := NewTask([]Order{NewMoveOrder(Position{})}, Ability{})
	b := NewTask([]Order{NewMoveOrder(Position{})}, Ability{}, a.ID)
	a.Preceding = []uuid.UUID{b.ID} // manufactured cycle: a depends on b, b depends on a

	flow := NewMaterialFlow([]Task{a, b})
	require.Error(t, flow.Validate())
}

func TestMaterialFlow_ValidateAcceptsDAG(t *testing.T) {
	a := NewTask([]Order{NewMoveOrder(Position{})}, Ability{})
	b := NewTask([]Order{NewMoveOrder(Position{})}, Ability{}, a.ID)
	flow := NewMaterialFlow([]Task{a, b})
	require.NoError(t, flow.Validate())
}
