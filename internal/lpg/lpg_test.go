package lpg

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/tutu-network/mrta-fleet/internal/mrta"
)

func chainTask(preceding ...uuid.UUID) mrta.Task {
	return mrta.NewTask([]mrta.Order{mrta.NewMoveOrder(mrta.Position{})}, mrta.Ability{}, preceding...)
}

func TestNew_InitialLayers(t *testing.T) {
	a := chainTask()
	b := chainTask(a.ID)
	c := chainTask(b.ID)
	flow := mrta.NewMaterialFlow([]mrta.Task{a, b, c})

	g := New(flow)

	layer, ok := g.Layer(a.ID)
	require.True(t, ok)
	require.Equal(t, Free, layer)

	layer, _ = g.Layer(b.ID)
	require.Equal(t, Second, layer)

	layer, _ = g.Layer(c.ID)
	require.Equal(t, Hidden, layer)
}

func TestNext_PrecedenceChainAdvancesOneLayerAtATime(t *testing.T) {
	a := chainTask()
	b := chainTask(a.ID)
	c := chainTask(b.ID)
	flow := mrta.NewMaterialFlow([]mrta.Task{a, b, c})
	g := New(flow)

	require.Equal(t, 3, g.Depth())

	g.Next()
	layer, _ := g.Layer(a.ID)
	require.Equal(t, Scheduled, layer)
	layer, _ = g.Layer(b.ID)
	require.Equal(t, Free, layer)
	layer, _ = g.Layer(c.ID)
	require.Equal(t, Second, layer)

	g.Next()
	layer, _ = g.Layer(b.ID)
	require.Equal(t, Scheduled, layer)
	layer, _ = g.Layer(c.ID)
	require.Equal(t, Free, layer)

	g.Next()
	layer, _ = g.Layer(c.ID)
	require.Equal(t, Scheduled, layer)
	require.True(t, g.AreAllTasksScheduled())
}

func TestSetLatestFinishTime_PropagatesToChildPC(t *testing.T) {
	a := chainTask()
	b := chainTask(a.ID)
	flow := mrta.NewMaterialFlow([]mrta.Task{a, b})
	g := New(flow)

	g.SetLatestFinishTime(a.ID, 42*time.Second)
	g.Next()

	pc, ok := g.EarliestValidStartTime(b.ID)
	require.True(t, ok)
	require.Equal(t, 42*time.Second, pc)
}

func TestSetTaskFree_RollsBackRejectedWinner(t *testing.T) {
	a := chainTask()
	flow := mrta.NewMaterialFlow([]mrta.Task{a})
	g := New(flow)

	g.SetTaskScheduled(a.ID)
	require.True(t, g.IsFreeTaskScheduled(a.ID))

	g.SetTaskFree(a.ID)
	layer, _ := g.Layer(a.ID)
	require.Equal(t, Free, layer)
}

func TestAreAllFreeTasksScheduled_EmptyFreeLayer(t *testing.T) {
	a := chainTask()
	flow := mrta.NewMaterialFlow([]mrta.Task{a})
	g := New(flow)

	require.False(t, g.AreAllFreeTasksScheduled())
	g.SetTaskScheduled(a.ID)
	require.True(t, g.AreAllFreeTasksScheduled())
}
