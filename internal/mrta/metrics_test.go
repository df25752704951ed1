package mrta

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMetrics_AddUsesMaxMakespan(t *testing.T) {
	a := Metrics{EmptyTravelTime: time.Second}
	a.SetMakespan(5 * time.Second)
	b := Metrics{LoadedTravelTime: 2 * time.Second}
	b.SetMakespan(3 * time.Second)

	sum := a.Add(b)
	require.Equal(t, 5*time.Second, sum.Makespan())
	require.Equal(t, time.Second, sum.EmptyTravelTime)
	require.Equal(t, 2*time.Second, sum.LoadedTravelTime)
}

func TestMetrics_SubUsesMinMakespan(t *testing.T) {
	a := Metrics{}
	a.SetMakespan(5 * time.Second)
	b := Metrics{}
	b.SetMakespan(3 * time.Second)

	diff := a.Sub(b)
	require.Equal(t, 3*time.Second, diff.Makespan())
}

func TestMetrics_MakespanDerivedFromStartTimeWhenUnset(t *testing.T) {
	m := Metrics{EmptyTravelTime: 2 * time.Second, ActionTime: time.Second}
	m.SetStartTime(10 * time.Second)
	require.Equal(t, 13*time.Second, m.Makespan())
}

func TestMetricsComposition_SetOnceGuards(t *testing.T) {
	mc := NewMetricsComposition(Metrics{})

	mc.FixInsertionMetrics(Metrics{EmptyTravelTime: time.Second})
	require.Panics(t, func() { mc.FixInsertionMetrics(Metrics{}) })

	mc.SetDiffInsertionMetrics(Metrics{EmptyTravelTime: time.Second})
	require.True(t, mc.DiffInsertionSet())
	require.Panics(t, func() { mc.SetDiffInsertionMetrics(Metrics{}) })
}

func TestMetricsComposition_MetricsForAuctionPanicsBeforeSet(t *testing.T) {
	mc := NewMetricsComposition(Metrics{})
	require.Panics(t, func() { mc.MetricsForAuction() })
}

func TestNegativeEmptyTravelTime_PrefersLessEmptyTravel(t *testing.T) {
	a := Metrics{EmptyTravelTime: time.Second}
	b := Metrics{EmptyTravelTime: 2 * time.Second}

	require.Greater(t, NegativeEmptyTravelTime(a), NegativeEmptyTravelTime(b))
}

func TestMetricsComposition_BetterRanksByUtility(t *testing.T) {
	closer := NewMetricsComposition(Metrics{})
	closer.FixInsertionMetrics(Metrics{EmptyTravelTime: time.Second})
	closer.SetDiffInsertionMetrics(Metrics{EmptyTravelTime: time.Second})

	farther := NewMetricsComposition(Metrics{})
	farther.FixInsertionMetrics(Metrics{EmptyTravelTime: 5 * time.Second})
	farther.SetDiffInsertionMetrics(Metrics{EmptyTravelTime: 5 * time.Second})

	require.True(t, closer.Better(farther, NegativeEmptyTravelTime))
	require.False(t, farther.Better(closer, NegativeEmptyTravelTime))
}

func TestAbility_LessEq(t *testing.T) {
	small := Ability{LoadCarrier: "tote", MaxPayloadKg: 10}
	big := Ability{LoadCarrier: "tote", MaxPayloadKg: 20}
	other := Ability{LoadCarrier: "pallet", MaxPayloadKg: 20}

	require.True(t, small.LessEq(big))
	require.False(t, big.LessEq(small))
	require.False(t, small.LessEq(other))
}
