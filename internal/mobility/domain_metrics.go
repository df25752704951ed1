package mobility

import (
	"fmt"
	"time"

	"github.com/tutu-network/mrta-fleet/internal/mrta"
)

// DomainMetrics is the empty/loaded/action split produced by
// CalculateMetricsByDomain: travel time and distance bucketed by whether
// the AMR is carrying a load carrier at the time, plus accumulated action
// (load/unload) time.
type DomainMetrics struct {
	EmptyTravelTime      time.Duration
	LoadedTravelTime     time.Duration
	ActionTime           time.Duration
	EmptyTravelDistance  mrta.Distance
	LoadedTravelDistance mrta.Distance
}

// CalculateMetricsByDomain walks fs in order, starting at start and
// unloaded, accumulating distance and duration into the empty/loaded
// buckets of DomainMetrics according to the loaded flag, which Load/Unload
// flip. Navigate is intentionally not supported here — material flow legs
// never decompose into a Navigate functionality, only MoveTo/Load/Unload.
func CalculateMetricsByDomain(start mrta.Position, fs []mrta.Functionality, desc mrta.AMRDescription, topo mrta.Topology) (DomainMetrics, error) {
	var m DomainMetrics
	loaded := false
	last := start

	for _, f := range fs {
		switch f.Kind {
		case mrta.MoveTo:
			dist := CalculateDistance(last, f)
			dur, err := EstimateDuration(mrta.Pose{Position: last}, f, desc, topo, false)
			if err != nil {
				return DomainMetrics{}, err
			}
			if loaded {
				m.LoadedTravelDistance += dist
				m.LoadedTravelTime += dur
			} else {
				m.EmptyTravelDistance += dist
				m.EmptyTravelTime += dur
			}
			last = f.Destination
		case mrta.Load:
			loaded = true
			dur, err := EstimateDuration(mrta.Pose{Position: last}, f, desc, topo, false)
			if err != nil {
				return DomainMetrics{}, err
			}
			m.ActionTime += dur
		case mrta.Unload:
			loaded = false
			dur, err := EstimateDuration(mrta.Pose{Position: last}, f, desc, topo, false)
			if err != nil {
				return DomainMetrics{}, err
			}
			m.ActionTime += dur
		default:
			return DomainMetrics{}, fmt.Errorf("mobility: functionality %s not supported in domain metrics: %w", f.Kind, mrta.ErrInvalidArgument)
		}
	}
	return m, nil
}
