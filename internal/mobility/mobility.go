// Package mobility is the cost oracle: given an AMR's kinematics and a
// sequence of functionalities, it estimates durations, distances and full
// trapezoidal motion phases. It has no knowledge of auctions, orders or
// the precedence graph — order management calls it to price insertions.
package mobility

import (
	"fmt"
	"math"
	"time"

	"github.com/tutu-network/mrta-fleet/internal/mrta"
)

// PhaseState is the AMR's kinematic state during one segment of a motion
// plan.
type PhaseState int

const (
	Accelerating PhaseState = iota
	ConstSpeed
	Decelerating
	Stationary
	Idle
)

func (s PhaseState) String() string {
	switch s {
	case Accelerating:
		return "Accelerating"
	case ConstSpeed:
		return "ConstSpeed"
	case Decelerating:
		return "Decelerating"
	case Stationary:
		return "Stationary"
	default:
		return "Idle"
	}
}

// Status is one waypoint of a motion plan: the kinematic state an AMR
// enters at Timestamp and holds until the next Status in the same plan.
type Status struct {
	State        PhaseState
	Position     mrta.Position
	Velocity     mrta.Velocity
	Acceleration mrta.Acceleration
	Timestamp    time.Duration
}

func seconds(d time.Duration) float64 { return d.Seconds() }
func fromSeconds(s float64) time.Duration { return time.Duration(s * float64(time.Second)) }

// IsFunctionalityInDescription reports whether desc advertises support for
// f's kind.
func IsFunctionalityInDescription(f mrta.Functionality, desc mrta.AMRDescription) bool {
	return desc.Supports(f.Kind)
}

func arePositionsInTopology(f mrta.Functionality, topo mrta.Topology) error {
	check := func(p mrta.Position) error {
		if !topo.Contains(p) {
			return fmt.Errorf("mobility: destination outside topology: %w", mrta.ErrInvalidArgument)
		}
		return nil
	}
	if f.Kind == mrta.Navigate {
		for _, wp := range f.Waypoints {
			if err := check(wp); err != nil {
				return err
			}
		}
		return nil
	}
	return check(f.Destination)
}

// SanityCheck validates that f is advertised by desc, that startPose lies
// within topo, and that every destination/waypoint of f lies within topo.
func SanityCheck(startPose mrta.Pose, f mrta.Functionality, desc mrta.AMRDescription, topo mrta.Topology) error {
	if !IsFunctionalityInDescription(f, desc) {
		return fmt.Errorf("mobility: functionality %s not supported by description: %w", f.Kind, mrta.ErrInvalidArgument)
	}
	if !topo.Contains(startPose.Position) {
		return fmt.Errorf("mobility: start pose outside topology: %w", mrta.ErrInvalidArgument)
	}
	return arePositionsInTopology(f, topo)
}

// CalculateDistance returns the straight-line (or waypoint-summed, for
// Navigate) travel distance of f starting at start.
func CalculateDistance(start mrta.Position, f mrta.Functionality) mrta.Distance {
	if f.Kind == mrta.Navigate {
		d := 0.0
		last := start
		for _, wp := range f.Waypoints {
			d += wp.Sub(last).Length()
			last = wp
		}
		return d
	}
	return f.Destination.Sub(start).Length()
}

// CalculateDistanceAll sums CalculateDistance across a functionality
// sequence, carrying the end position of each step into the next.
func CalculateDistanceAll(start mrta.Position, fs []mrta.Functionality) mrta.Distance {
	d := 0.0
	last := start
	for _, f := range fs {
		d += CalculateDistance(last, f)
		last = f.EndPosition()
	}
	return d
}

// phaseDistances returns [accel, const, decel] distances in metres for a
// straight-line move of the given total distance under kin.
func phaseDistances(totalDistance float64, kin mrta.Kinematics) [3]float64 {
	maxDec := kin.MaxDeceleration()
	accel := (kin.VMax * kin.VMax) / (2 * kin.AMax)
	decel := (kin.VMax * kin.VMax) / (2 * maxDec)
	threshold := accel + decel
	if totalDistance < threshold {
		accel = totalDistance * maxDec / (kin.AMax + maxDec)
		decel = totalDistance * kin.AMax / (kin.AMax + maxDec)
		return [3]float64{accel, 0, decel}
	}
	return [3]float64{accel, totalDistance - accel - decel, decel}
}

// phaseDurations returns [accel, const, decel] durations in seconds for
// the distances produced by phaseDistances.
func phaseDurations(distances [3]float64, kin mrta.Kinematics) [3]float64 {
	maxDec := kin.MaxDeceleration()
	if distances[1] == 0 {
		return [3]float64{
			math.Sqrt(2 * distances[0] / kin.AMax),
			0,
			math.Sqrt(2 * distances[2] / maxDec),
		}
	}
	return [3]float64{
		kin.VMax / kin.AMax,
		distances[1] / kin.VMax,
		kin.VMax / maxDec,
	}
}

// EstimateDuration returns the total time f takes to execute, starting at
// startPose. checkPositioning additionally verifies Load/Unload occur
// where the AMR already stands.
func EstimateDuration(startPose mrta.Pose, f mrta.Functionality, desc mrta.AMRDescription, topo mrta.Topology, checkPositioning bool) (time.Duration, error) {
	if err := SanityCheck(startPose, f, desc, topo); err != nil {
		return 0, err
	}
	switch f.Kind {
	case mrta.MoveTo, mrta.Navigate:
		// Navigate's duration depends only on total path length, same
		// trapezoid formula as a single straight-line move.
		dist := CalculateDistance(startPose.Position, f)
		distances := phaseDistances(dist, desc.Kinematics)
		durations := phaseDurations(distances, desc.Kinematics)
		return fromSeconds(durations[0] + durations[1] + durations[2]), nil
	case mrta.Load:
		if checkPositioning && CalculateDistance(startPose.Position, f) != 0 {
			return 0, fmt.Errorf("mobility: start pose invalid for Load destination: %w", mrta.ErrInvalidArgument)
		}
		return desc.LoadHandling.LoadTime, nil
	case mrta.Unload:
		if checkPositioning && CalculateDistance(startPose.Position, f) != 0 {
			return 0, fmt.Errorf("mobility: start pose invalid for Unload destination: %w", mrta.ErrInvalidArgument)
		}
		return desc.LoadHandling.UnloadTime, nil
	default:
		return 0, fmt.Errorf("mobility: unknown functionality: %w", mrta.ErrInvalidArgument)
	}
}

// EstimateDurationAll sums EstimateDuration across a functionality
// sequence, carrying the end position of each step into the next.
func EstimateDurationAll(startPose mrta.Pose, fs []mrta.Functionality, desc mrta.AMRDescription, topo mrta.Topology, checkPositioning bool) (time.Duration, error) {
	total := time.Duration(0)
	pos := startPose.Position
	for _, f := range fs {
		d, err := EstimateDuration(mrta.Pose{Position: pos}, f, desc, topo, checkPositioning)
		if err != nil {
			return 0, err
		}
		total += d
		pos = f.EndPosition()
	}
	return total, nil
}
