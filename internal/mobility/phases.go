package mobility

import (
	"fmt"
	"math"
	"time"

	"github.com/tutu-network/mrta-fleet/internal/mrta"
)

// CalculatePhases expands f into the ordered kinematic waypoints an AMR
// passes through executing it from startPose at startTimestamp, ending
// with a trailing Idle status. Load/Unload produce a single Stationary
// phase; MoveTo and Navigate produce a full trapezoidal (or triangular,
// if the path is too short to reach VMax) motion profile.
func CalculatePhases(startTimestamp time.Duration, startPose mrta.Pose, f mrta.Functionality, desc mrta.AMRDescription, topo mrta.Topology) ([]Status, error) {
	if err := SanityCheck(startPose, f, desc, topo); err != nil {
		return nil, err
	}
	switch f.Kind {
	case mrta.Load:
		return calculateMovePhases(startTimestamp, startPose.Position, f.Destination, [3]float64{0, 0, 0}, desc.LoadHandling.LoadTime, desc.Kinematics), nil
	case mrta.Unload:
		return calculateMovePhases(startTimestamp, startPose.Position, f.Destination, [3]float64{0, 0, 0}, desc.LoadHandling.UnloadTime, desc.Kinematics), nil
	case mrta.MoveTo:
		dist := CalculateDistance(startPose.Position, f)
		distances := phaseDistances(dist, desc.Kinematics)
		return calculateMovePhases(startTimestamp, startPose.Position, f.Destination, distances, 0, desc.Kinematics), nil
	case mrta.Navigate:
		return calculateNavigatePhases(startTimestamp, startPose.Position, f.Waypoints, desc.Kinematics), nil
	default:
		return nil, fmt.Errorf("mobility: unknown functionality: %w", mrta.ErrInvalidArgument)
	}
}

// calculateMovePhases builds the phase list for a single straight-line
// leg. stationaryTime > 0 turns it into a Load/Unload (zero-distance,
// pure dwell) phase.
func calculateMovePhases(startTimestamp time.Duration, start, dest mrta.Position, distances [3]float64, stationaryTime time.Duration, kin mrta.Kinematics) []Status {
	durations := phaseDurations(distances, kin)
	translation := dest.Sub(start)
	var direction mrta.Position
	if translation.Length() != 0 {
		direction = translation.Unit()
	}

	nextPos := start
	nextTime := startTimestamp
	var nextVel float64

	ret := make([]Status, 0, 5)

	if durations[0] > 0 {
		ret = append(ret, Status{
			State:        Accelerating,
			Velocity:     mrta.Position{},
			Acceleration: direction.Scale(kin.AMax),
			Position:     nextPos,
			Timestamp:    nextTime,
		})
		nextTime += fromSeconds(durations[0])
		nextPos = nextPos.Add(direction.Scale(distances[0]))
		nextVel = durations[0] * kin.AMax
	}

	if durations[1] > 0 {
		ret = append(ret, Status{
			State:        ConstSpeed,
			Velocity:     direction.Scale(kin.VMax),
			Acceleration: mrta.Position{},
			Position:     nextPos,
			Timestamp:    nextTime,
		})
		nextTime += fromSeconds(durations[1])
		nextPos = nextPos.Add(direction.Scale(distances[1]))
		nextVel = kin.VMax
	}

	if durations[2] > 0 {
		ret = append(ret, Status{
			State:        Decelerating,
			Velocity:     direction.Scale(nextVel),
			Acceleration: direction.Scale(-kin.MaxDeceleration()),
			Position:     nextPos,
			Timestamp:    nextTime,
		})
		nextPos = nextPos.Add(direction.Scale(distances[2]))
		nextTime += fromSeconds(durations[2])
	}

	if stationaryTime > 0 {
		ret = append(ret, Status{
			State:     Stationary,
			Position:  dest,
			Timestamp: nextTime,
		})
		nextTime += stationaryTime
	}

	ret = append(ret, Status{State: Idle, Position: dest, Timestamp: nextTime})
	return ret
}

// calculateNavigatePhases builds the waypoint-aware phase list for a
// multi-leg Navigate: the AMR accelerates once from rest at the first
// waypoint, cruises at VMax across however many waypoint crossings fit
// before the remaining distance requires braking, then decelerates once
// to rest at the final waypoint. Intermediate waypoints do not interrupt
// the velocity profile.
func calculateNavigatePhases(startTimestamp time.Duration, start mrta.Position, waypoints []mrta.Position, kin mrta.Kinematics) []Status {
	total := CalculateDistance(start, mrta.Functionality{Kind: mrta.Navigate, Waypoints: waypoints})
	distances := phaseDistances(total, kin)
	durations := phaseDurations(distances, kin)

	ret := make([]Status, 0, len(waypoints)+4)
	cumulativeDistance := 0.0
	cumulativeTime := time.Duration(0)
	wp := start
	lastWp := start
	var lastVel mrta.Velocity
	var translation mrta.Position
	i := 0

	// acceleration, possibly spanning several waypoints
	for ; i < len(waypoints); i++ {
		lastWp = wp
		wp = waypoints[i]
		translation = wp.Sub(lastWp)
		cumulativeDistance += translation.Length()
		if translation.Length() == 0 {
			continue
		}
		if cumulativeDistance < distances[0] {
			direction := translation.Unit()
			t := -lastVel.Length()/kin.AMax + math.Sqrt(lastVel.Length()*lastVel.Length()/(kin.AMax*kin.AMax)+2*translation.Length()/kin.AMax)
			vel := direction.Scale(lastVel.Length() + kin.AMax*t)
			ret = append(ret, Status{State: Accelerating, Timestamp: startTimestamp + cumulativeTime, Position: lastWp, Acceleration: direction.Scale(kin.AMax), Velocity: vel})
			lastVel = vel
			cumulativeTime += fromSeconds(t)
		} else {
			break
		}
	}

	if translation.Length() > 0 && durations[0] > 0 {
		direction := translation.Unit()
		ret = append(ret, Status{
			State:        Accelerating,
			Velocity:     direction.Scale(lastVel.Length()),
			Acceleration: direction.Scale(kin.AMax),
			Position:     lastWp,
			Timestamp:    startTimestamp + cumulativeTime,
		})
		wp = lastWp.Add(direction.Scale(distances[0] + translation.Length() - cumulativeDistance))
		cumulativeTime = fromSeconds(durations[0])
		cumulativeDistance = distances[0]
		lastVel = direction.Scale(kin.AMax * durations[0])
	}

	// constant velocity, possibly spanning several waypoints
	for ; i < len(waypoints); i++ {
		lastWp = wp
		wp = waypoints[i]
		translation = wp.Sub(lastWp)
		cumulativeDistance += translation.Length()
		if translation.Length() == 0 {
			continue
		}
		if cumulativeDistance < distances[0]+distances[1] {
			direction := translation.Unit()
			t := translation.Length() / kin.VMax
			ret = append(ret, Status{State: ConstSpeed, Timestamp: startTimestamp + cumulativeTime, Position: lastWp, Acceleration: mrta.Position{}, Velocity: direction.Scale(kin.VMax)})
			cumulativeTime += fromSeconds(t)
		} else {
			break
		}
	}

	if translation.Length() > 0 && durations[1] > 0 {
		direction := translation.Unit()
		ret = append(ret, Status{
			State:        ConstSpeed,
			Velocity:     direction.Scale(kin.VMax),
			Acceleration: mrta.Position{},
			Position:     lastWp,
			Timestamp:    startTimestamp + cumulativeTime,
		})
		wp = lastWp.Add(direction.Scale(distances[0] + distances[1] + translation.Length() - cumulativeDistance))
		cumulativeTime = fromSeconds(durations[0] + durations[1])
		cumulativeDistance = distances[0] + distances[1]
		lastVel = direction.Scale(kin.VMax)
	} else {
		wp = wp.Sub(translation)
		cumulativeDistance -= translation.Length()
	}

	// deceleration, possibly spanning several waypoints
	for ; i < len(waypoints); i++ {
		lastWp = wp
		wp = waypoints[i]
		translation = wp.Sub(lastWp)
		cumulativeDistance += translation.Length()
		if translation.Length() == 0 {
			continue
		}
		if cumulativeDistance > distances[0]+distances[1] {
			direction := translation.Unit()
			maxDec := kin.MaxDeceleration()
			t := lastVel.Length()/maxDec - math.Sqrt(lastVel.Length()*lastVel.Length()/(maxDec*maxDec)-2*translation.Length()/maxDec)
			ret = append(ret, Status{State: Decelerating, Timestamp: startTimestamp + cumulativeTime, Position: lastWp, Acceleration: direction.Scale(-maxDec), Velocity: direction.Scale(lastVel.Length())})
			lastVel = direction.Scale(lastVel.Length() - maxDec*t)
			cumulativeTime += fromSeconds(t)
		}
	}

	ret = append(ret, Status{
		State:     Idle,
		Position:  wp,
		Timestamp: startTimestamp + fromSeconds(durations[0]+durations[1]+durations[2]),
	})
	return ret
}

// CalculateMobilityStatus integrates current forward to currentTimestamp
// under its own velocity/acceleration, without crossing into the next
// phase.
func CalculateMobilityStatus(current Status, currentTimestamp time.Duration) (Status, error) {
	deltaT := seconds(currentTimestamp - current.Timestamp)
	if deltaT < -1e-9 {
		return Status{}, fmt.Errorf("mobility: current timestamp before phase timestamp: %w", mrta.ErrInvalidArgument)
	}
	status := current
	switch current.State {
	case Accelerating, Decelerating:
		status.Position = current.Position.Add(current.Velocity.Scale(deltaT)).Add(current.Acceleration.Scale(0.5 * deltaT * deltaT))
		status.Velocity = current.Velocity.Add(current.Acceleration.Scale(deltaT))
	case ConstSpeed:
		status.Position = current.Position.Add(current.Velocity.Scale(deltaT))
	}
	status.Timestamp = currentTimestamp
	return status, nil
}
