package central

import (
	"fmt"

	"github.com/tutu-network/mrta-fleet/internal/mobility"
	"github.com/tutu-network/mrta-fleet/internal/mrta"
)

// SimpleOrderManagement is the round-robin allocator's participant-side
// schedule: tasks are appended strictly in arrival order with no insertion
// search, no STN, and no feasibility check beyond "does this AMR support
// the required functionalities" -- spec.md §4.6's "unconditionally
// accepts". Grounded on centralized_participant.cpp's
// SimpleOrderManagement (the auction stack's StnOrderManagement is the
// "smart" counterpart of the same interface).
type SimpleOrderManagement struct {
	desc mrta.AMRDescription
	topo mrta.Topology
	pose mrta.Pose

	tasks []mrta.Task
	end   mrta.Position
}

// NewSimpleOrderManagement returns an empty schedule anchored at pose.
func NewSimpleOrderManagement(desc mrta.AMRDescription, topo mrta.Topology, pose mrta.Pose) *SimpleOrderManagement {
	return &SimpleOrderManagement{desc: desc, topo: topo, pose: pose, end: pose.Position}
}

// AddTask appends task to the end of the schedule and returns the
// standalone MetricsComposition for executing it from the schedule's
// current end position, plus the AMR's new end position. Unlike
// ordermanagement.StnOrderManagement.AddTask this never fails on
// feasibility -- it errors on a malformed task (unknown order kind,
// ActionOrder without load/unload) or when the mobility check rejects a
// functionality the AMR does not support or a position outside the topology.
func (s *SimpleOrderManagement) AddTask(task mrta.Task) (mrta.MetricsComposition, mrta.Position, error) {
	fs, err := ordersToFunctionalities(task.Orders, s.end)
	if err != nil {
		return mrta.MetricsComposition{}, mrta.Position{}, err
	}
	dm, err := mobility.CalculateMetricsByDomain(s.end, fs, s.desc, s.topo)
	if err != nil {
		return mrta.MetricsComposition{}, mrta.Position{}, err
	}

	m := mrta.Metrics{
		EmptyTravelTime:      dm.EmptyTravelTime,
		LoadedTravelTime:     dm.LoadedTravelTime,
		ActionTime:           dm.ActionTime,
		EmptyTravelDistance:  dm.EmptyTravelDistance,
		LoadedTravelDistance: dm.LoadedTravelDistance,
	}
	m.SetStartTime(0)

	mc := mrta.NewMetricsComposition(mrta.Metrics{})
	mc.FixInsertionMetrics(m)
	mc.SetDiffInsertionMetrics(m)

	s.end = taskEndPosition(s.end, task)
	s.tasks = append(s.tasks, task)
	return mc, s.end, nil
}

// TaskCount reports how many tasks have been appended.
func (s *SimpleOrderManagement) TaskCount() int { return len(s.tasks) }

// EndPosition reports the AMR's position after every appended task.
func (s *SimpleOrderManagement) EndPosition() mrta.Position { return s.end }

// ordersToFunctionalities mirrors ordermanagement's unexported helper of
// the same name (material_flow_functionality_mapping.cpp): flattens a
// Task's Orders into a mobility.Functionality sequence. Duplicated rather
// than imported because the StnOrderManagement version is an unexported
// package-internal of internal/ordermanagement.
func ordersToFunctionalities(orders []mrta.Order, last mrta.Position) ([]mrta.Functionality, error) {
	fs := make([]mrta.Functionality, 0, len(orders)*2)
	for _, o := range orders {
		switch o.Kind {
		case mrta.MoveOrder:
			fs = append(fs, mrta.NewMoveTo(o.Location))
			last = o.Location
		case mrta.ActionOrder:
			switch {
			case o.IsLoad():
				fs = append(fs, mrta.NewLoad(last))
			case o.IsUnload():
				fs = append(fs, mrta.NewUnload(last))
			default:
				return nil, fmt.Errorf("central: action order missing load/unload parameter: %w", mrta.ErrInvalidArgument)
			}
		case mrta.TransportOrder:
			for _, step := range o.PickupSteps {
				fs = append(fs, mrta.NewMoveTo(step.Location), mrta.NewLoad(step.Location))
			}
			fs = append(fs, mrta.NewMoveTo(o.DeliveryStep.Location), mrta.NewUnload(o.DeliveryStep.Location))
			last = o.DeliveryStep.Location
		default:
			return nil, fmt.Errorf("central: unknown order kind: %w", mrta.ErrInvalidArgument)
		}
	}
	return fs, nil
}

// taskEndPosition mirrors ordermanagement's unexported helper of the same
// name.
func taskEndPosition(start mrta.Position, task mrta.Task) mrta.Position {
	pos := start
	for _, o := range task.Orders {
		if p, ok := o.EndLocation(); ok {
			pos = p
		}
	}
	return pos
}
