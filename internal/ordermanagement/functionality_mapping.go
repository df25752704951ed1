package ordermanagement

import (
	"fmt"

	"github.com/tutu-network/mrta-fleet/internal/mrta"
)

// ordersToFunctionalities flattens a Task's Orders into the Functionality
// sequence the mobility cost oracle understands: MoveOrder becomes a
// single MoveTo; ActionOrder becomes a Load or Unload at the AMR's current
// position; TransportOrder becomes a MoveTo+Load pair per pickup step
// followed by a MoveTo+Unload pair at the delivery step. last is the
// position the AMR is assumed to occupy before the first order — required
// because ActionOrder carries no location of its own.
//
// Grounded on material_flow_functionality_mapping.cpp's
// materialFlowToFunctionalities/handleMoveOrder/handleActionOrder/
// handleTransportOrder.
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
				return nil, fmt.Errorf("ordermanagement: action order missing load/unload parameter: %w", mrta.ErrInvalidArgument)
			}
		case mrta.TransportOrder:
			for _, step := range o.PickupSteps {
				fs = append(fs, mrta.NewMoveTo(step.Location), mrta.NewLoad(step.Location))
			}
			fs = append(fs, mrta.NewMoveTo(o.DeliveryStep.Location), mrta.NewUnload(o.DeliveryStep.Location))
			last = o.DeliveryStep.Location
		default:
			return nil, fmt.Errorf("ordermanagement: unknown order kind: %w", mrta.ErrInvalidArgument)
		}
	}
	return fs, nil
}

// taskEndPosition returns the position the AMR occupies after completing
// all of task's orders, given it started at start.
func taskEndPosition(start mrta.Position, task mrta.Task) mrta.Position {
	pos := start
	for _, o := range task.Orders {
		if p, ok := o.EndLocation(); ok {
			pos = p
		}
	}
	return pos
}
