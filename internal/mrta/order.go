package mrta

import "github.com/google/uuid"

// OrderKind tags the three order shapes.
type OrderKind int

const (
	MoveOrder OrderKind = iota
	ActionOrder
	TransportOrder
)

// TransportStep is one pickup or delivery stop of a TransportOrder.
type TransportStep struct {
	ID       uuid.UUID
	Location Position
}

// Order is one step of a Task: MoveOrder{location}, ActionOrder{parameters},
// or TransportOrder{pickup_steps, delivery_step}. Only the fields relevant
// to Kind are populated. Recognized ActionOrder parameter keys are "load"
// and "unload".
type Order struct {
	ID uuid.UUID
	Kind OrderKind

	// MoveOrder
	Location Position

	// ActionOrder
	Parameters map[string]string

	// TransportOrder
	PickupSteps  []TransportStep
	DeliveryStep TransportStep
}

// NewMoveOrder builds a MoveOrder with a fresh UUID.
func NewMoveOrder(location Position) Order {
	return Order{ID: uuid.New(), Kind: MoveOrder, Location: location}
}

// NewActionOrder builds an ActionOrder with a fresh UUID.
func NewActionOrder(parameters map[string]string) Order {
	return Order{ID: uuid.New(), Kind: ActionOrder, Parameters: parameters}
}

// NewTransportOrder builds a TransportOrder with a fresh UUID.
func NewTransportOrder(pickups []TransportStep, delivery TransportStep) Order {
	return Order{ID: uuid.New(), Kind: TransportOrder, PickupSteps: pickups, DeliveryStep: delivery}
}

// EndLocation returns the location the AMR occupies after executing the
// order, if statically known. ActionOrder has no location of its own — it
// executes wherever the AMR already is — so it reports ok=false and the
// caller must carry forward the previous location.
func (o Order) EndLocation() (Position, bool) {
	switch o.Kind {
	case MoveOrder:
		return o.Location, true
	case TransportOrder:
		return o.DeliveryStep.Location, true
	default: // ActionOrder
		return Position{}, false
	}
}

// IsLoad reports whether an ActionOrder represents a load action.
func (o Order) IsLoad() bool {
	_, ok := o.Parameters["load"]
	return o.Kind == ActionOrder && ok
}

// IsUnload reports whether an ActionOrder represents an unload action.
func (o Order) IsUnload() bool {
	_, ok := o.Parameters["unload"]
	return o.Kind == ActionOrder && ok
}

// TimeWindow is a task's relative execution window, anchored to a spawn
// time when the task was created.
type TimeWindow struct {
	EarliestStart float64
	LatestFinish  float64
}

// Task is an ordered, non-empty sequence of Orders executed strictly
// sequentially, plus scheduling metadata.
type Task struct {
	ID          uuid.UUID
	Orders      []Order
	Window      *TimeWindow
	Preceding   []uuid.UUID
	Requirement Ability
}

// NewTask builds a Task with a fresh UUID. orders must be non-empty.
func NewTask(orders []Order, requirement Ability, preceding ...uuid.UUID) Task {
	return Task{ID: uuid.New(), Orders: orders, Requirement: requirement, Preceding: preceding}
}

// MaterialFlow is a directed acyclic graph whose vertices are Tasks and
// whose edges are precedence relations (task.Preceding).
type MaterialFlow struct {
	Tasks map[uuid.UUID]Task
}

// NewMaterialFlow builds a MaterialFlow from a task list, keyed by UUID.
func NewMaterialFlow(tasks []Task) MaterialFlow {
	mf := MaterialFlow{Tasks: make(map[uuid.UUID]Task, len(tasks))}
	for _, t := range tasks {
		mf.Tasks[t.ID] = t
	}
	return mf
}

// Validate checks that the flow is acyclic and that every precedence
// reference resolves to a task in the flow, via Kahn's algorithm.
func (mf MaterialFlow) Validate() error {
	indegree := make(map[uuid.UUID]int, len(mf.Tasks))
	children := make(map[uuid.UUID][]uuid.UUID, len(mf.Tasks))
	for id := range mf.Tasks {
		indegree[id] = 0
	}
	for id, t := range mf.Tasks {
		for _, p := range t.Preceding {
			if _, ok := mf.Tasks[p]; !ok {
				return ErrInvalidArgument
			}
			children[p] = append(children[p], id)
			indegree[id]++
		}
	}

	queue := make([]uuid.UUID, 0, len(mf.Tasks))
	for id, d := range indegree {
		if d == 0 {
			queue = append(queue, id)
		}
	}

	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		for _, child := range children[id] {
			indegree[child]--
			if indegree[child] == 0 {
				queue = append(queue, child)
			}
		}
	}

	if visited != len(mf.Tasks) {
		return ErrInvalidArgument
	}
	return nil
}
