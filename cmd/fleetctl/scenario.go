package main

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/tutu-network/mrta-fleet/internal/mrta"
)

// amrSpec is one [[amr]] table of a fleet file, the on-disk mirror of
// mrta.AMRDescription. mrta's own types carry no TOML tags (they are the
// domain model, not a wire format), so scenario files are decoded into
// these shapes and converted explicitly.
type amrSpec struct {
	SerialNumber       string   `toml:"serial_number"`
	VMax               float64  `toml:"v_max"`
	VMin               float64  `toml:"v_min"`
	AMax               float64  `toml:"a_max"`
	AMin               float64  `toml:"a_min"`
	LoadTimeSeconds    float64  `toml:"load_time_seconds"`
	UnloadTimeSeconds  float64  `toml:"unload_time_seconds"`
	WeightKg           float64  `toml:"weight_kg"`
	LoadCarrier        string   `toml:"load_carrier"`
	MaxPayloadKg       float64  `toml:"max_payload_kg"`
	Functionalities    []string `toml:"functionalities"`
}

func (s amrSpec) ability() mrta.Ability {
	return mrta.Ability{LoadCarrier: s.LoadCarrier, MaxPayloadKg: s.MaxPayloadKg}
}

func (s amrSpec) description() (mrta.AMRDescription, error) {
	functionalities := make(map[mrta.FunctionalityKind]bool, len(s.Functionalities))
	for _, name := range s.Functionalities {
		kind, err := parseFunctionality(name)
		if err != nil {
			return mrta.AMRDescription{}, fmt.Errorf("amr %s: %w", s.SerialNumber, err)
		}
		functionalities[kind] = true
	}
	return mrta.AMRDescription{
		SerialNumber: s.SerialNumber,
		Kinematics:   mrta.Kinematics{VMax: s.VMax, VMin: s.VMin, AMax: s.AMax, AMin: s.AMin},
		LoadHandling: mrta.LoadHandling{
			LoadTime:   time.Duration(s.LoadTimeSeconds * float64(time.Second)),
			UnloadTime: time.Duration(s.UnloadTimeSeconds * float64(time.Second)),
			Ability:    s.ability(),
		},
		Physical:        mrta.PhysicalProperties{WeightKg: s.WeightKg},
		Functionalities: functionalities,
	}, nil
}

func parseFunctionality(name string) (mrta.FunctionalityKind, error) {
	switch name {
	case "move_to":
		return mrta.MoveTo, nil
	case "load":
		return mrta.Load, nil
	case "unload":
		return mrta.Unload, nil
	case "navigate":
		return mrta.Navigate, nil
	default:
		return 0, fmt.Errorf("unknown functionality %q", name)
	}
}

// fleetFile is the top-level shape of a --fleet TOML document.
type fleetFile struct {
	Topology struct {
		Width  float64 `toml:"width"`
		Height float64 `toml:"height"`
	} `toml:"topology"`
	AMRs []amrSpec `toml:"amr"`
}

func loadFleetFile(path string) (fleetFile, error) {
	var ff fleetFile
	if _, err := toml.DecodeFile(path, &ff); err != nil {
		return fleetFile{}, fmt.Errorf("fleet file %s: %w", path, err)
	}
	if len(ff.AMRs) == 0 {
		return fleetFile{}, fmt.Errorf("fleet file %s: no [[amr]] entries", path)
	}
	return ff, nil
}

// orderSpec is one [[task.order]] entry: a MoveOrder (kind="move", x, y)
// or an ActionOrder (kind="action", parameters).
type orderSpec struct {
	Kind       string            `toml:"kind"`
	X          float64           `toml:"x"`
	Y          float64           `toml:"y"`
	Parameters map[string]string `toml:"parameters"`
}

func (o orderSpec) order() (mrta.Order, error) {
	switch o.Kind {
	case "move":
		return mrta.NewMoveOrder(mrta.Position{X: o.X, Y: o.Y}), nil
	case "action":
		return mrta.NewActionOrder(o.Parameters), nil
	default:
		return mrta.Order{}, fmt.Errorf("unknown order kind %q", o.Kind)
	}
}

// taskSpec is one [[task]] table of a flow file.
type taskSpec struct {
	LoadCarrier  string      `toml:"load_carrier"`
	MaxPayloadKg float64     `toml:"max_payload_kg"`
	Orders       []orderSpec `toml:"order"`
}

// flowFile is the top-level shape of a --flow TOML document: an
// unordered task list with no cross-task precedence, the common case for
// a batch of independent pick/place jobs (spec.md §4.3's LPG degenerates
// to a single Free layer when Task.Preceding is always empty).
type flowFile struct {
	Tasks []taskSpec `toml:"task"`
}

func loadFlowFile(path string) (mrta.MaterialFlow, error) {
	var ff flowFile
	if _, err := toml.DecodeFile(path, &ff); err != nil {
		return mrta.MaterialFlow{}, fmt.Errorf("flow file %s: %w", path, err)
	}
	if len(ff.Tasks) == 0 {
		return mrta.MaterialFlow{}, fmt.Errorf("flow file %s: no [[task]] entries", path)
	}
	tasks := make([]mrta.Task, 0, len(ff.Tasks))
	for i, ts := range ff.Tasks {
		orders := make([]mrta.Order, 0, len(ts.Orders))
		for _, os := range ts.Orders {
			order, err := os.order()
			if err != nil {
				return mrta.MaterialFlow{}, fmt.Errorf("flow file %s: task %d: %w", path, i, err)
			}
			orders = append(orders, order)
		}
		if len(orders) == 0 {
			return mrta.MaterialFlow{}, fmt.Errorf("flow file %s: task %d has no orders", path, i)
		}
		ability := mrta.Ability{LoadCarrier: ts.LoadCarrier, MaxPayloadKg: ts.MaxPayloadKg}
		tasks = append(tasks, mrta.NewTask(orders, ability))
	}
	return mrta.NewMaterialFlow(tasks), nil
}
