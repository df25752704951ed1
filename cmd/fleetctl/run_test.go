package main

import (
	"testing"

	"github.com/tutu-network/mrta-fleet/internal/config"
)

const testFleetTOML = `
[topology]
width = 100
height = 100

[[amr]]
serial_number = "amr-1"
v_max = 2.0
v_min = 0.0
a_max = 1.0
a_min = -1.0
load_time_seconds = 1
unload_time_seconds = 1
load_carrier = "pallet"
max_payload_kg = 500
functionalities = ["move_to", "load", "unload"]

[[amr]]
serial_number = "amr-2"
v_max = 2.0
v_min = 0.0
a_max = 1.0
a_min = -1.0
load_time_seconds = 1
unload_time_seconds = 1
load_carrier = "pallet"
max_payload_kg = 500
functionalities = ["move_to", "load", "unload"]
`

const testFlowTOML = `
[[task]]
load_carrier = "pallet"
max_payload_kg = 500
[[task.order]]
kind = "move"
x = 5
y = 0

[[task]]
load_carrier = "pallet"
max_payload_kg = 500
[[task.order]]
kind = "move"
x = 10
y = 0
`

func TestRunScenario_AuctionAllocatorCompletesAndAssignsEveryTask(t *testing.T) {
	fleetPath := writeScenarioFile(t, "fleet.toml", testFleetTOML)
	flowPath := writeScenarioFile(t, "flow.toml", testFlowTOML)

	result, err := runScenario(fleetPath, flowPath, "auction", config.Default())
	if err != nil {
		t.Fatalf("runScenario() error = %v", err)
	}
	if result.Err != nil {
		t.Fatalf("run did not complete: %v", result.Err)
	}

	total := 0
	for _, p := range result.Participants {
		total += p.TaskCount
	}
	if total != 2 {
		t.Errorf("total assigned tasks = %d, want 2", total)
	}
}

func TestRunScenario_CentralAllocatorCompletesAndAssignsEveryTask(t *testing.T) {
	fleetPath := writeScenarioFile(t, "fleet.toml", testFleetTOML)
	flowPath := writeScenarioFile(t, "flow.toml", testFlowTOML)

	result, err := runScenario(fleetPath, flowPath, "central", config.Default())
	if err != nil {
		t.Fatalf("runScenario() error = %v", err)
	}
	if result.Err != nil {
		t.Fatalf("run did not complete: %v", result.Err)
	}

	total := 0
	for _, p := range result.Participants {
		total += p.TaskCount
	}
	if total != 2 {
		t.Errorf("total assigned tasks = %d, want 2", total)
	}
}

func TestRunScenario_UnknownAllocatorErrors(t *testing.T) {
	fleetPath := writeScenarioFile(t, "fleet.toml", testFleetTOML)
	flowPath := writeScenarioFile(t, "flow.toml", testFlowTOML)

	if _, err := runScenario(fleetPath, flowPath, "quantum", config.Default()); err == nil {
		t.Fatal("runScenario() should reject an unknown allocator")
	}
}
