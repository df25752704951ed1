package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeScenarioFile(t *testing.T, name, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFleetFile_ParsesAMRsAndTopology(t *testing.T) {
	path := writeScenarioFile(t, "fleet.toml", `
[topology]
width = 50
height = 30

[[amr]]
serial_number = "amr-1"
v_max = 2.0
v_min = 0.0
a_max = 1.0
a_min = -1.0
load_time_seconds = 2
unload_time_seconds = 2
load_carrier = "pallet"
max_payload_kg = 500
functionalities = ["move_to", "load", "unload"]
`)

	ff, err := loadFleetFile(path)
	if err != nil {
		t.Fatalf("loadFleetFile() error = %v", err)
	}
	if ff.Topology.Width != 50 || ff.Topology.Height != 30 {
		t.Errorf("topology = %+v, want 50x30", ff.Topology)
	}
	if len(ff.AMRs) != 1 || ff.AMRs[0].SerialNumber != "amr-1" {
		t.Fatalf("AMRs = %+v", ff.AMRs)
	}

	desc, err := ff.AMRs[0].description()
	if err != nil {
		t.Fatalf("description() error = %v", err)
	}
	if !desc.Supports(0) { // MoveTo == 0
		t.Error("description() should support MoveTo")
	}
}

func TestLoadFleetFile_UnknownFunctionalityErrors(t *testing.T) {
	path := writeScenarioFile(t, "fleet.toml", `
[[amr]]
serial_number = "amr-1"
functionalities = ["teleport"]
`)
	ff, err := loadFleetFile(path)
	if err != nil {
		t.Fatalf("loadFleetFile() error = %v", err)
	}
	if _, err := ff.AMRs[0].description(); err == nil {
		t.Fatal("description() should reject an unknown functionality")
	}
}

func TestLoadFleetFile_RequiresAtLeastOneAMR(t *testing.T) {
	path := writeScenarioFile(t, "fleet.toml", `
[topology]
width = 10
height = 10
`)
	if _, err := loadFleetFile(path); err == nil {
		t.Fatal("loadFleetFile() should reject a fleet file with no [[amr]] entries")
	}
}

func TestLoadFlowFile_BuildsMoveAndActionOrders(t *testing.T) {
	path := writeScenarioFile(t, "flow.toml", `
[[task]]
load_carrier = "pallet"
max_payload_kg = 500

[[task.order]]
kind = "move"
x = 10
y = 5

[[task.order]]
kind = "action"
parameters = { load = "true" }
`)

	flow, err := loadFlowFile(path)
	if err != nil {
		t.Fatalf("loadFlowFile() error = %v", err)
	}
	if len(flow.Tasks) != 1 {
		t.Fatalf("got %d tasks, want 1", len(flow.Tasks))
	}
	for _, task := range flow.Tasks {
		if len(task.Orders) != 2 {
			t.Fatalf("got %d orders, want 2", len(task.Orders))
		}
		if task.Requirement.LoadCarrier != "pallet" {
			t.Errorf("Requirement.LoadCarrier = %q, want pallet", task.Requirement.LoadCarrier)
		}
	}
}

func TestLoadFlowFile_UnknownOrderKindErrors(t *testing.T) {
	path := writeScenarioFile(t, "flow.toml", `
[[task]]
[[task.order]]
kind = "fly"
`)
	if _, err := loadFlowFile(path); err == nil {
		t.Fatal("loadFlowFile() should reject an unknown order kind")
	}
}
