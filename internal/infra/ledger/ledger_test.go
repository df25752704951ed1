package ledger

import (
	"errors"
	"testing"
	"time"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestStartAndFinishRun_RoundTripsThroughListRuns(t *testing.T) {
	db := newTestDB(t)

	runID, err := db.StartRun("flow-1", "auction", 3, time.Unix(0, 0).UTC())
	if err != nil {
		t.Fatalf("StartRun() error: %v", err)
	}

	if err := db.FinishRun(runID, time.Unix(10, 0).UTC(), "completed", nil); err != nil {
		t.Fatalf("FinishRun() error: %v", err)
	}

	runs, err := db.ListRuns(10)
	if err != nil {
		t.Fatalf("ListRuns() error: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	if runs[0].Outcome != "completed" {
		t.Errorf("Outcome = %q, want completed", runs[0].Outcome)
	}
	if runs[0].FinishedAt == nil {
		t.Fatal("FinishedAt is nil, want set")
	}
	if runs[0].TaskCount != 3 {
		t.Errorf("TaskCount = %d, want 3", runs[0].TaskCount)
	}
}

func TestFinishRun_RecordsErrorText(t *testing.T) {
	db := newTestDB(t)

	runID, err := db.StartRun("flow-2", "central", 1, time.Unix(0, 0).UTC())
	if err != nil {
		t.Fatalf("StartRun() error: %v", err)
	}
	if err := db.FinishRun(runID, time.Unix(5, 0).UTC(), "starved", errors.New("boom")); err != nil {
		t.Fatalf("FinishRun() error: %v", err)
	}

	runs, err := db.ListRuns(10)
	if err != nil {
		t.Fatalf("ListRuns() error: %v", err)
	}
	if runs[0].Error != "boom" {
		t.Errorf("Error = %q, want boom", runs[0].Error)
	}
}

func TestRecordTaskOutcome_RoundTripsThroughTaskOutcomes(t *testing.T) {
	db := newTestDB(t)

	runID, err := db.StartRun("flow-3", "auction", 1, time.Unix(0, 0).UTC())
	if err != nil {
		t.Fatalf("StartRun() error: %v", err)
	}
	if err := db.RecordTaskOutcome(runID, "task-1", "amr-1", 11000, 6000, 5000, 0); err != nil {
		t.Fatalf("RecordTaskOutcome() error: %v", err)
	}

	outcomes, err := db.TaskOutcomes(runID)
	if err != nil {
		t.Fatalf("TaskOutcomes() error: %v", err)
	}
	if len(outcomes) != 1 {
		t.Fatalf("got %d outcomes, want 1", len(outcomes))
	}
	if outcomes[0].Winner != "amr-1" {
		t.Errorf("Winner = %q, want amr-1", outcomes[0].Winner)
	}
	if outcomes[0].MakespanMs != 11000 {
		t.Errorf("MakespanMs = %v, want 11000", outcomes[0].MakespanMs)
	}
}

func TestListRuns_OrdersNewestFirst(t *testing.T) {
	db := newTestDB(t)

	first, _ := db.StartRun("flow-a", "auction", 1, time.Unix(0, 0).UTC())
	second, _ := db.StartRun("flow-b", "auction", 1, time.Unix(1, 0).UTC())

	runs, err := db.ListRuns(10)
	if err != nil {
		t.Fatalf("ListRuns() error: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].ID != second || runs[1].ID != first {
		t.Errorf("ListRuns order = [%d %d], want newest first [%d %d]", runs[0].ID, runs[1].ID, second, first)
	}
}
