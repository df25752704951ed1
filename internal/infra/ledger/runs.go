package ledger

import (
	"database/sql"
	"time"
)

// StartRun records the start of one fleetctl simulate invocation and
// returns its ledger-assigned run ID.
func (db *DB) StartRun(flowID, allocator string, taskCount int, startedAt time.Time) (int64, error) {
	res, err := db.db.Exec(`
		INSERT INTO runs (flow_id, allocator, task_count, started_at, outcome)
		VALUES (?, ?, ?, ?, 'running')
	`, flowID, allocator, taskCount, startedAt.Format(time.RFC3339Nano))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// FinishRun closes out a run with its terminal outcome label, stored as
// given (fleetctl simulate writes "completed", or "failed" when runErr is
// non-nil), and runErr's text when runErr is non-nil.
func (db *DB) FinishRun(runID int64, finishedAt time.Time, outcome string, runErr error) error {
	var errText sql.NullString
	if runErr != nil {
		errText = sql.NullString{String: runErr.Error(), Valid: true}
	}
	_, err := db.db.Exec(`
		UPDATE runs SET finished_at = ?, outcome = ?, error = ? WHERE id = ?
	`, finishedAt.Format(time.RFC3339Nano), outcome, errText, runID)
	return err
}

// RecordTaskOutcome appends one winner-history entry: which participant
// won taskID in runID and the metrics it won with, in milliseconds.
func (db *DB) RecordTaskOutcome(runID int64, taskID, winner string, makespanMs, emptyTravelMs, loadedTravelMs, actionMs float64) error {
	_, err := db.db.Exec(`
		INSERT OR REPLACE INTO task_outcomes
			(run_id, task_id, winner, makespan_ms, empty_travel_ms, loaded_travel_ms, action_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, runID, taskID, winner, makespanMs, emptyTravelMs, loadedTravelMs, actionMs)
	return err
}

// RunSummary is one row of ListRuns.
type RunSummary struct {
	ID         int64
	FlowID     string
	Allocator  string
	TaskCount  int
	StartedAt  time.Time
	FinishedAt *time.Time
	Outcome    string
	Error      string
}

// ListRuns returns the most recent runs, newest first, up to limit.
func (db *DB) ListRuns(limit int) ([]RunSummary, error) {
	rows, err := db.db.Query(`
		SELECT id, flow_id, allocator, task_count, started_at, finished_at, outcome, error
		FROM runs ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		var startedStr string
		var finishedStr, errText sql.NullString
		if err := rows.Scan(&r.ID, &r.FlowID, &r.Allocator, &r.TaskCount, &startedStr, &finishedStr, &r.Outcome, &errText); err != nil {
			return nil, err
		}
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, startedStr)
		if finishedStr.Valid {
			t, _ := time.Parse(time.RFC3339Nano, finishedStr.String)
			r.FinishedAt = &t
		}
		r.Error = errText.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// TaskOutcome is one row of TaskOutcomes.
type TaskOutcome struct {
	TaskID          string
	Winner          string
	MakespanMs      float64
	EmptyTravelMs   float64
	LoadedTravelMs  float64
	ActionMs        float64
}

// TaskOutcomes returns every winner-history entry recorded for runID.
func (db *DB) TaskOutcomes(runID int64) ([]TaskOutcome, error) {
	rows, err := db.db.Query(`
		SELECT task_id, winner, makespan_ms, empty_travel_ms, loaded_travel_ms, action_ms
		FROM task_outcomes WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TaskOutcome
	for rows.Next() {
		var t TaskOutcome
		if err := rows.Scan(&t.TaskID, &t.Winner, &t.MakespanMs, &t.EmptyTravelMs, &t.LoadedTravelMs, &t.ActionMs); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
