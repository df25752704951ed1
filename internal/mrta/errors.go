// Package mrta contains pure business types for multi-robot task allocation
// with ZERO infrastructure imports. This is the innermost ring — it depends
// on nothing outside the standard library and google/uuid.
package mrta

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// One sentinel per error taxon, each wrapped with fmt.Errorf("...: %w", ...)
// at the call site and returned as an error rather than panicked -- an
// Initiator/Participant's onDone callback is the goroutine boundary every
// taxon surfaces through, so there is no separate panic/recover path.

var (
	// ErrInvalidArgument covers bad poses, out-of-topology points, an
	// unsupported functionality for a description, or a backwards time
	// advance on an STN.
	ErrInvalidArgument = errors.New("mrta: invalid argument")

	// ErrInfeasible covers an STN that is inconsistent after insertion, or
	// a task that has already missed its own time window.
	ErrInfeasible = errors.New("mrta: infeasible")

	// ErrStaleAuction covers a WinnerNotification for a task whose recorded
	// metrics no longer match what was bid.
	ErrStaleAuction = errors.New("mrta: stale auction")

	// ErrNoInsertionInfo covers a call to LatestCalculatedInsertionInfo
	// after a failed trial insertion.
	ErrNoInsertionInfo = errors.New("mrta: no insertion info available")

	// ErrStarvation covers consecutive empty auction windows exceeding the
	// configured thresholds.
	ErrStarvation = errors.New("mrta: auction starvation")

	// ErrProtocolViolation covers a winner notification for a task the
	// participant has no record of, or a duplicate topic subscription.
	ErrProtocolViolation = errors.New("mrta: protocol violation")
)
