// Package central implements spec.md §4.6's round-robin allocator: an
// alternative to the iterated-auction stack in internal/auction, kept to
// document the common participant contract a task-assignment transport
// must satisfy. Grounded on
// original_source/.../round_robin_initiator.cpp and
// .../centralized_participant.cpp.
package central

import (
	"time"

	"github.com/google/uuid"

	"github.com/tutu-network/mrta-fleet/internal/mrta"
)

// AssignmentNotification is sent by the central initiator directly to the
// participant chosen by round-robin selection, offering task
// unconditionally (no bidding round).
type AssignmentNotification struct {
	Task                mrta.Task `json:"task"`
	InitiatorConnection string    `json:"initiator_connection"`
}

// AssignmentResponse is sent by a participant back to the central
// initiator. Accept is false when the participant's
// SimpleOrderManagement.AddTask returned an error for the task; the
// initiator then reassigns it.
type AssignmentResponse struct {
	TaskID                uuid.UUID              `json:"task_uuid"`
	Accept                bool                   `json:"accept"`
	Metrics               mrta.MetricsComposition `json:"metrics_composition"`
	EndPosition           mrta.Position          `json:"end_position"`
	ParticipantConnection string                 `json:"participant_connection"`
}

// StatusUpdateRequest is sent by the central initiator to poll a
// participant's current schedule state.
type StatusUpdateRequest struct {
	InitiatorConnection string `json:"initiator_connection"`
}

// StatusUpdate answers a StatusUpdateRequest.
type StatusUpdate struct {
	ParticipantConnection string                 `json:"participant_connection"`
	Metrics                mrta.MetricsComposition `json:"metrics_composition"`
	EndPosition            mrta.Position          `json:"end_position"`
}

// assignmentState is the ISSUED/CONFIRMED/REASSIGN state machine of
// spec.md §4.6 for one outstanding assignment.
type assignmentState int

const (
	issued assignmentState = iota
	confirmed
	reassign
)

func (s assignmentState) String() string {
	switch s {
	case issued:
		return "ISSUED"
	case confirmed:
		return "CONFIRMED"
	default:
		return "REASSIGN"
	}
}

// assignment tracks one task's round-robin lifecycle: who it was issued
// to, when, and the timeout token that fires a reassignment.
type assignment struct {
	task        mrta.Task
	connection  string
	state       assignmentState
	timeoutToken uint64
	issuedAt    time.Duration
}
