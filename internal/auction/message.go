// Package auction implements the iterated-auction protocol of spec.md
// §4.4/§4.5: an Initiator that runs one material flow's auction at a
// time, and a Participant that bids on behalf of a single AMR's order
// management. Grounded on
// original_source/.../iterated_auction_assignment_initiator.cpp and
// .../iterated_auction_assignment_participant.cpp.
package auction

import (
	"time"

	"github.com/google/uuid"

	"github.com/tutu-network/mrta-fleet/internal/mrta"
)

// CallForProposal is published by an initiator on an ability-group topic,
// offering every currently Free task that group can execute.
type CallForProposal struct {
	InitiatorConnection string     `json:"initiator_connection"`
	Tasks               []mrta.Task `json:"tasks"`
}

// BidSubmission is sent by a participant directly to an initiator after
// evaluating a CallForProposal.
type BidSubmission struct {
	TaskID               uuid.UUID              `json:"task_uuid"`
	ParticipantConnection string                `json:"participant_connection"`
	ParticipantAbility    mrta.Ability           `json:"participant_ability"`
	Metrics               mrta.MetricsComposition `json:"metrics_composition"`
}

// IterationNotification is published by an initiator on an ability-group
// topic, listing task UUIDs subscribers should drop from their
// per-initiator bookkeeping.
type IterationNotification struct {
	InitiatorConnection string      `json:"initiator_connection"`
	TaskIDs             []uuid.UUID `json:"task_uuids"`
}

// WinnerNotification is sent by an initiator directly to the winning
// participant, offering the task for commit.
type WinnerNotification struct {
	TaskID              uuid.UUID     `json:"task_uuid"`
	InitiatorConnection string        `json:"initiator_connection"`
	LatestFinishTime    time.Duration `json:"latest_finish_time"`
}

// WinnerResponse is sent by a participant directly to an initiator,
// accepting or rejecting a WinnerNotification.
type WinnerResponse struct {
	TaskID                uuid.UUID `json:"task_uuid"`
	ParticipantConnection string    `json:"participant_connection"`
	Accept                bool      `json:"accept"`
}

// bid is the initiator's internal bookkeeping entry for one received
// BidSubmission, the "initiator-side bid" of spec.md §4.2.
type bid struct {
	TaskID                 uuid.UUID
	ParticipantConnection  string
	ParticipantAbility     mrta.Ability
	Metrics                mrta.MetricsComposition
}

// equalMetrics reports whether two Metrics values agree on every field a
// participant's stale-auction safety check cares about. mrta.Metrics
// carries unexported fields (the makespan/start-time guard state), so
// equality is defined over its exported accessors rather than struct
// comparison.
func equalMetrics(a, b mrta.Metrics) bool {
	return a.EmptyTravelTime == b.EmptyTravelTime &&
		a.LoadedTravelTime == b.LoadedTravelTime &&
		a.ActionTime == b.ActionTime &&
		a.EmptyTravelDistance == b.EmptyTravelDistance &&
		a.LoadedTravelDistance == b.LoadedTravelDistance &&
		a.Makespan() == b.Makespan()
}
