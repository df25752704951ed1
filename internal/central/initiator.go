package central

import (
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/tutu-network/mrta-fleet/internal/config"
	"github.com/tutu-network/mrta-fleet/internal/fleet"
	"github.com/tutu-network/mrta-fleet/internal/infra/dsa"
	"github.com/tutu-network/mrta-fleet/internal/infra/observability"
	"github.com/tutu-network/mrta-fleet/internal/mrta"
	"github.com/tutu-network/mrta-fleet/internal/overlay"
	"github.com/tutu-network/mrta-fleet/internal/simclock"
)

// CentralInitiator assigns a batch of tasks by round-robin over the fleet
// roster instead of running an iterated auction: service discovery via
// fl, ability-partitioned selection via a per-ability dsa.RankQueue
// ranked by assignment count (least-loaded first, spec.md §4.6), and the
// ISSUED/CONFIRMED/REASSIGN lifecycle for each outstanding assignment.
// Grounded on round_robin_initiator.cpp.
type CentralInitiator struct {
	connection string
	clock      *simclock.Clock
	overlay    *overlay.Overlay
	fleet      *fleet.Fleet
	cfg        config.Config

	abilityQueues map[mrta.Ability]*dsa.RankQueue
	assignments   map[uuid.UUID]*assignment
	pending       int
	onDone        func(error)
}

// NewCentralInitiator builds a CentralInitiator addressed as connection
// and registers its direct-message handler on ov.
func NewCentralInitiator(connection string, clk *simclock.Clock, ov *overlay.Overlay, fl *fleet.Fleet, cfg config.Config) *CentralInitiator {
	ci := &CentralInitiator{
		connection:    connection,
		clock:         clk,
		overlay:       ov,
		fleet:         fl,
		cfg:           cfg,
		abilityQueues: make(map[mrta.Ability]*dsa.RankQueue),
	}
	ov.RegisterConnection(connection, ci.handleMessage)
	return ci
}

// AssignAll issues every task in tasks to a round-robin-selected
// participant and calls onDone exactly once: with nil once every
// assignment has been CONFIRMED, or with a wrapped mrta.ErrInfeasible if
// some task's required ability has no fitting participant in the fleet.
func (ci *CentralInitiator) AssignAll(tasks []mrta.Task, onDone func(error)) {
	ci.assignments = make(map[uuid.UUID]*assignment, len(tasks))
	ci.onDone = onDone
	ci.pending = len(tasks)
	if ci.pending == 0 {
		ci.finishIfDone()
		return
	}
	for _, t := range tasks {
		ci.issue(t)
	}
}

// issue selects the next participant for task.Requirement and sends it an
// AssignmentNotification, arming a timeout that reassigns the task if no
// response arrives in time.
func (ci *CentralInitiator) issue(task mrta.Task) {
	conn, ok := ci.nextParticipant(task.Requirement)
	if !ok {
		ci.fail(fmt.Errorf("central: no participant fits ability %v: %w", task.Requirement, mrta.ErrInfeasible))
		return
	}

	a := &assignment{task: task, connection: conn, state: issued, issuedAt: ci.clock.Now()}
	ci.assignments[task.ID] = a
	a.timeoutToken = ci.clock.ScheduleAfter(ci.cfg.Central.WaitToReceiveAssignmentResponse(), func() { ci.onTimeout(task.ID) })
	ci.overlay.Send(conn, ci.connection, AssignmentNotification{Task: task, InitiatorConnection: ci.connection})
}

// nextParticipant picks the least-loaded connection among the participants
// offering the first ability FittingExistingAbilities returns for
// requirement; participants offering any other fitting ability are not
// considered (mirrors the auction initiator's
// fleet.FittingExistingAbilities partitioning, but round-robin selects one
// winner instead of broadcasting a CFP).
func (ci *CentralInitiator) nextParticipant(requirement mrta.Ability) (string, bool) {
	fitting := ci.fleet.FittingExistingAbilities(requirement)
	if len(fitting) == 0 {
		return "", false
	}
	q := ci.abilityQueue(fitting[0])
	item, ok := q.Pop()
	if !ok {
		return "", false
	}
	q.Push(dsa.HeapItem{Key: item.Key, Rank: item.Rank + 1})
	return item.Key, true
}

// abilityQueue returns (lazily building) the round-robin selector for
// ability, seeded with every currently registered connection offering it
// at assignment count zero.
func (ci *CentralInitiator) abilityQueue(ability mrta.Ability) *dsa.RankQueue {
	q, ok := ci.abilityQueues[ability]
	if ok {
		return q
	}
	q = dsa.NewRankQueue()
	for _, conn := range ci.fleet.Connections(ability) {
		q.Push(dsa.HeapItem{Key: conn, Rank: 0})
	}
	ci.abilityQueues[ability] = q
	return q
}

func (ci *CentralInitiator) handleMessage(msg overlay.Message) {
	switch v := msg.Payload.(type) {
	case AssignmentResponse:
		ci.onAssignmentResponse(v)
	case StatusUpdate:
		log.Printf("[central-initiator %s] status update from %s: end_position=%v", ci.connection, v.ParticipantConnection, v.EndPosition)
	}
}

// onAssignmentResponse implements the ISSUED -> CONFIRMED transition, or
// triggers an immediate reassignment on an explicit refusal. Stale
// responses (unknown task, or an assignment already past ISSUED) are
// silently dropped.
func (ci *CentralInitiator) onAssignmentResponse(resp AssignmentResponse) {
	a, ok := ci.assignments[resp.TaskID]
	if !ok || a.state != issued {
		return
	}
	if !resp.Accept {
		ci.reassign(resp.TaskID)
		return
	}
	ci.clock.Cancel(a.timeoutToken)
	a.state = confirmed
	ci.pending--
	ci.finishIfDone()
}

// onTimeout implements the ISSUED -> REASSIGN transition of spec.md §4.6's
// state machine: an assignment unconfirmed after
// wait_to_receive_assignment_response is reissued to the next pick of the
// round-robin queue, which is the same participant when it is the only one.
func (ci *CentralInitiator) onTimeout(taskID uuid.UUID) {
	a, ok := ci.assignments[taskID]
	if !ok || a.state != issued {
		return
	}
	ci.reassign(taskID)
}

func (ci *CentralInitiator) reassign(taskID uuid.UUID) {
	a := ci.assignments[taskID]
	a.state = reassign
	observability.AssignmentsReissued.Inc()
	log.Printf("[central-initiator %s] reassigning task %s (was held by %s)", ci.connection, taskID, a.connection)
	ci.issue(a.task)
}

func (ci *CentralInitiator) finishIfDone() {
	if ci.pending == 0 && ci.onDone != nil {
		done := ci.onDone
		ci.onDone = nil
		done(nil)
	}
}

func (ci *CentralInitiator) fail(err error) {
	if ci.onDone != nil {
		done := ci.onDone
		ci.onDone = nil
		done(err)
	}
}

// RequestStatusUpdate sends a StatusUpdateRequest to every participant
// currently holding a CONFIRMED assignment.
func (ci *CentralInitiator) RequestStatusUpdate() {
	for _, a := range ci.assignments {
		if a.state == confirmed {
			ci.overlay.Send(a.connection, ci.connection, StatusUpdateRequest{InitiatorConnection: ci.connection})
		}
	}
}

// AssignmentCount reports how many assignments are currently tracked, for
// tests and diagnostics.
func (ci *CentralInitiator) AssignmentCount() int { return len(ci.assignments) }

// AssignmentCounts tallies outstanding assignments by lifecycle state, for
// tests and diagnostics; no internal/api endpoint reports it.
func (ci *CentralInitiator) AssignmentCounts() (issuedN, confirmedN, reassignN int) {
	for _, a := range ci.assignments {
		switch a.state {
		case issued:
			issuedN++
		case confirmed:
			confirmedN++
		case reassign:
			reassignN++
		}
	}
	return
}
