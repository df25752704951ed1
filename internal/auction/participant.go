package auction

import (
	"log"

	"github.com/google/uuid"

	"github.com/tutu-network/mrta-fleet/internal/fleet"
	"github.com/tutu-network/mrta-fleet/internal/mrta"
	"github.com/tutu-network/mrta-fleet/internal/ordermanagement"
	"github.com/tutu-network/mrta-fleet/internal/overlay"
)

// OrderManagement is the subset of *ordermanagement.StnOrderManagement the
// participant needs, narrowed so tests can substitute a fake schedule.
type OrderManagement interface {
	CanAddTask(task mrta.Task) bool
	AddTask(task mrta.Task, point *ordermanagement.InsertionPoint) error
	LatestCalculatedInsertionInfo() (mrta.MetricsComposition, ordermanagement.InsertionPoint, error)
	Utility() mrta.UtilityFunc
}

// taskState is the participant-side bookkeeping for one task offered by one
// initiator: spec.md §3's "(Task, optional MetricsComposition, optional
// InsertionPoint)". "Valid" iff both optionals are present -- here modeled
// as ok==true.
type taskState struct {
	task    mrta.Task
	metrics mrta.MetricsComposition
	point   ordermanagement.InsertionPoint
	ok      bool
}

// initiatorState is the per-initiator auction bookkeeping of spec.md §3:
// a map task_uuid -> task-state, plus previouslySubmitted used to avoid
// redundant resubmissions.
type initiatorState struct {
	tasks               map[uuid.UUID]*taskState
	previouslySubmitted uuid.UUID
	hasSubmitted        bool
}

// Participant bids on behalf of one AMR's order management across
// possibly many concurrent initiators. Grounded on
// iterated_auction_assignment_participant.cpp.
type Participant struct {
	connection string
	ability    mrta.Ability
	overlay    *overlay.Overlay
	om         OrderManagement

	auctions map[string]*initiatorState // initiator connection -> state
}

// NewParticipant builds a Participant addressed as connection, offering
// ability, backed by om, and subscribes it to ability's topic and its own
// direct-message endpoint on ov.
func NewParticipant(connection string, ability mrta.Ability, ov *overlay.Overlay, om OrderManagement) *Participant {
	p := &Participant{
		connection: connection,
		ability:    ability,
		overlay:    ov,
		om:         om,
		auctions:   make(map[string]*initiatorState),
	}
	topic := fleet.TopicForAbility(ability)
	ov.SubscribeTopic(topic, connection, p.handleTopicMessage)
	ov.RegisterConnection(connection, p.handleDirectMessage)
	return p
}

func (p *Participant) handleTopicMessage(msg overlay.Message) {
	switch v := msg.Payload.(type) {
	case CallForProposal:
		p.onCallForProposal(v)
	case IterationNotification:
		p.onIterationNotification(v)
	}
}

func (p *Participant) handleDirectMessage(msg overlay.Message) {
	switch v := msg.Payload.(type) {
	case WinnerNotification:
		p.onWinnerNotification(v)
	}
}

// onCallForProposal implements spec.md §4.5's CallForProposal handler:
// create a fresh per-initiator state, trial every offered task, prune
// infeasible ones, and submit a single bid for the best remaining task.
func (p *Participant) onCallForProposal(cfp CallForProposal) {
	st := &initiatorState{tasks: make(map[uuid.UUID]*taskState, len(cfp.Tasks))}
	p.auctions[cfp.InitiatorConnection] = st

	for _, t := range cfp.Tasks {
		p.evaluate(st, t)
	}
	p.submitBest(cfp.InitiatorConnection, st)
}

// evaluate trials task's insertion via CanAddTask, recording the outcome
// in st.tasks[task.ID]. An infeasible trial leaves no entry (pruned).
func (p *Participant) evaluate(st *initiatorState, task mrta.Task) {
	if !p.om.CanAddTask(task) {
		delete(st.tasks, task.ID)
		return
	}
	metrics, point, err := p.om.LatestCalculatedInsertionInfo()
	if err != nil {
		delete(st.tasks, task.ID)
		return
	}
	st.tasks[task.ID] = &taskState{task: task, metrics: metrics, point: point, ok: true}
}

// submitBest picks the single best-priced task in st (by diff-insertion
// utility) and sends a BidSubmission for it, unless it is the same task
// already submitted to this initiator (spec.md §4.5's
// previously_submitted de-duplication). If nothing remains, the
// per-initiator state is erased.
func (p *Participant) submitBest(initiatorConn string, st *initiatorState) {
	best, ok := p.bestTask(st)
	if !ok {
		delete(p.auctions, initiatorConn)
		return
	}
	if st.hasSubmitted && st.previouslySubmitted == best.task.ID {
		return
	}

	p.overlay.Send(initiatorConn, p.connection, BidSubmission{
		TaskID:                best.task.ID,
		ParticipantConnection: p.connection,
		ParticipantAbility:    p.ability,
		Metrics:               best.metrics,
	})
	st.previouslySubmitted = best.task.ID
	st.hasSubmitted = true
}

// bestTask returns the task-state in st ranked best by diff-insertion
// utility, or ok=false if st.tasks is empty.
func (p *Participant) bestTask(st *initiatorState) (*taskState, bool) {
	utility := p.om.Utility()
	var best *taskState
	for _, ts := range st.tasks {
		if best == nil || ts.metrics.Better(best.metrics, utility) {
			best = ts
		}
	}
	return best, best != nil
}

// onIterationNotification implements spec.md §4.5: drop the listed tasks
// from the per-initiator state, then resubmit only if the new best task
// differs from what was last submitted. An empty remaining set erases the
// per-initiator state entirely (idempotent no-op if the initiator was
// already unknown, per spec.md §8's round-trip property).
func (p *Participant) onIterationNotification(n IterationNotification) {
	st, ok := p.auctions[n.InitiatorConnection]
	if !ok {
		return
	}
	for _, id := range n.TaskIDs {
		delete(st.tasks, id)
	}
	if len(st.tasks) == 0 {
		delete(p.auctions, n.InitiatorConnection)
		return
	}
	p.submitBest(n.InitiatorConnection, st)
}

// onWinnerNotification implements spec.md §4.5's safety-gated commit: the
// recorded (metrics, insertion point) for task_uuid is re-validated via a
// fresh CanAddTask trial; only if the re-computed metrics exactly match
// the ones bid is the task actually committed with AddTask. Any mismatch,
// infeasibility, or missing record is rejected (spec.md §7's StaleAuction
// taxon).
func (p *Participant) onWinnerNotification(wn WinnerNotification) {
	st, ok := p.auctions[wn.InitiatorConnection]
	if !ok {
		p.reject(wn)
		return
	}
	ts, ok := st.tasks[wn.TaskID]
	if !ok || !ts.ok {
		p.reject(wn)
		return
	}

	if !p.om.CanAddTask(ts.task) {
		p.rejectAndPrune(wn, st)
		return
	}
	freshMetrics, _, err := p.om.LatestCalculatedInsertionInfo()
	if err != nil || !equalMetrics(freshMetrics.MetricsForAuction(), ts.metrics.MetricsForAuction()) {
		log.Printf("[auction-participant %s] stale auction for task %s: metrics changed since bid", p.connection, wn.TaskID)
		p.rejectAndPrune(wn, st)
		return
	}

	if err := p.om.AddTask(ts.task, &ts.point); err != nil {
		p.rejectAndPrune(wn, st)
		return
	}

	p.overlay.Send(wn.InitiatorConnection, p.connection, WinnerResponse{
		TaskID:                wn.TaskID,
		ParticipantConnection: p.connection,
		Accept:                true,
	})
	delete(st.tasks, wn.TaskID)

	// The commit may have changed feasibility/pricing for every other task
	// still under consideration across every open auction, per spec.md
	// §4.5's "recompute bids for remaining tasks in all open auctions".
	p.recomputeAllOpenAuctions()
}

// reject sends a negative WinnerResponse for a task the participant has
// no valid record of (spec.md §7 ProtocolViolation territory if this
// initiator never offered it at all, but treated as a plain reject here
// since a stale/duplicate notification after a dropped message is the far
// more common cause in practice).
func (p *Participant) reject(wn WinnerNotification) {
	p.overlay.Send(wn.InitiatorConnection, p.connection, WinnerResponse{
		TaskID:                wn.TaskID,
		ParticipantConnection: p.connection,
		Accept:                false,
	})
}

func (p *Participant) rejectAndPrune(wn WinnerNotification, st *initiatorState) {
	p.reject(wn)
	delete(st.tasks, wn.TaskID)
}

// recomputeAllOpenAuctions re-evaluates every still-open initiator's
// offered tasks against the order management's post-commit state and
// resubmits where the best task changed.
func (p *Participant) recomputeAllOpenAuctions() {
	for initiatorConn, st := range p.auctions {
		for _, ts := range st.tasks {
			p.evaluate(st, ts.task)
		}
		if len(st.tasks) == 0 {
			delete(p.auctions, initiatorConn)
			continue
		}
		p.submitBest(initiatorConn, st)
	}
}

// OpenAuctionCount reports how many initiators currently have a non-empty
// per-initiator task-state for this participant, for tests and
// diagnostics.
func (p *Participant) OpenAuctionCount() int { return len(p.auctions) }
