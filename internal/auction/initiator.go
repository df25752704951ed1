package auction

import (
	"fmt"
	"log"
	"sort"

	"github.com/google/uuid"

	"github.com/tutu-network/mrta-fleet/internal/config"
	"github.com/tutu-network/mrta-fleet/internal/fleet"
	"github.com/tutu-network/mrta-fleet/internal/infra/observability"
	"github.com/tutu-network/mrta-fleet/internal/lpg"
	"github.com/tutu-network/mrta-fleet/internal/mrta"
	"github.com/tutu-network/mrta-fleet/internal/overlay"
	"github.com/tutu-network/mrta-fleet/internal/simclock"
)

// Initiator runs one material flow's iterated auction at a time (spec.md
// §4.4's "exactly one material flow in flight" concurrency contract).
// Grounded on iterated_auction_assignment_initiator.cpp /
// auction_initiator_state.cpp.
type Initiator struct {
	connection string
	clock      *simclock.Clock
	overlay    *overlay.Overlay
	fleet      *fleet.Fleet
	cfg        config.Config
	utility    mrta.UtilityFunc

	graph *lpg.Graph
	flow  mrta.MaterialFlow

	bidBag                     []bid
	responses                  map[uuid.UUID]WinnerResponse
	pendingWinners             []bid
	emptyBidWindows            int
	emptyWinnerResponseWindows int

	onDone func(error)
}

// NewInitiator builds an Initiator addressed as connection and registers
// its direct-message handler on ov.
func NewInitiator(connection string, clk *simclock.Clock, ov *overlay.Overlay, fl *fleet.Fleet, cfg config.Config, utility mrta.UtilityFunc) *Initiator {
	if utility == nil {
		utility = mrta.NegativeEmptyTravelTime
	}
	init := &Initiator{
		connection: connection,
		clock:      clk,
		overlay:    ov,
		fleet:      fl,
		cfg:        cfg,
		utility:    utility,
	}
	ov.RegisterConnection(connection, init.handleMessage)
	return init
}

// PrepareInteraction subscribes to every ability group topic present in
// the fleet, staggering each subscription by cfg.Auction.SubscribeTopic,
// then calls onReady. A no-subscription initiator (empty fleet) calls
// onReady immediately.
func (in *Initiator) PrepareInteraction(abilities []mrta.Ability, onReady func()) {
	if len(abilities) == 0 {
		onReady()
		return
	}
	var subscribeNext func(i int)
	subscribeNext = func(i int) {
		if i >= len(abilities) {
			onReady()
			return
		}
		log.Printf("[auction-initiator %s] preparing ability group %v", in.connection, abilities[i])
		in.overlay.SubscribeTopic(fleet.TopicForAbility(abilities[i]), in.connection, in.handleMessage)
		in.clock.ScheduleAfter(in.cfg.Auction.SubscribeTopic(), func() { subscribeNext(i + 1) })
	}
	subscribeNext(0)
}

// handleMessage dispatches a direct message addressed to the initiator.
func (in *Initiator) handleMessage(msg overlay.Message) {
	switch v := msg.Payload.(type) {
	case BidSubmission:
		in.bidBag = append(in.bidBag, bid{
			TaskID:                v.TaskID,
			ParticipantConnection: v.ParticipantConnection,
			ParticipantAbility:    v.ParticipantAbility,
			Metrics:               v.Metrics,
		})
		observability.BidsReceived.WithLabelValues("accepted").Inc()
	case WinnerResponse:
		in.responses[v.TaskID] = v
	}
}

// RunMaterialFlow begins the iterated auction over flow. onDone is called
// exactly once: with nil once every task is Scheduled, or with a wrapped
// mrta.ErrStarvation if consecutive empty windows exceed the configured
// thresholds.
func (in *Initiator) RunMaterialFlow(flow mrta.MaterialFlow, onDone func(error)) {
	in.flow = flow
	in.graph = lpg.New(flow)
	in.onDone = onDone
	in.emptyBidWindows = 0
	in.emptyWinnerResponseWindows = 0
	observability.OpenAuctions.Inc()

	now := in.clock.Now()
	for _, t := range in.graph.GetAuctionableTasks() {
		in.graph.SetEarliestValidStartTime(t.ID, now)
	}
	in.startIteration()
}

// Graph exposes the in-flight material flow's layered precedence graph for
// read-only status reporting (internal/api's /materialflow endpoint). Nil
// until the first RunMaterialFlow call.
func (in *Initiator) Graph() *lpg.Graph { return in.graph }

// startIteration broadcasts a CallForProposal for every currently Free
// task, partitioned by the ability groups able to execute it, then
// schedules the bid-processing window. Re-invoked after every
// winner-response window (not only once per LPG layer): this is a deliberate deviation
// from a literal reading of spec.md §4.4's step (g) -- see DESIGN.md -- so
// that a task rolled back after a rejected WinnerResponse is picked up
// again without waiting for a fresh lpg.Graph.Next() promotion.
func (in *Initiator) startIteration() {
	free := in.graph.GetAuctionableTasks()
	if len(free) == 0 {
		in.finishIfDone()
		return
	}

	byTopic := make(map[string][]mrta.Task)
	for _, t := range free {
		for _, a := range in.fleet.FittingExistingAbilities(t.Requirement) {
			topic := fleet.TopicForAbility(a)
			byTopic[topic] = append(byTopic[topic], t)
		}
	}
	in.bidBag = nil
	for topic, tasks := range byTopic {
		observability.CFPsSent.WithLabelValues(topic).Inc()
		in.overlay.PublishMessage(topic, in.connection, CallForProposal{InitiatorConnection: in.connection, Tasks: tasks})
	}

	in.clock.ScheduleAfter(in.cfg.Auction.WaitingToReceiveBids(), in.processBids)
}

// processBids implements spec.md §4.4c-d: pick winners greedily from the
// collected bag, or retry the window if none arrived.
func (in *Initiator) processBids() {
	winners := selectWinners(in.bidBag, in.utility)
	if len(winners) == 0 {
		in.emptyBidWindows++
		if in.emptyBidWindows >= in.cfg.Retry.MaxConsecutiveEmptyBidWindows {
			in.fail(fmt.Errorf("auction: %d consecutive empty bid windows: %w", in.emptyBidWindows, mrta.ErrStarvation))
			return
		}
		log.Printf("[auction-initiator %s] empty bid window %d/%d", in.connection, in.emptyBidWindows, in.cfg.Retry.MaxConsecutiveEmptyBidWindows)
		in.clock.ScheduleAfter(in.cfg.Auction.WaitingToReceiveBids(), in.processBids)
		return
	}
	in.emptyBidWindows = 0

	in.pendingWinners = winners
	in.responses = make(map[uuid.UUID]WinnerResponse, len(winners))
	for _, w := range winners {
		in.graph.SetLatestFinishTime(w.TaskID, w.Metrics.MetricsForAuction().Makespan())
		in.graph.SetTaskScheduled(w.TaskID)
		in.overlay.Send(w.ParticipantConnection, in.connection, WinnerNotification{
			TaskID:              w.TaskID,
			InitiatorConnection: in.connection,
			LatestFinishTime:    w.Metrics.MetricsForAuction().Makespan(),
		})
	}
	observability.WinnersSelected.Add(float64(len(winners)))
	in.clock.ScheduleAfter(in.cfg.Auction.WaitingToReceiveWinnerResponses(), in.processWinnerResponses)
}

// processWinnerResponses implements spec.md §4.4e-g.
func (in *Initiator) processWinnerResponses() {
	var awarded []uuid.UUID
	responded := 0
	for _, w := range in.pendingWinners {
		resp, ok := in.responses[w.TaskID]
		if ok {
			responded++
		}
		if ok && resp.Accept {
			awarded = append(awarded, w.TaskID)
			continue
		}
		in.graph.SetTaskFree(w.TaskID)
	}

	if responded == 0 {
		in.emptyWinnerResponseWindows++
		if in.emptyWinnerResponseWindows >= in.cfg.Retry.MaxConsecutiveEmptyWinnerResponseWindows {
			in.fail(fmt.Errorf("auction: %d consecutive empty winner-response windows: %w", in.emptyWinnerResponseWindows, mrta.ErrStarvation))
			return
		}
	} else {
		in.emptyWinnerResponseWindows = 0
	}

	if len(awarded) > 0 {
		in.notifyAwarded(awarded)
	}

	if in.graph.AreAllFreeTasksScheduled() {
		in.graph.Next()
	}
	in.startIteration()
}

// notifyAwarded publishes an IterationNotification on every ability topic
// relevant to each awarded task, per spec.md §4.4f.
func (in *Initiator) notifyAwarded(awarded []uuid.UUID) {
	byTopic := make(map[string][]uuid.UUID)
	for _, id := range awarded {
		t := in.flow.Tasks[id]
		for _, a := range in.fleet.FittingExistingAbilities(t.Requirement) {
			topic := fleet.TopicForAbility(a)
			byTopic[topic] = append(byTopic[topic], id)
		}
	}
	for topic, ids := range byTopic {
		in.overlay.PublishMessage(topic, in.connection, IterationNotification{InitiatorConnection: in.connection, TaskIDs: ids})
	}
}

func (in *Initiator) finishIfDone() {
	if in.graph.AreAllTasksScheduled() {
		observability.OpenAuctions.Dec()
		if in.onDone != nil {
			in.onDone(nil)
		}
	}
}

func (in *Initiator) fail(err error) {
	observability.OpenAuctions.Dec()
	log.Printf("[auction-initiator %s] %v", in.connection, err)
	if in.onDone != nil {
		in.onDone(err)
	}
}

// selectWinners implements spec.md §4.4c's greedy global selection:
// repeatedly take the single best remaining bid by utility (ties broken
// by ability, then by connection string), then discard every other bid
// for that bid's task, until the bag is empty.
func selectWinners(bag []bid, utility mrta.UtilityFunc) []bid {
	remaining := append([]bid(nil), bag...)
	var winners []bid

	for len(remaining) > 0 {
		bestIdx := 0
		for i := 1; i < len(remaining); i++ {
			if bidLess(remaining[i], remaining[bestIdx], utility) {
				bestIdx = i
			}
		}
		winner := remaining[bestIdx]
		winners = append(winners, winner)

		kept := remaining[:0]
		for _, b := range remaining {
			if b.TaskID != winner.TaskID {
				kept = append(kept, b)
			}
		}
		remaining = kept
	}

	sort.Slice(winners, func(i, j int) bool { return winners[i].TaskID.String() < winners[j].TaskID.String() })
	return winners
}

// bidLess reports whether a should be preferred over b: better utility
// first, then lexicographically smaller ability, then smaller connection
// string.
func bidLess(a, b bid, utility mrta.UtilityFunc) bool {
	if a.Metrics.Better(b.Metrics, utility) {
		return true
	}
	if b.Metrics.Better(a.Metrics, utility) {
		return false
	}
	if a.ParticipantAbility.LoadCarrier != b.ParticipantAbility.LoadCarrier {
		return a.ParticipantAbility.LoadCarrier < b.ParticipantAbility.LoadCarrier
	}
	if a.ParticipantAbility.MaxPayloadKg != b.ParticipantAbility.MaxPayloadKg {
		return a.ParticipantAbility.MaxPayloadKg < b.ParticipantAbility.MaxPayloadKg
	}
	return a.ParticipantConnection < b.ParticipantConnection
}
