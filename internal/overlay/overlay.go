// Package overlay is the topic-keyed publish/subscribe substrate the
// auction protocol runs on: initiators publish CallForProposal on an
// ability's topic, participants subscribed to that topic receive it, and
// either side can send a message directly to one connection.
//
// Adapted from the teacher's gossip.Node (internal/infra/gossip/swim.go):
// that file's per-topic subscriber map is kept (its bounded-concurrency
// dispatch loop is replaced by synchronous delivery in the caller's
// goroutine), and its SWIM failure-detection state machine (ping,
// ping-req, suspect/alive/dead member states, incarnation numbers) has no
// analog here -- connection liveness in this simulation is driven by the
// simulated clock's delay windows (spec.md §4.4c), not by a gossip
// protocol, so that machinery is dropped rather than carried forward
// unused. See DESIGN.md for the full deletion rationale.
package overlay

import (
	"fmt"
	"sync"
)

// Message is an envelope delivered to a topic subscriber or a direct
// recipient. Payload carries one of the auction/central message types.
type Message struct {
	Topic   string
	From    string
	Payload interface{}
}

// Handler processes a delivered Message.
type Handler func(Message)

// Overlay is an in-process message bus: no network I/O, no serialization,
// since every participant in a simulation run lives in the same process.
// Safe for concurrent use.
type Overlay struct {
	mu          sync.Mutex
	subscribers map[string][]subscriber // topic -> subscribers
	direct      map[string]Handler      // connection -> handler
}

type subscriber struct {
	connection string
	handler    Handler
}

// New returns an empty Overlay.
func New() *Overlay {
	return &Overlay{
		subscribers: make(map[string][]subscriber),
		direct:      make(map[string]Handler),
	}
}

// SubscribeTopic registers handler to receive every PublishMessage call on
// topic, tagged with connection as subscriber identity. A connection may
// be subscribed to several topics, one per ability it is tallied against.
func (o *Overlay) SubscribeTopic(topic, connection string, handler Handler) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.subscribers[topic] = append(o.subscribers[topic], subscriber{connection: connection, handler: handler})
}

// UnsubscribeTopic removes connection's subscription to topic, e.g. when a
// participant leaves an ability group.
func (o *Overlay) UnsubscribeTopic(topic, connection string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	subs := o.subscribers[topic]
	for i, s := range subs {
		if s.connection == connection {
			o.subscribers[topic] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// RegisterConnection installs handler as the direct-message endpoint for
// connection, used for unicast replies (bid submissions, winner
// responses, assignment responses).
func (o *Overlay) RegisterConnection(connection string, handler Handler) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.direct[connection] = handler
}

// DeregisterConnection removes connection's direct-message endpoint.
func (o *Overlay) DeregisterConnection(connection string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.direct, connection)
}

// PublishMessage delivers payload to every current subscriber of topic, in
// subscription order. Delivery is synchronous and in the caller's
// goroutine: the simulation drives everything from a single event loop
// (internal/simclock), so there is no concurrency to bound here the way
// the teacher's dispatch loop bounded fan-out across real network peers.
func (o *Overlay) PublishMessage(topic, from string, payload interface{}) {
	o.mu.Lock()
	subs := make([]subscriber, len(o.subscribers[topic]))
	copy(subs, o.subscribers[topic])
	o.mu.Unlock()

	msg := Message{Topic: topic, From: from, Payload: payload}
	for _, s := range subs {
		s.handler(msg)
	}
}

// Send delivers payload directly to connection's registered handler.
// Returns an error if connection has no registered endpoint.
func (o *Overlay) Send(connection, from string, payload interface{}) error {
	o.mu.Lock()
	h, ok := o.direct[connection]
	o.mu.Unlock()
	if !ok {
		return fmt.Errorf("overlay: no registered connection %q", connection)
	}
	h(Message{From: from, Payload: payload})
	return nil
}

// TopicSubscriberCount returns how many connections are currently
// subscribed to topic, for diagnostics and tests.
func (o *Overlay) TopicSubscriberCount(topic string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.subscribers[topic])
}
