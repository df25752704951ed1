// Package simclock is the discrete-event scheduling substrate the auction
// initiator and participant run on: a single-goroutine virtual clock that
// fires callbacks in strict time order, standing in for the ns3::Simulator
// clock the original C++ delegates to (spec.md §5, §6 "Simulator clock").
//
// Grounded on internal/infra/dsa's rank queue: here the rank is the fire
// time in nanoseconds rather than an assignment count, and callbacks pop
// out in strict chronological order -- no starvation boosting applies to a
// timer wheel.
package simclock

import (
	"time"

	"github.com/tutu-network/mrta-fleet/internal/infra/dsa"
)

// Clock is a virtual, manually-advanced clock with a min-heap of pending
// callbacks. It is not safe for concurrent use from multiple goroutines
// without external synchronization -- a run shares one Clock among all of
// its initiators and drives it from a single goroutine, per spec.md §5's
// cooperative scheduling model.
type Clock struct {
	now      time.Duration
	pending  *dsa.RankQueue
	seq      uint64
	cancelled map[uint64]bool
}

type pendingCallback struct {
	token uint64
	fn    func()
}

// New returns a Clock starting at time zero.
func New() *Clock {
	return &Clock{pending: dsa.NewRankQueue(), cancelled: make(map[uint64]bool)}
}

// Now returns the clock's current virtual time.
func (c *Clock) Now() time.Duration { return c.now }

// ScheduleAfter registers cb to fire once the clock has advanced by at
// least delay. Returns a token that can be passed to Cancel.
func (c *Clock) ScheduleAfter(delay time.Duration, cb func()) uint64 {
	c.seq++
	token := c.seq
	fireAt := c.now + delay
	c.pending.Push(dsa.HeapItem{Rank: int64(fireAt), Value: pendingCallback{token: token, fn: cb}})
	return token
}

// Cancel prevents a previously scheduled callback from firing. A no-op if
// the callback already fired or token is unknown.
func (c *Clock) Cancel(token uint64) {
	c.cancelled[token] = true
}

// Advance moves the clock forward by delta, firing every callback whose
// fire time is now due, in fire-time order. Callbacks that themselves call
// ScheduleAfter with a zero or negative delay relative to the new time are
// fired within the same Advance call (they sort to the front of the
// queue), matching a real event-loop's "process everything due now"
// semantics.
func (c *Clock) Advance(delta time.Duration) {
	target := c.now + delta
	for {
		item, ok := c.pending.Peek()
		if !ok || time.Duration(item.Rank) > target {
			break
		}
		c.pending.Pop()
		pc := item.Value.(pendingCallback)
		if c.cancelled[pc.token] {
			delete(c.cancelled, pc.token)
			continue
		}
		if time.Duration(item.Rank) > c.now {
			c.now = time.Duration(item.Rank)
		}
		pc.fn()
	}
	if target > c.now {
		c.now = target
	}
}

// Pending returns the number of callbacks not yet fired.
func (c *Clock) Pending() int { return c.pending.Len() }
