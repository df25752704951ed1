// Package lpg implements the initiator's Layered Precedence Graph: the
// view of task readiness that gates which tasks of a material flow may be
// auctioned in a given iteration. Grounded on
// original_source/.../layered_precedence_graph.cpp.
package lpg

import (
	"time"

	"github.com/google/uuid"

	"github.com/tutu-network/mrta-fleet/internal/mrta"
)

// Layer tags a vertex's current readiness.
type Layer int

const (
	// Free tasks have every predecessor Scheduled -- the only auctionable
	// layer.
	Free Layer = iota
	// Second tasks have at least one unscheduled predecessor, but every
	// predecessor is itself in Scheduled or Free.
	Second
	// Hidden is everything else.
	Hidden
	// Scheduled tasks were already awarded in a previous iteration.
	Scheduled
)

func (l Layer) String() string {
	switch l {
	case Free:
		return "Free"
	case Second:
		return "Second"
	case Hidden:
		return "Hidden"
	case Scheduled:
		return "Scheduled"
	default:
		return "None"
	}
}

// vertex is one task's bookkeeping within the graph.
type vertex struct {
	task    mrta.Task
	layer   Layer
	pc      *time.Duration // earliest_valid_start, PC[t]
	f       *time.Duration // latest_finish, F[t]
	parents []uuid.UUID
	children []uuid.UUID
}

// Graph is one material flow's layered precedence view, owned by a single
// auction initiator instance and never shared.
type Graph struct {
	vertices map[uuid.UUID]*vertex
}

// New builds a Graph from a material flow, running the §4.3
// initialization: nodes with no incoming edges start Free, their
// immediate neighbours start Second, everything else starts Hidden.
func New(flow mrta.MaterialFlow) *Graph {
	g := &Graph{vertices: make(map[uuid.UUID]*vertex, len(flow.Tasks))}

	for id, t := range flow.Tasks {
		g.vertices[id] = &vertex{task: t, layer: Hidden, parents: append([]uuid.UUID(nil), t.Preceding...)}
	}
	for id, v := range g.vertices {
		for _, p := range v.parents {
			if pv, ok := g.vertices[p]; ok {
				pv.children = append(pv.children, id)
			}
		}
	}

	for _, v := range g.vertices {
		if len(v.parents) == 0 {
			v.layer = Free
		}
	}
	for _, v := range g.vertices {
		if v.layer != Free {
			continue
		}
		for _, cid := range v.children {
			cv := g.vertices[cid]
			if cv.layer == Hidden {
				cv.layer = Second
			}
		}
	}
	return g
}

// allParentsScheduled reports whether every parent of v is in Scheduled.
func (g *Graph) allParentsScheduled(v *vertex) bool {
	for _, p := range v.parents {
		pv, ok := g.vertices[p]
		if !ok {
			continue // predecessor not part of this flow (shouldn't happen post-Validate)
		}
		if pv.layer != Scheduled {
			return false
		}
	}
	return true
}

// allParentsAtLeastScheduledOrFree reports whether every parent of v is in
// Scheduled or Free (the Second-layer admission condition).
func (g *Graph) allParentsAtLeastScheduledOrFree(v *vertex) bool {
	for _, p := range v.parents {
		pv, ok := g.vertices[p]
		if !ok {
			continue
		}
		if pv.layer != Scheduled && pv.layer != Free {
			return false
		}
	}
	return true
}

// Next advances one iteration per spec.md §4.3/§9's open-question
// resolution: every Free vertex moves to Scheduled atomically, then
// Second-to-Free and Hidden-to-Second promotions are derived from that
// single snapshot, not from per-task incremental updates.
func (g *Graph) Next() {
	var newlyScheduled []*vertex
	for _, v := range g.vertices {
		if v.layer == Free {
			v.layer = Scheduled
			newlyScheduled = append(newlyScheduled, v)
		}
	}

	var newlyFree []*vertex
	for _, sv := range newlyScheduled {
		for _, cid := range sv.children {
			cv := g.vertices[cid]
			if cv.layer != Second {
				continue
			}
			if !g.allParentsScheduled(cv) {
				continue
			}
			var maxF time.Duration
			for _, p := range cv.parents {
				if pv, ok := g.vertices[p]; ok && pv.f != nil && *pv.f > maxF {
					maxF = *pv.f
				}
			}
			cv.layer = Free
			cv.pc = &maxF
			newlyFree = append(newlyFree, cv)
		}
	}

	for _, fv := range newlyFree {
		for _, cid := range fv.children {
			cv := g.vertices[cid]
			if cv.layer != Hidden {
				continue
			}
			if !g.allParentsAtLeastScheduledOrFree(cv) {
				continue
			}
			cv.layer = Second
		}
	}
}

// GetAuctionableTasks returns every task currently in the Free layer.
func (g *Graph) GetAuctionableTasks() []mrta.Task {
	return g.GetLayerVertices(Free)
}

// GetLayerVertices returns every task currently tagged with layer.
func (g *Graph) GetLayerVertices(layer Layer) []mrta.Task {
	var out []mrta.Task
	for _, v := range g.vertices {
		if v.layer == layer {
			out = append(out, v.task)
		}
	}
	return out
}

// SetEarliestValidStartTime sets PC[t] for task, initializing a Free
// task's auction window anchor (the initiator does this for every Free
// task when a material flow starts, per §4.4.1).
func (g *Graph) SetEarliestValidStartTime(id uuid.UUID, t time.Duration) {
	if v, ok := g.vertices[id]; ok {
		tt := t
		v.pc = &tt
	}
}

// EarliestValidStartTime returns PC[t], or false if never set.
func (g *Graph) EarliestValidStartTime(id uuid.UUID) (time.Duration, bool) {
	v, ok := g.vertices[id]
	if !ok || v.pc == nil {
		return 0, false
	}
	return *v.pc, true
}

// SetLatestFinishTime sets F[t], recorded by the initiator once a winner
// is selected (the winning bid's makespan becomes the task's deadline for
// downstream PC propagation).
func (g *Graph) SetLatestFinishTime(id uuid.UUID, t time.Duration) {
	if v, ok := g.vertices[id]; ok {
		tt := t
		v.f = &tt
	}
}

// SetTaskScheduled force-marks a task Scheduled outside the normal Next()
// progression, used by the initiator when a winner is awarded mid-iteration
// (the task must leave Free immediately, not wait for the next Next()
// call, since CallForProposal only offers Free tasks and an awarded one
// must not be re-offered).
func (g *Graph) SetTaskScheduled(id uuid.UUID) {
	if v, ok := g.vertices[id]; ok {
		v.layer = Scheduled
	}
}

// SetTaskFree rolls a task back to Free, used when a winner response
// rejects an award and no other bid remains for the task.
func (g *Graph) SetTaskFree(id uuid.UUID) {
	if v, ok := g.vertices[id]; ok {
		v.layer = Free
	}
}

// Layer returns the current layer of id.
func (g *Graph) Layer(id uuid.UUID) (Layer, bool) {
	v, ok := g.vertices[id]
	if !ok {
		return 0, false
	}
	return v.layer, true
}

// AreAllTasksScheduled reports whether every vertex in the graph is
// Scheduled.
func (g *Graph) AreAllTasksScheduled() bool {
	for _, v := range g.vertices {
		if v.layer != Scheduled {
			return false
		}
	}
	return true
}

// AreAllFreeTasksScheduled reports whether the Free layer is currently
// empty -- i.e. every task that was auctionable this iteration has been
// awarded.
func (g *Graph) AreAllFreeTasksScheduled() bool {
	for _, v := range g.vertices {
		if v.layer == Free {
			return false
		}
	}
	return true
}

// IsFreeTaskScheduled reports whether id is a Free-layer task that has
// already moved to Scheduled (used by the iteration loop to detect
// mid-iteration awards without waiting for Next()).
func (g *Graph) IsFreeTaskScheduled(id uuid.UUID) bool {
	v, ok := g.vertices[id]
	return ok && v.layer == Scheduled
}

// Depth returns the number of Next() calls required to schedule every task
// in the graph from its initial layering, not mutating g. Used by tests to
// assert the "auction terminates after exactly depth(LPG) iterations"
// property (spec.md §8).
func (g *Graph) Depth() int {
	clone := g.cloneForDepth()
	depth := 0
	for !clone.AreAllTasksScheduled() {
		clone.Next()
		depth++
		if depth > len(clone.vertices)+1 {
			break // defensive: a malformed graph must not loop forever
		}
	}
	return depth
}

func (g *Graph) cloneForDepth() *Graph {
	c := &Graph{vertices: make(map[uuid.UUID]*vertex, len(g.vertices))}
	for id, v := range g.vertices {
		cv := &vertex{task: v.task, layer: v.layer, parents: v.parents, children: v.children}
		if v.pc != nil {
			pc := *v.pc
			cv.pc = &pc
		}
		if v.f != nil {
			f := *v.f
			cv.f = &f
		}
		c.vertices[id] = cv
	}
	return c
}
