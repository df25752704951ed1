// Package ordermanagement implements the participant's local schedule: a
// Simple Temporal Network (STN) that decides whether and where a candidate
// task can be inserted, prices the insertion with the mobility cost
// oracle, and yields a stable InsertionPoint token usable for later commit.
package ordermanagement

import (
	"time"

	"github.com/google/uuid"
)

// inf stands in for "no constraint" in the bound matrix. Kept far below
// math.MaxFloat64 so Floyd-Warshall's additions never overflow.
const inf = 1e18

type vertexRole int

const (
	roleOrigin vertexRole = iota
	roleStart
	roleFinish
)

// vertex identifies one node of the STN: the single origin, or the Start
// or Finish endpoint of a queued order.
type vertex struct {
	role    vertexRole
	orderID uuid.UUID
}

func originVertex() vertex                  { return vertex{role: roleOrigin} }
func startVertex(id uuid.UUID) vertex       { return vertex{role: roleStart, orderID: id} }
func finishVertex(id uuid.UUID) vertex      { return vertex{role: roleFinish, orderID: id} }
func (v vertex) isOrigin() bool             { return v.role == roleOrigin }

// stn is a directed weighted graph over (origin) ∪ {(order, Start),
// (order, Finish)}. An entry bound[u][v] is the tightest known upper bound
// on t(v)-t(u) (time(to)-time(from) <= weight, per spec §3); inf means no
// constraint has been recorded for that ordered pair yet. The origin
// vertex is always index 0.
//
// The underlying DAISI SimpleTemporalNetwork template (the C++ class this
// is grounded on) is not part of the retrieved source — only its call
// sites (stn_order_management.cpp) were available — so the exact dual-sign
// multi-weight Edge representation it used internally could not be ported
// byte for byte. What's reconstructed here is a standard distance-graph
// STN with the bound semantics spec.md §3 describes, plus a per-vertex
// default floor (never-before-origin) that the call sites imply but never
// spell out explicitly, needed to keep every vertex's earliest time
// well-defined.
type stn struct {
	vertices []vertex
	bound    [][]float64
}

// newSTN returns an STN containing only the origin vertex.
func newSTN() *stn {
	return &stn{vertices: []vertex{originVertex()}, bound: [][]float64{{0}}}
}

func (s *stn) indexOf(v vertex) (int, bool) {
	for i, vv := range s.vertices {
		if vv == v {
			return i, true
		}
	}
	return -1, false
}

func (s *stn) mustIndexOf(v vertex) int {
	i, ok := s.indexOf(v)
	if !ok {
		panic("ordermanagement: vertex not part of STN")
	}
	return i
}

// addVertex appends a new vertex with no constraints yet beyond the
// default "never before origin" floor, returning its index.
func (s *stn) addVertex(v vertex) int {
	n := len(s.vertices)
	s.vertices = append(s.vertices, v)

	for i := range s.bound {
		s.bound[i] = append(s.bound[i], inf)
	}
	row := make([]float64, n+1)
	for i := range row {
		row[i] = inf
	}
	row[n] = 0
	s.bound = append(s.bound, row)

	if !v.isOrigin() {
		s.addBound(n, 0, 0) // v >= origin
	}
	return n
}

// removeVertex drops v and its row/column from the matrix. O(n) in the
// vertex count, acceptable at the tens-of-vertices scale this STN runs at.
func (s *stn) removeVertex(v vertex) {
	idx, ok := s.indexOf(v)
	if !ok {
		return
	}
	s.vertices = append(s.vertices[:idx], s.vertices[idx+1:]...)
	s.bound = append(s.bound[:idx], s.bound[idx+1:]...)
	for i := range s.bound {
		s.bound[i] = append(s.bound[i][:idx], s.bound[i][idx+1:]...)
	}
}

// addBound tightens bound[from][to] to the minimum of its current value
// and weight. Combining two upper bounds via min is always sound: t(to) -
// t(from) <= w1 and <= w2 together imply <= min(w1, w2).
func (s *stn) addBound(from, to int, weight float64) {
	if weight < s.bound[from][to] {
		s.bound[from][to] = weight
	}
}

// addFixedDuration pins t(to) - t(from) exactly to d: an order takes
// exactly as long as the mobility helper estimates, no slack.
func (s *stn) addFixedDuration(from, to int, d time.Duration) {
	secs := d.Seconds()
	s.addBound(from, to, secs)
	s.addBound(to, from, -secs)
}

// setFixedDuration unconditionally overwrites the duration pinned between
// from and to, unlike addFixedDuration's tighten-via-min: used when a
// task's leading leg is recomputed after a different task is spliced in
// ahead of it and the old duration estimate must be replaced, not merely
// tightened.
func (s *stn) setFixedDuration(from, to int, d time.Duration) {
	secs := d.Seconds()
	s.bound[from][to] = secs
	s.bound[to][from] = -secs
}

// addOrdering constrains after >= before (a sequencing/precedence edge
// with no upper bound, i.e. an idle gap is allowed).
func (s *stn) addOrdering(before, after int) {
	s.addBound(after, before, 0)
}

// addEarliestBound constrains t(v) >= value relative to the origin.
func (s *stn) addEarliestBound(v int, value float64) {
	s.addBound(v, 0, -value)
}

// addLatestBound constrains t(v) <= value relative to the origin.
func (s *stn) addLatestBound(v int, value float64) {
	s.addBound(0, v, value)
}

// clone deep-copies the graph for a non-mutating trial solve.
func (s *stn) clone() *stn {
	vs := make([]vertex, len(s.vertices))
	copy(vs, s.vertices)
	b := make([][]float64, len(s.bound))
	for i, row := range s.bound {
		b[i] = append([]float64(nil), row...)
	}
	return &stn{vertices: vs, bound: b}
}

// solve runs Floyd-Warshall all-pairs shortest paths over the bound
// matrix, producing the D-graph. Consistency requires a non-negative
// diagonal; any negative diagonal entry means the constraints are
// infeasible (a negative cycle).
func (s *stn) solve() (dGraph [][]float64, ok bool) {
	n := len(s.vertices)
	d := make([][]float64, n)
	for i := range d {
		d[i] = append([]float64(nil), s.bound[i]...)
	}
	for k := 0; k < n; k++ {
		for i := 0; i < n; i++ {
			if d[i][k] >= inf {
				continue
			}
			for j := 0; j < n; j++ {
				if d[k][j] >= inf {
					continue
				}
				if sum := d[i][k] + d[k][j]; sum < d[i][j] {
					d[i][j] = sum
				}
			}
		}
	}
	for i := 0; i < n; i++ {
		if d[i][i] < -1e-6 {
			return d, false
		}
	}
	return d, true
}

// earliestTime returns the earliest feasible time of vertex index i
// relative to the origin, given a solved D-graph: t(v) = -d[v][origin].
func earliestTime(d [][]float64, i int) time.Duration {
	return time.Duration(-d[i][0] * float64(time.Second))
}

// shiftOrigin implements setCurrentTime's constraint update as the time
// origin advances by delta (seconds): outgoing origin edges (latest
// bounds) grow by delta, incoming origin edges (earliest bounds, and the
// default floor) shrink by delta, preserving both sides of the window as
// time moves forward under the fixed vertices.
func (s *stn) shiftOrigin(delta float64) {
	if delta == 0 {
		return
	}
	for j := 1; j < len(s.vertices); j++ {
		if s.bound[0][j] < inf {
			s.bound[0][j] += delta
		}
	}
	for i := 1; i < len(s.vertices); i++ {
		if s.bound[i][0] < inf {
			s.bound[i][0] -= delta
		}
	}
}
