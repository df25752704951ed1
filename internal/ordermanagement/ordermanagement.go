package ordermanagement

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/tutu-network/mrta-fleet/internal/mobility"
	"github.com/tutu-network/mrta-fleet/internal/mrta"
)

// TaskInsertInfo carries a queued task alongside the per-order end
// locations computed when it was inserted and its running metrics
// composition. Exported so callers (the auction participant) can inspect
// the current schedule.
type TaskInsertInfo struct {
	Task         mrta.Task
	EndLocations []mrta.Position
	Metrics      mrta.MetricsComposition
}

// InsertionPoint is an opaque token identifying where in the current
// ordering a previously-evaluated task would be spliced. Returned by
// CanAddTask/AddTask's LatestCalculatedInsertionInfo and replayed into a
// later AddTask call to commit that exact placement.
type InsertionPoint struct {
	previousFinish vertex
	nextStart      *vertex
	newIndex       int
}

type latestInsertionInfo struct {
	metrics mrta.MetricsComposition
	point   InsertionPoint
}

// StnOrderManagement is a participant's local schedule: a Simple Temporal
// Network over its queued tasks, used to price and commit task
// insertions during an auction. Grounded on stn_order_management.h/.cpp,
// generalized from AMR task queues specifically to the Task/Order model
// package mrta defines.
type StnOrderManagement struct {
	desc mrta.AMRDescription
	topo mrta.Topology
	pose mrta.Pose

	utility mrta.UtilityFunc

	graph *stn

	currentTask               *mrta.Task
	currentTaskEndLocation    mrta.Position
	currentTaskExpectedFinish time.Duration

	ordering     []TaskInsertInfo
	totalMetrics mrta.Metrics
	newestIdx    int

	now time.Duration

	latest *latestInsertionInfo
}

// New builds an empty order management for an AMR with desc/topo/pose. A
// nil utility defaults to mrta.NegativeEmptyTravelTime.
func New(desc mrta.AMRDescription, topo mrta.Topology, pose mrta.Pose, utility mrta.UtilityFunc) *StnOrderManagement {
	if utility == nil {
		utility = mrta.NegativeEmptyTravelTime
	}
	return &StnOrderManagement{
		desc:      desc,
		topo:      topo,
		pose:      pose,
		utility:   utility,
		graph:     newSTN(),
		newestIdx: -1,
	}
}

// HasTasks reports whether a current (executing) task is assigned.
func (m *StnOrderManagement) HasTasks() bool { return m.currentTask != nil }

// Utility returns the ranking function installed at construction, so a
// caller comparing MetricsComposition values across order managements
// (internal/auction's Participant) uses the same ranking this instance
// does internally rather than a second, independently-chosen one.
func (m *StnOrderManagement) Utility() mrta.UtilityFunc { return m.utility }

// QueueLength returns the number of tasks queued (not yet current), for
// fleet status reporting.
func (m *StnOrderManagement) QueueLength() int { return len(m.ordering) }

// TotalMakespan returns the running schedule's total makespan across every
// queued task, for fleet status reporting.
func (m *StnOrderManagement) TotalMakespan() time.Duration { return m.totalMetrics.Makespan() }

// CurrentTask returns the task currently being executed.
func (m *StnOrderManagement) CurrentTask() (mrta.Task, error) {
	if m.currentTask == nil {
		return mrta.Task{}, fmt.Errorf("ordermanagement: no current task: %w", mrta.ErrInvalidArgument)
	}
	return *m.currentTask, nil
}

// SetNextTask promotes the head of the queue to the current task,
// removing its vertices from the STN (its timing is now fixed by
// execution, not subject to further insertion trials). Reports false if
// the queue was empty.
func (m *StnOrderManagement) SetNextTask() bool {
	if len(m.ordering) == 0 {
		m.currentTask = nil
		return false
	}

	next := m.ordering[0]
	t := next.Task
	m.currentTask = &t
	m.currentTaskExpectedFinish = m.now + next.Metrics.Current().Time()
	m.currentTaskEndLocation = next.EndLocations[len(next.EndLocations)-1]

	for _, o := range t.Orders {
		m.graph.removeVertex(startVertex(o.ID))
		m.graph.removeVertex(finishVertex(o.ID))
	}
	m.ordering = m.ordering[1:]
	return true
}

// CanAddTask trials task's insertion on a clone, leaving m untouched but
// recording the trial's outcome for LatestCalculatedInsertionInfo.
func (m *StnOrderManagement) CanAddTask(task mrta.Task) bool {
	m.latest = nil
	trial := m.clone()
	if err := trial.AddTask(task, nil); err != nil {
		return false
	}
	m.latest = trial.latest
	return true
}

// AddTask inserts task into the schedule. If point is nil, every
// candidate insertion slot in the current ordering is trialled and the
// one whose diff-insertion metrics rank best (highest utility) under m's
// utility function wins; if point is supplied, task is spliced there directly (the usual
// path once a winning bid has been accepted elsewhere).
func (m *StnOrderManagement) AddTask(task mrta.Task, point *InsertionPoint) error {
	m.latest = nil

	if len(task.Orders) == 0 {
		return fmt.Errorf("ordermanagement: task must have at least one order: %w", mrta.ErrInvalidArgument)
	}

	info := &TaskInsertInfo{Task: task}

	for i, o := range task.Orders {
		startIdx := m.graph.addVertex(startVertex(o.ID))
		finishIdx := m.graph.addVertex(finishVertex(o.ID))

		if i > 0 {
			prevFinishIdx := m.graph.mustIndexOf(finishVertex(task.Orders[i-1].ID))
			m.graph.addOrdering(prevFinishIdx, startIdx)
		}

		dur, known, err := m.calcOrderDurationForInsert(o, i, info)
		if err != nil {
			return err
		}
		if known {
			m.graph.addFixedDuration(startIdx, finishIdx, dur)
		}

		if end, ok := o.EndLocation(); ok {
			info.EndLocations = append(info.EndLocations, end)
		} else if len(info.EndLocations) > 0 {
			info.EndLocations = append(info.EndLocations, info.EndLocations[len(info.EndLocations)-1])
		} else {
			return fmt.Errorf("ordermanagement: first order has no statically known location: %w", mrta.ErrInvalidArgument)
		}
	}

	if task.Window != nil {
		if err := m.addTimeWindowConstraints(*task.Window, task.Orders); err != nil {
			return err
		}
	}

	startOfFirst := m.graph.mustIndexOf(startVertex(task.Orders[0].ID))
	for _, prec := range task.Preceding {
		m.addPrecedenceConstraint(startOfFirst, prec)
	}

	if point != nil {
		if err := m.addOrderingConstraintBetweenTasks(*point, info); err != nil {
			return err
		}
		if !m.solve() {
			return mrta.ErrInfeasible
		}
		m.latest = &latestInsertionInfo{metrics: m.ordering[m.newestIdx].Metrics, point: *point}
		return nil
	}

	metrics, bestPoint, ok := m.addBestOrdering(info)
	if !ok {
		return mrta.ErrInfeasible
	}
	m.latest = &latestInsertionInfo{metrics: metrics, point: bestPoint}
	return nil
}

// LatestCalculatedInsertionInfo returns the metrics composition and
// insertion point of the most recent successful CanAddTask/AddTask call.
func (m *StnOrderManagement) LatestCalculatedInsertionInfo() (mrta.MetricsComposition, InsertionPoint, error) {
	if m.latest == nil {
		return mrta.MetricsComposition{}, InsertionPoint{}, fmt.Errorf("ordermanagement: %w", mrta.ErrNoInsertionInfo)
	}
	return m.latest.metrics, m.latest.point, nil
}

// SetCurrentTime advances the STN's time origin to now, shifting every
// window bound by the elapsed delta.
func (m *StnOrderManagement) SetCurrentTime(now time.Duration) error {
	if now < m.now {
		return fmt.Errorf("ordermanagement: new time must be later than current time: %w", mrta.ErrInvalidArgument)
	}
	m.graph.shiftOrigin((now - m.now).Seconds())
	m.now = now
	return nil
}

func (m *StnOrderManagement) addTimeWindowConstraints(w mrta.TimeWindow, orders []mrta.Order) error {
	now := m.now.Seconds()
	if w.EarliestStart-now < 0 {
		return fmt.Errorf("ordermanagement: task already missed its window: %w", mrta.ErrInfeasible)
	}

	startIdx := m.graph.mustIndexOf(startVertex(orders[0].ID))
	finishIdx := m.graph.mustIndexOf(finishVertex(orders[len(orders)-1].ID))

	// first order: weak upper bound (can't start after the window's own
	// latest finish), real lower bound (can't start before earliest_start),
	// both relative to the STN's current time origin.
	m.graph.addLatestBound(startIdx, w.LatestFinish-now)
	m.graph.addEarliestBound(startIdx, w.EarliestStart-now)

	// last order, symmetrically: real upper bound, weak lower bound.
	m.graph.addLatestBound(finishIdx, w.LatestFinish-now)
	m.graph.addEarliestBound(finishIdx, w.EarliestStart-now)
	return nil
}

func (m *StnOrderManagement) addPrecedenceConstraint(startIdx int, precedingTaskID uuid.UUID) {
	for _, info := range m.ordering {
		if info.Task.ID != precedingTaskID {
			continue
		}
		lastOrder := info.Task.Orders[len(info.Task.Orders)-1]
		finishIdx := m.graph.mustIndexOf(finishVertex(lastOrder.ID))
		m.graph.addOrdering(finishIdx, startIdx)
		return
	}
	// preceding task isn't queued here (already executing, completed, or
	// assigned elsewhere) -- nothing local left to constrain against.
}

// calcInsertionPoints enumerates every slot in the current ordering a new
// task could be spliced into: before the first queued task, between any
// two adjacent queued tasks, or after the last one.
func (m *StnOrderManagement) calcInsertionPoints() []InsertionPoint {
	points := make([]InsertionPoint, 0, len(m.ordering)+1)

	if len(m.ordering) == 0 {
		points = append(points, InsertionPoint{previousFinish: originVertex(), newIndex: 0})
	} else {
		ns := startVertex(m.ordering[0].Task.Orders[0].ID)
		points = append(points, InsertionPoint{previousFinish: originVertex(), nextStart: &ns, newIndex: 0})
	}

	for i, info := range m.ordering {
		lastOrder := info.Task.Orders[len(info.Task.Orders)-1]
		pf := finishVertex(lastOrder.ID)

		if i+1 < len(m.ordering) {
			ns := startVertex(m.ordering[i+1].Task.Orders[0].ID)
			points = append(points, InsertionPoint{previousFinish: pf, nextStart: &ns, newIndex: i + 1})
		} else {
			points = append(points, InsertionPoint{previousFinish: pf, newIndex: i + 1})
		}
	}
	return points
}

// addOrderingConstraintBetweenTasks splices info into the ordering at
// point, gluing it to its neighbours and re-deriving any leading-leg
// duration that depended on an until-now-unknown previous position.
func (m *StnOrderManagement) addOrderingConstraintBetweenTasks(point InsertionPoint, info *TaskInsertInfo) error {
	idx := point.newIndex
	m.ordering = append(m.ordering, TaskInsertInfo{})
	copy(m.ordering[idx+1:], m.ordering[idx:])
	m.ordering[idx] = *info

	startIdx := m.graph.mustIndexOf(startVertex(info.Task.Orders[0].ID))
	pfIdx := m.graph.mustIndexOf(point.previousFinish)
	m.graph.addOrdering(pfIdx, startIdx)

	if err := m.updateDurationConstraints(idx); err != nil {
		return err
	}

	if point.nextStart != nil {
		finishIdx := m.graph.mustIndexOf(finishVertex(info.Task.Orders[len(info.Task.Orders)-1].ID))
		nsIdx := m.graph.mustIndexOf(*point.nextStart)
		m.graph.addOrdering(finishIdx, nsIdx)

		if err := m.updateDurationConstraints(idx + 1); err != nil {
			return err
		}
	}
	return nil
}

// updateDurationConstraints recomputes the duration of the task at
// taskIdx's leading leg now that the position preceding it is known (or
// has changed because a different task was just spliced in ahead of it).
// Only a leading TransportOrder has an unknown-until-placed duration;
// anything else was already fixed when the task's vertices were created.
func (m *StnOrderManagement) updateDurationConstraints(taskIdx int) error {
	if taskIdx >= len(m.ordering) {
		return nil
	}
	info := &m.ordering[taskIdx]
	firstOrder := info.Task.Orders[0]
	if firstOrder.Kind != mrta.TransportOrder {
		return nil
	}

	lastPos := m.getLastPositionBefore(taskIdx)
	fs, err := ordersToFunctionalities([]mrta.Order{firstOrder}, lastPos)
	if err != nil {
		return err
	}
	dur, err := mobility.EstimateDurationAll(mrta.Pose{Position: lastPos}, fs, m.desc, m.topo, false)
	if err != nil {
		return err
	}

	startIdx := m.graph.mustIndexOf(startVertex(firstOrder.ID))
	finishIdx := m.graph.mustIndexOf(finishVertex(firstOrder.ID))
	m.graph.setFixedDuration(startIdx, finishIdx, dur)
	return nil
}

// addBestOrdering trials every candidate insertion point on a clone and
// commits the one whose diff-insertion metrics rank best under m's
// utility function.
func (m *StnOrderManagement) addBestOrdering(info *TaskInsertInfo) (mrta.MetricsComposition, InsertionPoint, bool) {
	points := m.calcInsertionPoints()

	bestIdx := -1
	var best mrta.MetricsComposition

	for i, point := range points {
		trial := m.clone()
		infoCopy := *info
		if err := trial.addOrderingConstraintBetweenTasks(point, &infoCopy); err != nil {
			continue
		}
		if !trial.solve() {
			continue
		}
		candidate := trial.ordering[trial.newestIdx].Metrics
		if bestIdx == -1 || candidate.Better(best, m.utility) {
			best = candidate
			bestIdx = i
		}
	}

	if bestIdx == -1 {
		return mrta.MetricsComposition{}, InsertionPoint{}, false
	}

	infoCopy := *info
	if err := m.addOrderingConstraintBetweenTasks(points[bestIdx], &infoCopy); err != nil {
		panic("ordermanagement: best ordering failed to re-apply: " + err.Error())
	}
	if !m.solve() {
		panic("ordermanagement: failed to solve although it was solvable on the trial copy")
	}
	return m.ordering[m.newestIdx].Metrics, points[bestIdx], true
}

// solve re-solves the STN and, if consistent, refreshes every queued
// task's current metrics and the total schedule metrics.
func (m *StnOrderManagement) solve() bool {
	d, ok := m.graph.solve()
	if !ok {
		return false
	}
	if err := m.updateCurrentOrdering(d); err != nil {
		return false
	}
	return true
}

// updateCurrentOrdering recomputes every queued task's current metrics
// from the solved D-graph, re-sorts the ordering by earliest start time,
// and derives the diff-insertion metrics for the single task most
// recently spliced in.
func (m *StnOrderManagement) updateCurrentOrdering(d [][]float64) error {
	startTimeByTask := make(map[uuid.UUID]time.Duration, len(m.ordering))

	for i := range m.ordering {
		info := &m.ordering[i]
		var current mrta.Metrics
		orderStarts := make([]time.Duration, 0, len(info.Task.Orders))

		for _, o := range info.Task.Orders {
			startIdx := m.graph.mustIndexOf(startVertex(o.ID))
			startTime := earliestTime(d, startIdx)
			orderStarts = append(orderStarts, startTime)
			if err := m.insertOrderPropertiesIntoMetrics(o, &current, info, i); err != nil {
				return err
			}
		}

		taskStart := orderStarts[0]
		for _, s := range orderStarts[1:] {
			if s < taskStart {
				taskStart = s
			}
		}
		offset := m.currentTaskExpectedFinish
		if m.now > offset {
			offset = m.now
		}

		startTimeByTask[info.Task.ID] = taskStart
		current.SetStartTime(taskStart + offset)
		info.Metrics.UpdateCurrentMetrics(current)
	}

	sort.SliceStable(m.ordering, func(i, j int) bool {
		return startTimeByTask[m.ordering[i].Task.ID] < startTimeByTask[m.ordering[j].Task.ID]
	})

	previousTotal := m.totalMetrics
	m.totalMetrics = mrta.Metrics{}
	for _, info := range m.ordering {
		m.totalMetrics = m.totalMetrics.Add(info.Metrics.Current())
	}

	newestIdx := -1
	for i := range m.ordering {
		if m.ordering[i].Metrics.DiffInsertionSet() {
			continue
		}
		if newestIdx != -1 {
			panic("ordermanagement: more than one queued task missing diff-insertion metrics")
		}
		newestIdx = i
	}
	if newestIdx == -1 {
		panic("ordermanagement: no queued task missing diff-insertion metrics")
	}

	diff := m.totalMetrics.Sub(previousTotal)
	m.ordering[newestIdx].Metrics.SetDiffInsertionMetrics(diff)
	m.ordering[newestIdx].Metrics.FixInsertionMetrics(m.ordering[newestIdx].Metrics.Current())
	m.newestIdx = newestIdx
	return nil
}

// insertOrderPropertiesIntoMetrics adds one order's contribution to
// metrics, dispatching on order kind the same way calcOrderDurationForInsert
// does but now always with a known previous position (the schedule has
// already been fully spliced together by this point).
func (m *StnOrderManagement) insertOrderPropertiesIntoMetrics(o mrta.Order, metrics *mrta.Metrics, info *TaskInsertInfo, taskOrderingIndex int) error {
	idx := indexOfOrder(info.Task.Orders, o.ID)

	switch o.Kind {
	case mrta.MoveOrder:
		if idx == 0 {
			return fmt.Errorf("ordermanagement: move order cannot be first in a task: %w", mrta.ErrInvalidArgument)
		}
		prev := info.EndLocations[idx-1]
		fs, err := ordersToFunctionalities([]mrta.Order{o}, prev)
		if err != nil {
			return err
		}
		dur, err := mobility.EstimateDurationAll(mrta.Pose{Position: prev}, fs, m.desc, m.topo, false)
		if err != nil {
			return err
		}
		metrics.EmptyTravelTime += dur
		metrics.EmptyTravelDistance += mobility.CalculateDistanceAll(prev, fs)

	case mrta.TransportOrder:
		var prev mrta.Position
		if idx > 0 {
			prev = info.EndLocations[idx-1]
		} else {
			prev = m.getLastPositionBefore(taskOrderingIndex)
		}
		fs, err := ordersToFunctionalities([]mrta.Order{o}, prev)
		if err != nil {
			return err
		}
		dm, err := mobility.CalculateMetricsByDomain(prev, fs, m.desc, m.topo)
		if err != nil {
			return err
		}
		metrics.EmptyTravelTime += dm.EmptyTravelTime
		metrics.LoadedTravelTime += dm.LoadedTravelTime
		metrics.ActionTime += dm.ActionTime
		metrics.EmptyTravelDistance += dm.EmptyTravelDistance
		metrics.LoadedTravelDistance += dm.LoadedTravelDistance

	case mrta.ActionOrder:
		if idx == 0 {
			return fmt.Errorf("ordermanagement: action order cannot be first in a task: %w", mrta.ErrInvalidArgument)
		}
		prev := info.EndLocations[idx-1]
		fs, err := ordersToFunctionalities([]mrta.Order{o}, prev)
		if err != nil {
			return err
		}
		dur, err := mobility.EstimateDurationAll(mrta.Pose{Position: prev}, fs, m.desc, m.topo, false)
		if err != nil {
			return err
		}
		metrics.ActionTime += dur

	default:
		return fmt.Errorf("ordermanagement: unsupported order kind: %w", mrta.ErrInvalidArgument)
	}
	return nil
}

// calcOrderDurationForInsert returns the leg duration for order at index
// orderIdx within info.Task, or known=false when the previous position
// isn't determined yet (only possible for a leading TransportOrder,
// resolved later by updateDurationConstraints once an insertion point is
// chosen).
func (m *StnOrderManagement) calcOrderDurationForInsert(order mrta.Order, orderIdx int, info *TaskInsertInfo) (time.Duration, bool, error) {
	if orderIdx == 0 {
		if order.Kind != mrta.TransportOrder {
			return 0, false, fmt.Errorf("ordermanagement: only a transport order may lead a task: %w", mrta.ErrInvalidArgument)
		}
		return 0, false, nil
	}

	prev := info.EndLocations[orderIdx-1]
	fs, err := ordersToFunctionalities([]mrta.Order{order}, prev)
	if err != nil {
		return 0, false, err
	}
	dur, err := mobility.EstimateDurationAll(mrta.Pose{Position: prev}, fs, m.desc, m.topo, false)
	if err != nil {
		return 0, false, err
	}
	return dur, true, nil
}

func (m *StnOrderManagement) getLastPositionBefore(taskIndex int) mrta.Position {
	if taskIndex == 0 {
		if m.HasTasks() {
			return m.currentTaskEndLocation
		}
		return m.pose.Position
	}
	prev := m.ordering[taskIndex-1]
	return prev.EndLocations[len(prev.EndLocations)-1]
}

func indexOfOrder(orders []mrta.Order, id uuid.UUID) int {
	for i, o := range orders {
		if o.ID == id {
			return i
		}
	}
	panic("ordermanagement: order not part of task")
}

// clone deep-copies m for a non-mutating insertion trial.
func (m *StnOrderManagement) clone() *StnOrderManagement {
	c := &StnOrderManagement{
		desc:                      m.desc,
		topo:                      m.topo,
		pose:                      m.pose,
		utility:                   m.utility,
		graph:                     m.graph.clone(),
		currentTaskEndLocation:    m.currentTaskEndLocation,
		currentTaskExpectedFinish: m.currentTaskExpectedFinish,
		totalMetrics:              m.totalMetrics,
		newestIdx:                 m.newestIdx,
		now:                       m.now,
	}
	if m.currentTask != nil {
		t := *m.currentTask
		c.currentTask = &t
	}
	c.ordering = make([]TaskInsertInfo, len(m.ordering))
	copy(c.ordering, m.ordering)
	return c
}
