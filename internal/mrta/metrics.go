package mrta

import "time"

// Metrics is the additive cost vector tracked per task/order insertion:
// travel time/distance split empty vs loaded, action time, and a makespan
// that is either explicitly set (once) or derived from start_time + total
// time.
type Metrics struct {
	EmptyTravelTime     time.Duration
	LoadedTravelTime    time.Duration
	ActionTime          time.Duration
	EmptyTravelDistance Distance
	LoadedTravelDistance Distance

	makespan  time.Duration
	startTime time.Duration
	startSet  bool
}

// SetStartTime records the metrics' anchor time. Panics if a makespan was
// already set explicitly, mirroring the source's setMakespan/start_time_
// mutual-exclusion invariant.
func (m *Metrics) SetStartTime(t time.Duration) {
	if m.makespan > 0 {
		panic("mrta: start time set after makespan already fixed")
	}
	m.startTime = t
	m.startSet = true
}

// SetMakespan fixes the makespan explicitly. Panics if start time was
// already recorded, mirroring the source's setMakespan guard.
func (m *Metrics) SetMakespan(v time.Duration) {
	if m.startSet {
		panic("mrta: makespan set after start time already fixed")
	}
	m.makespan = v
}

// Time returns the sum of the three additive time components.
func (m Metrics) Time() time.Duration {
	return m.EmptyTravelTime + m.LoadedTravelTime + m.ActionTime
}

// Makespan returns the fixed makespan if set, else startTime + Time().
func (m Metrics) Makespan() time.Duration {
	if m.makespan > 0 {
		return m.makespan
	}
	return m.startTime + m.Time()
}

// Sub computes the additive difference of two metrics (used to produce
// diff-insertion metrics from before/after insertion snapshots). The
// result's makespan is the smaller of the two operands' makespans.
func (m Metrics) Sub(o Metrics) Metrics {
	r := Metrics{
		EmptyTravelTime:      m.EmptyTravelTime - o.EmptyTravelTime,
		LoadedTravelTime:     m.LoadedTravelTime - o.LoadedTravelTime,
		ActionTime:           m.ActionTime - o.ActionTime,
		EmptyTravelDistance:  m.EmptyTravelDistance - o.EmptyTravelDistance,
		LoadedTravelDistance: m.LoadedTravelDistance - o.LoadedTravelDistance,
	}
	a, b := m.Makespan(), o.Makespan()
	if a < b {
		r.makespan = a
	} else {
		r.makespan = b
	}
	return r
}

// Add computes the additive sum of two metrics. The result's makespan is
// the larger of the two operands' makespans.
func (m Metrics) Add(o Metrics) Metrics {
	r := Metrics{
		EmptyTravelTime:      m.EmptyTravelTime + o.EmptyTravelTime,
		LoadedTravelTime:     m.LoadedTravelTime + o.LoadedTravelTime,
		ActionTime:           m.ActionTime + o.ActionTime,
		EmptyTravelDistance:  m.EmptyTravelDistance + o.EmptyTravelDistance,
		LoadedTravelDistance: m.LoadedTravelDistance + o.LoadedTravelDistance,
	}
	a, b := m.Makespan(), o.Makespan()
	if a > b {
		r.makespan = a
	} else {
		r.makespan = b
	}
	return r
}

// UtilityFunc scores a single Metrics record; higher is better. It is
// injected at construction time rather than kept as a package-level
// singleton, so callers can swap ranking strategies (e.g. distance-first
// vs. makespan-first) without touching order management or the auction
// packages.
type UtilityFunc func(m Metrics) float64

// NegativeEmptyTravelTime is the default UtilityFunc: u(m) = -m.EmptyTravelTime,
// so the bid with the least empty travel scores highest.
func NegativeEmptyTravelTime(m Metrics) float64 {
	return -float64(m.EmptyTravelTime)
}

// MetricsComposition bundles the three snapshots tracked for a task across
// an insertion trial: the metrics the task already carries, a pre-diff
// insertion snapshot, and the final diff (insertion-minus-current) used as
// the auction bid value. insertionMetrics may be fixed exactly once via
// FixInsertionMetrics, and diffInsertionMetrics may be set exactly once via
// SetDiffInsertionMetrics — both panic on a second call, mirroring the
// source's set-once guards.
type MetricsComposition struct {
	current Metrics

	insertion    Metrics
	insertionSet bool

	diffInsertion    Metrics
	diffInsertionSet bool
}

// NewMetricsComposition seeds a composition with the task's current
// metrics snapshot.
func NewMetricsComposition(current Metrics) MetricsComposition {
	return MetricsComposition{current: current}
}

// Current returns the task's pre-insertion metrics snapshot.
func (mc MetricsComposition) Current() Metrics { return mc.current }

// UpdateCurrentMetrics overwrites the task's pre-insertion metrics
// snapshot. Called whenever the surrounding schedule is re-solved and a
// task's own timing shifts as a result, e.g. another task spliced in
// ahead of it.
func (mc *MetricsComposition) UpdateCurrentMetrics(m Metrics) {
	mc.current = m
}

// FixInsertionMetrics records the metrics snapshot taken right after trial
// insertion. Panics if already fixed.
func (mc *MetricsComposition) FixInsertionMetrics(m Metrics) {
	if mc.insertionSet {
		panic("mrta: insertion metrics already fixed")
	}
	mc.insertion = m
	mc.insertionSet = true
}

// InsertionMetrics returns the fixed insertion snapshot. Panics if not yet
// fixed.
func (mc MetricsComposition) InsertionMetrics() Metrics {
	if !mc.insertionSet {
		panic("mrta: insertion metrics not fixed")
	}
	return mc.insertion
}

// SetDiffInsertionMetrics records the insertion-minus-current diff used as
// the bid value. Panics if already set.
func (mc *MetricsComposition) SetDiffInsertionMetrics(m Metrics) {
	if mc.diffInsertionSet {
		panic("mrta: diff insertion metrics already set")
	}
	mc.diffInsertion = m
	mc.diffInsertionSet = true
}

// DiffInsertionSet reports whether SetDiffInsertionMetrics has run.
func (mc MetricsComposition) DiffInsertionSet() bool { return mc.diffInsertionSet }

// MetricsForAuction returns the diff-insertion metrics, i.e. the value used
// to compare competing insertion points and bids. Panics if not yet set.
func (mc MetricsComposition) MetricsForAuction() Metrics {
	if !mc.diffInsertionSet {
		panic("mrta: diff insertion metrics not set")
	}
	return mc.diffInsertion
}

// Better reports whether mc ranks strictly above o under fn, scoring each
// composition's auction metrics and comparing the two scalars.
func (mc MetricsComposition) Better(o MetricsComposition, fn UtilityFunc) bool {
	return fn(mc.MetricsForAuction()) > fn(o.MetricsForAuction())
}
