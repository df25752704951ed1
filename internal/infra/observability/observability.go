// Package observability provides lightweight distributed tracing and the
// Prometheus metrics SPEC_FULL.md §2 calls for: CFPs sent, bids received,
// winners selected, starvation events and STN solve latency.
//
// This provides:
//   - Trace spans for the auction lifecycle (prepare → CFP → bid → winner → commit)
//   - W3C TraceContext propagation
//   - Prometheus metrics for the auction and STN subsystems
//   - Structured log correlation with trace IDs
package observability

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ═══════════════════════════════════════════════════════════════════════════
// Trace Spans — Lightweight span tracking without external OTel SDK dependency
// ═══════════════════════════════════════════════════════════════════════════

// SpanKind classifies a span.
type SpanKind int

const (
	SpanInternal SpanKind = iota
	SpanServer
	SpanClient
)

// Span represents a unit of work within a distributed trace.
type Span struct {
	TraceID   string            `json:"trace_id"`
	SpanID    string            `json:"span_id"`
	ParentID  string            `json:"parent_id,omitempty"`
	Operation string            `json:"operation"`
	Kind      SpanKind          `json:"kind"`
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time,omitempty"`
	Duration  time.Duration     `json:"duration,omitempty"`
	Status    SpanStatus        `json:"status"`
	Attrs     map[string]string `json:"attrs,omitempty"`
}

// SpanStatus indicates success/failure.
type SpanStatus int

const (
	SpanOK SpanStatus = iota
	SpanError
)

// ─── Tracer ─────────────────────────────────────────────────────────────────

// Tracer provides lightweight distributed tracing.
// In production, this would wrap OpenTelemetry SDK.
// Phase 3 implementation stores spans in-memory for inspection and export.
type Tracer struct {
	mu       sync.Mutex
	spans    []Span
	maxSpans int
	enabled  bool
}

// TracerConfig configures the tracer.
type TracerConfig struct {
	Enabled  bool
	MaxSpans int // ring buffer size (default 10_000)
}

// DefaultTracerConfig returns production defaults.
func DefaultTracerConfig() TracerConfig {
	return TracerConfig{
		Enabled:  true,
		MaxSpans: 10_000,
	}
}

// NewTracer creates a new tracer.
func NewTracer(cfg TracerConfig) *Tracer {
	return &Tracer{
		spans:    make([]Span, 0, cfg.MaxSpans),
		maxSpans: cfg.MaxSpans,
		enabled:  cfg.Enabled,
	}
}

// StartSpan begins a new span with the given operation name.
// Returns the span (caller must call EndSpan when done).
func (t *Tracer) StartSpan(ctx context.Context, operation string, attrs map[string]string) *Span {
	if !t.enabled {
		return &Span{Operation: operation}
	}

	span := &Span{
		TraceID:   traceIDFromContext(ctx),
		SpanID:    generateID(),
		ParentID:  spanIDFromContext(ctx),
		Operation: operation,
		Kind:      SpanInternal,
		StartTime: time.Now(),
		Status:    SpanOK,
		Attrs:     attrs,
	}

	return span
}

// EndSpan completes a span and records it.
func (t *Tracer) EndSpan(span *Span, err error) {
	if !t.enabled || span == nil {
		return
	}

	span.EndTime = time.Now()
	span.Duration = span.EndTime.Sub(span.StartTime)
	if err != nil {
		span.Status = SpanError
		if span.Attrs == nil {
			span.Attrs = make(map[string]string)
		}
		span.Attrs["error"] = err.Error()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Ring buffer: overwrite oldest if at capacity
	if len(t.spans) >= t.maxSpans {
		t.spans = t.spans[1:]
	}
	t.spans = append(t.spans, *span)
}

// Spans returns a copy of the recent spans.
func (t *Tracer) Spans(limit int) []Span {
	t.mu.Lock()
	defer t.mu.Unlock()

	if limit <= 0 || limit > len(t.spans) {
		limit = len(t.spans)
	}

	// Return most recent spans
	start := len(t.spans) - limit
	out := make([]Span, limit)
	copy(out, t.spans[start:])
	return out
}

// SpanCount returns the number of recorded spans.
func (t *Tracer) SpanCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.spans)
}

// Reset clears all recorded spans.
func (t *Tracer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.spans = t.spans[:0]
}

// ─── Context Helpers ────────────────────────────────────────────────────────

type contextKey string

const (
	traceIDKey contextKey = "tutu-trace-id"
	spanIDKey  contextKey = "tutu-span-id"
)

// WithTraceID returns a context with the given trace ID.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// WithSpanID returns a context with the given span ID.
func WithSpanID(ctx context.Context, spanID string) context.Context {
	return context.WithValue(ctx, spanIDKey, spanID)
}

func traceIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey).(string); ok {
		return v
	}
	return generateID()
}

func spanIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(spanIDKey).(string); ok {
		return v
	}
	return ""
}

// generateID creates a short unique ID (not cryptographically secure — fine for tracing).
var spanCounter atomic.Int64

func generateID() string {
	n := spanCounter.Add(1)
	return fmt.Sprintf("%s-%d", time.Now().Format("20060102150405"), n)
}

// ═══════════════════════════════════════════════════════════════════════════
// Auction and STN Prometheus Metrics
// ═══════════════════════════════════════════════════════════════════════════

// ─── Auction Protocol Metrics ───────────────────────────────────────────────

// CFPsSent tracks total call-for-proposal messages published, by ability
// topic.
var CFPsSent = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "fleet",
	Subsystem: "auction",
	Name:      "cfps_sent_total",
	Help:      "Total call-for-proposal messages published, by ability topic.",
}, []string{"topic"})

// BidsReceived tracks total bid submissions an initiator has processed, by
// outcome (accepted/rejected-infeasible/rejected-stale).
var BidsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "fleet",
	Subsystem: "auction",
	Name:      "bids_received_total",
	Help:      "Total bid submissions processed, by outcome.",
}, []string{"outcome"})

// WinnersSelected tracks total winner notifications sent.
var WinnersSelected = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "fleet",
	Subsystem: "auction",
	Name:      "winners_selected_total",
	Help:      "Total winner notifications sent.",
})

// StarvationEvents tracks total task-starvation aborts, by cause
// (empty-bid-window/empty-winner-response-window).
var StarvationEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "fleet",
	Subsystem: "auction",
	Name:      "starvation_events_total",
	Help:      "Total task-starvation aborts, by cause.",
}, []string{"cause"})

// OpenAuctions tracks the number of material flows currently under
// iterated auction.
var OpenAuctions = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "fleet",
	Subsystem: "auction",
	Name:      "open_auctions",
	Help:      "Number of material flows currently under iterated auction.",
})

// ─── Order Management Metrics ───────────────────────────────────────────────

// StnSolveLatency tracks the wall-clock cost of each Floyd-Warshall STN
// solve, by outcome (consistent/infeasible).
var StnSolveLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "fleet",
	Subsystem: "ordermanagement",
	Name:      "stn_solve_latency_ms",
	Help:      "STN consistency-check latency in milliseconds, by outcome.",
	Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 10, 25, 50},
}, []string{"outcome"})

// StnVertexCount tracks the current number of vertices a participant's STN
// is tracking.
var StnVertexCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "fleet",
	Subsystem: "ordermanagement",
	Name:      "stn_vertices",
	Help:      "Current number of STN vertices tracked, by participant connection.",
}, []string{"connection"})

// ─── Central Allocator Metrics ──────────────────────────────────────────────

// AssignmentsReissued tracks assignments that had to be reassigned after a
// participant failed to confirm in time.
var AssignmentsReissued = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "fleet",
	Subsystem: "central",
	Name:      "assignments_reissued_total",
	Help:      "Total assignments reissued after a confirmation timeout.",
})

// ─── Trace Metrics ──────────────────────────────────────────────────────────

// TracesRecorded tracks total spans recorded.
var TracesRecorded = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "fleet",
	Subsystem: "traces",
	Name:      "spans_recorded_total",
	Help:      "Total trace spans recorded.",
})

// TraceErrors tracks error spans.
var TraceErrors = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "fleet",
	Subsystem: "traces",
	Name:      "error_spans_total",
	Help:      "Total trace spans with error status.",
})
