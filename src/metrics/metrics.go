// Package metrics holds the Prometheus collectors for turns, tool calls and
// scheduled action runs. A nil *Metrics is valid and records nothing.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "dextra"

// Metrics exposes Prometheus collectors that report copilot activity.
type Metrics struct {
	turns               *prometheus.CounterVec
	steps               prometheus.Histogram
	toolCalls           *prometheus.CounterVec
	repairs             *prometheus.CounterVec
	orchestratorInvalid prometheus.Counter
	actionRuns          *prometheus.CounterVec
	actionPauses        *prometheus.CounterVec
	tickDuration        prometheus.Histogram
}

// MustNewMetrics constructs a Metrics instance using the provided registerer.
// Tests should pass a fresh prometheus.NewRegistry().
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "turns_total",
			Help:      "Conversation turns by outcome.",
		}, []string{"mode", "status"}),
		steps: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "turn_steps",
			Help:      "Model steps taken per turn.",
			Buckets:   []float64{1, 2, 3, 5, 8, 12, 15},
		}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "tool_calls_total",
			Help:      "Tool calls by tool and status.",
		}, []string{"tool", "status"}),
		repairs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "argument_repairs_total",
			Help:      "Tool argument repair attempts by method and result.",
		}, []string{"method", "result"}),
		orchestratorInvalid: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orchestrator",
			Name:      "invalid_selections_total",
			Help:      "Selections that named a tool outside the catalog.",
		}),
		actionRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runner",
			Name:      "action_runs_total",
			Help:      "Scheduled action runs by outcome.",
		}, []string{"outcome"}),
		actionPauses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runner",
			Name:      "action_pauses_total",
			Help:      "Actions paused by the failure policy.",
		}, []string{"reason"}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "runner",
			Name:      "tick_duration_seconds",
			Help:      "Wall time of a runner tick.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	m.turns = register(reg, m.turns)
	m.steps = register(reg, m.steps)
	m.toolCalls = register(reg, m.toolCalls)
	m.repairs = register(reg, m.repairs)
	m.orchestratorInvalid = register(reg, m.orchestratorInvalid)
	m.actionRuns = register(reg, m.actionRuns)
	m.actionPauses = register(reg, m.actionPauses)
	m.tickDuration = register(reg, m.tickDuration)
	return m
}

// register adds c to reg, reusing an identical collector that is already
// registered.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// Turn records a finished turn. mode is "chat" or "scheduled".
func (m *Metrics) Turn(mode, status string, steps int) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(mode, status).Inc()
	m.steps.Observe(float64(steps))
}

// ToolCall records one tool call outcome.
func (m *Metrics) ToolCall(tool, status string) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(tool, status).Inc()
}

// Repair records an argument repair attempt.
func (m *Metrics) Repair(method string, ok bool) {
	if m == nil {
		return
	}
	result := "failed"
	if ok {
		result = "fixed"
	}
	m.repairs.WithLabelValues(method, result).Inc()
}

// InvalidSelection records an orchestrator selection containing INVALID_TOOL.
func (m *Metrics) InvalidSelection() {
	if m == nil {
		return
	}
	m.orchestratorInvalid.Inc()
}

// ActionRun records a scheduled run outcome.
func (m *Metrics) ActionRun(outcome string) {
	if m == nil {
		return
	}
	m.actionRuns.WithLabelValues(outcome).Inc()
}

// ActionPaused records a pause by the failure policy.
func (m *Metrics) ActionPaused(reason string) {
	if m == nil {
		return
	}
	m.actionPauses.WithLabelValues(reason).Inc()
}

// ObserveTick records a runner tick's duration.
func (m *Metrics) ObserveTick(d time.Duration) {
	if m == nil {
		return
	}
	m.tickDuration.Observe(d.Seconds())
}
