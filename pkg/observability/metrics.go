package observability

import (
	"context"
	"strconv"

	"github.com/aretw0/callgate/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the call gate collectors.
type Metrics struct {
	NodeStarts    *prometheus.CounterVec
	StageTriggers *prometheus.CounterVec
	Runs          *prometheus.CounterVec
	RunDuration   *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		NodeStarts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callgate_node_starts_total",
				Help: "Dialogue nodes entered.",
			},
			[]string{"graph_id", "node_id", "kind"},
		),
		StageTriggers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callgate_stage_triggers_total",
				Help: "Stages fired, split by whether tooling forced them.",
			},
			[]string{"stage", "forced"},
		),
		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callgate_runs_total",
				Help: "Dialogue runs ended, by outcome.",
			},
			[]string{"stage", "outcome"},
		),
		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "callgate_run_duration_seconds",
				Help:    "Timeline length of dialogue runs.",
				Buckets: []float64{5, 10, 20, 30, 45, 60, 90, 120, 300},
			},
			[]string{"stage", "outcome"},
		),
	}

	for _, c := range []prometheus.Collector{m.NodeStarts, m.StageTriggers, m.Runs, m.RunDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Hooks records every lifecycle event.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeStarted: func(_ context.Context, e *domain.NodeEvent) {
			m.NodeStarts.WithLabelValues(e.GraphID, e.NodeID, string(e.Kind)).Inc()
		},
		OnStageTriggered: func(_ context.Context, e *domain.StageEvent) {
			m.StageTriggers.WithLabelValues(strconv.Itoa(e.Stage), strconv.FormatBool(e.Forced)).Inc()
		},
		OnRunEnded: func(_ context.Context, e *domain.RunEvent) {
			stage, outcome := strconv.Itoa(e.Stage), string(e.Outcome)
			m.Runs.WithLabelValues(stage, outcome).Inc()
			m.RunDuration.WithLabelValues(stage, outcome).Observe(e.Duration.Seconds())
		},
	}
}
