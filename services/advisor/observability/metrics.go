// Copyright (C) 2025 Candor Labs (dev@candorlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides metrics and instrumentation for the advisor.
//
// # Description
//
// This package implements Prometheus metrics for monitoring advisor
// operations. Metrics include:
//   - Gate evaluation counters (by stage and outcome)
//   - Conversation message counters (by stage and completion)
//   - Analysis run counters (by mode)
//   - Request latency histograms
//
// # Integration
//
// Metrics are exposed via /metrics endpoint. Use with Prometheus + Grafana
// for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "northstar"

// Subsystem for advisor metrics
const advisorSubsystem = "advisor"

// AdvisorMetrics holds all Prometheus metrics for advisor operations.
//
// # Description
//
// Provides counters, histograms, and gauges for monitoring gate scoring,
// conversation flow, and analysis runs. Initialize once at startup via
// InitMetrics().
//
// # Fields
//
//   - GateEvaluationsTotal: Counter of gate evaluations by stage and status
//   - GateReadiness: Gauge of last observed readiness score by stage
//   - ConversationMessagesTotal: Counter of processed messages by stage
//   - StageAdvancesTotal: Counter of stage transitions
//   - AnalysisRunsTotal: Counter of analysis runs by mode
//   - RequestDurationSeconds: Histogram of handler latency
//   - ActiveSessions: Gauge of live websocket sessions
//
// # Thread Safety
//
// All operations are thread-safe.
type AdvisorMetrics struct {
	// GateEvaluationsTotal counts gate evaluations by stage and outcome.
	// Labels: stage (DESIRABILITY, FEASIBILITY, VIABILITY, SCALE),
	// status (Passed, Failed, Pending)
	GateEvaluationsTotal *prometheus.CounterVec

	// GateReadiness holds the most recent readiness score per stage.
	// Labels: stage
	GateReadiness *prometheus.GaugeVec

	// ConversationMessagesTotal counts processed messages by stage and
	// whether the message completed the stage.
	// Labels: stage (1..7 as strings), complete (true, false)
	ConversationMessagesTotal *prometheus.CounterVec

	// StageAdvancesTotal counts conversation stage transitions.
	// Labels: from_stage, to_stage
	StageAdvancesTotal *prometheus.CounterVec

	// AnalysisRunsTotal counts analysis runs by execution mode.
	// Labels: mode (crew, fallback)
	AnalysisRunsTotal *prometheus.CounterVec

	// RequestDurationSeconds measures handler latency.
	// Labels: endpoint, status (success, error)
	RequestDurationSeconds *prometheus.HistogramVec

	// ActiveSessions tracks live websocket conversation connections.
	ActiveSessions prometheus.Gauge
}

// DefaultMetrics is the singleton instance of AdvisorMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *AdvisorMetrics

// InitMetrics initializes the default metrics instance.
//
// # Description
//
// Creates and registers all Prometheus metrics. Should be called once
// at application startup.
//
// # Limitations
//
//   - Panics if called twice (duplicate registration).
//
// # Assumptions
//
//   - Prometheus default registry is available.
func InitMetrics() *AdvisorMetrics {
	DefaultMetrics = &AdvisorMetrics{
		GateEvaluationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: advisorSubsystem,
				Name:      "gate_evaluations_total",
				Help:      "Total gate evaluations by stage and outcome",
			},
			[]string{"stage", "status"},
		),

		GateReadiness: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: advisorSubsystem,
				Name:      "gate_readiness",
				Help:      "Most recent readiness score by stage",
			},
			[]string{"stage"},
		),

		ConversationMessagesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: advisorSubsystem,
				Name:      "conversation_messages_total",
				Help:      "Total conversation messages by stage and completion",
			},
			[]string{"stage", "complete"},
		),

		StageAdvancesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: advisorSubsystem,
				Name:      "stage_advances_total",
				Help:      "Total conversation stage transitions",
			},
			[]string{"from_stage", "to_stage"},
		),

		AnalysisRunsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: advisorSubsystem,
				Name:      "analysis_runs_total",
				Help:      "Total analysis runs by execution mode",
			},
			[]string{"mode"},
		),

		RequestDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: advisorSubsystem,
				Name:      "request_duration_seconds",
				Help:      "Handler latency in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 15.0, 60.0},
			},
			[]string{"endpoint", "status"},
		),

		ActiveSessions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: advisorSubsystem,
				Name:      "active_sessions",
				Help:      "Number of live websocket conversation connections",
			},
		),
	}

	return DefaultMetrics
}

// =============================================================================
// Helper Methods
// =============================================================================

// RecordGateEvaluation records one gate evaluation result.
//
// # Inputs
//
//   - stage: The gate stage evaluated.
//   - status: The resulting status string.
//   - readiness: The readiness score from the same evaluation.
func (m *AdvisorMetrics) RecordGateEvaluation(stage, status string, readiness float64) {
	m.GateEvaluationsTotal.WithLabelValues(stage, status).Inc()
	m.GateReadiness.WithLabelValues(stage).Set(readiness)
}

// RecordConversationMessage records one processed conversation message.
func (m *AdvisorMetrics) RecordConversationMessage(stage int, complete bool) {
	completeLabel := "false"
	if complete {
		completeLabel = "true"
	}
	m.ConversationMessagesTotal.WithLabelValues(stageLabel(stage), completeLabel).Inc()
}

// RecordStageAdvance records a conversation moving from one stage to the next.
func (m *AdvisorMetrics) RecordStageAdvance(from, to int) {
	m.StageAdvancesTotal.WithLabelValues(stageLabel(from), stageLabel(to)).Inc()
}

// RecordAnalysisRun records one analysis run.
//
// # Inputs
//
//   - mode: The execution mode label (crew or fallback).
func (m *AdvisorMetrics) RecordAnalysisRun(mode string) {
	m.AnalysisRunsTotal.WithLabelValues(mode).Inc()
}

// ObserveRequestDuration records handler latency for an endpoint.
func (m *AdvisorMetrics) ObserveRequestDuration(endpoint string, success bool, d time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	m.RequestDurationSeconds.WithLabelValues(endpoint, status).Observe(d.Seconds())
}

// SessionOpened increments the active sessions gauge.
func (m *AdvisorMetrics) SessionOpened() {
	m.ActiveSessions.Inc()
}

// SessionClosed decrements the active sessions gauge.
func (m *AdvisorMetrics) SessionClosed() {
	m.ActiveSessions.Dec()
}

func stageLabel(stage int) string {
	if stage < 1 || stage > 7 {
		return "unknown"
	}
	return strconv.Itoa(stage)
}
