// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the query gateway.
//
// Metrics are exposed via the /metrics endpoint. All metric operations are
// thread-safe via Prometheus's internal locking.
package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "aleutian"
	gatewaySubsystem = "gateway"
)

// Pipeline outcome labels for QueriesTotal.
const (
	OutcomeCompleted = "completed"
	OutcomeUnsafe    = "unsafe"
	OutcomeNoModel   = "no_model"
	OutcomeError     = "error"
)

// GatewayMetrics holds all Prometheus metrics for query pipeline
// operations. Initialize once at startup via InitMetrics().
type GatewayMetrics struct {
	// QueriesTotal counts pipeline runs by outcome.
	// Labels: outcome (completed, unsafe, no_model, error)
	QueriesTotal *prometheus.CounterVec

	// StageDurationSeconds measures per-stage latency.
	// Labels: stage (moderation, retrieval, masking, invocation, validation)
	StageDurationSeconds *prometheus.HistogramVec

	// ActiveQueries tracks pipeline runs currently in flight.
	ActiveQueries prometheus.Gauge

	// MaskedSubstitutionsTotal counts sensitive substrings tokenized.
	MaskedSubstitutionsTotal prometheus.Counter

	// ServiceFailuresTotal counts soft collaborator failures.
	// Labels: service (moderation, retrieval, validation)
	ServiceFailuresTotal *prometheus.CounterVec
}

var (
	defaultMetrics *GatewayMetrics
	metricsOnce    sync.Once
)

// InitMetrics registers the gateway metrics with the default Prometheus
// registry. Safe to call more than once; only the first call registers.
func InitMetrics() *GatewayMetrics {
	metricsOnce.Do(func() {
		defaultMetrics = &GatewayMetrics{
			QueriesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "queries_total",
				Help:      "Query pipeline runs by outcome.",
			}, []string{"outcome"}),

			StageDurationSeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "stage_duration_seconds",
				Help:      "Latency of individual pipeline stages.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"stage"}),

			ActiveQueries: promauto.NewGauge(prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "active_queries",
				Help:      "Pipeline runs currently in flight.",
			}),

			MaskedSubstitutionsTotal: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "masked_substitutions_total",
				Help:      "Sensitive substrings replaced with tokens.",
			}),

			ServiceFailuresTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "service_failures_total",
				Help:      "Soft collaborator failures absorbed by the pipeline.",
			}, []string{"service"}),
		}
	})
	return defaultMetrics
}

// Default returns the initialized metrics, or nil before InitMetrics.
func Default() *GatewayMetrics {
	return defaultMetrics
}
