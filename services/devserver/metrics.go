// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package devserver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "askdesk"
	metricsSubsystem = "devserver"
)

// Metrics holds the dev server's Prometheus collectors.
//
// # Description
//
// Every Server registers into its own registry so several servers (one per
// test) can coexist in a process.
type Metrics struct {
	// RequestsTotal counts HTTP requests by route and status code.
	RequestsTotal *prometheus.CounterVec

	// LoginsTotal counts credential checks by result (ok, rejected).
	LoginsTotal *prometheus.CounterVec

	// StreamsTotal counts chat streams by outcome (done, cancelled, empty).
	StreamsTotal *prometheus.CounterVec

	// TokensTotal counts answer tokens written.
	TokensTotal prometheus.Counter

	// SourcesTotal counts cited sources by enrichment result.
	SourcesTotal *prometheus.CounterVec

	// VotesTotal counts accepted feedback votes by value (up, down).
	VotesTotal *prometheus.CounterVec

	// ActiveStreams is the number of open chat streams.
	ActiveStreams prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "requests_total",
				Help:      "Total HTTP requests by route and status code",
			},
			[]string{"route", "status"},
		),
		LoginsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "logins_total",
				Help:      "Credential checks by result",
			},
			[]string{"result"},
		),
		StreamsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "chat_streams_total",
				Help:      "Chat streams by outcome",
			},
			[]string{"outcome"},
		),
		TokensTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "tokens_total",
				Help:      "Answer tokens streamed",
			},
		),
		SourcesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "sources_total",
				Help:      "Cited sources by enrichment result",
			},
			[]string{"enrichment"},
		),
		VotesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "votes_total",
				Help:      "Accepted feedback votes by value",
			},
			[]string{"value"},
		),
		ActiveStreams: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "active_streams",
				Help:      "Number of open chat streams",
			},
		),
	}
}
