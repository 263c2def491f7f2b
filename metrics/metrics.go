// Copyright (c) 2026 The ZeroNSD Authors.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package metrics exposes the Prometheus counters and gauges the
// reconciler (C4) and request dispatcher (C6) update, following the
// package layout and registration style of cuemby-warren's pkg/metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ReconcilerTicksTotal counts completed reconciler ticks by outcome:
	// "published" or "error" (spec.md section 4.4's Polling->Publishing /
	// Polling->Sleeping(error) transitions).
	ReconcilerTicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zeronsd_reconciler_ticks_total",
			Help: "Total reconciler ticks by outcome",
		},
		[]string{"outcome"},
	)

	// SnapshotInstallsTotal counts successful zone snapshot installs.
	SnapshotInstallsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "zeronsd_snapshot_installs_total",
			Help: "Total zone snapshot installs",
		},
	)

	// SnapshotRecordsTotal is a gauge of installed-snapshot records by
	// record type. It is registered with the others, but no package in
	// this module sets it, so it reports no values.
	SnapshotRecordsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "zeronsd_snapshot_records",
			Help: "Records in the currently installed snapshot by type",
		},
		[]string{"type"},
	)

	// CentralPublishTotal counts C5's idempotent publish attempts by
	// outcome: "ok" or "error". "ok" does not distinguish a block that
	// was already current from one that was written.
	CentralPublishTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zeronsd_central_publish_total",
			Help: "Total Central DNS-block publish attempts by outcome",
		},
		[]string{"outcome"},
	)

	// QueriesTotal counts inbound DNS queries by qtype and the rcode
	// ultimately returned (spec.md section 4.6).
	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zeronsd_queries_total",
			Help: "Total DNS queries handled by query type and result code",
		},
		[]string{"qtype", "rcode"},
	)

	// ForwardedTotal counts queries delegated to the upstream forwarder
	// (C7) by outcome: "answered", "timeout", "error".
	ForwardedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zeronsd_forwarded_total",
			Help: "Total queries forwarded upstream by outcome",
		},
		[]string{"outcome"},
	)

	// QueryDuration measures end-to-end query handling latency.
	QueryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "zeronsd_query_duration_seconds",
			Help:    "DNS query handling duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(
		ReconcilerTicksTotal,
		SnapshotInstallsTotal,
		SnapshotRecordsTotal,
		CentralPublishTotal,
		QueriesTotal,
		ForwardedTotal,
		QueryDuration,
	)
}

// Handler returns the Prometheus scrape endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
