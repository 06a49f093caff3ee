// Custodia - File Integrity Monitoring and Hash History Forensics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

// Package metrics provides Prometheus instrumentation for the ingest
// service: HTTP traffic, buffer occupancy, flush worker outcomes, and the
// live feed.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "custodia_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "custodia_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	HTTPActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "custodia_http_active_requests",
			Help: "Current number of in-flight HTTP requests",
		},
	)

	// Ingest metrics
	IngestRecordsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "custodia_ingest_records_total",
			Help: "Total number of observation records admitted into the buffer",
		},
	)

	IngestRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "custodia_ingest_rejected_total",
			Help: "Total number of rejected ingest batches",
		},
		[]string{"reason"}, // "auth", "validation", "overload"
	)

	BufferPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "custodia_buffer_pending",
			Help: "Records currently queued in the ingest buffer",
		},
	)

	// Flush worker metrics
	FlushTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "custodia_flush_total",
			Help: "Total number of successful flush cycles",
		},
	)

	FlushFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "custodia_flush_failures_total",
			Help: "Total number of failed flush cycles (durable-write failures)",
		},
	)

	FlushRecordsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "custodia_flush_records_total",
			Help: "Total number of records durably appended",
		},
	)

	FlushDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "custodia_flush_duration_seconds",
			Help:    "Duration of one durable flush transaction in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Live feed metrics
	LiveFeedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "custodia_live_feed_clients",
			Help: "Currently connected live feed websocket clients",
		},
	)
)

// RecordHTTPRequest records one completed HTTP request.
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the in-flight request gauge.
func TrackActiveRequest(start bool) {
	if start {
		HTTPActiveRequests.Inc()
	} else {
		HTTPActiveRequests.Dec()
	}
}

// RecordAdmission records an admitted batch of n records.
func RecordAdmission(n int) {
	IngestRecordsTotal.Add(float64(n))
}

// RecordRejection records a rejected batch by reason.
func RecordRejection(reason string) {
	IngestRejectedTotal.WithLabelValues(reason).Inc()
}

// RecordFlush records the outcome of one flush cycle.
func RecordFlush(records int, duration time.Duration, err error) {
	if err != nil {
		FlushFailuresTotal.Inc()
		return
	}
	FlushTotal.Inc()
	FlushRecordsTotal.Add(float64(records))
	FlushDuration.Observe(duration.Seconds())
}
