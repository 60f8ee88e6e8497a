// Package metrics holds the prometheus collectors shared by the pipeline,
// the name resolver and the HTTP surface.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "taxonomix"

// Lookup results.
const (
	ResultHit  = "hit"
	ResultMiss = "miss"
)

// External request outcomes.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Metrics groups every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	CacheLookups     *prometheus.CounterVec
	ExternalRequests *prometheus.CounterVec
	Jobs             *prometheus.CounterVec
	JobDuration      prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "name",
			Name:      "cache_lookups_total",
			Help:      "Name cache lookups by result.",
		}, []string{"result"}),
		ExternalRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "name",
			Name:      "external_requests_total",
			Help:      "Calls to the external name match service by outcome.",
		}, []string{"outcome"}),
		Jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Finished jobs by terminal status.",
		}, []string{"status"}),
		JobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Wall time of a pipeline run.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}
	if reg != nil {
		reg.MustRegister(m.CacheLookups, m.ExternalRequests, m.Jobs, m.JobDuration)
	}
	return m
}

// CacheLookup counts a cache hit or miss.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheLookups.WithLabelValues(ResultHit).Inc()
		return
	}
	m.CacheLookups.WithLabelValues(ResultMiss).Inc()
}

// ExternalRequest counts one external call.
func (m *Metrics) ExternalRequest(outcome string) {
	if m == nil {
		return
	}
	m.ExternalRequests.WithLabelValues(outcome).Inc()
}

// JobFinished records a terminal job.
func (m *Metrics) JobFinished(status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Jobs.WithLabelValues(status).Inc()
	m.JobDuration.Observe(elapsed.Seconds())
}
