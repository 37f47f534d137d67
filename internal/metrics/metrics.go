// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics holds the Prometheus collectors for jobs, pipeline stages and
// external transcoder processes.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidforge_jobs_submitted_total",
		Help: "Total number of accepted generation jobs",
	})

	jobsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidforge_jobs_finished_total",
		Help: "Total number of jobs that reached a terminal state",
	}, []string{"status"}) // status=done|error

	jobsRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vidforge_jobs_running",
		Help: "Number of jobs currently executing a pipeline run",
	})

	jobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vidforge_job_duration_seconds",
		Help:    "Wall-clock duration of completed pipeline runs",
		Buckets: prometheus.ExponentialBuckets(5, 2, 10), // 5s to ~43m
	})

	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vidforge_stage_duration_seconds",
		Help:    "Duration of individual pipeline stages",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 14), // 50ms to ~7m
	}, []string{"stage"})

	transcoderExits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidforge_transcoder_exit_total",
		Help: "External transcoder process exits by stage and result",
	}, []string{"stage", "result"}) // result=ok|error|timeout|canceled

	fallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidforge_fallback_total",
		Help: "Degraded-but-valid substitutions applied by the pipeline",
	}, []string{"kind"}) // kind=asset_placeholder|narration_silent|subtitle_passthrough

	assetCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidforge_asset_search_cache_total",
		Help: "Stock asset search cache lookups by result",
	}, []string{"result"}) // result=hit|miss

	procTerminate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidforge_proc_terminate_total",
		Help: "Signals sent to transcoder process groups",
	}, []string{"signal", "result"})

	procWait = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidforge_proc_wait_total",
		Help: "Outcomes of waiting on terminated process groups",
	}, []string{"result"})

	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "vidforge_circuit_breaker_state",
		Help: "Circuit breaker state per provider (0=closed, 1=half-open, 2=open)",
	}, []string{"name"})

	breakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidforge_circuit_breaker_trips_total",
		Help: "Circuit breaker transitions to open",
	}, []string{"name", "reason"}) // reason=threshold_exceeded|half_open_failure
)

// IncJobSubmitted counts an accepted job.
func IncJobSubmitted() {
	jobsSubmitted.Inc()
}

// IncJobFinished counts a job reaching a terminal state.
func IncJobFinished(status string) {
	jobsFinished.WithLabelValues(status).Inc()
}

// JobStarted marks a job as running and returns the func that unmarks it.
func JobStarted() func() {
	jobsRunning.Inc()
	start := time.Now()
	return func() {
		jobsRunning.Dec()
		jobDuration.Observe(time.Since(start).Seconds())
	}
}

// ObserveStage records the duration of one pipeline stage.
func ObserveStage(stage string, d time.Duration) {
	stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// IncTranscoderExit counts one external transcoder exit.
func IncTranscoderExit(stage, result string) {
	transcoderExits.WithLabelValues(stage, result).Inc()
}

// IncFallback counts one recovered degradation.
func IncFallback(kind string) {
	fallbacks.WithLabelValues(kind).Inc()
}

// IncAssetCache counts one asset search cache lookup.
func IncAssetCache(hit bool) {
	if hit {
		assetCache.WithLabelValues("hit").Inc()
		return
	}
	assetCache.WithLabelValues("miss").Inc()
}

// IncProcTerminate counts a termination signal sent to a process group.
func IncProcTerminate(signal, result string) {
	procTerminate.WithLabelValues(signal, result).Inc()
}

// IncProcWait counts the outcome of reaping a terminated process group.
func IncProcWait(result string) {
	procWait.WithLabelValues(result).Inc()
}

// SetCircuitBreakerState publishes the numeric breaker state.
func SetCircuitBreakerState(name string, state float64) {
	breakerState.WithLabelValues(name).Set(state)
}

// IncCircuitBreakerTrip counts a breaker opening.
func IncCircuitBreakerTrip(name, reason string) {
	breakerTrips.WithLabelValues(name, reason).Inc()
}
