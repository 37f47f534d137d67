// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics_test

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ManuGH/vidforge/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gather(t *testing.T, name string) *dto.MetricFamily {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func counterWithLabel(mf *dto.MetricFamily, label, value string) float64 {
	if mf == nil {
		return 0
	}
	for _, m := range mf.GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == label && lp.GetValue() == value {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestPromhttpExposure(t *testing.T) {
	metrics.IncJobSubmitted()

	srv := httptest.NewServer(promhttp.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "vidforge_jobs_submitted_total"))
}

func TestIncJobFinished(t *testing.T) {
	before := counterWithLabel(gather(t, "vidforge_jobs_finished_total"), "status", "done")
	metrics.IncJobFinished("done")
	metrics.IncJobFinished("done")
	after := counterWithLabel(gather(t, "vidforge_jobs_finished_total"), "status", "done")
	assert.Equal(t, before+2, after)
}

func TestIncFallback(t *testing.T) {
	before := counterWithLabel(gather(t, "vidforge_fallback_total"), "kind", "asset_placeholder")
	metrics.IncFallback("asset_placeholder")
	after := counterWithLabel(gather(t, "vidforge_fallback_total"), "kind", "asset_placeholder")
	assert.Equal(t, before+1, after)
}

func TestJobStarted_GaugeReturnsToZero(t *testing.T) {
	done := metrics.JobStarted()
	mf := gather(t, "vidforge_jobs_running")
	require.NotNil(t, mf)
	assert.GreaterOrEqual(t, mf.GetMetric()[0].GetGauge().GetValue(), 1.0)
	done()

	metrics.ObserveStage("concat", 20*time.Millisecond)
	require.NotNil(t, gather(t, "vidforge_stage_duration_seconds"))
}
