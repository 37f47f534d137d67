// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/vidforge/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestConfigValidate(t *testing.T) {
	out := t.TempDir()
	good := writeConfig(t, "output_dir: "+out+"\nmax_duration_sec: 120\n")
	bad := writeConfig(t, "output_dir: "+out+"\nmax_duration_sec: 1\n")

	var stdout, stderr bytes.Buffer
	assert.Equal(t, 0, runConfigCLI([]string{"validate", "-f", good}, &stdout, &stderr), stderr.String())
	assert.Contains(t, stdout.String(), "is valid")

	stderr.Reset()
	assert.Equal(t, 1, runConfigCLI([]string{"validate", "--file", bad}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "max_duration_sec")

	assert.Equal(t, 2, runConfigCLI([]string{"frobnicate"}, &stdout, &stderr))
}

func TestConfigDump_RedactsSecrets(t *testing.T) {
	path := writeConfig(t, "output_dir: "+t.TempDir()+"\nassets:\n  pexels_api_key: very-secret\n")

	var stdout, stderr bytes.Buffer
	require.Equal(t, 0, runConfigCLI([]string{"dump", "-f", path}, &stdout, &stderr), stderr.String())
	assert.NotContains(t, stdout.String(), "very-secret")
	assert.Contains(t, stdout.String(), redacted)

	stdout.Reset()
	require.Equal(t, 0, runConfigCLI([]string{"dump", "-f", path, "--format=json"}, &stdout, &stderr))
	assert.NotContains(t, stdout.String(), "very-secret")

	assert.Equal(t, 2, runConfigCLI([]string{"dump", "-f", path, "--format=toml"}, &stdout, &stderr))
}

func TestHealthcheckCLI(t *testing.T) {
	var ready atomic.Int32
	ready.Store(http.StatusOK)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/readyz" {
			w.WriteHeader(int(ready.Load()))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	var stdout, stderr bytes.Buffer
	assert.Equal(t, 0, runHealthcheckCLI([]string{"-addr", ts.URL}, &stdout, &stderr))

	ready.Store(http.StatusServiceUnavailable)
	assert.Equal(t, 1, runHealthcheckCLI([]string{"-addr", ts.URL}, &stdout, &stderr))
	assert.Equal(t, 0, runHealthcheckCLI([]string{"-addr", ts.URL, "-mode", "live"}, &stdout, &stderr))
}

func TestNewDaemon_ServesAPI(t *testing.T) {
	cfg := config.Defaults()
	cfg.OutputDir = t.TempDir()
	cfg.Jobs.ArchivePath = filepath.Join(cfg.OutputDir, "jobs.db")
	cfg.Version = "test"
	holder := config.NewHolder(cfg, config.NewLoader("", "test"))

	d, err := newDaemon(context.Background(), holder)
	require.NoError(t, err)
	defer func() { require.NoError(t, d.close(context.Background())) }()

	rec := httptest.NewRecorder()
	d.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = httptest.NewRecorder()
	d.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
