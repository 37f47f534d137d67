// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/vidforge/internal/cache"
	"github.com/ManuGH/vidforge/internal/domain"
	"github.com/ManuGH/vidforge/internal/progress"
	"github.com/ManuGH/vidforge/internal/resilience"
)

type stockServer struct {
	*httptest.Server
	videos      atomic.Int32
	photos      atomic.Int32
	noVideo     atomic.Bool
	noPhoto     atomic.Bool
	searchError atomic.Bool
}

func newStockServer(t *testing.T) *stockServer {
	t.Helper()
	s := &stockServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/videos/search", func(w http.ResponseWriter, r *http.Request) {
		s.videos.Add(1)
		if r.Header.Get("Authorization") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if s.searchError.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if s.noVideo.Load() {
			_, _ = w.Write([]byte(`{"videos":[]}`))
			return
		}
		_, _ = fmt.Fprintf(w, `{"videos":[{"video_files":[
			{"file_type":"video/mp4","height":720,"link":"%[1]s/files/720.mp4"},
			{"file_type":"video/webm","height":2160,"link":"%[1]s/files/2160.webm"},
			{"file_type":"video/mp4","height":1080,"link":"%[1]s/files/1080.mp4"}]}]}`, s.URL)
	})
	mux.HandleFunc("/v1/search", func(w http.ResponseWriter, r *http.Request) {
		s.photos.Add(1)
		if s.searchError.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		if s.noPhoto.Load() {
			_, _ = w.Write([]byte(`{"photos":[]}`))
			return
		}
		_, _ = fmt.Fprintf(w, `{"photos":[{"src":{"large2x":"%s/files/photo.jpg"}}]}`, s.URL)
	})
	mux.HandleFunc("/files/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("payload:" + filepath.Base(r.URL.Path)))
	})
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *stockServer) client(c cache.Cache) *PexelsClient {
	return NewPexelsClient(Options{APIKey: "test-key", BaseURL: s.URL, RateLimit: 1000, Burst: 100, Cache: c})
}

var seg = domain.Segment{Index: 2, Start: 15, End: 30, Duration: 15, Title: "Background", Text: "Background: Aspect 1 of bees."}

func TestFetch_PrefersTallestMP4Video(t *testing.T) {
	srv := newStockServer(t)
	dir := t.TempDir()

	asset, err := srv.client(nil).Fetch(context.Background(), seg, dir)
	require.NoError(t, err)
	assert.Equal(t, domain.MediaVideo, asset.Kind)
	assert.Equal(t, filepath.Join(dir, "seg2.mp4"), asset.Path)

	data, err := os.ReadFile(asset.Path)
	require.NoError(t, err)
	assert.Equal(t, "payload:1080.mp4", string(data))
	assert.Equal(t, int32(0), srv.photos.Load())
}

func TestFetch_FallsBackToPhoto(t *testing.T) {
	srv := newStockServer(t)
	srv.noVideo.Store(true)

	asset, err := srv.client(nil).Fetch(context.Background(), seg, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, domain.MediaImage, asset.Kind)
	assert.Equal(t, "seg2.jpg", filepath.Base(asset.Path))
}

func TestFetch_ErrorKinds(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		srv := newStockServer(t)
		srv.noVideo.Store(true)
		srv.noPhoto.Store(true)
		_, err := srv.client(nil).Fetch(context.Background(), seg, t.TempDir())
		var assetErr *AssetError
		require.ErrorAs(t, err, &assetErr)
		assert.Equal(t, KindNotFound, assetErr.Kind)
		assert.Equal(t, 2, assetErr.Index)
	})
	t.Run("http", func(t *testing.T) {
		srv := newStockServer(t)
		srv.searchError.Store(true)
		_, err := srv.client(nil).Fetch(context.Background(), seg, t.TempDir())
		var assetErr *AssetError
		require.ErrorAs(t, err, &assetErr)
		assert.Equal(t, KindHTTP, assetErr.Kind)
	})
	t.Run("config", func(t *testing.T) {
		_, err := NewPexelsClient(Options{}).Fetch(context.Background(), seg, t.TempDir())
		var assetErr *AssetError
		require.ErrorAs(t, err, &assetErr)
		assert.Equal(t, KindConfig, assetErr.Kind)
	})
}

func TestFetch_SearchesAreCached(t *testing.T) {
	srv := newStockServer(t)
	c := cache.NewMemoryCache(0)
	client := srv.client(c)

	for range 3 {
		_, err := client.Fetch(context.Background(), seg, t.TempDir())
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), srv.videos.Load())
	assert.Equal(t, int64(2), c.Stats().Hits)
}

func TestFetch_BreakerStopsCallingFailingProvider(t *testing.T) {
	srv := newStockServer(t)
	srv.searchError.Store(true)
	client := NewPexelsClient(Options{
		APIKey:    "test-key",
		BaseURL:   srv.URL,
		RateLimit: 1000,
		Burst:     100,
		Breaker:   resilience.New("pexels-test", 2, time.Hour),
	})

	// One Fetch is a video search plus a photo search: two failures.
	_, err := client.Fetch(context.Background(), seg, t.TempDir())
	require.Error(t, err)
	calls := srv.videos.Load() + srv.photos.Load()
	assert.Equal(t, int32(2), calls)

	_, err = client.Fetch(context.Background(), seg, t.TempDir())
	var assetErr *AssetError
	require.ErrorAs(t, err, &assetErr)
	assert.Equal(t, KindHTTP, assetErr.Kind)
	assert.ErrorIs(t, err, resilience.ErrOpen)
	assert.Equal(t, calls, srv.videos.Load()+srv.photos.Load(), "open breaker short-circuits")
}

func TestCleanQuery(t *testing.T) {
	assert.Equal(t, "Intro bees and honey", cleanQuery("Intro: bees\n and   honey"))
	long := cleanQuery(string(bytes.Repeat([]byte("é"), 300)))
	assert.Len(t, []rune(long), maxQueryLen)
}

type scriptedFetcher struct {
	errs map[int]error
}

func (f scriptedFetcher) Fetch(_ context.Context, s domain.Segment, dir string) (domain.MediaAsset, error) {
	if err := f.errs[s.Index]; err != nil {
		return domain.MediaAsset{}, err
	}
	path := filepath.Join(dir, fmt.Sprintf("seg%d.mp4", s.Index))
	return domain.MediaAsset{Index: s.Index, Kind: domain.MediaVideo, Path: path}, os.WriteFile(path, []byte("v"), 0o600)
}

func segments(n int) []domain.Segment {
	out := make([]domain.Segment, n)
	for i := range out {
		out[i] = domain.Segment{Index: i + 1, Start: float64(i * 10), End: float64(i*10 + 10), Duration: 10}
	}
	return out
}

func TestFetchAll_PlaceholderFallback(t *testing.T) {
	dir := t.TempDir()
	f := scriptedFetcher{errs: map[int]error{
		2: &AssetError{Index: 2, Kind: KindNotFound},
		3: &AssetError{Index: 3, Kind: KindDownload, Err: errors.New("reset")},
	}}
	rec := &progress.Recorder{}
	agg := progress.NewAggregator(rec)

	got, err := FetchAll(context.Background(), f, segments(4), dir, domain.Resolution{W: 320, H: 180}, agg.Phase(progress.PhaseAssets))
	require.NoError(t, err)
	require.Len(t, got, 4)

	assert.False(t, got[0].Placeholder)
	assert.True(t, got[1].Placeholder)
	assert.Equal(t, domain.MediaImage, got[1].Kind)
	assert.True(t, got[2].Placeholder)

	img, err := os.Open(got[1].Path)
	require.NoError(t, err)
	defer func() { _ = img.Close() }()
	cfg, err := jpeg.DecodeConfig(img)
	require.NoError(t, err)
	assert.Equal(t, 320, cfg.Width)
	assert.Equal(t, 180, cfg.Height)

	pcts := rec.Percents()
	assert.Equal(t, 35, pcts[len(pcts)-1])
}

func TestFetchAll_AbortsOnOtherErrors(t *testing.T) {
	f := scriptedFetcher{errs: map[int]error{1: context.Canceled}}
	_, err := FetchAll(context.Background(), f, segments(2), t.TempDir(), domain.Resolution{W: 64, H: 64}, progress.NewAggregator(nil).Phase(progress.PhaseAssets))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPlaceholderJPEG_Shared(t *testing.T) {
	a, err := PlaceholderJPEG(200, 100)
	require.NoError(t, err)
	b, err := PlaceholderJPEG(200, 100)
	require.NoError(t, err)
	assert.Same(t, &a[0], &b[0], "encoded frames are reused")

	_, err = PlaceholderJPEG(0, 100)
	assert.Error(t, err)
}
