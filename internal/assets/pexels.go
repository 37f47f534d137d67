// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package assets resolves stock media for planned segments.
package assets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/ManuGH/vidforge/internal/cache"
	"github.com/ManuGH/vidforge/internal/domain"
	"github.com/ManuGH/vidforge/internal/metrics"
	"github.com/ManuGH/vidforge/internal/resilience"
)

const (
	DefaultBaseURL = "https://api.pexels.com"

	defaultTimeout   = 30 * time.Second
	defaultRateLimit = 3
	defaultBurst     = 3
	defaultCacheTTL  = time.Hour

	maxQueryLen      = 100
	maxDownloadBytes = 512 << 20
)

// Fetcher resolves the media for one segment into dir.
type Fetcher interface {
	Fetch(ctx context.Context, seg domain.Segment, dir string) (domain.MediaAsset, error)
}

// Options configures a PexelsClient. Zero values pick defaults.
type Options struct {
	APIKey    string
	BaseURL   string
	Timeout   time.Duration
	RateLimit rate.Limit
	Burst     int
	CacheTTL  time.Duration
	Cache     cache.Cache
	Transport http.RoundTripper
	// Breaker guards the search API. Nil installs a default breaker.
	Breaker *resilience.Breaker
}

// PexelsClient searches Pexels for a video first and a photo second.
type PexelsClient struct {
	apiKey   string
	baseURL  string
	http     *http.Client
	limiter  *rate.Limiter
	breaker  *resilience.Breaker
	cache    cache.Cache
	cacheTTL time.Duration
}

func NewPexelsClient(opts Options) *PexelsClient {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = defaultRateLimit
	}
	if opts.Burst <= 0 {
		opts.Burst = defaultBurst
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = defaultCacheTTL
	}
	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	breaker := opts.Breaker
	if breaker == nil {
		breaker = resilience.New("pexels", 0, 0)
	}
	return &PexelsClient{
		apiKey:  strings.TrimSpace(opts.APIKey),
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http: &http.Client{
			Timeout:   opts.Timeout,
			Transport: otelhttp.NewTransport(transport),
		},
		limiter:  rate.NewLimiter(opts.RateLimit, opts.Burst),
		breaker:  breaker,
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
	}
}

var _ Fetcher = (*PexelsClient)(nil)

// Fetch downloads the best matching video, or failing that a photo, as
// seg<i>.mp4 or seg<i>.jpg. Every failure is an *AssetError.
func (c *PexelsClient) Fetch(ctx context.Context, seg domain.Segment, dir string) (domain.MediaAsset, error) {
	fail := func(kind ErrorKind, err error) (domain.MediaAsset, error) {
		return domain.MediaAsset{}, &AssetError{Index: seg.Index, Kind: kind, Err: err}
	}
	if c.apiKey == "" {
		return fail(KindConfig, errors.New("pexels api key not configured"))
	}
	q := cleanQuery(seg.Title + " " + seg.Text)

	var searchErr error
	link, err := c.search(ctx, "videos", q)
	if err != nil {
		searchErr = err
	} else if link != "" {
		path := filepath.Join(dir, fmt.Sprintf("seg%d.mp4", seg.Index))
		if err := c.download(ctx, link, path); err != nil {
			return fail(KindDownload, err)
		}
		return domain.MediaAsset{Index: seg.Index, Kind: domain.MediaVideo, Path: path}, nil
	}

	link, err = c.search(ctx, "photos", q)
	if err != nil {
		return fail(KindHTTP, errors.Join(searchErr, err))
	}
	if link == "" {
		if searchErr != nil {
			return fail(KindHTTP, searchErr)
		}
		return fail(KindNotFound, fmt.Errorf("no results for %q", q))
	}
	path := filepath.Join(dir, fmt.Sprintf("seg%d.jpg", seg.Index))
	if err := c.download(ctx, link, path); err != nil {
		return fail(KindDownload, err)
	}
	return domain.MediaAsset{Index: seg.Index, Kind: domain.MediaImage, Path: path}, nil
}

type searchHit struct {
	URL string `json:"url"`
}

type videoSearch struct {
	Videos []struct {
		VideoFiles []videoFile `json:"video_files"`
	} `json:"videos"`
}

type videoFile struct {
	FileType string `json:"file_type"`
	Height   int    `json:"height"`
	Link     string `json:"link"`
}

type photoSearch struct {
	Photos []struct {
		Src struct {
			Large2x string `json:"large2x"`
		} `json:"src"`
	} `json:"photos"`
}

// search returns the media URL of the first hit, or "" when there is none.
// Both outcomes are cached.
func (c *PexelsClient) search(ctx context.Context, kind, q string) (string, error) {
	key := "pexels:" + kind + ":" + q
	if c.cache != nil {
		if raw, ok := c.cache.Get(ctx, key); ok {
			var hit searchHit
			if json.Unmarshal(raw, &hit) == nil {
				metrics.IncAssetCache(true)
				return hit.URL, nil
			}
		}
		metrics.IncAssetCache(false)
	}

	endpoint := "/videos/search"
	if kind == "photos" {
		endpoint = "/v1/search"
	}
	params := url.Values{"query": {q}, "per_page": {"1"}}

	body, err := c.get(ctx, c.baseURL+endpoint+"?"+params.Encode())
	if err != nil {
		return "", err
	}
	defer func() { _ = body.Close() }()

	var link string
	if kind == "photos" {
		var res photoSearch
		if err := json.NewDecoder(body).Decode(&res); err != nil {
			return "", fmt.Errorf("decode photo search: %w", err)
		}
		if len(res.Photos) > 0 {
			link = res.Photos[0].Src.Large2x
		}
	} else {
		var res videoSearch
		if err := json.NewDecoder(body).Decode(&res); err != nil {
			return "", fmt.Errorf("decode video search: %w", err)
		}
		if len(res.Videos) > 0 {
			link = bestVideoFile(res.Videos[0].VideoFiles)
		}
	}

	if c.cache != nil {
		if raw, err := json.Marshal(searchHit{URL: link}); err == nil {
			c.cache.Set(ctx, key, raw, c.cacheTTL)
		}
	}
	return link, nil
}

// bestVideoFile prefers the tallest mp4 rendition and falls back to the first
// file of any type.
func bestVideoFile(files []videoFile) string {
	mp4 := make([]videoFile, 0, len(files))
	for _, f := range files {
		if f.FileType == "video/mp4" && f.Link != "" {
			mp4 = append(mp4, f)
		}
	}
	if len(mp4) > 0 {
		sort.SliceStable(mp4, func(i, j int) bool { return mp4[i].Height > mp4[j].Height })
		return mp4[0].Link
	}
	if len(files) > 0 {
		return files[0].Link
	}
	return ""
}

// get calls the search API under the circuit breaker.
func (c *PexelsClient) get(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	if err := c.breaker.Allow(); err != nil {
		return nil, fmt.Errorf("pexels: %w", err)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		c.breaker.Release()
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		c.breaker.Release()
		return nil, err
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			c.breaker.Release()
		} else {
			c.breaker.Failure()
		}
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		if providerFault(resp.StatusCode) {
			c.breaker.Failure()
		} else {
			c.breaker.Release()
		}
		return nil, fmt.Errorf("pexels returned status %d", resp.StatusCode)
	}
	c.breaker.Success()
	return resp.Body, nil
}

// providerFault reports statuses that indicate the provider, not the query,
// is the problem.
func providerFault(code int) bool {
	return code >= 500 || code == http.StatusTooManyRequests ||
		code == http.StatusUnauthorized || code == http.StatusForbidden
}

func (c *PexelsClient) download(ctx context.Context, link, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download returned status %d", resp.StatusCode)
	}
	return writeLimited(path, resp.Body, maxDownloadBytes)
}

func writeLimited(path string, r io.Reader, limit int64) (err error) {
	// #nosec G304 -- path is inside the job workspace
	f, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	n, err := io.Copy(f, io.LimitReader(r, limit+1))
	if err != nil {
		return err
	}
	if n > limit {
		return fmt.Errorf("download exceeds %d bytes", limit)
	}
	if n == 0 {
		return errors.New("empty download")
	}
	return nil
}

func cleanQuery(s string) string {
	s = strings.Join(strings.Fields(strings.ReplaceAll(s, ":", " ")), " ")
	if r := []rune(s); len(r) > maxQueryLen {
		s = string(r[:maxQueryLen])
	}
	return s
}
