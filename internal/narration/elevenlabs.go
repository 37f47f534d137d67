// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package narration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/ManuGH/vidforge/internal/domain"
	"github.com/ManuGH/vidforge/internal/resilience"
)

const (
	DefaultElevenLabsURL = "https://api.elevenlabs.io"
	DefaultVoiceID       = "21m00Tcm4TlvDq8ikWAM"
	defaultModelID       = "eleven_multilingual_v2"

	maxAudioBytes = 64 << 20
)

// ElevenLabsOptions configures the ElevenLabs client.
type ElevenLabsOptions struct {
	APIKey    string
	VoiceID   string
	BaseURL   string
	ModelID   string
	Timeout   time.Duration
	RateLimit rate.Limit
	Transport http.RoundTripper
	// Breaker is shared across clients so provider outages are remembered
	// between jobs. Nil installs a private breaker.
	Breaker *resilience.Breaker
}

// ElevenLabs synthesizes speech through the ElevenLabs text-to-speech API.
type ElevenLabs struct {
	apiKey  string
	voiceID string
	baseURL string
	modelID string
	http    *http.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
}

func NewElevenLabs(opts ElevenLabsOptions) *ElevenLabs {
	if opts.VoiceID == "" {
		opts.VoiceID = DefaultVoiceID
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultElevenLabsURL
	}
	if opts.ModelID == "" {
		opts.ModelID = defaultModelID
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 2
	}
	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	if opts.Breaker == nil {
		opts.Breaker = resilience.New("elevenlabs", 0, 0)
	}
	return &ElevenLabs{
		apiKey:  strings.TrimSpace(opts.APIKey),
		voiceID: opts.VoiceID,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		modelID: opts.ModelID,
		http:    &http.Client{Timeout: opts.Timeout, Transport: otelhttp.NewTransport(transport)},
		limiter: rate.NewLimiter(opts.RateLimit, 1),
		breaker: opts.Breaker,
	}
}

var _ Synthesizer = (*ElevenLabs)(nil)

type ttsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// Synthesize writes seg<i>.mp3 into dir. Every failure is a *NarrationError.
func (e *ElevenLabs) Synthesize(ctx context.Context, seg domain.Segment, dir string) (domain.NarrationItem, error) {
	fail := func(kind ErrorKind, err error) (domain.NarrationItem, error) {
		return domain.NarrationItem{}, &NarrationError{Index: seg.Index, Kind: kind, Err: err}
	}
	if e.apiKey == "" {
		return fail(KindConfig, errors.New("elevenlabs api key not configured"))
	}

	payload, err := json.Marshal(ttsRequest{
		Text:          seg.Text,
		ModelID:       e.modelID,
		VoiceSettings: voiceSettings{Stability: 0.4, SimilarityBoost: 0.8},
	})
	if err != nil {
		return fail(KindHTTP, err)
	}
	if err := e.limiter.Wait(ctx); err != nil {
		return domain.NarrationItem{}, err
	}

	audio, err := e.post(ctx, payload)
	if err != nil {
		if ctx.Err() != nil {
			return domain.NarrationItem{}, ctx.Err()
		}
		return fail(KindHTTP, err)
	}

	path := filepath.Join(dir, fmt.Sprintf("seg%d.mp3", seg.Index))
	if err := os.WriteFile(path, audio, 0o600); err != nil {
		return fail(KindWrite, err)
	}
	return domain.NarrationItem{Index: seg.Index, AudioPath: path}, nil
}

// post sends one text-to-speech request under the circuit breaker and
// returns the audio bytes.
func (e *ElevenLabs) post(ctx context.Context, payload []byte) ([]byte, error) {
	if err := e.breaker.Allow(); err != nil {
		return nil, fmt.Errorf("elevenlabs: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v1/text-to-speech/"+e.voiceID, bytes.NewReader(payload))
	if err != nil {
		e.breaker.Release()
		return nil, err
	}
	req.Header.Set("xi-api-key", e.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := e.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			e.breaker.Release()
		} else {
			e.breaker.Failure()
		}
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests ||
			resp.StatusCode == http.StatusUnauthorized {
			e.breaker.Failure()
		} else {
			e.breaker.Release()
		}
		return nil, fmt.Errorf("elevenlabs returned status %d", resp.StatusCode)
	}

	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes+1))
	if err != nil {
		e.breaker.Failure()
		return nil, err
	}
	if len(audio) == 0 || len(audio) > maxAudioBytes {
		e.breaker.Failure()
		return nil, fmt.Errorf("unexpected audio size %d", len(audio))
	}
	e.breaker.Success()
	return audio, nil
}

// New returns the synthesizer for provider. Unknown providers and a missing
// API key select None.
func New(provider string, opts ElevenLabsOptions) Synthesizer {
	if strings.EqualFold(provider, ProviderElevenLabs) && strings.TrimSpace(opts.APIKey) != "" {
		return NewElevenLabs(opts)
	}
	return None{}
}
