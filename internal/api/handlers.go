// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/vidforge/internal/config"
	"github.com/ManuGH/vidforge/internal/domain"
	"github.com/ManuGH/vidforge/internal/jobs"
	"github.com/ManuGH/vidforge/internal/log"
	"github.com/ManuGH/vidforge/internal/narration"
	"github.com/ManuGH/vidforge/internal/validate"
)

const (
	defaultMaxDurationSec = 300
	maxPromptRunes        = 2000
	maxBodyBytes          = 64 << 10
)

// generateBody mirrors domain.GenerateRequest with pointers where absence
// must be told apart from the zero value.
type generateBody struct {
	Prompt      string `json:"prompt"`
	DurationSec *int   `json:"durationSec"`
	Format      string `json:"format"`
	Language    string `json:"language"`
	TTSProvider string `json:"ttsProvider"`
	Subtitles   bool   `json:"subtitles"`
}

type generateResponse struct {
	ID string `json:"id"`
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// handleGenerate validates the request, clamps the duration and queues a job.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "api")

	var body generateBody
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		RespondError(w, r, http.StatusBadRequest, ErrInvalidRequest, []fieldError{{Field: "body", Message: "malformed JSON"}})
		return
	}

	req, err := s.normalize(body)
	if err != nil {
		var verr validate.ValidationError
		if errors.As(err, &verr) {
			details := make([]fieldError, 0, len(verr.Errors()))
			for _, e := range verr.Errors() {
				details = append(details, fieldError{Field: e.Field, Message: e.Message})
			}
			RespondError(w, r, http.StatusBadRequest, ErrInvalidRequest, details)
			return
		}
		RespondError(w, r, http.StatusBadRequest, ErrInvalidRequest)
		return
	}

	snap, err := s.jobs.Submit(r.Context(), req)
	switch {
	case errors.Is(err, jobs.ErrShuttingDown):
		RespondError(w, r, http.StatusServiceUnavailable, ErrShuttingDown)
		return
	case err != nil:
		logger.Error().Err(err).Str(log.FieldEvent, "job.submit_failed").Msg("failed to submit job")
		RespondError(w, r, http.StatusInternalServerError, ErrInternal)
		return
	}

	logger.Info().
		Str(log.FieldEvent, "job.accepted").
		Str(log.FieldJobID, snap.ID).
		Int(log.FieldDuration, req.DurationSec).
		Str("format", req.Format).
		Msg("generation job accepted")
	writeJSON(w, http.StatusAccepted, generateResponse{ID: snap.ID})
}

// normalize applies defaults and the duration cap, then validates.
func (s *Server) normalize(body generateBody) (domain.GenerateRequest, error) {
	v := validate.New()

	req := domain.GenerateRequest{
		Prompt:      strings.TrimSpace(body.Prompt),
		Format:      strings.ToLower(strings.TrimSpace(body.Format)),
		Language:    strings.TrimSpace(body.Language),
		TTSProvider: strings.ToLower(strings.TrimSpace(body.TTSProvider)),
		Subtitles:   body.Subtitles,
	}
	if req.TTSProvider == "" {
		req.TTSProvider = narration.ProviderNone
	}

	v.NotEmpty("prompt", req.Prompt)
	v.MaxLen("prompt", req.Prompt, maxPromptRunes)

	if body.DurationSec == nil {
		v.AddError("durationSec", "value is required", nil)
	} else {
		req.DurationSec = *body.DurationSec
		v.Positive("durationSec", req.DurationSec)
		if maxSec := s.maxDuration(); maxSec > 0 && req.DurationSec > maxSec {
			req.DurationSec = maxSec
		}
		if req.DurationSec > 0 && req.DurationSec < config.MinDurationSec {
			v.AddError("durationSec", fmt.Sprintf("value must be at least %d", config.MinDurationSec), req.DurationSec)
		}
	}

	v.OneOf("format", req.Format, []string{domain.FormatShort, domain.FormatLong})
	v.NotEmpty("language", req.Language)
	v.OneOf("ttsProvider", req.TTSProvider, []string{narration.ProviderNone, narration.ProviderElevenLabs})

	return req, v.Err()
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	snaps, err := s.jobs.List(r.Context())
	if err != nil {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).Str(log.FieldEvent, "job.list_failed").Msg("failed to list jobs")
		RespondError(w, r, http.StatusInternalServerError, ErrInternal)
		return
	}
	if snaps == nil {
		snaps = []domain.JobSnapshot{}
	}
	writeJSON(w, http.StatusOK, snaps)
}

// handleDownload streams the finished video or its subtitle file.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	kind := strings.ToLower(r.URL.Query().Get("type"))
	if kind == "" {
		kind = "mp4"
	}
	if kind != "mp4" && kind != "srt" {
		RespondError(w, r, http.StatusBadRequest, ErrInvalidRequest,
			[]fieldError{{Field: "type", Message: "value must be one of [mp4 srt]"}})
		return
	}

	snap, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if snap.Status != domain.JobDone || snap.Result == nil {
		RespondError(w, r, http.StatusNotFound, ErrFileNotFound)
		return
	}

	path, contentType := snap.Result.VideoPath, "video/mp4"
	if kind == "srt" {
		path, contentType = snap.Result.SubtitlePath, "application/x-subrip"
	}
	if path == "" {
		RespondError(w, r, http.StatusNotFound, ErrFileNotFound)
		return
	}

	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		RespondError(w, r, http.StatusNotFound, ErrFileNotFound)
		return
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		RespondError(w, r, http.StatusNotFound, ErrFileNotFound)
		return
	}

	name := snap.ID + "." + kind
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	http.ServeContent(w, r, name, info.ModTime(), f)
}

// lookup resolves {id} and writes the error answer itself when it fails.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (domain.JobSnapshot, bool) {
	id := chi.URLParam(r, "id")
	snap, err := s.jobs.Get(r.Context(), id)
	switch {
	case errors.Is(err, jobs.ErrNotFound):
		RespondError(w, r, http.StatusNotFound, ErrJobNotFound)
		return domain.JobSnapshot{}, false
	case err != nil:
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).Str(log.FieldJobID, id).Msg("failed to load job")
		RespondError(w, r, http.StatusInternalServerError, ErrInternal)
		return domain.JobSnapshot{}, false
	}
	return snap, true
}
