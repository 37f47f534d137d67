// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package assets

import (
	"context"
	"errors"
	"fmt"

	"github.com/ManuGH/vidforge/internal/domain"
	"github.com/ManuGH/vidforge/internal/log"
	"github.com/ManuGH/vidforge/internal/metrics"
	"github.com/ManuGH/vidforge/internal/progress"
)

// FetchAll resolves one asset per segment, in order. An *AssetError for a
// segment is replaced by a placeholder image sized res; any other error
// (typically cancellation) aborts.
func FetchAll(ctx context.Context, f Fetcher, segs []domain.Segment, dir string, res domain.Resolution, rep progress.Reporter) ([]domain.MediaAsset, error) {
	logger := log.WithComponentFromContext(ctx, "assets")
	out := make([]domain.MediaAsset, 0, len(segs))
	configWarned := false

	for i, seg := range segs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rep.Report(ctx, float64(i)/float64(len(segs)), fmt.Sprintf("Fetching media (%d/%d)", i+1, len(segs)))

		asset, err := f.Fetch(ctx, seg, dir)
		if err != nil {
			var assetErr *AssetError
			if !errors.As(err, &assetErr) {
				return nil, err
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			switch {
			case assetErr.Kind != KindConfig:
				logger.Warn().Err(err).Int(log.FieldSegment, seg.Index).Msg("asset unavailable, using placeholder")
			case !configWarned:
				logger.Warn().Err(err).Msg("stock media not configured, using placeholders")
				configWarned = true
			}
			metrics.IncFallback("asset")

			path, perr := WritePlaceholder(dir, seg.Index, res.W, res.H)
			if perr != nil {
				return nil, fmt.Errorf("segment %d: %w", seg.Index, perr)
			}
			asset = domain.MediaAsset{Index: seg.Index, Kind: domain.MediaImage, Path: path, Placeholder: true}
		}
		logger.Debug().
			Int(log.FieldSegment, seg.Index).
			Str(log.FieldMediaKind, string(asset.Kind)).
			Bool("placeholder", asset.Placeholder).
			Msg("asset resolved")
		out = append(out, asset)
	}
	rep.Report(ctx, 1, fmt.Sprintf("Fetched media (%d/%d)", len(segs), len(segs)))
	return out, nil
}
