// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package assets

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/singleflight"
)

var (
	placeholderBG     = color.RGBA{R: 0x11, G: 0x18, B: 0x27, A: 0xff}
	placeholderStripe = color.RGBA{R: 0x37, G: 0x41, B: 0x51, A: 0xff}

	placeholderGroup singleflight.Group
	placeholderCache sync.Map // "WxH" -> []byte
)

// PlaceholderJPEG returns a dark striped frame of the given size. Encoded
// frames are shared across jobs.
func PlaceholderJPEG(w, h int) ([]byte, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid placeholder size %dx%d", w, h)
	}
	key := fmt.Sprintf("%dx%d", w, h)
	if v, ok := placeholderCache.Load(key); ok {
		return v.([]byte), nil
	}
	v, err, _ := placeholderGroup.Do(key, func() (any, error) {
		data, err := renderPlaceholder(w, h)
		if err != nil {
			return nil, err
		}
		placeholderCache.Store(key, data)
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// renderPlaceholder draws ten vertical stripes, half a period wide, on the
// background colour.
func renderPlaceholder(w, h int) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: placeholderBG}, image.Point{}, draw.Src)

	period := max(w*200/1920, 2)
	for i := 0; i < 10; i++ {
		x0 := i * period
		if x0 >= w {
			break
		}
		stripe := image.Rect(x0, 0, min(x0+period/2, w), h)
		draw.Draw(img, stripe, &image.Uniform{C: placeholderStripe}, image.Point{}, draw.Src)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("encode placeholder: %w", err)
	}
	return buf.Bytes(), nil
}

// WritePlaceholder writes the placeholder frame for index into dir.
func WritePlaceholder(dir string, index, w, h int) (string, error) {
	data, err := PlaceholderJPEG(w, h)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("seg%d_fallback.jpg", index))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write placeholder: %w", err)
	}
	return path, nil
}
