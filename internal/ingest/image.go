// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ingest

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	// Decoders used by image.Decode.
	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	// ThumbnailSize caps both thumbnail dimensions.
	ThumbnailSize = 150

	thumbnailQuality = 70
)

// ErrImageTooLarge is returned when an image header declares more pixels
// than maxDecodePixels. The image is still attached, without derived data.
var ErrImageTooLarge = errors.New("image dimensions too large to decode")

// maxDecodePixels caps width*height for full decodes. A small compressed
// file can declare a huge canvas.
var maxDecodePixels int64 = 50_000_000

// dataURL encodes data as a base64 data URL.
func dataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// imageDimensions reads the pixel size from the image header.
func imageDimensions(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

// decodeBounded decodes data after checking the declared size against
// maxDecodePixels.
func decodeBounded(data []byte) (image.Image, error) {
	w, h, err := imageDimensions(data)
	if err != nil {
		return nil, err
	}
	if int64(w)*int64(h) > maxDecodePixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrImageTooLarge, w, h)
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	return src, err
}

// fitWithin scales w×h down so neither side exceeds limit. Images already
// small enough keep their size.
func fitWithin(w, h, limit int) (int, int) {
	if w <= limit && h <= limit {
		return w, h
	}
	if w >= h {
		nh := h * limit / w
		if nh < 1 {
			nh = 1
		}
		return limit, nh
	}
	nw := w * limit / h
	if nw < 1 {
		nw = 1
	}
	return nw, limit
}

// resize draws src onto a white canvas of the given size. JPEG has no
// alpha channel, so transparent areas come out white rather than black.
func resize(src image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	return dst
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// thumbnail returns a JPEG data URL no larger than ThumbnailSize on
// either side.
func thumbnail(data []byte) (string, error) {
	src, err := decodeBounded(data)
	if err != nil {
		return "", err
	}
	b := src.Bounds()
	w, h := fitWithin(b.Dx(), b.Dy(), ThumbnailSize)
	out, err := encodeJPEG(resize(src, w, h), thumbnailQuality)
	if err != nil {
		return "", err
	}
	return dataURL("image/jpeg", out), nil
}

// compressImage downscales images wider than maxWidth and re-encodes them
// as JPEG. ok is false when the result would not be smaller.
func compressImage(data []byte, maxWidth, quality int) (out []byte, ok bool, err error) {
	src, err := decodeBounded(data)
	if err != nil {
		return nil, false, err
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w > maxWidth {
		h = h * maxWidth / w
		if h < 1 {
			h = 1
		}
		w = maxWidth
	}

	out, err = encodeJPEG(resize(src, w, h), quality)
	if err != nil {
		return nil, false, err
	}
	if len(out) >= len(data) && w == b.Dx() {
		return nil, false, nil
	}
	return out, true, nil
}
