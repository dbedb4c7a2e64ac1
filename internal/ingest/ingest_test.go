// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ingest

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dustin/go-humanize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// HELPERS
// =============================================================================

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodeDataURL(t *testing.T, url string) []byte {
	t.Helper()
	_, payload, ok := strings.Cut(url, ";base64,")
	require.True(t, ok)
	data, err := base64.StdEncoding.DecodeString(payload)
	require.NoError(t, err)
	return data
}

func unopenable(t *testing.T) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) {
		t.Error("Open should not be called")
		return nil, errors.New("unexpected open")
	}
}

// =============================================================================
// VALIDATION TESTS
// =============================================================================

func TestIngest_TooLarge(t *testing.T) {
	in := New(Options{})
	input := FileInput{Name: "big.txt", Type: "text/plain", Size: 60 * humanize.MByte, Open: unopenable(t)}

	file, err := in.Ingest(context.Background(), input, 50*humanize.MByte)

	assert.Nil(t, file)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTooLarge))

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, ReasonTooLarge, ve.Reason)
	assert.Contains(t, err.Error(), "50 MB")
}

func TestIngest_UnderstatedSize(t *testing.T) {
	in := New(Options{})
	input := FromBytes("notes.txt", "text/plain", []byte(strings.Repeat("x", 20)))
	input.Size = 1

	_, err := in.Ingest(context.Background(), input, 10)
	assert.True(t, errors.Is(err, ErrTooLarge))
}

func TestIngest_UnsupportedBinary(t *testing.T) {
	in := New(Options{})
	data := bytes.Repeat([]byte{0x00, 0xFF, 0x13, 0x37}, 256)

	file, err := in.Ingest(context.Background(), FromBytes("blob.bin", "application/octet-stream", data), DefaultMaxSize)

	assert.Nil(t, file)
	assert.True(t, errors.Is(err, ErrUnsupportedType))
	assert.False(t, errors.Is(err, ErrTooLarge))
}

func TestIngest_UnsupportedDeclaredTypeSkipsRead(t *testing.T) {
	in := New(Options{})
	input := FileInput{Name: "archive.zip", Type: "application/zip", Size: 100, Open: unopenable(t)}

	_, err := in.Ingest(context.Background(), input, DefaultMaxSize)

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, ReasonUnsupportedType, ve.Reason)
	assert.Equal(t, "application/zip", ve.Type)
}

func TestIngest_AllowedSpecialTypes(t *testing.T) {
	in := New(Options{})
	for mt := range specialTypes {
		t.Run(mt, func(t *testing.T) {
			file, err := in.Ingest(context.Background(), FromBytes("data", mt, []byte("{}")), DefaultMaxSize)
			require.NoError(t, err)
			assert.Equal(t, "{}", file.Content)
		})
	}
}

// =============================================================================
// TEXT TESTS
// =============================================================================

func TestIngest_PythonSource(t *testing.T) {
	in := New(Options{})
	src := []byte(strings.Repeat("print('hello')\n", 68))
	require.Len(t, src, 1020)

	file, err := in.Ingest(context.Background(), FromBytes("script.py", "", src), DefaultMaxSize)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(file.ID, "file_"))
	assert.Equal(t, "script.py", file.Name)
	assert.Equal(t, int64(len(src)), file.Size)
	assert.Equal(t, string(src), file.Content)
	assert.Empty(t, file.ExtractedText)
	assert.Empty(t, file.Thumbnail)
	require.NotNil(t, file.Metadata)
	assert.Equal(t, "python", file.Metadata.Language)
	assert.Equal(t, EncodingUTF8, file.Metadata.Encoding)
}

func TestIngest_CRLFGetsExtractedText(t *testing.T) {
	in := New(Options{})

	file, err := in.Ingest(context.Background(), FromBytes("notes.txt", "text/plain", []byte("a\r\nb")), DefaultMaxSize)
	require.NoError(t, err)

	assert.Equal(t, "a\r\nb", file.Content)
	assert.Equal(t, "a\nb", file.ExtractedText)
}

func TestIngest_UTF16(t *testing.T) {
	in := New(Options{})
	data := []byte{0xFF, 0xFE, 'h', 0x00, 'i', 0x00}

	file, err := in.Ingest(context.Background(), FromBytes("hi.txt", "text/plain", data), DefaultMaxSize)
	require.NoError(t, err)

	assert.Equal(t, "hi", file.Content)
	assert.Equal(t, EncodingUTF16LE, file.Metadata.Encoding)
}

func TestIngest_HTMLExtraction(t *testing.T) {
	in := New(Options{})
	doc := "<html><body>\n<h1>Title</h1>\n<p>Hello <b>world</b></p>\n<script>track()</script>\n</body></html>"

	file, err := in.Ingest(context.Background(), FromBytes("page.html", "text/html", []byte(doc)), DefaultMaxSize)
	require.NoError(t, err)

	assert.Equal(t, doc, file.Content)
	assert.Equal(t, "Title\nHello world", file.ExtractedText)
	assert.Equal(t, "html", file.Metadata.Language)
}

// =============================================================================
// IMAGE TESTS
// =============================================================================

func TestIngest_ImageThumbnail(t *testing.T) {
	in := New(Options{})
	data := pngBytes(t, 300, 200)

	file, err := in.Ingest(context.Background(), FromBytes("photo.png", "image/png", data), DefaultMaxSize)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(file.Content, "data:image/png;base64,"))
	require.NotNil(t, file.Metadata)
	assert.Equal(t, 300, file.Metadata.Width)
	assert.Equal(t, 200, file.Metadata.Height)

	require.True(t, strings.HasPrefix(file.Thumbnail, "data:image/jpeg;base64,"))
	thumb := decodeDataURL(t, file.Thumbnail)
	cfg, _, err := image.DecodeConfig(bytes.NewReader(thumb))
	require.NoError(t, err)
	assert.Equal(t, 150, cfg.Width)
	assert.Equal(t, 100, cfg.Height)
}

func TestIngest_BrokenImageStillAttached(t *testing.T) {
	in := New(Options{})

	file, err := in.Ingest(context.Background(), FromBytes("broken.png", "image/png", []byte("not an image")), DefaultMaxSize)
	require.NoError(t, err)

	assert.Empty(t, file.Thumbnail)
	assert.Nil(t, file.Metadata)
	assert.True(t, strings.HasPrefix(file.Content, "data:image/png;base64,"))
}

func TestIngest_CompressWideImage(t *testing.T) {
	in := New(Options{Compress: true})
	data := pngBytes(t, 2500, 100)

	file, err := in.Ingest(context.Background(), FromBytes("wide.png", "image/png", data), DefaultMaxSize)
	require.NoError(t, err)

	assert.Equal(t, "image/jpeg", file.Type)
	assert.Equal(t, 1920, file.Metadata.Width)
	assert.Equal(t, 76, file.Metadata.Height)
}

func TestIngest_SmallImageNotCompressed(t *testing.T) {
	in := New(Options{Compress: true})
	data := pngBytes(t, 40, 40)

	file, err := in.Ingest(context.Background(), FromBytes("small.png", "image/png", data), DefaultMaxSize)
	require.NoError(t, err)

	assert.Equal(t, "image/png", file.Type)
	assert.Equal(t, int64(len(data)), file.Size)
}

func TestIngest_OversizedCanvasSkipsDecode(t *testing.T) {
	saved := maxDecodePixels
	maxDecodePixels = 100 * 100
	defer func() { maxDecodePixels = saved }()

	data := pngBytes(t, 2500, 100)
	in := New(Options{Compress: true})

	file, err := in.Ingest(context.Background(), FromBytes("huge.png", "image/png", data), DefaultMaxSize)
	require.NoError(t, err)

	assert.Equal(t, "image/png", file.Type)
	assert.Equal(t, int64(len(data)), file.Size)
	assert.Empty(t, file.Thumbnail)
	require.NotNil(t, file.Metadata)
	assert.Equal(t, 2500, file.Metadata.Width)
	assert.Equal(t, 100, file.Metadata.Height)

	_, err = thumbnail(data)
	assert.ErrorIs(t, err, ErrImageTooLarge)
	_, _, err = compressImage(data, 1920, 80)
	assert.ErrorIs(t, err, ErrImageTooLarge)
}

func TestFitWithin(t *testing.T) {
	tests := []struct {
		w, h, wantW, wantH int
	}{
		{300, 200, 150, 100},
		{200, 300, 100, 150},
		{100, 50, 100, 50},
		{3000, 1, 150, 1},
	}
	for _, tc := range tests {
		w, h := fitWithin(tc.w, tc.h, ThumbnailSize)
		assert.Equal(t, tc.wantW, w)
		assert.Equal(t, tc.wantH, h)
	}
}

// =============================================================================
// BATCH AND PATH TESTS
// =============================================================================

func TestIngestAll_KeepsOrder(t *testing.T) {
	in := New(Options{Concurrency: 2})
	inputs := []FileInput{
		FromBytes("a.txt", "text/plain", []byte("a")),
		FromBytes("bad.zip", "application/zip", []byte("PK")),
		FromBytes("b.txt", "text/plain", []byte("b")),
		FromBytes("c.md", "", []byte("# c")),
	}

	files, rejected := in.IngestAll(context.Background(), inputs, DefaultMaxSize)

	require.Len(t, files, 3)
	assert.Equal(t, "a.txt", files[0].Name)
	assert.Equal(t, "b.txt", files[1].Name)
	assert.Equal(t, "c.md", files[2].Name)
	require.Len(t, rejected, 1)
	assert.Equal(t, "bad.zip", rejected[0].Name)
	assert.True(t, errors.Is(rejected[0].Err, ErrUnsupportedType))
}

func TestFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.go")
	require.NoError(t, os.WriteFile(path, []byte("package main\n"), 0o600))

	input, err := FromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "main.go", input.Name)
	assert.Equal(t, int64(13), input.Size)

	file, err := New(Options{}).Ingest(context.Background(), input, DefaultMaxSize)
	require.NoError(t, err)
	assert.Equal(t, "go", file.Metadata.Language)

	_, err = FromPath(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)
	_, err = FromPath(dir)
	assert.Error(t, err)
}

func TestSourceLanguage(t *testing.T) {
	assert.Equal(t, "python", SourceLanguage("x.py"))
	assert.Equal(t, "yaml", SourceLanguage("CONFIG.YML"))
	assert.Equal(t, "", SourceLanguage("data.xyz123"))
}
