// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/rigchat/internal/model"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultMaxSize is the attachment size limit used when none is configured.
	DefaultMaxSize int64 = 50 * humanize.MByte

	// DefaultCompressThreshold is the image size above which compression runs.
	DefaultCompressThreshold int64 = 1 * humanize.MiByte

	// DefaultMaxWidth is the widest image kept without downscaling.
	DefaultMaxWidth = 1920

	// DefaultCompressQuality is the JPEG quality of compressed images.
	DefaultCompressQuality = 80
)

// =============================================================================
// INPUT
// =============================================================================

// FileInput describes a file before ingestion. Size is the declared byte
// size and is checked before Open is called.
type FileInput struct {
	Name string
	Type string
	Size int64
	Open func() (io.ReadCloser, error)
}

// FromBytes wraps in-memory data as a FileInput.
func FromBytes(name, mimeType string, data []byte) FileInput {
	return FileInput{
		Name: name,
		Type: mimeType,
		Size: int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// FromPath describes a file on disk. The type is left empty so it is
// detected from the contents.
func FromPath(path string) (FileInput, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileInput{}, fmt.Errorf("file not found: %s", path)
		}
		return FileInput{}, fmt.Errorf("cannot access file: %w", err)
	}
	if info.IsDir() {
		return FileInput{}, fmt.Errorf("%s is a directory", path)
	}
	return FileInput{
		Name: filepath.Base(path),
		Size: info.Size(),
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}, nil
}

// =============================================================================
// INGESTOR
// =============================================================================

// Options tune image pre-compression.
type Options struct {
	// Compress enables re-encoding of large images before ingestion.
	Compress bool

	CompressThreshold int64
	MaxWidth          int
	Quality           int

	// Concurrency bounds IngestAll. Zero means runtime.NumCPU().
	Concurrency int
}

// Ingestor validates files and converts them into attachments.
type Ingestor struct {
	opts Options
}

// New creates an Ingestor, filling unset options with defaults.
func New(opts Options) *Ingestor {
	if opts.CompressThreshold <= 0 {
		opts.CompressThreshold = DefaultCompressThreshold
	}
	if opts.MaxWidth <= 0 {
		opts.MaxWidth = DefaultMaxWidth
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = DefaultCompressQuality
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = runtime.NumCPU()
	}
	return &Ingestor{opts: opts}
}

// Ingest validates one file and builds its attachment. Validation failures
// are returned as *ValidationError. Thumbnail and metadata failures are
// logged and leave the corresponding fields empty.
func (in *Ingestor) Ingest(ctx context.Context, input FileInput, maxSize int64) (*model.AttachedFile, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if input.Size > maxSize {
		return nil, &ValidationError{Name: input.Name, Reason: ReasonTooLarge, Size: input.Size, Limit: maxSize}
	}

	// A declared type that is already unsupported needs no read.
	declared := baseType(input.Type)
	if !needsSniff(declared) && classify(declared, input.Name) == kindUnsupported {
		return nil, &ValidationError{Name: input.Name, Reason: ReasonUnsupportedType, Type: declared}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := readLimited(input, maxSize)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxSize {
		return nil, &ValidationError{Name: input.Name, Reason: ReasonTooLarge, Size: int64(len(data)), Limit: maxSize}
	}

	mimeType := declared
	if needsSniff(mimeType) {
		mimeType = detectType(data, input.Name)
	}

	switch classify(mimeType, input.Name) {
	case kindImage:
		return in.ingestImage(ctx, input.Name, mimeType, data), nil
	case kindText:
		return ingestText(input.Name, mimeType, data), nil
	default:
		return nil, &ValidationError{Name: input.Name, Reason: ReasonUnsupportedType, Type: mimeType}
	}
}

// Rejection pairs a file name with the reason it was not attached.
type Rejection struct {
	Name string
	Err  error
}

// IngestAll ingests files concurrently. Accepted files and rejections are
// both returned in input order.
func (in *Ingestor) IngestAll(ctx context.Context, inputs []FileInput, maxSize int64) ([]model.AttachedFile, []Rejection) {
	results := make([]*model.AttachedFile, len(inputs))
	errs := make([]error, len(inputs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(in.opts.Concurrency)
	for i := range inputs {
		g.Go(func() error {
			results[i], errs[i] = in.Ingest(gctx, inputs[i], maxSize)
			return nil
		})
	}
	_ = g.Wait()

	var files []model.AttachedFile
	var rejected []Rejection
	for i := range inputs {
		if errs[i] != nil {
			rejected = append(rejected, Rejection{Name: inputs[i].Name, Err: errs[i]})
			continue
		}
		files = append(files, *results[i])
	}
	return files, rejected
}

// =============================================================================
// PIPELINE STEPS
// =============================================================================

// readLimited reads at most maxSize+1 bytes so an understated Size is caught.
func readLimited(input FileInput, maxSize int64) ([]byte, error) {
	if input.Open == nil {
		return nil, fmt.Errorf("%s: no content", input.Name)
	}
	rc, err := input.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", input.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", input.Name, err)
	}
	return data, nil
}

// detectType sniffs the content, preferring the extension when the
// content only looks like generic text or binary.
func detectType(data []byte, name string) string {
	sniffed := sniffType(data)
	if sniffed == "text/plain" || needsSniff(sniffed) {
		if ext := typeFromExtension(name); ext != "" && !needsSniff(ext) {
			return ext
		}
	}
	return sniffed
}

func (in *Ingestor) ingestImage(ctx context.Context, name, mimeType string, data []byte) *model.AttachedFile {
	if in.opts.Compress {
		data, mimeType = in.maybeCompress(name, mimeType, data)
	}

	file := &model.AttachedFile{
		ID:      model.NewID("file"),
		Name:    name,
		Type:    mimeType,
		Size:    int64(len(data)),
		Content: dataURL(mimeType, data),
	}

	if w, h, err := imageDimensions(data); err != nil {
		log.Debug().Err(err).Str("file", name).Msg("image dimensions unavailable")
	} else {
		file.Metadata = &model.FileMetadata{Width: w, Height: h}
	}

	if ctx.Err() != nil {
		return file
	}
	if thumb, err := thumbnail(data); err != nil {
		log.Debug().Err(err).Str("file", name).Msg("thumbnail generation failed")
	} else {
		file.Thumbnail = thumb
	}
	return file
}

func (in *Ingestor) maybeCompress(name, mimeType string, data []byte) ([]byte, string) {
	w, _, err := imageDimensions(data)
	if err != nil {
		return data, mimeType
	}
	if int64(len(data)) <= in.opts.CompressThreshold && w <= in.opts.MaxWidth {
		return data, mimeType
	}

	out, ok, err := compressImage(data, in.opts.MaxWidth, in.opts.Quality)
	if err != nil {
		log.Debug().Err(err).Str("file", name).Msg("image compression failed")
		return data, mimeType
	}
	if !ok {
		return data, mimeType
	}
	log.Debug().
		Str("file", name).
		Int("before", len(data)).
		Int("after", len(out)).
		Msg("image compressed")
	return out, "image/jpeg"
}

func ingestText(name, mimeType string, data []byte) *model.AttachedFile {
	content, encoding := decodeText(data)

	file := &model.AttachedFile{
		ID:      model.NewID("file"),
		Name:    name,
		Type:    mimeType,
		Size:    int64(len(data)),
		Content: content,
		Metadata: &model.FileMetadata{
			Language: SourceLanguage(name),
			Encoding: encoding,
		},
	}

	extracted := normalizeText(content)
	if isHTML(mimeType, name) {
		if text, err := htmlText(extracted); err != nil {
			log.Debug().Err(err).Str("file", name).Msg("html text extraction failed")
		} else {
			extracted = text
		}
	}
	if extracted != content {
		file.ExtractedText = extracted
	}
	return file
}
