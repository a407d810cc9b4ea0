// Package stamp embeds a signature image into a page of an existing PDF.
//
// The document is never rewritten: the image, its soft mask and the new
// content streams are appended as an incremental update, so the input bytes
// are always a prefix of the output.
package stamp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/georgepadayatti/signpad/geometry"
	"github.com/georgepadayatti/signpad/pdf/images"
	"github.com/georgepadayatti/signpad/pdf/reader"
	"github.com/georgepadayatti/signpad/pdf/writer"
)

// Common errors
var (
	ErrPageIndexOutOfRange = errors.New("page index out of range")
	ErrImageDecode         = errors.New("image decode error")
	ErrDocumentDecode      = errors.New("document decode error")
	ErrInvalidPlacement    = errors.New("invalid placement")
	ErrValidation          = errors.New("output failed validation")
)

// PageRangeError reports a page index outside [0, Count).
type PageRangeError struct {
	Index int
	Count int
}

func (e *PageRangeError) Error() string {
	return fmt.Sprintf("page index %d out of range [0, %d)", e.Index, e.Count)
}

// Is matches ErrPageIndexOutOfRange.
func (e *PageRangeError) Is(target error) bool {
	return target == ErrPageIndexOutOfRange
}

// Editor embeds images into documents. It holds no document state and is
// safe for concurrent use.
type Editor struct {
	scaleFactor float64
	scaleMode   ImageScaleMode
	validate    bool
	images      images.ImageReader
	logger      *slog.Logger
}

// EditorOption configures an Editor.
type EditorOption func(*Editor)

// WithScaleFactor multiplies the placed width and height by f, keeping the
// placement's top-left corner where it is. Non-positive values are ignored.
func WithScaleFactor(f float64) EditorOption {
	return func(e *Editor) {
		if f > 0 && !math.IsInf(f, 0) {
			e.scaleFactor = f
		}
	}
}

// WithScaleMode sets how the image is laid out inside the placement.
func WithScaleMode(m ImageScaleMode) EditorOption {
	return func(e *Editor) {
		e.scaleMode = m
	}
}

// WithValidation validates every output document before returning it.
func WithValidation(enabled bool) EditorOption {
	return func(e *Editor) {
		e.validate = enabled
	}
}

// WithMaxImageSize downscales images larger than width x height pixels
// before embedding. Zero disables a limit.
func WithMaxImageSize(width, height int) EditorOption {
	return func(e *Editor) {
		e.images.MaxWidth, e.images.MaxHeight = width, height
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) EditorOption {
	return func(e *Editor) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEditor creates an Editor.
func NewEditor(opts ...EditorOption) *Editor {
	e := &Editor{
		scaleFactor: 1.0,
		scaleMode:   ImageScaleStretch,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ScaleFactor returns the configured scale factor.
func (e *Editor) ScaleFactor() float64 { return e.scaleFactor }

// EmbedImage draws img onto page pageIndex (zero-based) of doc at p, given
// in points from the bottom-left of the page as displayed. p may lie partly
// or wholly outside the page. Either the complete new document is returned
// or an error; doc is never modified.
func (e *Editor) EmbedImage(ctx context.Context, doc []byte, pageIndex int, img []byte, p geometry.PlacementRect) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p = e.scale(p)
	if err := checkPlacement(p); err != nil {
		return nil, err
	}

	r, err := reader.NewPdfFileReaderFromBytes(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDocumentDecode, err)
	}
	if count := r.GetPageCount(); pageIndex < 0 || pageIndex >= count {
		return nil, &PageRangeError{Index: pageIndex, Count: count}
	}
	page, err := r.GetPage(pageIndex)
	if err != nil {
		return nil, err
	}

	pdfImg, err := e.images.Read(img)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImageDecode, err)
	}

	name, err := freeResourceName(r, page)
	if err != nil {
		return nil, fmt.Errorf("%w: page %d resources: %w", ErrDocumentDecode, pageIndex, err)
	}

	imgW, imgH := pdfImg.PointSize()
	layout := layoutImage(e.scaleMode, p.Width, p.Height, imgW, imgH)
	paint, err := paintContent(name, placementMatrix(page, p), layout, p.Width, p.Height, e.scaleMode == ImageScaleFill)
	if err != nil {
		return nil, err
	}

	w := writer.NewIncrementalPdfFileWriter(r)
	imgRef := addImageXObject(w, pdfImg)
	if err := applyImage(w, pageIndex, name, imgRef, paint); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDocumentDecode, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out, err := w.Bytes()
	if err != nil {
		return nil, fmt.Errorf("write update: %w", err)
	}

	if e.validate {
		if err := validateDocument(out); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrValidation, err)
		}
	}

	e.logger.Debug("embedded image",
		slog.Int("page", pageIndex),
		slog.String("resource", name),
		slog.String("placement", p.String()),
		slog.Int("image_width", pdfImg.Width),
		slog.Int("image_height", pdfImg.Height),
		slog.Int("bytes_added", len(out)-len(doc)),
	)
	return out, nil
}

// scale applies the scale factor around the top-left corner.
func (e *Editor) scale(p geometry.PlacementRect) geometry.PlacementRect {
	if e.scaleFactor == 1 {
		return p
	}
	top := p.Y + p.Height
	p.Width *= e.scaleFactor
	p.Height *= e.scaleFactor
	p.Y = top - p.Height
	return p
}

func checkPlacement(p geometry.PlacementRect) error {
	for _, v := range []float64{p.X, p.Y, p.Width, p.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s", ErrInvalidPlacement, p)
		}
	}
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("%w: non-positive size %s", ErrInvalidPlacement, p)
	}
	return nil
}

// PageCount returns the number of pages in doc.
func PageCount(doc []byte) (int, error) {
	r, err := reader.NewPdfFileReaderFromBytes(doc)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrDocumentDecode, err)
	}
	return r.GetPageCount(), nil
}

// PageSize returns the displayed size in points of page pageIndex, with the
// page's rotation applied.
func PageSize(doc []byte, pageIndex int) (width, height float64, err error) {
	r, err := reader.NewPdfFileReaderFromBytes(doc)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %w", ErrDocumentDecode, err)
	}
	if count := r.GetPageCount(); pageIndex < 0 || pageIndex >= count {
		return 0, 0, &PageRangeError{Index: pageIndex, Count: count}
	}
	page, err := r.GetPage(pageIndex)
	if err != nil {
		return 0, 0, err
	}
	width, height = displaySize(page)
	return width, height, nil
}
